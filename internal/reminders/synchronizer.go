package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/2beens/trainplan/internal/planner"
	"github.com/2beens/trainplan/internal/telemetry/metrics"
	"github.com/2beens/trainplan/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultHorizonDays is how far ahead reminders get scheduled.
const DefaultHorizonDays = 30

const reminderTitle = "Workout reminder"

// Synchronizer keeps the derived notification schedule consistent with the
// plan by full recompute: cancel everything, walk the horizon, reschedule.
// Deliberately not incremental - the horizon is small and a full replace
// cannot drift or duplicate. It runs on service start, after every plan
// mutation, and once a day via cron.
type Synchronizer struct {
	store          *planner.Store
	catalog        planner.Catalog
	scheduler      Scheduler
	metricsManager *metrics.Manager
	horizonDays    int

	// injectable clock for deterministic tests
	now func() time.Time
}

func NewSynchronizer(
	store *planner.Store,
	catalog planner.Catalog,
	scheduler Scheduler,
	metricsManager *metrics.Manager,
	horizonDays int,
) *Synchronizer {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	return &Synchronizer{
		store:          store,
		catalog:        catalog,
		scheduler:      scheduler,
		metricsManager: metricsManager,
		horizonDays:    horizonDays,
		now:            time.Now,
	}
}

// Resync recomputes the notification schedule for the next horizon of days.
// One reminder per day, derived from the day's first resolved entry. Per-day
// scheduling failures are logged and swallowed so one bad day does not abort
// the rest. Returns an error only when the plan itself cannot be read.
func (s *Synchronizer) Resync(ctx context.Context) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "reminders.resync")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if s.metricsManager != nil {
		s.metricsManager.CounterReminderResyncs.Inc()
	}

	settings, err := s.store.Settings(ctx)
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}

	if !settings.RemindersEnabled {
		if err := s.scheduler.CancelAll(ctx); err != nil {
			log.Errorf("reminders disabled, cancel all failed: %s", err)
		}
		return nil
	}

	granted, err := s.scheduler.HasPermission(ctx)
	if err != nil {
		log.Errorf("reminder permission check failed: %s", err)
		return nil
	}
	if !granted {
		granted, err = s.scheduler.RequestPermission(ctx)
		if err != nil || !granted {
			log.Warnf("reminder permission not granted (err: %v), skipping resync", err)
			return nil
		}
	}

	// full replace: drop every previously scheduled notification first,
	// so nothing stale or duplicated survives the recompute
	if err := s.scheduler.CancelAll(ctx); err != nil {
		return fmt.Errorf("cancel scheduled notifications: %w", err)
	}

	now := s.now()
	days := planner.NextNDays(now, s.horizonDays)
	todayKey := planner.ToLocalDateKey(now)

	dateKeys := make([]string, 0, len(days)*2)
	for _, day := range days {
		localKey := planner.ToLocalDateKey(day)
		dateKeys = append(dateKeys, localKey)
		if utcKey := planner.ToUTCDateKey(day); utcKey != localKey {
			dateKeys = append(dateKeys, utcKey)
		}
	}

	snapshot, err := s.store.PlanSnapshot(ctx, dateKeys)
	if err != nil {
		return fmt.Errorf("read plan snapshot: %w", err)
	}

	schedule, err := s.store.DefaultSchedule(ctx)
	if err != nil {
		return fmt.Errorf("read default schedule: %w", err)
	}

	workoutNames := s.workoutNames(ctx)

	scheduled := 0
	for _, day := range days {
		// no unknown-id filtering here: a deleted workout still gets its
		// reminder, just with the generic message
		entries := planner.ResolveEntries(day, snapshot, schedule, nil, todayKey)
		if len(entries) == 0 {
			continue
		}

		year, month, dayOfMonth := day.Date()
		triggerAt := time.Date(year, month, dayOfMonth, settings.ReminderTime.Hour(), 0, 0, 0, day.Location())
		if !triggerAt.After(now) {
			// today's reminder hour already passed
			continue
		}

		body := "Your workout is waiting for you today 💪"
		if name, ok := workoutNames[entries[0].WorkoutID]; ok {
			body = fmt.Sprintf("Time for %s 💪", name)
		}

		if _, err := s.scheduler.ScheduleAt(ctx, triggerAt, reminderTitle, body); err != nil {
			log.Errorf("schedule reminder for %s: %s", planner.ToLocalDateKey(day), err)
			continue
		}
		scheduled++
	}

	span.SetAttributes(attribute.Int("scheduled", scheduled))
	if s.metricsManager != nil {
		s.metricsManager.CounterRemindersScheduled.Add(float64(scheduled))
	}
	log.Debugf("reminder resync done: %d notifications scheduled over %d days", scheduled, s.horizonDays)

	return nil
}

// workoutNames is best effort; with an unreachable catalog the reminders
// fall back to the generic message instead of failing the resync.
func (s *Synchronizer) workoutNames(ctx context.Context) map[string]string {
	workouts, err := s.catalog.ListWorkouts(ctx)
	if err != nil {
		log.Errorf("reminder resync, list workouts: %s", err)
		return map[string]string{}
	}
	names := make(map[string]string, len(workouts))
	for _, w := range workouts {
		names[w.ID] = w.Name
	}
	return names
}
