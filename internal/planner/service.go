package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/2beens/trainplan/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

//go:generate mockgen -source=$GOFILE -destination=service_mocks_test.go -package=planner_test

// Catalog is the read-only workout catalog view the planner needs: id
// validation for future dates and display names for resolved entries.
type Catalog interface {
	KnownWorkoutIDs(ctx context.Context) (map[string]struct{}, error)
	ListWorkouts(ctx context.Context) ([]WorkoutInfo, error)
}

// Resyncer recomputes the derived reminder schedule; the plan service
// triggers it after every plan-affecting mutation.
type Resyncer interface {
	Resync(ctx context.Context) error
}

// Service is the plan mutator. Every operation re-reads the resolved view of
// the affected date(s) before writing, so that a not-yet-overridden day gets
// its default-schedule entries materialized into an explicit override on
// first edit. There are no transactional guarantees: overlapping mutations
// of the same date can lose an update, which is acceptable for a single-user
// single-device plan.
type Service struct {
	store    *Store
	catalog  Catalog
	resyncer Resyncer

	// injectable clock for deterministic tests
	now func() time.Time
}

func NewService(store *Store, catalog Catalog) *Service {
	return &Service{
		store:   store,
		catalog: catalog,
		now:     time.Now,
	}
}

// SetResyncer wires the reminder synchronizer; it is optional, and set after
// construction to keep the plan and reminder packages decoupled.
func (s *Service) SetResyncer(r Resyncer) {
	s.resyncer = r
}

// TodayKey returns today's local date key; dates strictly below it are past.
func (s *Service) TodayKey() string {
	return ToLocalDateKey(s.now())
}

// Entries resolves the effective, materialized entry list for a date.
func (s *Service) Entries(ctx context.Context, date time.Time) (_ []PlanEntry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.plan.entries")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("date_key", ToLocalDateKey(date)))

	snapshot, err := s.overrideSnapshot(ctx, date)
	if err != nil {
		return nil, err
	}

	schedule, err := s.store.DefaultSchedule(ctx)
	if err != nil {
		return nil, err
	}

	todayKey := s.TodayKey()

	// unknown-id filtering applies to today-or-future dates only; past
	// overrides keep dangling references for historical display
	var knownIDs map[string]struct{}
	if ToLocalDateKey(date) >= todayKey {
		knownIDs, err = s.catalog.KnownWorkoutIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("known workout ids: %w", err)
		}
	}

	return ResolveEntries(date, snapshot, schedule, knownIDs, todayKey), nil
}

// validateWorkoutID checks the id against the catalog for today-or-future
// dates. Past dates are exempt so a since-deleted workout can still be
// logged retroactively, matching how resolution keeps dangling past ids.
func (s *Service) validateWorkoutID(ctx context.Context, date time.Time, workoutID string) error {
	if ToLocalDateKey(date) < s.TodayKey() {
		return nil
	}
	knownIDs, err := s.catalog.KnownWorkoutIDs(ctx)
	if err != nil {
		return fmt.Errorf("known workout ids: %w", err)
	}
	if _, ok := knownIDs[workoutID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownWorkout, workoutID)
	}
	return nil
}

// Add appends a bare entry to the date, rejecting with ErrCapacityExceeded
// when the resolved list already holds MaxEntriesPerDay. No write happens on
// rejection.
func (s *Service) Add(ctx context.Context, date time.Time, workoutID string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.plan.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("workout_id", workoutID))

	if err := s.validateWorkoutID(ctx, date, workoutID); err != nil {
		return err
	}

	entries, err := s.Entries(ctx, date)
	if err != nil {
		return err
	}
	if len(entries) >= MaxEntriesPerDay {
		return ErrCapacityExceeded
	}

	entries = append(entries, PlanEntry{WorkoutID: workoutID})
	if err := s.saveEntries(ctx, date, entries); err != nil {
		return err
	}

	s.triggerResync(ctx)
	return nil
}

// AddWithDetails appends a fully populated entry - used for logging a past
// training retroactively. Capacity is checked the same way as Add.
func (s *Service) AddWithDetails(
	ctx context.Context,
	date time.Time,
	workoutID string,
	completed bool,
	durationMinutes int,
) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.plan.addwithdetails")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("workout_id", workoutID))

	if err := s.validateWorkoutID(ctx, date, workoutID); err != nil {
		return err
	}

	entries, err := s.Entries(ctx, date)
	if err != nil {
		return err
	}
	if len(entries) >= MaxEntriesPerDay {
		return ErrCapacityExceeded
	}

	entries = append(entries, PlanEntry{
		WorkoutID:       workoutID,
		Completed:       completed,
		DurationMinutes: durationMinutes,
	})
	if err := s.saveEntries(ctx, date, entries); err != nil {
		return err
	}

	s.triggerResync(ctx)
	return nil
}

// RemoveAt deletes the entry at index from the date's resolved list. An out
// of bounds index is a no-op. Removing the last entry persists the pause
// marker, so the date stays explicitly cleared instead of falling back to
// the default schedule.
func (s *Service) RemoveAt(ctx context.Context, date time.Time, index int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.plan.removeat")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("index", index))

	entries, err := s.Entries(ctx, date)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(entries) {
		log.Debugf("plan remove at %s: index %d out of bounds (%d entries), no-op",
			ToLocalDateKey(date), index, len(entries))
		return nil
	}

	entries = append(entries[:index], entries[index+1:]...)
	if err := s.saveEntries(ctx, date, entries); err != nil {
		return err
	}

	s.triggerResync(ctx)
	return nil
}

// UpdateAt shallow-merges the patch into the entry at index and persists the
// full materialized list. Editing a not-yet-overridden day therefore creates
// its first explicit override. An invalid index is a no-op.
func (s *Service) UpdateAt(ctx context.Context, date time.Time, index int, patch EntryPatch) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.plan.updateat")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("index", index))

	entries, err := s.Entries(ctx, date)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(entries) {
		log.Debugf("plan update at %s: index %d out of bounds (%d entries), no-op",
			ToLocalDateKey(date), index, len(entries))
		return nil
	}

	patch.applyTo(&entries[index])
	if err := s.saveEntries(ctx, date, entries); err != nil {
		return err
	}

	s.triggerResync(ctx)
	return nil
}

// Move relocates the first entry matching workoutID from one date to
// another. A missing source entry is a no-op; a full target rejects with
// ErrTargetFull before anything is written, so the source stays untouched.
// On success the source is written first, then the target: the two writes
// are not atomic, and an interruption in between is recovered by the next
// reminder resync rather than rolled back.
func (s *Service) Move(ctx context.Context, from, to time.Time, workoutID string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.plan.move")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("workout_id", workoutID))
	span.SetAttributes(attribute.String("from", ToLocalDateKey(from)))
	span.SetAttributes(attribute.String("to", ToLocalDateKey(to)))

	fromEntries, err := s.Entries(ctx, from)
	if err != nil {
		return err
	}

	moveIndex := -1
	for i, e := range fromEntries {
		if e.WorkoutID == workoutID {
			moveIndex = i
			break
		}
	}
	if moveIndex == -1 {
		log.Debugf("plan move: workout %s not planned on %s, no-op", workoutID, ToLocalDateKey(from))
		return nil
	}

	toEntries, err := s.Entries(ctx, to)
	if err != nil {
		return err
	}
	if len(toEntries) >= MaxEntriesPerDay {
		return ErrTargetFull
	}

	moved := fromEntries[moveIndex]
	fromEntries = append(fromEntries[:moveIndex], fromEntries[moveIndex+1:]...)
	toEntries = append(toEntries, moved)

	if err := s.saveEntries(ctx, from, fromEntries); err != nil {
		return err
	}
	if err := s.saveEntries(ctx, to, toEntries); err != nil {
		return err
	}

	s.triggerResync(ctx)
	return nil
}

// DefaultSchedule returns the recurring weekly schedule.
func (s *Service) DefaultSchedule(ctx context.Context) (DefaultSchedule, error) {
	return s.store.DefaultSchedule(ctx)
}

// SetDefaultSchedule replaces the weekly schedule and resyncs reminders,
// since future days without overrides derive from it.
func (s *Service) SetDefaultSchedule(ctx context.Context, schedule DefaultSchedule) error {
	if err := s.store.SetDefaultSchedule(ctx, schedule); err != nil {
		return err
	}
	s.triggerResync(ctx)
	return nil
}

// Settings returns the planner settings.
func (s *Service) Settings(ctx context.Context) (Settings, error) {
	return s.store.Settings(ctx)
}

// SetSettings persists the planner settings and resyncs reminders, since
// both the enabled flag and the reminder hour shape the derived schedule.
func (s *Service) SetSettings(ctx context.Context, settings Settings) error {
	if err := s.store.SetSettings(ctx, settings); err != nil {
		return err
	}
	s.triggerResync(ctx)
	return nil
}

// ResyncReminders recomputes the derived reminder schedule on demand,
// surfacing the error to the caller instead of swallowing it like the
// mutation-triggered resyncs do.
func (s *Service) ResyncReminders(ctx context.Context) error {
	if s.resyncer == nil {
		return nil
	}
	return s.resyncer.Resync(ctx)
}

// overrideSnapshot reads the two candidate override keys for a date.
func (s *Service) overrideSnapshot(ctx context.Context, date time.Time) (PlanSnapshot, error) {
	localKey := ToLocalDateKey(date)
	utcKey := ToUTCDateKey(date)

	snapshot := make(PlanSnapshot, 2)
	raw, present, err := s.store.PlanValue(ctx, localKey)
	if err != nil {
		return nil, err
	}
	if present {
		snapshot[localKey] = raw
	}

	if utcKey != localKey {
		raw, present, err = s.store.PlanValue(ctx, utcKey)
		if err != nil {
			return nil, err
		}
		if present {
			snapshot[utcKey] = raw
		}
	}
	return snapshot, nil
}

// saveEntries persists the canonical form of the list under the date's local
// key. Writes always target the local key; stale UTC-derived keys are left
// in place and shadowed on read, since local matches take precedence.
func (s *Service) saveEntries(ctx context.Context, date time.Time, entries []PlanEntry) error {
	raw, err := EncodeEntries(entries)
	if err != nil {
		return fmt.Errorf("encode plan entries: %w", err)
	}
	return s.store.SetPlanValue(ctx, ToLocalDateKey(date), raw)
}

func (s *Service) triggerResync(ctx context.Context) {
	if s.resyncer == nil {
		return
	}
	if err := s.resyncer.Resync(ctx); err != nil {
		// reminders are best effort, the next resync self-corrects
		log.Errorf("plan service: reminder resync failed: %s", err)
	}
}
