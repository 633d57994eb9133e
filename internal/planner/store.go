package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/2beens/trainplan/internal/telemetry/tracing"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel/attribute"
)

const (
	planKeyPrefix = "trainplan::plan::"
	scheduleKey   = "trainplan::schedule"
	settingsKey   = "trainplan::settings"
)

// Store persists the plan map, the default weekly schedule and the planner
// settings in redis. Values are whole documents, read-modified-written as a
// unit; there is no field level locking (see Service for the implications).
type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{
		rdb: rdb,
	}
}

// PlanValue returns the raw stored value for a date key, and whether the key
// exists at all. The distinction matters: an existing key holding "" is the
// explicit pause marker, a missing key defers to the default schedule.
func (s *Store) PlanValue(ctx context.Context, dateKey string) (_ string, _ bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.plan.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("date_key", dateKey))

	cmd := s.rdb.Get(ctx, planKeyPrefix+dateKey)
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get plan value %s: %w", dateKey, err)
	}
	return cmd.Val(), true, nil
}

// SetPlanValue writes the raw value for a date key. Mutations always persist
// the canonical array shape or the "" pause marker, never the legacy
// shorthand, and never delete the key once written.
func (s *Store) SetPlanValue(ctx context.Context, dateKey, raw string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.plan.set")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("date_key", dateKey))

	if err := s.rdb.Set(ctx, planKeyPrefix+dateKey, raw, 0).Err(); err != nil {
		return fmt.Errorf("set plan value %s: %w", dateKey, err)
	}
	return nil
}

// PlanSnapshot bulk-reads the given date keys into a snapshot, preserving
// the present/absent distinction per key.
func (s *Store) PlanSnapshot(ctx context.Context, dateKeys []string) (_ PlanSnapshot, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.plan.snapshot")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("keys", len(dateKeys)))

	snapshot := make(PlanSnapshot, len(dateKeys))
	if len(dateKeys) == 0 {
		return snapshot, nil
	}

	storeKeys := make([]string, len(dateKeys))
	for i, dk := range dateKeys {
		storeKeys[i] = planKeyPrefix + dk
	}

	cmd := s.rdb.MGet(ctx, storeKeys...)
	if err := cmd.Err(); err != nil {
		return nil, fmt.Errorf("mget plan snapshot: %w", err)
	}

	for i, val := range cmd.Val() {
		if val == nil {
			continue
		}
		raw, ok := val.(string)
		if !ok {
			continue
		}
		snapshot[dateKeys[i]] = raw
	}
	return snapshot, nil
}

// DefaultSchedule loads the recurring weekly schedule. A missing key yields
// an empty schedule.
func (s *Store) DefaultSchedule(ctx context.Context) (_ DefaultSchedule, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.schedule.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	cmd := s.rdb.Get(ctx, scheduleKey)
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return DefaultSchedule{}, nil
		}
		return nil, fmt.Errorf("get default schedule: %w", err)
	}

	var schedule DefaultSchedule
	if err := json.Unmarshal([]byte(cmd.Val()), &schedule); err != nil {
		// tolerant read: a corrupted schedule degrades to an empty one
		return DefaultSchedule{}, nil
	}
	return schedule, nil
}

// SetDefaultSchedule validates and persists the weekly schedule: weekday
// indices 0..6, at most MaxEntriesPerDay unique ids per day.
func (s *Store) SetDefaultSchedule(ctx context.Context, schedule DefaultSchedule) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.schedule.set")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	for weekday, ids := range schedule {
		if weekday < 0 || weekday > 6 {
			return fmt.Errorf("%w: invalid weekday index %d", ErrInvalidSchedule, weekday)
		}
		if len(ids) > MaxEntriesPerDay {
			return fmt.Errorf("%w: weekday %d has more than %d workouts", ErrInvalidSchedule, weekday, MaxEntriesPerDay)
		}
		seen := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if id == "" {
				return fmt.Errorf("%w: weekday %d has an empty workout id", ErrInvalidSchedule, weekday)
			}
			if _, ok := seen[id]; ok {
				return fmt.Errorf("%w: weekday %d has duplicate workout id %s", ErrInvalidSchedule, weekday, id)
			}
			seen[id] = struct{}{}
		}
	}

	encoded, err := json.Marshal(schedule)
	if err != nil {
		return fmt.Errorf("marshal default schedule: %w", err)
	}
	if err := s.rdb.Set(ctx, scheduleKey, string(encoded), 0).Err(); err != nil {
		return fmt.Errorf("set default schedule: %w", err)
	}
	return nil
}

// Settings loads the planner settings, falling back to defaults (reminders
// off, morning) when unset or unreadable.
func (s *Store) Settings(ctx context.Context) (_ Settings, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.settings.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	defaults := Settings{ReminderTime: ReminderMorning}

	cmd := s.rdb.Get(ctx, settingsKey)
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return defaults, nil
		}
		return defaults, fmt.Errorf("get settings: %w", err)
	}

	var settings Settings
	if err := json.Unmarshal([]byte(cmd.Val()), &settings); err != nil {
		return defaults, nil
	}
	if settings.ReminderTime == "" {
		settings.ReminderTime = ReminderMorning
	}
	return settings, nil
}

func (s *Store) SetSettings(ctx context.Context, settings Settings) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.settings.set")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	switch settings.ReminderTime {
	case ReminderMorning, ReminderNoon, ReminderEvening:
	default:
		return fmt.Errorf("%w: unknown reminder time %q", ErrInvalidSettings, settings.ReminderTime)
	}

	encoded, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := s.rdb.Set(ctx, settingsKey, string(encoded), 0).Err(); err != nil {
		return fmt.Errorf("set settings: %w", err)
	}
	return nil
}
