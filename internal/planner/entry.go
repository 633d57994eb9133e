package planner

import "errors"

// MaxEntriesPerDay caps how many trainings can be planned for a single date.
const MaxEntriesPerDay = 3

var (
	ErrCapacityExceeded = errors.New("plan capacity exceeded")
	ErrTargetFull       = errors.New("move target date full")
	ErrPastDateLocked   = errors.New("past date locked")
	ErrUnknownWorkout   = errors.New("unknown workout id")
	ErrInvalidSchedule  = errors.New("invalid default schedule")
	ErrInvalidSettings  = errors.New("invalid settings")
)

// PlanEntry is one scheduled (or retrospectively logged) training occurrence.
type PlanEntry struct {
	WorkoutID       string `json:"workoutId"`
	Completed       bool   `json:"completed,omitempty"`
	DurationMinutes int    `json:"durationMinutes,omitempty"`
}

// EntryPatch carries the updatable completion details of an entry.
// Nil fields are left untouched.
type EntryPatch struct {
	Completed       *bool `json:"completed,omitempty"`
	DurationMinutes *int  `json:"durationMinutes,omitempty"`
}

func (p EntryPatch) applyTo(e *PlanEntry) {
	if p.Completed != nil {
		e.Completed = *p.Completed
	}
	if p.DurationMinutes != nil {
		e.DurationMinutes = *p.DurationMinutes
	}
}

// WorkoutInfo is the catalog view the planner needs: existence and display name.
type WorkoutInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ExerciseCount int    `json:"exerciseCount"`
}

// PlanSnapshot maps date keys to raw stored plan values. Key presence is
// meaningful: an empty string value is the explicit pause marker, while an
// absent key means the date defers to the default weekly schedule.
type PlanSnapshot map[string]string

// DefaultSchedule maps a weekday (0=Sunday .. 6=Saturday) to the ordered
// workout ids recurring on that weekday, up to MaxEntriesPerDay per day.
type DefaultSchedule map[int][]string

// ReminderTime is the configured time-of-day bucket for workout reminders.
type ReminderTime string

const (
	ReminderMorning ReminderTime = "morning"
	ReminderNoon    ReminderTime = "noon"
	ReminderEvening ReminderTime = "evening"
)

// Hour returns the local hour of day at which the reminder fires.
func (rt ReminderTime) Hour() int {
	switch rt {
	case ReminderNoon:
		return 12
	case ReminderEvening:
		return 17
	default:
		return 7
	}
}

// Settings holds the planner preferences persisted alongside the plan.
type Settings struct {
	RemindersEnabled bool         `json:"remindersEnabled"`
	ReminderTime     ReminderTime `json:"reminderTime"`
}
