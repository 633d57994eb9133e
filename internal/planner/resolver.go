package planner

import "time"

// ResolveEntries returns the effective entry list for a date, consulting the
// per-date overrides in the snapshot first and falling back to the recurring
// weekly schedule only for today-or-future dates without an override key.
//
// Override lookup checks the local date key first, then the UTC derivation
// (historical values were written under both conventions). An override key
// whose value normalizes to an empty list is the explicit pause marker and
// still short-circuits the default schedule.
//
// knownIDs, when non-nil, filters out entries referencing unknown workouts -
// but only for today-or-future dates. Past overrides keep dangling references
// so that history outlives a deleted workout definition; rendering them as
// "deleted" is the caller's job.
func ResolveEntries(
	date time.Time,
	plan PlanSnapshot,
	schedule DefaultSchedule,
	knownIDs map[string]struct{},
	todayKey string,
) []PlanEntry {
	localKey := ToLocalDateKey(date)

	raw, overridden := plan[localKey]
	if !overridden {
		raw, overridden = plan[ToUTCDateKey(date)]
	}

	if overridden {
		entries := Normalize(raw)
		if len(entries) > MaxEntriesPerDay {
			entries = entries[:MaxEntriesPerDay]
		}
		if knownIDs != nil && localKey >= todayKey {
			known := entries[:0]
			for _, e := range entries {
				if _, ok := knownIDs[e.WorkoutID]; ok {
					known = append(known, e)
				}
			}
			entries = known
		}
		return entries
	}

	// no override at all: past dates never fill retroactively from the
	// default schedule, history is populated by explicit overrides only
	if localKey < todayKey {
		return []PlanEntry{}
	}

	ids := schedule[int(date.Weekday())]
	if len(ids) > MaxEntriesPerDay {
		ids = ids[:MaxEntriesPerDay]
	}
	entries := make([]PlanEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, PlanEntry{WorkoutID: id})
	}
	return entries
}

// hasOverride reports whether the snapshot carries an explicit override for
// the date, under either key derivation.
func hasOverride(date time.Time, plan PlanSnapshot) bool {
	if _, ok := plan[ToLocalDateKey(date)]; ok {
		return true
	}
	_, ok := plan[ToUTCDateKey(date)]
	return ok
}
