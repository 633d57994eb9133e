package planner

import (
	"encoding/json"
	"strings"
)

// Normalize converts a raw stored plan value into the canonical ordered entry
// list. The store accumulated several value shapes over time:
//   - "" - the explicit pause marker (zero trainings that day)
//   - a bare workout id string (legacy single-entry shorthand)
//   - a JSON string (the same shorthand, written through a JSON encoder)
//   - a single JSON entry object
//   - a JSON array mixing any of the above (current canonical shape)
//
// All of them normalize through the same per-element rule. Malformed elements
// are dropped silently, entry order is preserved, and Normalize never fails:
// corrupted storage must degrade to an empty day, not a broken app.
func Normalize(raw string) []PlanEntry {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return []PlanEntry{}
	}

	switch trimmed[0] {
	case '[':
		var elements []json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &elements); err != nil {
			return []PlanEntry{}
		}
		entries := make([]PlanEntry, 0, len(elements))
		for _, el := range elements {
			if entry, ok := normalizeElement(el); ok {
				entries = append(entries, entry)
			}
		}
		return entries
	case '{', '"':
		if entry, ok := normalizeElement(json.RawMessage(trimmed)); ok {
			return []PlanEntry{entry}
		}
		return []PlanEntry{}
	default:
		// legacy values were stored as the raw workout id, no JSON encoding
		return []PlanEntry{{WorkoutID: raw}}
	}
}

// normalizeElement applies the single-value rule: a non-empty string becomes a
// bare entry, an object with a string workoutId is already canonical, and
// everything else (numbers, booleans, null, id-less objects) is unrecognized.
func normalizeElement(raw json.RawMessage) (PlanEntry, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return PlanEntry{}, false
	}

	switch trimmed[0] {
	case '"':
		var id string
		if err := json.Unmarshal(raw, &id); err != nil || id == "" {
			return PlanEntry{}, false
		}
		return PlanEntry{WorkoutID: id}, true
	case '{':
		var entry PlanEntry
		if err := json.Unmarshal(raw, &entry); err != nil || entry.WorkoutID == "" {
			return PlanEntry{}, false
		}
		return entry, true
	default:
		return PlanEntry{}, false
	}
}

// EncodeEntries renders the canonical persisted form of an entry list: the
// pause marker for an empty list, a JSON array otherwise. Writes never use
// the legacy shorthand shapes.
func EncodeEntries(entries []PlanEntry) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}
	encoded, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}
