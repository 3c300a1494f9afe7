// Package verdict decides whether a refetched snapshot shows signs of removal
package verdict

import (
	"reflect"
	"strings"

	"modwatch/internal/core/entity"
	"modwatch/internal/core/markers"
)

// Signal names the first check that fired
type Signal string

const (
	// SignalNone means the item looks untouched
	SignalNone Signal = ""
	// SignalAbsent means the origin did not return the item at all
	SignalAbsent Signal = "absent"
	// SignalAuthor means the author is gone or replaced by a placeholder
	SignalAuthor Signal = "author"
	// SignalBody means the body is gone or replaced by a placeholder
	SignalBody Signal = "body"
)

// moderationPrefix is prepended to the field name for moderation signals
const moderationPrefix = "moderation:"

// ModerationSignal returns the signal reported for a non-empty moderation field
func ModerationSignal(field string) Signal { return Signal(moderationPrefix + field) }

// IsModeration reports whether s came from a moderation field
func (s Signal) IsModeration() bool { return strings.HasPrefix(string(s), moderationPrefix) }

// Verdict is the outcome of comparing two snapshots
type Verdict struct {
	Removed bool
	Signal  Signal
}

// Check compares the original snapshot with the refetched one
// refetched == nil means the origin omitted the identifier
// Checks short-circuit in a fixed order so Signal is stable for diagnostics
func Check(orig entity.Entity, refetched *entity.Entity) Verdict {
	if refetched == nil {
		return Verdict{Removed: true, Signal: SignalAbsent}
	}
	if a, ok := refetched.Get(entity.FieldAuthor); !ok || isMarker(a) {
		return Verdict{Removed: true, Signal: SignalAuthor}
	}
	if b, ok := refetched.Get(entity.FieldBody); !ok || isMarker(b) {
		return Verdict{Removed: true, Signal: SignalBody}
	}
	for _, f := range entity.ModerationFields {
		if present(orig, f) || present(*refetched, f) {
			return Verdict{Removed: true, Signal: ModerationSignal(f)}
		}
	}
	return Verdict{}
}

// IsRemoved is Check reduced to its boolean
func IsRemoved(orig entity.Entity, refetched *entity.Entity) bool {
	return Check(orig, refetched).Removed
}

func isMarker(v any) bool {
	s, ok := v.(string)
	return ok && markers.Is(s)
}

// present reports whether field holds a non-empty value
// num_reports counts only when non-zero; false never counts
func present(e entity.Entity, field string) bool {
	v, ok := e.Get(field)
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t) != ""
	case bool:
		return t
	case int:
		return t != 0
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	}
	return true
}
