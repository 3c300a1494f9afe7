package entity

import (
	"encoding/json"
	"math"
	"strings"
)

// Canonicalize converts a raw origin object into a comparison-stable Entity
//   - keys starting with "_" are internal to the origin client and dropped
//   - author and subreddit objects collapse to their display name
//   - null, "", empty objects, empty arrays and NaN/Inf are removed post-order,
//     so an object that empties out disappears from its parent too
//   - 0 and false are real values and stay
func Canonicalize(raw map[string]any) Entity {
	if len(raw) == 0 {
		return Entity{}
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		if strings.HasPrefix(k, "_") {
			continue
		}
		switch k {
		case FieldAuthor:
			v = resolveIdentity(v, "name")
		case FieldSubreddit:
			v = resolveIdentity(v, "display_name", "name")
		}
		if cv, keep := clean(generic(v)); keep {
			out[k] = cv
		}
	}
	return fromMap(out)
}

// resolveIdentity maps an object reference to its textual identity
// Plain strings pass through; objects without a usable key become nil and get stripped
func resolveIdentity(v any, keys ...string) any {
	var obj map[string]any
	switch t := v.(type) {
	case map[string]any:
		obj = t
	case interface{ DisplayName() string }:
		return t.DisplayName()
	case interface{ Name() string }:
		return t.Name()
	default:
		return v
	}
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return nil
}

// generic converts Go values into the shapes encoding/json decodes into
// (map[string]any, []any, string, float64, bool, nil)
func generic(v any) any {
	switch t := v.(type) {
	case nil, string, bool, float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case uint8:
		return float64(t)
	case uint16:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return t.String()
		}
		return f
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = generic(vv)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = generic(vv)
		}
		return s
	case []string:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = vv
		}
		return s
	}
	// anything else goes through a JSON round trip; unencodable values vanish
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	return out
}

// clean strips empty values post-order and reports whether v itself survives
// Arrays keep their elements as-is; only objects are pruned recursively
func clean(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case string:
		return t, t != ""
	case float64:
		return t, !math.IsNaN(t) && !math.IsInf(t, 0)
	case map[string]any:
		for k, vv := range t {
			cv, keep := clean(vv)
			if !keep {
				delete(t, k)
				continue
			}
			t[k] = cv
		}
		return t, len(t) > 0
	case []any:
		return t, len(t) > 0
	}
	return v, true
}
