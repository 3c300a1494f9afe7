package entity

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"

	perr "modwatch/internal/platform/errors"
)

// Serialize renders e as one JSON line without the trailing newline
// Non-finite numbers are an EncodingError naming the offending field
func Serialize(e Entity) ([]byte, error) {
	m := e.Raw()
	if path, bad := firstNonFinite(m, ""); bad {
		return nil, perr.WithField(
			perr.Encodingf("entity %s: non-finite number at %s", e.Name, path), path)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeEncoding, "entity %s: encode", e.Name)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Deserialize parses one log line back into an Entity
// Blank lines, non-objects and objects without a name are ParseErrors
func Deserialize(line []byte) (Entity, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Entity{}, perr.Parsef("empty line")
	}
	var m map[string]any
	if err := json.Unmarshal(line, &m); err != nil {
		return Entity{}, perr.Wrap(err, perr.ErrorCodeParse, "malformed entity line")
	}
	if m == nil {
		return Entity{}, perr.Parsef("entity line is null")
	}
	e := fromMap(m)
	if e.Name == "" {
		return Entity{}, perr.WithField(perr.Parsef("entity line has no name"), FieldName)
	}
	return e, nil
}

// firstNonFinite walks v depth first in key order and returns the path of the first NaN/Inf
func firstNonFinite(v any, path string) (string, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return path, true
		}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			p := k
			if path != "" {
				p = path + "." + k
			}
			if bad, ok := firstNonFinite(t[k], p); ok {
				return bad, true
			}
		}
	case []any:
		for i, vv := range t {
			if bad, ok := firstNonFinite(vv, path+"["+strconv.Itoa(i)+"]"); ok {
				return bad, true
			}
		}
	}
	return "", false
}
