// Package markers recognizes the placeholder strings the origin leaves behind
// when content is deleted by its author or removed by a moderator
//
// Pipeline order
// 1 UTF-8 repair drop invalid bytes
// 2 Unicode NFKC normalization
// 3 Case folding
// 4 Remove format chars (ZWJ, ZWNJ, BOM)
// 5 Width fold fullwidth to ASCII
// 6 Collapse whitespace and trim
package markers

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Known placeholder values, already folded
const (
	Deleted = "[deleted]"
	Removed = "[removed]"
)

var known = map[string]struct{}{
	Deleted: {},
	Removed: {},
}

// pool of fresh transformer chains
var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFKC,
			cases.Fold(),
			runes.Remove(runes.In(unicode.Cf)),
			width.Fold,
		)
	},
}

// Fold returns the comparison form of s following the pipeline above
func Fold(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToValidUTF8(s, "")

	tr := chainPool.Get().(transform.Transformer)
	ns, _, err := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)
	if err != nil {
		ns = strings.ToLower(s)
	}
	return strings.Join(strings.Fields(ns), " ")
}

// Is reports whether s is one of the deleted/removed placeholders
func Is(s string) bool {
	if s == "" || len(s) > 64 {
		return false
	}
	_, ok := known[Fold(s)]
	return ok
}
