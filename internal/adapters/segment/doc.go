// Package segment handles sealed log segments on disk: naming, scanning,
// line reading, claim locks and zstd archiving.
//
// A sealed segment is <base>.<YYYY-MM-DD_HH-MM-SS>[.N]. Its companions are
//
//	<seg>.lock              claim held by the run rechecking it
//	<seg><suffix>.part      removed log being written
//	<seg><suffix>           removed log, complete
//	<seg>.zst               archived segment
//	<seg><suffix>.zst       archived removed log
package segment
