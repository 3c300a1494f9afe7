package module

import (
	"time"

	"modwatch/internal/platform/config"
	"modwatch/internal/platform/validate"
)

// Options holds configuration options for the recheck service
type Options struct {
	LogDir        string        `cfg:"MODWATCH_LOG_DIR" validate:"required"`
	LogName       string        `cfg:"MODWATCH_LOG_NAME" validate:"required,excludesall=/\\"`
	RemovedSuffix string        `cfg:"MODWATCH_REMOVED_SUFFIX" validate:"required,excludesall=/\\"`
	BatchSize     int           `cfg:"MODWATCH_BATCH_SIZE" validate:"min=1,max=100"`
	Dwell         time.Duration `cfg:"MODWATCH_DWELL" validate:"gte=0"`
	DefaultSleep  time.Duration `cfg:"MODWATCH_SLEEP" validate:"gte=0"`
	Workers       int           `cfg:"MODWATCH_WORKERS" validate:"min=1,max=64"`

	WaitSlice     time.Duration `cfg:"MODWATCH_RECHECK_WAIT_SLICE" validate:"gt=0"`
	MaxAttempts   int           `cfg:"MODWATCH_RECHECK_MAX_ATTEMPTS" validate:"min=1"`
	SweepEvery    time.Duration `cfg:"MODWATCH_RECHECK_SWEEP_EVERY" validate:"gte=0"`
	LookupTimeout time.Duration `cfg:"MODWATCH_RECHECK_LOOKUP_TIMEOUT" validate:"gte=0"`
	ClaimLease    time.Duration `cfg:"MODWATCH_RECHECK_CLAIM_LEASE" validate:"gte=0"`
	VerdictTable  string        `cfg:"MODWATCH_RECHECK_VERDICT_TABLE"`
}

// FromConfig reads the recheck options from config with MODWATCH_ prefix
func FromConfig(cfg config.Conf) Options {
	mw := cfg.Prefix("MODWATCH_")
	rc := mw.Prefix("RECHECK_")
	o := Options{
		LogDir:        mw.MayPath("LOG_DIR", "data"),
		LogName:       mw.MayString("LOG_NAME", "comments.log"),
		RemovedSuffix: mw.MayString("REMOVED_SUFFIX", ".removed"),
		BatchSize:     mw.MayInt("BATCH_SIZE", 100),
		Dwell:         mw.MayDuration("DWELL", 24*time.Hour),
		DefaultSleep:  mw.MayDuration("SLEEP", 60*time.Second),
		Workers:       mw.MayInt("WORKERS", 4),

		WaitSlice:     rc.MayDuration("WAIT_SLICE", time.Minute),
		MaxAttempts:   rc.MayInt("MAX_ATTEMPTS", 5),
		SweepEvery:    rc.MayDuration("SWEEP_EVERY", time.Hour),
		LookupTimeout: rc.MayDuration("LOOKUP_TIMEOUT", 0),
		ClaimLease:    rc.MayDuration("CLAIM_LEASE", 0),
		VerdictTable:  rc.MayString("VERDICT_TABLE", ""),
	}
	validate.MustStruct("recheck options", o)
	return o
}
