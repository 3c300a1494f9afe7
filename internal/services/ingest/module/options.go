package module

import (
	"time"

	"modwatch/internal/platform/config"
	"modwatch/internal/platform/validate"
)

// Options holds configuration options for the ingest service
type Options struct {
	DefaultSleep   time.Duration `cfg:"MODWATCH_SLEEP" validate:"gte=0"`
	HeartbeatEvery int           `cfg:"MODWATCH_HEARTBEAT_EVERY" validate:"min=1"`
	RunFor         time.Duration `cfg:"MODWATCH_RUN_FOR" validate:"gte=0"`
}

// FromConfig reads the ingest options from config with MODWATCH_ prefix
func FromConfig(cfg config.Conf) Options {
	mw := cfg.Prefix("MODWATCH_")
	o := Options{
		DefaultSleep:   mw.MayDuration("SLEEP", 60*time.Second),
		HeartbeatEvery: mw.MayInt("HEARTBEAT_EVERY", 1000),
		RunFor:         mw.MayDuration("RUN_FOR", 0),
	}
	validate.MustStruct("ingest options", o)
	return o
}
