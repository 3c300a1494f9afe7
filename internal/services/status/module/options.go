package module

import (
	"time"

	"modwatch/internal/platform/config"
	"modwatch/internal/platform/validate"
)

// Options holds configuration options for the status endpoints
type Options struct {
	// Addr is the listen address; "off" disables the status server
	Addr       string        `cfg:"MODWATCH_STATUS_ADDR"`
	Pprof      bool          `cfg:"MODWATCH_STATUS_PPROF"`
	StaleAfter time.Duration `cfg:"MODWATCH_STATUS_STALE_AFTER" validate:"gte=0"`
}

// FromConfig reads the status options from config with MODWATCH_STATUS_ prefix
func FromConfig(cfg config.Conf) Options {
	st := cfg.Prefix("MODWATCH_STATUS_")
	o := Options{
		Addr:       st.MayAddr("ADDR", ":9464"),
		Pprof:      st.MayBool("PPROF", false),
		StaleAfter: st.MayDuration("STALE_AFTER", 10*time.Minute),
	}
	validate.MustStruct("status options", o)
	return o
}
