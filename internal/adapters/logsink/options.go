package logsink

import (
	"path/filepath"
	"strings"
	"time"

	"modwatch/internal/platform/config"
	"modwatch/internal/platform/validate"
)

// Options configures the sink
type Options struct {
	Dir      string `cfg:"MODWATCH_LOG_DIR" validate:"required"`
	Name     string `cfg:"MODWATCH_LOG_NAME" validate:"required,excludesall=/\\"`
	Unit     string `cfg:"MODWATCH_ROTATE_UNIT" validate:"rotate_unit"`
	Interval int    `cfg:"MODWATCH_ROTATE_INTERVAL" validate:"min=1"`

	// TickEvery is how often an idle sink checks its boundary; 0 disables the ticker
	TickEvery time.Duration `cfg:"MODWATCH_ROTATE_TICK" validate:"gte=0"`
}

// FromConfig reads sink options under MODWATCH_
func FromConfig(cfg config.Conf) Options {
	mw := cfg.Prefix("MODWATCH_")
	o := Options{
		Dir:       mw.MayPath("LOG_DIR", "data"),
		Name:      mw.MayString("LOG_NAME", "comments.log"),
		Unit:      strings.ToUpper(mw.MayString("ROTATE_UNIT", "M")),
		Interval:  mw.MayInt("ROTATE_INTERVAL", 1),
		TickEvery: mw.MayDuration("ROTATE_TICK", time.Second),
	}
	validate.MustStruct("logsink options", o)
	return o
}

// ActivePath is <dir>/<name>
func (o Options) ActivePath() string { return filepath.Join(o.Dir, o.Name) }
