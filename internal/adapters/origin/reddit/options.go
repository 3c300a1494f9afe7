package reddit

import (
	"time"

	"modwatch/internal/platform/config"
	"modwatch/internal/platform/validate"
)

// Options configures the Client
type Options struct {
	BaseURL   string        `cfg:"MODWATCH_REDDIT_BASE_URL" validate:"required,url"`
	UserAgent string        `cfg:"MODWATCH_REDDIT_USER_AGENT" validate:"required"`
	Timeout   time.Duration `cfg:"MODWATCH_REDDIT_TIMEOUT" validate:"gt=0"`
	Subreddit string        `cfg:"MODWATCH_SUBREDDIT" validate:"required,excludesall=/?#"`

	// Bearer token for the oauth host; empty means anonymous www access
	Token string `cfg:"MODWATCH_REDDIT_TOKEN"`

	RPS   float64 `cfg:"MODWATCH_REDDIT_RPS" validate:"gt=0"`
	Burst int     `cfg:"MODWATCH_REDDIT_BURST" validate:"min=1"`

	// PollInterval is the minimum gap between listing polls of one stream
	PollInterval time.Duration `cfg:"MODWATCH_REDDIT_POLL_INTERVAL" validate:"gte=0"`
	// EmitBacklog makes a new subscription emit the first page instead of only seeding
	EmitBacklog bool `cfg:"MODWATCH_REDDIT_EMIT_BACKLOG"`
	// SeenCap bounds the per stream set of recently seen fullnames
	SeenCap int `cfg:"MODWATCH_REDDIT_SEEN_CAP" validate:"gte=0"`
}

// FromConfig reads client options under MODWATCH_REDDIT_ and the shared MODWATCH_SUBREDDIT
func FromConfig(cfg config.Conf) Options {
	mw := cfg.Prefix("MODWATCH_")
	rc := mw.Prefix("REDDIT_")
	o := Options{
		BaseURL:      rc.MayString("BASE_URL", baseURLDefault),
		UserAgent:    rc.MayString("USER_AGENT", defaultUA),
		Timeout:      rc.MayDuration("TIMEOUT", defaultTimeout),
		Subreddit:    mw.MayString("SUBREDDIT", "all"),
		Token:        rc.MayString("TOKEN", ""),
		RPS:          rc.MayFloat64("RPS", defaultRPS),
		Burst:        rc.MayInt("BURST", defaultBurst),
		PollInterval: rc.MayDuration("POLL_INTERVAL", defaultPollInterval),
		EmitBacklog:  rc.MayBool("EMIT_BACKLOG", false),
		SeenCap:      rc.MayInt("SEEN_CAP", defaultSeenCap),
	}
	validate.MustStruct("reddit options", o)
	return o
}

func (o Options) withDefaults() Options {
	if o.BaseURL == "" {
		o.BaseURL = baseURLDefault
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.Subreddit == "" {
		o.Subreddit = "all"
	}
	if o.RPS <= 0 {
		o.RPS = defaultRPS
	}
	if o.Burst <= 0 {
		o.Burst = defaultBurst
	}
	if o.PollInterval < 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.SeenCap <= 0 {
		o.SeenCap = defaultSeenCap
	}
	return o
}
