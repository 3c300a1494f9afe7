package store

import (
	"time"

	"modwatch/internal/platform/config"
)

// Config aggregates per backend configuration
type Config struct {
	AppName string
	Role    string

	CH CHConfig
}

// CHConfig configures clickhouse connectivity
type CHConfig struct {
	Enabled bool
	URL     string

	// Guard/boot knobs
	ConnectRetries int           // default 5
	PingTimeout    time.Duration // default 3s
}

// FromConfig reads store settings under MODWATCH_CH_
// ClickHouse is enabled exactly when a URL is set
func FromConfig(cfg config.Conf, role string) Config {
	ch := cfg.Prefix("MODWATCH_CH_")
	url := ch.MayString("URL", "")
	return Config{
		AppName: "modwatch",
		Role:    role,
		CH: CHConfig{
			Enabled:        url != "",
			URL:            url,
			ConnectRetries: ch.MayInt("CONNECT_RETRIES", 5),
			PingTimeout:    ch.MayDuration("PING_TIMEOUT", 3*time.Second),
		},
	}
}
