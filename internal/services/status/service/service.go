// Package service builds the status snapshot served on /status and /healthz
package service

import (
	"time"

	"modwatch/internal/adapters/logsink"
	"modwatch/internal/core/version"
	ingest "modwatch/internal/services/ingest/domain"
	recheck "modwatch/internal/services/recheck/domain"
)

// Sources are the live stat getters; any of them may be nil
type Sources struct {
	Ingest  func() ingest.Stats
	Sink    func() logsink.Stats
	Recheck func() recheck.Stats
}

// Config holds the health knobs
type Config struct {
	// Name is reported as the service name
	Name string
	// StaleAfter marks ingest unhealthy when no item arrived for this long; 0 disables
	StaleAfter time.Duration
}

// Snapshot is the /status payload
type Snapshot struct {
	Service   string            `json:"service"`
	Build     version.BuildInfo `json:"build"`
	Healthy   bool              `json:"healthy"`
	Reason    string            `json:"reason,omitempty"`
	StartedAt time.Time         `json:"started_at"`
	Now       time.Time         `json:"now"`
	Ingest    *ingest.Stats     `json:"ingest,omitempty"`
	Sink      *logsink.Stats    `json:"sink,omitempty"`
	Recheck   *recheck.Stats    `json:"recheck,omitempty"`
}

// Service assembles snapshots
type Service struct {
	src     Sources
	cfg     Config
	now     func() time.Time
	started time.Time
}

// New constructs the status service
func New(src Sources, cfg Config) *Service {
	if cfg.Name == "" {
		cfg.Name = "modwatch"
	}
	return &Service{src: src, cfg: cfg, now: time.Now, started: time.Now().UTC()}
}

// Snapshot collects every source and evaluates health
func (s *Service) Snapshot() Snapshot {
	now := s.now().UTC()
	snap := Snapshot{Service: s.cfg.Name, Build: version.Info(), StartedAt: s.started, Now: now, Healthy: true}
	if s.src.Ingest != nil {
		st := s.src.Ingest()
		snap.Ingest = &st
	}
	if s.src.Sink != nil {
		st := s.src.Sink()
		snap.Sink = &st
	}
	if s.src.Recheck != nil {
		st := s.src.Recheck()
		snap.Recheck = &st
	}
	snap.Healthy, snap.Reason = s.health(snap)
	return snap
}

func (s *Service) health(snap Snapshot) (bool, string) {
	if snap.Ingest == nil || s.cfg.StaleAfter <= 0 {
		return true, ""
	}
	last := snap.Ingest.LastItemAt
	if last.IsZero() {
		last = s.started
	}
	if snap.Now.Sub(last) > s.cfg.StaleAfter {
		return false, "no items ingested since " + last.Format(time.RFC3339)
	}
	return true, ""
}
