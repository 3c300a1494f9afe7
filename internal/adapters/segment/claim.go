package segment

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	perr "modwatch/internal/platform/errors"

	"github.com/google/uuid"
)

// ErrClaimHeld signals another run owns the segment already
var ErrClaimHeld = errors.New("segment: claim already held")

// ClaimInfo is the lock file body
type ClaimInfo struct {
	RunID     string    `json:"run_id"`
	PID       int       `json:"pid"`
	Host      string    `json:"host"`
	ClaimedAt time.Time `json:"claimed_at"`
}

// Claim is a held segment lock
type Claim struct {
	path string
	info ClaimInfo
}

// NewRunID returns a fresh process run id
func NewRunID() string { return uuid.NewString() }

// Acquire creates the lock file for p with O_EXCL
// It returns ErrClaimHeld when the lock already exists
func Acquire(p Paths, runID string, now time.Time) (*Claim, error) {
	host, _ := os.Hostname()
	info := ClaimInfo{RunID: runID, PID: os.Getpid(), Host: host, ClaimedAt: now.UTC()}
	body, err := json.Marshal(info)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeEncoding, "encode claim")
	}
	f, err := os.OpenFile(p.Lock, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrClaimHeld
		}
		return nil, perr.Wrapf(err, perr.ErrorCodeIO, "claim %s", p.Lock)
	}
	_, werr := f.Write(body)
	cerr := f.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(p.Lock)
		return nil, perr.Wrapf(errors.Join(werr, cerr), perr.ErrorCodeIO, "write claim %s", p.Lock)
	}
	return &Claim{path: p.Lock, info: info}, nil
}

// Info returns what was written to the lock
func (c *Claim) Info() ClaimInfo { return c.info }

// Release removes the lock; releasing twice is a no-op
func (c *Claim) Release() error {
	if c == nil || c.path == "" {
		return nil
	}
	err := os.Remove(c.path)
	c.path = ""
	if err != nil && !os.IsNotExist(err) {
		return perr.Wrap(err, perr.ErrorCodeIO, "release claim")
	}
	return nil
}

// ReadClaim parses a lock file
func ReadClaim(lockPath string) (ClaimInfo, error) {
	b, err := os.ReadFile(lockPath)
	if err != nil {
		return ClaimInfo{}, perr.Classified(err, "read claim")
	}
	var ci ClaimInfo
	if err := json.Unmarshal(b, &ci); err != nil {
		return ClaimInfo{}, perr.Wrapf(err, perr.ErrorCodeParse, "parse claim %s", lockPath)
	}
	return ci, nil
}

// StaleRule decides when a lock written by another run may be broken
type StaleRule struct {
	// Now is the reference time for Lease and the unreadable grace
	Now time.Time
	// Lease breaks any foreign claim older than this; 0 never expires claims
	Lease time.Duration
}

// unreadableGrace covers the window between O_EXCL create and the body write
const unreadableGrace = time.Minute

// Stale reports whether a lock not owned by runID is left over from a dead run
// A claim from this host is stale when its pid is gone, or is our own pid under a
// different run id (a restarted container reuses pids). Claims from other hosts
// are only broken once the lease runs out
func (r StaleRule) Stale(ci ClaimInfo, runID string) bool {
	if ci.RunID == runID {
		return false
	}
	if r.Lease > 0 && r.Now.Sub(ci.ClaimedAt) > r.Lease {
		return true
	}
	host, _ := os.Hostname()
	if ci.Host == "" || ci.Host != host || ci.PID <= 0 {
		return false
	}
	return ci.PID == os.Getpid() || !processAlive(ci.PID)
}

// BreakStale removes locks in dir that the rule judges stale
// A lock that cannot be parsed is broken once it is older than a minute
func BreakStale(dir, activeName, runID string, rule StaleRule) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeIO, "scan %s", dir)
	}
	m := NewMatcher(activeName)
	var broken []string
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, lockExt) || !m.IsSealed(strings.TrimSuffix(name, lockExt)) {
			continue
		}
		lp := filepath.Join(dir, name)
		ci, err := ReadClaim(lp)
		switch {
		case perr.IsCode(err, perr.ErrorCodeNotFound):
			continue
		case err != nil:
			fi, serr := os.Stat(lp)
			if serr != nil || rule.Now.Sub(fi.ModTime()) <= unreadableGrace {
				continue
			}
		case !rule.Stale(ci, runID):
			continue
		}
		if err := os.Remove(lp); err != nil && !os.IsNotExist(err) {
			return broken, perr.Wrapf(err, perr.ErrorCodeIO, "break %s", lp)
		}
		broken = append(broken, lp)
	}
	return broken, nil
}
