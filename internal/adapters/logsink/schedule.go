package logsink

import (
	"strconv"
	"strings"
	"time"

	perr "modwatch/internal/platform/errors"

	"github.com/robfig/cron/v3"
)

// Boundary computes when an active file opened at some instant must be sealed
type Boundary struct {
	sched cron.Schedule
	steps int
	spec  string
}

// ParseBoundary maps a rotation unit and interval onto a cron schedule
//
//	S, M, H, D  every interval seconds/minutes/hours/days after opening
//	MIDNIGHT    the interval-th UTC midnight after opening
//	W0..W6      the interval-th UTC midnight starting that weekday, W0 is Monday
func ParseBoundary(unit string, interval int) (Boundary, error) {
	if interval < 1 {
		return Boundary{}, perr.WithField(perr.InvalidArgf("rotate interval must be at least 1, got %d", interval), "interval")
	}
	u := strings.ToUpper(strings.TrimSpace(unit))
	var step time.Duration
	switch u {
	case "S":
		step = time.Second
	case "M":
		step = time.Minute
	case "H":
		step = time.Hour
	case "D":
		step = 24 * time.Hour
	}
	if step > 0 {
		d := time.Duration(interval) * step
		return Boundary{sched: cron.Every(d), steps: 1, spec: "@every " + d.String()}, nil
	}

	var spec string
	switch {
	case u == "MIDNIGHT":
		spec = "CRON_TZ=UTC 0 0 * * *"
	case len(u) == 2 && u[0] == 'W' && u[1] >= '0' && u[1] <= '6':
		// cron counts Sunday as 0
		dow := (int(u[1]-'0') + 1) % 7
		spec = "CRON_TZ=UTC 0 0 * * " + strconv.Itoa(dow)
	default:
		return Boundary{}, perr.WithField(perr.InvalidArgf("unknown rotate unit %q", unit), "unit")
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return Boundary{}, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "rotate schedule %q", spec)
	}
	return Boundary{sched: sched, steps: interval, spec: spec}, nil
}

// Next returns the seal time for a file opened at opened
func (b Boundary) Next(opened time.Time) time.Time {
	t := opened
	for range b.steps {
		t = b.sched.Next(t)
	}
	return t
}

// String returns the underlying cron spec
func (b Boundary) String() string { return b.spec }
