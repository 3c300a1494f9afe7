// Package reddit provides a rate limited read-only client for the public
// Reddit comment listing and info endpoints
package reddit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"modwatch/internal/core/version"
	perr "modwatch/internal/platform/errors"
	"modwatch/internal/platform/logger"
	tim "modwatch/internal/platform/time"

	"golang.org/x/time/rate"
)

const (
	baseURLDefault      = "https://www.reddit.com"
	defaultTimeout      = 30 * time.Second
	defaultRPS          = 1.0
	defaultBurst        = 2
	defaultPollInterval = 2 * time.Second
	defaultSeenCap      = 5000

	// MaxLookup is the most ids the info endpoint accepts per call
	MaxLookup = 100

	maxBody = 16 << 20
)

var defaultUA = version.UserAgent()

// Client talks to Reddit; it never retries on its own, callers decide
type Client struct {
	http    *http.Client
	opts    Options
	limiter *rate.Limiter
	log     logger.Logger
	now     func() time.Time
	sleep   tim.SleepFunc
}

// NewClient creates a new Client with sane defaults
func NewClient(o Options) *Client {
	o = o.withDefaults()
	return &Client{
		http:    &http.Client{},
		opts:    o,
		limiter: rate.NewLimiter(rate.Limit(o.RPS), o.Burst),
		log:     *logger.Named("reddit"),
		now:     time.Now,
		sleep:   tim.Sleep,
	}
}

// Options returns the effective options
func (c *Client) Options() Options { return c.opts }

// get issues one rate limited GET under the per call timeout and returns the
// body of a 200 response; every failure comes back classified
func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if cerr := ctxErr(ctx, "reddit rate wait "+path); cerr != nil {
			return nil, cerr
		}
		// the limiter refuses waits that would outlive the deadline
		return nil, perr.Wrapf(err, perr.ErrorCodeTransientNetwork, "reddit rate wait %s", path)
	}

	cctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	u := c.opts.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(cctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "reddit new request %s", path)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "bearer "+c.opts.Token)
	}

	start := c.now()
	resp, err := c.http.Do(req)
	lat := c.now().Sub(start)
	if err != nil {
		return nil, c.transportErr(ctx, err, path)
	}

	rl := parseRateHeaders(resp.Header)
	c.log.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", lat).
		Float64("rate_remaining", rl.remaining).
		Float64("rate_used", rl.used).
		Int("rate_reset_s", rl.resetSec).
		Msg("reddit http response")

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		_ = resp.Body.Close()
		if err != nil {
			return nil, c.transportErr(ctx, err, path)
		}
		if looksLikeHTML(resp.Header, body) {
			// maintenance and overload pages come back as 200 text/html
			return nil, perr.Wrapf(&StatusError{Status: resp.StatusCode, Body: tail(body)},
				perr.ErrorCodeTransientService, "reddit %s returned html", path)
		}
		return body, nil
	case isTransientStatus(resp.StatusCode):
		_ = drainAndClose(resp.Body)
		return nil, perr.Wrapf(&StatusError{Status: resp.StatusCode},
			perr.ErrorCodeTransientService, "reddit %s status %d", path, resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		_ = resp.Body.Close()
		return nil, perr.Wrapf(&StatusError{Status: resp.StatusCode, Body: string(body)},
			perr.ErrorCodeUnknown, "reddit %s unexpected status %d", path, resp.StatusCode)
	}
}

// transportErr classifies a failed round trip
// A finished parent wins; url.Error is peeled so its own net.Error methods do not mask the cause
func (c *Client) transportErr(ctx context.Context, err error, path string) error {
	if cerr := ctxErr(ctx, "reddit "+path); cerr != nil {
		return cerr
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		err = ue.Err
	}
	return perr.Classified(err, "reddit "+path)
}

// ctxErr maps a done ctx: an explicit cancel is Canceled, an expired
// deadline (the caller's per-lookup budget) is TransientNetwork
// It returns nil while ctx is live
func ctxErr(ctx context.Context, msg string) error {
	err := ctx.Err()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return perr.Wrap(err, perr.ErrorCodeCanceled, msg)
	}
	return perr.Wrap(err, perr.ErrorCodeTransientNetwork, msg)
}

// StatusError carries a non success response
type StatusError struct {
	Status int
	Body   string
}

// Error interface
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// HTTPStatus interface
func (e *StatusError) HTTPStatus() int { return e.Status }

// StatusOf returns the HTTP status carried by err or 0
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

func tail(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 256 {
		s = s[:256]
	}
	return s
}
