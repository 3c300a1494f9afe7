package reddit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	perr "modwatch/internal/platform/errors"
)

// Stream yields new comments oldest first
type Stream interface {
	Next(ctx context.Context) (map[string]any, error)
	Close() error
}

// ErrStreamClosed is returned by Next after Close
var ErrStreamClosed = perr.New(perr.ErrorCodeCanceled, "reddit stream closed")

// Subscribe starts a polling stream over the subreddit comment listing
// The first page only seeds the seen set unless EmitBacklog is set, so a new
// subscription starts at "now" and restarts are not gap free
func (c *Client) Subscribe(ctx context.Context) (Stream, error) {
	s := &commentStream{c: c, seen: newSeenSet(c.opts.SeenCap)}
	if err := s.poll(ctx, c.opts.EmitBacklog); err != nil {
		return nil, perr.WithOp(err, "subscribe")
	}
	c.log.Info().
		Str("subreddit", c.opts.Subreddit).
		Int("seeded", s.seen.Len()).
		Int("backlog", len(s.pending)).
		Msg("reddit stream subscribed")
	return s, nil
}

type commentStream struct {
	c *Client

	mu       sync.Mutex
	pending  []map[string]any
	seen     *seenSet
	lastPoll time.Time
	closed   atomic.Bool
}

// Next blocks until a new item is available, ctx ends or a poll fails
func (s *commentStream) Next(ctx context.Context) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if s.closed.Load() {
			s.pending = nil
			return nil, ErrStreamClosed
		}
		if len(s.pending) > 0 {
			item := s.pending[0]
			s.pending[0] = nil
			s.pending = s.pending[1:]
			return item, nil
		}
		if wait := s.lastPoll.Add(s.c.opts.PollInterval).Sub(s.c.now()); wait > 0 {
			if err := s.c.sleep(ctx, wait); err != nil {
				return nil, perr.Wrap(err, perr.ErrorCodeCanceled, "reddit stream wait")
			}
		}
		if err := s.poll(ctx, true); err != nil {
			return nil, err
		}
	}
}

// Close makes further Next calls fail; it never blocks on an in flight poll
func (s *commentStream) Close() error {
	s.closed.Store(true)
	return nil
}

// poll fetches one page and queues unseen items oldest first
func (s *commentStream) poll(ctx context.Context, emit bool) error {
	s.lastPoll = s.c.now()
	page, err := s.c.newestComments(ctx)
	if err != nil {
		return err
	}
	for i := len(page) - 1; i >= 0; i-- {
		n := page[i].name()
		if n == "" || page[i].Data == nil || !s.seen.Add(n) {
			continue
		}
		if emit {
			s.pending = append(s.pending, page[i].Data)
		}
	}
	return nil
}

// seenSet remembers the last cap fullnames in insertion order
type seenSet struct {
	cap   int
	order []string
	set   map[string]struct{}
}

func newSeenSet(capacity int) *seenSet {
	if capacity <= 0 {
		capacity = defaultSeenCap
	}
	return &seenSet{cap: capacity, set: make(map[string]struct{}, capacity)}
}

// Add records name and reports whether it was new
func (s *seenSet) Add(name string) bool {
	if _, ok := s.set[name]; ok {
		return false
	}
	s.set[name] = struct{}{}
	s.order = append(s.order, name)
	for len(s.order) > s.cap {
		delete(s.set, s.order[0])
		s.order = s.order[1:]
	}
	return true
}

// Len returns how many names are remembered
func (s *seenSet) Len() int { return len(s.set) }
