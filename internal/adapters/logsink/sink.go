// Package logsink is the append-only active log with time based rotation.
// A sealed segment is handed to Notify right after the rename.
package logsink

import (
	"bytes"
	"os"
	"sync"
	"time"

	"modwatch/internal/adapters/segment"
	perr "modwatch/internal/platform/errors"
	"modwatch/internal/platform/logger"
	"modwatch/internal/platform/metrics"
)

// ErrClosed is returned by Write after Close
var ErrClosed = perr.New(perr.ErrorCodeIO, "logsink closed")

// NotifyFunc receives the path of a freshly sealed segment; it must not block
type NotifyFunc func(path string)

// Option tweaks a Sink at construction
type Option func(*Sink)

// WithNotify sets the completion trigger
func WithNotify(fn NotifyFunc) Option { return func(s *Sink) { s.notify = fn } }

// WithMetrics counts sealed segments
func WithMetrics(m *metrics.Metrics) Option { return func(s *Sink) { s.metrics = m } }

// WithClock swaps the time source (tests)
func WithClock(now func() time.Time) Option { return func(s *Sink) { s.now = now } }

// Sink owns the active file; one writer at a time
type Sink struct {
	opts     Options
	path     string
	boundary Boundary
	notify   NotifyFunc
	metrics  *metrics.Metrics
	log      logger.Logger
	now      func() time.Time

	mu         sync.Mutex
	f          *os.File
	openedAt   time.Time
	due        time.Time
	size       int64
	closed     bool
	sealed     int
	lastSealed string

	stop chan struct{}
	done chan struct{}
}

// Open prepares the directory, deals with a leftover active file and starts
// the idle ticker
func Open(o Options, opts ...Option) (*Sink, error) {
	b, err := ParseBoundary(o.Unit, o.Interval)
	if err != nil {
		return nil, err
	}
	s := &Sink{
		opts:     o,
		path:     o.ActivePath(),
		boundary: b,
		notify:   func(string) {},
		log:      *logger.Named("logsink"),
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, fn := range opts {
		fn(s)
	}
	s.metrics = metrics.OrNew(s.metrics)

	if err := os.MkdirAll(o.Dir, 0o755); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeIO, "mkdir %s", o.Dir)
	}

	var sealed []string
	s.mu.Lock()
	err = s.recoverLocked(&sealed)
	s.mu.Unlock()
	s.fire(sealed)
	if err != nil {
		return nil, err
	}

	if o.TickEvery > 0 {
		go s.loop(o.TickEvery)
	} else {
		close(s.done)
	}

	s.log.Info().
		Str("path", s.path).
		Str("schedule", b.String()).
		Time("due", s.due).
		Msg("log sink open")
	return s, nil
}

// recoverLocked seals or adopts a file left behind by a previous process
// The leftover's mtime stands in for its opening time
func (s *Sink) recoverLocked(sealed *[]string) error {
	st, err := os.Stat(s.path)
	switch {
	case os.IsNotExist(err):
		return s.openLocked(s.now())
	case err != nil:
		return perr.Wrapf(err, perr.ErrorCodeIO, "stat %s", s.path)
	case st.Size() == 0:
		return s.openLocked(s.now())
	}

	opened := st.ModTime().UTC()
	if !s.now().Before(s.boundary.Next(opened)) {
		name, err := segment.SealedName(s.path, opened)
		if err != nil {
			return err
		}
		if err := os.Rename(s.path, name); err != nil {
			return perr.Wrapf(err, perr.ErrorCodeIO, "seal leftover %s", s.path)
		}
		s.markSealedLocked(name, sealed)
		s.log.Info().Str("sealed", name).Msg("sealed leftover active log")
		return s.openLocked(s.now())
	}
	if err := s.openLocked(opened); err != nil {
		return err
	}
	s.size = st.Size()
	s.log.Info().Time("opened", opened).Int64("bytes", s.size).Msg("appending to leftover active log")
	return nil
}

func (s *Sink) openLocked(opened time.Time) error {
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "open %s", s.path)
	}
	s.f = f
	s.size = 0
	s.openedAt = opened.UTC()
	s.due = s.boundary.Next(s.openedAt)
	return nil
}

// Write appends one line, rotating first if the boundary has passed
func (s *Sink) Write(line []byte) error {
	var sealed []string
	s.mu.Lock()
	err := s.writeLocked(line, &sealed)
	s.mu.Unlock()
	s.fire(sealed)
	return err
}

func (s *Sink) writeLocked(line []byte, sealed *[]string) error {
	if s.closed {
		return ErrClosed
	}
	if !s.now().Before(s.due) {
		if err := s.rotateLocked(sealed); err != nil {
			return err
		}
	}
	if s.f == nil {
		if err := s.openLocked(s.now()); err != nil {
			return err
		}
	}
	buf := line
	if !bytes.HasSuffix(line, []byte("\n")) {
		buf = make([]byte, 0, len(line)+1)
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	n, err := s.f.Write(buf)
	s.size += int64(n)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "append %s", s.path)
	}
	return nil
}

// Rotate seals the active file now if it holds data
func (s *Sink) Rotate() error {
	var sealed []string
	s.mu.Lock()
	var err error
	if s.closed {
		err = ErrClosed
	} else {
		err = s.rotateLocked(&sealed)
	}
	s.mu.Unlock()
	s.fire(sealed)
	return err
}

// rotateLocked seals the current file; an empty file only restarts its window
func (s *Sink) rotateLocked(sealed *[]string) error {
	if s.f != nil && s.size == 0 && !s.closed {
		s.openedAt = s.now().UTC()
		s.due = s.boundary.Next(s.openedAt)
		return nil
	}
	if s.f != nil {
		if err := s.f.Close(); err != nil {
			s.log.Error().Err(err).Str("path", s.path).Msg("close active log before seal")
		}
		s.f = nil
	}
	if s.size > 0 {
		name, err := segment.SealedName(s.path, s.openedAt)
		if err != nil {
			return err
		}
		if err := os.Rename(s.path, name); err != nil {
			return perr.Wrapf(err, perr.ErrorCodeIO, "seal %s", s.path)
		}
		s.markSealedLocked(name, sealed)
		s.log.Info().
			Str("sealed", name).
			Int64("bytes", s.size).
			Time("opened", s.openedAt).
			Msg("segment sealed")
	}
	if s.closed {
		s.size = 0
		return nil
	}
	return s.openLocked(s.now())
}

func (s *Sink) markSealedLocked(name string, sealed *[]string) {
	s.sealed++
	s.lastSealed = name
	s.size = 0
	s.metrics.SegmentsSealed.Inc()
	*sealed = append(*sealed, name)
}

// fire runs the completion trigger outside the lock
func (s *Sink) fire(paths []string) {
	for _, p := range paths {
		s.notify(p)
	}
}

// tick is the idle check the background loop runs
func (s *Sink) tick() {
	var sealed []string
	s.mu.Lock()
	if !s.closed && !s.now().Before(s.due) {
		if err := s.rotateLocked(&sealed); err != nil {
			s.log.Error().Err(err).Str("kind", perr.CodeName(err)).Msg("idle rotation failed")
		}
	}
	s.mu.Unlock()
	s.fire(sealed)
}

func (s *Sink) loop(every time.Duration) {
	defer close(s.done)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			s.tick()
		}
	}
}

// Close stops the ticker, seals pending data and notifies
func (s *Sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stop)
	<-s.done

	var sealed []string
	s.mu.Lock()
	err := s.rotateLocked(&sealed)
	s.mu.Unlock()
	s.fire(sealed)
	return err
}

// Path returns the active file path
func (s *Sink) Path() string { return s.path }

// Stats is a snapshot for status reporting
type Stats struct {
	Active     string    `json:"active"`
	OpenedAt   time.Time `json:"opened_at"`
	Due        time.Time `json:"due"`
	Bytes      int64     `json:"bytes"`
	Sealed     int       `json:"sealed"`
	LastSealed string    `json:"last_sealed,omitempty"`
}

// Stats returns a snapshot
func (s *Sink) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Active:     s.path,
		OpenedAt:   s.openedAt,
		Due:        s.due,
		Bytes:      s.size,
		Sealed:     s.sealed,
		LastSealed: s.lastSealed,
	}
}
