// Package watch reports sealed segments appearing in the log directory
package watch

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"modwatch/internal/adapters/segment"
	perr "modwatch/internal/platform/errors"
	"modwatch/internal/platform/logger"
)

// Watcher calls Found for every sealed segment created or moved into Dir
type Watcher struct {
	dir     string
	matcher segment.Matcher
	found   func(path string)
	fs      *fsnotify.Watcher
	log     logger.Logger
}

// New starts watching dir for segments sealed from activeName
// found must not block; the recheck dispatcher's Enqueue fits
func New(dir, activeName string, found func(path string)) (*Watcher, error) {
	if found == nil {
		return nil, perr.InvalidArgf("watch: nil callback")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeIO, "watch: new watcher")
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, perr.Wrapf(err, perr.ErrorCodeIO, "watch: add %s", dir)
	}
	return &Watcher{
		dir:     dir,
		matcher: segment.NewMatcher(activeName),
		found:   found,
		fs:      fw,
		log:     *logger.Named("watch"),
	}, nil
}

// Run forwards events until ctx is canceled or the watcher is closed
func (w *Watcher) Run(ctx context.Context) error {
	w.log.Info().Str("dir", w.dir).Msg("watching for sealed segments")
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().
				Err(err).
				Str("kind", perr.CodeName(err)).
				Str("type", perr.TypeName(err)).
				Str("outcome", "continue").
				Msg("watch error")
		case <-ctx.Done():
			return nil
		}
	}
}

// a rename into the directory arrives as Create for the new name
func (w *Watcher) handle(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) {
		return
	}
	if !w.matcher.IsSealed(ev.Name) {
		return
	}
	p := filepath.Clean(ev.Name)
	w.log.Debug().Str("segment", p).Msg("sealed segment seen")
	w.found(p)
}

// Close stops the watcher; safe to call more than once
func (w *Watcher) Close() error {
	return w.fs.Close()
}
