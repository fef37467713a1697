// Package watch re-runs deduplication when the input tree changes.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is how long the tree must stay quiet before a re-run.
const DefaultDebounce = 500 * time.Millisecond

type Operation int

const (
	Created Operation = iota
	Modified
	Deleted
	Renamed
)

func (o Operation) String() string {
	switch o {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	case Renamed:
		return "renamed"
	}
	return "unknown"
}

// Event is a change to a corpus file.
type Event struct {
	Path string
	Op   Operation
}

// Matcher decides which files are part of the corpus.
type Matcher interface {
	Matches(path string) bool
}

// Watcher follows a directory tree recursively. Directories created after
// Watch starts are picked up; excluded subtrees are never followed.
type Watcher struct {
	watcher *fsnotify.Watcher
	matcher Matcher
	exclude []string
	logger  zerolog.Logger
}

func NewWatcher(matcher Matcher, logger zerolog.Logger, exclude ...string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	var abs []string
	for _, e := range exclude {
		if e == "" {
			continue
		}
		if a, err := filepath.Abs(e); err == nil {
			abs = append(abs, a)
		}
	}
	return &Watcher{
		watcher: w,
		matcher: matcher,
		exclude: abs,
		logger:  logger.With().Str("component", "watch").Logger(),
	}, nil
}

// Watch starts monitoring root and emits corpus file events until ctx is
// done or the watcher is stopped.
func (w *Watcher) Watch(ctx context.Context, root string) (<-chan Event, error) {
	if err := w.addTree(root); err != nil {
		return nil, err
	}

	events := make(chan Event, 100)
	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if w.excluded(event.Name) {
					continue
				}
				if event.Op&fsnotify.Create == fsnotify.Create {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						if err := w.addTree(event.Name); err != nil {
							w.logger.Warn().Err(err).Str("dir", event.Name).Msg("cannot watch new directory")
						}
						continue
					}
				}
				if !w.matcher.Matches(event.Name) {
					continue
				}

				var op Operation
				switch {
				case event.Op&fsnotify.Create == fsnotify.Create:
					op = Created
				case event.Op&fsnotify.Write == fsnotify.Write:
					op = Modified
				case event.Op&fsnotify.Remove == fsnotify.Remove:
					op = Deleted
				case event.Op&fsnotify.Rename == fsnotify.Rename:
					op = Renamed
				default:
					continue
				}

				select {
				case events <- Event{Path: event.Name, Op: op}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Error().Err(err).Msg("watch error")
			}
		}
	}()

	return events, nil
}

// Run calls fn once the tree has been quiet for debounce after a change.
// It returns when ctx is done.
func (w *Watcher) Run(ctx context.Context, root string, debounce time.Duration, fn func(context.Context) error) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	events, err := w.Watch(ctx, root)
	if err != nil {
		return err
	}
	w.logger.Info().Str("root", root).Msg("watching for changes")

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			w.logger.Debug().Str("file", ev.Path).Stringer("op", ev.Op).Msg("change detected")
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			if err := fn(ctx); err != nil {
				w.logger.Error().Err(err).Msg("re-run failed")
			}
		}
	}
}

// Stop releases the underlying watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.excluded(path) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) excluded(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, e := range w.exclude {
		if abs == e || strings.HasPrefix(abs, e+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
