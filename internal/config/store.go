package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/perchbrowser/perch/internal/events"
	"github.com/perchbrowser/perch/internal/logging"
)

// Store holds the current config snapshot and swaps it atomically on
// reload. Current is safe from any goroutine; callers must not hold the
// returned pointer across reload boundaries if they want fresh values.
type Store struct {
	current  atomic.Pointer[Config]
	defaults []byte
	path     string
	log      *logging.Logger
	bus      *events.Bus
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger routes store activity to the given logger.
func WithLogger(log *logging.Logger) StoreOption {
	return func(s *Store) { s.log = log.Named("config") }
}

// WithBus announces reloads on the given bus (TopicConfigChanged).
func WithBus(bus *events.Bus) StoreOption {
	return func(s *Store) { s.bus = bus }
}

// NewStore wraps an initial snapshot. defaults and path are kept so
// Reload and Watch can rebuild the snapshot the same way Load did.
func NewStore(initial *Config, defaults []byte, path string, opts ...StoreOption) *Store {
	s := &Store{
		defaults: defaults,
		path:     path,
		log:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.current.Store(initial)
	return s
}

// Current returns the live snapshot. Pass the method value around as
// the `func() *Config` accessor the adapters want.
func (s *Store) Current() *Config {
	return s.current.Load()
}

// Replace swaps the snapshot and announces the change.
func (s *Store) Replace(cfg *Config) {
	s.current.Store(cfg)
	if s.bus != nil {
		events.Emit(s.bus, events.TopicConfigChanged, cfg)
	}
}

// Reload re-reads the config file. On error the previous snapshot stays
// in place.
func (s *Store) Reload() error {
	cfg, err := Load(s.defaults, s.path)
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	s.Replace(cfg)
	s.log.Info("config reloaded", zap.String("path", s.path))
	return nil
}

// Watch reloads the snapshot whenever the config file changes, until
// ctx is cancelled. It watches the parent directory because editors
// replace files by rename. Returns nil immediately when there is no
// file to watch.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// No config directory yet, nothing can change under it.
			s.log.Debug("config directory absent, not watching", zap.String("dir", dir))
			return nil
		}
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	base := filepath.Base(s.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if err := s.Reload(); err != nil {
				s.log.Warn("config change ignored", zap.Error(err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("config watcher error", zap.Error(err))
		}
	}
}
