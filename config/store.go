package config

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Store holds the live configuration. Readers get a consistent snapshot;
// Watch swaps in reloaded configurations as the file changes, keeping the
// last good one when a reload fails.
type Store struct {
	mu   sync.RWMutex
	path string
	log  *zap.Logger
	cfg  Config
}

// NewStore loads path and returns a Store serving it.
func NewStore(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, log: log, cfg: cfg}, nil
}

// Current returns the active configuration snapshot.
func (s *Store) Current() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Reload re-reads the file and swaps the active configuration. On failure
// the previous configuration stays active and the error is returned.
func (s *Store) Reload() error {
	cfg, err := Load(s.path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()

	s.log.Info("configuration reloaded",
		zap.String("path", s.path),
		zap.Int("agents", len(cfg.Agents)),
	)
	return nil
}

// Watch reloads the configuration whenever the file changes, until ctx is
// done. The parent directory is watched rather than the file itself, since
// editors and config management tools typically replace the file wholesale.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return err
	}

	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := s.Reload(); err != nil {
				s.log.Warn("config reload failed, keeping previous",
					zap.String("path", s.path),
					zap.Error(err),
				)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("config watcher error", zap.Error(err))
		}
	}
}
