package page

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/flovouin/dashviz/internal/filters"
)

// Reads a filter state from a YAML or JSON file mapping filter IDs to values.
func LoadState(path string) (filters.State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	state := make(filters.State)
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing state %s: %w", path, err)
	}

	return state, nil
}

// Calls `fn` with the new state every time the state file is written or re-created, until the context is done.
// States that cannot be read, for instance while the file is being written, are logged and skipped.
func WatchState(ctx context.Context, path string, logger *zap.Logger, fn func(filters.State)) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating state watcher: %w", err)
	}
	defer watcher.Close()

	// The directory is watched as editors often replace files rather than writing them.
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}

			state, err := LoadState(abs)
			if err != nil {
				logger.Warn("reading state file", zap.String("path", path), zap.Error(err))
				continue
			}
			logger.Debug("state file changed", zap.String("path", path))
			fn(state)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watching state file", zap.String("path", path), zap.Error(err))
		}
	}
}
