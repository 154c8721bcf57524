package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"gihan9a/configdist/internal/config"
	"gihan9a/configdist/internal/utils"
)

// Watcher re-runs reconciliation when a dist file changes
type Watcher struct {
	reconciler *Reconciler
	targets    map[string][]config.Target // keyed by cleaned dist path
	hashes     map[string]string          // last reconciled dist hash per dist path
	watcher    *fsnotify.Watcher

	// onRun is called after every run triggered by a file event
	onRun func(config.Target, *Summary, error)
}

// NewWatcher creates a Watcher for the given targets
func NewWatcher(r *Reconciler, targets []config.Target) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		reconciler: r,
		targets:    make(map[string][]config.Target),
		hashes:     make(map[string]string),
		watcher:    watcher,
	}

	dirs := make(map[string]bool)
	for _, t := range targets {
		dist := cleanPath(t.Dist)
		w.targets[dist] = append(w.targets[dist], t)
		if hash, err := utils.HashFile(dist); err == nil {
			w.hashes[dist] = hash
		}
		dirs[filepath.Dir(dist)] = true
	}

	// Watch directories; editors often replace files by renaming
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	return w, nil
}

// OnRun registers fn to be called after every run triggered by a file event
func (w *Watcher) OnRun(fn func(config.Target, *Summary, error)) {
	w.onRun = fn
}

// Run watches until ctx is cancelled. Content that is not valid JSON is
// skipped until a later write completes it. Failed runs are reported and
// watching continues.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	log := logger().With().Str("mode", "watch").Logger()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			dist := cleanPath(event.Name)
			targets, watched := w.targets[dist]
			if !watched {
				continue
			}

			data, err := os.ReadFile(dist)
			if err != nil {
				log.Debug().Err(err).Str("dist", dist).Msg("dist not readable yet")
				continue
			}

			// In-place writes truncate first; wait for the event that
			// carries the complete document
			if !json.Valid(data) {
				log.Debug().Str("dist", dist).Int("bytes", len(data)).Msg("dist is not valid JSON yet, waiting")
				continue
			}

			hash := utils.CalculateHash(data)
			if hash == w.hashes[dist] {
				log.Debug().Str("dist", dist).Msg("dist unchanged, skipping")
				continue
			}
			w.hashes[dist] = hash

			log.Info().Str("dist", dist).Str("op", event.Op.String()).Msg("dist changed")
			for _, t := range targets {
				summary, err := w.reconciler.Reconcile(ctx, t)
				if err != nil {
					log.Error().Err(err).Str("target", t.Name).Msg("reconcile failed")
				}
				if w.onRun != nil {
					w.onRun(t, summary, err)
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("watcher error")
		}
	}
}

func cleanPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
