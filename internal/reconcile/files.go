package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"golang.org/x/sync/errgroup"
)

// document is a JSON file as read from disk
type document struct {
	path string
	raw  []byte
}

// exists reports whether path exists. Errors other than "not found" are
// read failures.
func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, newError(KindReadFailure, path, err)
}

// readJSON reads path and verifies it holds a single valid JSON value.
// Decode errors are reported with the given kind.
func readJSON(path string, parseKind Kind) (*document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, newError(KindReadFailure, path, err)
	}
	if err := validateJSON(raw); err != nil {
		return nil, newError(parseKind, path, err)
	}
	return &document{path: path, raw: raw}, nil
}

func validateJSON(raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// readPair reads dist and own concurrently; both must succeed.
func readPair(ctx context.Context, distPath, ownPath string) (dist, own *document, err error) {
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dist, err = readJSON(distPath, KindParseFailure)
		return err
	})
	g.Go(func() error {
		var err error
		own, err = readJSON(ownPath, KindParseFailure)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return dist, own, nil
}

// writeFileAtomic replaces path with data. The previous content stays in
// place if anything fails before the rename.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return newError(KindWriteFailure, path, fmt.Errorf("create directory: %w", err))
	}

	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(0644), renameio.WithExistingPermissions())
	if err != nil {
		return newError(KindWriteFailure, path, fmt.Errorf("create pending file: %w", err))
	}
	defer func() {
		// No-op once the file has been committed
		if err := pendingFile.Cleanup(); err != nil {
			log := logger()
			log.Debug().Err(err).Str("path", path).Msg("cleanup pending file")
		}
	}()

	if _, err := pendingFile.Write(data); err != nil {
		return newError(KindWriteFailure, path, fmt.Errorf("write data: %w", err))
	}

	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return newError(KindWriteFailure, path, fmt.Errorf("atomically replace file: %w", err))
	}
	return nil
}
