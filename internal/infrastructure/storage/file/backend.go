// Package file implements the versioned document backend on the local
// filesystem, for single-host deployments. The version token is the SHA-256
// of the document content, so a Put with a stale token is detected the same
// way a remote backend would reject it.
package file

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/clanforge/clan-registry/internal/core/domain"
)

// Backend stores each document as one file under Dir.
type Backend struct {
	dir string

	// serializes the read-compare-write inside Put; cross-process
	// writers are not coordinated, mirroring the remote backends.
	mu sync.Mutex
}

func New(dir string) (*Backend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file backend: create dir: %w", err)
	}
	return &Backend{dir: dir}, nil
}

func (b *Backend) Get(ctx context.Context, path string) ([]byte, string, error) {
	content, err := os.ReadFile(filepath.Join(b.dir, path))
	if os.IsNotExist(err) {
		return nil, "", domain.ErrDocumentNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("file backend: read %s: %w", path, err)
	}
	return content, contentVersion(content), nil
}

func (b *Backend) Put(ctx context.Context, path string, content []byte, version string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current, err := os.ReadFile(filepath.Join(b.dir, path))
	switch {
	case os.IsNotExist(err):
		if version != "" {
			return "", domain.ErrVersionConflict
		}
	case err != nil:
		return "", fmt.Errorf("file backend: read %s: %w", path, err)
	default:
		if contentVersion(current) != version {
			return "", domain.ErrVersionConflict
		}
	}

	if err := b.writeAtomic(path, content); err != nil {
		return "", err
	}
	return contentVersion(content), nil
}

// writeAtomic replaces the document via temp file + rename so a crashed write
// never leaves a half-written document behind.
func (b *Backend) writeAtomic(path string, content []byte) error {
	tmp, err := os.CreateTemp(b.dir, path+".tmp-*")
	if err != nil {
		return fmt.Errorf("file backend: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("file backend: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file backend: close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(b.dir, path)); err != nil {
		return fmt.Errorf("file backend: rename %s: %w", path, err)
	}
	return nil
}

func contentVersion(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
