package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"didstore/internal/access"
)

// Filesystem is a LocalCache that stores one file per key under a root
// directory. Keys contain DIDs and are not filesystem-safe, so each entry is
// named by the hash of its key. Session credentials are secrets: entries are
// written 0600.
type Filesystem struct {
	root string
}

var _ access.LocalCache = (*Filesystem)(nil)

// NewFilesystem creates the root directory if needed and returns the cache.
func NewFilesystem(root string) (*Filesystem, error) {
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &Filesystem{root: root}, nil
}

func (f *Filesystem) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(f.root, hex.EncodeToString(sum[:])+".json")
}

func (f *Filesystem) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache entry: %w", err)
	}
	return data, nil
}

func (f *Filesystem) Set(key string, value []byte) error {
	if err := os.WriteFile(f.path(key), value, 0600); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

func (f *Filesystem) Remove(key string) error {
	err := os.Remove(f.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing cache entry: %w", err)
	}
	return nil
}
