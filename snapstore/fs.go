package snapstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FS is a filesystem-backed Store rooted at a directory. Keys map to
// paths under the root; URIs use the file scheme.
type FS struct {
	root string
}

// NewFS creates a filesystem store rooted at dir.
func NewFS(dir string) *FS {
	return &FS{root: dir}
}

func (f *FS) path(key string) string {
	return filepath.Join(f.root, filepath.FromSlash(key))
}

// URI returns the file URI for a key.
func (f *FS) URI(key string) string {
	return "file://" + filepath.ToSlash(f.path(key))
}

// Put writes a blob under key. Writing to an existing key is an error:
// snapshots are immutable once stored.
func (f *FS) Put(_ context.Context, key string, data []byte) (string, error) {
	p := f.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("snapstore: mkdir: %w", err)
	}
	file, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("snapstore: key %q already exists", key)
		}
		return "", fmt.Errorf("snapstore: create: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(p)
		return "", fmt.Errorf("snapstore: write: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("snapstore: close: %w", err)
	}
	return f.URI(key), nil
}

// Get reads the blob stored under key.
func (f *FS) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		return nil, fmt.Errorf("snapstore: read %q: %w", key, err)
	}
	return data, nil
}

// List returns all keys under prefix, sorted ascending. A missing
// prefix directory yields an empty list, not an error.
func (f *FS) List(_ context.Context, prefix string) ([]string, error) {
	dir := f.path(prefix)
	var keys []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(f.root, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("snapstore: list %q: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Move relocates a blob from src to dst (copy + delete, mirroring
// object-store semantics).
func (f *FS) Move(ctx context.Context, src, dst string) error {
	data, err := f.Get(ctx, src)
	if err != nil {
		return err
	}
	if _, err := f.Put(ctx, dst, data); err != nil {
		return err
	}
	if err := os.Remove(f.path(src)); err != nil {
		return fmt.Errorf("snapstore: remove %q: %w", src, err)
	}
	// Prune now-empty partition directories so listings stay clean.
	dir := filepath.Dir(f.path(src))
	for strings.HasPrefix(dir, f.root) && dir != f.root {
		if os.Remove(dir) != nil {
			break
		}
		dir = filepath.Dir(dir)
	}
	return nil
}
