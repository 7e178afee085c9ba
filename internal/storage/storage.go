// Package storage persists complaint attachment binaries.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// BlobStore writes and reads attachment binaries by storage key.
type BlobStore interface {
	// Save streams the blob under the given key and returns bytes written.
	Save(ctx context.Context, key string, r io.Reader) (int64, error)
	// Open returns a reader for a stored blob.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Remove deletes a stored blob. Missing blobs are not an error.
	Remove(ctx context.Context, key string) error
}

// Disk stores blobs as files under a base directory. Keys are sanitized to
// stay inside the base directory.
type Disk struct{ dir string }

// NewDisk constructs a disk store rooted at dir, creating it if needed.
func NewDisk(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Disk{dir: dir}, nil
}

func (d *Disk) path(key string) (string, error) {
	clean := filepath.Clean(strings.ReplaceAll(key, "\\", "/"))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(d.dir, clean), nil
}

// Save streams the blob to disk.
func (d *Disk) Save(_ context.Context, key string, r io.Reader) (int64, error) {
	p, err := d.path(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return 0, err
	}
	f, err := os.Create(p)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(p)
		return 0, err
	}
	return n, nil
}

// Open returns a reader for the stored blob.
func (d *Disk) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := d.path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

// Remove deletes the blob; a missing file is ignored.
func (d *Disk) Remove(_ context.Context, key string) error {
	p, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
