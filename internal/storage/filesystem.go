package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// filesystemBackend stores blobs as files under a base directory.
// Writes go to a temp file in the destination directory followed by an
// atomic rename, so readers never observe a partially written blob.
type filesystemBackend struct {
	baseDir string
}

// NewFilesystem creates a filesystem backend rooted at baseDir,
// creating the directory if needed.
func NewFilesystem(baseDir string) (Backend, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create base dir %s: %w", abs, err)
	}
	return &filesystemBackend{baseDir: abs}, nil
}

// resolve maps a storage key to an absolute path and rejects keys that
// would escape the base directory.
func (b *filesystemBackend) resolve(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: invalid key %q", ErrNotFound, key)
	}
	full := filepath.Join(b.baseDir, filepath.FromSlash(key))
	if !strings.HasPrefix(full, b.baseDir+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: key escapes base dir %q", ErrNotFound, key)
	}
	return full, nil
}

// writeAtomic writes r to a unique temp file next to the destination,
// fsyncs, then renames over it. The temp file is removed on any failure.
func (b *filesystemBackend) writeAtomic(fullPath string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return 0, fmt.Errorf("%w: mkdir: %v", ErrIO, err)
	}

	tmpPath := fullPath + ".tmp-" + uuid.NewString()[:8]
	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("%w: create temp: %v", ErrIO, err)
	}

	n, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("%w: write: %v", ErrIO, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("%w: fsync: %v", ErrIO, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("%w: close: %v", ErrIO, err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("%w: rename: %v", ErrIO, err)
	}
	return n, nil
}

func (b *filesystemBackend) Store(ctx context.Context, key string, r io.Reader) (int64, error) {
	full, err := b.resolve(key)
	if err != nil {
		return 0, err
	}
	return b.writeAtomic(full, r)
}

func (b *filesystemBackend) ReadFull(ctx context.Context, key string) ([]byte, error) {
	full, err := b.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrIO, key, err)
	}
	return data, nil
}

func (b *filesystemBackend) ReadRange(ctx context.Context, key string, start, end int64) (*RangeResult, error) {
	full, err := b.resolve(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("%w: open %s: %v", ErrIO, key, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", ErrIO, key, err)
	}
	size := info.Size()

	if start < 0 || start >= size {
		return nil, fmt.Errorf("%w: start=%d size=%d", ErrRangeInvalid, start, size)
	}
	if end < 0 || end >= size {
		end = size - 1
	} else if end < start {
		return nil, fmt.Errorf("%w: start=%d end=%d", ErrRangeInvalid, start, end)
	}

	buf := make([]byte, end-start+1)
	if _, err := f.ReadAt(buf, start); err != nil {
		return nil, fmt.Errorf("%w: read range %s: %v", ErrIO, key, err)
	}

	return &RangeResult{Data: buf, Start: start, End: end, TotalSize: size}, nil
}

func (b *filesystemBackend) ReplaceInPlace(ctx context.Context, key string, newData []byte) error {
	full, err := b.resolve(key)
	if err != nil {
		return err
	}
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("%w: stat %s: %v", ErrIO, key, err)
	}
	_, err = b.writeAtomic(full, bytes.NewReader(newData))
	return err
}

func (b *filesystemBackend) Exists(ctx context.Context, key string) bool {
	full, err := b.resolve(key)
	if err != nil {
		return false
	}
	_, err = os.Stat(full)
	return err == nil
}

func (b *filesystemBackend) Size(ctx context.Context, key string) (int64, error) {
	full, err := b.resolve(key)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return 0, fmt.Errorf("%w: stat %s: %v", ErrIO, key, err)
	}
	return info.Size(), nil
}

func (b *filesystemBackend) Delete(ctx context.Context, key string) error {
	full, err := b.resolve(key)
	if err != nil {
		return nil
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: delete %s: %v", ErrIO, key, err)
	}
	return nil
}
