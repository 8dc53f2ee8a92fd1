// Package blob stores uploaded file contents behind a small key/value
// interface with a local-directory and an S3 backend.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"
)

// ErrNotFound is returned when no object exists under a key.
var ErrNotFound = errors.New("blob not found")

// ErrInvalidKey is returned for keys that are empty or escape the store root.
var ErrInvalidKey = errors.New("invalid blob key")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
}

// Store is implemented by every blob backend.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// Exists reports whether key is present in s.
func Exists(ctx context.Context, s Store, key string) (bool, error) {
	_, err := s.Stat(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Key builds the storage key for an upload: uploads/YYYY/MM/DD/<name>[.<ext>].
func Key(t time.Time, name, ext string) string {
	file := name
	if ext != "" {
		file += "." + ext
	}
	return path.Join("uploads", t.UTC().Format("2006/01/02"), file)
}

// Open returns the backend named by kind: "local" rooted at dir, or "s3".
func Open(kind, dir string, s3cfg S3Config) (Store, error) {
	switch kind {
	case "", "local":
		l, err := NewLocal(dir)
		if err != nil {
			return nil, err
		}
		return l, nil
	case "s3":
		s, err := NewS3(s3cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", kind)
	}
}
