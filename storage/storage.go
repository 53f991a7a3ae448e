// Package storage keeps user uploaded media (post, comment and message images,
// avatars and banners) in an object store.
package storage

import (
	"context"
	"io"
)

// Store is the object storage used by the API.
type Store interface {
	// Put uploads an object and returns its public URL.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Remove(ctx context.Context, key string) error
	URL(key string) string
}
