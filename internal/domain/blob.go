package domain

import "context"

// BlobWriter writes immutable objects to cold storage.
type BlobWriter interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}
