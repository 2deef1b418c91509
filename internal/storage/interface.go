package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Retrieve when no document exists under the key
var ErrNotFound = errors.New("document not found")

// StorageInterface defines the contract for document persistence.
// Keys are slash separated paths such as "tools/chatgpt.json".
type StorageInterface interface {
	Store(ctx context.Context, key string, data []byte) error
	Retrieve(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
}
