package docstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when no document exists under the given key.
var ErrNotFound = errors.New("document not found")

// Document wraps a stored record with its server-assigned timestamps.
type Document struct {
	Collection string
	ID         string
	Data       []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Store is the durable document store the session core is layered on. Data is
// an opaque JSON blob; Create stamps CreatedAt and UpdatedAt, Update stamps
// UpdatedAt on the existing row.
type Store interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	Create(ctx context.Context, collection, id string, data []byte) error
	Update(ctx context.Context, collection, id string, data []byte) error
	Close() error
}
