package rates

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a DurableStore when no live record exists for a key.
var ErrNotFound = errors.New("record not found")

// DurableTTL is the document lifetime of every durable record, regardless of kind.
const DurableTTL = 24 * time.Hour

// DurableStore is the second cache tier, it outlives the process.
// A later Put with the same key replaces the earlier record.
type DurableStore interface {
	Get(ctx context.Context, key string) (Record, error)
	Put(ctx context.Context, record Record) error
	Close() error
}
