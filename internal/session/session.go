package session

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/guard-registry/internal/identity"
)

const DefaultTTL = 30 * time.Minute

// ErrNoPending is returned by Take when the sender has no record awaiting confirmation.
var ErrNoPending = errors.New("no pending record")

// Store keeps the one record per sender that awaits a yes/no answer.
// A newer Put replaces the previous pending record.
type Store interface {
	Put(ctx context.Context, sender string, rec identity.Record) error
	Get(ctx context.Context, sender string) (identity.Record, bool, error)
	// Take returns and removes the pending record atomically.
	Take(ctx context.Context, sender string) (identity.Record, error)
	Delete(ctx context.Context, sender string) error
}
