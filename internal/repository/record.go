package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/guard-registry/internal/identity"
)

// StoredRecord is a confirmed identity record. Immutable once appended.
type StoredRecord struct {
	ID uuid.UUID `json:"id"`
	identity.Record
	Sender      string    `json:"sender"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// NewStoredRecord stamps rec with a fresh ID and confirmation time.
func NewStoredRecord(rec identity.Record, sender string, at time.Time) StoredRecord {
	return StoredRecord{
		ID:          uuid.New(),
		Record:      rec,
		Sender:      sender,
		ConfirmedAt: at.UTC(),
	}
}

// RecordStore is the durable, append-only list of confirmed records.
// Appends are never lost under concurrency; List returns insertion order.
type RecordStore interface {
	Append(ctx context.Context, rec StoredRecord) error
	List(ctx context.Context) ([]StoredRecord, error)
	// Clear removes every record. Administrative only.
	Clear(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
