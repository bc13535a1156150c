package ports

import (
	"context"

	"github.com/DJA-prog/serialmacro/pkg/domain"
)

// RunStore defines the interface for persisting run summaries.
type RunStore interface {
	// Save creates or replaces the record with rec.ID.
	Save(ctx context.Context, rec *domain.RunRecord) error

	// Load retrieves a record.
	// Returns domain.ErrRunNotFound if the run does not exist.
	Load(ctx context.Context, id string) (*domain.RunRecord, error)

	// List returns all records, most recently started first.
	List(ctx context.Context) ([]*domain.RunRecord, error)

	// Delete removes a record. Deleting a missing record is not an error.
	Delete(ctx context.Context, id string) error
}
