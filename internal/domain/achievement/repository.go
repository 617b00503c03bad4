package achievement

import (
	"context"
)

// CatalogRepository provides read access to the achievement catalog, plus
// the administration surface used by the admin API. The engine itself only
// ever reads.
type CatalogRepository interface {
	// GetByTitle returns the definition registered under the given title,
	// or shared.ErrDefinitionNotFound.
	GetByTitle(ctx context.Context, title Title) (*Definition, error)

	// List returns all catalog definitions.
	List(ctx context.Context) ([]*Definition, error)

	// Create registers a new definition. Returns shared.ErrDefinitionExists
	// if the title is already taken.
	Create(ctx context.Context, def *Definition) error
}

// ProgressRepository is the durable progress store keyed by
// (userID, achievementID).
//
// The engine serializes the GetOrCreate → Advance → Save sequence per key
// (pkg/keylock), so implementations may use plain last-writer-wins updates;
// GetOrCreate and BulkEnsure must still be atomic on their own because
// pre-provisioning races with lazily-created rows from concurrent events.
type ProgressRepository interface {
	// GetOrCreate returns the existing row for the pair, or atomically
	// creates one initialized to zero progress if absent.
	GetOrCreate(ctx context.Context, userID, achievementID string) (*UserProgress, error)

	// Save persists the full updated record. Returns
	// shared.ErrProgressRowNotFound if the row was never provisioned.
	Save(ctx context.Context, progress *UserProgress) error

	// BulkEnsure pre-provisions a zero-progress row for each achievement
	// ID that the user does not have yet. Idempotent: re-running for an
	// existing user neither duplicates nor resets rows.
	BulkEnsure(ctx context.Context, userID string, achievementIDs []string) error

	// ListByUser returns all progress rows of a user joined with their
	// catalog metadata, ordered by title.
	ListByUser(ctx context.Context, userID string) ([]*ProgressView, error)
}
