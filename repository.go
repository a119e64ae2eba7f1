package recordstore

import (
	"context"
)

// Store defines the persistence operations every backend implements for one
// entity schema. Records are returned in store order, which is insertion order
// for every built-in backend.
type Store interface {
	// Schema returns the schema this store persists.
	Schema() Schema

	FindAll(ctx context.Context) ([]Record, error)
	// FindByID reports false when no record carries id.
	FindByID(ctx context.Context, id string) (Record, bool, error)
	FindWhere(ctx context.Context, conditions ...Condition) ([]Record, error)
	FindByField(ctx context.Context, field string, value any) ([]Record, error)
	ExistsByField(ctx context.Context, field string, value any) (bool, error)

	// Save inserts rec when its ID is empty and overwrites the stored record
	// otherwise. Overwriting a record that no longer exists is a NotFoundError.
	Save(ctx context.Context, rec Record) (Record, error)

	Delete(ctx context.Context, rec Record) error
	DeleteByID(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
}
