package resource

import (
	"context"

	"recordstore"
)

// UniqueChecker decides whether rec may be written without colliding with a
// declared-unique value of another record. Only the unique fields present in
// rec.Fields are checked; rec.ID identifies the record itself and is empty on
// create.
type UniqueChecker interface {
	CheckUnique(ctx context.Context, schema recordstore.Schema, store recordstore.Store, rec recordstore.Record) error
}

// UniqueCheckerFunc adapts a function to UniqueChecker.
type UniqueCheckerFunc func(ctx context.Context, schema recordstore.Schema, store recordstore.Store, rec recordstore.Record) error

func (f UniqueCheckerFunc) CheckUnique(ctx context.Context, schema recordstore.Schema, store recordstore.Store, rec recordstore.Record) error {
	return f(ctx, schema, store, rec)
}

// StoreUniqueChecker queries the store for each unique value. It narrows the
// window for duplicates but cannot close it; the store's own unique
// constraint remains the final authority under concurrent writers.
type StoreUniqueChecker struct{}

func (StoreUniqueChecker) CheckUnique(ctx context.Context, schema recordstore.Schema, store recordstore.Store, rec recordstore.Record) error {
	for _, f := range schema.UniqueFields() {
		v, ok := rec.Fields[f.Name]
		if !ok || v == nil {
			continue
		}
		if rec.ID == "" {
			exists, err := store.ExistsByField(ctx, f.Name, v)
			if err != nil {
				return err
			}
			if exists {
				return recordstore.NewConflictError(schema.Name, f.Name, v)
			}
			continue
		}

		matches, err := store.FindByField(ctx, f.Name, v)
		if err != nil {
			return err
		}
		for _, m := range matches {
			if m.ID != rec.ID {
				return recordstore.NewConflictError(schema.Name, f.Name, v)
			}
		}
	}
	return nil
}
