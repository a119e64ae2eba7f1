// Package resource implements the generic resource manager: create, read,
// update and delete over a recordstore.Store for one entity schema, with
// uniqueness and existence rules applied the same way for every entity.
package resource

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"recordstore"
)

// ReferenceChecker reports whether a record of entity with the given id exists.
type ReferenceChecker interface {
	Exists(ctx context.Context, entity, id string) (bool, error)
}

// cascader removes the records that reference entity/id with a cascade rule.
type cascader interface {
	cascade(ctx context.Context, entity, id string, seen map[string]bool) error
}

// Manager mediates between the API layer and the store for one entity.
type Manager struct {
	schema recordstore.Schema
	store  recordstore.Store
	unique UniqueChecker
	refs   ReferenceChecker
	casc   cascader
	logger zerolog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithUniqueChecker replaces the uniqueness hook.
func WithUniqueChecker(c UniqueChecker) Option {
	return func(m *Manager) {
		m.unique = c
	}
}

// WithLogger sets the logger. The entity name is added to every entry.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithReferenceCheck makes writes fail when a required reference points at
// a record that does not exist.
func WithReferenceCheck(c ReferenceChecker) Option {
	return func(m *Manager) {
		m.refs = c
	}
}

func withCascade(c cascader) Option {
	return func(m *Manager) {
		m.casc = c
	}
}

// NewManager creates a manager for schema backed by store.
func NewManager(schema recordstore.Schema, store recordstore.Store, opts ...Option) *Manager {
	m := &Manager{
		schema: schema,
		store:  store,
		unique: StoreUniqueChecker{},
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With().Str("entity", schema.Name).Logger()
	return m
}

// Schema returns the managed entity's schema.
func (m *Manager) Schema() recordstore.Schema { return m.schema }

// Store returns the backing store.
func (m *Manager) Store() recordstore.Store { return m.store }

// Create persists a new record and returns it with its store-assigned id.
// Any id supplied by the caller is ignored.
func (m *Manager) Create(ctx context.Context, rec recordstore.Record) (recordstore.Record, error) {
	fields, err := m.schema.Normalize(rec.Fields, false)
	if err != nil {
		return recordstore.Record{}, err
	}
	rec = recordstore.NewRecord(fields)

	if err := m.checkReferences(ctx, fields); err != nil {
		return recordstore.Record{}, err
	}
	if err := m.unique.CheckUnique(ctx, m.schema, m.store, rec); err != nil {
		return recordstore.Record{}, m.fail("create", "", err)
	}

	saved, err := m.store.Save(ctx, rec)
	if err != nil {
		return recordstore.Record{}, m.fail("create", "", err)
	}
	m.logger.Debug().Str("op", "create").Str("id", saved.ID).Msg("record created")
	return saved, nil
}

// ReadAll returns every record in store order. The result is never nil.
func (m *Manager) ReadAll(ctx context.Context) ([]recordstore.Record, error) {
	records, err := m.store.FindAll(ctx)
	if err != nil {
		return nil, m.fail("read_all", "", err)
	}
	if records == nil {
		records = []recordstore.Record{}
	}
	return records, nil
}

// ReadByID returns the record with id or a NotFoundError.
func (m *Manager) ReadByID(ctx context.Context, id string) (recordstore.Record, error) {
	if id == "" {
		return recordstore.Record{}, recordstore.NewNotFoundError(m.schema.Name, id)
	}
	rec, ok, err := m.store.FindByID(ctx, id)
	if err != nil {
		return recordstore.Record{}, m.fail("read_by_id", id, err)
	}
	if !ok {
		return recordstore.Record{}, recordstore.NewNotFoundError(m.schema.Name, id)
	}
	return rec, nil
}

// FindBy returns the records whose field equals value, in store order.
func (m *Manager) FindBy(ctx context.Context, field string, value any) ([]recordstore.Record, error) {
	if field == recordstore.IDField {
		rec, err := m.ReadByID(ctx, fmt.Sprint(value))
		if recordstore.IsNotFoundError(err) {
			return []recordstore.Record{}, nil
		}
		if err != nil {
			return nil, err
		}
		return []recordstore.Record{rec}, nil
	}

	records, err := m.store.FindByField(ctx, field, value)
	if err != nil {
		return nil, m.fail("find_by", "", err)
	}
	if records == nil {
		records = []recordstore.Record{}
	}
	return records, nil
}

// FindWhere returns the records matching every condition, in store order.
// Without conditions it returns every record.
func (m *Manager) FindWhere(ctx context.Context, conditions ...recordstore.Condition) ([]recordstore.Record, error) {
	if len(conditions) == 0 {
		return m.ReadAll(ctx)
	}
	records, err := m.store.FindWhere(ctx, conditions...)
	if err != nil {
		return nil, m.fail("find_where", "", err)
	}
	if records == nil {
		records = []recordstore.Record{}
	}
	return records, nil
}

// Update overwrites the fields present in rec on every matching record and
// returns the updated records. Records are matched by id, or when the id is
// empty by the first declared unique field present in rec.
func (m *Manager) Update(ctx context.Context, rec recordstore.Record) ([]recordstore.Record, error) {
	patch, err := m.schema.Normalize(rec.Fields, true)
	if err != nil {
		return nil, err
	}

	var updated []recordstore.Record
	err = recordstore.RunTx(ctx, m.store, func(ctx context.Context) error {
		matches, matchField, err := m.match(ctx, recordstore.Record{ID: rec.ID, Fields: patch})
		if err != nil {
			return err
		}

		checked := make(map[string]any, len(patch))
		for name, v := range patch {
			if name != matchField {
				checked[name] = v
			}
		}

		updated = make([]recordstore.Record, 0, len(matches))
		for _, existing := range matches {
			saved, err := m.apply(ctx, existing, patch, checked)
			if err != nil {
				return err
			}
			updated = append(updated, saved)
		}
		return nil
	})
	if err != nil {
		return nil, m.fail("update", rec.ID, err)
	}
	return updated, nil
}

// UpdateByID overwrites the fields present in partial on the record with id.
// Only the outcome is reported.
func (m *Manager) UpdateByID(ctx context.Context, id string, partial map[string]any) error {
	patch, err := m.schema.Normalize(partial, true)
	if err != nil {
		return err
	}

	err = recordstore.RunTx(ctx, m.store, func(ctx context.Context) error {
		existing, err := m.ReadByID(ctx, id)
		if err != nil {
			return err
		}
		_, err = m.apply(ctx, existing, patch, patch)
		return err
	})
	return m.fail("update_by_id", id, err)
}

// apply merges patch into existing and persists the result. Unique values in
// checked are verified against other records first.
func (m *Manager) apply(ctx context.Context, existing recordstore.Record, patch, checked map[string]any) (recordstore.Record, error) {
	if err := m.checkReferences(ctx, patch); err != nil {
		return recordstore.Record{}, err
	}
	if err := m.unique.CheckUnique(ctx, m.schema, m.store, recordstore.Record{ID: existing.ID, Fields: checked}); err != nil {
		return recordstore.Record{}, err
	}

	merged := existing.Merge(patch)
	if _, err := m.schema.Normalize(merged.Fields, false); err != nil {
		return recordstore.Record{}, err
	}

	saved, err := m.store.Save(ctx, merged)
	if err != nil {
		return recordstore.Record{}, err
	}
	m.logger.Debug().Str("op", "update").Str("id", saved.ID).Msg("record updated")
	return saved, nil
}

// Delete removes the records matching rec, by id or by its first unique
// field, and returns them.
func (m *Manager) Delete(ctx context.Context, rec recordstore.Record) ([]recordstore.Record, error) {
	var removed []recordstore.Record
	err := recordstore.RunTx(ctx, m.store, func(ctx context.Context) error {
		fields, err := m.schema.Normalize(rec.Fields, true)
		if err != nil {
			return err
		}
		matches, _, err := m.match(ctx, recordstore.Record{ID: rec.ID, Fields: fields})
		if err != nil {
			return err
		}

		seen := make(map[string]bool)
		for _, match := range matches {
			if err := m.remove(ctx, match, seen); err != nil {
				return err
			}
		}
		removed = matches
		return nil
	})
	if err != nil {
		return nil, m.fail("delete", rec.ID, err)
	}
	return removed, nil
}

// DeleteByID removes the record with id.
func (m *Manager) DeleteByID(ctx context.Context, id string) error {
	err := recordstore.RunTx(ctx, m.store, func(ctx context.Context) error {
		existing, err := m.ReadByID(ctx, id)
		if err != nil {
			return err
		}
		return m.remove(ctx, existing, make(map[string]bool))
	})
	return m.fail("delete_by_id", id, err)
}

// DeleteAll empties the entity. Calling it on an empty entity is not an error.
func (m *Manager) DeleteAll(ctx context.Context) error {
	err := recordstore.RunTx(ctx, m.store, func(ctx context.Context) error {
		if m.casc != nil {
			all, err := m.store.FindAll(ctx)
			if err != nil {
				return err
			}
			seen := make(map[string]bool, len(all))
			for _, rec := range all {
				seen[m.key(rec.ID)] = true
			}
			for _, rec := range all {
				if err := m.casc.cascade(ctx, m.schema.Name, rec.ID, seen); err != nil {
					return err
				}
			}
		}
		return m.store.DeleteAll(ctx)
	})
	if err == nil {
		m.logger.Debug().Str("op", "delete_all").Msg("records deleted")
	}
	return m.fail("delete_all", "", err)
}

// remove deletes rec after the records that cascade from it. seen stops
// reference cycles.
func (m *Manager) remove(ctx context.Context, rec recordstore.Record, seen map[string]bool) error {
	key := m.key(rec.ID)
	if seen[key] {
		return nil
	}
	seen[key] = true

	if m.casc != nil {
		if err := m.casc.cascade(ctx, m.schema.Name, rec.ID, seen); err != nil {
			return err
		}
	}
	if err := m.store.DeleteByID(ctx, rec.ID); err != nil {
		return err
	}
	m.logger.Debug().Str("op", "delete").Str("id", rec.ID).Msg("record deleted")
	return nil
}

func (m *Manager) key(id string) string { return m.schema.Name + ":" + id }

// match resolves the records addressed by rec. It returns the unique field
// used for matching, empty when matched by id.
func (m *Manager) match(ctx context.Context, rec recordstore.Record) ([]recordstore.Record, string, error) {
	if rec.ID != "" {
		existing, err := m.ReadByID(ctx, rec.ID)
		if err != nil {
			return nil, "", err
		}
		return []recordstore.Record{existing}, "", nil
	}

	for _, f := range m.schema.UniqueFields() {
		v, ok := rec.Fields[f.Name]
		if !ok || v == nil {
			continue
		}
		matches, err := m.store.FindByField(ctx, f.Name, v)
		if err != nil {
			return nil, "", err
		}
		if len(matches) == 0 {
			return nil, "", recordstore.NewNotFoundErrorForField(m.schema.Name, f.Name, v)
		}
		return matches, f.Name, nil
	}
	return nil, "", recordstore.NewValidationError("an id or a unique field is required to identify the record")
}

// checkReferences verifies that required references in fields resolve.
func (m *Manager) checkReferences(ctx context.Context, fields map[string]any) error {
	if m.refs == nil {
		return nil
	}
	for _, f := range m.schema.References() {
		if !f.Required {
			continue
		}
		v, ok := fields[f.Name]
		if !ok || v == nil {
			continue
		}
		id := v.(string)
		exists, err := m.refs.Exists(ctx, f.Ref, id)
		if err != nil {
			return err
		}
		if !exists {
			return recordstore.NewValidationErrorForField(f.Name, id, fmt.Sprintf("%s %s does not exist", f.Ref, id))
		}
	}
	return nil
}

// fail logs err by class and returns it unchanged.
func (m *Manager) fail(op, id string, err error) error {
	switch {
	case err == nil:
	case recordstore.IsConflictError(err):
		m.logger.Info().Str("op", op).Err(err).Msg("conflict")
	case recordstore.IsNotFoundError(err), recordstore.IsValidationError(err):
		m.logger.Debug().Str("op", op).Str("id", id).Err(err).Msg("rejected")
	default:
		m.logger.Error().Str("op", op).Str("id", id).Err(err).Msg("store fault")
		return recordstore.WrapFault(err, m.schema.Name, op)
	}
	return err
}
