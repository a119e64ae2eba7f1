package resource

import (
	"context"
	"fmt"
	"sync"

	"recordstore"
)

// Registry holds one Manager per entity. It resolves references between
// entities: required-reference checks, configured cascades, reverse lookups
// and expansion of referenced records.
type Registry struct {
	mu       sync.RWMutex
	managers map[string]*Manager
	order    []string
	opts     []Option
}

// Ensure Registry can serve as the reference checker of its managers.
var _ ReferenceChecker = (*Registry)(nil)

// NewRegistry creates an empty registry. opts are applied to every manager
// it creates.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		managers: make(map[string]*Manager),
		opts:     opts,
	}
}

// Build registers a manager for each schema, using repositories created by
// service, and validates the references between them.
func Build(service recordstore.Service, schemas []recordstore.Schema, opts ...Option) (*Registry, error) {
	reg := NewRegistry(opts...)
	for _, schema := range schemas {
		if _, err := reg.Register(schema, service.NewRepository(schema)); err != nil {
			return nil, err
		}
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

// Register creates the manager for schema over store.
func (r *Registry) Register(schema recordstore.Schema, store recordstore.Store) (*Manager, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.managers[schema.Name]; exists {
		return nil, recordstore.NewConfigErrorForField("entities", schema.Name, "entity registered twice")
	}

	opts := append([]Option{WithReferenceCheck(r), withCascade(r)}, r.opts...)
	m := NewManager(schema, store, opts...)
	r.managers[schema.Name] = m
	r.order = append(r.order, schema.Name)
	return m, nil
}

// Validate checks that every reference targets a registered entity.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		for _, f := range r.managers[name].schema.References() {
			if _, ok := r.managers[f.Ref]; !ok {
				return recordstore.NewConfigErrorForField(name+"."+f.Name, f.Ref, "reference to unknown entity")
			}
		}
	}
	return nil
}

// Manager returns the manager of entity.
func (r *Registry) Manager(entity string) (*Manager, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.managers[entity]
	return m, ok
}

// Entities returns the registered entity names in registration order.
func (r *Registry) Entities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Schemas returns the registered schemas in registration order.
func (r *Registry) Schemas() []recordstore.Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]recordstore.Schema, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.managers[name].schema)
	}
	return out
}

// Exists reports whether entity has a record with id.
func (r *Registry) Exists(ctx context.Context, entity, id string) (bool, error) {
	m, err := r.lookup(entity)
	if err != nil {
		return false, err
	}
	_, ok, err := m.store.FindByID(ctx, id)
	return ok, err
}

// Related returns the child records that reference parent record id, found
// through the child's reference field. It is the reverse direction of a
// reference and always an explicit query.
func (r *Registry) Related(ctx context.Context, parent, id, child string) ([]recordstore.Record, error) {
	pm, err := r.lookup(parent)
	if err != nil {
		return nil, err
	}
	cm, err := r.lookup(child)
	if err != nil {
		return nil, err
	}

	f, ok := cm.schema.ReferenceTo(parent)
	if !ok {
		return nil, recordstore.NewValidationError(fmt.Sprintf("%s has no reference to %s", child, parent))
	}
	if _, err := pm.ReadByID(ctx, id); err != nil {
		return nil, err
	}
	return cm.FindBy(ctx, f.Name, id)
}

// Expand loads the records referenced by the named reference fields of rec.
// References that no longer resolve are left out.
func (r *Registry) Expand(ctx context.Context, entity string, rec recordstore.Record, fields []string) (map[string]recordstore.Record, error) {
	m, err := r.lookup(entity)
	if err != nil {
		return nil, err
	}

	out := make(map[string]recordstore.Record, len(fields))
	for _, name := range fields {
		f, ok := m.schema.Field(name)
		if !ok || f.Type != recordstore.TypeReference {
			return nil, recordstore.NewValidationErrorForField(name, nil, "not a reference field of "+entity)
		}
		id, ok := rec.Fields[name].(string)
		if !ok {
			continue
		}
		target, err := r.lookup(f.Ref)
		if err != nil {
			return nil, err
		}
		ref, found, err := target.store.FindByID(ctx, id)
		if err != nil {
			return nil, recordstore.WrapFault(err, f.Ref, "expand")
		}
		if found {
			out[name] = ref
		}
	}
	return out, nil
}

// cascade removes the records of every entity whose cascading reference
// points at entity/id.
func (r *Registry) cascade(ctx context.Context, entity, id string, seen map[string]bool) error {
	r.mu.RLock()
	children := make([]*Manager, 0, len(r.order))
	for _, name := range r.order {
		children = append(children, r.managers[name])
	}
	r.mu.RUnlock()

	for _, cm := range children {
		for _, f := range cm.schema.References() {
			if f.Ref != entity || f.OnDelete != recordstore.OnDeleteCascade {
				continue
			}
			dependents, err := cm.store.FindByField(ctx, f.Name, id)
			if err != nil {
				return err
			}
			for _, dep := range dependents {
				if err := cm.remove(ctx, dep, seen); err != nil && !recordstore.IsNotFoundError(err) {
					return err
				}
			}
		}
	}
	return nil
}

func (r *Registry) lookup(entity string) (*Manager, error) {
	m, ok := r.Manager(entity)
	if !ok {
		return nil, recordstore.NewNotFoundErrorForField("entity", "name", entity)
	}
	return m, nil
}
