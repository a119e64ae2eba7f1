package kvstore

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"slices"
	"strconv"

	"github.com/google/uuid"

	"recordstore"
)

// envelope is the stored form of a record. Seq fixes the insertion order and
// comes from a per-table counter that is never reset.
type envelope struct {
	Seq    int64          `json:"seq"`
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Repository provides KV storage for one schema.
type Repository struct {
	*recordstore.RepositoryBase
	kvService *Service
	keyPrefix string
}

// Ensure Repository implements recordstore.Store
var _ recordstore.Store = (*Repository)(nil)

// NewRepository creates a new KV repository.
func NewRepository(service *Service, schema recordstore.Schema) *Repository {
	return &Repository{
		RepositoryBase: recordstore.NewRepositoryBase(schema),
		kvService:      service,
		keyPrefix:      service.config.KeyPrefix + schema.TableName() + ":",
	}
}

func (r *Repository) seqKey() string             { return r.keyPrefix + "seq" }
func (r *Repository) recordKey(id string) string { return r.keyPrefix + "rec:" + id }
func (r *Repository) recordPattern() string      { return r.keyPrefix + "rec:*" }

// Save inserts or overwrites a record.
func (r *Repository) Save(ctx context.Context, rec recordstore.Record) (recordstore.Record, error) {
	ctx, cancel := r.kvService.WithTimeout(ctx)
	defer cancel()

	rec, err := r.Normalize(rec)
	if err != nil {
		return recordstore.Record{}, err
	}

	var env envelope
	if rec.ID == "" {
		seq, err := r.kvService.Incr(ctx, r.seqKey())
		if err != nil {
			return recordstore.Record{}, r.HandleUpdateError(err, "next_id")
		}
		env.Seq = seq
		env.ID = strconv.FormatInt(seq, 10)
		if r.Schema().Strategy() == recordstore.IDUUID {
			env.ID = uuid.NewString()
		}
	} else {
		existing, ok, err := r.load(ctx, rec.ID)
		if err != nil {
			return recordstore.Record{}, r.HandleGetError(err, "save")
		}
		if !ok {
			return recordstore.Record{}, r.NotFound(rec.ID)
		}
		env.Seq = existing.Seq
		env.ID = rec.ID
	}
	env.Fields = rec.Fields

	if err := r.kvService.SetJSON(ctx, r.recordKey(env.ID), env); err != nil {
		return recordstore.Record{}, r.HandleUpdateError(err, "save")
	}
	return recordstore.Record{ID: env.ID, Fields: rec.Fields}, nil
}

// FindByID retrieves a record by ID.
func (r *Repository) FindByID(ctx context.Context, id string) (recordstore.Record, bool, error) {
	if err := r.ValidateID(id); err != nil {
		return recordstore.Record{}, false, err
	}
	ctx, cancel := r.kvService.WithTimeout(ctx)
	defer cancel()

	env, ok, err := r.load(ctx, id)
	if err != nil || !ok {
		return recordstore.Record{}, false, r.HandleGetError(err, "find_by_id")
	}
	return recordstore.Record{ID: env.ID, Fields: env.Fields}, true, nil
}

// FindAll returns every record in insertion order.
func (r *Repository) FindAll(ctx context.Context) ([]recordstore.Record, error) {
	ctx, cancel := r.kvService.WithTimeout(ctx)
	defer cancel()

	envs, err := r.scan(ctx)
	if err != nil {
		return nil, r.HandleGetError(err, "find_all")
	}

	records := make([]recordstore.Record, 0, len(envs))
	for _, env := range envs {
		records = append(records, recordstore.Record{ID: env.ID, Fields: env.Fields})
	}
	return records, nil
}

// FindWhere returns the records matching every condition, in insertion order.
// Key-value backends have no secondary indexes, so this scans the table.
func (r *Repository) FindWhere(ctx context.Context, conditions ...recordstore.Condition) ([]recordstore.Record, error) {
	conditions, err := r.NormalizeConditions(conditions)
	if err != nil {
		return nil, err
	}

	all, err := r.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	matches := make([]recordstore.Record, 0)
	for _, rec := range all {
		if matchesAll(rec, conditions) {
			matches = append(matches, rec)
		}
	}
	return matches, nil
}

// FindByField returns the records whose field equals value.
func (r *Repository) FindByField(ctx context.Context, field string, value any) ([]recordstore.Record, error) {
	return r.FindWhere(ctx, recordstore.Eq(field, value))
}

// ExistsByField reports whether any record's field equals value.
func (r *Repository) ExistsByField(ctx context.Context, field string, value any) (bool, error) {
	matches, err := r.FindByField(ctx, field, value)
	if err != nil {
		return false, err
	}
	return len(matches) > 0, nil
}

// Delete removes the record carrying rec.ID.
func (r *Repository) Delete(ctx context.Context, rec recordstore.Record) error {
	return r.DeleteByID(ctx, rec.ID)
}

// DeleteByID removes a record by ID.
func (r *Repository) DeleteByID(ctx context.Context, id string) error {
	if err := r.ValidateID(id); err != nil {
		return err
	}
	ctx, cancel := r.kvService.WithTimeout(ctx)
	defer cancel()

	key := r.recordKey(id)
	exists, err := r.kvService.Exists(ctx, key)
	if err != nil {
		return r.HandleGetError(err, "exists_check")
	}
	if !exists {
		return r.NotFound(id)
	}

	if err := r.kvService.Delete(ctx, key); err != nil {
		return r.HandleUpdateError(err, "delete")
	}
	return nil
}

// DeleteAll removes every record. The id counter is kept so ids are never reused.
func (r *Repository) DeleteAll(ctx context.Context) error {
	ctx, cancel := r.kvService.WithTimeout(ctx)
	defer cancel()

	keys, err := r.kvService.Keys(ctx, r.recordPattern())
	if err != nil {
		return r.HandleGetError(err, "delete_all")
	}
	if err := r.kvService.MDelete(ctx, keys); err != nil {
		return r.HandleUpdateError(err, "delete_all")
	}
	return nil
}

// load reads and decodes one envelope.
func (r *Repository) load(ctx context.Context, id string) (envelope, bool, error) {
	data, err := r.kvService.Get(ctx, r.recordKey(id))
	if err != nil {
		if r.kvService.adapter.IsKeyNotFoundError(err) {
			return envelope{}, false, nil
		}
		return envelope{}, false, err
	}
	env, err := r.decode(data)
	if err != nil {
		return envelope{}, false, err
	}
	return env, true, nil
}

// scan loads every envelope of the table sorted by insertion sequence.
func (r *Repository) scan(ctx context.Context) ([]envelope, error) {
	keys, err := r.kvService.Keys(ctx, r.recordPattern())
	if err != nil {
		return nil, err
	}
	values, err := r.kvService.MGet(ctx, keys)
	if err != nil {
		return nil, err
	}

	envs := make([]envelope, 0, len(values))
	for _, data := range values {
		env, err := r.decode(data)
		if err != nil {
			return nil, err
		}
		envs = append(envs, env)
	}
	slices.SortFunc(envs, func(a, b envelope) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return envs, nil
}

// decode restores canonical field values from the stored JSON.
func (r *Repository) decode(data []byte) (envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var env envelope
	if err := dec.Decode(&env); err != nil {
		return envelope{}, err
	}
	fields, err := r.Schema().Normalize(env.Fields, true)
	if err != nil {
		return envelope{}, err
	}
	env.Fields = fields
	return env, nil
}

func matchesAll(rec recordstore.Record, conditions []recordstore.Condition) bool {
	for _, c := range conditions {
		if !c.Matches(rec) {
			return false
		}
	}
	return true
}
