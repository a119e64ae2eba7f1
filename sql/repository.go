package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"recordstore"
)

// Repository provides SQL storage for one schema. The table has an "id"
// primary key column followed by one column per declared field.
type Repository struct {
	*recordstore.RepositoryBase
	service *Service
	columns []string
}

// Ensure Repository satisfies the store contracts.
var _ recordstore.Store = (*Repository)(nil)
var _ recordstore.Transactor = (*Repository)(nil)

// NewRepository creates a new schema-specific repository.
func NewRepository(service *Service, schema recordstore.Schema) *Repository {
	return &Repository{
		RepositoryBase: recordstore.NewRepositoryBase(schema),
		service:        service,
		columns:        append([]string{recordstore.IDField}, schema.Columns()...),
	}
}

// builder returns a statement builder using the dialect's placeholders.
func (r *Repository) builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(r.service.adapter.Placeholder())
}

// selectAll selects every column. Sequence ids follow insertion order, so
// ordering by id yields store order.
func (r *Repository) selectAll() sq.SelectBuilder {
	b := r.builder().Select(r.columns...).From(r.TableName())
	if r.Schema().Strategy() == recordstore.IDSequence {
		b = b.OrderBy(recordstore.IDField)
	}
	return b
}

// FindAll returns every record in store order.
func (r *Repository) FindAll(ctx context.Context) ([]recordstore.Record, error) {
	return r.query(ctx, "find_all", r.selectAll())
}

// FindByID retrieves a record by ID.
func (r *Repository) FindByID(ctx context.Context, id string) (recordstore.Record, bool, error) {
	if err := r.ValidateID(id); err != nil {
		return recordstore.Record{}, false, err
	}
	arg, ok := r.idArg(id)
	if !ok {
		return recordstore.Record{}, false, nil
	}

	ctx, cancel := r.service.WithTimeout(ctx)
	defer cancel()

	row, err := r.service.executor.QueryRow(ctx, r.selectAll().Where(sq.Eq{recordstore.IDField: arg}))
	if err != nil {
		return recordstore.Record{}, false, r.HandleGetError(err, "find_by_id")
	}
	rec, err := r.scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return recordstore.Record{}, false, nil
	}
	if err != nil {
		return recordstore.Record{}, false, r.HandleGetError(err, "find_by_id")
	}
	return rec, true, nil
}

// FindWhere returns the records matching every condition, in store order.
func (r *Repository) FindWhere(ctx context.Context, conditions ...recordstore.Condition) ([]recordstore.Record, error) {
	where, ok, err := r.where(conditions)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []recordstore.Record{}, nil
	}
	return r.query(ctx, "find_where", r.selectAll().Where(where))
}

// FindByField returns the records whose field equals value.
func (r *Repository) FindByField(ctx context.Context, field string, value any) ([]recordstore.Record, error) {
	return r.FindWhere(ctx, recordstore.Eq(field, value))
}

// ExistsByField reports whether any record's field equals value.
func (r *Repository) ExistsByField(ctx context.Context, field string, value any) (bool, error) {
	where, ok, err := r.where([]recordstore.Condition{recordstore.Eq(field, value)})
	if err != nil || !ok {
		return false, err
	}

	ctx, cancel := r.service.WithTimeout(ctx)
	defer cancel()

	exists, err := r.service.executor.Exists(ctx, r.builder().Select().From(r.TableName()).Where(where))
	if err != nil {
		return false, r.HandleGetError(err, "exists_by_field")
	}
	return exists, nil
}

// Save inserts a record without ID and overwrites the row of a record with one.
func (r *Repository) Save(ctx context.Context, rec recordstore.Record) (recordstore.Record, error) {
	rec, err := r.Normalize(rec)
	if err != nil {
		return recordstore.Record{}, err
	}

	ctx, cancel := r.service.WithTimeout(ctx)
	defer cancel()

	if rec.ID == "" {
		return r.insert(ctx, rec)
	}
	return r.update(ctx, rec)
}

func (r *Repository) insert(ctx context.Context, rec recordstore.Record) (recordstore.Record, error) {
	schema := r.Schema()

	var (
		cols []string
		vals []any
	)
	if schema.Strategy() == recordstore.IDUUID {
		rec.ID = uuid.NewString()
		cols = append(cols, recordstore.IDField)
		vals = append(vals, rec.ID)
	}
	for _, f := range schema.Fields {
		if v, ok := rec.Fields[f.Name]; ok {
			cols = append(cols, f.Name)
			vals = append(vals, columnArg(f, v))
		}
	}
	if len(cols) == 0 {
		// Not every dialect accepts an empty column list.
		cols = append(cols, schema.Fields[0].Name)
		vals = append(vals, nil)
	}

	stmt := r.builder().Insert(r.TableName()).Columns(cols...).Values(vals...)
	if rec.ID != "" {
		if _, err := r.service.executor.Exec(ctx, stmt); err != nil {
			return recordstore.Record{}, r.translate(err, rec, "insert")
		}
		return rec, nil
	}

	var id int64
	if r.service.adapter.SupportsReturning() {
		row, err := r.service.executor.QueryRow(ctx, stmt.Suffix("RETURNING "+recordstore.IDField))
		if err == nil {
			err = row.Scan(&id)
		}
		if err != nil {
			return recordstore.Record{}, r.translate(err, rec, "insert")
		}
	} else {
		res, err := r.service.executor.Exec(ctx, stmt)
		if err != nil {
			return recordstore.Record{}, r.translate(err, rec, "insert")
		}
		if id, err = res.LastInsertId(); err != nil {
			return recordstore.Record{}, r.HandleUpdateError(err, "last_insert_id")
		}
	}
	rec.ID = strconv.FormatInt(id, 10)
	return rec, nil
}

func (r *Repository) update(ctx context.Context, rec recordstore.Record) (recordstore.Record, error) {
	arg, ok := r.idArg(rec.ID)
	if !ok {
		return recordstore.Record{}, r.NotFound(rec.ID)
	}

	set := make(map[string]any, len(r.Schema().Fields))
	for _, f := range r.Schema().Fields {
		set[f.Name] = columnArg(f, rec.Fields[f.Name])
	}

	stmt := r.builder().Update(r.TableName()).SetMap(set).Where(sq.Eq{recordstore.IDField: arg})
	res, err := r.service.executor.Exec(ctx, stmt)
	if err != nil {
		return recordstore.Record{}, r.translate(err, rec, "update")
	}
	if err := r.expectRows(res, rec.ID, "update"); err != nil {
		return recordstore.Record{}, err
	}
	return rec, nil
}

// Delete removes the row carrying rec.ID.
func (r *Repository) Delete(ctx context.Context, rec recordstore.Record) error {
	return r.DeleteByID(ctx, rec.ID)
}

// DeleteByID removes a row by ID.
func (r *Repository) DeleteByID(ctx context.Context, id string) error {
	if err := r.ValidateID(id); err != nil {
		return err
	}
	arg, ok := r.idArg(id)
	if !ok {
		return r.NotFound(id)
	}

	ctx, cancel := r.service.WithTimeout(ctx)
	defer cancel()

	res, err := r.service.executor.Exec(ctx, r.builder().Delete(r.TableName()).Where(sq.Eq{recordstore.IDField: arg}))
	if err != nil {
		return r.HandleUpdateError(err, "delete")
	}
	return r.expectRows(res, id, "delete")
}

// DeleteAll removes every row. DELETE is used instead of TRUNCATE so that
// identity sequences keep counting and ids are never reused.
func (r *Repository) DeleteAll(ctx context.Context) error {
	ctx, cancel := r.service.WithTimeout(ctx)
	defer cancel()

	if _, err := r.service.executor.Exec(ctx, r.builder().Delete(r.TableName())); err != nil {
		return r.HandleUpdateError(err, "delete_all")
	}
	return nil
}

// WithTx runs fn inside a transaction shared by all repositories of the service.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context) error) error {
	return r.service.WithTx(ctx, fn)
}

// WithReadTx runs fn inside a read-only transaction.
func (r *Repository) WithReadTx(ctx context.Context, fn func(context.Context) error) error {
	return r.service.WithReadTx(ctx, fn)
}

// Service returns the underlying SQL service.
func (r *Repository) Service() *Service { return r.service }

func (r *Repository) query(ctx context.Context, op string, stmt sq.SelectBuilder) ([]recordstore.Record, error) {
	ctx, cancel := r.service.WithTimeout(ctx)
	defer cancel()

	rows, err := r.service.executor.Query(ctx, stmt)
	if err != nil {
		return nil, r.HandleGetError(err, op)
	}
	defer rows.Close()

	records := make([]recordstore.Record, 0)
	for rows.Next() {
		rec, err := r.scanRecord(rows.Scan)
		if err != nil {
			return nil, r.HandleGetError(err, op)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, r.HandleGetError(err, op)
	}
	return records, nil
}

// scanRecord scans one row in column order. NULL columns are left out of the
// record.
func (r *Repository) scanRecord(scan func(dest ...any) error) (recordstore.Record, error) {
	values := make([]any, len(r.columns))
	dest := make([]any, len(r.columns))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := scan(dest...); err != nil {
		return recordstore.Record{}, err
	}

	rec := recordstore.NewRecord(make(map[string]any, len(r.columns)-1))
	id, err := idString(values[0])
	if err != nil {
		return recordstore.Record{}, err
	}
	rec.ID = id

	for i, col := range r.columns[1:] {
		raw := values[i+1]
		if raw == nil {
			continue
		}
		v, err := r.Schema().NormalizeValue(col, raw)
		if err != nil {
			return recordstore.Record{}, fmt.Errorf("column %s: %w", col, err)
		}
		rec.Fields[col] = v
	}
	return rec, nil
}

// where converts conditions to a squirrel predicate. It reports false when a
// condition can never match, such as a non-numeric id against a sequence key.
func (r *Repository) where(conditions []recordstore.Condition) (sq.Eq, bool, error) {
	conditions, err := r.NormalizeConditions(conditions)
	if err != nil {
		return nil, false, err
	}

	eq := make(sq.Eq, len(conditions))
	for _, c := range conditions {
		if c.Field == recordstore.IDField {
			arg, ok := r.idArg(c.Value.(string))
			if !ok {
				return nil, false, nil
			}
			eq[c.Field] = arg
			continue
		}
		f, _ := r.Schema().Field(c.Field)
		eq[c.Field] = columnArg(f, c.Value)
	}
	return eq, true, nil
}

// idArg converts an id to its column value.
func (r *Repository) idArg(id string) (any, bool) {
	if r.Schema().Strategy() == recordstore.IDUUID {
		return id, true
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, false
	}
	return n, true
}

func (r *Repository) expectRows(res sql.Result, id, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return r.HandleUpdateError(err, op)
	}
	if n == 0 {
		return r.NotFound(id)
	}
	return nil
}

// translate maps constraint violations raised by the database to domain errors.
func (r *Repository) translate(err error, rec recordstore.Record, op string) error {
	adpt := r.service.adapter
	switch {
	case adpt.IsUniqueConstraintViolation(err):
		field := r.conflictField(err, rec)
		return recordstore.NewConflictError(r.EntityName(), field, rec.Fields[field])
	case adpt.IsForeignKeyViolation(err):
		return recordstore.NewValidationError("referenced record does not exist")
	}
	return r.HandleUpdateError(err, op)
}

// conflictField picks the unique field named by the driver message, falling
// back to the first unique field present on the record.
func (r *Repository) conflictField(err error, rec recordstore.Record) string {
	msg := err.Error()
	unique := r.Schema().UniqueFields()
	for _, f := range unique {
		if strings.Contains(msg, f.Name) {
			return f.Name
		}
	}
	for _, f := range unique {
		if rec.Has(f.Name) {
			return f.Name
		}
	}
	return recordstore.IDField
}

// columnArg converts a canonical value to a driver argument. Reference ids
// that look numeric are sent as integers to match sequence keys.
func columnArg(f recordstore.Field, v any) any {
	if s, ok := v.(string); ok && f.Type == recordstore.TypeReference {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	}
	return v
}

func idString(v any) (string, error) {
	switch id := v.(type) {
	case int64:
		return strconv.FormatInt(id, 10), nil
	case []byte:
		return string(id), nil
	case string:
		return id, nil
	default:
		return "", fmt.Errorf("unexpected id type %T", v)
	}
}
