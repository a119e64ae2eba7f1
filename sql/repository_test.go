package sqlstore

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordstore"
)

var sellerSchema = recordstore.Schema{
	Name: "sellers",
	Fields: []recordstore.Field{
		{Name: "name", Type: recordstore.TypeString, Required: true},
		{Name: "email", Type: recordstore.TypeString, Unique: true},
		{Name: "rating", Type: recordstore.TypeInteger},
		{Name: "balance", Type: recordstore.TypeDecimal},
		{Name: "active", Type: recordstore.TypeBoolean},
	},
}

var productSchema = recordstore.Schema{
	Name: "products",
	Fields: []recordstore.Field{
		{Name: "name", Type: recordstore.TypeString, Required: true},
		{Name: "seller_id", Type: recordstore.TypeReference, Ref: "sellers", OnDelete: recordstore.OnDeleteCascade},
	},
}

var tokenSchema = recordstore.Schema{
	Name:       "tokens",
	IDStrategy: recordstore.IDUUID,
	Fields: []recordstore.Field{
		{Name: "label", Type: recordstore.TypeString},
	},
}

const testDDL = `
CREATE TABLE sellers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	email TEXT UNIQUE,
	rating INTEGER,
	balance TEXT,
	active BOOLEAN
);
CREATE TABLE products (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	seller_id INTEGER REFERENCES sellers(id) ON DELETE CASCADE
);
CREATE TABLE tokens (
	id TEXT PRIMARY KEY,
	label TEXT
);`

func openSQLite(t *testing.T) *Service {
	t.Helper()
	cfg := recordstore.NewConfig(recordstore.SQLiteOptions("")...)
	svc, err := OpenWithName(context.Background(), "sqlite", &cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	require.NoError(t, svc.ExecuteSQL(context.Background(), testDDL))
	return svc
}

func TestRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := openSQLite(t).Repository(sellerSchema)

	saved, err := repo.Save(ctx, recordstore.NewRecord(map[string]any{
		"name":    "Alice",
		"email":   "alice@example.com",
		"rating":  5,
		"balance": "12.50",
		"active":  true,
	}))
	require.NoError(t, err)
	assert.Equal(t, "1", saved.ID)
	assert.Equal(t, "12.5", saved.Fields["balance"])

	got, ok, err := repo.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, saved, got)
}

func TestRepositoryNullsAreOmitted(t *testing.T) {
	ctx := context.Background()
	repo := openSQLite(t).Repository(sellerSchema)

	saved, err := repo.Save(ctx, recordstore.NewRecord(map[string]any{"name": "Bob", "email": nil}))
	require.NoError(t, err)

	got, ok, err := repo.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"name": "Bob"}, got.Fields)
}

func TestRepositoryFindByIDMissing(t *testing.T) {
	ctx := context.Background()
	repo := openSQLite(t).Repository(sellerSchema)

	for _, id := range []string{"42", "not-a-number"} {
		_, ok, err := repo.FindByID(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok, id)
	}

	_, _, err := repo.FindByID(ctx, "")
	assert.True(t, recordstore.IsValidationError(err))
}

func TestRepositoryFindAllOrderAndEmpty(t *testing.T) {
	ctx := context.Background()
	repo := openSQLite(t).Repository(sellerSchema)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)

	for _, name := range []string{"c", "a", "b"} {
		_, err := repo.Save(ctx, recordstore.NewRecord(map[string]any{"name": name}))
		require.NoError(t, err)
	}
	all, err = repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].Fields["name"])
	assert.Equal(t, "b", all[2].Fields["name"])
}

func TestRepositoryFindByField(t *testing.T) {
	ctx := context.Background()
	repo := openSQLite(t).Repository(sellerSchema)

	_, err := repo.Save(ctx, recordstore.NewRecord(map[string]any{"name": "A", "email": "a@x.com", "rating": 3}))
	require.NoError(t, err)
	_, err = repo.Save(ctx, recordstore.NewRecord(map[string]any{"name": "B", "email": "b@x.com", "rating": 3}))
	require.NoError(t, err)

	found, err := repo.FindByField(ctx, "rating", "3")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	exists, err := repo.ExistsByField(ctx, "email", "b@x.com")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByField(ctx, "email", "c@x.com")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = repo.FindByField(ctx, "nope", "x")
	assert.True(t, recordstore.IsValidationError(err))
}

func TestRepositoryUniqueViolationIsConflict(t *testing.T) {
	ctx := context.Background()
	repo := openSQLite(t).Repository(sellerSchema)

	_, err := repo.Save(ctx, recordstore.NewRecord(map[string]any{"name": "A", "email": "a@x.com"}))
	require.NoError(t, err)

	_, err = repo.Save(ctx, recordstore.NewRecord(map[string]any{"name": "B", "email": "a@x.com"}))
	require.Error(t, err)

	var conflict *recordstore.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "email", conflict.Field)
	assert.Contains(t, err.Error(), "a@x.com")
}

func TestRepositoryUpdate(t *testing.T) {
	ctx := context.Background()
	repo := openSQLite(t).Repository(sellerSchema)

	saved, err := repo.Save(ctx, recordstore.NewRecord(map[string]any{"name": "A", "rating": 1}))
	require.NoError(t, err)

	saved.Fields["name"] = "A2"
	delete(saved.Fields, "rating")
	_, err = repo.Save(ctx, saved)
	require.NoError(t, err)

	got, _, err := repo.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "A2"}, got.Fields)

	gone := recordstore.Record{ID: "77", Fields: map[string]any{"name": "X"}}
	_, err = repo.Save(ctx, gone)
	assert.True(t, recordstore.IsNotFoundError(err))
}

func TestRepositoryDelete(t *testing.T) {
	ctx := context.Background()
	repo := openSQLite(t).Repository(sellerSchema)

	saved, err := repo.Save(ctx, recordstore.NewRecord(map[string]any{"name": "A"}))
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, saved))
	assert.True(t, recordstore.IsNotFoundError(repo.DeleteByID(ctx, saved.ID)))
	assert.True(t, recordstore.IsNotFoundError(repo.DeleteByID(ctx, "abc")))
}

func TestRepositoryIDsNeverReused(t *testing.T) {
	ctx := context.Background()
	repo := openSQLite(t).Repository(sellerSchema)

	for range 2 {
		_, err := repo.Save(ctx, recordstore.NewRecord(map[string]any{"name": "x"}))
		require.NoError(t, err)
	}
	require.NoError(t, repo.DeleteAll(ctx))
	require.NoError(t, repo.DeleteAll(ctx))

	saved, err := repo.Save(ctx, recordstore.NewRecord(map[string]any{"name": "y"}))
	require.NoError(t, err)
	assert.Equal(t, "3", saved.ID)
}

func TestRepositoryForeignKeys(t *testing.T) {
	ctx := context.Background()
	svc := openSQLite(t)
	sellers := svc.Repository(sellerSchema)
	products := svc.Repository(productSchema)

	_, err := products.Save(ctx, recordstore.NewRecord(map[string]any{"name": "P", "seller_id": "99"}))
	assert.True(t, recordstore.IsValidationError(err))

	s, err := sellers.Save(ctx, recordstore.NewRecord(map[string]any{"name": "S"}))
	require.NoError(t, err)
	p, err := products.Save(ctx, recordstore.NewRecord(map[string]any{"name": "P", "seller_id": s.ID}))
	require.NoError(t, err)
	assert.Equal(t, s.ID, p.Fields["seller_id"])

	byRef, err := products.FindByField(ctx, "seller_id", s.ID)
	require.NoError(t, err)
	assert.Len(t, byRef, 1)

	require.NoError(t, sellers.DeleteByID(ctx, s.ID))
	all, err := products.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRepositoryUUIDStrategy(t *testing.T) {
	ctx := context.Background()
	repo := openSQLite(t).Repository(tokenSchema)

	saved, err := repo.Save(ctx, recordstore.NewRecord(map[string]any{"label": "t"}))
	require.NoError(t, err)
	assert.Len(t, saved.ID, 36)

	got, ok, err := repo.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, saved, got)
}

func TestTransactionRollback(t *testing.T) {
	ctx := context.Background()
	svc := openSQLite(t)
	repo := svc.Repository(sellerSchema)

	boom := errors.New("boom")
	err := recordstore.RunTx(ctx, repo, func(ctx context.Context) error {
		if _, err := repo.Save(ctx, recordstore.NewRecord(map[string]any{"name": "A"})); err != nil {
			return err
		}
		return boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	err = svc.WithTx(ctx, func(ctx context.Context) error {
		_, err := repo.Save(ctx, recordstore.NewRecord(map[string]any{"name": "B"}))
		return err
	})
	require.NoError(t, err)
	all, err = repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	cfg := recordstore.NewConfig(recordstore.SQLiteOptions("")...)
	svc, err := OpenWithName(ctx, "sqlite", &cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	fsys := fstest.MapFS{
		"migrations/00001_widgets.sql": {Data: []byte(`-- +goose Up
CREATE TABLE widgets (id INTEGER PRIMARY KEY AUTOINCREMENT, label TEXT);

-- +goose Down
DROP TABLE widgets;
`)},
	}

	version, err := Migrate(ctx, svc, fsys, "migrations")
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	widgets := svc.Repository(recordstore.Schema{
		Name:   "widgets",
		Fields: []recordstore.Field{{Name: "label", Type: recordstore.TypeString}},
	})
	_, err = widgets.Save(ctx, recordstore.NewRecord(map[string]any{}))
	require.NoError(t, err)

	version, err = Migrate(ctx, svc, fsys, "migrations")
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}
