package kvstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordstore"
	"recordstore/kv/adapter"
)

var sellerSchema = recordstore.Schema{
	Name: "sellers",
	Fields: []recordstore.Field{
		{Name: "name", Type: recordstore.TypeString, Required: true},
		{Name: "email", Type: recordstore.TypeString, Unique: true},
		{Name: "rating", Type: recordstore.TypeInteger},
	},
}

func openMemory(t *testing.T) *Service {
	t.Helper()
	cfg := recordstore.NewConfig(recordstore.MemoryOptions()...)
	svc, err := OpenWithName(context.Background(), "memory", &cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func seller(name, email string) recordstore.Record {
	return recordstore.NewRecord(map[string]any{"name": name, "email": email})
}

func TestRepositorySaveAndFind(t *testing.T) {
	ctx := context.Background()
	repo := openMemory(t).Repository(sellerSchema)

	saved, err := repo.Save(ctx, seller("Alice", "alice@example.com"))
	require.NoError(t, err)
	assert.Equal(t, "1", saved.ID)

	got, ok, err := repo.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, saved, got)

	_, ok, err = repo.FindByID(ctx, "99")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepositoryFindAllKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	repo := openMemory(t).Repository(sellerSchema)

	names := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"}
	for _, n := range names {
		_, err := repo.Save(ctx, seller(n, n+"@example.com"))
		require.NoError(t, err)
	}

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, len(names))
	for i, rec := range all {
		assert.Equal(t, names[i], rec.Fields["name"])
	}
}

func TestRepositoryFindAllEmpty(t *testing.T) {
	all, err := openMemory(t).Repository(sellerSchema).FindAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func TestRepositoryUpdate(t *testing.T) {
	ctx := context.Background()
	repo := openMemory(t).Repository(sellerSchema)

	first, err := repo.Save(ctx, seller("Alice", "alice@example.com"))
	require.NoError(t, err)
	_, err = repo.Save(ctx, seller("Bob", "bob@example.com"))
	require.NoError(t, err)

	first.Fields["name"] = "Alicia"
	_, err = repo.Save(ctx, first)
	require.NoError(t, err)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Alicia", all[0].Fields["name"], "update keeps position")

	_, err = repo.Save(ctx, recordstore.Record{ID: "42", Fields: map[string]any{"name": "Ghost"}})
	assert.True(t, recordstore.IsNotFoundError(err))
}

func TestRepositoryFindByField(t *testing.T) {
	ctx := context.Background()
	repo := openMemory(t).Repository(sellerSchema)

	_, err := repo.Save(ctx, recordstore.NewRecord(map[string]any{"name": "A", "email": "a@x", "rating": int64(5)}))
	require.NoError(t, err)
	_, err = repo.Save(ctx, recordstore.NewRecord(map[string]any{"name": "B", "email": "b@x", "rating": int64(5)}))
	require.NoError(t, err)

	matches, err := repo.FindByField(ctx, "rating", "5")
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	exists, err := repo.ExistsByField(ctx, "email", "b@x")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByField(ctx, "email", "c@x")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = repo.FindByField(ctx, "nickname", "x")
	assert.True(t, recordstore.IsValidationError(err))
}

func TestRepositoryDelete(t *testing.T) {
	ctx := context.Background()
	repo := openMemory(t).Repository(sellerSchema)

	saved, err := repo.Save(ctx, seller("Alice", "alice@example.com"))
	require.NoError(t, err)

	require.NoError(t, repo.DeleteByID(ctx, saved.ID))
	err = repo.DeleteByID(ctx, saved.ID)
	assert.ErrorIs(t, err, recordstore.ErrNotFound)

	err = repo.Delete(ctx, recordstore.Record{})
	assert.True(t, recordstore.IsValidationError(err))
}

func TestRepositoryIDsNeverReused(t *testing.T) {
	ctx := context.Background()
	repo := openMemory(t).Repository(sellerSchema)

	a, err := repo.Save(ctx, seller("A", "a@x"))
	require.NoError(t, err)
	b, err := repo.Save(ctx, seller("B", "b@x"))
	require.NoError(t, err)

	require.NoError(t, repo.DeleteByID(ctx, b.ID))
	require.NoError(t, repo.DeleteAll(ctx))
	require.NoError(t, repo.DeleteAll(ctx))

	c, err := repo.Save(ctx, seller("C", "c@x"))
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, c.ID)
	assert.NotEqual(t, b.ID, c.ID)
	assert.Equal(t, "3", c.ID)
}

func TestRepositoryUUIDStrategy(t *testing.T) {
	ctx := context.Background()
	schema := sellerSchema
	schema.Name = "tokens"
	schema.IDStrategy = recordstore.IDUUID
	repo := openMemory(t).Repository(schema)

	a, err := repo.Save(ctx, seller("A", "a@x"))
	require.NoError(t, err)
	b, err := repo.Save(ctx, seller("B", "b@x"))
	require.NoError(t, err)

	assert.Len(t, a.ID, 36)
	assert.NotEqual(t, a.ID, b.ID)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, a.ID, all[0].ID)
}

func TestRepositoryKeyPrefix(t *testing.T) {
	ctx := context.Background()
	cfg := recordstore.NewConfig(recordstore.MemoryOptions(recordstore.WithKeyPrefix("app:"))...)
	svc, err := Open(ctx, adapter.NewMemoryAdapter(), &cfg)
	require.NoError(t, err)

	_, err = svc.Repository(sellerSchema).Save(ctx, seller("A", "a@x"))
	require.NoError(t, err)

	keys, err := svc.Keys(ctx, "app:sellers:*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"app:sellers:seq", "app:sellers:rec:1"}, keys)
}
