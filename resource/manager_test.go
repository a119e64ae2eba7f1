package resource

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordstore"
	kvstore "recordstore/kv"
)

var sellers = recordstore.Schema{
	Name: "sellers",
	Fields: []recordstore.Field{
		{Name: "name", Type: recordstore.TypeString, Required: true},
		{Name: "email", Type: recordstore.TypeString, Required: true, Unique: true},
		{Name: "phone", Type: recordstore.TypeString},
		{Name: "rating", Type: recordstore.TypeInteger},
	},
}

func openService(t *testing.T) *kvstore.Service {
	t.Helper()
	cfg := recordstore.NewConfig(recordstore.MemoryOptions()...)
	svc, err := kvstore.OpenWithName(context.Background(), "memory", &cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func newSellers(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	return NewManager(sellers, openService(t).NewRepository(sellers), opts...)
}

func seller(name, email string) recordstore.Record {
	return recordstore.NewRecord(map[string]any{"name": name, "email": email})
}

func TestCreateRejectsDuplicateUniqueValue(t *testing.T) {
	ctx := context.Background()
	m := newSellers(t)

	first, err := m.Create(ctx, seller("Ann", "a@x.com"))
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	_, err = m.Create(ctx, seller("Bob", "a@x.com"))
	require.Error(t, err)
	assert.ErrorIs(t, err, recordstore.ErrConflict)
	assert.Contains(t, err.Error(), "a@x.com")

	all, err := m.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMissingIDsAreNotFound(t *testing.T) {
	ctx := context.Background()
	m := newSellers(t)

	_, err := m.ReadByID(ctx, "99")
	assert.ErrorIs(t, err, recordstore.ErrNotFound)

	err = m.UpdateByID(ctx, "99", map[string]any{"name": "X"})
	assert.ErrorIs(t, err, recordstore.ErrNotFound)

	err = m.DeleteByID(ctx, "99")
	assert.ErrorIs(t, err, recordstore.ErrNotFound)

	_, err = m.ReadByID(ctx, "")
	assert.ErrorIs(t, err, recordstore.ErrNotFound)
}

func TestCreateReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := newSellers(t)

	created, err := m.Create(ctx, recordstore.NewRecord(map[string]any{
		"name":   "Ann",
		"email":  "a@x.com",
		"phone":  "555-0100",
		"rating": 4,
	}))
	require.NoError(t, err)

	got, err := m.ReadByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, map[string]any{
		"name":   "Ann",
		"email":  "a@x.com",
		"phone":  "555-0100",
		"rating": int64(4),
	}, got.Fields)
}

func TestCreateIgnoresSuppliedID(t *testing.T) {
	ctx := context.Background()
	m := newSellers(t)

	rec := seller("Ann", "a@x.com")
	rec.ID = "500"
	created, err := m.Create(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, "1", created.ID)
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	m := newSellers(t)

	tests := []struct {
		name   string
		fields map[string]any
	}{
		{"missing required", map[string]any{"email": "a@x.com"}},
		{"unknown field", map[string]any{"name": "A", "email": "a@x.com", "age": 3}},
		{"wrong type", map[string]any{"name": "A", "email": "a@x.com", "rating": "many"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Create(ctx, recordstore.NewRecord(tt.fields))
			assert.ErrorIs(t, err, recordstore.ErrValidation)
		})
	}
}

func TestDeleteAllIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := newSellers(t)

	_, err := m.Create(ctx, seller("Ann", "a@x.com"))
	require.NoError(t, err)

	for range 2 {
		require.NoError(t, m.DeleteAll(ctx))
		all, err := m.ReadAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
		assert.NotNil(t, all)
	}
}

func TestUpdateByIDChangesOnlyNamedFields(t *testing.T) {
	ctx := context.Background()
	m := newSellers(t)

	created, err := m.Create(ctx, recordstore.NewRecord(map[string]any{
		"name": "Ann", "email": "a@x.com", "phone": "1",
	}))
	require.NoError(t, err)

	require.NoError(t, m.UpdateByID(ctx, created.ID, map[string]any{"name": "X"}))

	got, err := m.ReadByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "X", "email": "a@x.com", "phone": "1"}, got.Fields)
}

func TestUpdateByIDClearsFieldWithNull(t *testing.T) {
	ctx := context.Background()
	m := newSellers(t)

	created, err := m.Create(ctx, recordstore.NewRecord(map[string]any{
		"name": "Ann", "email": "a@x.com", "phone": "1",
	}))
	require.NoError(t, err)

	require.NoError(t, m.UpdateByID(ctx, created.ID, map[string]any{"phone": nil}))
	got, err := m.ReadByID(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, got.Has("phone"))

	err = m.UpdateByID(ctx, created.ID, map[string]any{"name": nil})
	assert.ErrorIs(t, err, recordstore.ErrValidation)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	m := newSellers(t)

	ann, err := m.Create(ctx, seller("Ann", "a@x.com"))
	require.NoError(t, err)
	_, err = m.Create(ctx, seller("Bob", "b@x.com"))
	require.NoError(t, err)

	t.Run("by id", func(t *testing.T) {
		updated, err := m.Update(ctx, recordstore.Record{ID: ann.ID, Fields: map[string]any{"phone": "2"}})
		require.NoError(t, err)
		require.Len(t, updated, 1)
		assert.Equal(t, "2", updated[0].Fields["phone"])
		assert.Equal(t, "Ann", updated[0].Fields["name"])
	})

	t.Run("by unique field", func(t *testing.T) {
		updated, err := m.Update(ctx, recordstore.NewRecord(map[string]any{"email": "b@x.com", "name": "Robert"}))
		require.NoError(t, err)
		require.Len(t, updated, 1)
		assert.Equal(t, "Robert", updated[0].Fields["name"])
	})

	t.Run("no match", func(t *testing.T) {
		_, err := m.Update(ctx, recordstore.NewRecord(map[string]any{"email": "z@x.com", "name": "Z"}))
		assert.ErrorIs(t, err, recordstore.ErrNotFound)

		_, err = m.Update(ctx, recordstore.Record{ID: "42", Fields: map[string]any{"name": "Z"}})
		assert.ErrorIs(t, err, recordstore.ErrNotFound)
	})

	t.Run("no identity", func(t *testing.T) {
		_, err := m.Update(ctx, recordstore.NewRecord(map[string]any{"name": "Z"}))
		assert.ErrorIs(t, err, recordstore.ErrValidation)
	})

	t.Run("unique collision", func(t *testing.T) {
		_, err := m.Update(ctx, recordstore.Record{ID: ann.ID, Fields: map[string]any{"email": "b@x.com"}})
		assert.ErrorIs(t, err, recordstore.ErrConflict)

		err = m.UpdateByID(ctx, ann.ID, map[string]any{"email": "b@x.com"})
		assert.ErrorIs(t, err, recordstore.ErrConflict)
	})

	t.Run("keeping own unique value", func(t *testing.T) {
		err := m.UpdateByID(ctx, ann.ID, map[string]any{"email": "a@x.com", "name": "Anne"})
		require.NoError(t, err)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	m := newSellers(t)

	ann, err := m.Create(ctx, seller("Ann", "a@x.com"))
	require.NoError(t, err)
	bob, err := m.Create(ctx, seller("Bob", "b@x.com"))
	require.NoError(t, err)

	removed, err := m.Delete(ctx, recordstore.Record{ID: ann.ID})
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, ann, removed[0])

	removed, err = m.Delete(ctx, recordstore.NewRecord(map[string]any{"email": "b@x.com"}))
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, bob.ID, removed[0].ID)

	_, err = m.Delete(ctx, recordstore.Record{ID: ann.ID})
	assert.ErrorIs(t, err, recordstore.ErrNotFound)
}

func TestFindBy(t *testing.T) {
	ctx := context.Background()
	m := newSellers(t)

	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		rec := seller("Same", email)
		rec.Fields["rating"] = 5
		_, err := m.Create(ctx, rec)
		require.NoError(t, err)
	}

	found, err := m.FindBy(ctx, "rating", 5)
	require.NoError(t, err)
	assert.Len(t, found, 3)

	found, err = m.FindBy(ctx, "email", "b@x.com")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "2", found[0].ID)

	found, err = m.FindBy(ctx, "id", "3")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	found, err = m.FindBy(ctx, "email", "none@x.com")
	require.NoError(t, err)
	assert.NotNil(t, found)
	assert.Empty(t, found)

	_, err = m.FindBy(ctx, "nope", 1)
	assert.ErrorIs(t, err, recordstore.ErrValidation)
}

func TestFindWhereMatchesEveryCondition(t *testing.T) {
	ctx := context.Background()
	images := recordstore.Schema{
		Name: "images",
		Fields: []recordstore.Field{
			{Name: "product_id", Type: recordstore.TypeInteger, Required: true},
			{Name: "image_url", Type: recordstore.TypeString, Required: true},
			{Name: "is_primary", Type: recordstore.TypeBoolean},
		},
	}
	m := NewManager(images, openService(t).NewRepository(images))

	for _, fields := range []map[string]any{
		{"product_id": 1, "image_url": "a.png", "is_primary": true},
		{"product_id": 1, "image_url": "b.png", "is_primary": false},
		{"product_id": 2, "image_url": "c.png", "is_primary": true},
	} {
		_, err := m.Create(ctx, recordstore.NewRecord(fields))
		require.NoError(t, err)
	}

	found, err := m.FindWhere(ctx, recordstore.Eq("product_id", "1"), recordstore.Eq("is_primary", "true"))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "a.png", found[0].Fields["image_url"])

	found, err = m.FindWhere(ctx, recordstore.Eq("product_id", 1))
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = m.FindWhere(ctx, recordstore.Eq("product_id", 2), recordstore.Eq("is_primary", false))
	require.NoError(t, err)
	assert.NotNil(t, found)
	assert.Empty(t, found)

	found, err = m.FindWhere(ctx)
	require.NoError(t, err)
	assert.Len(t, found, 3)

	_, err = m.FindWhere(ctx, recordstore.Eq("product_id", 1), recordstore.Eq("size", 3))
	assert.ErrorIs(t, err, recordstore.ErrValidation)
}

func TestSellerScenario(t *testing.T) {
	ctx := context.Background()
	m := newSellers(t)

	first, err := m.Create(ctx, seller("Ann", "a@x.com"))
	require.NoError(t, err)

	_, err = m.Create(ctx, seller("Ann Again", "a@x.com"))
	require.True(t, recordstore.IsConflictError(err))

	all, err := m.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, m.DeleteByID(ctx, first.ID))
	_, err = m.ReadByID(ctx, first.ID)
	assert.True(t, recordstore.IsNotFoundError(err))
}

func TestCustomUniqueChecker(t *testing.T) {
	ctx := context.Background()
	calls := 0
	m := newSellers(t, WithUniqueChecker(UniqueCheckerFunc(
		func(ctx context.Context, schema recordstore.Schema, store recordstore.Store, rec recordstore.Record) error {
			calls++
			return nil
		})))

	_, err := m.Create(ctx, seller("Ann", "a@x.com"))
	require.NoError(t, err)
	_, err = m.Create(ctx, seller("Bob", "a@x.com"))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

// failingStore fails every operation as an unreachable backend would.
type failingStore struct{ err error }

func (s failingStore) Schema() recordstore.Schema { return sellers }
func (s failingStore) FindAll(context.Context) ([]recordstore.Record, error) {
	return nil, s.err
}
func (s failingStore) FindByID(context.Context, string) (recordstore.Record, bool, error) {
	return recordstore.Record{}, false, s.err
}
func (s failingStore) FindWhere(context.Context, ...recordstore.Condition) ([]recordstore.Record, error) {
	return nil, s.err
}
func (s failingStore) FindByField(context.Context, string, any) ([]recordstore.Record, error) {
	return nil, s.err
}
func (s failingStore) ExistsByField(context.Context, string, any) (bool, error) {
	return false, s.err
}
func (s failingStore) Save(context.Context, recordstore.Record) (recordstore.Record, error) {
	return recordstore.Record{}, s.err
}
func (s failingStore) Delete(context.Context, recordstore.Record) error { return s.err }
func (s failingStore) DeleteByID(context.Context, string) error         { return s.err }
func (s failingStore) DeleteAll(context.Context) error                  { return s.err }

func TestStoreFaultsPropagate(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("connection refused")
	m := NewManager(sellers, failingStore{err: cause})

	_, err := m.ReadAll(ctx)
	assert.ErrorIs(t, err, recordstore.ErrStoreFault)
	assert.ErrorIs(t, err, cause)

	_, err = m.Create(ctx, seller("Ann", "a@x.com"))
	assert.ErrorIs(t, err, recordstore.ErrStoreFault)

	_, err = m.ReadByID(ctx, "1")
	assert.ErrorIs(t, err, recordstore.ErrStoreFault)

	err = m.DeleteAll(ctx)
	assert.ErrorIs(t, err, recordstore.ErrStoreFault)
	assert.False(t, recordstore.IsNotFoundError(err))
}
