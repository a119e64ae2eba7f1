package recordstore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordJSON(t *testing.T) {
	rec := Record{ID: "4", Fields: map[string]any{"name": "Alice", "rating": int64(5)}}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"4","name":"Alice","rating":5}`, string(data))

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "4", back.ID)
	assert.Equal(t, "Alice", back.Fields["name"])
	assert.Equal(t, json.Number("5"), back.Fields["rating"])
}

func TestRecordUnmarshalNumericID(t *testing.T) {
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(`{"id": 12, "name": "x"}`), &rec))
	assert.Equal(t, "12", rec.ID)
	assert.NotContains(t, rec.Fields, "id")

	assert.Error(t, json.Unmarshal([]byte(`{"id": 1.5}`), &rec))
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &rec))
	assert.Error(t, json.Unmarshal([]byte(`null`), &rec))
}

func TestRecordMerge(t *testing.T) {
	rec := Record{ID: "1", Fields: map[string]any{"name": "Alice", "phone": "123"}}
	merged := rec.Merge(map[string]any{"phone": "456"})

	assert.Equal(t, "1", merged.ID)
	assert.Equal(t, "Alice", merged.Fields["name"])
	assert.Equal(t, "456", merged.Fields["phone"])
	assert.Equal(t, "123", rec.Fields["phone"], "original must be untouched")
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, NewConfig().Validate())
	assert.NoError(t, NewConfig(SQLiteOptions("")...).Validate())
	assert.NoError(t, NewConfig(RedisOptions("localhost", 6379)...).Validate())

	err := NewConfig(WithType(TypePostgres)).Validate()
	assert.True(t, IsConfigError(err))

	err = NewConfig(WithType("oracle")).Validate()
	assert.ErrorIs(t, err, ErrInvalidConfig)

	err = NewConfig(WithPort(70000)).Validate()
	assert.Error(t, err)

	assert.True(t, NewConfig(MySQLOptions("shop", "u", "p")...).IsSQL())
	assert.False(t, NewConfig(MemoryOptions()...).IsSQL())
}
