package postgres

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullableHelpers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, sql.NullString{}, nullableString(""))
	assert.Equal(t, sql.NullString{String: "BOS", Valid: true}, nullableString("BOS"))
	assert.Equal(t, sql.NullInt64{}, nullableInt64(0))
	assert.Equal(t, sql.NullInt64{Int64: 1610612738, Valid: true}, nullableInt64(1610612738))

	assert.Equal(t, "", nullStringToString(sql.NullString{}))
	assert.Equal(t, "BOS", nullStringToString(sql.NullString{String: "BOS", Valid: true}))
	assert.Equal(t, int64(0), nullInt64ToInt64(sql.NullInt64{}))
	assert.Equal(t, int64(7), nullInt64ToInt64(sql.NullInt64{Int64: 7, Valid: true}))
}

func TestEncodeJSONMap(t *testing.T) {
	t.Parallel()

	assert.Nil(t, encodeJSONMap(nil), "nil map must store SQL NULL")
	assert.Nil(t, encodeJSONMap(map[string]any{}))

	raw := encodeJSONMap(map[string]any{"no_data": true, "total_rows": 26})
	require.NotNil(t, raw)

	decoded := decodeJSONMap(raw)
	require.NotNil(t, decoded)
	assert.Equal(t, true, decoded["no_data"])
	assert.EqualValues(t, 26, decoded["total_rows"])
}

func TestDecodeJSONMap(t *testing.T) {
	t.Parallel()

	assert.Nil(t, decodeJSONMap(nil))
	assert.Nil(t, decodeJSONMap([]byte(`not json`)))

	decoded := decodeJSONMap([]byte(`{"entity": "teams"}`))
	require.NotNil(t, decoded)
	assert.Equal(t, "teams", decoded["entity"])
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	assert.True(t, isNotFound(sql.ErrNoRows))
	assert.False(t, isNotFound(errors.New("connection reset")))
	assert.False(t, isNotFound(nil))
}
