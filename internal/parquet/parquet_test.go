package parquet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turbolytics/resultset/pkg/persistence"
)

func TestEncoder(t *testing.T) {
	t.Run("requires schema", func(t *testing.T) {
		_, err := New()
		assert.Error(t, err)
	})

	e, err := New(WithSchema(Schema{
		{Name: "id", Type: "INT64", RepetitionType: "REQUIRED"},
		{Name: "name", Type: "BYTE_ARRAY", ConvertedType: "UTF8", RepetitionType: "OPTIONAL"},
	}))
	require.NoError(t, err)

	t.Run("records", func(t *testing.T) {
		c := persistence.NewResultCollection(
			persistence.NewRecord([]string{"id", "name"}, []any{int64(1), "alice"}),
			persistence.NewRecord([]string{"id", "name"}, []any{int64(2), nil}),
		)

		bs, err := e.Encode(c)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(bs, []byte("PAR1")))
		assert.True(t, bytes.HasSuffix(bs, []byte("PAR1")))
	})

	t.Run("hydrated items are rejected", func(t *testing.T) {
		c := persistence.NewResultCollection(struct{ ID int }{ID: 1})
		_, err := e.Encode(c)
		assert.ErrorIs(t, err, persistence.ErrCanOnlyHydrateFromRecord)
	})
}
