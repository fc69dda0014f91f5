package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePageToken(t *testing.T) {
	good, err := EncodeCursor(Cursor{ID: "1780000000000000000"})
	require.NoError(t, err)
	zero, err := EncodeCursor(Cursor{ID: "0"})
	require.NoError(t, err)
	word, err := EncodeCursor(Cursor{ID: "abc"})
	require.NoError(t, err)

	assert.NoError(t, Pagination{}.Validate())
	assert.NoError(t, Pagination{PageToken: good}.Validate())

	for _, token := range []string{"%%%", "bm90LWpzb24=", zero, word} {
		assert.ErrorIs(t, Pagination{PageToken: token}.Validate(), ErrInvalidPageToken, token)
	}
}

func TestNormalizeClampsPageSize(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Normalize().PageSize)
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 10_000}.Normalize().PageSize)
	assert.Equal(t, 7, Pagination{PageSize: 7}.Normalize().PageSize)
}
