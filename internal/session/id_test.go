package session

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator_ValidFormat(t *testing.T) {
	id := UUIDv7Generator{}.Generate()

	assert.Len(t, id, 36)
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestUUIDv7Generator_Sortable(t *testing.T) {
	gen := UUIDv7Generator{}
	prev := gen.Generate()
	for range 100 {
		next := gen.Generate()
		assert.Greater(t, next, prev, "v7 ids sort by creation time")
		prev = next
	}
}
