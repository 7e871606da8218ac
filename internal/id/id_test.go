package id

import (
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isURLSafe(r rune) bool {
	return (r >= 'A' && r <= 'Z') ||
		(r >= 'a' && r <= 'z') ||
		(r >= '0' && r <= '9') ||
		r == '_' || r == '-'
}

func TestGenerate_Format(t *testing.T) {
	for _, prefix := range []string{"conn", "sse", "ws"} {
		t.Run(prefix, func(t *testing.T) {
			id, err := Generate(prefix)
			require.NoError(t, err)

			require.True(t, strings.HasPrefix(id, prefix+"-"))
			nanoidPart := strings.TrimPrefix(id, prefix+"-")
			assert.Len(t, nanoidPart, 21)
			for _, r := range nanoidPart {
				assert.True(t, isURLSafe(r), "character %c should be URL-safe", r)
			}
		})
	}
}

func TestGenerate_Uniqueness(t *testing.T) {
	ids := make(map[string]bool)
	for range 1000 {
		id := MustGenerate("conn")
		assert.False(t, ids[id], "ID should be unique: %s", id)
		ids[id] = true
	}
}

func TestSecret(t *testing.T) {
	a, err := Secret()
	require.NoError(t, err)
	b, err := Secret()
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestEventID_Sortable(t *testing.T) {
	first := EventID()
	second := EventID()

	_, err := ulid.Parse(first)
	require.NoError(t, err)
	assert.LessOrEqual(t, first, second)
}
