package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/multiview/internal/testutil"
)

var (
	_ IdentityGenerator = UUIDv7Generator{}
	_ IdentityGenerator = (*testutil.SequentialIdentities)(nil)
)

func TestUUIDv7Generator_Version(t *testing.T) {
	id := UUIDv7Generator{}.Generate()

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.Regexp(t, `^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`, id)
}

func TestUUIDv7Generator_Unique(t *testing.T) {
	gen := UUIDv7Generator{}
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := gen.Generate()
		require.False(t, seen[id], "identity %s generated twice", id)
		seen[id] = true
	}
}
