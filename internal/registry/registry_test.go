package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterResolve(t *testing.T) {
	r := New()

	s1 := r.Register("conn-1")
	s2 := r.Register("conn-2")
	require.NotEmpty(t, s1.UserID)
	assert.NotEqual(t, s1.UserID, s2.UserID, "each connection gets its own user identity")

	got, err := r.Resolve("conn-1")
	require.NoError(t, err)
	assert.Same(t, s1, got)
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	r := New()

	_, err := r.Resolve("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_Unregister(t *testing.T) {
	r := New()

	r.Register("conn-1")
	r.Unregister("conn-1")
	_, err := r.Resolve("conn-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, r.Len())

	// Double unregister is harmless.
	r.Unregister("conn-1")
}
