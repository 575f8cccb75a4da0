package utilities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopedDigest(t *testing.T) {
	a := ScopedDigest("scope-a", "token")
	b := ScopedDigest("scope-b", "token")

	assert.Len(t, a, 64)
	assert.Equal(t, a, ScopedDigest("scope-a", "token"))
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, ScopedDigest("scope-a", "token2"))
}

func TestRandomHex(t *testing.T) {
	a, err := RandomHex(32)
	require.NoError(t, err)
	b, err := RandomHex(32)
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestConstantTimeCompare(t *testing.T) {
	assert.True(t, ConstantTimeCompare("abc", "abc"))
	assert.False(t, ConstantTimeCompare("abc", "abd"))
	assert.False(t, ConstantTimeCompare("abc", "ab"))
}

func TestIDs(t *testing.T) {
	k1, k2 := NewKSUID(), NewKSUID()
	assert.Len(t, k1, 27)
	assert.NotEqual(t, k1, k2)

	s1, s2 := NewSnowflakeID(), NewSnowflakeID()
	assert.NotEmpty(t, s1)
	assert.NotEqual(t, s1, s2)
}
