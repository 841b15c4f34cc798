package kdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fast(t *testing.T) *Argon2 {
	t.Helper()
	k, err := NewArgon2()
	require.NoError(t, err)
	k.Iterations = 1
	k.Memory = 64
	k.Parallelism = 1
	return k
}

func TestTransformDeterministic(t *testing.T) {
	k := fast(t)

	first, err := k.Transform([]byte("raw key material"))
	require.NoError(t, err)
	second, err := k.Transform([]byte("raw key material"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, KeyLength)
}

func TestTransformDependsOnSeed(t *testing.T) {
	k := fast(t)
	before, err := k.Transform([]byte("raw"))
	require.NoError(t, err)

	require.NoError(t, k.RandomizeSeed())
	after, err := k.Transform([]byte("raw"))
	require.NoError(t, err)

	assert.NotEqual(t, before, after)
}

func TestTransformEmptyKey(t *testing.T) {
	k := fast(t)
	_, err := k.Transform(nil)
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestTransformMissingSeed(t *testing.T) {
	k := &Argon2{Iterations: 1, Memory: 64, Parallelism: 1}
	_, err := k.Transform([]byte("raw"))
	assert.ErrorIs(t, err, ErrMissingSeed)
}

func TestCloneIsIndependent(t *testing.T) {
	k := fast(t)
	clone := k.Clone().(*Argon2)

	assert.Equal(t, k.Salt, clone.Salt)
	require.NoError(t, clone.RandomizeSeed())
	assert.NotEqual(t, k.Salt, clone.Salt)
}

func TestDefaultParameters(t *testing.T) {
	k, err := NewArgon2()
	require.NoError(t, err)

	assert.Len(t, k.Salt, SeedSize)
	assert.Equal(t, uint32(DefaultIterations), k.Iterations)
	assert.Equal(t, uint32(DefaultMemory), k.Memory)
	assert.Equal(t, uint8(DefaultParallelism), k.Parallelism)
}
