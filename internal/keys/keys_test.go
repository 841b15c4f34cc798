package keys

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keywarden/keywarden/internal/kdf"
)

type fakeDevice struct {
	prefix []byte
	err    error
}

func (d *fakeDevice) Challenge(_ context.Context, seed []byte) ([]byte, error) {
	if d.err != nil {
		return nil, d.err
	}
	return append(append([]byte(nil), d.prefix...), seed...), nil
}

func TestPasswordKeyHashesInput(t *testing.T) {
	a := NewPasswordKey([]byte("secret"))
	b := NewPasswordKey([]byte("secret"))
	c := NewPasswordKey([]byte("other"))

	assert.Equal(t, a.RawKey(), b.RawKey())
	assert.NotEqual(t, a.RawKey(), c.RawKey())
	assert.Len(t, a.RawKey(), 32)
	assert.Equal(t, ComponentPassword, a.ID())
}

func TestPasswordKeyClear(t *testing.T) {
	k := NewPasswordKey([]byte("secret"))
	k.Clear()
	assert.Nil(t, k.RawKey())
}

func TestCompositeKeyOrderMatters(t *testing.T) {
	pw := NewPasswordKey([]byte("secret"))
	file := NewFileKey([]byte("keyfile contents"))

	forward := NewCompositeKey()
	forward.AddKey(pw)
	forward.AddKey(file)

	backward := NewCompositeKey()
	backward.AddKey(file)
	backward.AddKey(pw)

	assert.NotEqual(t, forward.RawKey(), backward.RawKey())
	assert.Len(t, forward.RawKey(), 64)
}

func TestCompositeKeyEmpty(t *testing.T) {
	key := NewCompositeKey()
	assert.True(t, key.IsEmpty())
	key.AddKey(NewPasswordKey([]byte("x")))
	assert.False(t, key.IsEmpty())
}

func TestCompositeKeyTransform(t *testing.T) {
	k, err := kdf.NewArgon2()
	require.NoError(t, err)
	k.Iterations = 1
	k.Memory = 64
	k.Parallelism = 1

	key := NewCompositeKey()
	key.AddKey(NewPasswordKey([]byte("secret")))

	first, err := key.Transform(k)
	require.NoError(t, err)
	second, err := key.Transform(k)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, kdf.KeyLength)
}

func TestChallengeCollectsResponses(t *testing.T) {
	key := NewCompositeKey()
	key.AddKey(NewPasswordKey([]byte("secret")))
	key.AddKey(NewChallengeResponseKey(&fakeDevice{prefix: []byte("a:")}))
	key.AddKey(NewChallengeResponseKey(&fakeDevice{prefix: []byte("b:")}))

	response, err := key.Challenge([]byte("seed"))
	require.NoError(t, err)
	assert.Equal(t, []byte("a:seedb:seed"), response)
}

func TestChallengeNoDevices(t *testing.T) {
	key := NewCompositeKey()
	key.AddKey(NewPasswordKey([]byte("secret")))

	response, err := key.Challenge([]byte("seed"))
	require.NoError(t, err)
	assert.Empty(t, response)
}

func TestChallengeDeviceError(t *testing.T) {
	key := NewCompositeKey()
	key.AddKey(NewChallengeResponseKey(&fakeDevice{err: errors.New("unplugged")}))

	_, err := key.Challenge([]byte("seed"))
	assert.Error(t, err)
}

func TestChallengeResponseContributesToRawKey(t *testing.T) {
	cr := NewChallengeResponseKey(&fakeDevice{prefix: []byte("tok:")})
	key := NewCompositeKey()
	key.AddKey(NewPasswordKey([]byte("secret")))
	key.AddKey(cr)

	withoutChallenge := key.RawKey()
	_, err := key.Challenge([]byte("seed"))
	require.NoError(t, err)
	withChallenge := key.RawKey()

	assert.Greater(t, len(withChallenge), len(withoutChallenge))
	assert.Equal(t, []byte("tok:seed"), cr.RawKey())
}

func TestChallengeResponseKeyNoDevice(t *testing.T) {
	cr := NewChallengeResponseKey(nil)
	assert.ErrorIs(t, cr.Challenge([]byte("seed")), ErrNoDevice)
}
