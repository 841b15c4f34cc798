package keys

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/keywarden/keywarden/internal/crypto"
	"github.com/keywarden/keywarden/internal/kdf"
)

// Stable component identifiers, persisted alongside the container so a
// composite key can be reassembled in the same order.
const (
	ComponentPassword          = "password"
	ComponentFile              = "file"
	ComponentChallengeResponse = "challenge-response"
)

// DefaultChallengeTimeout bounds the wait for a hardware token response.
// KDF computation itself is never subject to a timeout.
const DefaultChallengeTimeout = 30 * time.Second

var ErrNoDevice = errors.New("no challenge-response device present")

// Key is a single component of a composite key.
type Key interface {
	// ID returns the stable component identifier.
	ID() string
	// RawKey returns the raw key bytes of this component.
	RawKey() []byte
}

// ChallengeDevice is a hardware token that answers a seed challenge.
// Implementations must honor the context deadline.
type ChallengeDevice interface {
	Challenge(ctx context.Context, seed []byte) ([]byte, error)
}

// PasswordKey derives its raw bytes from a user password.
type PasswordKey struct {
	hash []byte
}

// NewPasswordKey hashes the given password into a key component. The
// caller may clear the password afterwards.
func NewPasswordKey(password []byte) *PasswordKey {
	h := sha256.Sum256(password)
	return &PasswordKey{hash: h[:]}
}

// WithRawKey builds a PasswordKey directly from raw hash bytes. Used to
// snapshot a transformed key for comparison.
func WithRawKey(raw []byte) *PasswordKey {
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return &PasswordKey{hash: cp}
}

func (k *PasswordKey) ID() string     { return ComponentPassword }
func (k *PasswordKey) RawKey() []byte { return k.hash }

// Clear zeroes the stored hash.
func (k *PasswordKey) Clear() {
	crypto.ClearBytes(k.hash)
	k.hash = nil
}

// FileKey derives its raw bytes from the contents of a key file.
type FileKey struct {
	hash []byte
}

// NewFileKey hashes arbitrary key file contents into a key component.
func NewFileKey(contents []byte) *FileKey {
	h := sha256.Sum256(contents)
	return &FileKey{hash: h[:]}
}

func (k *FileKey) ID() string     { return ComponentFile }
func (k *FileKey) RawKey() []byte { return k.hash }

// ChallengeResponseKey is computed by a hardware device's response to a
// master seed challenge rather than stored directly. RawKey returns the
// response to the most recent challenge, or nil before any challenge.
type ChallengeResponseKey struct {
	device   ChallengeDevice
	timeout  time.Duration
	response []byte
}

// NewChallengeResponseKey wraps a device as a key component.
func NewChallengeResponseKey(device ChallengeDevice) *ChallengeResponseKey {
	return &ChallengeResponseKey{device: device, timeout: DefaultChallengeTimeout}
}

func (k *ChallengeResponseKey) ID() string     { return ComponentChallengeResponse }
func (k *ChallengeResponseKey) RawKey() []byte { return k.response }

// Challenge issues the seed to the device and caches the response.
func (k *ChallengeResponseKey) Challenge(seed []byte) error {
	if k.device == nil {
		return ErrNoDevice
	}

	ctx, cancel := context.WithTimeout(context.Background(), k.timeout)
	defer cancel()

	response, err := k.device.Challenge(ctx, seed)
	if err != nil {
		return fmt.Errorf("challenge-response device failed: %w", err)
	}

	k.response = response
	return nil
}

// CompositeKey combines an ordered set of key components.
type CompositeKey struct {
	keys          []Key
	challengeKeys []*ChallengeResponseKey
}

// NewCompositeKey creates an empty composite key.
func NewCompositeKey() *CompositeKey {
	return &CompositeKey{}
}

// AddKey appends a component. Challenge-response components are tracked
// separately so Challenge can reach them.
func (c *CompositeKey) AddKey(key Key) {
	c.keys = append(c.keys, key)
	if crKey, ok := key.(*ChallengeResponseKey); ok {
		c.challengeKeys = append(c.challengeKeys, crKey)
	}
}

// Keys returns the ordered component list.
func (c *CompositeKey) Keys() []Key {
	return c.keys
}

// IsEmpty reports whether the composite key has no components.
func (c *CompositeKey) IsEmpty() bool {
	return len(c.keys) == 0
}

// RawKey concatenates the raw bytes of every component, in order.
// Challenge-response components contribute their cached response.
func (c *CompositeKey) RawKey() []byte {
	var raw bytes.Buffer
	for _, key := range c.keys {
		raw.Write(key.RawKey())
	}
	return raw.Bytes()
}

// Transform runs the KDF over the concatenated raw key. This is the
// expensive derivation; it blocks until complete.
func (c *CompositeKey) Transform(k kdf.Kdf) ([]byte, error) {
	raw := c.RawKey()
	defer crypto.ClearBytes(raw)

	transformed, err := k.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("key transformation failed: %w", err)
	}
	return transformed, nil
}

// Challenge issues the master seed to every challenge-response component
// and returns the concatenated responses. An empty result with a nil
// error means no component requires hardware interaction.
func (c *CompositeKey) Challenge(seed []byte) ([]byte, error) {
	var response bytes.Buffer
	for _, key := range c.challengeKeys {
		if err := key.Challenge(seed); err != nil {
			return nil, err
		}
		response.Write(key.RawKey())
	}
	return response.Bytes(), nil
}
