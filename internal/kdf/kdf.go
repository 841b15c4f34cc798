package kdf

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"

	"github.com/keywarden/keywarden/internal/crypto"
)

const (
	SeedSize = 32 // Transform seed (salt) size in bytes

	// Argon2id parameters per RFC 9106
	DefaultIterations  = 3
	DefaultMemory      = 64 * 1024 // 64 MB in KiB
	DefaultParallelism = 4
	KeyLength          = 32 // 256 bits for AES-256
)

var (
	ErrMissingSeed = errors.New("kdf seed is empty")
	ErrEmptyKey    = errors.New("raw key is empty")
)

// Kdf transforms raw composite key material into the transformed master
// key actually used for encryption. Implementations are deliberately
// slow; Transform blocks for the full derivation.
type Kdf interface {
	// Transform derives the master key from raw key bytes.
	Transform(raw []byte) ([]byte, error)
	// RandomizeSeed replaces the transform seed with fresh random bytes.
	RandomizeSeed() error
	// Seed returns the current transform seed.
	Seed() []byte
	// Clone returns an independent copy of the Kdf and its parameters.
	Clone() Kdf
}

// Argon2 is the default key derivation function (Argon2id).
type Argon2 struct {
	Salt        []byte `json:"salt"`
	Iterations  uint32 `json:"iterations"`
	Memory      uint32 `json:"memory"` // KiB
	Parallelism uint8  `json:"parallelism"`
}

// NewArgon2 creates an Argon2id KDF with default parameters and a random seed.
func NewArgon2() (*Argon2, error) {
	salt, err := crypto.GenerateRandom(SeedSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate kdf seed: %w", err)
	}

	return &Argon2{
		Salt:        salt,
		Iterations:  DefaultIterations,
		Memory:      DefaultMemory,
		Parallelism: DefaultParallelism,
	}, nil
}

// Transform derives the transformed master key from raw key bytes.
func (k *Argon2) Transform(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyKey
	}
	if len(k.Salt) == 0 {
		return nil, ErrMissingSeed
	}

	return argon2.IDKey(raw, k.Salt, k.Iterations, k.Memory, k.Parallelism, KeyLength), nil
}

// RandomizeSeed replaces the transform salt with fresh random bytes.
func (k *Argon2) RandomizeSeed() error {
	salt, err := crypto.GenerateRandom(SeedSize)
	if err != nil {
		return fmt.Errorf("failed to randomize kdf seed: %w", err)
	}
	k.Salt = salt
	return nil
}

// Seed returns the current transform salt.
func (k *Argon2) Seed() []byte {
	return k.Salt
}

// Clone returns an independent copy of the KDF configuration.
func (k *Argon2) Clone() Kdf {
	salt := make([]byte, len(k.Salt))
	copy(salt, k.Salt)
	return &Argon2{
		Salt:        salt,
		Iterations:  k.Iterations,
		Memory:      k.Memory,
		Parallelism: k.Parallelism,
	}
}
