// Package crypto provides the authenticated encryption primitives used by
// the container codec: AES-256-GCM with random nonces, plus helpers for
// clearing sensitive buffers and constant-time comparison.
//
// Key derivation lives in the kdf package; callers hand this package a
// ready 32-byte key and are responsible for its lifetime.
package crypto
