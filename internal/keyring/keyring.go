// Package keyring caches master passwords in the OS keyring, keyed by
// vault identity.
package keyring

import (
	"github.com/zalando/go-keyring"
)

const serviceName = "keywarden"

// SavePassword stores a master password in the OS keyring.
func SavePassword(vaultID string, password string) error {
	return keyring.Set(serviceName, vaultID, password)
}

// GetPassword retrieves a master password from the OS keyring.
func GetPassword(vaultID string) (string, error) {
	return keyring.Get(serviceName, vaultID)
}

// DeletePassword removes a master password from the OS keyring.
func DeletePassword(vaultID string) error {
	return keyring.Delete(serviceName, vaultID)
}

// HasPassword checks whether a password is cached for the vault.
func HasPassword(vaultID string) bool {
	_, err := keyring.Get(serviceName, vaultID)
	return err == nil
}
