// Package password reads master passwords from the terminal or the
// environment.
package password

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/keywarden/keywarden/internal/crypto"
)

// EnvVar lets scripts supply the master password non-interactively.
const EnvVar = "KEYWARDEN_PASSWORD"

var ErrMismatch = errors.New("passwords do not match")

// Read reads a password from the terminal without echoing.
func Read(prompt string) ([]byte, error) {
	fmt.Print(prompt)

	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()

	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return password, nil
}

// ReadConfirm reads a password twice and ensures both entries match.
func ReadConfirm() ([]byte, error) {
	first, err := Read("Enter password: ")
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(first)

	second, err := Read("Confirm password: ")
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(second)

	if !crypto.ConstantTimeCompare(first, second) {
		return nil, ErrMismatch
	}

	result := make([]byte, len(first))
	copy(result, first)
	return result, nil
}

// FromEnv returns the password from the environment, or nil.
func FromEnv() []byte {
	password := os.Getenv(EnvVar)
	if password == "" {
		return nil
	}
	result := make([]byte, len(password))
	copy(result, password)
	return result
}
