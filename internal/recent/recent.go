// Package recent keeps a small local index of recently opened vaults.
// It lives outside the encrypted container on purpose: only paths and
// timestamps are stored, never vault content.
package recent

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	recentBucket = []byte("recent")
	configBucket = []byte("config")

	configVersion = []byte("version")
)

// DefaultLimit caps how many vaults List returns.
const DefaultLimit = 10

// Vault is one recently opened database file.
type Vault struct {
	Path       string    `json:"path"`
	Name       string    `json:"name,omitempty"`
	LastOpened time.Time `json:"lastOpened"`
}

// Store is a bbolt-backed recent-vaults index.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the index at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open recent-vaults index: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{recentBucket, configBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return tx.Bucket(configBucket).Put(configVersion, []byte("1"))
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the index.
func (s *Store) Close() error {
	return s.db.Close()
}

// Touch records that the vault at path was opened just now.
func (s *Store) Touch(path, name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(Vault{
			Path:       path,
			Name:       name,
			LastOpened: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		return tx.Bucket(recentBucket).Put([]byte(path), data)
	})
}

// Forget removes a vault from the index.
func (s *Store) Forget(path string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(recentBucket).Delete([]byte(path))
	})
}

// List returns up to limit vaults, most recently opened first. A
// non-positive limit means DefaultLimit.
func (s *Store) List(limit int) ([]Vault, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	var vaults []Vault
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(recentBucket).ForEach(func(k, v []byte) error {
			var vault Vault
			if err := json.Unmarshal(v, &vault); err != nil {
				return err
			}
			vaults = append(vaults, vault)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(vaults, func(i, j int) bool {
		return vaults[i].LastOpened.After(vaults[j].LastOpened)
	})
	if len(vaults) > limit {
		vaults = vaults[:limit]
	}
	return vaults, nil
}
