// Package registry tracks the databases open in this process so the
// same file is never loaded twice.
package registry

import (
	"errors"
	"path/filepath"
	"sync"

	"github.com/keywarden/keywarden/internal/core"
)

var ErrAlreadyOpen = errors.New("database is already open")

// Registry maps canonical file paths to open databases.
type Registry struct {
	mu   sync.Mutex
	open map[string]*core.Database
}

func New() *Registry {
	return &Registry{open: make(map[string]*core.Database)}
}

func canonical(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

// Register adds a database under its file path.
func (r *Registry) Register(db *core.Database) error {
	path := canonical(db.FilePath())

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.open[path]; ok {
		return ErrAlreadyOpen
	}
	r.open[path] = db
	return nil
}

// Lookup returns the open database for path, or nil.
func (r *Registry) Lookup(path string) *core.Database {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open[canonical(path)]
}

// Unregister removes the database for path and releases its data.
func (r *Registry) Unregister(path string) {
	key := canonical(path)

	r.mu.Lock()
	db := r.open[key]
	delete(r.open, key)
	r.mu.Unlock()

	if db != nil {
		db.ReleaseData()
	}
}

// Paths returns the canonical paths of all open databases.
func (r *Registry) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	paths := make([]string, 0, len(r.open))
	for path := range r.open {
		paths = append(paths, path)
	}
	return paths
}
