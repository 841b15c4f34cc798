package core

import (
	"time"

	"github.com/google/uuid"
)

// DeletedObject is a tombstone: a record that the object with the given
// uuid was removed from the database at the given time. Merge logic on
// other replicas uses it to tell deletion apart from never-seen.
type DeletedObject struct {
	UUID         uuid.UUID `json:"uuid"`
	DeletionTime time.Time `json:"deletionTime"`
}

// DeletedObjects returns the tombstone ledger in recording order.
func (db *Database) DeletedObjects() []DeletedObject {
	return db.deletedObjects
}

// AddDeletedObject appends a tombstone for id, stamped with the current
// time.
func (db *Database) AddDeletedObject(id uuid.UUID) {
	db.AddDeletedObjectAt(id, now())
}

// AddDeletedObjectAt appends a tombstone with an explicit deletion time.
// Codecs use it to restore a persisted ledger.
func (db *Database) AddDeletedObjectAt(id uuid.UUID, deletionTime time.Time) {
	assertf(id != uuid.Nil, "tombstone uuid must not be nil")
	db.deletedObjects = append(db.deletedObjects, DeletedObject{
		UUID:         id,
		DeletionTime: deletionTime.UTC(),
	})
}

// ContainsDeletedObject reports whether the ledger has a tombstone for
// id.
func (db *Database) ContainsDeletedObject(id uuid.UUID) bool {
	for _, obj := range db.deletedObjects {
		if obj.UUID == id {
			return true
		}
	}
	return false
}

// RemoveDeletedObject drops every tombstone for id. Called when an
// object with that uuid is re-introduced.
func (db *Database) RemoveDeletedObject(id uuid.UUID) {
	filtered := db.deletedObjects[:0]
	for _, obj := range db.deletedObjects {
		if obj.UUID != id {
			filtered = append(filtered, obj)
		}
	}
	db.deletedObjects = filtered
}

// ClearDeletedObjects empties the ledger.
func (db *Database) ClearDeletedObjects() {
	db.deletedObjects = nil
}
