package core

import (
	"bytes"
	"crypto/sha256"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/keywarden/keywarden/internal/crypto"
	"github.com/keywarden/keywarden/internal/kdf"
	"github.com/keywarden/keywarden/internal/keys"
	"github.com/keywarden/keywarden/internal/metrics"
)

// MasterSeedSize is the size of the challenge-response master seed.
const MasterSeedSize = 32

const RecycleBinName = "Recycle Bin"

// Codec serializes a database to and from its container format. The
// concrete implementation lives in the format package.
type Codec interface {
	Encode(w io.Writer, db *Database) error
	Decode(r io.Reader, db *Database) error
}

// ModifiedFunc observes database content changes.
type ModifiedFunc func(db *Database)

type databaseData struct {
	key                    *keys.CompositeKey
	kdf                    kdf.Kdf
	masterSeed             []byte
	transformedDatabaseKey []byte
	challengeResponseKey   []byte
	// keyFingerprint identifies the key components the transformed key
	// was derived from.
	keyFingerprint []byte
}

// fingerprintKey hashes the composite key's raw bytes so a transformed
// key can later be matched against the components it came from.
func fingerprintKey(key *keys.CompositeKey) []byte {
	raw := key.RawKey()
	defer crypto.ClearBytes(raw)
	sum := sha256.Sum256(raw)
	return sum[:]
}

// Database is an in-memory vault: a group tree, metadata, key material,
// and the tombstone ledger.
type Database struct {
	rootGroup      *Group
	metadata       *Metadata
	data           databaseData
	deletedObjects []DeletedObject

	filePath    string
	readOnly    bool
	fileWatcher FileWatcher

	initialized  bool
	modified     bool
	emitModified bool
	observers    []ModifiedFunc
}

// NewDatabase creates an empty, uninitialized database with a default
// Argon2id KDF and a fresh master seed.
func NewDatabase() (*Database, error) {
	k, err := kdf.NewArgon2()
	if err != nil {
		return nil, &KdfError{Err: err}
	}
	seed, err := crypto.GenerateRandom(MasterSeedSize)
	if err != nil {
		return nil, &KdfError{Err: err}
	}

	db := &Database{
		data: databaseData{
			kdf:        k,
			masterSeed: seed,
		},
		emitModified: true,
	}
	db.metadata = newMetadata(db)

	root := NewGroup()
	root.SetName("Root")
	db.SetRootGroup(root)

	db.modified = false
	return db, nil
}

// Initialize marks the database as fully set up. A database stays
// uninitialized until it has been created explicitly or decoded from
// a file.
func (db *Database) Initialize() { db.initialized = true }

// IsInitialized reports whether the database has content worth saving.
func (db *Database) IsInitialized() bool { return db.initialized }

func (db *Database) RootGroup() *Group { return db.rootGroup }

// SetRootGroup replaces the group tree. The previous tree is detached.
func (db *Database) SetRootGroup(root *Group) {
	assertf(root != nil, "root group must not be nil")
	if db.rootGroup != nil {
		db.rootGroup.setDatabase(nil)
	}
	db.rootGroup = root
	root.parent = nil
	root.setDatabase(db)
}

func (db *Database) Metadata() *Metadata { return db.metadata }

func (db *Database) FilePath() string { return db.filePath }

// SetFilePath records where the database lives on disk.
func (db *Database) SetFilePath(path string) { db.filePath = path }

// IsReadOnly reports whether saving to the current file path is allowed.
func (db *Database) IsReadOnly() bool { return db.readOnly }

func (db *Database) SetReadOnly(readOnly bool) { db.readOnly = readOnly }

// Modified reports whether in-memory content diverges from the file.
func (db *Database) Modified() bool { return db.modified }

// MarkModified flags the database as changed and notifies observers.
func (db *Database) MarkModified() {
	db.modified = true
	if db.emitModified {
		for _, observer := range db.observers {
			observer(db)
		}
	}
}

// MarkClean resets the modified flag after a successful save or load.
func (db *Database) MarkClean() { db.modified = false }

// OnModified registers an observer called on every content change.
func (db *Database) OnModified(fn ModifiedFunc) {
	db.observers = append(db.observers, fn)
}

// SetEmitModified toggles observer notification. Bulk operations such
// as decoding disable it.
func (db *Database) SetEmitModified(enabled bool) { db.emitModified = enabled }

// Key returns the current composite key, or nil when none is set.
func (db *Database) Key() *keys.CompositeKey { return db.data.key }

// Kdf returns the current key derivation function.
func (db *Database) Kdf() kdf.Kdf { return db.data.kdf }

// SetKdf replaces the KDF without re-deriving. Codecs use it while
// restoring persisted parameters; interactive changes go through
// ChangeKdf.
func (db *Database) SetKdf(k kdf.Kdf) { db.data.kdf = k }

// MasterSeed returns the challenge-response master seed.
func (db *Database) MasterSeed() []byte { return db.data.masterSeed }

// SetMasterSeed replaces the master seed. Codecs use it during decode.
func (db *Database) SetMasterSeed(seed []byte) { db.data.masterSeed = seed }

// TransformedDatabaseKey returns the KDF output currently in effect, or
// nil when the key has not been transformed.
func (db *Database) TransformedDatabaseKey() []byte {
	return db.data.transformedDatabaseKey
}

// SetTransformedDatabaseKey installs an externally derived master key.
// Codecs use it after deriving during decode.
func (db *Database) SetTransformedDatabaseKey(transformed []byte) {
	crypto.ClearBytes(db.data.transformedDatabaseKey)
	db.data.transformedDatabaseKey = transformed
	db.data.keyFingerprint = nil
	if db.data.key != nil {
		db.data.keyFingerprint = fingerprintKey(db.data.key)
	}
}

// keyTransformed reports whether the current transformed key was
// derived from the current key components. Save refuses to encrypt
// with a stale derivation.
func (db *Database) keyTransformed() bool {
	if db.data.transformedDatabaseKey == nil || db.data.keyFingerprint == nil {
		return false
	}
	return crypto.ConstantTimeCompare(db.data.keyFingerprint, fingerprintKey(db.data.key))
}

// SetKey replaces the composite key and derives the transformed key.
// Passing a nil key switches the database to the valid "no key" state.
// See SetKeyWithOptions for the full contract.
func (db *Database) SetKey(key *keys.CompositeKey) error {
	return db.SetKeyWithOptions(key, true, false, true)
}

// SetKeyWithOptions replaces the composite key.
//
// updateChangedTime stamps metadata.MasterKeyChanged. updateTransformSalt
// re-randomizes the KDF seed and master seed before deriving. When
// transformKey is false the previously transformed key is kept; callers
// doing that must re-derive before the next save or the save is refused.
// The database is marked modified only when the transformed key actually
// changes. On any failure the database is left unchanged.
func (db *Database) SetKeyWithOptions(key *keys.CompositeKey, updateChangedTime, updateTransformSalt, transformKey bool) error {
	if key == nil {
		hadKey := db.data.key != nil || db.data.transformedDatabaseKey != nil
		crypto.ClearBytes(db.data.transformedDatabaseKey)
		db.data.key = nil
		db.data.transformedDatabaseKey = nil
		db.data.challengeResponseKey = nil
		db.data.keyFingerprint = nil
		if hadKey {
			db.MarkModified()
		}
		return nil
	}

	newKdf := db.data.kdf
	newSeed := db.data.masterSeed
	if updateTransformSalt {
		newKdf = db.data.kdf.Clone()
		if err := newKdf.RandomizeSeed(); err != nil {
			return &KdfError{Err: err}
		}
		seed, err := crypto.GenerateRandom(MasterSeedSize)
		if err != nil {
			return &KdfError{Err: err}
		}
		newSeed = seed
	}

	transformed := db.data.transformedDatabaseKey
	if transformKey {
		start := now()
		var err error
		transformed, err = key.Transform(newKdf)
		if err != nil {
			return &KdfError{Err: err}
		}
		metrics.KdfDuration.Observe(time.Since(start).Seconds())
	}

	response, err := key.Challenge(newSeed)
	if err != nil {
		return &DeviceError{Err: err}
	}

	keyChanged := !bytes.Equal(db.data.transformedDatabaseKey, transformed)
	if transformKey {
		crypto.ClearBytes(db.data.transformedDatabaseKey)
	}
	db.data.kdf = newKdf
	db.data.masterSeed = newSeed
	db.data.key = key
	db.data.transformedDatabaseKey = transformed
	db.data.challengeResponseKey = response
	if transformKey {
		db.data.keyFingerprint = fingerprintKey(key)
	}

	if updateChangedTime {
		db.metadata.SetMasterKeyChanged(now())
	}
	if keyChanged {
		db.MarkModified()
	}
	return nil
}

// VerifyKey checks a candidate composite key against the current one
// without re-running the KDF: challenge responses first, then raw key
// bytes, both in constant time.
func (db *Database) VerifyKey(candidate *keys.CompositeKey) bool {
	if db.data.key == nil || candidate == nil {
		return db.data.key == nil && candidate == nil
	}

	candidateResponse, err := candidate.Challenge(db.data.masterSeed)
	if err != nil {
		return false
	}
	if !crypto.ConstantTimeCompare(db.data.challengeResponseKey, candidateResponse) {
		return false
	}

	currentRaw := db.data.key.RawKey()
	candidateRaw := candidate.RawKey()
	defer crypto.ClearBytes(currentRaw)
	defer crypto.ClearBytes(candidateRaw)
	return crypto.ConstantTimeCompare(currentRaw, candidateRaw)
}

// ChallengeMasterSeed runs the hardware challenge for seed and refreshes
// the cached response key.
func (db *Database) ChallengeMasterSeed(seed []byte) error {
	if db.data.key == nil {
		return ErrNoKey
	}
	response, err := db.data.key.Challenge(seed)
	if err != nil {
		return &DeviceError{Err: err}
	}
	db.data.challengeResponseKey = response
	return nil
}

// ChangeKdf switches to a new KDF with a freshly randomized seed and
// re-derives the transformed key. On failure the database keeps its old
// KDF and key material.
func (db *Database) ChangeKdf(newKdf kdf.Kdf) error {
	if db.data.key == nil {
		return ErrNoKey
	}

	k := newKdf.Clone()
	if err := k.RandomizeSeed(); err != nil {
		return &KdfError{Err: err}
	}

	start := now()
	transformed, err := db.data.key.Transform(k)
	if err != nil {
		return &KdfError{Err: err}
	}
	metrics.KdfDuration.Observe(time.Since(start).Seconds())

	crypto.ClearBytes(db.data.transformedDatabaseKey)
	db.data.kdf = k
	db.data.transformedDatabaseKey = transformed
	db.data.keyFingerprint = fingerprintKey(db.data.key)
	db.MarkModified()
	return nil
}

// FindEntryByUUID searches the whole tree.
func (db *Database) FindEntryByUUID(id uuid.UUID) *Entry {
	if db.rootGroup == nil {
		return nil
	}
	return db.rootGroup.FindEntryByUUID(id)
}

// FindGroupByUUID searches the whole tree.
func (db *Database) FindGroupByUUID(id uuid.UUID) *Group {
	if db.rootGroup == nil {
		return nil
	}
	return db.rootGroup.FindGroupByUUID(id)
}

// RecycleBin returns the bin group and whether it exists.
func (db *Database) RecycleBin() *Group { return db.metadata.RecycleBin() }

// createRecycleBin builds the bin group lazily on first use.
func (db *Database) createRecycleBin() *Group {
	bin := NewGroup()
	bin.SetName(RecycleBinName)
	bin.SetIconNumber(RecycleBinIconNumber)
	bin.SetSearchingEnabled(Disable)
	bin.SetAutoTypeEnabled(Disable)
	bin.SetParent(db.rootGroup)
	db.metadata.SetRecycleBin(bin)
	return bin
}

// RecycleEntry soft-deletes an entry into the bin; with the bin
// disabled it destroys the entry instead.
func (db *Database) RecycleEntry(entry *Entry) {
	if !db.metadata.RecycleBinEnabled() {
		entry.Delete()
		return
	}
	bin := db.metadata.RecycleBin()
	if bin == nil {
		bin = db.createRecycleBin()
	}
	entry.SetGroup(bin)
}

// RecycleGroup soft-deletes a group subtree into the bin; with the bin
// disabled it destroys the subtree instead.
func (db *Database) RecycleGroup(group *Group) {
	assertf(group != db.rootGroup, "cannot recycle the root group")
	if !db.metadata.RecycleBinEnabled() {
		group.Delete()
		return
	}
	bin := db.metadata.RecycleBin()
	if bin == nil {
		bin = db.createRecycleBin()
	}
	group.SetParent(bin)
}

// EmptyRecycleBin destroys everything in the bin. Every destroyed
// object is tombstoned; the bin group itself survives.
func (db *Database) EmptyRecycleBin() {
	bin := db.metadata.RecycleBin()
	if bin == nil {
		return
	}
	for _, entry := range append([]*Entry(nil), bin.entries...) {
		entry.Delete()
	}
	for _, child := range append([]*Group(nil), bin.children...) {
		child.Delete()
	}
	db.MarkModified()
}

// ReleaseData clears key material and drops the tree. The database is
// unusable afterwards.
func (db *Database) ReleaseData() {
	crypto.ClearBytes(db.data.transformedDatabaseKey)
	crypto.ClearBytes(db.data.challengeResponseKey)
	crypto.ClearBytes(db.data.masterSeed)
	crypto.ClearBytes(db.data.keyFingerprint)
	db.data = databaseData{}
	if db.rootGroup != nil {
		db.rootGroup.setDatabase(nil)
		db.rootGroup = nil
	}
	db.metadata = newMetadata(db)
	db.deletedObjects = nil
	db.observers = nil
	db.initialized = false
	db.modified = false
}
