package core

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// plainCodec is a test codec writing the database name unencrypted, so
// the save machinery can be exercised without key material.
type plainCodec struct {
	encodeErr error
	decodeErr error
}

type plainPayload struct {
	Name string `json:"name"`
}

func (c *plainCodec) Encode(w io.Writer, db *Database) error {
	if c.encodeErr != nil {
		return &WriteError{Err: c.encodeErr}
	}
	return json.NewEncoder(w).Encode(plainPayload{Name: db.Metadata().Name()})
}

func (c *plainCodec) Decode(r io.Reader, db *Database) error {
	if c.decodeErr != nil {
		return c.decodeErr
	}
	var p plainPayload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return &FormatError{Reason: "bad payload", Err: err}
	}
	db.Metadata().SetName(p.Name)
	return nil
}

type stubWatcher struct {
	started int
	stopped int
	same    bool
}

func (w *stubWatcher) Start(string)              { w.started++ }
func (w *stubWatcher) Stop()                     { w.stopped++ }
func (w *stubWatcher) HasSameFileChecksum() bool { return w.same }

func TestSaveAndOpenRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.kwdb")

	db := testDatabase(t)
	db.Metadata().SetName("personal")
	require.NoError(t, SaveAs(db, &plainCodec{}, path, DefaultSaveOptions))
	assert.False(t, db.Modified())
	assert.Equal(t, path, db.FilePath())

	loaded := testDatabase(t)
	require.NoError(t, Open(path, &plainCodec{}, loaded))
	assert.Equal(t, "personal", loaded.Metadata().Name())
	assert.True(t, loaded.IsInitialized())
	assert.False(t, loaded.Modified())
	assert.False(t, loaded.IsReadOnly())
}

func TestOpenMissingFile(t *testing.T) {
	db := testDatabase(t)
	err := Open(filepath.Join(t.TempDir(), "nope.kwdb"), &plainCodec{}, db)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveCreatesBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.kwdb")

	db := testDatabase(t)
	db.Metadata().SetName("v1")
	require.NoError(t, SaveAs(db, &plainCodec{}, path, DefaultSaveOptions))

	db.Metadata().SetName("v2")
	require.NoError(t, Save(db, &plainCodec{}))

	backup := BackupFilePath(path)
	require.FileExists(t, backup)

	// the backup holds the previous version
	old := testDatabase(t)
	require.NoError(t, Open(backup, &plainCodec{}, old))
	assert.Equal(t, "v1", old.Metadata().Name())
}

func TestBackupFilePathNaming(t *testing.T) {
	assert.Equal(t, "/tmp/vault.old.kwdb", BackupFilePath("/tmp/vault.kwdb"))
	assert.Equal(t, "/tmp/vault.old", BackupFilePath("/tmp/vault"))
}

func TestSaveWithoutPath(t *testing.T) {
	db := testDatabase(t)
	assert.ErrorIs(t, Save(db, &plainCodec{}), ErrNoFilePath)
}

func TestSaveReadOnlyRefused(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.kwdb")

	db := testDatabase(t)
	require.NoError(t, SaveAs(db, &plainCodec{}, path, DefaultSaveOptions))
	db.SetReadOnly(true)

	assert.ErrorIs(t, Save(db, &plainCodec{}), ErrReadOnly)
	// saving elsewhere is still allowed
	assert.NoError(t, SaveAs(db, &plainCodec{}, filepath.Join(dir, "copy.kwdb"), DefaultSaveOptions))
}

func TestSaveRefusedWithUntransformedKey(t *testing.T) {
	dir := t.TempDir()
	db := testDatabase(t)
	require.NoError(t, db.SetKeyWithOptions(passwordKey("pw"), false, false, false))

	err := SaveAs(db, &plainCodec{}, filepath.Join(dir, "vault.kwdb"), DefaultSaveOptions)
	assert.ErrorIs(t, err, ErrKeyNotTransformed)
}

func TestSaveRefusedWithStaleKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.kwdb")

	db := testDatabase(t)
	require.NoError(t, db.SetKey(passwordKey("pw")))
	require.NoError(t, SaveAs(db, &plainCodec{}, path, DefaultSaveOptions))

	// new components without re-derivation must never reach the file
	require.NoError(t, db.SetKeyWithOptions(passwordKey("other"), true, false, false))
	assert.ErrorIs(t, Save(db, &plainCodec{}), ErrKeyNotTransformed)

	// re-supplying the same components keeps the derivation valid
	require.NoError(t, db.SetKeyWithOptions(passwordKey("pw"), false, false, false))
	assert.NoError(t, Save(db, &plainCodec{}))
}

func TestSaveRefusedOnExternalChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.kwdb")

	db := testDatabase(t)
	require.NoError(t, SaveAs(db, &plainCodec{}, path, DefaultSaveOptions))

	w := &stubWatcher{same: false}
	db.SetFileWatcher(w)

	assert.ErrorIs(t, Save(db, &plainCodec{}), ErrUnmergedChanges)

	// a different target path is not guarded
	assert.NoError(t, SaveAs(db, &plainCodec{}, filepath.Join(dir, "other.kwdb"), DefaultSaveOptions))

	w.same = true
	db.SetFilePath(path)
	assert.NoError(t, Save(db, &plainCodec{}))
}

func TestFailedWriteLeavesTargetUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.kwdb")

	db := testDatabase(t)
	db.Metadata().SetName("good")
	require.NoError(t, SaveAs(db, &plainCodec{}, path, DefaultSaveOptions))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	failing := &plainCodec{encodeErr: errors.New("disk full")}
	saveErr := Save(db, failing)
	var writeErr *WriteError
	require.ErrorAs(t, saveErr, &writeErr)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// no stray temp files
	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFailedSavePreservesBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.kwdb")

	db := testDatabase(t)
	db.Metadata().SetName("v1")
	require.NoError(t, SaveAs(db, &plainCodec{}, path, DefaultSaveOptions))
	db.Metadata().SetName("v2")
	require.NoError(t, Save(db, &plainCodec{}))

	backupBefore, err := os.ReadFile(BackupFilePath(path))
	require.NoError(t, err)
	targetBefore, err := os.ReadFile(path)
	require.NoError(t, err)

	failing := &plainCodec{encodeErr: errors.New("disk full")}
	require.Error(t, Save(db, failing))

	backupAfter, err := os.ReadFile(BackupFilePath(path))
	require.NoError(t, err)
	targetAfter, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, backupBefore, backupAfter)
	assert.Equal(t, targetBefore, targetAfter)
}

func TestCommitFailurePreservesTempFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "vault.kwdb")
	// a directory at the target path makes the rename commit fail
	require.NoError(t, os.Mkdir(target, 0o755))

	db := testDatabase(t)
	db.Metadata().SetName("v1")
	err := SaveAs(db, &plainCodec{}, target, SaveOptions{Atomic: true})

	var commitErr *CommitError
	require.ErrorAs(t, err, &commitErr)
	require.NotEmpty(t, commitErr.TempFile)

	// the fully written database survives for manual recovery
	recovered := testDatabase(t)
	require.NoError(t, Open(commitErr.TempFile, &plainCodec{}, recovered))
	assert.Equal(t, "v1", recovered.Metadata().Name())
}

func TestNonAtomicSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.kwdb")

	db := testDatabase(t)
	db.Metadata().SetName("v1")
	opts := SaveOptions{Atomic: false, Backup: true}
	require.NoError(t, SaveAs(db, &plainCodec{}, path, opts))

	db.Metadata().SetName("v2")
	require.NoError(t, SaveAs(db, &plainCodec{}, path, opts))
	require.FileExists(t, BackupFilePath(path))

	loaded := testDatabase(t)
	require.NoError(t, Open(path, &plainCodec{}, loaded))
	assert.Equal(t, "v2", loaded.Metadata().Name())
}

func TestRestoreBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.kwdb")

	db := testDatabase(t)
	db.Metadata().SetName("v1")
	require.NoError(t, SaveAs(db, &plainCodec{}, path, DefaultSaveOptions))
	db.Metadata().SetName("v2")
	require.NoError(t, Save(db, &plainCodec{}))

	require.NoError(t, RestoreBackup(path))

	restored := testDatabase(t)
	require.NoError(t, Open(path, &plainCodec{}, restored))
	assert.Equal(t, "v1", restored.Metadata().Name())
}

func TestRestoreBackupMissing(t *testing.T) {
	assert.Error(t, RestoreBackup(filepath.Join(t.TempDir(), "vault.kwdb")))
}

func TestSaveRestartsWatcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.kwdb")

	db := testDatabase(t)
	w := &stubWatcher{same: true}
	db.SetFileWatcher(w)

	require.NoError(t, SaveAs(db, &plainCodec{}, path, DefaultSaveOptions))
	assert.Equal(t, 1, w.stopped)
	assert.Equal(t, 1, w.started)
}

func TestFailedSaveLeavesWatcherStopped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.kwdb")

	db := testDatabase(t)
	require.NoError(t, SaveAs(db, &plainCodec{}, path, DefaultSaveOptions))

	w := &stubWatcher{same: true}
	db.SetFileWatcher(w)

	failing := &plainCodec{encodeErr: errors.New("disk full")}
	require.Error(t, Save(db, failing))

	// the checksum baseline must not be re-taken on a failed save
	assert.Equal(t, 1, w.stopped)
	assert.Equal(t, 0, w.started)
}
