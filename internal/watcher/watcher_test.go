package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWatcher() *FileWatcher {
	return New(zerolog.Nop(), 10*time.Millisecond)
}

func TestUnchangedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.kwdb")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0600))

	w := testWatcher()
	w.Start(path)
	defer w.Stop()

	assert.True(t, w.HasSameFileChecksum())
}

func TestModifiedFileDetected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.kwdb")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0600))

	w := testWatcher()
	w.Start(path)
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("tampered"), 0600))
	assert.False(t, w.HasSameFileChecksum())
}

func TestDeletedFileDetected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.kwdb")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0600))

	w := testWatcher()
	w.Start(path)
	defer w.Stop()

	require.NoError(t, os.Remove(path))
	assert.False(t, w.HasSameFileChecksum())
}

func TestRestartAfterSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.kwdb")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0600))

	w := testWatcher()
	w.Start(path)

	// the save path stops the watcher, rewrites, then restarts it
	w.Stop()
	require.NoError(t, os.WriteFile(path, []byte("v2"), 0600))
	w.Start(path)
	defer w.Stop()

	assert.True(t, w.HasSameFileChecksum())
}

func TestPollFlagsChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.kwdb")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0600))

	w := testWatcher()
	w.Start(path)
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("changed"), 0600))

	assert.Eventually(t, func() bool {
		return !w.HasSameFileChecksum()
	}, time.Second, 10*time.Millisecond)
}
