package core

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/keywarden/keywarden/internal/metrics"
)

// FileWatcher tracks the on-disk checksum of the database file so a
// save can detect external modification. The polling implementation
// lives in the watcher package.
type FileWatcher interface {
	Start(path string)
	Stop()
	// HasSameFileChecksum reports whether the file still matches the
	// checksum recorded at the last start.
	HasSameFileChecksum() bool
}

// SaveOptions control how SaveAs writes the file.
type SaveOptions struct {
	// Atomic uses a temp-file-and-rename commit. When false a
	// best-effort non-atomic sequence is used instead; this is the
	// fallback for filesystems where rename over the target fails.
	Atomic bool
	// Backup copies the previous file to BackupFilePath before the
	// new one is moved into place.
	Backup bool
	// BackupPath overrides the default backup location.
	BackupPath string
}

// DefaultSaveOptions is what Save uses.
var DefaultSaveOptions = SaveOptions{Atomic: true, Backup: true}

// SetFileWatcher attaches a watcher used to refuse overwriting external
// changes on a same-path save.
func (db *Database) SetFileWatcher(w FileWatcher) { db.fileWatcher = w }

// Open reads and decrypts the database at path with the given key. When
// the file cannot be opened read-write the open silently falls back to
// read-only and marks the database accordingly.
func Open(path string, codec Codec, db *Database) error {
	readOnly := false
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		// fall back to read-only, e.g. on a read-only mount
		f, err = os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open database file: %w", err)
		}
		readOnly = true
	}
	defer f.Close()

	db.SetEmitModified(false)
	defer db.SetEmitModified(true)

	if err := codec.Decode(f, db); err != nil {
		return err
	}

	db.filePath = path
	db.readOnly = readOnly
	db.initialized = true
	db.MarkClean()

	if db.fileWatcher != nil {
		db.fileWatcher.Start(path)
	}
	return nil
}

// Save writes the database back to its current file path with the
// default options.
func Save(db *Database, codec Codec) error {
	return SaveAs(db, codec, db.filePath, DefaultSaveOptions)
}

// SaveAs writes the database to path.
//
// Saving to the database's own path is refused when the file changed on
// disk since it was opened, and any save is refused while the key is
// configured but not transformed. On a write failure the previous file
// is untouched; on a commit failure the fully written temporary file is
// preserved and its path reported.
func SaveAs(db *Database, codec Codec, path string, opts SaveOptions) error {
	if path == "" {
		return ErrNoFilePath
	}
	if db.readOnly && path == db.filePath {
		return ErrReadOnly
	}
	if db.data.key != nil && !db.keyTransformed() {
		return ErrKeyNotTransformed
	}
	if path == db.filePath && db.fileWatcher != nil && !db.fileWatcher.HasSameFileChecksum() {
		return ErrUnmergedChanges
	}

	if db.fileWatcher != nil {
		db.fileWatcher.Stop()
	}

	start := now()
	var err error
	if opts.Atomic {
		err = saveAtomic(db, codec, path, opts)
	} else {
		err = saveNonAtomic(db, codec, path, opts)
	}
	if err != nil {
		metrics.SaveFailures.Inc()
		// the watcher stays stopped; its checksum baseline must not
		// move until a save actually replaces the file
		return err
	}
	metrics.SavesTotal.Inc()
	metrics.SaveDuration.Observe(time.Since(start).Seconds())

	db.filePath = path
	db.readOnly = false
	db.MarkClean()
	if db.fileWatcher != nil {
		db.fileWatcher.Start(path)
	}
	return nil
}

// writeTemp encodes the database into a fresh temporary file next to
// path and syncs it to disk.
func writeTemp(db *Database, codec Codec, path string) (string, error) {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return "", &WriteError{Err: err}
	}
	tempPath := f.Name()

	if err := codec.Encode(f, db); err != nil {
		f.Close()
		os.Remove(tempPath)
		return "", err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return "", &WriteError{Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return "", &WriteError{Err: err}
	}
	return tempPath, nil
}

func saveAtomic(db *Database, codec Codec, path string, opts SaveOptions) error {
	tempPath, err := writeTemp(db, codec, path)
	if err != nil {
		return err
	}

	if opts.Backup {
		backupDatabase(path, backupPath(path, opts))
	}

	if err := os.Rename(tempPath, path); err != nil {
		// the finished database survives for manual recovery
		return &CommitError{Err: err, TempFile: tempPath}
	}
	return nil
}

func saveNonAtomic(db *Database, codec Codec, path string, opts SaveOptions) error {
	tempPath, err := writeTemp(db, codec, path)
	if err != nil {
		return err
	}

	backup := backupPath(path, opts)
	if opts.Backup {
		backupDatabase(path, backup)
	}

	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return &CommitError{Err: err, TempFile: tempPath}
		}
	}

	if err := os.Rename(tempPath, path); err != nil {
		// target is gone; try to put the backup back
		if opts.Backup {
			if restoreErr := copyFile(backup, path); restoreErr == nil {
				os.Remove(tempPath)
				return &CommitError{Err: err}
			}
		}
		return &CommitError{Err: err, TempFile: tempPath}
	}
	return nil
}

func backupPath(path string, opts SaveOptions) string {
	if opts.BackupPath != "" {
		return opts.BackupPath
	}
	return BackupFilePath(path)
}

// BackupFilePath returns the default backup location for a database
// file: ".old" inserted before the extension.
func BackupFilePath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".old" + ext
}

// backupDatabase copies src over the backup destination. A missing
// source (first save) is not an error.
func backupDatabase(src, dst string) {
	if src == "" || dst == "" {
		return
	}
	if _, err := os.Stat(src); err != nil {
		return
	}
	_ = copyFile(src, dst)
}

// RestoreBackup copies the backup file for path back over path.
func RestoreBackup(path string) error {
	backup := BackupFilePath(path)
	if _, err := os.Stat(backup); err != nil {
		return fmt.Errorf("no backup found for %s: %w", path, err)
	}
	if err := copyFile(backup, path); err != nil {
		return fmt.Errorf("failed to restore backup: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
