package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/keywarden/keywarden/internal/core"
	"github.com/keywarden/keywarden/internal/crypto"
	"github.com/keywarden/keywarden/internal/format"
	"github.com/keywarden/keywarden/internal/keyring"
	"github.com/keywarden/keywarden/internal/keys"
	"github.com/keywarden/keywarden/internal/metrics"
	"github.com/keywarden/keywarden/internal/password"
	"github.com/keywarden/keywarden/internal/recent"
	"github.com/keywarden/keywarden/internal/registry"
	"github.com/keywarden/keywarden/internal/watcher"
)

var keyFile string

// sessions tracks the databases unlocked in this process so a path is
// never loaded twice.
var sessions = registry.New()

func init() {
	rootCmd.PersistentFlags().StringVar(&keyFile, "key-file", "", "Additional key file for the composite key")
}

func requireDBPath() error {
	if dbPath == "" {
		return errors.New("no database given: pass --db or set default_database in the config")
	}
	return nil
}

// getPassword retrieves the master password: environment first, then
// the OS keyring if enabled, then an interactive prompt.
func getPassword(prompt string) ([]byte, error) {
	if pw := password.FromEnv(); pw != nil {
		return pw, nil
	}
	if cfg.UseKeyring {
		if pw, err := keyring.GetPassword(dbPath); err == nil {
			log.Debug().Msg("using password from OS keyring")
			return []byte(pw), nil
		}
	}
	return password.Read(prompt)
}

// buildKey assembles the composite key from the password and the
// optional key file.
func buildKey(pw []byte) (*keys.CompositeKey, error) {
	key := keys.NewCompositeKey()
	key.AddKey(keys.NewPasswordKey(pw))

	if keyFile != "" {
		contents, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read key file: %w", err)
		}
		defer crypto.ClearBytes(contents)
		key.AddKey(keys.NewFileKey(contents))
	}
	return key, nil
}

// openDatabase unlocks the database at dbPath and starts the file
// watcher. The caller saves with saveDatabase when done mutating.
func openDatabase() (*core.Database, error) {
	if err := requireDBPath(); err != nil {
		return nil, err
	}
	if db := sessions.Lookup(dbPath); db != nil {
		return db, nil
	}

	pw, err := getPassword("Enter password: ")
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(pw)

	key, err := buildKey(pw)
	if err != nil {
		return nil, err
	}

	db, err := core.NewDatabase()
	if err != nil {
		return nil, err
	}
	// install the candidate key without deriving; the codec derives
	// with the parameters stored in the file
	if err := db.SetKeyWithOptions(key, false, false, false); err != nil {
		return nil, err
	}
	db.SetFileWatcher(watcher.New(log, time.Duration(cfg.WatchIntervalSeconds)*time.Second))

	if err := core.Open(dbPath, format.New(), db); err != nil {
		metrics.UnlockFailures.Inc()
		var formatErr *core.FormatError
		if errors.As(err, &formatErr) && errors.Is(err, crypto.ErrAuthFailed) {
			return nil, errors.New("wrong password or corrupted database")
		}
		return nil, err
	}
	metrics.UnlocksTotal.Inc()

	if err := sessions.Register(db); err != nil {
		log.Debug().Err(err).Msg("session registry refused database")
	}
	touchRecent(db)
	return db, nil
}

// verifyPassword proves the password can unlock the database, then
// releases it.
func verifyPassword(pw []byte) error {
	if err := requireDBPath(); err != nil {
		return err
	}
	key, err := buildKey(pw)
	if err != nil {
		return err
	}
	db, err := core.NewDatabase()
	if err != nil {
		return err
	}
	if err := db.SetKeyWithOptions(key, false, false, false); err != nil {
		return err
	}
	if err := core.Open(dbPath, format.New(), db); err != nil {
		if errors.Is(err, crypto.ErrAuthFailed) {
			return errors.New("wrong password")
		}
		return err
	}
	db.ReleaseData()
	return nil
}

// touchRecent records the open in the recent-vaults index. Failures
// only cost the convenience listing, so they are logged and ignored.
func touchRecent(db *core.Database) {
	store, err := recent.Open(recentIndexPath())
	if err != nil {
		log.Debug().Err(err).Msg("recent-vaults index unavailable")
		return
	}
	defer store.Close()
	if err := store.Touch(db.FilePath(), db.Metadata().Name()); err != nil {
		log.Debug().Err(err).Msg("failed to update recent-vaults index")
	}
}

// saveDatabase writes the database back to its file.
func saveDatabase(db *core.Database) error {
	if err := core.Save(db, format.New()); err != nil {
		var commitErr *core.CommitError
		if errors.As(err, &commitErr) && commitErr.TempFile != "" {
			log.Error().Str("temp", commitErr.TempFile).Msg("save interrupted, new database preserved")
		}
		return err
	}
	return nil
}

// findEntry resolves an entry by slash path or uuid string.
func findEntry(db *core.Database, ref string) (*core.Entry, error) {
	if entry := db.RootGroup().FindEntryByPath(ref); entry != nil {
		return entry, nil
	}
	if id, err := parseUUID(ref); err == nil {
		if entry := db.FindEntryByUUID(id); entry != nil {
			return entry, nil
		}
	}
	return nil, fmt.Errorf("entry not found: %s", ref)
}

// newEntryInGroup creates a fresh entry attached to group.
func newEntryInGroup(group *core.Group) *core.Entry {
	entry := core.NewEntry()
	entry.SetGroup(group)
	return entry
}

// parseUUID accepts both canonical and bare-hex forms.
func parseUUID(text string) (uuid.UUID, error) {
	if len(text) == 32 {
		raw, err := hex.DecodeString(text)
		if err == nil {
			return uuid.FromBytes(raw)
		}
	}
	return uuid.Parse(text)
}

// findGroup resolves a group by slash path.
func findGroup(db *core.Database, path string) (*core.Group, error) {
	if group := db.RootGroup().FindGroupByPath(path); group != nil {
		return group, nil
	}
	return nil, fmt.Errorf("group not found: %s", path)
}
