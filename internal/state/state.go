package state

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"
	berrors "go.etcd.io/bbolt/errors"
)

const (
	// stateDirPerm is the permission mode for the state directory (~/.notesync/).
	stateDirPerm = fs.FileMode(0o700)

	// stateFilePerm is the permission mode for the state database file.
	stateFilePerm = fs.FileMode(0o600)

	// stateOpenTimeout is the maximum time to wait for the bolt database lock.
	stateOpenTimeout = 5 * time.Second
)

var (
	appBucket   = []byte("app")
	lastSyncKey = []byte("last_sync")
	modeKey     = []byte("default_mode")
)

func pendingBucket(ownerID string) []byte {
	return []byte("owner:" + ownerID + ":pending")
}

// State wraps a bbolt database for all persistent client state: pending
// ledger entries per owner plus a few app settings. Values are opaque
// bytes; callers own the encoding.
type State struct {
	db   *bolt.DB
	path string
}

// Load opens the state database at ~/.notesync/state.db, creating it
// if it does not exist.
func Load() (*State, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}

	return LoadAt(path)
}

// LoadAt opens a state database at the given path, creating it if it
// does not exist. Useful for tests that need an isolated database.
func LoadAt(path string) (*State, error) {
	if err := os.MkdirAll(filepath.Dir(path), stateDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bolt.Open(path, stateFilePerm, &bolt.Options{Timeout: stateOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(appBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state db: %w", err)
	}

	return &State{db: db, path: path}, nil
}

// OpenOrReset opens the database at path. If the file exists but cannot
// be opened as a bolt database it is renamed to <path>.corrupt-<unix> and
// a fresh database is created in its place; recovered is true in that
// case. A lock timeout is returned as-is since another process owns a
// healthy file.
func OpenOrReset(path string) (s *State, recovered bool, err error) {
	s, err = LoadAt(path)
	if err == nil {
		return s, false, nil
	}

	if errors.Is(err, berrors.ErrTimeout) {
		return nil, false, err
	}

	if _, statErr := os.Stat(path); statErr != nil {
		return nil, false, err
	}

	aside := path + ".corrupt-" + strconv.FormatInt(time.Now().Unix(), 10)
	if renameErr := os.Rename(path, aside); renameErr != nil {
		return nil, false, fmt.Errorf("moving unreadable state db aside: %w (open error: %v)", renameErr, err)
	}

	s, err = LoadAt(path)
	if err != nil {
		return nil, false, err
	}

	return s, true, nil
}

// Close closes the database.
func (s *State) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *State) Path() string {
	return s.path
}

// LastSync returns the time of the last successful reconciliation pass,
// or the zero time if none has been recorded.
func (s *State) LastSync() time.Time {
	var ms int64

	_ = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(appBucket).Get(lastSyncKey)
		if v == nil {
			return nil
		}

		parsed, err := strconv.ParseInt(string(v), 10, 64)
		if err == nil {
			ms = parsed
		}

		return nil
	})

	if ms == 0 {
		return time.Time{}
	}

	return time.UnixMilli(ms)
}

// SetLastSync persists the time of the last successful pass.
func (s *State) SetLastSync(t time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(appBucket).Put(lastSyncKey, []byte(strconv.FormatInt(t.UnixMilli(), 10)))
	})
}

// DefaultMode returns the persisted default note mode, or empty string.
func (s *State) DefaultMode() string {
	var mode string

	_ = s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(appBucket).Get(modeKey); v != nil {
			mode = string(v)
		}

		return nil
	})

	return mode
}

// SetDefaultMode persists the default note mode.
func (s *State) SetDefaultMode(mode string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(appBucket).Put(modeKey, []byte(mode))
	})
}

// GetPending returns the raw pending record for a note, or nil if absent.
func (s *State) GetPending(ownerID, id string) ([]byte, error) {
	var out []byte

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(pendingBucket(ownerID))
		if b == nil {
			return nil
		}

		if v := b.Get([]byte(id)); v != nil {
			// bolt values are only valid for the life of the transaction.
			out = append([]byte(nil), v...)
		}

		return nil
	})

	return out, err
}

// PutPending stores the raw pending record for a note, replacing any
// previous record for the same id.
func (s *State) PutPending(ownerID, id string, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(pendingBucket(ownerID))
		if err != nil {
			return err
		}

		return b.Put([]byte(id), data)
	})
}

// DeletePending removes the given ids in a single transaction. Missing
// ids are ignored.
func (s *State) DeletePending(ownerID string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(pendingBucket(ownerID))
		if b == nil {
			return nil
		}

		for _, id := range ids {
			if err := b.Delete([]byte(id)); err != nil {
				return err
			}
		}

		return nil
	})
}

// DeletePendingIf removes each id for which remove returns true. The check
// and the delete share one transaction so a concurrent PutPending cannot
// land in between. Returns the ids actually removed.
func (s *State) DeletePendingIf(ownerID string, ids []string, remove func(id string, data []byte) bool) ([]string, error) {
	var removed []string

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(pendingBucket(ownerID))
		if b == nil {
			return nil
		}

		for _, id := range ids {
			v := b.Get([]byte(id))
			if v == nil || !remove(id, v) {
				continue
			}

			if err := b.Delete([]byte(id)); err != nil {
				return err
			}

			removed = append(removed, id)
		}

		return nil
	})

	return removed, err
}

// AllPending returns a copy of every pending record for an owner, keyed by
// note id.
func (s *State) AllPending(ownerID string) (map[string][]byte, error) {
	result := make(map[string][]byte)

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(pendingBucket(ownerID))
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			result[string(k)] = append([]byte(nil), v...)
			return nil
		})
	})

	return result, err
}

// PendingCount returns the number of pending records for an owner.
func (s *State) PendingCount(ownerID string) int {
	count := 0

	_ = s.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket(pendingBucket(ownerID)); b != nil {
			count = b.Stats().KeyN
		}

		return nil
	})

	return count
}

// DefaultPath returns ~/.notesync/state.db.
func DefaultPath() (string, error) {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(dir, ".notesync", "state.db"), nil
}
