package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"sitemirror/pkg/log"
	"sitemirror/pkg/utils"
)

const (
	seenKeyPrefix = "seen:" // Prefix for visited URL keys in DB
	pathKeyPrefix = "path:" // Prefix for local path mapping keys in DB
	crawlDBDir    = "crawl_db"
)

// BadgerStore implements the CrawlStore interface using BadgerDB. The
// local path map is kept in memory as well so LocalPath stays cheap on
// the rewrite hot path.
type BadgerStore struct {
	db       *badger.DB
	log      *logrus.Entry
	keyCount atomic.Int64 // Cached seen count for O(1) SeenCount

	pathMu sync.RWMutex
	paths  map[string]string
}

// NewBadgerStore initializes and returns a new BadgerStore. Each host
// gets its own DB directory under stateDir; existing state is removed
// so every run starts fresh.
func NewBadgerStore(stateDir, siteHost string, logger *logrus.Entry) (*BadgerStore, error) {
	store := &BadgerStore{
		log:   logger,
		paths: make(map[string]string),
	}

	dbDirName := utils.SanitizeFilename(siteHost) + "_" + crawlDBDir
	dbPath := filepath.Join(stateDir, dbDirName)

	if err := os.RemoveAll(dbPath); err != nil {
		logger.Errorf("Failed to remove existing state directory %s: %v", dbPath, err)
	}
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create state directory %s: %w", utils.ErrFilesystem, dbPath, err)
	}

	logger.Infof("Initializing crawl state database at: %s", dbPath)

	badgerLogger := log.NewBadgerLogrusAdapter(logger.WithField("component", "badgerdb"))
	opts := badger.DefaultOptions(dbPath).
		WithLogger(badgerLogger).
		WithNumVersionsToKeep(1)

	var err error
	store.db, err = badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database at %s: %w", utils.ErrDatabase, dbPath, err)
	}

	logger.Info("Crawl state database initialized successfully.")
	return store, nil
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction
// conflicts. Concurrent MVCC transactions on overlapping keys can
// return badger.ErrConflict; these resolve in microseconds, so a tight
// retry loop is sufficient.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := 0; i < maxConflictRetries; i++ {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// MarkSeen implements the CrawlStore interface
func (s *BadgerStore) MarkSeen(canonicalURL string) (bool, error) {
	if s.db == nil {
		return false, errors.New("crawl DB not initialized")
	}
	added := false
	key := []byte(seenKeyPrefix + canonicalURL)

	err := s.dbUpdate(func(txn *badger.Txn) error {
		_, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			e := badger.NewEntry(key, []byte{})
			errSet := txn.SetEntry(e)
			if errSet == nil {
				added = true
			}
			return errSet
		}
		return errGet
	})

	if err != nil {
		s.log.WithField("key", string(key)).Errorf("DB Update error in MarkSeen: %v", err)
		return false, fmt.Errorf("%w: marking seen key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if added {
		s.keyCount.Add(1)
	}

	return added, nil
}

// Seen implements the CrawlStore interface
func (s *BadgerStore) Seen(canonicalURL string) (bool, error) {
	if s.db == nil {
		return false, errors.New("crawl DB not initialized")
	}
	found := false
	key := []byte(seenKeyPrefix + canonicalURL)

	err := s.db.View(func(txn *badger.Txn) error {
		_, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return errGet
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: checking seen key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	return found, nil
}

// SetLocalPath implements the CrawlStore interface
func (s *BadgerStore) SetLocalPath(canonicalURL, relPath string) error {
	if s.db == nil {
		return errors.New("crawl DB not initialized")
	}
	key := []byte(pathKeyPrefix + canonicalURL)

	err := s.dbUpdate(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key, []byte(relPath)))
	})
	if err != nil {
		s.log.WithField("key", string(key)).Errorf("DB Update error in SetLocalPath: %v", err)
		return fmt.Errorf("%w: setting path key '%s': %w", utils.ErrDatabase, string(key), err)
	}

	s.pathMu.Lock()
	s.paths[canonicalURL] = relPath
	s.pathMu.Unlock()
	return nil
}

// LocalPath implements the CrawlStore interface
func (s *BadgerStore) LocalPath(canonicalURL string) (string, bool) {
	s.pathMu.RLock()
	rel, ok := s.paths[canonicalURL]
	s.pathMu.RUnlock()
	return rel, ok
}

// SeenCount implements the CrawlStore interface
func (s *BadgerStore) SeenCount() (int, error) {
	return int(s.keyCount.Load()), nil
}

// Close implements the CrawlStore interface
func (s *BadgerStore) Close() error {
	if s.db == nil {
		return nil
	}
	s.log.Info("Closing crawl state database...")
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: closing badger database: %w", utils.ErrDatabase, err)
	}
	return nil
}
