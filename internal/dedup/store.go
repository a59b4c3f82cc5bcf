// Package dedup suppresses webhook redeliveries. Notion automations retry
// deliveries that time out or fail; a processed key is remembered for a TTL
// so replays are acknowledged without re-running the pipeline.
package dedup

import (
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Store is a badger-backed keystore of processed delivery ids.
type Store struct {
	db  *badger.DB
	ttl time.Duration
}

// Open creates or opens the store at path. An empty path uses an in-memory
// database (tests). Badger expiry has one-second granularity, so the TTL is
// clamped to a 1s minimum; sub-second entries would be born expired.
func Open(path string, ttl time.Duration) (*Store, error) {
	if ttl < time.Second {
		ttl = time.Second
	}
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, ttl: ttl}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Seen reports whether the key was marked within the TTL window.
func (s *Store) Seen(key string) (bool, error) {
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(s.key(key))
		if err == nil {
			found = true
			return nil
		}
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
	return found, err
}

// Mark records the key as processed at t.
func (s *Store) Mark(key string, t time.Time) error {
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(s.key(key), []byte(t.UTC().Format(time.RFC3339))).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
}

// Ping verifies the database is usable (readiness checks).
func (s *Store) Ping() error {
	return s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte("dedup:ping"))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

func (s *Store) key(k string) []byte {
	return []byte("dedup:" + k)
}
