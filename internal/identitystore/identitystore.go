// Package identitystore persists a node's signing keypair and a short
// journal of recently-seen message ids across restarts, so the "teardown
// and restore" scenario (spec.md §8 scenario 5) doesn't force a node to
// relearn the network or risk re-dispatching a message it had already
// handled seconds before teardown. Grounded on the teacher's
// internal/storage/grantsbolt/store.go (same bbolt bucket-per-concern
// layout, same Open/Close shape).
package identitystore

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	bucketIdentity = "identity"
	bucketSeen     = "seen"
	keyPriv        = "sign_priv"

	defaultTimeout = 2 * time.Second
)

// Store is a bbolt-backed persistence layer for one node's data directory.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the identity store at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("identitystore: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: defaultTimeout})
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketIdentity)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketSeen)); err != nil {
			return err
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// LoadOrCreateSigningKey returns the ed25519 private key derived from the
// persisted seed, generating and persisting a fresh seed on first use so
// the node's Address is stable across restarts.
func (s *Store) LoadOrCreateSigningKey() (ed25519.PrivateKey, error) {
	var seed []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketIdentity))
		if v := b.Get([]byte(keyPriv)); v != nil {
			seed = append([]byte{}, v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if seed != nil {
		if len(seed) != ed25519.SeedSize {
			return nil, errors.New("identitystore: corrupt signing seed")
		}
		return ed25519.NewKeyFromSeed(seed), nil
	}

	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, err
	}
	newSeed := priv.Seed()
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketIdentity)).Put([]byte(keyPriv), newSeed)
	})
	if err != nil {
		return nil, err
	}
	return priv, nil
}

// seenRecord is the persisted form of one SeenMemory entry.
type seenRecord struct {
	InsertedAtUnixMs int64 `json:"t"`
}

// SaveSeen persists the current seen-id set so it can be replayed on next
// startup.
func (s *Store) SaveSeen(ids map[string]time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketSeen))
		for id, t := range ids {
			rec := seenRecord{InsertedAtUnixMs: t.UnixMilli()}
			val, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(id), val); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadSeen returns every persisted seen-id with its original insertion
// time, so the caller can drop entries already past memory_duration
// before replaying the rest into SeenMemory.
func (s *Store) LoadSeen() (map[string]time.Time, error) {
	out := make(map[string]time.Time)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketSeen))
		return b.ForEach(func(k, v []byte) error {
			var rec seenRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil // skip corrupt entries rather than fail startup
			}
			out[string(k)] = time.UnixMilli(rec.InsertedAtUnixMs)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PruneSeen deletes every persisted seen-id inserted before cutoff.
func (s *Store) PruneSeen(cutoff time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketSeen))
		var stale [][]byte
		if err := b.ForEach(func(k, v []byte) error {
			var rec seenRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				stale = append(stale, append([]byte{}, k...))
				return nil
			}
			if time.UnixMilli(rec.InsertedAtUnixMs).Before(cutoff) {
				stale = append(stale, append([]byte{}, k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
