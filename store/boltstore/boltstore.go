// Package boltstore implements the skipped message key store and the session storage
// with a bbolt backend.
package boltstore

import (
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"

	doubleratchet "github.com/stalker-loki/heraldratchet"
)

const (
	metadataBucket = "metadata"
	keysBucket     = "message_keys"
	sessionsBucket = "sessions"
	versionKey     = "version"
)

// Store holds message keys in one sub-bucket per ratchet public key, indexed by the
// big-endian message number, and serialized sessions by id.
type Store struct {
	db *bolt.DB
}

var (
	_ doubleratchet.KeyStore       = (*Store)(nil)
	_ doubleratchet.KeysExtender   = (*Store)(nil)
	_ doubleratchet.SessionStorage = (*Store)(nil)
)

// New creates (or loads) a store with the given file name f.
func New(f string) (*Store, error) {
	var err error

	s := new(Store)
	s.db, err = bolt.Open(f, 0600, nil)
	if err != nil {
		return nil, err
	}

	if err = s.db.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists([]byte(metadataBucket))
		if err != nil {
			return err
		}
		for _, name := range []string{keysBucket, sessionsBucket} {
			if _, err = tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}

		if b := bkt.Get([]byte(versionKey)); b != nil {
			if len(b) != 1 || b[0] != 0 {
				return fmt.Errorf("boltstore: incompatible version: %d", uint(b[0]))
			}
			return nil
		}
		return bkt.Put([]byte(versionKey), []byte{0})
	}); err != nil {
		s.db.Close()
		return nil, err
	}

	return s, nil
}

// Close syncs and closes the database.
func (s *Store) Close() error {
	if err := s.db.Sync(); err != nil {
		s.db.Close()
		return err
	}
	return s.db.Close()
}

func counterKey(n uint32) []byte {
	var k [4]byte
	binary.BigEndian.PutUint32(k[:], n)
	return k[:]
}

func (s *Store) GetKey(pubKey doubleratchet.Key, n uint32) (mk doubleratchet.Key, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		pkBkt := tx.Bucket([]byte(keysBucket)).Bucket(pubKey[:])
		if pkBkt == nil {
			return nil
		}
		v := pkBkt.Get(counterKey(n))
		if v == nil {
			return nil
		}
		if len(v) != len(mk) {
			return fmt.Errorf("boltstore: corrupted message key for %s/%d", pubKey, n)
		}
		// v is only valid for the lifetime of the transaction.
		copy(mk[:], v)
		ok = true
		return nil
	})
	return mk, ok, err
}

func (s *Store) StoreKey(pubKey doubleratchet.Key, n uint32, mk doubleratchet.Key) error {
	return s.Extend(pubKey, n, []doubleratchet.Key{mk})
}

// Extend stores all keys in a single transaction.
func (s *Store) Extend(pubKey doubleratchet.Key, start uint32, keys []doubleratchet.Key) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		pkBkt, err := tx.Bucket([]byte(keysBucket)).CreateBucketIfNotExists(pubKey[:])
		if err != nil {
			return err
		}
		for i := range keys {
			if err := pkBkt.Put(counterKey(start+uint32(i)), keys[i][:]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) RemoveKey(pubKey doubleratchet.Key, n uint32) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		kBkt := tx.Bucket([]byte(keysBucket))
		pkBkt := kBkt.Bucket(pubKey[:])
		if pkBkt == nil {
			return nil
		}
		if err := pkBkt.Delete(counterKey(n)); err != nil {
			return err
		}

		// Drop the public key once its last message key is gone.
		if k, _ := pkBkt.Cursor().First(); k == nil {
			return kBkt.DeleteBucket(pubKey[:])
		}
		return nil
	})
}

func (s *Store) ContainsPK(pubKey doubleratchet.Key) (ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		ok = tx.Bucket([]byte(keysBucket)).Bucket(pubKey[:]) != nil
		return nil
	})
	return ok, err
}

// Count returns the number of message keys stored under pubKey.
func (s *Store) Count(pubKey doubleratchet.Key) (n int, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		pkBkt := tx.Bucket([]byte(keysBucket)).Bucket(pubKey[:])
		if pkBkt != nil {
			n = pkBkt.Stats().KeyN
		}
		return nil
	})
	return n, err
}

func (s *Store) SaveSession(id []byte, state []byte) error {
	if len(id) == 0 {
		return fmt.Errorf("boltstore: empty session id")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(sessionsBucket)).Put(id, state)
	})
}

func (s *Store) LoadSession(id []byte) (state []byte, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(sessionsBucket)).Get(id)
		if v == nil {
			return doubleratchet.ErrSessionNotFound
		}
		state = append([]byte(nil), v...)
		return nil
	})
	return state, err
}
