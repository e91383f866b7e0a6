package doubleratchet

import "sync"

// KeyStore is an interface of an abstract in-memory or persistent storage of skipped
// message keys, indexed by ratchet public key and message number.
//
// A key removed with RemoveKey must never be returned by a later GetKey.
type KeyStore interface {
	// GetKey returns a message key by the given public key and message number.
	GetKey(pubKey Key, n uint32) (mk Key, ok bool, err error)

	// StoreKey saves the given mk under the specified pubKey and n.
	StoreKey(pubKey Key, n uint32, mk Key) error

	// RemoveKey ensures there's no message key under the specified pubKey and n.
	RemoveKey(pubKey Key, n uint32) error

	// ContainsPK reports whether any message key is stored under pubKey.
	ContainsPK(pubKey Key) (bool, error)
}

// KeysExtender is implemented by stores that can save consecutive keys in one batch.
type KeysExtender interface {
	// Extend saves keys[i] under (pubKey, start+i).
	Extend(pubKey Key, start uint32, keys []Key) error
}

// StoreKeys saves keys[i] under (pubKey, start+i), in one batch when ks supports it.
func StoreKeys(ks KeyStore, pubKey Key, start uint32, keys []Key) error {
	if len(keys) == 0 {
		return nil
	}
	if e, ok := ks.(KeysExtender); ok {
		return e.Extend(pubKey, start, keys)
	}
	for i, mk := range keys {
		if err := ks.StoreKey(pubKey, start+uint32(i), mk); err != nil {
			return err
		}
	}
	return nil
}

// KeyStoreInMemory is an in-memory message keys storage. It is safe for concurrent use
// and may be shared by several ratchets.
type KeyStoreInMemory struct {
	mu   sync.RWMutex
	keys map[Key]map[uint32]Key
}

// NewKeyStoreInMemory returns an empty store. The zero value is usable as well.
func NewKeyStoreInMemory() *KeyStoreInMemory {
	return &KeyStoreInMemory{keys: make(map[Key]map[uint32]Key)}
}

func (s *KeyStoreInMemory) GetKey(pubKey Key, n uint32) (Key, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs, ok := s.keys[pubKey]
	if !ok {
		return Key{}, false, nil
	}
	mk, ok := msgs[n]
	return mk, ok, nil
}

func (s *KeyStoreInMemory) StoreKey(pubKey Key, n uint32, mk Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.put(pubKey, n, mk)
	return nil
}

func (s *KeyStoreInMemory) Extend(pubKey Key, start uint32, keys []Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, mk := range keys {
		s.put(pubKey, start+uint32(i), mk)
	}
	return nil
}

func (s *KeyStoreInMemory) put(pubKey Key, n uint32, mk Key) {
	if s.keys == nil {
		s.keys = make(map[Key]map[uint32]Key)
	}
	if _, ok := s.keys[pubKey]; !ok {
		s.keys[pubKey] = make(map[uint32]Key)
	}
	s.keys[pubKey][n] = mk
}

func (s *KeyStoreInMemory) RemoveKey(pubKey Key, n uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, ok := s.keys[pubKey]
	if !ok {
		return nil
	}
	if _, ok := msgs[n]; ok {
		msgs[n] = Key{}
		delete(msgs, n)
	}
	if len(msgs) == 0 {
		delete(s.keys, pubKey)
	}
	return nil
}

func (s *KeyStoreInMemory) ContainsPK(pubKey Key) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.keys[pubKey]
	return ok, nil
}

// Count returns number of message keys stored under pubKey.
func (s *KeyStoreInMemory) Count(pubKey Key) uint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return uint(len(s.keys[pubKey]))
}
