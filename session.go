package doubleratchet

import (
	"errors"
	"fmt"
	"sync"
)

// ErrCannotSendYet is returned by Session.RatchetEncrypt while the ratchet has no
// sending chain, i.e. before the first message from the other party arrived.
var ErrCannotSendYet = errors.New("doubleratchet: cannot send before receiving")

// Session of the party involved in the Double Ratchet Algorithm. It serializes access to
// one Ratchet and persists it after every operation that changed it.
type Session struct {
	mu sync.Mutex

	id      []byte
	ratchet *Ratchet
	keys    KeyStore
	storage SessionStorage
}

// NewAliceSession creates a session for the initiating party and stores it. ks may be
// nil for an in-memory key store, storage may be nil to disable persistence.
func NewAliceSession(id []byte, sharedKey, theirPub Key, initialRecv *Key, ks KeyStore, storage SessionStorage, opts ...Option) (*Session, error) {
	r, err := NewAlice(sharedKey, theirPub, initialRecv, opts...)
	if err != nil {
		return nil, err
	}
	return newSession(id, r, ks, storage)
}

// NewBobSession creates a session for the responding party and stores it.
func NewBobSession(id []byte, sharedKey Key, ours DHPair, theirPub Key, initialSend *Key, ks KeyStore, storage SessionStorage, opts ...Option) (*Session, error) {
	r, err := NewBob(sharedKey, ours, theirPub, initialSend, opts...)
	if err != nil {
		return nil, err
	}
	return newSession(id, r, ks, storage)
}

// LoadSession restores a session from storage and applies the options to its ratchet.
func LoadSession(id []byte, ks KeyStore, storage SessionStorage, opts ...Option) (*Session, error) {
	if storage == nil {
		return nil, fmt.Errorf("doubleratchet: session storage is nil")
	}
	data, err := storage.LoadSession(id)
	if err != nil {
		return nil, err
	}
	defer wipeBytes(data)

	r, err := UnmarshalRatchet(data, opts...)
	if err != nil {
		return nil, err
	}
	if ks == nil {
		ks = NewKeyStoreInMemory()
	}
	return &Session{id: id, ratchet: r, keys: ks, storage: storage}, nil
}

func newSession(id []byte, r *Ratchet, ks KeyStore, storage SessionStorage) (*Session, error) {
	if ks == nil {
		ks = NewKeyStoreInMemory()
	}
	s := &Session{id: id, ratchet: r, keys: ks, storage: storage}
	if err := s.store(); err != nil {
		r.Wipe()
		return nil, err
	}
	return s, nil
}

func (s *Session) store() error {
	if s.storage == nil {
		return nil
	}
	data, err := s.ratchet.MarshalBinary()
	if err != nil {
		return err
	}
	defer wipeBytes(data)

	if err := s.storage.SaveSession(s.id, data); err != nil {
		return fmt.Errorf("doubleratchet: failed to save session: %w", err)
	}
	return nil
}

// ID returns the session id.
func (s *Session) ID() []byte {
	return s.id
}

// PublicKey returns the current ratchet public key of this party.
func (s *Session) PublicKey() Key {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ratchet.PublicKey()
}

// CanSend reports whether RatchetEncrypt would succeed.
func (s *Session) CanSend() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ratchet.CanSend()
}

// RatchetEncrypt encrypts plaintext and stores the advanced ratchet.
func (s *Session) RatchetEncrypt(plaintext, ad []byte) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok, err := s.ratchet.RatchetEncrypt(plaintext, ad)
	if err != nil {
		return Message{}, err
	}
	if !ok {
		return Message{}, ErrCannotSendYet
	}
	if err := s.store(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// RatchetDecrypt decrypts m and stores the advanced ratchet. A failed decryption
// leaves both the ratchet and the storage untouched.
func (s *Session) RatchetDecrypt(m Message, ad []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	plaintext, err := s.ratchet.DecryptMessage(s.keys, m, ad)
	if err != nil {
		return nil, err
	}
	if err := s.store(); err != nil {
		wipeBytes(plaintext)
		return nil, err
	}
	return plaintext, nil
}

// Close wipes the in-memory ratchet. The stored state is left as is.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ratchet.Wipe()
}
