package doubleratchet

import (
	"errors"
	"sync"
)

// ErrSessionNotFound is returned by SessionStorage.LoadSession for an unknown id.
var ErrSessionNotFound = errors.New("doubleratchet: session not found")

// SessionStorage persists serialized ratchets by session id.
type SessionStorage interface {
	// SaveSession stores state under id, replacing any previous state.
	SaveSession(id []byte, state []byte) error

	// LoadSession returns the state stored under id, or ErrSessionNotFound.
	LoadSession(id []byte) ([]byte, error)
}

// SessionStorageInMemory keeps sessions in a map.
type SessionStorageInMemory struct {
	mu       sync.RWMutex
	sessions map[string][]byte
}

// NewSessionStorageInMemory returns an empty storage.
func NewSessionStorageInMemory() *SessionStorageInMemory {
	return &SessionStorageInMemory{sessions: make(map[string][]byte)}
}

func (s *SessionStorageInMemory) SaveSession(id []byte, state []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sessions == nil {
		s.sessions = make(map[string][]byte)
	}
	if old, ok := s.sessions[string(id)]; ok {
		wipeBytes(old)
	}
	s.sessions[string(id)] = append([]byte(nil), state...)
	return nil
}

func (s *SessionStorageInMemory) LoadSession(id []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.sessions[string(id)]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return append([]byte(nil), state...), nil
}
