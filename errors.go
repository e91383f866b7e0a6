package doubleratchet

import (
	"errors"
	"fmt"
)

var (
	// ErrDecryptFailure is returned for every failed verification of the ciphertext,
	// the associated data or the header. It deliberately carries no detail.
	ErrDecryptFailure = errors.New("doubleratchet: could not verify-decrypt the ciphertext, associated data and header")

	// ErrUninitializedChain means a chain key was used before it was set up. Correct call
	// sequencing never reaches it.
	ErrUninitializedChain = errors.New("doubleratchet: chain keys were uninitialized")
)

// StoreError wraps a failure of the KeyStore.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("doubleratchet: key store: %v", e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// MessageKeyNotFoundError means the store knows the ratchet public key but holds no key
// for the message number.
type MessageKeyNotFoundError struct {
	PubKey Key
	N      uint32
}

func (e *MessageKeyNotFoundError) Error() string {
	return fmt.Sprintf("doubleratchet: message key not found for key %s with index %d", e.PubKey, e.N)
}

// SkipTooLargeError means the header n or pn asks for more chain steps than MaxSkip
// allows.
type SkipTooLargeError struct {
	Skip uint32
	Max  uint32
}

func (e *SkipTooLargeError) Error() string {
	return fmt.Sprintf("doubleratchet: header requires skipping %d message keys, at most %d allowed", e.Skip, e.Max)
}

func storeErr(err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Err: err}
}
