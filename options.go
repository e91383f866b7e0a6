package doubleratchet

import (
	"fmt"

	"gopkg.in/op/go-logging.v1"
)

// Option is a constructor option.
type Option func(*Ratchet) error

// WithMaxSkip specifies the maximum number of skipped message in a single chain.
func WithMaxSkip(n int) Option {
	return func(r *Ratchet) error {
		if n < 0 {
			return fmt.Errorf("n must be non-negative")
		}
		if uint64(n) >= 1<<32-1 {
			return fmt.Errorf("n must fit into a message counter")
		}
		r.maxSkip = uint32(n)
		return nil
	}
}

// WithCrypto replaces DefaultCrypto. Both parties must use the same primitives.
func WithCrypto(c Crypto) Option {
	return func(r *Ratchet) error {
		if c == nil {
			return fmt.Errorf("crypto is nil")
		}
		r.crypto = c
		r.rootCh.Crypto = c
		if r.sendCh != nil {
			r.sendCh.Crypto = c
		}
		if r.recvCh != nil {
			r.recvCh.Crypto = c
		}
		return nil
	}
}

// WithLogger sets the logger. Only public header fields are ever logged.
func WithLogger(l *logging.Logger) Option {
	return func(r *Ratchet) error {
		if l == nil {
			return fmt.Errorf("logger is nil")
		}
		r.log = l
		return nil
	}
}
