package doubleratchet

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

var errInvalidCiphertext = errors.New("invalid ciphertext")

// These labels domain-separate the HKDF expansions from each other.
var (
	rootKDFInfo    = []byte("heraldratchet root chain v1")
	chainKDFInfo   = []byte("heraldratchet symmetric chain v1")
	messageKDFInfo = []byte("heraldratchet message key v1")
)

// DefaultCrypto is an implementation of Crypto with cryptographic primitives recommended
// by the Signal Double Ratchet document. However, some details are different,
// see function comments for details.
type DefaultCrypto struct{}

// GenerateDH creates a new X25519 key pair.
func (c DefaultCrypto) GenerateDH() (DHPair, error) {
	var privKey Key
	if _, err := io.ReadFull(rand.Reader, privKey[:]); err != nil {
		return nil, fmt.Errorf("couldn't generate privKey: %w", err)
	}
	privKey[0] &= 248
	privKey[31] &= 127
	privKey[31] |= 64

	pub, err := curve25519.X25519(privKey[:], curve25519.Basepoint)
	if err != nil {
		privKey.wipe()
		return nil, fmt.Errorf("couldn't derive pubKey: %w", err)
	}
	var pubKey Key
	copy(pubKey[:], pub)
	return &dhPair{
		privateKey: privKey,
		publicKey:  pubKey,
	}, nil
}

// DH performs X25519. Low-order public keys are rejected.
func (c DefaultCrypto) DH(dhPair DHPair, dhPub Key) (Key, error) {
	privKey := dhPair.PrivateKey()
	defer privKey.wipe()

	out, err := curve25519.X25519(privKey[:], dhPub[:])
	if err != nil {
		return Key{}, err
	}
	var dhOut Key
	copy(dhOut[:], out)
	return dhOut, nil
}

// KdfRK uses HKDF-SHA256 salted with the root key and reads both outputs from
// one expansion.
func (c DefaultCrypto) KdfRK(rk, dhOut Key) (rootKey, chainKey Key) {
	var (
		r   = hkdf.New(sha256.New, dhOut[:], rk[:], rootKDFInfo)
		buf = make([]byte, 64)
	)

	// The only error here is an entropy limit which won't be reached for such a short buffer.
	_, _ = io.ReadFull(r, buf)

	copy(rootKey[:], buf[:32])
	copy(chainKey[:], buf[32:])
	wipeBytes(buf)
	return rootKey, chainKey
}

// KdfCK differs from the HMAC construction Signal recommends: the chain key
// is the HKDF input and the next chain key and the message key are the two
// halves of a single expansion.
func (c DefaultCrypto) KdfCK(ck Key) (chainKey, msgKey Key) {
	var (
		r   = hkdf.New(sha256.New, ck[:], nil, chainKDFInfo)
		buf = make([]byte, 64)
	)

	_, _ = io.ReadFull(r, buf)

	copy(chainKey[:], buf[:32])
	copy(msgKey[:], buf[32:])
	wipeBytes(buf)
	return chainKey, msgKey
}

// Encrypt uses ChaCha20-Poly1305 instead of AES-256-CBC with HMAC. The AEAD key
// and nonce are both derived from mk, which is never reused.
func (c DefaultCrypto) Encrypt(mk Key, plaintext, ad []byte) []byte {
	encKey, nonce := c.deriveEncKeys(mk)
	defer encKey.wipe()

	aead, _ := chacha20poly1305.New(encKey[:]) // No error will occur here as encKey is guaranteed to be 32 bytes.
	return aead.Seal(nil, nonce[:], plaintext, ad)
}

// Decrypt opens a ciphertext produced by Encrypt.
func (c DefaultCrypto) Decrypt(mk Key, authCiphertext, ad []byte) ([]byte, error) {
	if len(authCiphertext) < chacha20poly1305.Overhead {
		return nil, errInvalidCiphertext
	}
	encKey, nonce := c.deriveEncKeys(mk)
	defer encKey.wipe()

	aead, _ := chacha20poly1305.New(encKey[:])
	plaintext, err := aead.Open(nil, nonce[:], authCiphertext, ad)
	if err != nil {
		return nil, errInvalidCiphertext
	}
	return plaintext, nil
}

// deriveEncKeys derives the AEAD key and nonce out of mk.
func (c DefaultCrypto) deriveEncKeys(mk Key) (encKey Key, nonce [chacha20poly1305.NonceSize]byte) {
	var (
		r   = hkdf.New(sha256.New, mk[:], make([]byte, 32), messageKDFInfo)
		buf = make([]byte, 32+chacha20poly1305.NonceSize)
	)

	_, _ = io.ReadFull(r, buf)

	copy(encKey[:], buf[:32])
	copy(nonce[:], buf[32:])
	wipeBytes(buf)
	return encKey, nonce
}
