package doubleratchet

import (
	"encoding/hex"

	"github.com/awnumar/memguard"
)

// Crypto is a cryptography supplement for the library.
type Crypto interface {
	// GenerateDH creates a new Diffie-Hellman key pair.
	GenerateDH() (DHPair, error)

	// DH returns the output from the Diffie-Hellman calculation between
	// the private key from the DH key pair dhPair and the DH public key dhPub.
	// It fails if dhPub is not a usable public key.
	DH(dhPair DHPair, dhPub Key) (Key, error)

	// Encrypt returns an AEAD encryption of plaintext with message key mk. The associated data
	// is authenticated but is not included in the ciphertext. Every mk is used exactly once, so
	// the AEAD nonce may be derived from mk.
	Encrypt(mk Key, plaintext, ad []byte) (authCiphertext []byte)

	// Decrypt returns the AEAD decryption of ciphertext with message key mk. It never returns
	// partial plaintext.
	Decrypt(mk Key, authCiphertext, ad []byte) (plaintext []byte, err error)

	KDFer
}

// DHPair is a general interface for DH pairs representation.
type DHPair interface {
	PrivateKey() Key
	PublicKey() Key
}

// Key is any 32-byte key. It's created for the possibility of pretty hex output.
type Key [32]byte

// String returns the key hex-encoded.
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// IsZero reports whether all bytes of k are zero.
func (k Key) IsZero() bool {
	return k == Key{}
}

// wipe scrubs k in place.
func (k *Key) wipe() {
	if k != nil {
		memguard.WipeBytes(k[:])
	}
}

func wipeBytes(b []byte) {
	memguard.WipeBytes(b)
}

func wipeKeys(keys []Key) {
	for i := range keys {
		keys[i].wipe()
	}
}

// NewDHPair wraps an existing private/public key pair, e.g. one loaded from disk.
func NewDHPair(privateKey, publicKey Key) DHPair {
	return &dhPair{privateKey: privateKey, publicKey: publicKey}
}

type dhPair struct {
	privateKey Key
	publicKey  Key
}

func (p dhPair) PrivateKey() Key {
	return p.privateKey
}

func (p dhPair) PublicKey() Key {
	return p.publicKey
}

// String never prints the private key.
func (p dhPair) String() string {
	return "{publicKey: " + p.publicKey.String() + "}"
}
