package doubleratchet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

var errStoreDown = errors.New("store is down")

// failingStore fails the operations whose flag is set.
type failingStore struct {
	*KeyStoreInMemory

	failContains, failGet, failExtend, failRemove bool
}

func newFailingStore() *failingStore {
	return &failingStore{KeyStoreInMemory: NewKeyStoreInMemory()}
}

func (s *failingStore) ContainsPK(pubKey Key) (bool, error) {
	if s.failContains {
		return false, errStoreDown
	}
	return s.KeyStoreInMemory.ContainsPK(pubKey)
}

func (s *failingStore) GetKey(pubKey Key, n uint32) (Key, bool, error) {
	if s.failGet {
		return Key{}, false, errStoreDown
	}
	return s.KeyStoreInMemory.GetKey(pubKey, n)
}

func (s *failingStore) StoreKey(pubKey Key, n uint32, mk Key) error {
	if s.failExtend {
		return errStoreDown
	}
	return s.KeyStoreInMemory.StoreKey(pubKey, n, mk)
}

func (s *failingStore) Extend(pubKey Key, start uint32, keys []Key) error {
	if s.failExtend {
		return errStoreDown
	}
	return StoreKeys(s.KeyStoreInMemory, pubKey, start, keys)
}

func (s *failingStore) RemoveKey(pubKey Key, n uint32) error {
	if s.failRemove {
		return errStoreDown
	}
	return s.KeyStoreInMemory.RemoveKey(pubKey, n)
}

func requireStoreError(t *testing.T, err error) {
	t.Helper()

	var se *StoreError
	require.ErrorAs(t, err, &se)
	require.ErrorIs(t, err, errStoreDown)
}

// pureAsymmetricSetup gives neither party an initial chain key.
func pureAsymmetricSetup(t *testing.T) (alice, bob *Ratchet, bobPair DHPair) {
	t.Helper()

	_, bobPair = testKeyPairs(t)
	alice, err := NewAlice(sk, bobPair.PublicKey(), nil)
	require.NoError(t, err)
	bob, err = NewBob(sk, bobPair, alice.PublicKey(), nil)
	require.NoError(t, err)
	return alice, bob, bobPair
}

func TestRatchet_StoreError_NextChain(t *testing.T) {
	// Arrange.
	alice, bob := asymmetricSetup(t)
	ks := newFailingStore()
	mustEncrypt(t, alice, []byte("lost"), adA)
	m := mustEncrypt(t, alice, []byte("Hi Bob"), adA)
	before := stateOf(bob)
	ks.failExtend = true

	// Act.
	_, err := bob.DecryptMessage(ks, m, adA)

	// Assert.
	requireStoreError(t, err)
	require.Equal(t, before, stateOf(bob))
	require.Zero(t, ks.Count(m.Header.DH))

	ks.failExtend = false
	requireDecrypt(t, bob, ks, m, adA, []byte("Hi Bob"))
	require.EqualValues(t, 1, ks.Count(m.Header.DH))
}

func TestRatchet_StoreError_CurrentChain(t *testing.T) {
	// Arrange.
	alice, bob := asymmetricSetup(t)
	ks := newFailingStore()
	requireDecrypt(t, bob, ks, mustEncrypt(t, alice, []byte("0"), adA), adA, []byte("0"))
	mustEncrypt(t, alice, []byte("lost"), adA)
	m := mustEncrypt(t, alice, []byte("2"), adA)
	before := stateOf(bob)
	ks.failExtend = true

	// Act.
	_, err := bob.DecryptMessage(ks, m, adA)

	// Assert.
	requireStoreError(t, err)
	require.Equal(t, before, stateOf(bob))

	ks.failExtend = false
	requireDecrypt(t, bob, ks, m, adA, []byte("2"))
}

func TestRatchet_StoreError_Lookup(t *testing.T) {
	// Arrange.
	alice, bob := asymmetricSetup(t)
	ks := newFailingStore()
	mA0 := mustEncrypt(t, alice, []byte("0"), adA)
	requireDecrypt(t, bob, ks, mustEncrypt(t, alice, []byte("1"), adA), adA, []byte("1"))
	before := stateOf(bob)

	// Act.
	ks.failContains = true
	unknown := Message{Header: MessageHeader{DH: Key{9}}, Ciphertext: []byte("unknown dh")}
	_, errContains := bob.DecryptMessage(ks, unknown, adA)
	ks.failContains = false

	ks.failGet = true
	_, errGet := bob.DecryptMessage(ks, mA0, adA)
	ks.failGet = false

	// Assert.
	requireStoreError(t, errContains)
	requireStoreError(t, errGet)
	require.Equal(t, before, stateOf(bob))
	requireDecrypt(t, bob, ks, mA0, adA, []byte("0"))
}

func TestRatchet_StoreError_RemoveKey(t *testing.T) {
	// Arrange.
	alice, bob := asymmetricSetup(t)
	ks := newFailingStore()
	mA0 := mustEncrypt(t, alice, []byte("0"), adA)
	requireDecrypt(t, bob, ks, mustEncrypt(t, alice, []byte("1"), adA), adA, []byte("1"))
	before := stateOf(bob)
	ks.failRemove = true

	// Act.
	pt, err := bob.DecryptMessage(ks, mA0, adA)

	// Assert.
	requireStoreError(t, err)
	require.Nil(t, pt)
	require.Equal(t, before, stateOf(bob))
	require.EqualValues(t, 1, ks.Count(mA0.Header.DH))

	ks.failRemove = false
	requireDecrypt(t, bob, ks, mA0, adA, []byte("0"))
	require.Zero(t, ks.Count(mA0.Header.DH))
}

func TestRatchet_UninitializedChain(t *testing.T) {
	// Arrange.
	alice, _, bobPair := pureAsymmetricSetup(t)
	ks := NewKeyStoreInMemory()
	m := Message{
		Header:     MessageHeader{DH: bobPair.PublicKey()},
		Ciphertext: []byte("forged"),
	}
	before := stateOf(alice)

	// Act.
	pt, err := alice.DecryptMessage(ks, m, adB)

	// Assert.
	require.ErrorIs(t, err, ErrUninitializedChain)
	require.Nil(t, pt)
	require.Equal(t, before, stateOf(alice))
}

func TestRatchet_PureAsymmetricSetup(t *testing.T) {
	// Arrange.
	alice, bob, bobPair := pureAsymmetricSetup(t)
	ks := NewKeyStoreInMemory()

	// Act and assert.
	require.True(t, alice.CanSend())
	require.False(t, bob.CanSend())
	_, ok, err := bob.RatchetEncrypt([]byte("too early"), adB)
	require.NoError(t, err)
	require.False(t, ok)

	mA0 := mustEncrypt(t, alice, []byte("Hi Bob"), adA)
	mA1 := mustEncrypt(t, alice, []byte("Still there?"), adA)
	requireDecrypt(t, bob, ks, mA1, adA, []byte("Still there?"))
	requireDecrypt(t, bob, ks, mA0, adA, []byte("Hi Bob"))
	require.True(t, bob.CanSend())

	mB0 := mustEncrypt(t, bob, []byte("Hi Alice"), adB)
	require.NotEqual(t, bobPair.PublicKey(), mB0.Header.DH)
	requireDecrypt(t, alice, ks, mB0, adB, []byte("Hi Alice"))

	mA2 := mustEncrypt(t, alice, []byte("Bye"), adA)
	require.EqualValues(t, 2, mA2.Header.PN)
	requireDecrypt(t, bob, ks, mA2, adA, []byte("Bye"))
}
