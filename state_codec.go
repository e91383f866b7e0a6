package doubleratchet

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var errInvalidSnapshot = errors.New("doubleratchet: invalid ratchet snapshot")

// snapshot is the serialized form of a Ratchet. Optional chains and the remote key are
// nil when absent. Crypto and the logger are not part of it.
type snapshot struct {
	DHsPrivate []byte
	DHsPublic  []byte
	DHr        []byte `cbor:",omitempty"`
	RootKey    []byte
	SendCK     []byte `cbor:",omitempty"`
	RecvCK     []byte `cbor:",omitempty"`
	Ns         uint32
	Nr         uint32
	PN         uint32
	MaxSkip    uint32
}

func (s *snapshot) wipe() {
	for _, b := range [][]byte{s.DHsPrivate, s.RootKey, s.SendCK, s.RecvCK} {
		wipeBytes(b)
	}
}

// MarshalBinary serializes the whole ratchet state, private keys included. The output
// is as sensitive as the ratchet itself.
func (r *Ratchet) MarshalBinary() ([]byte, error) {
	if r.dhs == nil {
		return nil, errInvalidSnapshot
	}
	priv, pub, rk := r.dhs.PrivateKey(), r.dhs.PublicKey(), r.rootCh.CK
	defer priv.wipe()
	defer rk.wipe()

	s := snapshot{
		DHsPrivate: priv[:],
		DHsPublic:  pub[:],
		RootKey:    rk[:],
		Ns:         r.ns,
		Nr:         r.nr,
		PN:         r.pn,
		MaxSkip:    r.maxSkip,
	}
	if r.dhr != nil {
		s.DHr = append([]byte(nil), r.dhr[:]...)
	}
	if r.sendCh != nil {
		ck := r.sendCh.CK
		s.SendCK = ck[:]
		defer ck.wipe()
	}
	if r.recvCh != nil {
		ck := r.recvCh.CK
		s.RecvCK = ck[:]
		defer ck.wipe()
	}
	return cbor.Marshal(&s)
}

// UnmarshalRatchet restores a ratchet serialized by MarshalBinary. The options are
// applied after the stored state, so WithMaxSkip overrides the stored bound. WithCrypto
// must name the primitives the ratchet was created with.
func UnmarshalRatchet(data []byte, opts ...Option) (*Ratchet, error) {
	var s snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("doubleratchet: failed to decode ratchet: %w", err)
	}
	defer s.wipe()

	priv, err := keyFromBytes(s.DHsPrivate)
	if err != nil {
		return nil, err
	}
	pub, err := keyFromBytes(s.DHsPublic)
	if err != nil {
		return nil, err
	}
	rk, err := keyFromBytes(s.RootKey)
	if err != nil {
		return nil, err
	}

	r := &Ratchet{
		crypto:  DefaultCrypto{},
		maxSkip: s.MaxSkip,
		dhs:     NewDHPair(priv, pub),
		ns:      s.Ns,
		nr:      s.Nr,
		pn:      s.PN,
	}
	priv.wipe()
	r.rootCh = kdfRootChain{Crypto: r.crypto, CK: rk}
	rk.wipe()

	if s.DHr != nil {
		dhr, err := keyFromBytes(s.DHr)
		if err != nil {
			return nil, err
		}
		r.dhr = &dhr
	}
	if s.SendCK != nil {
		ck, err := keyFromBytes(s.SendCK)
		if err != nil {
			return nil, err
		}
		r.sendCh = &kdfChain{Crypto: r.crypto, CK: ck}
	}
	if s.RecvCK != nil {
		ck, err := keyFromBytes(s.RecvCK)
		if err != nil {
			return nil, err
		}
		r.recvCh = &kdfChain{Crypto: r.crypto, CK: ck}
	}

	if err := r.applyOptions(opts); err != nil {
		r.Wipe()
		return nil, err
	}
	if r.log == nil {
		r.log = defaultLogger()
	}
	return r, nil
}

func keyFromBytes(b []byte) (Key, error) {
	var k Key
	if len(b) != len(k) {
		return k, errInvalidSnapshot
	}
	copy(k[:], b)
	return k, nil
}
