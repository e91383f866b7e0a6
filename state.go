package doubleratchet

import (
	"fmt"

	"gopkg.in/op/go-logging.v1"

	"github.com/stalker-loki/heraldratchet/internal/instrument"
	rlog "github.com/stalker-loki/heraldratchet/internal/log"
)

// DefaultMaxSkip is the default upper limit on the receive chain steps of a single decrypt.
// It prevents a denial of service where a forged header claims an enormous skip.
const DefaultMaxSkip = 1000

// Ratchet is the state of the party involved in The Double Ratchet Algorithm
// for one conversation.
//
// Operations on this object are NOT THREAD-SAFE, make sure they're done in sequence
// (see Session for a serialized wrapper).
type Ratchet struct {
	crypto  Crypto
	log     *logging.Logger
	maxSkip uint32

	// DH Ratchet key pair (the self ratchet key).
	dhs DHPair

	// DH Ratchet public key (the remote key). Nil until the first message is received,
	// unless this party initiated the session.
	dhr *Key

	// Root chain holding the 32-byte root key.
	rootCh kdfRootChain

	// Sending and receiving chains, nil while not initialized.
	sendCh, recvCh *kdfChain

	// Message numbers for sending and receiving in the current chains.
	ns, nr uint32

	// Number of messages in previous sending chain.
	pn uint32
}

func newRatchet(sharedKey Key, opts []Option) (*Ratchet, error) {
	if sharedKey.IsZero() {
		return nil, fmt.Errorf("sharedKey must be non-zero")
	}
	r := &Ratchet{
		crypto:  DefaultCrypto{},
		maxSkip: DefaultMaxSkip,
	}
	r.rootCh = kdfRootChain{Crypto: r.crypto, CK: sharedKey}
	if err := r.applyOptions(opts); err != nil {
		return nil, err
	}
	if r.log == nil {
		r.log = defaultLogger()
	}
	return r, nil
}

func defaultLogger() *logging.Logger {
	return rlog.NewDiscard().GetLogger("doubleratchet")
}

func (r *Ratchet) applyOptions(opts []Option) error {
	for i := range opts {
		if err := opts[i](r); err != nil {
			return fmt.Errorf("failed to apply option: %w", err)
		}
	}
	return nil
}

// NewAlice initializes the sender of the first message. Alice needs Bob's ratchet
// public key theirPub.
//
// With initialRecv == nil Alice must send before Bob can reply. When both parties pass
// the same extra symmetric key (confidential and authenticated), both of them may send
// first. The two ends must make the same choice; this is not checked.
func NewAlice(sharedKey, theirPub Key, initialRecv *Key, opts ...Option) (*Ratchet, error) {
	r, err := newRatchet(sharedKey, opts)
	if err != nil {
		return nil, err
	}

	r.dhs, err = r.crypto.GenerateDH()
	if err != nil {
		return nil, fmt.Errorf("failed to generate dh pair: %w", err)
	}
	dhOut, err := r.crypto.DH(r.dhs, theirPub)
	if err != nil {
		return nil, fmt.Errorf("invalid remote public key: %w", err)
	}
	defer dhOut.wipe()

	ch := r.rootCh.step(dhOut)
	r.sendCh = &ch
	dhr := theirPub
	r.dhr = &dhr
	if initialRecv != nil {
		r.recvCh = &kdfChain{Crypto: r.crypto, CK: *initialRecv}
	}
	return r, nil
}

// NewBob initializes the receiver of the first message with his key pair ours, whose
// public half Alice used, and Alice's ratchet public key theirPub.
//
// The root key stays the raw shared key until Bob's first send. With initialSend == nil
// Bob cannot send before he receives; see NewAlice for the symmetric variant.
func NewBob(sharedKey Key, ours DHPair, theirPub Key, initialSend *Key, opts ...Option) (*Ratchet, error) {
	r, err := newRatchet(sharedKey, opts)
	if err != nil {
		return nil, err
	}
	if ours == nil {
		return nil, fmt.Errorf("key pair is nil")
	}

	r.dhs = NewDHPair(ours.PrivateKey(), ours.PublicKey())
	dhOut, err := r.crypto.DH(r.dhs, theirPub)
	if err != nil {
		return nil, fmt.Errorf("invalid remote public key: %w", err)
	}
	defer dhOut.wipe()

	root := r.rootCh
	ch := root.step(dhOut)
	r.recvCh = &ch
	if initialSend != nil {
		r.sendCh = &kdfChain{Crypto: r.crypto, CK: *initialSend}
	}
	return r, nil
}

// PublicKey returns the ratchet public key currently advertised in headers.
func (r *Ratchet) PublicKey() Key {
	return r.dhs.PublicKey()
}

// CanSend reports whether RatchetEncrypt would produce a message.
func (r *Ratchet) CanSend() bool {
	return r.sendCh != nil || r.dhr != nil
}

// RatchetEncrypt performs a symmetric-key ratchet step, then encrypts the message with
// the resulting message key. The header is authenticated together with ad.
//
// ok is false when there is no sending chain and no message was received yet (Bob
// before his first receive without symmetric initialization). err is only set when
// the key pair generation of a deferred DH ratchet step fails.
func (r *Ratchet) RatchetEncrypt(plaintext, ad []byte) (m Message, ok bool, err error) {
	h, mk, ok, err := r.ratchetSendChain()
	if err != nil || !ok {
		return Message{}, ok, err
	}
	defer mk.wipe()

	ct := r.crypto.Encrypt(mk, plaintext, headerAD(ad, h))
	instrument.Encrypted()
	return Message{Header: h, Ciphertext: ct}, true, nil
}

// ratchetSendChain performs the deferred DH ratchet step when needed, then one symmetric
// step of the sending chain.
func (r *Ratchet) ratchetSendChain() (MessageHeader, Key, bool, error) {
	if r.sendCh == nil {
		if r.dhr == nil {
			return MessageHeader{}, Key{}, false, nil
		}
		dhs, err := r.crypto.GenerateDH()
		if err != nil {
			return MessageHeader{}, Key{}, false, fmt.Errorf("failed to generate dh pair: %w", err)
		}
		dhOut, err := r.crypto.DH(dhs, *r.dhr)
		if err != nil {
			if p, ok := dhs.(*dhPair); ok {
				p.privateKey.wipe()
			}
			return MessageHeader{}, Key{}, false, fmt.Errorf("failed to perform ratchet step: %w", err)
		}
		ch := r.rootCh.step(dhOut)
		dhOut.wipe()

		r.wipeDHs()
		r.dhs = dhs
		r.sendCh = &ch
		r.pn = r.ns
		r.ns = 0
		instrument.DHRatchetStep()
		r.log.Debugf("Send chain ratcheted to %s, previous chain length %d", dhs.PublicKey(), r.pn)
	}

	h := MessageHeader{
		DH: r.dhs.PublicKey(),
		N:  r.ns,
		PN: r.pn,
	}
	mk := r.sendCh.step()
	r.ns++
	return h, mk, true, nil
}

// wipeDHs scrubs the private key if the pair is ours to scrub.
func (r *Ratchet) wipeDHs() {
	if p, ok := r.dhs.(*dhPair); ok && p != nil {
		p.privateKey.wipe()
	}
}

// Wipe scrubs all key material. The ratchet is unusable afterwards.
func (r *Ratchet) Wipe() {
	r.wipeDHs()
	r.rootCh.CK.wipe()
	r.sendCh.wipe()
	r.recvCh.wipe()
	r.sendCh, r.recvCh, r.dhr = nil, nil, nil
}
