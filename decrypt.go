package doubleratchet

import (
	"errors"

	"github.com/stalker-loki/heraldratchet/internal/instrument"
)

// Branch names, as reported to the metrics.
const (
	branchOldKey       = "old_key"
	branchCurrentChain = "current_chain"
	branchNextChain    = "next_chain"
)

// diff is what a successful tryDecrypt asks commit to apply.
type diff interface {
	branch() string
	wipe()
}

// oldKeyDiff: the key was found amongst the stored skipped keys.
type oldKeyDiff struct{}

// currentChainDiff: the key was part of the current receiving chain.
type currentChainDiff struct {
	recv    kdfChain
	skipped []Key // message keys for nr .. h.N-1
}

// nextChainDiff: the key was part of the peer's next receiving chain.
type nextChainDiff struct {
	root kdfRootChain
	recv kdfChain

	// message keys for 0 .. h.N-1 of the new chain.
	skipped []Key

	// message keys for nr .. h.PN-1 of the previous chain, stored under the old dhr.
	prevTail []Key
}

func (oldKeyDiff) branch() string       { return branchOldKey }
func (currentChainDiff) branch() string { return branchCurrentChain }
func (nextChainDiff) branch() string    { return branchNextChain }

func (oldKeyDiff) wipe() {}

func (d currentChainDiff) wipe() {
	wipeKeys(d.skipped)
}

func (d nextChainDiff) wipe() {
	wipeKeys(d.skipped)
	wipeKeys(d.prevTail)
}

// RatchetDecrypt is called to AEAD-decrypt messages.
//
// It verifies the message without touching the ratchet, and only after a successful
// verification stores the skipped message keys in ks and advances the ratchet. Any
// returned error leaves the ratchet unchanged. All verification failures are reported
// as ErrDecryptFailure.
func (r *Ratchet) RatchetDecrypt(ks KeyStore, h MessageHeader, ciphertext, ad []byte) ([]byte, error) {
	d, plaintext, err := r.tryDecrypt(ks, h, ciphertext, headerAD(ad, h))
	if err != nil {
		instrument.DecryptFailed(failureReason(err))
		r.log.Debugf("Decrypt of message %d from %s failed: %v", h.N, h.DH, err)
		return nil, err
	}
	defer d.wipe()

	if err := r.commit(ks, d, h); err != nil {
		instrument.DecryptFailed(failureReason(err))
		wipeBytes(plaintext)
		return nil, err
	}
	instrument.Decrypted(d.branch())
	r.log.Debugf("Decrypted message %d (pn %d) from %s via %s", h.N, h.PN, h.DH, d.branch())
	return plaintext, nil
}

// DecryptMessage is a shorthand for RatchetDecrypt(ks, m.Header, m.Ciphertext, ad).
func (r *Ratchet) DecryptMessage(ks KeyStore, m Message, ad []byte) ([]byte, error) {
	return r.RatchetDecrypt(ks, m.Header, m.Ciphertext, ad)
}

// shouldFetchKey reports whether the message key must come from the key store.
func (r *Ratchet) shouldFetchKey(ks KeyStore, h MessageHeader) (bool, error) {
	if r.dhr != nil && *r.dhr == h.DH {
		return h.N < r.nr, nil
	}
	return ks.ContainsPK(h.DH)
}

// tryDecrypt selects the branch, derives the message key and opens the ciphertext.
// It never modifies r; everything that has to change is returned in the diff.
func (r *Ratchet) tryDecrypt(ks KeyStore, h MessageHeader, ct, ad []byte) (diff, []byte, error) {
	fetch, err := r.shouldFetchKey(ks, h)
	if err != nil {
		return nil, nil, storeErr(err)
	}

	switch {
	case fetch:
		mk, ok, err := ks.GetKey(h.DH, h.N)
		if err != nil {
			return nil, nil, storeErr(err)
		}
		if !ok {
			return nil, nil, &MessageKeyNotFoundError{PubKey: h.DH, N: h.N}
		}
		defer mk.wipe()
		pt, err := r.open(mk, ct, ad)
		if err != nil {
			return nil, nil, err
		}
		return oldKeyDiff{}, pt, nil

	case r.dhr != nil && *r.dhr == h.DH:
		if r.recvCh == nil {
			return nil, nil, ErrUninitializedChain
		}
		skip := h.N - r.nr
		if skip > r.maxSkip {
			return nil, nil, &SkipTooLargeError{Skip: skip, Max: r.maxSkip}
		}
		recv := *r.recvCh
		mks := recv.skip(skip)
		d := currentChainDiff{recv: recv, skipped: mks[:len(mks)-1]}
		pt, err := r.open(mks[len(mks)-1], ct, ad)
		mks[len(mks)-1].wipe()
		if err != nil {
			recv.wipe()
			d.wipe()
			return nil, nil, err
		}
		return d, pt, nil

	default:
		if h.N > r.maxSkip {
			return nil, nil, &SkipTooLargeError{Skip: h.N, Max: r.maxSkip}
		}
		dhOut, err := r.crypto.DH(r.dhs, h.DH)
		if err != nil {
			// A bad peer key must look like any other verification failure.
			return nil, nil, ErrDecryptFailure
		}
		root := r.rootCh
		recv := root.step(dhOut)
		dhOut.wipe()

		mks := recv.skip(h.N)
		d := nextChainDiff{root: root, recv: recv, skipped: mks[:len(mks)-1]}
		pt, err := r.open(mks[len(mks)-1], ct, ad)
		mks[len(mks)-1].wipe()
		if err != nil {
			root.CK.wipe()
			recv.wipe()
			d.wipe()
			return nil, nil, err
		}

		// The rest of the previous chain is only derived once pn is authenticated. An
		// authenticated peer is still bound by maxSkip.
		if r.recvCh != nil && r.nr < h.PN {
			var err error
			switch tail := h.PN - r.nr; {
			case r.dhr == nil:
				err = ErrUninitializedChain
			case tail > r.maxSkip:
				err = &SkipTooLargeError{Skip: tail, Max: r.maxSkip}
			}
			if err != nil {
				root.CK.wipe()
				recv.wipe()
				d.wipe()
				wipeBytes(pt)
				return nil, nil, err
			}
			prev := *r.recvCh
			d.prevTail = prev.skip(h.PN - r.nr - 1)
			prev.wipe()
		}
		return d, pt, nil
	}
}

// commit applies a diff. The key store is written before the ratchet changes, so a
// store failure leaves the ratchet as it was.
func (r *Ratchet) commit(ks KeyStore, d diff, h MessageHeader) error {
	switch d := d.(type) {
	case oldKeyDiff:
		if err := ks.RemoveKey(h.DH, h.N); err != nil {
			return storeErr(err)
		}

	case currentChainDiff:
		if err := StoreKeys(ks, h.DH, r.nr, d.skipped); err != nil {
			return storeErr(err)
		}
		instrument.SkippedKeysStored(len(d.skipped))

		r.recvCh.wipe()
		recv := d.recv
		r.recvCh = &recv
		r.nr = h.N + 1

	case nextChainDiff:
		if len(d.prevTail) > 0 {
			if err := StoreKeys(ks, *r.dhr, r.nr, d.prevTail); err != nil {
				return storeErr(err)
			}
		}
		if err := StoreKeys(ks, h.DH, 0, d.skipped); err != nil {
			return storeErr(err)
		}
		instrument.SkippedKeysStored(len(d.prevTail) + len(d.skipped))
		instrument.DHRatchetStep()

		r.rootCh.CK.wipe()
		r.rootCh = d.root
		r.sendCh.wipe()
		r.sendCh = nil
		r.recvCh.wipe()
		recv := d.recv
		r.recvCh = &recv
		dhr := h.DH
		r.dhr = &dhr
		r.nr = h.N + 1
	}
	return nil
}

// open never tells why the AEAD failed.
func (r *Ratchet) open(mk Key, ct, ad []byte) ([]byte, error) {
	pt, err := r.crypto.Decrypt(mk, ct, ad)
	if err != nil {
		return nil, ErrDecryptFailure
	}
	return pt, nil
}

func failureReason(err error) string {
	var (
		se  *StoreError
		nfe *MessageKeyNotFoundError
		ste *SkipTooLargeError
	)
	switch {
	case errors.Is(err, ErrDecryptFailure):
		return "decrypt_failure"
	case errors.Is(err, ErrUninitializedChain):
		return "uninitialized_chain"
	case errors.As(err, &se):
		return "store_error"
	case errors.As(err, &nfe):
		return "message_key_not_found"
	case errors.As(err, &ste):
		return "skip_too_large"
	default:
		return "other"
	}
}
