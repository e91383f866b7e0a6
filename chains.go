package doubleratchet

// KDFer performs key derivation functions for chains.
type KDFer interface {
	// KdfRK returns a pair (32-byte root key, 32-byte chain key) as the output of applying
	// a KDF keyed by a 32-byte root key rk to a Diffie-Hellman output dhOut.
	// Both outputs come from a single domain-separated KDF call.
	KdfRK(rk, dhOut Key) (rootKey, chainKey Key)

	// KdfCK returns a pair (32-byte chain key, 32-byte message key) as the output of applying
	// a KDF keyed by a 32-byte chain key ck to some constant.
	// Both outputs come from a single domain-separated KDF call.
	KdfCK(ck Key) (chainKey, msgKey Key)
}

type kdfRootChain struct {
	Crypto KDFer

	// 32-byte root key.
	CK Key
}

// step performs a DH ratchet step on the root chain and returns the new symmetric chain.
func (c *kdfRootChain) step(kdfInput Key) kdfChain {
	ch := kdfChain{
		Crypto: c.Crypto,
	}
	old := c.CK
	c.CK, ch.CK = c.Crypto.KdfRK(c.CK, kdfInput)
	old.wipe()
	return ch
}

type kdfChain struct {
	Crypto KDFer

	// 32-byte chain key.
	CK Key
}

// step performs symmetric ratchet step and returns message key.
func (c *kdfChain) step() Key {
	var mk Key
	old := c.CK
	c.CK, mk = c.Crypto.KdfCK(c.CK)
	old.wipe()
	return mk
}

// skip performs n+1 symmetric steps and returns every message key derived on the way,
// oldest first. The last key belongs to the message that triggered the skip.
func (c *kdfChain) skip(n uint32) []Key {
	mks := make([]Key, 0, int(n)+1)
	for i := uint32(0); ; i++ {
		mks = append(mks, c.step())
		if i == n {
			return mks
		}
	}
}

func (c *kdfChain) wipe() {
	if c != nil {
		c.CK.wipe()
	}
}
