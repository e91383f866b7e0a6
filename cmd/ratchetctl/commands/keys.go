package commands

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/curve25519"

	doubleratchet "github.com/stalker-loki/heraldratchet"
)

func parseKey(name, s string) (doubleratchet.Key, error) {
	var k doubleratchet.Key
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil || len(b) != len(k) {
		return k, fmt.Errorf("--%s must be %d hex encoded bytes", name, len(k))
	}
	copy(k[:], b)
	return k, nil
}

func parseOptionalKey(name, s string) (*doubleratchet.Key, error) {
	if s == "" {
		return nil, nil
	}
	k, err := parseKey(name, s)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// keyPairFromPrivate rebuilds a key pair printed by keygen.
func keyPairFromPrivate(priv doubleratchet.Key) (doubleratchet.DHPair, error) {
	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	var pubKey doubleratchet.Key
	copy(pubKey[:], pub)
	return doubleratchet.NewDHPair(priv, pubKey), nil
}

func encodeMessage(m doubleratchet.Message) (string, error) {
	b, err := m.MarshalBinary()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func decodeMessage(s string) (doubleratchet.Message, error) {
	var m doubleratchet.Message
	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return m, fmt.Errorf("message is not base64: %w", err)
	}
	return m, m.UnmarshalBinary(b)
}
