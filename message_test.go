package doubleratchet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessageHeader_Encode(t *testing.T) {
	// Arrange.
	mh := MessageHeader{
		DH: pubKey,
		N:  1,
		PN: 0x01020304,
	}

	// Act.
	hEnc := mh.Encode()

	// Assert.
	require.Len(t, hEnc, MessageHeaderSize)
	require.Equal(t, pubKey[:], []byte(hEnc[:32]))
	require.Equal(t, []byte{0, 0, 0, 1}, []byte(hEnc[32:36]))
	require.Equal(t, []byte{1, 2, 3, 4}, []byte(hEnc[36:40]))
}

func TestMessageEncHeader_Decode(t *testing.T) {
	// Arrange.
	mh := MessageHeader{DH: pubKey, N: 13, PN: 7}

	// Act.
	decoded, err := DecodeMessageHeader(mh.Encode())

	// Assert.
	require.NoError(t, err)
	require.Equal(t, mh, decoded)
}

func TestMessageEncHeader_Decode_WrongLength(t *testing.T) {
	for _, n := range []int{0, MessageHeaderSize - 1, MessageHeaderSize + 1} {
		_, err := MessageEncHeader(make([]byte, n)).Decode()
		require.Error(t, err, n)
	}
}

func TestHeaderAD(t *testing.T) {
	// Arrange.
	mh := MessageHeader{DH: pubKey, N: 2, PN: 3}

	// Act.
	ad := headerAD([]byte("A2B"), mh)

	// Assert.
	require.Equal(t, append([]byte("A2B"), mh.Encode()...), ad)
	require.Equal(t, []byte(mh.Encode()), headerAD(nil, mh))
}

func TestMessage_BinaryFraming(t *testing.T) {
	// Arrange.
	alice, bob := asymmetricSetup(t)
	m := mustEncrypt(t, alice, []byte("framed"), adA)

	// Act.
	data, err := m.MarshalBinary()
	require.NoError(t, err)
	var got Message
	require.NoError(t, got.UnmarshalBinary(data))

	// Assert.
	require.Len(t, data, MessageHeaderSize+len(m.Ciphertext))
	require.Equal(t, m, got)
	requireDecrypt(t, bob, NewKeyStoreInMemory(), got, adA, []byte("framed"))
}

func TestMessage_UnmarshalBinary_Short(t *testing.T) {
	var m Message
	require.ErrorIs(t, m.UnmarshalBinary(make([]byte, MessageHeaderSize-1)), errShortHeader)
}
