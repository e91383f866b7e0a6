package doubleratchet

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MessageHeaderSize is the size of an encoded MessageHeader.
const MessageHeaderSize = 32 + 4 + 4

var errShortHeader = errors.New("doubleratchet: header too short")

// Message is a single message exchanged by the parties.
type Message struct {
	Header     MessageHeader
	Ciphertext []byte
}

// MessageHeader that is prepended to every message.
type MessageHeader struct {
	// DH is the sender's current ratchet public key.
	DH Key

	// N is the number of the message in the sending chain.
	N uint32

	// PN is the length of the previous sending chain.
	PN uint32
}

// Encode the header in the binary format: DH || N (big-endian) || PN (big-endian).
func (mh MessageHeader) Encode() MessageEncHeader {
	return mh.appendTo(make([]byte, 0, MessageHeaderSize))
}

func (mh MessageHeader) appendTo(buf []byte) []byte {
	buf = append(buf, mh.DH[:]...)
	buf = binary.BigEndian.AppendUint32(buf, mh.N)
	return binary.BigEndian.AppendUint32(buf, mh.PN)
}

// MessageEncHeader is a binary-encoded representation of a message header.
type MessageEncHeader []byte

// Decode the header from the binary format.
func (mh MessageEncHeader) Decode() (MessageHeader, error) {
	if len(mh) != MessageHeaderSize {
		return MessageHeader{}, fmt.Errorf("doubleratchet: encoded message header must be %d bytes, %d given", MessageHeaderSize, len(mh))
	}
	var h MessageHeader
	copy(h.DH[:], mh[:32])
	h.N = binary.BigEndian.Uint32(mh[32:36])
	h.PN = binary.BigEndian.Uint32(mh[36:40])
	return h, nil
}

// DecodeMessageHeader is a shorthand for MessageEncHeader(b).Decode().
func DecodeMessageHeader(b []byte) (MessageHeader, error) {
	return MessageEncHeader(b).Decode()
}

// MarshalBinary frames the message as header || ciphertext.
func (m Message) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, MessageHeaderSize+len(m.Ciphertext))
	buf = m.Header.appendTo(buf)
	return append(buf, m.Ciphertext...), nil
}

// UnmarshalBinary parses a message framed by MarshalBinary.
func (m *Message) UnmarshalBinary(data []byte) error {
	if len(data) < MessageHeaderSize {
		return errShortHeader
	}
	h, err := MessageEncHeader(data[:MessageHeaderSize]).Decode()
	if err != nil {
		return err
	}
	m.Header = h
	m.Ciphertext = append([]byte(nil), data[MessageHeaderSize:]...)
	return nil
}
