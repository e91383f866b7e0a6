package doubleratchet

// headerAD returns the AEAD associated data for a message: the caller's
// associated data followed by the encoded header.
func headerAD(ad []byte, h MessageHeader) []byte {
	buf := make([]byte, 0, len(ad)+MessageHeaderSize)
	buf = append(buf, ad...)
	return h.appendTo(buf)
}
