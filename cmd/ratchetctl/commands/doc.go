// Package commands defines the ratchetctl CLI.
//
// Commands
//
//   - keygen        Generate an X25519 ratchet key pair
//   - init alice    Create the session of the party that sends first
//   - init bob      Create the session of the party that receives first
//   - encrypt       Encrypt a message within a session
//   - decrypt       Decrypt a message within a session
//
// Keys are hex encoded, messages are the base64 encoding of header || ciphertext.
// Sessions and skipped message keys live in the storage backend of the
// configuration file (bolt by default).
package commands
