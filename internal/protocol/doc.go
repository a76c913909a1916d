// Package protocol owns the pwnagotchi<->flipper wire contract.
//
// Ownership boundary:
// - reserved framing bytes and opcodes (both directions)
// - face and mode enumerants
// - the error taxonomy shared by the codec, the link session and the supervisor
package protocol
