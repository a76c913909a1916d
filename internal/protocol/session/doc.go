// Package session owns one pwnagotchi<->flipper link over an open port.
//
// Ownership boundary:
// - send with acknowledgement (non-control opcodes wait for ACK)
// - receive and classify one frame, resynchronising on framing errors
// - the SYN/ACK presence handshake
// - handshake retry timing and connection error budget defaults
package session
