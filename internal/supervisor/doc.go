// Package supervisor owns the peripheral link: it handshakes, keeps the
// connection inside its error budget, mirrors UI snapshots and answers
// commands from the peripheral.
package supervisor
