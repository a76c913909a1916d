// Package ui mirrors the host UI onto the peripheral.
//
// A Snapshot is the host's view of the screen at one tick. The Dispatcher
// diffs two snapshots field by field and sends only what changed; the
// Mailbox hands the most recent snapshot from a producer to the link loop.
package ui
