package ui

import "sync"

// Mailbox is a single-slot handoff between a snapshot producer and the link
// loop. Publishing overwrites the slot; intermediate snapshots are dropped.
type Mailbox struct {
	mu      sync.Mutex
	latest  Snapshot
	has     bool
	version uint64
}

func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// Publish replaces the current snapshot.
func (m *Mailbox) Publish(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest = s
	m.has = true
	m.version++
}

// Latest returns the most recent snapshot and the version it was published
// under, or false if none was published. Both are read under one lock so the
// version always names the returned snapshot.
func (m *Mailbox) Latest() (Snapshot, uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest, m.version, m.has
}

// Version counts publishes.
func (m *Mailbox) Version() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}
