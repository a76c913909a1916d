// Package transporttest provides a scripted transport.Port for link tests.
package transporttest

import (
	"sync"

	"github.com/SolidHal/pwnagotchi-flipper/internal/protocol"
	"github.com/SolidHal/pwnagotchi-flipper/internal/transport"
)

// Read is one scripted ReadUntil result.
type Read struct {
	Data []byte
	Err  error
}

// Port replays scripted reads and records writes. An empty read queue
// behaves like an idle line: ReadUntil returns no bytes.
type Port struct {
	mu     sync.Mutex
	reads  []Read
	writes [][]byte
	resets int
	opens  int
	closed bool

	// ShortWrite makes Write report one byte fewer than requested.
	ShortWrite bool
	// WriteErr is returned by every Write when set.
	WriteErr error
	// OnWrite returns reads to queue in response to a written frame.
	OnWrite func(frame []byte) []Read
	// OnIdle runs when ReadUntil finds the queue empty.
	OnIdle func()
}

func New() *Port {
	return &Port{}
}

// Queue appends raw reads, one ReadUntil call each.
func (p *Port) Queue(data ...[]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, d := range data {
		p.reads = append(p.reads, Read{Data: d})
	}
}

// QueueErr appends a read that fails with err.
func (p *Port) QueueErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reads = append(p.reads, Read{Err: err})
}

func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	if p.WriteErr != nil {
		err := p.WriteErr
		p.mu.Unlock()
		return 0, err
	}
	frame := append([]byte(nil), b...)
	p.writes = append(p.writes, frame)
	n := len(b)
	if p.ShortWrite && n > 0 {
		n--
	}
	hook := p.OnWrite
	p.mu.Unlock()

	if hook != nil {
		replies := hook(frame)
		p.mu.Lock()
		p.reads = append(p.reads, replies...)
		p.mu.Unlock()
	}
	return n, nil
}

func (p *Port) ReadUntil(term byte) ([]byte, error) {
	p.mu.Lock()
	if len(p.reads) == 0 {
		idle := p.OnIdle
		p.mu.Unlock()
		if idle != nil {
			idle()
		}
		return nil, nil
	}
	r := p.reads[0]
	p.reads = p.reads[1:]
	p.mu.Unlock()
	return r.Data, r.Err
}

func (p *Port) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resets++
	return nil
}

func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Writes returns a copy of every frame written so far.
func (p *Port) Writes() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.writes))
	copy(out, p.writes)
	return out
}

// ClearWrites forgets recorded writes.
func (p *Port) ClearWrites() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writes = nil
}

func (p *Port) Resets() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resets
}

func (p *Port) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Port) Opens() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opens
}

// Opener hands out this port.
func (p *Port) Opener() transport.Opener {
	return transport.OpenerFunc(func() (transport.Port, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.opens++
		p.closed = false
		return p, nil
	})
}

// Frame builds a wire frame without validation, for scripting malformed input.
func Frame(cmd byte, body ...byte) []byte {
	out := []byte{protocol.Start, cmd}
	out = append(out, body...)
	return append(out, protocol.End)
}

// AckNonControl answers every non-control frame with ACK, like a healthy
// peripheral.
func AckNonControl(frame []byte) []Read {
	if len(frame) < 2 || protocol.IsControl(frame[1]) {
		return nil
	}
	return []Read{{Data: Frame(protocol.OpACK)}}
}

// AckHandshake answers SYN with ACK and every non-control frame with ACK.
func AckHandshake(frame []byte) []Read {
	if len(frame) >= 2 && frame[1] == protocol.OpSYN {
		return []Read{{Data: Frame(protocol.OpACK)}}
	}
	return AckNonControl(frame)
}
