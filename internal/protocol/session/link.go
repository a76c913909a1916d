package session

import (
	"errors"
	"fmt"

	"github.com/SolidHal/pwnagotchi-flipper/internal/observability"
	"github.com/SolidHal/pwnagotchi-flipper/internal/protocol"
	"github.com/SolidHal/pwnagotchi-flipper/internal/protocol/frame"
	"github.com/SolidHal/pwnagotchi-flipper/internal/transport"
	"github.com/rs/zerolog/log"
)

// ErrPort marks a failure of the underlying port rather than of the peer.
var ErrPort = errors.New("session: port i/o")

// Link is the protocol session over one open port. It is not safe for
// concurrent use; the supervisor loop is its only caller.
type Link struct {
	port transport.Port
}

func NewLink(port transport.Port) *Link {
	return &Link{port: port}
}

// SendCommand frames and writes one packet. Non-control opcodes then block
// for the peer's ACK.
func (l *Link) SendCommand(cmd byte, body []byte) error {
	wire, err := frame.Encode(cmd, body)
	if err != nil {
		return err
	}
	n, err := l.port.Write(wire)
	if err != nil {
		observability.RecordFrameSent(protocol.HostOpcodeName(cmd), false)
		return fmt.Errorf("%w: write %s: %w", ErrPort, protocol.HostOpcodeName(cmd), err)
	}
	if n != len(wire) {
		observability.RecordFrameSent(protocol.HostOpcodeName(cmd), false)
		return fmt.Errorf("%w: wrote %d of %d bytes", protocol.ErrShortWrite, n, len(wire))
	}
	observability.RecordFrameSent(protocol.HostOpcodeName(cmd), true)
	log.Trace().
		Str("opcode", protocol.HostOpcodeName(cmd)).
		Int("body_len", len(body)).
		Msg("session.Link.SendCommand sent")

	if protocol.IsControl(cmd) {
		return nil
	}

	reply, err := l.Receive()
	if err != nil {
		return fmt.Errorf("%w: awaiting ack for %s: %w", protocol.ErrUnexpectedReply, protocol.HostOpcodeName(cmd), err)
	}
	if !reply.Is(protocol.OpACK) {
		return fmt.Errorf("%w: awaiting ack for %s got %s", protocol.ErrUnexpectedReply, protocol.HostOpcodeName(cmd), reply)
	}
	return nil
}

// SendControl writes a control frame (SYN, ACK, NAK) without waiting.
func (l *Link) SendControl(op byte) error {
	if !protocol.IsControl(op) {
		return fmt.Errorf("session: 0x%02X is not a control opcode", op)
	}
	return l.SendCommand(op, nil)
}

// Receive reads one frame. An idle line yields ErrNothingReceived and leaves
// the input buffer alone; a corrupt frame or a NAK purges it so the next read
// starts on a frame boundary.
func (l *Link) Receive() (frame.Packet, error) {
	raw, err := l.port.ReadUntil(protocol.End)
	if err != nil && len(raw) == 0 {
		return frame.Packet{}, fmt.Errorf("%w: read: %w", ErrPort, err)
	}
	if len(raw) == 0 {
		return frame.Packet{}, protocol.ErrNothingReceived
	}

	pkt, decodeErr := frame.Decode(raw)
	if decodeErr != nil {
		l.resync(decodeErr, raw)
		return frame.Packet{}, decodeErr
	}
	if err != nil {
		// a complete frame arrived alongside a read error; keep the frame
		log.Debug().Err(err).Msg("session.Link.Receive read error after complete frame")
	}

	if pkt.Command == protocol.OpNAK {
		l.resync(protocol.ErrReceivedNak, raw)
		body := append([]byte{pkt.Command}, pkt.Body...)
		return frame.Packet{}, &protocol.NakError{Body: body}
	}
	return pkt, nil
}

// Handshake probes for the peripheral with SYN and requires a bare ACK.
func (l *Link) Handshake() error {
	if err := l.SendControl(protocol.OpSYN); err != nil {
		return fmt.Errorf("%w: %w", protocol.ErrHandshakeFailed, err)
	}
	reply, err := l.Receive()
	if err != nil {
		return fmt.Errorf("%w: %w", protocol.ErrHandshakeFailed, err)
	}
	if !reply.Is(protocol.OpACK) {
		return fmt.Errorf("%w: reply %s", protocol.ErrHandshakeFailed, reply)
	}
	return nil
}

// Close releases the port.
func (l *Link) Close() error {
	return l.port.Close()
}

func (l *Link) resync(cause error, raw []byte) {
	if err := l.port.ResetInputBuffer(); err != nil {
		log.Warn().Err(err).Msg("session.Link.resync reset input buffer failed")
	}
	log.Debug().
		Err(cause).
		Hex("raw", raw).
		Msg("session.Link.resync dropped frame")
}

// IsIdle reports whether err is the normal no-message-yet result.
func IsIdle(err error) bool {
	return errors.Is(err, protocol.ErrNothingReceived)
}
