package supervisor

import (
	"github.com/SolidHal/pwnagotchi-flipper/internal/observability"
	"github.com/SolidHal/pwnagotchi-flipper/internal/protocol"
	"github.com/SolidHal/pwnagotchi-flipper/internal/protocol/frame"
	"github.com/rs/zerolog/log"
)

// ControlSender writes unacknowledged control frames.
type ControlSender interface {
	SendControl(op byte) error
}

// Router answers commands initiated by the peripheral. REBOOT, SHUTDOWN,
// MODE and CLOCK_SET are recognised but not acted on; they are refused with
// NAK like any unknown opcode.
type Router struct{}

// Route replies to one inbound packet.
func (Router) Route(ctl ControlSender, state *State, pkt frame.Packet) error {
	name := protocol.PeerOpcodeName(pkt.Command)
	reply := protocol.OpNAK

	switch pkt.Command {
	case protocol.OpSYN:
		reply = protocol.OpACK
	case protocol.PeerUIRefresh:
		state.ClearSnapshot()
		reply = protocol.OpACK
	}

	err := ctl.SendControl(reply)
	observability.RecordInbound(name, protocol.HostOpcodeName(reply))
	if err != nil {
		log.Warn().
			Err(err).
			Str("opcode", name).
			Msg("supervisor.Router.Route reply failed")
		return err
	}
	log.Debug().
		Str("opcode", name).
		Str("reply", protocol.HostOpcodeName(reply)).
		Int("body_len", len(pkt.Body)).
		Msg("supervisor.Router.Route")
	return nil
}
