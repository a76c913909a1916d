package frame

import (
	"fmt"

	"github.com/SolidHal/pwnagotchi-flipper/internal/protocol"
)

// MinFrameLen is START + command + END.
const MinFrameLen = 3

// Packet is one protocol unit: an opcode and its body.
type Packet struct {
	Command byte
	Body    []byte
}

// Is reports whether p is exactly op with an empty body.
func (p Packet) Is(op byte) bool {
	return p.Command == op && len(p.Body) == 0
}

func (p Packet) String() string {
	return fmt.Sprintf("cmd=0x%02X body=% x", p.Command, p.Body)
}

// Encode frames cmd and body as START, cmd, body..., END.
func Encode(cmd byte, body []byte) ([]byte, error) {
	if protocol.IsReserved(cmd) {
		return nil, fmt.Errorf("%w: command 0x%02X", protocol.ErrInvalidByte, cmd)
	}
	for i, b := range body {
		if protocol.IsReserved(b) {
			return nil, fmt.Errorf("%w: body[%d]=0x%02X", protocol.ErrInvalidByte, i, b)
		}
	}
	out := make([]byte, 0, len(body)+MinFrameLen)
	out = append(out, protocol.Start, cmd)
	out = append(out, body...)
	out = append(out, protocol.End)
	return out, nil
}

// EncodePacket is Encode for a Packet value.
func EncodePacket(p Packet) ([]byte, error) {
	return Encode(p.Command, p.Body)
}

// Decode strips framing from one complete frame. The END check runs before
// the START check so a truncated read reports ErrMalformedEnd.
func Decode(b []byte) (Packet, error) {
	if len(b) == 0 {
		return Packet{}, protocol.ErrEmpty
	}
	if b[len(b)-1] != protocol.End {
		return Packet{}, protocol.ErrMalformedEnd
	}
	if b[0] != protocol.Start {
		return Packet{}, protocol.ErrMalformedStart
	}
	if len(b) < MinFrameLen {
		return Packet{}, fmt.Errorf("%w: frame has no command byte", protocol.ErrEmpty)
	}
	body := make([]byte, len(b)-MinFrameLen)
	copy(body, b[2:len(b)-1])
	return Packet{Command: b[1], Body: body}, nil
}

// EncodeString converts s to one byte per character. Characters outside the
// single-byte range are rejected.
func EncodeString(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r < 0 || r > 0xFF {
			return nil, fmt.Errorf("%w: character %q is not single-byte", protocol.ErrValidation, r)
		}
		out = append(out, byte(r))
	}
	return out, nil
}
