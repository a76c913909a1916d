package protocol

import "fmt"

// Reserved framing bytes. Neither may appear in a command or a body.
const (
	Start byte = 0x02
	End   byte = 0x03
)

// Control opcodes share one numeric space in both directions.
const (
	OpSYN byte = 0x16
	OpACK byte = 0x06
	OpNAK byte = 0x15
)

// Host -> peripheral opcodes.
const (
	OpUIFace       byte = 0x04
	OpUIName       byte = 0x05
	OpUIAPs        byte = 0x07
	OpUIUptime     byte = 0x08
	OpUIFriend     byte = 0x09
	OpUIMode       byte = 0x0A
	OpUIHandshakes byte = 0x0B
	OpUIStatus     byte = 0x0C
	OpUIChannel    byte = 0x0D
)

// Peripheral -> host opcodes. Only UI refresh is routed; the others are
// reserved and answered with NAK.
const (
	PeerReboot    byte = 0x04
	PeerShutdown  byte = 0x05
	PeerMode      byte = 0x07
	PeerUIRefresh byte = 0x08
	PeerClockSet  byte = 0x09
)

// IsReserved reports whether b is a framing byte.
func IsReserved(b byte) bool {
	return b == Start || b == End
}

// IsControl reports whether op is a control opcode. Control frames are never
// acknowledged.
func IsControl(op byte) bool {
	return op == OpSYN || op == OpACK || op == OpNAK
}

// HostOpcodeName names a host -> peripheral opcode for logs and metrics.
func HostOpcodeName(op byte) string {
	switch op {
	case OpSYN:
		return "SYN"
	case OpACK:
		return "ACK"
	case OpNAK:
		return "NAK"
	case OpUIFace:
		return "UI_FACE"
	case OpUIName:
		return "UI_NAME"
	case OpUIAPs:
		return "UI_APS"
	case OpUIUptime:
		return "UI_UPTIME"
	case OpUIFriend:
		return "UI_FRIEND"
	case OpUIMode:
		return "UI_MODE"
	case OpUIHandshakes:
		return "UI_HANDSHAKES"
	case OpUIStatus:
		return "UI_STATUS"
	case OpUIChannel:
		return "UI_CHANNEL"
	default:
		return fmt.Sprintf("0x%02X", op)
	}
}

// PeerOpcodeName names a peripheral -> host opcode for logs and metrics.
func PeerOpcodeName(op byte) string {
	switch op {
	case OpSYN:
		return "SYN"
	case OpACK:
		return "ACK"
	case OpNAK:
		return "NAK"
	case PeerReboot:
		return "REBOOT"
	case PeerShutdown:
		return "SHUTDOWN"
	case PeerMode:
		return "MODE"
	case PeerUIRefresh:
		return "UI_REFRESH"
	case PeerClockSet:
		return "CLOCK_SET"
	default:
		return fmt.Sprintf("0x%02X", op)
	}
}
