package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/SolidHal/pwnagotchi-flipper/internal/protocol"
	"github.com/SolidHal/pwnagotchi-flipper/internal/protocol/frame"
)

var (
	ErrUnknownFace  = fmt.Errorf("%w: unknown face", protocol.ErrValidation)
	ErrUnknownMode  = fmt.Errorf("%w: unknown mode", protocol.ErrValidation)
	ErrUptimeFormat = fmt.Errorf("%w: uptime is not HH:MM:SS", protocol.ErrValidation)
	ErrUptimeRange  = fmt.Errorf("%w: uptime component out of range", protocol.ErrValidation)
)

// displayReserved is stripped from names; the peripheral uses it as a prompt.
const displayReserved = ">"

func encodeFace(v string) ([]byte, error) {
	f, ok := protocol.ParseFace(v)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFace, v)
	}
	return []byte{byte(f)}, nil
}

func encodeMode(v string) ([]byte, error) {
	m, ok := protocol.ParseMode(v)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, v)
	}
	return []byte{byte(m)}, nil
}

func encodeName(v string) ([]byte, error) {
	return frame.EncodeString(strings.ReplaceAll(v, displayReserved, ""))
}

func encodeText(v string) ([]byte, error) {
	return frame.EncodeString(v)
}

func encodeUptime(v string) ([]byte, error) {
	s, err := FormatUptime(v)
	if err != nil {
		return nil, err
	}
	return frame.EncodeString(s)
}

// FormatUptime validates an "H:M:S" duration with every component in
// [0, 100) and re-renders it zero padded as "HH:MM:SS".
func FormatUptime(v string) (string, error) {
	parts := strings.Split(v, ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: %q", ErrUptimeFormat, v)
	}
	var hms [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrUptimeFormat, v)
		}
		if n < 0 || n >= 100 {
			return "", fmt.Errorf("%w: %q", ErrUptimeRange, v)
		}
		hms[i] = n
	}
	return fmt.Sprintf("%02d:%02d:%02d", hms[0], hms[1], hms[2]), nil
}
