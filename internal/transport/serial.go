package transport

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

// SerialOpener opens a UART with go.bug.st/serial.
type SerialOpener struct {
	cfg Config
}

func NewSerialOpener(cfg Config) (*SerialOpener, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &SerialOpener{cfg: cfg}, nil
}

func (o *SerialOpener) Open() (Port, error) {
	p, err := serial.Open(o.cfg.Path, &serial.Mode{
		BaudRate: o.cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("transport: open %s at %d baud: %w", o.cfg.Path, o.cfg.BaudRate, err)
	}
	log.Debug().
		Str("path", o.cfg.Path).
		Int("baud", o.cfg.BaudRate).
		Dur("read_timeout", o.cfg.ReadTimeout).
		Msg("transport.SerialOpener.Open opened")
	return &serialPort{port: p, timeout: o.cfg.ReadTimeout}, nil
}

type serialPort struct {
	port    serial.Port
	timeout time.Duration
}

func (s *serialPort) Write(b []byte) (int, error) {
	return s.port.Write(b)
}

// ReadUntil reads one byte at a time so nothing past term is consumed. The
// timeout bounds the whole call, not each byte.
func (s *serialPort) ReadUntil(term byte) ([]byte, error) {
	deadline := time.Now().Add(s.timeout)
	out := make([]byte, 0, 16)
	var one [1]byte
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return out, nil
		}
		if err := s.port.SetReadTimeout(remaining); err != nil {
			return out, err
		}
		n, err := s.port.Read(one[:])
		if err != nil {
			return out, err
		}
		if n == 0 {
			// go.bug.st/serial reports a timeout as a zero-length read
			return out, nil
		}
		out = append(out, one[0])
		if one[0] == term {
			return out, nil
		}
	}
}

func (s *serialPort) ResetInputBuffer() error {
	return s.port.ResetInputBuffer()
}

func (s *serialPort) Close() error {
	return s.port.Close()
}
