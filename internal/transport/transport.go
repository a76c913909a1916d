// Package transport is the byte-level serial boundary of the link.
//
// The core never touches a device directly: it owns one Port for the
// lifetime of a link and obtains it through an Opener.
package transport

import (
	"errors"
	"time"
)

var (
	ErrPortRequired    = errors.New("transport: port path required")
	ErrInvalidBaudRate = errors.New("transport: invalid baud rate")
	ErrInvalidTimeout  = errors.New("transport: invalid read timeout")
)

// Port is an open serial channel with a fixed read timeout.
type Port interface {
	// Write sends b and reports how many bytes were accepted.
	Write(b []byte) (int, error)
	// ReadUntil reads until term is seen or the read timeout elapses. On
	// timeout it returns whatever arrived, possibly nothing.
	ReadUntil(term byte) ([]byte, error)
	// ResetInputBuffer discards any unread input.
	ResetInputBuffer() error
	Close() error
}

// Opener opens the Port for a link.
type Opener interface {
	Open() (Port, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func() (Port, error)

func (f OpenerFunc) Open() (Port, error) {
	return f()
}

// Config is the static serial link configuration.
type Config struct {
	Path        string
	BaudRate    int
	ReadTimeout time.Duration
}

// DefaultConfig matches the pwnagotchi UART wiring.
func DefaultConfig() Config {
	return Config{
		Path:        "/dev/serial0",
		BaudRate:    115200,
		ReadTimeout: time.Second,
	}
}

func (c Config) Validate() error {
	if c.Path == "" {
		return ErrPortRequired
	}
	if c.BaudRate <= 0 {
		return ErrInvalidBaudRate
	}
	if c.ReadTimeout <= 0 {
		return ErrInvalidTimeout
	}
	return nil
}
