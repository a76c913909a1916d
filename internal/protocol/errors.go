package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrEmpty          = errors.New("protocol: empty packet")
	ErrMalformedStart = errors.New("protocol: packet does not begin with start byte")
	ErrMalformedEnd   = errors.New("protocol: packet does not end with end byte")
	ErrInvalidByte    = errors.New("protocol: reserved byte in command or body")

	ErrReceivedNak     = errors.New("protocol: peer replied with nak")
	ErrUnexpectedReply = errors.New("protocol: unexpected reply")
	ErrHandshakeFailed = errors.New("protocol: handshake failed")

	ErrNothingReceived = errors.New("protocol: nothing received")

	ErrShortWrite = errors.New("protocol: short write")

	ErrValidation = errors.New("protocol: field validation failed")
)

// NakError carries the body of a NAK packet received from the peer.
type NakError struct {
	Body []byte
}

func (e *NakError) Error() string {
	return fmt.Sprintf("%v: body=% x", ErrReceivedNak, e.Body)
}

func (e *NakError) Unwrap() error {
	return ErrReceivedNak
}

// Class groups errors by how the supervisor reacts to them.
type Class int

const (
	ClassNone Class = iota
	ClassFraming
	ClassProtocol
	ClassLiveness
	ClassTransport
	ClassValidation
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassFraming:
		return "framing"
	case ClassProtocol:
		return "protocol"
	case ClassLiveness:
		return "liveness"
	case ClassValidation:
		return "validation"
	default:
		return "transport"
	}
}

// CountsTowardBudget reports whether a receive failure of this class is
// charged against the connection error budget.
func (c Class) CountsTowardBudget() bool {
	return c != ClassNone && c != ClassLiveness
}

// Classify maps err onto the taxonomy. Protocol sentinels win over the cause
// they wrap. Anything unrecognised is a transport (I/O) failure.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrReceivedNak),
		errors.Is(err, ErrUnexpectedReply),
		errors.Is(err, ErrHandshakeFailed):
		return ClassProtocol
	case errors.Is(err, ErrNothingReceived):
		return ClassLiveness
	case errors.Is(err, ErrEmpty),
		errors.Is(err, ErrMalformedStart),
		errors.Is(err, ErrMalformedEnd),
		errors.Is(err, ErrInvalidByte):
		return ClassFraming
	case errors.Is(err, ErrValidation):
		return ClassValidation
	default:
		return ClassTransport
	}
}
