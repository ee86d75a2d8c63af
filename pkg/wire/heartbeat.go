package wire

import (
	"errors"
	"fmt"
)

// Tag is the single-byte heartbeat frame.
type Tag byte

const (
	Ping Tag = 0x55
	Pong Tag = 0xAA
)

// String returns the tag name.
func (t Tag) String() string {
	switch t {
	case Ping:
		return "PING"
	case Pong:
		return "PONG"
	default:
		return fmt.Sprintf("Tag(0x%02X)", byte(t))
	}
}

var (
	// ErrMalformedFrame reports a frame that cannot be decoded.
	ErrMalformedFrame = errors.New("wire: malformed frame")

	// ErrUnknownTag reports a well-formed frame carrying an unexpected tag.
	ErrUnknownTag = fmt.Errorf("%w: unknown tag", ErrMalformedFrame)
)

// EncodeHeartbeat returns the frame bytes for tag.
func EncodeHeartbeat(tag Tag) []byte {
	return []byte{byte(tag)}
}

// DecodeHeartbeat parses a heartbeat payload.
// A payload that is not exactly one byte yields ErrMalformedFrame; an
// unexpected byte ErrUnknownTag.
func DecodeHeartbeat(b []byte) (Tag, error) {
	switch len(b) {
	case 0:
		return 0, fmt.Errorf("%w: empty payload", ErrMalformedFrame)
	case 1:
	default:
		return 0, fmt.Errorf("%w: payload is %d bytes, want 1", ErrMalformedFrame, len(b))
	}
	switch tag := Tag(b[0]); tag {
	case Ping, Pong:
		return tag, nil
	default:
		return tag, fmt.Errorf("%w 0x%02X", ErrUnknownTag, b[0])
	}
}
