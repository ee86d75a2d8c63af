package wire

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/multiformats/go-varint"
)

// DefaultMaxPart bounds the size of a single decoded part.
const DefaultMaxPart = 64 << 10

// maxParts bounds the number of parts in one message.
const maxParts = 64

// ErrFrameTooLarge is returned when a part or part count exceeds the limit.
var ErrFrameTooLarge = errors.New("wire: frame too large")

// Message is a multipart message. Parts are never mutated once sent.
type Message [][]byte

// Heartbeat builds the dealer-side message [tag].
func Heartbeat(tag Tag) Message {
	return Message{EncodeHeartbeat(tag)}
}

// Routed builds the router-side message [identity][tag].
func Routed(identity string, tag Tag) Message {
	return Message{[]byte(identity), EncodeHeartbeat(tag)}
}

// Identity returns the first part as an identity string.
func (m Message) Identity() string {
	if len(m) == 0 {
		return ""
	}
	return string(m[0])
}

// Payload returns the last part, or nil for an empty message.
func (m Message) Payload() []byte {
	if len(m) == 0 {
		return nil
	}
	return m[len(m)-1]
}

// Strip returns the message without its first (identity) part.
func (m Message) Strip() Message {
	if len(m) == 0 {
		return m
	}
	return m[1:]
}

// WriteMessage writes msg to w using varint framing.
func WriteMessage(w io.Writer, msg Message) error {
	if len(msg) > maxParts {
		return fmt.Errorf("%w: %d parts", ErrFrameTooLarge, len(msg))
	}
	size := varint.UvarintSize(uint64(len(msg)))
	for _, part := range msg {
		size += varint.UvarintSize(uint64(len(part))) + len(part)
	}

	buf := make([]byte, 0, size)
	buf = append(buf, varint.ToUvarint(uint64(len(msg)))...)
	for _, part := range msg {
		buf = append(buf, varint.ToUvarint(uint64(len(part)))...)
		buf = append(buf, part...)
	}
	_, err := w.Write(buf)
	return err
}

// ReadMessage reads one varint-framed message from r.
// Parts larger than maxPart are rejected with ErrFrameTooLarge.
func ReadMessage(r *bufio.Reader, maxPart int) (Message, error) {
	if maxPart <= 0 {
		maxPart = DefaultMaxPart
	}
	count, err := varint.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if count > maxParts {
		return nil, fmt.Errorf("%w: %d parts", ErrFrameTooLarge, count)
	}

	msg := make(Message, 0, count)
	for i := uint64(0); i < count; i++ {
		n, err := varint.ReadUvarint(r)
		if err != nil {
			return nil, unexpected(err)
		}
		if n > uint64(maxPart) {
			return nil, fmt.Errorf("%w: part of %d bytes", ErrFrameTooLarge, n)
		}
		part := make([]byte, n)
		if _, err := io.ReadFull(r, part); err != nil {
			return nil, unexpected(err)
		}
		msg = append(msg, part)
	}
	return msg, nil
}

// unexpected turns a clean EOF in the middle of a message into ErrUnexpectedEOF.
func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
