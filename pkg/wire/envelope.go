// Package wire frames the hit indicator sub-protocol inside a foreign transport
// payload. The channel it rides on carries unrelated traffic, so every decode
// path must be able to say "not mine" without consuming anything.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Envelope constants. ProtocolTag sits where the shared channel expects its own
// replicator key, so it is picked from the top of the range.
const (
	ProtocolTag      uint16 = 0xFFFB
	Magic            uint32 = 10992881
	TypeHitIndicator uint8  = 173

	HeaderSize = 2 + 4 + 1 + 4
)

var (
	// ErrForeign means the payload belongs to another protocol and must be
	// handed back to the transport untouched.
	ErrForeign = errors.New("wire: foreign payload")
	// ErrMalformed means the header matched but the body cannot be read.
	ErrMalformed = errors.New("wire: malformed payload")
)

// Envelope is a decoded frame.
type Envelope struct {
	Type    uint8
	Payload []byte
}

// AppendEnvelope appends a framed message to dst.
func AppendEnvelope(dst []byte, msgType uint8, payload []byte) []byte {
	dst = binary.LittleEndian.AppendUint16(dst, ProtocolTag)
	dst = binary.LittleEndian.AppendUint32(dst, Magic)
	dst = append(dst, msgType)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(int32(len(payload))))
	return append(dst, payload...)
}

// EncodeEnvelope frames payload as a message of the given type.
func EncodeEnvelope(msgType uint8, payload []byte) []byte {
	return AppendEnvelope(make([]byte, 0, HeaderSize+len(payload)), msgType, payload)
}

// DecodeEnvelope validates the tag, the magic and the message type in that
// order. Any mismatch yields ErrForeign. A matching header with an impossible
// length yields ErrMalformed.
func DecodeEnvelope(b []byte) (Envelope, error) {
	if len(b) < HeaderSize {
		return Envelope{}, fmt.Errorf("%w: %d bytes", ErrForeign, len(b))
	}
	if tag := binary.LittleEndian.Uint16(b[0:2]); tag != ProtocolTag {
		return Envelope{}, fmt.Errorf("%w: tag %#04x", ErrForeign, tag)
	}
	if m := binary.LittleEndian.Uint32(b[2:6]); m != Magic {
		return Envelope{}, fmt.Errorf("%w: magic %d", ErrForeign, m)
	}
	msgType := b[6]
	if msgType != TypeHitIndicator {
		return Envelope{}, fmt.Errorf("%w: message type %d", ErrForeign, msgType)
	}

	n := int32(binary.LittleEndian.Uint32(b[7:11]))
	if n < 0 || int(n) > len(b)-HeaderSize {
		return Envelope{}, fmt.Errorf("%w: payload length %d with %d bytes available", ErrMalformed, n, len(b)-HeaderSize)
	}

	payload := make([]byte, n)
	copy(payload, b[HeaderSize:HeaderSize+int(n)])
	return Envelope{Type: msgType, Payload: payload}, nil
}

// IsForeign reports whether err means the payload is not ours.
func IsForeign(err error) bool {
	return errors.Is(err, ErrForeign)
}
