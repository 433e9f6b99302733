// Package interop implements the file-based bridge framing used to exchange
// messages with the host game process, and the Transport abstraction that
// lets the connection engine run against a file bridge, an in-process
// channel pair, or a test double.
package interop

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// FormatVersion is the bridge stream format version. Both sides must agree
// exactly; a mismatched stream is discarded whole.
const FormatVersion int32 = 1

// ErrBridgeVersion indicates a stream written with an unknown format version.
var ErrBridgeVersion = errors.New("unsupported bridge format version")

// ErrTruncatedStream indicates a stream that ends mid-header or mid-payload.
var ErrTruncatedStream = errors.New("bridge stream truncated")

// Message is one bridge message. The payload semantics belong to the game
// side; the core only frames them.
type Message struct {
	ID      int32
	Payload []byte
}

// Transport moves bridge messages between the connection engine and the host
// game component. Implementations must be safe for concurrent use.
type Transport interface {
	// Send hands one message to the game side.
	Send(id int32, payload []byte) error
	// Poll returns the messages the game side has produced since the last
	// call, in order. An empty result is normal.
	Poll() ([]Message, error)
	Close() error
}

// EncodeStream frames messages as [formatVersion:4]{[msgId:4][length:4][payload]}*,
// little-endian throughout.
func EncodeStream(msgs []Message) []byte {
	size := 4
	for _, m := range msgs {
		size += 8 + len(m.Payload)
	}
	buf := make([]byte, 0, size)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(FormatVersion))
	for _, m := range msgs {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(m.ID))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m.Payload)))
		buf = append(buf, m.Payload...)
	}
	return buf
}

// DecodeStream parses a complete bridge stream.
func DecodeStream(data []byte) ([]Message, error) {
	if len(data) < 4 {
		return nil, errors.Wrap(ErrTruncatedStream, "missing format version")
	}
	if v := int32(binary.LittleEndian.Uint32(data)); v != FormatVersion {
		return nil, errors.Wrapf(ErrBridgeVersion, "got %d, want %d", v, FormatVersion)
	}
	data = data[4:]
	var msgs []Message
	for len(data) > 0 {
		if len(data) < 8 {
			return nil, errors.Wrap(ErrTruncatedStream, "partial header")
		}
		id := int32(binary.LittleEndian.Uint32(data[0:4]))
		length := int32(binary.LittleEndian.Uint32(data[4:8]))
		data = data[8:]
		if length < 0 || int(length) > len(data) {
			return nil, errors.Wrapf(ErrTruncatedStream, "declared %d bytes, %d remain", length, len(data))
		}
		msgs = append(msgs, Message{ID: id, Payload: append([]byte(nil), data[:length]...)})
		data = data[length:]
	}
	return msgs, nil
}
