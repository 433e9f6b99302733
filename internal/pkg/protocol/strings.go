package protocol

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// ErrTruncatedField is returned when a payload ends mid-field.
var ErrTruncatedField = errors.New("payload truncated mid-field")

// AppendString appends an int32-LE length prefix and the UTF-8 bytes of s.
func AppendString(buf []byte, s string) []byte {
	buf = AppendInt32(buf, int32(len(s)))
	return append(buf, s...)
}

// AppendInt32 appends v in little-endian order.
func AppendInt32(buf []byte, v int32) []byte {
	return binary.LittleEndian.AppendUint32(buf, uint32(v))
}

// AppendBytes appends an int32-LE length prefix and the raw bytes.
func AppendBytes(buf, b []byte) []byte {
	buf = AppendInt32(buf, int32(len(b)))
	return append(buf, b...)
}

// ReadInt32 reads a little-endian int32 from the front of buf and returns the
// remainder.
func ReadInt32(buf []byte) (int32, []byte, error) {
	if len(buf) < 4 {
		return 0, nil, ErrTruncatedField
	}
	return int32(binary.LittleEndian.Uint32(buf)), buf[4:], nil
}

// ReadString reads a length-prefixed string from the front of buf and returns
// the remainder.
func ReadString(buf []byte) (string, []byte, error) {
	b, rest, err := ReadBytes(buf)
	if err != nil {
		return "", nil, err
	}
	return string(b), rest, nil
}

// ReadBytes reads a length-prefixed byte field from the front of buf and
// returns the remainder. The returned slice aliases buf.
func ReadBytes(buf []byte) ([]byte, []byte, error) {
	n, rest, err := ReadInt32(buf)
	if err != nil {
		return nil, nil, err
	}
	if n < 0 || int(n) > len(rest) {
		return nil, nil, errors.Wrapf(ErrTruncatedField, "declared %d bytes, %d remain", n, len(rest))
	}
	return rest[:n], rest[n:], nil
}
