package protocol

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// HeaderSize is the fixed size of the wire header: int32 id + int32 length.
const HeaderSize = 8

// UDPPrefixSize is the client-ID prefix carried by client-to-server UDP
// datagrams ahead of the normal header.
const UDPPrefixSize = 4

// DefaultMaxPayload bounds the payload length a Decoder will accept. A
// corrupt header must not be able to drive an unbounded allocation.
const DefaultMaxPayload = 16 << 20

// Version is the protocol version exchanged during the handshake. Both ends
// must agree exactly.
const Version int32 = 1

// ErrPayloadTooLarge is reported by a Decoder whose stream declared a payload
// length above the configured maximum. The stream is unrecoverable after
// this: framing can no longer be trusted.
var ErrPayloadTooLarge = errors.New("declared payload length exceeds maximum")

// ErrShortDatagram is returned by ParseUDP for datagrams too small to carry
// the client-ID prefix and header.
var ErrShortDatagram = errors.New("datagram shorter than prefix and header")

// Packet is one decoded message: the raw wire id and its payload. The tag
// mapping is direction-specific, so the Decoder leaves ids raw and callers
// apply ClientTagOf or ServerTagOf.
type Packet struct {
	ID      int32
	Payload []byte
}

// EncodeClient frames a client-to-server message for the TCP channel.
func EncodeClient(tag ClientTag, payload []byte) []byte {
	return encode(int32(tag), payload)
}

// EncodeServer frames a server-to-client message.
func EncodeServer(tag ServerTag, payload []byte) []byte {
	return encode(int32(tag), payload)
}

// EncodeClientUDP frames a client-to-server message for the UDP channel,
// prefixing the sender's client ID.
func EncodeClientUDP(clientID int32, tag ClientTag, payload []byte) []byte {
	buf := make([]byte, UDPPrefixSize+HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(clientID))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(tag))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(payload)))
	copy(buf[UDPPrefixSize+HeaderSize:], payload)
	return buf
}

func encode(id int32, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(id))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(payload)))
	copy(buf[HeaderSize:], payload)
	return buf
}

// ParseUDP splits a client-to-server datagram into its client-ID prefix and
// the framed message. UDP is not a stream: the datagram either holds one
// complete message or it is discarded. Trailing bytes beyond the declared
// length are ignored.
func ParseUDP(datagram []byte) (clientID int32, pkt Packet, err error) {
	if len(datagram) < UDPPrefixSize+HeaderSize {
		return 0, Packet{}, ErrShortDatagram
	}
	clientID = int32(binary.LittleEndian.Uint32(datagram[0:4]))
	pkt.ID = int32(binary.LittleEndian.Uint32(datagram[4:8]))
	length := int32(binary.LittleEndian.Uint32(datagram[8:12]))
	if length < 0 || int(length) > len(datagram)-UDPPrefixSize-HeaderSize {
		return 0, Packet{}, errors.Errorf("declared length %d exceeds datagram size %d", length, len(datagram))
	}
	if length > 0 {
		pkt.Payload = make([]byte, length)
		copy(pkt.Payload, datagram[UDPPrefixSize+HeaderSize:])
	}
	return clientID, pkt, nil
}

// Decoder incrementally parses a framed byte stream. The zero value is not
// usable; construct with NewDecoder.
type Decoder struct {
	maxPayload int

	header  [HeaderSize]byte
	have    int // header bytes collected so far
	payload []byte
	filled  int // payload bytes collected so far
	reading bool

	err error
}

// DecoderCfg configures a Decoder.
type DecoderCfg func(*Decoder) error

// WithMaxPayload overrides the payload length bound.
func WithMaxPayload(n int) DecoderCfg {
	return func(d *Decoder) error {
		if n <= 0 {
			return errors.Errorf("max payload must be positive, got %d", n)
		}
		d.maxPayload = n
		return nil
	}
}

// NewDecoder creates a Decoder with the given configuration.
func NewDecoder(cfgs ...DecoderCfg) (*Decoder, error) {
	d := &Decoder{maxPayload: DefaultMaxPayload}
	for _, cfg := range cfgs {
		if err := cfg(d); err != nil {
			return nil, errors.Wrap(err, "apply Decoder cfg failed")
		}
	}
	return d, nil
}

// Err reports the poisoned state of the decoder, if any. Once non-nil the
// decoder discards all further input.
func (d *Decoder) Err() error {
	return d.err
}

// Feed consumes one chunk of stream bytes and returns the messages completed
// by it, in stream order. It never blocks: a short chunk simply leaves
// partial state for the next call. Zero-length payloads complete as soon as
// their header does.
func (d *Decoder) Feed(chunk []byte) []Packet {
	if d.err != nil {
		return nil
	}
	var out []Packet
	for len(chunk) > 0 {
		if !d.reading {
			n := copy(d.header[d.have:], chunk)
			d.have += n
			chunk = chunk[n:]
			if d.have < HeaderSize {
				return out
			}
			length := int32(binary.LittleEndian.Uint32(d.header[4:8]))
			if length < 0 || int(length) > d.maxPayload {
				d.err = errors.Wrapf(ErrPayloadTooLarge, "length %d", length)
				return out
			}
			d.reading = true
			d.filled = 0
			d.payload = make([]byte, length)
			if length == 0 {
				out = append(out, d.complete())
				continue
			}
		}
		n := copy(d.payload[d.filled:], chunk)
		d.filled += n
		chunk = chunk[n:]
		if d.filled == len(d.payload) {
			out = append(out, d.complete())
		}
	}
	return out
}

func (d *Decoder) complete() Packet {
	pkt := Packet{
		ID:      int32(binary.LittleEndian.Uint32(d.header[0:4])),
		Payload: d.payload,
	}
	d.reading = false
	d.have = 0
	d.payload = nil
	d.filled = 0
	return pkt
}
