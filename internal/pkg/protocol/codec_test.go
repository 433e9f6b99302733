package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecoderRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		tag     ClientTag
		payload []byte
	}{
		{"empty payload", ClientKeepalive, nil},
		{"one byte", ClientTextMessage, []byte{0x42}},
		{"text", ClientTextMessage, []byte("hello there")},
		{"binary", ClientPrimaryPluginUpdate, []byte{0x00, 0xff, 0x10, 0x80, 0x7f}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := NewDecoder()
			require.NoError(t, err)
			pkts := d.Feed(EncodeClient(tc.tag, tc.payload))
			require.Len(t, pkts, 1)
			require.Equal(t, tc.tag, ClientTagOf(pkts[0].ID))
			require.Equal(t, len(tc.payload), len(pkts[0].Payload))
			if len(tc.payload) > 0 {
				require.Equal(t, tc.payload, pkts[0].Payload)
			}
		})
	}
}

func TestDecoderByteAtATime(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)
	payload := []byte("split across every possible boundary")
	stream := EncodeClient(ClientTextMessage, payload)
	var got []Packet
	for i := range stream {
		got = append(got, d.Feed(stream[i:i+1])...)
	}
	require.Len(t, got, 1)
	require.Equal(t, ClientTextMessage, ClientTagOf(got[0].ID))
	require.Equal(t, payload, got[0].Payload)
}

func TestDecoderManyMessagesOneChunk(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)
	var stream []byte
	stream = append(stream, EncodeClient(ClientKeepalive, nil)...)
	stream = append(stream, EncodeClient(ClientTextMessage, []byte("a"))...)
	stream = append(stream, EncodeClient(ClientPing, nil)...)
	pkts := d.Feed(stream)
	require.Len(t, pkts, 3)
	require.Equal(t, ClientKeepalive, ClientTagOf(pkts[0].ID))
	require.Equal(t, ClientTextMessage, ClientTagOf(pkts[1].ID))
	require.Equal(t, []byte("a"), pkts[1].Payload)
	require.Equal(t, ClientPing, ClientTagOf(pkts[2].ID))
}

func TestDecoderResumesAcrossMessages(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)
	first := EncodeClient(ClientTextMessage, []byte("first"))
	second := EncodeClient(ClientTextMessage, []byte("second"))
	// End the first chunk in the middle of the second message's header.
	stream := append(append([]byte{}, first...), second...)
	cut := len(first) + 3
	pkts := d.Feed(stream[:cut])
	require.Len(t, pkts, 1)
	pkts = append(pkts, d.Feed(stream[cut:])...)
	require.Len(t, pkts, 2)
	require.Equal(t, []byte("second"), pkts[1].Payload)
}

func TestUnknownIDDecodesToNull(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)
	pkts := d.Feed(encode(9999, []byte("junk")))
	require.Len(t, pkts, 1)
	require.Equal(t, ClientNull, ClientTagOf(pkts[0].ID))
	require.Equal(t, ServerNull, ServerTagOf(pkts[0].ID))

	pkts = d.Feed(encode(-1, nil))
	require.Len(t, pkts, 1)
	require.Equal(t, ClientNull, ClientTagOf(pkts[0].ID))

	// Parsing must continue after an unknown id.
	pkts = d.Feed(EncodeClient(ClientKeepalive, nil))
	require.Len(t, pkts, 1)
	require.Equal(t, ClientKeepalive, ClientTagOf(pkts[0].ID))
}

func TestDecoderRejectsOversizedLength(t *testing.T) {
	d, err := NewDecoder(WithMaxPayload(16))
	require.NoError(t, err)
	pkts := d.Feed(EncodeClient(ClientScreenshotShare, make([]byte, 17)))
	require.Empty(t, pkts)
	require.ErrorIs(t, d.Err(), ErrPayloadTooLarge)

	// Poisoned decoders discard further input.
	require.Empty(t, d.Feed(EncodeClient(ClientKeepalive, nil)))
}

func TestParseUDP(t *testing.T) {
	dgram := EncodeClientUDP(7, ClientUDPProbe, nil)
	clientID, pkt, err := ParseUDP(dgram)
	require.NoError(t, err)
	require.Equal(t, int32(7), clientID)
	require.Equal(t, ClientUDPProbe, ClientTagOf(pkt.ID))
	require.Empty(t, pkt.Payload)

	dgram = EncodeClientUDP(3, ClientPrimaryPluginUpdate, []byte{1, 2, 3})
	clientID, pkt, err = ParseUDP(dgram)
	require.NoError(t, err)
	require.Equal(t, int32(3), clientID)
	require.Equal(t, []byte{1, 2, 3}, pkt.Payload)

	_, _, err = ParseUDP([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrShortDatagram)
}

func TestHandshakePayloadRoundTrip(t *testing.T) {
	in := ClientHandshakePayload{Username: "jeb", Version: "0.7.1"}
	var out ClientHandshakePayload
	require.NoError(t, out.Decode(in.Encode()))
	require.Equal(t, in, out)

	reply := ServerHandshakePayload{ProtocolVersion: Version, ServerVersion: "0.7.1", ClientID: 5}
	var gotReply ServerHandshakePayload
	require.NoError(t, gotReply.Decode(reply.Encode()))
	require.Equal(t, reply, gotReply)
}

func TestServerSettingsPayloadSize(t *testing.T) {
	in := ServerSettingsPayload{
		UpdateIntervalMS:       250,
		ScreenshotIntervalMS:   3000,
		ScreenshotMaxHeight:    600,
		InactiveShipsPerUpdate: 4,
	}
	encoded := in.Encode()
	require.Len(t, encoded, ServerSettingsSize)
	var out ServerSettingsPayload
	require.NoError(t, out.Decode(encoded))
	require.Equal(t, in, out)

	require.Error(t, out.Decode(encoded[:12]))
}

func TestScreenshotPayloadRoundTrip(t *testing.T) {
	in := ScreenshotPayload{
		Index:       42,
		Player:      "val",
		Description: "aerobraking at 40km",
		Image:       []byte{0x89, 'P', 'N', 'G'},
	}
	var out ScreenshotPayload
	require.NoError(t, out.Decode(in.Encode()))
	require.Equal(t, in, out)

	var truncated ScreenshotPayload
	require.Error(t, truncated.Decode(in.Encode()[:6]))
}
