// Package protocol implements the livefeed wire format.
//
// Every message is framed as an 8-byte header followed by the payload:
//
//	[int32 messageId (LE)][int32 payloadLength (LE)][payload]
//
// Client-to-server UDP datagrams additionally carry a 4-byte little-endian
// client ID before the header so the server can attribute the datagram to a
// session without relying on the source address.
//
// The two directions use disjoint tag spaces (ClientTag, ServerTag). A tag
// value outside the known range decodes to the NULL tag of its direction;
// an unknown tag is a message to ignore, not a reason to tear the stream
// down.
//
// Decoder is an incremental parser designed for stream transports: bytes are
// fed in whatever chunk sizes the socket produces, and complete messages are
// yielded as soon as their last byte arrives. Partial header or payload state
// is retained between calls, so a message may span many reads and one read
// may complete many messages.
package protocol
