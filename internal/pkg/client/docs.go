// Package client implements the livefeed client connection engine.
//
// The client performs the following steps:
//	1. Resolves the server address (default port 2075) and opens the TCP channel.
//	2. Opens a best-effort UDP socket to the same endpoint; failure here is
//	   non-fatal and the session continues TCP-only.
//	3. Sends the HANDSHAKE carrying the username and client version, and expects
//	   the server HANDSHAKE reply with the protocol version, server version and
//	   assigned client ID. A protocol version mismatch terminates the session
//	   without reconnecting.
//	4. While connected, sends a TCP keepalive after 2s of send-side idleness and
//	   a UDP probe after 1s; the UDP channel counts as up only while an
//	   acknowledgment arrived within the last 8s, and up/down transitions are
//	   reported exactly once each.
//	5. High-frequency state updates prefer the UDP channel while it is up and
//	   fall back to TCP otherwise.
//	6. Inbound messages are queued by the receive pumps and drained by the one
//	   engine goroutine, so handling logic never runs concurrently with the parser.
//	7. On an unintentional disconnect with auto-reconnect enabled, the whole
//	   cycle repeats after a fixed delay, bounded by a maximum attempt count
//	   that resets on any successful connection.
//
// The engine pushes everything user-visible through an EventSink and moves
// plugin traffic through an optional interop.Transport, so the same engine
// serves the interactive console, the file bridge to the game process, and
// test doubles.
//
// One deliberate semantic: a player never sees their own shared screenshot
// pushed back at them, but does see their own chat echoed; the server is the
// single source of chat ordering.
package client
