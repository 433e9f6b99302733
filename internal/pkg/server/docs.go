// Package server implements the livefeed relay server.
//
// The server performs the following steps:
//	1. Listens on one port for both TCP (control/data) and UDP (probe/update) traffic.
//	2. On an accepted connection, it scans the fixed slot pool for a free slot; with
//	   none free it sends a HANDSHAKE_REFUSAL and closes without entering the registry.
//	3. A bound slot immediately receives the server HANDSHAKE with the assigned
//	   client ID, followed by the current SERVER_SETTINGS.
//	4. The client's HANDSHAKE claims a username; a case-insensitive collision with
//	   another live session is refused, otherwise the join is announced.
//	5. Each session runs a receive pump feeding the incremental decoder, a
//	   dispatcher draining the decoded-message queue, and a batching writer
//	   draining the outbound queue.
//	6. Plugin updates are relayed verbatim to every other handshaked session; chat,
//	   screenshots and craft files pass through flood and size policies first.
//	7. A supervisor loop force-disconnects sessions that have been silent past the
//	   configured timeout.
//
// All per-session state lives in the session package behind a single lock per
// session; the slot array itself is fixed at startup and never resized, so
// slot acquisition is a bounded scan with no registry-wide lock.
package server
