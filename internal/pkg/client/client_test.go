package client

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"livefeed/internal/pkg/craft"
	"livefeed/internal/pkg/protocol"
)

// recordingSink captures events from the engine loop for assertions.
type recordingSink struct {
	mu     sync.Mutex
	chat   []string
	states []State
	udp    []bool
}

func (s *recordingSink) Chat(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chat = append(s.chat, line)
}

func (s *recordingSink) StateChanged(state State, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, state)
}

func (s *recordingSink) UDPStatus(up bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.udp = append(s.udp, up)
}

func (s *recordingSink) sawState(want State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, state := range s.states {
		if state == want {
			return true
		}
	}
	return false
}

func (s *recordingSink) Screenshot(protocol.ScreenshotPayload) {}
func (s *recordingSink) CraftFile(string, craft.File)          {}

func TestUDPLivenessEdges(t *testing.T) {
	base := time.Now()
	live := newUDPLiveness(8 * time.Second)

	require.False(t, live.Up())
	require.False(t, live.Check(base), "check on a never-acked channel must not report a transition")

	require.True(t, live.Ack(base), "first ack must report the down-to-up edge")
	require.True(t, live.Up())
	require.False(t, live.Ack(base.Add(time.Second)), "repeat acks must not re-report")

	require.False(t, live.Check(base.Add(9*time.Second)), "acked within the window, must stay up")
	require.True(t, live.Up())

	require.True(t, live.Check(base.Add(10*time.Second)), "window exceeded, must report the up-to-down edge")
	require.False(t, live.Up())
	require.False(t, live.Check(base.Add(11*time.Second)), "already down, must not re-report")

	require.True(t, live.Ack(base.Add(12*time.Second)), "recovery must report down-to-up again")
}

func TestRunGivesUpAfterMaxAttempts(t *testing.T) {
	// Reserve a port, then close it so every dial is refused.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	sink := &recordingSink{}
	c, err := NewClient(
		WithServerAddr(addr),
		WithUsername("tester"),
		WithReconnect(true, 2, 10*time.Millisecond),
		WithSink(sink),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = c.Run(ctx)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnableToConnect))
	require.True(t, sink.sawState(StateReconnecting), "the attempt budget must be spent before giving up")
}

func TestRunReconnectDisabled(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	c, err := NewClient(
		WithServerAddr(addr),
		WithUsername("tester"),
		WithReconnect(false, 3, 10*time.Millisecond),
	)
	require.NoError(t, err)

	err = c.Run(context.Background())
	require.True(t, errors.Is(err, ErrUnableToConnect))
}

// scriptedServer accepts one TCP connection, reads the client handshake, and
// replies with the given frames.
func scriptedServer(t *testing.T, replies ...[]byte) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4096)
		if _, err := conn.Read(buf); err != nil {
			return
		}
		for _, frame := range replies {
			if _, err := conn.Write(frame); err != nil {
				return
			}
		}
		// Hold the socket open briefly so the client can finish reading.
		time.Sleep(200 * time.Millisecond)
	}()
	return ln.Addr().String()
}

func TestRunVersionMismatch(t *testing.T) {
	hs := protocol.ServerHandshakePayload{
		ProtocolVersion: protocol.Version + 1,
		ServerVersion:   "test",
		ClientID:        0,
	}
	addr := scriptedServer(t, protocol.EncodeServer(protocol.ServerHandshake, hs.Encode()))

	sink := &recordingSink{}
	c, err := NewClient(
		WithServerAddr(addr),
		WithUsername("tester"),
		WithReconnect(true, 3, 10*time.Millisecond),
		WithSink(sink),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = c.Run(ctx)
	require.True(t, errors.Is(err, ErrVersionMismatch), "a version mismatch must not trigger reconnection")
	require.False(t, sink.sawState(StateReconnecting))
}

func TestRunHandshakeRefused(t *testing.T) {
	refusal := protocol.EncodeServer(protocol.ServerHandshakeRefusal,
		protocol.AppendString(nil, "The username tester is already in use"))
	addr := scriptedServer(t, refusal)

	sink := &recordingSink{}
	c, err := NewClient(
		WithServerAddr(addr),
		WithUsername("tester"),
		WithReconnect(true, 3, 10*time.Millisecond),
		WithSink(sink),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = c.Run(ctx)
	require.True(t, errors.Is(err, ErrHandshakeRefused))
	require.False(t, sink.sawState(StateReconnecting))
	require.Contains(t, lastChat(sink), "already in use")
}

func TestRunHandshakeAndServerClose(t *testing.T) {
	hs := protocol.ServerHandshakePayload{
		ProtocolVersion: protocol.Version,
		ServerVersion:   "test",
		ClientID:        3,
	}
	addr := scriptedServer(t,
		protocol.EncodeServer(protocol.ServerHandshake, hs.Encode()),
		protocol.EncodeServer(protocol.ServerServerMessage, protocol.AppendString(nil, "Welcome")),
		protocol.EncodeServer(protocol.ServerConnectionEnd, protocol.AppendString(nil, "Server is shutting down")),
	)

	sink := &recordingSink{}
	c, err := NewClient(
		WithServerAddr(addr),
		WithUsername("tester"),
		WithSink(sink),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = c.Run(ctx)
	require.True(t, errors.Is(err, errServerClosed), "a deliberate server close must not trigger reconnection")
	require.True(t, sink.sawState(StateConnected))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Contains(t, sink.chat, "Welcome")
}

func lastChat(s *recordingSink) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.chat) == 0 {
		return ""
	}
	return s.chat[len(s.chat)-1]
}

func TestWithDefaultPort(t *testing.T) {
	require.Equal(t, "example.com:2075", withDefaultPort("example.com"))
	require.Equal(t, "example.com:9000", withDefaultPort("example.com:9000"))
	require.Equal(t, "127.0.0.1:2075", withDefaultPort("127.0.0.1"))
}
