package session

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBindReleaseLifecycle(t *testing.T) {
	s := NewSession(3)
	now := time.Now()

	require.False(t, s.Bound())
	require.NoError(t, s.Bind(nil, nil, now))
	require.True(t, s.Bound())
	require.Equal(t, now, s.ConnectedAt())

	// Double bind must fail until released.
	require.ErrorIs(t, s.Bind(nil, nil, now), ErrSlotBound)

	s.CompleteHandshake("alice", now)
	username, handshaked := s.Release()
	require.Equal(t, "alice", username)
	require.True(t, handshaked)
	require.False(t, s.Bound())

	// The slot is reusable and carries nothing over.
	require.NoError(t, s.Bind(nil, nil, now))
	_, handshaked = s.Handshaked()
	require.False(t, handshaked)
	require.Equal(t, "", s.Watching())
	_, ok := s.LatestScreenshot()
	require.False(t, ok)
	require.Nil(t, s.SharedCraft())
}

func TestReleaseUnboundIsNoop(t *testing.T) {
	s := NewSession(0)
	username, handshaked := s.Release()
	require.Equal(t, "", username)
	require.False(t, handshaked)
}

func TestReleaseCancelsAndClosesQueue(t *testing.T) {
	s := NewSession(0)
	cancelled := false
	require.NoError(t, s.Bind(nil, func() { cancelled = true }, time.Now()))

	queue := s.Outbound()
	require.True(t, s.Enqueue([]byte{1}))
	s.Release()
	require.True(t, cancelled)

	// The queued frame drains, then the closed channel reports done.
	frame, ok := <-queue
	require.True(t, ok)
	require.Equal(t, []byte{1}, frame)
	_, ok = <-queue
	require.False(t, ok)

	// Frames for a freed slot are dropped, not queued.
	require.False(t, s.Enqueue([]byte{2}))
}

func TestBindReplacesQueue(t *testing.T) {
	s := NewSession(0, WithQueueDepth(4))
	require.NoError(t, s.Bind(nil, nil, time.Now()))
	old := s.Outbound()
	require.True(t, s.Enqueue([]byte{1}))
	s.Release()

	require.NoError(t, s.Bind(nil, nil, time.Now()))
	require.True(t, s.Enqueue([]byte{2}))

	// The new connection's queue holds only its own frames.
	fresh := s.Outbound()
	require.NotEqual(t, old, fresh)
	frame := <-fresh
	require.Equal(t, []byte{2}, frame)
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	s := NewSession(0, WithQueueDepth(1))
	require.NoError(t, s.Bind(nil, nil, time.Now()))
	require.True(t, s.Enqueue([]byte{1}))
	require.False(t, s.Enqueue([]byte{2}), "a stalled consumer must not block the dispatch path")
}

func TestWriteOnFreeSlot(t *testing.T) {
	s := NewSession(0)
	require.ErrorIs(t, s.Write([]byte{1}), ErrSlotFree)
}

func TestMatchesUsernameCaseInsensitive(t *testing.T) {
	s := NewSession(0)
	now := time.Now()
	require.NoError(t, s.Bind(nil, nil, now))

	// An unhandshaked session matches nothing.
	require.False(t, s.MatchesUsername(""))

	s.CompleteHandshake("Alice", now)
	require.True(t, s.MatchesUsername("alice"))
	require.True(t, s.MatchesUsername("ALICE"))
	require.False(t, s.MatchesUsername("bob"))
}

func TestActivityOnlyRises(t *testing.T) {
	s := NewSession(0)
	require.NoError(t, s.Bind(nil, nil, time.Now()))
	require.Equal(t, ActivityInactive, s.Activity())

	s.RaiseActivity(ActivityInFlight)
	require.Equal(t, ActivityInFlight, s.Activity())

	// A stale lower report is ignored.
	s.RaiseActivity(ActivityInGame)
	require.Equal(t, ActivityInFlight, s.Activity())

	// A new connection starts over.
	s.Release()
	require.NoError(t, s.Bind(nil, nil, time.Now()))
	require.Equal(t, ActivityInactive, s.Activity())
}

func TestSinceLastReceive(t *testing.T) {
	s := NewSession(0)
	base := time.Now()
	require.NoError(t, s.Bind(nil, nil, base))

	require.Equal(t, 10*time.Second, s.SinceLastReceive(base.Add(10*time.Second)))
	s.Touch(base.Add(10 * time.Second))
	require.Equal(t, 5*time.Second, s.SinceLastReceive(base.Add(15*time.Second)))

	// Datagrams count as liveness too.
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9999}
	s.TouchUDP(addr, base.Add(20*time.Second))
	require.Equal(t, time.Duration(0), s.SinceLastReceive(base.Add(20*time.Second)))
	require.Equal(t, addr, s.UDPAddr())
}

func TestSetWatchingReportsChange(t *testing.T) {
	s := NewSession(0)
	require.NoError(t, s.Bind(nil, nil, time.Now()))

	require.True(t, s.SetWatching("alice"))
	require.False(t, s.SetWatching("alice"), "an unchanged subscription must not re-trigger a push")
	require.True(t, s.SetWatching("bob"))
	require.True(t, s.SetWatching(""))
	require.Equal(t, "", s.Watching())
}

func TestPushScreenshotAttributesOwner(t *testing.T) {
	s := NewSession(0, WithScreenshotBacklog(2))
	now := time.Now()
	require.NoError(t, s.Bind(nil, nil, now))
	s.CompleteHandshake("alice", now)

	first := s.PushScreenshot("launch", []byte{1})
	second := s.PushScreenshot("orbit", []byte{2})
	require.Equal(t, "alice", first.Player)
	require.Equal(t, first.Index+1, second.Index)

	latest, ok := s.LatestScreenshot()
	require.True(t, ok)
	require.Equal(t, "orbit", latest.Description)
}
