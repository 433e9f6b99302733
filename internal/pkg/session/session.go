package session

import (
	"net"
	"strings"
	"sync"
	"time"

	"livefeed/internal/pkg/craft"
)

// Session is the server-side record for one client slot. A slot is either
// free or bound to exactly one connection; reuse is only permitted after an
// explicit Release. All mutable fields are guarded by the single mutex, which
// must never be held across a network call.
type Session struct {
	Slot int32

	mu sync.Mutex

	bound      bool
	conn       net.Conn
	udpAddr    *net.UDPAddr
	username   string
	handshaked bool
	activity   ActivityLevel

	chatThrottle       Throttle
	screenshotThrottle Throttle

	screenshots *ScreenshotRing
	watching    string
	sharedCraft *craft.File

	connectedAt time.Time
	lastReceive time.Time
	lastUDPAck  time.Time

	outbound chan []byte
	cancel   func()

	// writeMu serializes raw socket writes so batched writer output and
	// direct control frames never interleave mid-message. It is distinct
	// from mu, which must stay free of I/O.
	writeMu sync.Mutex
}

// Cfg configures a Session at construction time.
type Cfg func(*Session)

// WithThrottle sets both flood-throttle policies.
func WithThrottle(chat, screenshot Policy) Cfg {
	return func(s *Session) {
		s.chatThrottle = Throttle{Policy: chat}
		s.screenshotThrottle = Throttle{Policy: screenshot}
	}
}

// WithScreenshotBacklog sets the screenshot ring capacity.
func WithScreenshotBacklog(n int) Cfg {
	return func(s *Session) {
		s.screenshots = NewScreenshotRing(n)
	}
}

// WithQueueDepth sets the outbound queue depth.
func WithQueueDepth(n int) Cfg {
	return func(s *Session) {
		s.outbound = make(chan []byte, n)
	}
}

// DefaultScreenshotBacklog is the screenshot ring capacity used when none is
// configured.
const DefaultScreenshotBacklog = 8

// DefaultQueueDepth is the outbound queue depth used when none is configured.
const DefaultQueueDepth = 128

// NewSession creates an unbound Session for the given slot.
func NewSession(slot int32, cfgs ...Cfg) *Session {
	s := &Session{Slot: slot}
	for _, cfg := range cfgs {
		cfg(s)
	}
	if s.screenshots == nil {
		s.screenshots = NewScreenshotRing(DefaultScreenshotBacklog)
	}
	if s.outbound == nil {
		s.outbound = make(chan []byte, DefaultQueueDepth)
	}
	return s
}

// Bind takes ownership of a free slot for a new connection. It returns
// ErrSlotBound if the slot has not been released since its last use.
func (s *Session) Bind(conn net.Conn, cancel func(), now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound {
		return ErrSlotBound
	}
	s.bound = true
	s.conn = conn
	s.udpAddr = nil
	s.username = ""
	s.handshaked = false
	s.activity = ActivityInactive
	s.chatThrottle.Reset()
	s.screenshotThrottle.Reset()
	s.screenshots.Clear()
	s.watching = ""
	s.sharedCraft = nil
	s.connectedAt = now
	s.lastReceive = now
	s.lastUDPAck = time.Time{}
	s.cancel = cancel

	// Replace the queue so a slow writer from the previous connection can
	// never deliver stale frames to the new one.
	s.outbound = make(chan []byte, cap(s.outbound))
	return nil
}

// Release frees the slot for reuse. It cancels the session's pumps, closes
// the socket and the outbound queue, and reports whether the departing
// connection had completed its handshake (the caller broadcasts a departure
// notice only in that case).
func (s *Session) Release() (username string, handshaked bool) {
	s.mu.Lock()
	if !s.bound {
		s.mu.Unlock()
		return "", false
	}
	username = s.username
	handshaked = s.handshaked
	conn := s.conn
	cancel := s.cancel
	s.bound = false
	s.conn = nil
	s.handshaked = false
	s.cancel = nil
	// Closed under the lock so Enqueue can never race a send against it.
	close(s.outbound)
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	return username, handshaked
}

// Bound reports whether the slot currently belongs to a connection.
func (s *Session) Bound() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound
}

// Conn returns the session's TCP socket, or nil for a free slot.
func (s *Session) Conn() net.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// Enqueue queues an encoded frame for the batching writer. Frames for a full
// queue or a freed slot are dropped: a stalled consumer must not block the
// dispatch path.
func (s *Session) Enqueue(frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.bound {
		return false
	}
	select {
	case s.outbound <- frame:
		return true
	default:
		return false
	}
}

// Write performs one raw socket write. Safe to call from the batching writer
// and from direct control-frame paths concurrently.
func (s *Session) Write(frame []byte) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrSlotFree
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := conn.Write(frame)
	return err
}

// Outbound exposes the queue drained by the session's writer goroutine. The
// channel is closed by Release.
func (s *Session) Outbound() <-chan []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outbound
}

// CompleteHandshake records a successful handshake under the given username.
func (s *Session) CompleteHandshake(username string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = username
	s.handshaked = true
	s.lastReceive = now
}

// Handshaked reports whether the session has completed its handshake, and
// under which username.
func (s *Session) Handshaked() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username, s.handshaked
}

// MatchesUsername reports whether the session is handshaked under the given
// name, compared case-insensitively.
func (s *Session) MatchesUsername(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handshaked && strings.EqualFold(s.username, name)
}

// Touch records inbound activity.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReceive = now
}

// SinceLastReceive reports how long the session has been silent.
func (s *Session) SinceLastReceive(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastReceive)
}

// TouchUDP records an inbound datagram and its return address.
func (s *Session) TouchUDP(addr *net.UDPAddr, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.udpAddr = addr
	s.lastUDPAck = now
	s.lastReceive = now
}

// UDPAddr returns the last seen UDP return address, or nil.
func (s *Session) UDPAddr() *net.UDPAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.udpAddr
}

// RaiseActivity applies a client-reported activity level. Levels only rise
// within a connection; a stale lower report is ignored.
func (s *Session) RaiseActivity(level ActivityLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if level > s.activity {
		s.activity = level
	}
}

// Activity returns the current activity level.
func (s *Session) Activity() ActivityLevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activity
}

// ChatAllowed runs the chat flood policy for one message at the given
// instant and reports whether the message may be accepted.
func (s *Session) ChatAllowed(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatThrottle.Increment(now)
}

// ScreenshotAllowed runs the screenshot flood policy for one share.
func (s *Session) ScreenshotAllowed(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screenshotThrottle.Increment(now)
}

// SetWatching updates the watch subscription. It reports whether the value
// actually changed; unchanged updates must not re-trigger a cached push.
func (s *Session) SetWatching(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watching == name {
		return false
	}
	s.watching = name
	return true
}

// Watching returns the name of the watched player, or "".
func (s *Session) Watching() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watching
}

// PushScreenshot stores a screenshot as the session's newest and returns it
// with its assigned monotonic index.
func (s *Session) PushScreenshot(description string, image []byte) Screenshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screenshots.Push(s.username, description, image)
}

// LatestScreenshot returns the newest cached screenshot, if any.
func (s *Session) LatestScreenshot() (Screenshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screenshots.Latest()
}

// SetSharedCraft records the craft file most recently shared by the session.
func (s *Session) SetSharedCraft(f *craft.File) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sharedCraft = f
}

// SharedCraft returns the craft file most recently shared by the session.
func (s *Session) SharedCraft() *craft.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sharedCraft
}

// ConnectedAt returns the bind time of the current connection.
func (s *Session) ConnectedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectedAt
}
