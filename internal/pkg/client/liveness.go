package client

import "time"

// udpLiveness tracks whether the low-latency channel is usable. The channel
// is up only while an acknowledgment has been received within the rolling
// timeout window, and both methods report edge transitions exactly once so
// callers can notify without deduplicating.
type udpLiveness struct {
	window  time.Duration
	lastAck time.Time
	up      bool
}

func newUDPLiveness(window time.Duration) *udpLiveness {
	return &udpLiveness{window: window}
}

// Ack records a received acknowledgment and reports whether the channel just
// transitioned down-to-up.
func (l *udpLiveness) Ack(now time.Time) bool {
	l.lastAck = now
	if l.up {
		return false
	}
	l.up = true
	return true
}

// Check ages the channel against the rolling window and reports whether it
// just transitioned up-to-down.
func (l *udpLiveness) Check(now time.Time) bool {
	if !l.up {
		return false
	}
	if now.Sub(l.lastAck) <= l.window {
		return false
	}
	l.up = false
	return true
}

// Up reports the current channel status.
func (l *udpLiveness) Up() bool {
	return l.up
}
