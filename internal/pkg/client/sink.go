package client

import (
	"livefeed/internal/pkg/craft"
	"livefeed/internal/pkg/protocol"
)

// EventSink receives everything the engine wants a user (or host process) to
// see. Implementations must not block: they are called from the engine loop.
type EventSink interface {
	// Chat delivers one chat or system line.
	Chat(line string)
	// StateChanged reports a connection state transition.
	StateChanged(state State, detail string)
	// UDPStatus reports an edge-triggered low-latency channel transition.
	UDPStatus(up bool)
	// Screenshot delivers a screenshot pushed for the watched player.
	Screenshot(shot protocol.ScreenshotPayload)
	// CraftFile delivers a craft shared by another player.
	CraftFile(sender string, f craft.File)
}

// NopSink discards all events; useful as a default and in tests.
type NopSink struct{}

func (NopSink) Chat(string)                           {}
func (NopSink) StateChanged(State, string)            {}
func (NopSink) UDPStatus(bool)                        {}
func (NopSink) Screenshot(protocol.ScreenshotPayload) {}
func (NopSink) CraftFile(string, craft.File)          {}
