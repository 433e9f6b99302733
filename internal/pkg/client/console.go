package client

import (
	"github.com/fatih/color"

	"livefeed/internal/pkg/craft"
	"livefeed/internal/pkg/protocol"
)

// ConsoleSink renders engine events to the terminal.
type ConsoleSink struct {
	// SaveTitle, when set, is the save directory craft files are written
	// into as they arrive.
	SaveTitle string

	chat    *color.Color
	state   *color.Color
	info    *color.Color
	problem *color.Color
}

// NewConsoleSink creates a terminal sink.
func NewConsoleSink(saveTitle string) *ConsoleSink {
	return &ConsoleSink{
		SaveTitle: saveTitle,
		chat:      color.New(color.FgWhite),
		state:     color.New(color.FgCyan),
		info:      color.New(color.FgGreen),
		problem:   color.New(color.FgRed),
	}
}

func (s *ConsoleSink) Chat(line string) {
	s.chat.Println(line)
}

func (s *ConsoleSink) StateChanged(state State, detail string) {
	if detail == "" {
		s.state.Printf("[%s]\n", state)
		return
	}
	s.state.Printf("[%s] %s\n", state, detail)
}

func (s *ConsoleSink) UDPStatus(up bool) {
	if up {
		s.info.Println("Low-latency channel established")
		return
	}
	s.problem.Println("Low-latency channel lost, falling back to TCP")
}

func (s *ConsoleSink) Screenshot(shot protocol.ScreenshotPayload) {
	s.info.Printf("Screenshot from %s (%d bytes): %s\n", shot.Player, len(shot.Image), shot.Description)
}

func (s *ConsoleSink) CraftFile(sender string, f craft.File) {
	if s.SaveTitle == "" {
		s.info.Printf("%s shared %s craft %q\n", sender, f.Type, f.Name)
		return
	}
	path, err := f.WriteTo(s.SaveTitle)
	if err != nil {
		s.problem.Printf("Failed to save craft %q from %s: %v\n", f.Name, sender, err)
		return
	}
	s.info.Printf("Saved %s craft %q from %s to %s\n", f.Type, f.Name, sender, path)
}
