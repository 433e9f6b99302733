package server

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// RunConsole reads operator commands line by line until EOF, /quit, or ctx
// cancellation. Slash commands control the server; any other input is
// broadcast to all players as a server-originated chat message.
func (s *Server) RunConsole(ctx context.Context, r io.Reader) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if s.handleCommand(line) {
				return
			}
		}
	}
}

// handleCommand executes one operator line and reports whether the server
// should shut down.
func (s *Server) handleCommand(line string) bool {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return false

	case line == "/quit":
		logger.Info("shutdown requested from console")
		s.Shutdown()
		return true

	case strings.HasPrefix(line, "/kick "):
		target := strings.TrimSpace(strings.TrimPrefix(line, "/kick "))
		if target == "" {
			logger.Warn("usage: /kick <username>")
			return false
		}
		if s.Kick(target, "Kicked from the server") {
			logger.WithField("username", target).Info("kicked")
		} else {
			logger.WithField("username", target).Warn("no such user")
		}
		return false

	case line == "/list":
		names := s.Usernames()
		logger.WithField("count", len(names)).Info("connected users")
		for _, n := range names {
			logger.Info("  " + n)
		}
		return false

	case strings.HasPrefix(line, "/"):
		logger.WithField("command", line).Warn("unknown command")
		return false

	default:
		s.broadcastServerMessage("SERVER: "+line, nil)
		return false
	}
}
