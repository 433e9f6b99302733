package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"livefeed/internal/pkg/craft"
	"livefeed/internal/pkg/log"
	"livefeed/internal/pkg/protocol"
	"livefeed/internal/pkg/session"
)

// maxUsernameLen bounds the identity claim made in a handshake.
const maxUsernameLen = 32

// dispatch routes one decoded client message. It is called from the
// session's dispatcher goroutine for TCP traffic and from the UDP loop for
// datagrams; both paths hold no session lock on entry.
func (s *Server) dispatch(sess *session.Session, pkt protocol.Packet, now time.Time) {
	sess.Touch(now)
	username, handshaked := sess.Handshaked()

	switch protocol.ClientTagOf(pkt.ID) {
	case protocol.ClientHandshake:
		s.handleHandshake(sess, pkt.Payload, now)

	case protocol.ClientPrimaryPluginUpdate, protocol.ClientSecondaryPluginUpdate:
		// Updates from strangers are noise until the handshake completes.
		if !handshaked {
			return
		}
		s.broadcast(protocol.EncodeServer(protocol.ServerPluginUpdate, pkt.Payload), sess, true)

	case protocol.ClientTextMessage:
		if !handshaked {
			return
		}
		text, _, err := protocol.ReadString(pkt.Payload)
		if err != nil {
			logger.WithFields(log.ClientPacketToFields(pkt)).Debug("dropping malformed chat message")
			return
		}
		s.handleChat(sess, username, text, now)

	case protocol.ClientScreenWatchPlayer:
		if !handshaked {
			return
		}
		name, _, err := protocol.ReadString(pkt.Payload)
		if err != nil {
			return
		}
		s.handleWatch(sess, name)

	case protocol.ClientScreenshotShare:
		if !handshaked {
			return
		}
		s.handleScreenshot(sess, username, pkt.Payload, now)

	case protocol.ClientShareCraftFile:
		if !handshaked {
			return
		}
		s.handleCraftShare(sess, username, pkt.Payload)

	case protocol.ClientActivityUpdateInGame:
		sess.RaiseActivity(session.ActivityInGame)

	case protocol.ClientActivityUpdateInFlight:
		sess.RaiseActivity(session.ActivityInFlight)

	case protocol.ClientKeepalive:
		// Touch above is the whole point.

	case protocol.ClientPing:
		sess.Enqueue(protocol.EncodeServer(protocol.ServerPingReply, pkt.Payload))

	case protocol.ClientConnectionEnd:
		reason, _, err := protocol.ReadString(pkt.Payload)
		if err != nil || reason == "" {
			reason = "Client quit"
		}
		s.disconnect(sess, reason, false)

	case protocol.ClientUDPProbe:
		// Probes are answered by the UDP loop on the channel they arrived
		// on; one that shows up over TCP proves nothing about UDP.

	default:
		logger.WithFields(log.ClientPacketToFields(pkt)).Debug("ignoring unknown message")
	}
}

func (s *Server) handleHandshake(sess *session.Session, payload []byte, now time.Time) {
	// A session gets exactly one identity claim; a repeat would rename it
	// and replay the join notices.
	if _, ok := sess.Handshaked(); ok {
		logger.WithField("slot", sess.Slot).Debug("ignoring repeat handshake")
		return
	}
	var hs protocol.ClientHandshakePayload
	if err := hs.Decode(payload); err != nil {
		s.refuseHandshake(sess, "Malformed handshake")
		return
	}
	name := strings.TrimSpace(hs.Username)
	if name == "" || len(name) > maxUsernameLen {
		s.refuseHandshake(sess, "Invalid username")
		return
	}

	// The scan and the claim happen under hsMu so that of two concurrent
	// claims on the same name, the second always sees the first.
	s.hsMu.Lock()
	if other := s.findByUsername(name); other != nil && other != sess {
		s.hsMu.Unlock()
		s.refuseHandshake(sess, "The username "+name+" is already in use")
		return
	}
	sess.CompleteHandshake(name, now)
	s.hsMu.Unlock()
	logger.WithFields(logrus.Fields{
		"slot":     sess.Slot,
		"username": name,
		"version":  hs.Version,
	}).Info("handshake completed")

	others := s.activeCount() - 1
	switch others {
	case 0:
		s.sendServerMessage(sess, "There are currently no other users on this server")
	case 1:
		s.sendServerMessage(sess, "There is currently 1 other user on this server")
	default:
		s.sendServerMessage(sess, "There are currently "+strconv.Itoa(others)+" other users on this server")
	}
	s.broadcastServerMessage(name+" has joined the server", sess)
}

// refuseHandshake rejects an identity claim but, unlike the full-server
// path, the underlying connection was already accepted, so it is torn down
// through the normal release path.
func (s *Server) refuseHandshake(sess *session.Session, reason string) {
	logger.WithFields(logrus.Fields{
		"slot":   sess.Slot,
		"reason": reason,
	}).Info("handshake refused")
	_ = sess.Write(protocol.EncodeServer(protocol.ServerHandshakeRefusal, protocol.AppendString(nil, reason)))
	s.disconnect(sess, reason, false)
}

func (s *Server) handleChat(sess *session.Session, username, text string, now time.Time) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	// !list is a local query, never broadcast.
	if text == "!list" {
		names := s.Usernames()
		reply := "Connected users: " + strconv.Itoa(len(names))
		for _, n := range names {
			reply += "\n" + n
		}
		s.sendServerMessage(sess, reply)
		return
	}

	if !sess.ChatAllowed(now) {
		s.sendServerMessage(sess, "You are sending messages too quickly; chat is muted for a moment")
		return
	}

	frame := protocol.EncodeServer(protocol.ServerTextMessage, protocol.AppendString(nil, username+": "+text))
	// Normal chat echoes back to the sender as well.
	s.broadcast(frame, nil, true)
}

func (s *Server) handleWatch(sess *session.Session, name string) {
	if !sess.SetWatching(name) {
		return
	}
	if name == "" {
		return
	}
	subject := s.findByUsername(name)
	if subject == nil || subject == sess {
		return
	}
	shot, ok := subject.LatestScreenshot()
	if !ok {
		return
	}
	payload := protocol.ScreenshotPayload{
		Index:       shot.Index,
		Player:      shot.Player,
		Description: shot.Description,
		Image:       shot.Image,
	}
	sess.Enqueue(protocol.EncodeServer(protocol.ServerScreenshotShare, payload.Encode()))
}

func (s *Server) handleScreenshot(sess *session.Session, username string, payload []byte, now time.Time) {
	if len(payload) > s.cfg.ScreenshotMaxBytes {
		s.sendServerMessage(sess, "Screenshot too large to share on this server")
		return
	}
	description, rest, err := protocol.ReadString(payload)
	if err != nil {
		return
	}
	image, _, err := protocol.ReadBytes(rest)
	if err != nil {
		return
	}
	if !sess.ScreenshotAllowed(now) {
		s.sendServerMessage(sess, "You are sharing screenshots too quickly; sharing is muted for a moment")
		return
	}

	shot := sess.PushScreenshot(description, append([]byte(nil), image...))
	s.broadcastServerMessage(username+" has shared a screenshot", sess)

	push := protocol.ScreenshotPayload{
		Index:       shot.Index,
		Player:      username,
		Description: description,
		Image:       shot.Image,
	}
	frame := protocol.EncodeServer(protocol.ServerScreenshotShare, push.Encode())
	for _, watcher := range s.sessions {
		if watcher == sess {
			continue
		}
		if _, ok := watcher.Handshaked(); !ok {
			continue
		}
		if strings.EqualFold(watcher.Watching(), username) {
			watcher.Enqueue(frame)
		}
	}
}

func (s *Server) handleCraftShare(sess *session.Session, username string, payload []byte) {
	var f craft.File
	if err := f.Decode(payload); err != nil {
		s.sendServerMessage(sess, "Craft file rejected: "+err.Error())
		return
	}
	sess.SetSharedCraft(&f)
	s.broadcastServerMessage(username+" has shared a "+f.Type.String()+" craft: "+f.Name, sess)

	// Forwarded craft carries the sender's name ahead of the craft frame so
	// receivers can attribute it.
	fwd := protocol.AppendString(nil, username)
	fwd = append(fwd, payload...)
	s.broadcast(protocol.EncodeServer(protocol.ServerCraftFile, fwd), sess, true)
}
