package server

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"livefeed/internal/pkg/config"
	"livefeed/internal/pkg/protocol"
	"livefeed/internal/pkg/session"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

// supervisorInterval is how often the timeout sweep runs.
const supervisorInterval = 500 * time.Millisecond

// readBufferSize is the per-connection TCP read chunk size.
const readBufferSize = 8 << 10

// udpBufferSize must hold the largest datagram a client may send.
const udpBufferSize = 64 << 10

// inboundQueueDepth is the per-session decoded-message queue between the
// receive pump and the dispatcher.
const inboundQueueDepth = 128

// Server is the session registry: a fixed pool of client slots plus the
// accept, UDP, and supervisor loops that drive them.
type Server struct {
	cfg      config.Server
	sessions []*session.Session

	mu    sync.Mutex
	tcpLn net.Listener
	udp   *net.UDPConn

	// hsMu serializes username claims: the registry scan and the claim
	// must form a single critical section or two concurrent handshakes
	// can both take the same name.
	hsMu sync.Mutex

	stop func()
}

// Cfg configures a Server.
type Cfg func(*Server) error

// WithConfig sets the server configuration.
func WithConfig(cfg config.Server) Cfg {
	return func(s *Server) error {
		s.cfg = cfg
		return nil
	}
}

// NewServer creates a new Server with the given configuration.
func NewServer(cfgs ...Cfg) (*Server, error) {
	server := &Server{}
	for _, cfg := range cfgs {
		if err := cfg(server); err != nil {
			return nil, errors.Wrap(err, "apply Server cfg failed")
		}
	}
	if server.cfg.MaxClients <= 0 {
		return nil, errors.Errorf("max clients must be positive, got %d", server.cfg.MaxClients)
	}
	chat := session.Policy{
		Limit:    server.cfg.ChatFloodLimit,
		Window:   server.cfg.ChatFloodWindow,
		Duration: server.cfg.ChatThrottle,
	}
	shot := session.Policy{
		Limit:    server.cfg.ScreenshotFloodLimit,
		Window:   server.cfg.ScreenshotFloodWindow,
		Duration: server.cfg.ScreenshotThrottle,
	}
	server.sessions = make([]*session.Session, server.cfg.MaxClients)
	for i := range server.sessions {
		server.sessions[i] = session.NewSession(int32(i),
			session.WithThrottle(chat, shot),
			session.WithScreenshotBacklog(server.cfg.ScreenshotBacklog),
		)
	}
	return server, nil
}

// Addr returns the bound TCP address, for tests that listen on port 0.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tcpLn == nil {
		return nil
	}
	return s.tcpLn.Addr()
}

// Shutdown requests a stop of a running server.
func (s *Server) Shutdown() {
	s.mu.Lock()
	stop := s.stop
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// Run opens the TCP and UDP sockets and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tcpLn, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen tcp %s failed", s.cfg.Addr)
	}
	udpAddr, err := net.ResolveUDPAddr("udp", tcpLn.Addr().String())
	if err != nil {
		return errors.Wrap(err, "resolve udp addr failed")
	}
	udp, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		_ = tcpLn.Close()
		return errors.Wrapf(err, "listen udp %s failed", udpAddr)
	}

	s.mu.Lock()
	s.tcpLn = tcpLn
	s.udp = udp
	s.stop = cancel
	s.mu.Unlock()

	logger.WithFields(logrus.Fields{
		"addr":        tcpLn.Addr().String(),
		"max_clients": s.cfg.MaxClients,
	}).Info("server listening")

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		s.acceptLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.udpLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.supervise(ctx)
	}()

	<-ctx.Done()
	_ = tcpLn.Close()
	_ = udp.Close()
	for _, sess := range s.sessions {
		s.disconnect(sess, "Server is shutting down", true)
	}
	wg.Wait()
	return ctx.Err()
}

// acceptLoop binds incoming connections to free slots, refusing when full.
func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.tcpLn.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.WithError(err).Warn("accept failed")
			continue
		}
		s.accept(ctx, conn)
	}
}

func (s *Server) accept(ctx context.Context, conn net.Conn) {
	now := time.Now()
	runID := uuid.New()

	var sess *session.Session
	sessCtx, sessCancel := context.WithCancel(ctx)
	for _, candidate := range s.sessions {
		if err := candidate.Bind(conn, sessCancel, now); err == nil {
			sess = candidate
			break
		}
	}
	if sess == nil {
		sessCancel()
		s.refuse(conn, "The server is currently full")
		return
	}

	entry := logger.WithFields(logrus.Fields{
		"slot":   sess.Slot,
		"remote": conn.RemoteAddr().String(),
		"run_id": runID.String(),
	})
	entry.Info("connection accepted")

	// The server speaks first: handshake with the assigned client ID, then
	// current settings.
	reply := protocol.ServerHandshakePayload{
		ProtocolVersion: protocol.Version,
		ServerVersion:   s.cfg.Version,
		ClientID:        sess.Slot,
	}
	sess.Enqueue(protocol.EncodeServer(protocol.ServerHandshake, reply.Encode()))
	if s.cfg.JoinMessage != "" {
		s.sendServerMessage(sess, s.cfg.JoinMessage)
	}
	s.broadcastSettings()

	outbound := sess.Outbound()
	go s.writePump(sessCtx, sess, outbound)
	go s.receivePump(sessCtx, sess, conn, entry)
}

// refuse is the no-free-slot path: a refusal frame straight onto the socket,
// then close. The connection never enters the registry.
func (s *Server) refuse(conn net.Conn, reason string) {
	logger.WithField("remote", conn.RemoteAddr().String()).Info("refusing connection: server full")
	frame := protocol.EncodeServer(protocol.ServerHandshakeRefusal, protocol.AppendString(nil, reason))
	_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	_, _ = conn.Write(frame)
	_ = conn.Close()
}

// receivePump owns the socket read side: it feeds the incremental decoder
// and queues complete messages for the dispatcher, so handling logic never
// runs concurrently with the parser.
func (s *Server) receivePump(ctx context.Context, sess *session.Session, conn net.Conn, entry logrus.FieldLogger) {
	dec, err := protocol.NewDecoder()
	if err != nil {
		entry.WithError(err).Error("create decoder failed")
		s.disconnect(sess, "Internal error", true)
		return
	}

	inbound := make(chan protocol.Packet, inboundQueueDepth)
	go s.dispatchLoop(ctx, sess, inbound)
	defer close(inbound)

	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			for _, pkt := range dec.Feed(buf[:n]) {
				select {
				case inbound <- pkt:
				case <-ctx.Done():
					return
				}
			}
			if err := dec.Err(); err != nil {
				entry.WithError(err).Warn("stream framing broken")
				s.disconnect(sess, "Malformed message stream", true)
				return
			}
		}
		if err != nil {
			if ctx.Err() == nil && sess.Bound() && sess.Conn() == conn {
				entry.WithError(err).Info("connection lost")
				s.disconnect(sess, "Connection lost", false)
			}
			return
		}
	}
}

func (s *Server) dispatchLoop(ctx context.Context, sess *session.Session, inbound <-chan protocol.Packet) {
	for {
		select {
		case <-ctx.Done():
			return
		case pkt, ok := <-inbound:
			if !ok {
				return
			}
			s.dispatch(sess, pkt, time.Now())
		}
	}
}

// writePump drains the outbound queue, coalescing bursts of small queued
// frames into single socket writes.
func (s *Server) writePump(ctx context.Context, sess *session.Session, outbound <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-outbound:
			if !ok {
				return
			}
			batch := frame
		drain:
			for {
				select {
				case more, ok := <-outbound:
					if !ok {
						break drain
					}
					batch = append(batch, more...)
				default:
					break drain
				}
			}
			if err := sess.Write(batch); err != nil {
				return
			}
		}
	}
}

// udpLoop reads client datagrams, attributes them by the client-ID prefix,
// and answers probes on the same channel.
func (s *Server) udpLoop(ctx context.Context) {
	buf := make([]byte, udpBufferSize)
	for {
		n, addr, err := s.udp.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.WithError(err).Warn("udp read failed")
			continue
		}
		clientID, pkt, err := protocol.ParseUDP(buf[:n])
		if err != nil {
			logger.WithError(err).Debug("dropping malformed datagram")
			continue
		}
		if clientID < 0 || int(clientID) >= len(s.sessions) {
			continue
		}
		sess := s.sessions[clientID]
		if !sess.Bound() {
			continue
		}
		now := time.Now()
		sess.TouchUDP(addr, now)
		if protocol.ClientTagOf(pkt.ID) == protocol.ClientUDPProbe {
			ack := protocol.EncodeServer(protocol.ServerUDPAcknowledge, nil)
			if _, err := s.udp.WriteToUDP(ack, addr); err != nil {
				logger.WithError(err).Debug("udp ack failed")
			}
			continue
		}
		s.dispatch(sess, pkt, now)
	}
}

// supervise sweeps for silent and half-dead connections on a fixed interval.
func (s *Server) supervise(ctx context.Context) {
	ticker := time.NewTicker(supervisorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			for _, sess := range s.sessions {
				if !sess.Bound() {
					continue
				}
				if sess.Conn() == nil {
					s.disconnect(sess, "Connection lost", false)
					continue
				}
				if sess.SinceLastReceive(now) > s.cfg.ClientTimeout {
					logger.WithField("slot", sess.Slot).Info("client timed out")
					s.disconnect(sess, "Timeout", true)
				}
			}
		}
	}
}

// disconnect releases a slot, optionally notifying the client first, then
// broadcasts the departure and refreshed settings.
func (s *Server) disconnect(sess *session.Session, reason string, notify bool) {
	if notify && sess.Bound() {
		frame := protocol.EncodeServer(protocol.ServerConnectionEnd, protocol.AppendString(nil, reason))
		_ = sess.Write(frame)
	}
	username, handshaked := sess.Release()
	if handshaked {
		logger.WithFields(logrus.Fields{
			"slot":     sess.Slot,
			"username": username,
			"reason":   reason,
		}).Info("session released")
		s.broadcastServerMessage(username+" has disconnected : "+reason, nil)
	}
	s.broadcastSettings()
}

// Kick force-disconnects a session by username. It reports whether a match
// was found.
func (s *Server) Kick(username, reason string) bool {
	for _, sess := range s.sessions {
		if sess.MatchesUsername(username) {
			s.disconnect(sess, reason, true)
			return true
		}
	}
	return false
}

// activeCount counts handshaked sessions.
func (s *Server) activeCount() int {
	n := 0
	for _, sess := range s.sessions {
		if _, ok := sess.Handshaked(); ok {
			n++
		}
	}
	return n
}

// Usernames lists the handshaked users with their activity levels.
func (s *Server) Usernames() []string {
	var names []string
	for _, sess := range s.sessions {
		if name, ok := sess.Handshaked(); ok {
			names = append(names, name+" ("+sess.Activity().String()+")")
		}
	}
	return names
}

func (s *Server) findByUsername(name string) *session.Session {
	for _, sess := range s.sessions {
		if sess.MatchesUsername(name) {
			return sess
		}
	}
	return nil
}

// sendServerMessage queues a system chat line for one session.
func (s *Server) sendServerMessage(sess *session.Session, text string) {
	sess.Enqueue(protocol.EncodeServer(protocol.ServerServerMessage, protocol.AppendString(nil, text)))
}

// broadcastServerMessage queues a system chat line for every handshaked
// session except the excluded one.
func (s *Server) broadcastServerMessage(text string, except *session.Session) {
	frame := protocol.EncodeServer(protocol.ServerServerMessage, protocol.AppendString(nil, text))
	s.broadcast(frame, except, true)
}

// broadcast queues a frame for every bound session except the excluded one.
func (s *Server) broadcast(frame []byte, except *session.Session, handshakedOnly bool) {
	for _, sess := range s.sessions {
		if sess == except {
			continue
		}
		if handshakedOnly {
			if _, ok := sess.Handshaked(); !ok {
				continue
			}
		} else if !sess.Bound() {
			continue
		}
		sess.Enqueue(frame)
	}
}

// broadcastSettings recomputes the shared settings from the current client
// count and queues them for every bound session. Client count feeds the
// displayed ship density, so joins and leaves both trigger a refresh.
func (s *Server) broadcastSettings() {
	settings := s.settings()
	s.broadcast(protocol.EncodeServer(protocol.ServerServerSettings, settings.Encode()), nil, false)
}

func (s *Server) settings() protocol.ServerSettingsPayload {
	count := s.activeCount()
	update := 250 + 25*count
	if update > 500 {
		update = 500
	}
	inactive := 8 - count/4
	if inactive < 1 {
		inactive = 1
	}
	return protocol.ServerSettingsPayload{
		UpdateIntervalMS:       int32(update),
		ScreenshotIntervalMS:   int32(s.cfg.ScreenshotInterval / time.Millisecond),
		ScreenshotMaxHeight:    int32(s.cfg.ScreenshotMaxHeight),
		InactiveShipsPerUpdate: byte(inactive),
	}
}
