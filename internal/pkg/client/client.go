package client

import (
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"livefeed/internal/pkg/config"
	"livefeed/internal/pkg/craft"
	"livefeed/internal/pkg/interop"
	"livefeed/internal/pkg/log"
	"livefeed/internal/pkg/protocol"
)

var logger logrus.FieldLogger = logrus.StandardLogger()

const (
	// keepaliveDelay is the send-side idle threshold before a TCP keepalive.
	keepaliveDelay = 2 * time.Second
	// udpProbeDelay is the interval between UDP liveness probes.
	udpProbeDelay = time.Second
	// udpAckWindow is how long the UDP channel stays up after its last ack.
	udpAckWindow = 8 * time.Second
	// dialTimeout bounds one TCP connection attempt.
	dialTimeout = 10 * time.Second
	// engineTick drives keepalives, probes, liveness checks and bridge polls.
	engineTick = 100 * time.Millisecond
	// outboundDepth is the TCP send queue depth.
	outboundDepth = 128
	// inboundDepth is the decoded-message queue depth.
	inboundDepth = 256
)

// Client drives one player's connection to the server. All connection state
// is instance state, never package state, so multiple engines can coexist in
// one process.
type Client struct {
	addr     string
	username string
	version  string

	autoReconnect  bool
	maxReconnects  int
	reconnectDelay time.Duration

	sink   EventSink
	bridge interop.Transport

	mu         sync.Mutex
	state      State
	conn       net.Conn
	udp        *net.UDPConn
	clientID   int32
	handshaken bool
	udpUp      bool
	settings   protocol.ServerSettingsPayload
	outbound   chan []byte
	quit       func()
	lastSend   time.Time
	pingSent   time.Time
}

// Cfg configures a Client.
type Cfg func(*Client) error

// WithServerAddr sets the server address; a bare host gets the default port.
func WithServerAddr(addr string) Cfg {
	return func(c *Client) error {
		if addr == "" {
			return errors.New("server address must not be empty")
		}
		c.addr = addr
		return nil
	}
}

// WithUsername sets the identity claimed in the handshake.
func WithUsername(name string) Cfg {
	return func(c *Client) error {
		if strings.TrimSpace(name) == "" {
			return errors.New("username must not be empty")
		}
		c.username = strings.TrimSpace(name)
		return nil
	}
}

// WithVersion sets the client version string sent in the handshake.
func WithVersion(v string) Cfg {
	return func(c *Client) error {
		c.version = v
		return nil
	}
}

// WithReconnect configures the auto-reconnect policy.
func WithReconnect(enabled bool, maxAttempts int, delay time.Duration) Cfg {
	return func(c *Client) error {
		if maxAttempts < 0 {
			return errors.Errorf("max attempts must not be negative, got %d", maxAttempts)
		}
		c.autoReconnect = enabled
		c.maxReconnects = maxAttempts
		c.reconnectDelay = delay
		return nil
	}
}

// WithSink sets the event sink.
func WithSink(sink EventSink) Cfg {
	return func(c *Client) error {
		c.sink = sink
		return nil
	}
}

// WithInterop attaches a bridge transport for plugin traffic.
func WithInterop(t interop.Transport) Cfg {
	return func(c *Client) error {
		c.bridge = t
		return nil
	}
}

// FromConfig applies a loaded client configuration.
func FromConfig(cfg config.Client) Cfg {
	return func(c *Client) error {
		c.addr = cfg.Server
		c.username = cfg.Username
		c.version = cfg.Version
		c.autoReconnect = cfg.AutoReconnect
		c.maxReconnects = cfg.MaxReconnectAttempts
		c.reconnectDelay = cfg.ReconnectDelay
		return nil
	}
}

// NewClient creates a new Client with the given configuration.
func NewClient(cfgs ...Cfg) (*Client, error) {
	client := &Client{
		version:        "dev",
		autoReconnect:  true,
		maxReconnects:  3,
		reconnectDelay: 4 * time.Second,
		sink:           NopSink{},
	}
	for _, cfg := range cfgs {
		if err := cfg(client); err != nil {
			return nil, errors.Wrap(err, "apply Client cfg failed")
		}
	}
	if client.addr == "" {
		return nil, errors.New("server address is required")
	}
	if client.username == "" {
		return nil, errors.New("username is required")
	}
	return client, nil
}

// State returns the current engine state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Settings returns the most recent server settings broadcast.
func (c *Client) Settings() protocol.ServerSettingsPayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

func (c *Client) setState(state State, detail string) {
	c.mu.Lock()
	if c.state == state {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.mu.Unlock()
	c.sink.StateChanged(state, detail)
}

// Run drives connect/serve/reconnect cycles until the session ends
// intentionally, the attempt budget runs out, or ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	if c.bridge != nil {
		defer func() { _ = c.bridge.Close() }()
	}
	attempts := 0
	for {
		err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		switch {
		case err == nil || errors.Is(err, errQuit):
			c.setState(StateDisconnected, "closed")
			return nil
		case errors.Is(err, ErrVersionMismatch), errors.Is(err, ErrHandshakeRefused), errors.Is(err, errServerClosed):
			c.setState(StateDisconnected, err.Error())
			return err
		}

		// Unintentional: socket fault, dial failure, or server timeout.
		if c.connectedLastCycle() {
			attempts = 0
		}
		if !c.autoReconnect || attempts >= c.maxReconnects {
			c.setState(StateDisconnected, "gave up")
			return errors.Wrap(ErrUnableToConnect, err.Error())
		}
		attempts++
		logger.WithFields(logrus.Fields{
			"attempt": attempts,
			"max":     c.maxReconnects,
			"delay":   c.reconnectDelay.String(),
		}).Warn("connection lost, reconnecting")
		c.setState(StateReconnecting, err.Error())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnectDelay):
		}
	}
}

func (c *Client) connectedLastCycle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handshaken
}

// Quit ends the session intentionally.
func (c *Client) Quit() {
	c.mu.Lock()
	quit := c.quit
	c.mu.Unlock()
	if quit != nil {
		quit()
	}
}

// runOnce executes one full connection cycle: dial, handshake, serve, tear
// down. Connection-scoped fields are re-initialized at the top so reconnects
// never inherit stale state.
func (c *Client) runOnce(ctx context.Context) error {
	runID := uuid.New()
	entry := logger.WithField("run_id", runID.String())

	c.mu.Lock()
	c.handshaken = false
	c.clientID = -1
	c.udpUp = false
	c.outbound = make(chan []byte, outboundDepth)
	c.lastSend = time.Time{}
	c.mu.Unlock()

	c.setState(StateConnecting, c.addr)
	addr := withDefaultPort(c.addr)
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "connect to %s failed", addr)
	}

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// UDP is best-effort: without it the session is TCP-only.
	var udp *net.UDPConn
	if udpAddr, err := net.ResolveUDPAddr("udp", addr); err == nil {
		udp, err = net.DialUDP("udp", nil, udpAddr)
		if err != nil {
			entry.WithError(err).Warn("udp unavailable, continuing tcp-only")
			udp = nil
		}
	}

	c.mu.Lock()
	c.conn = conn
	c.udp = udp
	c.quit = cancel
	c.mu.Unlock()

	// Teardown order matters: cancel stops the loops, closing the sockets
	// unblocks reads in flight, and only then is the wait safe.
	var wg sync.WaitGroup
	defer func() {
		cancel()
		_ = conn.Close()
		if udp != nil {
			_ = udp.Close()
		}
		wg.Wait()
		c.mu.Lock()
		c.conn = nil
		c.udp = nil
		c.quit = nil
		c.mu.Unlock()
	}()

	inbound := make(chan protocol.Packet, inboundDepth)
	pumpErr := make(chan error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.tcpPump(sessCtx, conn, inbound, pumpErr)
	}()
	if udp != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.udpPump(sessCtx, udp, inbound)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writePump(sessCtx, conn, pumpErr)
	}()

	c.setState(StateHandshaking, addr)
	hs := protocol.ClientHandshakePayload{Username: c.username, Version: c.version}
	c.enqueue(protocol.EncodeClient(protocol.ClientHandshake, hs.Encode()))

	err = c.serve(sessCtx, entry, inbound, pumpErr)
	switch {
	case errors.Is(err, errQuit):
		c.setState(StateDisconnecting, "quit")
		c.enqueueDirect(conn, protocol.EncodeClient(protocol.ClientConnectionEnd, protocol.AppendString(nil, "Client quit")))
	case errors.Is(err, errTimedOut):
		c.setState(StateTimedOut, "server reported timeout")
	}
	if c.udpWasUp() {
		c.sink.UDPStatus(false)
	}
	return err
}

func (c *Client) udpWasUp() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	up := c.udpUp
	c.udpUp = false
	return up
}

// serve is the engine loop: it drains the inbound queue and runs the
// periodic work, so all message handling happens on this one goroutine.
func (c *Client) serve(ctx context.Context, entry logrus.FieldLogger, inbound <-chan protocol.Packet, pumpErr <-chan error) error {
	live := newUDPLiveness(udpAckWindow)
	ticker := time.NewTicker(engineTick)
	defer ticker.Stop()
	var lastProbe time.Time

	for {
		select {
		case <-ctx.Done():
			return errQuit

		case err := <-pumpErr:
			return errors.Wrap(err, "transport failed")

		case pkt := <-inbound:
			done, err := c.handleMessage(entry, pkt, live)
			if err != nil || done {
				return err
			}

		case now := <-ticker.C:
			c.keepalive(now)
			lastProbe = c.probe(now, lastProbe, live)
			if live.Check(now) {
				c.setUDPUp(false)
				c.sink.UDPStatus(false)
				entry.Warn("udp channel down")
			}
			if err := c.pollBridge(); err != nil {
				entry.WithError(err).Warn("bridge poll failed")
			}
		}
	}
}

// handleMessage applies one server message to the engine state. A true
// result means the session is over.
func (c *Client) handleMessage(entry logrus.FieldLogger, pkt protocol.Packet, live *udpLiveness) (bool, error) {
	switch protocol.ServerTagOf(pkt.ID) {
	case protocol.ServerHandshake:
		var hs protocol.ServerHandshakePayload
		if err := hs.Decode(pkt.Payload); err != nil {
			return true, errors.Wrap(err, "decode handshake failed")
		}
		if hs.ProtocolVersion != protocol.Version {
			c.sink.Chat("Server protocol version " + itoa(hs.ProtocolVersion) + " does not match client version " + itoa(protocol.Version))
			return true, errors.Wrapf(ErrVersionMismatch, "server %d, client %d", hs.ProtocolVersion, protocol.Version)
		}
		c.mu.Lock()
		c.clientID = hs.ClientID
		c.handshaken = true
		c.mu.Unlock()
		c.setState(StateConnected, "server "+hs.ServerVersion)
		entry.WithFields(logrus.Fields{
			"client_id":      hs.ClientID,
			"server_version": hs.ServerVersion,
		}).Info("handshake complete")
		return false, nil

	case protocol.ServerHandshakeRefusal:
		reason, _, _ := protocol.ReadString(pkt.Payload)
		c.sink.Chat("Server refused connection: " + reason)
		return true, errors.Wrap(ErrHandshakeRefused, reason)

	case protocol.ServerServerMessage, protocol.ServerTextMessage:
		text, _, err := protocol.ReadString(pkt.Payload)
		if err == nil {
			c.sink.Chat(text)
		}
		return false, nil

	case protocol.ServerPluginUpdate:
		if c.bridge != nil {
			if err := c.bridge.Send(pkt.ID, pkt.Payload); err != nil {
				entry.WithError(err).Warn("bridge send failed")
			}
		}
		return false, nil

	case protocol.ServerServerSettings:
		var settings protocol.ServerSettingsPayload
		if err := settings.Decode(pkt.Payload); err != nil {
			entry.WithFields(log.ServerPacketToFields(pkt)).Debug("dropping malformed settings")
			return false, nil
		}
		c.mu.Lock()
		c.settings = settings
		c.mu.Unlock()
		return false, nil

	case protocol.ServerScreenshotShare:
		var shot protocol.ScreenshotPayload
		if err := shot.Decode(pkt.Payload); err == nil {
			c.sink.Screenshot(shot)
		}
		return false, nil

	case protocol.ServerCraftFile:
		sender, rest, err := protocol.ReadString(pkt.Payload)
		if err != nil {
			return false, nil
		}
		var f craft.File
		if err := f.Decode(rest); err != nil {
			return false, nil
		}
		c.sink.CraftFile(sender, f)
		return false, nil

	case protocol.ServerUDPAcknowledge:
		if live.Ack(time.Now()) {
			c.setUDPUp(true)
			c.sink.UDPStatus(true)
		}
		return false, nil

	case protocol.ServerKeepalive:
		return false, nil

	case protocol.ServerPingReply:
		c.mu.Lock()
		sent := c.pingSent
		c.mu.Unlock()
		if !sent.IsZero() {
			c.sink.Chat("Ping reply: " + time.Since(sent).Round(time.Millisecond).String())
		}
		return false, nil

	case protocol.ServerConnectionEnd:
		reason, _, _ := protocol.ReadString(pkt.Payload)
		c.sink.Chat("Connection closed by server: " + reason)
		if strings.Contains(strings.ToLower(reason), "timeout") {
			return true, errors.Wrap(errTimedOut, reason)
		}
		return true, errors.Wrap(errServerClosed, reason)

	default:
		entry.WithFields(log.ServerPacketToFields(pkt)).Debug("ignoring unknown message")
		return false, nil
	}
}

func (c *Client) setUDPUp(up bool) {
	c.mu.Lock()
	c.udpUp = up
	c.mu.Unlock()
}

// keepalive sends a TCP keepalive once the send side has idled too long.
func (c *Client) keepalive(now time.Time) {
	c.mu.Lock()
	idle := c.lastSend.IsZero() || now.Sub(c.lastSend) > keepaliveDelay
	handshaken := c.handshaken
	c.mu.Unlock()
	if handshaken && idle {
		c.enqueue(protocol.EncodeClient(protocol.ClientKeepalive, nil))
	}
}

// probe sends a UDP liveness probe on its own, shorter idle schedule.
func (c *Client) probe(now time.Time, lastProbe time.Time, live *udpLiveness) time.Time {
	c.mu.Lock()
	udp := c.udp
	clientID := c.clientID
	handshaken := c.handshaken
	c.mu.Unlock()
	if udp == nil || !handshaken {
		return lastProbe
	}
	if !lastProbe.IsZero() && now.Sub(lastProbe) < udpProbeDelay {
		return lastProbe
	}
	if _, err := udp.Write(protocol.EncodeClientUDP(clientID, protocol.ClientUDPProbe, nil)); err != nil {
		logger.WithError(err).Debug("udp probe failed")
	}
	return now
}

// pollBridge forwards game-side plugin updates to the server.
func (c *Client) pollBridge() error {
	if c.bridge == nil {
		return nil
	}
	msgs, err := c.bridge.Poll()
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		switch protocol.ClientTagOf(msg.ID) {
		case protocol.ClientPrimaryPluginUpdate:
			c.SendStateUpdate(true, msg.Payload)
		case protocol.ClientSecondaryPluginUpdate:
			c.SendStateUpdate(false, msg.Payload)
		default:
			// Anything else is game-side chatter the relay has no use for.
		}
	}
	return nil
}

// tcpPump owns the TCP read side, feeding the incremental decoder and
// queueing complete messages for the engine loop.
func (c *Client) tcpPump(ctx context.Context, conn net.Conn, inbound chan<- protocol.Packet, pumpErr chan<- error) {
	dec, err := protocol.NewDecoder()
	if err != nil {
		pumpErr <- err
		return
	}
	buf := make([]byte, 8<<10)
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
			if derr := dec.Err(); derr != nil {
				select {
				case pumpErr <- derr:
				case <-ctx.Done():
				}
				return
			}
		}
		if err != nil {
			if ctx.Err() == nil {
				select {
				case pumpErr <- err:
				case <-ctx.Done():
				}
			}
			return
		}
	}
}

// udpPump reads server datagrams (acks, piggybacked updates). UDP faults are
// not session faults: the pump just ends and the channel ages out.
func (c *Client) udpPump(ctx context.Context, udp *net.UDPConn, inbound chan<- protocol.Packet) {
	buf := make([]byte, 64<<10)
	dec, err := protocol.NewDecoder()
	if err != nil {
		return
	}
	for {
		n, err := udp.Read(buf)
		if err != nil {
			return
		}
		// Each datagram is a self-contained frame; a fresh decoder state is
		// guaranteed because Feed is only given whole datagrams.
		for _, pkt := range dec.Feed(buf[:n]) {
			select {
			case inbound <- pkt:
			case <-ctx.Done():
				return
			}
		}
		if dec.Err() != nil {
			return
		}
	}
}

// writePump drains the outbound queue onto the TCP socket, batching bursts
// into single writes.
func (c *Client) writePump(ctx context.Context, conn net.Conn, pumpErr chan<- error) {
	c.mu.Lock()
	outbound := c.outbound
	c.mu.Unlock()
	for {
		select {
		case <-ctx.Done():
			// Flush whatever is already queued so a final CONNECTION_END
			// stands a chance of leaving the socket.
			for {
				select {
				case frame := <-outbound:
					_ = c.write(conn, frame)
				default:
					return
				}
			}
		case frame := <-outbound:
			batch := frame
		drain:
			for {
				select {
				case more := <-outbound:
					batch = append(batch, more...)
				default:
					break drain
				}
			}
			if err := c.write(conn, batch); err != nil {
				if ctx.Err() == nil {
					select {
					case pumpErr <- err:
					case <-ctx.Done():
					}
				}
				return
			}
		}
	}
}

func (c *Client) write(conn net.Conn, frame []byte) error {
	_, err := conn.Write(frame)
	if err == nil {
		c.mu.Lock()
		c.lastSend = time.Now()
		c.mu.Unlock()
	}
	return err
}

// enqueue queues a frame for the TCP writer; full-queue frames are dropped.
func (c *Client) enqueue(frame []byte) bool {
	c.mu.Lock()
	outbound := c.outbound
	c.mu.Unlock()
	if outbound == nil {
		return false
	}
	select {
	case outbound <- frame:
		return true
	default:
		return false
	}
}

// enqueueDirect writes a frame straight to the socket with a short deadline,
// for teardown paths where the writer may already be gone.
func (c *Client) enqueueDirect(conn net.Conn, frame []byte) {
	_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	_, _ = conn.Write(frame)
}

func withDefaultPort(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return net.JoinHostPort(addr, itoa(int32(config.DefaultPort)))
	}
	return addr
}

func itoa(v int32) string {
	return strconv.FormatInt(int64(v), 10)
}
