package client

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"livefeed/internal/pkg/craft"
	"livefeed/internal/pkg/protocol"
	"livefeed/internal/pkg/session"
)

// Chat sends a chat line to the server.
func (c *Client) Chat(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return c.send(protocol.EncodeClient(protocol.ClientTextMessage, protocol.AppendString(nil, text)))
}

// Watch subscribes to another player's screenshots; an empty name clears
// the subscription.
func (c *Client) Watch(player string) error {
	return c.send(protocol.EncodeClient(protocol.ClientScreenWatchPlayer, protocol.AppendString(nil, player)))
}

// ShareScreenshot publishes a screenshot to the server.
func (c *Client) ShareScreenshot(description string, image []byte) error {
	payload := protocol.AppendString(nil, description)
	payload = protocol.AppendBytes(payload, image)
	return c.send(protocol.EncodeClient(protocol.ClientScreenshotShare, payload))
}

// ShareCraft publishes a craft file. The size cap is enforced locally so an
// oversized file never costs a round trip.
func (c *Client) ShareCraft(f craft.File) error {
	payload, err := f.Encode()
	if err != nil {
		return errors.Wrapf(err, "encode craft %q failed", f.Name)
	}
	return c.send(protocol.EncodeClient(protocol.ClientShareCraftFile, payload))
}

// Ping measures the server round trip; the reply surfaces on the sink.
func (c *Client) Ping() error {
	c.mu.Lock()
	c.pingSent = time.Now()
	c.mu.Unlock()
	return c.send(protocol.EncodeClient(protocol.ClientPing, nil))
}

// SetActivity reports the player's activity level. Inactive is implicit on
// the server side, so only the raised levels go over the wire.
func (c *Client) SetActivity(level session.ActivityLevel) error {
	switch level {
	case session.ActivityInGame:
		return c.send(protocol.EncodeClient(protocol.ClientActivityUpdateInGame, nil))
	case session.ActivityInFlight:
		return c.send(protocol.EncodeClient(protocol.ClientActivityUpdateInFlight, nil))
	default:
		return nil
	}
}

// SendStateUpdate relays a plugin state update, preferring the UDP channel
// while it is acknowledged and falling back to TCP otherwise.
func (c *Client) SendStateUpdate(primary bool, payload []byte) {
	tag := protocol.ClientSecondaryPluginUpdate
	if primary {
		tag = protocol.ClientPrimaryPluginUpdate
	}
	c.mu.Lock()
	udp := c.udp
	udpUp := c.udpUp
	clientID := c.clientID
	c.mu.Unlock()
	if udp != nil && udpUp {
		if _, err := udp.Write(protocol.EncodeClientUDP(clientID, tag, payload)); err == nil {
			return
		}
		// A failed datagram write falls through to TCP; liveness will age
		// the channel out if the fault persists.
	}
	c.enqueue(protocol.EncodeClient(tag, payload))
}

func (c *Client) send(frame []byte) error {
	c.mu.Lock()
	connected := c.handshaken
	c.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}
	if !c.enqueue(frame) {
		return errors.New("send queue full")
	}
	return nil
}
