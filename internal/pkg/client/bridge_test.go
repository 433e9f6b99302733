package client

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"livefeed/internal/pkg/interop"
	"livefeed/internal/pkg/protocol"
)

// mockTransport is a testify double for the interop bridge.
type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) Send(id int32, payload []byte) error {
	args := m.Called(id, payload)
	return args.Error(0)
}

func (m *mockTransport) Poll() ([]interop.Message, error) {
	args := m.Called()
	msgs, _ := args.Get(0).([]interop.Message)
	return msgs, args.Error(1)
}

func (m *mockTransport) Close() error {
	args := m.Called()
	return args.Error(0)
}

func TestPluginUpdateForwardedToBridge(t *testing.T) {
	bridge := &mockTransport{}
	c, err := NewClient(
		WithServerAddr("localhost"),
		WithUsername("tester"),
		WithInterop(bridge),
	)
	require.NoError(t, err)

	payload := []byte{1, 2, 3}
	bridge.On("Send", int32(protocol.ServerPluginUpdate), payload).Return(nil).Once()

	live := newUDPLiveness(udpAckWindow)
	done, handleErr := c.handleMessage(logger, protocol.Packet{
		ID:      int32(protocol.ServerPluginUpdate),
		Payload: payload,
	}, live)
	require.NoError(t, handleErr)
	require.False(t, done)
	bridge.AssertExpectations(t)
}

func TestBridgePollRelaysStateUpdates(t *testing.T) {
	bridge := &mockTransport{}
	c, err := NewClient(
		WithServerAddr("localhost"),
		WithUsername("tester"),
		WithInterop(bridge),
	)
	require.NoError(t, err)

	// A handshaked engine with a live queue but no UDP channel relays
	// bridge traffic over TCP.
	c.mu.Lock()
	c.handshaken = true
	c.clientID = 2
	c.outbound = make(chan []byte, 4)
	outbound := c.outbound
	c.mu.Unlock()

	bridge.On("Poll").Return([]interop.Message{
		{ID: int32(protocol.ClientPrimaryPluginUpdate), Payload: []byte{7}},
		{ID: int32(protocol.ClientSecondaryPluginUpdate), Payload: []byte{8}},
		{ID: int32(protocol.ClientTextMessage), Payload: []byte{9}}, // not update traffic, dropped
	}, nil).Once()

	require.NoError(t, c.pollBridge())
	bridge.AssertExpectations(t)

	require.Len(t, outbound, 2)
	first := <-outbound
	require.Equal(t, protocol.EncodeClient(protocol.ClientPrimaryPluginUpdate, []byte{7}), first)
	second := <-outbound
	require.Equal(t, protocol.EncodeClient(protocol.ClientSecondaryPluginUpdate, []byte{8}), second)
}

func TestBridgePollErrorSurfaces(t *testing.T) {
	bridge := &mockTransport{}
	c, err := NewClient(
		WithServerAddr("localhost"),
		WithUsername("tester"),
		WithInterop(bridge),
	)
	require.NoError(t, err)

	bridge.On("Poll").Return(nil, errors.New("poll failed")).Once()
	require.Error(t, c.pollBridge())
	bridge.AssertExpectations(t)
}
