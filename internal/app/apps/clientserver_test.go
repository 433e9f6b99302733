package apps

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"livefeed/internal/pkg/client"
	"livefeed/internal/pkg/config"
)

type testServerCfg struct {
	cfg config.Server
}

func (c testServerCfg) ApplyServerApp(app *ServerApp) error {
	app.Config = c.cfg
	return nil
}

func TestNewServerAppRequiresConfig(t *testing.T) {
	_, err := NewServerApp()
	require.Error(t, err)
}

func TestNewClientAppRequiresConfig(t *testing.T) {
	_, err := NewClientApp()
	require.Error(t, err)
}

func TestClientServerExchange(t *testing.T) {
	// Reserve a free port for the server to bind.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	srvApp, err := NewServerApp(testServerCfg{cfg: config.Server{
		Addr:          addr,
		MaxClients:    4,
		Version:       "test",
		ClientTimeout: 20 * time.Second,

		ChatFloodLimit:        10,
		ChatFloodWindow:       5 * time.Second,
		ChatThrottle:          time.Minute,
		ScreenshotFloodLimit:  3,
		ScreenshotFloodWindow: 20 * time.Second,
		ScreenshotThrottle:    time.Minute,

		ScreenshotMaxBytes: 512 << 10,
		ScreenshotBacklog:  8,
		ScreenshotInterval: 3 * time.Second,
	}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		require.NoError(t, srvApp.Run(ctx, nil))
	}()

	// Wait for the listener to come up.
	deadline := time.Now().Add(5 * time.Second)
	for {
		conn, err := net.DialTimeout("tcp", addr, time.Second)
		if err == nil {
			_ = conn.Close()
			break
		}
		require.False(t, time.Now().After(deadline), "server did not start")
		time.Sleep(10 * time.Millisecond)
	}

	connected := make(chan struct{})
	sink := &stateSink{connected: connected}
	c, err := client.NewClient(
		client.WithServerAddr(addr),
		client.WithUsername("tester"),
		client.WithSink(sink),
	)
	require.NoError(t, err)

	clientDone := make(chan error, 1)
	go func() {
		clientDone <- c.Run(ctx)
	}()

	select {
	case <-connected:
	case <-time.After(5 * time.Second):
		t.Fatal("client never reached the connected state")
	}

	c.Quit()
	select {
	case err := <-clientDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("client did not stop after quit")
	}

	cancel()
	wg.Wait()
}

type stateSink struct {
	client.NopSink
	once      sync.Once
	connected chan struct{}
}

func (s *stateSink) StateChanged(state client.State, _ string) {
	if state == client.StateConnected {
		s.once.Do(func() { close(s.connected) })
	}
}
