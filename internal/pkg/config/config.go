// Package config loads server and client configuration with viper: defaults
// first, then an optional config file, then LF_-prefixed environment
// overrides.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// DefaultPort is the port assumed when an address omits one.
const DefaultPort = 2075

// Server is the server runtime configuration.
type Server struct {
	Addr        string
	MaxClients  int
	Version     string
	JoinMessage string

	ClientTimeout time.Duration

	ChatFloodLimit        int
	ChatFloodWindow       time.Duration
	ChatThrottle          time.Duration
	ScreenshotFloodLimit  int
	ScreenshotFloodWindow time.Duration
	ScreenshotThrottle    time.Duration

	ScreenshotMaxBytes  int
	ScreenshotBacklog   int
	ScreenshotInterval  time.Duration
	ScreenshotMaxHeight int
}

// Client is the client runtime configuration.
type Client struct {
	Username string
	Server   string
	Version  string

	AutoReconnect        bool
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration

	SaveTitle     string
	BridgeOutPath string
	BridgeInPath  string
}

func newViper(prefix string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("livefeed")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadServer reads the server configuration. The config file is optional;
// defaults plus environment are enough to run.
func LoadServer(path string) (Server, error) {
	v := newViper("LF")

	v.SetDefault("server.addr", ":2075")
	v.SetDefault("server.max_clients", 32)
	v.SetDefault("server.version", "0.7.0")
	v.SetDefault("server.join_message", "")
	v.SetDefault("server.client_timeout", "20s")

	v.SetDefault("flood.chat_limit", 10)
	v.SetDefault("flood.chat_window", "5s")
	v.SetDefault("flood.chat_throttle", "60s")
	v.SetDefault("flood.screenshot_limit", 3)
	v.SetDefault("flood.screenshot_window", "20s")
	v.SetDefault("flood.screenshot_throttle", "60s")

	v.SetDefault("screenshot.max_bytes", 512<<10)
	v.SetDefault("screenshot.backlog", 8)
	v.SetDefault("screenshot.interval", "3s")
	v.SetDefault("screenshot.max_height", 600)

	if err := readIn(v, path); err != nil {
		return Server{}, err
	}

	cfg := Server{
		Addr:        v.GetString("server.addr"),
		MaxClients:  v.GetInt("server.max_clients"),
		Version:     strings.TrimSpace(v.GetString("server.version")),
		JoinMessage: strings.TrimSpace(v.GetString("server.join_message")),

		ClientTimeout: v.GetDuration("server.client_timeout"),

		ChatFloodLimit:        v.GetInt("flood.chat_limit"),
		ChatFloodWindow:       v.GetDuration("flood.chat_window"),
		ChatThrottle:          v.GetDuration("flood.chat_throttle"),
		ScreenshotFloodLimit:  v.GetInt("flood.screenshot_limit"),
		ScreenshotFloodWindow: v.GetDuration("flood.screenshot_window"),
		ScreenshotThrottle:    v.GetDuration("flood.screenshot_throttle"),

		ScreenshotMaxBytes:  v.GetInt("screenshot.max_bytes"),
		ScreenshotBacklog:   v.GetInt("screenshot.backlog"),
		ScreenshotInterval:  v.GetDuration("screenshot.interval"),
		ScreenshotMaxHeight: v.GetInt("screenshot.max_height"),
	}

	if cfg.MaxClients <= 0 {
		return Server{}, errors.Errorf("server.max_clients must be positive, got %d", cfg.MaxClients)
	}
	if cfg.ClientTimeout <= 0 {
		return Server{}, errors.New("server.client_timeout must be positive")
	}
	if cfg.ScreenshotMaxBytes <= 0 {
		return Server{}, errors.New("screenshot.max_bytes must be positive")
	}
	if cfg.ScreenshotBacklog <= 0 {
		return Server{}, errors.New("screenshot.backlog must be positive")
	}
	return cfg, nil
}

// LoadClient reads the client configuration.
func LoadClient(path string) (Client, error) {
	v := newViper("LF")

	v.SetDefault("client.username", "")
	v.SetDefault("client.server", "localhost")
	v.SetDefault("client.version", "0.7.0")
	v.SetDefault("client.auto_reconnect", true)
	v.SetDefault("client.max_reconnect_attempts", 3)
	v.SetDefault("client.reconnect_delay", "4s")
	v.SetDefault("client.save_title", "default")
	v.SetDefault("bridge.out_path", "")
	v.SetDefault("bridge.in_path", "")

	if err := readIn(v, path); err != nil {
		return Client{}, err
	}

	cfg := Client{
		Username:             strings.TrimSpace(v.GetString("client.username")),
		Server:               strings.TrimSpace(v.GetString("client.server")),
		Version:              strings.TrimSpace(v.GetString("client.version")),
		AutoReconnect:        v.GetBool("client.auto_reconnect"),
		MaxReconnectAttempts: v.GetInt("client.max_reconnect_attempts"),
		ReconnectDelay:       v.GetDuration("client.reconnect_delay"),
		SaveTitle:            v.GetString("client.save_title"),
		BridgeOutPath:        v.GetString("bridge.out_path"),
		BridgeInPath:         v.GetString("bridge.in_path"),
	}

	if cfg.Server == "" {
		return Client{}, errors.New("client.server must not be empty")
	}
	if cfg.MaxReconnectAttempts < 0 {
		return Client{}, errors.Errorf("client.max_reconnect_attempts must not be negative, got %d", cfg.MaxReconnectAttempts)
	}
	return cfg, nil
}

func readIn(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		return errors.Wrapf(v.ReadInConfig(), "read config %s failed", path)
	}
	// Config file is optional; env-only is fine.
	_ = v.ReadInConfig()
	return nil
}
