// Package cfg implements functionality to configure an app.
//
// The configuration objects defined here need only be implemented once,
// but can be applied to multiple types.
//
// In order to add support for a new type, the configuration
// need only implement an ApplyX method.
package cfg

import (
	"strings"

	"livefeed/internal/app/apps"
	"livefeed/internal/pkg/config"
)

// FileCfg loads app configuration from an optional config file plus the
// environment.
type FileCfg struct {
	path string
}

// NewFileCfg creates a new FileCfg for the given path. An empty path means
// defaults and environment only.
func NewFileCfg(path string) *FileCfg {
	return &FileCfg{path: path}
}

// ApplyClientApp applies the FileCfg to a ClientApp.
func (cfg FileCfg) ApplyClientApp(app *apps.ClientApp) error {
	loaded, err := config.LoadClient(cfg.path)
	if err != nil {
		return err
	}
	app.Config = loaded
	return nil
}

// ApplyServerApp applies the FileCfg to a ServerApp.
func (cfg FileCfg) ApplyServerApp(app *apps.ServerApp) error {
	loaded, err := config.LoadServer(cfg.path)
	if err != nil {
		return err
	}
	app.Config = loaded
	return nil
}

// AddrCfg overrides the listen or dial address from the command line.
type AddrCfg struct {
	addr string
}

// NewAddrCfg creates a new AddrCfg.
func NewAddrCfg(addr string) *AddrCfg {
	return &AddrCfg{addr: addr}
}

// ApplyClientApp applies the AddrCfg to a ClientApp.
func (cfg AddrCfg) ApplyClientApp(app *apps.ClientApp) error {
	if cfg.addr != "" {
		app.Config.Server = cfg.addr
	}
	return nil
}

// ApplyServerApp applies the AddrCfg to a ServerApp.
func (cfg AddrCfg) ApplyServerApp(app *apps.ServerApp) error {
	if cfg.addr != "" {
		app.Config.Addr = cfg.addr
	}
	return nil
}

// UsernameCfg overrides the client identity from the command line.
type UsernameCfg struct {
	username string
}

// NewUsernameCfg creates a new UsernameCfg.
func NewUsernameCfg(username string) *UsernameCfg {
	return &UsernameCfg{username: username}
}

// ApplyClientApp applies the UsernameCfg to a ClientApp.
func (cfg UsernameCfg) ApplyClientApp(app *apps.ClientApp) error {
	if name := strings.TrimSpace(cfg.username); name != "" {
		app.Config.Username = name
	}
	return nil
}
