package apps

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"livefeed/internal/pkg/client"
	"livefeed/internal/pkg/config"
	"livefeed/internal/pkg/craft"
	"livefeed/internal/pkg/interop"
	"livefeed/internal/pkg/validate"
)

// ClientAppCfg configures a ClientApp.
type ClientAppCfg interface {
	ApplyClientApp(*ClientApp) error
}

// ClientApp hosts the relay client with a chat console on stdin.
type ClientApp struct {
	Config config.Client `validate:"required"`
}

// NewClientApp creates a new ClientApp.
func NewClientApp(cfgs ...ClientAppCfg) (*ClientApp, error) {
	app := &ClientApp{}
	for _, cfg := range cfgs {
		if err := cfg.ApplyClientApp(app); err != nil {
			return nil, errors.Wrap(err, "apply ClientApp cfg failed")
		}
	}
	if err := validate.Validate().Struct(app); err != nil {
		return nil, errors.Wrap(err, "validate ClientApp failed")
	}
	return app, nil
}

func (app *ClientApp) Run(ctx context.Context, args []string) error {
	sink := client.NewConsoleSink(app.Config.SaveTitle)

	opts := []client.Cfg{
		client.FromConfig(app.Config),
		client.WithSink(sink),
	}
	if app.Config.BridgeOutPath != "" && app.Config.BridgeInPath != "" {
		bridge := interop.NewFileTransport(app.Config.BridgeOutPath, app.Config.BridgeInPath)
		opts = append(opts, client.WithInterop(bridge))
	}

	c, err := client.NewClient(opts...)
	if err != nil {
		return errors.Wrap(err, "create client failed")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go app.console(ctx, c, os.Stdin)

	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrap(err, "run client failed")
	}
	return nil
}

// console reads chat and commands from r until ctx ends or r closes.
func (app *ClientApp) console(ctx context.Context, c *client.Client, r io.Reader) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
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
			app.handleLine(c, line)
		}
	}
}

func (app *ClientApp) handleLine(c *client.Client, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if !strings.HasPrefix(line, "/") {
		if err := c.Chat(line); err != nil {
			logger.WithError(err).Warn("chat failed")
		}
		return
	}

	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	var err error
	switch cmd {
	case "/quit":
		c.Quit()
	case "/ping":
		err = c.Ping()
	case "/watch":
		err = c.Watch(rest)
	case "/craft":
		err = app.shareCraft(c, rest)
	default:
		logger.WithField("command", cmd).Warn("unknown command")
	}
	if err != nil {
		logger.WithError(err).Warn("command failed")
	}
}

// shareCraft loads a craft file from disk and publishes it. The argument is
// "<vab|sph|sub> <path>".
func (app *ClientApp) shareCraft(c *client.Client, arg string) error {
	kind, path, ok := strings.Cut(arg, " ")
	if !ok {
		return errors.New("usage: /craft <vab|sph|sub> <path>")
	}
	var typ craft.Type
	switch strings.ToLower(kind) {
	case "vab":
		typ = craft.TypeVAB
	case "sph":
		typ = craft.TypeSPH
	case "sub":
		typ = craft.TypeSubassembly
	default:
		return errors.Errorf("unknown craft type %q", kind)
	}
	path = strings.TrimSpace(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read craft %s failed", path)
	}
	name := strings.TrimSuffix(strings.TrimSuffix(path[strings.LastIndexByte(path, '/')+1:], ".craft"), ".CRAFT")
	return c.ShareCraft(craft.File{Type: typ, Name: craft.FilterName(name), Data: data})
}
