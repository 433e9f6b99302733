package apps

import (
	"context"
	"os"

	"github.com/pkg/errors"

	"livefeed/internal/pkg/config"
	"livefeed/internal/pkg/server"
	"livefeed/internal/pkg/validate"
)

// ServerAppCfg configures a ServerApp.
type ServerAppCfg interface {
	ApplyServerApp(*ServerApp) error
}

// ServerApp hosts the relay server with an operator console on stdin.
type ServerApp struct {
	Config config.Server `validate:"required"`
}

// NewServerApp creates a new ServerApp.
func NewServerApp(cfgs ...ServerAppCfg) (*ServerApp, error) {
	app := &ServerApp{}
	for _, cfg := range cfgs {
		if err := cfg.ApplyServerApp(app); err != nil {
			return nil, errors.Wrap(err, "apply ServerApp cfg failed")
		}
	}
	if err := validate.Validate().Struct(app); err != nil {
		return nil, errors.Wrap(err, "validate ServerApp failed")
	}
	return app, nil
}

func (app *ServerApp) Run(ctx context.Context, args []string) error {
	srv, err := server.NewServer(server.WithConfig(app.Config))
	if err != nil {
		return errors.Wrap(err, "create server failed")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go srv.RunConsole(ctx, os.Stdin)

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrap(err, "run server failed")
	}
	return nil
}
