// Package main is the livefeed application entrypoint.
package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"livefeed/internal/app/apps"
	"livefeed/internal/app/cfg"
	"livefeed/internal/pkg/log"
)

// CLI command definitions.
var (
	logger logrus.FieldLogger = logrus.StandardLogger()

	logLevel   string
	configPath string
	addr       string
	username   string

	rootCmd = &cobra.Command{
		Use:   "livefeed",
		Short: "Shared live-state relay for multiplayer sessions.",
		RunE: func(*cobra.Command, []string) error {
			return nil
		},
	}

	clientCmd = &cobra.Command{
		Use:   "client [username]",
		Short: "Starts a livefeed client.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCmd,
	}

	serverCmd = &cobra.Command{
		Use:   "server",
		Short: "Starts a livefeed server.",
		RunE:  runCmd,
	}
)

func newApp(cmd *cobra.Command, args []string) (apps.App, error) {
	switch cmd.Name() {
	case "client":
		name := username
		if len(args) > 0 {
			name = args[0]
		}
		app, err := apps.NewClientApp(
			cfg.NewFileCfg(configPath),
			cfg.NewAddrCfg(addr),
			cfg.NewUsernameCfg(name),
		)
		if err != nil {
			return nil, errors.Wrap(err, "new client app failed")
		}
		return app, nil
	case "server":
		app, err := apps.NewServerApp(
			cfg.NewFileCfg(configPath),
			cfg.NewAddrCfg(addr),
		)
		if err != nil {
			return nil, errors.Wrap(err, "new server app failed")
		}
		return app, nil
	default:
		return nil, fmt.Errorf("unknown command: %s", cmd.Name())
	}
}

func runCmd(cmd *cobra.Command, args []string) error {
	log.SetLogger(logLevel)
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	app, err := newApp(cmd, args)
	if err != nil {
		return errors.Wrapf(err, "new %s app failed", cmd.Name())
	}
	return errors.Wrap(app.Run(ctx, args), "run app failed")
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "", "override the listen or server address")
	clientCmd.Flags().StringVar(&username, "username", "", "username to claim on the server")

	rootCmd.AddCommand(
		clientCmd,
		serverCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Fatal(errors.Wrap(err, "execute root command failed"))
	}
}
