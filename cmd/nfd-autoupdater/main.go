// Package main is the CLI entry point for nfd-autoupdater.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/hr-backoffice/nfd-autoupdater/internal/app"
	"github.com/hr-backoffice/nfd-autoupdater/internal/backend"
	"github.com/hr-backoffice/nfd-autoupdater/internal/config"
	"github.com/hr-backoffice/nfd-autoupdater/internal/nfdstatus"
)

// Build-time variables set via -ldflags.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	cmd := &cli.Command{
		Name:    "nfd-autoupdater",
		Usage:   "Keeps NFD record statuses fresh by triggering the backend's expired-record update",
		Version: version,
		Commands: []*cli.Command{
			runCommand(),
			updateCommand(os.Stdout),
			checkCommand(os.Stdout),
			versionCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to YAML or TOML configuration file",
			Sources: cli.EnvVars("NFD_CONFIG"),
		},
		&cli.StringFlag{
			Name:  "backend-url",
			Usage: "Base URL of the HR backend API",
		},
		&cli.StringFlag{
			Name:  "backend-token",
			Usage: "Bearer token sent to the HR backend",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level (trace, debug, info, warn, error, fatal, panic)",
		},
	}
}

// loadConfig resolves configuration from file, environment and flags, in
// increasing order of precedence.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	var cfg *config.Config
	if path := cmd.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
		cfg = loaded
	} else {
		cfg = &config.Config{}
		config.ApplyDefaults(cfg)
		config.ApplyEnvOverrides(cfg)
	}

	if v := cmd.String("backend-url"); v != "" {
		cfg.Backend.URL = v
	}
	if v := cmd.String("backend-token"); v != "" {
		cfg.Backend.Token = v
	}
	if v := cmd.String("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if cmd.IsSet("listen-address") {
		cfg.Server.ListenAddress = cmd.String("listen-address")
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig, out io.Writer) *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(out)
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger.WithField("app", "nfd-autoupdater")
}

func runCommand() *cli.Command {
	flags := append(commonFlags(), &cli.StringFlag{
		Name:    "listen-address",
		Usage:   "HTTP listen address (e.g. :8080)",
		Sources: cli.EnvVars("NFD_SERVER_LISTEN_ADDRESS"),
	})

	return &cli.Command{
		Name:  "run",
		Usage: "Start the HTTP service and background refresh",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := newLogger(cfg.Log, os.Stderr)

			log.WithFields(logrus.Fields{
				"version": version,
				"commit":  commit,
			}).Info("starting nfd-autoupdater")

			a, err := app.New(cfg, log)
			if err != nil {
				return fmt.Errorf("initializing application: %w", err)
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			return a.Run(ctx)
		},
	}
}

// newCoordinator builds a standalone coordinator for one-shot commands.
func newCoordinator(cfg *config.Config, log *logrus.Entry) (*nfdstatus.Coordinator, error) {
	client, err := backend.New(cfg.Backend, log)
	if err != nil {
		return nil, err
	}
	return nfdstatus.New(client, log, nfdstatus.WithTTL(cfg.AutoUpdate.TTL())), nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func updateCommand(stdout io.Writer) *cli.Command {
	flags := append(commonFlags(), &cli.BoolFlag{
		Name:  "force",
		Usage: "Ignore the freshness window (still one run at a time)",
	})

	return &cli.Command{
		Name:  "update",
		Usage: "Trigger one expired-record update and print the outcome",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := newLogger(cfg.Log, os.Stderr)

			coord, err := newCoordinator(cfg, log)
			if err != nil {
				return err
			}

			var out nfdstatus.Outcome
			if cmd.Bool("force") {
				out = coord.ForceUpdate(ctx)
			} else {
				out = coord.AutoUpdate(ctx)
			}
			if err := printJSON(stdout, out); err != nil {
				return err
			}
			if out.Failed {
				return fmt.Errorf("update failed: %s", out.Error)
			}
			return nil
		},
	}
}

func checkCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Preview how many records are expired without modifying anything",
		Flags: commonFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := newLogger(cfg.Log, os.Stderr)

			coord, err := newCoordinator(cfg, log)
			if err != nil {
				return err
			}

			preview, err := coord.CheckExpired(ctx)
			if err != nil {
				return err
			}
			return printJSON(stdout, preview)
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(_ context.Context, _ *cli.Command) error {
			fmt.Printf("nfd-autoupdater %s (commit: %s)\n", version, commit)
			return nil
		},
	}
}
