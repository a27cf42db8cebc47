package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"ollama-bridge/internal/config"
	"ollama-bridge/internal/logger"
	"ollama-bridge/internal/ollama"
	"ollama-bridge/internal/server"
)

const serveUsage = `Usage:
  ollama-bridge serve [--config <path>] [--env-file <path>] [--port <port>]

Flags:
  --config   string   Path to YAML configuration file (optional)
  --env-file string   Path to a dotenv file, ignored when missing (default ".env")
  --port     int      Override server port from configuration and environment`

func serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, serveUsage)
	}

	var cfgPath, envFile string
	var overridePort int
	fs.StringVar(&cfgPath, "config", "", "path to configuration file")
	fs.StringVar(&envFile, "env-file", ".env", "path to dotenv file")
	fs.IntVar(&overridePort, "port", 0, "override server port")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse serve flags: %w", err)
	}

	cfg, err := config.Load(cfgPath, envFile)
	if err != nil {
		return err
	}

	if overridePort != 0 {
		if overridePort < 0 || overridePort > 65535 {
			return fmt.Errorf("port override %d must be a valid TCP port", overridePort)
		}
		cfg.Server.Port = overridePort
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync(log)

	log.Info("configuration loaded",
		zap.String("config", cfgPath),
		zap.String("upstream", cfg.Upstream.BaseURL),
		zap.Duration("upstream_timeout", cfg.Upstream.Timeout),
	)

	client := ollama.NewClient(cfg.Upstream, log.Named("ollama"))

	srv, err := server.New(cfg, client, log.Named("http"), version)
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}
