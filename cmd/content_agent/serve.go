package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/content-guard/internal/metrics"
	"github.com/jonathan/content-guard/internal/server"
	"github.com/jonathan/content-guard/internal/server/ratelimit"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes generation, streaming progress, history, health and metrics endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default 8080, or PORT env var)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd, os.Getenv)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = servePort
	}

	logger := newLogger(os.Stdout, cfg.Verbose, true)

	ctx := cmd.Context()

	m := metrics.New()
	p, err := buildPipeline(ctx, cfg, logger, m, true)
	if err != nil {
		return err
	}
	defer p.Close()

	if p.store != nil {
		if err := p.store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("failed to prepare database: %w", err)
		}
	}

	var history server.HistoryStore
	if p.store != nil {
		history = p.store
	}

	srv, err := server.New(server.Config{
		Port:      cfg.Port,
		RateLimit: ratelimit.LoadConfig(os.Getenv, cfg.RateLimitRPS, cfg.RateLimitBurst),
		Logger:    logger,
		Metrics:   m,
	}, server.ControllerRunner{Controller: p.controller}, history)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start(ctx)
}
