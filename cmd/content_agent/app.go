package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/content-guard/internal/config"
	"github.com/jonathan/content-guard/internal/db"
	"github.com/jonathan/content-guard/internal/generation"
	"github.com/jonathan/content-guard/internal/llm"
	"github.com/jonathan/content-guard/internal/metrics"
	"github.com/jonathan/content-guard/internal/originality"
	"github.com/jonathan/content-guard/internal/search"
)

// Flags shared by every command.
var (
	configPath     string
	verbose        bool
	flagProvider   string
	flagModel      string
	flagBaseURL    string
	flagAPIKey     string
	flagGoogleKey  string
	flagCSEID      string
	flagDatabase   string
	flagAttempts   int
	flagThreshold  float64
	flagRetryDelay string
)

func registerGlobalFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Print debug logs")

	flags.StringVar(&flagProvider, "provider", "", "LLM provider: gemini, openai or ollama (defaults to LLM_PROVIDER env var)")
	flags.StringVar(&flagModel, "model", "", "Model name (defaults to LLM_MODEL env var)")
	flags.StringVar(&flagBaseURL, "base-url", "", "OpenAI-compatible endpoint, e.g. http://localhost:11434/v1 for Ollama")
	flags.StringVar(&flagAPIKey, "api-key", "", "LLM API key (defaults to GEMINI_API_KEY or OPENAI_API_KEY)")
	flags.StringVar(&flagGoogleKey, "google-api-key", "", "Custom Search API key (defaults to GOOGLE_API_KEY env var)")
	flags.StringVar(&flagCSEID, "cse-id", "", "Custom Search engine ID (defaults to GOOGLE_CSE_ID env var)")
	flags.StringVar(&flagDatabase, "db-url", "", "PostgreSQL connection URL (defaults to DATABASE_URL env var)")
	flags.IntVar(&flagAttempts, "max-attempts", 0, "Maximum generation attempts, 1-5 (default 5)")
	flags.Float64Var(&flagThreshold, "threshold", 0, "Highest accepted plagiarism score in percent (default 10)")
	flags.StringVar(&flagRetryDelay, "retry-delay", "", "Wait between attempts, e.g. 2s")
}

// resolveConfig builds the effective configuration. Flags override the config
// file; the environment and then the defaults fill whatever is still empty.
func resolveConfig(cmd *cobra.Command, getenv func(string) string) (config.Config, error) {
	var cfg config.Config
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to load config: %w", err)
		}
		if err := loaded.Validate(); err != nil {
			return config.Config{}, err
		}
		cfg = *loaded
	}

	// Only override if the flag was explicitly set
	flags := cmd.Flags()
	if flags.Changed("provider") {
		cfg.Provider = flagProvider
	}
	if flags.Changed("model") {
		cfg.Model = flagModel
	}
	if flags.Changed("base-url") {
		cfg.BaseURL = flagBaseURL
	}
	if flags.Changed("api-key") {
		cfg.APIKey = flagAPIKey
	}
	if flags.Changed("google-api-key") {
		cfg.GoogleAPIKey = flagGoogleKey
	}
	if flags.Changed("cse-id") {
		cfg.SearchEngineID = flagCSEID
	}
	if flags.Changed("db-url") {
		cfg.DatabaseURL = flagDatabase
	}
	if flags.Changed("max-attempts") {
		cfg.MaxAttempts = flagAttempts
	}
	if flags.Changed("threshold") {
		cfg.AcceptanceThreshold = flagThreshold
	}
	if flags.Changed("retry-delay") {
		cfg.RetryDelay = flagRetryDelay
	}
	if verbose {
		cfg.Verbose = true
	}

	cfg.ApplyEnv(getenv)
	cfg = cfg.MergeWithDefaults(config.Defaults())

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// newLogger returns a text logger for the CLI or a JSON logger for the server.
func newLogger(w io.Writer, debug, jsonFormat bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if jsonFormat {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// cliLogger keeps routine info logs off the terminal unless --verbose is set.
func cliLogger(cfg config.Config) *slog.Logger {
	if cfg.Verbose {
		return newLogger(os.Stderr, true, false)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// openStore connects to the database when one is configured. It returns nil
// without error when no URL is set.
func openStore(ctx context.Context, cfg config.Config) (*db.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil
	}
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return database, nil
}

// newChecker builds the originality checker backed by Custom Search.
func newChecker(ctx context.Context, cfg config.Config, logger *slog.Logger, m *metrics.Metrics) (*originality.Checker, error) {
	searcher, err := search.NewGoogleSearcher(ctx, cfg.SearchConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create search client: %w", err)
	}

	opts := originality.Options{Logger: logger}
	if m != nil {
		opts.Metrics = m
	}
	return originality.NewChecker(searcher, opts), nil
}

// pipeline holds the wired generation stack.
type pipeline struct {
	controller *generation.Controller
	client     llm.Client
	store      *db.DB
}

func (p *pipeline) Close() {
	if p.client != nil {
		_ = p.client.Close()
	}
	if p.store != nil {
		p.store.Close()
	}
}

// buildPipeline wires the LLM client, search-backed checker, optional store and
// controller. persist=false skips the database even when one is configured.
func buildPipeline(ctx context.Context, cfg config.Config, logger *slog.Logger, m *metrics.Metrics, persist bool) (*pipeline, error) {
	client, err := llm.NewClient(ctx, cfg.LLMConfig(), cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	p := &pipeline{client: client}

	checker, err := newChecker(ctx, cfg, logger, m)
	if err != nil {
		p.Close()
		return nil, err
	}

	var store generation.Store
	if persist {
		p.store, err = openStore(ctx, cfg)
		if err != nil {
			p.Close()
			return nil, err
		}
		if p.store != nil {
			store = p.store
		} else {
			logger.Warn("no database configured, accepted content will not be saved")
		}
	}

	delay, err := cfg.RetryDelayDuration()
	if err != nil {
		p.Close()
		return nil, err
	}

	opts := generation.Options{
		MaxAttempts:         cfg.MaxAttempts,
		AcceptanceThreshold: cfg.AcceptanceThreshold,
		RetryDelay:          delay,
		NoRetryDelay:        delay == 0,
		Logger:              logger,
	}
	if m != nil {
		opts.Metrics = m
	}

	generator := generation.NewContentGenerator(client, "", llm.DefaultTimeout)
	p.controller, err = generation.NewController(generator, checker, store, opts)
	if err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}
