// Package main provides the entry point for the chatbot API server.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/parentpass/chatbot-api/internal/server"
	"github.com/parentpass/chatbot-api/pkg/analytics"
	"github.com/parentpass/chatbot-api/pkg/database/migrate"
	"github.com/parentpass/chatbot-api/pkg/dispatch"
	"github.com/parentpass/chatbot-api/pkg/health"
	"github.com/parentpass/chatbot-api/pkg/llm"
	"github.com/parentpass/chatbot-api/pkg/platform"
	"github.com/parentpass/chatbot-api/pkg/session"
	pgsession "github.com/parentpass/chatbot-api/pkg/session/postgres"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type serverOptions struct {
	configPath  string
	address     string
	showVersion bool
}

func parseFlags() serverOptions {
	opts := serverOptions{}
	flag.StringVar(&opts.configPath, "config", "config.yaml", "Path to configuration file")
	flag.StringVar(&opts.address, "address", "", "Listen address (overrides config)")
	flag.BoolVar(&opts.showVersion, "version", false, "Show version and exit")
	flag.Parse()
	return opts
}

func setupSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx
}

// newStore builds the configured session store and starts its cleanup
// routine when an interval is set.
func newStore(cfg *platform.Config) (session.Store, error) {
	switch cfg.Sessions.Store {
	case "postgres":
		db, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		if err := migrate.Run(db); err != nil {
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		store := pgsession.New(db, pgsession.Config{TTL: cfg.Sessions.TTL})
		if cfg.Sessions.CleanupInterval > 0 {
			store.StartCleanupRoutine(cfg.Sessions.CleanupInterval)
		}
		return store, nil
	default:
		store := session.NewMemoryStore(cfg.Sessions.TTL)
		if cfg.Sessions.CleanupInterval > 0 {
			store.StartCleanupRoutine(cfg.Sessions.CleanupInterval)
		}
		return store, nil
	}
}

func run() error {
	opts := parseFlags()

	if opts.showVersion {
		fmt.Printf("chatbot-api version %s\n", server.Version)
		return nil
	}

	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := platform.LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if opts.address != "" {
		cfg.Server.Address = opts.address
	}
	if cfg.Server.Version != "" {
		server.Version = cfg.Server.Version
	}

	ctx := setupSignalHandler()

	store, err := newStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	client, err := llm.NewArkClient(ctx, llm.Config{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		Region:      cfg.LLM.Region,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		return fmt.Errorf("creating LLM client: %w", err)
	}

	resolver := analytics.NewResolver(cfg.Analytics.Dir)
	dispatcher := dispatch.New(store, client, resolver)
	checker := health.NewChecker()
	handler := server.New(store, dispatcher, cfg.Auth.APIKey, checker)

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server: listening",
			"address", cfg.Server.Address,
			"store", cfg.Sessions.Store,
			"version", server.Version)
		errCh <- srv.ListenAndServe()
	}()
	checker.SetReady()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	checker.SetDraining()
	slog.Info("server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
