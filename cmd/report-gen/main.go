// Package main provides the analytics report generator. It runs the
// configured warehouse and database queries, summarizes each result with the
// LLM, and writes the markdown files the chatbot's resolver serves.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/parentpass/chatbot-api/pkg/database"
	"github.com/parentpass/chatbot-api/pkg/llm"
	"github.com/parentpass/chatbot-api/pkg/platform"
	"github.com/parentpass/chatbot-api/pkg/reports"
	"github.com/parentpass/chatbot-api/pkg/warehouse"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	outDir := flag.String("out", "", "Output directory (overrides config)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := platform.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	dir := cfg.Analytics.Dir
	if *outDir != "" {
		dir = *outDir
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for report generation")
	}
	if cfg.Warehouse.DSN == "" {
		return fmt.Errorf("warehouse.dsn is required for report generation")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := database.Open(cfg.Database.DSN, cfg.Database.MaxOpenConns)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = db.Close() }()

	whDB, err := sql.Open("postgres", cfg.Warehouse.DSN)
	if err != nil {
		return fmt.Errorf("opening warehouse: %w", err)
	}
	defer func() { _ = whDB.Close() }()

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

	sections := reports.DefaultSections(db, warehouse.New(whDB, cfg.Warehouse.Table))
	return reports.New(dir, client, sections).Run(ctx)
}
