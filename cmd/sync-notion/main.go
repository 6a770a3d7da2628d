package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dvloznov/subwatch/internal/config"
	infraBQ "github.com/dvloznov/subwatch/internal/infra/bigquery"
	"github.com/dvloznov/subwatch/internal/logger"
	"github.com/dvloznov/subwatch/internal/notionsync"
)

func main() {
	// Initialize structured logger
	log := logger.New()

	// Parse CLI flags
	userID := flag.String("user-id", "", "User whose subscriptions to sync (required)")
	notionToken := flag.String("notion-token", "", "Notion API token (required)")
	notionDBID := flag.String("notion-db-id", "", "Notion database ID (required)")
	configPath := flag.String("config", "", "Path to subwatch.yaml (defaults used when empty)")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	// Validate required flags
	if *userID == "" {
		log.Fatal().Msg("Error: --user-id is required")
	}
	if *notionToken == "" {
		log.Fatal().Msg("Error: --notion-token is required")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-db-id is required")
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load config")
		}
		cfg = loaded
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Add logger to context
	ctx = logger.WithContext(ctx, log)

	log.Info().
		Str("user_id", *userID).
		Bool("dry_run", *dryRun).
		Msg("Starting Notion sync")

	// Initialize BigQuery repository
	repo, err := infraBQ.NewRepository(ctx, cfg.BigQuery)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize BigQuery repository")
	}
	defer repo.Close()

	// Initialize Notion client
	notionClient := notionsync.NewNotionClient(*notionToken)

	// Sync subscriptions
	if err := notionsync.SyncSubscriptions(ctx, repo, notionClient, *notionDBID, *userID, *dryRun); err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Println("Sync completed successfully.")
}
