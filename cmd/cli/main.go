package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/subwatch/internal/alert"
	"github.com/dvloznov/subwatch/internal/config"
	"github.com/dvloznov/subwatch/internal/detect"
	"github.com/dvloznov/subwatch/internal/forecast"
	"github.com/dvloznov/subwatch/internal/gcstore"
	infraBQ "github.com/dvloznov/subwatch/internal/infra/bigquery"
	"github.com/dvloznov/subwatch/internal/ingest"
	"github.com/dvloznov/subwatch/internal/logger"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "ingest":
		runIngest(log)
	case "detect":
		runDetect(log)
	case "forecast":
		runForecast(log)
	case "cost":
		runCost(log)
	case "alert":
		runAlert(log)
	case "subscriptions":
		runSubscriptions(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Subwatch CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  ingest         Upload a CSV statement and ingest it")
	fmt.Println("  detect         Run subscription detection for a user")
	fmt.Println("  forecast       Forecast balance for a user")
	fmt.Println("  cost           Show total monthly subscription cost")
	fmt.Println("  alert          Compose the current alert for a user")
	fmt.Println("  subscriptions  List a user's subscriptions")
	fmt.Println("  help           Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func loadConfig(log zerolog.Logger, path string) *config.Config {
	if path == "" {
		return config.Default()
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to load config")
	}
	return cfg
}

func newRepo(ctx context.Context, log zerolog.Logger, cfg *config.Config) *infraBQ.Repository {
	repo, err := infraBQ.NewRepository(ctx, cfg.BigQuery)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
	}
	return repo
}

func runIngest(log zerolog.Logger) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	userID := fs.String("user-id", "", "User the statement belongs to")
	filePath := fs.String("file", "", "Path to local CSV statement")
	configPath := fs.String("config", "", "Path to subwatch.yaml")
	bucket := fs.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket for statement uploads")
	fs.Parse(os.Args[2:])

	if *userID == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli ingest -user-id ID -file PATH")
	}
	cfg := loadConfig(log, *configPath)
	if *bucket != "" {
		cfg.GCS.Bucket = *bucket
	}
	if cfg.GCS.Bucket == "" {
		log.Fatal().Msg("Error: no GCS bucket configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	repo := newRepo(ctx, log, cfg)
	defer repo.Close()

	f, err := os.Open(*filePath)
	if err != nil {
		log.Fatal().Err(err).Str("file", *filePath).Msg("Failed to open statement")
	}
	defer f.Close()

	gcs := gcstore.NewClient(cfg.GCS.Bucket)
	objectName := fmt.Sprintf("statements/%s/%s", *userID, filepath.Base(*filePath))
	gcsURI, err := gcs.Upload(ctx, objectName, f)
	if err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	inserted, err := ingest.NewService(gcs, repo).IngestFromGCS(ctx, *userID, gcsURI)
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	fmt.Printf("Ingested %d transactions from %s\n", inserted, gcsURI)
}

func runDetect(log zerolog.Logger) {
	fs := flag.NewFlagSet("detect", flag.ExitOnError)
	userID := fs.String("user-id", "", "User to run detection for")
	configPath := fs.String("config", "", "Path to subwatch.yaml")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: --user-id is required")
	}
	cfg := loadConfig(log, *configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	repo := newRepo(ctx, log, cfg)
	defer repo.Close()

	created, err := detect.NewService(cfg.Detection, repo, repo).DetectSubscriptions(ctx, *userID)
	if err != nil {
		log.Fatal().Err(err).Msg("Detection failed")
	}

	fmt.Printf("Detected %d new subscriptions\n", len(created))
	for _, sub := range created {
		fmt.Printf("  %-20s %10s  %-9s  next %s  confidence %.2f\n",
			sub.Name, sub.Amount.StringFixed(2), sub.Frequency,
			sub.NextPaymentDate.Format("2006-01-02"), sub.Confidence)
	}
}

func runForecast(log zerolog.Logger) {
	fs := flag.NewFlagSet("forecast", flag.ExitOnError)
	userID := fs.String("user-id", "", "User to forecast for")
	days := fs.Int("days", 0, "Days ahead to project (default from config)")
	configPath := fs.String("config", "", "Path to subwatch.yaml")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: --user-id is required")
	}
	cfg := loadConfig(log, *configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	repo := newRepo(ctx, log, cfg)
	defer repo.Close()

	series, err := forecast.NewForecaster(cfg.Forecast, repo, repo).ForecastBalance(ctx, *userID, *days)
	if err != nil {
		log.Fatal().Err(err).Msg("Forecast failed")
	}

	for i, day := range series.Dates {
		fmt.Printf("%s  %12s\n", day, series.Balances[i].StringFixed(2))
	}
	if len(series.LowBalanceDates) > 0 {
		fmt.Printf("\nLow balance on: %v\n", series.LowBalanceDates)
	}
}

func runCost(log zerolog.Logger) {
	fs := flag.NewFlagSet("cost", flag.ExitOnError)
	userID := fs.String("user-id", "", "User to total subscriptions for")
	configPath := fs.String("config", "", "Path to subwatch.yaml")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: --user-id is required")
	}
	cfg := loadConfig(log, *configPath)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	repo := newRepo(ctx, log, cfg)
	defer repo.Close()

	cost, err := forecast.NewForecaster(cfg.Forecast, repo, repo).CalculateMonthlySubscriptionCost(ctx, *userID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to calculate monthly cost")
	}

	fmt.Printf("Monthly subscription cost: %s\n", cost.StringFixed(2))
}

func runAlert(log zerolog.Logger) {
	fs := flag.NewFlagSet("alert", flag.ExitOnError)
	userID := fs.String("user-id", "", "User to compose the alert for")
	configPath := fs.String("config", "", "Path to subwatch.yaml")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: --user-id is required")
	}
	cfg := loadConfig(log, *configPath)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	repo := newRepo(ctx, log, cfg)
	defer repo.Close()

	subs, err := repo.ActiveSubscriptionsByUser(ctx, *userID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load subscriptions")
	}
	if len(subs) == 0 {
		fmt.Println("No active subscriptions.")
		return
	}

	series, err := forecast.NewForecaster(cfg.Forecast, repo, repo).ForecastBalance(ctx, *userID, 0)
	if err != nil {
		log.Fatal().Err(err).Msg("Forecast failed")
	}

	a := alert.NewComposer().Compose(subs, series)
	if a == nil {
		fmt.Println("No upcoming payments within the alert window.")
		return
	}
	fmt.Printf("[%s] %s\n", a.Severity, a.Message)
}

func runSubscriptions(log zerolog.Logger) {
	fs := flag.NewFlagSet("subscriptions", flag.ExitOnError)
	userID := fs.String("user-id", "", "User to list subscriptions for")
	configPath := fs.String("config", "", "Path to subwatch.yaml")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: --user-id is required")
	}
	cfg := loadConfig(log, *configPath)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	repo := newRepo(ctx, log, cfg)
	defer repo.Close()

	subs, err := repo.SubscriptionsByUser(ctx, *userID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list subscriptions")
	}

	fmt.Printf("=== Subscriptions (%d) ===\n", len(subs))
	for _, sub := range subs {
		fmt.Printf("%-20s %10s  %-9s  %-9s  last %s  next %s\n",
			sub.Name, sub.Amount.StringFixed(2), sub.Frequency, sub.Status,
			sub.LastPaymentDate.Format("2006-01-02"), sub.NextPaymentDate.Format("2006-01-02"))
	}
}
