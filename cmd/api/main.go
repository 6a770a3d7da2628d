package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/subwatch/internal/alert"
	"github.com/dvloznov/subwatch/internal/api/handlers"
	"github.com/dvloznov/subwatch/internal/api/middleware"
	"github.com/dvloznov/subwatch/internal/config"
	"github.com/dvloznov/subwatch/internal/detect"
	"github.com/dvloznov/subwatch/internal/forecast"
	"github.com/dvloznov/subwatch/internal/gcstore"
	infraBQ "github.com/dvloznov/subwatch/internal/infra/bigquery"
	"github.com/dvloznov/subwatch/internal/ingest"
	"github.com/dvloznov/subwatch/internal/jobs"
	"github.com/dvloznov/subwatch/internal/jobs/inmemory"
	"github.com/dvloznov/subwatch/internal/logger"
	"github.com/dvloznov/subwatch/internal/notify"
)

func main() {
	// Parse command-line flags
	var (
		port       = flag.String("port", "8080", "HTTP server port")
		configPath = flag.String("config", "", "Path to subwatch.yaml (defaults used when empty)")
		bucket     = flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket for statement uploads (or set GCS_BUCKET env)")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load config")
		}
		cfg = loaded
	}
	if *bucket != "" {
		cfg.GCS.Bucket = *bucket
	}
	if cfg.GCS.Bucket == "" {
		log.Warn().Msg("No GCS bucket configured - statement uploads will be disabled")
	}

	ctx := logger.WithContext(context.Background(), log)

	// Initialize repository
	repo, err := infraBQ.NewRepository(ctx, cfg.BigQuery)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
	}
	defer repo.Close()

	gcs := gcstore.NewClient(cfg.GCS.Bucket)

	// Wire services
	ingestSvc := ingest.NewService(gcs, repo)
	detectSvc := detect.NewService(cfg.Detection, repo, repo)
	forecaster := forecast.NewForecaster(cfg.Forecast, repo, repo)
	notifier := notify.NewService(repo, forecaster, alert.NewComposer(), repo)

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, 2, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	// Processing a statement means ingesting the CSV and re-running detection
	// over the user's full debit history.
	jobHandler := func(ctx context.Context, job jobs.Job) error {
		stmtJob, ok := job.(*jobs.ProcessStatementJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", stmtJob.JobID).
			Str("user_id", stmtJob.UserID).
			Str("gcs_uri", stmtJob.GCSURI).
			Msg("Processing statement job")

		inserted, err := ingestSvc.IngestFromGCS(ctx, stmtJob.UserID, stmtJob.GCSURI)
		if err != nil {
			log.Error().Err(err).Str("job_id", stmtJob.JobID).Msg("Statement ingestion failed")
			return err
		}

		created, err := detectSvc.DetectSubscriptions(ctx, stmtJob.UserID)
		if err != nil {
			log.Error().Err(err).Str("job_id", stmtJob.JobID).Msg("Subscription detection failed")
			return err
		}

		log.Info().
			Str("job_id", stmtJob.JobID).
			Int("transactions_inserted", inserted).
			Int("subscriptions_created", len(created)).
			Msg("Statement job completed")

		return nil
	}

	// Start job consumer in background
	go func() {
		log.Info().Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	// Daily alert sweep across all users with transactions
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				if err := notifier.CheckAllUsers(workerCtx, repo); err != nil {
					log.Error().Err(err).Msg("Daily alert sweep failed")
				}
			}
		}
	}()

	// Initialize handlers
	subscriptionsHandler := handlers.NewSubscriptionsHandler(repo, detectSvc, forecaster, log)
	forecastHandler := handlers.NewForecastHandler(forecaster, log)
	alertsHandler := handlers.NewAlertsHandler(notifier, repo, log)
	statementsHandler := handlers.NewStatementsHandler(gcs, jobQueue, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	// Create router
	mux := http.NewServeMux()

	// Subscriptions endpoints
	mux.HandleFunc("/api/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			subscriptionsHandler.ListSubscriptions(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/subscriptions/detect", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			subscriptionsHandler.DetectSubscriptions(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/subscriptions/cancel", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			subscriptionsHandler.CancelSubscription(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/subscriptions/cost", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			subscriptionsHandler.MonthlyCost(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Forecast endpoint
	mux.HandleFunc("/api/forecast", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			forecastHandler.ForecastBalance(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Alerts endpoints
	mux.HandleFunc("/api/alerts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			alertsHandler.ComposeAlert(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/notifications", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			alertsHandler.ListNotifications(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Statements endpoints
	mux.HandleFunc("/api/statements/upload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			statementsHandler.UploadStatement(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Jobs endpoints
	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			// Extract job ID from path
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(
					middleware.Auth(os.Getenv("API_TOKEN"))(mux),
				),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Cancel worker context
	cancelWorker()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}
