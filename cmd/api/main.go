package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/ledger-sync/internal/api/handlers"
	"github.com/dvloznov/ledger-sync/internal/api/middleware"
	"github.com/dvloznov/ledger-sync/internal/config"
	"github.com/dvloznov/ledger-sync/internal/consent"
	"github.com/dvloznov/ledger-sync/internal/engine"
	"github.com/dvloznov/ledger-sync/internal/export"
	"github.com/dvloznov/ledger-sync/internal/jobs"
	"github.com/dvloznov/ledger-sync/internal/ledger"
	bqstore "github.com/dvloznov/ledger-sync/internal/ledger/bigquery"
	"github.com/dvloznov/ledger-sync/internal/ledger/sqlite"
	"github.com/dvloznov/ledger-sync/internal/logger"
	"github.com/dvloznov/ledger-sync/internal/provider"
	"github.com/dvloznov/ledger-sync/internal/resolve"
	"github.com/dvloznov/ledger-sync/internal/transform"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewAtLevel(cfg.Logging.Level)
	ctx := context.Background()

	// Ledger store backend.
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger store")
	}
	defer closeStore()

	// Collaborators.
	client := provider.NewHTTPClient(cfg.Provider.BaseURL)
	gate := consent.NewStaticGate()
	transformer := transform.NewTransformer(cfg.Sync.BaseCurrency, log)

	eng := engine.New(client, store, gate, transformer, engine.Config{
		BatchSize:   cfg.Sync.BatchSize,
		HistoryDays: cfg.Sync.HistoryDays,
		Strategy:    resolve.Strategy(cfg.Sync.Strategy),
	}, log)

	var uploader *export.Uploader
	if cfg.Export.Bucket != "" {
		uploader = export.NewUploader(cfg.Export.Bucket)
	} else {
		log.Warn().Msg("No export bucket configured - sync reports will not be exported")
	}

	// The queue drives the engine; the runner copies engine counters back onto
	// the job and exports a report when a bucket is configured.
	var queue *jobs.Queue
	runner := func(ctx context.Context, job *jobs.SyncJob) error {
		result, err := eng.SyncTransactions(ctx, job.UserID, job.CredentialsRef,
			job.AccountIDs, job.Type, func(pct int, step string) {
				queue.SetProgress(job.ID, pct, step)
			})

		queue.SetCounts(job.ID, jobs.Counts{
			AccountsProcessed:     result.AccountsProcessed,
			AccountsSucceeded:     result.AccountsSucceeded,
			AccountsFailed:        result.AccountsFailed,
			TransactionsProcessed: result.TransactionsProcessed,
			TransactionsAdded:     result.TransactionsAdded,
			TransactionsUpdated:   result.TransactionsUpdated,
			DuplicatesDetected:    result.DuplicatesDetected,
			BatchesProcessed:      result.BatchesProcessed,
		})

		if uploader != nil {
			uri, expErr := uploader.Upload(ctx, export.Report{
				JobID:      job.ID,
				UserID:     job.UserID,
				SyncType:   string(job.Type),
				FinishedAt: time.Now().UTC(),
				Result:     result,
			})
			if expErr != nil {
				log.Error().Err(expErr).Str("job_id", job.ID).Msg("Failed to export sync report")
			} else {
				log.Info().Str("job_id", job.ID).Str("report_uri", uri).Msg("Sync report exported")
			}
		}
		return err
	}
	queue = jobs.NewQueue(cfg.Sync.Concurrency, runner, log)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()
	queue.Start(workerCtx)

	// Handlers.
	syncsHandler := handlers.NewSyncsHandler(queue, log)
	rulesHandler := handlers.NewRulesHandler(transformer.Rules,
		transform.NewRuleSuggester(cfg.LLM.Model), log)
	consentHandler := handlers.NewConsentHandler(gate, log)

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/syncs", syncsHandler.SubmitSync)
	mux.HandleFunc("GET /api/syncs/{id}", syncsHandler.GetSync)
	mux.HandleFunc("GET /api/syncs/{id}/progress", syncsHandler.GetSyncProgress)
	mux.HandleFunc("DELETE /api/syncs/{id}", syncsHandler.CancelSync)
	mux.HandleFunc("GET /api/queue", syncsHandler.GetQueue)

	mux.HandleFunc("GET /api/rules", rulesHandler.ListRules)
	mux.HandleFunc("POST /api/rules", rulesHandler.CreateRule)
	mux.HandleFunc("PUT /api/rules/{id}/enabled", rulesHandler.SetRuleEnabled)
	mux.HandleFunc("POST /api/rules/suggest", rulesHandler.SuggestRules)

	mux.HandleFunc("POST /api/consents", consentHandler.GrantConsent)
	mux.HandleFunc("DELETE /api/consents/{user_id}", consentHandler.RevokeConsent)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(
					middleware.Auth(mux),
				),
			),
		),
	)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if err := queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}

// openStore selects the ledger backend from config.
func openStore(ctx context.Context, cfg config.Config) (ledger.Store, func(), error) {
	switch cfg.Store.Backend {
	case "memory":
		return ledger.NewMemoryStore(), func() {}, nil

	case "sqlite":
		s, err := sqlite.Open(cfg.Store.SqlitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil

	case "bigquery":
		if cfg.Store.Project == "" {
			return nil, nil, fmt.Errorf("bigquery backend requires store.project")
		}
		s, err := bqstore.NewStore(ctx, cfg.Store.Project, cfg.Store.Dataset)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
