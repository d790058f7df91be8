// The worker binary keeps configured users in sync without the HTTP surface:
// it schedules incremental jobs per user, adapting each user's cadence to
// observed activity.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-sync/internal/config"
	"github.com/dvloznov/ledger-sync/internal/consent"
	"github.com/dvloznov/ledger-sync/internal/engine"
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

	if len(cfg.Worker.Users) == 0 {
		log.Fatal().Msg("No users configured; nothing to sync")
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger store")
	}
	defer closeStore()

	client := provider.NewHTTPClient(cfg.Provider.BaseURL)

	// The worker assumes consent was collected before users were added to its
	// config; it grants both read scopes on its in-process gate.
	gate := consent.NewStaticGate()
	for _, u := range cfg.Worker.Users {
		gate.Grant(u.UserID, consent.ScopeReadAccounts, consent.ScopeReadTransactions)
	}

	transformer := transform.NewTransformer(cfg.Sync.BaseCurrency, log)
	eng := engine.New(client, store, gate, transformer, engine.Config{
		BatchSize:   cfg.Sync.BatchSize,
		HistoryDays: cfg.Sync.HistoryDays,
		Strategy:    resolve.Strategy(cfg.Sync.Strategy),
	}, log)

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
		return err
	}
	queue = jobs.NewQueue(cfg.Sync.Concurrency, runner, log)

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	queue.Start(workerCtx)

	var wg sync.WaitGroup
	for _, u := range cfg.Worker.Users {
		wg.Add(1)
		go func(u config.WorkerUser) {
			defer wg.Done()
			syncLoop(workerCtx, queue, u, log)
		}(u)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker...")
	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Worker exited")
}

// syncLoop submits incremental syncs for one user forever, spacing them by
// the activity-based frequency recommendation.
func syncLoop(ctx context.Context, queue *jobs.Queue, u config.WorkerUser, log zerolog.Logger) {
	interval := time.Duration(0) // first sync immediately
	lastActive := time.Time{}
	var txPerDay float64

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}

		jobID, err := queue.Submit(jobs.SyncJob{
			UserID:         u.UserID,
			Type:           jobs.SyncIncremental,
			Priority:       jobs.PriorityNormal,
			CredentialsRef: u.CredentialsRef,
		})
		if err != nil {
			log.Error().Err(err).Str("user_id", u.UserID).Msg("Failed to submit scheduled sync")
			return
		}

		counts, ok := awaitJob(ctx, queue, jobID)
		if !ok {
			return
		}

		if counts.TransactionsAdded > 0 {
			lastActive = time.Now()
		}
		// Crude per-day activity estimate from the last sync's yield, enough
		// to pick a cadence bucket.
		txPerDay = float64(counts.TransactionsAdded)

		interval = engine.OptimalSyncFrequency(engine.ActivitySummary{
			TransactionsPerDay: txPerDay,
			LastTransaction:    lastActive,
		})
		log.Info().
			Str("user_id", u.UserID).
			Str("job_id", jobID).
			Int("added", counts.TransactionsAdded).
			Dur("next_sync_in", interval).
			Msg("Scheduled sync finished")
	}
}

// awaitJob polls until the job reaches a terminal state.
func awaitJob(ctx context.Context, queue *jobs.Queue, jobID string) (jobs.Counts, bool) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return jobs.Counts{}, false
		case <-ticker.C:
		}
		job, err := queue.Status(jobID)
		if err != nil {
			return jobs.Counts{}, false
		}
		switch job.Status {
		case jobs.StatusCompleted, jobs.StatusFailed, jobs.StatusCancelled:
			return job.Counts, true
		}
	}
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
