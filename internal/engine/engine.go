// Package engine orchestrates synchronization: it pulls raw records through
// the provider client, runs duplicate detection, conflict resolution, and the
// transform pipeline over them, and writes survivors through the ledger
// store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-sync/internal/consent"
	"github.com/dvloznov/ledger-sync/internal/dedup"
	"github.com/dvloznov/ledger-sync/internal/domain"
	"github.com/dvloznov/ledger-sync/internal/jobs"
	"github.com/dvloznov/ledger-sync/internal/ledger"
	"github.com/dvloznov/ledger-sync/internal/provider"
	"github.com/dvloznov/ledger-sync/internal/resolve"
	"github.com/dvloznov/ledger-sync/internal/transform"
)

// ErrConsentDenied is returned when the user has not granted the scopes a
// sync needs. It is a hard stop, never retried.
var ErrConsentDenied = errors.New("consent not granted for financial data access")

// Config tunes one engine instance.
type Config struct {
	// BatchSize bounds how many records are processed per batch (default 200).
	BatchSize int
	// HistoryDays is the window a full sync re-fetches (default 90).
	HistoryDays int
	// CallTimeout applies per provider call, not per job (default 30s).
	CallTimeout time.Duration
	// Strategy settles provider/local conflicts on updates (default merge).
	Strategy resolve.Strategy
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 200
	}
	if c.HistoryDays <= 0 {
		c.HistoryDays = 90
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = defaultCallTimeout
	}
	if c.Strategy == "" {
		c.Strategy = resolve.Merge
	}
	return c
}

// ProgressFunc receives progress updates while a sync runs.
type ProgressFunc func(percentage int, step string)

// Engine is an explicitly constructed sync engine. It holds its own state
// (duplicate detector, transformer, last-synced watermarks); two instances
// never share anything, which keeps parallel tests honest.
type Engine struct {
	provider    provider.Client
	store       ledger.Store
	gate        consent.Gate
	detector    *dedup.Detector
	transformer *transform.Transformer
	cfg         Config
	log         zerolog.Logger

	mu         sync.Mutex
	lastSynced map[string]time.Time // accountID -> successful sync watermark

	now func() time.Time
}

// New wires an engine from its collaborators.
func New(p provider.Client, store ledger.Store, gate consent.Gate, tr *transform.Transformer, cfg Config, log zerolog.Logger) *Engine {
	return &Engine{
		provider:    p,
		store:       store,
		gate:        gate,
		detector:    dedup.NewDetector(),
		transformer: tr,
		cfg:         cfg.withDefaults(),
		log:         log,
		lastSynced:  make(map[string]time.Time),
		now:         time.Now,
	}
}

// SyncAccounts refreshes the account list and balances for a user.
func (e *Engine) SyncAccounts(ctx context.Context, userID, credentialsRef string) (SyncResult, error) {
	var result SyncResult

	if err := e.checkConsent(ctx, userID, consent.ScopeReadAccounts); err != nil {
		result.Error = err.Error()
		return result, err
	}

	accounts, retries, err := e.fetchAccounts(ctx, credentialsRef)
	result.RetryAttempts += retries
	if err != nil {
		result.Error = e.describeTopLevel(err)
		return result, err
	}

	now := e.now()
	for _, raw := range accounts {
		result.AccountsProcessed++
		acct := &domain.Account{
			ID:                uuid.NewString(),
			UserID:            userID,
			ProviderAccountID: raw.ProviderAccountID,
			Name:              raw.Name,
			Type:              raw.Type,
			Mask:              raw.Mask,
			Balance:           raw.Balance,
			Currency:          raw.Currency,
			LastSynced:        now,
			UpdatedAt:         now,
		}
		if err := e.store.UpsertAccount(ctx, acct); err != nil {
			result.AccountsFailed++
			result.PartialFailures = append(result.PartialFailures, PartialFailure{
				AccountID: raw.ProviderAccountID,
				Stage:     "accounts",
				Error:     err.Error(),
			})
			continue
		}
		result.AccountsSucceeded++
	}

	result.Success = result.AccountsSucceeded > 0 || result.AccountsProcessed == 0
	return result, nil
}

// SyncTransactions fetches and reconciles transactions for the given account
// scope. An empty scope covers every account of the user.
func (e *Engine) SyncTransactions(ctx context.Context, userID, credentialsRef string, accountIDs []string, syncType jobs.SyncType, progress ProgressFunc) (SyncResult, error) {
	var result SyncResult
	if progress == nil {
		progress = func(int, string) {}
	}

	if err := e.checkConsent(ctx, userID, consent.ScopeReadAccounts, consent.ScopeReadTransactions); err != nil {
		result.Error = err.Error()
		return result, err
	}

	if syncType == jobs.SyncBalancesOnly {
		return e.SyncAccounts(ctx, userID, credentialsRef)
	}

	// Resolve the account scope up front; transactions_only still needs the
	// account list when the caller did not pin one.
	if len(accountIDs) == 0 {
		progress(0, "fetching accounts")
		accounts, retries, err := e.fetchAccounts(ctx, credentialsRef)
		result.RetryAttempts += retries
		if err != nil {
			result.Error = e.describeTopLevel(err)
			return result, err
		}
		for _, a := range accounts {
			accountIDs = append(accountIDs, a.ProviderAccountID)
		}
	}

	for i, accountID := range accountIDs {
		result.AccountsProcessed++
		progress(i*100/len(accountIDs), fmt.Sprintf("syncing account %d/%d", i+1, len(accountIDs)))

		raws, retries, err := e.fetchTransactions(ctx, credentialsRef, accountID, syncType)
		result.RetryAttempts += retries
		if err != nil {
			// One account's failure never aborts the job.
			result.AccountsFailed++
			result.PartialFailures = append(result.PartialFailures, PartialFailure{
				AccountID: accountID,
				Stage:     "transactions",
				Error:     err.Error(),
			})
			e.log.Warn().Str("account_id", accountID).Err(err).Msg("account fetch failed")
			continue
		}

		e.processAccount(ctx, userID, accountID, raws, &result)
		result.AccountsSucceeded++
		e.setLastSynced(accountID)
	}
	progress(100, "done")

	result.Success = result.AccountsSucceeded > 0
	if !result.Success && len(result.PartialFailures) > 0 {
		result.Error = "all accounts failed"
	}
	return result, nil
}

// processAccount runs reconciliation over an account's fetch in fixed-size
// batches to bound memory and allow progress reporting.
func (e *Engine) processAccount(ctx context.Context, userID, accountID string, raws []provider.RawTransaction, result *SyncResult) {
	for start := 0; start < len(raws); start += e.cfg.BatchSize {
		end := start + e.cfg.BatchSize
		if end > len(raws) {
			end = len(raws)
		}
		for _, raw := range raws[start:end] {
			e.processRecord(ctx, userID, accountID, raw, result)
		}
		result.BatchesProcessed++
	}
}

// processRecord decides one record's fate: update via conflict resolution,
// fold into a detected duplicate, or accept as new. Data-level problems skip
// the record and never abort the batch.
func (e *Engine) processRecord(ctx context.Context, userID, accountID string, raw provider.RawTransaction, result *SyncResult) {
	if raw.ProviderTxID == "" || raw.Date.IsZero() {
		e.log.Warn().
			Str("account_id", accountID).
			Str("description", raw.Description).
			Msg("malformed record skipped")
		return
	}
	result.TransactionsProcessed++

	candidate := e.normalizeRaw(userID, accountID, raw)

	existing, err := e.store.FindByProviderID(ctx, raw.ProviderTxID)
	if err != nil {
		e.log.Error().Str("provider_tx_id", raw.ProviderTxID).Err(err).Msg("lookup failed, record skipped")
		return
	}

	if existing != nil {
		// Exact idempotency-key hit: an update, settled by conflict
		// resolution, never flagged as a duplicate.
		res, err := resolve.Resolve(*existing, candidate, e.cfg.Strategy)
		if err != nil {
			e.log.Error().Err(err).Msg("conflict resolution failed, record skipped")
			return
		}
		if e.persist(ctx, res.Record, result) {
			result.TransactionsUpdated++
		}
		return
	}

	window, err := e.store.FindWindow(ctx, accountID,
		candidate.Date.AddDate(0, 0, -3), candidate.Date.AddDate(0, 0, 3))
	if err != nil {
		e.log.Error().Str("account_id", accountID).Err(err).Msg("window lookup failed, record skipped")
		return
	}

	det := e.detector.Detect(&candidate, window)
	if det.IsDuplicate() {
		result.DuplicatesDetected++
		if det.RecommendedAction == dedup.ActionMerge {
			// Fold into the strongest match; no separate row is written.
			e.mergeDuplicate(ctx, candidate, det, window, result)
			return
		}
		// Manual review: kept, but flagged so it never silently double
		// counts in budgets.
		candidate.NeedsReview = true
	}

	if e.persist(ctx, candidate, result) {
		result.TransactionsAdded++
	}
}

func (e *Engine) mergeDuplicate(ctx context.Context, candidate domain.Transaction, det dedup.Result, window []*domain.Transaction, result *SyncResult) {
	var target *domain.Transaction
	for _, w := range window {
		if w.ProviderTxID == det.DuplicateIDs[0] {
			target = w
			break
		}
	}
	if target == nil {
		return
	}
	res, err := resolve.Resolve(*target, candidate, resolve.Merge)
	if err != nil {
		e.log.Error().Err(err).Msg("duplicate merge failed")
		return
	}
	if e.persist(ctx, res.Record, result) {
		e.log.Debug().
			Str("provider_tx_id", candidate.ProviderTxID).
			Str("merged_into", target.ProviderTxID).
			Float64("confidence", det.Confidence).
			Msg("duplicate merged")
	}
}

func (e *Engine) persist(ctx context.Context, tx domain.Transaction, result *SyncResult) bool {
	enriched, _ := e.transformer.Transform(tx)
	enriched.UpdatedAt = e.now()
	if enriched.CreatedAt.IsZero() {
		enriched.CreatedAt = enriched.UpdatedAt
	}
	if err := e.store.Upsert(ctx, &enriched); err != nil {
		e.log.Error().Str("provider_tx_id", tx.ProviderTxID).Err(err).Msg("upsert failed, record skipped")
		return false
	}
	return true
}

func (e *Engine) normalizeRaw(userID, accountID string, raw provider.RawTransaction) domain.Transaction {
	now := e.now()
	return domain.Transaction{
		ID:             uuid.NewString(),
		UserID:         userID,
		AccountID:      accountID,
		ProviderTxID:   raw.ProviderTxID,
		Amount:         raw.Amount,
		Currency:       raw.Currency,
		Date:           raw.Date,
		Description:    raw.Description,
		RawDescription: raw.Description,
		Merchant:       raw.MerchantName,
		Pending:        raw.Pending,
		Location:       raw.Location,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (e *Engine) checkConsent(ctx context.Context, userID string, scopes ...consent.Scope) error {
	ok, err := e.gate.HasConsent(ctx, userID, consent.FinancialData, scopes)
	if err != nil {
		return fmt.Errorf("consent check: %w", err)
	}
	if !ok {
		return ErrConsentDenied
	}
	return nil
}

func (e *Engine) describeTopLevel(err error) string {
	if provider.IsAuthError(err) {
		return fmt.Sprintf("re-authentication required: %v", err)
	}
	return err.Error()
}

// fetchAccounts pulls the account list with the standard retry policy.
func (e *Engine) fetchAccounts(ctx context.Context, credentialsRef string) ([]provider.RawAccount, int, error) {
	var accounts []provider.RawAccount
	retries, err := e.callWithRetry(ctx, func(cctx context.Context) error {
		var err error
		accounts, err = e.provider.GetAccounts(cctx, credentialsRef)
		return err
	})
	return accounts, retries, err
}

// fetchTransactions pulls every page for one account. Incremental syncs
// start at the account's watermark; full syncs re-fetch the configured
// history window so every record is reconciled, not only new ones.
func (e *Engine) fetchTransactions(ctx context.Context, credentialsRef, accountID string, syncType jobs.SyncType) ([]provider.RawTransaction, int, error) {
	r := provider.DateRange{Start: e.windowStart(accountID, syncType), End: e.now()}

	var all []provider.RawTransaction
	var totalRetries int
	cursor := ""
	for {
		var page provider.Page
		retries, err := e.callWithRetry(ctx, func(cctx context.Context) error {
			var err error
			page, err = e.provider.GetTransactions(cctx, credentialsRef, r, accountID, cursor)
			return err
		})
		totalRetries += retries
		if err != nil {
			return nil, totalRetries, err
		}
		all = append(all, page.Transactions...)
		if page.NextCursor == "" {
			return all, totalRetries, nil
		}
		cursor = page.NextCursor
	}
}

func (e *Engine) windowStart(accountID string, syncType jobs.SyncType) time.Time {
	if syncType == jobs.SyncIncremental {
		e.mu.Lock()
		last, ok := e.lastSynced[accountID]
		e.mu.Unlock()
		if ok {
			return last
		}
	}
	return e.now().AddDate(0, 0, -e.cfg.HistoryDays)
}

func (e *Engine) setLastSynced(accountID string) {
	e.mu.Lock()
	e.lastSynced[accountID] = e.now()
	e.mu.Unlock()
}

// callWithRetry runs one provider call under the per-call timeout. Transient
// failures get up to two more attempts with exponential backoff; a rate
// limit gets exactly one retry after at least the provider-specified wait,
// and is surfaced as-is the second time so the queue can reschedule.
func (e *Engine) callWithRetry(ctx context.Context, attempt func(ctx context.Context) error) (int, error) {
	var retries int
	var transientTries int
	var rateLimitWaited bool
	delay := retryBaseDelay

	for {
		cctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
		err := attempt(cctx)
		cancel()
		if err == nil {
			return retries, nil
		}

		// The rate-limit wait does not consume the transient retry budget.
		if after, ok := provider.IsRateLimited(err); ok {
			if rateLimitWaited {
				return retries, err
			}
			rateLimitWaited = true
			wait := after
			if wait < rateLimitMinWait {
				wait = rateLimitMinWait
			}
			if serr := sleep(ctx, wait); serr != nil {
				return retries, serr
			}
			retries++
			continue
		}

		if !provider.IsTransient(err) || transientTries >= extraAttempts {
			return retries, err
		}
		transientTries++
		if serr := sleep(ctx, delay); serr != nil {
			return retries, serr
		}
		delay *= 2
		retries++
	}
}
