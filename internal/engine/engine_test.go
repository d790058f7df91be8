package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-sync/internal/consent"
	"github.com/dvloznov/ledger-sync/internal/domain"
	"github.com/dvloznov/ledger-sync/internal/jobs"
	"github.com/dvloznov/ledger-sync/internal/ledger"
	"github.com/dvloznov/ledger-sync/internal/provider"
	"github.com/dvloznov/ledger-sync/internal/transform"
)

type fakeClient struct {
	getAccounts     func(ctx context.Context, token string) ([]provider.RawAccount, error)
	getTransactions func(ctx context.Context, token string, r provider.DateRange, accountID, cursor string) (provider.Page, error)
}

func (c *fakeClient) GetAccounts(ctx context.Context, token string) ([]provider.RawAccount, error) {
	return c.getAccounts(ctx, token)
}

func (c *fakeClient) GetTransactions(ctx context.Context, token string, r provider.DateRange, accountID, cursor string) (provider.Page, error) {
	return c.getTransactions(ctx, token, r, accountID, cursor)
}

func grantedGate(userID string) *consent.StaticGate {
	g := consent.NewStaticGate()
	g.Grant(userID, consent.ScopeReadAccounts, consent.ScopeReadTransactions)
	return g
}

func newTestEngine(c provider.Client, store ledger.Store, gate consent.Gate) *Engine {
	tr := transform.NewTransformer("USD", zerolog.Nop())
	return New(c, store, gate, tr, Config{}, zerolog.Nop())
}

func rawTx(id, account string, amount float64, date time.Time, desc string) provider.RawTransaction {
	return provider.RawTransaction{
		ProviderTxID:      id,
		ProviderAccountID: account,
		Amount:            amount,
		Currency:          "USD",
		Date:              date,
		Description:       desc,
	}
}

func singlePage(txs ...provider.RawTransaction) func(ctx context.Context, token string, r provider.DateRange, accountID, cursor string) (provider.Page, error) {
	return func(ctx context.Context, token string, r provider.DateRange, accountID, cursor string) (provider.Page, error) {
		var out []provider.RawTransaction
		for _, t := range txs {
			if t.ProviderAccountID == accountID {
				out = append(out, t)
			}
		}
		return provider.Page{Transactions: out}, nil
	}
}

func TestSyncTransactions_ConsentDeniedIsAHardStop(t *testing.T) {
	called := false
	c := &fakeClient{
		getAccounts: func(ctx context.Context, token string) ([]provider.RawAccount, error) {
			called = true
			return nil, nil
		},
		getTransactions: func(ctx context.Context, token string, r provider.DateRange, accountID, cursor string) (provider.Page, error) {
			called = true
			return provider.Page{}, nil
		},
	}
	e := newTestEngine(c, ledger.NewMemoryStore(), consent.NewStaticGate())

	result, err := e.SyncTransactions(context.Background(), "user-1", "cred", nil, jobs.SyncIncremental, nil)
	if !errors.Is(err, ErrConsentDenied) {
		t.Fatalf("err = %v, want ErrConsentDenied", err)
	}
	if result.Success {
		t.Error("Success = true, want false")
	}
	if called {
		t.Error("provider must never be called without consent")
	}
}

func TestSyncTransactions_AddsNewRecords(t *testing.T) {
	date := time.Now().AddDate(0, 0, -2)
	c := &fakeClient{
		getTransactions: singlePage(
			rawTx("p1", "acct-1", -45.67, date, "STARBUCKS STORE"),
			rawTx("p2", "acct-1", -120.00, date, "WHOLE FOODS MARKET"),
		),
	}
	store := ledger.NewMemoryStore()
	e := newTestEngine(c, store, grantedGate("user-1"))

	result, err := e.SyncTransactions(context.Background(), "user-1", "cred",
		[]string{"acct-1"}, jobs.SyncIncremental, nil)
	if err != nil {
		t.Fatalf("SyncTransactions() error = %v", err)
	}

	if !result.Success || result.AccountsSucceeded != 1 {
		t.Errorf("result = %+v, want one succeeded account", result)
	}
	if result.TransactionsAdded != 2 || result.TransactionsUpdated != 0 {
		t.Errorf("added/updated = %d/%d, want 2/0", result.TransactionsAdded, result.TransactionsUpdated)
	}
	if store.Len() != 2 {
		t.Errorf("store holds %d records, want 2", store.Len())
	}

	// Records go through the transform pipeline before persisting.
	stored, err := store.FindByProviderID(context.Background(), "p1")
	if err != nil || stored == nil {
		t.Fatalf("stored record missing: %v", err)
	}
	if stored.Category == "" {
		t.Error("stored record was not categorized")
	}
	if stored.QualityScore == 0 {
		t.Error("stored record has no quality score")
	}
}

func TestSyncTransactions_SameProviderIDIsAnUpdate(t *testing.T) {
	date := time.Now().AddDate(0, 0, -2)
	store := ledger.NewMemoryStore()
	store.Upsert(context.Background(), &domain.Transaction{
		ID: "local-1", UserID: "user-1", AccountID: "acct-1",
		ProviderTxID: "p1", Amount: -45.00, Currency: "USD", Date: date,
		Description: "My note about coffee", Notes: "keep this",
		LocalEdits: []string{"description"},
	})

	c := &fakeClient{
		getTransactions: singlePage(rawTx("p1", "acct-1", -45.67, date, "STARBUCKS STORE")),
	}
	e := newTestEngine(c, store, grantedGate("user-1"))

	result, err := e.SyncTransactions(context.Background(), "user-1", "cred",
		[]string{"acct-1"}, jobs.SyncIncremental, nil)
	if err != nil {
		t.Fatalf("SyncTransactions() error = %v", err)
	}

	if result.TransactionsUpdated != 1 || result.TransactionsAdded != 0 {
		t.Errorf("added/updated = %d/%d, want 0/1", result.TransactionsAdded, result.TransactionsUpdated)
	}
	if result.DuplicatesDetected != 0 {
		t.Error("an idempotency-key hit must not count as a duplicate")
	}
	if store.Len() != 1 {
		t.Errorf("store holds %d records, want the single updated row", store.Len())
	}

	stored, _ := store.FindByProviderID(context.Background(), "p1")
	if stored.Amount != -45.67 {
		t.Errorf("Amount = %v, want provider's -45.67", stored.Amount)
	}
	if stored.Description != "My note about coffee" {
		t.Errorf("Description = %q, user edit lost under merge", stored.Description)
	}
	if stored.Notes != "keep this" {
		t.Errorf("Notes = %q, want preserved", stored.Notes)
	}
}

func TestSyncTransactions_StrongDuplicateIsMerged(t *testing.T) {
	date := time.Now().AddDate(0, 0, -2)
	store := ledger.NewMemoryStore()
	store.Upsert(context.Background(), &domain.Transaction{
		ID: "local-1", UserID: "user-1", AccountID: "acct-1",
		ProviderTxID: "other-source-1", Amount: -45.67, Currency: "USD",
		Date: date, Description: "STARBUCKS STORE #12345",
	})

	// Different provider id, same amount, adjacent day, near-identical
	// description: 90 points.
	c := &fakeClient{
		getTransactions: singlePage(
			rawTx("p-new", "acct-1", -45.67, date.AddDate(0, 0, 1), "STARBUCKS STORE 12345")),
	}
	e := newTestEngine(c, store, grantedGate("user-1"))

	result, err := e.SyncTransactions(context.Background(), "user-1", "cred",
		[]string{"acct-1"}, jobs.SyncIncremental, nil)
	if err != nil {
		t.Fatalf("SyncTransactions() error = %v", err)
	}

	if result.DuplicatesDetected != 1 {
		t.Errorf("DuplicatesDetected = %d, want 1", result.DuplicatesDetected)
	}
	if result.TransactionsAdded != 0 {
		t.Errorf("TransactionsAdded = %d, want 0 for a merged duplicate", result.TransactionsAdded)
	}
	if store.Len() != 1 {
		t.Errorf("store holds %d records, merged duplicate must not add a row", store.Len())
	}
}

func TestSyncTransactions_MidConfidenceDuplicateFlaggedForReview(t *testing.T) {
	date := time.Now().AddDate(0, 0, -2)
	store := ledger.NewMemoryStore()
	store.Upsert(context.Background(), &domain.Transaction{
		ID: "local-1", UserID: "user-1", AccountID: "acct-1",
		ProviderTxID: "other-source-1", Amount: -45.67, Currency: "USD",
		Date: date, Description: "COFFEE PURCHASE DOWNTOWN", Merchant: "Starbucks",
	})

	// amount (40) + date (20) + merchant (10) = 70: flagged, not merged.
	c := &fakeClient{
		getTransactions: func(ctx context.Context, token string, r provider.DateRange, accountID, cursor string) (provider.Page, error) {
			return provider.Page{Transactions: []provider.RawTransaction{{
				ProviderTxID: "p-new", ProviderAccountID: "acct-1",
				Amount: -45.67, Currency: "USD", Date: date.AddDate(0, 0, 1),
				Description: "SBUX ORDER 991", MerchantName: "Starbucks",
			}}}, nil
		},
	}
	e := newTestEngine(c, store, grantedGate("user-1"))

	result, err := e.SyncTransactions(context.Background(), "user-1", "cred",
		[]string{"acct-1"}, jobs.SyncIncremental, nil)
	if err != nil {
		t.Fatalf("SyncTransactions() error = %v", err)
	}

	if result.DuplicatesDetected != 1 {
		t.Errorf("DuplicatesDetected = %d, want 1", result.DuplicatesDetected)
	}
	if result.TransactionsAdded != 1 {
		t.Errorf("TransactionsAdded = %d, want record kept for review", result.TransactionsAdded)
	}

	stored, _ := store.FindByProviderID(context.Background(), "p-new")
	if stored == nil || !stored.NeedsReview {
		t.Error("reviewable duplicate must be persisted with NeedsReview set")
	}
}

func TestSyncTransactions_PartialFailureIsolation(t *testing.T) {
	date := time.Now().AddDate(0, 0, -2)
	c := &fakeClient{
		getTransactions: func(ctx context.Context, token string, r provider.DateRange, accountID, cursor string) (provider.Page, error) {
			if accountID == "acct-2" {
				return provider.Page{}, &provider.AuthError{Reason: "scope revoked"}
			}
			return provider.Page{Transactions: []provider.RawTransaction{
				rawTx("p-"+accountID, accountID, -10, date, "STARBUCKS"),
			}}, nil
		},
	}
	store := ledger.NewMemoryStore()
	e := newTestEngine(c, store, grantedGate("user-1"))

	result, err := e.SyncTransactions(context.Background(), "user-1", "cred",
		[]string{"acct-1", "acct-2", "acct-3"}, jobs.SyncIncremental, nil)
	if err != nil {
		t.Fatalf("SyncTransactions() error = %v", err)
	}

	if !result.Success {
		t.Error("Success = false, want true when some accounts succeed")
	}
	if result.AccountsSucceeded != 2 || result.AccountsFailed != 1 {
		t.Errorf("succeeded/failed = %d/%d, want 2/1", result.AccountsSucceeded, result.AccountsFailed)
	}
	if len(result.PartialFailures) != 1 {
		t.Fatalf("PartialFailures = %v, want one entry", result.PartialFailures)
	}
	pf := result.PartialFailures[0]
	if pf.AccountID != "acct-2" || pf.Stage != "transactions" {
		t.Errorf("PartialFailure = %+v", pf)
	}
	if store.Len() != 2 {
		t.Errorf("store holds %d records, want the two healthy accounts'", store.Len())
	}
}

func TestSyncTransactions_TransientErrorRetriedToSuccess(t *testing.T) {
	date := time.Now().AddDate(0, 0, -2)
	attempts := map[string]int{}
	c := &fakeClient{
		getTransactions: func(ctx context.Context, token string, r provider.DateRange, accountID, cursor string) (provider.Page, error) {
			attempts[accountID]++
			if accountID == "acct-2" && attempts[accountID] == 1 {
				return provider.Page{}, provider.Transient(errors.New("connection reset"))
			}
			return provider.Page{Transactions: []provider.RawTransaction{
				rawTx("p-"+accountID, accountID, -10, date, "STARBUCKS"),
			}}, nil
		},
	}
	e := newTestEngine(c, ledger.NewMemoryStore(), grantedGate("user-1"))

	result, err := e.SyncTransactions(context.Background(), "user-1", "cred",
		[]string{"acct-1", "acct-2", "acct-3"}, jobs.SyncIncremental, nil)
	if err != nil {
		t.Fatalf("SyncTransactions() error = %v", err)
	}

	if !result.Success || result.AccountsSucceeded != 3 {
		t.Errorf("result = %+v, want all three accounts succeeded", result)
	}
	if len(result.PartialFailures) != 0 {
		t.Errorf("PartialFailures = %v, want none after successful retry", result.PartialFailures)
	}
	if result.RetryAttempts != 1 {
		t.Errorf("RetryAttempts = %d, want 1", result.RetryAttempts)
	}
}

func TestSyncTransactions_RateLimitRetriedOnceAfterFloor(t *testing.T) {
	date := time.Now().AddDate(0, 0, -2)
	var calls int
	c := &fakeClient{
		getTransactions: func(ctx context.Context, token string, r provider.DateRange, accountID, cursor string) (provider.Page, error) {
			calls++
			if calls == 1 {
				// A wait shorter than the floor still delays at least a second.
				return provider.Page{}, &provider.RateLimitError{RetryAfter: 10 * time.Millisecond}
			}
			return provider.Page{Transactions: []provider.RawTransaction{
				rawTx("p1", accountID, -10, date, "STARBUCKS"),
			}}, nil
		},
	}
	e := newTestEngine(c, ledger.NewMemoryStore(), grantedGate("user-1"))

	start := time.Now()
	result, err := e.SyncTransactions(context.Background(), "user-1", "cred",
		[]string{"acct-1"}, jobs.SyncIncremental, nil)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("SyncTransactions() error = %v", err)
	}

	if !result.Success || result.TransactionsAdded != 1 {
		t.Errorf("result = %+v, want success after one rate-limit retry", result)
	}
	if result.RetryAttempts != 1 {
		t.Errorf("RetryAttempts = %d, want 1", result.RetryAttempts)
	}
	if calls != 2 {
		t.Errorf("provider called %d times, want 2", calls)
	}
	if elapsed < time.Second {
		t.Errorf("elapsed = %v, want at least the 1s rate-limit floor", elapsed)
	}
}

func TestSyncTransactions_PersistentRateLimitSurfaced(t *testing.T) {
	var calls int
	c := &fakeClient{
		getTransactions: func(ctx context.Context, token string, r provider.DateRange, accountID, cursor string) (provider.Page, error) {
			calls++
			return provider.Page{}, &provider.RateLimitError{RetryAfter: 10 * time.Millisecond}
		},
	}
	e := newTestEngine(c, ledger.NewMemoryStore(), grantedGate("user-1"))

	result, err := e.SyncTransactions(context.Background(), "user-1", "cred",
		[]string{"acct-1"}, jobs.SyncIncremental, nil)
	if err != nil {
		t.Fatalf("SyncTransactions() error = %v", err)
	}

	// Exactly one in-call retry; the second rejection is surfaced so the
	// queue can reschedule the whole job.
	if calls != 2 {
		t.Errorf("provider called %d times, want 2", calls)
	}
	if result.Success {
		t.Error("Success = true, want false under a persistent rate limit")
	}
	if len(result.PartialFailures) != 1 {
		t.Fatalf("PartialFailures = %v, want one entry", result.PartialFailures)
	}
	if !strings.Contains(result.PartialFailures[0].Error, "rate limit") {
		t.Errorf("failure = %q, want the rate-limit error surfaced", result.PartialFailures[0].Error)
	}
}

func TestSyncTransactions_RateLimitKeepsTransientBudget(t *testing.T) {
	date := time.Now().AddDate(0, 0, -2)
	var calls int
	c := &fakeClient{
		getTransactions: func(ctx context.Context, token string, r provider.DateRange, accountID, cursor string) (provider.Page, error) {
			calls++
			switch calls {
			case 1:
				return provider.Page{}, &provider.RateLimitError{RetryAfter: 10 * time.Millisecond}
			case 2, 3:
				return provider.Page{}, provider.Transient(errors.New("connection reset"))
			}
			return provider.Page{Transactions: []provider.RawTransaction{
				rawTx("p1", accountID, -10, date, "STARBUCKS"),
			}}, nil
		},
	}
	e := newTestEngine(c, ledger.NewMemoryStore(), grantedGate("user-1"))

	result, err := e.SyncTransactions(context.Background(), "user-1", "cred",
		[]string{"acct-1"}, jobs.SyncIncremental, nil)
	if err != nil {
		t.Fatalf("SyncTransactions() error = %v", err)
	}

	// A rate-limit wait must not eat into the two transient attempts: both
	// transient failures after it are still retried.
	if !result.Success || result.TransactionsAdded != 1 {
		t.Errorf("result = %+v, want success with both transient retries spent", result)
	}
	if result.RetryAttempts != 3 {
		t.Errorf("RetryAttempts = %d, want 3", result.RetryAttempts)
	}
	if calls != 4 {
		t.Errorf("provider called %d times, want 4", calls)
	}
}

func TestSyncTransactions_AllAccountsFailed(t *testing.T) {
	c := &fakeClient{
		getTransactions: func(ctx context.Context, token string, r provider.DateRange, accountID, cursor string) (provider.Page, error) {
			return provider.Page{}, &provider.AuthError{Reason: "revoked"}
		},
	}
	e := newTestEngine(c, ledger.NewMemoryStore(), grantedGate("user-1"))

	result, err := e.SyncTransactions(context.Background(), "user-1", "cred",
		[]string{"acct-1", "acct-2"}, jobs.SyncIncremental, nil)
	if err != nil {
		t.Fatalf("SyncTransactions() error = %v", err)
	}
	if result.Success {
		t.Error("Success = true, want false when every account failed")
	}
	if result.Error == "" {
		t.Error("Error not set for complete failure")
	}
}

func TestSyncTransactions_PaginationAndBatches(t *testing.T) {
	date := time.Now().AddDate(0, 0, -2)
	const total = 1000
	const pageSize = 250

	c := &fakeClient{
		getTransactions: func(ctx context.Context, token string, r provider.DateRange, accountID, cursor string) (provider.Page, error) {
			start := 0
			if cursor != "" {
				fmt.Sscanf(cursor, "c%d", &start)
			}
			var page provider.Page
			for i := start; i < start+pageSize && i < total; i++ {
				page.Transactions = append(page.Transactions,
					rawTx(fmt.Sprintf("p-%04d", i), accountID, -float64(i+1), date, fmt.Sprintf("VENDOR %04d", i)))
			}
			if start+pageSize < total {
				page.NextCursor = fmt.Sprintf("c%d", start+pageSize)
			}
			return page, nil
		},
	}
	store := ledger.NewMemoryStore()
	e := newTestEngine(c, store, grantedGate("user-1"))

	result, err := e.SyncTransactions(context.Background(), "user-1", "cred",
		[]string{"acct-1"}, jobs.SyncFull, nil)
	if err != nil {
		t.Fatalf("SyncTransactions() error = %v", err)
	}

	if result.TransactionsProcessed != total {
		t.Errorf("TransactionsProcessed = %d, want %d", result.TransactionsProcessed, total)
	}
	if result.BatchesProcessed <= 1 {
		t.Errorf("BatchesProcessed = %d, want multiple batches", result.BatchesProcessed)
	}
	if result.BatchesProcessed != 5 {
		t.Errorf("BatchesProcessed = %d, want 5 with the default batch size", result.BatchesProcessed)
	}
	if store.Len() != total {
		t.Errorf("store holds %d records, want %d", store.Len(), total)
	}
}

func TestSyncTransactions_MalformedRecordsSkipped(t *testing.T) {
	date := time.Now().AddDate(0, 0, -2)
	c := &fakeClient{
		getTransactions: singlePage(
			rawTx("", "acct-1", -10, date, "NO PROVIDER ID"),
			rawTx("p-ok", "acct-1", -10, date, "FINE RECORD"),
			rawTx("p-nodate", "acct-1", -10, time.Time{}, "NO DATE"),
		),
	}
	store := ledger.NewMemoryStore()
	e := newTestEngine(c, store, grantedGate("user-1"))

	result, err := e.SyncTransactions(context.Background(), "user-1", "cred",
		[]string{"acct-1"}, jobs.SyncIncremental, nil)
	if err != nil {
		t.Fatalf("SyncTransactions() error = %v", err)
	}

	if result.TransactionsProcessed != 1 || result.TransactionsAdded != 1 {
		t.Errorf("processed/added = %d/%d, want 1/1", result.TransactionsProcessed, result.TransactionsAdded)
	}
	if store.Len() != 1 {
		t.Errorf("store holds %d records, want 1", store.Len())
	}
	// Data-level problems never fail the account.
	if result.AccountsFailed != 0 {
		t.Errorf("AccountsFailed = %d, want 0", result.AccountsFailed)
	}
}

func TestSyncTransactions_ProgressReported(t *testing.T) {
	date := time.Now().AddDate(0, 0, -2)
	c := &fakeClient{
		getTransactions: singlePage(rawTx("p1", "acct-1", -10, date, "X")),
	}
	e := newTestEngine(c, ledger.NewMemoryStore(), grantedGate("user-1"))

	var updates []int
	_, err := e.SyncTransactions(context.Background(), "user-1", "cred",
		[]string{"acct-1"}, jobs.SyncIncremental, func(pct int, step string) {
			updates = append(updates, pct)
		})
	if err != nil {
		t.Fatalf("SyncTransactions() error = %v", err)
	}
	if len(updates) == 0 || updates[len(updates)-1] != 100 {
		t.Errorf("progress updates = %v, want final 100", updates)
	}
}

func TestSyncTransactions_IncrementalUsesWatermark(t *testing.T) {
	date := time.Now().AddDate(0, 0, -1)
	var starts []time.Time
	c := &fakeClient{
		getTransactions: func(ctx context.Context, token string, r provider.DateRange, accountID, cursor string) (provider.Page, error) {
			starts = append(starts, r.Start)
			return provider.Page{Transactions: []provider.RawTransaction{
				rawTx("p1", accountID, -10, date, "X"),
			}}, nil
		},
	}
	e := newTestEngine(c, ledger.NewMemoryStore(), grantedGate("user-1"))

	ctx := context.Background()
	if _, err := e.SyncTransactions(ctx, "user-1", "cred", []string{"acct-1"}, jobs.SyncIncremental, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := e.SyncTransactions(ctx, "user-1", "cred", []string{"acct-1"}, jobs.SyncIncremental, nil); err != nil {
		t.Fatal(err)
	}

	if len(starts) != 2 {
		t.Fatalf("provider called %d times, want 2", len(starts))
	}
	// First sync covers the history window; the second starts at the first's
	// completion watermark.
	if !starts[1].After(starts[0]) {
		t.Errorf("second start %v not after first %v", starts[1], starts[0])
	}
	if time.Since(starts[1]) > time.Minute {
		t.Errorf("second start %v, want recent watermark", starts[1])
	}
}

func TestSyncAccounts(t *testing.T) {
	c := &fakeClient{
		getAccounts: func(ctx context.Context, token string) ([]provider.RawAccount, error) {
			return []provider.RawAccount{
				{ProviderAccountID: "acct-1", Name: "Checking", Balance: 1200.55, Currency: "USD"},
				{ProviderAccountID: "acct-2", Name: "Savings", Balance: 9000.00, Currency: "USD"},
			}, nil
		},
	}
	e := newTestEngine(c, ledger.NewMemoryStore(), grantedGate("user-1"))

	result, err := e.SyncAccounts(context.Background(), "user-1", "cred")
	if err != nil {
		t.Fatalf("SyncAccounts() error = %v", err)
	}
	if !result.Success || result.AccountsSucceeded != 2 {
		t.Errorf("result = %+v, want two accounts succeeded", result)
	}
}

func TestSyncAccounts_AuthErrorFlagsReauth(t *testing.T) {
	c := &fakeClient{
		getAccounts: func(ctx context.Context, token string) ([]provider.RawAccount, error) {
			return nil, &provider.AuthError{Reason: "token expired"}
		},
	}
	e := newTestEngine(c, ledger.NewMemoryStore(), grantedGate("user-1"))

	result, err := e.SyncAccounts(context.Background(), "user-1", "cred")
	if err == nil {
		t.Fatal("expected error")
	}
	if result.Success {
		t.Error("Success = true, want false")
	}
	if want := "re-authentication required"; !strings.Contains(result.Error, want) {
		t.Errorf("Error = %q, want mention of %q", result.Error, want)
	}
	if result.RetryAttempts != 0 {
		t.Errorf("RetryAttempts = %d, auth errors must not be retried", result.RetryAttempts)
	}
}
