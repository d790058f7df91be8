// Package bigquery is the warehouse ledger.Store backend. It keeps one row
// per provider transaction id via DML merges, which keeps the engine's upsert
// semantics intact at the cost of per-row latency; use it for analytical
// deployments, not hot-path single-node setups.
package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/ledger-sync/internal/domain"
	"github.com/dvloznov/ledger-sync/internal/ledger"
)

const (
	transactionsTable = "transactions"
	accountsTable     = "accounts"
	dateFormat        = "2006-01-02"
)

// Store implements ledger.Store on a BigQuery dataset.
type Store struct {
	client  *bigquery.Client
	project string
	dataset string
}

var _ ledger.Store = (*Store)(nil)

// NewStore creates a warehouse store for the given project and dataset using
// Application Default Credentials.
func NewStore(ctx context.Context, project, dataset string) (*Store, error) {
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("bigquery client: %w", err)
	}
	return &Store{client: client, project: project, dataset: dataset}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error { return s.client.Close() }

func (s *Store) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", s.project, s.dataset, name)
}

// FindByProviderID implements ledger.Store.
func (s *Store) FindByProviderID(ctx context.Context, providerTxID string) (*domain.Transaction, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT *
		FROM %s
		WHERE provider_tx_id = @provider_tx_id
		LIMIT 1
	`, s.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "provider_tx_id", Value: providerTxID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FindByProviderID: query read: %w", err)
	}

	var r TransactionRow
	err = it.Next(&r)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindByProviderID: iter next: %w", err)
	}
	return r.toDomain(), nil
}

// FindWindow implements ledger.Store.
func (s *Store) FindWindow(ctx context.Context, accountID string, from, to time.Time) ([]*domain.Transaction, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT *
		FROM %s
		WHERE account_id = @account_id
		  AND transaction_date >= @from_date
		  AND transaction_date <= @to_date
		ORDER BY transaction_date, created_ts
	`, s.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "account_id", Value: accountID},
		{Name: "from_date", Value: from.Format(dateFormat)},
		{Name: "to_date", Value: to.Format(dateFormat)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FindWindow: query read: %w", err)
	}

	var out []*domain.Transaction
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("FindWindow: iter next: %w", err)
		}
		out = append(out, r.toDomain())
	}
	return out, nil
}

// Upsert implements ledger.Store. A DML MERGE keyed on provider_tx_id keeps
// re-syncs idempotent; streaming inserts would leave duplicate rows behind.
func (s *Store) Upsert(ctx context.Context, tx *domain.Transaction) error {
	row := rowFromTransaction(tx)

	q := s.client.Query(fmt.Sprintf(`
		MERGE %s t
		USING (SELECT @provider_tx_id AS provider_tx_id) src
		ON t.provider_tx_id = src.provider_tx_id
		WHEN MATCHED THEN UPDATE SET
			amount = @amount,
			currency = @currency,
			transaction_date = @transaction_date,
			base_amount = @base_amount,
			base_currency = @base_currency,
			description = @description,
			raw_description = @raw_description,
			merchant = @merchant,
			category = @category,
			subcategory = @subcategory,
			category_confidence = @category_confidence,
			category_source = @category_source,
			notes = @notes,
			location_city = @location_city,
			location_region = @location_region,
			location_country = @location_country,
			pending = @pending,
			needs_review = @needs_review,
			local_edits = @local_edits,
			quality_score = @quality_score,
			updated_ts = @updated_ts
		WHEN NOT MATCHED THEN INSERT (
			provider_tx_id, transaction_id, user_id, account_id,
			transaction_date, amount, currency, base_amount, base_currency,
			description, raw_description, merchant,
			category, subcategory, category_confidence, category_source,
			notes, location_city, location_region, location_country,
			pending, needs_review, local_edits, quality_score,
			created_ts, updated_ts
		) VALUES (
			@provider_tx_id, @transaction_id, @user_id, @account_id,
			@transaction_date, @amount, @currency, @base_amount, @base_currency,
			@description, @raw_description, @merchant,
			@category, @subcategory, @category_confidence, @category_source,
			@notes, @location_city, @location_region, @location_country,
			@pending, @needs_review, @local_edits, @quality_score,
			@created_ts, @updated_ts
		)
	`, s.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "provider_tx_id", Value: row.ProviderTxID},
		{Name: "transaction_id", Value: row.TransactionID},
		{Name: "user_id", Value: row.UserID},
		{Name: "account_id", Value: row.AccountID},
		{Name: "transaction_date", Value: row.TransactionDate},
		{Name: "amount", Value: row.Amount},
		{Name: "currency", Value: row.Currency},
		{Name: "base_amount", Value: row.BaseAmount},
		{Name: "base_currency", Value: row.BaseCurrency},
		{Name: "description", Value: row.Description},
		{Name: "raw_description", Value: row.RawDescription},
		{Name: "merchant", Value: row.Merchant},
		{Name: "category", Value: row.Category},
		{Name: "subcategory", Value: row.Subcategory},
		{Name: "category_confidence", Value: row.CategoryConfidence},
		{Name: "category_source", Value: row.CategorySource},
		{Name: "notes", Value: row.Notes},
		{Name: "location_city", Value: row.LocationCity},
		{Name: "location_region", Value: row.LocationRegion},
		{Name: "location_country", Value: row.LocationCountry},
		{Name: "pending", Value: row.Pending},
		{Name: "needs_review", Value: row.NeedsReview},
		{Name: "local_edits", Value: row.LocalEdits},
		{Name: "quality_score", Value: row.QualityScore},
		{Name: "created_ts", Value: row.CreatedTS},
		{Name: "updated_ts", Value: row.UpdatedTS},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("Upsert: run merge: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("Upsert: wait merge: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("Upsert: merge failed: %w", err)
	}
	return nil
}

// UpsertAccount implements ledger.Store.
func (s *Store) UpsertAccount(ctx context.Context, acct *domain.Account) error {
	q := s.client.Query(fmt.Sprintf(`
		MERGE %s a
		USING (SELECT @provider_account_id AS provider_account_id) src
		ON a.provider_account_id = src.provider_account_id
		WHEN MATCHED THEN UPDATE SET
			name = @name,
			type = @type,
			mask = @mask,
			balance = @balance,
			currency = @currency,
			last_synced = @last_synced,
			updated_ts = @updated_ts
		WHEN NOT MATCHED THEN INSERT (
			provider_account_id, account_id, user_id, name, type, mask,
			balance, currency, last_synced, updated_ts
		) VALUES (
			@provider_account_id, @account_id, @user_id, @name, @type, @mask,
			@balance, @currency, @last_synced, @updated_ts
		)
	`, s.table(accountsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "provider_account_id", Value: acct.ProviderAccountID},
		{Name: "account_id", Value: acct.ID},
		{Name: "user_id", Value: acct.UserID},
		{Name: "name", Value: acct.Name},
		{Name: "type", Value: nullString(acct.Type)},
		{Name: "mask", Value: nullString(acct.Mask)},
		{Name: "balance", Value: acct.Balance},
		{Name: "currency", Value: acct.Currency},
		{Name: "last_synced", Value: acct.LastSynced},
		{Name: "updated_ts", Value: acct.UpdatedAt},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("UpsertAccount: run merge: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("UpsertAccount: wait merge: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("UpsertAccount: merge failed: %w", err)
	}
	return nil
}
