package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/dvloznov/ledger-sync/internal/domain"
)

// TransactionRow is the warehouse shape of a normalized transaction.
type TransactionRow struct {
	ProviderTxID string `bigquery:"provider_tx_id"` // REQUIRED

	TransactionID string `bigquery:"transaction_id"`
	UserID        string `bigquery:"user_id"`
	AccountID     string `bigquery:"account_id"`

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED

	Amount   float64 `bigquery:"amount"`
	Currency string  `bigquery:"currency"`

	BaseAmount   bigquery.NullFloat64 `bigquery:"base_amount"`
	BaseCurrency bigquery.NullString  `bigquery:"base_currency"`

	Description    string              `bigquery:"description"`
	RawDescription string              `bigquery:"raw_description"`
	Merchant       bigquery.NullString `bigquery:"merchant"`

	Category           bigquery.NullString `bigquery:"category"`
	Subcategory        bigquery.NullString `bigquery:"subcategory"`
	CategoryConfidence float64             `bigquery:"category_confidence"`
	CategorySource     bigquery.NullString `bigquery:"category_source"`

	Notes bigquery.NullString `bigquery:"notes"`

	LocationCity    bigquery.NullString `bigquery:"location_city"`
	LocationRegion  bigquery.NullString `bigquery:"location_region"`
	LocationCountry bigquery.NullString `bigquery:"location_country"`

	Pending     bool `bigquery:"pending"`
	NeedsReview bool `bigquery:"needs_review"`

	LocalEdits []string `bigquery:"local_edits"` // REPEATED STRING

	QualityScore float64 `bigquery:"quality_score"`

	CreatedTS time.Time `bigquery:"created_ts"`
	UpdatedTS time.Time `bigquery:"updated_ts"`
}

// AccountRow is the warehouse shape of a normalized account.
type AccountRow struct {
	ProviderAccountID string `bigquery:"provider_account_id"` // REQUIRED

	AccountID string `bigquery:"account_id"`
	UserID    string `bigquery:"user_id"`

	Name     string              `bigquery:"name"`
	Type     bigquery.NullString `bigquery:"type"`
	Mask     bigquery.NullString `bigquery:"mask"`
	Balance  float64             `bigquery:"balance"`
	Currency string              `bigquery:"currency"`

	LastSynced time.Time `bigquery:"last_synced"`
	UpdatedTS  time.Time `bigquery:"updated_ts"`
}

func rowFromTransaction(tx *domain.Transaction) *TransactionRow {
	r := &TransactionRow{
		ProviderTxID:       tx.ProviderTxID,
		TransactionID:      tx.ID,
		UserID:             tx.UserID,
		AccountID:          tx.AccountID,
		TransactionDate:    civil.DateOf(tx.Date),
		Amount:             tx.Amount,
		Currency:           tx.Currency,
		BaseCurrency:       nullString(tx.BaseCurrency),
		Description:        tx.Description,
		RawDescription:     tx.RawDescription,
		Merchant:           nullString(tx.Merchant),
		Category:           nullString(tx.Category),
		Subcategory:        nullString(tx.Subcategory),
		CategoryConfidence: tx.CategoryConfidence,
		CategorySource:     nullString(tx.CategorySource),
		Notes:              nullString(tx.Notes),
		Pending:            tx.Pending,
		NeedsReview:        tx.NeedsReview,
		LocalEdits:         tx.LocalEdits,
		QualityScore:       tx.QualityScore,
		CreatedTS:          tx.CreatedAt,
		UpdatedTS:          tx.UpdatedAt,
	}
	if tx.BaseAmount != nil {
		r.BaseAmount = bigquery.NullFloat64{Float64: *tx.BaseAmount, Valid: true}
	}
	if tx.Location != nil {
		r.LocationCity = nullString(tx.Location.City)
		r.LocationRegion = nullString(tx.Location.Region)
		r.LocationCountry = nullString(tx.Location.Country)
	}
	return r
}

func (r *TransactionRow) toDomain() *domain.Transaction {
	tx := &domain.Transaction{
		ID:                 r.TransactionID,
		UserID:             r.UserID,
		AccountID:          r.AccountID,
		ProviderTxID:       r.ProviderTxID,
		Amount:             r.Amount,
		Currency:           r.Currency,
		Date:               r.TransactionDate.In(time.UTC),
		BaseCurrency:       r.BaseCurrency.StringVal,
		Description:        r.Description,
		RawDescription:     r.RawDescription,
		Merchant:           r.Merchant.StringVal,
		Category:           r.Category.StringVal,
		Subcategory:        r.Subcategory.StringVal,
		CategoryConfidence: r.CategoryConfidence,
		CategorySource:     r.CategorySource.StringVal,
		Notes:              r.Notes.StringVal,
		Pending:            r.Pending,
		NeedsReview:        r.NeedsReview,
		LocalEdits:         r.LocalEdits,
		QualityScore:       r.QualityScore,
		CreatedAt:          r.CreatedTS,
		UpdatedAt:          r.UpdatedTS,
	}
	if r.BaseAmount.Valid {
		v := r.BaseAmount.Float64
		tx.BaseAmount = &v
	}
	if r.LocationCity.Valid || r.LocationRegion.Valid || r.LocationCountry.Valid {
		tx.Location = &domain.Location{
			City:    r.LocationCity.StringVal,
			Region:  r.LocationRegion.StringVal,
			Country: r.LocationCountry.StringVal,
		}
	}
	return tx
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
