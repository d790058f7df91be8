// Package transform enriches one normalized record at a time: description
// cleaning, merchant normalization, categorization, currency conversion,
// location enrichment, and data quality scoring.
package transform

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-sync/internal/domain"
)

// EnrichmentResult records which pipeline steps actually applied to a record
// plus its quality report.
type EnrichmentResult struct {
	Enrichments []string      `json:"enrichments"`
	Quality     QualityReport `json:"quality"`
}

// Transformer runs the enrichment pipeline. Construct one per engine
// instance; it owns its rule set, merchant cache, and rate table, so parallel
// test instances never share hidden state.
type Transformer struct {
	Rules     *RuleSet
	Merchants *MerchantCache
	Rates     *RateTable

	baseCurrency string
	log          zerolog.Logger
	now          func() time.Time
}

// NewTransformer wires an empty pipeline converting into baseCurrency
// (USD when empty).
func NewTransformer(baseCurrency string, log zerolog.Logger) *Transformer {
	if baseCurrency == "" {
		baseCurrency = "USD"
	}
	return &Transformer{
		Rules:        NewRuleSet(),
		Merchants:    NewMerchantCache(),
		Rates:        NewRateTable(),
		baseCurrency: baseCurrency,
		log:          log,
		now:          time.Now,
	}
}

// Transform applies the pipeline steps in order. Each step is independently
// skippable when inapplicable; every applied enrichment is recorded.
func (t *Transformer) Transform(tx domain.Transaction) (domain.Transaction, EnrichmentResult) {
	var result EnrichmentResult

	// 1. Description cleaning.
	if tx.RawDescription == "" {
		tx.RawDescription = tx.Description
	}
	if cleaned := CleanDescription(tx.Description); cleaned != "" && cleaned != tx.Description {
		tx.Description = cleaned
		result.Enrichments = append(result.Enrichments, "description_cleaned")
	}

	// 2. Merchant normalization.
	source := tx.Merchant
	if source == "" {
		source = tx.Description
	}
	if n := t.Merchants.NormalizeMerchant(source); n.Normalized != "" {
		if n.Normalized != tx.Merchant {
			tx.Merchant = n.Normalized
			result.Enrichments = append(result.Enrichments, "merchant_normalized")
		}
		if tx.Category == "" && n.Category != "" {
			tx.Category = n.Category
			tx.CategoryConfidence = n.Confidence
			tx.CategorySource = "merchant"
			result.Enrichments = append(result.Enrichments, "merchant_category")
		}
	}

	// 3. Categorization. User-assigned categories are never recomputed.
	if tx.Category == "" || tx.CategorySource == "fallback" {
		c := t.Rules.Categorize(&tx)
		tx.Category = c.Category
		tx.Subcategory = c.Subcategory
		tx.CategoryConfidence = c.Confidence
		tx.CategorySource = c.Source
		result.Enrichments = append(result.Enrichments, "categorized")
	}

	// 4. Currency conversion. Skipped, not defaulted, when no fresh rate.
	if tx.Currency != "" && tx.Currency != t.baseCurrency {
		if converted, ok := t.Rates.Convert(tx.Amount, tx.Currency, t.baseCurrency); ok {
			tx.BaseAmount = &converted
			tx.BaseCurrency = t.baseCurrency
			result.Enrichments = append(result.Enrichments, "currency_converted")
		} else {
			t.log.Debug().
				Str("currency", tx.Currency).
				Str("base", t.baseCurrency).
				Msg("no fresh exchange rate, conversion skipped")
		}
	}

	// 5. Location enrichment is best-effort: absence of data is not an error.
	if tx.Location != nil && tx.Location.Country == "" && tx.Location.Region != "" {
		if country, ok := regionCountry[tx.Location.Region]; ok {
			tx.Location.Country = country
			result.Enrichments = append(result.Enrichments, "location_enriched")
		}
	}

	result.Quality = ScoreQuality(&tx, t.now())
	tx.QualityScore = result.Quality.Score
	return tx, result
}

// US state and common region codes, used to backfill a missing country.
var regionCountry = map[string]string{
	"CA": "US", "NY": "US", "TX": "US", "WA": "US", "IL": "US", "FL": "US",
	"MA": "US", "OR": "US", "CO": "US", "GA": "US", "PA": "US", "NJ": "US",
	"ON": "CA", "BC": "CA", "QC": "CA",
}
