package transform

import (
	"strings"
	"time"

	"github.com/dvloznov/ledger-sync/internal/domain"
	"github.com/dvloznov/ledger-sync/internal/similarity"
)

// Severity grades a quality issue.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// QualityIssue is one detected problem with a record.
type QualityIssue struct {
	Field       string   `json:"field"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	AutoFixable bool     `json:"auto_fixable"`
}

// QualityReport combines the four sub-scores into one 0-1 score.
type QualityReport struct {
	Score        float64        `json:"score"`
	Completeness float64        `json:"completeness"`
	Accuracy     float64        `json:"accuracy"`
	Consistency  float64        `json:"consistency"`
	Timeliness   float64        `json:"timeliness"`
	Issues       []QualityIssue `json:"issues,omitempty"`
}

const (
	staleAfterDays        = 90
	consistencySimilarity = 0.3 // merchant should appear somewhere in the description
)

// ScoreQuality computes the data quality score for one record. Each sub-score
// starts at 1 and is reduced per issue; the overall score is their mean.
func ScoreQuality(tx *domain.Transaction, now time.Time) QualityReport {
	r := QualityReport{Completeness: 1, Accuracy: 1, Consistency: 1, Timeliness: 1}

	// Completeness: missing description, category, or merchant.
	if tx.Description == "" {
		r.Completeness -= 0.4
		r.Issues = append(r.Issues, QualityIssue{
			Field: "description", Severity: SeverityHigh,
			Description: "description is missing",
		})
	}
	if tx.Category == "" {
		r.Completeness -= 0.3
		r.Issues = append(r.Issues, QualityIssue{
			Field: "category", Severity: SeverityMedium,
			Description: "category is missing", AutoFixable: true,
		})
	}
	if tx.Merchant == "" {
		r.Completeness -= 0.3
		r.Issues = append(r.Issues, QualityIssue{
			Field: "merchant", Severity: SeverityLow,
			Description: "merchant is missing", AutoFixable: true,
		})
	}

	// Accuracy: zero amounts and malformed currency codes.
	if tx.Amount == 0 {
		r.Accuracy -= 0.5
		r.Issues = append(r.Issues, QualityIssue{
			Field: "amount", Severity: SeverityHigh,
			Description: "amount is zero",
		})
	}
	if !ValidCurrencyCode(tx.Currency) {
		r.Accuracy -= 0.5
		r.Issues = append(r.Issues, QualityIssue{
			Field: "currency", Severity: SeverityHigh,
			Description: "currency code is not a valid ISO 4217 code",
		})
	}

	// Consistency: merchant and description should not fully diverge.
	if tx.Merchant != "" && tx.Description != "" {
		if similarity.Ratio(tx.Merchant, tx.Description) < consistencySimilarity &&
			!containsFold(tx.Description, tx.Merchant) {
			r.Consistency -= 0.5
			r.Issues = append(r.Issues, QualityIssue{
				Field: "merchant", Severity: SeverityLow,
				Description: "merchant name diverges from description",
			})
		}
	}

	// Timeliness: very old transactions are less trustworthy for budgeting.
	if !tx.Date.IsZero() && now.Sub(tx.Date) > staleAfterDays*24*time.Hour {
		r.Timeliness -= 0.5
		r.Issues = append(r.Issues, QualityIssue{
			Field: "date", Severity: SeverityLow,
			Description: "transaction is older than 90 days",
		})
	}

	r.Completeness = clamp01(r.Completeness)
	r.Accuracy = clamp01(r.Accuracy)
	r.Consistency = clamp01(r.Consistency)
	r.Timeliness = clamp01(r.Timeliness)
	r.Score = (r.Completeness + r.Accuracy + r.Consistency + r.Timeliness) / 4
	return r
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func containsFold(haystack, needle string) bool {
	h := similarity.NormalizeForComparison(haystack)
	n := similarity.NormalizeForComparison(needle)
	return h != "" && n != "" && strings.Contains(h, n)
}
