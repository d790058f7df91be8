// Package dedup scores an incoming transaction against a window of existing
// records and decides whether it is a duplicate of one of them.
package dedup

import (
	"fmt"
	"math"

	"github.com/dvloznov/ledger-sync/internal/domain"
	"github.com/dvloznov/ledger-sync/internal/similarity"
)

// Action is the recommended handling for a detected duplicate.
type Action string

const (
	ActionMerge        Action = "merge"
	ActionKeepSeparate Action = "keep_separate"
	ActionManualReview Action = "manual_review"
)

// Result is produced once per incoming record and consumed immediately by
// the engine; it is never persisted.
type Result struct {
	TransactionID     string   `json:"transaction_id"`
	DuplicateIDs      []string `json:"duplicate_ids"`
	Confidence        float64  `json:"confidence"`
	Reasons           []string `json:"reasons"`
	RecommendedAction Action   `json:"recommended_action"`
}

// IsDuplicate reports whether any candidate cleared the duplicate threshold.
func (r Result) IsDuplicate() bool { return len(r.DuplicateIDs) > 0 }

// Scoring weights and thresholds. The 70/90 cut-offs reproduce observed
// behavior of the system this engine replaces; they are tunable constants,
// not proven-optimal ones.
const (
	amountPoints      = 40
	datePoints        = 20
	descriptionPoints = 30
	merchantPoints    = 10

	dateWindowDays      = 3
	descriptionSimFloor = 0.8
	merchantSimFloor    = 0.9

	duplicateScore = 70
	mergeScore     = 90
)

// Detector scores candidates. It is stateless and safe for concurrent use.
type Detector struct{}

// NewDetector creates a Detector.
func NewDetector() *Detector { return &Detector{} }

// Detect compares candidate against every record in window. All records that
// clear the duplicate threshold are listed in DuplicateIDs with the
// best-scoring match first; the reported confidence is the maximum over all
// matches.
func (d *Detector) Detect(candidate *domain.Transaction, window []*domain.Transaction) Result {
	result := Result{
		TransactionID:     candidate.ProviderTxID,
		RecommendedAction: ActionKeepSeparate,
	}

	var best, bestIdx int
	for _, existing := range window {
		// The same provider id is an update, not a duplicate; the engine
		// routes that case through conflict resolution before detection.
		if existing.ProviderTxID != "" && existing.ProviderTxID == candidate.ProviderTxID {
			continue
		}

		score, reasons := d.score(candidate, existing)
		if score < duplicateScore {
			continue
		}

		result.DuplicateIDs = append(result.DuplicateIDs, existing.ProviderTxID)
		if score > best {
			best = score
			bestIdx = len(result.DuplicateIDs) - 1
			result.Reasons = reasons
		}
	}

	if bestIdx > 0 {
		ids := result.DuplicateIDs
		ids[0], ids[bestIdx] = ids[bestIdx], ids[0]
	}

	if best == 0 {
		return result
	}

	result.Confidence = float64(best) / 100
	if best >= mergeScore {
		result.RecommendedAction = ActionMerge
	} else {
		result.RecommendedAction = ActionManualReview
	}
	return result
}

func (d *Detector) score(candidate, existing *domain.Transaction) (int, []string) {
	var score int
	var reasons []string

	// Float subtraction puts adjacent cents within any sub-cent epsilon, so
	// amounts are compared as rounded integer cents.
	if cents(candidate.Amount) == cents(existing.Amount) {
		score += amountPoints
		reasons = append(reasons, "amount matches exactly")
	}

	if days := similarity.DaysApart(candidate.Date, existing.Date); days <= dateWindowDays {
		score += datePoints
		reasons = append(reasons, fmt.Sprintf("dates within %d days", dateWindowDays))
	}

	if sim := similarity.Ratio(candidate.Description, existing.Description); sim > descriptionSimFloor {
		score += descriptionPoints
		reasons = append(reasons, fmt.Sprintf("descriptions %.0f%% similar", sim*100))
	}

	if candidate.Merchant != "" && existing.Merchant != "" {
		if sim := similarity.Ratio(candidate.Merchant, existing.Merchant); sim > merchantSimFloor {
			score += merchantPoints
			reasons = append(reasons, "merchant names match")
		}
	}

	return score, reasons
}

func cents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
