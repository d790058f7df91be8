package dedup

import (
	"testing"
	"time"

	"github.com/dvloznov/ledger-sync/internal/domain"
)

func tx(id string, amount float64, date time.Time, desc, merchant string) *domain.Transaction {
	return &domain.Transaction{
		ProviderTxID: id,
		AccountID:    "acct-1",
		Amount:       amount,
		Date:         date,
		Description:  desc,
		Merchant:     merchant,
	}
}

func TestDetect_StrongMatchRecommendsMerge(t *testing.T) {
	d := NewDetector()
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	// Same amount (40), one day apart (20), near-identical description (30):
	// 90 points, merge territory.
	existing := tx("prov-1", -45.67, date, "STARBUCKS STORE #12345", "")
	candidate := tx("prov-2", -45.67, date.AddDate(0, 0, 1), "STARBUCKS STORE 12345", "")

	res := d.Detect(candidate, []*domain.Transaction{existing})

	if !res.IsDuplicate() {
		t.Fatal("expected duplicate, got none")
	}
	if len(res.DuplicateIDs) != 1 || res.DuplicateIDs[0] != "prov-1" {
		t.Errorf("DuplicateIDs = %v, want [prov-1]", res.DuplicateIDs)
	}
	if res.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9", res.Confidence)
	}
	if res.RecommendedAction != ActionMerge {
		t.Errorf("RecommendedAction = %q, want %q", res.RecommendedAction, ActionMerge)
	}
	if len(res.Reasons) != 3 {
		t.Errorf("Reasons = %v, want 3 entries", res.Reasons)
	}
}

func TestDetect_MidScoreRecommendsManualReview(t *testing.T) {
	d := NewDetector()
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	// Same amount (40), within window (20), descriptions too different for the
	// 30: 60 points would miss the threshold, so give merchant agreement (10)
	// via very close descriptions instead: amount + date + merchant = 70.
	existing := tx("prov-1", -45.67, date, "COFFEE PURCHASE DOWNTOWN", "Starbucks")
	candidate := tx("prov-2", -45.67, date.AddDate(0, 0, 2), "SBUX ORDER 991", "Starbucks")

	res := d.Detect(candidate, []*domain.Transaction{existing})

	if !res.IsDuplicate() {
		t.Fatal("expected duplicate at exactly the threshold")
	}
	if res.RecommendedAction != ActionManualReview {
		t.Errorf("RecommendedAction = %q, want %q", res.RecommendedAction, ActionManualReview)
	}
	if res.Confidence != 0.7 {
		t.Errorf("Confidence = %v, want 0.7", res.Confidence)
	}
}

func TestDetect_BelowThresholdKeepsSeparate(t *testing.T) {
	d := NewDetector()
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	// Amount match only: 40 points.
	existing := tx("prov-1", -45.67, date.AddDate(0, 0, 10), "SHELL OIL 5541", "")
	candidate := tx("prov-2", -45.67, date, "STARBUCKS STORE", "")

	res := d.Detect(candidate, []*domain.Transaction{existing})

	if res.IsDuplicate() {
		t.Fatalf("expected no duplicate, got %v", res.DuplicateIDs)
	}
	if res.RecommendedAction != ActionKeepSeparate {
		t.Errorf("RecommendedAction = %q, want %q", res.RecommendedAction, ActionKeepSeparate)
	}
	if res.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", res.Confidence)
	}
}

func TestDetect_SameProviderIDIsNotADuplicate(t *testing.T) {
	d := NewDetector()
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	existing := tx("prov-1", -45.67, date, "STARBUCKS STORE", "")
	candidate := tx("prov-1", -45.67, date, "STARBUCKS STORE", "")

	res := d.Detect(candidate, []*domain.Transaction{existing})
	if res.IsDuplicate() {
		t.Error("identical provider id must be treated as an update, not a duplicate")
	}
}

func TestDetect_ListsEveryMatchAboveThreshold(t *testing.T) {
	d := NewDetector()
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	window := []*domain.Transaction{
		tx("prov-1", -45.67, date, "STARBUCKS STORE #12345", ""),
		tx("prov-2", -45.67, date.AddDate(0, 0, 1), "STARBUCKS STORE #12346", ""),
		tx("prov-3", -99.99, date.AddDate(0, 0, 20), "UNRELATED VENDOR", ""),
	}
	candidate := tx("prov-new", -45.67, date, "STARBUCKS STORE 12345", "")

	res := d.Detect(candidate, window)
	if len(res.DuplicateIDs) != 2 {
		t.Fatalf("DuplicateIDs = %v, want two matches", res.DuplicateIDs)
	}
}

func TestDetect_BestMatchListedFirst(t *testing.T) {
	d := NewDetector()
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	// prov-1 scores 70 (amount + date + merchant), prov-2 scores 90 (amount +
	// date + description). The stronger match must lead the list even though
	// it appears later in the window.
	window := []*domain.Transaction{
		tx("prov-1", -45.67, date, "COFFEE PURCHASE DOWNTOWN", "Starbucks"),
		tx("prov-2", -45.67, date.AddDate(0, 0, 1), "STARBUCKS STORE #12345", ""),
	}
	candidate := tx("prov-new", -45.67, date, "STARBUCKS STORE 12345", "Starbucks")

	res := d.Detect(candidate, window)
	if len(res.DuplicateIDs) != 2 {
		t.Fatalf("DuplicateIDs = %v, want two matches", res.DuplicateIDs)
	}
	if res.DuplicateIDs[0] != "prov-2" {
		t.Errorf("DuplicateIDs[0] = %q, want the 90-point match prov-2", res.DuplicateIDs[0])
	}
	if res.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want the best score 0.9", res.Confidence)
	}
}

func TestDetect_AmountToleranceIsStrict(t *testing.T) {
	d := NewDetector()
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	// One cent apart is outside the tolerance; score drops to 50 and no
	// duplicate is flagged.
	existing := tx("prov-1", -45.67, date, "STARBUCKS STORE #12345", "")
	candidate := tx("prov-2", -45.68, date, "STARBUCKS STORE 12345", "")

	res := d.Detect(candidate, []*domain.Transaction{existing})
	if res.IsDuplicate() {
		t.Errorf("amounts a cent apart should not match, got %v", res.DuplicateIDs)
	}

	// Sub-cent float representation noise must still count as the same amount.
	noisy := tx("prov-3", -45.67000000000001, date, "STARBUCKS STORE 12345", "")
	res = d.Detect(noisy, []*domain.Transaction{existing})
	if !res.IsDuplicate() {
		t.Error("float noise below a cent should still match the amount")
	}
}
