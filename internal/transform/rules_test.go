package transform

import (
	"testing"

	"github.com/dvloznov/ledger-sync/internal/domain"
)

func TestConditionEvaluate(t *testing.T) {
	tx := &domain.Transaction{
		Description: "STARBUCKS STORE",
		Merchant:    "Starbucks",
		Amount:      -45.67,
	}

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{"contains case-insensitive", Condition{Field: FieldDescription, Op: OpContains, Value: "starbucks"}, true},
		{"contains case-sensitive miss", Condition{Field: FieldDescription, Op: OpContains, Value: "starbucks", CaseSensitive: true}, false},
		{"equals", Condition{Field: FieldMerchant, Op: OpEquals, Value: "starbucks"}, true},
		{"starts_with", Condition{Field: FieldDescription, Op: OpStartsWith, Value: "STAR"}, true},
		{"ends_with", Condition{Field: FieldDescription, Op: OpEndsWith, Value: "store"}, true},
		{"regex", Condition{Field: FieldDescription, Op: OpRegex, Value: `STAR\w+`}, true},
		{"regex case-sensitive", Condition{Field: FieldDescription, Op: OpRegex, Value: `STAR\w+`, CaseSensitive: true}, true},
		{"regex case-sensitive miss", Condition{Field: FieldDescription, Op: OpRegex, Value: `star\w+`, CaseSensitive: true}, false},
		{"regex invalid evaluates false", Condition{Field: FieldDescription, Op: OpRegex, Value: `(`}, false},
		{"amount less than", Condition{Field: FieldAmount, Op: OpLess, Value: "-10"}, true},
		{"amount greater than", Condition{Field: FieldAmount, Op: OpGreater, Value: "-10"}, false},
		{"amount malformed value", Condition{Field: FieldAmount, Op: OpGreater, Value: "ten"}, false},
		{"unknown field", Condition{Field: "account", Op: OpEquals, Value: "x"}, false},
		{"unknown op", Condition{Field: FieldDescription, Op: "fuzzy", Value: "x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cond.Evaluate(tx); got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCategorize_HighestPriorityRuleWins(t *testing.T) {
	s := NewRuleSet()
	s.Add(CategorizationRule{
		ID: "generic", Priority: 1, Enabled: true,
		Conditions: []Condition{{Field: FieldDescription, Op: OpContains, Value: "coffee"}},
		Category:   "Dining",
	})
	s.Add(CategorizationRule{
		ID: "specific", Priority: 10, Enabled: true,
		Conditions: []Condition{{Field: FieldDescription, Op: OpContains, Value: "coffee"}},
		Category:   "Coffee",
	})

	tx := &domain.Transaction{Description: "BLUE BOTTLE COFFEE"}
	got := s.Categorize(tx)
	if got.Category != "Coffee" {
		t.Errorf("Category = %q, want higher-priority rule's Coffee", got.Category)
	}
	if got.Source != "rule:specific" {
		t.Errorf("Source = %q, want rule:specific", got.Source)
	}
}

func TestCategorize_Deterministic(t *testing.T) {
	s := NewRuleSet()
	// Two rules at the same priority both match; declaration order breaks the
	// tie, every time.
	s.Add(CategorizationRule{
		ID: "first", Priority: 5, Enabled: true,
		Conditions: []Condition{{Field: FieldDescription, Op: OpContains, Value: "market"}},
		Category:   "Groceries",
	})
	s.Add(CategorizationRule{
		ID: "second", Priority: 5, Enabled: true,
		Conditions: []Condition{{Field: FieldDescription, Op: OpContains, Value: "market"}},
		Category:   "Shopping",
	})

	tx := &domain.Transaction{Description: "CENTRAL MARKET"}
	for i := 0; i < 50; i++ {
		if got := s.Categorize(tx); got.Category != "Groceries" {
			t.Fatalf("run %d: Category = %q, want deterministic Groceries", i, got.Category)
		}
	}
}

func TestCategorize_DisabledRuleSkipped(t *testing.T) {
	s := NewRuleSet()
	r := s.Add(CategorizationRule{
		Priority: 10, Enabled: true,
		Conditions: []Condition{{Field: FieldDescription, Op: OpContains, Value: "uber"}},
		Category:   "Rideshare",
	})

	tx := &domain.Transaction{Description: "UBER TRIP 1234"}
	if got := s.Categorize(tx); got.Category != "Rideshare" {
		t.Fatalf("Category = %q, want Rideshare while enabled", got.Category)
	}

	if !s.SetEnabled(r.ID, false) {
		t.Fatal("SetEnabled returned false for known rule")
	}
	got := s.Categorize(tx)
	if got.Category != "Transportation" || got.Source != "heuristic" {
		t.Errorf("got (%q, %q), want heuristic Transportation once rule disabled", got.Category, got.Source)
	}
}

func TestCategorize_FallbackToOther(t *testing.T) {
	s := NewRuleSet()
	tx := &domain.Transaction{Description: "ZZZZZ UNKNOWN VENDOR"}
	got := s.Categorize(tx)
	if got.Category != "Other" || got.Source != "fallback" {
		t.Errorf("got (%q, %q), want fallback Other", got.Category, got.Source)
	}
	if got.Confidence >= 0.5 {
		t.Errorf("Confidence = %v, want low for fallback", got.Confidence)
	}
}

func TestCategorize_TracksMatchCount(t *testing.T) {
	s := NewRuleSet()
	r := s.Add(CategorizationRule{
		Priority: 1, Enabled: true,
		Conditions: []Condition{{Field: FieldMerchant, Op: OpEquals, Value: "netflix"}},
		Category:   "Entertainment",
	})

	tx := &domain.Transaction{Merchant: "Netflix"}
	s.Categorize(tx)
	s.Categorize(tx)

	list := s.List()
	if len(list) != 1 {
		t.Fatalf("List() returned %d rules, want 1", len(list))
	}
	if list[0].MatchCount != 2 {
		t.Errorf("MatchCount = %d, want 2", list[0].MatchCount)
	}
	if list[0].LastMatched == nil {
		t.Error("LastMatched not set")
	}
	_ = r
}

func TestRuleSet_AddDefaults(t *testing.T) {
	s := NewRuleSet()
	r := s.Add(CategorizationRule{
		Conditions: []Condition{{Field: FieldDescription, Op: OpContains, Value: "x"}},
		Category:   "Misc",
	})
	if r.ID == "" {
		t.Error("expected generated id")
	}
	if r.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want default 0.9", r.Confidence)
	}
}

func TestRuleMatches_RequiresAllConditions(t *testing.T) {
	r := CategorizationRule{Conditions: []Condition{
		{Field: FieldDescription, Op: OpContains, Value: "uber"},
		{Field: FieldAmount, Op: OpLess, Value: "0"},
	}}

	if !r.Matches(&domain.Transaction{Description: "UBER TRIP", Amount: -15}) {
		t.Error("all conditions hold, expected match")
	}
	if r.Matches(&domain.Transaction{Description: "UBER TRIP", Amount: 15}) {
		t.Error("one condition fails, expected no match")
	}
	empty := CategorizationRule{}
	if empty.Matches(&domain.Transaction{Description: "anything"}) {
		t.Error("a rule with no conditions must never match")
	}
}
