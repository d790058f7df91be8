package transform

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dvloznov/ledger-sync/internal/domain"
)

// ConditionField names a transaction field a rule condition can inspect.
type ConditionField string

const (
	FieldDescription ConditionField = "description"
	FieldMerchant    ConditionField = "merchant"
	FieldAmount      ConditionField = "amount"
	FieldCategory    ConditionField = "category"
)

// ConditionOp is a comparison operator.
type ConditionOp string

const (
	OpContains   ConditionOp = "contains"
	OpEquals     ConditionOp = "equals"
	OpStartsWith ConditionOp = "starts_with"
	OpEndsWith   ConditionOp = "ends_with"
	OpRegex      ConditionOp = "regex"
	OpGreater    ConditionOp = "gt"
	OpLess       ConditionOp = "lt"
)

// Condition is one predicate of a categorization rule. All conditions of a
// rule must hold for the rule to match.
type Condition struct {
	Field         ConditionField `json:"field"`
	Op            ConditionOp    `json:"op"`
	Value         string         `json:"value"`
	CaseSensitive bool           `json:"case_sensitive,omitempty"`
}

// Evaluate applies the condition to a transaction. Unknown fields or
// operators evaluate false rather than erroring; rules are runtime data and
// a malformed condition must not break categorization.
func (c Condition) Evaluate(tx *domain.Transaction) bool {
	switch c.Field {
	case FieldAmount:
		return c.evaluateNumeric(tx.Amount)
	case FieldDescription:
		return c.evaluateString(tx.Description)
	case FieldMerchant:
		return c.evaluateString(tx.Merchant)
	case FieldCategory:
		return c.evaluateString(tx.Category)
	}
	return false
}

func (c Condition) evaluateString(actual string) bool {
	value := c.Value
	if !c.CaseSensitive {
		actual = strings.ToLower(actual)
		value = strings.ToLower(value)
	}
	switch c.Op {
	case OpContains:
		return strings.Contains(actual, value)
	case OpEquals:
		return actual == value
	case OpStartsWith:
		return strings.HasPrefix(actual, value)
	case OpEndsWith:
		return strings.HasSuffix(actual, value)
	case OpRegex:
		pattern := c.Value
		if !c.CaseSensitive {
			// The actual text was lowercased above; the pattern itself must
			// stay intact, so fold matching inside the engine instead.
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(actual)
	}
	return false
}

func (c Condition) evaluateNumeric(actual float64) bool {
	want, err := strconv.ParseFloat(c.Value, 64)
	if err != nil {
		return false
	}
	switch c.Op {
	case OpEquals:
		return actual == want
	case OpGreater:
		return actual > want
	case OpLess:
		return actual < want
	}
	return false
}

// CategorizationRule assigns a category when all its conditions match.
// Rules are data, not code; they can be added or disabled at runtime.
type CategorizationRule struct {
	ID          string      `json:"id"`
	Name        string      `json:"name,omitempty"`
	Priority    int         `json:"priority"` // higher evaluated first
	Conditions  []Condition `json:"conditions"`
	Category    string      `json:"category"`
	Subcategory string      `json:"subcategory,omitempty"`
	Confidence  float64     `json:"confidence"`
	Enabled     bool        `json:"enabled"`

	MatchCount  int        `json:"match_count"`
	LastMatched *time.Time `json:"last_matched,omitempty"`
}

// Matches reports whether every condition holds.
func (r *CategorizationRule) Matches(tx *domain.Transaction) bool {
	if len(r.Conditions) == 0 {
		return false
	}
	for _, c := range r.Conditions {
		if !c.Evaluate(tx) {
			return false
		}
	}
	return true
}

// RuleSet is the mutable, ordered collection of categorization rules. Safe
// for concurrent use. Evaluation order is priority-descending with
// declaration order preserved on ties, so categorization is deterministic.
type RuleSet struct {
	mu    sync.RWMutex
	rules []*CategorizationRule
	seq   int // preserves declaration order across re-sorts
	order map[string]int
}

// NewRuleSet creates an empty rule set.
func NewRuleSet() *RuleSet {
	return &RuleSet{order: make(map[string]int)}
}

// Add inserts a rule. A missing id is assigned; a missing confidence
// defaults to 0.9.
func (s *RuleSet) Add(rule CategorizationRule) *CategorizationRule {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rule.ID == "" {
		rule.ID = fmt.Sprintf("rule-%d", s.seq+1)
	}
	if rule.Confidence == 0 {
		rule.Confidence = 0.9
	}
	s.seq++
	s.order[rule.ID] = s.seq
	r := &rule
	s.rules = append(s.rules, r)
	s.sortLocked()
	return r
}

// SetEnabled flips a rule on or off. Returns false for an unknown id.
func (s *RuleSet) SetEnabled(id string, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rules {
		if r.ID == id {
			r.Enabled = enabled
			return true
		}
	}
	return false
}

// List returns a snapshot in evaluation order.
func (s *RuleSet) List() []CategorizationRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CategorizationRule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, *r)
	}
	return out
}

func (s *RuleSet) sortLocked() {
	sort.SliceStable(s.rules, func(i, j int) bool {
		if s.rules[i].Priority != s.rules[j].Priority {
			return s.rules[i].Priority > s.rules[j].Priority
		}
		return s.order[s.rules[i].ID] < s.order[s.rules[j].ID]
	})
}

// Categorization is the outcome of rule evaluation for one transaction.
type Categorization struct {
	Category    string
	Subcategory string
	Confidence  float64
	Source      string // "rule:<id>", "heuristic", "fallback"
}

// Categorize evaluates the rule set; at most one rule wins - the
// highest-priority enabled rule whose conditions all hold. Falls back to
// keyword heuristics, then to Other with low confidence.
func (s *RuleSet) Categorize(tx *domain.Transaction) Categorization {
	s.mu.Lock()
	for _, r := range s.rules {
		if !r.Enabled {
			continue
		}
		if r.Matches(tx) {
			r.MatchCount++
			now := time.Now()
			r.LastMatched = &now
			c := Categorization{
				Category:    r.Category,
				Subcategory: r.Subcategory,
				Confidence:  r.Confidence,
				Source:      "rule:" + r.ID,
			}
			s.mu.Unlock()
			return c
		}
	}
	s.mu.Unlock()

	if c, ok := heuristicCategory(tx); ok {
		return c
	}
	return Categorization{Category: "Other", Confidence: 0.2, Source: "fallback"}
}

// Default keyword heuristics applied when no rule matches. Order matters:
// first hit wins, keeping the result deterministic.
var keywordCategories = []struct {
	keyword  string
	category string
}{
	{"grocery", "Groceries"},
	{"supermarket", "Groceries"},
	{"gas", "Transportation"},
	{"fuel", "Transportation"},
	{"uber", "Transportation"},
	{"lyft", "Transportation"},
	{"restaurant", "Dining"},
	{"coffee", "Dining"},
	{"cafe", "Dining"},
	{"pizza", "Dining"},
	{"atm", "Cash"},
	{"withdrawal", "Cash"},
	{"pharmacy", "Health"},
	{"rent", "Housing"},
	{"mortgage", "Housing"},
	{"electric", "Utilities"},
	{"internet", "Utilities"},
	{"payroll", "Income"},
	{"salary", "Income"},
}

func heuristicCategory(tx *domain.Transaction) (Categorization, bool) {
	haystack := strings.ToLower(tx.Description + " " + tx.Merchant)
	for _, kc := range keywordCategories {
		if strings.Contains(haystack, kc.keyword) {
			return Categorization{
				Category:   kc.category,
				Confidence: 0.6,
				Source:     "heuristic",
			}, true
		}
	}
	return Categorization{}, false
}
