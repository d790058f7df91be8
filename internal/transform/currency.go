package transform

import (
	"strings"
	"sync"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// rateTTL is how long a stored exchange rate stays usable. Past this age the
// conversion step is skipped rather than computed on stale data.
const rateTTL = 24 * time.Hour

type rate struct {
	value decimal.Decimal
	at    time.Time
}

// RateTable holds exchange rates against arbitrary currency pairs, safe for
// concurrent use. Rates expire after 24h; a conversion with no fresh rate in
// either direction is reported unavailable, never defaulted to 1:1.
type RateTable struct {
	mu    sync.RWMutex
	rates map[string]rate // "FROM/TO" -> rate
	now   func() time.Time
}

// NewRateTable creates an empty table.
func NewRateTable() *RateTable {
	return &RateTable{rates: make(map[string]rate), now: time.Now}
}

// SetRate records the rate multiplying an amount in `from` to yield `to`.
func (t *RateTable) SetRate(from, to string, value float64) {
	t.SetRateAt(from, to, value, t.now())
}

// SetRateAt records a rate observed at a specific time; tests use it to age
// rates past expiry.
func (t *RateTable) SetRateAt(from, to string, value float64, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rates[pairKey(from, to)] = rate{value: decimal.NewFromFloat(value), at: at}
}

// Convert converts amount from one currency to another. The boolean reports
// whether a conversion was possible: identity conversions always succeed,
// otherwise a rate fresher than 24h must exist in either direction.
func (t *RateTable) Convert(amount float64, from, to string) (float64, bool) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == to {
		return amount, true
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	cutoff := t.now().Add(-rateTTL)
	if r, ok := t.rates[pairKey(from, to)]; ok && r.at.After(cutoff) {
		return decimal.NewFromFloat(amount).Mul(r.value).InexactFloat64(), true
	}
	// Inverse rate is just as fresh as the forward one.
	if r, ok := t.rates[pairKey(to, from)]; ok && r.at.After(cutoff) && !r.value.IsZero() {
		return decimal.NewFromFloat(amount).Div(r.value).InexactFloat64(), true
	}
	return 0, false
}

func pairKey(from, to string) string {
	return strings.ToUpper(from) + "/" + strings.ToUpper(to)
}

// ValidCurrencyCode reports whether code names a real ISO 4217 currency.
func ValidCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	return money.GetCurrency(strings.ToUpper(code)) != nil
}
