package engine

import (
	"time"
)

// ActivitySummary describes recent activity on one account, supplied by the
// caller that schedules periodic syncs.
type ActivitySummary struct {
	TransactionsPerDay float64
	LastTransaction    time.Time
}

// Sync frequency bounds. These are scheduling hints consumed by the caller;
// the engine itself never enforces them.
const (
	highActivityInterval = 15 * time.Minute
	normalInterval       = time.Hour
	lowActivityInterval  = 4 * time.Hour

	highActivityTxPerDay = 5
	quietDays            = 3
)

// OptimalSyncFrequency recommends how often an account is worth syncing:
// high-activity accounts every 15 minutes, quiet accounts no more than every
// 4 hours, everything else hourly.
func OptimalSyncFrequency(a ActivitySummary) time.Duration {
	now := time.Now()
	if a.TransactionsPerDay >= highActivityTxPerDay ||
		(!a.LastTransaction.IsZero() && now.Sub(a.LastTransaction) <= 24*time.Hour) {
		return highActivityInterval
	}
	if a.LastTransaction.IsZero() || now.Sub(a.LastTransaction) > quietDays*24*time.Hour {
		return lowActivityInterval
	}
	return normalInterval
}
