package engine

import (
	"testing"
	"time"
)

func TestOptimalSyncFrequency(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		a    ActivitySummary
		want time.Duration
	}{
		{
			name: "high volume",
			a:    ActivitySummary{TransactionsPerDay: 8, LastTransaction: now.AddDate(0, 0, -2)},
			want: 15 * time.Minute,
		},
		{
			name: "active within a day",
			a:    ActivitySummary{TransactionsPerDay: 1, LastTransaction: now.Add(-6 * time.Hour)},
			want: 15 * time.Minute,
		},
		{
			name: "moderate",
			a:    ActivitySummary{TransactionsPerDay: 1, LastTransaction: now.AddDate(0, 0, -2)},
			want: time.Hour,
		},
		{
			name: "quiet for over three days",
			a:    ActivitySummary{TransactionsPerDay: 0.1, LastTransaction: now.AddDate(0, 0, -10)},
			want: 4 * time.Hour,
		},
		{
			name: "never seen activity",
			a:    ActivitySummary{},
			want: 4 * time.Hour,
		},
		{
			name: "volume threshold boundary",
			a:    ActivitySummary{TransactionsPerDay: 5, LastTransaction: now.AddDate(0, 0, -2)},
			want: 15 * time.Minute,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OptimalSyncFrequency(tt.a); got != tt.want {
				t.Errorf("OptimalSyncFrequency(%+v) = %v, want %v", tt.a, got, tt.want)
			}
		})
	}
}
