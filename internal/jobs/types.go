// Package jobs models sync work: the SyncJob entity and the priority queue
// that throttles it against rate-limited providers.
package jobs

import (
	"time"
)

// SyncType selects how much of an item's history a job covers.
type SyncType string

const (
	SyncFull             SyncType = "full"
	SyncIncremental      SyncType = "incremental"
	SyncBalancesOnly     SyncType = "balances_only"
	SyncTransactionsOnly SyncType = "transactions_only"
)

// Valid reports whether t is a known sync type.
func (t SyncType) Valid() bool {
	switch t {
	case SyncFull, SyncIncremental, SyncBalancesOnly, SyncTransactionsOnly:
		return true
	}
	return false
}

// Priority orders jobs in the queue. Higher values are admitted first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	}
	return "unknown"
}

// Status is the job lifecycle state. Jobs are owned exclusively by the queue;
// observers only ever see copies.
type Status string

const (
	StatusPending   Status = "pending"
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusRetrying  Status = "retrying"
)

// Counts aggregates per-job processing counters, updated by the engine and
// copied into the job on completion.
type Counts struct {
	AccountsProcessed     int `json:"accounts_processed"`
	AccountsSucceeded     int `json:"accounts_succeeded"`
	AccountsFailed        int `json:"accounts_failed"`
	TransactionsProcessed int `json:"transactions_processed"`
	TransactionsAdded     int `json:"transactions_added"`
	TransactionsUpdated   int `json:"transactions_updated"`
	DuplicatesDetected    int `json:"duplicates_detected"`
	BatchesProcessed      int `json:"batches_processed"`
}

// Progress is the observable state of a running job.
type Progress struct {
	Percentage  int    `json:"percentage"`
	CurrentStep string `json:"current_step"`
}

// SyncJob is the unit of sync work.
type SyncJob struct {
	ID       string   `json:"id"`
	UserID   string   `json:"user_id"`
	Provider string   `json:"provider"`
	Type     SyncType `json:"type"`
	Priority Priority `json:"priority"`
	Status   Status   `json:"status"`

	// AccountIDs scopes the job; empty means every account of the user.
	AccountIDs []string `json:"account_ids,omitempty"`

	// CredentialsRef names the access token to use; the queue never holds
	// the credential itself.
	CredentialsRef string `json:"credentials_ref"`

	ScheduledAt time.Time  `json:"scheduled_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Counts Counts `json:"counts"`

	RetryCount int    `json:"retry_count"`
	MaxRetries int    `json:"max_retries"`
	LastError  string `json:"last_error,omitempty"`

	// seq is the insertion sequence, the final FIFO tie-breaker. Retries
	// get a fresh sequence at their new scheduling time.
	seq uint64
}

// overlaps reports whether two jobs may not run concurrently: same user and
// intersecting account scope. An empty scope covers all of a user's accounts.
func (j *SyncJob) overlaps(other *SyncJob) bool {
	if j.UserID != other.UserID {
		return false
	}
	if len(j.AccountIDs) == 0 || len(other.AccountIDs) == 0 {
		return true
	}
	for _, a := range j.AccountIDs {
		for _, b := range other.AccountIDs {
			if a == b {
				return true
			}
		}
	}
	return false
}
