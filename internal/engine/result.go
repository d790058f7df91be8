package engine

// PartialFailure records one account whose fetch failed while the rest of
// the job carried on.
type PartialFailure struct {
	AccountID string `json:"account_id"`
	Stage     string `json:"stage"` // "accounts" or "transactions"
	Error     string `json:"error"`
}

// SyncResult is the observable outcome of one sync job. Success stays true
// as long as at least one account succeeded; complete failure means every
// account in scope failed or a non-recoverable top-level error occurred
// before any account was attempted.
type SyncResult struct {
	Success bool `json:"success"`

	AccountsProcessed int `json:"accounts_processed"`
	AccountsSucceeded int `json:"accounts_succeeded"`
	AccountsFailed    int `json:"accounts_failed"`

	TransactionsProcessed int `json:"transactions_processed"`
	TransactionsAdded     int `json:"transactions_added"`
	TransactionsUpdated   int `json:"transactions_updated"`
	DuplicatesDetected    int `json:"duplicates_detected"`
	BatchesProcessed      int `json:"batches_processed"`

	RetryAttempts   int              `json:"retry_attempts"`
	PartialFailures []PartialFailure `json:"partial_failures"`

	Error string `json:"error,omitempty"`
}
