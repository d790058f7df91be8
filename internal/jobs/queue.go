package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-sync/internal/provider"
)

// Runner executes one admitted job. Implementations call the sync engine;
// the returned error decides completion, retry, or failure.
type Runner func(ctx context.Context, job *SyncJob) error

// DefaultConcurrency is the active-set cap when none is configured.
const DefaultConcurrency = 5

// defaultRetryBackoff is the base of the exponential retry backoff
// (base * 2^(retryCount-1)).
const defaultRetryBackoff = 500 * time.Millisecond

// Queue is a priority queue with a bounded active set. Admission always
// prefers strictly higher priority; within a priority level, earlier
// scheduling time wins and insertion order breaks ties, so the ordering is
// stable. A job whose account scope overlaps a running job of the same user
// is deferred until that job finishes.
//
// All queue and job state is guarded by a single mutex; admission and
// completion callbacks never race.
type Queue struct {
	mu       sync.Mutex
	cap      int
	pending  []*SyncJob
	active   map[string]*SyncJob
	all      map[string]*SyncJob
	progress map[string]Progress

	runner  Runner
	log     zerolog.Logger
	backoff time.Duration

	ctx     context.Context
	started bool
	closed  bool
	seq     uint64
	wg      sync.WaitGroup

	now func() time.Time
	// afterFunc is swappable so tests can fire retries synchronously.
	afterFunc func(d time.Duration, f func()) *time.Timer
}

// NewQueue creates a queue draining into runner with the given concurrency
// cap (DefaultConcurrency when <= 0).
func NewQueue(concurrency int, runner Runner, log zerolog.Logger) *Queue {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Queue{
		cap:       concurrency,
		active:    make(map[string]*SyncJob),
		all:       make(map[string]*SyncJob),
		progress:  make(map[string]Progress),
		runner:    runner,
		log:       log,
		backoff:   defaultRetryBackoff,
		now:       time.Now,
		afterFunc: time.AfterFunc,
	}
}

// Start begins admitting jobs. Jobs submitted earlier are admitted now.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx = ctx
	q.started = true
	q.admitLocked()
}

// Stop refuses new work and waits for in-flight jobs to finish or ctx to
// expire.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit enqueues a job and returns its id. The job is admitted immediately
// when a worker slot is free and no running job overlaps its account scope;
// otherwise it waits as queued.
func (q *Queue) Submit(job SyncJob) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return "", fmt.Errorf("queue is closed")
	}
	if job.Type != "" && !job.Type.Valid() {
		return "", fmt.Errorf("unknown sync type %q", job.Type)
	}

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Type == "" {
		job.Type = SyncIncremental
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = 3
	}
	if job.ScheduledAt.IsZero() {
		job.ScheduledAt = q.now()
	}
	job.Status = StatusPending

	q.seq++
	job.seq = q.seq

	j := &job
	q.all[j.ID] = j
	q.insertPendingLocked(j)
	j.Status = StatusQueued
	q.admitLocked()

	q.log.Info().
		Str("job_id", j.ID).
		Str("user_id", j.UserID).
		Str("type", string(j.Type)).
		Str("priority", j.Priority.String()).
		Str("status", string(j.Status)).
		Msg("sync job submitted")
	return j.ID, nil
}

// Status returns a copy of the job, or an error for an unknown id.
func (q *Queue) Status(jobID string) (SyncJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.all[jobID]
	if !ok {
		return SyncJob{}, fmt.Errorf("job not found: %s", jobID)
	}
	return *j, nil
}

// Cancel cancels a job that has not started running. Cancelling a running
// job is not supported; the call returns false rather than silently
// ignoring the request.
func (q *Queue) Cancel(jobID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.all[jobID]
	if !ok {
		return false
	}
	switch j.Status {
	case StatusPending, StatusQueued, StatusRetrying:
	default:
		return false
	}

	j.Status = StatusCancelled
	now := q.now()
	j.CompletedAt = &now
	q.removePendingLocked(jobID)
	q.log.Info().Str("job_id", jobID).Msg("sync job cancelled")
	return true
}

// Snapshot returns the pending jobs in admission order.
func (q *Queue) Snapshot() []SyncJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]SyncJob, 0, len(q.pending))
	for _, j := range q.pending {
		out = append(out, *j)
	}
	return out
}

// Active returns the number of running jobs.
func (q *Queue) Active() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.active)
}

// SetProgress records observable progress for a running job.
func (q *Queue) SetProgress(jobID string, percentage int, step string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.progress[jobID] = Progress{Percentage: percentage, CurrentStep: step}
}

// Progress returns the last reported progress for a job.
func (q *Queue) Progress(jobID string) (Progress, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.all[jobID]; !ok {
		return Progress{}, fmt.Errorf("job not found: %s", jobID)
	}
	return q.progress[jobID], nil
}

// SetCounts copies engine counters onto the job. Runners call this before
// returning.
func (q *Queue) SetCounts(jobID string, counts Counts) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if j, ok := q.all[jobID]; ok {
		j.Counts = counts
	}
}

// insertPendingLocked keeps pending ordered: priority descending, then
// scheduledAt ascending, then insertion sequence. sort.Search keeps the
// insert stable without re-sorting the whole slice.
func (q *Queue) insertPendingLocked(j *SyncJob) {
	idx := sort.Search(len(q.pending), func(i int) bool {
		p := q.pending[i]
		if p.Priority != j.Priority {
			return p.Priority < j.Priority
		}
		if !p.ScheduledAt.Equal(j.ScheduledAt) {
			return p.ScheduledAt.After(j.ScheduledAt)
		}
		return p.seq > j.seq
	})
	q.pending = append(q.pending, nil)
	copy(q.pending[idx+1:], q.pending[idx:])
	q.pending[idx] = j
}

func (q *Queue) removePendingLocked(jobID string) {
	for i, p := range q.pending {
		if p.ID == jobID {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}

// admitLocked fills free worker slots from the head of the pending queue,
// skipping jobs that overlap a running job's account scope.
func (q *Queue) admitLocked() {
	if !q.started || q.closed {
		return
	}
	for len(q.active) < q.cap {
		j := q.nextAdmissibleLocked()
		if j == nil {
			return
		}
		q.removePendingLocked(j.ID)
		q.runLocked(j)
	}
	if len(q.active) > q.cap {
		// Admission beyond the cap is a programming error, not a runtime
		// condition to tolerate.
		panic(fmt.Sprintf("jobs: active set %d exceeds cap %d", len(q.active), q.cap))
	}
}

func (q *Queue) nextAdmissibleLocked() *SyncJob {
	for _, j := range q.pending {
		blocked := false
		for _, a := range q.active {
			if j.overlaps(a) {
				blocked = true
				break
			}
		}
		if !blocked {
			return j
		}
	}
	return nil
}

func (q *Queue) runLocked(j *SyncJob) {
	j.Status = StatusRunning
	now := q.now()
	j.StartedAt = &now
	q.active[j.ID] = j
	q.progress[j.ID] = Progress{Percentage: 0, CurrentStep: "starting"}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		err := q.runner(q.ctx, j)
		q.complete(j, err)
	}()
}

// complete finishes a job and admits the next one. Transient and rate-limit
// failures are retried with exponential backoff until the retry budget is
// exhausted; everything else fails the job immediately.
func (q *Queue) complete(j *SyncJob, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.active, j.ID)
	now := q.now()
	j.CompletedAt = &now

	switch {
	case err == nil:
		j.Status = StatusCompleted
		j.LastError = ""
		q.progress[j.ID] = Progress{Percentage: 100, CurrentStep: "done"}
		q.log.Info().Str("job_id", j.ID).Msg("sync job completed")

	case q.retryable(err) && j.RetryCount < j.MaxRetries:
		j.RetryCount++
		j.Status = StatusRetrying
		j.LastError = err.Error()
		delay := q.retryDelay(j, err)
		q.log.Warn().
			Str("job_id", j.ID).
			Int("retry", j.RetryCount).
			Dur("backoff", delay).
			Err(err).
			Msg("sync job failed, retrying")
		q.afterFunc(delay, func() { q.requeue(j) })

	default:
		j.Status = StatusFailed
		j.LastError = err.Error()
		q.log.Error().Str("job_id", j.ID).Err(err).Msg("sync job failed")
	}

	q.admitLocked()
}

func (q *Queue) retryable(err error) bool {
	if provider.IsTransient(err) {
		return true
	}
	_, limited := provider.IsRateLimited(err)
	return limited
}

// retryDelay is base * 2^(retryCount-1); rate-limited jobs additionally wait
// at least the provider-specified interval and are worth deferring longer.
func (q *Queue) retryDelay(j *SyncJob, err error) time.Duration {
	delay := q.backoff << (j.RetryCount - 1)
	if after, ok := provider.IsRateLimited(err); ok {
		if after < time.Second {
			after = time.Second
		}
		if after > delay {
			delay = after
		}
	}
	return delay
}

// requeue re-inserts a retrying job at its new scheduling time. The job
// keeps its original priority; it never jumps the line on retry.
func (q *Queue) requeue(j *SyncJob) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || j.Status != StatusRetrying {
		return
	}
	j.Status = StatusQueued
	j.ScheduledAt = q.now()
	j.StartedAt = nil
	j.CompletedAt = nil
	q.seq++
	j.seq = q.seq
	q.insertPendingLocked(j)
	q.admitLocked()
}
