// Submission engine.
//
// Each configured platform gets its own bounded priority queue, worker pool,
// and token-bucket rate limiter. Jobs are ordered by tier first and deadline
// second, so tier-1 applications closest to their deadline dispatch first.
//
// Delivery is exactly-once per (application, platform): every retry reuses
// the idempotency key derived from the pair, one attempt row is written per
// try, and a key that already has a delivered attempt short-circuits to
// success without calling the adapter again. Failed tries are re-enqueued on
// an exponential backoff schedule until the retry budget runs out, at which
// point the terminal failure is reported through OnResult.
package services

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/growthengine/opportunity-engine/internal/domain"
	"github.com/growthengine/opportunity-engine/internal/platform"
	"github.com/growthengine/opportunity-engine/internal/repo"
)

var (
	submissionOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submission_attempts_total",
			Help: "Submission attempts by platform and result.",
		},
		[]string{"platform", "result"},
	)
	submissionQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "submission_queue_depth",
			Help: "Jobs waiting in each platform queue.",
		},
		[]string{"platform"},
	)
)

// SubmissionJob is one unit of dispatch work.
type SubmissionJob struct {
	ApplicationID string
	Platform      string
	Tier          int
	Deadline      *time.Time
	Package       platform.Package

	attempt    int
	enqueuedAt time.Time
}

// SubmissionResult is the terminal report for a job, delivered through the
// engine's OnResult callback exactly once per Enqueue.
type SubmissionResult struct {
	ApplicationID string
	Platform      string
	Delivered     bool
	DeliveryID    string
	Attempts      int
	LastError     string
}

// SubmissionEngine owns platform dispatch. Construct with
// NewSubmissionEngine, set OnResult, then Start.
type SubmissionEngine struct {
	// OnResult receives the terminal outcome of every job. Must be set
	// before Start.
	OnResult func(ctx context.Context, res SubmissionResult)

	db       *gorm.DB
	registry *platform.Registry
	policy   RetryPolicy

	mu      sync.Mutex
	queues  map[string]*platformQueue
	timers  map[*time.Timer]struct{}
	stopped bool
	wg      sync.WaitGroup
}

// NewSubmissionEngine builds an engine with one queue per configured
// platform. Queue capacity, worker count, and rate limits come from the
// platform configuration.
func NewSubmissionEngine(db *gorm.DB, cfg *platform.Config, reg *platform.Registry, policy RetryPolicy) *SubmissionEngine {
	e := &SubmissionEngine{
		db:       db,
		registry: reg,
		policy:   policy,
		queues:   make(map[string]*platformQueue, len(cfg.Platforms)),
		timers:   make(map[*time.Timer]struct{}),
	}
	for name, pc := range cfg.Platforms {
		e.queues[name] = newPlatformQueue(name, pc)
	}
	return e
}

// Start launches the per-platform worker pools. Workers run until Stop.
func (e *SubmissionEngine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, q := range e.queues {
		for i := 0; i < q.workers; i++ {
			e.wg.Add(1)
			go e.runWorker(ctx, q)
		}
	}
}

// Stop drains nothing: it wakes every worker, cancels pending retry timers,
// and waits for in-flight deliveries to finish. Jobs still queued are
// abandoned; their attempt rows stay pending and are re-driven on restart.
func (e *SubmissionEngine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	for t := range e.timers {
		t.Stop()
	}
	e.timers = map[*time.Timer]struct{}{}
	for _, q := range e.queues {
		q.close()
	}
	e.mu.Unlock()
	e.wg.Wait()
}

// Enqueue accepts a job for dispatch. A pending attempt row is written
// before the job enters the queue so a crash between the two leaves an
// auditable trail. Returns ErrUnknownPlatform for unconfigured platforms,
// ErrQueueFull when the platform's bounded queue is at capacity, and
// ErrEngineStopped after Stop.
func (e *SubmissionEngine) Enqueue(ctx context.Context, job SubmissionJob) error {
	return e.enqueueAttempt(ctx, job, 1)
}

func (e *SubmissionEngine) enqueueAttempt(ctx context.Context, job SubmissionJob, attempt int) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return ErrEngineStopped
	}
	q, ok := e.queues[job.Platform]
	e.mu.Unlock()
	if !ok {
		return platform.ErrUnknownPlatform
	}

	key := domain.IdempotencyKey(job.ApplicationID, job.Platform)
	row := &domain.SubmissionAttempt{
		ID:             uuid.NewString(),
		ApplicationID:  job.ApplicationID,
		Platform:       job.Platform,
		IdempotencyKey: key,
		Status:         domain.AttemptPending,
		AttemptNumber:  attempt,
	}
	if err := repo.CreateAttempt(ctx, e.db, row); err != nil {
		return fmt.Errorf("create submission attempt: %w", err)
	}

	job.attempt = attempt
	job.enqueuedAt = time.Now().UTC()
	if !q.push(queuedJob{job: job, attemptID: row.ID, key: key}) {
		return ErrQueueFull
	}
	submissionQueueDepth.WithLabelValues(job.Platform).Inc()
	return nil
}

func (e *SubmissionEngine) runWorker(ctx context.Context, q *platformQueue) {
	defer e.wg.Done()
	for {
		qj, ok := q.pop()
		if !ok {
			return
		}
		submissionQueueDepth.WithLabelValues(q.name).Dec()
		e.dispatch(ctx, q, qj)
	}
}

// dispatch performs one delivery try and decides between success, scheduled
// retry, and terminal failure.
func (e *SubmissionEngine) dispatch(ctx context.Context, q *platformQueue, qj queuedJob) {
	job := qj.job

	// Deadline gate: a job whose opportunity closed while queued is expired,
	// not retried.
	if job.Deadline != nil && time.Now().After(*job.Deadline) {
		_ = repo.MarkAttemptExpired(ctx, e.db, qj.attemptID, "opportunity deadline passed")
		submissionOutcomes.WithLabelValues(q.name, "expired").Inc()
		e.report(ctx, SubmissionResult{
			ApplicationID: job.ApplicationID,
			Platform:      job.Platform,
			Attempts:      job.attempt,
			LastError:     "opportunity deadline passed",
		})
		return
	}

	// Exactly-once guard: a previous try may have delivered after we lost
	// its response. Collapse to success without touching the adapter.
	if n, err := repo.CountDeliveredByKey(ctx, e.db, qj.key); err == nil && n > 0 {
		_ = repo.MarkAttemptDelivered(ctx, e.db, qj.attemptID, "duplicate-of-delivered")
		submissionOutcomes.WithLabelValues(q.name, "deduplicated").Inc()
		e.report(ctx, SubmissionResult{
			ApplicationID: job.ApplicationID,
			Platform:      job.Platform,
			Delivered:     true,
			Attempts:      job.attempt,
		})
		return
	}

	if err := q.limiter.Wait(ctx); err != nil {
		// Shutdown mid-wait; leave the attempt pending for restart.
		return
	}

	adapter, err := e.registry.Get(job.Platform)
	if err != nil {
		e.fail(ctx, qj, err)
		return
	}

	_ = repo.MarkAttemptInFlight(ctx, e.db, qj.attemptID)
	deliveryID, err := adapter.Deliver(ctx, job.Package, qj.key)
	if err != nil {
		e.fail(ctx, qj, err)
		return
	}

	if err := repo.MarkAttemptDelivered(ctx, e.db, qj.attemptID, deliveryID); err != nil {
		log.Error().Err(err).Str("attempt_id", qj.attemptID).Msg("record delivery")
	}
	submissionOutcomes.WithLabelValues(q.name, "delivered").Inc()
	e.report(ctx, SubmissionResult{
		ApplicationID: job.ApplicationID,
		Platform:      job.Platform,
		Delivered:     true,
		DeliveryID:    deliveryID,
		Attempts:      job.attempt,
	})
}

// fail records the failed try and either schedules the next one or reports
// the terminal failure.
func (e *SubmissionEngine) fail(ctx context.Context, qj queuedJob, cause error) {
	job := qj.job
	if e.policy.Exhausted(job.attempt) {
		_ = repo.MarkAttemptFailed(ctx, e.db, qj.attemptID, cause.Error(), nil)
		submissionOutcomes.WithLabelValues(job.Platform, "failed").Inc()
		e.report(ctx, SubmissionResult{
			ApplicationID: job.ApplicationID,
			Platform:      job.Platform,
			Attempts:      job.attempt,
			LastError:     cause.Error(),
		})
		return
	}

	delay := e.policy.Backoff(job.attempt)
	next := time.Now().UTC().Add(delay)
	_ = repo.MarkAttemptFailed(ctx, e.db, qj.attemptID, cause.Error(), &next)
	submissionOutcomes.WithLabelValues(job.Platform, "retried").Inc()
	log.Warn().
		Err(cause).
		Str("application_id", job.ApplicationID).
		Str("platform", job.Platform).
		Int("attempt", job.attempt).
		Dur("backoff", delay).
		Msg("submission failed, retry scheduled")

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		e.mu.Lock()
		delete(e.timers, timer)
		e.mu.Unlock()
		if err := e.enqueueAttempt(context.Background(), job, job.attempt+1); err != nil {
			log.Error().Err(err).
				Str("application_id", job.ApplicationID).
				Msg("re-enqueue after backoff")
			e.report(context.Background(), SubmissionResult{
				ApplicationID: job.ApplicationID,
				Platform:      job.Platform,
				Attempts:      job.attempt,
				LastError:     cause.Error(),
			})
		}
	})
	e.timers[timer] = struct{}{}
	e.mu.Unlock()
}

func (e *SubmissionEngine) report(ctx context.Context, res SubmissionResult) {
	if e.OnResult != nil {
		e.OnResult(ctx, res)
	}
}

// queuedJob pairs a job with its pending attempt row.
type queuedJob struct {
	job       SubmissionJob
	attemptID string
	key       string
}

// platformQueue is a bounded priority queue with blocking pop. Ordering:
// lower tier first, earlier deadline second (nil deadlines last), FIFO on
// ties.
type platformQueue struct {
	name     string
	workers  int
	capacity int
	limiter  *rate.Limiter

	mu     sync.Mutex
	cond   *sync.Cond
	items  jobHeap
	closed bool
}

func newPlatformQueue(name string, pc platform.PlatformConfig) *platformQueue {
	q := &platformQueue{
		name:     name,
		workers:  pc.Workers,
		capacity: pc.QueueCapacity,
		limiter:  rate.NewLimiter(rate.Limit(pc.RatePerMinute/60.0), pc.Burst),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *platformQueue) push(qj queuedJob) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || len(q.items) >= q.capacity {
		return false
	}
	heap.Push(&q.items, qj)
	q.cond.Signal()
	return true
}

func (q *platformQueue) pop() (queuedJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return queuedJob{}, false
	}
	return heap.Pop(&q.items).(queuedJob), true
}

func (q *platformQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

type jobHeap []queuedJob

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	a, b := h[i].job, h[j].job
	if a.Tier != b.Tier {
		return a.Tier < b.Tier
	}
	switch {
	case a.Deadline != nil && b.Deadline != nil && !a.Deadline.Equal(*b.Deadline):
		return a.Deadline.Before(*b.Deadline)
	case a.Deadline != nil && b.Deadline == nil:
		return true
	case a.Deadline == nil && b.Deadline != nil:
		return false
	}
	return a.enqueuedAt.Before(b.enqueuedAt)
}

func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x any) { *h = append(*h, x.(queuedJob)) }

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
