// Package queue implements the in-process job queue behind the feed
// pipeline: delay-scheduled jobs identified by (kind, sid argument),
// revocation by argument match, and a fixed retry budget per job.
// Already-running jobs are never preempted.
package queue

import (
	"context"
	"sync"
	"time"

	"babelfeed/internal/logger"
)

// MaxRetries is how many times a failed job is re-enqueued before being
// dropped, so a job runs at most 1+MaxRetries times.
const MaxRetries = 3

// retryDelay spaces out retry attempts of a failed job.
var retryDelay = 5 * time.Second

type Kind string

// Handler executes one job; the argument is always the target's sid.
type Handler func(ctx context.Context, arg string) error

// Job is one scheduled or pending unit of work.
type Job struct {
	ID       int64
	Kind     Kind
	Arg      string
	RunAt    time.Time
	Attempts int
}

type Queue struct {
	mu       sync.Mutex
	handlers map[Kind]Handler
	jobs     map[int64]*Job
	nextID   int64

	wake   chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup

	workers int
	started bool
}

func New(workers int) *Queue {
	if workers <= 0 {
		workers = 1
	}
	return &Queue{
		handlers: make(map[Kind]Handler),
		jobs:     make(map[int64]*Job),
		wake:     make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		workers:  workers,
	}
}

// Register binds a handler to a job kind. Must be called before Start.
func (q *Queue) Register(kind Kind, handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[kind] = handler
}

// Schedule enqueues a job to run after delay.
func (q *Queue) Schedule(kind Kind, arg string, delay time.Duration) int64 {
	q.mu.Lock()
	q.nextID++
	id := q.nextID
	q.jobs[id] = &Job{
		ID:    id,
		Kind:  kind,
		Arg:   arg,
		RunAt: time.Now().Add(delay),
	}
	q.mu.Unlock()
	q.poke()
	return id
}

// RevokeByArg removes every scheduled and pending job whose argument
// matches. Running jobs continue to completion.
func (q *Queue) RevokeByArg(arg string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	revoked := 0
	for id, job := range q.jobs {
		if job.Arg == arg {
			logger.Info("revoke job", "module", "queue", "action", "revoke", "resource", "job", "result", "ok", "kind", string(job.Kind), "arg", arg)
			delete(q.jobs, id)
			revoked++
		}
	}
	return revoked
}

// Jobs returns a snapshot of all scheduled and pending jobs.
func (q *Queue) Jobs() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		out = append(out, *job)
	}
	return out
}

// HasJob reports whether a job of the given kind and argument is
// scheduled or pending.
func (q *Queue) HasJob(kind Kind, arg string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, job := range q.jobs {
		if job.Kind == kind && job.Arg == arg {
			return true
		}
	}
	return false
}

// Flush discards all scheduled and pending jobs. In-flight jobs finish;
// the startup reconcile re-creates whatever is missing, so flushing on
// shutdown is safe.
func (q *Queue) Flush() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n := len(q.jobs); n > 0 {
		logger.Info("queue flushed", "module", "queue", "action", "flush", "resource", "job", "result", "ok", "count", n)
	}
	q.jobs = make(map[int64]*Job)
}

func (q *Queue) Start() {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	logger.Info("queue started", "module", "queue", "action", "start", "resource", "job", "result", "ok", "workers", q.workers)
}

func (q *Queue) Stop() {
	close(q.stopCh)
	q.wg.Wait()
	logger.Info("queue stopped", "module", "queue", "action", "stop", "resource", "job", "result", "ok")
}

func (q *Queue) poke() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// claimDue removes and returns one due job, or the wait until the next
// job becomes due.
func (q *Queue) claimDue(now time.Time) (*Job, time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	wait := time.Minute
	for id, job := range q.jobs {
		if !job.RunAt.After(now) {
			delete(q.jobs, id)
			return job, 0
		}
		if d := job.RunAt.Sub(now); d < wait {
			wait = d
		}
	}
	return nil, wait
}

func (q *Queue) worker() {
	defer q.wg.Done()
	timer := time.NewTimer(time.Minute)
	defer timer.Stop()

	for {
		job, wait := q.claimDue(time.Now())
		if job != nil {
			q.run(job)
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-q.stopCh:
			return
		case <-q.wake:
		case <-timer.C:
		}
	}
}

func (q *Queue) run(job *Job) {
	q.mu.Lock()
	handler := q.handlers[job.Kind]
	q.mu.Unlock()
	if handler == nil {
		logger.Error("no handler for job kind", "module", "queue", "action", "run", "resource", "job", "result", "failed", "kind", string(job.Kind))
		return
	}

	err := handler(context.Background(), job.Arg)
	if err == nil {
		return
	}

	job.Attempts++
	if job.Attempts > MaxRetries {
		logger.Error("job dropped after retries", "module", "queue", "action", "run", "resource", "job", "result", "failed", "kind", string(job.Kind), "arg", job.Arg, "attempts", job.Attempts, "error", err)
		return
	}
	logger.Warn("job failed, will retry", "module", "queue", "action", "run", "resource", "job", "result", "retry", "kind", string(job.Kind), "arg", job.Arg, "attempts", job.Attempts, "error", err)

	q.mu.Lock()
	job.RunAt = time.Now().Add(retryDelay)
	q.jobs[job.ID] = job
	q.mu.Unlock()
	q.poke()
}
