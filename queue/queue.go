package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Job is a deferred unit of work executed outside the request cycle.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// jobTimeout bounds a single attempt so a stuck job cannot pin a worker.
const jobTimeout = 30 * time.Second

type task struct {
	id      string
	job     Job
	attempt int
}

// Queue is a named in-process work queue with a fixed worker pool, per-job
// enqueue delay and a bounded retry schedule. A job that fails after the
// last retry is logged as a terminal failure and dropped; no compensating
// action is taken.
type Queue struct {
	name        string
	tasks       chan *task
	retryDelays []time.Duration
	logger      *zap.SugaredLogger

	quit    chan struct{}
	stopped sync.Once
	workers sync.WaitGroup
	pending sync.WaitGroup
}

// New creates a queue and starts its worker pool.
func New(name string, workers int, retryDelays []time.Duration, logger *zap.SugaredLogger) *Queue {
	if workers <= 0 {
		workers = 1
	}
	q := &Queue{
		name:        name,
		tasks:       make(chan *task, 256),
		retryDelays: retryDelays,
		logger:      logger,
		quit:        make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		q.workers.Add(1)
		go q.worker()
	}
	return q
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

// Enqueue schedules a job to run after the given delay. Enqueueing after
// Stop is a silent no-op.
func (q *Queue) Enqueue(job Job, delay time.Duration) {
	q.schedule(&task{id: uuid.NewString(), job: job}, delay)
}

func (q *Queue) schedule(t *task, delay time.Duration) {
	select {
	case <-q.quit:
		q.logger.Warnw("queue stopped, dropping job", "queue", q.name, "job", t.job.Name(), "id", t.id)
		return
	default:
	}

	q.pending.Add(1)
	go func() {
		defer q.pending.Done()
		if delay > 0 {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-q.quit:
				return
			}
		}
		select {
		case q.tasks <- t:
		case <-q.quit:
		}
	}()
}

func (q *Queue) worker() {
	defer q.workers.Done()
	for {
		select {
		case <-q.quit:
			return
		case t := <-q.tasks:
			q.process(t)
		}
	}
}

func (q *Queue) process(t *task) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	err := q.run(ctx, t)
	cancel()
	if err == nil {
		return
	}

	if t.attempt < len(q.retryDelays) {
		delay := q.retryDelays[t.attempt]
		t.attempt++
		q.logger.Warnw("job failed, retrying",
			"queue", q.name, "job", t.job.Name(), "id", t.id,
			"attempt", t.attempt, "retry_in", delay, "err", err)
		q.schedule(t, delay)
		return
	}

	q.logger.Errorw("job failed permanently",
		"queue", q.name, "job", t.job.Name(), "id", t.id,
		"attempts", t.attempt+1, "err", err)
}

// run executes one attempt, converting panics into errors so a panicking
// job goes through the normal retry path instead of killing the worker.
func (q *Queue) run(ctx context.Context, t *task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panic: %v", r)
		}
	}()
	return t.job.Run(ctx)
}

// Stop shuts the queue down: pending delayed jobs are dropped and workers
// exit after their current job. Blocks until the pool is drained.
func (q *Queue) Stop() {
	q.stopped.Do(func() {
		close(q.quit)
	})
	q.pending.Wait()
	q.workers.Wait()
}
