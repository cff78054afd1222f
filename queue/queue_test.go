package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger() *zap.SugaredLogger {
	l, _ := zap.NewDevelopment()
	return l.Sugar()
}

// countingJob fails a fixed number of times before succeeding.
type countingJob struct {
	mu       sync.Mutex
	failures int
	runs     int
	done     chan struct{}
}

func (j *countingJob) Name() string { return "counting_job" }

func (j *countingJob) Run(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs++
	if j.runs <= j.failures {
		return errors.New("transient failure")
	}
	close(j.done)
	return nil
}

func (j *countingJob) runCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.runs
}

func TestEnqueueRunsJob(t *testing.T) {
	q := New("test", 2, nil, testLogger())
	defer q.Stop()

	job := &countingJob{done: make(chan struct{})}
	q.Enqueue(job, 0)

	select {
	case <-job.done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never ran")
	}
	assert.Equal(t, 1, job.runCount())
}

func TestEnqueueHonorsDelay(t *testing.T) {
	q := New("test", 1, nil, testLogger())
	defer q.Stop()

	job := &countingJob{done: make(chan struct{})}
	start := time.Now()
	q.Enqueue(job, 150*time.Millisecond)

	select {
	case <-job.done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never ran")
	}
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	delays := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond}
	q := New("test", 1, delays, testLogger())
	defer q.Stop()

	job := &countingJob{failures: 2, done: make(chan struct{})}
	q.Enqueue(job, 0)

	select {
	case <-job.done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded")
	}
	assert.Equal(t, 3, job.runCount())
}

func TestTerminalFailureStopsRetrying(t *testing.T) {
	delays := []time.Duration{10 * time.Millisecond, 10 * time.Millisecond}
	q := New("test", 1, delays, testLogger())
	defer q.Stop()

	var runs atomic.Int32
	job := jobFunc(func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("always fails")
	})
	q.Enqueue(job, 0)

	require.Eventually(t, func() bool {
		return runs.Load() == 3
	}, 2*time.Second, 10*time.Millisecond, "initial attempt plus two retries")

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(3), runs.Load(), "no attempts past the retry schedule")
}

func TestPanicIsRetriedLikeError(t *testing.T) {
	delays := []time.Duration{10 * time.Millisecond}
	q := New("test", 1, delays, testLogger())
	defer q.Stop()

	done := make(chan struct{})
	first := true
	var mu sync.Mutex
	job := jobFunc(func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		if first {
			first = false
			panic("boom")
		}
		close(done)
		return nil
	})
	q.Enqueue(job, 0)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("panicking job was not retried")
	}
}

func TestStopDropsDelayedJobs(t *testing.T) {
	q := New("test", 1, nil, testLogger())

	var runs atomic.Int32
	job := jobFunc(func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})
	q.Enqueue(job, time.Hour)
	q.Stop()

	assert.Equal(t, int32(0), runs.Load())

	// enqueue after stop is a no-op
	q.Enqueue(job, 0)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())
}

type jobFunc func(ctx context.Context) error

func (jobFunc) Name() string                    { return "job_func" }
func (f jobFunc) Run(ctx context.Context) error { return f(ctx) }
