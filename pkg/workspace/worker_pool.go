package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gnana997/cjs2esm/pkg/util"
)

// FileJob is a file queued for conversion.
type FileJob struct {
	FilePath string
	JobID    int
}

// processFunc converts one file. It must always return a result; failures
// are reported through FileResult.Err.
type processFunc func(ctx context.Context, job FileJob) FileResult

// WorkerPool converts files on a fixed number of goroutines.
//
// The worker count should not exceed the parser pool size, otherwise
// workers queue on parsers instead of running.
//
// Usage:
//
//	pool := NewWorkerPool(numWorkers, process, logger)
//	pool.Start(ctx)
//	go func() {
//	    for _, file := range files {
//	        pool.Submit(ctx, FileJob{FilePath: file})
//	    }
//	    pool.FinishSubmitting()
//	}()
//	for result := range pool.Results() {
//	    // ...
//	}
type WorkerPool struct {
	numWorkers int
	process    processFunc
	jobs       chan FileJob
	results    chan FileResult
	wg         sync.WaitGroup
	logger     *slog.Logger

	started    atomic.Bool
	jobsClosed atomic.Bool

	jobsSubmitted atomic.Int64
	jobsProcessed atomic.Int64
	jobsFailed    atomic.Int64
	jobsSkipped   atomic.Int64
}

// NewWorkerPool creates a pool. numWorkers of zero uses
// util.GetOptimalPoolSize, which also sizes the parser pools.
func NewWorkerPool(numWorkers int, process processFunc, logger *slog.Logger) *WorkerPool {
	numWorkers = util.GetOptimalPoolSizeWithOverride(numWorkers)
	if logger == nil {
		logger = slog.Default()
	}

	return &WorkerPool{
		numWorkers: numWorkers,
		process:    process,
		jobs:       make(chan FileJob, numWorkers*2),
		results:    make(chan FileResult, numWorkers),
		logger:     logger,
	}
}

// Start spawns the workers. Results is closed once every worker has exited,
// which happens after FinishSubmitting once the queue drains.
func (wp *WorkerPool) Start(ctx context.Context) {
	if !wp.started.CompareAndSwap(false, true) {
		wp.logger.Warn("WorkerPool already started")
		return
	}

	wp.logger.Debug("Starting worker pool", "workers", wp.numWorkers)

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}

	go func() {
		wp.wg.Wait()
		close(wp.results)
	}()
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	for job := range wp.jobs {
		// Drain the queue without working once cancelled so that
		// FinishSubmitting never blocks on a full channel.
		if ctx.Err() != nil {
			wp.jobsSkipped.Add(1)
			continue
		}

		result := wp.process(ctx, job)
		result.JobID = job.JobID
		if result.Err != nil {
			wp.jobsFailed.Add(1)
			wp.logger.Debug("Worker job failed", "worker_id", id, "file", job.FilePath, "error", result.Err)
		} else {
			wp.jobsProcessed.Add(1)
		}
		wp.results <- result
	}
}

// Submit enqueues a job, blocking while the queue is full.
func (wp *WorkerPool) Submit(ctx context.Context, job FileJob) error {
	if wp.jobsClosed.Load() {
		return fmt.Errorf("worker pool is no longer accepting jobs")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case wp.jobs <- job:
		wp.jobsSubmitted.Add(1)
		return nil
	}
}

// Results delivers one FileResult per processed job.
func (wp *WorkerPool) Results() <-chan FileResult {
	return wp.results
}

// FinishSubmitting closes the queue. It is safe to call more than once.
func (wp *WorkerPool) FinishSubmitting() {
	if wp.jobsClosed.CompareAndSwap(false, true) {
		close(wp.jobs)
		wp.logger.Debug("Jobs channel closed", "total_submitted", wp.jobsSubmitted.Load())
	}
}

// GetStats returns pool counters.
func (wp *WorkerPool) GetStats() WorkerPoolStats {
	return WorkerPoolStats{
		NumWorkers:    wp.numWorkers,
		JobsSubmitted: wp.jobsSubmitted.Load(),
		JobsProcessed: wp.jobsProcessed.Load(),
		JobsFailed:    wp.jobsFailed.Load(),
		JobsSkipped:   wp.jobsSkipped.Load(),
		QueueLength:   len(wp.jobs),
	}
}

// WorkerPoolStats are worker pool counters.
type WorkerPoolStats struct {
	NumWorkers    int
	JobsSubmitted int64
	JobsProcessed int64
	JobsFailed    int64
	JobsSkipped   int64
	QueueLength   int
}
