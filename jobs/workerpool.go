// Package jobs runs blocking storage calls on a bounded pool of workers.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

var ErrPoolStopped = errors.New("worker pool stopped")

type ExecutorFunc func(ctx context.Context) error

const (
	jobQueued int32 = iota
	jobRunning
	jobCancelled
)

type job struct {
	ctx   context.Context
	fn    ExecutorFunc
	state atomic.Int32
	done  chan error
}

type WorkerPool struct {
	wg       *sync.WaitGroup
	jobChan  chan *job
	stopChan chan struct{}
	stopOnce sync.Once
	logger   *log.Logger

	// Guards closing jobChan against concurrent sends.
	mu      sync.RWMutex
	stopped bool

	capacity    uint
	workerCount uint
}

type WorkerPoolStatus struct {
	Capacity    int `json:"poolCapacity"`
	WorkerCount int `json:"workerCount"`
	QueueSize   int `json:"queueSize"`
}

func NewWorkerPool(capacity uint, workerCount uint, opts ...WorkerPoolOption) *WorkerPool {
	if workerCount == 0 {
		workerCount = 1
	}

	pool := &WorkerPool{
		wg:       &sync.WaitGroup{},
		jobChan:  make(chan *job, capacity),
		stopChan: make(chan struct{}),

		capacity:    capacity,
		workerCount: workerCount,
	}

	// Go through options
	for _, opt := range opts {
		opt(pool)
	}

	if pool.logger == nil {
		pool.logger = log.StandardLogger()
	}

	pool.startWorkers()

	return pool
}

// Do runs fn on a worker and waits for it to return.
//
// ctx may abort the call only while fn is still queued. Once a worker picks
// it up, fn runs to completion with a context that is never cancelled, and
// Do returns its result. Writes are therefore never interrupted halfway.
func (wp *WorkerPool) Do(ctx context.Context, fn ExecutorFunc) error {
	j := &job{ctx: ctx, fn: fn, done: make(chan error, 1)}

	if err := wp.enqueue(ctx, j); err != nil {
		return err
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		if j.state.CompareAndSwap(jobQueued, jobCancelled) {
			return ctx.Err()
		}
		return <-j.done
	}
}

func (wp *WorkerPool) Status() WorkerPoolStatus {
	return WorkerPoolStatus{
		Capacity:    int(wp.capacity),
		WorkerCount: int(wp.workerCount),
		QueueSize:   int(wp.QueueSize()),
	}
}

// Stop stops accepting jobs, lets workers finish the queued ones and waits
// for them to exit.
func (wp *WorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		close(wp.stopChan)

		wp.mu.Lock()
		wp.stopped = true
		close(wp.jobChan)
		wp.mu.Unlock()

		wp.wg.Wait()
	})
}

func (wp *WorkerPool) Capacity() uint {
	return wp.capacity
}

func (wp *WorkerPool) QueueSize() uint {
	return uint(len(wp.jobChan))
}

func (wp *WorkerPool) enqueue(ctx context.Context, j *job) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.stopped {
		return ErrPoolStopped
	}

	select {
	case wp.jobChan <- j:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-wp.stopChan:
		return ErrPoolStopped
	}
}

func (wp *WorkerPool) startWorkers() {
	for i := uint(0); i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go func() {
			defer wp.wg.Done()
			for j := range wp.jobChan {
				wp.process(j)
			}
		}()
	}
}

func (wp *WorkerPool) process(j *job) {
	if !j.state.CompareAndSwap(jobQueued, jobRunning) {
		wp.logger.Debug("Skipping cancelled job")
		return
	}

	j.done <- wp.execute(j)
}

func (wp *WorkerPool) execute(j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			wp.logger.
				WithFields(log.Fields{"panic": r}).
				Error("Job panicked")
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	return j.fn(context.WithoutCancel(j.ctx))
}
