package scheduler

import (
	"context"

	"github.com/sirupsen/logrus"
)

// TaskQueue is an in-memory FIFO of deferred work (history writes,
// webhook-triggered refreshes). Tasks run one at a time.
type TaskQueue struct {
	ch     chan func()
	logger *logrus.Entry
}

// NewTaskQueue creates a new in-memory task queue with the given buffer size.
func NewTaskQueue(bufferSize int, logger *logrus.Entry) *TaskQueue {
	if bufferSize < 1 {
		bufferSize = 64
	}
	return &TaskQueue{
		ch:     make(chan func(), bufferSize),
		logger: logger.WithField("component", "task_queue"),
	}
}

// Enqueue adds fn to the queue. If the queue is full the function is dropped
// and a warning is logged; Enqueue never blocks.
func (q *TaskQueue) Enqueue(fn func()) {
	select {
	case q.ch <- fn:
		q.logger.Trace("task enqueued")
	default:
		q.logger.Warn("task queue full, dropping task")
	}
}

// Len returns the number of tasks waiting to run.
func (q *TaskQueue) Len() int {
	return len(q.ch)
}

// Run processes queued tasks until ctx is cancelled, then runs whatever is
// already buffered so pending history writes are not lost on shutdown.
func (q *TaskQueue) Run(ctx context.Context) error {
	q.logger.Info("task queue started")
	for {
		select {
		case <-ctx.Done():
			q.drain()
			q.logger.Info("task queue stopped")
			return nil
		case fn := <-q.ch:
			q.runOne(fn)
		}
	}
}

func (q *TaskQueue) drain() {
	for {
		select {
		case fn := <-q.ch:
			q.runOne(fn)
		default:
			return
		}
	}
}

func (q *TaskQueue) runOne(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.WithField("panic", r).Error("queued task panicked")
		}
	}()
	fn()
}
