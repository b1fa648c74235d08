// Package scheduler runs the background refresh of expired records and the
// queue that performs deferred work such as history writes.
package scheduler

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Scheduler manages a set of periodic tasks, running each in its own goroutine.
type Scheduler struct {
	tasks  []*Task
	logger *logrus.Entry
	wg     sync.WaitGroup
}

// NewScheduler creates a new scheduler.
func NewScheduler(logger *logrus.Entry) *Scheduler {
	return &Scheduler{
		logger: logger.WithField("component", "scheduler"),
	}
}

// AddTask registers a task. It must be called before Run.
func (s *Scheduler) AddTask(task *Task) {
	s.tasks = append(s.tasks, task)
}

// Len returns the number of registered tasks.
func (s *Scheduler) Len() int {
	return len(s.tasks)
}

// Run starts every registered task and blocks until ctx is cancelled and all
// task goroutines have returned.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.WithField("task_count", len(s.tasks)).Info("starting scheduler")

	for _, t := range s.tasks {
		s.wg.Add(1)
		go func(task *Task) {
			defer s.wg.Done()
			task.Run(ctx)
		}(t)
	}

	<-ctx.Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
	return nil
}
