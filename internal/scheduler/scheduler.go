// Package scheduler runs the periodic mirror of local documents to the paste service.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/comigor/mindly-go/internal/logger"
)

// Job is the work run on each tick.
type Job func(ctx context.Context) error

// cronLogger routes cron's own messages to the process logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.L.Debugw(msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.L.Errorw(msg, append(keysAndValues, "error", err)...)
}

// Scheduler runs a single job on a cron schedule. A tick that fires while the
// previous run is still going is skipped.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	runs   atomic.Int64
}

// New validates schedule (standard five-field syntax or descriptors such as
// "@hourly" and "@every 30m") and registers job.
func New(schedule string, job Job) (*Scheduler, error) {
	if job == nil {
		return nil, fmt.Errorf("scheduler: nil job")
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLogger{}),
			cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
		),
		ctx:    ctx,
		cancel: cancel,
	}
	_, err := s.cron.AddFunc(schedule, func() {
		n := s.runs.Add(1)
		logger.L.Infow("scheduled mirror triggered", "run", n)
		if err := job(s.ctx); err != nil {
			logger.L.Errorw("scheduled mirror failed", "run", n, "error", err)
		}
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("scheduler: invalid schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins running the job in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	logger.L.Infow("scheduler started", "next", s.Next())
}

// Next returns the time of the next run, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Runs reports how many times the job has been triggered.
func (s *Scheduler) Runs() int64 { return s.runs.Load() }

// Stop cancels the job context and waits for a running job to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	logger.L.Infow("scheduler stopped", "runs", s.Runs())
}
