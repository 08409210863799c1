// Package scheduler repeats sync runs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
)

// Scheduler runs a job on a cron schedule until its context is canceled.
// A run that is still going when the next one is due is skipped, so runs
// never overlap.
type Scheduler struct {
	cron *cron.Cron
	spec string
	job  func(ctx context.Context)
}

// New creates a scheduler for spec, a standard 5-field cron expression
// or a descriptor such as "@hourly" or "@every 30m".
func New(spec string, job func(ctx context.Context)) *Scheduler {
	logger := cron.PrintfLogger(log.Default())
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	return &Scheduler{cron: c, spec: spec, job: job}
}

// Run registers the job and blocks until ctx is done. With runNow the job
// also runs once immediately. Run waits for a job in progress before
// returning.
func (s *Scheduler) Run(ctx context.Context, runNow bool) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.job(ctx) }); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.spec, err)
	}

	if runNow {
		s.job(ctx)
	}

	s.cron.Start()
	log.Printf("Scheduler started (schedule: %s)", s.spec)

	<-ctx.Done()

	stopped := s.cron.Stop()
	<-stopped.Done()
	log.Println("Scheduler stopped")
	return nil
}
