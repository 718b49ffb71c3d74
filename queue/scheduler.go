// ABOUTME: Cron scheduler that triggers syncs through a JobRunner
// ABOUTME: Fires on a cron schedule, optionally once at startup, and serves manual triggers
package queue

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/harperreed/schoolsync/logging"
	"github.com/harperreed/schoolsync/models"
)

const (
	TriggerCron    = "cron"
	TriggerStartup = "startup"
	TriggerManual  = "manual"
)

type Scheduler struct {
	runner       JobRunner
	schedule     string
	runOnStartup bool
	cron         *cron.Cron
	entry        cron.EntryID
	stopTimeout  time.Duration

	inflight    gosync.WaitGroup
	startupOnce gosync.Once
}

// NewScheduler validates schedule as a standard five-field cron expression.
func NewScheduler(runner JobRunner, schedule string, runOnStartup bool) (*Scheduler, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	logger := cronLogger{}
	return &Scheduler{
		runner:       runner,
		schedule:     schedule,
		runOnStartup: runOnStartup,
		cron:         cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
		stopTimeout:  30 * time.Second,
	}, nil
}

// Start registers the cron trigger and begins firing. A startup sync runs in the background,
// once per process. Restarting replaces the previous trigger.
// Jobs keep ctx's values but not its cancellation; Stop drains them.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.entry != 0 {
		s.cron.Remove(s.entry)
	}
	jobCtx := context.WithoutCancel(ctx)
	entry, err := s.cron.AddFunc(s.schedule, func() { s.fire(jobCtx, TriggerCron) })
	if err != nil {
		return fmt.Errorf("failed to schedule sync: %w", err)
	}
	s.entry = entry
	s.cron.Start()
	logging.Info().Str("schedule", s.schedule).Str("runner", s.runner.Name()).Msg("Sync scheduler started")

	if s.runOnStartup {
		s.startupOnce.Do(func() {
			s.inflight.Add(1)
			go func() {
				defer s.inflight.Done()
				s.fire(jobCtx, TriggerStartup)
			}()
		})
	}
	return nil
}

func (s *Scheduler) fire(ctx context.Context, reason string) {
	if _, err := s.runner.Trigger(ctx, reason); err != nil {
		logging.Error().Err(err).Str("triggered_by", reason).Msg("Scheduled sync failed")
	}
}

// TriggerManualSync follows the runner's enqueue-or-inline branching.
func (s *Scheduler) TriggerManualSync(ctx context.Context, reason string) (*models.SyncResult, error) {
	if reason == "" {
		reason = TriggerManual
	}
	return s.runner.Trigger(ctx, reason)
}

// Stop halts new firings and waits for running cron and startup jobs until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) error {
	cronDone := s.cron.Stop()
	drained := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.inflight.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		logging.Info().Msg("Sync scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// Serve runs the scheduler until ctx is cancelled.
func (s *Scheduler) Serve(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), s.stopTimeout)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *Scheduler) String() string { return "sync-scheduler" }

// cronLogger routes cron's own logging to zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	logging.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logging.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
