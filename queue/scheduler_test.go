package queue

import (
	"context"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/schoolsync/models"
)

// slowSyncer takes delay to finish unless its context is cancelled first.
type slowSyncer struct {
	delay   time.Duration
	started chan struct{}

	mu       gosync.Mutex
	runs     int
	finished bool
	err      error
}

func newSlowSyncer(delay time.Duration) *slowSyncer {
	return &slowSyncer{delay: delay, started: make(chan struct{}, 8)}
}

func (s *slowSyncer) RunFullSync(ctx context.Context, triggeredBy string) (*models.SyncResult, error) {
	s.mu.Lock()
	s.runs++
	s.mu.Unlock()
	s.started <- struct{}{}

	var err error
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		err = ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = true
	s.err = err
	if err != nil {
		return nil, err
	}
	return &models.SyncResult{TriggeredBy: triggeredBy}, nil
}

func (s *slowSyncer) state() (runs int, finished bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs, s.finished, s.err
}

func TestNewSchedulerRejectsBadSchedule(t *testing.T) {
	_, err := NewScheduler(NewInlineRunner(&fakeSyncer{}), "every hour", false)
	assert.Error(t, err)

	_, err = NewScheduler(NewInlineRunner(&fakeSyncer{}), "0 * * * *", false)
	assert.NoError(t, err)
}

func TestSchedulerStartupTrigger(t *testing.T) {
	syncer := &fakeSyncer{}
	s, err := NewScheduler(NewInlineRunner(syncer), "0 * * * *", true)
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return len(syncer.calls()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{TriggerStartup}, syncer.calls())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestSchedulerWithoutStartupDoesNotFire(t *testing.T) {
	syncer := &fakeSyncer{}
	s, err := NewScheduler(NewInlineRunner(syncer), "0 0 1 1 *", false)
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, syncer.calls())
	require.NoError(t, s.Stop(context.Background()))
}

func TestTriggerManualSync(t *testing.T) {
	syncer := &fakeSyncer{}
	s, err := NewScheduler(NewInlineRunner(syncer), "0 * * * *", false)
	require.NoError(t, err)

	result, err := s.TriggerManualSync(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, TriggerManual, result.TriggeredBy)

	queued, _ := newTestQueue(t, &fakeSyncer{})
	qs, err := NewScheduler(queued, "0 * * * *", false)
	require.NoError(t, err)
	result, err = qs.TriggerManualSync(context.Background(), "manual")
	require.NoError(t, err)
	assert.True(t, result.Queued)
}

func TestSchedulerServeStopsOnCancel(t *testing.T) {
	s, err := NewScheduler(NewInlineRunner(&fakeSyncer{}), "0 * * * *", false)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestSchedulerServeDrainsStartupSync(t *testing.T) {
	syncer := newSlowSyncer(300 * time.Millisecond)
	s, err := NewScheduler(NewInlineRunner(syncer), "0 0 1 1 *", true)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx) }()

	select {
	case <-syncer.started:
	case <-time.After(2 * time.Second):
		t.Fatal("startup sync never began")
	}
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}

	runs, finished, syncErr := syncer.state()
	assert.Equal(t, 1, runs)
	assert.True(t, finished, "Serve returned while the startup sync was still running")
	assert.NoError(t, syncErr, "shutdown must not cancel a running sync")
}

func TestSchedulerStopBoundedByContext(t *testing.T) {
	syncer := newSlowSyncer(2 * time.Second)
	s, err := NewScheduler(NewInlineRunner(syncer), "0 0 1 1 *", true)
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	<-syncer.started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = s.Stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, s.Stop(context.Background()))
	_, finished, syncErr := syncer.state()
	assert.True(t, finished)
	assert.NoError(t, syncErr)
}

func TestSchedulerStartupFiresOncePerProcess(t *testing.T) {
	syncer := &fakeSyncer{}
	s, err := NewScheduler(NewInlineRunner(syncer), "0 0 1 1 *", true)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- s.Serve(ctx) }()
		time.Sleep(20 * time.Millisecond)
		cancel()
		select {
		case <-errCh:
		case <-time.After(2 * time.Second):
			t.Fatal("scheduler did not stop")
		}
	}

	assert.Equal(t, []string{TriggerStartup}, syncer.calls())
}
