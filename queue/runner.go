// ABOUTME: JobRunner abstraction over inline and queue-backed sync execution
// ABOUTME: Inline runs the sync synchronously once with no retry
package queue

import (
	"context"

	"github.com/harperreed/schoolsync/logging"
	"github.com/harperreed/schoolsync/metrics"
	"github.com/harperreed/schoolsync/models"
	"github.com/harperreed/schoolsync/sync"
)

// JobRunner executes or enqueues a sync for a trigger reason.
type JobRunner interface {
	// Trigger returns the completed result inline, or a Queued result carrying the job id.
	Trigger(ctx context.Context, reason string) (*models.SyncResult, error)
	Name() string
}

type InlineRunner struct {
	syncer sync.Syncer
}

func NewInlineRunner(syncer sync.Syncer) *InlineRunner {
	return &InlineRunner{syncer: syncer}
}

func (r *InlineRunner) Name() string { return "inline" }

func (r *InlineRunner) Trigger(ctx context.Context, reason string) (*models.SyncResult, error) {
	result, err := r.syncer.RunFullSync(ctx, reason)
	if err != nil {
		metrics.Jobs.WithLabelValues(r.Name(), "failed").Inc()
		logging.Warn().Err(err).Str("triggered_by", reason).Msg("Inline sync failed; waiting for next trigger")
		return nil, err
	}
	metrics.Jobs.WithLabelValues(r.Name(), "completed").Inc()
	return result, nil
}
