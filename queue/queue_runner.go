// ABOUTME: Durable queue runner: publishes sync jobs and consumes them with retry and backoff
// ABOUTME: NATS JetStream in production, any watermill publisher/subscriber pair in tests
package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	gosync "sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	natsgo "github.com/nats-io/nats.go"

	"github.com/harperreed/schoolsync/config"
	"github.com/harperreed/schoolsync/logging"
	"github.com/harperreed/schoolsync/metrics"
	"github.com/harperreed/schoolsync/models"
	"github.com/harperreed/schoolsync/sync"
)

const (
	handlerName   = "pronote-sync-worker"
	attemptHeader = "attempt"
)

// ErrRunnerClosed is returned when triggering after Close.
var ErrRunnerClosed = errors.New("queue runner is closed")

// RetryPolicy bounds redelivery of a failed job. MaxRetries 2 means three attempts.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      2,
		InitialInterval: 5 * time.Second,
		MaxInterval:     time.Minute,
		Multiplier:      2,
	}
}

// CompletionFunc observes the terminal outcome of a consumed job.
type CompletionFunc func(job Job, result *models.SyncResult, err error)

type Option func(*QueueRunner)

func WithRetryPolicy(p RetryPolicy) Option {
	return func(r *QueueRunner) { r.retry = p }
}

func WithCompletion(fn CompletionFunc) Option {
	return func(r *QueueRunner) { r.onComplete = fn }
}

type QueueRunner struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	topic      string
	syncer     sync.Syncer
	logger     watermill.LoggerAdapter
	retry      RetryPolicy
	onComplete CompletionFunc

	mu     gosync.Mutex
	router *message.Router
	closed bool
}

func NewQueueRunner(pub message.Publisher, sub message.Subscriber, topic string, syncer sync.Syncer, opts ...Option) *QueueRunner {
	r := &QueueRunner{
		publisher:  pub,
		subscriber: sub,
		topic:      topic,
		syncer:     syncer,
		logger:     watermill.NewSlogLogger(logging.NewSlogLogger()),
		retry:      DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewNATSQueueRunner connects a JetStream publisher and durable subscriber at cfg.URL.
func NewNATSQueueRunner(cfg config.QueueConfig, syncer sync.Syncer, opts ...Option) (*QueueRunner, error) {
	logger := watermill.NewSlogLogger(logging.NewSlogLogger())
	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			TrackMsgId:    true,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create queue publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: "schoolsync",
		SubscribersCount: 1,
		AckWaitTimeout:   2 * time.Minute,
		CloseTimeout:     30 * time.Second,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			DurablePrefix: "schoolsync",
			SubscribeOptions: []natsgo.SubOpt{
				natsgo.AckWait(2 * time.Minute),
				natsgo.DeliverAll(),
			},
		},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("failed to create queue subscriber: %w", err)
	}

	r := NewQueueRunner(pub, sub, cfg.Topic, syncer, opts...)
	r.logger = logger
	return r, nil
}

func (r *QueueRunner) Name() string { return "queue" }

// Trigger enqueues a job and returns without waiting for it to run.
func (r *QueueRunner) Trigger(_ context.Context, reason string) (*models.SyncResult, error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return nil, ErrRunnerClosed
	}

	job := NewJob(reason)
	msg, err := job.Message()
	if err != nil {
		return nil, err
	}
	if err := r.publisher.Publish(r.topic, msg); err != nil {
		metrics.Jobs.WithLabelValues(r.Name(), "enqueue_failed").Inc()
		return nil, fmt.Errorf("failed to enqueue sync job: %w", err)
	}

	metrics.Jobs.WithLabelValues(r.Name(), "enqueued").Inc()
	logging.Info().Str("job_id", job.ID).Str("triggered_by", reason).Msg("Enqueued sync job")
	return &models.SyncResult{TriggeredBy: reason, Queued: true, JobID: job.ID}, nil
}

func (r *QueueRunner) newRouter() (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 30 * time.Second}, r.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create queue router: %w", err)
	}
	retry := middleware.Retry{
		MaxRetries:      r.retry.MaxRetries,
		InitialInterval: r.retry.InitialInterval,
		MaxInterval:     r.retry.MaxInterval,
		Multiplier:      r.retry.Multiplier,
		Logger:          r.logger,
	}
	h := router.AddConsumerHandler(handlerName, r.topic, r.subscriber, r.handle)
	// Panics become errors inside the retry loop, and exhausted jobs are acked.
	h.AddMiddleware(r.exhausted, retry.Middleware, middleware.Recoverer)
	return router, nil
}

// Run consumes jobs until ctx is cancelled or Close is called.
func (r *QueueRunner) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRunnerClosed
	}
	router, err := r.newRouter()
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.router = router
	r.mu.Unlock()

	logging.Info().Str("topic", r.topic).Msg("Queue worker started")
	return router.Run(ctx)
}

// Running closes once the worker is consuming. It is nil before Run.
func (r *QueueRunner) Running() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.router == nil {
		return nil
	}
	return r.router.Running()
}

func (r *QueueRunner) handle(msg *message.Message) error {
	job, err := DecodeJob(msg)
	if err != nil {
		// Undecodable payloads can never succeed.
		logging.Error().Err(err).Str("job_id", msg.UUID).Msg("Dropping malformed sync job")
		return nil
	}

	attempt, _ := strconv.Atoi(msg.Metadata.Get(attemptHeader))
	attempt++
	msg.Metadata.Set(attemptHeader, strconv.Itoa(attempt))

	logging.Info().Str("job_id", job.ID).Str("triggered_by", job.Reason).Int("attempt", attempt).Msg("Running sync job")
	result, err := r.syncer.RunFullSync(msg.Context(), job.Reason)
	if err != nil {
		if attempt <= r.retry.MaxRetries {
			metrics.Jobs.WithLabelValues(r.Name(), "retrying").Inc()
		}
		return err
	}

	metrics.Jobs.WithLabelValues(r.Name(), "completed").Inc()
	if r.onComplete != nil {
		r.onComplete(job, result, nil)
	}
	return nil
}

// exhausted acks a job whose retries are spent so the broker does not redeliver it forever.
// A job interrupted by shutdown, or one with attempts left, is nacked for redelivery.
func (r *QueueRunner) exhausted(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		out, err := h(msg)
		if err == nil {
			return out, nil
		}
		job, _ := DecodeJob(msg)
		attempt, _ := strconv.Atoi(msg.Metadata.Get(attemptHeader))
		if msg.Context().Err() != nil || errors.Is(err, context.Canceled) {
			metrics.Jobs.WithLabelValues(r.Name(), "interrupted").Inc()
			logging.Warn().Err(err).
				Str("job_id", job.ID).
				Int("attempt", attempt).
				Msg("Sync job interrupted by shutdown; leaving it for redelivery")
			return nil, err
		}
		if attempt <= r.retry.MaxRetries {
			return nil, err
		}

		metrics.Jobs.WithLabelValues(r.Name(), "failed").Inc()
		logging.Error().Err(err).
			Str("job_id", job.ID).
			Str("triggered_by", job.Reason).
			Int("attempt", attempt).
			Msg("Sync job failed after retries")
		if r.onComplete != nil {
			r.onComplete(job, nil, err)
		}
		return nil, nil
	}
}

// Close stops the worker, letting in-flight jobs finish, then closes the subscriber and publisher.
func (r *QueueRunner) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	router := r.router
	r.mu.Unlock()

	var errs []error
	if router != nil {
		if err := router.Close(); err != nil {
			errs = append(errs, fmt.Errorf("router: %w", err))
		}
	}
	if err := r.subscriber.Close(); err != nil {
		errs = append(errs, fmt.Errorf("subscriber: %w", err))
	}
	if err := r.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("publisher: %w", err))
	}
	return errors.Join(errs...)
}
