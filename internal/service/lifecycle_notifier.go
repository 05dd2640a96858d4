package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/biodata-api/pkg/jobs"
)

// LifecycleNotice describes a change that may alter what the public listing shows.
type LifecycleNotice struct {
	Event     string    `json:"event"`
	ProfileID string    `json:"profileId,omitempty"`
	UserID    string    `json:"userId,omitempty"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	At        time.Time `json:"at"`
}

type publicCacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// LifecycleNotifier fans lifecycle notices out to a background worker pool that drops stale
// public cache entries. Publishing never blocks the request path.
type LifecycleNotifier struct {
	queue   *jobs.Queue[LifecycleNotice]
	cache   publicCacheInvalidator
	metrics *MetricsService
	logger  *zap.Logger
}

// NewLifecycleNotifier wires the notifier to its queue. cache may be nil.
func NewLifecycleNotifier(cache publicCacheInvalidator, metrics *MetricsService, logger *zap.Logger, cfg jobs.QueueConfig) *LifecycleNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &LifecycleNotifier{cache: cache, metrics: metrics, logger: logger}
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	n.queue = jobs.NewQueue[LifecycleNotice]("lifecycle", n.handle, cfg)
	return n
}

// Start launches the workers.
func (n *LifecycleNotifier) Start(ctx context.Context) {
	n.queue.Start(ctx)
}

// Stop flushes buffered notices and stops the workers.
func (n *LifecycleNotifier) Stop() {
	n.queue.Stop()
}

// Publish queues notice. A full or stopped queue drops it and counts the drop.
func (n *LifecycleNotifier) Publish(notice LifecycleNotice) {
	if notice.At.IsZero() {
		notice.At = time.Now().UTC()
	}
	task := jobs.Task[LifecycleNotice]{ID: uuid.NewString(), Payload: notice}
	if err := n.queue.TryEnqueue(task); err != nil {
		n.metrics.RecordDroppedEvent()
		n.logger.Warn("lifecycle notice dropped",
			zap.String("event", notice.Event),
			zap.String("profile_id", notice.ProfileID),
			zap.Error(err),
		)
	}
}

func (n *LifecycleNotifier) handle(ctx context.Context, task jobs.Task[LifecycleNotice]) error {
	notice := task.Payload
	n.logger.Info("profile lifecycle",
		zap.String("event", notice.Event),
		zap.String("profile_id", notice.ProfileID),
		zap.String("user_id", notice.UserID),
		zap.String("from", notice.From),
		zap.String("to", notice.To),
	)
	if n.cache == nil {
		return nil
	}
	if err := n.cache.Invalidate(ctx, publicProfilesCachePattern); err != nil {
		return fmt.Errorf("invalidate public profiles: %w", err)
	}
	return nil
}
