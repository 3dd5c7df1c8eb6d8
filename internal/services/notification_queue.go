package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/sitetrack/backend/internal/config"
	"github.com/sitetrack/backend/pkg/logger"
)

const (
	TaskTypeNotification = "notification:deliver"
)

// NotificationQueue defines how notification batches reach the store
type NotificationQueue interface {
	// Enqueue hands a batch over for delivery
	Enqueue(ctx context.Context, batch *NotificationBatch) error
	// IsAsync returns true if batches are persisted by a background worker
	IsAsync() bool
	// Close gracefully shuts down the queue
	Close() error
}

// NotificationProcessor persists a delivered batch.
type NotificationProcessor func(ctx context.Context, batch *NotificationBatch) error

// Global notification queue instance
var (
	globalNotificationQueue NotificationQueue
	notificationQueueOnce   sync.Once
)

// InitNotificationQueue picks the async queue when Redis is reachable and
// falls back to synchronous delivery otherwise.
func InitNotificationQueue(cfg *config.Config, processor NotificationProcessor) NotificationQueue {
	notificationQueueOnce.Do(func() {
		if cfg.Redis.Enabled {
			queue, err := NewAsyncQueue(&cfg.Redis)
			if err != nil {
				logger.Infof("[NotificationQueue] Redis unavailable, falling back to sync mode: %v", err)
				globalNotificationQueue = NewSyncQueue(processor)
			} else {
				logger.Infof("[NotificationQueue] Async queue initialized with Redis at %s", cfg.Redis.Addr)
				globalNotificationQueue = queue
			}
		} else {
			logger.Infof("[NotificationQueue] Sync queue initialized (Redis disabled)")
			globalNotificationQueue = NewSyncQueue(processor)
		}
	})
	return globalNotificationQueue
}

// GetNotificationQueue returns the global queue instance
func GetNotificationQueue() NotificationQueue {
	return globalNotificationQueue
}

// AsyncQueue implements NotificationQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := asynq.NewClient(redisOpt)

	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

func (q *AsyncQueue) Enqueue(ctx context.Context, batch *NotificationBatch) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return err
	}

	t := asynq.NewTask(TaskTypeNotification, payload)
	info, err := q.client.EnqueueContext(ctx, t,
		asynq.Queue("notifications"),
		asynq.MaxRetry(5),
		asynq.TaskID(batch.ID),
	)
	if err != nil {
		return err
	}

	logger.Debug().Str("task_id", info.ID).Int("count", len(batch.Notifications)).Msg("[AsyncQueue] Notification batch enqueued")
	return nil
}

func (q *AsyncQueue) IsAsync() bool { return true }

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue persists batches inline on the caller's goroutine, after the
// triggering transaction has committed.
type SyncQueue struct {
	processor NotificationProcessor
}

func NewSyncQueue(processor NotificationProcessor) *SyncQueue {
	return &SyncQueue{processor: processor}
}

func (q *SyncQueue) SetProcessor(processor NotificationProcessor) {
	q.processor = processor
}

func (q *SyncQueue) Enqueue(ctx context.Context, batch *NotificationBatch) error {
	if q.processor == nil {
		return errors.New("no notification processor set")
	}
	return q.processor(ctx, batch)
}

func (q *SyncQueue) IsAsync() bool { return false }

func (q *SyncQueue) Close() error { return nil }
