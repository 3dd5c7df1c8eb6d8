package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sitetrack/backend/internal/models"
	"github.com/sitetrack/backend/pkg/logger"
	"github.com/sitetrack/backend/pkg/metrics"
)

// Audience decides how an event fans out into notification rows.
type Audience int

const (
	// AudienceAdmins is a single row with no recipient, filtered by role at read time.
	AudienceAdmins Audience = iota
	// AudienceEmployees is one row per recipient.
	AudienceEmployees
)

// Event is a lifecycle transition that someone should hear about.
type Event struct {
	Type       models.NotificationType
	Audience   Audience
	Recipients []uint
	Title      string
	Message    string
	ActorID    *uint
	SiteID     *uint
	PhaseID    *uint
	TaskID     *uint
}

// Project turns an event into the notification rows it implies.
func Project(e Event, now time.Time) []models.Notification {
	base := models.Notification{
		Type:      e.Type,
		Title:     e.Title,
		Message:   e.Message,
		ActorID:   e.ActorID,
		SiteID:    e.SiteID,
		PhaseID:   e.PhaseID,
		TaskID:    e.TaskID,
		CreatedAt: now,
	}

	if e.Audience == AudienceAdmins {
		return []models.Notification{base}
	}

	seen := make(map[uint]bool, len(e.Recipients))
	out := make([]models.Notification, 0, len(e.Recipients))
	for _, id := range e.Recipients {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		n := base
		n.RecipientID = uintPtr(id)
		out = append(out, n)
	}
	return out
}

// Outbox collects events inside a transaction; they are dispatched only
// after the transaction commits.
type Outbox struct {
	events []Event
}

func (o *Outbox) Add(e Event) { o.events = append(o.events, e) }

func (o *Outbox) Events() []Event { return o.events }

// NotificationBatch is the unit handed to a NotificationQueue.
type NotificationBatch struct {
	ID            string                `json:"id"`
	Notifications []models.Notification `json:"notifications"`
}

// Emitter projects events and hands them to the delivery queue. It never
// returns an error: delivery failures are logged and counted.
type Emitter struct {
	queue NotificationQueue
	now   func() time.Time
}

func NewEmitter(queue NotificationQueue) *Emitter {
	return &Emitter{queue: queue, now: time.Now}
}

// Dispatch runs after commit, so delivery is detached from the caller's
// cancellation: a client that hangs up must not lose committed events.
func (e *Emitter) Dispatch(ctx context.Context, events []Event) {
	if e == nil || len(events) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)

	now := e.now()
	batch := &NotificationBatch{ID: uuid.NewString()}
	for _, ev := range events {
		batch.Notifications = append(batch.Notifications, Project(ev, now)...)
	}
	if len(batch.Notifications) == 0 {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Str("batch_id", batch.ID).Msg("[Emitter] Notification dispatch panicked")
			countDropped(batch)
		}
	}()

	if err := e.queue.Enqueue(ctx, batch); err != nil {
		first := batch.Notifications[0]
		logger.Error().
			Err(err).
			Str("batch_id", batch.ID).
			Str("event", string(first.Type)).
			Interface("site_id", first.SiteID).
			Interface("phase_id", first.PhaseID).
			Interface("task_id", first.TaskID).
			Msg("[Emitter] Failed to deliver notifications")
		countDropped(batch)
		return
	}

	for _, n := range batch.Notifications {
		metrics.NotificationsEmitted.WithLabelValues(string(n.Type)).Inc()
	}
}

func countDropped(batch *NotificationBatch) {
	for _, n := range batch.Notifications {
		metrics.NotificationsDropped.WithLabelValues(string(n.Type)).Inc()
	}
}
