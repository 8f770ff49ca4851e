package notification

import (
	"context"
	"log/slog"
	"time"

	"marketpulse/internal/metrics"
)

// Queue decouples alert evaluation from delivery. A single worker drains a
// buffered channel; when the buffer is full new messages are dropped.
// Failed deliveries are logged and never retried.
type Queue struct {
	ch         chan Message
	dispatcher *Dispatcher
	timeout    time.Duration
	metrics    *metrics.Metrics
	log        *slog.Logger
}

// NewQueue creates a queue of the given capacity in front of d.
func NewQueue(d *Dispatcher, capacity int, sendTimeout time.Duration, m *metrics.Metrics, log *slog.Logger) *Queue {
	if capacity <= 0 {
		capacity = 256
	}
	if sendTimeout <= 0 {
		sendTimeout = 15 * time.Second
	}
	return &Queue{
		ch:         make(chan Message, capacity),
		dispatcher: d,
		timeout:    sendTimeout,
		metrics:    m,
		log:        log.With("component", "notify_queue"),
	}
}

// Enqueue schedules msg for delivery without blocking. Reports false when
// the message was dropped.
func (q *Queue) Enqueue(msg Message) bool {
	select {
	case q.ch <- msg:
		return true
	default:
		q.metrics.NotificationsDropped.Inc()
		q.log.Warn("notification queue full, dropping message",
			"target", msg.Target,
			"subject", msg.Subject,
		)
		return false
	}
}

// Len returns the number of queued messages.
func (q *Queue) Len() int { return len(q.ch) }

// Run delivers queued messages until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-q.ch:
			q.deliver(ctx, msg)
		}
	}
}

func (q *Queue) deliver(ctx context.Context, msg Message) {
	channel := q.dispatcher.Channel(msg.Target)
	sendCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	if err := q.dispatcher.Send(sendCtx, msg); err != nil {
		q.metrics.NotificationFailures.WithLabelValues(channel).Inc()
		q.log.Warn("notification failed",
			"channel", channel,
			"target", msg.Target,
			"error", err,
		)
		return
	}
	q.metrics.NotificationsSent.WithLabelValues(channel).Inc()
}
