// Package notification delivers alert messages to external channels
// (webhooks, Telegram, email) or, failing that, to the log.
package notification

import (
	"context"
	"log/slog"
)

// Level represents the severity of a message.
type Level string

const (
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelCritical Level = "CRITICAL"
)

// Message is one notification addressed to a target. The target format
// selects the channel; see Dispatcher.
type Message struct {
	Target  string `json:"target"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Level   Level  `json:"level"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers a message. Returns error if delivery fails.
	Send(ctx context.Context, msg Message) error
}

// LogNotifier writes messages to the structured log. Used for targets no
// other channel can reach.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With("component", "notify")}
}

func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	n.log.InfoContext(ctx, "alert notification",
		"level", string(msg.Level),
		"target", msg.Target,
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}
