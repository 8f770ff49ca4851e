package notification

import (
	"context"
	"log/slog"
	"strings"
)

// Channel names, also used as metric labels.
const (
	ChannelWebhook  = "webhook"
	ChannelTelegram = "telegram"
	ChannelEmail    = "email"
	ChannelLog      = "log"
)

// Dispatcher routes each message to a notifier by the shape of its target:
//
//	http(s)://...        webhook
//	telegram:<chat id>   Telegram (when a bot token is configured)
//	[mailto:]a@b.c       email (when SMTP is configured)
//	anything else        log
type Dispatcher struct {
	webhook  Notifier
	telegram Notifier
	email    Notifier
	fallback Notifier
}

// NewDispatcher creates a dispatcher. Nil channels route to the log.
func NewDispatcher(webhook, telegram, email Notifier, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		webhook:  webhook,
		telegram: telegram,
		email:    email,
		fallback: NewLogNotifier(log),
	}
}

// Channel returns the channel a target is delivered on.
func (d *Dispatcher) Channel(target string) string {
	t := strings.TrimSpace(strings.ToLower(target))
	switch {
	case strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://"):
		if d.webhook != nil {
			return ChannelWebhook
		}
	case strings.HasPrefix(t, TelegramPrefix):
		if d.telegram != nil {
			return ChannelTelegram
		}
	case strings.HasPrefix(t, MailtoPrefix) || strings.Contains(t, "@"):
		if d.email != nil {
			return ChannelEmail
		}
	}
	return ChannelLog
}

func (d *Dispatcher) Send(ctx context.Context, msg Message) error {
	msg.Target = strings.TrimSpace(msg.Target)
	switch d.Channel(msg.Target) {
	case ChannelWebhook:
		return d.webhook.Send(ctx, msg)
	case ChannelTelegram:
		return d.telegram.Send(ctx, msg)
	case ChannelEmail:
		return d.email.Send(ctx, msg)
	default:
		return d.fallback.Send(ctx, msg)
	}
}
