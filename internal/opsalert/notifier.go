// Package opsalert posts operator-facing notifications to Slack for events
// an on-call human should know about immediately: a death protocol firing,
// or a job exhausting its retry budget and landing in the dead letter.
package opsalert

import (
	"context"
	"fmt"
	"log/slog"

	goslack "github.com/slack-go/slack"
)

// Notifier sends ops alerts to a single configured Slack channel.
type Notifier struct {
	client  *goslack.Client
	channel string
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. If botToken is empty the notifier is a
// noop (it logs instead of posting).
func NewNotifier(botToken, channel string, logger *slog.Logger) *Notifier {
	var client *goslack.Client
	if botToken != "" {
		client = goslack.New(botToken)
	}
	return &Notifier{client: client, channel: channel, logger: logger}
}

// IsEnabled returns true if the notifier has a configured Slack client.
func (n *Notifier) IsEnabled() bool {
	return n.client != nil && n.channel != ""
}

// DeathProtocolTriggered posts notice that release fired for a user.
func (n *Notifier) DeathProtocolTriggered(ctx context.Context, userID string, trusteesNotified, lettersQueued int) {
	n.post(ctx, fmt.Sprintf(
		":skull: Death protocol triggered for user `%s` — %d trustees notified, %d letters queued.",
		userID, trusteesNotified, lettersQueued,
	))
}

// JobDeadLettered posts notice that a job exhausted its retry budget.
func (n *Notifier) JobDeadLettered(ctx context.Context, queue, jobKind string, attempts int) {
	n.post(ctx, fmt.Sprintf(
		":warning: Job `%s` on queue `%s` dead-lettered after %d attempts. The next scheduler sweep may re-enqueue it if the underlying condition still holds.",
		jobKind, queue, attempts,
	))
}

func (n *Notifier) post(ctx context.Context, text string) {
	if !n.IsEnabled() {
		n.logger.Debug("opsalert disabled, skipping", "text", text)
		return
	}

	_, _, err := n.client.PostMessageContext(ctx, n.channel, goslack.MsgOptionText(text, false))
	if err != nil {
		n.logger.Error("posting ops alert to slack", "error", err)
	}
}
