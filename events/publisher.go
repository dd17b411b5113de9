// Package events publishes session lifecycle events to NATS for downstream
// consumers (dashboards, audit, automation). Publishing is best-effort:
// a nil publisher or a failed publish never affects the session.
package events

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/intakekit/intakekit/conversation"
)

// DefaultSubjectPrefix is the root of the lifecycle event subject space.
const DefaultSubjectPrefix = "intake.session"

// Payload is the JSON message published for each lifecycle event.
type Payload struct {
	Event        string    `json:"event"`
	SessionID    string    `json:"session_id"`
	Status       string    `json:"status"`
	Phase        string    `json:"phase"`
	Template     string    `json:"template"`
	Messages     int       `json:"messages"`
	LastActivity time.Time `json:"last_activity"`
	PublishedAt  time.Time `json:"published_at"`
}

// Publisher emits lifecycle events on <prefix>.<event> subjects. It
// satisfies conversation.Notifier.
type Publisher struct {
	nc     *nats.Conn
	prefix string
	logger *slog.Logger
}

// NewPublisher creates a lifecycle event publisher. A nil connection yields
// a no-op publisher, so callers wire it unconditionally.
func NewPublisher(nc *nats.Conn, prefix string, logger *slog.Logger) *Publisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{nc: nc, prefix: prefix, logger: logger}
}

// Subject returns the NATS subject for an event name.
func (p *Publisher) Subject(event string) string {
	return p.prefix + "." + event
}

// SessionEvent publishes one lifecycle event. Failures are logged and
// swallowed.
func (p *Publisher) SessionEvent(event string, summary conversation.Summary) {
	if p == nil || p.nc == nil {
		return
	}

	payload := Payload{
		Event:        event,
		SessionID:    summary.ID,
		Status:       string(summary.Status),
		Phase:        string(summary.Phase),
		Template:     summary.TemplateName,
		Messages:     summary.Messages,
		LastActivity: summary.LastActivity,
		PublishedAt:  time.Now(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warn("failed to marshal session event", "event", event, "error", err)
		return
	}
	if err := p.nc.Publish(p.Subject(event), data); err != nil {
		p.logger.Warn("failed to publish session event",
			"event", event,
			"session_id", summary.ID,
			"error", err)
	}
}
