// Package events publishes build lifecycle events for external consumers.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// BuildCompleted is emitted after every watch-mode rebuild attempt.
type BuildCompleted struct {
	BuildID   string    `json:"build_id"`
	Trigger   string    `json:"trigger"` // watch|schedule|startup
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Duration  int64     `json:"duration_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher delivers build events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	PublishBuildCompleted(evt BuildCompleted) error
	Close()
}

// NoopPublisher discards all events (default when publishing is not configured).
type NoopPublisher struct{}

func (NoopPublisher) PublishBuildCompleted(BuildCompleted) error { return nil }

func (NoopPublisher) Close() {}

// NATSPublisher publishes build events to a NATS subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher connects to NATS and returns a publisher for subject.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slog.Info("NATS publisher initialized", "url", url, "subject", subject)
	return &NATSPublisher{conn: conn, subject: subject}, nil
}

// PublishBuildCompleted publishes the event as JSON.
func (p *NATSPublisher) PublishBuildCompleted(evt BuildCompleted) error {
	evt.Timestamp = time.Now()
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	slog.Debug("Published build event", "build_id", evt.BuildID, "success", evt.Success)
	return nil
}

// Close closes the NATS connection.
func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
