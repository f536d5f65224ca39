package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSPublisher публикует события ленты в subject NATS
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

func NewNATSPublisher(conn *nats.Conn, subject string) *NATSPublisher {
	return &NATSPublisher{
		conn:    conn,
		subject: subject,
	}
}

func (p *NATSPublisher) Publish(_ context.Context, event IncidentEvent) error {
	if p.conn == nil || p.conn.IsClosed() {
		return fmt.Errorf("nats connection is not available")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal incident event: %w", err)
	}

	msg := nats.NewMsg(p.subject)
	msg.Data = payload
	msg.Header.Set("Event-Id", event.EventID.String())
	msg.Header.Set("Event-Type", event.Type)
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish incident event to NATS: %w", err)
	}
	return nil
}
