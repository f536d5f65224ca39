package notify

import (
	"context"

	"github.com/shenikar/accident_alert_system/internal/models"
	"github.com/sirupsen/logrus"
)

// Message - сообщение для внешнего транспорта
type Message struct {
	Channel    models.Channel `json:"role"`
	Recipient  string         `json:"to"`
	IncidentID int64          `json:"incident_id,omitempty"`
	Body       string         `json:"body"`
}

// Sender доставляет текстовое сообщение получателю.
// A nil error means delivered.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender только пишет сообщение в лог
type LogSender struct {
	logger *logrus.Logger
}

func NewLogSender(logger *logrus.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.WithFields(logrus.Fields{
		"channel":     msg.Channel,
		"recipient":   msg.Recipient,
		"incident_id": msg.IncidentID,
	}).Info(msg.Body)
	return nil
}
