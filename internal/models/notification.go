package models

import (
	"time"

	"github.com/google/uuid"
)

// Channel - адресат оповещения
type Channel string

const (
	ChannelPolice   Channel = "police"
	ChannelHospital Channel = "hospital"
)

type Outcome string

const (
	OutcomeDelivered Outcome = "DELIVERED"
	OutcomeFailed    Outcome = "FAILED"
)

// NotificationAttempt - одна попытка доставки оповещения в один канал
type NotificationAttempt struct {
	ID         uuid.UUID `json:"id"`
	IncidentID int64     `json:"incident_id"`
	Channel    Channel   `json:"channel"`
	Recipient  string    `json:"recipient"`
	Body       string    `json:"body"`
	Outcome    Outcome   `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
