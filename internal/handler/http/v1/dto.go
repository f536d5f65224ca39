package v1

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// LocationDTO координаты места происшествия
type LocationDTO struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IngestIncidentRequest DTO события от сервиса детекции
// @Description DTO события от сервиса детекции. Only device_id is mandatory; other fields fall back to defaults.
type IngestIncidentRequest struct {
	DeviceID      string          `json:"device_id" validate:"required,max=255"`
	Timestamp     string          `json:"timestamp,omitempty"`
	Severity      string          `json:"severity,omitempty"`
	VictimCount   *int            `json:"victim_count,omitempty"`
	Location      *LocationDTO    `json:"location,omitempty"`
	SnapshotRef   string          `json:"snapshot_ref,omitempty"`
	InjuryReport  json.RawMessage `json:"injury_report,omitempty" swaggertype:"object"`
	InjurySummary string          `json:"injury_summary,omitempty"`
}

// IncidentResponse DTO для ответа с информацией об инциденте
// @Description DTO для ответа с информацией об инциденте
type IncidentResponse struct {
	ID                int64           `json:"id"`
	DeviceID          string          `json:"device_id"`
	DeviceName        string          `json:"device_name"`
	Severity          string          `json:"severity"`
	VictimCount       int             `json:"victim_count"`
	Status            string          `json:"status"`
	Timestamp         time.Time       `json:"timestamp"`
	Location          LocationDTO     `json:"location"`
	SnapshotRef       string          `json:"snapshot_ref,omitempty"`
	InjuryReport      json.RawMessage `json:"injury_report" swaggertype:"object"`
	InjurySummary     string          `json:"injury_summary,omitempty"`
	TimestampFallback bool            `json:"timestamp_fallback"`
	SeverityFallback  bool            `json:"severity_fallback"`
	RawSeverity       string          `json:"raw_severity"`
	CreatedAt         time.Time       `json:"created_at"`
}

// DeviceResponse DTO устройства
// @Description DTO устройства
type DeviceResponse struct {
	ID         int64     `json:"id"`
	Identifier string    `json:"identifier"`
	Name       string    `json:"name"`
	Latitude   *float64  `json:"latitude,omitempty"`
	Longitude  *float64  `json:"longitude,omitempty"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

// SetDeviceActiveRequest DTO для включения/выключения устройства
// @Description DTO для включения/выключения устройства
type SetDeviceActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// NotificationAttemptResponse DTO попытки оповещения
// @Description DTO попытки оповещения
type NotificationAttemptResponse struct {
	ID         uuid.UUID `json:"id"`
	IncidentID int64     `json:"incident_id,omitempty"`
	Channel    string    `json:"channel"`
	Recipient  string    `json:"recipient"`
	Body       string    `json:"body"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// SnapshotResponse DTO с адресом загруженного снимка
// @Description DTO с адресом загруженного снимка
type SnapshotResponse struct {
	SnapshotRef string `json:"snapshot_ref"`
}
