package models

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrIncidentNotFound = errors.New("incident not found")
	ErrInvalidStatus    = errors.New("invalid incident status")
)

// Severity - закрытый набор уровней тяжести происшествия
type Severity string

const (
	SeverityMinor    Severity = "MINOR"
	SeverityMedium   Severity = "MEDIUM"
	SeverityMajor    Severity = "MAJOR"
	SeverityCritical Severity = "CRITICAL"
)

// ParseSeverity matches raw exactly against the four known values.
// Anything else, including case variants and the empty string, yields MINOR
// and ok=false.
func ParseSeverity(raw string) (severity Severity, ok bool) {
	switch s := Severity(raw); s {
	case SeverityMinor, SeverityMedium, SeverityMajor, SeverityCritical:
		return s, true
	}
	return SeverityMinor, false
}

// RequiresAlert reports whether the severity crosses the notification threshold.
func (s Severity) RequiresAlert() bool {
	return s == SeverityMajor || s == SeverityCritical
}

// Status - состояние инцидента. Ingestion produces only DETECTED.
type Status string

const (
	StatusDetected Status = "DETECTED"
	// Reserved, never produced.
	StatusAcknowledged Status = "ACKNOWLEDGED"
	StatusResolved     Status = "RESOLVED"
)

func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusDetected, StatusAcknowledged, StatusResolved:
		return s, nil
	}
	return "", ErrInvalidStatus
}

// Location - координаты места происшествия
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Known reports whether the location differs from the (0,0) sentinel.
func (l Location) Known() bool {
	return l.Lat != 0 || l.Lng != 0
}

// RawIncident - необработанное событие от сервиса детекции
type RawIncident struct {
	DeviceID      string
	Timestamp     string
	Severity      string
	VictimCount   *int
	Location      *Location
	SnapshotRef   string
	InjuryReport  any
	InjurySummary string
}

// IncidentDraft - нормализованное событие, готовое к сохранению
type IncidentDraft struct {
	DeviceIdentifier  string
	Timestamp         time.Time
	TimestampFallback bool
	Severity          Severity
	RawSeverity       string
	SeverityFallback  bool
	VictimCount       int
	Location          Location
	SnapshotRef       string
	InjuryReport      json.RawMessage
	InjurySummary     string
}

// Incident - сохраненный инцидент. Immutable once appended.
type Incident struct {
	ID                int64           `json:"id"`
	DeviceID          int64           `json:"device_id"`
	DeviceIdentifier  string          `json:"device_identifier"`
	DeviceName        string          `json:"device_name"`
	Timestamp         time.Time       `json:"timestamp"`
	TimestampFallback bool            `json:"timestamp_fallback"`
	Severity          Severity        `json:"severity"`
	RawSeverity       string          `json:"raw_severity"`
	SeverityFallback  bool            `json:"severity_fallback"`
	VictimCount       int             `json:"victim_count"`
	InjuryReport      json.RawMessage `json:"injury_report"`
	InjurySummary     string          `json:"injury_summary,omitempty"`
	Status            Status          `json:"status"`
	Location          Location        `json:"location"`
	SnapshotRef       string          `json:"snapshot_ref,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// NewIncident builds the record appended for a draft on device.
func NewIncident(device *Device, draft *IncidentDraft) *Incident {
	return &Incident{
		DeviceID:          device.ID,
		DeviceIdentifier:  device.Identifier,
		DeviceName:        device.Name,
		Timestamp:         draft.Timestamp,
		TimestampFallback: draft.TimestampFallback,
		Severity:          draft.Severity,
		RawSeverity:       draft.RawSeverity,
		SeverityFallback:  draft.SeverityFallback,
		VictimCount:       draft.VictimCount,
		InjuryReport:      draft.InjuryReport,
		InjurySummary:     draft.InjurySummary,
		Status:            StatusDetected,
		Location:          draft.Location,
		SnapshotRef:       draft.SnapshotRef,
	}
}
