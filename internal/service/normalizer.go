package service

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shenikar/accident_alert_system/internal/models"
)

var emptyInjuryReport = json.RawMessage(`[]`)

// NormalizeIncident converts an untrusted detection event into a draft.
// It never fails: malformed optional fields fall back to defaults, and now is
// used when the timestamp cannot be parsed.
func NormalizeIncident(raw *models.RawIncident, now time.Time) *models.IncidentDraft {
	ts, tsOK := ParseTimestamp(raw.Timestamp, now)
	severity, sevOK := models.ParseSeverity(raw.Severity)

	draft := &models.IncidentDraft{
		DeviceIdentifier:  strings.TrimSpace(sanitizeText(raw.DeviceID)),
		Timestamp:         ts,
		TimestampFallback: !tsOK,
		Severity:          severity,
		RawSeverity:       sanitizeText(raw.Severity),
		SeverityFallback:  !sevOK,
		VictimCount:       normalizeVictimCount(raw.VictimCount),
		SnapshotRef:       strings.TrimSpace(sanitizeText(raw.SnapshotRef)),
		InjuryReport:      NormalizeInjuryReport(raw.InjuryReport),
		InjurySummary:     strings.TrimSpace(sanitizeText(raw.InjurySummary)),
	}
	if raw.Location != nil {
		draft.Location = *raw.Location
	}
	return draft
}

// ParseTimestamp parses an RFC 3339 time with a mandatory offset.
// On failure it returns now and ok=false.
func ParseTimestamp(raw string, now time.Time) (time.Time, bool) {
	ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(raw))
	if err != nil {
		return now.UTC(), false
	}
	return ts.UTC(), true
}

// sanitizeText drops NUL bytes and replaces invalid UTF-8 so free text is
// storable in a Postgres TEXT column.
func sanitizeText(s string) string {
	return strings.ToValidUTF8(strings.ReplaceAll(s, "\x00", ""), "\uFFFD")
}

// normalizeVictimCount clamps the count into [0, MaxInt32], the range of the stored column.
func normalizeVictimCount(count *int) int {
	switch {
	case count == nil || *count < 0:
		return 0
	case *count > math.MaxInt32:
		return math.MaxInt32
	}
	return *count
}

// NormalizeInjuryReport re-encodes the producer's report verbatim.
// Absent reports become an empty list; values that cannot be encoded are kept
// as their textual rendering.
func NormalizeInjuryReport(report any) json.RawMessage {
	if report == nil {
		return emptyInjuryReport
	}
	if raw, ok := report.(json.RawMessage); ok {
		if len(raw) == 0 || string(raw) == "null" {
			return emptyInjuryReport
		}
		if json.Valid(raw) {
			return json.RawMessage(strings.ToValidUTF8(string(raw), "\uFFFD"))
		}
		report = string(raw)
	}

	encoded, err := json.Marshal(report)
	if err != nil {
		// A string always encodes.
		encoded, _ = json.Marshal(fmt.Sprintf("%v", report))
	}
	return encoded
}
