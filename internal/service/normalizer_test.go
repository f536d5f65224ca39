package service

import (
	"encoding/json"
	"math"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/shenikar/accident_alert_system/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestParseTimestamp(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		raw      string
		expected time.Time
		ok       bool
	}{
		{"utc", "2024-01-01T10:00:00Z", time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), true},
		{"offset converted to utc", "2024-01-01T15:30:00+05:30", time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), true},
		{"fractional seconds", "2024-01-01T10:00:00.250Z", time.Date(2024, 1, 1, 10, 0, 0, 250000000, time.UTC), true},
		{"missing offset", "2024-01-01T10:00:00", now, false},
		{"date only", "2024-01-01", now, false},
		{"garbage", "not a time", now, false},
		{"empty", "", now, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, ok := ParseTimestamp(tt.raw, now)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, tt.expected.Equal(ts), "got %s", ts)
			assert.Equal(t, time.UTC, ts.Location())
		})
	}
}

func TestNormalizeIncident_Severity(t *testing.T) {
	now := time.Now()

	for _, raw := range []string{"MINOR", "MEDIUM", "MAJOR", "CRITICAL"} {
		draft := NormalizeIncident(&models.RawIncident{DeviceID: "cam", Severity: raw}, now)
		assert.Equal(t, models.Severity(raw), draft.Severity)
		assert.False(t, draft.SeverityFallback)
	}

	for _, raw := range []string{"critical", "Major", "", " CRITICAL", "unknown_value", "SEVERE"} {
		draft := NormalizeIncident(&models.RawIncident{DeviceID: "cam", Severity: raw}, now)
		assert.Equal(t, models.SeverityMinor, draft.Severity, "raw %q", raw)
		assert.True(t, draft.SeverityFallback, "raw %q", raw)
		assert.Equal(t, raw, draft.RawSeverity)
	}
}

func TestNormalizeIncident_Defaults(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	draft := NormalizeIncident(&models.RawIncident{DeviceID: "  cam_07  ", Timestamp: "bad"}, now)

	assert.Equal(t, "cam_07", draft.DeviceIdentifier)
	assert.Equal(t, now, draft.Timestamp)
	assert.True(t, draft.TimestampFallback)
	assert.Equal(t, 0, draft.VictimCount)
	assert.Equal(t, models.Location{}, draft.Location)
	assert.Empty(t, draft.SnapshotRef)
	assert.JSONEq(t, `[]`, string(draft.InjuryReport))
	assert.Empty(t, draft.InjurySummary)
}

func TestNormalizeIncident_Deterministic(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	raw := &models.RawIncident{
		DeviceID:     "cam_07",
		Timestamp:    "garbage",
		Severity:     "MAJOR",
		VictimCount:  intPtr(3),
		Location:     &models.Location{Lat: 1.5, Lng: -2.25},
		InjuryReport: map[string]any{"victims": 3},
	}

	assert.Equal(t, NormalizeIncident(raw, now), NormalizeIncident(raw, now))
}

func TestNormalizeIncident_NegativeVictimCount(t *testing.T) {
	draft := NormalizeIncident(&models.RawIncident{DeviceID: "cam", VictimCount: intPtr(-4)}, time.Now())
	assert.Equal(t, 0, draft.VictimCount)
}

func TestNormalizeInjuryReport(t *testing.T) {
	tests := []struct {
		name     string
		report   any
		expected string
	}{
		{"nil", nil, `[]`},
		{"empty raw", json.RawMessage(nil), `[]`},
		{"null raw", json.RawMessage(`null`), `[]`},
		{"raw object kept", json.RawMessage(`{"a":1}`), `{"a":1}`},
		{"invalid raw becomes string", json.RawMessage(`{broken`), `"{broken"`},
		{"map", map[string]any{"victims": []any{"head trauma"}}, `{"victims":["head trauma"]}`},
		{"unencodable falls back to text", map[string]any{"f": func() {}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeInjuryReport(tt.report)
			assert.True(t, json.Valid(got), "invalid json %s", got)
			if tt.expected != "" {
				assert.JSONEq(t, tt.expected, string(got))
				return
			}
			var text string
			assert.NoError(t, json.Unmarshal(got, &text))
			assert.Contains(t, text, "map[")
		})
	}
}

func TestNormalizeIncident_VictimCountClampedToColumnRange(t *testing.T) {
	draft := NormalizeIncident(&models.RawIncident{DeviceID: "cam", VictimCount: intPtr(3000000000)}, time.Now())
	assert.Equal(t, math.MaxInt32, draft.VictimCount)

	draft = NormalizeIncident(&models.RawIncident{DeviceID: "cam", VictimCount: intPtr(math.MaxInt32)}, time.Now())
	assert.Equal(t, math.MaxInt32, draft.VictimCount)
}

func TestNormalizeIncident_SanitizesFreeText(t *testing.T) {
	raw := &models.RawIncident{
		DeviceID:      "cam\x00_07",
		Severity:      "\x00",
		SnapshotRef:   "http://x/\x00s.jpg",
		InjurySummary: "fracture\xff\x00",
	}

	draft := NormalizeIncident(raw, time.Now())

	assert.Equal(t, models.SeverityMinor, draft.Severity)
	assert.True(t, draft.SeverityFallback)
	assert.Equal(t, "", draft.RawSeverity)
	assert.Equal(t, "cam_07", draft.DeviceIdentifier)
	assert.Equal(t, "http://x/s.jpg", draft.SnapshotRef)
	assert.Equal(t, "fracture\uFFFD", draft.InjurySummary)
	for _, s := range []string{draft.DeviceIdentifier, draft.RawSeverity, draft.SnapshotRef, draft.InjurySummary} {
		assert.True(t, utf8.ValidString(s))
		assert.NotContains(t, s, "\x00")
	}
}

func TestNormalizeIncident_BlankDeviceID(t *testing.T) {
	draft := NormalizeIncident(&models.RawIncident{DeviceID: "   "}, time.Now())
	assert.Empty(t, draft.DeviceIdentifier)
}
