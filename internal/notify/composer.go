package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shenikar/accident_alert_system/internal/models"
)

// Profile - профиль содержимого сообщения для аудитории канала
type Profile int

const (
	// ProfileRedacted never carries medical details.
	ProfileRedacted Profile = iota
	// ProfileFull adds the injury summary.
	ProfileFull
)

func (p Profile) String() string {
	switch p {
	case ProfileRedacted:
		return "redacted"
	case ProfileFull:
		return "full"
	default:
		return "unknown"
	}
}

const (
	placeholderNA       = "N/A"
	locationUnavailable = "Location unavailable"
	mapsURL             = "https://www.google.com/maps?q="
)

// Compose формирует текст оповещения для канала.
// Missing optional fields render as placeholders.
func Compose(title string, profile Profile, incident *models.Incident) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: accident detected\n", title)
	fmt.Fprintf(&b, "Incident: #%d\n", incident.ID)
	fmt.Fprintf(&b, "Severity: %s\n", incident.Severity)
	fmt.Fprintf(&b, "Victims: %d\n", incident.VictimCount)
	fmt.Fprintf(&b, "Camera: %s\n", deviceLabel(incident))
	fmt.Fprintf(&b, "Time: %s\n", incident.Timestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Location: %s\n", MapLink(incident.Location))
	fmt.Fprintf(&b, "Snapshot: %s", orPlaceholder(incident.SnapshotRef))

	if profile == ProfileFull {
		if summary := strings.TrimSpace(incident.InjurySummary); summary != "" {
			fmt.Fprintf(&b, "\n\nAI injury report:\n%s", summary)
		} else {
			fmt.Fprintf(&b, "\n\nAI injury report: %s", placeholderNA)
		}
	}
	return b.String()
}

// MapLink returns a maps URL, or a placeholder for the (0,0) sentinel.
func MapLink(loc models.Location) string {
	if !loc.Known() {
		return locationUnavailable
	}
	return mapsURL + strconv.FormatFloat(loc.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(loc.Lng, 'f', -1, 64)
}

func deviceLabel(incident *models.Incident) string {
	switch {
	case incident.DeviceName != "":
		return incident.DeviceName
	case incident.DeviceIdentifier != "":
		return incident.DeviceIdentifier
	default:
		return "UNKNOWN"
	}
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return placeholderNA
	}
	return s
}

const testAlertBody = "Test alert from the accident alert system.\nIf you received this, the alert transport is configured correctly."
