package flights

import (
	"fmt"
	"strings"
	"time"

	"github.com/flightops/flight-data-server/internal/models"
)

// narrationHeader opens every event change message
const narrationHeader = "Event Times Updated:"

// narrator collects one line per event change for the flight's audit trail.
type narrator struct {
	codes      map[int64]string
	flightDate time.Time
	lines      []string
}

func (n *narrator) name(ev *models.Event) string {
	return ev.DisplayName(n.codes[ev.CodeID], n.flightDate)
}

func (n *narrator) added(ev *models.Event) {
	n.lines = append(n.lines, "Added: "+n.name(ev))
}

func (n *narrator) removed(ev *models.Event) {
	n.lines = append(n.lines, "Removed: "+n.name(ev))
}

func (n *narrator) updated(old, next *models.Event, fields []string) {
	name := n.name(old)
	for _, f := range fields {
		n.lines = append(n.lines, fmt.Sprintf("%s: %s changed from %s to %s",
			name, f, n.value(old, f), n.value(next, f)))
	}
}

// value renders one field of ev the way the narration shows it
func (n *narrator) value(ev *models.Event, field string) string {
	switch field {
	case "code":
		return n.codes[ev.CodeID]
	case "time_kind":
		return ev.TimeKind.Label()
	case "time":
		if ev.Time == nil {
			return "None"
		}
		return ev.Time.UTC().Format("2006-01-02 15:04:05")
	case "user":
		if ev.User == "" {
			return "None"
		}
		return ev.User
	}
	return ""
}

// String returns the full message, or "" when nothing changed
func (n *narrator) String() string {
	if len(n.lines) == 0 {
		return ""
	}
	return narrationHeader + "\n" + strings.Join(n.lines, "\n")
}
