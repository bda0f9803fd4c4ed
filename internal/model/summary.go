package model

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// DailySummary aggregates one UTC calendar day.
type DailySummary struct {
	Day             time.Time
	ActiveShipments int
	MilestonesToday int
	OpenExceptions  int
	DocumentsToday  int
	RecentlyUpdated []SummaryShipment
}

// SummaryShipment is one row of the summary table.
type SummaryShipment struct {
	BookingNumber    string
	ContainerNumber  *string
	CurrentMilestone string
	UpdatedAt        time.Time
}

// DashboardStats backs the dashboard endpoint.
type DashboardStats struct {
	ActiveShipments   int            `json:"active_shipments"`
	ByStatus          map[string]int `json:"by_status"`
	PendingExceptions int            `json:"pending_exceptions"`
	RecentMilestones  int            `json:"recent_milestones"`
}

// FormatMilestoneName turns VESSEL_DEPARTED into "Vessel Departed".
// An empty name renders as "N/A".
func FormatMilestoneName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "N/A"
	}
	words := strings.Fields(strings.ReplaceAll(name, "_", " "))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}

// DayBounds returns [start, end) of t's UTC calendar day.
func DayBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}
