package notifier

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"shipmentportal/internal/model"
)

const (
	DateLayout       = "2006-01-02 15:04 UTC"
	DefaultPortalURL = "https://portal.seaironline.com"

	pendingContainer   = "Pending"
	unknownValue       = "N/A"
	defaultDescription = "No additional details provided"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type milestoneView struct {
	Milestone     string
	BookingNumber string
	Container     string
	Vessel        string
	Date          string
	Location      string
	Notes         string
	PortalURL     string
	Year          int
}

type exceptionView struct {
	Severity      model.Severity
	Color         template.CSS
	Title         string
	Description   string
	ExceptionType string
	BookingNumber string
	Container     string
	Vessel        string
	Reported      string
}

type summaryRow struct {
	BookingNumber string
	Container     string
	Milestone     string
}

type summaryView struct {
	LongDate        string
	ActiveShipments int
	MilestonesToday int
	OpenExceptions  int
	DocumentsToday  int
	Rows            []summaryRow
	PortalURL       string
}

func orDefault(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// MilestoneSubject is "Milestone Update: <Formatted Name> - <booking>".
func MilestoneSubject(n model.MilestoneNotification) string {
	return fmt.Sprintf("Milestone Update: %s - %s", model.FormatMilestoneName(n.MilestoneName), n.BookingNumber)
}

func renderMilestone(n model.MilestoneNotification, portalURL string, now time.Time) (string, error) {
	return execute("milestone.html", milestoneView{
		Milestone:     model.FormatMilestoneName(n.MilestoneName),
		BookingNumber: n.BookingNumber,
		Container:     orDefault(n.ContainerNumber, pendingContainer),
		Vessel:        orDefault(n.VesselName, unknownValue),
		Date:          n.ActualDate.UTC().Format(DateLayout),
		Location:      deref(n.Location),
		Notes:         deref(n.Notes),
		PortalURL:     portalURL,
		Year:          now.UTC().Year(),
	})
}

// ExceptionSubject is "Exception Alert [<SEVERITY>]: <title> - <booking>".
func ExceptionSubject(a model.ExceptionAlert) string {
	return fmt.Sprintf("Exception Alert [%s]: %s - %s", a.Severity, a.Title, a.BookingNumber)
}

func renderException(a model.ExceptionAlert) (string, error) {
	return execute("exception.html", exceptionView{
		Severity:      a.Severity,
		Color:         template.CSS(a.Severity.Color()),
		Title:         a.Title,
		Description:   orDefault(a.Description, defaultDescription),
		ExceptionType: orDefault(a.ExceptionType, unknownValue),
		BookingNumber: a.BookingNumber,
		Container:     orDefault(a.ContainerNumber, pendingContainer),
		Vessel:        orDefault(a.VesselName, unknownValue),
		Reported:      a.CreatedAt.UTC().Format(DateLayout),
	})
}

// SummarySubject is "Daily Shipment Summary - YYYY-MM-DD".
func SummarySubject(day time.Time) string {
	return "Daily Shipment Summary - " + day.UTC().Format("2006-01-02")
}

func renderSummary(s *model.DailySummary, portalURL string) (string, error) {
	rows := make([]summaryRow, 0, len(s.RecentlyUpdated))
	for _, sh := range s.RecentlyUpdated {
		rows = append(rows, summaryRow{
			BookingNumber: sh.BookingNumber,
			Container:     orDefault(sh.ContainerNumber, pendingContainer),
			Milestone:     model.FormatMilestoneName(sh.CurrentMilestone),
		})
	}
	return execute("summary.html", summaryView{
		LongDate:        s.Day.UTC().Format("January 02, 2006"),
		ActiveShipments: s.ActiveShipments,
		MilestonesToday: s.MilestonesToday,
		OpenExceptions:  s.OpenExceptions,
		DocumentsToday:  s.DocumentsToday,
		Rows:            rows,
		PortalURL:       portalURL,
	})
}
