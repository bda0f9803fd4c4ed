package model

import (
	"fmt"
	"strings"
	"time"
)

type ExceptionStatus string

const (
	ExceptionOpen     ExceptionStatus = "OPEN"
	ExceptionResolved ExceptionStatus = "RESOLVED"
)

func ParseExceptionStatus(s string) (ExceptionStatus, error) {
	switch st := ExceptionStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case ExceptionOpen, ExceptionResolved:
		return st, nil
	default:
		return "", fmt.Errorf("invalid exception status %q", s)
	}
}

// Severity is ordered: LOW < MEDIUM < HIGH < CRITICAL.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

var severityColor = map[Severity]string{
	SeverityLow:      "#3b82f6",
	SeverityMedium:   "#f59e0b",
	SeverityHigh:     "#ef4444",
	SeverityCritical: "#dc2626",
}

// ParseSeverity validates a severity; empty input defaults to MEDIUM.
func ParseSeverity(s string) (Severity, error) {
	if strings.TrimSpace(s) == "" {
		return SeverityMedium, nil
	}
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := severityRank[sev]; !ok {
		return "", fmt.Errorf("invalid severity %q", s)
	}
	return sev, nil
}

// Escalates reports whether the escalation list must also be notified.
func (s Severity) Escalates() bool {
	return severityRank[s] >= severityRank[SeverityHigh]
}

// Color is the presentation colour of the alert header.
func (s Severity) Color() string {
	if c, ok := severityColor[s]; ok {
		return c
	}
	return severityColor[SeverityMedium]
}

type Exception struct {
	ID            int64           `json:"exception_id"`
	ShipmentID    int64           `json:"shipment_id"`
	ExceptionType *string         `json:"exception_type"`
	Severity      Severity        `json:"severity"`
	Title         string          `json:"title"`
	Description   *string         `json:"description"`
	ReportedBy    string          `json:"reported_by"`
	Status        ExceptionStatus `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty"`
}

type NewException struct {
	ShipmentID    int64
	ExceptionType *string
	Severity      Severity
	Title         string
	Description   *string
	ReportedBy    string
}

// ExceptionAlert is an open exception joined with its shipment identifiers.
type ExceptionAlert struct {
	ExceptionID     int64     `json:"exception_id"`
	ShipmentID      int64     `json:"shipment_id"`
	ExceptionType   *string   `json:"exception_type,omitempty"`
	Severity        Severity  `json:"severity"`
	Title           string    `json:"title"`
	Description     *string   `json:"description,omitempty"`
	BookingNumber   string    `json:"booking_number"`
	ContainerNumber *string   `json:"container_number,omitempty"`
	VesselName      *string   `json:"vessel_name,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
