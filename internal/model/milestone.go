package model

import (
	"fmt"
	"strings"
	"time"
)

type MilestoneStatus string

const (
	MilestonePending   MilestoneStatus = "PENDING"
	MilestoneCompleted MilestoneStatus = "COMPLETED"
)

func ParseMilestoneStatus(s string) (MilestoneStatus, error) {
	switch st := MilestoneStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case MilestonePending, MilestoneCompleted:
		return st, nil
	default:
		return "", fmt.Errorf("invalid milestone status %q", s)
	}
}

// Well-known milestone names. The set is open: any name is accepted.
const (
	MilestoneBookingConfirmed = "BOOKING_CONFIRMED"
	MilestoneVesselDeparted   = "VESSEL_DEPARTED"
	MilestoneArrivedAtPOD     = "ARRIVED_AT_POD"
	MilestoneArrivedAtPOE     = "ARRIVED_AT_POE"
	MilestoneCustomsReleased  = "CUSTOMS_RELEASED"
	MilestonePickedUp         = "PICKED_UP"
)

// MilestoneEffect describes what a known milestone does to its shipment row.
type MilestoneEffect struct {
	// DateColumn is the shipments column stamped with the milestone time.
	DateColumn string
	// Status, when set, replaces current_status.
	Status ShipmentStatus
}

var milestoneEffects = map[string]MilestoneEffect{
	MilestoneBookingConfirmed: {DateColumn: "booking_date"},
	MilestoneVesselDeparted:   {DateColumn: "vessel_departure_date", Status: ShipmentInTransit},
	MilestoneArrivedAtPOD:     {DateColumn: "pod_date", Status: ShipmentArrived},
	MilestoneArrivedAtPOE:     {DateColumn: "poe_date", Status: ShipmentArrived},
	MilestoneCustomsReleased:  {DateColumn: "customs_release_date", Status: ShipmentCustomsCleared},
	MilestonePickedUp:         {DateColumn: "pickup_date", Status: ShipmentCompleted},
}

// EffectOf returns the shipment side effects of a milestone name.
// Unknown names only overwrite current_milestone.
func EffectOf(name string) (MilestoneEffect, bool) {
	e, ok := milestoneEffects[NormalizeMilestoneName(name)]
	return e, ok
}

// NormalizeMilestoneName upper-cases and trims a submitted milestone name.
func NormalizeMilestoneName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

type Milestone struct {
	ID               int64           `json:"milestone_id"`
	ShipmentID       int64           `json:"shipment_id"`
	Name             string          `json:"milestone_name"`
	Status           MilestoneStatus `json:"status"`
	ActualDate       time.Time       `json:"actual_date"`
	Location         *string         `json:"location,omitempty"`
	Notes            *string         `json:"notes,omitempty"`
	CreatedBy        string          `json:"created_by"`
	NotificationSent bool            `json:"notification_sent"`
}

// NewMilestone is the input for recording a completed milestone.
type NewMilestone struct {
	ShipmentID int64
	Name       string
	Location   *string
	Notes      *string
	CreatedBy  string
	ActualDate time.Time
}

// MilestoneNotification is an eligible milestone joined with the shipment
// fields needed to render its email, plus its delivery bookkeeping.
type MilestoneNotification struct {
	MilestoneID     int64      `json:"milestone_id"`
	ShipmentID      int64      `json:"shipment_id"`
	MilestoneName   string     `json:"milestone_name"`
	ActualDate      time.Time  `json:"actual_date"`
	Location        *string    `json:"location,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
	BookingNumber   string     `json:"booking_number"`
	ContainerNumber *string    `json:"container_number,omitempty"`
	VesselName      *string    `json:"vessel_name,omitempty"`
	Attempts        int        `json:"attempts"`
	NextAttemptAt   *time.Time `json:"next_attempt_at,omitempty"`
	LastError       *string    `json:"last_error,omitempty"`
}

// DueForDelivery reports whether an unsent row is eligible at now. A first
// attempt needs actual_date after since; a retry needs its next attempt time
// to have passed. PendingMilestones applies the same predicate in SQL.
func (n MilestoneNotification) DueForDelivery(since, now time.Time) bool {
	if n.NextAttemptAt == nil {
		return n.ActualDate.After(since)
	}
	return !n.NextAttemptAt.After(now)
}

// DeliveryFailure is the bookkeeping written after a failed send.
type DeliveryFailure struct {
	Attempts      int
	NextAttemptAt *time.Time
	Dead          bool
	Error         string
}
