package mq

import "time"

// Routing keys on the events exchange.
const (
	RoutingShipmentCreated    = "shipment.created"
	RoutingMilestoneCompleted = "milestone.completed"
	RoutingExceptionOpened    = "exception.opened"
	RoutingExceptionResolved  = "exception.resolved"
)

// Aggregate types recorded in outbox_events.
const (
	AggregateShipment  = "shipment"
	AggregateMilestone = "milestone"
	AggregateException = "exception"
)

type ShipmentCreatedPayload struct {
	ShipmentID    int64     `json:"shipment_id"`
	BookingNumber string    `json:"booking_number"`
	MilestoneID   int64     `json:"milestone_id"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	TraceID       string    `json:"trace_id,omitempty"`
}

type MilestoneCompletedPayload struct {
	MilestoneID   int64     `json:"milestone_id"`
	ShipmentID    int64     `json:"shipment_id"`
	BookingNumber string    `json:"booking_number"`
	MilestoneName string    `json:"milestone_name"`
	Location      *string   `json:"location,omitempty"`
	ActualDate    time.Time `json:"actual_date"`
	CreatedBy     string    `json:"created_by"`
	TraceID       string    `json:"trace_id,omitempty"`
}

type ExceptionOpenedPayload struct {
	ExceptionID   int64     `json:"exception_id"`
	ShipmentID    int64     `json:"shipment_id"`
	BookingNumber string    `json:"booking_number"`
	Severity      string    `json:"severity"`
	Title         string    `json:"title"`
	ReportedBy    string    `json:"reported_by"`
	CreatedAt     time.Time `json:"created_at"`
	TraceID       string    `json:"trace_id,omitempty"`
}

type ExceptionResolvedPayload struct {
	ExceptionID int64     `json:"exception_id"`
	ShipmentID  int64     `json:"shipment_id"`
	ResolvedBy  string    `json:"resolved_by"`
	ResolvedAt  time.Time `json:"resolved_at"`
	TraceID     string    `json:"trace_id,omitempty"`
}
