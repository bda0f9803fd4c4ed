package model

import (
	"fmt"
	"strings"
	"time"
)

// ShipmentStatus is the coarse lifecycle state of a shipment.
type ShipmentStatus string

const (
	ShipmentBookingCreated ShipmentStatus = "BOOKING_CREATED"
	ShipmentInTransit      ShipmentStatus = "IN_TRANSIT"
	ShipmentArrived        ShipmentStatus = "ARRIVED"
	ShipmentCustomsCleared ShipmentStatus = "CUSTOMS_CLEARED"
	ShipmentCompleted      ShipmentStatus = "COMPLETED"
)

var shipmentStatuses = []ShipmentStatus{
	ShipmentBookingCreated,
	ShipmentInTransit,
	ShipmentArrived,
	ShipmentCustomsCleared,
	ShipmentCompleted,
}

// ParseShipmentStatus validates a status filter or column value.
func ParseShipmentStatus(s string) (ShipmentStatus, error) {
	st := ShipmentStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range shipmentStatuses {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid shipment status %q", s)
}

// Active reports whether the shipment still counts as in flight.
func (s ShipmentStatus) Active() bool { return s != ShipmentCompleted }

type Shipment struct {
	ID                  int64          `json:"shipment_id"`
	BookingNumber       string         `json:"booking_number"`
	ContainerNumber     *string        `json:"container_number"`
	VesselName          *string        `json:"vessel_name"`
	SteamshipLine       *string        `json:"steamship_line"`
	RailProvider        *string        `json:"rail_provider"`
	MasterBL            *string        `json:"master_bl"`
	HouseBL             *string        `json:"house_bl"`
	CurrentStatus       ShipmentStatus `json:"current_status"`
	CurrentMilestone    string         `json:"current_milestone"`
	OriginPort          *string        `json:"origin_port"`
	DestinationPort     *string        `json:"destination_port"`
	BookingDate         *time.Time     `json:"booking_date"`
	VesselDepartureDate *time.Time     `json:"vessel_departure_date"`
	PODDate             *time.Time     `json:"pod_date"`
	POEDate             *time.Time     `json:"poe_date"`
	CustomsReleaseDate  *time.Time     `json:"customs_release_date"`
	PickupDate          *time.Time     `json:"pickup_date"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// ShipmentDetail is a shipment with its purchase orders and milestone history.
type ShipmentDetail struct {
	Shipment
	PurchaseOrders []PurchaseOrder `json:"purchase_orders"`
	Milestones     []Milestone     `json:"milestones"`
}

type PurchaseOrder struct {
	ID              int64   `json:"po_id"`
	PONumber        string  `json:"po_number"`
	VendorReference *string `json:"vendor_reference"`
	ShipperName     *string `json:"shipper_name"`
}

// ShipmentFilter narrows the shipment listing. Empty fields are ignored.
type ShipmentFilter struct {
	BookingNumber   string
	ContainerNumber string
	Status          ShipmentStatus
	Limit           int
}

// NewShipment is the input for creating a booking.
type NewShipment struct {
	BookingNumber   string
	ContainerNumber *string
	VesselName      *string
	SteamshipLine   *string
	OriginPort      *string
	DestinationPort *string
	CreatedBy       string
}
