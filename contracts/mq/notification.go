package mq

import "time"

const (
	RoutingNotificationSent         = "notification.sent"
	RoutingNotificationDeadLettered = "notification.dead_lettered"

	AggregateNotification = "notification"
)

type NotificationSentPayload struct {
	Kind        string    `json:"kind"` // milestone
	MilestoneID int64     `json:"milestone_id"`
	ShipmentID  int64     `json:"shipment_id"`
	Attempts    int       `json:"attempts"`
	SentAt      time.Time `json:"sent_at"`
}

type NotificationDeadLetteredPayload struct {
	Kind        string    `json:"kind"`
	MilestoneID int64     `json:"milestone_id"`
	ShipmentID  int64     `json:"shipment_id"`
	Attempts    int       `json:"attempts"`
	Error       string    `json:"error"`
	FailedAt    time.Time `json:"failed_at"`
}
