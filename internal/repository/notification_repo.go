package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	mqcontract "shipmentportal/contracts/mq"
	"shipmentportal/internal/apperr"
	"shipmentportal/internal/model"
	"shipmentportal/pkg/outbox"
)

const notificationKindMilestone = "milestone"

const milestoneNotificationColumns = `
        m.milestone_id, m.shipment_id, m.milestone_name, m.actual_date, m.location, m.notes,
        s.booking_number, s.container_number, s.vessel_name,
        m.notification_attempts, m.notification_next_attempt_at, m.notification_last_error`

// NotificationRepository is the notifier's view of the store.
type NotificationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewNotificationRepository(db *pgxpool.Pool, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{db: db, logger: logger}
}

func scanMilestoneNotifications(rows pgx.Rows) ([]model.MilestoneNotification, error) {
	defer rows.Close()
	out := make([]model.MilestoneNotification, 0)
	for rows.Next() {
		var n model.MilestoneNotification
		if err := rows.Scan(
			&n.MilestoneID, &n.ShipmentID, &n.MilestoneName, &n.ActualDate, &n.Location, &n.Notes,
			&n.BookingNumber, &n.ContainerNumber, &n.VesselName,
			&n.Attempts, &n.NextAttemptAt, &n.LastError,
		); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// PendingMilestones returns completed milestones awaiting delivery: rows first
// seen inside the window and rows whose retry is due.
// The time predicate is model.MilestoneNotification.DueForDelivery.
func (r *NotificationRepository) PendingMilestones(ctx context.Context, since, now time.Time) ([]model.MilestoneNotification, error) {
	rows, err := r.db.Query(ctx, `
        SELECT`+milestoneNotificationColumns+`
        FROM milestones m
        JOIN shipments s ON s.shipment_id = m.shipment_id
        WHERE m.notification_sent = FALSE
          AND m.notification_dead = FALSE
          AND m.milestone_status = 'COMPLETED'
          AND ((m.notification_next_attempt_at IS NULL AND m.actual_date > $1)
               OR m.notification_next_attempt_at <= $2)
        ORDER BY m.actual_date DESC
    `, since, now)
	if err != nil {
		return nil, err
	}
	return scanMilestoneNotifications(rows)
}

// MarkMilestoneNotified flips notification_sent once and queues
// notification.sent in the same transaction. A row already marked is left
// alone and reported as false.
func (r *NotificationRepository) MarkMilestoneNotified(ctx context.Context, n model.MilestoneNotification, sentAt time.Time) (bool, error) {
	var marked bool
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
            UPDATE milestones
            SET notification_sent = TRUE,
                notification_sent_at = $2,
                notification_attempts = notification_attempts + 1,
                notification_next_attempt_at = NULL,
                notification_last_error = NULL
            WHERE milestone_id = $1 AND notification_sent = FALSE
        `, n.MilestoneID, sentAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		marked = true
		return outbox.InsertEventInTx(ctx, tx, mqcontract.AggregateNotification, int64Ptr(n.MilestoneID),
			mqcontract.RoutingNotificationSent, mqcontract.NotificationSentPayload{
				Kind:        notificationKindMilestone,
				MilestoneID: n.MilestoneID,
				ShipmentID:  n.ShipmentID,
				Attempts:    n.Attempts + 1,
				SentAt:      sentAt,
			})
	})
	return marked, err
}

// RecordMilestoneFailure stores the outcome of a failed send. Dead rows also
// queue notification.dead_lettered.
func (r *NotificationRepository) RecordMilestoneFailure(ctx context.Context, n model.MilestoneNotification, f model.DeliveryFailure, now time.Time) error {
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
            UPDATE milestones
            SET notification_attempts = $2,
                notification_next_attempt_at = $3,
                notification_last_error = $4,
                notification_dead = $5
            WHERE milestone_id = $1 AND notification_sent = FALSE
        `, n.MilestoneID, f.Attempts, f.NextAttemptAt, f.Error, f.Dead)
		if err != nil {
			return err
		}
		if !f.Dead {
			return nil
		}
		return outbox.InsertEventInTx(ctx, tx, mqcontract.AggregateNotification, int64Ptr(n.MilestoneID),
			mqcontract.RoutingNotificationDeadLettered, mqcontract.NotificationDeadLetteredPayload{
				Kind:        notificationKindMilestone,
				MilestoneID: n.MilestoneID,
				ShipmentID:  n.ShipmentID,
				Attempts:    f.Attempts,
				Error:       f.Error,
				FailedAt:    now,
			})
	})
}

// RecentOpenExceptions returns OPEN exceptions created after since, newest first.
func (r *NotificationRepository) RecentOpenExceptions(ctx context.Context, since time.Time) ([]model.ExceptionAlert, error) {
	rows, err := r.db.Query(ctx, `
        SELECT e.exception_id, e.shipment_id, e.exception_type, e.severity, e.title,
               e.description, s.booking_number, s.container_number, s.vessel_name, e.created_at
        FROM exceptions e
        JOIN shipments s ON s.shipment_id = e.shipment_id
        WHERE e.status = 'OPEN' AND e.created_at > $1
        ORDER BY e.created_at DESC
    `, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := make([]model.ExceptionAlert, 0)
	for rows.Next() {
		var a model.ExceptionAlert
		if err := rows.Scan(&a.ExceptionID, &a.ShipmentID, &a.ExceptionType, &a.Severity, &a.Title,
			&a.Description, &a.BookingNumber, &a.ContainerNumber, &a.VesselName, &a.CreatedAt); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// DailySummary gathers the counters for [start, end) and the most recently
// updated active shipments in one round trip.
func (r *NotificationRepository) DailySummary(ctx context.Context, start, end time.Time, limit int) (*model.DailySummary, error) {
	sum := &model.DailySummary{Day: start, RecentlyUpdated: make([]model.SummaryShipment, 0, limit)}

	batch := &pgx.Batch{}
	batch.Queue(`SELECT COUNT(*) FROM shipments WHERE current_status != 'COMPLETED'`).
		QueryRow(func(row pgx.Row) error { return row.Scan(&sum.ActiveShipments) })
	batch.Queue(`SELECT COUNT(*) FROM milestones WHERE actual_date >= $1 AND actual_date < $2`, start, end).
		QueryRow(func(row pgx.Row) error { return row.Scan(&sum.MilestonesToday) })
	batch.Queue(`SELECT COUNT(*) FROM exceptions WHERE status != 'RESOLVED'`).
		QueryRow(func(row pgx.Row) error { return row.Scan(&sum.OpenExceptions) })
	batch.Queue(`SELECT COUNT(*) FROM documents WHERE created_at >= $1 AND created_at < $2`, start, end).
		QueryRow(func(row pgx.Row) error { return row.Scan(&sum.DocumentsToday) })
	batch.Queue(`
        SELECT booking_number, container_number, current_milestone, updated_at
        FROM shipments
        WHERE current_status != 'COMPLETED'
        ORDER BY updated_at DESC
        LIMIT $1
    `, limit).Query(func(rows pgx.Rows) error {
		for rows.Next() {
			var s model.SummaryShipment
			if err := rows.Scan(&s.BookingNumber, &s.ContainerNumber, &s.CurrentMilestone, &s.UpdatedAt); err != nil {
				return err
			}
			sum.RecentlyUpdated = append(sum.RecentlyUpdated, s)
		}
		return rows.Err()
	})

	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return nil, err
	}
	return sum, nil
}

// DeadLetters lists dead-lettered milestone notifications, newest first.
func (r *NotificationRepository) DeadLetters(ctx context.Context, limit int) ([]model.MilestoneNotification, error) {
	rows, err := r.db.Query(ctx, `
        SELECT`+milestoneNotificationColumns+`
        FROM milestones m
        JOIN shipments s ON s.shipment_id = m.shipment_id
        WHERE m.notification_dead = TRUE AND m.notification_sent = FALSE
        ORDER BY m.actual_date DESC
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, err
	}
	return scanMilestoneNotifications(rows)
}

// RequeueMilestone clears the dead flag and schedules an immediate retry.
func (r *NotificationRepository) RequeueMilestone(ctx context.Context, milestoneID int64, now time.Time) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE milestones
        SET notification_dead = FALSE,
            notification_attempts = 0,
            notification_next_attempt_at = $2
        WHERE milestone_id = $1 AND notification_sent = FALSE
    `, milestoneID, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Pending notification")
	}
	r.logger.Info("milestone notification requeued", zap.Int64("milestone_id", milestoneID))
	return nil
}
