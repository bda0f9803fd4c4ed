package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	mqcontract "shipmentportal/contracts/mq"
	"shipmentportal/internal/apperr"
	"shipmentportal/internal/model"
	"shipmentportal/pkg/outbox"
	"shipmentportal/pkg/trace"
)

type ExceptionRepository struct {
	db *pgxpool.Pool
}

func NewExceptionRepository(db *pgxpool.Pool) *ExceptionRepository {
	return &ExceptionRepository{db: db}
}

// Create opens an exception against a shipment and queues exception.opened.
func (r *ExceptionRepository) Create(ctx context.Context, in model.NewException, now time.Time) (int64, error) {
	var id int64
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		var booking string
		err := tx.QueryRow(ctx, `SELECT booking_number FROM shipments WHERE shipment_id = $1`, in.ShipmentID).Scan(&booking)
		if err != nil {
			return translate(err, "Shipment", "")
		}

		err = tx.QueryRow(ctx, `
            INSERT INTO exceptions (shipment_id, exception_type, severity, title, description,
                                    reported_by, status, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
            RETURNING exception_id
        `, in.ShipmentID, in.ExceptionType, string(in.Severity), in.Title, in.Description,
			in.ReportedBy, string(model.ExceptionOpen), now,
		).Scan(&id)
		if err != nil {
			return translate(err, "Shipment", "")
		}

		return outbox.InsertEventInTx(ctx, tx, mqcontract.AggregateException, int64Ptr(id),
			mqcontract.RoutingExceptionOpened, mqcontract.ExceptionOpenedPayload{
				ExceptionID:   id,
				ShipmentID:    in.ShipmentID,
				BookingNumber: booking,
				Severity:      string(in.Severity),
				Title:         in.Title,
				ReportedBy:    in.ReportedBy,
				CreatedAt:     now,
				TraceID:       trace.FromContext(ctx),
			})
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Resolve closes an OPEN exception. Resolving twice is a conflict.
func (r *ExceptionRepository) Resolve(ctx context.Context, id int64, resolvedBy string, now time.Time) error {
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		var (
			shipmentID int64
			status     model.ExceptionStatus
		)
		err := tx.QueryRow(ctx,
			`SELECT shipment_id, status FROM exceptions WHERE exception_id = $1 FOR UPDATE`, id,
		).Scan(&shipmentID, &status)
		if err != nil {
			return translate(err, "Exception", "")
		}
		if status == model.ExceptionResolved {
			return apperr.Conflict("Exception already resolved")
		}

		if _, err := tx.Exec(ctx,
			`UPDATE exceptions SET status = $2, resolved_at = $3 WHERE exception_id = $1`,
			id, string(model.ExceptionResolved), now,
		); err != nil {
			return err
		}

		return outbox.InsertEventInTx(ctx, tx, mqcontract.AggregateException, int64Ptr(id),
			mqcontract.RoutingExceptionResolved, mqcontract.ExceptionResolvedPayload{
				ExceptionID: id,
				ShipmentID:  shipmentID,
				ResolvedBy:  resolvedBy,
				ResolvedAt:  now,
				TraceID:     trace.FromContext(ctx),
			})
	})
}
