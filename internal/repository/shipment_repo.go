package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	mqcontract "shipmentportal/contracts/mq"
	"shipmentportal/internal/model"
	"shipmentportal/pkg/outbox"
	"shipmentportal/pkg/trace"
)

const (
	defaultShipmentListLimit = 100

	shipmentColumns = `shipment_id, booking_number, container_number, vessel_name, steamship_line,
        rail_provider, master_bl, house_bl, current_status, current_milestone,
        origin_port, destination_port, booking_date, vessel_departure_date, pod_date,
        poe_date, customs_release_date, pickup_date, created_at, updated_at`
)

// dateColumns whitelists the shipment columns a milestone may stamp.
var dateColumns = map[string]bool{
	"booking_date":          true,
	"vessel_departure_date": true,
	"pod_date":              true,
	"poe_date":              true,
	"customs_release_date":  true,
	"pickup_date":           true,
}

type ShipmentRepository struct {
	db *pgxpool.Pool
}

func NewShipmentRepository(db *pgxpool.Pool) *ShipmentRepository {
	return &ShipmentRepository{db: db}
}

func scanShipment(row pgx.Row, s *model.Shipment) error {
	return row.Scan(
		&s.ID, &s.BookingNumber, &s.ContainerNumber, &s.VesselName, &s.SteamshipLine,
		&s.RailProvider, &s.MasterBL, &s.HouseBL, &s.CurrentStatus, &s.CurrentMilestone,
		&s.OriginPort, &s.DestinationPort, &s.BookingDate, &s.VesselDepartureDate, &s.PODDate,
		&s.POEDate, &s.CustomsReleaseDate, &s.PickupDate, &s.CreatedAt, &s.UpdatedAt,
	)
}

// List returns shipments newest first, filtered by substring on booking and
// container number and by exact status.
func (r *ShipmentRepository) List(ctx context.Context, f model.ShipmentFilter) ([]model.Shipment, error) {
	var (
		conds []string
		args  []any
	)
	if f.BookingNumber != "" {
		args = append(args, "%"+f.BookingNumber+"%")
		conds = append(conds, fmt.Sprintf("booking_number ILIKE $%d", len(args)))
	}
	if f.ContainerNumber != "" {
		args = append(args, "%"+f.ContainerNumber+"%")
		conds = append(conds, fmt.Sprintf("container_number ILIKE $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("current_status = $%d", len(args)))
	}
	limit := f.Limit
	if limit <= 0 || limit > defaultShipmentListLimit {
		limit = defaultShipmentListLimit
	}
	args = append(args, limit)

	query := "SELECT " + shipmentColumns + " FROM shipments"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shipments := make([]model.Shipment, 0)
	for rows.Next() {
		var s model.Shipment
		if err := scanShipment(rows, &s); err != nil {
			return nil, err
		}
		shipments = append(shipments, s)
	}
	return shipments, rows.Err()
}

// GetDetail loads a shipment with its purchase orders and milestones,
// milestones newest first.
func (r *ShipmentRepository) GetDetail(ctx context.Context, id int64) (*model.ShipmentDetail, error) {
	var d model.ShipmentDetail
	row := r.db.QueryRow(ctx, "SELECT "+shipmentColumns+" FROM shipments WHERE shipment_id = $1", id)
	if err := scanShipment(row, &d.Shipment); err != nil {
		return nil, translate(err, "Shipment", "")
	}

	poRows, err := r.db.Query(ctx, `
        SELECT po.po_id, po.po_number, po.vendor_reference, s.shipper_name
        FROM purchase_orders po
        LEFT JOIN shippers s ON s.shipper_id = po.shipper_id
        WHERE po.shipment_id = $1
        ORDER BY po.po_id
    `, id)
	if err != nil {
		return nil, err
	}
	d.PurchaseOrders = make([]model.PurchaseOrder, 0)
	for poRows.Next() {
		var po model.PurchaseOrder
		if err := poRows.Scan(&po.ID, &po.PONumber, &po.VendorReference, &po.ShipperName); err != nil {
			poRows.Close()
			return nil, err
		}
		d.PurchaseOrders = append(d.PurchaseOrders, po)
	}
	poRows.Close()
	if err := poRows.Err(); err != nil {
		return nil, err
	}

	msRows, err := r.db.Query(ctx, `
        SELECT milestone_id, shipment_id, milestone_name, milestone_status, actual_date,
               location, notes, created_by, notification_sent
        FROM milestones
        WHERE shipment_id = $1
        ORDER BY actual_date DESC, milestone_id DESC
    `, id)
	if err != nil {
		return nil, err
	}
	defer msRows.Close()
	d.Milestones = make([]model.Milestone, 0)
	for msRows.Next() {
		var m model.Milestone
		if err := msRows.Scan(&m.ID, &m.ShipmentID, &m.Name, &m.Status, &m.ActualDate,
			&m.Location, &m.Notes, &m.CreatedBy, &m.NotificationSent); err != nil {
			return nil, err
		}
		d.Milestones = append(d.Milestones, m)
	}
	return &d, msRows.Err()
}

// Exists reports whether a shipment id is known.
func (r *ShipmentRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM shipments WHERE shipment_id = $1)`, id).Scan(&ok)
	return ok, err
}

// Create inserts a booking together with its BOOKING_CONFIRMED milestone and
// a shipment.created outbox event in one transaction.
func (r *ShipmentRepository) Create(ctx context.Context, in model.NewShipment, now time.Time) (int64, error) {
	var shipmentID int64
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
            INSERT INTO shipments (booking_number, container_number, vessel_name, steamship_line,
                                   origin_port, destination_port, booking_date,
                                   current_status, current_milestone, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $7, $7)
            RETURNING shipment_id
        `, in.BookingNumber, in.ContainerNumber, in.VesselName, in.SteamshipLine,
			in.OriginPort, in.DestinationPort, now,
			string(model.ShipmentBookingCreated), model.MilestoneBookingConfirmed,
		).Scan(&shipmentID)
		if err != nil {
			return translate(err, "Shipment", "Booking number already exists")
		}

		var milestoneID int64
		err = tx.QueryRow(ctx, `
            INSERT INTO milestones (shipment_id, milestone_name, milestone_status, actual_date, created_by)
            VALUES ($1, $2, $3, $4, $5)
            RETURNING milestone_id
        `, shipmentID, model.MilestoneBookingConfirmed, string(model.MilestoneCompleted), now, in.CreatedBy,
		).Scan(&milestoneID)
		if err != nil {
			return err
		}

		return outbox.InsertEventInTx(ctx, tx, mqcontract.AggregateShipment, int64Ptr(shipmentID),
			mqcontract.RoutingShipmentCreated, mqcontract.ShipmentCreatedPayload{
				ShipmentID:    shipmentID,
				BookingNumber: in.BookingNumber,
				MilestoneID:   milestoneID,
				CreatedBy:     in.CreatedBy,
				CreatedAt:     now,
				TraceID:       trace.FromContext(ctx),
			})
	})
	if err != nil {
		return 0, err
	}
	return shipmentID, nil
}

// RecordMilestone inserts a COMPLETED milestone and applies it to the
// shipment row. The shipment row is locked for the duration so the last
// committed write owns current_milestone.
func (r *ShipmentRepository) RecordMilestone(ctx context.Context, in model.NewMilestone) (int64, error) {
	name := model.NormalizeMilestoneName(in.Name)
	var milestoneID int64
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		booking, err := lockShipment(ctx, tx, in.ShipmentID)
		if err != nil {
			return err
		}

		err = tx.QueryRow(ctx, `
            INSERT INTO milestones (shipment_id, milestone_name, milestone_status, actual_date,
                                    location, notes, created_by)
            VALUES ($1, $2, $3, $4, $5, $6, $7)
            RETURNING milestone_id
        `, in.ShipmentID, name, string(model.MilestoneCompleted), in.ActualDate,
			in.Location, in.Notes, in.CreatedBy,
		).Scan(&milestoneID)
		if err != nil {
			return err
		}

		if err := applyMilestone(ctx, tx, in.ShipmentID, name, in.ActualDate); err != nil {
			return err
		}

		return outbox.InsertEventInTx(ctx, tx, mqcontract.AggregateMilestone, int64Ptr(milestoneID),
			mqcontract.RoutingMilestoneCompleted, mqcontract.MilestoneCompletedPayload{
				MilestoneID:   milestoneID,
				ShipmentID:    in.ShipmentID,
				BookingNumber: booking,
				MilestoneName: name,
				Location:      in.Location,
				ActualDate:    in.ActualDate,
				CreatedBy:     in.CreatedBy,
				TraceID:       trace.FromContext(ctx),
			})
	})
	if err != nil {
		return 0, err
	}
	return milestoneID, nil
}

func applyMilestone(ctx context.Context, tx pgx.Tx, shipmentID int64, name string, at time.Time) error {
	sets := []string{"current_milestone = $2", "updated_at = NOW()"}
	args := []any{shipmentID, name}

	if effect, ok := model.EffectOf(name); ok {
		if !dateColumns[effect.DateColumn] {
			return fmt.Errorf("milestone %s stamps unknown column %q", name, effect.DateColumn)
		}
		args = append(args, at)
		sets = append(sets, fmt.Sprintf("%s = $%d", effect.DateColumn, len(args)))
		if effect.Status != "" {
			args = append(args, string(effect.Status))
			sets = append(sets, fmt.Sprintf("current_status = $%d", len(args)))
		}
	}

	_, err := tx.Exec(ctx, "UPDATE shipments SET "+strings.Join(sets, ", ")+" WHERE shipment_id = $1", args...)
	return err
}
