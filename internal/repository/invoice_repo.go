package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"shipmentportal/internal/model"
)

type InvoiceRepository struct {
	db *pgxpool.Pool
}

func NewInvoiceRepository(db *pgxpool.Pool) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// Money columns travel as text so decimal precision survives the round trip.
func (r *InvoiceRepository) ListByShipment(ctx context.Context, shipmentID int64) ([]model.Invoice, error) {
	rows, err := r.db.Query(ctx, `
        SELECT invoice_id, shipment_id, invoice_number, invoice_date, invoice_type,
               freight_charges::text, customs_clearance::text, documentation_fee::text,
               handling_charges::text, rail_charges::text, other_charges::text,
               total_amount::text, currency, payment_status
        FROM invoices
        WHERE shipment_id = $1
        ORDER BY invoice_date DESC
    `, shipmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := make([]model.Invoice, 0)
	for rows.Next() {
		var (
			inv   model.Invoice
			money [7]string
		)
		if err := rows.Scan(&inv.ID, &inv.ShipmentID, &inv.InvoiceNumber, &inv.InvoiceDate, &inv.InvoiceType,
			&money[0], &money[1], &money[2], &money[3], &money[4], &money[5], &money[6],
			&inv.Currency, &inv.PaymentStatus); err != nil {
			return nil, err
		}
		dsts := [7]*decimal.Decimal{
			&inv.FreightCharges, &inv.CustomsClearance, &inv.DocumentationFee,
			&inv.HandlingCharges, &inv.RailCharges, &inv.OtherCharges, &inv.TotalAmount,
		}
		for i, dst := range dsts {
			d, err := parseDecimal(money[i])
			if err != nil {
				return nil, fmt.Errorf("invoice %d: %w", inv.ID, err)
			}
			*dst = d
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// Create inserts an invoice. Duplicate numbers conflict and unknown
// shipments are not found.
func (r *InvoiceRepository) Create(ctx context.Context, inv *model.Invoice) error {
	err := r.db.QueryRow(ctx, `
        INSERT INTO invoices (shipment_id, invoice_number, invoice_date, invoice_type,
                              freight_charges, customs_clearance, documentation_fee,
                              handling_charges, rail_charges, other_charges,
                              total_amount, currency, payment_status)
        VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric,
                $8::numeric, $9::numeric, $10::numeric, $11::numeric, $12, $13)
        RETURNING invoice_id
    `, inv.ShipmentID, inv.InvoiceNumber, inv.InvoiceDate, inv.InvoiceType,
		inv.FreightCharges.String(), inv.CustomsClearance.String(), inv.DocumentationFee.String(),
		inv.HandlingCharges.String(), inv.RailCharges.String(), inv.OtherCharges.String(),
		inv.TotalAmount.String(), inv.Currency, inv.PaymentStatus,
	).Scan(&inv.ID)
	return translate(err, "Shipment", "Invoice number already exists")
}
