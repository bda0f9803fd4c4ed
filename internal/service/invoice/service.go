package invoice

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"shipmentportal/internal/apperr"
	"shipmentportal/internal/model"
	"shipmentportal/pkg/logger"
)

type Store interface {
	ListByShipment(ctx context.Context, shipmentID int64) ([]model.Invoice, error)
	Create(ctx context.Context, inv *model.Invoice) error
}

// CreateInput accepts amounts as JSON numbers or strings.
type CreateInput struct {
	ShipmentID       *int64           `json:"shipment_id"`
	InvoiceNumber    string           `json:"invoice_number"`
	InvoiceType      string           `json:"invoice_type"`
	FreightCharges   *decimal.Decimal `json:"freight_charges"`
	CustomsClearance *decimal.Decimal `json:"customs_clearance"`
	DocumentationFee *decimal.Decimal `json:"documentation_fee"`
	HandlingCharges  *decimal.Decimal `json:"handling_charges"`
	RailCharges      *decimal.Decimal `json:"rail_charges"`
	OtherCharges     *decimal.Decimal `json:"other_charges"`
	TotalAmount      *decimal.Decimal `json:"total_amount"`
	Currency         string           `json:"currency"`
}

type Service struct {
	invoices Store
	now      func() time.Time
	logger   *zap.Logger
}

func NewService(invoices Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{invoices: invoices, now: time.Now, logger: logger}
}

func (s *Service) List(ctx context.Context, shipmentID int64) ([]model.Invoice, error) {
	invoices, err := s.invoices.ListByShipment(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if invoices == nil {
		invoices = []model.Invoice{}
	}
	return invoices, nil
}

func amount(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return strings.ToUpper(v)
}

// Create issues an invoice dated now. Type, currency and payment status
// fall back to FINAL, USD and PENDING.
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Invoice, error) {
	number := strings.TrimSpace(in.InvoiceNumber)
	if in.ShipmentID == nil || number == "" || in.TotalAmount == nil {
		return nil, apperr.Invalid("", "Missing required fields")
	}

	inv := &model.Invoice{
		ShipmentID:       *in.ShipmentID,
		InvoiceNumber:    number,
		InvoiceDate:      s.now().UTC(),
		InvoiceType:      orDefault(in.InvoiceType, model.InvoiceTypeFinal),
		FreightCharges:   amount(in.FreightCharges),
		CustomsClearance: amount(in.CustomsClearance),
		DocumentationFee: amount(in.DocumentationFee),
		HandlingCharges:  amount(in.HandlingCharges),
		RailCharges:      amount(in.RailCharges),
		OtherCharges:     amount(in.OtherCharges),
		TotalAmount:      *in.TotalAmount,
		Currency:         orDefault(in.Currency, model.DefaultCurrency),
		PaymentStatus:    model.PaymentStatusPending,
	}
	for _, d := range []decimal.Decimal{
		inv.FreightCharges, inv.CustomsClearance, inv.DocumentationFee,
		inv.HandlingCharges, inv.RailCharges, inv.OtherCharges, inv.TotalAmount,
	} {
		if d.IsNegative() {
			return nil, apperr.Invalid("", "Amounts must not be negative")
		}
	}

	if err := s.invoices.Create(ctx, inv); err != nil {
		return nil, err
	}

	log := logger.WithTrace(ctx, s.logger)
	if sum := inv.ChargesSum(); !sum.IsZero() && !sum.Equal(inv.TotalAmount) {
		log.Warn("invoice total differs from itemised charges",
			zap.Int64("invoice_id", inv.ID),
			zap.String("total_amount", inv.TotalAmount.String()),
			zap.String("charges_sum", sum.String()),
		)
	}
	log.Info("invoice created",
		zap.Int64("invoice_id", inv.ID),
		zap.Int64("shipment_id", inv.ShipmentID),
		zap.String("invoice_number", inv.InvoiceNumber),
	)
	return inv, nil
}
