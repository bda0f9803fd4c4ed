package invoice

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipmentportal/internal/apperr"
	"shipmentportal/internal/model"
)

type memInvoices struct {
	created []model.Invoice
}

func (m *memInvoices) ListByShipment(_ context.Context, shipmentID int64) ([]model.Invoice, error) {
	var out []model.Invoice
	for _, inv := range m.created {
		if inv.ShipmentID == shipmentID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (m *memInvoices) Create(_ context.Context, inv *model.Invoice) error {
	for _, existing := range m.created {
		if existing.InvoiceNumber == inv.InvoiceNumber {
			return apperr.Conflict("Invoice number already exists")
		}
	}
	inv.ID = int64(len(m.created) + 1)
	m.created = append(m.created, *inv)
	return nil
}

func decode(t *testing.T, body string) CreateInput {
	t.Helper()
	var in CreateInput
	require.NoError(t, json.Unmarshal([]byte(body), &in))
	return in
}

func TestCreateAppliesDefaults(t *testing.T) {
	store := &memInvoices{}
	svc := NewService(store, nil)
	svc.now = func() time.Time { return time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC) }

	inv, err := svc.Create(context.Background(), decode(t, `{
		"shipment_id": 1,
		"invoice_number": "INV-001",
		"freight_charges": 1200.50,
		"customs_clearance": "150",
		"total_amount": "1350.50"
	}`))
	require.NoError(t, err)

	assert.Equal(t, int64(1), inv.ID)
	assert.Equal(t, model.InvoiceTypeFinal, inv.InvoiceType)
	assert.Equal(t, model.DefaultCurrency, inv.Currency)
	assert.Equal(t, model.PaymentStatusPending, inv.PaymentStatus)
	assert.True(t, decimal.RequireFromString("1200.5").Equal(inv.FreightCharges))
	assert.True(t, inv.RailCharges.IsZero())
	assert.True(t, decimal.RequireFromString("1350.50").Equal(inv.TotalAmount))
	assert.Equal(t, svc.now(), inv.InvoiceDate)

	list, err := svc.List(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(&memInvoices{}, nil)

	cases := map[string]string{
		"missing total":    `{"shipment_id": 1, "invoice_number": "INV-1"}`,
		"missing number":   `{"shipment_id": 1, "total_amount": 10}`,
		"missing shipment": `{"invoice_number": "INV-1", "total_amount": 10}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), decode(t, body))
			status, msg := apperr.Status(err)
			assert.Equal(t, 400, status)
			assert.Equal(t, "Missing required fields", msg)
		})
	}

	_, err := svc.Create(context.Background(), decode(t, `{"shipment_id": 1, "invoice_number": "INV-1", "total_amount": -5}`))
	status, _ := apperr.Status(err)
	assert.Equal(t, 400, status)
}

func TestCreateDuplicateNumber(t *testing.T) {
	svc := NewService(&memInvoices{}, nil)
	body := `{"shipment_id": 1, "invoice_number": "INV-7", "total_amount": 99.99, "currency": "eur"}`

	inv, err := svc.Create(context.Background(), decode(t, body))
	require.NoError(t, err)
	assert.Equal(t, "EUR", inv.Currency)

	_, err = svc.Create(context.Background(), decode(t, body))
	status, msg := apperr.Status(err)
	assert.Equal(t, 409, status)
	assert.Equal(t, "Invoice number already exists", msg)
}
