package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	InvoiceTypeFinal     = "FINAL"
	DefaultCurrency      = "USD"
	PaymentStatusPending = "PENDING"
)

type Invoice struct {
	ID               int64           `json:"invoice_id"`
	ShipmentID       int64           `json:"shipment_id"`
	InvoiceNumber    string          `json:"invoice_number"`
	InvoiceDate      time.Time       `json:"invoice_date"`
	InvoiceType      string          `json:"invoice_type"`
	FreightCharges   decimal.Decimal `json:"freight_charges"`
	CustomsClearance decimal.Decimal `json:"customs_clearance"`
	DocumentationFee decimal.Decimal `json:"documentation_fee"`
	HandlingCharges  decimal.Decimal `json:"handling_charges"`
	RailCharges      decimal.Decimal `json:"rail_charges"`
	OtherCharges     decimal.Decimal `json:"other_charges"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	Currency         string          `json:"currency"`
	PaymentStatus    string          `json:"payment_status"`
}

// ChargesSum adds up the itemised charges.
func (i Invoice) ChargesSum() decimal.Decimal {
	return decimal.Sum(i.FreightCharges, i.CustomsClearance, i.DocumentationFee,
		i.HandlingCharges, i.RailCharges, i.OtherCharges)
}
