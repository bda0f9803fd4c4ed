package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shipmentportal/internal/model"
	"shipmentportal/internal/service/invoice"
)

type InvoiceService interface {
	List(ctx context.Context, shipmentID int64) ([]model.Invoice, error)
	Create(ctx context.Context, in invoice.CreateInput) (*model.Invoice, error)
}

type DashboardService interface {
	Stats(ctx context.Context) (*model.DashboardStats, error)
}

type InvoiceHandler struct {
	invoices InvoiceService
	logger   *zap.Logger
}

func NewInvoiceHandler(svc InvoiceService, logger *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{invoices: svc, logger: nopIfNil(logger)}
}

// List handles GET /shipments/:id/invoices
func (h *InvoiceHandler) List(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	list, err := h.invoices.List(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": list})
}

// Create handles POST /invoices
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req invoice.CreateInput
	if !bindJSON(c, h.logger, &req, "Invalid invoice payload") {
		return
	}
	inv, err := h.invoices.Create(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Invoice created", "invoice_id": inv.ID})
}

type DashboardHandler struct {
	dashboard DashboardService
	logger    *zap.Logger
}

func NewDashboardHandler(svc DashboardService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{dashboard: svc, logger: nopIfNil(logger)}
}

// Stats handles GET /dashboard/stats
func (h *DashboardHandler) Stats(c *gin.Context) {
	stats, err := h.dashboard.Stats(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
