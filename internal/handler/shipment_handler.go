package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shipmentportal/internal/model"
	"shipmentportal/internal/service/shipment"
)

type ShipmentService interface {
	List(ctx context.Context, q shipment.ListQuery) ([]model.Shipment, error)
	Get(ctx context.Context, id int64) (*model.ShipmentDetail, error)
	Create(ctx context.Context, in shipment.CreateInput, actor string) (int64, error)
	RecordMilestone(ctx context.Context, shipmentID int64, in shipment.MilestoneInput, actor string) (int64, error)
	RaiseException(ctx context.Context, shipmentID int64, in shipment.ExceptionInput, actor string) (int64, error)
	ResolveException(ctx context.Context, id int64, actor string) error
}

type ShipmentHandler struct {
	shipments ShipmentService
	logger    *zap.Logger
}

func NewShipmentHandler(svc ShipmentService, logger *zap.Logger) *ShipmentHandler {
	return &ShipmentHandler{shipments: svc, logger: nopIfNil(logger)}
}

// List handles GET /shipments?booking_number=&container_number=&status=
func (h *ShipmentHandler) List(c *gin.Context) {
	list, err := h.shipments.List(c.Request.Context(), shipment.ListQuery{
		BookingNumber:   c.Query("booking_number"),
		ContainerNumber: c.Query("container_number"),
		Status:          c.Query("status"),
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shipments": list})
}

// Get handles GET /shipments/:id
func (h *ShipmentHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	detail, err := h.shipments.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Create handles POST /shipments
func (h *ShipmentHandler) Create(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	var req shipment.CreateInput
	if !bindJSON(c, h.logger, &req, "Invalid request body") {
		return
	}

	id, err := h.shipments.Create(c.Request.Context(), req, user.Email)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Shipment created", "shipment_id": id})
}

// RecordMilestone handles POST /shipments/:id/milestone
func (h *ShipmentHandler) RecordMilestone(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req shipment.MilestoneInput
	if !bindJSON(c, h.logger, &req, "Invalid request body") {
		return
	}

	milestoneID, err := h.shipments.RecordMilestone(c.Request.Context(), id, req, user.Email)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Milestone updated", "milestone_id": milestoneID})
}

// RaiseException handles POST /shipments/:id/exceptions
func (h *ShipmentHandler) RaiseException(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req shipment.ExceptionInput
	if !bindJSON(c, h.logger, &req, "Invalid request body") {
		return
	}

	exceptionID, err := h.shipments.RaiseException(c.Request.Context(), id, req, user.Email)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Exception created", "exception_id": exceptionID})
}

// ResolveException handles POST /exceptions/:id/resolve
func (h *ShipmentHandler) ResolveException(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.shipments.ResolveException(c.Request.Context(), id, user.Email); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Exception resolved", "exception_id": id})
}
