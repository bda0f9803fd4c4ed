package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shipmentportal/internal/model"
)

type OutboxReplayer interface {
	ReplayEvent(ctx context.Context, eventID int64) error
	ReplayFailedEvents(ctx context.Context, limit int) (int, error)
}

type NotificationAdmin interface {
	DeadLetters(ctx context.Context, limit int) ([]model.MilestoneNotification, error)
	RequeueMilestone(ctx context.Context, milestoneID int64, now time.Time) error
}

type AdminHandler struct {
	replay        OutboxReplayer
	notifications NotificationAdmin
	logger        *zap.Logger
}

func NewAdminHandler(replay OutboxReplayer, notifications NotificationAdmin, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		replay:        replay,
		notifications: notifications,
		logger:        nopIfNil(logger),
	}
}

func queryLimit(c *gin.Context, def int) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if err != nil || limit <= 0 {
		return def
	}
	return limit
}

// ReplayOutboxEvent 重放指定的 Outbox 事件
// POST /admin/outbox/replay?id=xxx
func (h *AdminHandler) ReplayOutboxEvent(c *gin.Context) {
	idStr := c.Query("id")
	if idStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing id parameter"})
		return
	}

	eventID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id parameter"})
		return
	}

	if h.replay == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event broker not configured"})
		return
	}

	if err := h.replay.ReplayEvent(c.Request.Context(), eventID); err != nil {
		h.logger.Error("Failed to replay event",
			zap.Int64("event_id", eventID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to replay event",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "replayed",
		"event_id": eventID,
	})
}

// ReplayFailedEvents 重放所有失败的事件
// POST /admin/outbox/replay-failed?limit=100
func (h *AdminHandler) ReplayFailedEvents(c *gin.Context) {
	limit := queryLimit(c, 100)

	if h.replay == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event broker not configured"})
		return
	}

	successCount, err := h.replay.ReplayFailedEvents(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to replay failed events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to replay failed events",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "completed",
		"success_count": successCount,
		"limit":         limit,
	})
}

// DeadLetters 列出放弃投递的里程碑通知
// GET /admin/notifications/dead-letters?limit=100
func (h *AdminHandler) DeadLetters(c *gin.Context) {
	limit := queryLimit(c, 100)

	items, err := h.notifications.DeadLetters(c.Request.Context(), limit)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if items == nil {
		items = []model.MilestoneNotification{}
	}
	c.JSON(http.StatusOK, gin.H{"dead_letters": items, "count": len(items)})
}

// RequeueMilestone 重置死信通知，下一轮轮询立即重发
// POST /admin/notifications/milestones/:id/requeue
func (h *AdminHandler) RequeueMilestone(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.notifications.RequeueMilestone(c.Request.Context(), id, time.Now().UTC()); err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.logger.Info("Milestone notification requeued", zap.Int64("milestone_id", id))
	c.JSON(http.StatusOK, gin.H{
		"status":       "requeued",
		"milestone_id": id,
	})
}
