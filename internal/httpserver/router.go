package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"shipmentportal/internal/handler"
	"shipmentportal/pkg/rbac"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	Auth      *handler.AuthHandler
	Shipments *handler.ShipmentHandler
	Documents *handler.DocumentHandler
	Invoices  *handler.InvoiceHandler
	Dashboard *handler.DashboardHandler
	Admin     *handler.AdminHandler
}

type Router struct {
	Engine *gin.Engine
}

func NewRouter(h Handlers, jwtSecret string, db Pinger, logger *zap.Logger) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), AccessLogMiddleware(logger))

	RegisterHealth(r, db)

	// Public
	r.POST("/auth/login", h.Auth.Login)

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(jwtSecret))
	{
		auth.POST("/auth/register", RequirePermission(rbac.PermissionRegisterUser), h.Auth.Register)

		auth.GET("/shipments", h.Shipments.List)
		auth.POST("/shipments", RequirePermission(rbac.PermissionCreateShipment), h.Shipments.Create)
		auth.GET("/shipments/:id", h.Shipments.Get)
		auth.POST("/shipments/:id/milestone", RequirePermission(rbac.PermissionRecordMilestone), h.Shipments.RecordMilestone)
		auth.POST("/shipments/:id/exceptions", RequirePermission(rbac.PermissionRaiseException), h.Shipments.RaiseException)
		auth.POST("/exceptions/:id/resolve", RequirePermission(rbac.PermissionResolveException), h.Shipments.ResolveException)

		auth.GET("/shipments/:id/documents", h.Documents.List)
		auth.POST("/shipments/:id/documents/upload", h.Documents.Upload)
		auth.GET("/documents/:id/download", h.Documents.Download)

		auth.GET("/shipments/:id/invoices", h.Invoices.List)
		auth.POST("/invoices", RequirePermission(rbac.PermissionCreateInvoice), h.Invoices.Create)

		auth.GET("/dashboard/stats", h.Dashboard.Stats)
	}

	admin := r.Group("/admin")
	admin.Use(AuthMiddleware(jwtSecret), RequirePermission(rbac.PermissionOperate))
	{
		admin.POST("/outbox/replay", h.Admin.ReplayOutboxEvent)
		admin.POST("/outbox/replay-failed", h.Admin.ReplayFailedEvents)
		admin.GET("/notifications/dead-letters", h.Admin.DeadLetters)
		admin.POST("/notifications/milestones/:id/requeue", h.Admin.RequeueMilestone)
	}

	return &Router{Engine: r}
}

// RegisterHealth 注册存活、就绪与 metrics 端点，worker 的健康服务也复用
func RegisterHealth(r gin.IRoutes, db Pinger) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
