package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shipmentportal/internal/handler"
	"shipmentportal/internal/model"
	"shipmentportal/internal/service/auth"
	"shipmentportal/internal/service/document"
	"shipmentportal/internal/service/invoice"
	"shipmentportal/internal/service/shipment"
	"shipmentportal/pkg/rbac"
	"shipmentportal/pkg/trace"
	"shipmentportal/pkg/util"
)

const secret = "router-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAuth struct{}

func (stubAuth) Login(context.Context, string, string) (*auth.LoginResult, error) {
	return &auth.LoginResult{AccessToken: "tok"}, nil
}

func (stubAuth) Register(_ context.Context, in auth.RegisterInput) (*model.User, error) {
	return &model.User{ID: 2, Email: in.Email}, nil
}

type stubShipments struct{ traceID string }

func (s *stubShipments) List(ctx context.Context, _ shipment.ListQuery) ([]model.Shipment, error) {
	s.traceID = trace.FromContext(ctx)
	return []model.Shipment{}, nil
}

func (*stubShipments) Get(context.Context, int64) (*model.ShipmentDetail, error) {
	return &model.ShipmentDetail{}, nil
}

func (*stubShipments) Create(context.Context, shipment.CreateInput, string) (int64, error) {
	return 1, nil
}

func (*stubShipments) RecordMilestone(context.Context, int64, shipment.MilestoneInput, string) (int64, error) {
	return 1, nil
}

func (*stubShipments) RaiseException(context.Context, int64, shipment.ExceptionInput, string) (int64, error) {
	return 1, nil
}

func (*stubShipments) ResolveException(context.Context, int64, string) error { return nil }

type stubDocs struct{}

func (stubDocs) List(context.Context, int64) ([]model.Document, error) { return nil, nil }

func (stubDocs) Upload(context.Context, document.Upload, document.Uploader) (*model.Document, error) {
	return &model.Document{}, nil
}

func (stubDocs) Open(context.Context, int64) (*model.Document, *os.File, error) {
	return nil, nil, errors.New("not wired")
}

type stubInvoices struct{}

func (stubInvoices) List(context.Context, int64) ([]model.Invoice, error) { return nil, nil }

func (stubInvoices) Create(context.Context, invoice.CreateInput) (*model.Invoice, error) {
	return &model.Invoice{ID: 1}, nil
}

type stubDashboard struct{}

func (stubDashboard) Stats(context.Context) (*model.DashboardStats, error) {
	return &model.DashboardStats{ActiveShipments: 4, ByStatus: map[string]int{}}, nil
}

type stubNotifications struct{}

func (stubNotifications) DeadLetters(context.Context, int) ([]model.MilestoneNotification, error) {
	return nil, nil
}

func (stubNotifications) RequeueMilestone(context.Context, int64, time.Time) error { return nil }

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func newTestRouter(db Pinger) (*Router, *stubShipments) {
	shipments := &stubShipments{}
	log := zap.NewNop()
	r := NewRouter(Handlers{
		Auth:      handler.NewAuthHandler(stubAuth{}, log),
		Shipments: handler.NewShipmentHandler(shipments, log),
		Documents: handler.NewDocumentHandler(stubDocs{}, 0, log),
		Invoices:  handler.NewInvoiceHandler(stubInvoices{}, log),
		Dashboard: handler.NewDashboardHandler(stubDashboard{}, log),
		Admin:     handler.NewAdminHandler(nil, stubNotifications{}, log),
	}, secret, db, log)
	return r, shipments
}

func token(t *testing.T, role rbac.Role) string {
	t.Helper()
	tok, err := util.GenerateJWT(util.Claims{UserID: 1, Email: "u@example.com", Role: role}, secret, time.Hour, time.Now())
	require.NoError(t, err)
	return tok
}

func request(r *Router, method, path, tok string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)
	return w
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func TestLoginIsPublic(t *testing.T) {
	r, _ := newTestRouter(pinger{})

	w := request(r, http.MethodPost, "/auth/login", "", `{"email":"a@b.com","password":"x"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRequired(t *testing.T) {
	r, _ := newTestRouter(pinger{})

	w := request(r, http.MethodGet, "/shipments", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "missing token", errorOf(t, w))

	w = request(r, http.MethodGet, "/shipments", "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid token", errorOf(t, w))

	other, err := util.GenerateJWT(util.Claims{UserID: 1, Role: rbac.RoleAdmin}, "other-secret", time.Hour, time.Now())
	require.NoError(t, err)
	w = request(r, http.MethodGet, "/shipments", other, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = request(r, http.MethodGet, "/shipments", token(t, rbac.RoleVHC), "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoleAllowLists(t *testing.T) {
	r, _ := newTestRouter(pinger{})

	cases := []struct {
		role   rbac.Role
		method string
		path   string
		want   int
	}{
		{rbac.RoleVHC, http.MethodPost, "/shipments", http.StatusForbidden},
		{rbac.RoleSeairUS, http.MethodPost, "/shipments", http.StatusForbidden},
		{rbac.RoleSeairOrigin, http.MethodPost, "/shipments", http.StatusCreated},
		{rbac.RoleVHC, http.MethodPost, "/shipments/1/milestone", http.StatusForbidden},
		{rbac.RoleSeairUS, http.MethodPost, "/shipments/1/milestone", http.StatusOK},
		{rbac.RoleSeairOrigin, http.MethodPost, "/invoices", http.StatusForbidden},
		{rbac.RoleSeairUS, http.MethodPost, "/invoices", http.StatusCreated},
		{rbac.RoleVHC, http.MethodPost, "/exceptions/1/resolve", http.StatusForbidden},
		{rbac.RoleSeairOrigin, http.MethodPost, "/auth/register", http.StatusForbidden},
		{rbac.RoleAdmin, http.MethodPost, "/auth/register", http.StatusCreated},
		{rbac.RoleSeairUS, http.MethodGet, "/admin/notifications/dead-letters", http.StatusForbidden},
		{rbac.RoleAdmin, http.MethodGet, "/admin/notifications/dead-letters", http.StatusOK},
		{rbac.RoleVHC, http.MethodGet, "/dashboard/stats", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(string(tc.role)+" "+tc.method+" "+tc.path, func(t *testing.T) {
			w := request(r, tc.method, tc.path, token(t, tc.role), `{}`)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
			if tc.want == http.StatusForbidden {
				assert.Equal(t, "Unauthorized access", errorOf(t, w))
			}
		})
	}
}

func TestTraceIDPropagated(t *testing.T) {
	r, shipments := newTestRouter(pinger{})

	req := httptest.NewRequest(http.MethodGet, "/shipments", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, rbac.RoleVHC))
	req.Header.Set(trace.HeaderName, "trace-123")
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)

	assert.Equal(t, "trace-123", w.Header().Get(trace.HeaderName))
	assert.Equal(t, "trace-123", shipments.traceID)

	w = request(r, http.MethodGet, "/healthz", "", "")
	assert.NotEmpty(t, w.Header().Get(trace.HeaderName))
}

func TestHealthEndpoints(t *testing.T) {
	r, _ := newTestRouter(pinger{})
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/healthz", "", "").Code)
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/readyz", "", "").Code)

	w := request(r, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_request_duration_seconds")

	down, _ := newTestRouter(pinger{err: errors.New("connection refused")})
	w = request(down, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
