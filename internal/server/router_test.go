package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"arrears/internal/domain"
	"arrears/internal/dto"
	"arrears/internal/infrastructure/metrics"
	"arrears/internal/order/controller"
	"arrears/internal/websocket"
)

type stubUseCase struct{}

func (s *stubUseCase) PlaceOrder(_ context.Context, cmd dto.PlaceOrderCommand) (*domain.Order, error) {
	now := time.Now().UTC()
	due := now.Add(720 * time.Hour)
	return &domain.Order{
		ID:           1,
		PlacedBy:     cmd.PlacedBy,
		AccountKind:  cmd.AccountKind,
		AmountDue:    100,
		Status:       domain.OrderStatusPending,
		PlacedAt:     now,
		PaymentDueAt: &due,
	}, nil
}

func (s *stubUseCase) RecordPayment(_ context.Context, orderID uint, _ int64, paidAt time.Time) (*domain.Order, error) {
	return &domain.Order{ID: orderID, Status: domain.OrderStatusPaid, PaidAt: &paidAt}, nil
}

func (s *stubUseCase) CancelOrder(_ context.Context, orderID uint) (*domain.Order, error) {
	return &domain.Order{ID: orderID, Status: domain.OrderStatusCancelled}, nil
}

func (s *stubUseCase) SweepOverdue(_ context.Context) (*dto.SweepResult, error) {
	return &dto.SweepResult{AsOf: time.Now().UTC()}, nil
}

func (s *stubUseCase) GetOrder(_ context.Context, orderID uint) (*domain.Order, []domain.OrderItem, error) {
	return &domain.Order{ID: orderID, PlacedBy: "acct-1", Status: domain.OrderStatusPending}, nil, nil
}

func (s *stubUseCase) ListOrders(_ context.Context, _ string) ([]domain.Order, error) {
	return nil, nil
}

func (s *stubUseCase) ListReceivables(_ context.Context, _ int) ([]domain.Order, error) {
	return nil, nil
}

func newTestRouter() (http.Handler, *metrics.Metrics) {
	m := metrics.New()
	uc := &stubUseCase{}
	ctrl := controller.NewOrderController(uc, zap.NewNop())
	ws := websocket.NewHandler(websocket.NewHub(), uc, zap.NewNop())
	return NewRouter(ctrl, ws, m), m
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected health body: %s", rec.Body.String())
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRouter_DispatchesLifecycleRoutes(t *testing.T) {
	router, _ := newTestRouter()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		role   string
		status int
	}{
		{"place order", http.MethodPost, "/api/v1/orders",
			`{"items":[{"description":"paper","quantity":1,"unitPrice":100}]}`, "COMPANY", http.StatusCreated},
		{"get order", http.MethodGet, "/api/v1/orders/42", "", "ADMIN", http.StatusOK},
		{"record payment", http.MethodPost, "/api/v1/orders/42/payment",
			`{"amount":100,"paidAt":"2026-04-01T10:00:00Z"}`, "COMPANY", http.StatusOK},
		{"cancel order", http.MethodPost, "/api/v1/orders/42/cancel", "", "ADMIN", http.StatusOK},
		{"sweep", http.MethodPost, "/api/v1/orders/sweep", "", "ADMIN", http.StatusOK},
		{"list orders", http.MethodGet, "/api/v1/orders", "", "COMPANY", http.StatusOK},
		{"receivables", http.MethodGet, "/api/v1/receivables", "", "ADMIN", http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var body *strings.Reader
			if tc.body != "" {
				body = strings.NewReader(tc.body)
			} else {
				body = strings.NewReader("")
			}
			req := httptest.NewRequest(tc.method, tc.path, body)
			req.Header.Set("X-Account-ID", "acct-1")
			req.Header.Set("X-Account-Role", tc.role)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Errorf("%s %s: expected %d, got %d (%s)", tc.method, tc.path, tc.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRouter_UnknownRouteReturns404(t *testing.T) {
	router, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestRouter_InstrumentRecordsRoutePattern(t *testing.T) {
	router, m := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/42", nil)
	req.Header.Set("X-Account-ID", "acct-1")
	req.Header.Set("X-Account-Role", "ADMIN")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/api/v1/orders/{orderId}", "200"))
	if got != 1 {
		t.Errorf("expected 1 request recorded for the route pattern, got %v", got)
	}
}
