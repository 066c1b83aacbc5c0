package server

import (
	"net/http"
	"time"

	"arrears/internal/infrastructure/metrics"
	"arrears/internal/order/controller"
	"arrears/internal/websocket"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the HTTP surface: lifecycle endpoints under /api/v1,
// operational endpoints at the root.
func NewRouter(orders *controller.OrderController, ws *websocket.Handler, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(instrument(m))
			r.Use(middleware.Timeout(30 * time.Second))
			r.Use(middleware.Compress(5))

			r.Post("/orders", orders.PlaceOrder)
			r.Get("/orders", orders.ListOrders)
			r.Post("/orders/sweep", orders.SweepOverdue)
			r.Get("/orders/{orderId}", orders.GetOrder)
			r.Post("/orders/{orderId}/payment", orders.RecordPayment)
			r.Post("/orders/{orderId}/cancel", orders.CancelOrder)
			r.Get("/receivables", orders.ListReceivables)
		})

		// Status subscriptions outlive any sane request timeout, so the
		// upgrade route stays off the timeout and compression chain.
		r.Get("/orders/{orderId}/ws", ws.ServeWS)
	})

	return r
}
