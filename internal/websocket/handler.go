package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"arrears/internal/authz"
	"arrears/internal/domain"
	"arrears/internal/identity"

	"github.com/go-chi/chi/v5"
	gw "github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Conn = gw.Conn

var upgrader = gw.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type OrderGetter interface {
	GetOrder(ctx context.Context, orderID uint) (*domain.Order, []domain.OrderItem, error)
}

type Handler struct {
	hub    *Hub
	orders OrderGetter
	logger *zap.Logger
}

func NewHandler(hub *Hub, orders OrderGetter, logger *zap.Logger) *Handler {
	return &Handler{
		hub:    hub,
		orders: orders,
		logger: logger,
	}
}

func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	orderIDStr := chi.URLParam(r, "orderId")
	orderID, err := strconv.ParseUint(orderIDStr, 10, 64)
	if err != nil || orderID == 0 {
		http.Error(w, "orderId must be a positive integer", http.StatusBadRequest)
		return
	}

	principal, err := identity.FromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := authz.Authorize(principal.Role, authz.OpViewOrder); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	order, _, err := h.orders.GetOrder(r.Context(), uint(orderID))
	if err != nil {
		h.logger.Warn("websocket subscription rejected", zap.Uint64("orderId", orderID), zap.Error(err))
		_ = conn.Close()
		return
	}

	if !principal.Role.Staff() && order.PlacedBy != principal.AccountID {
		_ = conn.Close()
		return
	}

	client := &Client{
		hub:     h.hub,
		conn:    conn,
		send:    make(chan []byte, 256),
		orderID: orderIDStr,
	}

	client.hub.register <- client
	go client.writePump()
	go client.readPump()

	// Push the current status so the subscriber starts from a known state
	upd := OrderUpdate{OrderID: orderIDStr, Status: string(order.Status)}
	if b, err := json.Marshal(upd); err == nil {
		select {
		case client.send <- b:
		case <-time.After(1 * time.Second):
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	defer func() { _ = c.conn.Close() }()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(gw.TextMessage, msg); err != nil {
			return
		}
	}
}
