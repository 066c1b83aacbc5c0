package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"arrears/internal/authz"
	"arrears/internal/domain"
	"arrears/internal/dto"
	apperrors "arrears/internal/errors"
	"arrears/internal/identity"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type LifecycleUseCase interface {
	PlaceOrder(ctx context.Context, cmd dto.PlaceOrderCommand) (*domain.Order, error)
	RecordPayment(ctx context.Context, orderID uint, amount int64, paidAt time.Time) (*domain.Order, error)
	CancelOrder(ctx context.Context, orderID uint) (*domain.Order, error)
	SweepOverdue(ctx context.Context) (*dto.SweepResult, error)
	GetOrder(ctx context.Context, orderID uint) (*domain.Order, []domain.OrderItem, error)
	ListOrders(ctx context.Context, placedBy string) ([]domain.Order, error)
	ListReceivables(ctx context.Context, limit int) ([]domain.Order, error)
}

type OrderController struct {
	useCase LifecycleUseCase
	logger  *zap.Logger
}

func NewOrderController(useCase LifecycleUseCase, logger *zap.Logger) *OrderController {
	return &OrderController{
		useCase: useCase,
		logger:  logger,
	}
}

func (c *OrderController) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	principal, err := identity.FromRequest(r)
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	if err := authz.Authorize(principal.Role, authz.OpPlaceOrder); err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	// Decode request body
	var req dto.PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid JSON body", zap.Error(err))
		c.writeValidationError(w, traceID, "invalid JSON body", apperrors.ValidationDetail{
			Field:   "body",
			Message: "request body must be valid JSON",
		})
		return
	}

	// Validate request
	if validationErr := c.validatePlaceOrderRequest(req); validationErr != nil {
		ve, _ := apperrors.IsValidationError(validationErr)
		c.writeValidationError(w, traceID, ve.Message, ve.Details...)
		return
	}

	kind, err := principal.Role.AccountKind()
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	// Map request items to domain items
	items := make([]domain.OrderItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = domain.OrderItem{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		}
	}

	// Call use case
	order, err := c.useCase.PlaceOrder(r.Context(), dto.PlaceOrderCommand{
		PlacedBy:    principal.AccountID,
		AccountKind: kind,
		Items:       items,
	})
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	c.writeOrderResponse(w, http.StatusCreated, traceID, order, items)
}

func (c *OrderController) GetOrder(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	principal, err := identity.FromRequest(r)
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	if err := authz.Authorize(principal.Role, authz.OpViewOrder); err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	orderID, ok := c.parseOrderID(w, r, traceID, logger)
	if !ok {
		return
	}

	order, items, err := c.useCase.GetOrder(r.Context(), orderID)
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	// Account roles only see their own orders
	if !principal.Role.Staff() && order.PlacedBy != principal.AccountID {
		c.handleUseCaseError(w, traceID, apperrors.NewForbiddenError("order belongs to another account"), logger)
		return
	}

	c.writeOrderResponse(w, http.StatusOK, traceID, order, items)
}

func (c *OrderController) ListOrders(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	principal, err := identity.FromRequest(r)
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	if err := authz.Authorize(principal.Role, authz.OpViewOrder); err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	// Staff may inspect any account; account roles always get their own
	placedBy := principal.AccountID
	if principal.Role.Staff() {
		if account := r.URL.Query().Get("accountId"); account != "" {
			placedBy = account
		}
	}

	orders, err := c.useCase.ListOrders(r.Context(), placedBy)
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	summaries := make([]dto.OrderSummary, len(orders))
	for i, order := range orders {
		summaries[i] = orderSummary(order)
	}

	c.writeJSON(w, http.StatusOK, dto.OrderListResponse{
		TraceID:   traceID,
		Orders:    summaries,
		Timestamp: time.Now().UTC(),
	})
}

func (c *OrderController) RecordPayment(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	principal, err := identity.FromRequest(r)
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	if err := authz.Authorize(principal.Role, authz.OpRecordPayment); err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	orderID, ok := c.parseOrderID(w, r, traceID, logger)
	if !ok {
		return
	}

	// Decode request body
	var req dto.RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid JSON body", zap.Error(err))
		c.writeValidationError(w, traceID, "invalid JSON body", apperrors.ValidationDetail{
			Field:   "body",
			Message: "request body must be valid JSON",
		})
		return
	}

	// Validate request
	if validationErr := c.validateRecordPaymentRequest(req); validationErr != nil {
		ve, _ := apperrors.IsValidationError(validationErr)
		c.writeValidationError(w, traceID, ve.Message, ve.Details...)
		return
	}

	// Call use case
	order, err := c.useCase.RecordPayment(r.Context(), orderID, req.Amount, req.PaidAt)
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	c.writeOrderResponse(w, http.StatusOK, traceID, order, nil)
}

func (c *OrderController) CancelOrder(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	principal, err := identity.FromRequest(r)
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	if err := authz.Authorize(principal.Role, authz.OpCancelOrder); err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	orderID, ok := c.parseOrderID(w, r, traceID, logger)
	if !ok {
		return
	}

	// Call use case
	order, err := c.useCase.CancelOrder(r.Context(), orderID)
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	c.writeOrderResponse(w, http.StatusOK, traceID, order, nil)
}

func (c *OrderController) SweepOverdue(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	principal, err := identity.FromRequest(r)
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	if err := authz.Authorize(principal.Role, authz.OpSweepOverdue); err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	// Call use case
	result, err := c.useCase.SweepOverdue(r.Context())
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	orderIDs := make([]uint, len(result.MarkedIDs))
	copy(orderIDs, result.MarkedIDs)

	c.writeJSON(w, http.StatusOK, dto.SweepResponse{
		TraceID:     traceID,
		MarkedCount: len(orderIDs),
		OrderIDs:    orderIDs,
		AsOf:        result.AsOf,
		Timestamp:   time.Now().UTC(),
	})
}

func (c *OrderController) ListReceivables(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	principal, err := identity.FromRequest(r)
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	if err := authz.Authorize(principal.Role, authz.OpViewReceivables); err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.writeValidationError(w, traceID, "invalid limit", apperrors.ValidationDetail{
				Field:   "limit",
				Message: "limit must be a positive integer",
			})
			return
		}
		limit = parsed
	}

	orders, err := c.useCase.ListReceivables(r.Context(), limit)
	if err != nil {
		c.handleUseCaseError(w, traceID, err, logger)
		return
	}

	asOf := time.Now().UTC()
	receivables := make([]dto.ReceivableResponse, len(orders))
	var totalDue int64
	for i, order := range orders {
		row := dto.ReceivableResponse{
			OrderID:   order.ID,
			PlacedBy:  order.PlacedBy,
			AmountDue: order.AmountDue,
			Status:    string(order.Status),
			PlacedAt:  order.PlacedAt,
		}
		if order.PaymentDueAt != nil {
			row.PaymentDueAt = *order.PaymentDueAt
			if asOf.After(*order.PaymentDueAt) {
				row.DaysPastDue = int(asOf.Sub(*order.PaymentDueAt) / (24 * time.Hour))
			}
		}
		receivables[i] = row
		totalDue += order.AmountDue
	}

	c.writeJSON(w, http.StatusOK, dto.ReceivablesResponse{
		TraceID:     traceID,
		Receivables: receivables,
		TotalDue:    totalDue,
		AsOf:        asOf,
		Timestamp:   time.Now().UTC(),
	})
}

func (c *OrderController) parseOrderID(w http.ResponseWriter, r *http.Request, traceID string, logger *zap.Logger) (uint, bool) {
	orderIDStr := chi.URLParam(r, "orderId")
	orderID, err := strconv.ParseUint(orderIDStr, 10, 64)
	if err != nil || orderID == 0 {
		logger.Warn("invalid orderId in path", zap.String("orderId", orderIDStr))
		c.writeValidationError(w, traceID, "invalid orderId", apperrors.ValidationDetail{
			Field:   "orderId",
			Message: "orderId must be a positive integer",
		})
		return 0, false
	}
	return uint(orderID), true
}

func (c *OrderController) validatePlaceOrderRequest(req dto.PlaceOrderRequest) error {
	var details []apperrors.ValidationDetail

	// Validate items is not empty
	if len(req.Items) == 0 {
		details = append(details, apperrors.ValidationDetail{
			Field:   "items",
			Message: "items must not be empty",
		})
	}

	// Validate items length <= 100
	if len(req.Items) > 100 {
		details = append(details, apperrors.ValidationDetail{
			Field:   "items",
			Message: "items exceeds maximum of 100",
		})
	}

	// Validate each item
	for idx, item := range req.Items {
		if item.Description == "" {
			details = append(details, apperrors.ValidationDetail{
				Field:   "items[" + strconv.Itoa(idx) + "].description",
				Message: "description is required",
			})
		}

		if item.Quantity < 1 || item.Quantity > 10000 {
			details = append(details, apperrors.ValidationDetail{
				Field:   "items[" + strconv.Itoa(idx) + "].quantity",
				Message: "quantity must be between 1 and 10000",
			})
		}

		if item.UnitPrice < 0 {
			details = append(details, apperrors.ValidationDetail{
				Field:   "items[" + strconv.Itoa(idx) + "].unitPrice",
				Message: "unitPrice must be non-negative",
			})
		}
	}

	if len(details) > 0 {
		return apperrors.NewValidationError("validation failed", details...)
	}

	return nil
}

func (c *OrderController) validateRecordPaymentRequest(req dto.RecordPaymentRequest) error {
	var details []apperrors.ValidationDetail

	// Validate amount
	if req.Amount <= 0 {
		msg := "amount must be a positive integer of cents"
		if req.Amount == 0 {
			msg = "amount is required"
		}
		details = append(details, apperrors.ValidationDetail{
			Field:   "amount",
			Message: msg,
		})
	}

	// Validate paidAt
	if req.PaidAt.IsZero() {
		details = append(details, apperrors.ValidationDetail{
			Field:   "paidAt",
			Message: "paidAt is required and must be an RFC 3339 timestamp",
		})
	}

	if len(details) > 0 {
		return apperrors.NewValidationError("validation failed", details...)
	}

	return nil
}

func (c *OrderController) handleUseCaseError(w http.ResponseWriter, traceID string, err error, logger *zap.Logger) {
	if ve, ok := apperrors.IsValidationError(err); ok {
		c.writeValidationError(w, traceID, ve.Message, ve.Details...)
		return
	}

	if _, ok := apperrors.IsInvalidAmountError(err); ok {
		c.writeErrorResponse(w, traceID, http.StatusBadRequest, "INVALID_AMOUNT", err.Error())
		return
	}

	if _, ok := apperrors.IsUnknownAccountKindError(err); ok {
		c.writeErrorResponse(w, traceID, http.StatusBadRequest, "UNKNOWN_ACCOUNT_KIND", err.Error())
		return
	}

	if _, ok := apperrors.IsNotFoundError(err); ok {
		c.writeErrorResponse(w, traceID, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}

	if _, ok := apperrors.IsAlreadySettledError(err); ok {
		c.writeErrorResponse(w, traceID, http.StatusConflict, "ALREADY_SETTLED", err.Error())
		return
	}

	if _, ok := apperrors.IsAmountMismatchError(err); ok {
		c.writeErrorResponse(w, traceID, http.StatusUnprocessableEntity, "AMOUNT_MISMATCH", err.Error())
		return
	}

	if _, ok := apperrors.IsForbiddenError(err); ok {
		c.writeErrorResponse(w, traceID, http.StatusForbidden, "FORBIDDEN", err.Error())
		return
	}

	if _, ok := apperrors.IsDeadlockError(err); ok {
		c.writeErrorResponse(w, traceID, http.StatusConflict, "DEADLOCK", err.Error())
		return
	}

	logger.Error("unexpected error", zap.Error(err))
	c.writeErrorResponse(w, traceID, http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred")
}

func orderSummary(order domain.Order) dto.OrderSummary {
	return dto.OrderSummary{
		OrderID:      order.ID,
		PlacedBy:     order.PlacedBy,
		AccountKind:  string(order.AccountKind),
		AmountDue:    order.AmountDue,
		Status:       string(order.Status),
		PlacedAt:     order.PlacedAt,
		PaymentDueAt: order.PaymentDueAt,
		PaidAt:       order.PaidAt,
	}
}

func (c *OrderController) writeOrderResponse(w http.ResponseWriter, statusCode int, traceID string, order *domain.Order, items []domain.OrderItem) {
	response := dto.OrderResponse{
		TraceID:      traceID,
		OrderID:      order.ID,
		PlacedBy:     order.PlacedBy,
		AccountKind:  string(order.AccountKind),
		AmountDue:    order.AmountDue,
		Status:       string(order.Status),
		PlacedAt:     order.PlacedAt,
		PaymentDueAt: order.PaymentDueAt,
		PaidAt:       order.PaidAt,
		Timestamp:    time.Now().UTC(),
	}

	if len(items) > 0 {
		mapped := make([]dto.OrderItemResponse, len(items))
		for i, item := range items {
			mapped[i] = dto.OrderItemResponse{
				Description: item.Description,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				Subtotal:    item.Subtotal(),
			}
		}
		response.Items = mapped
	}

	c.writeJSON(w, statusCode, response)
}

func (c *OrderController) writeErrorResponse(w http.ResponseWriter, traceID string, statusCode int, code string, message string) {
	response := dto.OrderErrorResponse{
		TraceID:   traceID,
		Status:    statusCode,
		Message:   message,
		Code:      code,
		Timestamp: time.Now().UTC(),
	}

	c.writeJSON(w, statusCode, response)
}

type validationErrorResponse struct {
	Error   string                       `json:"error"`
	Message string                       `json:"message"`
	Details []apperrors.ValidationDetail `json:"details"`
}

func (c *OrderController) writeValidationError(w http.ResponseWriter, traceID string, message string, details ...apperrors.ValidationDetail) {
	response := validationErrorResponse{
		Error:   "VALIDATION_ERROR",
		Message: message,
		Details: details,
	}

	c.writeJSON(w, http.StatusBadRequest, response)
}

func (c *OrderController) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		c.logger.Error("failed to encode response", zap.Error(err))
	}
}
