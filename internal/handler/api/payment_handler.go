package api

import (
	"context"
	"errors"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"paysync/internal/payment"
	"paysync/internal/repository"
)

// PaymentOperations is the order-level payment surface driven by operators.
type PaymentOperations interface {
	Status(ctx context.Context, orderID uint) (*payment.StatusResult, error)
	Capture(ctx context.Context, orderID uint) (*payment.StatusResult, error)
	Refund(ctx context.Context, orderID uint) (*payment.StatusResult, error)
	Cancel(ctx context.Context, orderID uint) (*payment.StatusResult, error)
	Reconcile(ctx context.Context, limit int) (payment.ReconcileReport, error)
}

// PaymentHandler handles all payment API actions.
type PaymentHandler struct {
	payments PaymentOperations
	logger   *zap.Logger
}

func NewPaymentHandler(payments PaymentOperations, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, logger: logger}
}

// Handle routes payment API requests.
// POST /api/payments
func (h *PaymentHandler) Handle(c echo.Context) error {
	req, err := bindOperatorRequest(c)
	if err != nil {
		return errorResponse(c, "Invalid request body")
	}

	switch req.Actions {
	case "status":
		return h.orderOperation(c, req, payment.OpStatus, h.payments.Status)
	case "capture":
		return h.orderOperation(c, req, payment.OpCapture, h.payments.Capture)
	case "refund":
		return h.orderOperation(c, req, payment.OpRefund, h.payments.Refund)
	case "cancel":
		return h.orderOperation(c, req, payment.OpCancel, h.payments.Cancel)
	case "reconcile":
		return h.reconcile(c, req)
	default:
		return errorResponse(c, "Unknown action: "+req.Actions)
	}
}

func (h *PaymentHandler) orderOperation(
	c echo.Context,
	req *operatorRequest,
	op payment.Operation,
	run func(context.Context, uint) (*payment.StatusResult, error),
) error {
	orderID := int(req.OrderID)
	if orderID <= 0 {
		return errorResponse(c, "order_id is required")
	}

	res, err := run(c.Request().Context(), uint(orderID))
	switch {
	case errors.Is(err, repository.ErrOrderNotFound):
		return errorResponse(c, "Order not found")
	case errors.Is(err, payment.ErrUnsupported):
		return errorResponse(c, "Operation not supported by the order's payment provider")
	case err != nil:
		h.logger.Error("payment operation failed",
			zap.String("operation", string(op)), zap.Int("order_id", orderID), zap.Error(err))
		return errorResponse(c, "Payment operation failed")
	}

	return successResponse(c, "Successful", map[string]interface{}{
		"order_id":       orderID,
		"transaction_id": res.TransactionID,
		"payment_state":  res.State,
	})
}

func (h *PaymentHandler) reconcile(c echo.Context, req *operatorRequest) error {
	limit := int(req.Limit)
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	report, err := h.payments.Reconcile(c.Request().Context(), limit)
	if err != nil {
		h.logger.Error("reconcile failed", zap.Error(err))
		return errorResponse(c, "Reconcile failed")
	}
	return successResponse(c, "Successful", map[string]interface{}{
		"checked": report.Checked,
		"updated": report.Updated,
		"skipped": report.Skipped,
		"failed":  report.Failed,
	})
}
