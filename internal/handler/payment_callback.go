package handler

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"paysync/internal/form"
	"paysync/internal/payment"
	"paysync/internal/repository"
)

const eventSourceKey = "payment_event_source"

// PaymentCallbackHandler serves the checkout form and the gateway callbacks.
type PaymentCallbackHandler struct {
	payments *payment.Service
	renderer *form.Renderer
	logger   *zap.Logger
}

// NewPaymentCallbackHandler creates a new payment callback handler.
func NewPaymentCallbackHandler(payments *payment.Service, renderer *form.Renderer, logger *zap.Logger) *PaymentCallbackHandler {
	return &PaymentCallbackHandler{
		payments: payments,
		renderer: renderer,
		logger:   logger,
	}
}

// EventSource returns the gateway event source of the current request.
// It is created once per request and shared by middleware and handler.
func (h *PaymentCallbackHandler) EventSource(c echo.Context) *payment.EventSource {
	if src, ok := c.Get(eventSourceKey).(*payment.EventSource); ok {
		return src
	}
	src, err := h.payments.EventSource(c.Request().Context(), c.Param("provider"), c.Request())
	if err != nil {
		h.logger.Debug("no event source", zap.String("provider", c.Param("provider")), zap.Error(err))
		src = nil
	}
	c.Set(eventSourceKey, src)
	return src
}

// Form renders the checkout form for a cart.
// GET /payment/:provider/form/:cart
func (h *PaymentCallbackHandler) Form(c echo.Context) error {
	alias, cart := c.Param("provider"), c.Param("cart")
	f, err := h.payments.Form(c.Request().Context(), alias, cart, nil)
	if err != nil {
		return h.failRequest(c, alias, cart, err)
	}
	return h.render(c, f, false)
}

// Callback is the single return endpoint of the gateway. Requests carrying
// a gateway event take the webhook path; everything else is a browser redirect.
// POST /payment/:provider/callback
func (h *PaymentCallbackHandler) Callback(c echo.Context) error {
	if src := h.EventSource(c); src.Event() != nil {
		return h.notification(c, src)
	}
	return h.redirect(c)
}

func (h *PaymentCallbackHandler) notification(c echo.Context, src *payment.EventSource) error {
	alias := c.Param("provider")
	ev := src.Event()
	if err := h.payments.Notify(c.Request().Context(), alias, src); err != nil {
		h.logger.Error("webhook processing failed",
			zap.String("provider", alias),
			zap.String("event_id", ev.ID),
			zap.String("event_type", ev.Type),
			zap.Error(err))
		return c.NoContent(http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusOK)
}

func (h *PaymentCallbackHandler) redirect(c echo.Context) error {
	alias := c.Param("provider")
	ctx := c.Request().Context()

	values, err := c.FormParams()
	if err != nil {
		return c.String(http.StatusBadRequest, "invalid form")
	}
	cart := values.Get(payment.FieldCartNumber)
	if cart == "" {
		return c.String(http.StatusBadRequest, "missing cart number")
	}

	res, err := h.payments.Callback(ctx, alias, cart, values)
	if err != nil {
		return h.failRequest(c, alias, cart, err)
	}
	if res.Failure != nil {
		return h.bounce(c, alias, cart, values, res.Failure)
	}

	next, err := h.payments.ContinueURL(ctx, alias)
	if err != nil {
		return h.failRequest(c, alias, cart, err)
	}
	return c.Redirect(http.StatusFound, next)
}

// bounce sends the customer back through the checkout form with the
// customer's submission and the failure attached as hidden fields.
func (h *PaymentCallbackHandler) bounce(c echo.Context, alias, cart string, values map[string][]string, failure *payment.ValidationFailure) error {
	extra := make(map[string]string, len(values))
	for k, v := range values {
		if k == payment.FieldToken || len(v) == 0 {
			continue
		}
		extra[k] = v[0]
	}
	for k, v := range payment.FailureFields(failure) {
		extra[k] = v
	}

	f, err := h.payments.Form(c.Request().Context(), alias, cart, extra)
	if err != nil {
		return h.failRequest(c, alias, cart, err)
	}
	return h.render(c, f, true)
}

func (h *PaymentCallbackHandler) render(c echo.Context, f *payment.CheckoutForm, autoSubmit bool) error {
	var buf bytes.Buffer
	if err := h.renderer.Render(&buf, f, autoSubmit); err != nil {
		h.logger.Error("render checkout form failed", zap.Error(err))
		return c.String(http.StatusInternalServerError, "template error")
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

// failRequest maps errors that stopped a request. Anything unexpected is
// logged and answered with an empty response, leaving the order untouched.
func (h *PaymentCallbackHandler) failRequest(c echo.Context, alias, cart string, err error) error {
	log := h.logger.With(zap.String("provider", alias), zap.String("cart_number", cart), zap.Error(err))

	var cfgErr *payment.ConfigurationError
	switch {
	case errors.Is(err, repository.ErrOrderNotFound), errors.Is(err, payment.ErrUnknownProvider):
		log.Warn("payment request for unknown target")
		return c.String(http.StatusNotFound, "not found")
	case errors.As(err, &cfgErr):
		log.Error("payment provider misconfigured")
		return c.String(http.StatusInternalServerError, "payment provider misconfigured")
	default:
		log.Error("payment request failed")
		return c.NoContent(http.StatusOK)
	}
}
