package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"paysync/internal/models"
)

// ChargeProvider takes one-time card payments through an uncaptured charge.
type ChargeProvider struct {
	stripeBase
}

func NewChargeProvider(deps Dependencies) *ChargeProvider {
	return &ChargeProvider{stripeBase: newStripeBase(AliasStripe, deps)}
}

func (p *ChargeProvider) Capabilities() Capabilities {
	return Capabilities{Status: true, Capture: true, Refund: true, Cancel: true}
}

// HandleCallback creates the charge, validates it and optionally captures it.
// A rejected or failing charge is reported through CallbackResult.Failure;
// the returned error is reserved for configuration and unexpected faults.
func (p *ChargeProvider) HandleCallback(ctx context.Context, order *models.Order, form url.Values, settings Settings) (CallbackResult, error) {
	log := p.logger(order)

	gw, err := p.gateway(settings)
	if err != nil {
		log.Error("gateway unavailable", zap.Error(err))
		return CallbackResult{}, err
	}
	currency, err := p.deps.Reference.CurrencyCode(ctx, order.StoreID, order.CurrencyID)
	if err != nil {
		log.Error("currency lookup failed", zap.Error(err))
		return CallbackResult{}, fmt.Errorf("resolve currency: %w", err)
	}

	charge, err := gw.CreateCharge(ctx, ChargeRequest{
		Amount:      ToMinorUnits(order.Total),
		Currency:    currency,
		Source:      strings.TrimSpace(form.Get(FieldToken)),
		Description: order.CartNumber,
		Metadata:    correlationMetadata(order),
	})
	if err != nil {
		failure, err := gatewayFailure(err)
		if err != nil {
			log.Error("create charge failed", zap.Error(err))
			return CallbackResult{}, fmt.Errorf("create charge: %w", err)
		}
		log.Warn("charge rejected", zap.String("code", failure.Code), zap.String("charge_id", failure.ChargeID))
		return CallbackResult{Failure: failure}, nil
	}
	log = log.With(zap.String("charge_id", charge.ID))

	opts := settings.ValidationOptions()
	var country string
	if opts.Country {
		country, err = p.deps.Reference.CountryCode(ctx, order.StoreID, order.BillingCountryID)
		if err != nil {
			log.Error("country lookup failed", zap.Error(err))
			return CallbackResult{}, fmt.Errorf("resolve billing country: %w", err)
		}
	}
	if failure := ValidateCharge(order, charge, opts, country); failure != nil {
		log.Warn("charge failed validation", zap.String("code", failure.Code))
		return CallbackResult{Failure: failure}, nil
	}

	state := ChargeState(charge)
	if opts.Capture {
		captured, err := p.capture(ctx, gw, charge.ID)
		if err != nil {
			log.Warn("immediate capture failed", zap.Error(err))
			failure := newFailure(charge.ID, CodeCaptureFailed, "The payment could not be captured.")
			var gerr *GatewayError
			if errors.As(err, &gerr) {
				failure.Fields = map[string]string{"gateway_code": gerr.Code}
			}
			return CallbackResult{Failure: failure}, nil
		}
		if failure := ValidateCapture(captured); failure != nil {
			log.Warn("charge not captured", zap.String("code", failure.Code))
			return CallbackResult{Failure: failure}, nil
		}
		state = ChargeState(captured)
	}

	log.Info("charge accepted", zap.String("state", string(state)))
	return CallbackResult{Info: &CallbackInfo{
		Amount:        FromMinorUnits(charge.Amount),
		TransactionID: charge.ID,
		State:         state,
	}}, nil
}

// HandleNotification applies charge.* events. Failures are logged, never returned.
func (p *ChargeProvider) HandleNotification(ctx context.Context, order *models.Order, src *EventSource, _ Settings) error {
	if err := p.applyChargeEvent(ctx, order, src.Event()); err != nil {
		p.logger(order).Error("charge notification failed", zap.Error(err))
	}
	return nil
}

func (p *ChargeProvider) applyChargeEvent(ctx context.Context, order *models.Order, ev *GatewayEvent) error {
	if !ev.HasPrefix(EventPrefixCharge) {
		return nil
	}
	log := p.logger(order).With(zap.String("event_id", ev.ID), zap.String("event_type", ev.Type))

	charge, err := ev.Charge()
	if err != nil {
		return err
	}
	if order.TransactionID != "" && order.TransactionID != charge.ID {
		log.Warn("event charge does not match order transaction", zap.String("charge_id", charge.ID))
		return nil
	}

	state := ChargeState(charge)
	if state == order.PaymentState {
		return nil
	}
	if !CanAdvance(order.PaymentState, state) {
		log.Info("ignoring stale charge event",
			zap.String("current", string(order.PaymentState)), zap.String("derived", string(state)))
		return nil
	}

	order.TransactionID = charge.ID
	order.PaymentState = state
	if err := p.deps.Orders.Save(ctx, order); err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	log.Info("order state updated", zap.String("state", string(state)))
	return nil
}

func (p *ChargeProvider) GetStatus(ctx context.Context, order *models.Order, settings Settings) (*StatusResult, error) {
	return p.run(ctx, order, settings, OpStatus, func(gw Gateway, id string) (*Charge, error) {
		return gw.GetCharge(ctx, id)
	})
}

func (p *ChargeProvider) Capture(ctx context.Context, order *models.Order, settings Settings) (*StatusResult, error) {
	return p.run(ctx, order, settings, OpCapture, func(gw Gateway, id string) (*Charge, error) {
		return p.capture(ctx, gw, id)
	})
}

func (p *ChargeProvider) Refund(ctx context.Context, order *models.Order, settings Settings) (*StatusResult, error) {
	return p.run(ctx, order, settings, OpRefund, func(gw Gateway, id string) (*Charge, error) {
		return gw.RefundCharge(ctx, id)
	})
}

// Cancel voids an authorization. The gateway has no separate void, so this is a refund.
func (p *ChargeProvider) Cancel(ctx context.Context, order *models.Order, settings Settings) (*StatusResult, error) {
	return p.Refund(ctx, order, settings)
}

func (p *ChargeProvider) capture(ctx context.Context, gw Gateway, chargeID string) (*Charge, error) {
	return gw.CaptureCharge(ctx, chargeID)
}

// run performs one gateway call keyed by the order's transaction id and
// re-derives the state from the gateway's answer.
func (p *ChargeProvider) run(ctx context.Context, order *models.Order, settings Settings, op Operation, call func(Gateway, string) (*Charge, error)) (*StatusResult, error) {
	log := p.logger(order).With(zap.String("operation", string(op)))
	if order.TransactionID == "" {
		err := fmt.Errorf("payment: order %d has no transaction id", order.ID)
		log.Error("operation failed", zap.Error(err))
		return nil, err
	}
	gw, err := p.gateway(settings)
	if err != nil {
		log.Error("gateway unavailable", zap.Error(err))
		return nil, err
	}
	charge, err := call(gw, order.TransactionID)
	if err != nil {
		log.Error("operation failed", zap.String("charge_id", order.TransactionID), zap.Error(err))
		return nil, fmt.Errorf("%s charge %s: %w", op, order.TransactionID, err)
	}
	return &StatusResult{TransactionID: charge.ID, State: ChargeState(charge)}, nil
}
