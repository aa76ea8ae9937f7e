package payment

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"paysync/internal/models"
)

// SubscriptionProvider signs the customer up to a recurring plan.
// Billing cycles are the gateway's business; only the first paid invoice
// moves the order.
type SubscriptionProvider struct {
	stripeBase
}

func NewSubscriptionProvider(deps Dependencies) *SubscriptionProvider {
	return &SubscriptionProvider{stripeBase: newStripeBase(AliasStripeSubscription, deps)}
}

func (p *SubscriptionProvider) Capabilities() Capabilities {
	return Capabilities{}
}

func (p *SubscriptionProvider) HandleCallback(ctx context.Context, order *models.Order, form url.Values, settings Settings) (CallbackResult, error) {
	log := p.logger(order)

	gw, err := p.gateway(settings)
	if err != nil {
		log.Error("gateway unavailable", zap.Error(err))
		return CallbackResult{}, err
	}
	planAlias, err := settings.Require(SettingPlanPropertyAlias)
	if err != nil {
		log.Error("subscription misconfigured", zap.Error(err))
		return CallbackResult{}, err
	}
	plan, _ := order.Property(planAlias)
	if plan = strings.TrimSpace(plan); plan == "" {
		err := fmt.Errorf("payment: order %d has no plan in property %q", order.ID, planAlias)
		log.Error("subscription callback failed", zap.Error(err))
		return CallbackResult{}, err
	}
	email, _ := order.Property(settings.Get(SettingEmailPropertyAlias))

	meta := correlationMetadata(order)
	customer, err := gw.CreateCustomer(ctx, CustomerRequest{
		Email:    strings.TrimSpace(email),
		Source:   strings.TrimSpace(form.Get(FieldToken)),
		Metadata: meta,
	})
	if err != nil {
		return p.rejected(log, "create customer", err)
	}
	order.SetProperty(PropertyCustomerID, customer.ID)

	sub, err := gw.CreateSubscription(ctx, SubscriptionRequest{
		CustomerID: customer.ID,
		PlanID:     plan,
		Metadata:   meta,
	})
	if err != nil {
		return p.rejected(log, "create subscription", err)
	}
	order.SetProperty(PropertySubscriptionID, sub.ID)

	// Prices without a fixed unit amount (metered, tiered) report the order total.
	amount := order.Total
	if sub.Amount > 0 {
		amount = FromMinorUnits(sub.Amount)
	}
	log.Info("subscription created", zap.String("customer_id", customer.ID), zap.String("subscription_id", sub.ID))
	return CallbackResult{Info: &CallbackInfo{
		Amount:        amount,
		TransactionID: sub.ID,
		State:         models.PaymentStateAuthorized,
	}}, nil
}

func (p *SubscriptionProvider) rejected(log *zap.Logger, op string, err error) (CallbackResult, error) {
	failure, err := gatewayFailure(err)
	if err != nil {
		log.Error(op+" failed", zap.Error(err))
		return CallbackResult{}, fmt.Errorf("%s: %w", op, err)
	}
	log.Warn(op+" rejected", zap.String("code", failure.Code))
	return CallbackResult{Failure: failure}, nil
}

// HandleNotification applies invoice.payment_succeeded. Unlike the one-time
// variant, failures are returned to the caller after logging.
func (p *SubscriptionProvider) HandleNotification(ctx context.Context, order *models.Order, src *EventSource, _ Settings) error {
	ev := src.Event()
	if !ev.HasPrefix(EventPrefixInvoice) {
		return nil
	}
	log := p.logger(order).With(zap.String("event_id", ev.ID), zap.String("event_type", ev.Type))
	if ev.Type != EventInvoicePaid {
		log.Debug("invoice event observed")
		return nil
	}

	inv, err := ev.Invoice()
	if err != nil {
		log.Error("invoice notification failed", zap.Error(err))
		return err
	}
	if !CanAdvance(order.PaymentState, models.PaymentStateCaptured) {
		return nil
	}

	order.TransactionID = inv.ChargeID
	order.PaymentState = models.PaymentStateCaptured
	if err := p.deps.Orders.Save(ctx, order); err != nil {
		log.Error("invoice notification failed", zap.Error(err))
		return fmt.Errorf("save order: %w", err)
	}
	log.Info("subscription invoice paid", zap.String("charge_id", inv.ChargeID))
	return nil
}

func (p *SubscriptionProvider) GetStatus(context.Context, *models.Order, Settings) (*StatusResult, error) {
	return nil, ErrUnsupported
}

func (p *SubscriptionProvider) Capture(context.Context, *models.Order, Settings) (*StatusResult, error) {
	return nil, ErrUnsupported
}

func (p *SubscriptionProvider) Refund(context.Context, *models.Order, Settings) (*StatusResult, error) {
	return nil, ErrUnsupported
}

func (p *SubscriptionProvider) Cancel(context.Context, *models.Order, Settings) (*StatusResult, error) {
	return nil, ErrUnsupported
}
