package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"go.uber.org/zap"
)

type stripeChargeAPI interface {
	New(params *stripe.ChargeParams) (*stripe.Charge, error)
	Get(id string, params *stripe.ChargeParams) (*stripe.Charge, error)
	Capture(id string, params *stripe.ChargeCaptureParams) (*stripe.Charge, error)
}

type stripeRefundAPI interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

type stripeCustomerAPI interface {
	New(params *stripe.CustomerParams) (*stripe.Customer, error)
}

type stripeSubscriptionAPI interface {
	New(params *stripe.SubscriptionParams) (*stripe.Subscription, error)
}

type stripeClients struct {
	charges       stripeChargeAPI
	refunds       stripeRefundAPI
	customers     stripeCustomerAPI
	subscriptions stripeSubscriptionAPI
}

// StripeGatewayConfig configures a StripeGateway.
type StripeGatewayConfig struct {
	APIKey   string
	Backends *stripe.Backends
	Clients  *stripeClients
}

// StripeGateway implements Gateway on top of the Stripe API.
type StripeGateway struct {
	api stripeClients
}

// NewStripeGateway constructs a Stripe gateway client.
func NewStripeGateway(cfg StripeGatewayConfig) (*StripeGateway, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Clients == nil {
		return nil, errors.New("stripe: api key is required")
	}

	var clients stripeClients
	if cfg.Clients != nil {
		clients = *cfg.Clients
	} else {
		sc := client.New(apiKey, cfg.Backends)
		clients = stripeClients{
			charges:       sc.Charges,
			refunds:       sc.Refunds,
			customers:     sc.Customers,
			subscriptions: sc.Subscriptions,
		}
	}
	if clients.charges == nil || clients.refunds == nil || clients.customers == nil || clients.subscriptions == nil {
		return nil, errors.New("stripe: incomplete client configuration")
	}
	return &StripeGateway{api: clients}, nil
}

// NewStripeBackends builds Stripe backends sharing one HTTP client.
// Network retries are performed by the Stripe backend, not by callers.
func NewStripeBackends(httpClient *http.Client, maxNetworkRetries int64, logger *zap.Logger) *stripe.Backends {
	cfg := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(maxNetworkRetries),
	}
	if logger != nil {
		cfg.LeveledLogger = logger.Sugar()
	}
	return &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, cfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, cfg),
	}
}

// StripeGatewayFactory returns a factory producing Stripe gateways over backends.
func StripeGatewayFactory(backends *stripe.Backends) GatewayFactory {
	return func(secretKey string) (Gateway, error) {
		return NewStripeGateway(StripeGatewayConfig{APIKey: secretKey, Backends: backends})
	}
}

func (g *StripeGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	params := &stripe.ChargeParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		Capture:  stripe.Bool(false),
	}
	params.Context = ctx
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.Source != "" {
		params.AddExtra("source", req.Source)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	ch, err := g.api.charges.New(params)
	if err != nil {
		return nil, gatewayError("create charge", err)
	}
	return chargeFromStripe(ch), nil
}

func (g *StripeGateway) GetCharge(ctx context.Context, id string) (*Charge, error) {
	params := &stripe.ChargeParams{}
	params.Context = ctx
	ch, err := g.api.charges.Get(id, params)
	if err != nil {
		return nil, gatewayError("get charge", err)
	}
	return chargeFromStripe(ch), nil
}

func (g *StripeGateway) CaptureCharge(ctx context.Context, id string) (*Charge, error) {
	params := &stripe.ChargeCaptureParams{}
	params.Context = ctx
	ch, err := g.api.charges.Capture(id, params)
	if err != nil {
		return nil, gatewayError("capture charge", err)
	}
	return chargeFromStripe(ch), nil
}

// RefundCharge refunds the full charge and returns the charge as it stands afterwards.
func (g *StripeGateway) RefundCharge(ctx context.Context, id string) (*Charge, error) {
	params := &stripe.RefundParams{
		Charge: stripe.String(id),
	}
	params.Context = ctx
	if _, err := g.api.refunds.New(params); err != nil {
		return nil, gatewayError("refund charge", err)
	}
	return g.GetCharge(ctx, id)
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, req CustomerRequest) (*Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	if req.Email != "" {
		params.Email = stripe.String(req.Email)
	}
	if req.Source != "" {
		params.AddExtra("source", req.Source)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	cus, err := g.api.customers.New(params)
	if err != nil {
		return nil, gatewayError("create customer", err)
	}
	return &Customer{ID: cus.ID, Email: cus.Email}, nil
}

func (g *StripeGateway) CreateSubscription(ctx context.Context, req SubscriptionRequest) (*Subscription, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(req.CustomerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(req.PlanID)},
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	sub, err := g.api.subscriptions.New(params)
	if err != nil {
		return nil, gatewayError("create subscription", err)
	}
	out := &Subscription{
		ID:       sub.ID,
		Status:   string(sub.Status),
		Metadata: copyStrings(sub.Metadata),
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			out.Amount += itemAmount(item)
		}
	}
	return out, nil
}

func itemAmount(item *stripe.SubscriptionItem) int64 {
	if item == nil {
		return 0
	}
	qty := item.Quantity
	if qty == 0 {
		qty = 1
	}
	switch {
	case item.Price != nil:
		return item.Price.UnitAmount * qty
	case item.Plan != nil:
		return item.Plan.Amount * qty
	default:
		return 0
	}
}

func gatewayError(op string, err error) error {
	var serr *stripe.Error
	if !errors.As(err, &serr) {
		return fmt.Errorf("stripe: %s: %w", op, err)
	}
	fields := make(map[string]string)
	if serr.Type != "" {
		fields["type"] = string(serr.Type)
	}
	if serr.DeclineCode != "" {
		fields["decline_code"] = string(serr.DeclineCode)
	}
	if serr.Param != "" {
		fields["param"] = serr.Param
	}
	code := string(serr.Code)
	if code == "" {
		code = string(serr.Type)
	}
	return &GatewayError{
		ChargeID: serr.ChargeID,
		Code:     code,
		Message:  serr.Msg,
		Fields:   fields,
		Err:      err,
	}
}

func chargeFromStripe(ch *stripe.Charge) *Charge {
	if ch == nil {
		return nil
	}
	c := &Charge{
		ID:          ch.ID,
		Amount:      ch.Amount,
		Currency:    strings.ToUpper(string(ch.Currency)),
		Description: ch.Description,
		Paid:        ch.Paid,
		Captured:    ch.Captured,
		Refunded:    ch.Refunded,
		Metadata:    copyStrings(ch.Metadata),
	}
	if bd := ch.BillingDetails; bd != nil && bd.Address != nil {
		c.AddressLine1 = bd.Address.Line1
		c.PostalCode = bd.Address.PostalCode
	}
	if pmd := ch.PaymentMethodDetails; pmd != nil && pmd.Card != nil {
		c.CardCountry = pmd.Card.Country
		if checks := pmd.Card.Checks; checks != nil {
			c.Checks = CardChecks{
				CVC:          CheckResult(checks.CVCCheck),
				AddressLine1: CheckResult(checks.AddressLine1Check),
				PostalCode:   CheckResult(checks.AddressPostalCodeCheck),
			}
		}
	}
	return c
}

func invoiceFromStripe(in *stripe.Invoice) *Invoice {
	if in == nil {
		return nil
	}
	inv := &Invoice{
		ID:       in.ID,
		Paid:     in.Paid,
		Metadata: copyStrings(in.Metadata),
	}
	if in.Charge != nil {
		inv.ChargeID = in.Charge.ID
	}
	if in.Subscription != nil {
		inv.SubscriptionID = in.Subscription.ID
	}
	if in.Lines != nil {
		for _, line := range in.Lines.Data {
			if line == nil {
				continue
			}
			for k, v := range line.Metadata {
				if _, ok := inv.Metadata[k]; !ok {
					inv.Metadata[k] = v
				}
			}
		}
	}
	return inv
}

func copyStrings(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
