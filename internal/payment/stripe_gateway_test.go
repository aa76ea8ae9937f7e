package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"
)

type fakeStripeCharges struct {
	newParams *stripe.ChargeParams
	captured  string
	charge    *stripe.Charge
	err       error
}

func (f *fakeStripeCharges) New(params *stripe.ChargeParams) (*stripe.Charge, error) {
	f.newParams = params
	return f.charge, f.err
}

func (f *fakeStripeCharges) Get(id string, _ *stripe.ChargeParams) (*stripe.Charge, error) {
	return f.charge, f.err
}

func (f *fakeStripeCharges) Capture(id string, _ *stripe.ChargeCaptureParams) (*stripe.Charge, error) {
	f.captured = id
	return f.charge, f.err
}

type fakeStripeRefunds struct {
	params *stripe.RefundParams
}

func (f *fakeStripeRefunds) New(params *stripe.RefundParams) (*stripe.Refund, error) {
	f.params = params
	return &stripe.Refund{ID: "re_1"}, nil
}

type fakeStripeCustomers struct {
	params *stripe.CustomerParams
}

func (f *fakeStripeCustomers) New(params *stripe.CustomerParams) (*stripe.Customer, error) {
	f.params = params
	return &stripe.Customer{ID: "cus_1", Email: "jo@example.com"}, nil
}

type fakeStripeSubscriptions struct {
	params *stripe.SubscriptionParams
}

func (f *fakeStripeSubscriptions) New(params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	f.params = params
	return &stripe.Subscription{
		ID:       "sub_1",
		Status:   stripe.SubscriptionStatusActive,
		Customer: &stripe.Customer{ID: "cus_1"},
		Metadata: map[string]string{MetadataCartNumber: "CART-1"},
		Items: &stripe.SubscriptionItemList{Data: []*stripe.SubscriptionItem{
			{Price: &stripe.Price{ID: "price_1", UnitAmount: 1250}, Quantity: 2},
			{Plan: &stripe.Plan{ID: "plan_legacy", Amount: 300}},
		}},
	}, nil
}

func newTestStripeGateway(t *testing.T, charges *fakeStripeCharges) (*StripeGateway, *stripeClients) {
	t.Helper()
	clients := &stripeClients{
		charges:       charges,
		refunds:       &fakeStripeRefunds{},
		customers:     &fakeStripeCustomers{},
		subscriptions: &fakeStripeSubscriptions{},
	}
	gw, err := NewStripeGateway(StripeGatewayConfig{Clients: clients})
	require.NoError(t, err)
	return gw, clients
}

func TestNewStripeGateway_RequiresKey(t *testing.T) {
	_, err := NewStripeGateway(StripeGatewayConfig{APIKey: "  "})
	assert.Error(t, err)

	gw, err := NewStripeGateway(StripeGatewayConfig{APIKey: "sk_test_123"})
	require.NoError(t, err)
	assert.NotNil(t, gw)
}

func TestStripeGateway_CreateCharge(t *testing.T) {
	charges := &fakeStripeCharges{charge: &stripe.Charge{
		ID:       "ch_1",
		Amount:   1999,
		Currency: stripe.CurrencyUSD,
		Paid:     true,
		PaymentMethodDetails: &stripe.ChargePaymentMethodDetails{
			Card: &stripe.ChargePaymentMethodDetailsCard{
				Country: "US",
				Checks: &stripe.ChargePaymentMethodDetailsCardChecks{
					CVCCheck: stripe.ChargePaymentMethodDetailsCardChecksCVCCheckPass,
				},
			},
		},
	}}
	gw, _ := newTestStripeGateway(t, charges)

	ch, err := gw.CreateCharge(context.Background(), ChargeRequest{
		Amount:      1999,
		Currency:    "USD",
		Source:      "tok_visa",
		Description: "CART-1",
		Metadata:    map[string]string{MetadataCartNumber: "CART-1"},
	})
	require.NoError(t, err)

	params := charges.newParams
	assert.Equal(t, int64(1999), *params.Amount)
	assert.Equal(t, "usd", *params.Currency)
	assert.False(t, *params.Capture)
	assert.Equal(t, "CART-1", *params.Description)
	assert.Equal(t, "CART-1", params.Metadata[MetadataCartNumber])

	assert.Equal(t, "ch_1", ch.ID)
	assert.Equal(t, "USD", ch.Currency)
	assert.Equal(t, "US", ch.CardCountry)
	assert.Equal(t, CheckPass, ch.Checks.CVC)
}

func TestStripeGateway_RefundRefetchesCharge(t *testing.T) {
	charges := &fakeStripeCharges{charge: &stripe.Charge{ID: "ch_1", Paid: true, Refunded: true}}
	gw, clients := newTestStripeGateway(t, charges)

	ch, err := gw.RefundCharge(context.Background(), "ch_1")
	require.NoError(t, err)
	assert.Equal(t, "ch_1", *clients.refunds.(*fakeStripeRefunds).params.Charge)
	assert.True(t, ch.Refunded)
}

func TestStripeGateway_Subscription(t *testing.T) {
	gw, clients := newTestStripeGateway(t, &fakeStripeCharges{})

	cus, err := gw.CreateCustomer(context.Background(), CustomerRequest{Email: "jo@example.com", Source: "tok_visa"})
	require.NoError(t, err)
	assert.Equal(t, "cus_1", cus.ID)
	assert.Equal(t, "jo@example.com", *clients.customers.(*fakeStripeCustomers).params.Email)

	sub, err := gw.CreateSubscription(context.Background(), SubscriptionRequest{CustomerID: "cus_1", PlanID: "price_1"})
	require.NoError(t, err)
	assert.Equal(t, "sub_1", sub.ID)
	assert.Equal(t, "cus_1", sub.CustomerID)
	assert.Equal(t, "active", sub.Status)
	assert.Equal(t, int64(2800), sub.Amount)

	params := clients.subscriptions.(*fakeStripeSubscriptions).params
	require.Len(t, params.Items, 1)
	assert.Equal(t, "price_1", *params.Items[0].Price)
}

func TestStripeGateway_MapsErrors(t *testing.T) {
	stripeErr := &stripe.Error{
		ChargeID:    "ch_declined",
		Code:        stripe.ErrorCodeCardDeclined,
		DeclineCode: stripe.DeclineCodeInsufficientFunds,
		Msg:         "Your card has insufficient funds.",
		Type:        stripe.ErrorTypeCard,
	}
	gw, _ := newTestStripeGateway(t, &fakeStripeCharges{err: stripeErr})

	_, err := gw.CaptureCharge(context.Background(), "ch_declined")
	var gerr *GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "ch_declined", gerr.ChargeID)
	assert.Equal(t, "card_declined", gerr.Code)
	assert.Equal(t, "insufficient_funds", gerr.Fields["decline_code"])
	assert.Equal(t, "card_error", gerr.Fields["type"])
	assert.ErrorIs(t, err, stripeErr)

	plain := errors.New("dial tcp: timeout")
	gw, _ = newTestStripeGateway(t, &fakeStripeCharges{err: plain})
	_, err = gw.GetCharge(context.Background(), "ch_1")
	assert.False(t, errors.As(err, &gerr))
	assert.ErrorIs(t, err, plain)
}
