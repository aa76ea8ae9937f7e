package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"paysync/internal/models"
)

type fakeGateway struct {
	created    *Charge
	createErr  error
	fetched    *Charge
	getErr     error
	captured   *Charge
	captureErr error
	refunded   *Charge
	refundErr  error

	customer     *Customer
	customerErr  error
	subscription *Subscription
	subErr       error

	calls        []string
	chargeReq    ChargeRequest
	customerReq  CustomerRequest
	subscribeReq SubscriptionRequest
}

func (g *fakeGateway) CreateCharge(_ context.Context, req ChargeRequest) (*Charge, error) {
	g.calls = append(g.calls, "create")
	g.chargeReq = req
	return g.created, g.createErr
}

func (g *fakeGateway) GetCharge(_ context.Context, id string) (*Charge, error) {
	g.calls = append(g.calls, "get:"+id)
	return g.fetched, g.getErr
}

func (g *fakeGateway) CaptureCharge(_ context.Context, id string) (*Charge, error) {
	g.calls = append(g.calls, "capture:"+id)
	return g.captured, g.captureErr
}

func (g *fakeGateway) RefundCharge(_ context.Context, id string) (*Charge, error) {
	g.calls = append(g.calls, "refund:"+id)
	return g.refunded, g.refundErr
}

func (g *fakeGateway) CreateCustomer(_ context.Context, req CustomerRequest) (*Customer, error) {
	g.calls = append(g.calls, "customer")
	g.customerReq = req
	return g.customer, g.customerErr
}

func (g *fakeGateway) CreateSubscription(_ context.Context, req SubscriptionRequest) (*Subscription, error) {
	g.calls = append(g.calls, "subscription")
	g.subscribeReq = req
	return g.subscription, g.subErr
}

type mockOrderStore struct {
	mock.Mock
}

func (m *mockOrderStore) Save(ctx context.Context, order *models.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

type fakeReference struct {
	currency string
	country  string
}

func (f fakeReference) CurrencyCode(context.Context, uint, uint) (string, error) {
	return f.currency, nil
}

func (f fakeReference) CountryCode(context.Context, uint, uint) (string, error) {
	return f.country, nil
}

func testDeps(gw Gateway, store OrderStore) Dependencies {
	return Dependencies{
		Gateways: func(string) (Gateway, error) {
			return gw, nil
		},
		Orders:    store,
		Reference: fakeReference{currency: "usd", country: "US"},
		BaseURL:   "https://shop.example.com",
	}
}

func testSettings(extra map[string]string) Settings {
	s := Settings{
		SettingMode:        ModeTest,
		"test_secret_key":  "sk_test_123",
		"test_public_key":  "pk_test_123",
		SettingFormURL:     "https://shop.example.com/checkout",
		SettingContinueURL: "https://shop.example.com/thanks",
		SettingCancelURL:   "https://shop.example.com/cart",
	}
	for k, v := range extra {
		s[k] = v
	}
	return s
}

func testOrder() *models.Order {
	return &models.Order{
		ID:              11,
		CartNumber:      "CART-1999",
		StoreID:         1,
		CurrencyID:      1,
		Total:           decimal.RequireFromString("19.99"),
		PaymentProvider: AliasStripe,
		PaymentState:    models.PaymentStateInitialized,
		Version:         1,
	}
}

func paidCharge() *Charge {
	return &Charge{
		ID:       "ch_1",
		Amount:   1999,
		Currency: "USD",
		Paid:     true,
		Checks:   CardChecks{CVC: CheckPass, AddressLine1: CheckPass, PostalCode: CheckPass},
	}
}

// eventRequest builds a webhook request carrying a Stripe event.
func eventRequest(t *testing.T, id, eventType string, object interface{}) *http.Request {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"id":     id,
		"object": "event",
		"type":   eventType,
		"data":   map[string]interface{}{"object": object},
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/payment/stripe/callback", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func chargeObject(id string, paid, captured, refunded bool) map[string]interface{} {
	return map[string]interface{}{
		"id":          id,
		"object":      "charge",
		"amount":      1999,
		"currency":    "usd",
		"description": "CART-1999",
		"paid":        paid,
		"captured":    captured,
		"refunded":    refunded,
		"metadata":    map[string]string{MetadataCartNumber: "CART-1999"},
	}
}
