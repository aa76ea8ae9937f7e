package payment

import "context"

// CheckResult is the gateway's verdict on one card verification.
type CheckResult string

const (
	CheckPass        CheckResult = "pass"
	CheckFail        CheckResult = "fail"
	CheckUnavailable CheckResult = "unavailable"
	CheckUnchecked   CheckResult = "unchecked"
)

// CardChecks holds the card verification results reported with a charge.
type CardChecks struct {
	CVC          CheckResult
	AddressLine1 CheckResult
	PostalCode   CheckResult
}

// Charge is a snapshot of one payment attempt at the gateway.
// Amount is in minor units; zero means the gateway did not report one.
type Charge struct {
	ID           string
	Amount       int64
	Currency     string
	Description  string
	Paid         bool
	Captured     bool
	Refunded     bool
	Checks       CardChecks
	CardCountry  string
	AddressLine1 string
	PostalCode   string
	Metadata     map[string]string
}

// ChargeRequest creates an uncaptured charge for an order.
type ChargeRequest struct {
	Amount      int64
	Currency    string
	Source      string
	Description string
	Metadata    map[string]string
}

// Customer is a gateway customer record.
type Customer struct {
	ID    string
	Email string
}

// CustomerRequest creates a gateway customer from a card token.
type CustomerRequest struct {
	Email    string
	Source   string
	Metadata map[string]string
}

// Subscription links a customer to a recurring plan.
type Subscription struct {
	ID         string
	CustomerID string
	Status     string
	// Amount is the recurring price in minor units, summed over the items.
	Amount   int64
	Metadata map[string]string
}

// SubscriptionRequest starts a subscription for a customer.
type SubscriptionRequest struct {
	CustomerID string
	PlanID     string
	Metadata   map[string]string
}

// Invoice is a subscription billing document.
// Metadata merges the invoice's own metadata with its line items'.
type Invoice struct {
	ID             string
	ChargeID       string
	SubscriptionID string
	Paid           bool
	Metadata       map[string]string
}

// Gateway is the payment gateway client consumed by the providers.
// Every call is synchronous and may return a *GatewayError.
type Gateway interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
	GetCharge(ctx context.Context, id string) (*Charge, error)
	CaptureCharge(ctx context.Context, id string) (*Charge, error)
	RefundCharge(ctx context.Context, id string) (*Charge, error)
	CreateCustomer(ctx context.Context, req CustomerRequest) (*Customer, error)
	CreateSubscription(ctx context.Context, req SubscriptionRequest) (*Subscription, error)
}

// GatewayFactory builds a gateway client for a secret API key.
type GatewayFactory func(secretKey string) (Gateway, error)
