package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"paysync/internal/models"
)

// Provider aliases.
const (
	AliasStripe             = "stripe"
	AliasStripeSubscription = "stripe-subscription"
)

// Form fields posted back by the checkout form.
const (
	FieldToken       = "stripeToken"
	FieldCartNumber  = "cart_number"
	FieldPublicKey   = "public_key"
	FieldAmount      = "amount"
	FieldCurrency    = "currency"
	FieldCallbackURL = "callback_url"
	FieldContinueURL = "continue_url"
	FieldCancelURL   = "cancel_url"
)

// Order properties written by the subscription flow.
const (
	PropertyCustomerID     = "stripeCustomerId"
	PropertySubscriptionID = "stripeSubscriptionId"
)

// Gateway metadata keys used for correlation.
const (
	MetadataOrderID    = "orderId"
	MetadataCartNumber = "cartNumber"
)

// ErrUnknownProvider is returned for an alias with no registered provider.
var ErrUnknownProvider = errors.New("payment: unknown provider")

// Operation names an order-level operation gated by Capabilities.
type Operation string

const (
	OpStatus  Operation = "status"
	OpCapture Operation = "capture"
	OpRefund  Operation = "refund"
	OpCancel  Operation = "cancel"
)

// Capabilities is the availability table of the optional operations.
type Capabilities struct {
	Status  bool
	Capture bool
	Refund  bool
	Cancel  bool
}

// Supports reports whether op is available.
func (c Capabilities) Supports(op Operation) bool {
	switch op {
	case OpStatus:
		return c.Status
	case OpCapture:
		return c.Capture
	case OpRefund:
		return c.Refund
	case OpCancel:
		return c.Cancel
	default:
		return false
	}
}

// CallbackInfo is what a successful redirect callback commits to the order.
// Amount is in major units.
type CallbackInfo struct {
	Amount        decimal.Decimal
	TransactionID string
	State         models.PaymentState
}

// CallbackResult holds exactly one of Info or Failure.
type CallbackResult struct {
	Info    *CallbackInfo
	Failure *ValidationFailure
}

// StatusResult is the gateway's current view of an order's payment.
type StatusResult struct {
	TransactionID string
	State         models.PaymentState
}

// CheckoutForm is the hosted checkout form handed to the renderer.
type CheckoutForm struct {
	Action    string
	PublicKey string
	Fields    map[string]string
}

// FieldNames returns the hidden field names in stable order.
func (f *CheckoutForm) FieldNames() []string {
	names := make([]string, 0, len(f.Fields))
	for k := range f.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Provider is one gateway integration variant.
// Optional operations return ErrUnsupported when Capabilities says so.
type Provider interface {
	Alias() string
	Capabilities() Capabilities

	GenerateForm(ctx context.Context, order *models.Order, settings Settings, extra map[string]string) (*CheckoutForm, error)
	ContinueURL(settings Settings) (string, error)
	CancelURL(settings Settings) (string, error)

	// ExtractCorrelationID returns the cart number referenced by a webhook, or "".
	ExtractCorrelationID(src *EventSource, settings Settings) string
	HandleCallback(ctx context.Context, order *models.Order, form url.Values, settings Settings) (CallbackResult, error)
	HandleNotification(ctx context.Context, order *models.Order, src *EventSource, settings Settings) error

	GetStatus(ctx context.Context, order *models.Order, settings Settings) (*StatusResult, error)
	Capture(ctx context.Context, order *models.Order, settings Settings) (*StatusResult, error)
	Refund(ctx context.Context, order *models.Order, settings Settings) (*StatusResult, error)
	Cancel(ctx context.Context, order *models.Order, settings Settings) (*StatusResult, error)
}

// OrderStore persists a mutated order.
type OrderStore interface {
	Save(ctx context.Context, order *models.Order) error
}

// ReferenceData resolves store-scoped reference codes.
type ReferenceData interface {
	CurrencyCode(ctx context.Context, storeID, currencyID uint) (string, error)
	CountryCode(ctx context.Context, storeID, countryID uint) (string, error)
}

// Dependencies are the collaborators shared by the providers.
type Dependencies struct {
	Gateways  GatewayFactory
	Orders    OrderStore
	Reference ReferenceData
	// BaseURL is the public root the gateway redirects back to.
	BaseURL string
	Logger  *zap.Logger
}

// stripeBase holds the behaviour both Stripe variants share.
type stripeBase struct {
	alias string
	deps  Dependencies
}

func newStripeBase(alias string, deps Dependencies) stripeBase {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return stripeBase{alias: alias, deps: deps}
}

func (b stripeBase) Alias() string { return b.alias }

func (b stripeBase) logger(order *models.Order) *zap.Logger {
	l := b.deps.Logger.With(zap.String("provider", b.alias))
	if order != nil {
		l = l.With(zap.Uint("order_id", order.ID), zap.String("cart_number", order.CartNumber))
	}
	return l
}

func (b stripeBase) gateway(settings Settings) (Gateway, error) {
	key, err := settings.SecretKey()
	if err != nil {
		return nil, err
	}
	if b.deps.Gateways == nil {
		return nil, errors.New("payment: no gateway factory configured")
	}
	return b.deps.Gateways(key)
}

// CallbackURL is the endpoint the checkout form posts back to.
func (b stripeBase) CallbackURL() string {
	return strings.TrimRight(b.deps.BaseURL, "/") + "/payment/" + b.alias + "/callback"
}

func (b stripeBase) GenerateForm(ctx context.Context, order *models.Order, settings Settings, extra map[string]string) (*CheckoutForm, error) {
	action, err := settings.Require(SettingFormURL)
	if err != nil {
		return nil, err
	}
	publicKey, err := settings.PublicKey()
	if err != nil {
		return nil, err
	}
	currency, err := b.deps.Reference.CurrencyCode(ctx, order.StoreID, order.CurrencyID)
	if err != nil {
		return nil, fmt.Errorf("resolve currency: %w", err)
	}

	fields := map[string]string{
		FieldPublicKey:   publicKey,
		FieldAmount:      strconv.FormatInt(ToMinorUnits(order.Total), 10),
		FieldCurrency:    strings.ToUpper(currency),
		FieldCartNumber:  order.CartNumber,
		FieldCallbackURL: b.CallbackURL(),
		FieldContinueURL: settings.Get(SettingContinueURL),
		FieldCancelURL:   settings.Get(SettingCancelURL),
	}
	// extra only adds fields; the ones built here always win.
	for k, v := range extra {
		if _, reserved := fields[k]; !reserved {
			fields[k] = v
		}
	}
	return &CheckoutForm{Action: action, PublicKey: publicKey, Fields: fields}, nil
}

func (b stripeBase) ContinueURL(settings Settings) (string, error) {
	return settings.Require(SettingContinueURL)
}

func (b stripeBase) CancelURL(settings Settings) (string, error) {
	return settings.Require(SettingCancelURL)
}

func (b stripeBase) ExtractCorrelationID(src *EventSource, _ Settings) string {
	ev := src.Event()
	switch {
	case ev.HasPrefix(EventPrefixCharge):
		charge, err := ev.Charge()
		if err != nil {
			b.logger(nil).Warn("undecodable charge event", zap.String("event_id", ev.ID), zap.Error(err))
			return ""
		}
		if cart := charge.Metadata[MetadataCartNumber]; cart != "" {
			return cart
		}
		return strings.TrimSpace(charge.Description)
	case ev.HasPrefix(EventPrefixInvoice):
		inv, err := ev.Invoice()
		if err != nil {
			b.logger(nil).Warn("undecodable invoice event", zap.String("event_id", ev.ID), zap.Error(err))
			return ""
		}
		return inv.Metadata[MetadataCartNumber]
	default:
		return ""
	}
}

func correlationMetadata(order *models.Order) map[string]string {
	return map[string]string{
		MetadataOrderID:    strconv.FormatUint(uint64(order.ID), 10),
		MetadataCartNumber: order.CartNumber,
	}
}

// gatewayFailure turns a gateway rejection into a customer-facing failure.
// Other errors are returned unchanged.
func gatewayFailure(err error) (*ValidationFailure, error) {
	var gerr *GatewayError
	if errors.As(err, &gerr) {
		return gerr.Failure(), nil
	}
	return nil, err
}

// FailureFields flattens a failure into the hidden fields injected into the
// re-rendered checkout form.
func FailureFields(f *ValidationFailure) map[string]string {
	if f == nil {
		return nil
	}
	fields := map[string]string{
		"error_charge_id": f.ChargeID,
		"error_code":      f.Code,
		"error_message":   f.Message,
	}
	for k, v := range f.Fields {
		fields["error_"+k] = v
	}
	return fields
}

// Registry resolves providers by alias.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Alias()] = p
	}
	return r
}

// NewStripeRegistry registers both Stripe variants.
func NewStripeRegistry(deps Dependencies) *Registry {
	return NewRegistry(NewChargeProvider(deps), NewSubscriptionProvider(deps))
}

func (r *Registry) Get(alias string) (Provider, error) {
	p, ok := r.providers[alias]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, alias)
	}
	return p, nil
}

// Aliases lists the registered aliases in stable order.
func (r *Registry) Aliases() []string {
	out := make([]string, 0, len(r.providers))
	for alias := range r.providers {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}
