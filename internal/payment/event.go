package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

// Event type prefixes and the invoice sub-type acted upon.
const (
	EventPrefixCharge  = "charge."
	EventPrefixInvoice = "invoice."
	EventInvoicePaid   = "invoice.payment_succeeded"
)

const signatureHeader = "Stripe-Signature"

// GatewayEvent is a parsed gateway notification.
type GatewayEvent struct {
	ID   string
	Type string
	Raw  json.RawMessage
}

// HasPrefix reports whether the event type lives in the given namespace.
func (e *GatewayEvent) HasPrefix(prefix string) bool {
	return e != nil && strings.HasPrefix(e.Type, prefix)
}

// Charge decodes the charge embedded in a charge.* event.
func (e *GatewayEvent) Charge() (*Charge, error) {
	var ch stripe.Charge
	if err := json.Unmarshal(e.Raw, &ch); err != nil {
		return nil, fmt.Errorf("decode charge from event %s: %w", e.ID, err)
	}
	return chargeFromStripe(&ch), nil
}

// Invoice decodes the invoice embedded in an invoice.* event.
func (e *GatewayEvent) Invoice() (*Invoice, error) {
	var in stripe.Invoice
	if err := json.Unmarshal(e.Raw, &in); err != nil {
		return nil, fmt.Errorf("decode invoice from event %s: %w", e.ID, err)
	}
	return invoiceFromStripe(&in), nil
}

// EventSource extracts the gateway event carried by one inbound request.
// The body is read and parsed at most once; every caller sees the same result.
// An EventSource must not outlive its request.
type EventSource struct {
	req    *http.Request
	secret string

	once  sync.Once
	event *GatewayEvent
	err   error
}

// NewEventSource wraps r. When secret is non-empty the Stripe-Signature
// header is verified and unsigned payloads yield no event.
func NewEventSource(r *http.Request, secret string) *EventSource {
	return &EventSource{req: r, secret: secret}
}

// Event returns the parsed event, or nil when the request does not carry one.
func (s *EventSource) Event() *GatewayEvent {
	if s == nil {
		return nil
	}
	s.once.Do(func() {
		s.event, s.err = s.parse()
	})
	return s.event
}

// Err returns the parse failure behind a nil Event, if any.
func (s *EventSource) Err() error {
	s.Event()
	return s.err
}

func (s *EventSource) parse() (*GatewayEvent, error) {
	if s.req == nil || s.req.Body == nil {
		return nil, nil
	}
	if seeker, ok := s.req.Body.(io.Seeker); ok {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("rewind body: %w", err)
		}
	}
	payload, err := io.ReadAll(s.req.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	// Restore the body for form parsing further down the chain.
	s.req.Body = io.NopCloser(bytes.NewReader(payload))

	var ev stripe.Event
	if s.secret != "" {
		ev, err = webhook.ConstructEventWithOptions(payload, s.req.Header.Get(signatureHeader), s.secret,
			webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
		if err != nil {
			return nil, fmt.Errorf("verify event: %w", err)
		}
	} else if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	if ev.Type == "" || ev.Data == nil || len(ev.Data.Raw) == 0 {
		return nil, nil
	}
	return &GatewayEvent{ID: ev.ID, Type: string(ev.Type), Raw: ev.Data.Raw}, nil
}
