package payment

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned by operations a provider variant does not offer.
var ErrUnsupported = errors.New("payment: operation not supported by provider")

// Failure codes reported by the charge checks.
const (
	CodeCVCCheckFailed     = "cvc_check_failed"
	CodeAddressCheckFailed = "address_check_failed"
	CodeZipCheckFailed     = "zip_check_failed"
	CodeCountryCheckFailed = "country_check_failed"
	CodeAmountMismatch     = "amount_mismatch"
	CodeChargeNotPaid      = "charge_not_paid"
	CodeCaptureFailed      = "capture_failed"
)

// ValidationFailure describes why a created charge was not accepted.
// Fields holds gateway-specific detail (decline code, parameter, ...).
type ValidationFailure struct {
	ChargeID string
	Code     string
	Message  string
	Fields   map[string]string
}

func (f *ValidationFailure) Error() string {
	if f.ChargeID == "" {
		return fmt.Sprintf("payment: %s: %s", f.Code, f.Message)
	}
	return fmt.Sprintf("payment: charge %s: %s: %s", f.ChargeID, f.Code, f.Message)
}

func newFailure(chargeID, code, message string) *ValidationFailure {
	return &ValidationFailure{ChargeID: chargeID, Code: code, Message: message}
}

// GatewayError is a call rejected by the payment gateway.
type GatewayError struct {
	ChargeID string
	Code     string
	Message  string
	Fields   map[string]string
	Err      error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway: %s: %s", e.Code, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Failure converts a gateway rejection into the failure shown to the customer.
func (e *GatewayError) Failure() *ValidationFailure {
	fields := make(map[string]string, len(e.Fields))
	for k, v := range e.Fields {
		fields[k] = v
	}
	return &ValidationFailure{
		ChargeID: e.ChargeID,
		Code:     e.Code,
		Message:  e.Message,
		Fields:   fields,
	}
}
