package payment

import (
	"strings"

	"paysync/internal/models"
)

// ValidateCharge runs the integrity checks against a freshly created charge
// in fixed order and returns the first violation, or nil.
// billingCountry is only consulted when the country check is enabled.
func ValidateCharge(order *models.Order, charge *Charge, opts ValidationOptions, billingCountry string) *ValidationFailure {
	id := charge.ID

	if opts.CVC && charge.Checks.CVC == CheckFail {
		return newFailure(id, CodeCVCCheckFailed, "The card security code could not be verified.")
	}

	if opts.Address && !propertyMatches(order, opts.AddressPropertyAlias, charge.AddressLine1, charge.Checks.AddressLine1) {
		return newFailure(id, CodeAddressCheckFailed, "The billing address does not match the card.")
	}

	if opts.ZipCode && !propertyMatches(order, opts.ZipCodePropertyAlias, charge.PostalCode, charge.Checks.PostalCode) {
		return newFailure(id, CodeZipCheckFailed, "The billing postal code does not match the card.")
	}

	if opts.Country && !strings.EqualFold(strings.TrimSpace(charge.CardCountry), strings.TrimSpace(billingCountry)) {
		return newFailure(id, CodeCountryCheckFailed, "The card was issued outside the billing country.")
	}

	if charge.Amount == 0 || charge.Amount != ToMinorUnits(order.Total) {
		return newFailure(id, CodeAmountMismatch, "The charged amount does not match the order total.")
	}

	if !charge.Paid {
		return newFailure(id, CodeChargeNotPaid, "The charge was not approved.")
	}
	return nil
}

// ValidateCapture checks the charge returned by an immediate capture.
func ValidateCapture(charge *Charge) *ValidationFailure {
	if ChargeState(charge) == models.PaymentStateCaptured {
		return nil
	}
	id := ""
	if charge != nil {
		id = charge.ID
	}
	return newFailure(id, CodeCaptureFailed, "The payment could not be captured.")
}

func propertyMatches(order *models.Order, alias, verified string, check CheckResult) bool {
	if check == CheckFail {
		return false
	}
	recorded, ok := order.Property(alias)
	recorded = strings.TrimSpace(recorded)
	if !ok || recorded == "" {
		return false
	}
	return recorded == strings.TrimSpace(verified)
}
