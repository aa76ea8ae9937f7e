package payment

import "paysync/internal/models"

// DeriveState maps the gateway's charge flags onto a payment state.
// It is the single source of truth for both the redirect and webhook paths.
func DeriveState(paid, captured, refunded bool) models.PaymentState {
	if !paid {
		return models.PaymentStateInitialized
	}
	if captured {
		if refunded {
			return models.PaymentStateRefunded
		}
		return models.PaymentStateCaptured
	}
	// An authorization voided before capture is reported as a refund.
	if refunded {
		return models.PaymentStateCancelled
	}
	return models.PaymentStateAuthorized
}

// ChargeState derives the payment state of a charge snapshot.
func ChargeState(c *Charge) models.PaymentState {
	if c == nil {
		return models.PaymentStateInitialized
	}
	return DeriveState(c.Paid, c.Captured, c.Refunded)
}

func stateRank(s models.PaymentState) int {
	switch s {
	case models.PaymentStateAuthorized:
		return 1
	case models.PaymentStateCaptured, models.PaymentStateCancelled:
		return 2
	case models.PaymentStateRefunded:
		return 3
	default:
		return 0
	}
}

// IsTerminal reports whether no further transition can leave s.
func IsTerminal(s models.PaymentState) bool {
	return s == models.PaymentStateCancelled || s == models.PaymentStateRefunded
}

// CanAdvance reports whether moving an order from -> to is a forward step.
// Re-applying the current state is not an advance.
func CanAdvance(from, to models.PaymentState) bool {
	if from == to || IsTerminal(from) {
		return false
	}
	return stateRank(to) > stateRank(from)
}
