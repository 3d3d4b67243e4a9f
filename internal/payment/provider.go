// Package payment is the provider boundary: what the core needs from a
// Stripe-like payment service and nothing more.
package payment

import "context"

// Intent statuses, provider vocabulary.
const (
	StatusRequiresPaymentMethod = "requires_payment_method"
	StatusRequiresConfirmation  = "requires_confirmation"
	StatusRequiresAction        = "requires_action"
	StatusProcessing            = "processing"
	StatusSucceeded             = "succeeded"
	StatusCanceled              = "canceled"
)

// IsAwaitingAction reports whether an intent is still in a non-terminal
// state the browser can complete. Anything else means the stored intent
// reference is stale and must be replaced.
func IsAwaitingAction(status string) bool {
	switch status {
	case StatusRequiresPaymentMethod, StatusRequiresConfirmation, StatusRequiresAction, StatusProcessing:
		return true
	}
	return false
}

type Intent struct {
	ID           string
	ClientSecret string
	AmountMinor  int64
	Currency     string
	Status       string
	Metadata     map[string]string
}

type Provider interface {
	CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*Intent, error)
	RetrieveIntent(ctx context.Context, id string) (*Intent, error)
}
