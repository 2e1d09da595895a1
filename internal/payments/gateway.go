package payments

import "context"

// Authorization is the result of placing a hold on the customer's card.
// No funds move until the hold is captured.
type Authorization struct {
	PaymentIntentID string `json:"paymentIntentId"`
}

// Gateway is the payment processor contract the order flow depends on.
// Capture and Cancel are fallible; callers must treat a returned error as
// "nothing happened" and leave their own state untouched. Retry is the
// caller's responsibility, surfaced as a visible failure.
type Gateway interface {
	// Authorize places a hold for the full order amount at checkout time.
	Authorize(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (Authorization, error)

	// Capture converts a hold into an actual funds transfer.
	Capture(ctx context.Context, paymentIntentID string) error

	// Cancel releases a hold without transferring funds.
	Cancel(ctx context.Context, paymentIntentID string) error
}
