package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/curbsidehq/curbside-golang/internal/models"
	"github.com/curbsidehq/curbside-golang/internal/payments"
)

// ErrInvalidTransition is returned when a merchant action does not apply to
// the order's current status (e.g. declining an already-accepted order).
var ErrInvalidTransition = errors.New("invalid order transition")

// ErrNotCaptureEligible is returned when an accept arrives before the
// payment hold has been confirmed by the gateway.
var ErrNotCaptureEligible = errors.New("payment hold is not yet authorized")

// Transition is the pair of states an order moves to when a merchant action
// succeeds. The caller persists it; nothing is persisted here.
type Transition struct {
	Status       string
	PaymentState string
}

// Accept captures the payment hold and moves a pending order to preparing.
//
// A failed capture returns the gateway error with NO transition: the order
// must stay pending rather than silently landing in preparing without funds.
// Orders with no payment intent skip the gateway and always succeed locally.
func Accept(ctx context.Context, gw payments.Gateway, o *models.Order) (Transition, error) {
	if o.Status != models.OrderStatusPending {
		return Transition{}, fmt.Errorf("%w: cannot accept order in status %q", ErrInvalidTransition, o.Status)
	}

	if !o.PaymentIntentID.Valid {
		// Donation-style order with no hold to capture.
		return Transition{Status: models.OrderStatusPreparing, PaymentState: models.PaymentCaptured}, nil
	}

	switch o.PaymentState {
	case models.PaymentCaptured:
		// Already captured (e.g. a retried accept after a lost response).
		// The gateway treats capture as idempotent, so just finish the move.
	case models.PaymentAuthorized:
		if err := gw.Capture(ctx, o.PaymentIntentID.String); err != nil {
			return Transition{}, fmt.Errorf("capture failed: %w", err)
		}
	default:
		return Transition{}, fmt.Errorf("%w (payment state %q)", ErrNotCaptureEligible, o.PaymentState)
	}

	return Transition{Status: models.OrderStatusPreparing, PaymentState: models.PaymentCaptured}, nil
}

// Decline cancels the payment hold and moves a pending order to rejected.
// Rejection is only possible before acceptance. A failed cancel leaves the
// order untouched so the merchant can retry.
func Decline(ctx context.Context, gw payments.Gateway, o *models.Order) (Transition, error) {
	if o.Status != models.OrderStatusPending {
		return Transition{}, fmt.Errorf("%w: cannot decline order in status %q", ErrInvalidTransition, o.Status)
	}

	if !o.PaymentIntentID.Valid {
		return Transition{Status: models.OrderStatusRejected, PaymentState: o.PaymentState}, nil
	}

	if o.PaymentState != models.PaymentCanceled {
		if err := gw.Cancel(ctx, o.PaymentIntentID.String); err != nil {
			return Transition{}, fmt.Errorf("cancel failed: %w", err)
		}
	}

	return Transition{Status: models.OrderStatusRejected, PaymentState: models.PaymentCanceled}, nil
}

// MarkReady moves a preparing order to ready. No gateway call involved.
func MarkReady(o *models.Order) (Transition, error) {
	if o.Status != models.OrderStatusPreparing {
		return Transition{}, fmt.Errorf("%w: cannot mark order ready in status %q", ErrInvalidTransition, o.Status)
	}
	return Transition{Status: models.OrderStatusReady, PaymentState: o.PaymentState}, nil
}

// Complete moves a preparing or ready order to completed.
func Complete(o *models.Order) (Transition, error) {
	if o.Status != models.OrderStatusPreparing && o.Status != models.OrderStatusReady {
		return Transition{}, fmt.Errorf("%w: cannot complete order in status %q", ErrInvalidTransition, o.Status)
	}
	return Transition{Status: models.OrderStatusCompleted, PaymentState: o.PaymentState}, nil
}
