package payments

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
)

// StripeGateway talks to Stripe's PaymentIntents API with manual capture.
// In mock mode (MOCK_MODE=true) it simulates the gateway locally, which is
// what local development and the test suite use.
type StripeGateway struct {
	apiKey   string
	mockMode bool
}

// NewStripeGateway reads STRIPE_API_KEY and MOCK_MODE from the environment.
func NewStripeGateway() *StripeGateway {
	return &StripeGateway{
		apiKey:   os.Getenv("STRIPE_API_KEY"),
		mockMode: os.Getenv("MOCK_MODE") == "true",
	}
}

func (g *StripeGateway) Authorize(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (Authorization, error) {
	log.Printf("payments: authorizing %d %s", amountCents, currency)

	if g.mockMode {
		// Simulate network delay
		time.Sleep(50 * time.Millisecond)
		return Authorization{
			PaymentIntentID: fmt.Sprintf("pi_mock_%s", uuid.NewString()),
		}, nil
	}

	return g.realAuthorize(ctx, amountCents, currency, metadata)
}

func (g *StripeGateway) Capture(ctx context.Context, paymentIntentID string) error {
	log.Printf("payments: capturing %s", paymentIntentID)

	if g.mockMode {
		time.Sleep(50 * time.Millisecond)
		return nil
	}

	return g.realCapture(ctx, paymentIntentID)
}

func (g *StripeGateway) Cancel(ctx context.Context, paymentIntentID string) error {
	log.Printf("payments: canceling %s", paymentIntentID)

	if g.mockMode {
		time.Sleep(50 * time.Millisecond)
		return nil
	}

	return g.realCancel(ctx, paymentIntentID)
}

func (g *StripeGateway) realAuthorize(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (Authorization, error) {
	// In production, use the Stripe SDK with capture_method=manual:
	// stripe.Key = g.apiKey
	// pi, err := paymentintent.New(&stripe.PaymentIntentParams{
	//     Amount:        stripe.Int64(amountCents),
	//     Currency:      stripe.String(currency),
	//     CaptureMethod: stripe.String("manual"),
	// })
	return Authorization{}, fmt.Errorf("real Stripe integration not configured - set MOCK_MODE=true")
}

func (g *StripeGateway) realCapture(ctx context.Context, paymentIntentID string) error {
	return fmt.Errorf("real Stripe integration not configured - set MOCK_MODE=true")
}

func (g *StripeGateway) realCancel(ctx context.Context, paymentIntentID string) error {
	return fmt.Errorf("real Stripe integration not configured - set MOCK_MODE=true")
}
