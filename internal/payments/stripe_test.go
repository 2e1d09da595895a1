package payments_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curbsidehq/curbside-golang/internal/payments"
)

func TestMockModeHoldLifecycle(t *testing.T) {
	t.Setenv("MOCK_MODE", "true")
	gw := payments.NewStripeGateway()
	ctx := context.Background()

	authz, err := gw.Authorize(ctx, 1500, "usd", map[string]string{"cafeId": "9"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(authz.PaymentIntentID, "pi_mock_"))

	assert.NoError(t, gw.Capture(ctx, authz.PaymentIntentID))
	assert.NoError(t, gw.Cancel(ctx, authz.PaymentIntentID))
}

func TestMockModeIntentIDsUnique(t *testing.T) {
	t.Setenv("MOCK_MODE", "true")
	gw := payments.NewStripeGateway()
	ctx := context.Background()

	a, err := gw.Authorize(ctx, 500, "usd", nil)
	require.NoError(t, err)
	b, err := gw.Authorize(ctx, 500, "usd", nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.PaymentIntentID, b.PaymentIntentID)
}

func TestRealModeRefusesWithoutConfiguration(t *testing.T) {
	t.Setenv("MOCK_MODE", "")
	gw := payments.NewStripeGateway()
	ctx := context.Background()

	_, err := gw.Authorize(ctx, 1500, "usd", nil)
	assert.Error(t, err)
	assert.Error(t, gw.Capture(ctx, "pi_123"))
	assert.Error(t, gw.Cancel(ctx, "pi_123"))
}
