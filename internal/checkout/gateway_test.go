package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forkline/forkline-backend/pkg/config"
	pkgerrors "github.com/forkline/forkline-backend/pkg/errors"
	pkgstripe "github.com/forkline/forkline-backend/pkg/stripe"
)

func checkoutURLs() config.CheckoutConfig {
	return config.CheckoutConfig{
		SuccessURL: "https://forkline.example/checkout/success",
		CancelURL:  "https://forkline.example/checkout/cancel",
		Currency:   "usd",
	}
}

func TestNewStripeGatewayRequiresInitializedClient(t *testing.T) {
	_, err := NewStripeGateway(nil, checkoutURLs(), time.Second)
	require.Error(t, err)

	// A client that never went through NewClient carries no API handle.
	_, err = NewStripeGateway(&pkgstripe.Client{}, checkoutURLs(), time.Second)
	require.Error(t, err)
}

func TestNewStripeGatewayRequiresRedirectURLs(t *testing.T) {
	client, err := pkgstripe.NewClient(context.Background(), config.StripeConfig{
		APIKey: "sk_test_123",
		Secret: "whsec_abc",
		Env:    "test",
	}, nil)
	require.NoError(t, err)

	cfg := checkoutURLs()
	cfg.CancelURL = ""
	_, err = NewStripeGateway(client, cfg, time.Second)
	require.Error(t, err)
}

func TestStripeGatewayRejectsEmptyOrder(t *testing.T) {
	client, err := pkgstripe.NewClient(context.Background(), config.StripeConfig{
		APIKey: "sk_test_123",
		Secret: "whsec_abc",
		Env:    "test",
	}, nil)
	require.NoError(t, err)

	gateway, err := NewStripeGateway(client, checkoutURLs(), time.Second)
	require.NoError(t, err)

	_, err = gateway.CreateCheckout(context.Background(), nil)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}
