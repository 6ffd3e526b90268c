package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/forkline/forkline-backend/pkg/config"
	"github.com/forkline/forkline-backend/pkg/db/models"
	pkgerrors "github.com/forkline/forkline-backend/pkg/errors"
	"github.com/forkline/forkline-backend/pkg/money"
	pkgstripe "github.com/forkline/forkline-backend/pkg/stripe"
)

// MetadataOrderID is the metadata key carrying the order id on gateway
// sessions and payment intents. Webhook reconciliation reads it back to
// resolve events that arrive without a session reference.
const MetadataOrderID = "order_id"

// Session is the gateway's answer to a checkout request: where to send the
// buyer and the reference the ledger will key reconciliation on.
type Session struct {
	Reference   string
	RedirectURL string
}

// Gateway creates hosted payment sessions for orders.
type Gateway interface {
	CreateCheckout(ctx context.Context, order *models.Order) (*Session, error)
}

type stripeGateway struct {
	api     *stripe.Client
	cfg     config.CheckoutConfig
	timeout time.Duration
}

// NewStripeGateway wraps Stripe hosted Checkout behind the Gateway interface.
// Session calls go through the injected client; no ambient package state is
// consulted.
func NewStripeGateway(client *pkgstripe.Client, cfg config.CheckoutConfig, timeout time.Duration) (Gateway, error) {
	if client == nil || client.API() == nil {
		return nil, fmt.Errorf("initialized stripe client required")
	}
	if cfg.SuccessURL == "" || cfg.CancelURL == "" {
		return nil, fmt.Errorf("checkout success and cancel URLs required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &stripeGateway{api: client.API(), cfg: cfg, timeout: timeout}, nil
}

func (g *stripeGateway) CreateCheckout(ctx context.Context, order *models.Order) (*Session, error) {
	if order == nil || len(order.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order with at least one line required")
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	metadata := map[string]string{MetadataOrderID: order.ID.String()}

	lineItems := make([]*stripe.CheckoutSessionCreateLineItemParams, 0, len(order.Lines))
	for _, line := range order.Lines {
		lineItems = append(lineItems, &stripe.CheckoutSessionCreateLineItemParams{
			Quantity: stripe.Int64(int64(line.Quantity)),
			PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
				Currency:   stripe.String(g.cfg.Currency),
				UnitAmount: stripe.Int64(money.MinorUnits(line.UnitPrice)),
				ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
					Name: stripe.String(line.Name),
				},
			},
		})
	}

	params := &stripe.CheckoutSessionCreateParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:    stripe.String(g.cfg.SuccessURL),
		CancelURL:     stripe.String(g.cfg.CancelURL),
		CustomerEmail: stripe.String(order.OwnerEmail),
		LineItems:     lineItems,
		Metadata:      metadata,
		PaymentIntentData: &stripe.CheckoutSessionCreatePaymentIntentDataParams{
			Metadata: metadata,
		},
	}

	sess, err := g.api.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	return &Session{Reference: sess.ID, RedirectURL: sess.URL}, nil
}
