package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/forkline/forkline-backend/internal/payments"
	"github.com/forkline/forkline-backend/pkg/enums"
	pkgerrors "github.com/forkline/forkline-backend/pkg/errors"
	"github.com/forkline/forkline-backend/pkg/logger"
	"github.com/forkline/forkline-backend/pkg/metrics"
	"github.com/forkline/forkline-backend/pkg/money"
)

const metadataOrderID = "order_id"

const (
	outcomeApplied   = "applied"
	outcomeDuplicate = "duplicate"
	outcomeIgnored   = "ignored"
	outcomeError     = "error"
)

type ServiceParams struct {
	Ledger  payments.Service
	Logger  *logger.Logger
	Metrics *metrics.CheckoutMetrics
}

// Service reconciles verified gateway events into the payment ledger.
type Service struct {
	ledger  payments.Service
	log     *logger.Logger
	metrics *metrics.CheckoutMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment ledger required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		ledger:  params.Ledger,
		log:     params.Logger,
		metrics: params.Metrics,
	}, nil
}

// HandleEvent maps a signature-verified event onto a terminal payment state.
// Event types outside the checkout lifecycle are accepted and ignored so the
// gateway does not retry them.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	eventType := string(event.Type)

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		sess, err := decodeSession(event)
		if err != nil {
			s.metrics.IncWebhookEvent(eventType, outcomeError)
			return err
		}
		if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			// Delayed payment method; the async_payment_* event settles it.
			s.metrics.IncWebhookEvent(eventType, outcomeIgnored)
			return nil
		}
		return s.apply(ctx, eventType, sess.ID, enums.PaymentStatusCompleted, nil)
	case stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		sess, err := decodeSession(event)
		if err != nil {
			s.metrics.IncWebhookEvent(eventType, outcomeError)
			return err
		}
		return s.apply(ctx, eventType, sess.ID, enums.PaymentStatusCompleted, nil)
	case stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		sess, err := decodeSession(event)
		if err != nil {
			s.metrics.IncWebhookEvent(eventType, outcomeError)
			return err
		}
		reason := "async payment failed"
		return s.apply(ctx, eventType, sess.ID, enums.PaymentStatusFailed, &reason)
	case stripe.EventTypeCheckoutSessionExpired:
		sess, err := decodeSession(event)
		if err != nil {
			s.metrics.IncWebhookEvent(eventType, outcomeError)
			return err
		}
		reason := "checkout session expired"
		return s.apply(ctx, eventType, sess.ID, enums.PaymentStatusCancelled, &reason)
	case stripe.EventTypePaymentIntentPaymentFailed:
		return s.handleIntentFailure(ctx, event)
	default:
		s.metrics.IncWebhookEvent(eventType, outcomeIgnored)
		return nil
	}
}

// handleIntentFailure resolves the payment through the order id carried in
// the intent's metadata; intents do not know their checkout session.
func (s *Service) handleIntentFailure(ctx context.Context, event *stripe.Event) error {
	eventType := string(event.Type)

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		s.metrics.IncWebhookEvent(eventType, outcomeError)
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
	}

	raw, ok := intent.Metadata[metadataOrderID]
	if !ok || raw == "" {
		// Not one of ours; intents created outside checkout carry no order id.
		s.metrics.IncWebhookEvent(eventType, outcomeIgnored)
		return nil
	}
	orderID, err := uuid.Parse(raw)
	if err != nil {
		s.metrics.IncWebhookEvent(eventType, outcomeError)
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order id metadata %q", raw))
	}

	payment, err := s.ledger.FindByOrder(ctx, orderID)
	if err != nil {
		s.metrics.IncWebhookEvent(eventType, outcomeError)
		return err
	}
	if intent.Amount != 0 && intent.Amount != money.MinorUnits(payment.Amount) {
		s.metrics.IncWebhookEvent(eventType, outcomeError)
		return pkgerrors.New(pkgerrors.CodeInternal,
			fmt.Sprintf("intent amount %d does not match recorded payment for order %s", intent.Amount, orderID))
	}

	reason := "card error"
	if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		reason = intent.LastPaymentError.Msg
	}
	return s.apply(ctx, eventType, payment.GatewayReference, enums.PaymentStatusCardError, &reason)
}

func (s *Service) apply(ctx context.Context, eventType, reference string, status enums.PaymentStatus, reason *string) error {
	result, err := s.ledger.ApplyTerminalState(ctx, reference, status, reason)
	if err != nil {
		s.metrics.IncWebhookEvent(eventType, outcomeError)
		return err
	}

	ctx = s.log.WithOrderID(ctx, result.Payment.OrderID.String())
	if !result.Applied {
		s.metrics.IncWebhookEvent(eventType, outcomeDuplicate)
		s.log.Info(ctx, fmt.Sprintf("payment already %s, event absorbed", result.Payment.Status))
		return nil
	}

	s.metrics.IncWebhookEvent(eventType, outcomeApplied)
	s.log.Info(ctx, fmt.Sprintf("payment moved to %s", result.Payment.Status))
	return nil
}

func decodeSession(event *stripe.Event) (*stripe.CheckoutSession, error) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
	}
	if sess.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session id missing")
	}
	return &sess, nil
}
