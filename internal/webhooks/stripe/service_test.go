package stripewebhook

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/forkline/forkline-backend/internal/orders"
	"github.com/forkline/forkline-backend/internal/payments"
	"github.com/forkline/forkline-backend/pkg/db/models"
	"github.com/forkline/forkline-backend/pkg/enums"
	pkgerrors "github.com/forkline/forkline-backend/pkg/errors"
	"github.com/forkline/forkline-backend/pkg/logger"
)

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func setupWebhookTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	ordersTable := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  owner_email TEXT NOT NULL,
  total_amount TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  source TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	paymentsTable := `
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE,
  gateway_reference TEXT NOT NULL UNIQUE,
  amount TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'in_progress',
  gateway TEXT NOT NULL DEFAULT 'stripe',
  failure_reason TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(ordersTable).Error)
	require.NoError(t, db.Exec(paymentsTable).Error)
	return db
}

type webhookTestEnv struct {
	db     *gorm.DB
	svc    *Service
	ledger payments.Service
}

func newWebhookTestEnv(t *testing.T) webhookTestEnv {
	t.Helper()

	db := setupWebhookTestDB(t)
	ledger, err := payments.NewService(testTxRunner{db: db}, payments.NewRepository(db), orders.NewRepository(db))
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Ledger: ledger,
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)

	return webhookTestEnv{db: db, svc: svc, ledger: ledger}
}

func seedOrderWithPayment(t *testing.T, env webhookTestEnv) (uuid.UUID, string) {
	t.Helper()

	orderID := uuid.New()
	require.NoError(t, env.db.Exec(
		`INSERT INTO orders (id, owner_id, owner_email, total_amount, status, source)
		 VALUES (?, ?, ?, ?, 'pending', 'cart')`,
		orderID, uuid.New(), "diner@example.com", "25.00",
	).Error)

	reference := "cs_" + uuid.NewString()
	_, err := env.ledger.Record(context.Background(), orderID, reference, decimal.RequireFromString("25.00"))
	require.NoError(t, err)
	return orderID, reference
}

func sessionEvent(t *testing.T, eventType stripe.EventType, reference string, paymentStatus stripe.CheckoutSessionPaymentStatus) *stripe.Event {
	t.Helper()

	raw, err := json.Marshal(&stripe.CheckoutSession{
		ID:            reference,
		PaymentStatus: paymentStatus,
	})
	require.NoError(t, err)

	return &stripe.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: eventType,
		Data: &stripe.EventData{Raw: raw},
	}
}

func paymentState(t *testing.T, env webhookTestEnv, orderID uuid.UUID) (enums.PaymentStatus, enums.OrderStatus) {
	t.Helper()

	payment, err := env.ledger.FindByOrder(context.Background(), orderID)
	require.NoError(t, err)

	var order models.Order
	require.NoError(t, env.db.Where("id = ?", orderID).First(&order).Error)
	return payment.Status, order.Status
}

func TestHandleEventSessionCompleted(t *testing.T) {
	env := newWebhookTestEnv(t)
	orderID, reference := seedOrderWithPayment(t, env)

	event := sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, reference, stripe.CheckoutSessionPaymentStatusPaid)
	require.NoError(t, env.svc.HandleEvent(context.Background(), event))

	paymentStatus, orderStatus := paymentState(t, env, orderID)
	assert.Equal(t, enums.PaymentStatusCompleted, paymentStatus)
	assert.Equal(t, enums.OrderStatusCompleted, orderStatus)
}

func TestHandleEventSessionCompletedUnpaidIsIgnored(t *testing.T) {
	env := newWebhookTestEnv(t)
	orderID, reference := seedOrderWithPayment(t, env)

	event := sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, reference, stripe.CheckoutSessionPaymentStatusUnpaid)
	require.NoError(t, env.svc.HandleEvent(context.Background(), event))

	paymentStatus, orderStatus := paymentState(t, env, orderID)
	assert.Equal(t, enums.PaymentStatusInProgress, paymentStatus)
	assert.Equal(t, enums.OrderStatusPending, orderStatus)
}

func TestHandleEventAsyncPaymentSucceeded(t *testing.T) {
	env := newWebhookTestEnv(t)
	orderID, reference := seedOrderWithPayment(t, env)

	event := sessionEvent(t, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded, reference, stripe.CheckoutSessionPaymentStatusPaid)
	require.NoError(t, env.svc.HandleEvent(context.Background(), event))

	paymentStatus, orderStatus := paymentState(t, env, orderID)
	assert.Equal(t, enums.PaymentStatusCompleted, paymentStatus)
	assert.Equal(t, enums.OrderStatusCompleted, orderStatus)
}

func TestHandleEventAsyncPaymentFailed(t *testing.T) {
	env := newWebhookTestEnv(t)
	orderID, reference := seedOrderWithPayment(t, env)

	event := sessionEvent(t, stripe.EventTypeCheckoutSessionAsyncPaymentFailed, reference, stripe.CheckoutSessionPaymentStatusUnpaid)
	require.NoError(t, env.svc.HandleEvent(context.Background(), event))

	paymentStatus, orderStatus := paymentState(t, env, orderID)
	assert.Equal(t, enums.PaymentStatusFailed, paymentStatus)
	assert.Equal(t, enums.OrderStatusCancelled, orderStatus)
}

func TestHandleEventSessionExpired(t *testing.T) {
	env := newWebhookTestEnv(t)
	orderID, reference := seedOrderWithPayment(t, env)

	event := sessionEvent(t, stripe.EventTypeCheckoutSessionExpired, reference, stripe.CheckoutSessionPaymentStatusUnpaid)
	require.NoError(t, env.svc.HandleEvent(context.Background(), event))

	paymentStatus, orderStatus := paymentState(t, env, orderID)
	assert.Equal(t, enums.PaymentStatusCancelled, paymentStatus)
	assert.Equal(t, enums.OrderStatusCancelled, orderStatus)
}

func TestHandleEventPaymentIntentFailed(t *testing.T) {
	env := newWebhookTestEnv(t)
	orderID, _ := seedOrderWithPayment(t, env)

	raw, err := json.Marshal(&stripe.PaymentIntent{
		ID:       "pi_" + uuid.NewString(),
		Amount:   2500,
		Metadata: map[string]string{"order_id": orderID.String()},
		LastPaymentError: &stripe.Error{
			Msg: "Your card was declined.",
		},
	})
	require.NoError(t, err)
	event := &stripe.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: stripe.EventTypePaymentIntentPaymentFailed,
		Data: &stripe.EventData{Raw: raw},
	}

	require.NoError(t, env.svc.HandleEvent(context.Background(), event))

	payment, err := env.ledger.FindByOrder(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCardError, payment.Status)
	require.NotNil(t, payment.FailureReason)
	assert.Equal(t, "Your card was declined.", *payment.FailureReason)

	var order models.Order
	require.NoError(t, env.db.Where("id = ?", orderID).First(&order).Error)
	assert.Equal(t, enums.OrderStatusCancelled, order.Status)
}

func TestHandleEventPaymentIntentAmountMismatch(t *testing.T) {
	env := newWebhookTestEnv(t)
	orderID, _ := seedOrderWithPayment(t, env)

	// The recorded payment is 25.00; an intent claiming a different charge
	// must not move the ledger.
	raw, err := json.Marshal(&stripe.PaymentIntent{
		ID:       "pi_" + uuid.NewString(),
		Amount:   999,
		Metadata: map[string]string{"order_id": orderID.String()},
	})
	require.NoError(t, err)
	event := &stripe.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: stripe.EventTypePaymentIntentPaymentFailed,
		Data: &stripe.EventData{Raw: raw},
	}

	err = env.svc.HandleEvent(context.Background(), event)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInternal, typed.Code())

	paymentStatus, orderStatus := paymentState(t, env, orderID)
	assert.Equal(t, enums.PaymentStatusInProgress, paymentStatus)
	assert.Equal(t, enums.OrderStatusPending, orderStatus)
}

func TestHandleEventPaymentIntentWithoutMetadataIsIgnored(t *testing.T) {
	env := newWebhookTestEnv(t)

	raw, err := json.Marshal(&stripe.PaymentIntent{ID: "pi_" + uuid.NewString()})
	require.NoError(t, err)
	event := &stripe.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: stripe.EventTypePaymentIntentPaymentFailed,
		Data: &stripe.EventData{Raw: raw},
	}

	assert.NoError(t, env.svc.HandleEvent(context.Background(), event))
}

func TestHandleEventPaymentIntentBadMetadata(t *testing.T) {
	env := newWebhookTestEnv(t)

	raw, err := json.Marshal(&stripe.PaymentIntent{
		ID:       "pi_" + uuid.NewString(),
		Metadata: map[string]string{"order_id": "not-a-uuid"},
	})
	require.NoError(t, err)
	event := &stripe.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: stripe.EventTypePaymentIntentPaymentFailed,
		Data: &stripe.EventData{Raw: raw},
	}

	err = env.svc.HandleEvent(context.Background(), event)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestHandleEventUnknownTypeIgnored(t *testing.T) {
	env := newWebhookTestEnv(t)

	event := &stripe.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: stripe.EventTypeInvoicePaid,
		Data: &stripe.EventData{Raw: []byte(`{}`)},
	}
	assert.NoError(t, env.svc.HandleEvent(context.Background(), event))
}

func TestHandleEventUnknownReference(t *testing.T) {
	env := newWebhookTestEnv(t)

	event := sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, "cs_"+uuid.NewString(), stripe.CheckoutSessionPaymentStatusPaid)
	err := env.svc.HandleEvent(context.Background(), event)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}
