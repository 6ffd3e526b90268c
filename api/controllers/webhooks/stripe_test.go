package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	stripewebhook "github.com/forkline/forkline-backend/internal/webhooks/stripe"
	"github.com/forkline/forkline-backend/pkg/logger"
)

const testSigningSecret = "whsec_test_secret"

type fakeWebhookService struct {
	calls int
	err   error
	last  *stripe.Event
}

func (f *fakeWebhookService) HandleEvent(ctx context.Context, event *stripe.Event) error {
	f.calls++
	f.last = event
	return f.err
}

type fakeSigningClient struct {
	secret string
}

func (f fakeSigningClient) SigningSecret() string { return f.secret }

type inMemoryStore struct {
	mu   sync.Mutex
	keys map[string]string
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{keys: map[string]string{}}
}

func (s *inMemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[key], nil
}

func (s *inMemoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	s.keys[key] = fmt.Sprint(value)
	return true, nil
}

func (s *inMemoryStore) IdempotencyKey(scope, id string) string {
	return strings.Join([]string{"test", "idemp", scope, id}, ":")
}

func (s *inMemoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.keys, key)
	}
	return nil
}

func buildStripeSignatureHeader(t *testing.T, payload []byte, secret string) string {
	t.Helper()

	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	_, err := mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	require.NoError(t, err)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func buildSessionEventPayload(t *testing.T, eventID string) []byte {
	t.Helper()

	raw, err := json.Marshal(&stripe.CheckoutSession{
		ID:            "cs_" + uuid.NewString(),
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
	})
	require.NoError(t, err)

	payload, err := json.Marshal(&stripe.Event{
		ID:         eventID,
		Type:       stripe.EventTypeCheckoutSessionCompleted,
		Object:     "event",
		APIVersion: stripe.APIVersion,
		Data: &stripe.EventData{
			Raw: raw,
		},
	})
	require.NoError(t, err)
	return payload
}

type stripeHandlerEnv struct {
	handler http.HandlerFunc
	svc     *fakeWebhookService
	store   *inMemoryStore
}

func newStripeHandlerEnv(t *testing.T) stripeHandlerEnv {
	t.Helper()

	svc := &fakeWebhookService{}
	store := newInMemoryStore()
	guard, err := stripewebhook.NewIdempotencyGuard(store, time.Hour, "stripe")
	require.NoError(t, err)

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	handler := StripeWebhook(svc, fakeSigningClient{secret: testSigningSecret}, guard, logg)
	return stripeHandlerEnv{handler: handler, svc: svc, store: store}
}

func postEvent(env stripeHandlerEnv, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(string(payload)))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rec := httptest.NewRecorder()
	env.handler(rec, req)
	return rec
}

func TestStripeWebhookProcessesSignedEvent(t *testing.T) {
	env := newStripeHandlerEnv(t)

	eventID := "evt_" + uuid.NewString()
	payload := buildSessionEventPayload(t, eventID)
	rec := postEvent(env, payload, buildStripeSignatureHeader(t, payload, testSigningSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, env.svc.calls)
	assert.Equal(t, eventID, env.svc.last.ID)
}

func TestStripeWebhookAbsorbsRedelivery(t *testing.T) {
	env := newStripeHandlerEnv(t)

	eventID := "evt_" + uuid.NewString()
	payload := buildSessionEventPayload(t, eventID)
	signature := buildStripeSignatureHeader(t, payload, testSigningSecret)

	first := postEvent(env, payload, signature)
	assert.Equal(t, http.StatusOK, first.Code)

	second := postEvent(env, payload, signature)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, 1, env.svc.calls)
}

func TestStripeWebhookRejectsInvalidSignature(t *testing.T) {
	env := newStripeHandlerEnv(t)

	payload := buildSessionEventPayload(t, "evt_"+uuid.NewString())
	rec := postEvent(env, payload, buildStripeSignatureHeader(t, payload, "whsec_wrong_secret"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, env.svc.calls)
	assert.Empty(t, env.store.keys)
}

func TestStripeWebhookRejectsMissingSignature(t *testing.T) {
	env := newStripeHandlerEnv(t)

	payload := buildSessionEventPayload(t, "evt_"+uuid.NewString())
	rec := postEvent(env, payload, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, env.svc.calls)
}

func TestStripeWebhookUnmarksEventOnHandlerError(t *testing.T) {
	env := newStripeHandlerEnv(t)
	env.svc.err = fmt.Errorf("ledger unavailable")

	eventID := "evt_" + uuid.NewString()
	payload := buildSessionEventPayload(t, eventID)
	signature := buildStripeSignatureHeader(t, payload, testSigningSecret)

	rec := postEvent(env, payload, signature)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, env.store.keys)

	// Redelivery after the failure is processed, not absorbed.
	env.svc.err = nil
	rec = postEvent(env, payload, signature)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, env.svc.calls)
}
