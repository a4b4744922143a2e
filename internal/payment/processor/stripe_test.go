package processor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGetSubscriptionMapsFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/subscriptions/sub_123", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "sub_123",
			"customer": "cus_9",
			"status": "active",
			"items": {"data": [{"current_period_end": 1767225600, "price": {"id": "price_pro"}}]}
		}`))
	}))
	defer srv.Close()

	client := NewStripeClient(srv.URL, "sk_test", time.Second, zap.NewNop())
	sub, err := client.GetSubscription(context.Background(), "sub_123")
	require.NoError(t, err)
	assert.Equal(t, "cus_9", sub.CustomerID)
	assert.Equal(t, "active", sub.Status)
	assert.Equal(t, "price_pro", sub.PriceID)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.Equal(t, time.Unix(1767225600, 0).UTC(), *sub.CurrentPeriodEnd)
}

func TestGetSubscriptionWithoutPeriodEndLeavesItNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "sub_123", "customer": "cus_9", "status": "incomplete", "items": {"data": []}}`))
	}))
	defer srv.Close()

	client := NewStripeClient(srv.URL, "sk_test", time.Second, zap.NewNop())
	sub, err := client.GetSubscription(context.Background(), "sub_123")
	require.NoError(t, err)
	assert.Nil(t, sub.CurrentPeriodEnd)
	assert.Empty(t, sub.PriceID)
}

func TestChargeOffSessionSendsIdempotencyKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		assert.Equal(t, "no_show:42", r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "5000", r.PostForm.Get("amount"))
		assert.Equal(t, "usd", r.PostForm.Get("currency"))
		assert.Equal(t, "true", r.PostForm.Get("off_session"))
		assert.Equal(t, "pm_1", r.PostForm.Get("payment_method"))
		assert.Equal(t, "42", r.PostForm.Get("metadata[booking_id]"))
		_, _ = w.Write([]byte(`{"id":"pi_1","status":"succeeded","amount":5000}`))
	}))
	defer srv.Close()

	client := NewStripeClient(srv.URL, "sk_test", time.Second, zap.NewNop())
	charge, err := client.ChargeOffSession(context.Background(), ChargeRequest{
		CustomerID:      "cus_9",
		PaymentMethodID: "pm_1",
		AmountMinor:     5000,
		IdempotencyKey:  "no_show:42",
		Metadata:        map[string]string{"booking_id": "42"},
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_1", charge.ID)
	assert.Equal(t, int64(5000), charge.AmountMinor)
}

func TestChargeOffSessionClassifiesFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "card declined", status: http.StatusPaymentRequired, body: `{"error":{"type":"card_error","message":"Your card was declined."}}`, want: ErrChargeDeclined},
		{name: "requires action", status: http.StatusOK, body: `{"id":"pi_2","status":"requires_action"}`, want: ErrChargeDeclined},
		{name: "upstream outage", status: http.StatusBadGateway, body: `{}`, want: ErrUpstream},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client := NewStripeClient(srv.URL, "sk_test", time.Second, zap.NewNop())
			_, err := client.ChargeOffSession(context.Background(), ChargeRequest{AmountMinor: 100})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestClientHonorsContextTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := NewStripeClient(srv.URL, "sk_test", time.Second, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.GetSubscription(ctx, "sub_1")
	assert.ErrorIs(t, err, ErrUpstream)
	assert.True(t, IsTransient(err))
}
