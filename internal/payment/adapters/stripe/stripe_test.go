package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/smallbiznis/appointly/internal/payment/domain"
)

func newTestAdapter(now time.Time) *Adapter {
	return &Adapter{
		webhookSecret: "whsec_test",
		tolerance:     5 * time.Minute,
		now:           func() time.Time { return now },
	}
}

func TestVerifySignature(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	adapter := newTestAdapter(now)
	payload := []byte(`{"id":"evt_123","type":"invoice.paid","data":{"object":{}}}`)

	reqHeader := http.Header{}
	reqHeader.Set("Stripe-Signature", buildStripeSignatureHeader("whsec_test", payload, now.Unix()))
	if err := adapter.Verify(context.Background(), payload, reqHeader); err != nil {
		t.Fatalf("expected valid signature, got error: %v", err)
	}

	reqHeader.Set("Stripe-Signature", buildStripeSignatureHeader("wrong", payload, now.Unix()))
	if err := adapter.Verify(context.Background(), payload, reqHeader); !errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature error, got %v", err)
	}

	stale := now.Add(-10 * time.Minute).Unix()
	reqHeader.Set("Stripe-Signature", buildStripeSignatureHeader("whsec_test", payload, stale))
	if err := adapter.Verify(context.Background(), payload, reqHeader); !errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatalf("expected stale timestamp to be rejected, got %v", err)
	}

	tampered := []byte(`{"id":"evt_124","type":"invoice.paid","data":{"object":{}}}`)
	reqHeader.Set("Stripe-Signature", buildStripeSignatureHeader("whsec_test", payload, now.Unix()))
	if err := adapter.Verify(context.Background(), tampered, reqHeader); !errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatalf("expected tampered payload to be rejected, got %v", err)
	}

	if err := adapter.Verify(context.Background(), payload, http.Header{}); !errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatalf("expected missing header to be rejected, got %v", err)
	}
}

func TestParseEvents(t *testing.T) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	userID := node.Generate()
	bookingID := node.Generate()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Unix()

	tests := []struct {
		name  string
		event map[string]any
		check func(t *testing.T, event paymentdomain.Event)
	}{{
		name: "subscription checkout",
		event: stripeEventFixture("evt_sub", "checkout.session.completed", created, map[string]any{
			"id":           "cs_1",
			"mode":         "subscription",
			"customer":     "cus_1",
			"subscription": "sub_1",
			"metadata":     map[string]any{"user_id": userID.String(), "plan_id": "price_pro"},
		}),
		check: func(t *testing.T, event paymentdomain.Event) {
			got, ok := event.(paymentdomain.CheckoutSubscriptionCompleted)
			if !ok {
				t.Fatalf("expected subscription checkout, got %T", event)
			}
			if got.UserID != userID || got.PlanID != "price_pro" || got.SubscriptionID != "sub_1" || got.CustomerID != "cus_1" {
				t.Fatalf("unexpected subscription checkout: %+v", got)
			}
		},
	}, {
		name: "booking checkout",
		event: stripeEventFixture("evt_booking", "checkout.session.completed", created, map[string]any{
			"id":             "cs_2",
			"mode":           "payment",
			"payment_status": "paid",
			"payment_intent": map[string]any{"id": "pi_2"},
			"metadata":       map[string]any{"booking_id": bookingID.String()},
		}),
		check: func(t *testing.T, event paymentdomain.Event) {
			got, ok := event.(paymentdomain.CheckoutBookingCompleted)
			if !ok {
				t.Fatalf("expected booking checkout, got %T", event)
			}
			if got.BookingID != bookingID || got.PaymentReference != "pi_2" {
				t.Fatalf("unexpected booking checkout: %+v", got)
			}
		},
	}, {
		name: "credit purchase",
		event: stripeEventFixture("evt_credits", "checkout.session.completed", created, map[string]any{
			"id":             "cs_3",
			"mode":           "payment",
			"payment_status": "paid",
			"metadata":       map[string]any{"user_id": userID.String(), "credits": "25"},
		}),
		check: func(t *testing.T, event paymentdomain.Event) {
			got, ok := event.(paymentdomain.CheckoutCreditsCompleted)
			if !ok {
				t.Fatalf("expected credits checkout, got %T", event)
			}
			if got.Credits != 25 || got.UserID != userID || got.PaymentReference != "cs_3" {
				t.Fatalf("unexpected credits checkout: %+v", got)
			}
		},
	}, {
		name: "subscription deleted",
		event: stripeEventFixture("evt_del", "customer.subscription.deleted", created, map[string]any{
			"id":       "sub_1",
			"customer": "cus_1",
			"status":   "canceled",
			"items": map[string]any{"data": []any{
				map[string]any{"current_period_end": created + 3600, "price": map[string]any{"id": "price_pro"}},
			}},
		}),
		check: func(t *testing.T, event paymentdomain.Event) {
			got, ok := event.(paymentdomain.SubscriptionChanged)
			if !ok {
				t.Fatalf("expected subscription change, got %T", event)
			}
			if !got.Deleted || got.PriceID != "price_pro" || got.CurrentPeriodEnd == nil {
				t.Fatalf("unexpected subscription change: %+v", got)
			}
			if got.CurrentPeriodEnd.Unix() != created+3600 {
				t.Fatalf("expected period end from items, got %v", got.CurrentPeriodEnd)
			}
		},
	}, {
		name: "invoice paid",
		event: stripeEventFixture("evt_inv", "invoice.paid", created, map[string]any{
			"id":           "in_1",
			"customer":     "cus_1",
			"subscription": "sub_1",
			"amount_paid":  2900,
		}),
		check: func(t *testing.T, event paymentdomain.Event) {
			got, ok := event.(paymentdomain.InvoicePaid)
			if !ok {
				t.Fatalf("expected invoice paid, got %T", event)
			}
			if got.CustomerID != "cus_1" || got.InvoiceID != "in_1" || got.AmountPaid != 2900 {
				t.Fatalf("unexpected invoice: %+v", got)
			}
			if got.Meta().ID != "evt_inv" || got.Meta().OccurredAt.Unix() != created {
				t.Fatalf("unexpected meta: %+v", got.Meta())
			}
		},
	}, {
		name: "payment failed",
		event: stripeEventFixture("evt_fail", "payment_intent.payment_failed", created, map[string]any{
			"id":                 "pi_9",
			"customer":           "cus_1",
			"last_payment_error": map[string]any{"message": "Your card was declined."},
		}),
		check: func(t *testing.T, event paymentdomain.Event) {
			got, ok := event.(paymentdomain.PaymentFailed)
			if !ok {
				t.Fatalf("expected payment failed, got %T", event)
			}
			if got.Reason != "Your card was declined." {
				t.Fatalf("unexpected reason %q", got.Reason)
			}
		},
	}}

	adapter := newTestAdapter(time.Unix(created, 0))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := json.Marshal(tt.event)
			if err != nil {
				t.Fatalf("marshal payload: %v", err)
			}
			event, err := adapter.Parse(context.Background(), payload)
			if err != nil {
				t.Fatalf("parse event: %v", err)
			}
			tt.check(t, event)
		})
	}
}

func TestParseRejectsAndIgnores(t *testing.T) {
	adapter := newTestAdapter(time.Now())
	created := time.Now().Unix()

	tests := []struct {
		name    string
		payload []byte
		want    error
	}{
		{name: "malformed json", payload: []byte(`{"id":`), want: paymentdomain.ErrInvalidPayload},
		{name: "missing id", payload: mustJSON(t, map[string]any{"type": "invoice.paid"}), want: paymentdomain.ErrInvalidEvent},
		{name: "unhandled type", payload: mustJSON(t, stripeEventFixture("evt_x", "charge.refunded", created, map[string]any{"id": "ch_1"})), want: paymentdomain.ErrEventIgnored},
		{name: "unpaid checkout", payload: mustJSON(t, stripeEventFixture("evt_u", "checkout.session.completed", created, map[string]any{
			"id": "cs_u", "mode": "payment", "payment_status": "unpaid", "metadata": map[string]any{"booking_id": "1"},
		})), want: paymentdomain.ErrEventIgnored},
		{name: "negative credits", payload: mustJSON(t, stripeEventFixture("evt_n", "checkout.session.completed", created, map[string]any{
			"id": "cs_n", "mode": "payment", "payment_status": "paid", "metadata": map[string]any{"user_id": "7", "credits": "-3"},
		})), want: paymentdomain.ErrInvalidEvent},
		{name: "subscription checkout without user", payload: mustJSON(t, stripeEventFixture("evt_s", "checkout.session.completed", created, map[string]any{
			"id": "cs_s", "mode": "subscription", "subscription": "sub_1",
		})), want: paymentdomain.ErrInvalidEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := adapter.Parse(context.Background(), tt.payload)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func stripeEventFixture(id, eventType string, created int64, object map[string]any) map[string]any {
	return map[string]any{
		"id":      id,
		"type":    eventType,
		"created": created,
		"data":    map[string]any{"object": object},
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	payload, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return payload
}

func buildStripeSignatureHeader(secret string, payload []byte, timestamp int64) string {
	ts := fmt.Sprintf("%d", timestamp)
	return fmt.Sprintf("t=%s,v1=%s", ts, Sign(secret, ts, payload))
}
