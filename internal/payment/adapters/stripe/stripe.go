package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/smallbiznis/appointly/internal/payment/domain"
)

const (
	providerName     = "stripe"
	defaultTolerance = 5 * time.Minute
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return providerName
}

func (f *Factory) NewAdapter(cfg paymentdomain.AdapterConfig) (paymentdomain.PaymentAdapter, error) {
	secret := strings.TrimSpace(cfg.WebhookSecret)
	if secret == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}
	tolerance := cfg.Tolerance
	if tolerance <= 0 {
		tolerance = defaultTolerance
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Adapter{
		webhookSecret: secret,
		tolerance:     tolerance,
		now:           now,
	}, nil
}

type Adapter struct {
	webhookSecret string
	tolerance     time.Duration
	now           func() time.Time
}

// Verify checks the Stripe-Signature header: an HMAC-SHA256 over "t.payload" and a
// timestamp inside the tolerance window.
func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return paymentdomain.ErrInvalidSignature
	}

	ts, signatures, err := parseStripeSignature(sigHeader)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}
	age := a.now().Sub(time.Unix(unix, 0))
	if age > a.tolerance || age < -a.tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", paymentdomain.ErrInvalidSignature)
	}

	expected := Sign(a.webhookSecret, ts, payload)
	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return paymentdomain.ErrInvalidSignature
}

// Sign returns the hex v1 signature for payload at timestamp ts.
func Sign(secret, ts string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(ts))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (paymentdomain.Event, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	meta := paymentdomain.EventMeta{
		Provider:   providerName,
		ID:         strings.TrimSpace(event.ID),
		Type:       strings.TrimSpace(event.Type),
		OccurredAt: timestamp(event.Created),
	}

	switch meta.Type {
	case "checkout.session.completed":
		return parseCheckout(meta, event)
	case "customer.subscription.updated":
		return parseSubscription(meta, event, false)
	case "customer.subscription.deleted":
		return parseSubscription(meta, event, true)
	case "invoice.paid", "invoice.payment_succeeded":
		return parseInvoicePaid(meta, event)
	case "invoice.payment_failed":
		return parseInvoiceFailed(meta, event)
	case "payment_intent.payment_failed":
		return parsePaymentIntentFailed(meta, event)
	default:
		return nil, paymentdomain.ErrEventIgnored
	}
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripeCheckoutSession struct {
	ID            string         `json:"id"`
	Mode          string         `json:"mode"`
	PaymentStatus string         `json:"payment_status"`
	Customer      expandableID   `json:"customer"`
	Subscription  expandableID   `json:"subscription"`
	PaymentIntent expandableID   `json:"payment_intent"`
	Metadata      map[string]any `json:"metadata"`
}

type stripeSubscription struct {
	ID               string       `json:"id"`
	Customer         expandableID `json:"customer"`
	Status           string       `json:"status"`
	CurrentPeriodEnd int64        `json:"current_period_end"`
	Items            struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
			Price            struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

type stripeInvoice struct {
	ID           string       `json:"id"`
	Customer     expandableID `json:"customer"`
	Subscription expandableID `json:"subscription"`
	AmountPaid   int64        `json:"amount_paid"`
	Parent       *struct {
		SubscriptionDetails *struct {
			Subscription expandableID `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

type stripePaymentIntent struct {
	ID               string       `json:"id"`
	Customer         expandableID `json:"customer"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

// expandableID accepts either an id string or an expanded object with an id.
type expandableID string

func (e *expandableID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*e = ""
		return nil
	}
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		*e = expandableID(strings.TrimSpace(id))
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*e = expandableID(strings.TrimSpace(obj.ID))
	return nil
}

func parseCheckout(meta paymentdomain.EventMeta, event stripeEvent) (paymentdomain.Event, error) {
	var session stripeCheckoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}

	if session.Mode == "subscription" {
		userID, err := readID(session.Metadata, "user_id")
		if err != nil {
			return nil, err
		}
		if session.Subscription == "" {
			return nil, fmt.Errorf("%w: subscription checkout without subscription", paymentdomain.ErrInvalidEvent)
		}
		return paymentdomain.CheckoutSubscriptionCompleted{
			EventMeta:      meta,
			UserID:         userID,
			PlanID:         readMetadataValue(session.Metadata, "plan_id"),
			CustomerID:     string(session.Customer),
			SubscriptionID: string(session.Subscription),
		}, nil
	}

	// Asynchronous payment methods complete the session before funds arrive.
	if session.PaymentStatus == "unpaid" {
		return nil, paymentdomain.ErrEventIgnored
	}

	reference := string(session.PaymentIntent)
	if reference == "" {
		reference = session.ID
	}

	if readMetadataValue(session.Metadata, "booking_id") != "" {
		bookingID, err := readID(session.Metadata, "booking_id")
		if err != nil {
			return nil, err
		}
		return paymentdomain.CheckoutBookingCompleted{
			EventMeta:        meta,
			BookingID:        bookingID,
			PaymentReference: reference,
		}, nil
	}

	if raw := readMetadataValue(session.Metadata, "credits"); raw != "" {
		userID, err := readID(session.Metadata, "user_id")
		if err != nil {
			return nil, err
		}
		credits, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || credits <= 0 {
			return nil, fmt.Errorf("%w: credits must be a positive integer", paymentdomain.ErrInvalidEvent)
		}
		return paymentdomain.CheckoutCreditsCompleted{
			EventMeta:        meta,
			UserID:           userID,
			Credits:          credits,
			PaymentReference: reference,
		}, nil
	}

	return nil, paymentdomain.ErrEventIgnored
}

func parseSubscription(meta paymentdomain.EventMeta, event stripeEvent, deleted bool) (paymentdomain.Event, error) {
	var sub stripeSubscription
	if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(sub.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	out := paymentdomain.SubscriptionChanged{
		EventMeta:      meta,
		SubscriptionID: strings.TrimSpace(sub.ID),
		CustomerID:     string(sub.Customer),
		Status:         strings.TrimSpace(sub.Status),
		Deleted:        deleted,
	}
	periodEnd := sub.CurrentPeriodEnd
	if len(sub.Items.Data) > 0 {
		out.PriceID = sub.Items.Data[0].Price.ID
		if periodEnd == 0 {
			periodEnd = sub.Items.Data[0].CurrentPeriodEnd
		}
	}
	if periodEnd > 0 {
		end := time.Unix(periodEnd, 0).UTC()
		out.CurrentPeriodEnd = &end
	}
	return out, nil
}

func parseInvoicePaid(meta paymentdomain.EventMeta, event stripeEvent) (paymentdomain.Event, error) {
	var invoice stripeInvoice
	if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(invoice.ID) == "" || invoice.Customer == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}
	subscriptionID := string(invoice.Subscription)
	if subscriptionID == "" && invoice.Parent != nil && invoice.Parent.SubscriptionDetails != nil {
		subscriptionID = string(invoice.Parent.SubscriptionDetails.Subscription)
	}
	// One-off invoices do not grant subscription credits.
	if subscriptionID == "" {
		return nil, paymentdomain.ErrEventIgnored
	}
	return paymentdomain.InvoicePaid{
		EventMeta:      meta,
		InvoiceID:      strings.TrimSpace(invoice.ID),
		CustomerID:     string(invoice.Customer),
		SubscriptionID: subscriptionID,
		AmountPaid:     invoice.AmountPaid,
	}, nil
}

func parseInvoiceFailed(meta paymentdomain.EventMeta, event stripeEvent) (paymentdomain.Event, error) {
	var invoice stripeInvoice
	if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	return paymentdomain.PaymentFailed{
		EventMeta:  meta,
		CustomerID: string(invoice.Customer),
		Reference:  strings.TrimSpace(invoice.ID),
		Reason:     "invoice payment failed",
	}, nil
}

func parsePaymentIntentFailed(meta paymentdomain.EventMeta, event stripeEvent) (paymentdomain.Event, error) {
	var intent stripePaymentIntent
	if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	reason := "payment failed"
	if intent.LastPaymentError != nil && strings.TrimSpace(intent.LastPaymentError.Message) != "" {
		reason = strings.TrimSpace(intent.LastPaymentError.Message)
	}
	return paymentdomain.PaymentFailed{
		EventMeta:  meta,
		CustomerID: string(intent.Customer),
		Reference:  strings.TrimSpace(intent.ID),
		Reason:     reason,
	}, nil
}

func parseStripeSignature(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var ts string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			ts = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if ts == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return ts, signatures, nil
}

func timestamp(created int64) time.Time {
	if created == 0 {
		return time.Now().UTC()
	}
	return time.Unix(created, 0).UTC()
}

func readID(metadata map[string]any, key string) (snowflake.ID, error) {
	raw := readMetadataValue(metadata, key)
	if raw == "" {
		return 0, fmt.Errorf("%w: missing metadata %s", paymentdomain.ErrInvalidEvent, key)
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid metadata %s", paymentdomain.ErrInvalidEvent, key)
	}
	return id, nil
}

func readMetadataValue(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	value, ok := metadata[key]
	if !ok {
		return ""
	}
	switch cast := value.(type) {
	case string:
		return strings.TrimSpace(cast)
	case float64:
		if cast == 0 {
			return ""
		}
		return strconv.FormatInt(int64(cast), 10)
	case json.Number:
		return cast.String()
	}
	return ""
}
