// Package breakdown asks the design service to generate a step-by-step breakdown
// for a paid booking's design.
package breakdown

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var (
	ErrNotConfigured = errors.New("breakdown_not_configured")
	ErrUpstream      = errors.New("breakdown_upstream_failed")
)

type Trigger interface {
	RequestBreakdown(ctx context.Context, bookingID, designID snowflake.ID) error
}

type Settings struct {
	URL          string
	Token        string
	Timeout      time.Duration
	MaxRequests  uint32
	Interval     time.Duration
	OpenTimeout  time.Duration
	FailureRatio float64
	MinRequests  uint32
}

func DefaultSettings(url, token string, timeout time.Duration) Settings {
	return Settings{
		URL:          url,
		Token:        token,
		Timeout:      timeout,
		MaxRequests:  5,
		Interval:     60 * time.Second,
		OpenTimeout:  60 * time.Second,
		FailureRatio: 0.6,
		MinRequests:  3,
	}
}

// HTTPTrigger posts breakdown requests behind a circuit breaker so a failing
// design service stops costing a timeout per paid booking.
type HTTPTrigger struct {
	url        string
	token      string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	log        *zap.Logger
}

func NewHTTPTrigger(s Settings, log *zap.Logger) *HTTPTrigger {
	if s.Timeout <= 0 {
		s.Timeout = 5 * time.Second
	}
	log = log.Named("breakdown")
	minRequests := s.MinRequests
	ratio := s.FailureRatio
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "breakdown",
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &HTTPTrigger{
		url:        strings.TrimSpace(s.URL),
		token:      s.Token,
		httpClient: &http.Client{Timeout: s.Timeout},
		breaker:    breaker,
		log:        log,
	}
}

type breakdownRequest struct {
	BookingID string `json:"booking_id"`
	DesignID  string `json:"design_id"`
}

func (t *HTTPTrigger) RequestBreakdown(ctx context.Context, bookingID, designID snowflake.ID) error {
	if t.url == "" {
		return ErrNotConfigured
	}
	body, err := json.Marshal(breakdownRequest{BookingID: bookingID.String(), DesignID: designID.String()})
	if err != nil {
		return err
	}

	_, err = t.breaker.Execute(func() (interface{}, error) {
		return nil, t.post(ctx, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return err
}

func (t *HTTPTrigger) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
	return nil
}
