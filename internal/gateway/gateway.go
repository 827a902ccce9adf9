package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrMissingCredentials = errors.New("gateway credentials are required")
	ErrTimeout            = errors.New("gateway request timed out")
)

// Razorpay caps receipt identifiers at 40 characters.
const maxReceiptLength = 40

// Config holds the gateway credentials and endpoint.
type Config struct {
	KeyID     string
	KeySecret string
	BaseURL   string
	Timeout   time.Duration
}

// Client wraps the Razorpay orders API. It is constructed once at startup
// with validated credentials and injected into the purchase orchestrator.
type Client struct {
	keyID     string
	keySecret string
	http      *resty.Client
}

// NewClient validates the configuration and builds a client with a bounded
// request timeout. Missing credentials fail construction, not the first call.
func NewClient(cfg Config) (*Client, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, ErrMissingCredentials
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetBasicAuth(cfg.KeyID, cfg.KeySecret).
		SetTimeout(timeout)

	return &Client{
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		http:      httpClient,
	}, nil
}

// KeyID returns the public key identifier the browser checkout needs.
func (c *Client) KeyID() string {
	return c.keyID
}

type orderRequest struct {
	Amount   int64             `json:"amount"` // minor currency units
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type orderResponse struct {
	ID string `json:"id"`
}

type gatewayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder creates a remote payment order for the given amount in minor
// currency units. A failed remote call propagates to the caller; timeouts are
// surfaced as ErrTimeout so the orchestrator can distinguish them.
func (c *Client) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (string, error) {
	logger := log.With().
		Str("service", "gateway").
		Int64("amount_minor", amountMinor).
		Str("receipt", receipt).
		Logger()

	var (
		order  orderResponse
		apiErr gatewayError
	)

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(orderRequest{
			Amount:   amountMinor,
			Currency: currency,
			Receipt:  receipt,
			Notes:    notes,
		}).
		SetResult(&order).
		SetError(&apiErr).
		Post("/v1/orders")
	if err != nil {
		if isTimeout(err) {
			logger.Error().Err(err).Msg("gateway order creation timed out")
			return "", fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		logger.Error().Err(err).Msg("gateway order creation failed")
		return "", fmt.Errorf("gateway order creation failed: %w", err)
	}

	if resp.IsError() {
		logger.Error().
			Int("status", resp.StatusCode()).
			Str("code", apiErr.Error.Code).
			Msg("gateway rejected order creation")
		return "", fmt.Errorf("gateway rejected order: %s", apiErr.Error.Description)
	}

	logger.Info().Str("gateway_order_id", order.ID).Msg("created gateway order")
	return order.ID, nil
}

// VerifySignature recomputes the HMAC-SHA256 of "orderID|paymentID" with the
// shared secret and compares it with the supplied signature in constant time.
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(c.keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// NewReceiptID generates a receipt identifier that deterministically stays
// under the gateway's length limit: "rcpt_" + millisecond timestamp + short
// random suffix.
func NewReceiptID() string {
	receipt := fmt.Sprintf("rcpt_%d_%s", time.Now().UnixMilli(), uuid.New().String()[:8])
	if len(receipt) > maxReceiptLength {
		receipt = receipt[:maxReceiptLength]
	}
	return receipt
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
