package razorpay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	razorpay "github.com/razorpay/razorpay-go"

	"github.com/gharbazaar/backend/pkg/config"
	"github.com/gharbazaar/backend/pkg/logger"
)

var (
	errKeyIDRequired        = errors.New("razorpay key id is required")
	errKeySecretRequired    = errors.New("razorpay key secret is required")
	errWebhookSecretMissing = errors.New("razorpay webhook secret is required")
)

// Client wraps Razorpay's API client plus the secrets resolved at startup.
type Client struct {
	api           *razorpay.Client
	keyID         string
	keySecret     string
	webhookSecret string
}

// Order is the subset of the remote order object the payments core consumes.
type Order struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

// Payment is the subset of the remote payment object used for enrichment.
type Payment struct {
	ID       string
	OrderID  string
	Amount   int64
	Currency string
	Method   string
	Status   string
}

// NewClient initializes Razorpay once with the configured secrets.
func NewClient(ctx context.Context, cfg config.RazorpayConfig, logg *logger.Logger) (*Client, error) {
	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		return nil, errKeyIDRequired
	}
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keySecret == "" {
		return nil, errKeySecretRequired
	}
	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		return nil, errWebhookSecretMissing
	}

	api := razorpay.NewClient(keyID, keySecret)

	if logg != nil {
		logg.Info(ctx, "razorpay client initialized")
	}

	return &Client{
		api:           api,
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
	}, nil
}

// KeyID returns the public key the checkout widget needs. Safe to expose.
func (c *Client) KeyID() string {
	if c == nil {
		return ""
	}
	return c.keyID
}

// CreateOrder creates a remote order for the given minor-unit amount.
func (c *Client) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (*Order, error) {
	if c == nil || c.api == nil {
		return nil, errors.New("razorpay client not initialized")
	}
	if amountMinor < 1 {
		return nil, fmt.Errorf("order amount must be at least 1 minor unit, got %d", amountMinor)
	}

	data := map[string]interface{}{
		"amount":   amountMinor,
		"currency": currency,
		"receipt":  receipt,
	}
	if len(notes) > 0 {
		noteBag := make(map[string]interface{}, len(notes))
		for k, v := range notes {
			noteBag[k] = v
		}
		data["notes"] = noteBag
	}

	body, err := c.api.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay order create: %w", err)
	}

	order := &Order{
		ID:       stringField(body, "id"),
		Amount:   intField(body, "amount"),
		Currency: stringField(body, "currency"),
		Receipt:  stringField(body, "receipt"),
		Notes:    notesField(body),
	}
	if order.ID == "" {
		return nil, errors.New("razorpay order create: response missing id")
	}
	return order, nil
}

// FetchPayment retrieves the remote payment for amount/method enrichment.
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if c == nil || c.api == nil {
		return nil, errors.New("razorpay client not initialized")
	}
	if paymentID == "" {
		return nil, errors.New("payment id is required")
	}

	body, err := c.api.Payment.Fetch(paymentID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay payment fetch: %w", err)
	}

	return &Payment{
		ID:       stringField(body, "id"),
		OrderID:  stringField(body, "order_id"),
		Amount:   intField(body, "amount"),
		Currency: stringField(body, "currency"),
		Method:   stringField(body, "method"),
		Status:   stringField(body, "status"),
	}, nil
}

// FetchOrderNotes re-reads the notes bag stored on the remote order.
// The notes are the authoritative record of what the order was created for.
func (c *Client) FetchOrderNotes(ctx context.Context, orderID string) (map[string]string, error) {
	if c == nil || c.api == nil {
		return nil, errors.New("razorpay client not initialized")
	}
	if orderID == "" {
		return nil, errors.New("order id is required")
	}

	body, err := c.api.Order.Fetch(orderID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay order fetch: %w", err)
	}
	return notesField(body), nil
}

func stringField(body map[string]interface{}, key string) string {
	if body == nil {
		return ""
	}
	if v, ok := body[key].(string); ok {
		return v
	}
	return ""
}

func intField(body map[string]interface{}, key string) int64 {
	if body == nil {
		return 0
	}
	switch v := body[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}

func notesField(body map[string]interface{}) map[string]string {
	raw, ok := body["notes"].(map[string]interface{})
	if !ok {
		return nil
	}
	notes := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			notes[k] = s
		}
	}
	return notes
}
