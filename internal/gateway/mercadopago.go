// Package gateway talks to the Mercado Pago checkout API: creating payment
// preferences (intents with redirect URLs) and fetching payment state for
// webhook reconciliation. Amounts cross the wire as decimal pesos; the rest
// of the service keeps centavos.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

const DefaultBaseURL = "https://api.mercadopago.com"

// PreferenceItem is one purchasable line in a payment preference.
type PreferenceItem struct {
	Title       string
	Description string
	Quantity    int
	UnitPrice   int64 // centavos
}

// BackURLs are the redirect targets after the hosted checkout.
type BackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

// PreferenceRequest describes the payment intent to create.
type PreferenceRequest struct {
	Items             []PreferenceItem
	ExternalReference string
	PayerEmail        string
	BackURLs          BackURLs
	NotificationURL   string
}

// Preference is the created payment intent.
type Preference struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

// Payment is the gateway's view of a payment, fetched during webhook
// reconciliation.
type Payment struct {
	ID                string
	Status            string
	ExternalReference string
	PayerEmail        string
	Amount            int64 // centavos
}

type Client struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
}

// NewClient creates a gateway client.
func NewClient(baseURL, accessToken string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		baseURL:     baseURL,
		accessToken: accessToken,
	}
}

type wireItem struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	CurrencyID  string  `json:"currency_id"`
}

type wirePreferenceRequest struct {
	Items             []wireItem        `json:"items"`
	BackURLs          BackURLs          `json:"back_urls"`
	AutoReturn        string            `json:"auto_return"`
	NotificationURL   string            `json:"notification_url,omitempty"`
	ExternalReference string            `json:"external_reference,omitempty"`
	Payer             map[string]string `json:"payer,omitempty"`
}

type wirePayment struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	ExternalReference string      `json:"external_reference"`
	TransactionAmount float64     `json:"transaction_amount"`
	Payer             struct {
		Email string `json:"email"`
	} `json:"payer"`
}

// CreatePreference creates a payment preference and returns the redirect
// (init point) URL the customer is sent to.
func (c *Client) CreatePreference(ctx context.Context, req *PreferenceRequest) (*Preference, error) {
	body := wirePreferenceRequest{
		Items:             make([]wireItem, 0, len(req.Items)),
		BackURLs:          req.BackURLs,
		AutoReturn:        "approved",
		NotificationURL:   req.NotificationURL,
		ExternalReference: req.ExternalReference,
	}
	for _, item := range req.Items {
		body.Items = append(body.Items, wireItem{
			Title:       item.Title,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   float64(item.UnitPrice) / 100,
			CurrencyID:  "ARS",
		})
	}
	if req.PayerEmail != "" {
		body.Payer = map[string]string{"email": req.PayerEmail}
	}

	var pref Preference
	if err := c.do(ctx, http.MethodPost, "/checkout/preferences", body, &pref); err != nil {
		return nil, fmt.Errorf("failed to create preference: %w", err)
	}
	return &pref, nil
}

// GetPayment fetches a payment by the ID delivered in a webhook.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var wire wirePayment
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+paymentID, nil, &wire); err != nil {
		return nil, fmt.Errorf("failed to fetch payment %s: %w", paymentID, err)
	}
	return &Payment{
		ID:                wire.ID.String(),
		Status:            wire.Status,
		ExternalReference: wire.ExternalReference,
		PayerEmail:        wire.Payer.Email,
		// Round, don't truncate: 19.99 * 100 is 1998.999... in float64.
		Amount:            int64(math.Round(wire.TransactionAmount * 100)),
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, payload)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
