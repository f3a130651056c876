package external

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// CardGateway talks to the external card payment gateway. The flow is
// redirect-based: Init registers the payment and returns a URL the buyer is
// sent to; confirmation is asynchronous and observed via Check.
type CardGateway struct {
	baseURL    string
	merchantID string
	secret     string
	httpClient *http.Client
}

type GatewayConfig struct {
	BaseURL    string
	MerchantID string
	Secret     string
	Timeout    time.Duration
}

type GatewayInitRequest struct {
	MerchantID  string `json:"merchantId"`
	Token       string `json:"token"`
	Amount      string `json:"amount"`
	OrderID     string `json:"orderId"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
}

type GatewayInitResponse struct {
	Success    bool   `json:"success"`
	PaymentID  string `json:"paymentId"`
	OrderID    string `json:"orderId"`
	Status     string `json:"status"`
	PaymentURL string `json:"paymentURL"`
	ExpiresAt  string `json:"expiresAt"`
}

type GatewayCheckRequest struct {
	MerchantID string `json:"merchantId"`
	Token      string `json:"token"`
	PaymentID  string `json:"paymentId"`
}

type GatewayCheckResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	OrderID string `json:"orderId"`
}

// Gateway payment statuses
const (
	GatewayStatusConfirmed = "CONFIRMED"
	GatewayStatusPending   = "PENDING"
	GatewayStatusRejected  = "REJECTED"
)

func NewCardGateway(cfg GatewayConfig) *CardGateway {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &CardGateway{
		baseURL:    cfg.BaseURL,
		merchantID: cfg.MerchantID,
		secret:     cfg.Secret,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// generateToken signs a request: parameters sorted alphabetically,
// concatenated and hashed with the shared secret.
func (g *CardGateway) generateToken(params map[string]string) string {
	params["MerchantId"] = g.merchantID
	params["Secret"] = g.secret

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var tokenString string
	for _, key := range keys {
		tokenString += params[key]
	}

	hash := sha256.Sum256([]byte(tokenString))
	return hex.EncodeToString(hash[:])
}

func (g *CardGateway) Init(ctx context.Context, amount, orderID, currency, description string) (*GatewayInitResponse, error) {
	token := g.generateToken(map[string]string{
		"Amount":   amount,
		"Currency": currency,
		"OrderId":  orderID,
	})

	req := GatewayInitRequest{
		MerchantID:  g.merchantID,
		Token:       token,
		Amount:      amount,
		OrderID:     orderID,
		Currency:    currency,
		Description: description,
	}

	var result GatewayInitResponse
	if err := g.post(ctx, "/api/v1/payments/init", req, &result); err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("gateway init failed for order %s", orderID)
	}

	return &result, nil
}

// Check queries the gateway for the payment's current status. A PENDING
// status is expected while the buyer is still on the gateway side.
func (g *CardGateway) Check(ctx context.Context, paymentID string) (*GatewayCheckResponse, error) {
	token := g.generateToken(map[string]string{
		"PaymentId": paymentID,
	})

	req := GatewayCheckRequest{
		MerchantID: g.merchantID,
		Token:      token,
		PaymentID:  paymentID,
	}

	var result GatewayCheckResponse
	if err := g.post(ctx, "/api/v1/payments/check", req, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

func (g *CardGateway) Cancel(ctx context.Context, paymentID, reason string) error {
	token := g.generateToken(map[string]string{
		"PaymentId": paymentID,
	})

	req := map[string]any{
		"merchantId": g.merchantID,
		"token":      token,
		"paymentId":  paymentID,
		"reason":     reason,
	}

	return g.post(ctx, "/api/v1/payments/cancel", req, nil)
}

func (g *CardGateway) post(ctx context.Context, path string, body, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway request %s: unexpected status code %d", path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
