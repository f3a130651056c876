package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"hornbill/internal/apperrors"
)

// WalletClient talks to the internal wallet ledger service. Order creation
// and debit are two separate calls with no transactional coupling: a debit
// may arrive before the order row is visible on the ledger side, which the
// service reports as NOT_FOUND_PAYMENT_ID.
type WalletClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type WalletConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type walletOrderRequest struct {
	PaymentID string `json:"payment_id"`
	BuyerID   int64  `json:"buyer_id"`
	SellerID  int64  `json:"seller_id"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
}

type walletDebitRequest struct {
	PaymentID string `json:"payment_id"`
	PIN       string `json:"pin"`
}

type walletResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type walletAccountResponse struct {
	Exists bool `json:"exists"`
	Funded bool `json:"funded"`
}

// Wallet ledger response codes
const (
	walletCodeNotFoundPayment = "NOT_FOUND_PAYMENT_ID"
	walletCodeInvalidPIN      = "INVALID_PIN"
	walletCodeInsufficient    = "INSUFFICIENT_BALANCE"
)

func NewWalletClient(cfg WalletConfig) *WalletClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &WalletClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// CreateOrder pre-registers the payment order on the ledger side. The row
// becomes visible to Debit asynchronously.
func (w *WalletClient) CreateOrder(ctx context.Context, paymentID string, buyerID, sellerID int64, amount decimal.Decimal, currency string) error {
	req := walletOrderRequest{
		PaymentID: paymentID,
		BuyerID:   buyerID,
		SellerID:  sellerID,
		Amount:    amount.StringFixed(2),
		Currency:  currency,
	}

	var resp walletResponse
	if err := w.post(ctx, "/v1/orders", req, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("wallet order creation failed: %s", resp.Code)
	}
	return nil
}

// Debit charges the buyer's wallet for a previously created order.
// NOT_FOUND_PAYMENT_ID maps to the transient apperrors.ErrPaymentNotVisible;
// the caller retries with bounded backoff.
func (w *WalletClient) Debit(ctx context.Context, paymentID, pin string) error {
	req := walletDebitRequest{
		PaymentID: paymentID,
		PIN:       pin,
	}

	var resp walletResponse
	if err := w.post(ctx, "/v1/debit", req, &resp); err != nil {
		return err
	}
	if resp.Success {
		return nil
	}

	switch resp.Code {
	case walletCodeNotFoundPayment:
		return apperrors.ErrPaymentNotVisible
	case walletCodeInvalidPIN, walletCodeInsufficient:
		return fmt.Errorf("%w: %s", apperrors.ErrPaymentFailed, resp.Code)
	default:
		return fmt.Errorf("%w: %s", apperrors.ErrPaymentFailed, resp.Code)
	}
}

// HasAccount reports whether the account holds a funded wallet able to
// receive value.
func (w *WalletClient) HasAccount(ctx context.Context, accountID int64) (bool, error) {
	url := fmt.Sprintf("%s/v1/accounts/%d", w.baseURL, accountID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+w.apiKey)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("wallet account lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("wallet account lookup: unexpected status code %d", resp.StatusCode)
	}

	var account walletAccountResponse
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}
	return account.Exists && account.Funded, nil
}

func (w *WalletClient) post(ctx context.Context, path string, body, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.apiKey)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("wallet request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wallet request %s: unexpected status code %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
