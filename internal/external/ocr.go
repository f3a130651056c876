package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// OCRClient talks to the document verification service that extracts
// identity records from uploaded family-book evidence.
type OCRClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type OCRConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// PersonRecord is one extracted identity line: holder name and the first
// six digits of the birth date (YYMMDD).
type PersonRecord struct {
	Name        string `json:"name"`
	BirthPrefix string `json:"birth_prefix"`
}

type ocrExtractRequest struct {
	EvidenceRef string `json:"evidence_ref"`
}

type ocrExtractResponse struct {
	Success bool           `json:"success"`
	Records []PersonRecord `json:"records"`
}

func NewOCRClient(cfg OCRConfig) *OCRClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &OCRClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Extract returns the identity records found in the referenced document.
func (o *OCRClient) Extract(ctx context.Context, evidenceRef string) ([]PersonRecord, error) {
	jsonBody, err := json.Marshal(ocrExtractRequest{EvidenceRef: evidenceRef})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/extract", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ocr extract: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ocr extract: unexpected status code %d", resp.StatusCode)
	}

	var result ocrExtractResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !result.Success {
		return nil, fmt.Errorf("ocr extract failed for %s", evidenceRef)
	}

	return result.Records, nil
}
