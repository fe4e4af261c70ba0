package durable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/johndauphine/propfolio/internal/config"
	"github.com/johndauphine/propfolio/internal/learning"
)

// HTTP posts learning data to the application's migration endpoint.
type HTTP struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type transferRequest struct {
	AccountID string         `json:"account_id"`
	Batch     learning.Batch `json:"batch"`
}

// NewHTTP creates an API-backed gateway.
func NewHTTP(cfg *config.APIConfig) *HTTP {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTP{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Transfer POSTs the batch to /api/learning/migrate.
func (h *HTTP) Transfer(ctx context.Context, accountID string, b learning.Batch) (*learning.Result, error) {
	payload, err := json.Marshal(transferRequest{AccountID: accountID, Batch: b})
	if err != nil {
		return nil, fmt.Errorf("marshaling batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/api/learning/migrate", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.NewString())
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending batch: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("migration endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var res learning.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decoding migration result: %w", err)
	}
	return &res, nil
}

// Close releases idle connections.
func (h *HTTP) Close() {
	h.httpClient.CloseIdleConnections()
}

var _ Gateway = (*HTTP)(nil)
