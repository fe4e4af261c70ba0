// Package enrichment fetches third-party market data for a newly created
// property. Enrichment is non-critical: callers treat any error as
// recoverable.
package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/johndauphine/propfolio/internal/config"
	"github.com/shopspring/decimal"
)

// MarketData is the enrichment payload attached to a property.
type MarketData struct {
	PropertyID     string          `json:"property_id"`
	EstimatedValue decimal.Decimal `json:"estimated_value"`
	ValueLow       decimal.Decimal `json:"value_low"`
	ValueHigh      decimal.Decimal `json:"value_high"`
	RentEstimate   decimal.Decimal `json:"rent_estimate"`
	Comparables    int             `json:"comparables"`
	FetchedAt      time.Time       `json:"fetched_at"`
}

// GrossYield returns annual rent over estimated value, or zero when the
// value is unknown.
func (m *MarketData) GrossYield() decimal.Decimal {
	if m == nil || m.EstimatedValue.IsZero() {
		return decimal.Zero
	}
	return m.RentEstimate.Mul(decimal.NewFromInt(12)).Div(m.EstimatedValue)
}

// Client talks to the market-data provider.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a market-data client.
func New(cfg *config.EnrichmentConfig) *Client {
	if cfg == nil {
		cfg = &config.EnrichmentConfig{}
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	hc := &http.Client{Timeout: timeout}
	if cfg.Cache {
		hc.Transport = &dailyCache{base: http.DefaultTransport}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: hc,
	}
}

// IsEnabled returns true when a provider URL is configured
func (c *Client) IsEnabled() bool {
	return c.baseURL != ""
}

// FetchEnrichment returns market data for the given property id.
func (c *Client) FetchEnrichment(ctx context.Context, propertyID string) (*MarketData, error) {
	if !c.IsEnabled() {
		return nil, fmt.Errorf("enrichment provider not configured")
	}
	if propertyID == "" {
		return nil, fmt.Errorf("property id is required")
	}

	addr := fmt.Sprintf("%s/properties/%s/market-data?fmt=json", c.baseURL, url.PathEscape(propertyID))
	if c.apiKey != "" {
		addr += "&api_token=" + url.QueryEscape(c.apiKey)
	}

	var data MarketData
	if err := jget(ctx, c.httpClient, addr, &data); err != nil {
		return nil, fmt.Errorf("fetching market data for %s: %w", propertyID, err)
	}
	if data.PropertyID == "" {
		data.PropertyID = propertyID
	}
	return &data, nil
}

// jget performs an HTTP GET request and unmarshals the JSON response into data.
func jget(ctx context.Context, client *http.Client, addr string, data interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cannot http GET %v%v: %v", resp.Request.URL.Host, resp.Request.URL.Path, resp.Status)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return err
	}
	return json.Unmarshal(buf.Bytes(), data)
}
