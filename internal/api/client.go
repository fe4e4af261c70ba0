// Package api is the HTTP client for the property persistence API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/johndauphine/propfolio/internal/config"
	"github.com/johndauphine/propfolio/internal/logging"
	"github.com/johndauphine/propfolio/internal/property"
	"github.com/johndauphine/propfolio/internal/wizard"
)

// ErrUnauthorized is returned when the API rejects the token.
var ErrUnauthorized = errors.New("api rejected credentials")

// StatusError is a non-2xx API response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api returned status %d", e.Status)
	}
	return fmt.Sprintf("api returned status %d: %s", e.Status, e.Body)
}

// Client sends requests to the property API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates an API client.
func New(cfg *config.APIConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// do sends body as JSON and decodes a 2xx response into out. A 422 response
// yields errNotReady.
func (c *Client) do(ctx context.Context, method, path, idempotencyKey string, body, out any) error {
	var rd io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		rd = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return errNotReady
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

var errNotReady = errors.New("api: draft not ready")

type saveRequest struct {
	Draft            *property.Draft `json:"draft"`
	AddressConfirmed bool            `json:"address_confirmed"`
}

type saveResponse struct {
	ID string `json:"id"`
}

type completeResponse struct {
	Completed bool `json:"completed"`
}

// Onboarding persists one wizard session. The first save creates the
// property; later saves update it.
type Onboarding struct {
	client *Client

	mu        sync.Mutex
	id        string
	createKey string
}

// NewOnboarding starts a session. id resumes an existing draft property.
func (c *Client) NewOnboarding(id string) *Onboarding {
	return &Onboarding{client: c, id: id}
}

// PropertyID returns the id assigned by the first successful save.
func (o *Onboarding) PropertyID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.id
}

// SaveStep creates or updates the property. A 422 response or an empty id
// yields "" with no error: the draft is not ready to be saved.
func (o *Onboarding) SaveStep(ctx context.Context, d *property.Draft, addressConfirmed bool) (string, error) {
	o.mu.Lock()
	id := o.id
	if id == "" && o.createKey == "" {
		o.createKey = uuid.NewString()
	}
	key := o.createKey
	o.mu.Unlock()

	req := saveRequest{Draft: d, AddressConfirmed: addressConfirmed}
	var resp saveResponse
	var err error
	if id == "" {
		// Retries of the create reuse the key so the API never creates twice.
		err = o.client.do(ctx, http.MethodPost, "/api/properties", key, req, &resp)
	} else {
		err = o.client.do(ctx, http.MethodPut, "/api/properties/"+url.PathEscape(id), uuid.NewString(), req, &resp)
		if err == nil && resp.ID == "" {
			resp.ID = id
		}
	}
	if errors.Is(err, errNotReady) {
		logging.Debug("property draft not ready to save")
		return "", nil
	}
	if err != nil {
		return "", err
	}

	if resp.ID != "" {
		o.mu.Lock()
		o.id = resp.ID
		o.createKey = ""
		o.mu.Unlock()
	}
	return resp.ID, nil
}

// CompleteWizard marks the property onboarding complete. Without a saved
// property it returns false.
func (o *Onboarding) CompleteWizard(ctx context.Context, d *property.Draft, addressConfirmed bool) (bool, error) {
	id := o.PropertyID()
	if id == "" {
		return false, nil
	}

	var resp completeResponse
	err := o.client.do(ctx, http.MethodPost, "/api/properties/"+url.PathEscape(id)+"/complete", uuid.NewString(),
		saveRequest{Draft: d, AddressConfirmed: addressConfirmed}, &resp)
	if errors.Is(err, errNotReady) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return resp.Completed, nil
}

var _ wizard.Persistence[*property.Draft] = (*Onboarding)(nil)
