// Package klaviyo submits back-in-stock sign-ups to Klaviyo's client API,
// either directly or through the restock-alert relay server.
package klaviyo

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

	"github.com/restock-alert/restock-alert/internal/widget"
)

const (
	DefaultBaseURL = "https://a.klaviyo.com"
	APIRevision    = "2024-10-15"

	contentType = "application/vnd.api+json"
)

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("klaviyo returned %d: %s", e.StatusCode, e.Body)
}

// Client talks to the public (company_id keyed) client endpoints.
type Client struct {
	publicAPIKey string
	baseURL      string
	httpClient   *http.Client
}

type ClientOption func(*Client)

func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(publicAPIKey string, opts ...ClientOption) *Client {
	c := &Client{
		publicAPIKey: publicAPIKey,
		baseURL:      DefaultBaseURL,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// --- JSON:API payloads ---

type document struct {
	Data resource `json:"data"`
}

type resource struct {
	Type          string                  `json:"type"`
	ID            string                  `json:"id,omitempty"`
	Attributes    map[string]any          `json:"attributes,omitempty"`
	Relationships map[string]relationship `json:"relationships,omitempty"`
}

type relationship struct {
	Data resource `json:"data"`
}

// CatalogVariantID is Klaviyo's id for a Shopify variant.
func CatalogVariantID(variantID string) string {
	return "$shopify:::$default:::" + variantID
}

// Subscribe creates the back-in-stock subscription and, when the shopper
// opted in and a list is set, an SMS marketing subscription.
func (c *Client) Subscribe(ctx context.Context, req widget.SubscriptionRequest) error {
	if c.publicAPIKey == "" {
		return widget.ErrNotConfigured
	}

	profile := document{Data: resource{
		Type:       "profile",
		Attributes: map[string]any{"phone_number": req.Phone},
	}}

	bis := document{Data: resource{
		Type: "back-in-stock-subscription",
		Attributes: map[string]any{
			"channels": []string{"SMS"},
			"profile":  profile,
		},
		Relationships: map[string]relationship{
			"variant": {Data: resource{Type: "catalog-variant", ID: CatalogVariantID(req.VariantID)}},
		},
	}}
	if err := c.post(ctx, "/client/back-in-stock-subscriptions/", bis); err != nil {
		return fmt.Errorf("failed to create back in stock subscription: %w", err)
	}

	if !req.SMSMarketingOptIn || req.ListID == "" {
		return nil
	}

	marketing := document{Data: resource{
		Type: "subscription",
		Attributes: map[string]any{
			"profile": document{Data: resource{
				Type: "profile",
				Attributes: map[string]any{
					"phone_number": req.Phone,
					"subscriptions": map[string]any{
						"sms": map[string]any{
							"marketing": map[string]string{"consent": "SUBSCRIBED"},
						},
					},
				},
			}},
		},
		Relationships: map[string]relationship{
			"list": {Data: resource{Type: "list", ID: req.ListID}},
		},
	}}
	if err := c.post(ctx, "/client/subscriptions/", marketing); err != nil {
		return fmt.Errorf("failed to create sms marketing subscription: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	endpoint := c.baseURL + path + "?company_id=" + url.QueryEscape(c.publicAPIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", contentType)
	httpReq.Header.Set("revision", APIRevision)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	return nil
}
