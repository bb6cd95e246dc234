package klaviyo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/restock-alert/restock-alert/internal/widget"
)

// RelayClient sends subscriptions to a restock-alert server, which holds
// the Klaviyo key and forwards them.
type RelayClient struct {
	url        string
	httpClient *http.Client
}

func NewRelayClient(serverURL string) *RelayClient {
	return &RelayClient{
		url:        strings.TrimRight(serverURL, "/") + "/api/subscribe",
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (r *RelayClient) Subscribe(ctx context.Context, req widget.SubscriptionRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusNoContent {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	return nil
}
