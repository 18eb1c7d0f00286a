// Package translate schedules incremental machine translation for fused
// transcript segments: debounced for partials, immediate for committed
// text, batched and cached per target language.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrBatchFailed wraps any transport or service failure for a dispatched
// batch. Failures carry no partial results.
var ErrBatchFailed = errors.New("translation batch failed")

// Item is one text queued for translation.
type Item struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Result is one translated text from a batch response.
type Result struct {
	ID             string `json:"id"`
	TranslatedText string `json:"translatedText"`
}

type batchRequest struct {
	Texts          []Item `json:"texts"`
	TargetLanguage string `json:"targetLanguage"`
}

type batchResponse struct {
	Translations []Result `json:"translations"`
}

// Client dispatches batched translation requests to the service boundary.
type Client interface {
	TranslateBatch(ctx context.Context, items []Item, targetLanguage string) ([]Result, error)
}

// HTTPClient posts batches as JSON to a translation endpoint.
type HTTPClient struct {
	endpoint string
	client   *http.Client
}

// NewHTTPClient creates a client for the given endpoint.
func NewHTTPClient(endpoint string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// TranslateBatch sends one batched request and decodes the response.
func (c *HTTPClient) TranslateBatch(ctx context.Context, items []Item, targetLanguage string) ([]Result, error) {
	body, err := json.Marshal(batchRequest{Texts: items, TargetLanguage: targetLanguage})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrBatchFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBatchFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBatchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrBatchFailed, resp.StatusCode)
	}

	var out batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrBatchFailed, err)
	}
	return out.Translations, nil
}
