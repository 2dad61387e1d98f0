package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yndnr/aggregator/internal/infra/buildinfo"
	"github.com/yndnr/aggregator/internal/storage/checkpoint"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 10 * time.Second

// HTTPClient queries a running aggregator.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client for addr. A missing scheme means http.
func NewHTTPClient(addr string) *HTTPClient {
	baseURL := strings.TrimRight(addr, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	return &HTTPClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// BaseURL returns the base URL of the client.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent())
	req.Header.Set("Accept", "application/json")
	return c.client.Do(req)
}

// Health is the answer of /healthz.
type Health struct {
	Status     string `json:"status"`
	StatusCode int    `json:"-"`
}

// ShuttingDown reports whether the worker has begun shutdown.
func (h Health) ShuttingDown() bool {
	return h.StatusCode == http.StatusServiceUnavailable
}

// Health reads /healthz. A 503 is a valid answer, not an error.
func (c *HTTPClient) Health(ctx context.Context) (Health, error) {
	resp, err := c.Get(ctx, "/healthz")
	if err != nil {
		return Health{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	h := Health{StatusCode: resp.StatusCode}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return h, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return h, fmt.Errorf("parse response: %w", err)
	}
	return h, nil
}

// Checkpoints reads /checkpoints.
func (c *HTTPClient) Checkpoints(ctx context.Context) ([]checkpoint.Checkpoint, error) {
	resp, err := c.Get(ctx, "/checkpoints")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	var out []checkpoint.Checkpoint
	if err := ParseResponse(resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseResponse decodes a JSON body into target and closes it.
// Error statuses are turned into errors carrying the server message.
func ParseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("status %d: %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}
