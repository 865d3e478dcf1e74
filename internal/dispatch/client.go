package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pixelfly/pixeltrack/internal/config"
)

// Client is the outbound collaborator delivering event payloads to the
// tracking endpoint.
type Client interface {
	Send(ctx context.Context, payload []byte) *SendResult
	Enabled() bool
}

type SendResult struct {
	StatusCode   int
	ResponseBody string
	LatencyMs    int64
	Error        string
}

// Success reports whether the send reached the endpoint and got a 2xx back.
func (r *SendResult) Success() bool {
	return r.Error == "" && r.StatusCode >= 200 && r.StatusCode < 300
}

// HTTPClient posts JSON payloads to the PixelFly tracking endpoint,
// authenticated with a pre-shared key. Without an API key the client is
// disabled and the whole server-side path stays inert.
type HTTPClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewHTTPClient(cfg config.PixelFlyConfig) *HTTPClient {
	return &HTTPClient{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (c *HTTPClient) Enabled() bool {
	return c.apiKey != ""
}

func (c *HTTPClient) Send(ctx context.Context, payload []byte) *SendResult {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return &SendResult{
			Error:     fmt.Sprintf("failed to create request: %v", err),
			LatencyMs: time.Since(start).Milliseconds(),
		}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "PixelTrack/1.0")
	req.Header.Set("X-PF-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return &SendResult{
			Error:     fmt.Sprintf("request failed: %v", err),
			LatencyMs: time.Since(start).Milliseconds(),
		}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	return &SendResult{
		StatusCode:   resp.StatusCode,
		ResponseBody: string(body),
		LatencyMs:    time.Since(start).Milliseconds(),
	}
}
