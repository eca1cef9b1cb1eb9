package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrNotConfigured = errors.New("messaging gateway is not configured")

// gateway posts JSON messages to an HTTP relay authenticated by API key.
type gateway struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

func newGateway(url, apiKey string, timeout time.Duration) gateway {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return gateway{
		url:        strings.TrimSpace(url),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (g gateway) configured() bool { return g.url != "" }

func (g gateway) post(ctx context.Context, payload any) error {
	if !g.configured() {
		return ErrNotConfigured
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("gateway status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
