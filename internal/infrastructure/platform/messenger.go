// Package platform holds the outbound half of the chat-platform adapter
// seam. The adapter process owns the actual chat transport; this side only
// hands it normalized messages over HTTP.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/clanforge/clan-registry/internal/core/ports"
)

const requestTimeout = 10 * time.Second

// SecretHeader authenticates both directions of the adapter seam.
const SecretHeader = "X-Adapter-Secret"

// HTTPMessenger posts outbound messages to the platform adapter.
type HTTPMessenger struct {
	client  *http.Client
	baseURL string
	secret  string
}

func NewHTTPMessenger(baseURL, secret string) *HTTPMessenger {
	return &HTTPMessenger{
		client:  &http.Client{Timeout: requestTimeout},
		baseURL: baseURL,
		secret:  secret,
	}
}

func (m *HTTPMessenger) Send(ctx context.Context, msg ports.OutboundMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("messenger: encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("messenger: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SecretHeader, m.secret)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("messenger: send: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("messenger: send: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// LogMessenger writes outbound messages to the log instead of delivering
// them. Used when no adapter URL is configured (local runs).
type LogMessenger struct {
	log zerolog.Logger
}

func NewLogMessenger(log zerolog.Logger) *LogMessenger {
	return &LogMessenger{log: log}
}

func (m *LogMessenger) Send(ctx context.Context, msg ports.OutboundMessage) error {
	m.log.Info().Int64("chat", msg.ChatID).Str("text", msg.Text).Msg("outbound message (no adapter configured)")
	return nil
}
