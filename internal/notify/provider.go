// Package notify delivers messages through independent providers.
package notify

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

	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
)

// Provider delivers one message through one channel. Implementations must honour ctx.
type Provider interface {
	Type() domain.ProviderType
	Send(ctx context.Context, credentials map[string]string, msg domain.Message) error
}

// ErrUnknownProvider is returned for a target no registered provider serves
var ErrUnknownProvider = errors.New("no provider registered for type")

// DefaultHTTPTimeout is the client-level ceiling for webhook calls
const DefaultHTTPTimeout = 15 * time.Second

// NewHTTPClient returns the client shared by the webhook providers
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: DefaultHTTPTimeout}
}

// StatusError is returned when a provider endpoint answers outside 2xx
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return do(client, req)
}

func do(client *http.Client, req *http.Request) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func credential(credentials map[string]string, key string) (string, error) {
	value := strings.TrimSpace(credentials[key])
	if value == "" {
		return "", fmt.Errorf("%w: %q", domain.ErrMissingCredential, key)
	}
	return value, nil
}

// truncate cuts s to at most n runes
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 1 {
		return string(runes[:n])
	}
	return string(runes[:n-1]) + "…"
}
