package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
)

// PushoverAPIURL is the public message endpoint
const PushoverAPIURL = "https://api.pushover.net/1/messages.json"

const (
	pushoverTitleLimit   = 250
	pushoverMessageLimit = 1024
)

// PushoverProvider sends push notifications through the Pushover API
type PushoverProvider struct {
	client   *http.Client
	endpoint string
}

// NewPushoverProvider uses PushoverAPIURL when endpoint is empty
func NewPushoverProvider(client *http.Client, endpoint string) *PushoverProvider {
	if endpoint == "" {
		endpoint = PushoverAPIURL
	}
	return &PushoverProvider{client: client, endpoint: endpoint}
}

func (p *PushoverProvider) Type() domain.ProviderType { return domain.ProviderPushover }

// Send requires credentials["token"] and credentials["user"]; "device" and "priority" are optional
func (p *PushoverProvider) Send(ctx context.Context, credentials map[string]string, msg domain.Message) error {
	token, err := credential(credentials, "token")
	if err != nil {
		return err
	}
	user, err := credential(credentials, "user")
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("token", token)
	form.Set("user", user)
	form.Set("title", truncate(msg.Subject, pushoverTitleLimit))
	form.Set("message", truncate(msg.Body, pushoverMessageLimit))
	for _, key := range []string{"device", "priority"} {
		if value := credentials[key]; value != "" {
			form.Set(key, value)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return do(p.client, req)
}
