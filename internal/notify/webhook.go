package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
)

const (
	slackTextLimit      = 3000
	discordContentLimit = 2000
)

// SlackProvider posts to a Slack incoming webhook
type SlackProvider struct {
	client *http.Client
}

func NewSlackProvider(client *http.Client) *SlackProvider {
	return &SlackProvider{client: client}
}

func (p *SlackProvider) Type() domain.ProviderType { return domain.ProviderSlack }

// Send requires credentials["webhook_url"]
func (p *SlackProvider) Send(ctx context.Context, credentials map[string]string, msg domain.Message) error {
	url, err := credential(credentials, "webhook_url")
	if err != nil {
		return err
	}
	text := truncate(fmt.Sprintf("*%s*\n%s", msg.Subject, msg.Body), slackTextLimit)
	return postJSON(ctx, p.client, url, map[string]string{"text": text})
}

// DiscordProvider posts to a Discord channel webhook
type DiscordProvider struct {
	client *http.Client
}

func NewDiscordProvider(client *http.Client) *DiscordProvider {
	return &DiscordProvider{client: client}
}

func (p *DiscordProvider) Type() domain.ProviderType { return domain.ProviderDiscord }

// Send requires credentials["webhook_url"]; credentials["username"] overrides the bot name
func (p *DiscordProvider) Send(ctx context.Context, credentials map[string]string, msg domain.Message) error {
	url, err := credential(credentials, "webhook_url")
	if err != nil {
		return err
	}
	payload := map[string]string{
		"content": truncate(fmt.Sprintf("**%s**\n%s", msg.Subject, msg.Body), discordContentLimit),
	}
	if username := credentials["username"]; username != "" {
		payload["username"] = username
	}
	return postJSON(ctx, p.client, url, payload)
}
