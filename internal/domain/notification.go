package domain

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ProviderType identifies a delivery channel
type ProviderType string

const (
	ProviderEmail    ProviderType = "EMAIL"
	ProviderPushover ProviderType = "PUSHOVER"
	ProviderDiscord  ProviderType = "DISCORD"
	ProviderSlack    ProviderType = "SLACK"
)

// ProviderTypes lists the built-in providers
var ProviderTypes = []ProviderType{ProviderEmail, ProviderPushover, ProviderDiscord, ProviderSlack}

// ParseProviderType accepts any casing of a known provider type
func ParseProviderType(s string) (ProviderType, error) {
	p := ProviderType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range ProviderTypes {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidProviderType, s)
}

// RequiredCredentials lists the credential keys a provider cannot work without.
// EMAIL falls back to server SMTP settings and the owner's address, so nothing is mandatory.
func RequiredCredentials(p ProviderType) []string {
	switch p {
	case ProviderPushover:
		return []string{"token", "user"}
	case ProviderDiscord, ProviderSlack:
		return []string{"webhook_url"}
	default:
		return nil
	}
}

// NotificationType identifies a scheduled digest
type NotificationType string

const (
	NotificationBillDue        NotificationType = "BILL_DUE"
	NotificationBillOverdue    NotificationType = "BILL_OVERDUE"
	NotificationWeeklySummary  NotificationType = "WEEKLY_SUMMARY"
	NotificationMonthlySummary NotificationType = "MONTHLY_SUMMARY"
)

// NotificationTypes lists every scheduled digest
var NotificationTypes = []NotificationType{
	NotificationBillDue,
	NotificationBillOverdue,
	NotificationWeeklySummary,
	NotificationMonthlySummary,
}

// ParseNotificationType accepts any casing of a known notification type
func ParseNotificationType(s string) (NotificationType, error) {
	n := NotificationType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range NotificationTypes {
		if n == known {
			return n, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidNotificationType, s)
}

// Settings keys and bounds
const (
	SettingDaysBefore = "days_before"
	DefaultDaysBefore = 3
	MaxDaysBefore     = 60
)

// Message is what a provider delivers
type Message struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ProviderConfig holds one owner's settings for a delivery channel
type ProviderConfig struct {
	ID          int32             `json:"id"`
	OwnerID     int32             `json:"ownerId"`
	Type        ProviderType      `json:"providerType"`
	Enabled     bool              `json:"enabled"`
	Credentials map[string]string `json:"credentials"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// Validate checks that every required credential is present
func (p *ProviderConfig) Validate() error {
	for _, key := range RequiredCredentials(p.Type) {
		if strings.TrimSpace(p.Credentials[key]) == "" {
			return fmt.Errorf("%w: %s requires %q", ErrMissingCredential, p.Type, key)
		}
	}
	return nil
}

// TypeConfig holds one owner's settings for a scheduled digest
type TypeConfig struct {
	ID        int32            `json:"id"`
	OwnerID   int32            `json:"ownerId"`
	Type      NotificationType `json:"type"`
	Enabled   bool             `json:"enabled"`
	Settings  map[string]any   `json:"settings"`
	Providers []ProviderType   `json:"providers"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// DaysBefore returns the BILL_DUE lookahead, defaulting when unset
func (c *TypeConfig) DaysBefore() (int, error) {
	raw, ok := c.Settings[SettingDaysBefore]
	if !ok || raw == nil {
		return DefaultDaysBefore, nil
	}

	var days int
	switch v := raw.(type) {
	case int:
		days = v
	case int32:
		days = int(v)
	case int64:
		days = int(v)
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("%w: %s must be a whole number", ErrInvalidSettings, SettingDaysBefore)
		}
		days = int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be a whole number", ErrInvalidSettings, SettingDaysBefore)
		}
		days = n
	default:
		return 0, fmt.Errorf("%w: %s has unsupported type %T", ErrInvalidSettings, SettingDaysBefore, raw)
	}

	if days < 0 || days > MaxDaysBefore {
		return 0, fmt.Errorf("%w: %s must be between 0 and %d", ErrInvalidSettings, SettingDaysBefore, MaxDaysBefore)
	}
	return days, nil
}

// Validate checks type-specific settings and linked providers
func (c *TypeConfig) Validate() error {
	if c.Type == NotificationBillDue {
		if _, err := c.DaysBefore(); err != nil {
			return err
		}
	}
	for _, p := range c.Providers {
		if _, err := ParseProviderType(string(p)); err != nil {
			return err
		}
	}
	return nil
}

// NotificationSettings is everything an owner configured for notifications
type NotificationSettings struct {
	Providers []*ProviderConfig `json:"providers"`
	Types     []*TypeConfig     `json:"types"`
}

type NotificationSettingsRepository interface {
	ListProviders(ctx context.Context, ownerID int32) ([]*ProviderConfig, error)
	GetProvider(ctx context.Context, ownerID int32, providerType ProviderType) (*ProviderConfig, error)
	UpsertProvider(ctx context.Context, cfg *ProviderConfig) (*ProviderConfig, error)
	ListTypes(ctx context.Context, ownerID int32) ([]*TypeConfig, error)
	UpsertType(ctx context.Context, cfg *TypeConfig) (*TypeConfig, error)
	ListEnabledByType(ctx context.Context, notificationType NotificationType) ([]*TypeConfig, error)
}
