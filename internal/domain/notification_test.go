package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProviderType(t *testing.T) {
	p, err := ParseProviderType("slack")
	require.NoError(t, err)
	assert.Equal(t, ProviderSlack, p)

	_, err = ParseProviderType("sms")
	assert.ErrorIs(t, err, ErrInvalidProviderType)
}

func TestParseNotificationType(t *testing.T) {
	n, err := ParseNotificationType("weekly_summary")
	require.NoError(t, err)
	assert.Equal(t, NotificationWeeklySummary, n)

	_, err = ParseNotificationType("DAILY_SUMMARY")
	assert.ErrorIs(t, err, ErrInvalidNotificationType)
}

func TestTypeConfig_DaysBefore(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    int
		wantErr bool
	}{
		{"unset uses default", nil, DefaultDaysBefore, false},
		{"json number", float64(5), 5, false},
		{"int", 2, 2, false},
		{"string", " 7 ", 7, false},
		{"zero is same day", float64(0), 0, false},
		{"fraction", 1.5, 0, true},
		{"negative", -1, 0, true},
		{"too far", MaxDaysBefore + 1, 0, true},
		{"garbage", "soon", 0, true},
		{"wrong type", true, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &TypeConfig{Type: NotificationBillDue, Settings: map[string]any{}}
			if tt.value != nil {
				cfg.Settings[SettingDaysBefore] = tt.value
			}

			got, err := cfg.DaysBefore()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSettings)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProviderConfig_Validate(t *testing.T) {
	pushover := &ProviderConfig{Type: ProviderPushover, Credentials: map[string]string{"token": "abc"}}
	assert.ErrorIs(t, pushover.Validate(), ErrMissingCredential)

	pushover.Credentials["user"] = "u1"
	assert.NoError(t, pushover.Validate())

	email := &ProviderConfig{Type: ProviderEmail}
	assert.NoError(t, email.Validate())

	slack := &ProviderConfig{Type: ProviderSlack, Credentials: map[string]string{"webhook_url": "  "}}
	assert.ErrorIs(t, slack.Validate(), ErrMissingCredential)
}

func TestTypeConfig_Validate(t *testing.T) {
	cfg := &TypeConfig{Type: NotificationBillOverdue, Providers: []ProviderType{ProviderSlack, "FAX"}}
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidProviderType)

	due := &TypeConfig{Type: NotificationBillDue, Settings: map[string]any{SettingDaysBefore: "x"}}
	assert.ErrorIs(t, due.Validate(), ErrInvalidSettings)
}

func TestErrorClasses(t *testing.T) {
	assert.True(t, IsValidation(ErrInvalidAmount))
	assert.True(t, IsConflict(ErrLedgerMissing))
	assert.True(t, IsNotFound(ErrObligationNotFound))
	assert.False(t, IsNotFound(ErrAccessDenied))
	assert.False(t, IsValidation(ErrAlreadyPaid))
}
