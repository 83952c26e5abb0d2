package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
)

func TestSlackProvider_Send(t *testing.T) {
	var payload map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := NewSlackProvider(server.Client())
	err := p.Send(context.Background(), map[string]string{"webhook_url": server.URL},
		domain.Message{Subject: "Bills due", Body: "Rent"})

	require.NoError(t, err)
	assert.Equal(t, "*Bills due*\nRent", payload["text"])
}

func TestSlackProvider_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("invalid_payload"))
	}))
	defer server.Close()

	p := NewSlackProvider(server.Client())
	err := p.Send(context.Background(), map[string]string{"webhook_url": server.URL}, domain.Message{})

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Contains(t, err.Error(), "invalid_payload")
}

func TestSlackProvider_MissingWebhook(t *testing.T) {
	p := NewSlackProvider(http.DefaultClient)
	err := p.Send(context.Background(), map[string]string{}, domain.Message{})
	assert.ErrorIs(t, err, domain.ErrMissingCredential)
}

func TestDiscordProvider_Send(t *testing.T) {
	var payload map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	p := NewDiscordProvider(server.Client())
	err := p.Send(context.Background(),
		map[string]string{"webhook_url": server.URL, "username": "BillPilot"},
		domain.Message{Subject: "Overdue", Body: strings.Repeat("x", 3000)})

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(payload["content"], "**Overdue**\n"))
	assert.LessOrEqual(t, len([]rune(payload["content"])), discordContentLimit)
	assert.Equal(t, "BillPilot", payload["username"])
}

func TestPushoverProvider_Send(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "app-token", r.PostForm.Get("token"))
		assert.Equal(t, "user-key", r.PostForm.Get("user"))
		assert.Equal(t, "Weekly summary", r.PostForm.Get("title"))
		assert.Equal(t, "3 bills", r.PostForm.Get("message"))
		assert.Equal(t, "phone", r.PostForm.Get("device"))
		_, _ = w.Write([]byte(`{"status":1}`))
	}))
	defer server.Close()

	p := NewPushoverProvider(server.Client(), server.URL)
	err := p.Send(context.Background(),
		map[string]string{"token": "app-token", "user": "user-key", "device": "phone"},
		domain.Message{Subject: "Weekly summary", Body: "3 bills"})

	require.NoError(t, err)
}

func TestPushoverProvider_MissingUser(t *testing.T) {
	p := NewPushoverProvider(http.DefaultClient, "")
	err := p.Send(context.Background(), map[string]string{"token": "t"}, domain.Message{})

	assert.ErrorIs(t, err, domain.ErrMissingCredential)
	assert.Equal(t, PushoverAPIURL, p.endpoint)
}

func TestWebhook_HonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	p := NewSlackProvider(server.Client())
	err := p.Send(ctx, map[string]string{"webhook_url": server.URL}, domain.Message{})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEmailProvider_Settings(t *testing.T) {
	p := NewEmailProvider(SMTPConfig{Host: "smtp.example.com", From: "bills@example.com"})

	cfg, to, err := p.settings(map[string]string{"to": "owner@example.com", "port": "2525"})

	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", to)
	assert.Equal(t, "smtp.example.com", cfg.Host)
	assert.Equal(t, "2525", cfg.Port)
	assert.Equal(t, "bills@example.com", cfg.From)
}

func TestEmailProvider_MissingRecipientOrHost(t *testing.T) {
	_, _, err := NewEmailProvider(SMTPConfig{Host: "smtp.example.com"}).settings(map[string]string{})
	assert.ErrorIs(t, err, domain.ErrMissingCredential)

	_, _, err = NewEmailProvider(SMTPConfig{}).settings(map[string]string{"to": "a@example.com"})
	assert.ErrorIs(t, err, domain.ErrMissingCredential)
}

func TestBuildMessage(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	raw := string(buildMessage("from@example.com", "to@example.com",
		domain.Message{Subject: "Due\nsoon", Body: "line1\nline2"}, now))

	assert.Contains(t, raw, "Subject: Due soon\r\n")
	assert.Contains(t, raw, "To: to@example.com\r\n")
	assert.Contains(t, raw, "\r\n\r\nline1\r\nline2\r\n")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
}
