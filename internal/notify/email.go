package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
)

// SMTPConfig holds server-wide defaults; per-owner credentials override each field
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// EmailProvider sends plain-text mail over SMTP
type EmailProvider struct {
	defaults SMTPConfig
	now      func() time.Time
}

func NewEmailProvider(defaults SMTPConfig) *EmailProvider {
	if defaults.Port == "" {
		defaults.Port = "587"
	}
	return &EmailProvider{defaults: defaults, now: time.Now}
}

func (p *EmailProvider) Type() domain.ProviderType { return domain.ProviderEmail }

// settings merges owner credentials over the server defaults
func (p *EmailProvider) settings(credentials map[string]string) (SMTPConfig, string, error) {
	cfg := p.defaults
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(credentials[key]); v != "" {
			*dst = v
		}
	}
	override(&cfg.Host, "host")
	override(&cfg.Port, "port")
	override(&cfg.Username, "username")
	override(&cfg.Password, "password")
	override(&cfg.From, "from")

	if cfg.Host == "" {
		return cfg, "", fmt.Errorf("%w: %q", domain.ErrMissingCredential, "host")
	}
	to, err := credential(credentials, "to")
	if err != nil {
		return cfg, "", err
	}
	if cfg.From == "" {
		cfg.From = to
	}
	return cfg, to, nil
}

// Send requires a recipient in credentials["to"]
func (p *EmailProvider) Send(ctx context.Context, credentials map[string]string, msg domain.Message) error {
	cfg, to, err := p.settings(credentials)
	if err != nil {
		return err
	}

	client, err := p.dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	if cfg.Username != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}
	if err := client.Mail(cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(buildMessage(cfg.From, to, msg, p.now())); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	return client.Quit()
}

func (p *EmailProvider) dial(ctx context.Context, cfg SMTPConfig) (*smtp.Client, error) {
	addr := net.JoinHostPort(cfg.Host, cfg.Port)
	tlsConfig := &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}

	var conn net.Conn
	var err error
	if cfg.Port == "465" {
		conn, err = (&tls.Dialer{Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = (&net.Dialer{}).DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("smtp dial: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("smtp handshake: %w", err)
	}
	if ok, _ := client.Extension("STARTTLS"); ok && cfg.Port != "465" {
		if err := client.StartTLS(tlsConfig); err != nil {
			client.Close()
			return nil, fmt.Errorf("smtp starttls: %w", err)
		}
	}
	return client, nil
}

func buildMessage(from, to string, msg domain.Message, now time.Time) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + sanitizeHeader(msg.Subject) + "\r\n")
	b.WriteString("Date: " + now.UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(msg.Body, "\r\n", "\n"), "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
