// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package email delivers confirmation codes over SMTP.
package email

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"codeberg.org/oliverandrich/modhost/internal/config"
	"codeberg.org/oliverandrich/modhost/internal/i18n"
	"codeberg.org/oliverandrich/modhost/internal/models"
)

// Service sends account-security emails. It implements the dispatcher
// contract of the confirmation workflow: one message per issued code.
type Service struct {
	cfg     *config.SMTPConfig
	baseURL string
}

// NewService creates a new email service.
func NewService(cfg *config.SMTPConfig, baseURL string) (*Service, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}

	return &Service{
		cfg:     cfg,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// SendConfirmation emails the raw confirmation code for the given action.
// The raw code is the only copy that ever leaves the process; the store only
// holds its keyed hash.
func (s *Service) SendConfirmation(ctx context.Context, recipient string, action models.ActionType, rawCode string, ttl time.Duration) error {
	confirmURL := fmt.Sprintf("%s/account/confirmation?code=%s", s.baseURL, url.QueryEscape(rawCode))

	subject := i18n.T(ctx, "email_"+string(action)+"_subject")
	body := i18n.TData(ctx, "email_"+string(action)+"_body", map[string]any{
		"URL":  confirmURL,
		"Code": rawCode,
		"TTL":  ttl.String(),
	})

	return s.send(recipient, subject, body)
}

// send sends an email via SMTP using go-mail.
func (s *Service) send(to, subject, body string) error {
	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(to); err != nil {
		return fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
	}

	// Implicit TLS (SSL) on 465, STARTTLS otherwise
	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSend(msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}
