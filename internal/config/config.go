// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"fmt"

	"github.com/urfave/cli/v3"
)

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	SMTP     SMTPConfig
	Security SecurityConfig
	Abuse    AbuseConfig
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string
	MaxBodySize int // in MB
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string
}

type SMTPConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host     string
	Port     int
	From     string
	FromName string
	Username string
	Password string
	TLS      bool
}

type SecurityConfig struct { //nolint:govet // fieldalignment not critical for config structs
	CodeSecret      string // keyed-hash secret for confirmation codes
	SessionHashKey  string // at least 32 bytes, signs session cookies
	SessionBlockKey string // optional, 16/24/32 bytes, encrypts session cookies
	CookieName      string
	CookieSecure    bool
	SessionHours    int
}

type AbuseConfig struct {
	ChargeWindowSeconds int // refill interval of one charge
	Burst               int // charges tolerated at once per key
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			TLS:      cmd.Bool("smtp-tls"),
		},
		Security: SecurityConfig{
			CodeSecret:      cmd.String("code-secret"),
			SessionHashKey:  cmd.String("session-hash-key"),
			SessionBlockKey: cmd.String("session-block-key"),
			CookieName:      cmd.String("cookie-name"),
			CookieSecure:    cmd.Bool("cookie-secure"),
			SessionHours:    int(cmd.Int("session-hours")),
		},
		Abuse: AbuseConfig{
			ChargeWindowSeconds: int(cmd.Int("abuse-charge-window")),
			Burst:               int(cmd.Int("abuse-burst")),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}

	return cfg
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port

	scheme := "http"
	if cfg.Security.CookieSecure {
		scheme = "https"
	}

	// Hide default ports in URL
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}
