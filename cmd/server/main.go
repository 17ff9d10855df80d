// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"fmt"
	"os"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"

	"codeberg.org/oliverandrich/modhost/internal/server"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// sources creates a value source chain combining env vars and TOML config
func sources(envKey, tomlKey string, tomlSrc altsrc.Sourcer) cli.ValueSourceChain {
	chain := cli.EnvVars(envKey)
	chain.Chain = append(chain.Chain, toml.TOML(tomlKey, tomlSrc))
	return chain
}

func main() {
	var configFile string

	tomlSrc := altsrc.NewStringPtrSourcer(&configFile)

	cmd := &cli.Command{
		Name:    "modhost",
		Usage:   "ModHost account-security and access-control server",
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
		Flags: []cli.Flag{
			// Config file
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Value:       "config.toml",
				Usage:       "Path to configuration file",
				Destination: &configFile,
				Sources:     cli.EnvVars("CONFIG"),
			},

			// Server settings
			&cli.StringFlag{
				Name:    "host",
				Value:   "localhost",
				Usage:   "Server host",
				Sources: sources("HOST", "server.host", tomlSrc),
			},
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "Server port",
				Sources: sources("PORT", "server.port", tomlSrc),
			},
			&cli.StringFlag{
				Name:    "base-url",
				Usage:   "Base URL used in confirmation emails",
				Sources: sources("BASE_URL", "server.base_url", tomlSrc),
			},
			&cli.IntFlag{
				Name:    "max-body-size",
				Value:   2,
				Usage:   "Maximum request body size in MB",
				Sources: sources("MAX_BODY_SIZE", "server.max_body_size", tomlSrc),
			},

			// Database
			&cli.StringFlag{
				Name:    "database-dsn",
				Value:   "./data/modhost.db",
				Usage:   "SQLite database path",
				Sources: sources("DATABASE_DSN", "database.dsn", tomlSrc),
			},

			// SMTP
			&cli.StringFlag{
				Name:    "smtp-host",
				Value:   "localhost",
				Usage:   "SMTP server host",
				Sources: sources("SMTP_HOST", "smtp.host", tomlSrc),
			},
			&cli.IntFlag{
				Name:    "smtp-port",
				Value:   587,
				Usage:   "SMTP server port",
				Sources: sources("SMTP_PORT", "smtp.port", tomlSrc),
			},
			&cli.StringFlag{
				Name:    "smtp-from",
				Value:   "no-reply@localhost",
				Usage:   "From address for outgoing mail",
				Sources: sources("SMTP_FROM", "smtp.from", tomlSrc),
			},
			&cli.StringFlag{
				Name:    "smtp-from-name",
				Usage:   "Display name for outgoing mail",
				Sources: sources("SMTP_FROM_NAME", "smtp.from_name", tomlSrc),
			},
			&cli.StringFlag{
				Name:    "smtp-username",
				Usage:   "SMTP username",
				Sources: sources("SMTP_USERNAME", "smtp.username", tomlSrc),
			},
			&cli.StringFlag{
				Name:    "smtp-password",
				Usage:   "SMTP password",
				Sources: sources("SMTP_PASSWORD", "smtp.password", tomlSrc),
			},
			&cli.BoolFlag{
				Name:    "smtp-tls",
				Value:   true,
				Usage:   "Require TLS for SMTP",
				Sources: sources("SMTP_TLS", "smtp.tls", tomlSrc),
			},

			// Security
			&cli.StringFlag{
				Name:    "code-secret",
				Usage:   "Keyed-hash secret for confirmation codes",
				Sources: sources("CODE_SECRET", "security.code_secret", tomlSrc),
			},
			&cli.StringFlag{
				Name:    "session-hash-key",
				Usage:   "Key for signing session cookies (min 32 bytes)",
				Sources: sources("SESSION_HASH_KEY", "security.session_hash_key", tomlSrc),
			},
			&cli.StringFlag{
				Name:    "session-block-key",
				Usage:   "Optional key for encrypting session cookies",
				Sources: sources("SESSION_BLOCK_KEY", "security.session_block_key", tomlSrc),
			},
			&cli.StringFlag{
				Name:    "cookie-name",
				Value:   "modhost_session",
				Usage:   "Session cookie name",
				Sources: sources("COOKIE_NAME", "security.cookie_name", tomlSrc),
			},
			&cli.BoolFlag{
				Name:    "cookie-secure",
				Usage:   "HTTPS only cookie",
				Sources: sources("COOKIE_SECURE", "security.cookie_secure", tomlSrc),
			},
			&cli.IntFlag{
				Name:    "session-hours",
				Value:   720,
				Usage:   "Session lifetime in hours",
				Sources: sources("SESSION_HOURS", "security.session_hours", tomlSrc),
			},

			// Abuse guard
			&cli.IntFlag{
				Name:    "abuse-charge-window",
				Value:   60,
				Usage:   "Seconds until a spent abuse charge refills",
				Sources: sources("ABUSE_CHARGE_WINDOW", "abuse.charge_window", tomlSrc),
			},
			&cli.IntFlag{
				Name:    "abuse-burst",
				Value:   10,
				Usage:   "Abuse charges tolerated at once per client",
				Sources: sources("ABUSE_BURST", "abuse.burst", tomlSrc),
			},

			// Logging
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level: debug, info, warn, error",
				Sources: sources("LOG_LEVEL", "log.level", tomlSrc),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "text",
				Usage:   "Log format: text, json",
				Sources: sources("LOG_FORMAT", "log.format", tomlSrc),
			},
		},
		Action: server.Run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
