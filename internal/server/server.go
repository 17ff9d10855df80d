// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"

	"codeberg.org/oliverandrich/modhost/internal/abuse"
	"codeberg.org/oliverandrich/modhost/internal/config"
	"codeberg.org/oliverandrich/modhost/internal/database"
	"codeberg.org/oliverandrich/modhost/internal/handlers"
	"codeberg.org/oliverandrich/modhost/internal/i18n"
	"codeberg.org/oliverandrich/modhost/internal/repository"
	"codeberg.org/oliverandrich/modhost/internal/services/confirmation"
	"codeberg.org/oliverandrich/modhost/internal/services/email"
	"codeberg.org/oliverandrich/modhost/internal/services/hashing"
	"codeberg.org/oliverandrich/modhost/internal/services/identity"
	"codeberg.org/oliverandrich/modhost/internal/services/session"
	"codeberg.org/oliverandrich/modhost/internal/services/teams"
)

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	// Database (migrations run inside Open)
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	// i18n
	if initErr := i18n.Init(); initErr != nil {
		return fmt.Errorf("failed to init i18n: %w", initErr)
	}

	// Repository and services
	repo := repository.New(db)

	hasher, err := hashing.New(cfg.Security.CodeSecret)
	if err != nil {
		return fmt.Errorf("failed to init hashing: %w", err)
	}

	guard := abuse.NewLimiter(
		time.Duration(cfg.Abuse.ChargeWindowSeconds)*time.Second,
		cfg.Abuse.Burst,
	)

	mailer, err := email.NewService(&cfg.SMTP, cfg.Server.BaseURL)
	if err != nil {
		return fmt.Errorf("failed to init email service: %w", err)
	}

	sessions, err := session.New(
		repo,
		[]byte(cfg.Security.SessionHashKey),
		[]byte(cfg.Security.SessionBlockKey),
		cfg.Security.CookieName,
		time.Duration(cfg.Security.SessionHours)*time.Hour,
		cfg.Security.CookieSecure,
	)
	if err != nil {
		return fmt.Errorf("failed to init session manager: %w", err)
	}

	confirmations := confirmation.NewService(repo, hasher, mailer, sessions)
	identities := identity.NewService(repo, guard)
	teamSvc := teams.NewService(repo, guard)

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	setupMiddleware(e, cfg, sessions, guard)

	// Routes
	h := handlers.New(repo, hasher, confirmations, identities, teamSvc, sessions)
	setupRoutes(e, h)

	// Start server
	return startWithGracefulShutdown(e, cfg)
}

func setupRoutes(e *echo.Echo, h *handlers.Handlers) {
	e.GET("/health", h.Health)

	e.POST("/auth/login", h.Login)
	e.POST("/auth/logout", h.Logout)

	account := e.Group("/account")
	account.POST("/password/new", h.RequestNewPassword)
	account.POST("/password/change", h.RequestPasswordChange)
	account.POST("/delete", h.RequestAccountDeletion)
	account.GET("/confirmation", h.LookupConfirmation)
	account.POST("/confirmation/cancel", h.CancelConfirmation)
	account.POST("/confirmation/confirm", h.Confirm)
	account.GET("/identities", h.ListIdentities)
	account.POST("/identities", h.LinkIdentity)
	account.DELETE("/identities/:provider", h.UnlinkIdentity)

	team := e.Group("/teams/:team")
	team.GET("/members", h.ListTeamMembers)
	team.POST("/members", h.InviteMember)
	team.POST("/members/accept", h.AcceptInvite)
	team.PATCH("/members/:user", h.EditMember)
	team.DELETE("/members/:user", h.RemoveMember)
}

func startWithGracefulShutdown(e *echo.Echo, cfg *config.Config) error {
	errChan := make(chan error, 1)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		slog.Info("Server running", "url", cfg.Server.BaseURL)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
