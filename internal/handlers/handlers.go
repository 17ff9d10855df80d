// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package handlers exposes the account-security services as a thin JSON
// surface. All policy lives in the services; handlers only translate.
package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/modhost/internal/repository"
	"codeberg.org/oliverandrich/modhost/internal/services/confirmation"
	"codeberg.org/oliverandrich/modhost/internal/services/hashing"
	"codeberg.org/oliverandrich/modhost/internal/services/identity"
	"codeberg.org/oliverandrich/modhost/internal/services/session"
	"codeberg.org/oliverandrich/modhost/internal/services/teams"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	repo          *repository.Repository
	hasher        *hashing.Provider
	confirmations *confirmation.Service
	identities    *identity.Service
	teams         *teams.Service
	sessions      *session.Manager
}

// New creates a new Handlers instance.
func New(repo *repository.Repository, hasher *hashing.Provider, confirmations *confirmation.Service, identities *identity.Service, teamSvc *teams.Service, sessions *session.Manager) *Handlers {
	return &Handlers{
		repo:          repo,
		hasher:        hasher,
		confirmations: confirmations,
		identities:    identities,
		teams:         teamSvc,
		sessions:      sessions,
	}
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
