// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/modhost/internal/repository"
	"codeberg.org/oliverandrich/modhost/internal/services/confirmation"
	"codeberg.org/oliverandrich/modhost/internal/services/identity"
	"codeberg.org/oliverandrich/modhost/internal/services/teams"
)

// Envelope is the uniform response body.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Context keys set by the session middleware.
const (
	UserIDKey    = "user_id"
	SessionIDKey = "session_id"
)

// currentUser returns the authenticated user id and session id, if any.
func currentUser(c echo.Context) (userID int64, sessionID string, ok bool) {
	id, idOK := c.Get(UserIDKey).(int64)
	sid, _ := c.Get(SessionIDKey).(string)
	return id, sid, idOK && id != 0
}

func respondOK(c echo.Context, message string) error {
	return c.JSON(http.StatusOK, Envelope{Success: true, Message: message})
}

func authRequired(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, Envelope{Success: false, Message: "authentication required"})
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, Envelope{Success: false, Message: message})
}

// fail maps service errors onto the canonical outcomes. Anything unmapped is
// an infrastructure failure and renders as a generic server error.
func fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, confirmation.ErrNotFound),
		errors.Is(err, repository.ErrNotFound),
		errors.Is(err, teams.ErrNotMember),
		errors.Is(err, identity.ErrNotLinked):
		return c.JSON(http.StatusNotFound, Envelope{Success: false, Message: "not found"})

	case errors.Is(err, confirmation.ErrInvalidOrExpired):
		return c.JSON(http.StatusBadRequest, Envelope{Success: false, Message: "invalid or expired code"})

	case errors.Is(err, confirmation.ErrInvalidState),
		errors.Is(err, confirmation.ErrPasswordMismatch),
		errors.Is(err, identity.ErrLastLoginMethod),
		errors.Is(err, identity.ErrInvalidProfile),
		errors.Is(err, teams.ErrNoInvite),
		errors.Is(err, teams.ErrOwnerImmutable):
		return c.JSON(http.StatusBadRequest, Envelope{Success: false, Message: err.Error()})

	case errors.Is(err, identity.ErrAlreadyLinked),
		errors.Is(err, identity.ErrEmailInUse),
		errors.Is(err, identity.ErrProviderTaken),
		errors.Is(err, teams.ErrAlreadyMember):
		return c.JSON(http.StatusConflict, Envelope{Success: false, Message: err.Error()})

	case errors.Is(err, teams.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, Envelope{Success: false, Message: err.Error()})
	}

	slog.Error("request_failed", "error", err)
	return c.JSON(http.StatusInternalServerError, Envelope{Success: false, Message: "internal server error"})
}
