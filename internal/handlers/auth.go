// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/modhost/internal/repository"
)

// LoginRequest is the request body for credential login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates with email and password and starts a session.
func (h *Handlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "email and password are required")
	}

	user, err := h.repo.GetUserByEmail(c.Request().Context(), req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Burn a hash comparison anyway so the miss is not observable
			// through timing.
			h.hasher.Verify(req.Password, nil)
			return c.JSON(http.StatusUnauthorized, Envelope{Success: false, Message: "invalid credentials"})
		}
		return fail(c, err)
	}

	if !h.hasher.Verify(req.Password, user.PasswordHash) {
		slog.Warn("login_failed", "user_id", user.ID)
		return c.JSON(http.StatusUnauthorized, Envelope{Success: false, Message: "invalid credentials"})
	}

	sess, err := h.sessions.Create(c.Request().Context(), user.ID)
	if err != nil {
		return fail(c, err)
	}
	if err := h.sessions.WriteCookie(c.Response(), sess); err != nil {
		return fail(c, err)
	}

	slog.Info("login_success", "user_id", user.ID)
	return respondOK(c, "logged in")
}

// Logout ends the current session and clears the cookie.
func (h *Handlers) Logout(c echo.Context) error {
	if _, sessionID, ok := currentUser(c); ok {
		if err := h.sessions.Delete(c.Request().Context(), sessionID); err != nil {
			return fail(c, err)
		}
	}
	h.sessions.ClearCookie(c.Response())
	return respondOK(c, "logged out")
}
