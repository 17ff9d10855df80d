// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/modhost/internal/models"
	"codeberg.org/oliverandrich/modhost/internal/services/confirmation"
)

// NewPasswordRequest asks for a confirmation code to add a first password.
type NewPasswordRequest struct {
	NewPassword string `json:"new_password"`
}

// RequestNewPassword issues a CONFIRM_NEW_PASSWORD token. The new password
// is hashed immediately; only the hash travels with the token.
func (h *Handlers) RequestNewPassword(c echo.Context) error {
	userID, _, ok := currentUser(c)
	if !ok {
		return authRequired(c)
	}

	var req NewPasswordRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if req.NewPassword == "" {
		return badRequest(c, "new_password is required")
	}

	hash, err := h.hasher.HashPassword(req.NewPassword)
	if err != nil {
		return fail(c, err)
	}

	if _, err := h.confirmations.Issue(c.Request().Context(), userID, models.ActionConfirmNewPassword, &hash); err != nil {
		return fail(c, err)
	}
	return respondOK(c, "confirmation email sent")
}

// ChangePasswordRequest asks for a password-change code by email.
type ChangePasswordRequest struct {
	Email string `json:"email"`
}

// RequestPasswordChange issues a CHANGE_ACCOUNT_PASSWORD token for the
// account owning the address. The response never reveals whether the
// address has an account.
func (h *Handlers) RequestPasswordChange(c echo.Context) error {
	var req ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if req.Email == "" {
		return badRequest(c, "email is required")
	}

	if err := h.confirmations.IssueForEmail(c.Request().Context(), req.Email); err != nil {
		return fail(c, err)
	}
	return respondOK(c, "if the address has an account, a confirmation email was sent")
}

// RequestAccountDeletion issues a DELETE_USER_ACCOUNT token.
func (h *Handlers) RequestAccountDeletion(c echo.Context) error {
	userID, _, ok := currentUser(c)
	if !ok {
		return authRequired(c)
	}

	if _, err := h.confirmations.Issue(c.Request().Context(), userID, models.ActionDeleteAccount, nil); err != nil {
		return fail(c, err)
	}
	return respondOK(c, "confirmation email sent")
}

// LookupConfirmation resolves a code to its action type so the client can
// render the matching confirmation step.
func (h *Handlers) LookupConfirmation(c echo.Context) error {
	code := c.QueryParam("code")
	if code == "" {
		return badRequest(c, "code is required")
	}

	action, err := h.confirmations.LookupType(c.Request().Context(), code)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(200, map[string]any{
		"success":     true,
		"action_type": action,
	})
}

// CancelConfirmationRequest carries the code to cancel.
type CancelConfirmationRequest struct {
	Code string `json:"code"`
}

// CancelConfirmation aborts a pending confirmation and clears every
// outstanding token of the same type.
func (h *Handlers) CancelConfirmation(c echo.Context) error {
	var req CancelConfirmationRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if err := h.confirmations.Cancel(c.Request().Context(), req.Code); err != nil {
		return fail(c, err)
	}
	return respondOK(c, "confirmation cancelled")
}

// ConfirmRequest carries the code plus the action-specific inputs.
type ConfirmRequest struct {
	Code            string            `json:"code"`
	ActionType      models.ActionType `json:"action_type"`
	NewPassword     string            `json:"new_password,omitempty"`
	ConfirmPassword string            `json:"confirm_password,omitempty"`
}

// Confirm executes the mutation a code gates.
func (h *Handlers) Confirm(c echo.Context) error {
	var req ConfirmRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if req.Code == "" || !models.KnownActionType(req.ActionType) {
		return badRequest(c, "code and a valid action_type are required")
	}

	_, sessionID, _ := currentUser(c)

	err := h.confirmations.Confirm(c.Request().Context(), req.Code, req.ActionType, confirmation.ConfirmArgs{
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
		KeepSessionID:   sessionID,
	})
	if err != nil {
		return fail(c, err)
	}

	// A deleted account has no sessions left to keep.
	if req.ActionType == models.ActionDeleteAccount {
		h.sessions.ClearCookie(c.Response())
	}
	return respondOK(c, "confirmed")
}
