// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/modhost/internal/models"
	"codeberg.org/oliverandrich/modhost/internal/services/identity"
)

// ListIdentities returns the caller's linked provider identities.
func (h *Handlers) ListIdentities(c echo.Context) error {
	userID, _, ok := currentUser(c)
	if !ok {
		return authRequired(c)
	}

	identities, err := h.identities.List(c.Request().Context(), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":    true,
		"identities": identities,
	})
}

// LinkIdentityRequest is the resolved provider profile. In production it is
// produced by the OAuth callback, not supplied by the end user directly.
type LinkIdentityRequest struct {
	Provider      models.Provider `json:"provider"`
	AccountID     string          `json:"account_id"`
	Email         string          `json:"email"`
	EmailVerified bool            `json:"email_verified"`
	AccessToken   string          `json:"access_token"`
	RefreshToken  string          `json:"refresh_token"`
	AuthType      string          `json:"auth_type"`
}

// LinkIdentity attaches a provider identity to the caller's account.
func (h *Handlers) LinkIdentity(c echo.Context) error {
	userID, _, ok := currentUser(c)
	if !ok {
		return authRequired(c)
	}

	var req LinkIdentityRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	_, err := h.identities.Link(c.Request().Context(), userID, identity.ProviderProfile{
		Provider:      req.Provider,
		AccountID:     req.AccountID,
		Email:         req.Email,
		EmailVerified: req.EmailVerified,
		AccessToken:   req.AccessToken,
		RefreshToken:  req.RefreshToken,
		AuthType:      req.AuthType,
	})
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "identity linked")
}

// UnlinkIdentity detaches the caller's identity for one provider.
func (h *Handlers) UnlinkIdentity(c echo.Context) error {
	userID, _, ok := currentUser(c)
	if !ok {
		return authRequired(c)
	}

	provider := models.Provider(c.Param("provider"))
	if err := h.identities.Unlink(c.Request().Context(), userID, provider); err != nil {
		return fail(c, err)
	}
	return respondOK(c, "identity unlinked")
}
