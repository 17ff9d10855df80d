// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/modhost/internal/models"
	"codeberg.org/oliverandrich/modhost/internal/services/teams"
)

func teamID(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("team"), 10, 64)
}

// ListTeamMembers lists a team's members with permissions redacted for
// viewers who are not accepted members.
func (h *Handlers) ListTeamMembers(c echo.Context) error {
	id, err := teamID(c)
	if err != nil {
		return badRequest(c, "invalid team id")
	}

	// An anonymous viewer is treated like any other non-member.
	viewerID, _, _ := currentUser(c)

	members, err := h.teams.ListMembers(c.Request().Context(), id, viewerID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"members": members,
	})
}

// InviteMemberRequest is the request body for inviting a member.
type InviteMemberRequest struct {
	UserID                  int64                          `json:"user_id"`
	Role                    string                         `json:"role"`
	Permissions             models.ProjectPermissions      `json:"permissions"`
	OrganizationPermissions models.OrganizationPermissions `json:"organization_permissions"`
}

// InviteMember adds a pending membership row.
func (h *Handlers) InviteMember(c echo.Context) error {
	id, err := teamID(c)
	if err != nil {
		return badRequest(c, "invalid team id")
	}
	actorID, _, okAuth := currentUser(c)
	if !okAuth {
		return authRequired(c)
	}

	var req InviteMemberRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if req.UserID == 0 {
		return badRequest(c, "user_id is required")
	}

	err = h.teams.InviteMember(c.Request().Context(), id, actorID, teams.InviteParams{
		UserID:                  req.UserID,
		Role:                    req.Role,
		Permissions:             req.Permissions,
		OrganizationPermissions: req.OrganizationPermissions,
	})
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "member invited")
}

// AcceptInvite accepts the caller's pending invite.
func (h *Handlers) AcceptInvite(c echo.Context) error {
	id, err := teamID(c)
	if err != nil {
		return badRequest(c, "invalid team id")
	}
	userID, _, okAuth := currentUser(c)
	if !okAuth {
		return authRequired(c)
	}

	if err := h.teams.AcceptInvite(c.Request().Context(), id, userID); err != nil {
		return fail(c, err)
	}
	return respondOK(c, "invite accepted")
}

// EditMemberRequest is the request body for editing a member.
type EditMemberRequest struct {
	Role                    string                         `json:"role"`
	Permissions             models.ProjectPermissions      `json:"permissions"`
	OrganizationPermissions models.OrganizationPermissions `json:"organization_permissions"`
}

// EditMember updates a member's role and permissions.
func (h *Handlers) EditMember(c echo.Context) error {
	id, err := teamID(c)
	if err != nil {
		return badRequest(c, "invalid team id")
	}
	actorID, _, okAuth := currentUser(c)
	if !okAuth {
		return authRequired(c)
	}
	targetID, err := strconv.ParseInt(c.Param("user"), 10, 64)
	if err != nil {
		return badRequest(c, "invalid user id")
	}

	var req EditMemberRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	err = h.teams.EditMember(c.Request().Context(), id, actorID, targetID, teams.EditParams{
		Role:                    req.Role,
		Permissions:             req.Permissions,
		OrganizationPermissions: req.OrganizationPermissions,
	})
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "member updated")
}

// RemoveMember deletes a member's row.
func (h *Handlers) RemoveMember(c echo.Context) error {
	id, err := teamID(c)
	if err != nil {
		return badRequest(c, "invalid team id")
	}
	actorID, _, okAuth := currentUser(c)
	if !okAuth {
		return authRequired(c)
	}
	targetID, err := strconv.ParseInt(c.Param("user"), 10, 64)
	if err != nil {
		return badRequest(c, "invalid user id")
	}

	if err := h.teams.RemoveMember(c.Request().Context(), id, actorID, targetID); err != nil {
		return fail(c, err)
	}
	return respondOK(c, "member removed")
}
