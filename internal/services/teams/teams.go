// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package teams implements the member operations of project and
// organization teams on top of the pure permission resolver.
package teams

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/modhost/internal/abuse"
	"codeberg.org/oliverandrich/modhost/internal/models"
	"codeberg.org/oliverandrich/modhost/internal/permissions"
	"codeberg.org/oliverandrich/modhost/internal/repository"
)

var (
	// ErrNotMember is returned when the acting user has no membership row
	// at all on the team.
	ErrNotMember = errors.New("not a member of this team")
	// ErrUnauthorized is returned when the acting member lacks the
	// required permission.
	ErrUnauthorized = errors.New("missing permission for this action")
	// ErrAlreadyMember is returned when inviting a user who already has a
	// membership row.
	ErrAlreadyMember = errors.New("user is already a member of this team")
	// ErrOwnerImmutable is returned when trying to remove an owner.
	ErrOwnerImmutable = errors.New("the team owner cannot be removed")
	// ErrNoInvite is returned when accepting without a pending invite.
	ErrNoInvite = errors.New("no pending invite for this team")
)

// Service performs team member mutations. Every mutating operation resolves
// the actor's membership first: no row means NotFound, a row without the
// needed permission means Unauthorized plus an abuse charge.
type Service struct {
	repo  *repository.Repository
	guard abuse.Guard
}

// NewService creates the team service.
func NewService(repo *repository.Repository, guard abuse.Guard) *Service {
	return &Service{repo: repo, guard: guard}
}

// authorize loads the team's members and checks the actor against the
// required project permission.
func (s *Service) authorize(ctx context.Context, teamID, actorID int64, required models.ProjectPermissions) ([]models.TeamMember, *models.TeamMember, error) {
	members, err := s.repo.GetTeamMembers(ctx, teamID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load team members: %w", err)
	}

	actor := permissions.CurrentMember(actorID, members)
	if actor == nil || !actor.Accepted {
		return nil, nil, ErrNotMember
	}
	if !permissions.HasProjectPermission(required, actor.Permissions, actor.IsOwner) {
		s.guard.Charge(ctx, 1)
		slog.Warn("team_action_denied", "team_id", teamID, "user_id", actorID, "required", required)
		return nil, nil, ErrUnauthorized
	}
	return members, actor, nil
}

// ListMembers returns the team's membership rows with permissions redacted
// according to the viewer's own acceptance state.
func (s *Service) ListMembers(ctx context.Context, teamID, viewerID int64) ([]models.TeamMember, error) {
	members, err := s.repo.GetTeamMembers(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to load team members: %w", err)
	}
	return permissions.FilterMembersForViewer(viewerID, members), nil
}

// InviteParams describes a new membership row created by an invite.
type InviteParams struct {
	UserID                  int64
	Role                    string
	Permissions             models.ProjectPermissions
	OrganizationPermissions models.OrganizationPermissions
}

// InviteMember adds an unaccepted membership row. Requires MANAGE_INVITES.
func (s *Service) InviteMember(ctx context.Context, teamID, actorID int64, params InviteParams) error {
	members, _, err := s.authorize(ctx, teamID, actorID, models.PermManageInvites)
	if err != nil {
		return err
	}

	if permissions.CurrentMember(params.UserID, members) != nil {
		return ErrAlreadyMember
	}

	member := &models.TeamMember{
		TeamID:                  teamID,
		UserID:                  params.UserID,
		Role:                    params.Role,
		Permissions:             params.Permissions,
		OrganizationPermissions: params.OrganizationPermissions,
	}
	if err := s.repo.CreateTeamMember(ctx, member); err != nil {
		if repository.IsUniqueViolation(err) {
			return ErrAlreadyMember
		}
		return fmt.Errorf("failed to create member: %w", err)
	}

	slog.Info("member_invited", "team_id", teamID, "user_id", params.UserID, "by", actorID)
	return nil
}

// AcceptInvite marks the caller's own pending membership as accepted.
func (s *Service) AcceptInvite(ctx context.Context, teamID, userID int64) error {
	if err := s.repo.AcceptTeamMember(ctx, teamID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNoInvite
		}
		return fmt.Errorf("failed to accept invite: %w", err)
	}
	slog.Info("invite_accepted", "team_id", teamID, "user_id", userID)
	return nil
}

// EditParams carries the editable fields of a membership row.
type EditParams struct {
	Role                    string
	Permissions             models.ProjectPermissions
	OrganizationPermissions models.OrganizationPermissions
}

// EditMember updates a member's role and permission sets. Requires
// EDIT_MEMBER. An owner target keeps their permission sets no matter what
// the request asks for; only the role label changes.
func (s *Service) EditMember(ctx context.Context, teamID, actorID, targetUserID int64, params EditParams) error {
	members, _, err := s.authorize(ctx, teamID, actorID, models.PermEditMember)
	if err != nil {
		return err
	}

	target := permissions.CurrentMember(targetUserID, members)
	if target == nil {
		return repository.ErrNotFound
	}

	updated := *target
	updated.Role = params.Role
	updated.Permissions = params.Permissions
	updated.OrganizationPermissions = params.OrganizationPermissions

	// The store preserves owner permission sets; passing them through here
	// keeps the intent visible at both layers.
	if target.IsOwner {
		updated.Permissions = target.Permissions
		updated.OrganizationPermissions = target.OrganizationPermissions
	}

	if err := s.repo.UpdateTeamMember(ctx, &updated); err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}

	slog.Info("member_edited", "team_id", teamID, "user_id", targetUserID, "by", actorID)
	return nil
}

// RemoveMember deletes a member's row. Requires REMOVE_MEMBER; owners cannot
// be removed.
func (s *Service) RemoveMember(ctx context.Context, teamID, actorID, targetUserID int64) error {
	members, _, err := s.authorize(ctx, teamID, actorID, models.PermRemoveMember)
	if err != nil {
		return err
	}

	target := permissions.CurrentMember(targetUserID, members)
	if target == nil {
		return repository.ErrNotFound
	}
	if target.IsOwner {
		return ErrOwnerImmutable
	}

	if err := s.repo.DeleteTeamMember(ctx, teamID, targetUserID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	slog.Info("member_removed", "team_id", teamID, "user_id", targetUserID, "by", actorID)
	return nil
}
