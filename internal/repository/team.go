// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/modhost/internal/models"
)

// CreateTeam creates an empty team.
func (r *Repository) CreateTeam(ctx context.Context) (*models.Team, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `INSERT INTO teams (created_at) VALUES (?)`, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Team{ID: id, CreatedAt: now}, nil
}

// GetTeamMembers retrieves every membership row of a team, accepted or not.
func (r *Repository) GetTeamMembers(ctx context.Context, teamID int64) ([]models.TeamMember, error) {
	var members []models.TeamMember
	err := r.db.SelectContext(ctx, &members,
		`SELECT * FROM team_members WHERE team_id = ? ORDER BY id`, teamID)
	if err != nil {
		return nil, err
	}
	return members, nil
}

// GetTeamMember retrieves one user's membership row on a team.
func (r *Repository) GetTeamMember(ctx context.Context, teamID, userID int64) (*models.TeamMember, error) {
	var member models.TeamMember
	err := r.db.GetContext(ctx, &member,
		`SELECT * FROM team_members WHERE team_id = ? AND user_id = ?`, teamID, userID)
	if err != nil {
		return nil, wrapErr(err)
	}
	return &member, nil
}

// CreateTeamMember inserts a membership row.
func (r *Repository) CreateTeamMember(ctx context.Context, member *models.TeamMember) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO team_members (team_id, user_id, role, is_owner, accepted, accepted_at, permissions, organization_permissions)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		member.TeamID, member.UserID, member.Role, member.IsOwner, member.Accepted,
		member.AcceptedAt, member.Permissions, member.OrganizationPermissions)
	if err != nil {
		return err
	}
	member.ID, err = res.LastInsertId()
	return err
}

// UpdateTeamMember updates the mutable fields of a membership row. The
// permission sets of an owner row are preserved no matter what the caller
// passes: ownership cannot be stripped of implicit full access this way.
func (r *Repository) UpdateTeamMember(ctx context.Context, member *models.TeamMember) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE team_members
		 SET role = ?,
		     permissions = CASE WHEN is_owner = 1 THEN permissions ELSE ? END,
		     organization_permissions = CASE WHEN is_owner = 1 THEN organization_permissions ELSE ? END
		 WHERE team_id = ? AND user_id = ?`,
		member.Role, member.Permissions, member.OrganizationPermissions, member.TeamID, member.UserID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AcceptTeamMember flips a pending invite to accepted.
func (r *Repository) AcceptTeamMember(ctx context.Context, teamID, userID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE team_members SET accepted = 1, accepted_at = ? WHERE team_id = ? AND user_id = ? AND accepted = 0`,
		time.Now().UTC(), teamID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTeamMember removes a non-owner membership row.
func (r *Repository) DeleteTeamMember(ctx context.Context, teamID, userID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM team_members WHERE team_id = ? AND user_id = ? AND is_owner = 0`, teamID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateProject creates a project owned by a team.
func (r *Repository) CreateProject(ctx context.Context, project *models.Project) error {
	if project.CreatedAt.IsZero() {
		project.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (team_id, organization_id, name, slug, created_at) VALUES (?, ?, ?, ?, ?)`,
		project.TeamID, project.OrganizationID, project.Name, project.Slug, project.CreatedAt)
	if err != nil {
		return err
	}
	project.ID, err = res.LastInsertId()
	return err
}

// CreateOrganization creates an organization owned by a team.
func (r *Repository) CreateOrganization(ctx context.Context, org *models.Organization) error {
	if org.CreatedAt.IsZero() {
		org.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO organizations (team_id, name, slug, description, icon, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		org.TeamID, org.Name, org.Slug, org.Description, org.Icon, org.CreatedAt)
	if err != nil {
		return err
	}
	org.ID, err = res.LastInsertId()
	return err
}

// GetOrganizationBySlug retrieves an organization by its globally unique slug.
func (r *Repository) GetOrganizationBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	var org models.Organization
	if err := r.db.GetContext(ctx, &org, `SELECT * FROM organizations WHERE slug = ?`, slug); err != nil {
		return nil, wrapErr(err)
	}
	return &org, nil
}

// ListOrganizationProjects lists the projects an organization owns.
func (r *Repository) ListOrganizationProjects(ctx context.Context, orgID int64) ([]models.Project, error) {
	var projects []models.Project
	err := r.db.SelectContext(ctx, &projects,
		`SELECT * FROM projects WHERE organization_id = ? ORDER BY id`, orgID)
	if err != nil {
		return nil, err
	}
	return projects, nil
}
