// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// Team groups the members of a project or an organization.
type Team struct {
	ID        int64     `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TeamMember is a user's membership row on a team. Permissions are only
// effective (and only visible to others) once Accepted is true; an owner is
// implicitly granted every permission regardless of the stored sets.
type TeamMember struct { //nolint:govet // fieldalignment: readability over optimization
	ID                      int64                   `db:"id" json:"id"`
	TeamID                  int64                   `db:"team_id" json:"team_id"`
	UserID                  int64                   `db:"user_id" json:"user_id"`
	Role                    string                  `db:"role" json:"role"`
	IsOwner                 bool                    `db:"is_owner" json:"is_owner"`
	Accepted                bool                    `db:"accepted" json:"accepted"`
	AcceptedAt              *time.Time              `db:"accepted_at" json:"accepted_at,omitempty"`
	Permissions             ProjectPermissions      `db:"permissions" json:"permissions"`
	OrganizationPermissions OrganizationPermissions `db:"organization_permissions" json:"organization_permissions"`
}

// Project is the minimal projection of a hosted project: enough to own a
// team and optionally belong to an organization. Content fields live in the
// (out of scope) hosting layer.
type Project struct { //nolint:govet // fieldalignment: readability over optimization
	ID             int64     `db:"id" json:"id"`
	TeamID         int64     `db:"team_id" json:"team_id"`
	OrganizationID *int64    `db:"organization_id" json:"organization_id,omitempty"`
	Name           string    `db:"name" json:"name"`
	Slug           string    `db:"slug" json:"slug"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Organization owns a team exactly like a project does, and may itself own
// projects.
type Organization struct { //nolint:govet // fieldalignment: readability over optimization
	ID          int64     `db:"id" json:"id"`
	TeamID      int64     `db:"team_id" json:"team_id"`
	Name        string    `db:"name" json:"name"`
	Slug        string    `db:"slug" json:"slug"`
	Description string    `db:"description" json:"description"`
	Icon        string    `db:"icon" json:"icon"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
