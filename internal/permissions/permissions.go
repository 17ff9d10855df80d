// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package permissions resolves team and organization access. Everything in
// here is a pure function over membership rows; storage and transport live
// elsewhere.
package permissions

import "codeberg.org/oliverandrich/modhost/internal/models"

// HasProjectPermission reports whether a member may perform an action
// requiring the given project permission. An owner bypasses the permission
// set entirely.
func HasProjectPermission(required models.ProjectPermissions, granted models.ProjectPermissions, isOwner bool) bool {
	return isOwner || granted.Has(required)
}

// HasOrganizationPermission is the organization-scoped counterpart.
func HasOrganizationPermission(required models.OrganizationPermissions, granted models.OrganizationPermissions, isOwner bool) bool {
	return isOwner || granted.Has(required)
}

// CurrentMember returns the membership row belonging to userID, or nil.
// Every authorization check on a mutating team operation starts here.
func CurrentMember(userID int64, members []models.TeamMember) *models.TeamMember {
	for i := range members {
		if members[i].UserID == userID {
			return &members[i]
		}
	}
	return nil
}

// acceptedMember returns the viewer's membership row only if the invite has
// been accepted. An unaccepted row grants no visibility, not even into the
// viewer's own permissions.
func acceptedMember(viewerID int64, members []models.TeamMember) *models.TeamMember {
	m := CurrentMember(viewerID, members)
	if m == nil || !m.Accepted {
		return nil
	}
	return m
}

// VisiblePermissions returns member's project permission set as seen by the
// viewer: verbatim for an accepted member of the same team, empty otherwise.
func VisiblePermissions(viewerID int64, member models.TeamMember, members []models.TeamMember) models.ProjectPermissions {
	if acceptedMember(viewerID, members) == nil {
		return 0
	}
	return member.Permissions
}

// VisibleOrganizationPermissions applies the same redaction rule to the
// organization permission set.
func VisibleOrganizationPermissions(viewerID int64, member models.TeamMember, members []models.TeamMember) models.OrganizationPermissions {
	if acceptedMember(viewerID, members) == nil {
		return 0
	}
	return member.OrganizationPermissions
}

// FilterMembersForViewer applies the redaction rule across a listing. The
// returned slice is a copy; input rows are never mutated.
func FilterMembersForViewer(viewerID int64, members []models.TeamMember) []models.TeamMember {
	visible := acceptedMember(viewerID, members) != nil

	out := make([]models.TeamMember, len(members))
	copy(out, members)
	if visible {
		return out
	}
	for i := range out {
		out[i].Permissions = 0
		out[i].OrganizationPermissions = 0
	}
	return out
}
