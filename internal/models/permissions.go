// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"database/sql/driver"
	"fmt"
)

// ProjectPermissions is a closed bitmask of actions a member may perform on
// a project team.
type ProjectPermissions uint64

const (
	PermUploadVersion ProjectPermissions = 1 << iota
	PermDeleteVersion
	PermEditDetails
	PermEditBody
	PermManageInvites
	PermRemoveMember
	PermEditMember
	PermDeleteProject
	PermViewAnalytics
)

// PermAllProject is every project permission combined.
const PermAllProject = PermViewAnalytics<<1 - 1

// Has reports whether all bits of required are granted.
func (p ProjectPermissions) Has(required ProjectPermissions) bool {
	return p&required == required
}

// OrganizationPermissions is a closed bitmask of actions a member may
// perform on an organization team.
type OrganizationPermissions uint64

const (
	OrgPermEditDetails OrganizationPermissions = 1 << iota
	OrgPermManageInvites
	OrgPermRemoveMember
	OrgPermEditMember
	OrgPermAddProject
	OrgPermRemoveProject
	OrgPermDeleteOrganization
)

// OrgPermAll is every organization permission combined.
const OrgPermAll = OrgPermDeleteOrganization<<1 - 1

// Has reports whether all bits of required are granted.
func (p OrganizationPermissions) Has(required OrganizationPermissions) bool {
	return p&required == required
}

// Value implements driver.Valuer so bitmasks round-trip through the store.
func (p ProjectPermissions) Value() (driver.Value, error) {
	return int64(p), nil
}

// Scan implements sql.Scanner.
func (p *ProjectPermissions) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		*p = ProjectPermissions(v)
		return nil
	case nil:
		*p = 0
		return nil
	}
	return fmt.Errorf("cannot scan %T into ProjectPermissions", src)
}

// Value implements driver.Valuer.
func (p OrganizationPermissions) Value() (driver.Value, error) {
	return int64(p), nil
}

// Scan implements sql.Scanner.
func (p *OrganizationPermissions) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		*p = OrganizationPermissions(v)
		return nil
	case nil:
		*p = 0
		return nil
	}
	return fmt.Errorf("cannot scan %T into OrganizationPermissions", src)
}
