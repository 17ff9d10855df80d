// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// Provider identifies an external auth provider.
type Provider string

const (
	ProviderGitHub    Provider = "github"
	ProviderGitLab    Provider = "gitlab"
	ProviderDiscord   Provider = "discord"
	ProviderGoogle    Provider = "google"
	ProviderMicrosoft Provider = "microsoft"
)

// KnownProvider reports whether p is one of the supported providers.
func KnownProvider(p Provider) bool {
	switch p {
	case ProviderGitHub, ProviderGitLab, ProviderDiscord, ProviderGoogle, ProviderMicrosoft:
		return true
	}
	return false
}

// AuthIdentity links an external provider account to a user.
// (Provider, ProviderAccountID) is globally unique; a user holds at most one
// identity per provider.
type AuthIdentity struct { //nolint:govet // fieldalignment: readability over optimization
	ID                int64     `db:"id" json:"id"`
	UserID            int64     `db:"user_id" json:"user_id"`
	Provider          Provider  `db:"provider" json:"provider"`
	ProviderAccountID string    `db:"provider_account_id" json:"provider_account_id"`
	ProviderEmail     string    `db:"provider_email" json:"provider_email"`
	AccessToken       string    `db:"access_token" json:"-"`
	RefreshToken      string    `db:"refresh_token" json:"-"`
	AuthType          string    `db:"auth_type" json:"auth_type"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}
