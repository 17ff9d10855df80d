// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package identity links and unlinks external provider identities under the
// account-safety invariants: global uniqueness per provider account, one
// identity per provider per user, and never stranding a user without a way
// to log in.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/modhost/internal/abuse"
	"codeberg.org/oliverandrich/modhost/internal/models"
	"codeberg.org/oliverandrich/modhost/internal/repository"
)

var (
	// ErrInvalidProfile is returned for profiles without a verified email
	// or with an unsupported provider.
	ErrInvalidProfile = errors.New("provider profile is invalid")
	// ErrAlreadyLinked is returned when the provider account is already
	// attached to some user.
	ErrAlreadyLinked = errors.New("provider account is already linked")
	// ErrEmailInUse is returned when the provider-side email is already
	// linked elsewhere. Blocks hijack via a re-registered provider email.
	ErrEmailInUse = errors.New("provider email is already linked to another account")
	// ErrProviderTaken is returned when the user already holds an identity
	// for this provider.
	ErrProviderTaken = errors.New("an identity for this provider is already linked")
	// ErrLastLoginMethod is returned when unlinking would leave the user
	// without a remaining login method.
	ErrLastLoginMethod = errors.New("cannot remove your only remaining login method")
	// ErrNotLinked is returned when unlinking a provider the user never
	// linked.
	ErrNotLinked = errors.New("no identity linked for this provider")
)

// ProviderProfile is what an OAuth callback resolves before linking.
type ProviderProfile struct {
	Provider      models.Provider
	AccountID     string
	Email         string
	EmailVerified bool
	AccessToken   string
	RefreshToken  string
	AuthType      string
}

// Service links provider identities to accounts.
type Service struct {
	repo  *repository.Repository
	guard abuse.Guard
}

// NewService creates the linker.
func NewService(repo *repository.Repository, guard abuse.Guard) *Service {
	return &Service{repo: repo, guard: guard}
}

// Link attaches a provider identity to the user. The profile email must be
// verified on the provider side; unverified emails are rejected outright.
func (s *Service) Link(ctx context.Context, userID int64, profile ProviderProfile) (*models.AuthIdentity, error) {
	if !models.KnownProvider(profile.Provider) || profile.AccountID == "" {
		return nil, ErrInvalidProfile
	}
	if !profile.EmailVerified {
		return nil, ErrInvalidProfile
	}

	if _, err := s.repo.GetIdentityByProviderAccount(ctx, profile.Provider, profile.AccountID); err == nil {
		return nil, ErrAlreadyLinked
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check provider account: %w", err)
	}

	if existing, err := s.repo.GetIdentityByProviderEmail(ctx, profile.Provider, profile.Email); err == nil {
		if existing.UserID != userID {
			return nil, ErrEmailInUse
		}
		// Same user: the per-provider check below rejects it anyway.
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check provider email: %w", err)
	}

	if _, err := s.repo.GetIdentityByUserAndProvider(ctx, userID, profile.Provider); err == nil {
		s.guard.Charge(ctx, 1)
		slog.Warn("link_rejected", "user_id", userID, "provider", profile.Provider, "reason", "provider_taken")
		return nil, ErrProviderTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check user identities: %w", err)
	}

	identity := &models.AuthIdentity{
		UserID:            userID,
		Provider:          profile.Provider,
		ProviderAccountID: profile.AccountID,
		ProviderEmail:     profile.Email,
		AccessToken:       profile.AccessToken,
		RefreshToken:      profile.RefreshToken,
		AuthType:          profile.AuthType,
	}
	if err := s.repo.CreateIdentity(ctx, identity); err != nil {
		// Unique constraints close the check-then-act race.
		if repository.IsUniqueViolation(err) {
			return nil, ErrAlreadyLinked
		}
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	slog.Info("identity_linked", "user_id", userID, "provider", profile.Provider)
	return identity, nil
}

// Unlink removes the user's identity for one provider. A user holding fewer
// than two identities keeps their last one: it may be their only way in.
// The password column is deliberately not consulted; see DESIGN.md.
func (s *Service) Unlink(ctx context.Context, userID int64, provider models.Provider) error {
	count, err := s.repo.CountUserIdentities(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to count identities: %w", err)
	}
	if count < 2 {
		return ErrLastLoginMethod
	}

	n, err := s.repo.DeleteIdentityByUserAndProvider(ctx, userID, provider)
	if err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}
	if n == 0 {
		// Referencing a provider that was never linked is an invalid
		// request worth charging.
		s.guard.Charge(ctx, 1)
		slog.Warn("unlink_rejected", "user_id", userID, "provider", provider, "reason", "not_linked")
		return ErrNotLinked
	}

	slog.Info("identity_unlinked", "user_id", userID, "provider", provider)
	return nil
}

// List returns the user's linked identities for the account settings view.
func (s *Service) List(ctx context.Context, userID int64) ([]models.AuthIdentity, error) {
	return s.repo.ListUserIdentities(ctx, userID)
}
