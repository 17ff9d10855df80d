// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package confirmation implements the token workflow gating sensitive
// account mutations: adding, changing, or removing a password, and deleting
// an account. Codes are issued out-of-band, single-use, and expire lazily
// against a per-action TTL.
package confirmation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/modhost/internal/models"
	"codeberg.org/oliverandrich/modhost/internal/repository"
	"codeberg.org/oliverandrich/modhost/internal/services/hashing"
)

var (
	// ErrInvalidOrExpired masks every confirm-time failure mode: wrong
	// code, expired code, or mismatched action type. Callers must not be
	// able to tell which codes once existed.
	ErrInvalidOrExpired = errors.New("confirmation code is invalid or expired")
	// ErrNotFound is the lookup/cancel counterpart of the same masking.
	ErrNotFound = errors.New("confirmation code not found")
	// ErrInvalidState is returned when the account is not in the state the
	// action requires, e.g. confirming a first password when one exists.
	ErrInvalidState = errors.New("account is not in a state that allows this action")
	// ErrPasswordMismatch is returned when the new password and its
	// confirmation differ.
	ErrPasswordMismatch = errors.New("passwords do not match")
)

// ttls holds the validity window per action type. Expiry is evaluated at
// read time; no sweeper deletes expired rows.
var ttls = map[models.ActionType]time.Duration{
	models.ActionConfirmNewPassword: 24 * time.Hour,
	models.ActionChangePassword:     30 * time.Minute,
	models.ActionDeleteAccount:      30 * time.Minute,
}

// TTLFor returns the validity window of an action type.
func TTLFor(action models.ActionType) time.Duration {
	return ttls[action]
}

// EmailDispatcher delivers a raw code out-of-band. Called exactly once per
// issued token.
type EmailDispatcher interface {
	SendConfirmation(ctx context.Context, recipient string, action models.ActionType, rawCode string, ttl time.Duration) error
}

// SessionGuard invalidates every session of a user except the current one
// after a password change.
type SessionGuard interface {
	InvalidateAllExcept(ctx context.Context, userID int64, keepSessionID string) error
}

// Service is the confirmation workflow.
type Service struct {
	repo     *repository.Repository
	hasher   *hashing.Provider
	email    EmailDispatcher
	sessions SessionGuard
}

// NewService creates the workflow.
func NewService(repo *repository.Repository, hasher *hashing.Provider, email EmailDispatcher, sessions SessionGuard) *Service {
	return &Service{
		repo:     repo,
		hasher:   hasher,
		email:    email,
		sessions: sessions,
	}
}

// Issue creates a confirmation token for the user and emails the raw code.
// contextData travels with the token and is applied at confirm time; for
// ActionConfirmNewPassword it must be the pre-hashed new password.
// Returns the raw code.
//
// Earlier tokens of the same type stay valid until one of them is confirmed
// or cancelled; issue does not deduplicate.
func (s *Service) Issue(ctx context.Context, userID int64, action models.ActionType, contextData *string) (string, error) {
	if !models.KnownActionType(action) {
		return "", fmt.Errorf("unknown action type %q", action)
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to load user: %w", err)
	}

	// Adding a first password only makes sense while none is set.
	if action == models.ActionConfirmNewPassword && user.HasPassword() {
		return "", ErrInvalidState
	}

	raw, err := hashing.NewRawCode()
	if err != nil {
		return "", err
	}

	token := &models.ConfirmationToken{
		UserID:      userID,
		ActionType:  action,
		AccessCode:  s.hasher.KeyedHash(raw),
		ContextData: contextData,
	}
	if err := s.repo.CreateConfirmationToken(ctx, token); err != nil {
		return "", fmt.Errorf("failed to create confirmation token: %w", err)
	}

	if err := s.email.SendConfirmation(ctx, user.Email, action, raw, ttls[action]); err != nil {
		return "", fmt.Errorf("failed to dispatch confirmation email: %w", err)
	}

	slog.Info("confirmation_issued", "user_id", userID, "action", action)
	return raw, nil
}

// IssueForEmail issues a password-change token for whatever account owns the
// address. It reports success regardless of whether the address has an
// account, so the endpoint cannot be used to probe registered emails.
func (s *Service) IssueForEmail(ctx context.Context, email string) error {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			slog.Info("confirmation_issue_skipped", "reason", "unknown_email")
			return nil
		}
		return fmt.Errorf("failed to load user: %w", err)
	}
	_, err = s.Issue(ctx, user.ID, models.ActionChangePassword, nil)
	return err
}

// LookupType resolves a raw code to its action type so a caller can render
// the right confirmation step. Expired and unknown codes are
// indistinguishable.
func (s *Service) LookupType(ctx context.Context, rawCode string) (models.ActionType, error) {
	token, err := s.lookup(ctx, s.repo, rawCode)
	if err != nil {
		return "", ErrNotFound
	}
	return token.ActionType, nil
}

// Cancel deletes every token the owner holds for the matched token's action
// type, so a re-issue starts clean.
func (s *Service) Cancel(ctx context.Context, rawCode string) error {
	token, err := s.repo.GetConfirmationTokenByCode(ctx, s.hasher.KeyedHash(rawCode))
	if err != nil {
		return ErrNotFound
	}
	if _, err := s.repo.DeleteConfirmationTokensByUserAndTypes(ctx, token.UserID, token.ActionType); err != nil {
		return fmt.Errorf("failed to delete confirmation tokens: %w", err)
	}
	slog.Info("confirmation_cancelled", "user_id", token.UserID, "action", token.ActionType)
	return nil
}

// ConfirmArgs carries the action-specific inputs of Confirm.
type ConfirmArgs struct {
	// NewPassword and ConfirmPassword are required for ActionChangePassword.
	NewPassword     string
	ConfirmPassword string
	// KeepSessionID names the session that survives the post-change logout.
	KeepSessionID string
}

// Confirm re-validates the code and performs the action's mutation inside a
// single transaction, so a concurrent duplicate confirm cannot also succeed.
func (s *Service) Confirm(ctx context.Context, rawCode string, action models.ActionType, args ConfirmArgs) error {
	switch action {
	case models.ActionConfirmNewPassword:
		return s.confirmNewPassword(ctx, rawCode)
	case models.ActionChangePassword:
		return s.confirmPasswordChange(ctx, rawCode, args)
	case models.ActionDeleteAccount:
		return s.confirmAccountDeletion(ctx, rawCode)
	default:
		return fmt.Errorf("unknown action type %q", action)
	}
}

// lookup fetches a token by raw code and applies the TTL. Any failure is an
// indistinguishable miss.
func (s *Service) lookup(ctx context.Context, repo *repository.Repository, rawCode string) (*models.ConfirmationToken, error) {
	token, err := repo.GetConfirmationTokenByCode(ctx, s.hasher.KeyedHash(rawCode))
	if err != nil {
		return nil, ErrInvalidOrExpired
	}
	if time.Since(token.CreatedAt) >= ttls[token.ActionType] {
		return nil, ErrInvalidOrExpired
	}
	return token, nil
}

// revalidate is lookup plus an action-type match, for use inside confirm
// transactions.
func (s *Service) revalidate(ctx context.Context, repo *repository.Repository, rawCode string, action models.ActionType) (*models.ConfirmationToken, error) {
	token, err := s.lookup(ctx, repo, rawCode)
	if err != nil {
		return nil, err
	}
	if token.ActionType != action {
		return nil, ErrInvalidOrExpired
	}
	return token, nil
}

func (s *Service) confirmNewPassword(ctx context.Context, rawCode string) error {
	var userID int64
	err := s.repo.InTx(ctx, func(tx *repository.Repository) error {
		token, err := s.revalidate(ctx, tx, rawCode, models.ActionConfirmNewPassword)
		if err != nil {
			return err
		}
		userID = token.UserID

		user, err := tx.GetUserByID(ctx, token.UserID)
		if err != nil {
			return fmt.Errorf("failed to load user: %w", err)
		}
		// Race guard: a password may have appeared through another path
		// between issue and confirm.
		if user.HasPassword() {
			return ErrInvalidState
		}
		if token.ContextData == nil || *token.ContextData == "" {
			return ErrInvalidOrExpired
		}

		// The pre-hashed value captured at issue time; never a plaintext.
		if err := tx.UpdateUserPassword(ctx, user.ID, token.ContextData); err != nil {
			return fmt.Errorf("failed to set password: %w", err)
		}

		// Both password actions mutate the same field; a stale token of
		// either type must not later succeed.
		_, err = tx.DeleteConfirmationTokensByUserAndTypes(ctx, user.ID,
			models.ActionConfirmNewPassword, models.ActionChangePassword)
		return err
	})
	if err != nil {
		return err
	}

	slog.Info("confirm_success", "user_id", userID, "action", models.ActionConfirmNewPassword)
	return nil
}

func (s *Service) confirmPasswordChange(ctx context.Context, rawCode string, args ConfirmArgs) error {
	// The caller validates the pair; re-checked here as defense in depth.
	if args.NewPassword == "" || args.NewPassword != args.ConfirmPassword {
		return ErrPasswordMismatch
	}

	hash, err := s.hasher.HashPassword(args.NewPassword)
	if err != nil {
		return err
	}

	var userID int64
	err = s.repo.InTx(ctx, func(tx *repository.Repository) error {
		token, err := s.revalidate(ctx, tx, rawCode, models.ActionChangePassword)
		if err != nil {
			return err
		}
		userID = token.UserID

		if err := tx.UpdateUserPassword(ctx, token.UserID, &hash); err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}

		_, err = tx.DeleteConfirmationTokensByUserAndTypes(ctx, token.UserID,
			models.ActionChangePassword, models.ActionConfirmNewPassword)
		return err
	})
	if err != nil {
		return err
	}

	// A password change logs out every other active session.
	if err := s.sessions.InvalidateAllExcept(ctx, userID, args.KeepSessionID); err != nil {
		return err
	}

	slog.Info("confirm_success", "user_id", userID, "action", models.ActionChangePassword)
	return nil
}

func (s *Service) confirmAccountDeletion(ctx context.Context, rawCode string) error {
	var userID int64
	err := s.repo.InTx(ctx, func(tx *repository.Repository) error {
		token, err := s.revalidate(ctx, tx, rawCode, models.ActionDeleteAccount)
		if err != nil {
			return err
		}
		userID = token.UserID

		if _, err := tx.DeleteConfirmationTokensByUserAndTypes(ctx, token.UserID, models.ActionDeleteAccount); err != nil {
			return err
		}
		// Identities, tokens, sessions, and memberships cascade.
		return tx.DeleteUser(ctx, token.UserID)
	})
	if err != nil {
		return err
	}

	slog.Info("confirm_success", "user_id", userID, "action", models.ActionDeleteAccount)
	return nil
}
