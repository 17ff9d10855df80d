// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/modhost/internal/models"
)

// CreateIdentity inserts a linked provider identity.
func (r *Repository) CreateIdentity(ctx context.Context, identity *models.AuthIdentity) error {
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO auth_identities (user_id, provider, provider_account_id, provider_email, access_token, refresh_token, auth_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		identity.UserID, identity.Provider, identity.ProviderAccountID, identity.ProviderEmail,
		identity.AccessToken, identity.RefreshToken, identity.AuthType, identity.CreatedAt)
	if err != nil {
		return err
	}
	identity.ID, err = res.LastInsertId()
	return err
}

// GetIdentityByProviderAccount retrieves an identity by the globally unique
// (provider, provider account id) pair.
func (r *Repository) GetIdentityByProviderAccount(ctx context.Context, provider models.Provider, accountID string) (*models.AuthIdentity, error) {
	var identity models.AuthIdentity
	err := r.db.GetContext(ctx, &identity,
		`SELECT * FROM auth_identities WHERE provider = ? AND provider_account_id = ?`, provider, accountID)
	if err != nil {
		return nil, wrapErr(err)
	}
	return &identity, nil
}

// GetIdentityByProviderEmail retrieves an identity by provider and
// provider-side account email.
func (r *Repository) GetIdentityByProviderEmail(ctx context.Context, provider models.Provider, email string) (*models.AuthIdentity, error) {
	var identity models.AuthIdentity
	err := r.db.GetContext(ctx, &identity,
		`SELECT * FROM auth_identities WHERE provider = ? AND provider_email = ?`, provider, email)
	if err != nil {
		return nil, wrapErr(err)
	}
	return &identity, nil
}

// GetIdentityByUserAndProvider retrieves a user's identity for one provider.
func (r *Repository) GetIdentityByUserAndProvider(ctx context.Context, userID int64, provider models.Provider) (*models.AuthIdentity, error) {
	var identity models.AuthIdentity
	err := r.db.GetContext(ctx, &identity,
		`SELECT * FROM auth_identities WHERE user_id = ? AND provider = ?`, userID, provider)
	if err != nil {
		return nil, wrapErr(err)
	}
	return &identity, nil
}

// ListUserIdentities retrieves all identities linked to a user.
func (r *Repository) ListUserIdentities(ctx context.Context, userID int64) ([]models.AuthIdentity, error) {
	var identities []models.AuthIdentity
	err := r.db.SelectContext(ctx, &identities,
		`SELECT * FROM auth_identities WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	return identities, nil
}

// CountUserIdentities counts the identities linked to a user.
func (r *Repository) CountUserIdentities(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM auth_identities WHERE user_id = ?`, userID)
	return count, err
}

// DeleteIdentityByUserAndProvider deletes a user's identity rows for one
// provider and returns how many rows were removed.
func (r *Repository) DeleteIdentityByUserAndProvider(ctx context.Context, userID int64, provider models.Provider) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM auth_identities WHERE user_id = ? AND provider = ?`, userID, provider)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
