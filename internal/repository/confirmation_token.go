// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"github.com/vinovest/sqlx"

	"codeberg.org/oliverandrich/modhost/internal/models"
)

// CreateConfirmationToken inserts a confirmation token. Earlier tokens of
// the same (user, type) are left in place; only confirm and cancel remove
// rows in bulk.
func (r *Repository) CreateConfirmationToken(ctx context.Context, token *models.ConfirmationToken) error {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO confirmation_tokens (user_id, action_type, access_code, context_data, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		token.UserID, token.ActionType, token.AccessCode, token.ContextData, token.CreatedAt)
	if err != nil {
		return err
	}
	token.ID, err = res.LastInsertId()
	return err
}

// GetConfirmationTokenByCode retrieves a token by its stored access code
// (the keyed hash, never the raw value).
func (r *Repository) GetConfirmationTokenByCode(ctx context.Context, accessCode string) (*models.ConfirmationToken, error) {
	var token models.ConfirmationToken
	err := r.db.GetContext(ctx, &token,
		`SELECT * FROM confirmation_tokens WHERE access_code = ?`, accessCode)
	if err != nil {
		return nil, wrapErr(err)
	}
	return &token, nil
}

// DeleteConfirmationTokensByUserAndTypes deletes every token a user holds
// for any of the given action types.
func (r *Repository) DeleteConfirmationTokensByUserAndTypes(ctx context.Context, userID int64, types ...models.ActionType) (int64, error) {
	if len(types) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(
		`DELETE FROM confirmation_tokens WHERE user_id = ? AND action_type IN (?)`, userID, types)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountConfirmationTokens counts a user's tokens of one action type.
func (r *Repository) CountConfirmationTokens(ctx context.Context, userID int64, actionType models.ActionType) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM confirmation_tokens WHERE user_id = ? AND action_type = ?`, userID, actionType)
	return count, err
}
