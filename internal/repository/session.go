// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"codeberg.org/oliverandrich/modhost/internal/models"
)

// CreateSession inserts a session row.
func (r *Repository) CreateSession(ctx context.Context, session *models.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		session.ID, session.UserID, session.CreatedAt, session.ExpiresAt)
	return err
}

// GetSession retrieves a session by id.
func (r *Repository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	if err := r.db.GetContext(ctx, &session, `SELECT * FROM sessions WHERE id = ?`, id); err != nil {
		return nil, wrapErr(err)
	}
	return &session, nil
}

// DeleteSession removes one session.
func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

// DeleteUserSessionsExcept removes every session of a user except the one to
// keep, and returns how many were removed.
func (r *Repository) DeleteUserSessionsExcept(ctx context.Context, userID int64, keepID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE user_id = ? AND id != ?`, userID, keepID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountUserSessions counts a user's sessions.
func (r *Repository) CountUserSessions(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM sessions WHERE user_id = ?`, userID)
	return count, err
}
