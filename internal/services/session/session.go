// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package session manages server-side login sessions and the signed cookie
// carrying the session id.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"

	"codeberg.org/oliverandrich/modhost/internal/models"
	"codeberg.org/oliverandrich/modhost/internal/repository"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// Manager creates, resolves, and invalidates sessions. Session rows live in
// the relational store; cookies only carry the signed session id.
type Manager struct {
	repo       *repository.Repository
	codec      *securecookie.SecureCookie
	cookieName string
	lifetime   time.Duration
	secure     bool
}

// New creates a session manager. hashKey signs cookie values; blockKey is
// optional and enables encryption on top of signing.
func New(repo *repository.Repository, hashKey, blockKey []byte, cookieName string, lifetime time.Duration, secure bool) (*Manager, error) {
	if len(hashKey) < 32 {
		return nil, fmt.Errorf("session hash key must be at least 32 bytes")
	}
	if cookieName == "" {
		cookieName = "modhost_session"
	}
	return &Manager{
		repo:       repo,
		codec:      securecookie.New(hashKey, blockKey),
		cookieName: cookieName,
		lifetime:   lifetime,
		secure:     secure,
	}, nil
}

// Create starts a new session for a user.
func (m *Manager) Create(ctx context.Context, userID int64) (*models.Session, error) {
	now := time.Now().UTC()
	session := &models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.lifetime),
	}
	if err := m.repo.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// Get resolves a session id. Expiry is evaluated lazily: an expired row is
// deleted on first touch and reported as not found.
func (m *Manager) Get(ctx context.Context, id string) (*models.Session, error) {
	session, err := m.repo.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !time.Now().Before(session.ExpiresAt) {
		_ = m.repo.DeleteSession(ctx, id)
		return nil, ErrNotFound
	}
	return session, nil
}

// Delete ends one session.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.repo.DeleteSession(ctx, id)
}

// InvalidateAllExcept logs a user out everywhere but the session to keep.
// Called by the confirmation workflow after a password change.
func (m *Manager) InvalidateAllExcept(ctx context.Context, userID int64, keepSessionID string) error {
	n, err := m.repo.DeleteUserSessionsExcept(ctx, userID, keepSessionID)
	if err != nil {
		return fmt.Errorf("failed to invalidate sessions: %w", err)
	}
	slog.Info("sessions_invalidated", "user_id", userID, "count", n)
	return nil
}

// WriteCookie sets the signed session cookie on a response.
func (m *Manager) WriteCookie(w http.ResponseWriter, session *models.Session) error {
	value, err := m.codec.Encode(m.cookieName, session.ID)
	if err != nil {
		return fmt.Errorf("failed to encode session cookie: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ReadCookie extracts and verifies the session id from a request cookie.
func (m *Manager) ReadCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		return "", ErrNotFound
	}
	var id string
	if err := m.codec.Decode(m.cookieName, cookie.Value, &id); err != nil {
		return "", ErrNotFound
	}
	return id, nil
}

// ClearCookie removes the session cookie, used after account deletion and
// logout.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
