// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"

	"codeberg.org/oliverandrich/modhost/internal/database"
	"codeberg.org/oliverandrich/modhost/internal/models"
	"codeberg.org/oliverandrich/modhost/internal/repository"
)

// NewTestDB creates a migrated in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	repo := repository.New(db)
	return db, repo
}

// NewTestUser creates a user without a password, as after a pure
// social-login signup.
func NewTestUser(t *testing.T, repo *repository.Repository, username string) *models.User {
	t.Helper()
	user, err := repo.CreateUser(context.Background(), username+"@example.com", username, username, nil)
	require.NoError(t, err)
	return user
}

// NewTestUserWithPassword creates a user with the given password hash.
func NewTestUserWithPassword(t *testing.T, repo *repository.Repository, username, passwordHash string) *models.User {
	t.Helper()
	user, err := repo.CreateUser(context.Background(), username+"@example.com", username, username, &passwordHash)
	require.NoError(t, err)
	return user
}

// NewTestIdentity links a provider identity to a user.
func NewTestIdentity(t *testing.T, repo *repository.Repository, userID int64, provider models.Provider, accountID string) *models.AuthIdentity {
	t.Helper()
	ident := &models.AuthIdentity{
		UserID:            userID,
		Provider:          provider,
		ProviderAccountID: accountID,
		ProviderEmail:     accountID + "@" + string(provider) + ".example.com",
	}
	require.NoError(t, repo.CreateIdentity(context.Background(), ident))
	return ident
}

// NewTestTeam creates an empty team.
func NewTestTeam(t *testing.T, repo *repository.Repository) *models.Team {
	t.Helper()
	team, err := repo.CreateTeam(context.Background())
	require.NoError(t, err)
	return team
}

// NewTestMember adds a membership row. Accepted and owner status are taken
// as-is so tests can build pending invites too.
func NewTestMember(t *testing.T, repo *repository.Repository, teamID, userID int64, member models.TeamMember) *models.TeamMember {
	t.Helper()
	member.TeamID = teamID
	member.UserID = userID
	if member.Role == "" {
		member.Role = "Member"
	}
	require.NoError(t, repo.CreateTeamMember(context.Background(), &member))
	return &member
}

// BackdateToken rewrites a confirmation token's creation time, for expiry
// tests.
func BackdateToken(t *testing.T, db *sqlx.DB, tokenID int64, createdAt time.Time) {
	t.Helper()
	_, err := db.Exec("UPDATE confirmation_tokens SET created_at = ? WHERE id = ?", createdAt, tokenID)
	require.NoError(t, err)
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}
