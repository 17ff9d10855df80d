// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package confirmation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"

	"codeberg.org/oliverandrich/modhost/internal/models"
	"codeberg.org/oliverandrich/modhost/internal/repository"
	"codeberg.org/oliverandrich/modhost/internal/services/confirmation"
	"codeberg.org/oliverandrich/modhost/internal/services/hashing"
	"codeberg.org/oliverandrich/modhost/internal/testutil"
)

type sentMail struct {
	Recipient string
	Action    models.ActionType
	RawCode   string
}

type mailSpy struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *mailSpy) SendConfirmation(_ context.Context, recipient string, action models.ActionType, rawCode string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{Recipient: recipient, Action: action, RawCode: rawCode})
	return nil
}

type guardSpy struct {
	UserID int64
	KeepID string
	Calls  int
}

func (g *guardSpy) InvalidateAllExcept(_ context.Context, userID int64, keepSessionID string) error {
	g.UserID = userID
	g.KeepID = keepSessionID
	g.Calls++
	return nil
}

func newService(t *testing.T) (*confirmation.Service, *repository.Repository, *sqlx.DB, *hashing.Provider, *mailSpy, *guardSpy) {
	t.Helper()
	db, repo := testutil.NewTestDB(t)
	hasher, err := hashing.New("test-secret")
	require.NoError(t, err)
	mail := &mailSpy{}
	guard := &guardSpy{}
	svc := confirmation.NewService(repo, hasher, mail, guard)
	return svc, repo, db, hasher, mail, guard
}

func backdate(t *testing.T, db *sqlx.DB, repo *repository.Repository, hasher *hashing.Provider, rawCode string, age time.Duration) {
	t.Helper()
	token, err := repo.GetConfirmationTokenByCode(context.Background(), hasher.KeyedHash(rawCode))
	require.NoError(t, err)
	testutil.BackdateToken(t, db, token.ID, time.Now().UTC().Add(-age))
}

func TestIssue_StoresHashedCodeAndSendsEmail(t *testing.T) {
	svc, repo, _, hasher, mail, _ := newService(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "alice")

	raw, err := svc.Issue(ctx, user.ID, models.ActionDeleteAccount, nil)

	require.NoError(t, err)
	assert.Len(t, raw, hashing.RawCodeLength*2) // hex encoded

	require.Len(t, mail.sent, 1)
	assert.Equal(t, user.Email, mail.sent[0].Recipient)
	assert.Equal(t, models.ActionDeleteAccount, mail.sent[0].Action)
	assert.Equal(t, raw, mail.sent[0].RawCode)

	// Only the keyed hash is stored; the raw code never is.
	token, err := repo.GetConfirmationTokenByCode(ctx, hasher.KeyedHash(raw))
	require.NoError(t, err)
	assert.NotEqual(t, raw, token.AccessCode)

	_, err = repo.GetConfirmationTokenByCode(ctx, raw)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestIssue_UnknownActionType(t *testing.T) {
	svc, repo, _, _, _, _ := newService(t)
	user := testutil.NewTestUser(t, repo, "alice")

	_, err := svc.Issue(context.Background(), user.ID, "reset_everything", nil)

	assert.Error(t, err)
}

func TestIssue_NewPasswordRejectedWhenPasswordSet(t *testing.T) {
	svc, repo, _, _, _, _ := newService(t)
	user := testutil.NewTestUserWithPassword(t, repo, "alice", "some-bcrypt-hash")

	hash := "new-hash"
	_, err := svc.Issue(context.Background(), user.ID, models.ActionConfirmNewPassword, &hash)

	assert.ErrorIs(t, err, confirmation.ErrInvalidState)
}

func TestIssue_DoesNotInvalidateEarlierTokens(t *testing.T) {
	svc, repo, _, _, _, _ := newService(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "alice")

	first, err := svc.Issue(ctx, user.ID, models.ActionChangePassword, nil)
	require.NoError(t, err)
	_, err = svc.Issue(ctx, user.ID, models.ActionChangePassword, nil)
	require.NoError(t, err)

	// The earlier code still resolves.
	action, err := svc.LookupType(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, models.ActionChangePassword, action)

	n, err := repo.CountConfirmationTokens(ctx, user.ID, models.ActionChangePassword)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestIssueForEmail_UnknownAddressIsSilent(t *testing.T) {
	svc, _, _, _, mail, _ := newService(t)

	err := svc.IssueForEmail(context.Background(), "nobody@example.com")

	require.NoError(t, err)
	assert.Empty(t, mail.sent)
}

func TestIssueForEmail_KnownAddress(t *testing.T) {
	svc, repo, _, _, mail, _ := newService(t)
	user := testutil.NewTestUser(t, repo, "alice")

	err := svc.IssueForEmail(context.Background(), user.Email)

	require.NoError(t, err)
	require.Len(t, mail.sent, 1)
	assert.Equal(t, models.ActionChangePassword, mail.sent[0].Action)
}

func TestLookupType(t *testing.T) {
	svc, repo, _, _, _, _ := newService(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "alice")

	raw, err := svc.Issue(ctx, user.ID, models.ActionDeleteAccount, nil)
	require.NoError(t, err)

	action, err := svc.LookupType(ctx, raw)

	require.NoError(t, err)
	assert.Equal(t, models.ActionDeleteAccount, action)
}

func TestLookupType_UnknownCode(t *testing.T) {
	svc, _, _, _, _, _ := newService(t)

	_, err := svc.LookupType(context.Background(), "not-a-real-code")

	assert.ErrorIs(t, err, confirmation.ErrNotFound)
}

func TestLookupType_ExpiredLooksLikeUnknown(t *testing.T) {
	svc, repo, db, hasher, _, _ := newService(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "alice")

	raw, err := svc.Issue(ctx, user.ID, models.ActionChangePassword, nil)
	require.NoError(t, err)
	backdate(t, db, repo, hasher, raw, 31*time.Minute)

	_, err = svc.LookupType(ctx, raw)

	assert.ErrorIs(t, err, confirmation.ErrNotFound)
}

func TestCancel_ClearsAllTokensOfSameType(t *testing.T) {
	svc, repo, _, _, _, _ := newService(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "alice")

	first, err := svc.Issue(ctx, user.ID, models.ActionChangePassword, nil)
	require.NoError(t, err)
	second, err := svc.Issue(ctx, user.ID, models.ActionChangePassword, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(ctx, first))

	_, err = svc.LookupType(ctx, first)
	assert.ErrorIs(t, err, confirmation.ErrNotFound)
	_, err = svc.LookupType(ctx, second)
	assert.ErrorIs(t, err, confirmation.ErrNotFound)
}

func TestCancel_LeavesOtherTypesAlone(t *testing.T) {
	svc, repo, _, _, _, _ := newService(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "alice")

	change, err := svc.Issue(ctx, user.ID, models.ActionChangePassword, nil)
	require.NoError(t, err)
	del, err := svc.Issue(ctx, user.ID, models.ActionDeleteAccount, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(ctx, change))

	action, err := svc.LookupType(ctx, del)
	require.NoError(t, err)
	assert.Equal(t, models.ActionDeleteAccount, action)
}

func TestCancel_UnknownCode(t *testing.T) {
	svc, _, _, _, _, _ := newService(t)

	err := svc.Cancel(context.Background(), "not-a-real-code")

	assert.ErrorIs(t, err, confirmation.ErrNotFound)
}

func TestCancel_WorksOnExpiredToken(t *testing.T) {
	svc, repo, db, hasher, _, _ := newService(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "alice")

	raw, err := svc.Issue(ctx, user.ID, models.ActionChangePassword, nil)
	require.NoError(t, err)
	backdate(t, db, repo, hasher, raw, time.Hour)

	// Cancelling never checks the TTL; the stale row still gets cleared.
	require.NoError(t, svc.Cancel(ctx, raw))

	n, err := repo.CountConfirmationTokens(ctx, user.ID, models.ActionChangePassword)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestConfirm_NewPassword(t *testing.T) {
	svc, repo, _, hasher, _, _ := newService(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "alice")

	hash, err := hasher.HashPassword("hunter2!")
	require.NoError(t, err)
	raw, err := svc.Issue(ctx, user.ID, models.ActionConfirmNewPassword, &hash)
	require.NoError(t, err)

	err = svc.Confirm(ctx, raw, models.ActionConfirmNewPassword, confirmation.ConfirmArgs{})

	require.NoError(t, err)
	reloaded, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, hasher.Verify("hunter2!", reloaded.PasswordHash))
}

func TestConfirm_NewPassword_RaceGuard(t *testing.T) {
	svc, repo, _, hasher, _, _ := newService(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "alice")

	hash, err := hasher.HashPassword("hunter2!")
	require.NoError(t, err)
	raw, err := svc.Issue(ctx, user.ID, models.ActionConfirmNewPassword, &hash)
	require.NoError(t, err)

	// A password appears through another path between issue and confirm.
	other, err := hasher.HashPassword("different")
	require.NoError(t, err)
	require.NoError(t, repo.UpdateUserPassword(ctx, user.ID, &other))

	err = svc.Confirm(ctx, raw, models.ActionConfirmNewPassword, confirmation.ConfirmArgs{})

	assert.ErrorIs(t, err, confirmation.ErrInvalidState)
	reloaded, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, hasher.Verify("different", reloaded.PasswordHash))
}

func TestConfirm_SingleUse(t *testing.T) {
	svc, repo, _, hasher, _, _ := newService(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "alice")

	hash, err := hasher.HashPassword("hunter2!")
	require.NoError(t, err)
	raw, err := svc.Issue(ctx, user.ID, models.ActionConfirmNewPassword, &hash)
	require.NoError(t, err)

	require.NoError(t, svc.Confirm(ctx, raw, models.ActionConfirmNewPassword, confirmation.ConfirmArgs{}))
	err = svc.Confirm(ctx, raw, models.ActionConfirmNewPassword, confirmation.ConfirmArgs{})

	assert.ErrorIs(t, err, confirmation.ErrInvalidOrExpired)
}

func TestConfirm_WrongActionType(t *testing.T) {
	svc, repo, _, _, _, _ := newService(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "alice")

	raw, err := svc.Issue(ctx, user.ID, models.ActionChangePassword, nil)
	require.NoError(t, err)

	err = svc.Confirm(ctx, raw, models.ActionDeleteAccount, confirmation.ConfirmArgs{})

	assert.ErrorIs(t, err, confirmation.ErrInvalidOrExpired)

	// The mismatch does not burn the token.
	action, err := svc.LookupType(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, models.ActionChangePassword, action)
}

func TestConfirm_Expired(t *testing.T) {
	svc, repo, db, hasher, _, _ := newService(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "alice")

	raw, err := svc.Issue(ctx, user.ID, models.ActionDeleteAccount, nil)
	require.NoError(t, err)
	backdate(t, db, repo, hasher, raw, 30*time.Minute)

	err = svc.Confirm(ctx, raw, models.ActionDeleteAccount, confirmation.ConfirmArgs{})

	assert.ErrorIs(t, err, confirmation.ErrInvalidOrExpired)

	// The account survives an expired deletion code.
	_, err = repo.GetUserByID(ctx, user.ID)
	assert.NoError(t, err)
}

func TestConfirm_PasswordChange(t *testing.T) {
	svc, repo, _, hasher, _, guard := newService(t)
	ctx := context.Background()

	oldHash, err := hasher.HashPassword("old-password")
	require.NoError(t, err)
	user := testutil.NewTestUserWithPassword(t, repo, "alice", oldHash)

	raw, err := svc.Issue(ctx, user.ID, models.ActionChangePassword, nil)
	require.NoError(t, err)

	err = svc.Confirm(ctx, raw, models.ActionChangePassword, confirmation.ConfirmArgs{
		NewPassword:     "brand-new-password",
		ConfirmPassword: "brand-new-password",
		KeepSessionID:   "current-session",
	})

	require.NoError(t, err)
	reloaded, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, hasher.Verify("brand-new-password", reloaded.PasswordHash))
	assert.False(t, hasher.Verify("old-password", reloaded.PasswordHash))

	// Every other session gets logged out.
	assert.Equal(t, 1, guard.Calls)
	assert.Equal(t, user.ID, guard.UserID)
	assert.Equal(t, "current-session", guard.KeepID)
}

func TestConfirm_PasswordChange_Mismatch(t *testing.T) {
	svc, repo, _, hasher, _, guard := newService(t)
	ctx := context.Background()

	oldHash, err := hasher.HashPassword("old-password")
	require.NoError(t, err)
	user := testutil.NewTestUserWithPassword(t, repo, "alice", oldHash)

	raw, err := svc.Issue(ctx, user.ID, models.ActionChangePassword, nil)
	require.NoError(t, err)

	err = svc.Confirm(ctx, raw, models.ActionChangePassword, confirmation.ConfirmArgs{
		NewPassword:     "brand-new-password",
		ConfirmPassword: "something-else",
	})

	assert.ErrorIs(t, err, confirmation.ErrPasswordMismatch)
	assert.Zero(t, guard.Calls)

	// The token survives the failed attempt.
	action, err := svc.LookupType(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, models.ActionChangePassword, action)
}

func TestConfirm_PasswordChange_Expired(t *testing.T) {
	svc, repo, db, hasher, _, guard := newService(t)
	ctx := context.Background()

	oldHash, err := hasher.HashPassword("old-password")
	require.NoError(t, err)
	user := testutil.NewTestUserWithPassword(t, repo, "alice", oldHash)

	raw, err := svc.Issue(ctx, user.ID, models.ActionChangePassword, nil)
	require.NoError(t, err)
	backdate(t, db, repo, hasher, raw, 31*time.Minute)

	err = svc.Confirm(ctx, raw, models.ActionChangePassword, confirmation.ConfirmArgs{
		NewPassword:     "brand-new-password",
		ConfirmPassword: "brand-new-password",
	})

	assert.ErrorIs(t, err, confirmation.ErrInvalidOrExpired)
	assert.Zero(t, guard.Calls)

	// The old password stays in place.
	reloaded, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, hasher.Verify("old-password", reloaded.PasswordHash))
}

func TestConfirm_NewPassword_InvalidatesChangeTokens(t *testing.T) {
	svc, repo, _, hasher, _, _ := newService(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "alice")

	change, err := svc.Issue(ctx, user.ID, models.ActionChangePassword, nil)
	require.NoError(t, err)

	hash, err := hasher.HashPassword("hunter2!")
	require.NoError(t, err)
	raw, err := svc.Issue(ctx, user.ID, models.ActionConfirmNewPassword, &hash)
	require.NoError(t, err)

	require.NoError(t, svc.Confirm(ctx, raw, models.ActionConfirmNewPassword, confirmation.ConfirmArgs{}))

	// Both password actions mutate the same field; the stale change token
	// must not still work.
	_, err = svc.LookupType(ctx, change)
	assert.ErrorIs(t, err, confirmation.ErrNotFound)
}

func TestConfirm_AccountDeletion(t *testing.T) {
	svc, repo, _, _, _, _ := newService(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "alice")
	testutil.NewTestIdentity(t, repo, user.ID, models.ProviderGitHub, "gh-1")

	raw, err := svc.Issue(ctx, user.ID, models.ActionDeleteAccount, nil)
	require.NoError(t, err)

	err = svc.Confirm(ctx, raw, models.ActionDeleteAccount, confirmation.ConfirmArgs{})

	require.NoError(t, err)
	_, err = repo.GetUserByID(ctx, user.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// Identities cascade with the account.
	n, err := repo.CountUserIdentities(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTTLFor(t *testing.T) {
	assert.Equal(t, 24*time.Hour, confirmation.TTLFor(models.ActionConfirmNewPassword))
	assert.Equal(t, 30*time.Minute, confirmation.TTLFor(models.ActionChangePassword))
	assert.Equal(t, 30*time.Minute, confirmation.TTLFor(models.ActionDeleteAccount))
}
