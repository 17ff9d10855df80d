// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package teams_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/oliverandrich/modhost/internal/models"
	"codeberg.org/oliverandrich/modhost/internal/repository"
	"codeberg.org/oliverandrich/modhost/internal/services/teams"
	"codeberg.org/oliverandrich/modhost/internal/testutil"
)

type chargeSpy struct {
	Charges int
}

func (c *chargeSpy) Charge(_ context.Context, weight int) {
	c.Charges += weight
}

func newService(t *testing.T) (*teams.Service, *repository.Repository, *chargeSpy) {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	guard := &chargeSpy{}
	return teams.NewService(repo, guard), repo, guard
}

// fixture builds a team with an owner and one accepted plain member, and
// returns the team plus both users.
func fixture(t *testing.T, repo *repository.Repository) (*models.Team, *models.User, *models.User) {
	t.Helper()
	team := testutil.NewTestTeam(t, repo)
	owner := testutil.NewTestUser(t, repo, "owner")
	member := testutil.NewTestUser(t, repo, "member")
	testutil.NewTestMember(t, repo, team.ID, owner.ID, models.TeamMember{
		Role: "Owner", IsOwner: true, Accepted: true, Permissions: models.PermAllProject,
	})
	testutil.NewTestMember(t, repo, team.ID, member.ID, models.TeamMember{
		Accepted: true, Permissions: models.PermUploadVersion,
	})
	return team, owner, member
}

func TestListMembers_AcceptedMemberSeesPermissions(t *testing.T) {
	svc, repo, _ := newService(t)
	team, _, member := fixture(t, repo)

	got, err := svc.ListMembers(context.Background(), team.ID, member.ID)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.PermAllProject, got[0].Permissions)
}

func TestListMembers_OutsiderSeesRedactedPermissions(t *testing.T) {
	svc, repo, _ := newService(t)
	team, _, _ := fixture(t, repo)
	outsider := testutil.NewTestUser(t, repo, "outsider")

	got, err := svc.ListMembers(context.Background(), team.ID, outsider.ID)

	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, m := range got {
		assert.EqualValues(t, 0, m.Permissions)
	}
}

func TestInviteMember(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()
	team, owner, _ := fixture(t, repo)
	invitee := testutil.NewTestUser(t, repo, "invitee")

	err := svc.InviteMember(ctx, team.ID, owner.ID, teams.InviteParams{
		UserID:      invitee.ID,
		Role:        "Member",
		Permissions: models.PermUploadVersion,
	})

	require.NoError(t, err)
	row, err := repo.GetTeamMember(ctx, team.ID, invitee.ID)
	require.NoError(t, err)
	assert.False(t, row.Accepted)
	assert.Equal(t, models.PermUploadVersion, row.Permissions)
}

func TestInviteMember_NonMemberGetsNotFound(t *testing.T) {
	svc, repo, _ := newService(t)
	team, _, _ := fixture(t, repo)
	outsider := testutil.NewTestUser(t, repo, "outsider")
	invitee := testutil.NewTestUser(t, repo, "invitee")

	// A non-member learns nothing about the team, not even that it exists.
	err := svc.InviteMember(context.Background(), team.ID, outsider.ID, teams.InviteParams{UserID: invitee.ID})

	assert.ErrorIs(t, err, teams.ErrNotMember)
}

func TestInviteMember_MemberWithoutPermission(t *testing.T) {
	svc, repo, guard := newService(t)
	team, _, member := fixture(t, repo)
	invitee := testutil.NewTestUser(t, repo, "invitee")

	// A recognized member without MANAGE_INVITES gets the explicit denial
	// and an abuse charge.
	err := svc.InviteMember(context.Background(), team.ID, member.ID, teams.InviteParams{UserID: invitee.ID})

	assert.ErrorIs(t, err, teams.ErrUnauthorized)
	assert.Equal(t, 1, guard.Charges)
}

func TestInviteMember_UnacceptedActorGetsNotFound(t *testing.T) {
	svc, repo, _ := newService(t)
	team, _, _ := fixture(t, repo)
	pending := testutil.NewTestUser(t, repo, "pending")
	testutil.NewTestMember(t, repo, team.ID, pending.ID, models.TeamMember{Permissions: models.PermAllProject})
	invitee := testutil.NewTestUser(t, repo, "invitee")

	err := svc.InviteMember(context.Background(), team.ID, pending.ID, teams.InviteParams{UserID: invitee.ID})

	assert.ErrorIs(t, err, teams.ErrNotMember)
}

func TestInviteMember_AlreadyMember(t *testing.T) {
	svc, repo, _ := newService(t)
	team, owner, member := fixture(t, repo)

	err := svc.InviteMember(context.Background(), team.ID, owner.ID, teams.InviteParams{UserID: member.ID})

	assert.ErrorIs(t, err, teams.ErrAlreadyMember)
}

func TestAcceptInvite(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()
	team, _, _ := fixture(t, repo)
	invitee := testutil.NewTestUser(t, repo, "invitee")
	testutil.NewTestMember(t, repo, team.ID, invitee.ID, models.TeamMember{Permissions: models.PermUploadVersion})

	err := svc.AcceptInvite(ctx, team.ID, invitee.ID)

	require.NoError(t, err)
	row, err := repo.GetTeamMember(ctx, team.ID, invitee.ID)
	require.NoError(t, err)
	assert.True(t, row.Accepted)
	assert.NotNil(t, row.AcceptedAt)
}

func TestAcceptInvite_NoPendingInvite(t *testing.T) {
	svc, repo, _ := newService(t)
	team, _, member := fixture(t, repo)
	outsider := testutil.NewTestUser(t, repo, "outsider")

	assert.ErrorIs(t, svc.AcceptInvite(context.Background(), team.ID, outsider.ID), teams.ErrNoInvite)

	// Accepting twice is also a no-invite situation.
	assert.ErrorIs(t, svc.AcceptInvite(context.Background(), team.ID, member.ID), teams.ErrNoInvite)
}

func TestEditMember(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()
	team, owner, member := fixture(t, repo)

	err := svc.EditMember(ctx, team.ID, owner.ID, member.ID, teams.EditParams{
		Role:        "Maintainer",
		Permissions: models.PermUploadVersion | models.PermEditDetails,
	})

	require.NoError(t, err)
	row, err := repo.GetTeamMember(ctx, team.ID, member.ID)
	require.NoError(t, err)
	assert.Equal(t, "Maintainer", row.Role)
	assert.Equal(t, models.PermUploadVersion|models.PermEditDetails, row.Permissions)
}

func TestEditMember_OwnerKeepsPermissions(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()
	team, owner, _ := fixture(t, repo)

	// An edit aimed at the owner can rename the role but never strip the
	// permission sets.
	err := svc.EditMember(ctx, team.ID, owner.ID, owner.ID, teams.EditParams{
		Role:        "Founder",
		Permissions: 0,
	})

	require.NoError(t, err)
	row, err := repo.GetTeamMember(ctx, team.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "Founder", row.Role)
	assert.Equal(t, models.PermAllProject, row.Permissions)
}

func TestEditMember_TargetNotFound(t *testing.T) {
	svc, repo, _ := newService(t)
	team, owner, _ := fixture(t, repo)

	err := svc.EditMember(context.Background(), team.ID, owner.ID, 9999, teams.EditParams{Role: "Member"})

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestEditMember_WithoutPermission(t *testing.T) {
	svc, repo, guard := newService(t)
	team, owner, member := fixture(t, repo)

	err := svc.EditMember(context.Background(), team.ID, member.ID, owner.ID, teams.EditParams{Role: "Peon"})

	assert.ErrorIs(t, err, teams.ErrUnauthorized)
	assert.Equal(t, 1, guard.Charges)
}

func TestRemoveMember(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()
	team, owner, member := fixture(t, repo)

	err := svc.RemoveMember(ctx, team.ID, owner.ID, member.ID)

	require.NoError(t, err)
	_, err = repo.GetTeamMember(ctx, team.ID, member.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRemoveMember_OwnerImmutable(t *testing.T) {
	svc, repo, _ := newService(t)
	team, owner, _ := fixture(t, repo)

	err := svc.RemoveMember(context.Background(), team.ID, owner.ID, owner.ID)

	assert.ErrorIs(t, err, teams.ErrOwnerImmutable)
}

func TestRemoveMember_NonMemberGetsNotFound(t *testing.T) {
	svc, repo, _ := newService(t)
	team, _, member := fixture(t, repo)
	outsider := testutil.NewTestUser(t, repo, "outsider")

	err := svc.RemoveMember(context.Background(), team.ID, outsider.ID, member.ID)

	assert.ErrorIs(t, err, teams.ErrNotMember)
}
