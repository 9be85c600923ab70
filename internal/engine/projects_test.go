package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questforge/internal/domain"
	"questforge/internal/engine"
	"questforge/internal/engine/auth"
	"questforge/internal/repo"
)

func TestProjectMembership(t *testing.T) {
	env := newTestEnv(t)
	p := env.team(t, "alice", "bob")
	assert.Equal(t, domain.StageIdea, p.Stage)

	members, err := env.Engine.ListMembers(env.Ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "alice", members[0].ParticipantID)
	assert.Equal(t, domain.RoleAdmin, members[0].Role)
	assert.Equal(t, domain.RoleMember, members[1].Role)

	_, err = env.Engine.AddMember(env.Ctx, "bob", p.ID, "carol", domain.RoleMember)
	require.ErrorIs(t, err, engine.ErrForbidden)
	_, err = env.Engine.AddMember(env.Ctx, "alice", p.ID, "bob", domain.RoleMember)
	require.ErrorIs(t, err, engine.ErrAlreadyExists)
	_, err = env.Engine.AddMember(env.Ctx, "alice", p.ID, "carol", "owner")
	require.ErrorIs(t, err, engine.ErrInvalidInput)

	require.ErrorIs(t, env.Engine.RemoveMember(env.Ctx, "bob", p.ID, "alice"), engine.ErrForbidden)
	require.NoError(t, env.Engine.RemoveMember(env.Ctx, "bob", p.ID, "bob"))
	require.ErrorIs(t, env.Engine.RemoveMember(env.Ctx, "alice", p.ID, "bob"), engine.ErrNotFound)

	// the last admin may leave
	require.NoError(t, env.Engine.RemoveMember(env.Ctx, "alice", p.ID, "alice"))
	members, err = env.Engine.ListMembers(env.Ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, members)

	evts, err := env.Engine.ListEvents(env.Ctx, repo.EventFilters{ProjectID: p.ID, Type: "project.member.removed"})
	require.NoError(t, err)
	assert.Len(t, evts, 2)
}

func TestAdminGrantAndRevoke(t *testing.T) {
	env := newTestEnv(t)

	require.ErrorIs(t, env.Engine.GrantAdmin(env.Ctx, auth.Admin("alice"), "bob"), engine.ErrUnauthorized)
	require.NoError(t, env.Engine.GrantAdmin(env.Ctx, env.Admin, "alice"))
	require.ErrorIs(t, env.Engine.GrantAdmin(env.Ctx, env.Admin, "alice"), engine.ErrAlreadyExists)

	ids, err := env.Engine.ListAdmins(env.Ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{adminID, "alice"}, ids)

	require.NoError(t, env.Engine.RevokeAdmin(env.Ctx, auth.Admin("alice"), adminID))
	require.ErrorIs(t, env.Engine.RevokeAdmin(env.Ctx, auth.Admin("alice"), adminID), engine.ErrNotFound)

	// a revoked capability is refused on its next use
	_, err = env.Engine.CreateQuest(env.Ctx, env.Admin, engine.CreateQuestOptions{Title: "late"})
	require.ErrorIs(t, err, engine.ErrUnauthorized)
	assert.Equal(t, engine.KindAuthorization, engine.KindOf(err))
}

func TestReadEventsScopesNonAdmins(t *testing.T) {
	env := newTestEnv(t)
	p := env.team(t, "alice")

	_, err := env.Engine.ReadEvents(env.Ctx, "mallory", repo.EventFilters{})
	require.ErrorIs(t, err, engine.ErrUnauthorized)
	_, err = env.Engine.ReadEvents(env.Ctx, "mallory", repo.EventFilters{ProjectID: p.ID})
	require.ErrorIs(t, err, engine.ErrForbidden)

	evts, err := env.Engine.ReadEvents(env.Ctx, "alice", repo.EventFilters{ProjectID: p.ID})
	require.NoError(t, err)
	assert.NotEmpty(t, evts)

	_, err = env.Engine.ReadEvents(env.Ctx, adminID, repo.EventFilters{})
	require.NoError(t, err)
}
