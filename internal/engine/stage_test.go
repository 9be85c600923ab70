package engine_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questforge/internal/config"
	"questforge/internal/domain"
	"questforge/internal/engine"
	"questforge/internal/engine/auth"
	"questforge/internal/events"
	"questforge/internal/repo"
)

func (env testEnv) forceStage(t *testing.T, projectID string, target domain.Stage) {
	t.Helper()
	for {
		p, err := env.Engine.GetProject(env.Ctx, projectID)
		require.NoError(t, err)
		if p.Stage == target {
			return
		}
		_, err = env.Engine.Advance(env.Ctx, projectID, engine.AdvanceOptions{ManualOverride: true, Admin: &env.Admin})
		require.NoError(t, err)
	}
}

func TestBuildProjectNeedsEightQuests(t *testing.T) {
	env := newTestEnv(t)
	p := env.team(t, "alice", "bob")
	env.forceStage(t, p.ID, domain.StageBuild)
	for i := 0; i < 4; i++ {
		env.verifiedQuest(t, "alice", p.ID)
	}

	check, err := env.Engine.CheckAdvancement(env.Ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, check.CanAdvance)
	assert.Equal(t, domain.StageProject, check.NextStage)
	assert.Equal(t, 4, check.QuestsCompleted)
	assert.Equal(t, 2, check.TeamMemberCount)
	require.Len(t, check.MissingRequirements, 1)
	assert.Contains(t, check.MissingRequirements[0], "4 more verified quests")

	_, err = env.Engine.Advance(env.Ctx, p.ID, engine.AdvanceOptions{ActorID: "alice"})
	require.ErrorIs(t, err, engine.ErrRequirementsNotMet)
	var ee *engine.Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, check.MissingRequirements, ee.Details["missing_requirements"])

	got, err := env.Engine.GetProject(env.Ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageBuild, got.Stage)

	pct, err := env.Engine.ProgressToNextStage(env.Ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, pct)
}

func TestAdvanceMovesExactlyOneStage(t *testing.T) {
	env := newTestEnv(t)
	p := env.team(t, "alice")
	env.verifiedQuest(t, "alice", p.ID)

	_, err := env.Engine.Advance(env.Ctx, p.ID, engine.AdvanceOptions{ActorID: "alice"})
	require.ErrorIs(t, err, engine.ErrRequirementsNotMet)

	env.verifiedQuest(t, "alice", p.ID)
	check, err := env.Engine.CheckAdvancement(env.Ctx, p.ID)
	require.NoError(t, err)
	require.True(t, check.CanAdvance)

	_, err = env.Engine.Advance(env.Ctx, p.ID, engine.AdvanceOptions{ActorID: "mallory"})
	require.ErrorIs(t, err, engine.ErrForbidden)

	got, err := env.Engine.Advance(env.Ctx, p.ID, engine.AdvanceOptions{ActorID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, domain.StagePrototype, got.Stage)

	// BUILD needs 4 quests and 2 members; the project has 2 and 1.
	check, err = env.Engine.CheckAdvancement(env.Ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, check.CanAdvance)
	assert.Len(t, check.MissingRequirements, 2)

	evts, err := env.Engine.ListEvents(env.Ctx, repo.EventFilters{ProjectID: p.ID, Type: events.StageAdvanced})
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Contains(t, evts[0].Payload, `"manual_override":false`)
}

func TestManualOverrideRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	p := env.team(t, "alice")

	_, err := env.Engine.Advance(env.Ctx, p.ID, engine.AdvanceOptions{ManualOverride: true})
	require.ErrorIs(t, err, engine.ErrUnauthorized)

	founder := auth.Admin("alice")
	_, err = env.Engine.Advance(env.Ctx, p.ID, engine.AdvanceOptions{ManualOverride: true, Admin: &founder})
	require.ErrorIs(t, err, engine.ErrUnauthorized)

	got, err := env.Engine.Advance(env.Ctx, p.ID, engine.AdvanceOptions{ManualOverride: true, Admin: &env.Admin})
	require.NoError(t, err)
	assert.Equal(t, domain.StagePrototype, got.Stage)
}

func TestFinalStage(t *testing.T) {
	env := newTestEnv(t)
	p := env.team(t, "alice")
	env.forceStage(t, p.ID, domain.StageScale)

	check, err := env.Engine.CheckAdvancement(env.Ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, check.CanAdvance)
	assert.True(t, strings.Contains(check.Reason, "final stage"))

	_, err = env.Engine.Advance(env.Ctx, p.ID, engine.AdvanceOptions{ManualOverride: true, Admin: &env.Admin})
	require.ErrorIs(t, err, engine.ErrAlreadyFinal)

	pct, err := env.Engine.ProgressToNextStage(env.Ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, pct)
}

func TestCheckAdvancementUnknownProject(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CheckAdvancement(env.Ctx, "nope")
	require.ErrorIs(t, err, engine.ErrNotFound)
	_, err = env.Engine.Advance(env.Ctx, "nope", engine.AdvanceOptions{ActorID: "alice"})
	require.ErrorIs(t, err, engine.ErrNotFound)
}

func TestVerifyAutoAdvances(t *testing.T) {
	cfg := config.Default()
	cfg.Stages.AutoAdvance = true
	env := newTestEnvWithConfig(t, cfg)
	p := env.team(t, "alice")

	env.verifiedQuest(t, "alice", p.ID)
	got, err := env.Engine.GetProject(env.Ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageIdea, got.Stage)

	env.verifiedQuest(t, "alice", p.ID)
	got, err = env.Engine.GetProject(env.Ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StagePrototype, got.Stage)
}

func TestVerifySucceedsWhenStageCheckFails(t *testing.T) {
	cfg := config.Default()
	cfg.Stages.AutoAdvance = true
	delete(cfg.Stages.Requirements, domain.StagePrototype)
	env := newTestEnvWithConfig(t, cfg)
	p := env.team(t, "alice")

	sub := env.verifiedQuest(t, "alice", p.ID)
	assert.Equal(t, domain.TeamVerified, sub.State)

	_, err := env.Engine.CheckAdvancement(env.Ctx, p.ID)
	require.Error(t, err)
}
