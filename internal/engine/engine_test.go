package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questforge/internal/config"
	"questforge/internal/db"
	"questforge/internal/domain"
	"questforge/internal/engine"
	"questforge/internal/engine/auth"
	"questforge/internal/migrate"
	"questforge/internal/repo"
)

const adminID = "admin-1"

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	Admin  auth.AdminContext
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, config.Default())
}

func newTestEnvWithConfig(t *testing.T, cfg *config.Config) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return fixedNow }
	ctx := context.Background()
	admin := auth.Admin(adminID)
	require.NoError(t, eng.GrantAdmin(ctx, auth.AdminContext{}, adminID))
	return testEnv{Engine: eng, Ctx: ctx, Admin: admin}
}

func intPtr(v int) *int { return &v }

func (env testEnv) quest(t *testing.T, opts engine.CreateQuestOptions) domain.Quest {
	t.Helper()
	if opts.Title == "" {
		opts.Title = "quest"
	}
	q, err := env.Engine.CreateQuest(env.Ctx, env.Admin, opts)
	require.NoError(t, err)
	return q
}

// team creates a project founded by founder with the extra participants as members.
func (env testEnv) team(t *testing.T, founder string, members ...string) domain.Project {
	t.Helper()
	p, err := env.Engine.CreateProject(env.Ctx, founder, "team of "+founder)
	require.NoError(t, err)
	for _, m := range members {
		_, err := env.Engine.AddMember(env.Ctx, founder, p.ID, m, domain.RoleMember)
		require.NoError(t, err)
	}
	return p
}

// verifiedQuest runs a fresh team quest through apply, progress, submit and verify.
func (env testEnv) verifiedQuest(t *testing.T, actor, projectID string) domain.TeamSubmission {
	t.Helper()
	q := env.quest(t, engine.CreateQuestOptions{QuestType: domain.QuestTeam})
	_, err := env.Engine.ApplyTeam(env.Ctx, actor, projectID, q.ID)
	require.NoError(t, err)
	_, err = env.Engine.UpdateTeamProgress(env.Ctx, actor, projectID, q.ID, engine.ProgressUpdate{Progress: 100})
	require.NoError(t, err)
	sub, err := env.Engine.SubmitTeam(env.Ctx, actor, projectID, q.ID, engine.TeamSubmitInput{Link: "https://example.com/demo", Text: "done"})
	require.NoError(t, err)
	sub, err = env.Engine.Verify(env.Ctx, env.Admin, sub.ID, engine.VerifyInput{Notes: "ok"})
	require.NoError(t, err)
	return sub
}

func TestCapacityRejectsSecondTeam(t *testing.T) {
	env := newTestEnv(t)
	q := env.quest(t, engine.CreateQuestOptions{QuestType: domain.QuestTeam, MaxSubmissions: intPtr(1)})
	a := env.team(t, "alice")
	b := env.team(t, "bob")

	_, err := env.Engine.ApplyTeam(env.Ctx, "alice", a.ID, q.ID)
	require.NoError(t, err)

	_, err = env.Engine.ApplyTeam(env.Ctx, "bob", b.ID, q.ID)
	require.ErrorIs(t, err, engine.ErrCapacityExceeded)
	assert.Equal(t, "quest has reached maximum submissions", err.Error())
	assert.Equal(t, engine.KindConflict, engine.KindOf(err))

	n, err := env.Engine.Repo.CountQuestSubmissions(env.Ctx, nil, q.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCapacityCountsIndividualsAndTeams(t *testing.T) {
	env := newTestEnv(t)
	q := env.quest(t, engine.CreateQuestOptions{QuestType: domain.QuestBoth, MaxSubmissions: intPtr(2)})
	p := env.team(t, "alice")

	_, err := env.Engine.ApplyIndividual(env.Ctx, "carol", q.ID)
	require.NoError(t, err)
	_, err = env.Engine.ApplyTeam(env.Ctx, "alice", p.ID, q.ID)
	require.NoError(t, err)
	_, err = env.Engine.ApplyIndividual(env.Ctx, "dave", q.ID)
	require.ErrorIs(t, err, engine.ErrCapacityExceeded)
}

func TestZeroCapacityAcceptsNobody(t *testing.T) {
	env := newTestEnv(t)
	q := env.quest(t, engine.CreateQuestOptions{QuestType: domain.QuestIndividual, MaxSubmissions: intPtr(0)})
	_, err := env.Engine.ApplyIndividual(env.Ctx, "carol", q.ID)
	require.ErrorIs(t, err, engine.ErrCapacityExceeded)
}

func TestApplyTwiceIsAlreadyExists(t *testing.T) {
	env := newTestEnv(t)
	q := env.quest(t, engine.CreateQuestOptions{QuestType: domain.QuestBoth})
	p := env.team(t, "alice")

	_, err := env.Engine.ApplyIndividual(env.Ctx, "carol", q.ID)
	require.NoError(t, err)
	_, err = env.Engine.ApplyIndividual(env.Ctx, "carol", q.ID)
	require.ErrorIs(t, err, engine.ErrAlreadyExists)

	_, err = env.Engine.ApplyTeam(env.Ctx, "alice", p.ID, q.ID)
	require.NoError(t, err)
	_, err = env.Engine.ApplyTeam(env.Ctx, "alice", p.ID, q.ID)
	require.ErrorIs(t, err, engine.ErrAlreadyExists)
}

func TestStoreEnforcesNaturalKey(t *testing.T) {
	env := newTestEnv(t)
	q := env.quest(t, engine.CreateQuestOptions{QuestType: domain.QuestIndividual})
	sub := domain.IndividualSubmission{ID: "s1", ParticipantID: "carol", QuestID: q.ID, State: domain.IndividualNotStarted, CreatedAt: "t", UpdatedAt: "t"}
	require.NoError(t, env.Engine.Repo.InsertUserQuestWithinCapacity(env.Ctx, nil, sub))
	sub.ID = "s2"
	err := env.Engine.Repo.InsertUserQuestWithinCapacity(env.Ctx, nil, sub)
	require.ErrorIs(t, err, repo.ErrConflict)
}

func TestQuestTypeGating(t *testing.T) {
	env := newTestEnv(t)
	teamOnly := env.quest(t, engine.CreateQuestOptions{QuestType: domain.QuestTeam})
	soloOnly := env.quest(t, engine.CreateQuestOptions{QuestType: domain.QuestIndividual})
	p := env.team(t, "alice")

	_, err := env.Engine.ApplyIndividual(env.Ctx, "carol", teamOnly.ID)
	require.ErrorIs(t, err, engine.ErrTeamOnly)

	_, err = env.Engine.ApplyTeam(env.Ctx, "alice", p.ID, soloOnly.ID)
	require.ErrorIs(t, err, engine.ErrIndividualOnly)

	_, err = env.Engine.ApplyIndividual(env.Ctx, "carol", "missing")
	require.ErrorIs(t, err, engine.ErrNotFound)
}

func TestApplyOutsideWindowIsClosed(t *testing.T) {
	env := newTestEnv(t)
	future := env.quest(t, engine.CreateQuestOptions{QuestType: domain.QuestBoth, AvailableFrom: "2024-04-01T00:00:00Z"})
	past := env.quest(t, engine.CreateQuestOptions{QuestType: domain.QuestBoth, EndAt: "2024-02-01T00:00:00Z"})
	open := env.quest(t, engine.CreateQuestOptions{QuestType: domain.QuestBoth, AvailableFrom: "2024-02-01T00:00:00Z", EndAt: "2024-04-01T00:00:00Z"})

	_, err := env.Engine.ApplyIndividual(env.Ctx, "carol", future.ID)
	require.ErrorIs(t, err, engine.ErrQuestClosed)
	_, err = env.Engine.ApplyIndividual(env.Ctx, "carol", past.ID)
	require.ErrorIs(t, err, engine.ErrQuestClosed)
	_, err = env.Engine.ApplyIndividual(env.Ctx, "carol", open.ID)
	require.NoError(t, err)
}

func TestTeamMutationsRequireMembership(t *testing.T) {
	env := newTestEnv(t)
	q := env.quest(t, engine.CreateQuestOptions{QuestType: domain.QuestTeam})
	p := env.team(t, "alice")

	_, err := env.Engine.ApplyTeam(env.Ctx, "mallory", p.ID, q.ID)
	require.ErrorIs(t, err, engine.ErrForbidden)
	assert.Equal(t, engine.KindAuthorization, engine.KindOf(err))

	_, err = env.Engine.ApplyTeam(env.Ctx, "alice", p.ID, q.ID)
	require.NoError(t, err)
	_, err = env.Engine.UpdateTeamProgress(env.Ctx, "mallory", p.ID, q.ID, engine.ProgressUpdate{Progress: 10})
	require.ErrorIs(t, err, engine.ErrForbidden)
	_, err = env.Engine.SubmitTeam(env.Ctx, "mallory", p.ID, q.ID, engine.TeamSubmitInput{Link: "l", Text: "t"})
	require.ErrorIs(t, err, engine.ErrForbidden)
}

func TestIndividualCompletesOnce(t *testing.T) {
	env := newTestEnv(t)
	q := env.quest(t, engine.CreateQuestOptions{QuestType: domain.QuestIndividual})
	sub, err := env.Engine.ApplyIndividual(env.Ctx, "carol", q.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IndividualNotStarted, sub.State)

	_, err = env.Engine.UpdateIndividualProgress(env.Ctx, "carol", q.ID, engine.ProgressUpdate{Progress: 101})
	require.ErrorIs(t, err, engine.ErrOutOfRange)
	_, err = env.Engine.UpdateIndividualProgress(env.Ctx, "carol", q.ID, engine.ProgressUpdate{Progress: -1})
	require.ErrorIs(t, err, engine.ErrOutOfRange)

	sub, err = env.Engine.UpdateIndividualProgress(env.Ctx, "carol", q.ID, engine.ProgressUpdate{Progress: 0})
	require.NoError(t, err)
	assert.Equal(t, domain.IndividualNotStarted, sub.State)

	sub, err = env.Engine.UpdateIndividualProgress(env.Ctx, "carol", q.ID, engine.ProgressUpdate{Progress: 40})
	require.NoError(t, err)
	assert.Equal(t, domain.IndividualInProgress, sub.State)
	require.NotNil(t, sub.StartedAt)

	_, err = env.Engine.UpdateIndividualProgress(env.Ctx, "carol", q.ID, engine.ProgressUpdate{Progress: 100})
	require.ErrorIs(t, err, engine.ErrMissingField)

	sub, err = env.Engine.UpdateIndividualProgress(env.Ctx, "carol", q.ID, engine.ProgressUpdate{
		Progress: 100, Text: "wrote the tutorial", URLs: []string{"https://example.com/post"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.IndividualCompleted, sub.State)
	assert.Equal(t, 100, sub.Progress)
	require.NotNil(t, sub.CompletedAt)

	_, err = env.Engine.UpdateIndividualProgress(env.Ctx, "carol", q.ID, engine.ProgressUpdate{Progress: 100, Text: "again"})
	require.ErrorIs(t, err, engine.ErrAlreadyCompleted)

	stored, err := env.Engine.Repo.GetUserQuest(env.Ctx, nil, "carol", q.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/post"}, stored.ProofURLs)
	assert.Equal(t, domain.IndividualCompleted, stored.State)
}

func TestFailIndividual(t *testing.T) {
	env := newTestEnv(t)
	q := env.quest(t, engine.CreateQuestOptions{QuestType: domain.QuestIndividual})
	_, err := env.Engine.ApplyIndividual(env.Ctx, "carol", q.ID)
	require.NoError(t, err)

	_, err = env.Engine.FailIndividual(env.Ctx, auth.Admin("carol"), "carol", q.ID, "plagiarism")
	require.ErrorIs(t, err, engine.ErrUnauthorized)

	sub, err := env.Engine.FailIndividual(env.Ctx, env.Admin, "carol", q.ID, "plagiarism")
	require.NoError(t, err)
	assert.Equal(t, domain.IndividualFailed, sub.State)

	_, err = env.Engine.UpdateIndividualProgress(env.Ctx, "carol", q.ID, engine.ProgressUpdate{Progress: 50})
	require.ErrorIs(t, err, engine.ErrAlreadyCompleted)
}

func TestSubmitPreconditions(t *testing.T) {
	env := newTestEnv(t)
	q := env.quest(t, engine.CreateQuestOptions{QuestType: domain.QuestTeam})
	p := env.team(t, "alice", "bob")
	_, err := env.Engine.ApplyTeam(env.Ctx, "alice", p.ID, q.ID)
	require.NoError(t, err)

	sub, err := env.Engine.UpdateTeamProgress(env.Ctx, "bob", p.ID, q.ID, engine.ProgressUpdate{Progress: 60})
	require.NoError(t, err)
	assert.Equal(t, domain.TeamInProgress, sub.State)

	_, err = env.Engine.SubmitTeam(env.Ctx, "alice", p.ID, q.ID, engine.TeamSubmitInput{Link: "https://example.com", Text: "demo"})
	require.ErrorIs(t, err, engine.ErrIncompleteWork)

	sub, err = env.Engine.UpdateTeamProgress(env.Ctx, "bob", p.ID, q.ID, engine.ProgressUpdate{Progress: 100})
	require.NoError(t, err)
	assert.Equal(t, domain.TeamInProgress, sub.State, "progress alone never submits")

	_, err = env.Engine.SubmitTeam(env.Ctx, "alice", p.ID, q.ID, engine.TeamSubmitInput{Text: "demo"})
	require.ErrorIs(t, err, engine.ErrMissingField)

	sub, err = env.Engine.SubmitTeam(env.Ctx, "alice", p.ID, q.ID, engine.TeamSubmitInput{Link: "https://example.com", Text: "demo"})
	require.NoError(t, err)
	assert.Equal(t, domain.TeamSubmitted, sub.State)
	require.NotNil(t, sub.SubmittedBy)
	assert.Equal(t, "alice", *sub.SubmittedBy)

	_, err = env.Engine.SubmitTeam(env.Ctx, "alice", p.ID, q.ID, engine.TeamSubmitInput{Link: "https://example.com", Text: "demo"})
	require.ErrorIs(t, err, engine.ErrAlreadySubmitted)

	_, err = env.Engine.UpdateTeamProgress(env.Ctx, "bob", p.ID, q.ID, engine.ProgressUpdate{Progress: 90})
	require.ErrorIs(t, err, engine.ErrInvalidState)

	sub, err = env.Engine.Verify(env.Ctx, env.Admin, sub.ID, engine.VerifyInput{PaymentRef: "pay-1"})
	require.NoError(t, err)
	require.NotNil(t, sub.PaidAt)

	_, err = env.Engine.SubmitTeam(env.Ctx, "alice", p.ID, q.ID, engine.TeamSubmitInput{Link: "https://example.com", Text: "demo"})
	require.ErrorIs(t, err, engine.ErrAlreadySubmitted)
	_, err = env.Engine.UpdateTeamProgress(env.Ctx, "bob", p.ID, q.ID, engine.ProgressUpdate{Progress: 90})
	require.ErrorIs(t, err, engine.ErrAlreadyCompleted)
}

func TestRejectThenResubmit(t *testing.T) {
	env := newTestEnv(t)
	q := env.quest(t, engine.CreateQuestOptions{QuestType: domain.QuestTeam})
	p := env.team(t, "alice")
	_, err := env.Engine.ApplyTeam(env.Ctx, "alice", p.ID, q.ID)
	require.NoError(t, err)
	_, err = env.Engine.UpdateTeamProgress(env.Ctx, "alice", p.ID, q.ID, engine.ProgressUpdate{Progress: 100})
	require.NoError(t, err)
	sub, err := env.Engine.SubmitTeam(env.Ctx, "alice", p.ID, q.ID, engine.TeamSubmitInput{Link: "https://example.com", Text: "v1"})
	require.NoError(t, err)

	_, err = env.Engine.Reject(env.Ctx, env.Admin, sub.ID, "  ")
	require.ErrorIs(t, err, engine.ErrMissingField)
	_, err = env.Engine.Reject(env.Ctx, auth.Admin("alice"), sub.ID, "needs more detail")
	require.ErrorIs(t, err, engine.ErrUnauthorized)

	sub, err = env.Engine.Reject(env.Ctx, env.Admin, sub.ID, "needs more detail")
	require.NoError(t, err)
	assert.Equal(t, domain.TeamRejected, sub.State)
	assert.Equal(t, "needs more detail", sub.VerificationNotes)

	_, err = env.Engine.Reject(env.Ctx, env.Admin, sub.ID, "again")
	require.ErrorIs(t, err, engine.ErrInvalidState)
	_, err = env.Engine.Verify(env.Ctx, env.Admin, sub.ID, engine.VerifyInput{})
	require.ErrorIs(t, err, engine.ErrInvalidState)

	sub, err = env.Engine.UpdateTeamProgress(env.Ctx, "alice", p.ID, q.ID, engine.ProgressUpdate{Progress: 80, Text: "more detail"})
	require.NoError(t, err)
	assert.Equal(t, domain.TeamInProgress, sub.State)
	assert.Equal(t, 80, sub.Progress)

	_, err = env.Engine.UpdateTeamProgress(env.Ctx, "alice", p.ID, q.ID, engine.ProgressUpdate{Progress: 100})
	require.NoError(t, err)
	sub, err = env.Engine.SubmitTeam(env.Ctx, "alice", p.ID, q.ID, engine.TeamSubmitInput{Link: "https://example.com", Text: "v2"})
	require.NoError(t, err)
	assert.Equal(t, domain.TeamSubmitted, sub.State)
	assert.Nil(t, sub.VerifiedBy)

	sub, err = env.Engine.Verify(env.Ctx, env.Admin, sub.ID, engine.VerifyInput{Notes: "great"})
	require.NoError(t, err)
	assert.Equal(t, domain.TeamVerified, sub.State)
	_, err = env.Engine.Verify(env.Ctx, env.Admin, sub.ID, engine.VerifyInput{})
	require.ErrorIs(t, err, engine.ErrInvalidState)
}

func TestVerificationQueueAndStats(t *testing.T) {
	env := newTestEnv(t)
	p := env.team(t, "alice")
	env.verifiedQuest(t, "alice", p.ID)
	q := env.quest(t, engine.CreateQuestOptions{QuestType: domain.QuestTeam})
	_, err := env.Engine.ApplyTeam(env.Ctx, "alice", p.ID, q.ID)
	require.NoError(t, err)
	_, err = env.Engine.UpdateTeamProgress(env.Ctx, "alice", p.ID, q.ID, engine.ProgressUpdate{Progress: 100})
	require.NoError(t, err)
	pending, err := env.Engine.SubmitTeam(env.Ctx, "alice", p.ID, q.ID, engine.TeamSubmitInput{Link: "l", Text: "t"})
	require.NoError(t, err)

	queue, err := env.Engine.ListByStatus(env.Ctx, env.Admin, domain.TeamSubmitted, 0)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, pending.ID, queue[0].ID)

	_, err = env.Engine.ListByStatus(env.Ctx, env.Admin, "DONE", 0)
	require.ErrorIs(t, err, engine.ErrInvalidInput)
	_, err = env.Engine.ListByStatus(env.Ctx, auth.Admin("alice"), domain.TeamSubmitted, 0)
	require.ErrorIs(t, err, engine.ErrUnauthorized)

	stats, err := env.Engine.VerificationStats(env.Ctx, env.Admin)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Verified)
	assert.Equal(t, 0, stats.Rejected)
}

func TestSubmissionEventsDescribeTheSubmission(t *testing.T) {
	env := newTestEnv(t)
	q := env.quest(t, engine.CreateQuestOptions{QuestType: domain.QuestIndividual})
	sub, err := env.Engine.ApplyIndividual(env.Ctx, "carol", q.ID)
	require.NoError(t, err)
	_, err = env.Engine.UpdateIndividualProgress(env.Ctx, "carol", q.ID, engine.ProgressUpdate{Progress: 100, Text: "wrote the guide"})
	require.NoError(t, err)

	evts, err := env.Engine.ListEvents(env.Ctx, repo.EventFilters{EntityKind: string(domain.KindIndividual), EntityID: sub.ID})
	require.NoError(t, err)
	require.Len(t, evts, 2)
	done, applied := evts[0], evts[1]
	assert.Equal(t, "submission.progressed", done.Type)
	assert.Contains(t, done.Payload, `"terminal":true`)
	assert.Contains(t, done.Payload, `"state":"COMPLETED"`)
	assert.Contains(t, done.Payload, `"quest_id":"`+q.ID+`"`)
	assert.Equal(t, "submission.applied", applied.Type)
	assert.Contains(t, applied.Payload, `"terminal":false`)
	assert.Contains(t, applied.Payload, `"progress":0`)
}
