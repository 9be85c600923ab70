package engine_test

import (
	"sort"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questforge/internal/domain"
	"questforge/internal/engine"
)

func questIDs(qs []domain.Quest) []string {
	ids := make([]string, 0, len(qs))
	for _, q := range qs {
		ids = append(ids, q.ID)
	}
	sort.Strings(ids)
	return ids
}

func TestResolveFiltersByTrack(t *testing.T) {
	env := newTestEnv(t)
	env.quest(t, engine.CreateQuestOptions{ID: "pitch", QuestType: domain.QuestIndividual, Category: "Fundraising"})
	env.quest(t, engine.CreateQuestOptions{ID: "intro", QuestType: domain.QuestBoth})
	env.quest(t, engine.CreateQuestOptions{ID: "welcome", QuestType: domain.QuestIndividual, Category: "all"})
	env.quest(t, engine.CreateQuestOptions{ID: "resume", QuestType: domain.QuestIndividual, Category: "career"})
	env.quest(t, engine.CreateQuestOptions{ID: "hack", QuestType: domain.QuestTeam, Category: "product"})

	_, err := env.Engine.ResolveForParticipant(env.Ctx, "carol", "")
	require.ErrorIs(t, err, engine.ErrOnboardingRequired)

	_, err = env.Engine.Onboard(env.Ctx, "carol", "FOUNDER")
	require.NoError(t, err)
	got, err := env.Engine.ResolveForParticipant(env.Ctx, "carol", "")
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"intro", "pitch", "welcome"}, questIDs(got)); diff != "" {
		t.Fatalf("resolved quests mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveScopedToProgram(t *testing.T) {
	env := newTestEnv(t)
	prog, err := env.Engine.CreateProgram(env.Ctx, env.Admin, "spring", "Spring cohort")
	require.NoError(t, err)
	env.quest(t, engine.CreateQuestOptions{ID: "cohort-only", QuestType: domain.QuestIndividual, ProgramID: prog.ID})
	env.quest(t, engine.CreateQuestOptions{ID: "public", QuestType: domain.QuestIndividual})
	_, err = env.Engine.Onboard(env.Ctx, "carol", "LEARNING")
	require.NoError(t, err)

	_, err = env.Engine.ResolveForParticipant(env.Ctx, "carol", prog.ID)
	require.ErrorIs(t, err, engine.ErrNotEnrolled)

	_, err = env.Engine.Enroll(env.Ctx, prog.ID, "carol")
	require.NoError(t, err)
	got, err := env.Engine.ResolveForParticipant(env.Ctx, "carol", prog.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"cohort-only"}, questIDs(got))

	got, err = env.Engine.ResolveForParticipant(env.Ctx, "carol", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"public"}, questIDs(got))

	_, err = env.Engine.Withdraw(env.Ctx, prog.ID, "carol")
	require.NoError(t, err)
	_, err = env.Engine.ResolveForParticipant(env.Ctx, "carol", prog.ID)
	require.ErrorIs(t, err, engine.ErrNotEnrolled)
}

func TestAssignResolvedIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.quest(t, engine.CreateQuestOptions{ID: "a", QuestType: domain.QuestIndividual, Category: "learning"})
	env.quest(t, engine.CreateQuestOptions{ID: "b", QuestType: domain.QuestBoth})
	env.quest(t, engine.CreateQuestOptions{ID: "full", QuestType: domain.QuestIndividual, MaxSubmissions: intPtr(0)})
	_, err := env.Engine.Onboard(env.Ctx, "carol", "LEARNING")
	require.NoError(t, err)

	res, err := env.Engine.AssignResolved(env.Ctx, "carol", "")
	require.NoError(t, err)
	assert.Len(t, res.Assigned, 2)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "full", res.Skipped[0].QuestID)
	assert.Equal(t, "capacity_exceeded", res.Skipped[0].Code)

	res, err = env.Engine.AssignResolved(env.Ctx, "carol", "")
	require.NoError(t, err)
	assert.Empty(t, res.Assigned)
	assert.Len(t, res.Skipped, 3)

	subs, err := env.Engine.ListIndividualSubmissions(env.Ctx, "carol")
	require.NoError(t, err)
	assert.Len(t, subs, 2)
}

func TestCategoryAllowed(t *testing.T) {
	allow := []string{"product", "market"}
	assert.True(t, engine.CategoryAllowed(allow, ""))
	assert.True(t, engine.CategoryAllowed(allow, "ALL"))
	assert.True(t, engine.CategoryAllowed(allow, " Product "))
	assert.False(t, engine.CategoryAllowed(allow, "career"))
	assert.False(t, engine.CategoryAllowed(nil, "career"))
}

func TestConcurrentApplyNeverExceedsCapacity(t *testing.T) {
	env := newTestEnv(t)
	q := env.quest(t, engine.CreateQuestOptions{QuestType: domain.QuestIndividual, MaxSubmissions: intPtr(3)})

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.Engine.ApplyIndividual(env.Ctx, "p"+string(rune('a'+i)), q.ID)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, engine.ErrCapacityExceeded)
	}
	assert.Equal(t, 3, ok)
	n, err := env.Engine.Repo.CountQuestSubmissions(env.Ctx, nil, q.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestApplyProgramQuestRequiresEnrollment(t *testing.T) {
	env := newTestEnv(t)
	prog, err := env.Engine.CreateProgram(env.Ctx, env.Admin, "fall", "Fall cohort")
	require.NoError(t, err)
	q := env.quest(t, engine.CreateQuestOptions{QuestType: domain.QuestIndividual, ProgramID: prog.ID})

	_, err = env.Engine.ApplyIndividual(env.Ctx, "stranger", q.ID)
	require.ErrorIs(t, err, engine.ErrNotEnrolled)
	assert.Equal(t, engine.KindAuthorization, engine.KindOf(err))

	_, err = env.Engine.Enroll(env.Ctx, prog.ID, "stranger")
	require.NoError(t, err)
	_, err = env.Engine.ApplyIndividual(env.Ctx, "stranger", q.ID)
	require.NoError(t, err)

	_, err = env.Engine.Withdraw(env.Ctx, prog.ID, "stranger")
	require.NoError(t, err)
	_, err = env.Engine.UpdateIndividualProgress(env.Ctx, "stranger", q.ID, engine.ProgressUpdate{Progress: 10})
	require.NoError(t, err, "withdrawal does not revoke work already started")
}
