package domain

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func individualStates() gopter.Gen {
	return gen.OneConstOf(IndividualNotStarted, IndividualInProgress, IndividualCompleted, IndividualFailed)
}

func teamStates() gopter.Gen {
	return gen.OneConstOf(TeamNotStarted, TeamInProgress, TeamSubmitted, TeamVerified, TeamRejected)
}

func TestIndividualStateForProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("terminal states never change", prop.ForAll(
		func(s IndividualState, p int) bool {
			if !s.IsTerminal() {
				return true
			}
			return IndividualStateFor(s, p) == s
		},
		individualStates(), gen.IntRange(0, 100),
	))

	properties.Property("100 completes any open submission", prop.ForAll(
		func(s IndividualState) bool {
			if s.IsTerminal() {
				return true
			}
			return IndividualStateFor(s, 100) == IndividualCompleted
		},
		individualStates(),
	))

	properties.Property("1-99 is in progress for open submissions", prop.ForAll(
		func(s IndividualState, p int) bool {
			if s.IsTerminal() {
				return true
			}
			return IndividualStateFor(s, p) == IndividualInProgress
		},
		individualStates(), gen.IntRange(1, 99),
	))

	properties.Property("0 leaves the state unchanged", prop.ForAll(
		func(s IndividualState) bool {
			return IndividualStateFor(s, 0) == s
		},
		individualStates(),
	))

	properties.TestingRun(t)
}

func TestTeamStateForProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("progress never yields SUBMITTED or VERIFIED from another state", prop.ForAll(
		func(s TeamState, p int) bool {
			next := TeamStateFor(s, p)
			if s == TeamSubmitted || s == TeamVerified {
				return next == s
			}
			return next != TeamSubmitted && next != TeamVerified
		},
		teamStates(), gen.IntRange(0, 100),
	))

	properties.Property("positive progress reopens rejected work", prop.ForAll(
		func(p int) bool {
			return TeamStateFor(TeamRejected, p) == TeamInProgress
		},
		gen.IntRange(1, 100),
	))

	properties.TestingRun(t)
}

func TestProgressInRange(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)
	properties.Property("only 0..100 is accepted", prop.ForAll(
		func(p int) bool {
			return ProgressInRange(p) == (p >= 0 && p <= 100)
		},
		gen.IntRange(-1000, 1000),
	))
	properties.TestingRun(t)
}

func TestSubmissionVariants(t *testing.T) {
	var subs []Submission = []Submission{
		IndividualSubmission{ID: "i1", ParticipantID: "p1", QuestID: "q1", State: IndividualCompleted, Progress: 100},
		TeamSubmission{ID: "t1", ProjectID: "proj", QuestID: "q1", State: TeamRejected, Progress: 100},
	}
	assert.Equal(t, NaturalKey{Kind: KindIndividual, OwnerID: "p1", QuestID: "q1"}, subs[0].Key())
	assert.True(t, subs[0].IsTerminal())
	assert.Equal(t, NaturalKey{Kind: KindTeam, OwnerID: "proj", QuestID: "q1"}, subs[1].Key())
	assert.False(t, subs[1].IsTerminal(), "rejected team work can be resubmitted")
	assert.Equal(t, "REJECTED", subs[1].CurrentState())
}
