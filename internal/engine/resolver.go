package engine

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"questforge/internal/domain"
	"questforge/internal/repo"
)

// CategoryAllowed reports whether a quest category passes a track's allow-list.
// Uncategorized quests and the "all" category pass every track.
func CategoryAllowed(allow []string, category string) bool {
	c := strings.ToLower(strings.TrimSpace(category))
	if c == "" || c == "all" {
		return true
	}
	for _, a := range allow {
		if a == c {
			return true
		}
	}
	return false
}

// FilterForTrack keeps the quests whose category passes allow, preserving order.
func FilterForTrack(quests []domain.Quest, allow []string) []domain.Quest {
	out := make([]domain.Quest, 0, len(quests))
	for _, q := range quests {
		if CategoryAllowed(allow, q.Category) {
			out = append(out, q)
		}
	}
	return out
}

// ResolveForParticipant lists the individual-capable quests relevant to the participant's track.
// With programID set only that program's quests are considered and the participant must be an
// active member; otherwise only quests outside any program are.
func (e Engine) ResolveForParticipant(ctx context.Context, participantID, programID string) ([]domain.Quest, error) {
	s, err := e.Repo.GetSettings(ctx, nil, participantID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	if errors.Is(err, repo.ErrNotFound) || s.Track == nil {
		return nil, e.refuse(ErrOnboardingRequired)
	}
	f := repo.QuestFilters{Types: []domain.QuestType{domain.QuestIndividual, domain.QuestBoth}}
	if programID != "" {
		if err := e.requireEnrollment(ctx, nil, programID, participantID); err != nil {
			return nil, err
		}
		f.ProgramID = &programID
	}
	quests, err := e.Repo.ListQuests(ctx, nil, f)
	if err != nil {
		return nil, err
	}
	return FilterForTrack(quests, e.config().CategoriesFor(*s.Track)), nil
}

func (e Engine) requireEnrollment(ctx context.Context, tx *sql.Tx, programID, participantID string) error {
	m, err := e.Repo.GetProgramMember(ctx, tx, programID, participantID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && m.Status != domain.ProgramMemberActive) {
		return e.refuse(fail(ErrNotEnrolled, "participant %s is not an active member of program %s", participantID, programID))
	}
	return err
}

// SkippedQuest names a resolved quest AssignResolved did not start, with the reason.
type SkippedQuest struct {
	QuestID string `json:"quest_id"`
	Code    string `json:"code"`
	Reason  string `json:"reason"`
}

type AssignResult struct {
	Assigned []domain.IndividualSubmission `json:"assigned"`
	Skipped  []SkippedQuest                `json:"skipped"`
}

// AssignResolved starts every resolved quest the participant does not hold yet. Running it twice
// assigns nothing new; quests that are full or closed are reported as skipped.
func (e Engine) AssignResolved(ctx context.Context, participantID, programID string) (AssignResult, error) {
	quests, err := e.ResolveForParticipant(ctx, participantID, programID)
	if err != nil {
		return AssignResult{}, err
	}
	res := AssignResult{Assigned: []domain.IndividualSubmission{}, Skipped: []SkippedQuest{}}
	for _, q := range quests {
		sub, err := e.ApplyIndividual(ctx, participantID, q.ID)
		if err == nil {
			res.Assigned = append(res.Assigned, sub)
			continue
		}
		var ee *Error
		if !errors.As(err, &ee) {
			return res, err
		}
		res.Skipped = append(res.Skipped, SkippedQuest{QuestID: q.ID, Code: ee.Code, Reason: ee.Message})
	}
	e.logger().Info("quests assigned", zap.String("participant_id", participantID), zap.String("program_id", programID),
		zap.Int("assigned", len(res.Assigned)), zap.Int("skipped", len(res.Skipped)))
	return res, nil
}
