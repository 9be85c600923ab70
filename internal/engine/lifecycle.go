package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"questforge/internal/domain"
	"questforge/internal/engine/auth"
	"questforge/internal/events"
	"questforge/internal/repo"
)

// ProgressUpdate carries a progress report on a submission.
type ProgressUpdate struct {
	Progress int
	Text     string
	URLs     []string
}

// TeamSubmitInput is the deliverable attached when a team submits a quest for review.
type TeamSubmitInput struct {
	Link string
	Text string
}

// ApplyIndividual starts a quest for a single participant.
func (e Engine) ApplyIndividual(ctx context.Context, participantID, questID string) (domain.IndividualSubmission, error) {
	if err := required(map[string]string{"participant_id": participantID, "quest_id": questID}); err != nil {
		return domain.IndividualSubmission{}, e.refuse(err)
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.IndividualSubmission{}, err
	}
	defer tx.Rollback()

	q, err := e.getQuest(ctx, tx, questID)
	if err != nil {
		return domain.IndividualSubmission{}, err
	}
	if !q.AllowsIndividuals() {
		return domain.IndividualSubmission{}, e.refuse(ErrTeamOnly)
	}
	if open, reason := questOpen(q, e.now()); !open {
		return domain.IndividualSubmission{}, e.refuse(fail(ErrQuestClosed, "%s", reason))
	}
	if q.ProgramID != nil {
		if err := e.requireEnrollment(ctx, tx, *q.ProgramID, participantID); err != nil {
			return domain.IndividualSubmission{}, err
		}
	}
	now := e.ts()
	sub := domain.IndividualSubmission{
		ID:            newID(),
		ParticipantID: participantID,
		QuestID:       questID,
		State:         domain.IndividualNotStarted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.admit(ctx, tx, sub); err != nil {
		return domain.IndividualSubmission{}, err
	}
	if err := e.Repo.InsertUserQuestWithinCapacity(ctx, tx, sub); err != nil {
		return domain.IndividualSubmission{}, e.insertErr(err, sub.Key())
	}
	if err := e.submissionEvent(ctx, tx, events.SubmissionApplied, "", participantID, sub, events.EventPayload{
		"participant_id": participantID,
	}); err != nil {
		return domain.IndividualSubmission{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.IndividualSubmission{}, err
	}
	e.transitioned(sub, "NONE")
	return sub, nil
}

// ApplyTeam enrolls a project on a quest. The acting participant must be a member of the project.
func (e Engine) ApplyTeam(ctx context.Context, actorID, projectID, questID string) (domain.TeamSubmission, error) {
	if err := required(map[string]string{"actor_id": actorID, "project_id": projectID, "quest_id": questID}); err != nil {
		return domain.TeamSubmission{}, e.refuse(err)
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.TeamSubmission{}, err
	}
	defer tx.Rollback()

	if _, err := e.getProject(ctx, tx, projectID); err != nil {
		return domain.TeamSubmission{}, err
	}
	if err := e.AssertMembership(ctx, tx, projectID, actorID); err != nil {
		return domain.TeamSubmission{}, err
	}
	q, err := e.getQuest(ctx, tx, questID)
	if err != nil {
		return domain.TeamSubmission{}, err
	}
	if !q.AllowsTeams() {
		return domain.TeamSubmission{}, e.refuse(ErrIndividualOnly)
	}
	if open, reason := questOpen(q, e.now()); !open {
		return domain.TeamSubmission{}, e.refuse(fail(ErrQuestClosed, "%s", reason))
	}
	now := e.ts()
	sub := domain.TeamSubmission{
		ID:        newID(),
		ProjectID: projectID,
		QuestID:   questID,
		State:     domain.TeamNotStarted,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.admit(ctx, tx, sub); err != nil {
		return domain.TeamSubmission{}, err
	}
	if err := e.Repo.InsertProjectQuestWithinCapacity(ctx, tx, sub); err != nil {
		return domain.TeamSubmission{}, e.insertErr(err, sub.Key())
	}
	if err := e.submissionEvent(ctx, tx, events.SubmissionApplied, projectID, actorID, sub, nil); err != nil {
		return domain.TeamSubmission{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.TeamSubmission{}, err
	}
	e.transitioned(sub, "NONE")
	e.logger().Info("team applied to quest", zap.String("project_id", projectID), zap.String("quest_id", questID), zap.String("actor_id", actorID))
	return sub, nil
}

// UpdateIndividualProgress records progress on a participant's quest. Reaching 100 completes it,
// which requires a description either in this update or from an earlier one.
func (e Engine) UpdateIndividualProgress(ctx context.Context, participantID, questID string, upd ProgressUpdate) (domain.IndividualSubmission, error) {
	if !domain.ProgressInRange(upd.Progress) {
		return domain.IndividualSubmission{}, e.refuse(fail(ErrOutOfRange, "progress must be between 0 and 100, got %d", upd.Progress))
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.IndividualSubmission{}, err
	}
	defer tx.Rollback()

	sub, err := e.Repo.GetUserQuest(ctx, tx, participantID, questID)
	if errors.Is(err, repo.ErrNotFound) {
		return sub, e.refuse(fail(ErrNotFound, "participant %s has not started quest %s", participantID, questID))
	}
	if err != nil {
		return sub, err
	}
	if sub.State.IsTerminal() {
		return sub, e.refuse(fail(ErrAlreadyCompleted, "quest is already %s", strings.ToLower(string(sub.State))))
	}
	desc := sub.Description
	if strings.TrimSpace(upd.Text) != "" {
		desc = strings.TrimSpace(upd.Text)
	}
	if upd.Progress == 100 && desc == "" {
		return sub, e.refuse(fail(ErrMissingField, "a description is required to complete a quest"))
	}

	prev := sub.State
	now := e.ts()
	sub.Progress = upd.Progress
	sub.State = domain.IndividualStateFor(prev, upd.Progress)
	sub.Description = desc
	if upd.URLs != nil {
		sub.ProofURLs = upd.URLs
	}
	if sub.StartedAt == nil && upd.Progress > 0 {
		sub.StartedAt = strPtr(now)
	}
	if sub.State == domain.IndividualCompleted {
		sub.CompletedAt = strPtr(now)
	}
	sub.UpdatedAt = now
	if err := e.Repo.UpdateUserQuest(ctx, tx, sub, prev); err != nil {
		if errors.Is(err, repo.ErrStale) {
			return sub, e.refuse(fail(ErrInvalidState, "submission changed concurrently, retry"))
		}
		return sub, fmt.Errorf("update individual submission: %w", err)
	}
	if err := e.submissionEvent(ctx, tx, events.SubmissionProgressed, "", participantID, sub, events.EventPayload{"from": prev}); err != nil {
		return sub, err
	}
	if err := tx.Commit(); err != nil {
		return sub, err
	}
	e.transitioned(sub, string(prev))
	return sub, nil
}

// UpdateTeamProgress records progress on a project's quest. Text replaces the working submission
// text and the first URL becomes the submission link.
func (e Engine) UpdateTeamProgress(ctx context.Context, actorID, projectID, questID string, upd ProgressUpdate) (domain.TeamSubmission, error) {
	if !domain.ProgressInRange(upd.Progress) {
		return domain.TeamSubmission{}, e.refuse(fail(ErrOutOfRange, "progress must be between 0 and 100, got %d", upd.Progress))
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.TeamSubmission{}, err
	}
	defer tx.Rollback()

	if _, err := e.getProject(ctx, tx, projectID); err != nil {
		return domain.TeamSubmission{}, err
	}
	if err := e.AssertMembership(ctx, tx, projectID, actorID); err != nil {
		return domain.TeamSubmission{}, err
	}
	sub, err := e.Repo.GetProjectQuest(ctx, tx, projectID, questID)
	if errors.Is(err, repo.ErrNotFound) {
		return sub, e.refuse(fail(ErrNotFound, "project %s has not applied to quest %s", projectID, questID))
	}
	if err != nil {
		return sub, err
	}
	switch sub.State {
	case domain.TeamVerified:
		return sub, e.refuse(fail(ErrAlreadyCompleted, "quest is already verified"))
	case domain.TeamSubmitted:
		return sub, e.refuse(fail(ErrInvalidState, "submitted work cannot be updated until it is reviewed"))
	}

	prev := sub.State
	sub.Progress = upd.Progress
	sub.State = domain.TeamStateFor(prev, upd.Progress)
	if t := strings.TrimSpace(upd.Text); t != "" {
		sub.SubmissionText = t
	}
	if len(upd.URLs) > 0 {
		sub.SubmissionLink = upd.URLs[0]
	}
	sub.UpdatedAt = e.ts()
	if err := e.Repo.UpdateProjectQuest(ctx, tx, sub, prev); err != nil {
		if errors.Is(err, repo.ErrStale) {
			return sub, e.refuse(fail(ErrInvalidState, "submission changed concurrently, retry"))
		}
		return sub, fmt.Errorf("update team submission: %w", err)
	}
	if err := e.submissionEvent(ctx, tx, events.SubmissionProgressed, projectID, actorID, sub, events.EventPayload{"from": prev}); err != nil {
		return sub, err
	}
	if err := tx.Commit(); err != nil {
		return sub, err
	}
	e.transitioned(sub, string(prev))
	return sub, nil
}

// SubmitTeam hands a finished team quest to admins for review.
func (e Engine) SubmitTeam(ctx context.Context, actorID, projectID, questID string, in TeamSubmitInput) (domain.TeamSubmission, error) {
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.TeamSubmission{}, err
	}
	defer tx.Rollback()

	if _, err := e.getProject(ctx, tx, projectID); err != nil {
		return domain.TeamSubmission{}, err
	}
	if err := e.AssertMembership(ctx, tx, projectID, actorID); err != nil {
		return domain.TeamSubmission{}, err
	}
	sub, err := e.Repo.GetProjectQuest(ctx, tx, projectID, questID)
	if errors.Is(err, repo.ErrNotFound) {
		return sub, e.refuse(fail(ErrNotFound, "project %s has not applied to quest %s", projectID, questID))
	}
	if err != nil {
		return sub, err
	}
	if sub.State == domain.TeamSubmitted || sub.State == domain.TeamVerified {
		return sub, e.refuse(fail(ErrAlreadySubmitted, "quest is already %s", strings.ToLower(string(sub.State))))
	}
	if err := required(map[string]string{"submission_link": in.Link, "submission_text": in.Text}); err != nil {
		return sub, e.refuse(err)
	}
	if sub.Progress < 100 {
		return sub, e.refuse(fail(ErrIncompleteWork, "progress must be 100 before submitting, currently %d", sub.Progress))
	}

	prev := sub.State
	now := e.ts()
	sub.Progress = 100
	sub.State = domain.TeamSubmitted
	sub.SubmissionLink = strings.TrimSpace(in.Link)
	sub.SubmissionText = strings.TrimSpace(in.Text)
	sub.SubmittedAt = strPtr(now)
	sub.SubmittedBy = strPtr(actorID)
	sub.VerifiedBy = nil
	sub.VerifiedAt = nil
	sub.UpdatedAt = now
	if err := e.Repo.UpdateProjectQuest(ctx, tx, sub, prev); err != nil {
		if errors.Is(err, repo.ErrStale) {
			return sub, e.refuse(fail(ErrAlreadySubmitted, "quest was submitted concurrently"))
		}
		return sub, fmt.Errorf("submit team quest: %w", err)
	}
	if err := e.submissionEvent(ctx, tx, events.SubmissionSubmitted, projectID, actorID, sub, events.EventPayload{
		"from": prev, "link": sub.SubmissionLink,
	}); err != nil {
		return sub, err
	}
	if err := tx.Commit(); err != nil {
		return sub, err
	}
	e.transitioned(sub, string(prev))
	e.logger().Info("team quest submitted", zap.String("project_id", projectID), zap.String("quest_id", questID), zap.String("actor_id", actorID))
	return sub, nil
}

// FailIndividual closes a participant's open quest as FAILED.
func (e Engine) FailIndividual(ctx context.Context, admin auth.AdminContext, participantID, questID, reason string) (domain.IndividualSubmission, error) {
	if err := required(map[string]string{"reason": reason}); err != nil {
		return domain.IndividualSubmission{}, e.refuse(err)
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.IndividualSubmission{}, err
	}
	defer tx.Rollback()
	if err := e.requireAdmin(ctx, tx, admin); err != nil {
		return domain.IndividualSubmission{}, err
	}
	sub, err := e.Repo.GetUserQuest(ctx, tx, participantID, questID)
	if errors.Is(err, repo.ErrNotFound) {
		return sub, e.refuse(fail(ErrNotFound, "participant %s has not started quest %s", participantID, questID))
	}
	if err != nil {
		return sub, err
	}
	if sub.State.IsTerminal() {
		return sub, e.refuse(fail(ErrAlreadyCompleted, "quest is already %s", strings.ToLower(string(sub.State))))
	}
	prev := sub.State
	now := e.ts()
	sub.State = domain.IndividualFailed
	sub.CompletedAt = strPtr(now)
	sub.UpdatedAt = now
	if err := e.Repo.UpdateUserQuest(ctx, tx, sub, prev); err != nil {
		if errors.Is(err, repo.ErrStale) {
			return sub, e.refuse(fail(ErrInvalidState, "submission changed concurrently, retry"))
		}
		return sub, fmt.Errorf("fail individual submission: %w", err)
	}
	if err := e.submissionEvent(ctx, tx, events.SubmissionFailed, "", admin.ActorID, sub, events.EventPayload{
		"participant_id": participantID, "reason": reason, "from": prev,
	}); err != nil {
		return sub, err
	}
	if err := tx.Commit(); err != nil {
		return sub, err
	}
	e.transitioned(sub, string(prev))
	return sub, nil
}

func (e Engine) ListIndividualSubmissions(ctx context.Context, participantID string) ([]domain.IndividualSubmission, error) {
	return e.Repo.ListUserQuests(ctx, nil, participantID)
}

// ListTeamSubmissions lists a project's submissions for one of its members.
func (e Engine) ListTeamSubmissions(ctx context.Context, actorID, projectID string) ([]domain.TeamSubmission, error) {
	if _, err := e.getProject(ctx, nil, projectID); err != nil {
		return nil, err
	}
	if err := e.AssertMembership(ctx, nil, projectID, actorID); err != nil {
		return nil, err
	}
	return e.Repo.ListProjectQuests(ctx, nil, repo.ProjectQuestFilters{ProjectID: projectID})
}
