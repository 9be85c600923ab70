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

type VerifyInput struct {
	Notes      string
	PaymentRef string
}

// VerificationStats summarizes team submissions by review state.
type VerificationStats struct {
	Total      int                      `json:"total"`
	Pending    int                      `json:"pending"`
	Verified   int                      `json:"verified"`
	Rejected   int                      `json:"rejected"`
	InProgress int                      `json:"in_progress"`
	NotStarted int                      `json:"not_started"`
	ByState    map[domain.TeamState]int `json:"by_state"`
}

// Verify accepts SUBMITTED team work. A stage check for the owning project follows the commit;
// its outcome never affects the verification.
func (e Engine) Verify(ctx context.Context, admin auth.AdminContext, projectQuestID string, in VerifyInput) (domain.TeamSubmission, error) {
	sub, err := e.review(ctx, admin, projectQuestID, domain.TeamVerified, in.Notes, in.PaymentRef)
	if err != nil {
		return sub, err
	}
	e.afterVerify(ctx, admin, sub.ProjectID)
	return sub, nil
}

// Reject returns SUBMITTED team work to the team. Notes are required and the team may resubmit.
func (e Engine) Reject(ctx context.Context, admin auth.AdminContext, projectQuestID, notes string) (domain.TeamSubmission, error) {
	if err := required(map[string]string{"notes": notes}); err != nil {
		return domain.TeamSubmission{}, e.refuse(err)
	}
	return e.review(ctx, admin, projectQuestID, domain.TeamRejected, notes, "")
}

func (e Engine) review(ctx context.Context, admin auth.AdminContext, projectQuestID string, to domain.TeamState, notes, paymentRef string) (domain.TeamSubmission, error) {
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.TeamSubmission{}, err
	}
	defer tx.Rollback()
	if err := e.requireAdmin(ctx, tx, admin); err != nil {
		return domain.TeamSubmission{}, err
	}
	sub, err := e.Repo.GetProjectQuestByID(ctx, tx, projectQuestID)
	if errors.Is(err, repo.ErrNotFound) {
		return sub, e.refuse(fail(ErrNotFound, "submission %s not found", projectQuestID))
	}
	if err != nil {
		return sub, err
	}
	if sub.State != domain.TeamSubmitted {
		return sub, e.refuse(fail(ErrInvalidState, "only submitted work can be reviewed, submission is %s", sub.State))
	}
	prev := sub.State
	now := e.ts()
	sub.State = to
	sub.VerifiedBy = strPtr(admin.ActorID)
	sub.VerifiedAt = strPtr(now)
	sub.VerificationNotes = strings.TrimSpace(notes)
	if ref := strings.TrimSpace(paymentRef); ref != "" {
		sub.PaymentRef = strPtr(ref)
		sub.PaidAt = strPtr(now)
	}
	sub.UpdatedAt = now
	if err := e.Repo.UpdateProjectQuest(ctx, tx, sub, prev); err != nil {
		if errors.Is(err, repo.ErrStale) {
			return sub, e.refuse(fail(ErrInvalidState, "submission was reviewed concurrently"))
		}
		return sub, fmt.Errorf("review submission: %w", err)
	}
	evt := events.SubmissionVerified
	if to == domain.TeamRejected {
		evt = events.SubmissionRejected
	}
	payload := events.EventPayload{"from": prev, "notes": sub.VerificationNotes}
	if sub.PaymentRef != nil {
		payload["payment_ref"] = *sub.PaymentRef
	}
	if err := e.submissionEvent(ctx, tx, evt, sub.ProjectID, admin.ActorID, sub, payload); err != nil {
		return sub, err
	}
	if err := tx.Commit(); err != nil {
		return sub, err
	}
	e.transitioned(sub, string(prev))
	e.logger().Info("team submission reviewed", zap.String("submission_id", sub.ID), zap.String("project_id", sub.ProjectID),
		zap.String("state", string(to)), zap.String("admin_id", admin.ActorID))
	return sub, nil
}

// afterVerify runs the downstream stage check. Failures are logged and swallowed.
func (e Engine) afterVerify(ctx context.Context, admin auth.AdminContext, projectID string) {
	log := e.logger().With(zap.String("project_id", projectID))
	check, err := e.CheckAdvancement(ctx, projectID)
	if err != nil {
		log.Warn("stage check after verification failed", zap.Error(err))
		return
	}
	if !check.CanAdvance {
		return
	}
	if !e.config().Stages.AutoAdvance {
		log.Info("project eligible for next stage", zap.String("next_stage", string(check.NextStage)))
		return
	}
	if _, err := e.Advance(ctx, projectID, AdvanceOptions{ActorID: admin.ActorID}); err != nil {
		log.Warn("automatic stage advance failed", zap.Error(err))
	}
}

// ListByStatus lists team submissions in a review state, oldest update first.
func (e Engine) ListByStatus(ctx context.Context, admin auth.AdminContext, status domain.TeamState, limit int) ([]domain.TeamSubmission, error) {
	if status != "" && !domain.ValidTeamStates[status] {
		return nil, e.refuse(fail(ErrInvalidInput, "unknown submission status %q", status))
	}
	if err := e.requireAdmin(ctx, nil, admin); err != nil {
		return nil, err
	}
	return e.Repo.ListProjectQuests(ctx, nil, repo.ProjectQuestFilters{State: status, Limit: limit})
}

func (e Engine) VerificationStats(ctx context.Context, admin auth.AdminContext) (VerificationStats, error) {
	if err := e.requireAdmin(ctx, nil, admin); err != nil {
		return VerificationStats{}, err
	}
	counts, err := e.Repo.CountProjectQuestsByState(ctx, nil)
	if err != nil {
		return VerificationStats{}, err
	}
	stats := VerificationStats{ByState: counts}
	for _, n := range counts {
		stats.Total += n
	}
	stats.Pending = counts[domain.TeamSubmitted]
	stats.Verified = counts[domain.TeamVerified]
	stats.Rejected = counts[domain.TeamRejected]
	stats.InProgress = counts[domain.TeamInProgress]
	stats.NotStarted = counts[domain.TeamNotStarted]
	return stats, nil
}
