package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"questforge/internal/domain"
	"questforge/internal/engine/auth"
	"questforge/internal/events"
	"questforge/internal/repo"
)

// AdvancementCheck reports whether a project meets the requirements of its next stage.
type AdvancementCheck struct {
	ProjectID           string                   `json:"project_id"`
	CurrentStage        domain.Stage             `json:"current_stage"`
	NextStage           domain.Stage             `json:"next_stage,omitempty"`
	CanAdvance          bool                     `json:"can_advance"`
	MissingRequirements []string                 `json:"missing_requirements"`
	QuestsCompleted     int                      `json:"quests_completed"`
	TeamMemberCount     int                      `json:"team_member_count"`
	Requirement         *domain.StageRequirement `json:"requirement,omitempty"`
	Reason              string                   `json:"reason,omitempty"`
}

type AdvanceOptions struct {
	// ActorID must be a project member or a platform admin.
	ActorID string
	// ManualOverride skips the requirement check and needs Admin.
	ManualOverride bool
	Admin          *auth.AdminContext
}

func (e Engine) CheckAdvancement(ctx context.Context, projectID string) (AdvancementCheck, error) {
	p, err := e.getProject(ctx, nil, projectID)
	if err != nil {
		return AdvancementCheck{}, err
	}
	return e.checkAdvancement(ctx, nil, p)
}

func (e Engine) checkAdvancement(ctx context.Context, tx *sql.Tx, p domain.Project) (AdvancementCheck, error) {
	check := AdvancementCheck{ProjectID: p.ID, CurrentStage: p.Stage, MissingRequirements: []string{}}
	completed, err := e.Repo.CountVerifiedProjectQuests(ctx, tx, p.ID)
	if err != nil {
		return check, fmt.Errorf("count verified quests: %w", err)
	}
	members, err := e.Repo.CountMembers(ctx, tx, p.ID)
	if err != nil {
		return check, fmt.Errorf("count members: %w", err)
	}
	check.QuestsCompleted = completed
	check.TeamMemberCount = members

	if p.Stage.IsFinal() {
		check.Reason = fmt.Sprintf("project is at the final stage %s", p.Stage)
		return check, nil
	}
	next, ok := p.Stage.Next()
	if !ok {
		return check, fmt.Errorf("project %s has unknown stage %q", p.ID, p.Stage)
	}
	check.NextStage = next
	req, ok := e.config().RequirementFor(next)
	if !ok {
		return check, fmt.Errorf("no requirements configured for stage %s", next)
	}
	check.Requirement = &req
	check.MissingRequirements = missingRequirements(req, completed, members)
	check.CanAdvance = len(check.MissingRequirements) == 0
	return check, nil
}

func missingRequirements(req domain.StageRequirement, completed, members int) []string {
	missing := []string{}
	if completed < req.MinQuestsCompleted {
		missing = append(missing, fmt.Sprintf("complete %d more verified quests (%d/%d)",
			req.MinQuestsCompleted-completed, completed, req.MinQuestsCompleted))
	}
	if members < req.MinTeamMembers {
		missing = append(missing, fmt.Sprintf("add %d more team members (%d/%d)",
			req.MinTeamMembers-members, members, req.MinTeamMembers))
	}
	return missing
}

// Advance moves the project exactly one stage forward.
func (e Engine) Advance(ctx context.Context, projectID string, opts AdvanceOptions) (domain.Project, error) {
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	p, err := e.getProject(ctx, tx, projectID)
	if err != nil {
		return p, err
	}
	actor := opts.ActorID
	if opts.ManualOverride {
		if opts.Admin == nil {
			return p, e.refuse(fail(ErrUnauthorized, "manual override requires an admin"))
		}
		if err := e.requireAdmin(ctx, tx, *opts.Admin); err != nil {
			return p, err
		}
		actor = opts.Admin.ActorID
	} else if err := e.requireMemberOrAdmin(ctx, tx, projectID, actor); err != nil {
		return p, err
	}

	if p.Stage.IsFinal() {
		return p, e.refuse(fail(ErrAlreadyFinal, "project is already at the final stage %s", p.Stage))
	}
	next, ok := p.Stage.Next()
	if !ok {
		return p, fmt.Errorf("project %s has unknown stage %q", p.ID, p.Stage)
	}
	if !opts.ManualOverride {
		check, err := e.checkAdvancement(ctx, tx, p)
		if err != nil {
			return p, err
		}
		if !check.CanAdvance {
			return p, e.refuse(fail(ErrRequirementsNotMet, "cannot advance to %s: %s", next, strings.Join(check.MissingRequirements, "; ")).
				withDetails(map[string]any{"missing_requirements": check.MissingRequirements, "next_stage": next}))
		}
	}
	from := p.Stage
	now := e.ts()
	if err := e.Repo.UpdateProjectStage(ctx, tx, p.ID, from, next, now); err != nil {
		if errors.Is(err, repo.ErrStale) {
			return p, e.refuse(fail(ErrInvalidState, "project stage changed concurrently"))
		}
		return p, fmt.Errorf("update project stage: %w", err)
	}
	p.Stage = next
	p.UpdatedAt = now
	if err := e.appendEvent(ctx, tx, events.StageAdvanced, p.ID, "project", p.ID, actor, events.EventPayload{
		"from": from, "to": next, "manual_override": opts.ManualOverride,
	}); err != nil {
		return p, err
	}
	if err := tx.Commit(); err != nil {
		return p, err
	}
	e.Metrics.Advanced(string(next), opts.ManualOverride)
	e.logger().Info("project advanced", zap.String("project_id", p.ID), zap.String("from", string(from)),
		zap.String("to", string(next)), zap.Bool("manual_override", opts.ManualOverride), zap.String("actor_id", actor))
	return p, nil
}

func (e Engine) requireMemberOrAdmin(ctx context.Context, tx *sql.Tx, projectID, actorID string) error {
	isAdmin, err := e.Auth.IsAdmin(ctx, tx, actorID)
	if err != nil {
		return err
	}
	if isAdmin {
		return nil
	}
	return e.AssertMembership(ctx, tx, projectID, actorID)
}

// ProgressToNextStage is the share of the next stage's quest requirement already verified, 0-100.
// It is for display only and ignores the member requirement.
func (e Engine) ProgressToNextStage(ctx context.Context, projectID string) (int, error) {
	check, err := e.CheckAdvancement(ctx, projectID)
	if err != nil {
		return 0, err
	}
	if check.Requirement == nil {
		return 100, nil
	}
	return progressPercent(check.QuestsCompleted, check.Requirement.MinQuestsCompleted), nil
}

func progressPercent(completed, needed int) int {
	if needed <= 0 {
		return 100
	}
	pct := int(math.Round(float64(completed) / float64(needed) * 100))
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}
