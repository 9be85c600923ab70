package engine

import (
	"context"
	"database/sql"
	"errors"

	"questforge/internal/domain"
	"questforge/internal/engine/auth"
	"questforge/internal/repo"
)

// AssertMembership fails with ErrForbidden unless participantID belongs to the project.
// Every team submission mutation runs it before touching the submission.
func (e Engine) AssertMembership(ctx context.Context, tx *sql.Tx, projectID, participantID string) error {
	_, err := e.Auth.MemberRole(ctx, tx, projectID, participantID)
	var nm auth.NotMemberError
	if errors.As(err, &nm) {
		return e.refuse(fail(ErrForbidden, "%s", nm.Error()))
	}
	return err
}

// AssertCapacity fails with ErrCapacityExceeded when the quest's cap is already reached.
// The authoritative check is the conditional insert; this read only reports early.
func (e Engine) AssertCapacity(ctx context.Context, tx *sql.Tx, questID string) error {
	q, err := e.getQuest(ctx, tx, questID)
	if err != nil {
		return err
	}
	if q.MaxSubmissions == nil {
		return nil
	}
	n, err := e.Repo.CountQuestSubmissions(ctx, tx, q.ID)
	if err != nil {
		return err
	}
	if n >= *q.MaxSubmissions {
		return e.refuse(ErrCapacityExceeded.withDetails(map[string]any{"max_submissions": *q.MaxSubmissions, "count": n}))
	}
	return nil
}

// admit runs the duplicate and capacity gates for a submission about to be inserted.
func (e Engine) admit(ctx context.Context, tx *sql.Tx, sub domain.Submission) error {
	key := sub.Key()
	if err := e.AssertNotAlreadyApplied(ctx, tx, key); err != nil {
		return err
	}
	return e.AssertCapacity(ctx, tx, key.QuestID)
}

// AssertNotAlreadyApplied fails with ErrAlreadyExists if a submission exists for key.
func (e Engine) AssertNotAlreadyApplied(ctx context.Context, tx *sql.Tx, key domain.NaturalKey) error {
	var err error
	switch key.Kind {
	case domain.KindIndividual:
		_, err = e.Repo.GetUserQuest(ctx, tx, key.OwnerID, key.QuestID)
	case domain.KindTeam:
		_, err = e.Repo.GetProjectQuest(ctx, tx, key.OwnerID, key.QuestID)
	default:
		return fail(ErrInvalidInput, "unknown submission kind %q", key.Kind)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return e.refuse(alreadyApplied(key))
}

func alreadyApplied(key domain.NaturalKey) *Error {
	if key.Kind == domain.KindTeam {
		return fail(ErrAlreadyExists, "project %s has already applied to quest %s", key.OwnerID, key.QuestID)
	}
	return fail(ErrAlreadyExists, "participant %s has already started quest %s", key.OwnerID, key.QuestID)
}

// insertErr maps store outcomes of a conditional submission insert.
func (e Engine) insertErr(err error, key domain.NaturalKey) error {
	switch {
	case errors.Is(err, repo.ErrConflict):
		return e.refuse(alreadyApplied(key))
	case errors.Is(err, repo.ErrCapacity):
		return e.refuse(ErrCapacityExceeded)
	}
	return err
}
