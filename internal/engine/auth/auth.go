package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"questforge/internal/domain"
	"questforge/internal/repo"
)

// AdminContext is the capability admin-only operations take. Holding one is a claim, not proof:
// Service.RequireAdmin checks it against the store on every use.
type AdminContext struct {
	ActorID string
}

func Admin(actorID string) AdminContext {
	return AdminContext{ActorID: strings.TrimSpace(actorID)}
}

// NotAdminError indicates the claimed admin is not a platform admin.
type NotAdminError struct {
	ActorID string
}

func (e NotAdminError) Error() string {
	if e.ActorID == "" {
		return "admin actor required"
	}
	return fmt.Sprintf("actor %s is not a platform admin", e.ActorID)
}

// NotMemberError indicates the participant is not in the project.
type NotMemberError struct {
	ProjectID     string
	ParticipantID string
}

func (e NotMemberError) Error() string {
	return fmt.Sprintf("participant %s is not a member of project %s", e.ParticipantID, e.ProjectID)
}

// Service resolves platform admin and project membership facts from the store.
type Service struct {
	Repo repo.Repo
}

func (s Service) IsAdmin(ctx context.Context, tx *sql.Tx, actorID string) (bool, error) {
	if actorID == "" {
		return false, nil
	}
	return s.Repo.IsAdmin(ctx, tx, actorID)
}

// RequireAdmin re-validates an AdminContext.
func (s Service) RequireAdmin(ctx context.Context, tx *sql.Tx, admin AdminContext) error {
	ok, err := s.IsAdmin(ctx, tx, admin.ActorID)
	if err != nil {
		return fmt.Errorf("check admin %s: %w", admin.ActorID, err)
	}
	if !ok {
		return NotAdminError{ActorID: admin.ActorID}
	}
	return nil
}

// MemberRole returns the participant's role in the project or NotMemberError.
func (s Service) MemberRole(ctx context.Context, tx *sql.Tx, projectID, participantID string) (domain.MemberRole, error) {
	m, err := s.Repo.GetMember(ctx, tx, projectID, participantID)
	if errors.Is(err, repo.ErrNotFound) {
		return "", NotMemberError{ProjectID: projectID, ParticipantID: participantID}
	}
	if err != nil {
		return "", err
	}
	return m.Role, nil
}
