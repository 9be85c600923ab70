package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"questforge/internal/domain"
	"questforge/internal/events"
	"questforge/internal/repo"
)

// CreateProject creates a team at IDEA with the creator as its founding admin.
func (e Engine) CreateProject(ctx context.Context, actorID, name string) (domain.Project, error) {
	if err := required(map[string]string{"actor_id": actorID, "name": name}); err != nil {
		return domain.Project{}, e.refuse(err)
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()
	now := e.ts()
	p := domain.Project{
		ID:        newID(),
		Name:      strings.TrimSpace(name),
		Stage:     domain.StageIdea,
		CreatedBy: actorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.Repo.InsertProject(ctx, tx, p); err != nil {
		return p, fmt.Errorf("insert project: %w", err)
	}
	if err := e.Repo.InsertMember(ctx, tx, domain.ProjectMember{ProjectID: p.ID, ParticipantID: actorID, Role: domain.RoleAdmin, JoinedAt: now}); err != nil {
		return p, fmt.Errorf("insert founding member: %w", err)
	}
	if err := e.appendEvent(ctx, tx, events.ProjectCreated, p.ID, "project", p.ID, actorID, events.EventPayload{"name": p.Name, "stage": p.Stage}); err != nil {
		return p, err
	}
	if err := tx.Commit(); err != nil {
		return p, err
	}
	e.logger().Info("project created", zap.String("project_id", p.ID), zap.String("actor_id", actorID))
	return p, nil
}

func (e Engine) GetProject(ctx context.Context, id string) (domain.Project, error) {
	return e.getProject(ctx, nil, id)
}

func (e Engine) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return e.Repo.ListProjects(ctx, nil)
}

// AddMember adds a participant to a project. Only project admins may add members.
func (e Engine) AddMember(ctx context.Context, actorID, projectID, participantID string, role domain.MemberRole) (domain.ProjectMember, error) {
	if err := required(map[string]string{"participant_id": participantID}); err != nil {
		return domain.ProjectMember{}, e.refuse(err)
	}
	if role == "" {
		role = domain.RoleMember
	}
	role = domain.MemberRole(strings.ToUpper(string(role)))
	if role != domain.RoleAdmin && role != domain.RoleMember {
		return domain.ProjectMember{}, e.refuse(fail(ErrInvalidInput, "invalid member role %q", role))
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.ProjectMember{}, err
	}
	defer tx.Rollback()
	if _, err := e.getProject(ctx, tx, projectID); err != nil {
		return domain.ProjectMember{}, err
	}
	if err := e.requireProjectAdmin(ctx, tx, projectID, actorID); err != nil {
		return domain.ProjectMember{}, err
	}
	m := domain.ProjectMember{ProjectID: projectID, ParticipantID: participantID, Role: role, JoinedAt: e.ts()}
	if err := e.Repo.InsertMember(ctx, tx, m); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return m, e.refuse(fail(ErrAlreadyExists, "participant %s is already a member of project %s", participantID, projectID))
		}
		return m, fmt.Errorf("insert member: %w", err)
	}
	if err := e.appendEvent(ctx, tx, events.MemberAdded, projectID, "member", participantID, actorID, events.EventPayload{"role": role}); err != nil {
		return m, err
	}
	return m, tx.Commit()
}

// RemoveMember removes a participant. Project admins may remove anyone and members may remove
// themselves. Removing the last admin is allowed.
func (e Engine) RemoveMember(ctx context.Context, actorID, projectID, participantID string) error {
	tx, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := e.getProject(ctx, tx, projectID); err != nil {
		return err
	}
	if actorID != participantID {
		if err := e.requireProjectAdmin(ctx, tx, projectID, actorID); err != nil {
			return err
		}
	}
	if err := e.Repo.DeleteMember(ctx, tx, projectID, participantID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return e.refuse(fail(ErrNotFound, "participant %s is not a member of project %s", participantID, projectID))
		}
		return fmt.Errorf("delete member: %w", err)
	}
	if err := e.appendEvent(ctx, tx, events.MemberRemoved, projectID, "member", participantID, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) ListMembers(ctx context.Context, projectID string) ([]domain.ProjectMember, error) {
	if _, err := e.getProject(ctx, nil, projectID); err != nil {
		return nil, err
	}
	return e.Repo.ListMembers(ctx, nil, projectID)
}

func (e Engine) requireProjectAdmin(ctx context.Context, tx *sql.Tx, projectID, actorID string) error {
	if err := e.AssertMembership(ctx, tx, projectID, actorID); err != nil {
		return err
	}
	role, err := e.Auth.MemberRole(ctx, tx, projectID, actorID)
	if err != nil {
		return err
	}
	if role != domain.RoleAdmin {
		return e.refuse(fail(ErrForbidden, "project admin role required"))
	}
	return nil
}
