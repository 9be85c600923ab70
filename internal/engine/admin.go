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

// GrantAdmin makes target a platform admin. The first grant on an empty store bootstraps the
// platform and needs no existing admin; later grants require granter to be an admin.
func (e Engine) GrantAdmin(ctx context.Context, granter auth.AdminContext, target string) error {
	target = strings.TrimSpace(target)
	if err := required(map[string]string{"actor_id": target}); err != nil {
		return e.refuse(err)
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	n, err := e.Repo.CountAdmins(ctx, tx)
	if err != nil {
		return err
	}
	bootstrap := n == 0
	if !bootstrap {
		if err := e.requireAdmin(ctx, tx, granter); err != nil {
			return err
		}
	}
	by := granter.ActorID
	if by == "" {
		by = target
	}
	if err := e.Repo.InsertAdmin(ctx, tx, target, by, e.ts()); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return e.refuse(fail(ErrAlreadyExists, "%s is already an admin", target))
		}
		return fmt.Errorf("insert admin: %w", err)
	}
	if err := e.appendEvent(ctx, tx, events.AdminGranted, "", "admin", target, by, events.EventPayload{"bootstrap": bootstrap}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.logger().Info("admin granted", zap.String("actor_id", target), zap.String("granted_by", by), zap.Bool("bootstrap", bootstrap))
	return nil
}

func (e Engine) RevokeAdmin(ctx context.Context, admin auth.AdminContext, target string) error {
	tx, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.requireAdmin(ctx, tx, admin); err != nil {
		return err
	}
	if err := e.Repo.DeleteAdmin(ctx, tx, target); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return e.refuse(fail(ErrNotFound, "%s is not an admin", target))
		}
		return fmt.Errorf("delete admin: %w", err)
	}
	if err := e.appendEvent(ctx, tx, events.AdminRevoked, "", "admin", target, admin.ActorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) ListAdmins(ctx context.Context) ([]string, error) {
	return e.Repo.ListAdmins(ctx, nil)
}

func (e Engine) CreateProgram(ctx context.Context, admin auth.AdminContext, id, name string) (domain.Program, error) {
	if err := required(map[string]string{"name": name}); err != nil {
		return domain.Program{}, e.refuse(err)
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.Program{}, err
	}
	defer tx.Rollback()
	if err := e.requireAdmin(ctx, tx, admin); err != nil {
		return domain.Program{}, err
	}
	p := domain.Program{ID: id, Name: strings.TrimSpace(name), CreatedAt: e.ts()}
	if p.ID == "" {
		p.ID = newID()
	}
	if err := e.Repo.InsertProgram(ctx, tx, p); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return p, e.refuse(fail(ErrAlreadyExists, "program %s already exists", p.ID))
		}
		return p, fmt.Errorf("insert program: %w", err)
	}
	if err := e.appendEvent(ctx, tx, events.ProgramCreated, "", "program", p.ID, admin.ActorID, events.EventPayload{"name": p.Name}); err != nil {
		return p, err
	}
	return p, tx.Commit()
}

func (e Engine) ListPrograms(ctx context.Context) ([]domain.Program, error) {
	return e.Repo.ListPrograms(ctx, nil)
}

// Enroll makes the participant an active member of the program, reactivating a lapsed enrollment.
func (e Engine) Enroll(ctx context.Context, programID, participantID string) (domain.ProgramMember, error) {
	return e.setEnrollment(ctx, programID, participantID, domain.ProgramMemberActive)
}

// Withdraw marks an enrollment inactive; the participant loses access to the program's quests.
func (e Engine) Withdraw(ctx context.Context, programID, participantID string) (domain.ProgramMember, error) {
	return e.setEnrollment(ctx, programID, participantID, domain.ProgramMemberInactive)
}

func (e Engine) setEnrollment(ctx context.Context, programID, participantID, status string) (domain.ProgramMember, error) {
	if err := required(map[string]string{"program_id": programID, "participant_id": participantID}); err != nil {
		return domain.ProgramMember{}, e.refuse(err)
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.ProgramMember{}, err
	}
	defer tx.Rollback()
	if _, err := e.Repo.GetProgram(ctx, tx, programID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.ProgramMember{}, e.refuse(fail(ErrNotFound, "program %s not found", programID))
		}
		return domain.ProgramMember{}, err
	}
	m := domain.ProgramMember{ProgramID: programID, ParticipantID: participantID, Status: status, JoinedAt: e.ts()}
	if err := e.Repo.UpsertProgramMember(ctx, tx, m); err != nil {
		return m, fmt.Errorf("upsert program member: %w", err)
	}
	stored, err := e.Repo.GetProgramMember(ctx, tx, programID, participantID)
	if err != nil {
		return m, err
	}
	if err := e.appendEvent(ctx, tx, events.ProgramEnrolled, "", "program", programID, participantID, events.EventPayload{"status": status}); err != nil {
		return stored, err
	}
	return stored, tx.Commit()
}

// ListEvents lists the audit log newest first.
func (e Engine) ListEvents(ctx context.Context, f repo.EventFilters) ([]domain.Event, error) {
	return e.Repo.LatestEvents(ctx, f)
}

// ReadEvents lists events on behalf of actorID. Platform admins read the whole log; anyone else
// must scope the query to a project they belong to.
func (e Engine) ReadEvents(ctx context.Context, actorID string, f repo.EventFilters) ([]domain.Event, error) {
	isAdmin, err := e.Auth.IsAdmin(ctx, nil, actorID)
	if err != nil {
		return nil, err
	}
	if !isAdmin {
		if f.ProjectID == "" {
			return nil, e.refuse(fail(ErrUnauthorized, "reading the full event log requires an admin; filter by project_id"))
		}
		if _, err := e.getProject(ctx, nil, f.ProjectID); err != nil {
			return nil, err
		}
		if err := e.AssertMembership(ctx, nil, f.ProjectID, actorID); err != nil {
			return nil, err
		}
	}
	return e.Repo.LatestEvents(ctx, f)
}
