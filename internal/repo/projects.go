package repo

import (
	"context"
	"database/sql"
	"fmt"

	"questforge/internal/domain"
)

func scanProject(s rowScanner) (domain.Project, error) {
	var (
		p     domain.Project
		stage string
	)
	err := s.Scan(&p.ID, &p.Name, &stage, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	st, ok := domain.ParseStage(stage)
	if !ok {
		return p, fmt.Errorf("project %s has unknown stage %q", p.ID, stage)
	}
	p.Stage = st
	return p, nil
}

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO projects(id,name,stage,created_by,created_at,updated_at) VALUES (?,?,?,?,?,?)`,
		p.ID, p.Name, p.Stage, p.CreatedBy, p.CreatedAt, p.UpdatedAt)
	return mapWriteErr(err)
}

func (r Repo) GetProject(ctx context.Context, tx *sql.Tx, id string) (domain.Project, error) {
	return scanProject(r.on(tx).QueryRowContext(ctx, `SELECT id,name,stage,created_by,created_at,updated_at FROM projects WHERE id=?`, id))
}

func (r Repo) ListProjects(ctx context.Context, tx *sql.Tx) ([]domain.Project, error) {
	rows, err := r.on(tx).QueryContext(ctx, `SELECT id,name,stage,created_by,created_at,updated_at FROM projects ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// UpdateProjectStage moves a project from one stage to another only if it is still at from.
func (r Repo) UpdateProjectStage(ctx context.Context, tx *sql.Tx, id string, from, to domain.Stage, updatedAt string) error {
	res, err := r.on(tx).ExecContext(ctx, `UPDATE projects SET stage=?, updated_at=? WHERE id=? AND stage=?`, to, updatedAt, id, from)
	return expectOne(res, err, ErrStale)
}

func (r Repo) InsertMember(ctx context.Context, tx *sql.Tx, m domain.ProjectMember) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO project_members(project_id,participant_id,role,joined_at) VALUES (?,?,?,?)`,
		m.ProjectID, m.ParticipantID, m.Role, m.JoinedAt)
	return mapWriteErr(err)
}

func (r Repo) DeleteMember(ctx context.Context, tx *sql.Tx, projectID, participantID string) error {
	res, err := r.on(tx).ExecContext(ctx, `DELETE FROM project_members WHERE project_id=? AND participant_id=?`, projectID, participantID)
	return expectOne(res, err, ErrNotFound)
}

func (r Repo) GetMember(ctx context.Context, tx *sql.Tx, projectID, participantID string) (domain.ProjectMember, error) {
	var m domain.ProjectMember
	err := r.on(tx).QueryRowContext(ctx, `SELECT project_id,participant_id,role,joined_at FROM project_members WHERE project_id=? AND participant_id=?`,
		projectID, participantID).Scan(&m.ProjectID, &m.ParticipantID, &m.Role, &m.JoinedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	return m, err
}

func (r Repo) ListMembers(ctx context.Context, tx *sql.Tx, projectID string) ([]domain.ProjectMember, error) {
	rows, err := r.on(tx).QueryContext(ctx, `SELECT project_id,participant_id,role,joined_at FROM project_members WHERE project_id=? ORDER BY joined_at ASC, participant_id ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ProjectMember
	for rows.Next() {
		var m domain.ProjectMember
		if err := rows.Scan(&m.ProjectID, &m.ParticipantID, &m.Role, &m.JoinedAt); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r Repo) CountMembers(ctx context.Context, tx *sql.Tx, projectID string) (int, error) {
	var n int
	err := r.on(tx).QueryRowContext(ctx, `SELECT COUNT(*) FROM project_members WHERE project_id=?`, projectID).Scan(&n)
	return n, err
}
