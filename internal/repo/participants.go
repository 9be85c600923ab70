package repo

import (
	"context"
	"database/sql"

	"questforge/internal/domain"
)

func (r Repo) InsertSettings(ctx context.Context, tx *sql.Tx, s domain.ParticipantSettings) error {
	var track any
	if s.Track != nil {
		track = string(*s.Track)
	}
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO participant_settings(participant_id,track,track_changed_at,track_change_count,onboarded_at,updated_at) VALUES (?,?,?,?,?,?)`,
		s.ParticipantID, track, nullableStringPtr(s.TrackChangedAt), s.TrackChangeCount, s.OnboardedAt, s.UpdatedAt)
	return mapWriteErr(err)
}

func (r Repo) GetSettings(ctx context.Context, tx *sql.Tx, participantID string) (domain.ParticipantSettings, error) {
	var s domain.ParticipantSettings
	var track, changedAt sql.NullString
	err := r.on(tx).QueryRowContext(ctx, `SELECT participant_id,track,track_changed_at,track_change_count,onboarded_at,updated_at FROM participant_settings WHERE participant_id=?`,
		participantID).Scan(&s.ParticipantID, &track, &changedAt, &s.TrackChangeCount, &s.OnboardedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	if track.Valid {
		t := domain.Track(track.String)
		s.Track = &t
	}
	s.TrackChangedAt = stringPtr(changedAt)
	return s, nil
}

// UpdateTrack writes the new track and count only if the stored count still equals expectedCount.
func (r Repo) UpdateTrack(ctx context.Context, tx *sql.Tx, s domain.ParticipantSettings, expectedCount int) error {
	var track any
	if s.Track != nil {
		track = string(*s.Track)
	}
	res, err := r.on(tx).ExecContext(ctx, `UPDATE participant_settings SET track=?, track_changed_at=?, track_change_count=?, updated_at=?
WHERE participant_id=? AND track_change_count=?`,
		track, nullableStringPtr(s.TrackChangedAt), s.TrackChangeCount, s.UpdatedAt, s.ParticipantID, expectedCount)
	return expectOne(res, err, ErrStale)
}

func (r Repo) InsertProgram(ctx context.Context, tx *sql.Tx, p domain.Program) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO programs(id,name,created_at) VALUES (?,?,?)`, p.ID, p.Name, p.CreatedAt)
	return mapWriteErr(err)
}

func (r Repo) GetProgram(ctx context.Context, tx *sql.Tx, id string) (domain.Program, error) {
	var p domain.Program
	err := r.on(tx).QueryRowContext(ctx, `SELECT id,name,created_at FROM programs WHERE id=?`, id).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) ListPrograms(ctx context.Context, tx *sql.Tx) ([]domain.Program, error) {
	rows, err := r.on(tx).QueryContext(ctx, `SELECT id,name,created_at FROM programs ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Program
	for rows.Next() {
		var p domain.Program
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// UpsertProgramMember enrolls a participant or updates the status of an existing enrollment.
func (r Repo) UpsertProgramMember(ctx context.Context, tx *sql.Tx, m domain.ProgramMember) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO program_members(program_id,participant_id,status,joined_at) VALUES (?,?,?,?)
ON CONFLICT(program_id,participant_id) DO UPDATE SET status=excluded.status`,
		m.ProgramID, m.ParticipantID, m.Status, m.JoinedAt)
	return mapWriteErr(err)
}

func (r Repo) GetProgramMember(ctx context.Context, tx *sql.Tx, programID, participantID string) (domain.ProgramMember, error) {
	var m domain.ProgramMember
	err := r.on(tx).QueryRowContext(ctx, `SELECT program_id,participant_id,status,joined_at FROM program_members WHERE program_id=? AND participant_id=?`,
		programID, participantID).Scan(&m.ProgramID, &m.ParticipantID, &m.Status, &m.JoinedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	return m, err
}

func (r Repo) InsertAdmin(ctx context.Context, tx *sql.Tx, actorID, grantedBy, grantedAt string) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO platform_admins(actor_id,granted_by,granted_at) VALUES (?,?,?)`, actorID, grantedBy, grantedAt)
	return mapWriteErr(err)
}

func (r Repo) DeleteAdmin(ctx context.Context, tx *sql.Tx, actorID string) error {
	res, err := r.on(tx).ExecContext(ctx, `DELETE FROM platform_admins WHERE actor_id=?`, actorID)
	return expectOne(res, err, ErrNotFound)
}

func (r Repo) IsAdmin(ctx context.Context, tx *sql.Tx, actorID string) (bool, error) {
	var n int
	err := r.on(tx).QueryRowContext(ctx, `SELECT COUNT(*) FROM platform_admins WHERE actor_id=?`, actorID).Scan(&n)
	return n > 0, err
}

func (r Repo) CountAdmins(ctx context.Context, tx *sql.Tx) (int, error) {
	var n int
	err := r.on(tx).QueryRowContext(ctx, `SELECT COUNT(*) FROM platform_admins`).Scan(&n)
	return n, err
}

func (r Repo) ListAdmins(ctx context.Context, tx *sql.Tx) ([]string, error) {
	rows, err := r.on(tx).QueryContext(ctx, `SELECT actor_id FROM platform_admins ORDER BY granted_at ASC, actor_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		res = append(res, id)
	}
	return res, rows.Err()
}
