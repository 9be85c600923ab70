package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"questforge/internal/domain"
)

const userQuestColumns = `id,participant_id,quest_id,state,progress,COALESCE(description,''),proof_urls_json,started_at,completed_at,created_at,updated_at`

func scanUserQuest(s rowScanner) (domain.IndividualSubmission, error) {
	var u domain.IndividualSubmission
	var proofs, startedAt, completedAt sql.NullString
	if err := s.Scan(&u.ID, &u.ParticipantID, &u.QuestID, &u.State, &u.Progress, &u.Description, &proofs,
		&startedAt, &completedAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return u, ErrNotFound
		}
		return u, err
	}
	if proofs.Valid && proofs.String != "" {
		if err := json.Unmarshal([]byte(proofs.String), &u.ProofURLs); err != nil {
			return u, fmt.Errorf("decode proof urls: %w", err)
		}
	}
	u.StartedAt = stringPtr(startedAt)
	u.CompletedAt = stringPtr(completedAt)
	return u, nil
}

func encodeProofs(urls []string) (any, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(urls)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// InsertUserQuestWithinCapacity creates the submission only while the quest is below its cap.
// Returns ErrCapacity when the quest is full and ErrConflict when the participant already holds one.
func (r Repo) InsertUserQuestWithinCapacity(ctx context.Context, tx *sql.Tx, u domain.IndividualSubmission) error {
	res, err := r.on(tx).ExecContext(ctx, `INSERT INTO user_quests(id,participant_id,quest_id,state,progress,created_at,updated_at)
SELECT ?,?,?,?,?,?,? `+capacityGuard,
		u.ID, u.ParticipantID, u.QuestID, u.State, u.Progress, u.CreatedAt, u.UpdatedAt, u.QuestID)
	return expectOne(res, err, ErrCapacity)
}

func (r Repo) GetUserQuest(ctx context.Context, tx *sql.Tx, participantID, questID string) (domain.IndividualSubmission, error) {
	return scanUserQuest(r.on(tx).QueryRowContext(ctx, `SELECT `+userQuestColumns+` FROM user_quests WHERE participant_id=? AND quest_id=?`, participantID, questID))
}

// UpdateUserQuest rewrites the mutable fields, guarded on the state the caller read.
func (r Repo) UpdateUserQuest(ctx context.Context, tx *sql.Tx, u domain.IndividualSubmission, expected domain.IndividualState) error {
	proofs, err := encodeProofs(u.ProofURLs)
	if err != nil {
		return err
	}
	res, err := r.on(tx).ExecContext(ctx, `UPDATE user_quests SET state=?, progress=?, description=?, proof_urls_json=?, started_at=?, completed_at=?, updated_at=?
WHERE id=? AND state=?`,
		u.State, u.Progress, nullable(u.Description), proofs, nullableStringPtr(u.StartedAt), nullableStringPtr(u.CompletedAt), u.UpdatedAt,
		u.ID, expected)
	return expectOne(res, err, ErrStale)
}

func (r Repo) ListUserQuests(ctx context.Context, tx *sql.Tx, participantID string) ([]domain.IndividualSubmission, error) {
	rows, err := r.on(tx).QueryContext(ctx, `SELECT `+userQuestColumns+` FROM user_quests WHERE participant_id=? ORDER BY created_at ASC, id ASC`, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.IndividualSubmission
	for rows.Next() {
		u, err := scanUserQuest(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

const projectQuestColumns = `id,project_id,quest_id,state,progress,COALESCE(submission_link,''),COALESCE(submission_text,''),submitted_at,submitted_by,verified_by,COALESCE(verification_notes,''),verified_at,payment_ref,paid_at,created_at,updated_at`

func scanProjectQuest(s rowScanner) (domain.TeamSubmission, error) {
	var p domain.TeamSubmission
	var submittedAt, submittedBy, verifiedBy, verifiedAt, paymentRef, paidAt sql.NullString
	if err := s.Scan(&p.ID, &p.ProjectID, &p.QuestID, &p.State, &p.Progress, &p.SubmissionLink, &p.SubmissionText,
		&submittedAt, &submittedBy, &verifiedBy, &p.VerificationNotes, &verifiedAt, &paymentRef, &paidAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return p, ErrNotFound
		}
		return p, err
	}
	p.SubmittedAt = stringPtr(submittedAt)
	p.SubmittedBy = stringPtr(submittedBy)
	p.VerifiedBy = stringPtr(verifiedBy)
	p.VerifiedAt = stringPtr(verifiedAt)
	p.PaymentRef = stringPtr(paymentRef)
	p.PaidAt = stringPtr(paidAt)
	return p, nil
}

// InsertProjectQuestWithinCapacity is the team counterpart of InsertUserQuestWithinCapacity.
func (r Repo) InsertProjectQuestWithinCapacity(ctx context.Context, tx *sql.Tx, p domain.TeamSubmission) error {
	res, err := r.on(tx).ExecContext(ctx, `INSERT INTO project_quests(id,project_id,quest_id,state,progress,created_at,updated_at)
SELECT ?,?,?,?,?,?,? `+capacityGuard,
		p.ID, p.ProjectID, p.QuestID, p.State, p.Progress, p.CreatedAt, p.UpdatedAt, p.QuestID)
	return expectOne(res, err, ErrCapacity)
}

func (r Repo) GetProjectQuest(ctx context.Context, tx *sql.Tx, projectID, questID string) (domain.TeamSubmission, error) {
	return scanProjectQuest(r.on(tx).QueryRowContext(ctx, `SELECT `+projectQuestColumns+` FROM project_quests WHERE project_id=? AND quest_id=?`, projectID, questID))
}

func (r Repo) GetProjectQuestByID(ctx context.Context, tx *sql.Tx, id string) (domain.TeamSubmission, error) {
	return scanProjectQuest(r.on(tx).QueryRowContext(ctx, `SELECT `+projectQuestColumns+` FROM project_quests WHERE id=?`, id))
}

// UpdateProjectQuest rewrites the mutable fields, guarded on the state the caller read.
func (r Repo) UpdateProjectQuest(ctx context.Context, tx *sql.Tx, p domain.TeamSubmission, expected domain.TeamState) error {
	res, err := r.on(tx).ExecContext(ctx, `UPDATE project_quests SET state=?, progress=?, submission_link=?, submission_text=?, submitted_at=?, submitted_by=?,
verified_by=?, verification_notes=?, verified_at=?, payment_ref=?, paid_at=?, updated_at=?
WHERE id=? AND state=?`,
		p.State, p.Progress, nullable(p.SubmissionLink), nullable(p.SubmissionText), nullableStringPtr(p.SubmittedAt), nullableStringPtr(p.SubmittedBy),
		nullableStringPtr(p.VerifiedBy), nullable(p.VerificationNotes), nullableStringPtr(p.VerifiedAt), nullableStringPtr(p.PaymentRef),
		nullableStringPtr(p.PaidAt), p.UpdatedAt, p.ID, expected)
	return expectOne(res, err, ErrStale)
}

type ProjectQuestFilters struct {
	ProjectID string
	State     domain.TeamState
	Limit     int
}

func (r Repo) ListProjectQuests(ctx context.Context, tx *sql.Tx, f ProjectQuestFilters) ([]domain.TeamSubmission, error) {
	var (
		clauses []string
		args    []any
	)
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.State != "" {
		clauses = append(clauses, "state=?")
		args = append(args, f.State)
	}
	query := `SELECT ` + projectQuestColumns + ` FROM project_quests`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY updated_at ASC, id ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.on(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TeamSubmission
	for rows.Next() {
		p, err := scanProjectQuest(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// CountProjectQuestsByState groups every team submission by state.
func (r Repo) CountProjectQuestsByState(ctx context.Context, tx *sql.Tx) (map[domain.TeamState]int, error) {
	rows, err := r.on(tx).QueryContext(ctx, `SELECT state, COUNT(*) FROM project_quests GROUP BY state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[domain.TeamState]int{}
	for rows.Next() {
		var state domain.TeamState
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		res[state] = n
	}
	return res, rows.Err()
}

func (r Repo) CountVerifiedProjectQuests(ctx context.Context, tx *sql.Tx, projectID string) (int, error) {
	var n int
	err := r.on(tx).QueryRowContext(ctx, `SELECT COUNT(*) FROM project_quests WHERE project_id=? AND state=?`, projectID, domain.TeamVerified).Scan(&n)
	return n, err
}
