package repo

import (
	"context"
	"database/sql"
	"strings"

	"questforge/internal/domain"
)

const questColumns = `id,title,COALESCE(category,''),COALESCE(difficulty,''),quest_type,max_submissions,reward_points,bounty_usd,available_from,start_at,end_at,due_date,program_id,created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuest(s rowScanner) (domain.Quest, error) {
	var q domain.Quest
	var maxSubs sql.NullInt64
	var bounty sql.NullFloat64
	var availableFrom, startAt, endAt, due, programID sql.NullString
	if err := s.Scan(&q.ID, &q.Title, &q.Category, &q.Difficulty, &q.QuestType, &maxSubs, &q.RewardPoints, &bounty,
		&availableFrom, &startAt, &endAt, &due, &programID, &q.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return q, ErrNotFound
		}
		return q, err
	}
	q.MaxSubmissions = intPtr(maxSubs)
	q.BountyUSD = floatPtr(bounty)
	q.AvailableFrom = stringPtr(availableFrom)
	q.StartAt = stringPtr(startAt)
	q.EndAt = stringPtr(endAt)
	q.DueDate = stringPtr(due)
	q.ProgramID = stringPtr(programID)
	return q, nil
}

func (r Repo) InsertQuest(ctx context.Context, tx *sql.Tx, q domain.Quest) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO quests(id,title,category,difficulty,quest_type,max_submissions,reward_points,bounty_usd,available_from,start_at,end_at,due_date,program_id,created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		q.ID, q.Title, nullable(q.Category), nullable(q.Difficulty), q.QuestType, nullableIntPtr(q.MaxSubmissions), q.RewardPoints,
		nullableFloatPtr(q.BountyUSD), nullableStringPtr(q.AvailableFrom), nullableStringPtr(q.StartAt), nullableStringPtr(q.EndAt),
		nullableStringPtr(q.DueDate), nullableStringPtr(q.ProgramID), q.CreatedAt)
	return mapWriteErr(err)
}

func (r Repo) GetQuest(ctx context.Context, tx *sql.Tx, id string) (domain.Quest, error) {
	return scanQuest(r.on(tx).QueryRowContext(ctx, `SELECT `+questColumns+` FROM quests WHERE id=?`, id))
}

type QuestFilters struct {
	// ProgramID scopes to one program. When nil and AnyProgram is false, only quests outside any program match.
	ProgramID  *string
	AnyProgram bool
	Types      []domain.QuestType
	Category   string
}

func (r Repo) ListQuests(ctx context.Context, tx *sql.Tx, f QuestFilters) ([]domain.Quest, error) {
	var (
		clauses []string
		args    []any
	)
	switch {
	case f.ProgramID != nil:
		clauses = append(clauses, "program_id=?")
		args = append(args, *f.ProgramID)
	case !f.AnyProgram:
		clauses = append(clauses, "program_id IS NULL")
	}
	if len(f.Types) > 0 {
		marks := make([]string, len(f.Types))
		for i, t := range f.Types {
			marks[i] = "?"
			args = append(args, t)
		}
		clauses = append(clauses, "quest_type IN ("+strings.Join(marks, ",")+")")
	}
	if f.Category != "" {
		clauses = append(clauses, "LOWER(category)=LOWER(?)")
		args = append(args, f.Category)
	}
	query := `SELECT ` + questColumns + ` FROM quests`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"
	rows, err := r.on(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Quest
	for rows.Next() {
		q, err := scanQuest(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, q)
	}
	return res, rows.Err()
}

// CountQuestSubmissions sums individual and team submissions referencing the quest.
func (r Repo) CountQuestSubmissions(ctx context.Context, tx *sql.Tx, questID string) (int, error) {
	var n int
	err := r.on(tx).QueryRowContext(ctx, `SELECT
 (SELECT COUNT(*) FROM user_quests WHERE quest_id=?) +
 (SELECT COUNT(*) FROM project_quests WHERE quest_id=?)`, questID, questID).Scan(&n)
	return n, err
}

// capacityGuard is appended to conditional submission inserts; it binds the quest id once.
const capacityGuard = `FROM quests q WHERE q.id=? AND (q.max_submissions IS NULL OR
 (SELECT COUNT(*) FROM user_quests WHERE quest_id=q.id) + (SELECT COUNT(*) FROM project_quests WHERE quest_id=q.id) < q.max_submissions)`
