package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"questforge/internal/config"
	"questforge/internal/domain"
	"questforge/internal/engine/auth"
	"questforge/internal/events"
	"questforge/internal/metrics"
	"questforge/internal/repo"
)

type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Auth    auth.Service
	Events  events.Writer
	Config  *config.Config
	Log     *zap.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	r := repo.Repo{DB: db}
	if cfg == nil {
		cfg = config.Default()
	}
	return Engine{
		DB:     db,
		Repo:   r,
		Auth:   auth.Service{Repo: r},
		Events: events.Writer{},
		Config: cfg,
		Log:    zap.NewNop(),
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) ts() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) logger() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log
}

func (e Engine) config() *config.Config {
	if e.Config == nil {
		return config.Default()
	}
	return e.Config
}

func (e Engine) begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return tx, nil
}

func (e Engine) appendEvent(ctx context.Context, tx *sql.Tx, evtType, projectID, entityKind, entityID, actorID string, payload events.EventPayload) error {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w.Append(ctx, tx, evtType, projectID, entityKind, entityID, actorID, payload)
}

// refuse records a refused operation and passes err through.
func (e Engine) refuse(err error) error {
	var ee *Error
	if errors.As(err, &ee) {
		e.Metrics.Rejected(ee.Code)
		e.logger().Debug("operation refused", zap.String("code", ee.Code), zap.String("reason", ee.Message))
	}
	return err
}

// transitioned records a committed submission state change. from is "NONE" for a new submission.
func (e Engine) transitioned(sub domain.Submission, from string) {
	key := sub.Key()
	to := sub.CurrentState()
	e.Metrics.Transition(string(key.Kind), from, to)
	if from == to {
		return
	}
	e.logger().Info("submission transition", zap.String("kind", string(key.Kind)), zap.String("submission_id", sub.SubmissionID()),
		zap.String("owner_id", key.OwnerID), zap.String("quest_id", key.QuestID), zap.String("from", from), zap.String("to", to),
		zap.Int("progress", sub.CurrentProgress()), zap.Bool("terminal", sub.IsTerminal()))
}

// submissionEvent appends evtType for sub. The payload always carries the quest, progress, state
// and whether the submission is terminal.
func (e Engine) submissionEvent(ctx context.Context, tx *sql.Tx, evtType, projectID, actorID string, sub domain.Submission, payload events.EventPayload) error {
	if payload == nil {
		payload = events.EventPayload{}
	}
	key := sub.Key()
	payload["quest_id"] = key.QuestID
	payload["progress"] = sub.CurrentProgress()
	payload["state"] = sub.CurrentState()
	payload["terminal"] = sub.IsTerminal()
	return e.appendEvent(ctx, tx, evtType, projectID, string(key.Kind), sub.SubmissionID(), actorID, payload)
}

func (e Engine) requireAdmin(ctx context.Context, tx *sql.Tx, admin auth.AdminContext) error {
	err := e.Auth.RequireAdmin(ctx, tx, admin)
	var na auth.NotAdminError
	if errors.As(err, &na) {
		return e.refuse(fail(ErrUnauthorized, "%s", na.Error()))
	}
	return err
}

// RequireAdmin validates an admin capability outside any operation, for read-only admin tooling.
func (e Engine) RequireAdmin(ctx context.Context, admin auth.AdminContext) error {
	return e.requireAdmin(ctx, nil, admin)
}

func (e Engine) getQuest(ctx context.Context, tx *sql.Tx, id string) (domain.Quest, error) {
	q, err := e.Repo.GetQuest(ctx, tx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return q, e.refuse(fail(ErrNotFound, "quest %s not found", id))
	}
	return q, err
}

func (e Engine) getProject(ctx context.Context, tx *sql.Tx, id string) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, tx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return p, e.refuse(fail(ErrNotFound, "project %s not found", id))
	}
	return p, err
}

func required(fields map[string]string) error {
	var missing []string
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fail(ErrMissingField, "%s required", strings.Join(missing, ", ")).withDetails(map[string]any{"fields": missing})
}

func newID() string {
	return uuid.NewString()
}

func strPtr(s string) *string {
	return &s
}

// CreateQuestOptions are parameters for adding a quest to the catalog.
type CreateQuestOptions struct {
	ID             string
	Title          string
	Category       string
	Difficulty     string
	QuestType      domain.QuestType
	MaxSubmissions *int
	RewardPoints   int
	BountyUSD      *float64
	AvailableFrom  string
	StartAt        string
	EndAt          string
	DueDate        string
	ProgramID      string
}

func (e Engine) CreateQuest(ctx context.Context, admin auth.AdminContext, opts CreateQuestOptions) (domain.Quest, error) {
	if err := required(map[string]string{"title": opts.Title}); err != nil {
		return domain.Quest{}, e.refuse(err)
	}
	qt := domain.QuestType(strings.ToUpper(string(opts.QuestType)))
	if qt == "" {
		qt = domain.QuestBoth
	}
	if !domain.ValidQuestTypes[qt] {
		return domain.Quest{}, e.refuse(fail(ErrInvalidInput, "invalid quest type %q", opts.QuestType))
	}
	if opts.MaxSubmissions != nil && *opts.MaxSubmissions < 0 {
		return domain.Quest{}, e.refuse(fail(ErrOutOfRange, "max submissions must be >= 0"))
	}
	if opts.RewardPoints < 0 {
		return domain.Quest{}, e.refuse(fail(ErrOutOfRange, "reward points must be >= 0"))
	}
	window := map[string]string{"available_from": opts.AvailableFrom, "start_at": opts.StartAt, "end_at": opts.EndAt, "due_date": opts.DueDate}
	for name, v := range window {
		if v == "" {
			continue
		}
		if _, err := time.Parse(time.RFC3339, v); err != nil {
			return domain.Quest{}, e.refuse(fail(ErrInvalidInput, "%s must be an RFC3339 timestamp", name))
		}
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.Quest{}, err
	}
	defer tx.Rollback()
	if err := e.requireAdmin(ctx, tx, admin); err != nil {
		return domain.Quest{}, err
	}
	q := domain.Quest{
		ID:             opts.ID,
		Title:          strings.TrimSpace(opts.Title),
		Category:       strings.TrimSpace(opts.Category),
		Difficulty:     opts.Difficulty,
		QuestType:      qt,
		MaxSubmissions: opts.MaxSubmissions,
		RewardPoints:   opts.RewardPoints,
		BountyUSD:      opts.BountyUSD,
		CreatedAt:      e.ts(),
	}
	if q.ID == "" {
		q.ID = newID()
	}
	if opts.AvailableFrom != "" {
		q.AvailableFrom = strPtr(opts.AvailableFrom)
	}
	if opts.StartAt != "" {
		q.StartAt = strPtr(opts.StartAt)
	}
	if opts.EndAt != "" {
		q.EndAt = strPtr(opts.EndAt)
	}
	if opts.DueDate != "" {
		q.DueDate = strPtr(opts.DueDate)
	}
	if opts.ProgramID != "" {
		if _, err := e.Repo.GetProgram(ctx, tx, opts.ProgramID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return domain.Quest{}, e.refuse(fail(ErrNotFound, "program %s not found", opts.ProgramID))
			}
			return domain.Quest{}, err
		}
		q.ProgramID = strPtr(opts.ProgramID)
	}
	if err := e.Repo.InsertQuest(ctx, tx, q); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return domain.Quest{}, e.refuse(fail(ErrAlreadyExists, "quest %s already exists", q.ID))
		}
		return domain.Quest{}, fmt.Errorf("insert quest: %w", err)
	}
	if err := e.appendEvent(ctx, tx, events.QuestCreated, "", "quest", q.ID, admin.ActorID, events.EventPayload{
		"title": q.Title, "quest_type": q.QuestType, "max_submissions": q.MaxSubmissions,
	}); err != nil {
		return domain.Quest{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Quest{}, err
	}
	e.logger().Info("quest created", zap.String("quest_id", q.ID), zap.String("quest_type", string(q.QuestType)))
	return q, nil
}

func (e Engine) GetQuest(ctx context.Context, id string) (domain.Quest, error) {
	return e.getQuest(ctx, nil, id)
}

func (e Engine) ListQuests(ctx context.Context, f repo.QuestFilters) ([]domain.Quest, error) {
	types := make([]domain.QuestType, 0, len(f.Types))
	for _, t := range f.Types {
		qt := domain.QuestType(strings.ToUpper(strings.TrimSpace(string(t))))
		if !domain.ValidQuestTypes[qt] {
			return nil, e.refuse(fail(ErrInvalidInput, "unknown quest type %q", t))
		}
		types = append(types, qt)
	}
	f.Types = types
	return e.Repo.ListQuests(ctx, nil, f)
}

// questOpen reports whether now falls inside the quest's application window.
func questOpen(q domain.Quest, now time.Time) (bool, string) {
	if q.AvailableFrom != nil {
		if from, err := time.Parse(time.RFC3339, *q.AvailableFrom); err == nil && now.Before(from) {
			return false, fmt.Sprintf("quest opens at %s", *q.AvailableFrom)
		}
	}
	if q.EndAt != nil {
		if end, err := time.Parse(time.RFC3339, *q.EndAt); err == nil && now.After(end) {
			return false, fmt.Sprintf("quest closed at %s", *q.EndAt)
		}
	}
	return true, ""
}
