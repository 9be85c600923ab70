package server

import (
	"questforge/internal/domain"
	"questforge/internal/engine"
)

// Request payloads

type CreateQuestRequest struct {
	ID             string   `json:"id,omitempty"`
	Title          string   `json:"title" minLength:"1"`
	Category       string   `json:"category,omitempty"`
	Difficulty     string   `json:"difficulty,omitempty"`
	QuestType      string   `json:"quest_type,omitempty" enum:"INDIVIDUAL,TEAM,BOTH"`
	MaxSubmissions *int     `json:"max_submissions,omitempty" minimum:"0"`
	RewardPoints   int      `json:"reward_points,omitempty" minimum:"0"`
	BountyUSD      *float64 `json:"bounty_usd,omitempty"`
	AvailableFrom  string   `json:"available_from,omitempty" format:"date-time"`
	StartAt        string   `json:"start_at,omitempty" format:"date-time"`
	EndAt          string   `json:"end_at,omitempty" format:"date-time"`
	DueDate        string   `json:"due_date,omitempty" format:"date-time"`
	ProgramID      string   `json:"program_id,omitempty"`
}

func (r CreateQuestRequest) options() engine.CreateQuestOptions {
	return engine.CreateQuestOptions{
		ID:             r.ID,
		Title:          r.Title,
		Category:       r.Category,
		Difficulty:     r.Difficulty,
		QuestType:      domain.QuestType(r.QuestType),
		MaxSubmissions: r.MaxSubmissions,
		RewardPoints:   r.RewardPoints,
		BountyUSD:      r.BountyUSD,
		AvailableFrom:  r.AvailableFrom,
		StartAt:        r.StartAt,
		EndAt:          r.EndAt,
		DueDate:        r.DueDate,
		ProgramID:      r.ProgramID,
	}
}

// ProgressRequest carries a progress report. Progress is validated by the engine so an
// out-of-range value surfaces as out_of_range rather than a schema error.
type ProgressRequest struct {
	Progress int      `json:"progress"`
	Text     string   `json:"text,omitempty"`
	URLs     []string `json:"urls,omitempty"`
}

func (r ProgressRequest) update() engine.ProgressUpdate {
	return engine.ProgressUpdate{Progress: r.Progress, Text: r.Text, URLs: r.URLs}
}

type SubmitRequest struct {
	Link string `json:"link,omitempty"`
	Text string `json:"text,omitempty"`
}

type CreateProjectRequest struct {
	Name string `json:"name"`
}

type AddMemberRequest struct {
	ParticipantID string `json:"participant_id"`
	Role          string `json:"role,omitempty" enum:"ADMIN,MEMBER"`
}

type AdvanceRequest struct {
	ManualOverride bool `json:"manual_override,omitempty"`
}

type VerifyRequest struct {
	Notes      string `json:"notes,omitempty"`
	PaymentRef string `json:"payment_ref,omitempty"`
}

type RejectRequest struct {
	Notes string `json:"notes,omitempty"`
}

type FailRequest struct {
	Reason string `json:"reason,omitempty"`
}

type TrackRequest struct {
	Track string `json:"track"`
}

type CreateProgramRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type GrantAdminRequest struct {
	ActorID string `json:"actor_id"`
}

// Response payloads

type StageProgressResponse struct {
	ProjectID string `json:"project_id"`
	Percent   int    `json:"percent"`
}

type ListResponse[T any] struct {
	Items []T `json:"items"`
}

func list[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items}
}
