package domain

type Quest struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Category       string    `json:"category,omitempty"`
	Difficulty     string    `json:"difficulty,omitempty"`
	QuestType      QuestType `json:"quest_type" enum:"INDIVIDUAL,TEAM,BOTH"`
	MaxSubmissions *int      `json:"max_submissions,omitempty"`
	RewardPoints   int       `json:"reward_points"`
	BountyUSD      *float64  `json:"bounty_usd,omitempty"`
	AvailableFrom  *string   `json:"available_from,omitempty" format:"date-time"`
	StartAt        *string   `json:"start_at,omitempty" format:"date-time"`
	EndAt          *string   `json:"end_at,omitempty" format:"date-time"`
	DueDate        *string   `json:"due_date,omitempty" format:"date-time"`
	ProgramID      *string   `json:"program_id,omitempty"`
	CreatedAt      string    `json:"created_at" format:"date-time"`
}

// AllowsIndividuals reports whether a single participant may start the quest.
func (q Quest) AllowsIndividuals() bool {
	return q.QuestType == QuestIndividual || q.QuestType == QuestBoth
}

// AllowsTeams reports whether a project may apply to the quest.
func (q Quest) AllowsTeams() bool {
	return q.QuestType == QuestTeam || q.QuestType == QuestBoth
}

type Project struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Stage     Stage  `json:"stage" enum:"IDEA,PROTOTYPE,BUILD,PROJECT,INCUBATE,ACCELERATE,SCALE"`
	CreatedBy string `json:"created_by"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

type ProjectMember struct {
	ProjectID     string     `json:"project_id"`
	ParticipantID string     `json:"participant_id"`
	Role          MemberRole `json:"role" enum:"ADMIN,MEMBER"`
	JoinedAt      string     `json:"joined_at" format:"date-time"`
}

type ParticipantSettings struct {
	ParticipantID    string  `json:"participant_id"`
	Track            *Track  `json:"track,omitempty" enum:"LEARNING,FOUNDER,PROFESSIONAL,FREELANCER"`
	TrackChangedAt   *string `json:"track_changed_at,omitempty" format:"date-time"`
	TrackChangeCount int     `json:"track_change_count"`
	OnboardedAt      string  `json:"onboarded_at" format:"date-time"`
	UpdatedAt        string  `json:"updated_at" format:"date-time"`
}

type Program struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type ProgramMember struct {
	ProgramID     string `json:"program_id"`
	ParticipantID string `json:"participant_id"`
	Status        string `json:"status" enum:"active,inactive"`
	JoinedAt      string `json:"joined_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
