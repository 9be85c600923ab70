package domain

type IndividualState string

const (
	IndividualNotStarted IndividualState = "NOT_STARTED"
	IndividualInProgress IndividualState = "IN_PROGRESS"
	IndividualCompleted  IndividualState = "COMPLETED"
	IndividualFailed     IndividualState = "FAILED"
)

func (s IndividualState) IsTerminal() bool {
	return s == IndividualCompleted || s == IndividualFailed
}

type TeamState string

const (
	TeamNotStarted TeamState = "NOT_STARTED"
	TeamInProgress TeamState = "IN_PROGRESS"
	TeamSubmitted  TeamState = "SUBMITTED"
	TeamVerified   TeamState = "VERIFIED"
	TeamRejected   TeamState = "REJECTED"
)

// ValidTeamStates is the canonical set of team submission states.
var ValidTeamStates = map[TeamState]bool{
	TeamNotStarted: true,
	TeamInProgress: true,
	TeamSubmitted:  true,
	TeamVerified:   true,
	TeamRejected:   true,
}

// IsTerminal is true only for VERIFIED; REJECTED work may be resubmitted.
func (s TeamState) IsTerminal() bool { return s == TeamVerified }

type SubmissionKind string

const (
	KindIndividual SubmissionKind = "individual"
	KindTeam       SubmissionKind = "team"
)

// NaturalKey identifies a submission by owner and quest. At most one submission exists per key.
type NaturalKey struct {
	Kind    SubmissionKind
	OwnerID string
	QuestID string
}

// Submission is implemented by IndividualSubmission and TeamSubmission.
type Submission interface {
	Key() NaturalKey
	SubmissionID() string
	CurrentProgress() int
	CurrentState() string
	IsTerminal() bool
}

type IndividualSubmission struct {
	ID            string          `json:"id"`
	ParticipantID string          `json:"participant_id"`
	QuestID       string          `json:"quest_id"`
	State         IndividualState `json:"state" enum:"NOT_STARTED,IN_PROGRESS,COMPLETED,FAILED"`
	Progress      int             `json:"progress" minimum:"0" maximum:"100"`
	Description   string          `json:"description,omitempty"`
	ProofURLs     []string        `json:"proof_urls,omitempty"`
	StartedAt     *string         `json:"started_at,omitempty" format:"date-time"`
	CompletedAt   *string         `json:"completed_at,omitempty" format:"date-time"`
	CreatedAt     string          `json:"created_at" format:"date-time"`
	UpdatedAt     string          `json:"updated_at" format:"date-time"`
}

func (s IndividualSubmission) Key() NaturalKey {
	return NaturalKey{Kind: KindIndividual, OwnerID: s.ParticipantID, QuestID: s.QuestID}
}
func (s IndividualSubmission) SubmissionID() string { return s.ID }
func (s IndividualSubmission) CurrentProgress() int { return s.Progress }
func (s IndividualSubmission) CurrentState() string { return string(s.State) }
func (s IndividualSubmission) IsTerminal() bool { return s.State.IsTerminal() }

type TeamSubmission struct {
	ID                string    `json:"id"`
	ProjectID         string    `json:"project_id"`
	QuestID           string    `json:"quest_id"`
	State             TeamState `json:"state" enum:"NOT_STARTED,IN_PROGRESS,SUBMITTED,VERIFIED,REJECTED"`
	Progress          int       `json:"progress" minimum:"0" maximum:"100"`
	SubmissionLink    string    `json:"submission_link,omitempty"`
	SubmissionText    string    `json:"submission_text,omitempty"`
	SubmittedAt       *string   `json:"submitted_at,omitempty" format:"date-time"`
	SubmittedBy       *string   `json:"submitted_by,omitempty"`
	VerifiedBy        *string   `json:"verified_by,omitempty"`
	VerificationNotes string    `json:"verification_notes,omitempty"`
	VerifiedAt        *string   `json:"verified_at,omitempty" format:"date-time"`
	PaymentRef        *string   `json:"payment_ref,omitempty"`
	PaidAt            *string   `json:"paid_at,omitempty" format:"date-time"`
	CreatedAt         string    `json:"created_at" format:"date-time"`
	UpdatedAt         string    `json:"updated_at" format:"date-time"`
}

func (s TeamSubmission) Key() NaturalKey {
	return NaturalKey{Kind: KindTeam, OwnerID: s.ProjectID, QuestID: s.QuestID}
}
func (s TeamSubmission) SubmissionID() string { return s.ID }
func (s TeamSubmission) CurrentProgress() int { return s.Progress }
func (s TeamSubmission) CurrentState() string { return string(s.State) }
func (s TeamSubmission) IsTerminal() bool { return s.State.IsTerminal() }

// ProgressInRange reports whether p is a valid progress percentage.
func ProgressInRange(p int) bool { return p >= 0 && p <= 100 }

// IndividualStateFor derives the state of a non-terminal individual submission from its progress.
// 0 leaves the state unchanged, 1-99 is IN_PROGRESS and 100 is COMPLETED.
func IndividualStateFor(current IndividualState, progress int) IndividualState {
	if current.IsTerminal() {
		return current
	}
	switch {
	case progress <= 0:
		return current
	case progress >= 100:
		return IndividualCompleted
	default:
		return IndividualInProgress
	}
}

// TeamStateFor derives the state after a progress update on a team submission.
// SUBMITTED and VERIFIED are only reachable through submit and verify, so progress alone
// never leaves IN_PROGRESS; a REJECTED submission re-enters IN_PROGRESS on any positive progress.
func TeamStateFor(current TeamState, progress int) TeamState {
	if current == TeamSubmitted || current == TeamVerified {
		return current
	}
	if progress <= 0 {
		return current
	}
	return TeamInProgress
}
