package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	QuestCreated         = "quest.created"
	ProjectCreated       = "project.created"
	MemberAdded          = "project.member.added"
	MemberRemoved        = "project.member.removed"
	SubmissionApplied    = "submission.applied"
	SubmissionProgressed = "submission.progressed"
	SubmissionSubmitted  = "submission.submitted"
	SubmissionVerified   = "submission.verified"
	SubmissionRejected   = "submission.rejected"
	SubmissionFailed     = "submission.failed"
	StageAdvanced        = "project.stage.advanced"
	Onboarded            = "participant.onboarded"
	TrackChanged         = "participant.track.changed"
	ProgramCreated       = "program.created"
	ProgramEnrolled      = "program.enrolled"
	AdminGranted         = "admin.granted"
	AdminRevoked         = "admin.revoked"
)

type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Append records an event inside tx so it commits or rolls back with the mutation it describes.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, projectID, entityKind, entityID, actorID string, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,project_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		ts, evtType, nullable(projectID), entityKind, nullable(entityID), actorID, string(data))
	if err != nil {
		return fmt.Errorf("append %s event: %w", evtType, err)
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
