package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"questforge/internal/domain"
	"questforge/internal/events"
	"questforge/internal/repo"
)

type Eligibility struct {
	ParticipantID    string        `json:"participant_id"`
	CurrentTrack     *domain.Track `json:"current_track,omitempty"`
	CanChange        bool          `json:"can_change"`
	RemainingChanges int           `json:"remaining_changes"`
	ChangeCount      int           `json:"change_count"`
	MaxChanges       int           `json:"max_changes"`
}

type TrackChange struct {
	Settings         domain.ParticipantSettings `json:"settings"`
	RemainingChanges int                        `json:"remaining_changes"`
}

func (e Engine) maxTrackChanges() int {
	return e.config().Tracks.MaxChanges
}

func remaining(limit, used int) int {
	if used >= limit {
		return 0
	}
	return limit - used
}

func (e Engine) parseTrack(v string) (domain.Track, error) {
	t, ok := domain.ParseTrack(v)
	if !ok {
		return "", e.refuse(fail(ErrInvalidTrack, "invalid track %q, expected one of LEARNING, FOUNDER, PROFESSIONAL, FREELANCER", v))
	}
	return t, nil
}

// Onboard records a participant's first track. It does not count as a change.
func (e Engine) Onboard(ctx context.Context, participantID, track string) (domain.ParticipantSettings, error) {
	if err := required(map[string]string{"participant_id": participantID}); err != nil {
		return domain.ParticipantSettings{}, e.refuse(err)
	}
	t, err := e.parseTrack(track)
	if err != nil {
		return domain.ParticipantSettings{}, err
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.ParticipantSettings{}, err
	}
	defer tx.Rollback()
	now := e.ts()
	s := domain.ParticipantSettings{
		ParticipantID: participantID,
		Track:         &t,
		OnboardedAt:   now,
		UpdatedAt:     now,
	}
	if err := e.Repo.InsertSettings(ctx, tx, s); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return s, e.refuse(fail(ErrAlreadyExists, "participant %s is already onboarded", participantID))
		}
		return s, fmt.Errorf("insert settings: %w", err)
	}
	if err := e.appendEvent(ctx, tx, events.Onboarded, "", "participant", participantID, participantID, events.EventPayload{"track": t}); err != nil {
		return s, err
	}
	if err := tx.Commit(); err != nil {
		return s, err
	}
	e.logger().Info("participant onboarded", zap.String("participant_id", participantID), zap.String("track", string(t)))
	return s, nil
}

func (e Engine) GetSettings(ctx context.Context, participantID string) (domain.ParticipantSettings, error) {
	s, err := e.Repo.GetSettings(ctx, nil, participantID)
	if errors.Is(err, repo.ErrNotFound) {
		return s, e.refuse(fail(ErrNotFound, "participant %s has not completed onboarding", participantID))
	}
	return s, err
}

func (e Engine) CheckEligibility(ctx context.Context, participantID string) (Eligibility, error) {
	s, err := e.GetSettings(ctx, participantID)
	if err != nil {
		return Eligibility{}, err
	}
	limit := e.maxTrackChanges()
	return Eligibility{
		ParticipantID:    participantID,
		CurrentTrack:     s.Track,
		CanChange:        s.TrackChangeCount < limit,
		RemainingChanges: remaining(limit, s.TrackChangeCount),
		ChangeCount:      s.TrackChangeCount,
		MaxChanges:       limit,
	}, nil
}

// ChangeTrack switches a participant's track, spending one of the allowed changes.
func (e Engine) ChangeTrack(ctx context.Context, participantID, newTrack string) (TrackChange, error) {
	t, err := e.parseTrack(newTrack)
	if err != nil {
		return TrackChange{}, err
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return TrackChange{}, err
	}
	defer tx.Rollback()

	s, err := e.Repo.GetSettings(ctx, tx, participantID)
	if errors.Is(err, repo.ErrNotFound) {
		return TrackChange{}, e.refuse(fail(ErrNotFound, "participant %s has not completed onboarding", participantID))
	}
	if err != nil {
		return TrackChange{}, err
	}
	limit := e.maxTrackChanges()
	if s.TrackChangeCount >= limit {
		return TrackChange{Settings: s}, e.refuse(fail(ErrLimitReached, "you have used all %d track changes", limit).
			withDetails(map[string]any{"change_count": s.TrackChangeCount, "max_changes": limit}))
	}
	if s.Track != nil && *s.Track == t {
		return TrackChange{Settings: s, RemainingChanges: remaining(limit, s.TrackChangeCount)},
			e.refuse(fail(ErrSameTrack, "participant is already on the %s track", t))
	}
	var from domain.Track
	if s.Track != nil {
		from = *s.Track
	}
	expected := s.TrackChangeCount
	now := e.ts()
	s.Track = &t
	s.TrackChangedAt = strPtr(now)
	s.TrackChangeCount++
	s.UpdatedAt = now
	if err := e.Repo.UpdateTrack(ctx, tx, s, expected); err != nil {
		if errors.Is(err, repo.ErrStale) {
			return TrackChange{}, e.refuse(fail(ErrInvalidState, "track changed concurrently, retry"))
		}
		return TrackChange{}, fmt.Errorf("update track: %w", err)
	}
	if err := e.appendEvent(ctx, tx, events.TrackChanged, "", "participant", participantID, participantID, events.EventPayload{
		"from": from, "to": t, "change_count": s.TrackChangeCount,
	}); err != nil {
		return TrackChange{}, err
	}
	if err := tx.Commit(); err != nil {
		return TrackChange{}, err
	}
	e.logger().Info("track changed", zap.String("participant_id", participantID), zap.String("from", string(from)),
		zap.String("to", string(t)), zap.Int("change_count", s.TrackChangeCount))
	return TrackChange{Settings: s, RemainingChanges: remaining(limit, s.TrackChangeCount)}, nil
}
