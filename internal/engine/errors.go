package engine

import (
	"errors"
	"fmt"
)

// Kind classifies engine failures for callers that map them to transport status codes.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindConflict      Kind = "conflict"
	KindNotFound      Kind = "not_found"
	KindState         Kind = "state"
)

// Error is a typed, recoverable engine failure. Message is shown to end users.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string { return e.Message }

// Is matches on Code so wrapped or re-messaged errors still compare equal to the sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func newErr(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrForbidden          = newErr(KindAuthorization, "forbidden", "not a member of this project")
	ErrUnauthorized       = newErr(KindAuthorization, "unauthorized", "admin role required")
	ErrNotFound           = newErr(KindNotFound, "not_found", "not found")
	ErrAlreadyExists      = newErr(KindConflict, "already_exists", "already exists")
	ErrCapacityExceeded   = newErr(KindConflict, "capacity_exceeded", "quest has reached maximum submissions")
	ErrLimitReached       = newErr(KindConflict, "limit_reached", "track change limit reached")
	ErrAlreadySubmitted   = newErr(KindConflict, "already_submitted", "quest has already been submitted")
	ErrTeamOnly           = newErr(KindValidation, "team_only", "this quest can only be completed by a team")
	ErrIndividualOnly     = newErr(KindValidation, "individual_only", "this quest can only be completed individually")
	ErrOutOfRange         = newErr(KindValidation, "out_of_range", "progress must be between 0 and 100")
	ErrMissingField       = newErr(KindValidation, "missing_field", "required field missing")
	ErrInvalidInput       = newErr(KindValidation, "invalid_input", "invalid input")
	ErrInvalidTrack       = newErr(KindValidation, "invalid_track", "invalid track")
	ErrSameTrack          = newErr(KindValidation, "same_track", "participant is already on this track")
	ErrAlreadyCompleted   = newErr(KindState, "already_completed", "quest is already completed")
	ErrIncompleteWork     = newErr(KindState, "incomplete_work", "progress must be 100 before submitting")
	ErrInvalidState       = newErr(KindState, "invalid_state", "operation not allowed in the current state")
	ErrQuestClosed        = newErr(KindState, "quest_closed", "quest is not open for applications")
	ErrRequirementsNotMet = newErr(KindState, "requirements_not_met", "stage requirements not met")
	ErrAlreadyFinal       = newErr(KindState, "already_final", "project is already at the final stage")
	ErrOnboardingRequired = newErr(KindState, "onboarding_required", "complete onboarding to choose a track first")
	ErrNotEnrolled        = newErr(KindAuthorization, "not_enrolled", "participant is not enrolled in this program")
)

// fail derives a concrete error from a sentinel with a specific message.
func fail(sentinel *Error, format string, args ...any) *Error {
	return &Error{Kind: sentinel.Kind, Code: sentinel.Code, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) withDetails(details map[string]any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// KindOf returns the Kind of an engine error, or "" for infrastructure errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// CodeOf returns the Code of an engine error, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
