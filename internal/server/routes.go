package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"questforge/internal/domain"
	"questforge/internal/engine"
	"questforge/internal/repo"
)

type out[T any] struct {
	Body T
}

func respond[T any](v T) *out[T] {
	return &out[T]{Body: v}
}

var writeErrors = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusInternalServerError,
}

type questPath struct {
	QuestID string `path:"quest_id"`
}

type projectPath struct {
	ProjectID string `path:"project_id"`
}

type projectQuestPath struct {
	ProjectID string `path:"project_id"`
	QuestID   string `path:"quest_id"`
}

type programQuery struct {
	ProgramID string `query:"program_id"`
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*out[map[string]string], error) {
		return respond(map[string]string{"status": "ok"}), nil
	})
}

func registerQuests(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-quest",
		Method:        http.MethodPost,
		Path:          "/quests",
		Summary:       "Create quest (admin)",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateQuestRequest
	}) (*out[domain.Quest], error) {
		admin, authErr := adminFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		q, err := e.CreateQuest(ctx, admin, input.Body.options())
		if err != nil {
			return nil, handleError(err)
		}
		return respond(q), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-quests",
		Method:      http.MethodGet,
		Path:        "/quests",
		Summary:     "List quests",
	}, func(ctx context.Context, input *struct {
		ProgramID  string `query:"program_id"`
		AnyProgram bool   `query:"any_program"`
		Type       string `query:"type" doc:"INDIVIDUAL, TEAM or BOTH; case-insensitive"`
		Category   string `query:"category"`
	}) (*out[ListResponse[domain.Quest]], error) {
		f := repo.QuestFilters{AnyProgram: input.AnyProgram, Category: input.Category}
		if input.ProgramID != "" {
			f.ProgramID = &input.ProgramID
		}
		if input.Type != "" {
			f.Types = []domain.QuestType{domain.QuestType(input.Type)}
		}
		quests, err := e.ListQuests(ctx, f)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(list(quests)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-quest",
		Method:      http.MethodGet,
		Path:        "/quests/{quest_id}",
		Summary:     "Get quest",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *questPath) (*out[domain.Quest], error) {
		q, err := e.GetQuest(ctx, input.QuestID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(q), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "apply-individual",
		Method:        http.MethodPost,
		Path:          "/quests/{quest_id}/apply",
		Summary:       "Start a quest as an individual",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *questPath) (*out[domain.IndividualSubmission], error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		sub, err := e.ApplyIndividual(ctx, actor, input.QuestID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(sub), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-individual-progress",
		Method:      http.MethodPatch,
		Path:        "/quests/{quest_id}/progress",
		Summary:     "Report individual progress",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		QuestID string `path:"quest_id"`
		Body    ProgressRequest
	}) (*out[domain.IndividualSubmission], error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		sub, err := e.UpdateIndividualProgress(ctx, actor, input.QuestID, input.Body.update())
		if err != nil {
			return nil, handleError(err)
		}
		return respond(sub), nil
	})
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project; the caller becomes its admin",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest
	}) (*out[domain.Project], error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.CreateProject(ctx, actor, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
	}, func(ctx context.Context, _ *struct{}) (*out[ListResponse[domain.Project]], error) {
		items, err := e.ListProjects(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(list(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *projectPath) (*out[domain.Project], error) {
		p, err := e.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-members",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/members",
		Summary:     "List project members",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *projectPath) (*out[ListResponse[domain.ProjectMember]], error) {
		items, err := e.ListMembers(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(list(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-member",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/members",
		Summary:       "Add project member (project admin)",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Body      AddMemberRequest
	}) (*out[domain.ProjectMember], error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		role := domain.MemberRole(strings.ToUpper(input.Body.Role))
		if role == "" {
			role = domain.RoleMember
		}
		m, err := e.AddMember(ctx, actor, input.ProjectID, input.Body.ParticipantID, role)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(m), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "remove-member",
		Method:        http.MethodDelete,
		Path:          "/projects/{project_id}/members/{participant_id}",
		Summary:       "Remove project member",
		DefaultStatus: http.StatusNoContent,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID     string `path:"project_id"`
		ParticipantID string `path:"participant_id"`
	}) (*struct{}, error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RemoveMember(ctx, actor, input.ProjectID, input.ParticipantID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerTeamQuests(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-team-submissions",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/quests",
		Summary:     "List the project's quest submissions (members)",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *projectPath) (*out[ListResponse[domain.TeamSubmission]], error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListTeamSubmissions(ctx, actor, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(list(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "apply-team",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/quests/{quest_id}/apply",
		Summary:       "Start a quest as a team",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *projectQuestPath) (*out[domain.TeamSubmission], error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		sub, err := e.ApplyTeam(ctx, actor, input.ProjectID, input.QuestID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(sub), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-team-progress",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}/quests/{quest_id}/progress",
		Summary:     "Report team progress",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		QuestID   string `path:"quest_id"`
		Body      ProgressRequest
	}) (*out[domain.TeamSubmission], error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		sub, err := e.UpdateTeamProgress(ctx, actor, input.ProjectID, input.QuestID, input.Body.update())
		if err != nil {
			return nil, handleError(err)
		}
		return respond(sub), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "submit-team",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/quests/{quest_id}/submit",
		Summary:     "Submit team work for verification",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		QuestID   string `path:"quest_id"`
		Body      SubmitRequest
	}) (*out[domain.TeamSubmission], error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		sub, err := e.SubmitTeam(ctx, actor, input.ProjectID, input.QuestID, engine.TeamSubmitInput{
			Link: input.Body.Link, Text: input.Body.Text,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(sub), nil
	})
}

func registerStage(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "check-advancement",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/advancement",
		Summary:     "Check stage advancement requirements",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *projectPath) (*out[engine.AdvancementCheck], error) {
		check, err := e.CheckAdvancement(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(check), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "advance-stage",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/advance",
		Summary:     "Advance project one stage",
		Errors:      append([]int{http.StatusUnprocessableEntity}, writeErrors...),
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Body      *AdvanceRequest
	}) (*out[domain.Project], error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.AdvanceOptions{ActorID: actor}
		if input.Body != nil && input.Body.ManualOverride {
			admin, _ := adminFromContext(ctx)
			opts.ManualOverride = true
			opts.Admin = &admin
		}
		p, err := e.Advance(ctx, input.ProjectID, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "stage-progress",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/progress",
		Summary:     "Percent of the next stage's quest requirement met",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *projectPath) (*out[StageProgressResponse], error) {
		pct, err := e.ProgressToNextStage(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(StageProgressResponse{ProjectID: input.ProjectID, Percent: pct}), nil
	})
}

func registerReview(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-submissions-by-status",
		Method:      http.MethodGet,
		Path:        "/admin/submissions",
		Summary:     "List team submissions by state (admin)",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" default:"SUBMITTED"`
		Limit  int    `query:"limit" minimum:"0" maximum:"500"`
	}) (*out[ListResponse[domain.TeamSubmission]], error) {
		admin, authErr := adminFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListByStatus(ctx, admin, domain.TeamState(strings.ToUpper(input.Status)), input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(list(items)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "verification-stats",
		Method:      http.MethodGet,
		Path:        "/admin/submissions/stats",
		Summary:     "Verification queue statistics (admin)",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*out[engine.VerificationStats], error) {
		admin, authErr := adminFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		stats, err := e.VerificationStats(ctx, admin)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(stats), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "verify-submission",
		Method:      http.MethodPost,
		Path:        "/admin/submissions/{submission_id}/verify",
		Summary:     "Verify a submitted team quest (admin)",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		SubmissionID string `path:"submission_id"`
		Body         *VerifyRequest
	}) (*out[domain.TeamSubmission], error) {
		admin, authErr := adminFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var in engine.VerifyInput
		if input.Body != nil {
			in = engine.VerifyInput{Notes: input.Body.Notes, PaymentRef: input.Body.PaymentRef}
		}
		sub, err := e.Verify(ctx, admin, input.SubmissionID, in)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(sub), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reject-submission",
		Method:      http.MethodPost,
		Path:        "/admin/submissions/{submission_id}/reject",
		Summary:     "Reject a submitted team quest (admin)",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		SubmissionID string `path:"submission_id"`
		Body         RejectRequest
	}) (*out[domain.TeamSubmission], error) {
		admin, authErr := adminFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		sub, err := e.Reject(ctx, admin, input.SubmissionID, input.Body.Notes)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(sub), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "fail-individual",
		Method:      http.MethodPost,
		Path:        "/admin/participants/{participant_id}/quests/{quest_id}/fail",
		Summary:     "Mark an individual quest failed (admin)",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ParticipantID string `path:"participant_id"`
		QuestID       string `path:"quest_id"`
		Body          FailRequest
	}) (*out[domain.IndividualSubmission], error) {
		admin, authErr := adminFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		sub, err := e.FailIndividual(ctx, admin, input.ParticipantID, input.QuestID, input.Body.Reason)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(sub), nil
	})
}

func registerMe(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "onboard",
		Method:        http.MethodPost,
		Path:          "/me/onboarding",
		Summary:       "Choose an initial track",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body TrackRequest
	}) (*out[domain.ParticipantSettings], error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.Onboard(ctx, actor, input.Body.Track)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(s), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "my-settings",
		Method:      http.MethodGet,
		Path:        "/me/settings",
		Summary:     "Caller's participant settings",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, _ *struct{}) (*out[domain.ParticipantSettings], error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.GetSettings(ctx, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(s), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "track-eligibility",
		Method:      http.MethodGet,
		Path:        "/me/track/eligibility",
		Summary:     "Whether the caller may still change track",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, _ *struct{}) (*out[engine.Eligibility], error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		elig, err := e.CheckEligibility(ctx, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(elig), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "change-track",
		Method:      http.MethodPost,
		Path:        "/me/track",
		Summary:     "Change the caller's track",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		Body TrackRequest
	}) (*out[engine.TrackChange], error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.ChangeTrack(ctx, actor, input.Body.Track)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(res), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resolve-quests",
		Method:      http.MethodGet,
		Path:        "/me/quests",
		Summary:     "Quests relevant to the caller's track",
		Errors:      []int{http.StatusForbidden, http.StatusConflict},
	}, func(ctx context.Context, input *programQuery) (*out[ListResponse[domain.Quest]], error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		quests, err := e.ResolveForParticipant(ctx, actor, input.ProgramID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(list(quests)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-quests",
		Method:      http.MethodPost,
		Path:        "/me/quests/assign",
		Summary:     "Start every resolved quest not yet started",
		Errors:      []int{http.StatusForbidden, http.StatusConflict},
	}, func(ctx context.Context, input *programQuery) (*out[engine.AssignResult], error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.AssignResolved(ctx, actor, input.ProgramID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(res), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "my-submissions",
		Method:      http.MethodGet,
		Path:        "/me/submissions",
		Summary:     "Caller's individual quest submissions",
	}, func(ctx context.Context, _ *struct{}) (*out[ListResponse[domain.IndividualSubmission]], error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListIndividualSubmissions(ctx, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(list(items)), nil
	})
}

func registerPrograms(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-program",
		Method:        http.MethodPost,
		Path:          "/programs",
		Summary:       "Create program (admin)",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateProgramRequest
	}) (*out[domain.Program], error) {
		admin, authErr := adminFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.CreateProgram(ctx, admin, input.Body.ID, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(p), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-programs",
		Method:      http.MethodGet,
		Path:        "/programs",
		Summary:     "List programs",
	}, func(ctx context.Context, _ *struct{}) (*out[ListResponse[domain.Program]], error) {
		items, err := e.ListPrograms(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(list(items)), nil
	})

	for _, op := range []struct {
		id, verb string
		fn       func(context.Context, string, string) (domain.ProgramMember, error)
	}{
		{"enroll", "enroll", e.Enroll},
		{"withdraw", "withdraw", e.Withdraw},
	} {
		fn := op.fn
		huma.Register(api, huma.Operation{
			OperationID: op.id,
			Method:      http.MethodPost,
			Path:        "/programs/{program_id}/" + op.verb,
			Summary:     "Caller " + op.verb + "s in the program",
			Errors:      writeErrors,
		}, func(ctx context.Context, input *struct {
			ProgramID string `path:"program_id"`
		}) (*out[domain.ProgramMember], error) {
			actor, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			m, err := fn(ctx, input.ProgramID, actor)
			if err != nil {
				return nil, handleError(err)
			}
			return respond(m), nil
		})
	}
}

func registerAdmins(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-admins",
		Method:      http.MethodGet,
		Path:        "/admin/admins",
		Summary:     "List platform admins (admin)",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*out[ListResponse[string]], error) {
		admin, authErr := adminFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RequireAdmin(ctx, admin); err != nil {
			return nil, handleError(err)
		}
		ids, err := e.ListAdmins(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(list(ids)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "grant-admin",
		Method:        http.MethodPost,
		Path:          "/admin/admins",
		Summary:       "Grant platform admin; the first grant bootstraps an empty platform",
		DefaultStatus: http.StatusNoContent,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body GrantAdminRequest
	}) (*struct{}, error) {
		admin, authErr := adminFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.GrantAdmin(ctx, admin, input.Body.ActorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "revoke-admin",
		Method:        http.MethodDelete,
		Path:          "/admin/admins/{actor_id}",
		Summary:       "Revoke platform admin",
		DefaultStatus: http.StatusNoContent,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		ActorID string `path:"actor_id"`
	}) (*struct{}, error) {
		admin, authErr := adminFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RevokeAdmin(ctx, admin, input.ActorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Audit log, newest first",
		Description: "Platform admins read every event. Other callers must pass project_id for a project they belong to.",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID  string `query:"project_id"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
		ActorID    string `query:"actor_id"`
		Before     int64  `query:"before"`
		Limit      int    `query:"limit" minimum:"0" maximum:"500"`
	}) (*out[ListResponse[domain.Event]], error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ReadEvents(ctx, actor, repo.EventFilters{
			ProjectID:  input.ProjectID,
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			ActorID:    input.ActorID,
			Before:     input.Before,
			Limit:      input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(list(items)), nil
	})
}
