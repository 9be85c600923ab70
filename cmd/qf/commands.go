package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"questforge/internal/domain"
	"questforge/internal/engine"
	"questforge/internal/engine/auth"
	"questforge/internal/repo"
	"questforge/internal/server"
)

func printQuests(items []domain.Quest) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable("ID", "Title", "Type", "Category", "Max", "Reward", "Program")
	for _, q := range items {
		tw.AppendRow(table.Row{q.ID, q.Title, q.QuestType, q.Category, deref(q.MaxSubmissions), q.RewardPoints, deref(q.ProgramID)})
	}
	tw.Render()
	return nil
}

func printTeamSubmissions(items []domain.TeamSubmission) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable("ID", "Project", "Quest", "State", "Progress", "Submitted By", "Verified By")
	for _, s := range items {
		tw.AppendRow(table.Row{s.ID, s.ProjectID, s.QuestID, s.State, s.Progress, deref(s.SubmittedBy), deref(s.VerifiedBy)})
	}
	tw.Render()
	return nil
}

func questCmd() *cobra.Command {
	q := &cobra.Command{Use: "quest", Short: "Quest catalog and individual progress"}

	var opts engine.CreateQuestOptions
	var questType string
	var maxSubs int
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a quest (platform admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := adminContext()
			if err != nil {
				return err
			}
			opts.QuestType = domain.QuestType(questType)
			if cmd.Flags().Changed("max-submissions") {
				opts.MaxSubmissions = &maxSubs
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				created, err := e.CreateQuest(ctx, admin, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(created)
			})
		},
	}
	create.Flags().StringVar(&opts.ID, "id", "", "quest id (generated when empty)")
	create.Flags().StringVar(&opts.Title, "title", "", "title")
	create.Flags().StringVar(&opts.Category, "category", "", "category keyword used for track matching")
	create.Flags().StringVar(&opts.Difficulty, "difficulty", "", "difficulty label")
	create.Flags().StringVar(&questType, "type", "BOTH", "INDIVIDUAL, TEAM or BOTH")
	create.Flags().IntVar(&maxSubs, "max-submissions", 0, "cap on individual plus team submissions")
	create.Flags().IntVar(&opts.RewardPoints, "reward", 0, "reward points")
	create.Flags().StringVar(&opts.AvailableFrom, "available-from", "", "RFC3339 opening time")
	create.Flags().StringVar(&opts.EndAt, "end-at", "", "RFC3339 closing time")
	create.Flags().StringVar(&opts.DueDate, "due", "", "RFC3339 due date")
	create.Flags().StringVar(&opts.ProgramID, "program", "", "program scope")
	_ = create.MarkFlagRequired("title")

	var f repo.QuestFilters
	var program string
	list := &cobra.Command{
		Use:   "list",
		Short: "List quests",
		RunE: func(cmd *cobra.Command, args []string) error {
			if program != "" {
				f.ProgramID = &program
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListQuests(ctx, f)
				if err != nil {
					return err
				}
				return printQuests(items)
			})
		},
	}
	list.Flags().StringVar(&program, "program", "", "only quests of this program")
	list.Flags().BoolVar(&f.AnyProgram, "all", true, "include quests of every program")
	list.Flags().StringVar(&f.Category, "category", "", "category filter")

	show := &cobra.Command{
		Use:   "show <quest-id>",
		Short: "Show a quest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				item, err := e.GetQuest(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(item)
			})
		},
	}

	apply := &cobra.Command{
		Use:   "apply <quest-id>",
		Short: "Start a quest as an individual",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				sub, err := e.ApplyIndividual(ctx, actor, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(sub)
			})
		},
	}

	var upd engine.ProgressUpdate
	progress := &cobra.Command{
		Use:   "progress <quest-id>",
		Short: "Report individual progress; 100 completes the quest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				sub, err := e.UpdateIndividualProgress(ctx, actor, args[0], upd)
				if err != nil {
					return err
				}
				return printJSONOrTable(sub)
			})
		},
	}
	progress.Flags().IntVar(&upd.Progress, "progress", 0, "percent complete, 0-100")
	progress.Flags().StringVar(&upd.Text, "text", "", "description of the work")
	progress.Flags().StringSliceVar(&upd.URLs, "url", nil, "proof URL (repeatable)")

	mine := &cobra.Command{
		Use:   "mine",
		Short: "List the actor's individual submissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListIndividualSubmissions(ctx, actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Quest", "State", "Progress", "Completed")
				for _, s := range items {
					tw.AppendRow(table.Row{s.ID, s.QuestID, s.State, s.Progress, deref(s.CompletedAt)})
				}
				tw.Render()
				return nil
			})
		},
	}

	q.AddCommand(create, list, show, apply, progress, mine)
	return q
}

func projectCmd() *cobra.Command {
	p := &cobra.Command{Use: "project", Short: "Projects and their members"}

	var name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a project; the actor becomes its admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				created, err := e.CreateProject(ctx, actor, name)
				if err != nil {
					return err
				}
				return printJSONOrTable(created)
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "project name")
	_ = create.MarkFlagRequired("name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListProjects(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Name", "Stage", "Created By")
				for _, it := range items {
					tw.AppendRow(table.Row{it.ID, it.Name, it.Stage, it.CreatedBy})
				}
				tw.Render()
				return nil
			})
		},
	}

	show := &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				item, err := e.GetProject(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(item)
			})
		},
	}

	members := &cobra.Command{
		Use:   "members <project-id>",
		Short: "List project members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListMembers(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("Participant", "Role", "Joined")
				for _, m := range items {
					tw.AppendRow(table.Row{m.ParticipantID, m.Role, m.JoinedAt})
				}
				tw.Render()
				return nil
			})
		},
	}

	var role string
	add := &cobra.Command{
		Use:   "add-member <project-id> <participant-id>",
		Short: "Add a member (project admin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.AddMember(ctx, actor, args[0], args[1], domain.MemberRole(strings.ToUpper(role)))
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	add.Flags().StringVar(&role, "role", string(domain.RoleMember), "ADMIN or MEMBER")

	remove := &cobra.Command{
		Use:   "remove-member <project-id> <participant-id>",
		Short: "Remove a member (project admin, or the member themself)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.RemoveMember(ctx, actor, args[0], args[1])
			})
		},
	}

	p.AddCommand(create, list, show, members, add, remove)
	return p
}

func submissionCmd() *cobra.Command {
	s := &cobra.Command{Use: "submission", Short: "Team quest work: apply, progress, submit"}

	apply := &cobra.Command{
		Use:   "apply <project-id> <quest-id>",
		Short: "Start a quest for a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				sub, err := e.ApplyTeam(ctx, actor, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSONOrTable(sub)
			})
		},
	}

	var upd engine.ProgressUpdate
	progress := &cobra.Command{
		Use:   "progress <project-id> <quest-id>",
		Short: "Report team progress",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				sub, err := e.UpdateTeamProgress(ctx, actor, args[0], args[1], upd)
				if err != nil {
					return err
				}
				return printJSONOrTable(sub)
			})
		},
	}
	progress.Flags().IntVar(&upd.Progress, "progress", 0, "percent complete, 0-100")
	progress.Flags().StringVar(&upd.Text, "text", "", "notes on the work")
	progress.Flags().StringSliceVar(&upd.URLs, "url", nil, "link to the work (repeatable)")

	var in engine.TeamSubmitInput
	submit := &cobra.Command{
		Use:   "submit <project-id> <quest-id>",
		Short: "Submit finished team work for verification",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				sub, err := e.SubmitTeam(ctx, actor, args[0], args[1], in)
				if err != nil {
					return err
				}
				return printJSONOrTable(sub)
			})
		},
	}
	submit.Flags().StringVar(&in.Link, "link", "", "link to the deliverable")
	submit.Flags().StringVar(&in.Text, "text", "", "summary of the deliverable")

	list := &cobra.Command{
		Use:   "list <project-id>",
		Short: "List a project's quest submissions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListTeamSubmissions(ctx, actor, args[0])
				if err != nil {
					return err
				}
				return printTeamSubmissions(items)
			})
		},
	}

	s.AddCommand(apply, progress, submit, list)
	return s
}

func reviewCmd() *cobra.Command {
	r := &cobra.Command{Use: "review", Short: "Verification queue (platform admin)"}

	var status string
	var limit int
	queue := &cobra.Command{
		Use:   "queue",
		Short: "List team submissions in a state",
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := adminContext()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListByStatus(ctx, admin, domain.TeamState(strings.ToUpper(status)), limit)
				if err != nil {
					return err
				}
				return printTeamSubmissions(items)
			})
		},
	}
	queue.Flags().StringVar(&status, "status", string(domain.TeamSubmitted), "submission state")
	queue.Flags().IntVar(&limit, "limit", 50, "max rows")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Counts of team submissions by state",
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := adminContext()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				st, err := e.VerificationStats(ctx, admin)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(st)
				}
				tw := newTable("Total", "Pending", "Verified", "Rejected", "In Progress", "Not Started")
				tw.AppendRow(table.Row{st.Total, st.Pending, st.Verified, st.Rejected, st.InProgress, st.NotStarted})
				tw.Render()
				return nil
			})
		},
	}

	var vin engine.VerifyInput
	verify := &cobra.Command{
		Use:   "verify <submission-id>",
		Short: "Verify a submitted team quest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := adminContext()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				sub, err := e.Verify(ctx, admin, args[0], vin)
				if err != nil {
					return err
				}
				return printJSONOrTable(sub)
			})
		},
	}
	verify.Flags().StringVar(&vin.Notes, "notes", "", "reviewer notes")
	verify.Flags().StringVar(&vin.PaymentRef, "payment-ref", "", "bounty payment reference")

	var notes string
	reject := &cobra.Command{
		Use:   "reject <submission-id>",
		Short: "Reject a submitted team quest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := adminContext()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				sub, err := e.Reject(ctx, admin, args[0], notes)
				if err != nil {
					return err
				}
				return printJSONOrTable(sub)
			})
		},
	}
	reject.Flags().StringVar(&notes, "notes", "", "what the team must change")

	var reason string
	failCmd := &cobra.Command{
		Use:   "fail <participant-id> <quest-id>",
		Short: "Mark an individual quest failed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := adminContext()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				sub, err := e.FailIndividual(ctx, admin, args[0], args[1], reason)
				if err != nil {
					return err
				}
				return printJSONOrTable(sub)
			})
		},
	}
	failCmd.Flags().StringVar(&reason, "reason", "", "reason recorded in the event log")

	r.AddCommand(queue, stats, verify, reject, failCmd)
	return r
}

func stageCmd() *cobra.Command {
	s := &cobra.Command{Use: "stage", Short: "Project stage progression"}

	check := &cobra.Command{
		Use:   "check <project-id>",
		Short: "Show what the project needs for its next stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.CheckAdvancement(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(c)
				}
				tw := newTable("Project", "Stage", "Next", "Can Advance", "Quests", "Members", "Missing")
				next := string(c.NextStage)
				if next == "" {
					next = "-"
				}
				missing := strings.Join(c.MissingRequirements, "; ")
				if c.Reason != "" {
					missing = c.Reason
				}
				tw.AppendRow(table.Row{c.ProjectID, c.CurrentStage, next, c.CanAdvance, c.QuestsCompleted, c.TeamMemberCount, missing})
				tw.Render()
				return nil
			})
		},
	}

	var override bool
	advance := &cobra.Command{
		Use:   "advance <project-id>",
		Short: "Move the project one stage forward",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			opts := engine.AdvanceOptions{ActorID: actor, ManualOverride: override}
			if override {
				admin := auth.Admin(actor)
				opts.Admin = &admin
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.Advance(ctx, args[0], opts)
				if err != nil {
					return err
				}
				fmt.Printf("%s is now at %s\n", p.ID, p.Stage)
				return nil
			})
		},
	}
	advance.Flags().BoolVar(&override, "override", false, "skip requirement checks (platform admin)")

	progress := &cobra.Command{
		Use:   "progress <project-id>",
		Short: "Percent of the next stage's quest requirement met",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				pct, err := e.ProgressToNextStage(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("%d%%\n", pct)
				return nil
			})
		},
	}

	s.AddCommand(check, advance, progress)
	return s
}

func trackCmd() *cobra.Command {
	t := &cobra.Command{Use: "track", Short: "Participant tracks and quest recommendations"}

	onboard := &cobra.Command{
		Use:   "onboard <track>",
		Short: "Pick the actor's first track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.Onboard(ctx, actor, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the actor's track settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.GetSettings(ctx, actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}

	eligibility := &cobra.Command{
		Use:   "eligibility",
		Short: "Show remaining track changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				el, err := e.CheckEligibility(ctx, actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(el)
			})
		},
	}

	change := &cobra.Command{
		Use:   "change <track>",
		Short: "Switch to another track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.ChangeTrack(ctx, actor, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("track is now %s, %d change(s) left\n", *res.Settings.Track, res.RemainingChanges)
				return nil
			})
		},
	}

	var program string
	resolve := &cobra.Command{
		Use:   "quests",
		Short: "Quests recommended for the actor's track",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ResolveForParticipant(ctx, actor, program)
				if err != nil {
					return err
				}
				return printQuests(items)
			})
		},
	}
	resolve.Flags().StringVar(&program, "program", "", "resolve within a program")

	assign := &cobra.Command{
		Use:   "assign",
		Short: "Start every recommended quest not yet started",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.AssignResolved(ctx, actor, program)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				tw := newTable("Quest", "Result")
				for _, s := range res.Assigned {
					tw.AppendRow(table.Row{s.QuestID, "assigned"})
				}
				for _, s := range res.Skipped {
					tw.AppendRow(table.Row{s.QuestID, s.Code + ": " + s.Reason})
				}
				tw.Render()
				return nil
			})
		},
	}
	assign.Flags().StringVar(&program, "program", "", "assign within a program")

	t.AddCommand(onboard, show, eligibility, change, resolve, assign)
	return t
}

func programCmd() *cobra.Command {
	p := &cobra.Command{Use: "program", Short: "Programs scope quests to cohorts"}

	var id, name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a program (platform admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := adminContext()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				prog, err := e.CreateProgram(ctx, admin, id, name)
				if err != nil {
					return err
				}
				return printJSONOrTable(prog)
			})
		},
	}
	create.Flags().StringVar(&id, "id", "", "program id (generated when empty)")
	create.Flags().StringVar(&name, "name", "", "program name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List programs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListPrograms(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}

	enrollment := func(use, short string, fn func(engine.Engine) func(context.Context, string, string) (domain.ProgramMember, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <program-id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				actor, err := actorID()
				if err != nil {
					return err
				}
				return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
					m, err := fn(e)(ctx, args[0], actor)
					if err != nil {
						return err
					}
					return printJSONOrTable(m)
				})
			},
		}
	}
	enroll := enrollment("enroll", "Join a program", func(e engine.Engine) func(context.Context, string, string) (domain.ProgramMember, error) {
		return e.Enroll
	})
	withdraw := enrollment("withdraw", "Leave a program", func(e engine.Engine) func(context.Context, string, string) (domain.ProgramMember, error) {
		return e.Withdraw
	})

	p.AddCommand(create, list, enroll, withdraw)
	return p
}

func adminCmd() *cobra.Command {
	a := &cobra.Command{Use: "admin", Short: "Platform admins and API tokens"}

	grant := &cobra.Command{
		Use:   "grant <actor-id>",
		Short: "Grant platform admin; the first grant needs no existing admin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			granter := auth.Admin(viper.GetString("actor-id"))
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.GrantAdmin(ctx, granter, args[0])
			})
		},
	}

	revoke := &cobra.Command{
		Use:   "revoke <actor-id>",
		Short: "Revoke platform admin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := adminContext()
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.RevokeAdmin(ctx, admin, args[0])
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List platform admins",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ids, err := e.ListAdmins(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(ids)
			})
		},
	}

	token := &cobra.Command{
		Use:   "token <actor-id>",
		Short: "Sign a bearer token for the API with QUESTFORGE_JWT_SECRET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := viper.GetString("jwt-secret")
			if secret == "" {
				return fmt.Errorf("QUESTFORGE_JWT_SECRET is required")
			}
			tok, err := server.IssueToken(secret, args[0])
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}

	a.AddCommand(grant, revoke, list, token)
	return a
}
