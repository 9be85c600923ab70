package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"questforge/internal/app"
	"questforge/internal/config"
	"questforge/internal/db"
	"questforge/internal/engine"
	"questforge/internal/engine/auth"
	"questforge/internal/metrics"
	"questforge/internal/repo"
	"questforge/internal/server"
)

var logger = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:   "qf",
	Short: "QuestForge CLI",
	Long: `QuestForge runs the quest and progression engine of a hackathon community.
- Quests: catalog entries taken on by individuals, teams or both, optionally capped by max submissions.
- Individual quests complete on their own at 100% progress.
- Team quests are submitted at 100% and verified or rejected by a platform admin.
- Projects climb IDEA -> PROTOTYPE -> BUILD -> PROJECT -> INCUBATE -> ACCELERATE -> SCALE once
  enough verified quests and members are in place.
- Tracks: every participant picks LEARNING, FOUNDER, PROFESSIONAL or FREELANCER and may change it a
  limited number of times; the track decides which quests are recommended.
- Event log: every change is recorded, view with 'qf log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := app.NewLogger(viper.GetBool("verbose"))
		if err != nil {
			return err
		}
		logger = l
		_, err = db.EnsureWorkspace(viper.GetString("workspace"))
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if code := engine.CodeOf(err); code != "" {
			fmt.Fprintf(os.Stderr, "error [%s]: %v\n", code, err)
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("QUESTFORGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory")
	flags.String("config", "", "config file (default <workspace>/questforge.yml)")
	flags.Bool("json", false, "output JSON")
	flags.String("actor-id", "", "acting participant or admin id")
	flags.BoolP("verbose", "v", false, "debug logging")
	for _, name := range []string{"workspace", "config", "json", "actor-id", "verbose"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(questCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(submissionCmd())
	rootCmd.AddCommand(reviewCmd())
	rootCmd.AddCommand(stageCmd())
	rootCmd.AddCommand(trackCmd())
	rootCmd.AddCommand(programCmd())
	rootCmd.AddCommand(adminCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Workspace configuration"}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default questforge.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSON(e.Config)
			})
		},
	}
	cfg.AddCommand(initCmd, showCmd)
	return cfg
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "Every recorded change: quests, submissions, reviews, stage moves, track changes.",
	}
	var f repo.EventFilters
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show the newest events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListEvents(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "TS", "Type", "Entity", "Actor", "Payload")
				for _, ev := range items {
					tw.AppendRow(table.Row{ev.ID, ev.TS, ev.Type, ev.EntityKind + ":" + ev.EntityID, ev.ActorID, ev.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().IntVar(&f.Limit, "n", 20, "number of events")
	tail.Flags().StringVar(&f.ProjectID, "project", "", "project filter")
	tail.Flags().StringVar(&f.Type, "type", "", "event type filter")
	tail.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	tail.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	tail.Flags().StringVar(&f.ActorID, "actor", "", "actor filter")
	log.AddCommand(tail)
	return log
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var legacyHeader bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := viper.GetString("jwt-secret")
			if secret == "" {
				return fmt.Errorf("QUESTFORGE_JWT_SECRET is required for bearer auth")
			}
			m := metrics.New()
			a, err := openApp(cmd.Context(), m)
			if err != nil {
				return err
			}
			defer a.Close()
			handler, err := server.New(server.Config{
				Engine:   a.Engine,
				BasePath: basePath,
				Auth:     server.AuthConfig{JWTSecret: secret, AllowLegacyActorHeader: legacyHeader, Log: logger},
				Log:      logger,
				Metrics:  m,
			})
			if err != nil {
				return err
			}
			srv := server.NewServer(addr, handler, logger)

			g, gctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				logger.Info("starting http server", zap.String("addr", addr), zap.String("base_path", basePath))
				return srv.Run(gctx)
			})
			g.Go(func() error {
				<-gctx.Done()
				logger.Info("shutting down http server")
				return srv.Shutdown(context.Background())
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	cmd.Flags().BoolVar(&legacyHeader, "allow-actor-header", false, "accept unauthenticated X-Actor-Id (development only)")
	cmd.Flags().String("jwt-secret", "", "HS256 secret for bearer tokens")
	_ = viper.BindPFlag("jwt-secret", cmd.Flags().Lookup("jwt-secret"))
	return cmd
}

// --- helpers ---

func openApp(ctx context.Context, m *metrics.Metrics) (*app.App, error) {
	return app.Open(ctx, app.Options{
		Workspace:  viper.GetString("workspace"),
		ConfigPath: viper.GetString("config"),
		Log:        logger,
		Metrics:    m,
	})
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	a, err := openApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a.Engine)
}

func actorID() (string, error) {
	id := strings.TrimSpace(viper.GetString("actor-id"))
	if id == "" {
		return "", fmt.Errorf("--actor-id (or QUESTFORGE_ACTOR_ID) is required")
	}
	return id, nil
}

func adminContext() (auth.AdminContext, error) {
	id, err := actorID()
	if err != nil {
		return auth.AdminContext{}, err
	}
	return auth.Admin(id), nil
}

func newTable(headers ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row(headers))
	tw.SetStyle(table.StyleLight)
	return tw
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	return renderKV(os.Stdout, v)
}

// renderKV prints v's JSON fields as a two-column table, keys sorted. Nested values are shown as
// compact JSON; anything that is not a JSON object falls back to indented JSON.
func renderKV(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := newTable("Field", "Value")
	tw.SetOutputMirror(w)
	for _, k := range keys {
		tw.AppendRow(table.Row{k, kvCell(fields[k])})
	}
	tw.Render()
	return nil
}

func kvCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}

func deref[T any](p *T) any {
	if p == nil {
		return "-"
	}
	return *p
}
