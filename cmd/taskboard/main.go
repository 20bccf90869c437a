package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskboard/internal/app"
	"taskboard/internal/config"
	"taskboard/internal/db"
	"taskboard/internal/domain"
	"taskboard/internal/engine"
	"taskboard/internal/engine/auth"
	"taskboard/internal/migrate"
	"taskboard/internal/server"
	"taskboard/internal/view"
)

var rootCmd = &cobra.Command{
	Use:   "taskboard",
	Short: "Taskboard CLI",
	Long: `Taskboard keeps a personal task list per user.
- Workspace: the directory holding .taskboard/taskboard.db and taskboard.yml.
- Users: register with 'taskboard user register'; every task belongs to exactly one user.
- Tasks: a title, a priority (low, medium, high), an optional due date and estimate;
  statuses are in-progress and completed, flipped with 'taskboard task toggle'.
- Dashboard: 'taskboard task stats', 'upcoming', 'recent' and 'high'.
- Server: 'taskboard serve' exposes the same operations over HTTP (OpenAPI at /openapi.json).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TASKBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().StringP("user", "u", "", "email of the user to act as")
	rootCmd.PersistentFlags().String("config", "", "config file (default <workspace>/taskboard.yml)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage taskboard.yml",
		Long:  "Config holds the listen address, token signing secret and lifetime, bcrypt cost and log settings. Environment variables prefixed TASKBOARD_ override it.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config with a fresh signing secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			secret, err := randomSecret()
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(secret)), 0o600); err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"path": path})
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			shown := *cfg
			shown.Auth.JWTSecret = "********"
			return printJSON(shown)
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := loadConfig()
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.MigrateContext(cmd.Context(), conn); err != nil {
				return err
			}
			v, err := migrate.Version(cmd.Context(), conn)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"version": v})
			}
			fmt.Printf("Database at version %d\n", v)
			return nil
		},
	}
}

func userCmd() *cobra.Command {
	usr := &cobra.Command{Use: "user", Short: "Manage users"}
	usr.AddCommand(userRegisterCmd())
	usr.AddCommand(userTokenCmd())
	return usr
}

func userRegisterCmd() *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("TASKBOARD_PASSWORD")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				u, err := a.Auth.Register(ctx, auth.RegisterInput{Name: name, Email: email, Password: password})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"id": u.ID, "name": u.Name, "email": u.Email})
				}
				fmt.Printf("Registered %s <%s> (%s)\n", u.Name, u.Email, u.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password (or TASKBOARD_PASSWORD)")
	return cmd
}

func userTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for --user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				u, err := a.Auth.UserByEmail(ctx, viper.GetString("user"))
				if err != nil {
					return fmt.Errorf("lookup user: %w", err)
				}
				s, err := a.Auth.IssueSession(u)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"token": s.Token, "expires_at": s.ExpiresAt})
				}
				fmt.Println(s.Token)
				return nil
			})
		},
	}
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage your tasks",
		Long:  "Tasks are scoped to --user: other users' tasks are invisible and behave as if they did not exist.",
	}
	task.AddCommand(taskListCmd())
	task.AddCommand(taskShowCmd())
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(taskToggleCmd())
	task.AddCommand(taskDeleteCmd())
	task.AddCommand(taskStatsCmd())
	task.AddCommand(taskShortListCmd("upcoming", "In-progress tasks due within the next seven days", engine.Engine.UpcomingTasks))
	task.AddCommand(taskShortListCmd("recent", "Most recently updated tasks", engine.Engine.RecentTasks))
	task.AddCommand(taskShortListCmd("high", "In-progress high priority tasks", engine.Engine.HighPriorityTasks))
	return task
}

func taskListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, newest change first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.ListTasks(ctx, status)
				if err != nil {
					return err
				}
				return printTasks(items)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "all", "all, in-progress or completed")
	return cmd
}

func taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, a *app.App) error {
				t, found, err := a.Engine.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				if !found {
					return errTaskNotFound(args[0])
				}
				return printTask(t)
			})
		},
	}
}

type taskFlags struct {
	title, description, priority, status, due string
	hours                                      float64
	clearDue, clearHours                       bool
}

func (f *taskFlags) bind(cmd *cobra.Command, withStatus bool) {
	cmd.Flags().StringVar(&f.title, "title", "", "task title")
	cmd.Flags().StringVar(&f.description, "description", "", "task description")
	cmd.Flags().StringVar(&f.priority, "priority", "", "low, medium or high")
	cmd.Flags().StringVar(&f.due, "due", "", "due date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().Float64Var(&f.hours, "hours", 0, "estimated hours")
	if withStatus {
		cmd.Flags().StringVar(&f.status, "status", "", "in-progress or completed")
		cmd.Flags().BoolVar(&f.clearDue, "clear-due", false, "remove the due date")
		cmd.Flags().BoolVar(&f.clearHours, "clear-hours", false, "remove the estimate")
	}
}

// input maps the flags set on cmd to a task input; unset flags stay absent.
func (f *taskFlags) input(cmd *cobra.Command) engine.TaskInput {
	changed := cmd.Flags().Changed
	var in engine.TaskInput
	if changed("title") {
		in.Title = &f.title
	}
	if changed("description") {
		in.Description = &f.description
	}
	if changed("priority") {
		in.Priority = &f.priority
	}
	if changed("status") {
		in.Status = &f.status
	}
	switch {
	case f.clearDue:
		in.DueDate = engine.Null[string]()
	case changed("due"):
		in.DueDate = engine.Some(f.due)
	}
	switch {
	case f.clearHours:
		in.EstimatedHours = engine.Null[float64]()
	case changed("hours"):
		in.EstimatedHours = engine.Some(f.hours)
	}
	return in
}

func taskCreateCmd() *cobra.Command {
	var f taskFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task; it starts in-progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, a *app.App) error {
				t, err := a.Engine.CreateTask(ctx, f.input(cmd))
				if err != nil {
					return err
				}
				return printTask(t)
			})
		},
	}
	f.bind(cmd, false)
	return cmd
}

func taskUpdateCmd() *cobra.Command {
	var f taskFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update the given fields of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, a *app.App) error {
				t, found, err := a.Engine.UpdateTask(ctx, args[0], f.input(cmd))
				if err != nil {
					return err
				}
				if !found {
					return errTaskNotFound(args[0])
				}
				return printTask(t)
			})
		},
	}
	f.bind(cmd, true)
	return cmd
}

func taskToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Flip a task between in-progress and completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, a *app.App) error {
				t, found, err := a.Engine.ToggleStatus(ctx, args[0])
				if err != nil {
					return err
				}
				if !found {
					return errTaskNotFound(args[0])
				}
				return printTask(t)
			})
		},
	}
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, a *app.App) error {
				deleted, err := a.Engine.DeleteTask(ctx, args[0])
				if err != nil {
					return err
				}
				if !deleted {
					return errTaskNotFound(args[0])
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"deleted": true})
				}
				fmt.Printf("Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func taskStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show task statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, a *app.App) error {
				s, err := a.Engine.Statistics(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(s)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Total", "Completed", "In progress", "Overdue", "High priority", "Done %"})
				tw.AppendRow(table.Row{s.Total, s.Completed, s.InProgress, s.Overdue, s.HighPriority, s.CompletionPercentage})
				tw.Render()
				return nil
			})
		},
	}
}

func taskShortListCmd(use, short string, list func(engine.Engine, context.Context, int) ([]view.Task, error)) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := list(a.Engine, ctx, limit)
				if err != nil {
					return err
				}
				return printTasks(items)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 3, "number of tasks")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "Every task change and registration is recorded; 'tail' shows the latest entries for --user.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.Activity(ctx, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				printEvents(items)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if cmd.Flags().Changed("addr") {
					a.Config.Server.Addr = addr
				}
				if cmd.Flags().Changed("base-path") {
					a.Config.Server.BasePath = basePath
				}
				handler, err := server.New(server.Config{
					Engine:   a.Engine,
					BasePath: a.Config.Server.BasePath,
					Auth: server.AuthConfig{
						Service:    a.Auth,
						CookieName: a.Config.Auth.CookieName,
						Logger:     a.Logger,
					},
					Logger: a.Logger,
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: a.Config.Server.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				a.Logger.Info("serving taskboard api", "addr", a.Config.Server.Addr, "base_path", a.Config.Server.BasePath)
				fmt.Printf("Serving Taskboard API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", a.Config.Server.Addr, a.Config.Server.BasePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}

// --- helpers ---

func configPath() string {
	if p := viper.GetString("config"); p != "" {
		return p
	}
	return config.Path(viper.GetString("workspace"))
}

// loadConfig reads the config file, when present, and applies TASKBOARD_*
// environment overrides on top of it.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if p := viper.GetString("config"); p != "" {
		cfg, err = config.FromFile(p)
	} else {
		cfg, err = config.LoadOptional(viper.GetString("workspace"))
	}
	if err != nil {
		return nil, err
	}
	if v := viper.GetString("jwt_secret"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := viper.GetDuration("token_ttl"); v > 0 {
		cfg.Auth.TokenTTL = v
	}
	if v := viper.GetInt("bcrypt_cost"); v > 0 {
		cfg.Auth.BcryptCost = v
	}
	if v := viper.GetString("addr"); v != "" {
		cfg.Server.Addr = v
	}
	if v := viper.GetString("log_level"); v != "" {
		cfg.Log.Level = v
	}
	if v := viper.GetString("log_format"); v != "" {
		cfg.Log.Format = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.Open(ctx, viper.GetString("workspace"), cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// withUser runs fn as the user named by --user.
func withUser(ctx context.Context, fn func(context.Context, *app.App) error) error {
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		userCtx, err := a.AsUser(ctx, viper.GetString("user"))
		if err != nil {
			return err
		}
		return fn(userCtx, a)
	})
}

func errTaskNotFound(id string) error {
	return fmt.Errorf("task %s not found", id)
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func printTasks(items []view.Task) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Title", "Status", "Priority", "Due", "Hours"})
	for _, t := range items {
		tw.AppendRow(table.Row{t.ID, t.Title, t.Status, t.Priority, dueLabel(t.DueDate), hoursLabel(t.EstimatedHours)})
	}
	tw.Render()
	return nil
}

func printTask(t view.Task) error {
	if viper.GetBool("json") {
		return printJSON(t)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendRows([]table.Row{
		{"ID", t.ID},
		{"Title", t.Title},
		{"Description", t.Description},
		{"Status", t.Status},
		{"Priority", t.Priority},
		{"Due", dueLabel(t.DueDate)},
		{"Estimated hours", hoursLabel(t.EstimatedHours)},
		{"Created", t.CreatedAt},
		{"Updated", t.UpdatedAt},
	})
	tw.Render()
	return nil
}

func printEvents(items []domain.Event) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Time", "Type", "Entity", "Payload"})
	for _, e := range items {
		tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.EntityKind + "/" + e.EntityID, e.Payload})
	}
	tw.Render()
}

func dueLabel(due *string) string {
	if due == nil {
		return "-"
	}
	return *due
}

func hoursLabel(h *float64) string {
	if h == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *h)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
