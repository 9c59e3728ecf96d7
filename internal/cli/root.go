package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"task-manager/internal/config"
	"task-manager/internal/repository"
	"task-manager/internal/service"
)

// rootOptions holds the global flags shared by every subcommand.
type rootOptions struct {
	configPath string
	dbPath     string
	driver     string
}

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "task-manager",
		Short: "Personal task manager",
		Long: `task-manager keeps tasks and categories in a local SQLite file.

Use the subcommands to manage them from the terminal, or run "serve" to
drive the same store from a private Telegram chat.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database path (overrides DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&opts.driver, "driver", "", "SQLite driver: sqlite3 (cgo) or sqlite (pure Go)")

	rootCmd.AddCommand(newTaskCmd(opts))
	rootCmd.AddCommand(newCategoryCmd(opts))
	rootCmd.AddCommand(newStatsCmd(opts))
	rootCmd.AddCommand(newSummaryCmd(opts))
	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newVersionCmd(version))

	return rootCmd
}

// Execute runs the root command
func Execute(version string) error {
	if err := NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "task-manager %s\n", version)
		},
	}
}

func (o *rootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, err
	}
	if o.dbPath != "" {
		cfg.DatabaseURL = o.dbPath
	}
	if o.driver != "" {
		cfg.DatabaseDriver = o.driver
	}
	return cfg, nil
}

// openStore opens the database and loads the task store from it. The
// returned func closes the database.
func openStore(ctx context.Context, cfg config.Config, opts ...service.Option) (*service.TaskStore, func(), error) {
	db, err := repository.NewDB(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("db: %w", err)
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}

	kv := repository.NewKVRepository(db)
	store, err := service.NewTaskStore(ctx,
		repository.NewTaskRepository(kv),
		repository.NewCategoryRepository(kv),
		opts...,
	)
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	return store, closeDB, nil
}

// withStore runs fn against a store whose success messages go to the
// command's output.
func (o *rootOptions) withStore(cmd *cobra.Command, fn func(store *service.TaskStore, out io.Writer) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	store, closeDB, err := openStore(cmd.Context(), cfg, service.WithNotifier(writerNotifier(out)))
	if err != nil {
		return err
	}
	defer closeDB()
	return fn(store, out)
}

func writerNotifier(w io.Writer) service.Notifier {
	return service.NotifierFunc(func(_ context.Context, message string) {
		fmt.Fprintln(w, successStyle.Render("✓ "+message))
	})
}
