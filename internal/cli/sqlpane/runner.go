// Package sqlpane is the terminal client: one-shot queries, catalog listings
// and an interactive console, all driven through an execution cell.
package sqlpane

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/sqlpane/sqlpane/internal/config"
	"github.com/sqlpane/sqlpane/internal/conn/sqldb"
	"github.com/sqlpane/sqlpane/internal/execution"
	"github.com/sqlpane/sqlpane/internal/export"
	"github.com/sqlpane/sqlpane/internal/observability"
	"github.com/sqlpane/sqlpane/internal/query"
)

// errQueryFailed marks a query whose driver error was already printed.
var errQueryFailed = errors.New("query failed")

// OpenFunc connects to driver at dsn.
type OpenFunc func(ctx context.Context, driver, dsn string) (Backend, error)

type Options struct {
	Config config.Config
	Open   OpenFunc
	Stdout io.Writer
	Stderr io.Writer
	// Console replaces the liner prompt, mainly for tests.
	Console prompter
}

type globalFlags struct {
	driver       string
	dsn          string
	pollInterval time.Duration
}

// Run executes the command line args and returns the process exit code.
func Run(ctx context.Context, args []string, opts Options) int {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	root := NewRootCommand(opts)
	root.SetArgs(args)
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errQueryFailed) {
			_, _ = fmt.Fprintf(opts.Stderr, "error: %v\n", err)
		}
		return 1
	}
	return 0
}

func NewRootCommand(opts Options) *cobra.Command {
	cfg := opts.Config
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "sqlpane",
		Short:         "Run SQL against Postgres, DuckDB or SQLite and page through the results",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.driver, "driver", cfg.DB.Driver, "database driver (postgres, duckdb, sqlite)")
	root.PersistentFlags().StringVar(&flags.dsn, "dsn", defaultDSN(cfg), "connection string")
	root.PersistentFlags().DurationVar(&flags.pollInterval, "poll-interval", cfg.CLI.PollInterval, "how often to check a running query")

	root.AddCommand(
		newQueryCommand(opts, flags),
		newShellCommand(opts, flags),
		newCatalogCommand(opts, flags, "databases", "List databases on the server"),
		newCatalogCommand(opts, flags, "tables", "List tables in the connected database"),
	)
	return root
}

func newQueryCommand(opts Options, flags *globalFlags) *cobra.Command {
	var (
		page       int
		exportPath string
		format     string
	)
	cmd := &cobra.Command{
		Use:   "query SQL",
		Short: "Run one statement and print a page of its result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openSession(cmd.Context(), opts, flags, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()

			outcome, err := session.Execute(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if outcome.Status() == execution.StatusError {
				_ = session.PrintCurrent()
				return errQueryFailed
			}
			if page != 1 {
				if _, err := session.Page(page - 1); err != nil {
					return err
				}
			}
			if err := session.PrintCurrent(); err != nil {
				return err
			}
			if exportPath == "" {
				return nil
			}
			parsed, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			target, err := session.Export(exportPath, parsed)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "exported %d rows to %s\n", outcome.RowCount(), target)
			return err
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page to print, starting at 1")
	cmd.Flags().StringVar(&exportPath, "export", "", "write the full result to this file")
	cmd.Flags().StringVar(&format, "format", string(export.FormatCSV), "export format (csv, parquet)")
	return cmd
}

func newShellCommand(opts Options, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := openSession(cmd.Context(), opts, flags, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()

			input := opts.Console
			if input == nil {
				line := newLinerPrompter()
				defer func() { _ = line.Close() }()
				input = line
			}
			return runShell(cmd.Context(), session, input, cmd.OutOrStdout())
		},
	}
}

func newCatalogCommand(opts Options, flags *globalFlags, name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			backend, err := openBackend(cmd.Context(), opts, flags)
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close() }()

			list := backend.ListTables
			if name == "databases" {
				list = backend.ListDatabases
			}
			names, err := list(cmd.Context())
			if err != nil {
				return err
			}
			return printNames(cmd.OutOrStdout(), names)
		},
	}
}

func openSession(ctx context.Context, opts Options, flags *globalFlags, out io.Writer) (*Session, error) {
	backend, err := openBackend(ctx, opts, flags)
	if err != nil {
		return nil, err
	}
	session, err := NewSession(backend, flags.pollInterval, out, logger(opts))
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	session.exportDir = opts.Config.Export.Dir
	return session, nil
}

func openBackend(ctx context.Context, opts Options, flags *globalFlags) (Backend, error) {
	open := opts.Open
	if open == nil {
		open = SQLOpener(opts.Config, logger(opts))
	}
	return open(ctx, flags.driver, flags.dsn)
}

func logger(opts Options) *slog.Logger {
	return observability.NewLogger(opts.Config, opts.Stderr)
}

func defaultDSN(cfg config.Config) string {
	driver, err := sqldb.ParseDriver(cfg.DB.Driver)
	if err != nil {
		return cfg.DB.DSN
	}
	return sqldb.ResolveDSN(driver, cfg.DB.DSN, sqldb.Server{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		Database: cfg.DB.Name,
	})
}

// SQLOpener opens real connections through database/sql.
func SQLOpener(cfg config.Config, logger *slog.Logger) OpenFunc {
	return func(ctx context.Context, driver, dsn string) (Backend, error) {
		parsed, err := sqldb.ParseDriver(driver)
		if err != nil {
			return nil, err
		}
		connection, err := sqldb.Open(ctx, sqldb.Config{
			Driver:          parsed,
			DSN:             dsn,
			MaxOpenConns:    cfg.DB.MaxOpenConns,
			MaxIdleConns:    cfg.DB.MaxIdleConns,
			ConnMaxIdleTime: cfg.DB.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		return sqlBackend{Executor: query.NewExecutor(connection, logger), conn: connection}, nil
	}
}

type sqlBackend struct {
	*query.Executor
	conn *sqldb.Conn
}

func (b sqlBackend) ListDatabases(ctx context.Context) ([]string, error) {
	return b.conn.ListDatabases(ctx)
}

func (b sqlBackend) ListTables(ctx context.Context) ([]string, error) {
	return b.conn.ListTables(ctx)
}

func (b sqlBackend) Close() error {
	return b.conn.Close()
}
