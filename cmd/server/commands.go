package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/phrazzld/connkeeper/internal/config"
	"github.com/phrazzld/connkeeper/internal/dbpool"
	"github.com/phrazzld/connkeeper/internal/platform/logger"
	"github.com/phrazzld/connkeeper/internal/store"
)

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "connkeeper",
		Short:        "Managed relational database connection pool",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"path to a YAML config file (defaults to ./config.yaml when present)")

	cmd.AddCommand(
		newServeCmd(opts),
		newPingCmd(opts),
		newQueryCmd(opts),
	)
	return cmd
}

// newApp loads configuration and builds the application, logging to w.
// A nil w logs to stdout.
func (o *rootOptions) newApp(w io.Writer) (*application, error) {
	cfg, err := config.LoadFile(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	var log *slog.Logger
	if w == nil {
		log, err = logger.Setup(cfg.Log)
		if err != nil {
			return nil, fmt.Errorf("failed to set up logger: %w", err)
		}
	} else {
		log = logger.NewWithWriter(cfg.Log, w)
		slog.SetDefault(log)
	}

	return newApplication(cfg, log)
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve health, readiness, stats and metrics endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.newApp(nil)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.Run(ctx)
		},
	}
}

func newPingCmd(opts *rootOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Open the pool and verify the database answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.newApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.manager.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			start := time.Now()
			pool, err := app.manager.Acquire(ctx)
			if err != nil {
				return err
			}
			if pinger, ok := pool.(dbpool.Pinger); ok {
				if err := pinger.Ping(ctx); err != nil {
					return fmt.Errorf("ping failed: %w", err)
				}
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "ok (%s)\n", time.Since(start).Round(time.Millisecond))
			return err
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "give up after this long")
	return cmd
}

// queryOutput is the JSON document printed by the query command.
type queryOutput struct {
	Columns      []string         `json:"columns"`
	Rows         []map[string]any `json:"rows"`
	RowsAffected int64            `json:"rows_affected"`
}

func newQueryCmd(opts *rootOptions) *cobra.Command {
	var (
		rawParams []string
		attempts  int
		inTx      bool
		readOnly  bool
	)

	cmd := &cobra.Command{
		Use:   "query SQL",
		Short: "Execute one statement and print its result as JSON",
		Long: "Execute one statement and print its result as JSON.\n\n" +
			"Named parameters are passed as --param name=value. Integers, floats, " +
			"true/false and null are converted; wrap a value in double quotes to keep it a string.\n" +
			"Without --tx the statement goes through the retrying executor; with --tx it runs " +
			"in a single transaction and is never retried.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(rawParams)
			if err != nil {
				return err
			}

			app, err := opts.newApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.manager.Close()

			res, err := runQuery(cmd.Context(), app, args[0], params, attempts, inTx, readOnly)
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringArrayVarP(&rawParams, "param", "p", nil, "named parameter as name=value (repeatable)")
	cmd.Flags().IntVar(&attempts, "attempts", 0, "maximum attempts for transient failures (0 uses the configured default)")
	cmd.Flags().BoolVar(&inTx, "tx", false, "run the statement inside a transaction")
	cmd.Flags().BoolVar(&readOnly, "read-only", false, "start a read-only transaction (implies --tx)")
	return cmd
}

func runQuery(
	ctx context.Context,
	app *application,
	query string,
	params dbpool.Params,
	attempts int,
	inTx, readOnly bool,
) (*dbpool.Result, error) {
	if inTx || readOnly {
		var txOpts []store.TxOption
		if readOnly {
			txOpts = append(txOpts, store.WithReadOnly())
		}
		return store.WithTransaction(ctx, app.manager,
			func(ctx context.Context, tx dbpool.Tx) (*dbpool.Result, error) {
				return tx.Query(ctx, query, params)
			}, txOpts...)
	}

	var execOpts []store.ExecOption
	if attempts > 0 {
		execOpts = append(execOpts, store.WithMaxAttempts(attempts))
	}
	return app.executor.Execute(ctx, query, params, execOpts...)
}

func writeResult(w io.Writer, res *dbpool.Result) error {
	out := queryOutput{
		Columns:      res.Columns,
		Rows:         res.Rows,
		RowsAffected: res.RowsAffected,
	}
	if out.Columns == nil {
		out.Columns = []string{}
	}
	if out.Rows == nil {
		out.Rows = []map[string]any{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
