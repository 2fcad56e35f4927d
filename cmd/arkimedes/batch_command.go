package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"arkimedes/internal/anvl"
	"arkimedes/internal/arkdb"
	"arkimedes/internal/batch"
	"arkimedes/internal/config"
	"arkimedes/internal/ezid"
	"arkimedes/internal/fileutil"
	"arkimedes/internal/logging"
	"arkimedes/internal/reconcile"
	"arkimedes/internal/tabular"
)

// partialFailureError reports a batch that ran to completion with some
// rows failed or skipped.
type partialFailureError struct {
	summary batch.Summary
}

func (e *partialFailureError) Error() string {
	return fmt.Sprintf("batch finished with failures: %s", e.summary)
}

type batchFlags struct {
	input        inputOptions
	action       string
	actionColumn string
	shoulder     string
	dryRun       bool
	reuse        bool
	noReconcile  bool
	skipCheck    bool
	concurrency  int
	outPath      string
	reportPath   string
}

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var flags batchFlags

	cmd := &cobra.Command{
		Use:   "batch [file|url ...]",
		Short: "Mint, update or query identifiers for every record of an input",
		Long: `Run one registry action for every record of an input.

Inputs are TSV or CSV tables with a header row, multi-record ANVL files,
EAD finding aids, conservation report PDFs, or an OAI-PMH repository.
The input type is taken from the file extension unless --source is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.close()
			return runBatch(cmd, ctx, args, flags)
		},
	}

	cmd.Flags().StringVar(&flags.input.kind, "source", sourceAuto, "Input type: "+strings.Join(sourceKinds, ", "))
	cmd.Flags().StringVar(&flags.input.set, "set", "", "OAI-PMH set to harvest (defaults to sources.oai_set)")
	cmd.Flags().StringVar(&flags.input.targets, "targets", "", "File of target URLs assigned to records in order")
	cmd.Flags().StringVarP(&flags.action, "action", "a", ezid.ActionMint.String(), "Action for every row ("+actionFlagChoices()+")")
	cmd.Flags().StringVar(&flags.actionColumn, "action-column", "", "Column whose value overrides the action per row")
	cmd.Flags().StringVar(&flags.shoulder, "shoulder", "", "Shoulder to mint under (defaults to registry.shoulder)")
	cmd.Flags().BoolVarP(&flags.dryRun, "dry-run", "n", false, "Validate every row without contacting the registry")
	cmd.Flags().BoolVar(&flags.reuse, "reuse", false, "Recycle replaceable identifiers from the mirror before minting")
	cmd.Flags().BoolVar(&flags.noReconcile, "no-reconcile", false, "Skip name authority reconciliation")
	cmd.Flags().BoolVar(&flags.skipCheck, "skip-check", false, "Skip the registry login check before a live run")
	cmd.Flags().IntVarP(&flags.concurrency, "concurrency", "j", 0, "Concurrent registry calls (defaults to batch.concurrency)")
	cmd.Flags().StringVarP(&flags.outPath, "out", "o", "", "Append successful records as ANVL to this file")
	cmd.Flags().StringVar(&flags.reportPath, "report", "", "Write a TSV of per-row results to this file")

	return cmd
}

func runBatch(cmd *cobra.Command, ctx *commandContext, args []string, flags batchFlags) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.loggerFor(cmd)
	if err != nil {
		return err
	}
	action, err := ezid.ParseAction(flags.action)
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	input, err := loadInput(runCtx, cfg, logger, args, flags.input)
	if err != nil {
		return err
	}

	transforms := []batch.Transform{mintOnly(func(_ context.Context, rec anvl.Record) anvl.Record {
		return profileDefaults(cfg).Apply(rec)
	})}
	if cfg.Reconcile.Enabled && !flags.noReconcile {
		reconciler, err := newReconciler(cfg, logger)
		if err != nil {
			return err
		}
		transforms = append(transforms, mintOnly(reconciler.Apply))
	}

	concurrency := cfg.Batch.Concurrency
	if flags.concurrency > 0 {
		concurrency = flags.concurrency
	}
	shoulder := strings.TrimSpace(flags.shoulder)
	if shoulder == "" {
		shoulder = cfg.Registry.Shoulder
	}
	op := batch.New(batch.Options{
		Concurrency:  concurrency,
		MaxAttempts:  cfg.Batch.MaxAttempts,
		BaseDelay:    cfg.RetryBaseDelay(),
		MaxDelay:     cfg.RetryMaxDelay(),
		CallTimeout:  cfg.CallTimeout(),
		Shoulder:     shoulder,
		ActionColumn: strings.TrimSpace(flags.actionColumn),
		Transforms:   transforms,
		OnResult:     batchProgress(logger, progressInterval),
		Logger:       logger,
	})

	var (
		report batch.Report
		runErr error
	)
	if flags.dryRun {
		report, runErr = op.Validate(runCtx, input.rows(), action)
	} else {
		report, runErr = runLive(runCtx, cmd, ctx, cfg, op, input, action, flags)
	}
	if runErr != nil && report.RunID == "" {
		return runErr
	}

	if err := writeBatchOutputs(report, flags); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	fmt.Fprintf(out, "Input: %s\n", input.name)
	fmt.Fprintln(out, renderSummary(report, colorize))
	if failures := renderFailures(report); failures != "" {
		fmt.Fprintln(out, failures)
	}

	if runErr != nil {
		return runErr
	}
	if report.Summary.Failed > 0 || report.Summary.Skipped > 0 {
		return &partialFailureError{summary: report.Summary}
	}
	return nil
}

func actionFlagChoices() string {
	names := make([]string, 0, 3)
	for _, a := range ezid.Actions() {
		names = append(names, a.String())
	}
	return strings.Join(names, "|")
}

const progressInterval = 50

// batchProgress logs a running count every n finished rows.
func batchProgress(logger *slog.Logger, n int) func(batch.Result) {
	var done, failed atomic.Int64
	return func(res batch.Result) {
		if !res.OK() {
			failed.Add(1)
		}
		if count := done.Add(1); count%int64(n) == 0 {
			logger.Info("batch progress",
				logging.Int64("rows_done", count),
				logging.Int64("rows_failed", failed.Load()),
				logging.Int("last_row", res.Row),
			)
		}
	}
}

func runLive(runCtx context.Context, cmd *cobra.Command, ctx *commandContext, cfg *config.Config, op *batch.Operator, input batchInput, action ezid.Action, flags batchFlags) (batch.Report, error) {
	if err := input.scan(); err != nil {
		return batch.Report{}, err
	}
	client, err := ctx.registryClient(cmd)
	if err != nil {
		return batch.Report{}, err
	}
	if !flags.skipCheck {
		if err := checkRegistry(runCtx, client); err != nil {
			return batch.Report{}, err
		}
	}

	store, err := ctx.openStore()
	if err != nil {
		return batch.Report{}, err
	}
	if store == nil {
		if flags.reuse {
			return batch.Report{}, errors.New("--reuse needs the mirror database (set database.enabled = true)")
		}
		return op.Run(runCtx, input.rows(), action, client)
	}
	defer store.Close()

	unlock, err := store.Lock()
	if err != nil {
		if errors.Is(err, arkdb.ErrLocked) {
			return batch.Report{}, fmt.Errorf("another batch is using %s", store.Path())
		}
		return batch.Report{}, err
	}
	defer func() { _ = unlock() }()

	logger, _ := ctx.loggerFor(cmd)
	tracker := arkdb.NewTracker(client, store, arkdb.TrackerOptions{
		DuplicateCheck: cfg.Database.DuplicateCheck,
		Reuse:          flags.reuse,
		Logger:         logger,
	})
	return op.Run(runCtx, input.rows(), action, tracker)
}

func writeBatchOutputs(report batch.Report, flags batchFlags) error {
	if flags.outPath != "" && !report.DryRun {
		if err := fileutil.AppendFile(flags.outPath, 0o644, func(w io.Writer) error {
			return batch.WriteANVL(w, report)
		}); err != nil {
			return fmt.Errorf("write %s: %w", flags.outPath, err)
		}
	}
	if flags.reportPath != "" {
		if _, err := fileutil.WriteAtomic(flags.reportPath, 0o644, func(w io.Writer) error {
			return batch.WriteTSV(w, report)
		}); err != nil {
			return fmt.Errorf("write %s: %w", flags.reportPath, err)
		}
	}
	return nil
}

// mintOnly adapts a record rewrite into a transform that leaves update and
// query rows alone.
func mintOnly(fn func(context.Context, anvl.Record) anvl.Record) batch.Transform {
	return func(ctx context.Context, action ezid.Action, row tabular.Row) (anvl.Record, error) {
		if action != ezid.ActionMint {
			return row.Record, nil
		}
		return fn(ctx, row.Record), nil
	}
}

func newReconciler(cfg *config.Config, logger *slog.Logger) (*reconcile.Reconciler, error) {
	client, err := reconcile.New(cfg.Reconcile.BaseURL,
		time.Duration(cfg.Reconcile.TimeoutSeconds)*time.Second,
		reconcile.WithUserAgent(cfg.Registry.UserAgent),
	)
	if err != nil {
		return nil, fmt.Errorf("name authority client: %w", err)
	}
	th := reconcile.Thresholds{Min: cfg.Reconcile.MinScore, Accept: cfg.Reconcile.AcceptScore}
	return reconcile.NewReconciler(client, th, logger), nil
}
