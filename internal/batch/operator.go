package batch

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"arkimedes/internal/anvl"
	"arkimedes/internal/ezid"
	"arkimedes/internal/logging"
	"arkimedes/internal/services"
	"arkimedes/internal/tabular"
)

const (
	defaultConcurrency = 2
	defaultCallTimeout = 60 * time.Second
)

// Transform rewrites a row's record before its request is built, for
// example to apply profile defaults or reconcile names. action is the row's
// effective action.
type Transform func(ctx context.Context, action ezid.Action, row tabular.Row) (anvl.Record, error)

// Options tune an Operator. Zero values select the defaults.
type Options struct {
	// Concurrency caps in-flight registry calls.
	Concurrency int
	// MaxAttempts is the total number of tries for a transient failure.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// CallTimeout bounds each registry call, including calls that keep
	// running after the batch is cancelled.
	CallTimeout time.Duration
	// Shoulder is passed to mint requests.
	Shoulder string
	// ActionColumn names a column whose non-empty value overrides the run's
	// action for that row. The column is never sent to the registry.
	ActionColumn string
	Transforms []Transform
	// OnResult is called once per row as it finishes or is skipped. Calls
	// may come from several goroutines at once.
	OnResult func(Result)
	Logger   *slog.Logger
	Sleeper  func(context.Context, time.Duration) error
}

// Operator runs batches. It keeps no state between runs.
type Operator struct {
	opts   Options
	retry  retryPolicy
	logger *slog.Logger
}

// New builds an Operator from opts.
func New(opts Options) *Operator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.BaseDelay < 0 {
		opts.BaseDelay = 0
	} else if opts.BaseDelay == 0 {
		opts.BaseDelay = defaultRetryBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = defaultRetryMaxDelay
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.Sleeper == nil {
		opts.Sleeper = sleepContext
	}
	return &Operator{
		opts: opts,
		retry: retryPolicy{
			maxAttempts: opts.MaxAttempts,
			baseDelay:   opts.BaseDelay,
			maxDelay:    opts.MaxDelay,
		},
		logger: logging.NewComponentLogger(opts.Logger, "batch"),
	}
}

// Run executes action for every row through exec. The returned report covers
// every row read from the sequence. A non-nil error means the input could not
// be read (the report then covers the rows read before the failure) or the
// action is illegal.
func (o *Operator) Run(ctx context.Context, rows iter.Seq2[tabular.Row, error], action ezid.Action, exec ezid.Executor) (Report, error) {
	if !action.Valid() {
		return Report{}, &ezid.InvalidActionError{Value: action.String()}
	}
	if exec == nil {
		return Report{}, errors.New("batch: executor required")
	}
	report := Report{RunID: uuid.NewString(), Action: action}
	ctx = services.WithRunID(ctx, report.RunID)
	ctx = services.WithAction(ctx, action.String())
	logger := logging.WithContext(ctx, o.logger)
	logger.Info("batch started", logging.Int("concurrency", o.opts.Concurrency), logging.Int("max_attempts", o.opts.MaxAttempts))

	var (
		group   errgroup.Group
		slots   = make(chan struct{}, o.opts.Concurrency)
		pending []*Result
		readErr error
	)

	for row, err := range rows {
		if err != nil {
			readErr = err
			break
		}
		res := &Result{Row: row.Number, Action: action, Record: row.Record}
		pending = append(pending, res)

		if ctx.Err() != nil {
			o.skip(res, ctx.Err())
			continue
		}
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			o.skip(res, ctx.Err())
			continue
		}
		if ctx.Err() != nil {
			<-slots
			o.skip(res, ctx.Err())
			continue
		}
		group.Go(func() error {
			defer func() { <-slots }()
			o.process(ctx, row, action, exec, res)
			if o.opts.OnResult != nil {
				o.opts.OnResult(*res)
			}
			return nil
		})
	}
	_ = group.Wait()

	report.Results = make([]Result, len(pending))
	for i, res := range pending {
		report.Results[i] = *res
	}
	report.Summary = summarize(report.Results)

	if readErr != nil {
		logger.Error("batch input failed", logging.Error(readErr), logging.Int("rows_read", len(pending)))
		return report, fmt.Errorf("batch: read input: %w", readErr)
	}
	logger.Info("batch finished",
		logging.Int("total", report.Summary.Total),
		logging.Int("succeeded", report.Summary.Succeeded),
		logging.Int("failed", report.Summary.Failed),
		logging.Int("skipped", report.Summary.Skipped),
	)
	return report, nil
}

// Validate performs a dry run: every row is transformed and turned into a
// request, but nothing is sent. Successful rows report the identifier or
// shoulder the request would address.
func (o *Operator) Validate(ctx context.Context, rows iter.Seq2[tabular.Row, error], action ezid.Action) (Report, error) {
	if !action.Valid() {
		return Report{}, &ezid.InvalidActionError{Value: action.String()}
	}
	report := Report{RunID: uuid.NewString(), Action: action, DryRun: true}
	for row, err := range rows {
		if err != nil {
			report.Summary = summarize(report.Results)
			return report, fmt.Errorf("batch: read input: %w", err)
		}
		res := Result{Row: row.Number, Action: action, Record: row.Record}
		req, err := o.prepare(ctx, row, action)
		if req != nil {
			res.Action = req.Action()
		}
		if err != nil {
			res.Status = StatusFailed
			res.Err = err
			res.Class = ezid.Classify(err)
		} else {
			res.Status = StatusSucceeded
			res.Identifier = req.Subject()
			res.Record = requestRecord(req, row.Record)
		}
		report.Results = append(report.Results, res)
	}
	report.Summary = summarize(report.Results)
	return report, nil
}

func (o *Operator) prepare(ctx context.Context, row tabular.Row, action ezid.Action) (ezid.Request, error) {
	if o.opts.ActionColumn != "" {
		if value := row.Record.Value(o.opts.ActionColumn); value != "" {
			parsed, err := ezid.ParseAction(value)
			if err != nil {
				return nil, err
			}
			action = parsed
		}
		row.Record = row.Record.Without(o.opts.ActionColumn)
	}
	for _, transform := range o.opts.Transforms {
		rec, err := transform(ctx, action, row)
		if err != nil {
			return nil, err
		}
		row.Record = rec
	}
	return ezid.NewRequest(action, row.Record, o.opts.Shoulder)
}

func (o *Operator) process(ctx context.Context, row tabular.Row, action ezid.Action, exec ezid.Executor, res *Result) {
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	ctx = services.WithRow(ctx, row.Number)
	req, err := o.prepare(ctx, row, action)
	if err != nil {
		o.fail(ctx, res, err)
		return
	}
	res.Action = req.Action()
	res.Record = requestRecord(req, row.Record)
	ctx = services.WithAction(ctx, res.Action.String())
	ctx = services.WithIdentifier(ctx, req.Subject())

	attempts := o.retry.attempts()
	for attempt := 1; attempt <= attempts; attempt++ {
		res.Attempts = attempt
		out, err := o.call(ctx, exec, req)
		if err == nil {
			res.Status = StatusSucceeded
			res.Identifier = out.Identifier
			res.Record = out.Record
			res.Err = nil
			res.Class = ""
			logging.WithContext(services.WithIdentifier(ctx, out.Identifier), o.logger).Debug("row succeeded", logging.Int("attempts", attempt))
			return
		}
		res.Err = err

		delay, retry := o.retry.retryDelay(ctx, err, attempt)
		if !retry {
			break
		}
		logging.WithContext(ctx, o.logger).Warn("transient registry failure; retrying",
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
		if err := o.opts.Sleeper(ctx, delay); err != nil {
			break
		}
	}
	o.fail(ctx, res, res.Err)
}

// call runs one attempt on a context detached from batch cancellation so an
// in-flight request always completes.
func (o *Operator) call(ctx context.Context, exec ezid.Executor, req ezid.Request) (ezid.Result, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.CallTimeout)
	defer cancel()
	out, err := exec.Execute(callCtx, req)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && !ezid.IsTransient(err) {
		err = &ezid.TransientError{Message: "registry call timed out", Err: err}
	}
	return out, err
}

func (o *Operator) fail(ctx context.Context, res *Result, err error) {
	res.Status = StatusFailed
	res.Err = err
	res.Class = ezid.Classify(err)
	logging.WithContext(ctx, o.logger).Warn("row failed",
		logging.String("class", res.Class),
		logging.Int("attempts", res.Attempts),
		logging.Error(err),
	)
}

func (o *Operator) skip(res *Result, cause error) {
	res.Status = StatusSkipped
	res.Err = fmt.Errorf("batch: row %d not dispatched: %w", res.Row, cause)
	res.Class = ezid.KindCanceled
	if o.opts.OnResult != nil {
		o.opts.OnResult(*res)
	}
}

func requestRecord(req ezid.Request, fallback anvl.Record) anvl.Record {
	switch r := req.(type) {
	case ezid.MintRequest:
		return r.Record
	case ezid.UpdateRequest:
		return r.Record.WithFirst(anvl.KeyIdentifier, r.Identifier)
	default:
		return fallback
	}
}
