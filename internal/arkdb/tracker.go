package arkdb

import (
	"context"
	"log/slog"
	"sync"

	"arkimedes/internal/anvl"
	"arkimedes/internal/ezid"
	"arkimedes/internal/logging"
	"arkimedes/internal/profile"
)

// TrackerOptions selects the mirror checks a Tracker applies.
type TrackerOptions struct {
	// DuplicateCheck refuses mints whose target the mirror already holds.
	DuplicateCheck bool
	// Reuse turns a mint into an update of a claimed replaceable identifier
	// when one is available.
	Reuse  bool
	Logger *slog.Logger
}

// Tracker is an ezid.Executor that keeps the mirror in step with the
// registry. It is safe for concurrent use.
type Tracker struct {
	next   ezid.Executor
	store  *Store
	opts   TrackerOptions
	logger *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

var _ ezid.Executor = (*Tracker)(nil)

// NewTracker wraps next with mirror bookkeeping backed by store.
func NewTracker(next ezid.Executor, store *Store, opts TrackerOptions) *Tracker {
	return &Tracker{
		next:     next,
		store:    store,
		opts:     opts,
		logger:   logging.NewComponentLogger(opts.Logger, "arkdb"),
		inflight: make(map[string]struct{}),
	}
}

// Execute applies the mirror checks, forwards the request, and records a
// successful result.
func (t *Tracker) Execute(ctx context.Context, req ezid.Request) (ezid.Result, error) {
	switch r := req.(type) {
	case ezid.MintRequest:
		return t.mint(ctx, r)
	case ezid.UpdateRequest:
		res, err := t.next.Execute(ctx, r)
		if err != nil {
			return res, err
		}
		t.record(ctx, t.mergeExisting(ctx, res))
		return res, nil
	case ezid.QueryRequest:
		res, err := t.next.Execute(ctx, r)
		if err != nil {
			return res, err
		}
		t.record(ctx, res.Record)
		return res, nil
	default:
		return t.next.Execute(ctx, req)
	}
}

func (t *Tracker) mint(ctx context.Context, req ezid.MintRequest) (ezid.Result, error) {
	target := req.Record.Target()
	if t.opts.DuplicateCheck && target != "" {
		existing, err := t.store.FindByTarget(ctx, target)
		if err != nil {
			return ezid.Result{}, err
		}
		if existing != nil {
			return ezid.Result{}, &DuplicateTargetError{Target: target, Identifier: existing.Identifier}
		}
		if !t.reserve(target) {
			return ezid.Result{}, &DuplicateTargetError{Target: target}
		}
		defer t.release(target)
	}

	if t.opts.Reuse {
		claimed, err := t.store.ClaimReplaceable(ctx)
		if err != nil {
			return ezid.Result{}, err
		}
		if claimed != nil {
			return t.reuse(ctx, claimed, req.Record)
		}
	}

	res, err := t.next.Execute(ctx, req)
	if err != nil {
		return res, err
	}
	t.record(ctx, res.Record)
	return res, nil
}

func (t *Tracker) reuse(ctx context.Context, claimed *Ark, rec anvl.Record) (ezid.Result, error) {
	if claimed.Record.Has(profile.KeyReplaceable) {
		rec = rec.With(profile.KeyReplaceable, "False")
	}
	logging.WithContext(ctx, t.logger).Info("reusing replaceable identifier",
		logging.String("reused", claimed.Identifier),
		logging.String("previous_title", claimed.Title),
	)
	res, err := t.next.Execute(ctx, ezid.UpdateRequest{Identifier: claimed.Identifier, Record: rec})
	if err != nil {
		if releaseErr := t.store.ReleaseClaim(context.WithoutCancel(ctx), claimed.Identifier); releaseErr != nil {
			logging.WithContext(ctx, t.logger).Warn("release claim failed", logging.Error(releaseErr))
		}
		return res, err
	}
	merged := claimed.Record.Merge(res.Record)
	t.record(ctx, merged)
	res.Record = merged
	return res, nil
}

func (t *Tracker) mergeExisting(ctx context.Context, res ezid.Result) anvl.Record {
	existing, err := t.store.Get(ctx, res.Identifier)
	if err != nil || existing == nil {
		return res.Record
	}
	return existing.Record.Merge(res.Record)
}

// record upserts rec. The registry call already succeeded, so a mirror
// failure is logged rather than failing the row.
func (t *Tracker) record(ctx context.Context, rec anvl.Record) {
	if _, err := t.store.Upsert(context.WithoutCancel(ctx), rec); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, t.logger), "mirror update failed", "mirror_upsert_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run 'arkimedes db load' with a fresh batch download"),
			logging.String(logging.FieldImpact, "local mirror is stale for this identifier"),
		)
	}
}

func (t *Tracker) reserve(target string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, busy := t.inflight[target]; busy {
		return false
	}
	t.inflight[target] = struct{}{}
	return true
}

func (t *Tracker) release(target string) {
	t.mu.Lock()
	delete(t.inflight, target)
	t.mu.Unlock()
}
