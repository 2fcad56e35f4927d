package reconcile

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"arkimedes/internal/anvl"
	"arkimedes/internal/logging"
	"arkimedes/internal/profile"
)

// Reconciler resolves names through a Searcher and remembers decisions for
// the life of a run. It is safe for concurrent use.
type Reconciler struct {
	searcher   Searcher
	thresholds Thresholds
	logger     *slog.Logger

	mu    sync.Mutex
	cache map[string]Decision
}

// NewReconciler builds a Reconciler.
func NewReconciler(searcher Searcher, th Thresholds, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		searcher:   searcher,
		thresholds: th,
		logger:     logging.NewComponentLogger(logger, "reconcile"),
		cache:      make(map[string]Decision),
	}
}

// Reconcile decides on name. A failed search keeps the original name; the
// error is returned alongside so callers may log it.
func (r *Reconciler) Reconcile(ctx context.Context, name string) (Decision, error) {
	key := Fold(name)
	r.mu.Lock()
	cached, ok := r.cache[key]
	r.mu.Unlock()
	if ok {
		cached.Query = name
		if cached.Outcome != OutcomeAccepted {
			cached.Name = name
		}
		return cached, nil
	}

	candidates, err := r.searcher.Search(ctx, name)
	if err != nil {
		return Decision{Query: name, Outcome: OutcomeNoMatch, Name: name}, err
	}
	d := Decide(name, candidates, r.thresholds)

	r.mu.Lock()
	r.cache[key] = d
	r.mu.Unlock()
	return d, nil
}

// Apply reconciles the creator of rec. An accepted heading replaces
// dc.creator, and erc.who when it mirrored the old creator. Uncertain and
// failed lookups leave the record unchanged and are logged.
func (r *Reconciler) Apply(ctx context.Context, rec anvl.Record) anvl.Record {
	creator := strings.TrimSpace(rec.Value(profile.KeyCreator))
	if creator == "" {
		return rec
	}
	logger := logging.WithContext(ctx, r.logger)
	d, err := r.Reconcile(ctx, creator)
	if err != nil {
		logging.WarnWithContext(logger, "name authority lookup failed", "reconcile_failed",
			logging.String("name", creator),
			logging.Error(err),
			logging.String(logging.FieldImpact, "creator kept as supplied"),
		)
		return rec
	}
	switch d.Outcome {
	case OutcomeAccepted:
		if d.Name == creator {
			return rec
		}
		logger.Info("creator reconciled", logging.String("name", creator), logging.String("heading", d.Name), logging.String("uri", d.URI))
		if rec.Value(profile.KeyERCWho) == rec.Value(profile.KeyCreator) {
			rec = rec.With(profile.KeyERCWho, d.Name)
		}
		return rec.With(profile.KeyCreator, d.Name)
	case OutcomeUncertain:
		attrs := []logging.Attr{logging.String("name", creator)}
		for i, c := range d.Candidates {
			if i == 2 {
				break
			}
			attrs = append(attrs, logging.Group("candidate", logging.String("label", c.Label), logging.Float64("score", c.Score)))
		}
		logging.WarnWithContext(logger, "uncertain name authority match", "reconcile_uncertain", attrs...)
	}
	return rec
}
