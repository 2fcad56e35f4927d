package arkdb

import (
	"context"
	"fmt"
	"io"

	"arkimedes/internal/anvl"
)

// LoadStats summarizes a Load.
type LoadStats struct {
	Loaded  int
	Skipped int
}

// Load upserts every record of a multi-record ANVL stream, such as an
// unpacked batch download, in one transaction. Records without an
// identifier are counted and skipped. A decode error aborts the load and
// nothing is committed.
func (s *Store) Load(ctx context.Context, r io.Reader) (LoadStats, error) {
	var stats LoadStats

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("begin load tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for rec, err := range anvl.Scan(r) {
		if err != nil {
			return LoadStats{}, fmt.Errorf("load: %w", err)
		}
		ark, err := FromRecord(rec)
		if err != nil {
			stats.Skipped++
			continue
		}
		if err := upsert(ctx, tx, ark); err != nil {
			return LoadStats{}, fmt.Errorf("load %s: %w", ark.Identifier, err)
		}
		stats.Loaded++
	}

	if err := tx.Commit(); err != nil {
		return LoadStats{}, fmt.Errorf("commit load: %w", err)
	}
	return stats, nil
}

// Dump writes the records matching f to w in the batch download layout,
// each headed by its ":: identifier" line.
func (s *Store) Dump(ctx context.Context, w io.Writer, f Filter) (int, error) {
	arks, err := s.List(ctx, f)
	if err != nil {
		return 0, err
	}
	for i, ark := range arks {
		if err := anvl.WriteAll(w, ark.Record); err != nil {
			return i, fmt.Errorf("dump %s: %w", ark.Identifier, err)
		}
	}
	return len(arks), nil
}
