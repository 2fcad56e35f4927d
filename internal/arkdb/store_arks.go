package arkdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"arkimedes/internal/anvl"
)

const upsertSQL = `INSERT INTO arks (
    ark, target, profile, status, owner, ownergroup, created, updated, export,
    dc_creator, dc_title, dc_type, dc_date, dc_publisher, erc_who, erc_what, erc_when,
    replaceable, anvl, synced_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(ark) DO UPDATE SET
    target = excluded.target,
    profile = excluded.profile,
    status = excluded.status,
    owner = excluded.owner,
    ownergroup = excluded.ownergroup,
    created = COALESCE(excluded.created, arks.created),
    updated = COALESCE(excluded.updated, arks.updated),
    export = excluded.export,
    dc_creator = excluded.dc_creator,
    dc_title = excluded.dc_title,
    dc_type = excluded.dc_type,
    dc_date = excluded.dc_date,
    dc_publisher = excluded.dc_publisher,
    erc_who = excluded.erc_who,
    erc_what = excluded.erc_what,
    erc_when = excluded.erc_when,
    replaceable = excluded.replaceable,
    claimed_at = NULL,
    anvl = excluded.anvl,
    synced_at = excluded.synced_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Upsert stores rec, replacing any earlier copy of the same identifier and
// releasing a claim on it.
func (s *Store) Upsert(ctx context.Context, rec anvl.Record) (*Ark, error) {
	ark, err := FromRecord(rec)
	if err != nil {
		return nil, err
	}
	if err := retryOnBusy(ctx, func() error {
		return upsert(ctx, s.db, ark)
	}); err != nil {
		return nil, fmt.Errorf("upsert %s: %w", ark.Identifier, err)
	}
	return &ark, nil
}

func upsert(ctx context.Context, db execer, ark Ark) error {
	_, err := db.ExecContext(ctx, upsertSQL,
		ark.Identifier,
		nullableString(ark.Target),
		nullableString(ark.Profile),
		nullableString(ark.Status),
		nullableString(ark.Owner),
		nullableString(ark.OwnerGroup),
		unixOrNil(ark.Created),
		unixOrNil(ark.Updated),
		boolToInt(ark.Export),
		nullableString(ark.Creator),
		nullableString(ark.Title),
		nullableString(ark.Type),
		nullableString(ark.Date),
		nullableString(ark.Publisher),
		nullableString(ark.ERCWho),
		nullableString(ark.ERCWhat),
		nullableString(ark.ERCWhen),
		boolToInt(ark.Replaceable),
		anvl.Encode(ark.Record),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Get fetches a record by identifier. It returns nil when the mirror does
// not hold the identifier.
func (s *Store) Get(ctx context.Context, id string) (*Ark, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+arkColumns+` FROM arks WHERE ark = ?`, id)
	ark, err := scanArk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ark: %w", err)
	}
	return ark, nil
}

// FindByTarget returns the first record resolving to target.
func (s *Store) FindByTarget(ctx context.Context, target string) (*Ark, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+arkColumns+` FROM arks WHERE target = ? ORDER BY ark LIMIT 1`, target)
	ark, err := scanArk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by target: %w", err)
	}
	return ark, nil
}

// List returns records matching f ordered by identifier.
func (s *Store) List(ctx context.Context, f Filter) ([]Ark, error) {
	where, args := f.where()
	query := `SELECT ` + arkColumns + ` FROM arks` + where + " ORDER BY ark"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list arks: %w", err)
	}
	defer rows.Close()

	var out []Ark
	for rows.Next() {
		ark, err := scanArk(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ark: %w", err)
		}
		out = append(out, *ark)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate arks: %w", err)
	}
	return out, nil
}

// Count returns the number of mirrored records matching f. Limit is ignored.
func (s *Store) Count(ctx context.Context, f Filter) (int, error) {
	where, args := f.where()
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM arks`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count arks: %w", err)
	}
	return n, nil
}

// ClaimReplaceable marks the lowest unclaimed replaceable identifier as
// claimed and returns it, or nil when none is left. The claim is a single
// statement, so concurrent callers never receive the same identifier.
func (s *Store) ClaimReplaceable(ctx context.Context) (*Ark, error) {
	var (
		ark *Ark
		err error
	)
	claimedAt := time.Now().UTC().Format(time.RFC3339Nano)
	retryErr := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx, `UPDATE arks SET claimed_at = ?
WHERE ark = (
    SELECT ark FROM arks WHERE replaceable = 1 AND claimed_at IS NULL ORDER BY ark LIMIT 1
) AND claimed_at IS NULL
RETURNING `+arkColumns, claimedAt)
		ark, err = scanArk(row)
		if errors.Is(err, sql.ErrNoRows) {
			ark, err = nil, nil
		}
		return err
	})
	if retryErr != nil {
		return nil, fmt.Errorf("claim replaceable: %w", retryErr)
	}
	return ark, nil
}

// ReleaseClaim makes a claimed identifier available again.
func (s *Store) ReleaseClaim(ctx context.Context, id string) error {
	if _, err := s.execWithRetry(ctx, `UPDATE arks SET claimed_at = NULL WHERE ark = ?`, id); err != nil {
		return fmt.Errorf("release claim %s: %w", id, err)
	}
	return nil
}

// Delete removes id from the mirror. It does not touch the registry.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM arks WHERE ark = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
