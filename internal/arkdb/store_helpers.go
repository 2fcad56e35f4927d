package arkdb

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"arkimedes/internal/anvl"
)

const arkColumns = "ark, target, profile, status, owner, ownergroup, created, updated, export, dc_creator, dc_title, dc_type, dc_date, dc_publisher, erc_who, erc_what, erc_when, replaceable, claimed_at, anvl, synced_at"

func scanArk(scanner interface{ Scan(dest ...any) error }) (*Ark, error) {
	var (
		ark         string
		target      sql.NullString
		profileName sql.NullString
		status      sql.NullString
		owner       sql.NullString
		ownerGroup  sql.NullString
		created     sql.NullInt64
		updated     sql.NullInt64
		export      int
		creator     sql.NullString
		title       sql.NullString
		typ         sql.NullString
		date        sql.NullString
		publisher   sql.NullString
		ercWho      sql.NullString
		ercWhat     sql.NullString
		ercWhen     sql.NullString
		replaceable int
		claimedAt   sql.NullString
		blob        string
		syncedRaw   string
	)
	if err := scanner.Scan(
		&ark, &target, &profileName, &status, &owner, &ownerGroup,
		&created, &updated, &export,
		&creator, &title, &typ, &date, &publisher,
		&ercWho, &ercWhat, &ercWhen,
		&replaceable, &claimedAt, &blob, &syncedRaw,
	); err != nil {
		return nil, err
	}

	rec, err := anvl.Decode(blob)
	if err != nil {
		return nil, fmt.Errorf("decode stored record %s: %w", ark, err)
	}

	item := &Ark{
		Identifier:  ark,
		Target:      target.String,
		Profile:     profileName.String,
		Status:      status.String,
		Owner:       owner.String,
		OwnerGroup:  ownerGroup.String,
		Export:      export != 0,
		Creator:     creator.String,
		Title:       title.String,
		Type:        typ.String,
		Date:        date.String,
		Publisher:   publisher.String,
		ERCWho:      ercWho.String,
		ERCWhat:     ercWhat.String,
		ERCWhen:     ercWhen.String,
		Replaceable: replaceable != 0,
		Claimed:     claimedAt.Valid,
		Record:      rec,
	}
	if created.Valid {
		item.Created = time.Unix(created.Int64, 0).UTC()
	}
	if updated.Valid {
		item.Updated = time.Unix(updated.Int64, 0).UTC()
	}
	if ts, err := time.Parse(time.RFC3339Nano, syncedRaw); err == nil {
		item.SyncedAt = ts
	}
	return item, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

// likePattern wraps value for a substring LIKE match with '\' as escape.
func likePattern(value string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(value) + "%"
}

func (f Filter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.Target != "" {
		clauses = append(clauses, "target = ?")
		args = append(args, f.Target)
	}
	if f.Title != "" {
		clauses = append(clauses, `dc_title LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(f.Title))
	}
	if f.Creator != "" {
		clauses = append(clauses, `dc_creator LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(f.Creator))
	}
	if f.Replaceable {
		clauses = append(clauses, "replaceable = 1")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
