package arkdb

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"arkimedes/internal/anvl"
	"arkimedes/internal/profile"
)

// Ark is one mirrored identifier record.
type Ark struct {
	Identifier  string
	Target      string
	Profile     string
	Status      string
	Owner       string
	OwnerGroup  string
	Created     time.Time
	Updated     time.Time
	Export      bool
	Creator     string
	Title       string
	Type        string
	Date        string
	Publisher   string
	ERCWho      string
	ERCWhat     string
	ERCWhen     string
	Replaceable bool
	Claimed     bool
	SyncedAt    time.Time
	Record      anvl.Record
}

// FromRecord projects rec into its indexed columns. rec must carry an
// identifier under the _id key.
func FromRecord(rec anvl.Record) (Ark, error) {
	id := strings.TrimSpace(rec.Identifier())
	if id == "" {
		return Ark{}, fmt.Errorf("arkdb: record has no %s", anvl.KeyIdentifier)
	}
	return Ark{
		Identifier:  id,
		Target:      rec.Target(),
		Profile:     rec.Value(anvl.KeyProfile),
		Status:      rec.Value(anvl.KeyStatus),
		Owner:       rec.Value(anvl.KeyOwner),
		OwnerGroup:  rec.Value(anvl.KeyOwnerGroup),
		Created:     parseUnix(rec.Value(anvl.KeyCreated)),
		Updated:     parseUnix(rec.Value(anvl.KeyUpdated)),
		Export:      !strings.EqualFold(strings.TrimSpace(rec.Value(anvl.KeyExport)), "no"),
		Creator:     rec.Value(profile.KeyCreator),
		Title:       rec.Value(profile.KeyTitle),
		Type:        rec.Value(profile.KeyType),
		Date:        rec.Value(profile.KeyDate),
		Publisher:   rec.Value(profile.KeyPublisher),
		ERCWho:      rec.Value(profile.KeyERCWho),
		ERCWhat:     rec.Value(profile.KeyERCWhat),
		ERCWhen:     rec.Value(profile.KeyERCWhen),
		Replaceable: profile.IsReplaceable(rec),
		Record:      rec.WithFirst(anvl.KeyIdentifier, id),
	}, nil
}

func parseUnix(value string) time.Time {
	secs, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}

func unixOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Unix()
}

// Filter narrows List results. Empty fields match everything; Title and
// Creator match case-insensitive substrings.
type Filter struct {
	Target      string
	Title       string
	Creator     string
	Replaceable bool
	Limit       int
}
