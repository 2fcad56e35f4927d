package profile

import (
	"regexp"
	"strings"

	"arkimedes/internal/anvl"
)

// Metadata keys of the dc and erc profiles.
const (
	KeyCreator   = "dc.creator"
	KeyTitle     = "dc.title"
	KeyPublisher = "dc.publisher"
	KeyDate      = "dc.date"
	KeyType      = "dc.type"
	KeyERCWho    = "erc.who"
	KeyERCWhat   = "erc.what"
	KeyERCWhen   = "erc.when"

	// KeyReplaceable flags a record whose identifier may be recycled.
	KeyReplaceable = "iastate.replaceable"
)

// Defaults fills metadata that input rows commonly omit.
type Defaults struct {
	Publisher string
	Type      string
	Profile   string
	// MirrorERC copies the dc creator, title and date into the erc keys.
	MirrorERC bool
}

// ercMirrors pairs each erc key with the dc key it copies.
var ercMirrors = [...]struct{ erc, dc string }{
	{KeyERCWho, KeyCreator},
	{KeyERCWhat, KeyTitle},
	{KeyERCWhen, KeyDate},
}

// Apply returns rec with missing or empty defaulted keys filled in. Values
// already present are never overwritten, and existing keys keep their
// positions.
func (d Defaults) Apply(rec anvl.Record) anvl.Record {
	fill := func(key, value string) {
		if value == "" || rec.Value(key) != "" {
			return
		}
		rec = rec.With(key, value)
	}
	if d.MirrorERC {
		for _, m := range ercMirrors {
			fill(m.erc, rec.Value(m.dc))
		}
	}
	fill(KeyPublisher, d.Publisher)
	fill(KeyType, d.Type)
	fill(anvl.KeyProfile, d.Profile)
	return rec
}

// Build assembles a record in the canonical key order used for finding aids
// and reports: erc mirrors first, then Dublin Core, then target and profile.
func (d Defaults) Build(creator, title, date, target string) anvl.Record {
	return anvl.MustNew(
		anvl.Pair{Key: KeyERCWho, Value: creator},
		anvl.Pair{Key: KeyERCWhat, Value: title},
		anvl.Pair{Key: KeyERCWhen, Value: date},
		anvl.Pair{Key: KeyCreator, Value: creator},
		anvl.Pair{Key: KeyTitle, Value: title},
		anvl.Pair{Key: KeyPublisher, Value: d.Publisher},
		anvl.Pair{Key: KeyDate, Value: date},
		anvl.Pair{Key: KeyType, Value: d.Type},
		anvl.Pair{Key: anvl.KeyTarget, Value: target},
		anvl.Pair{Key: anvl.KeyProfile, Value: d.Profile},
	)
}

var replaceableTitle = regexp.MustCompile(`^(?:[Pp](?:age|\.) \d+|[Ff]ront|[Bb]ack)?$`)

// ReplaceableTitle reports whether title marks a placeholder record: empty,
// a cover side, or a bare page label such as "Page 4" or "p. 12".
func ReplaceableTitle(title string) bool {
	return replaceableTitle.MatchString(title)
}

// IsReplaceable reports whether rec may be overwritten by a new mint.
func IsReplaceable(rec anvl.Record) bool {
	if strings.EqualFold(strings.TrimSpace(rec.Value(KeyReplaceable)), "true") {
		return true
	}
	return ReplaceableTitle(rec.Value(KeyTitle))
}
