package sources

import (
	"strings"

	"arkimedes/internal/anvl"
	"arkimedes/internal/profile"
)

// Metadata is the descriptive core extracted from a source document.
type Metadata struct {
	Creator string
	Title   string
	Date    string
	Target  string
	// Type overrides the profile's default dc.type when set.
	Type string
}

// Record builds the registry record for m using defaults.
func (m Metadata) Record(defaults profile.Defaults) anvl.Record {
	if m.Type != "" {
		defaults.Type = m.Type
	}
	return defaults.Build(clean(m.Creator), clean(m.Title), clean(m.Date), strings.TrimSpace(m.Target))
}

// Records builds a record for every entry of ms.
func Records(ms []Metadata, defaults profile.Defaults) []anvl.Record {
	out := make([]anvl.Record, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Record(defaults))
	}
	return out
}

// clean collapses internal whitespace, which finding aids and extracted
// text carry over from their source layout.
func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
