package sources

import (
	"fmt"
	"iter"
	"regexp"

	"arkimedes/internal/anvl"
	"arkimedes/internal/tabular"
)

// recordSeparator matches the "---" line older exports place between
// records.
var recordSeparator = regexp.MustCompile(`(?m)^---[ \t]*\r?$`)

// ParseANVL decodes one or more records. Records are separated by blank
// lines or by a line holding only "---".
func ParseANVL(data []byte) ([]anvl.Record, error) {
	text := recordSeparator.ReplaceAllString(string(data), "")
	records, err := anvl.DecodeAll(text)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ParseANVLDocuments decodes every document, keeping input order.
func ParseANVLDocuments(docs []Document) ([]anvl.Record, error) {
	var out []anvl.Record
	for _, doc := range docs {
		records, err := ParseANVL(doc.Data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", doc.Location, err)
		}
		out = append(out, records...)
	}
	return out, nil
}

// Rows exposes records as batch rows numbered from 1.
func Rows(records []anvl.Record) iter.Seq2[tabular.Row, error] {
	return func(yield func(tabular.Row, error) bool) {
		for i, rec := range records {
			if !yield(tabular.Row{Number: i + 1, Record: rec}, nil) {
				return
			}
		}
	}
}
