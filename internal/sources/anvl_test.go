package sources_test

import (
	"testing"

	"arkimedes/internal/sources"
)

func TestParseANVLSeparators(t *testing.T) {
	data := []byte("dc.title: One\n_target: http://a\n---\ndc.title: Two\n\n:: ark:/99999/fk43\ndc.title: Three\n")
	records, err := sources.ParseANVL(data)
	if err != nil {
		t.Fatalf("ParseANVL: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[1].Value("dc.title") != "Two" || records[2].Identifier() != "ark:/99999/fk43" {
		t.Fatalf("unexpected records: %v", records)
	}

	var numbers []int
	for row, err := range sources.Rows(records) {
		if err != nil {
			t.Fatalf("row error: %v", err)
		}
		numbers = append(numbers, row.Number)
	}
	if len(numbers) != 3 || numbers[0] != 1 || numbers[2] != 3 {
		t.Fatalf("row numbers = %v", numbers)
	}
}

func TestParseANVLDocumentsNamesFailingSource(t *testing.T) {
	_, err := sources.ParseANVLDocuments([]sources.Document{
		{Location: "good.anvl", Data: []byte("a: 1\n")},
		{Location: "bad.anvl", Data: []byte("no colon here\n")},
	})
	if err == nil || err.Error()[:8] != "bad.anvl" {
		t.Fatalf("expected error naming bad.anvl, got %v", err)
	}
}
