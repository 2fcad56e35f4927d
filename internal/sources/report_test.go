package sources_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"arkimedes/internal/sources"
	"arkimedes/internal/testsupport"
)

const reportText = `Conservation Treatment Report
Date of report: March 5, 2019
Conservator: Smith, Jane
Call Number: MS-0021
Title: Letters of George
 Washington Carver
Collection: Special Collections
Treatment: Surface cleaning
`

func TestParseReport(t *testing.T) {
	m, err := sources.ParseReport(reportText, "https://example.org/reports/1.pdf")
	if err != nil {
		t.Fatalf("ParseReport: %v", err)
	}
	if m.Creator != "Smith, Jane" {
		t.Fatalf("creator = %q", m.Creator)
	}
	if m.Title != "Letters of George Washington Carver" {
		t.Fatalf("title = %q", m.Title)
	}
	if m.Date != "2019-03-05" {
		t.Fatalf("date = %q", m.Date)
	}
	if m.Type != sources.ReportType || m.Target != "https://example.org/reports/1.pdf" {
		t.Fatalf("unexpected metadata: %+v", m)
	}
}

func TestParseReportMissingFields(t *testing.T) {
	if _, err := sources.ParseReport("Title: Something\n", "x"); err == nil {
		t.Fatal("expected error without conservator")
	}
	if _, err := sources.ParseReport("Conservator: A\nCall Number: 1\n", "x"); err == nil {
		t.Fatal("expected error without title")
	}
}

func TestISODate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2019-03-05", "2019-03-05", true},
		{"March 5, 2019", "2019-03-05", true},
		{"Mar. 5, 2019", "2019-03-05", true},
		{" 5 March  2019 ", "2019-03-05", true},
		{"3/5/2019", "2019-03-05", true},
		{"March 2019", "2019-03-01", true},
		{"circa 1900", "circa 1900", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := sources.ISODate(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ISODate(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCommandExtractor(t *testing.T) {
	bin := testsupport.WriteExecutable(t, t.TempDir(), "pdftotext", `cat`)
	ex := sources.CommandExtractor{Binary: bin}
	text, err := ex.ExtractText(context.Background(), []byte(reportText))
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if text != reportText {
		t.Fatalf("unexpected text %q", text)
	}

	failing := testsupport.WriteExecutable(t, t.TempDir(), "pdftotext", `echo "Syntax Error: Couldn't read xref table" >&2; exit 1`)
	_, err = sources.CommandExtractor{Binary: failing}.ExtractText(context.Background(), []byte("%PDF"))
	if err == nil || !strings.Contains(err.Error(), "xref") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}

type textFunc func(context.Context, []byte) (string, error)

func (f textFunc) ExtractText(ctx context.Context, data []byte) (string, error) { return f(ctx, data) }

func TestReportReader(t *testing.T) {
	reader := sources.ReportReader{Extractor: textFunc(func(context.Context, []byte) (string, error) {
		return reportText, nil
	})}
	loc := filepath.Join("reports", "1.pdf")
	m, err := reader.Read(context.Background(), sources.Document{Location: loc, Data: []byte("%PDF")})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if m.Target != loc {
		t.Fatalf("target = %q", m.Target)
	}

	boom := errors.New("boom")
	reader.Extractor = textFunc(func(context.Context, []byte) (string, error) { return "", boom })
	if _, err := reader.Read(context.Background(), sources.Document{Location: loc}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped extractor error, got %v", err)
	}
}

type infoFunc func(context.Context, []byte) (map[string]string, error)

func (f infoFunc) ExtractMetadata(ctx context.Context, data []byte) (map[string]string, error) {
	return f(ctx, data)
}

func TestParseInfo(t *testing.T) {
	info := sources.ParseInfo("Title:          Letters of G. W. Carver\nAuthor:         Smith, Jane\nCreator:\nCreationDate:   2019-03-05T10:12:00-06\nPages:          4\n")
	if info["Title"] != "Letters of G. W. Carver" || info["Author"] != "Smith, Jane" || info["Pages"] != "4" {
		t.Fatalf("unexpected info %v", info)
	}
	if _, ok := info["Creator"]; ok {
		t.Fatalf("empty value kept: %v", info)
	}
}

func TestInfoCommand(t *testing.T) {
	bin := testsupport.WriteExecutable(t, t.TempDir(), "pdfinfo", `test "$1" = -isodates && test -s "$2" && printf 'Title: Minutes\nAuthor: Doe, John\n'`)
	info, err := sources.InfoCommand{Binary: bin}.ExtractMetadata(context.Background(), []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("ExtractMetadata: %v", err)
	}
	if info["Title"] != "Minutes" || info["Author"] != "Doe, John" {
		t.Fatalf("unexpected info %v", info)
	}

	failing := testsupport.WriteExecutable(t, t.TempDir(), "pdfinfo", `echo "Syntax Error: May not be a PDF file" >&2; exit 1`)
	if _, err := (sources.InfoCommand{Binary: failing}).ExtractMetadata(context.Background(), nil); err == nil || !strings.Contains(err.Error(), "May not be a PDF") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}

func TestReportReaderFallsBackToDocumentProperties(t *testing.T) {
	const bare = "Conservation Treatment Report\nConservator: Smith, Jane\nCall Number: MS-0021\n"
	var infoCalls int
	reader := sources.ReportReader{
		Extractor: textFunc(func(context.Context, []byte) (string, error) { return bare, nil }),
		Info: infoFunc(func(context.Context, []byte) (map[string]string, error) {
			infoCalls++
			return map[string]string{
				"Title":        "Letters  of Carver",
				"Author":       "Someone Else",
				"CreationDate": "2019-03-05T10:12:00-06",
			}, nil
		}),
	}
	m, err := reader.Read(context.Background(), sources.Document{Location: "r.pdf"})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if m.Title != "Letters of Carver" || m.Creator != "Smith, Jane" || m.Date != "2019-03-05" {
		t.Fatalf("unexpected metadata %+v", m)
	}

	reader.Extractor = textFunc(func(context.Context, []byte) (string, error) { return reportText, nil })
	infoCalls = 0
	if _, err := reader.Read(context.Background(), sources.Document{Location: "r.pdf"}); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if infoCalls != 0 {
		t.Fatalf("properties read for a complete report")
	}

	boom := errors.New("boom")
	reader.Extractor = textFunc(func(context.Context, []byte) (string, error) { return bare, nil })
	reader.Info = infoFunc(func(context.Context, []byte) (map[string]string, error) { return nil, boom })
	if _, err := reader.Read(context.Background(), sources.Document{Location: "r.pdf"}); !errors.Is(err, boom) {
		t.Fatalf("expected properties error, got %v", err)
	}
}
