package main

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"arkimedes/internal/anvl"
	"arkimedes/internal/batch"
	"arkimedes/internal/deps"
	"arkimedes/internal/ezid"
	"arkimedes/internal/tabular"
)

func TestDetectSource(t *testing.T) {
	tests := []struct {
		location string
		want     string
		wantErr  bool
	}{
		{"rows.tsv", sourceTSV, false},
		{"rows.TAB", sourceTSV, false},
		{"rows.csv", sourceCSV, false},
		{"records.anvl", sourceANVL, false},
		{"records.txt", sourceANVL, false},
		{"findingaid.xml", sourceEAD, false},
		{"https://example.org/reports/r1.pdf?download=1", sourceReport, false},
		{"notes", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.location, func(t *testing.T) {
			got, err := detectSource([]string{tc.location})
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("detectSource = %q, %v; want %q", got, err, tc.want)
			}
		})
	}
	if _, err := detectSource(nil); err == nil {
		t.Fatal("expected error without input")
	}
}

func TestMintOnlyLeavesOtherActionsAlone(t *testing.T) {
	transform := mintOnly(func(_ context.Context, rec anvl.Record) anvl.Record {
		return rec.With("dc.type", "Text")
	})
	row := tabular.Row{Number: 2, Record: anvl.MustNew(anvl.Pair{Key: "dc.title", Value: "x"})}

	rec, err := transform(context.Background(), ezid.ActionMint, row)
	if err != nil || rec.Value("dc.type") != "Text" {
		t.Fatalf("mint row not transformed: %s %v", rec, err)
	}
	rec, err = transform(context.Background(), ezid.ActionUpdate, row)
	if err != nil || rec.Has("dc.type") {
		t.Fatalf("update row transformed: %s %v", rec, err)
	}
}

func TestRecordInputParsesFields(t *testing.T) {
	in := recordInput{file: "-", fields: []string{"dc.title = Override", "dc.date=1931"}}
	rec, err := in.read(strings.NewReader("dc.title: Original\ndc.creator: Smith\n"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := "dc.title: Override\ndc.creator: Smith\ndc.date: 1931"
	if got := anvl.Encode(rec); got != want {
		t.Fatalf("got\n%s\nwant\n%s", got, want)
	}
}

func TestRenderRecordDiff(t *testing.T) {
	before := "_id: ark:/99999/fk41\ndc.title: Old\ndc.date: 1931\n"
	after := "_id: ark:/99999/fk41\ndc.title: New\ndc.date: 1931\n"
	got := renderRecordDiff(before, after, false)
	want := "  _id: ark:/99999/fk41\n- dc.title: Old\n+ dc.title: New\n  dc.date: 1931\n"
	if got != want {
		t.Fatalf("diff mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
	if colored := renderRecordDiff(before, after, true); !strings.Contains(colored, ansiGreen+"+ dc.title: New"+ansiReset) {
		t.Fatalf("expected coloured insert, got %q", colored)
	}
}

func TestRenderStatusLine(t *testing.T) {
	got := renderStatusLine("Registry", statusWarn, "slow", false)
	if got != "  Registry:            [WARN] slow" {
		t.Fatalf("unexpected line %q", got)
	}
	colored := renderStatusLine("Registry", statusError, "", true)
	if !strings.HasPrefix(colored, ansiRed) || !strings.HasSuffix(colored, ansiReset) {
		t.Fatalf("expected red line, got %q", colored)
	}
}

func TestDependencyLines(t *testing.T) {
	lines := dependencyLines([]deps.Status{
		{Name: "pdftotext", Command: "pdftotext", Path: "/usr/bin/pdftotext", Available: true},
		{Name: "pdfinfo", Command: "pdfinfo", Optional: true, Detail: "not found"},
	}, false)
	joined := strings.Join(lines, "\n")
	requireContains(t, joined, "[OK] Ready (command: /usr/bin/pdftotext)")
	requireContains(t, joined, "[WARN] not found")
	requireContains(t, joined, "Missing tools")
}

func TestShouldColorizeIgnoresBuffers(t *testing.T) {
	var sb strings.Builder
	if shouldColorize(&sb) {
		t.Fatal("buffers are never terminals")
	}
}

func TestBatchProgressLogsEveryInterval(t *testing.T) {
	var buf bytes.Buffer
	progress := batchProgress(slog.New(slog.NewTextHandler(&buf, nil)), 2)

	progress(batch.Result{Row: 2, Status: batch.StatusSucceeded})
	if buf.Len() != 0 {
		t.Fatalf("expected no output after one row, got %q", buf.String())
	}
	progress(batch.Result{Row: 3, Status: batch.StatusFailed})
	progress(batch.Result{Row: 4, Status: batch.StatusSucceeded})
	progress(batch.Result{Row: 5, Status: batch.StatusSkipped})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two progress lines, got %q", buf.String())
	}
	requireContains(t, lines[0], "rows_done=2")
	requireContains(t, lines[0], "rows_failed=1")
	requireContains(t, lines[1], "rows_done=4")
	requireContains(t, lines[1], "rows_failed=2")
	requireContains(t, lines[1], "last_row=5")
}
