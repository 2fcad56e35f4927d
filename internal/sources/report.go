package sources

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"arkimedes/internal/services"
)

// TextExtractor renders a document, such as a PDF, to plain text.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// CommandExtractor runs an external converter that reads the document on
// stdin and writes text to stdout. Args default to pdftotext's "- -".
type CommandExtractor struct {
	Binary string
	Args   []string
}

// ExtractText implements TextExtractor.
func (c CommandExtractor) ExtractText(ctx context.Context, data []byte) (string, error) {
	binary := strings.TrimSpace(c.Binary)
	if binary == "" {
		binary = "pdftotext"
	}
	args := c.Args
	if len(args) == 0 {
		args = []string{"-q", "-", "-"}
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdin = bytes.NewReader(data)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "sources", binary, strings.TrimSpace(stderr.String()), err)
	}
	return stdout.String(), nil
}

// ReportType is the dc.type given to conservation reports.
const ReportType = "Text"

var (
	titleLabel      = regexp.MustCompile(`Title\s*:`)
	nextLabel       = regexp.MustCompile(`\w+/?\w+:`)
	dateLabel       = regexp.MustCompile(`Date of report\s*:`)
	conservatorWord = regexp.MustCompile(`Conservator`)
	callNumberWord  = regexp.MustCompile(`Call Number`)
)

// ParseReport extracts metadata from the text of a conservation report.
// The report labels its fields "Conservator:", "Call Number", "Title:" and
// "Date of report:"; line breaks count as spaces. target becomes the
// record's target. A report without a conservator or title is an error.
func ParseReport(text, target string) (Metadata, error) {
	m := scanReport(text, target)
	return m, m.reportError()
}

func scanReport(text, target string) Metadata {
	text = strings.NewReplacer("\r", "", "\n", " ").Replace(text)
	m := Metadata{Target: target, Type: ReportType}

	cons := conservatorWord.FindStringIndex(text)
	call := callNumberWord.FindStringIndex(text)
	if cons != nil && call != nil && call[0] >= cons[1] {
		creator := text[cons[1]:call[0]]
		if _, after, ok := strings.Cut(creator, ":"); ok {
			creator = after
		}
		m.Creator = clean(creator)
	}

	if title := titleLabel.FindStringIndex(text); title != nil {
		rest := text[title[1]:]
		if end := nextLabel.FindStringIndex(rest); end != nil {
			rest = rest[:end[0]]
		}
		m.Title = clean(rest)
	}

	if date := dateLabel.FindStringIndex(text); date != nil {
		raw := text[date[1]:]
		if end := conservatorWord.FindStringIndex(raw); end != nil {
			raw = raw[:end[0]]
		}
		m.Date, _ = ISODate(raw)
	}
	return m
}

func (m Metadata) reportError() error {
	switch {
	case m.Creator == "":
		return errors.New(`report has no "Conservator" field before "Call Number"`)
	case m.Title == "":
		return errors.New(`report has no "Title:" field`)
	}
	return nil
}

// ReportReader extracts and parses conservation reports. When Info is set,
// document properties fill in a title, creator or date the text lacks.
type ReportReader struct {
	Extractor TextExtractor
	Info      MetadataExtractor
}

// Read parses one report document; its location becomes the target.
func (r ReportReader) Read(ctx context.Context, doc Document) (Metadata, error) {
	if r.Extractor == nil {
		return Metadata{}, errors.New("text extractor required")
	}
	text, err := r.Extractor.ExtractText(ctx, doc.Data)
	if err != nil {
		return Metadata{}, fmt.Errorf("extract %s: %w", doc.Location, err)
	}
	m := scanReport(text, doc.Location)
	if r.Info != nil && (m.Creator == "" || m.Title == "" || m.Date == "") {
		info, err := r.Info.ExtractMetadata(ctx, doc.Data)
		if err != nil && m.reportError() != nil {
			return m, fmt.Errorf("read properties of %s: %w", doc.Location, err)
		}
		m = fillFromInfo(m, info)
	}
	if err := m.reportError(); err != nil {
		return m, fmt.Errorf("%s: %w", doc.Location, err)
	}
	return m, nil
}
