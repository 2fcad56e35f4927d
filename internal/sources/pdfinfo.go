package sources

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"arkimedes/internal/services"
)

// MetadataExtractor reads document-level properties such as Title and
// Author from a document.
type MetadataExtractor interface {
	ExtractMetadata(ctx context.Context, data []byte) (map[string]string, error)
}

// InfoCommand runs pdfinfo on a temporary copy of the document.
type InfoCommand struct {
	Binary string
}

// ExtractMetadata implements MetadataExtractor.
func (c InfoCommand) ExtractMetadata(ctx context.Context, data []byte) (map[string]string, error) {
	binary := strings.TrimSpace(c.Binary)
	if binary == "" {
		binary = "pdfinfo"
	}
	tmp, err := os.CreateTemp("", "arkimedes-*.pdf")
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "sources", "stage pdf", err.Error(), err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, services.Wrap(services.ErrExternalTool, "sources", "stage pdf", err.Error(), err)
	}
	if err := tmp.Close(); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "sources", "stage pdf", err.Error(), err)
	}

	cmd := exec.CommandContext(ctx, binary, "-isodates", tmp.Name())
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "sources", binary, strings.TrimSpace(stderr.String()), err)
	}
	return ParseInfo(stdout.String()), nil
}

// ParseInfo reads pdfinfo's "Key:   value" listing. Keys without a value
// are left out.
func ParseInfo(out string) map[string]string {
	info := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		info[key] = value
	}
	return info
}

// fillFromInfo supplies fields the report text lacked from the document
// properties. Dates come from CreationDate in pdfinfo's ISO form.
func fillFromInfo(m Metadata, info map[string]string) Metadata {
	if m.Title == "" {
		m.Title = clean(info["Title"])
	}
	if m.Creator == "" {
		m.Creator = clean(info["Author"])
	}
	if m.Date == "" {
		if created := info["CreationDate"]; len(created) >= len(time.DateOnly) {
			if t, err := time.Parse(time.DateOnly, created[:len(time.DateOnly)]); err == nil {
				m.Date = t.Format(time.DateOnly)
			}
		}
	}
	return m
}
