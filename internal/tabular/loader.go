package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"arkimedes/internal/anvl"
)

// Row is one data row converted to a record. Number is the 1-based line on
// which the row starts in the source.
type Row struct {
	Number int
	Record anvl.Record
}

// Opener returns a fresh reader positioned at the start of the source.
type Opener func() (io.ReadCloser, error)

// Loader reads delimited rows from a restartable source.
type Loader struct {
	name      string
	open      Opener
	delimiter rune
}

// Option configures a Loader.
type Option func(*Loader)

// WithDelimiter forces the field delimiter instead of detecting it.
func WithDelimiter(d rune) Option {
	return func(l *Loader) {
		if d != 0 {
			l.delimiter = d
		}
	}
}

// WithName sets the source name used in error messages.
func WithName(name string) Option {
	return func(l *Loader) {
		l.name = name
	}
}

// New constructs a loader around an opener. When no delimiter is forced the
// header line decides: a tab selects TSV, anything else CSV.
func New(open Opener, opts ...Option) (*Loader, error) {
	if open == nil {
		return nil, errors.New("tabular: opener required")
	}
	l := &Loader{open: open}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Open builds a loader for a file on disk. The .tsv and .tab extensions
// select tab separation and .csv selects commas; other names fall back to
// header sniffing.
func Open(path string, opts ...Option) (*Loader, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("tabular: path required")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("tabular: %w", err)
	}
	base := []Option{WithName(filepath.Base(path))}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv", ".tab":
		base = append(base, WithDelimiter('\t'))
	case ".csv":
		base = append(base, WithDelimiter(','))
	}
	return New(func() (io.ReadCloser, error) {
		return os.Open(path)
	}, append(base, opts...)...)
}

// FromString builds a loader over in-memory text.
func FromString(text string, opts ...Option) *Loader {
	l, _ := New(func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(text)), nil
	}, opts...)
	return l
}

// Name returns the source name used in errors.
func (l *Loader) Name() string { return l.name }

// Rows opens the source and lazily yields one record per data row. Iteration
// stops after the first error. Each call starts a new pass and owns its
// reader for the duration of that pass.
func (l *Loader) Rows() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		rc, err := l.open()
		if err != nil {
			yield(Row{}, fmt.Errorf("tabular: open %s: %w", l.displayName(), err))
			return
		}
		defer rc.Close()

		reader, header, err := l.readHeader(rc)
		if err != nil {
			yield(Row{}, err)
			return
		}
		// encoding/csv drops blank lines. With one column a blank line is a
		// row holding an empty value, so the gaps between records are
		// replayed from line positions. Trailing blank lines are ignored.
		single := len(header) == 1
		lastLine := 0
		if single {
			lastLine = endLine(reader, header)
		}

		for {
			fields, err := reader.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				var parseErr *csv.ParseError
				if errors.As(err, &parseErr) {
					yield(Row{}, &SchemaError{Source: l.name, Row: parseErr.StartLine, Reason: parseErr.Err.Error()})
					return
				}
				yield(Row{}, fmt.Errorf("tabular: read %s: %w", l.displayName(), err))
				return
			}
			line, _ := reader.FieldPos(0)
			if single {
				for blank := lastLine + 1; blank < line; blank++ {
					rec, _ := anvl.New(anvl.Pair{Key: header[0]})
					if !yield(Row{Number: blank, Record: rec}, nil) {
						return
					}
				}
				lastLine = endLine(reader, fields)
			}
			if len(fields) != len(header) {
				yield(Row{}, &SchemaError{
					Source: l.name,
					Row:    line,
					Reason: fmt.Sprintf("expected %d fields, found %d", len(header), len(fields)),
				})
				return
			}
			pairs := make([]anvl.Pair, len(header))
			for i, key := range header {
				pairs[i] = anvl.Pair{Key: key, Value: fields[i]}
			}
			rec, err := anvl.New(pairs...)
			if err != nil {
				yield(Row{}, fmt.Errorf("tabular: row %d: %w", line, err))
				return
			}
			if !yield(Row{Number: line, Record: rec}, nil) {
				return
			}
		}
	}
}

// Records drains a full pass into memory.
func (l *Loader) Records() ([]Row, error) {
	var rows []Row
	for row, err := range l.Rows() {
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Header reads only the column names.
func (l *Loader) Header() ([]string, error) {
	rc, err := l.open()
	if err != nil {
		return nil, fmt.Errorf("tabular: open %s: %w", l.displayName(), err)
	}
	defer rc.Close()
	_, header, err := l.readHeader(rc)
	return header, err
}

func (l *Loader) readHeader(rc io.Reader) (*csv.Reader, []string, error) {
	buffered := newPeekReader(rc)
	delimiter := l.delimiter
	if delimiter == 0 {
		first, err := buffered.firstLine()
		if err != nil {
			return nil, nil, fmt.Errorf("tabular: read %s: %w", l.displayName(), err)
		}
		delimiter = ','
		if strings.ContainsRune(first, '\t') {
			delimiter = '\t'
		}
	}

	reader := csv.NewReader(buffered)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = false
	if delimiter == '\t' {
		reader.LazyQuotes = true
	}

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, &SchemaError{Source: l.name, Row: 1, Reason: "no columns: source is empty"}
	}
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return nil, nil, &SchemaError{Source: l.name, Row: parseErr.StartLine, Reason: parseErr.Err.Error()}
		}
		return nil, nil, fmt.Errorf("tabular: read header of %s: %w", l.displayName(), err)
	}

	columns := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if strings.TrimSpace(name) == "" {
			if len(header) == 1 {
				return nil, nil, &SchemaError{Source: l.name, Row: 1, Reason: "no columns in header"}
			}
			return nil, nil, &SchemaError{Source: l.name, Row: 1, Reason: fmt.Sprintf("column %d has an empty name", i+1)}
		}
		if prev, dup := seen[name]; dup {
			return nil, nil, &SchemaError{
				Source: l.name,
				Row:    1,
				Reason: fmt.Sprintf("duplicate column %q (columns %d and %d)", name, prev+1, i+1),
			}
		}
		seen[name] = i
		columns[i] = name
	}
	return reader, columns, nil
}

// endLine reports the line on which the record just read ends. A quoted
// field may span several lines.
func endLine(reader *csv.Reader, fields []string) int {
	last := len(fields) - 1
	line, _ := reader.FieldPos(last)
	return line + strings.Count(fields[last], "\n")
}

func (l *Loader) displayName() string {
	if l.name == "" {
		return "source"
	}
	return l.name
}
