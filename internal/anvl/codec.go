package anvl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
)

const (
	separator    = ':'
	headerPrefix = "::"
	hexDigits    = "0123456789ABCDEF"
)

// EscapeKey percent-escapes a key for the wire format.
func EscapeKey(key string) string { return escape(key, true) }

// EscapeValue percent-escapes a value for the wire format.
func EscapeValue(value string) string { return escape(value, false) }

func escape(s string, isKey bool) string {
	if !needsEscape(s, isKey) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '%' || c == '\n' || c == '\r' || (isKey && c == separator) {
			b.WriteByte('%')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0F])
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func needsEscape(s string, isKey bool) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '\n', '\r':
			return true
		case separator:
			if isKey {
				return true
			}
		}
	}
	return false
}

// Unescape reverses percent-escaping. Any %XX sequence is decoded; a % that
// is not followed by two hex digits is an error.
func Unescape(s string) (string, error) {
	if !strings.Contains(s, "%") {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+2 >= len(s) {
			return "", fmt.Errorf("truncated escape at offset %d", i)
		}
		hi, okHi := unhex(s[i+1])
		lo, okLo := unhex(s[i+2])
		if !okHi || !okLo {
			return "", fmt.Errorf("invalid escape %q at offset %d", s[i:i+3], i)
		}
		b.WriteByte(hi<<4 | lo)
		i += 2
	}
	return b.String(), nil
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// Encode renders a record as one `key: value` line per pair, without a
// trailing newline.
func Encode(r Record) string {
	var b strings.Builder
	for i, p := range r.pairs {
		if i > 0 {
			b.WriteByte('\n')
		}
		writePair(&b, p)
	}
	return b.String()
}

func writePair(b *strings.Builder, p Pair) {
	b.WriteString(EscapeKey(p.Key))
	b.WriteString(": ")
	b.WriteString(EscapeValue(p.Value))
}

// Decode parses a single record. Blank lines are ignored; every other line
// must carry a key/value pair.
func Decode(text string) (Record, error) {
	b := newBuilder()
	for n, line := range lines(text) {
		if isBlank(line) {
			continue
		}
		if err := b.add(n, line); err != nil {
			return Record{}, err
		}
	}
	return b.record(), nil
}

// EncodeAll renders records in the multi-record form: records are separated
// by a blank line and a record whose first key is the identifier opens with a
// `:: <identifier>` header. Empty records have no representation and are
// skipped.
func EncodeAll(records []Record) string {
	var b strings.Builder
	first := true
	for _, r := range records {
		if r.IsEmpty() {
			continue
		}
		if !first {
			b.WriteString("\n\n")
		}
		first = false
		writeBlock(&b, r)
	}
	return b.String()
}

func writeBlock(b *strings.Builder, r Record) {
	pairs := r.pairs
	if pairs[0].Key == KeyIdentifier {
		b.WriteString(headerPrefix)
		b.WriteByte(' ')
		b.WriteString(EscapeValue(pairs[0].Value))
		pairs = pairs[1:]
		if len(pairs) > 0 {
			b.WriteByte('\n')
		}
	}
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('\n')
		}
		writePair(b, p)
	}
}

// DecodeAll parses the multi-record form produced by EncodeAll and by
// registry batch downloads.
func DecodeAll(text string) ([]Record, error) {
	var out []Record
	for rec, err := range Scan(strings.NewReader(text)) {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Scan lazily decodes multi-record text from r. Iteration stops after the
// first error.
func Scan(r io.Reader) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		b := newBuilder()
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := strings.TrimSuffix(scanner.Text(), "\r")
			if isBlank(line) {
				if !b.empty() {
					if !yield(b.record(), nil) {
						return
					}
					b = newBuilder()
				}
				continue
			}
			if err := b.add(lineNo, line); err != nil {
				yield(Record{}, err)
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(Record{}, &FormatError{Line: lineNo + 1, Reason: "read input", Err: err})
			return
		}
		if !b.empty() {
			yield(b.record(), nil)
		}
	}
}

// WriteAll streams records to w in the multi-record form, terminating each
// record with a blank line so output can be appended to across runs.
func WriteAll(w io.Writer, records ...Record) error {
	for _, r := range records {
		if r.IsEmpty() {
			continue
		}
		var b strings.Builder
		writeBlock(&b, r)
		b.WriteString("\n\n")
		if _, err := io.WriteString(w, b.String()); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	return nil
}

// ReadAll decodes every record from r.
func ReadAll(r io.Reader) ([]Record, error) {
	var out []Record
	for rec, err := range Scan(r) {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

type builder struct {
	pairs []Pair
	seen  map[string]int
}

func newBuilder() *builder {
	return &builder{seen: make(map[string]int)}
}

func (b *builder) empty() bool { return len(b.pairs) == 0 }

func (b *builder) record() Record {
	rec := Record{pairs: b.pairs, index: make(map[string]int, len(b.pairs))}
	for i, p := range b.pairs {
		rec.index[p.Key] = i
	}
	return rec
}

func (b *builder) add(lineNo int, line string) error {
	key, value, err := splitLine(line)
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) {
			fe.Line = lineNo
			fe.Content = line
			return fe
		}
		return &FormatError{Line: lineNo, Content: line, Reason: "invalid line", Err: err}
	}
	if first, dup := b.seen[key]; dup {
		return &FormatError{
			Line:    lineNo,
			Content: line,
			Reason:  fmt.Sprintf("duplicate key %q (first seen on line %d)", key, first),
		}
	}
	b.seen[key] = lineNo
	b.pairs = append(b.pairs, Pair{Key: key, Value: value})
	return nil
}

func splitLine(line string) (string, string, error) {
	if strings.HasPrefix(line, headerPrefix) {
		value, err := Unescape(trimOneSpace(line[len(headerPrefix):]))
		if err != nil {
			return "", "", &FormatError{Reason: "unescape identifier header", Err: err}
		}
		return KeyIdentifier, value, nil
	}
	idx := strings.IndexByte(line, separator)
	if idx < 0 {
		return "", "", &FormatError{Reason: "missing ':' separator"}
	}
	key, err := Unescape(line[:idx])
	if err != nil {
		return "", "", &FormatError{Reason: "unescape key", Err: err}
	}
	value, err := Unescape(trimOneSpace(line[idx+1:]))
	if err != nil {
		return "", "", &FormatError{Reason: "unescape value", Err: err}
	}
	return key, value, nil
}

func trimOneSpace(s string) string {
	if strings.HasPrefix(s, " ") {
		return s[1:]
	}
	return s
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

// lines iterates over the lines of text with 1-based numbers, dropping a
// trailing carriage return from each.
func lines(text string) iter.Seq2[int, string] {
	return func(yield func(int, string) bool) {
		n := 0
		for line := range strings.Lines(text) {
			n++
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")
			if !yield(n, line) {
				return
			}
		}
	}
}
