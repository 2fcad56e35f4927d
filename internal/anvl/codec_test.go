package anvl_test

import (
	"errors"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"arkimedes/internal/anvl"
)

func TestEncodeSimpleRecord(t *testing.T) {
	rec := anvl.MustNew(
		anvl.Pair{Key: "a", Value: "b"},
		anvl.Pair{Key: "c", Value: "d"},
		anvl.Pair{Key: "e", Value: "f"},
	)
	if got, want := anvl.Encode(rec), "a: b\nc: d\ne: f"; got != want {
		t.Fatalf("Encode = %q, want %q", got, want)
	}
}

func TestEncodeEscapesStructuralCharacters(t *testing.T) {
	rec := anvl.MustNew(
		anvl.Pair{Key: "dc.title", Value: "line one\nline two"},
		anvl.Pair{Key: "note", Value: "100% done\r"},
		anvl.Pair{Key: "odd:key", Value: "http://example.org/a"},
	)
	want := "dc.title: line one%0Aline two\nnote: 100%25 done%0D\nodd%3Akey: http://example.org/a"
	if got := anvl.Encode(rec); got != want {
		t.Fatalf("Encode = %q, want %q", got, want)
	}
}

func TestDecodeRegistryResponse(t *testing.T) {
	rec, err := anvl.Decode("success: ark:/99999/fk4abc\n_target: https://example.edu/x\ndc.title: Report%0AAnnex\n")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if rec.Value("success") != "ark:/99999/fk4abc" {
		t.Fatalf("unexpected status value %q", rec.Value("success"))
	}
	if rec.Target() != "https://example.edu/x" {
		t.Fatalf("unexpected target %q", rec.Target())
	}
	if rec.Value("dc.title") != "Report\nAnnex" {
		t.Fatalf("unexpected title %q", rec.Value("dc.title"))
	}
}

func TestDecodeIdentifierHeader(t *testing.T) {
	rec, err := anvl.Decode(":: ark/example\na: b\nc: d\ne: https://example.edu")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := anvl.MustNew(
		anvl.Pair{Key: anvl.KeyIdentifier, Value: "ark/example"},
		anvl.Pair{Key: "a", Value: "b"},
		anvl.Pair{Key: "c", Value: "d"},
		anvl.Pair{Key: "e", Value: "https://example.edu"},
	)
	if !rec.Equal(want) {
		t.Fatalf("Decode = %v, want %v", rec.Pairs(), want.Pairs())
	}
}

func TestDecodePreservesUnknownKeysAndOrder(t *testing.T) {
	text := "zz.custom: 1\n_target: http://x\naa.other: 2\n_profile: dc"
	rec, err := anvl.Decode(text)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []string{"zz.custom", "_target", "aa.other", "_profile"}
	got := rec.Keys()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("keys = %v, want %v", got, want)
		}
	}
	if anvl.Encode(rec) != text {
		t.Fatalf("re-encode changed text: %q", anvl.Encode(rec))
	}
}

func TestDecodeBareNewlineFails(t *testing.T) {
	_, err := anvl.Decode("dc.title: first half\nsecond half\ndc.creator: someone")
	var fe *anvl.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FormatError, got %v", err)
	}
	if fe.Line != 2 {
		t.Fatalf("expected line 2, got %d", fe.Line)
	}
	if fe.Content != "second half" {
		t.Fatalf("unexpected content %q", fe.Content)
	}
	if !strings.Contains(fe.Error(), "line 2") {
		t.Fatalf("error message should name the line: %v", fe)
	}
}

func TestDecodeBadEscapeFails(t *testing.T) {
	cases := []string{
		"dc.title: 50%",
		"dc.title: 50%4",
		"dc.title: %ZZ",
		"bad%G1key: v",
	}
	for _, text := range cases {
		_, err := anvl.Decode(text)
		var fe *anvl.FormatError
		if !errors.As(err, &fe) {
			t.Fatalf("Decode(%q): expected FormatError, got %v", text, err)
		}
		if fe.Line != 1 {
			t.Fatalf("Decode(%q): expected line 1, got %d", text, fe.Line)
		}
	}
}

func TestDecodeDuplicateKeyFails(t *testing.T) {
	_, err := anvl.Decode("a: 1\nb: 2\na: 3")
	var fe *anvl.FormatError
	if !errors.As(err, &fe) || fe.Line != 3 {
		t.Fatalf("expected FormatError on line 3, got %v", err)
	}
}

func TestDecodeAcceptsCRLFAndMissingSpace(t *testing.T) {
	rec, err := anvl.Decode("a:b\r\nc: d\r\n")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if rec.Value("a") != "b" || rec.Value("c") != "d" {
		t.Fatalf("unexpected pairs %v", rec.Pairs())
	}
}

func TestDecodeAllSplitsOnBlankLines(t *testing.T) {
	text := ":: ark/example\na: b\nc: d\ne: https://example.edu\n\n:: ark/ex\na: b\nc: d\ne: https://example.org\n\n"
	records, err := anvl.DecodeAll(text)
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[1].Identifier() != "ark/ex" || records[1].Value("e") != "https://example.org" {
		t.Fatalf("unexpected second record %v", records[1].Pairs())
	}
}

func TestDecodeAllReportsAbsoluteLine(t *testing.T) {
	_, err := anvl.DecodeAll("a: 1\n\nb: 2\nbroken\n")
	var fe *anvl.FormatError
	if !errors.As(err, &fe) || fe.Line != 4 {
		t.Fatalf("expected FormatError on line 4, got %v", err)
	}
}

func TestWriteAllAppendsTerminatedBlocks(t *testing.T) {
	var b strings.Builder
	rec := anvl.MustNew(anvl.Pair{Key: anvl.KeyIdentifier, Value: "ark:/1/a"}, anvl.Pair{Key: "dc.title", Value: "A"})
	if err := anvl.WriteAll(&b, rec, rec.With(anvl.KeyIdentifier, "ark:/1/b")); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	want := ":: ark:/1/a\ndc.title: A\n\n:: ark:/1/b\ndc.title: A\n\n"
	if b.String() != want {
		t.Fatalf("WriteAll = %q, want %q", b.String(), want)
	}
}

func TestRoundTripEdgeCases(t *testing.T) {
	cases := []anvl.Record{
		anvl.MustNew(),
		anvl.MustNew(anvl.Pair{Key: "empty", Value: ""}),
		anvl.MustNew(anvl.Pair{Key: "lead", Value: "  two leading spaces"}),
		anvl.MustNew(anvl.Pair{Key: "trail", Value: "trailing  "}),
		anvl.MustNew(anvl.Pair{Key: "", Value: ":starts with colon"}),
		anvl.MustNew(anvl.Pair{Key: ": ", Value: ": "}),
		anvl.MustNew(anvl.Pair{Key: "unicode", Value: "Ærøskøbing — 東京  "}),
		anvl.MustNew(anvl.Pair{Key: "percent", Value: "%0A is literal"}),
		anvl.MustNew(anvl.Pair{Key: "multi\nline:key", Value: "a\r\nb\n\nc"}),
	}
	for _, rec := range cases {
		decoded, err := anvl.Decode(anvl.Encode(rec))
		if err != nil {
			t.Fatalf("Decode(Encode(%v)): %v", rec.Pairs(), err)
		}
		if !decoded.Equal(rec) {
			t.Fatalf("round trip mismatch: got %v, want %v", decoded.Pairs(), rec.Pairs())
		}
	}
}

func recordGenerator() *rapid.Generator[anvl.Record] {
	return rapid.Custom(func(t *rapid.T) anvl.Record {
		keys := rapid.SliceOfDistinct(rapid.String(), rapid.ID[string]).Draw(t, "keys")
		pairs := make([]anvl.Pair, 0, len(keys))
		for _, key := range keys {
			value := rapid.OneOf(
				rapid.String(),
				rapid.StringMatching(`[a-z :%\n\r]{0,12}`),
				rapid.Just(""),
			).Draw(t, "value")
			pairs = append(pairs, anvl.Pair{Key: key, Value: value})
		}
		return anvl.MustNew(pairs...)
	})
}

func TestRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rec := recordGenerator().Draw(t, "record")
		decoded, err := anvl.Decode(anvl.Encode(rec))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !decoded.Equal(rec) {
			t.Fatalf("round trip mismatch: got %v, want %v", decoded.Pairs(), rec.Pairs())
		}
	})
}

func TestRoundTripAllProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		records := rapid.SliceOf(recordGenerator().Filter(func(r anvl.Record) bool {
			return !r.IsEmpty()
		})).Draw(t, "records")
		decoded, err := anvl.DecodeAll(anvl.EncodeAll(records))
		if err != nil {
			t.Fatalf("decode all: %v", err)
		}
		if len(decoded) != len(records) {
			t.Fatalf("expected %d records, got %d", len(records), len(decoded))
		}
		for i := range records {
			if !decoded[i].Equal(records[i]) {
				t.Fatalf("record %d mismatch: got %v, want %v", i, decoded[i].Pairs(), records[i].Pairs())
			}
		}
	})
}
