package profile_test

import (
	"testing"

	"arkimedes/internal/anvl"
	"arkimedes/internal/profile"
)

var isu = profile.Defaults{
	Publisher: "Iowa State University Library",
	Type:      "Collection",
	Profile:   "dc",
	MirrorERC: true,
}

func TestApplyFillsMissingKeys(t *testing.T) {
	rec := anvl.MustNew(
		anvl.Pair{Key: "dc.creator", Value: "Smith, Jane"},
		anvl.Pair{Key: "dc.title", Value: "Field notes"},
		anvl.Pair{Key: "dc.type", Value: "Text"},
		anvl.Pair{Key: "dc.publisher", Value: ""},
	)

	got := isu.Apply(rec)
	want := anvl.MustNew(
		anvl.Pair{Key: "dc.creator", Value: "Smith, Jane"},
		anvl.Pair{Key: "dc.title", Value: "Field notes"},
		anvl.Pair{Key: "dc.type", Value: "Text"},
		anvl.Pair{Key: "dc.publisher", Value: "Iowa State University Library"},
		anvl.Pair{Key: "erc.who", Value: "Smith, Jane"},
		anvl.Pair{Key: "erc.what", Value: "Field notes"},
		anvl.Pair{Key: "_profile", Value: "dc"},
	)
	if !got.Equal(want) {
		t.Fatalf("Apply mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
	if rec.Has("_profile") {
		t.Fatal("Apply mutated its input")
	}
}

func TestApplyWithoutMirror(t *testing.T) {
	d := isu
	d.MirrorERC = false
	got := d.Apply(anvl.MustNew(anvl.Pair{Key: "dc.title", Value: "x"}))
	if got.Has("erc.what") {
		t.Fatalf("unexpected erc mirror: %s", got)
	}
}

func TestBuildOrder(t *testing.T) {
	rec := isu.Build("Smith, Jane", "Papers", "1901/1950", "https://example.org/ead/1")
	want := []string{"erc.who", "erc.what", "erc.when", "dc.creator", "dc.title", "dc.publisher", "dc.date", "dc.type", "_target", "_profile"}
	got := rec.Keys()
	if len(got) != len(want) {
		t.Fatalf("keys = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("key %d = %q, want %q", i, got[i], want[i])
		}
	}
	if rec.Target() != "https://example.org/ead/1" {
		t.Fatalf("target = %q", rec.Target())
	}
}

func TestReplaceable(t *testing.T) {
	tests := []struct {
		title string
		flag  string
		want  bool
	}{
		{"", "", true},
		{"Front", "", true},
		{"back", "", true},
		{"Page 12", "", true},
		{"p. 3", "", true},
		{"P. 3", "", true},
		{"Page twelve", "", false},
		{"Front matter", "", false},
		{"Annual report", "", false},
		{"Annual report", "True", true},
		{"Annual report", "False", false},
	}
	for _, tc := range tests {
		rec := anvl.MustNew(anvl.Pair{Key: "dc.title", Value: tc.title})
		if tc.flag != "" {
			rec = rec.With(profile.KeyReplaceable, tc.flag)
		}
		if got := profile.IsReplaceable(rec); got != tc.want {
			t.Errorf("IsReplaceable(title=%q flag=%q) = %v, want %v", tc.title, tc.flag, got, tc.want)
		}
	}
}
