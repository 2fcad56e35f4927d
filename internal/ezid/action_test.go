package ezid_test

import (
	"errors"
	"strings"
	"testing"

	"arkimedes/internal/anvl"
	"arkimedes/internal/ezid"
)

func TestParseAction(t *testing.T) {
	cases := map[string]ezid.Action{
		"mint":     ezid.ActionMint,
		" Update ": ezid.ActionUpdate,
		"QUERY":    ezid.ActionQuery,
	}
	for input, want := range cases {
		got, err := ezid.ParseAction(input)
		if err != nil {
			t.Fatalf("ParseAction(%q): %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseAction(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestParseActionRejectsUnknown(t *testing.T) {
	for _, input := range []string{"delete", "", "view", "minted"} {
		_, err := ezid.ParseAction(input)
		var invalid *ezid.InvalidActionError
		if !errors.As(err, &invalid) {
			t.Fatalf("ParseAction(%q): expected InvalidActionError, got %v", input, err)
		}
		if invalid.Value != input {
			t.Fatalf("expected error to name %q, got %q", input, invalid.Value)
		}
		if ezid.Classify(err) != ezid.KindInvalid {
			t.Fatalf("unexpected class %q", ezid.Classify(err))
		}
		if !strings.Contains(err.Error(), "expected mint, update or query") {
			t.Fatalf("error does not list the actions: %v", err)
		}
	}
}

func TestNewRequestVariants(t *testing.T) {
	rec := anvl.MustNew(
		anvl.Pair{Key: "_id", Value: "ark:/99999/fk41"},
		anvl.Pair{Key: "dc.title", Value: "Report"},
	)

	req, err := ezid.NewRequest(ezid.ActionUpdate, rec, "")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	update, ok := req.(ezid.UpdateRequest)
	if !ok {
		t.Fatalf("expected UpdateRequest, got %T", req)
	}
	if update.Identifier != "ark:/99999/fk41" || update.Record.Has("_id") {
		t.Fatalf("unexpected update request %+v", update)
	}

	req, err = ezid.NewRequest(ezid.ActionQuery, rec, "")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if q, ok := req.(ezid.QueryRequest); !ok || q.Identifier != "ark:/99999/fk41" {
		t.Fatalf("unexpected query request %#v", req)
	}
}

func TestNewRequestMintStripsEmptyIdentifier(t *testing.T) {
	rec := anvl.MustNew(
		anvl.Pair{Key: "_id", Value: ""},
		anvl.Pair{Key: "dc.title", Value: "Report"},
	)
	req, err := ezid.NewRequest(ezid.ActionMint, rec, "ark:/99999/fk4")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	mint := req.(ezid.MintRequest)
	if mint.Record.Has("_id") {
		t.Fatal("expected empty _id to be dropped")
	}
	if mint.Shoulder != "ark:/99999/fk4" {
		t.Fatalf("unexpected shoulder %q", mint.Shoulder)
	}
}

func TestNewRequestValidation(t *testing.T) {
	withID := anvl.MustNew(anvl.Pair{Key: "_id", Value: "ark:/99999/fk41"})
	if _, err := ezid.NewRequest(ezid.ActionMint, withID, ""); ezid.Classify(err) != ezid.KindValidation {
		t.Fatalf("mint with identifier: expected validation error, got %v", err)
	}
	empty := anvl.MustNew(anvl.Pair{Key: "dc.title", Value: "x"})
	for _, action := range []ezid.Action{ezid.ActionUpdate, ezid.ActionQuery} {
		if _, err := ezid.NewRequest(action, empty, ""); ezid.Classify(err) != ezid.KindValidation {
			t.Fatalf("%s without identifier: expected validation error, got %v", action, err)
		}
	}
}

func TestNewRequestRejectsOutOfRangeAction(t *testing.T) {
	_, err := ezid.NewRequest(ezid.Action(7), anvl.Record{}, "")
	var invalid *ezid.InvalidActionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidActionError, got %v", err)
	}
}

func TestActionText(t *testing.T) {
	var a ezid.Action
	if err := a.UnmarshalText([]byte("update")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	text, err := a.MarshalText()
	if err != nil || string(text) != "update" {
		t.Fatalf("MarshalText = %q, %v", text, err)
	}
	if !ezid.ActionMint.Mutates() || ezid.ActionQuery.Mutates() {
		t.Fatal("unexpected Mutates result")
	}
}
