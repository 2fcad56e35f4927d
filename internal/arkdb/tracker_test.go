package arkdb_test

import (
	"context"
	"errors"
	"testing"

	"arkimedes/internal/anvl"
	"arkimedes/internal/arkdb"
	"arkimedes/internal/ezid"
	"arkimedes/internal/testsupport"
)

const shoulder = "ark:/99999/fk4"

func newTracker(t *testing.T, opts arkdb.TrackerOptions) (*arkdb.Tracker, *arkdb.Store, *testsupport.Registry) {
	t.Helper()
	reg := testsupport.NewRegistry(t)
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	client, err := ezid.New(ezid.Config{BaseURL: reg.URL, Shoulder: shoulder})
	if err != nil {
		t.Fatalf("ezid.New: %v", err)
	}
	return arkdb.NewTracker(client, store, opts), store, reg
}

func mintRequest(target, title string) ezid.MintRequest {
	return ezid.MintRequest{
		Shoulder: shoulder,
		Record: anvl.MustNew(
			anvl.Pair{Key: "_target", Value: target},
			anvl.Pair{Key: "dc.title", Value: title},
		),
	}
}

func TestTrackerRecordsMintAndRejectsDuplicateTarget(t *testing.T) {
	tracker, store, reg := newTracker(t, arkdb.TrackerOptions{DuplicateCheck: true})
	ctx := context.Background()

	res, err := tracker.Execute(ctx, mintRequest("https://example.org/a", "Report"))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	mirrored, err := store.Get(ctx, res.Identifier)
	if err != nil || mirrored == nil {
		t.Fatalf("expected mirrored record, got %v %v", mirrored, err)
	}
	if mirrored.Target != "https://example.org/a" {
		t.Fatalf("unexpected mirrored target %q", mirrored.Target)
	}

	_, err = tracker.Execute(ctx, mintRequest("https://example.org/a", "Report again"))
	var dup *arkdb.DuplicateTargetError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateTargetError, got %v", err)
	}
	if dup.Identifier != res.Identifier {
		t.Fatalf("duplicate names %q, want %q", dup.Identifier, res.Identifier)
	}
	if got := ezid.Classify(err); got != "duplicate" {
		t.Fatalf("Classify = %q", got)
	}
	if calls := reg.Calls("POST /shoulder/" + shoulder); calls != 1 {
		t.Fatalf("expected one mint call, got %d", calls)
	}
}

func TestTrackerWithoutDuplicateCheckMintsAgain(t *testing.T) {
	tracker, _, reg := newTracker(t, arkdb.TrackerOptions{})
	ctx := context.Background()
	for range 2 {
		if _, err := tracker.Execute(ctx, mintRequest("https://example.org/a", "Report")); err != nil {
			t.Fatalf("mint: %v", err)
		}
	}
	if calls := reg.Calls("POST /shoulder/" + shoulder); calls != 2 {
		t.Fatalf("expected two mint calls, got %d", calls)
	}
}

func TestTrackerReusesReplaceableIdentifier(t *testing.T) {
	tracker, store, reg := newTracker(t, arkdb.TrackerOptions{DuplicateCheck: true, Reuse: true})
	ctx := context.Background()

	placeholder := anvl.MustNew(
		anvl.Pair{Key: "_target", Value: "https://example.org/old"},
		anvl.Pair{Key: "dc.title", Value: "Front"},
		anvl.Pair{Key: "iastate.replaceable", Value: "True"},
	)
	reg.Put("ark:/99999/fk4old", placeholder)
	if _, err := store.Upsert(ctx, placeholder.WithFirst("_id", "ark:/99999/fk4old")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	res, err := tracker.Execute(ctx, mintRequest("https://example.org/new", "Field notes"))
	if err != nil {
		t.Fatalf("mint with reuse: %v", err)
	}
	if res.Identifier != "ark:/99999/fk4old" {
		t.Fatalf("expected reused identifier, got %q", res.Identifier)
	}
	if reg.Calls("POST /shoulder/"+shoulder) != 0 {
		t.Fatal("reuse must not mint")
	}
	remote, _ := reg.Record("ark:/99999/fk4old")
	if remote.Value("dc.title") != "Field notes" || remote.Value("iastate.replaceable") != "False" {
		t.Fatalf("registry record not rewritten: %s", remote)
	}

	mirrored, err := store.Get(ctx, "ark:/99999/fk4old")
	if err != nil || mirrored == nil {
		t.Fatalf("Get: %v %v", mirrored, err)
	}
	if mirrored.Replaceable || mirrored.Claimed {
		t.Fatalf("reused record should be neither replaceable nor claimed: %+v", mirrored)
	}
	if mirrored.Target != "https://example.org/new" {
		t.Fatalf("mirror target = %q", mirrored.Target)
	}

	// No placeholder left: the next mint goes to the registry.
	res, err = tracker.Execute(ctx, mintRequest("https://example.org/other", "Other"))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if res.Identifier != shoulder+"0001" {
		t.Fatalf("expected fresh mint, got %q", res.Identifier)
	}
}

func TestTrackerReleasesClaimOnFailure(t *testing.T) {
	tracker, store, _ := newTracker(t, arkdb.TrackerOptions{Reuse: true})
	ctx := context.Background()
	// Known to the mirror but not to the registry, so the update fails.
	testsupport.Seed(t, store, []string{"_id", "ark:/99999/fk4gone", "dc.title", ""})

	_, err := tracker.Execute(ctx, mintRequest("https://example.org/x", "X"))
	var nf *ezid.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	ark, err := store.Get(ctx, "ark:/99999/fk4gone")
	if err != nil || ark == nil || ark.Claimed {
		t.Fatalf("claim should be released: %+v %v", ark, err)
	}
}

func TestTrackerUpdateMergesMirror(t *testing.T) {
	tracker, store, reg := newTracker(t, arkdb.TrackerOptions{})
	ctx := context.Background()
	orig := anvl.MustNew(
		anvl.Pair{Key: "_target", Value: "https://example.org/a"},
		anvl.Pair{Key: "dc.title", Value: "Old"},
		anvl.Pair{Key: "dc.creator", Value: "Smith"},
	)
	reg.Put("ark:/99999/fk41", orig)
	if _, err := store.Upsert(ctx, orig.WithFirst("_id", "ark:/99999/fk41")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err := tracker.Execute(ctx, ezid.UpdateRequest{
		Identifier: "ark:/99999/fk41",
		Record:     anvl.MustNew(anvl.Pair{Key: "dc.title", Value: "New"}),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	ark, err := store.Get(ctx, "ark:/99999/fk41")
	if err != nil || ark == nil {
		t.Fatalf("Get: %v %v", ark, err)
	}
	if ark.Title != "New" || ark.Creator != "Smith" || ark.Target != "https://example.org/a" {
		t.Fatalf("mirror not merged: %+v", ark)
	}
}

func TestTrackerQueryRefreshesMirror(t *testing.T) {
	tracker, store, reg := newTracker(t, arkdb.TrackerOptions{})
	reg.Put("ark:/99999/fk47", anvl.MustNew(anvl.Pair{Key: "dc.title", Value: "Remote"}))

	if _, err := tracker.Execute(context.Background(), ezid.QueryRequest{Identifier: "ark:/99999/fk47"}); err != nil {
		t.Fatalf("query: %v", err)
	}
	ark, err := store.Get(context.Background(), "ark:/99999/fk47")
	if err != nil || ark == nil || ark.Title != "Remote" {
		t.Fatalf("expected mirrored query result, got %+v %v", ark, err)
	}
}
