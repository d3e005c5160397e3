package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/hazyhaar/courtwatch/flatten"
	"github.com/hazyhaar/courtwatch/snapstore"
	"github.com/hazyhaar/courtwatch/warehouse"

	_ "modernc.org/sqlite"
)

var archiveTarget = Target{
	Endpoint: "atp_results_archive",
	Table:    "raw_results_archive",
	Flatten:  flatten.ResultsArchive,
}

const validPayload = `{
  "metadata": {"retrieved_at": "2026-08-30T10:00:00Z"},
  "data": [
    {"year": 2026, "tournament": "Rotterdam", "tournament_id": "t407", "url": null},
    {"year": 2026, "tournament": "Montpellier", "tournament_id": "t375", "url": "/en/scores/archive/montpellier/375/2026/results"}
  ]
}`

func setup(t *testing.T) (*Ingestor, *snapstore.FS, *warehouse.Warehouse) {
	t.Helper()
	store := snapstore.NewFS(t.TempDir())
	wh := warehouse.OpenMemory(t)
	return New(store, wh, nil), store, wh
}

func putSnap(t *testing.T, store *snapstore.FS, endpoint, payload string, captured time.Time) string {
	t.Helper()
	key := snapstore.BuildKey(endpoint, snapstore.StageIncoming, captured)
	if _, err := store.Put(context.Background(), key, []byte(payload)); err != nil {
		t.Fatalf("put: %v", err)
	}
	return key
}

func TestRegisterLoadsOnceThenNoOps(t *testing.T) {
	// WHAT: Registering the same file twice leaves one ledger row, one
	// raw row, and returns the recorded count the second time.
	// WHY: Idempotence under retry is the ledger's whole contract.
	ctx := context.Background()
	in, store, wh := setup(t)
	key := putSnap(t, store, archiveTarget.Endpoint, validPayload, time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC))

	res, err := in.Register(ctx, archiveTarget, key)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if res.AlreadyLoaded || res.RowsLoaded != 2 {
		t.Fatalf("first load: %+v", res)
	}

	again, err := in.Register(ctx, archiveTarget, key)
	if err != nil {
		t.Fatalf("register again: %v", err)
	}
	if !again.AlreadyLoaded || again.RowsLoaded != 2 {
		t.Fatalf("second load: %+v", again)
	}

	entries, _ := wh.ListLedger(ctx, archiveTarget.Endpoint, 10)
	if len(entries) != 1 {
		t.Fatalf("ledger rows: %d", len(entries))
	}
	n, _ := wh.CountRaw(ctx, archiveTarget.Table)
	if n != 1 {
		t.Fatalf("raw rows: %d", n)
	}
}

func TestRegisterMalformedLoadsNothing(t *testing.T) {
	// WHAT: A malformed payload rejects the whole file: no raw row, no
	// ledger row, error surfaced.
	ctx := context.Background()
	in, store, wh := setup(t)
	key := putSnap(t, store, archiveTarget.Endpoint, `{"metadata": {`, time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC))

	if _, err := in.Register(ctx, archiveTarget, key); err == nil {
		t.Fatal("expected error for malformed payload")
	}

	entries, _ := wh.ListLedger(ctx, "", 10)
	if len(entries) != 0 {
		t.Fatalf("ledger should be untouched: %+v", entries)
	}
	n, _ := wh.CountRaw(ctx, archiveTarget.Table)
	if n != 0 {
		t.Fatalf("raw rows: %d", n)
	}
}

func TestRunMovesLoadedAndKeepsFailed(t *testing.T) {
	// WHAT: A cycle over one good and one malformed file loads the
	// good one, moves it to loaded/, and leaves the bad one in
	// incoming/ for the next run.
	ctx := context.Background()
	in, store, wh := setup(t)
	good := putSnap(t, store, archiveTarget.Endpoint, validPayload, time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC))
	bad := putSnap(t, store, archiveTarget.Endpoint, `not json`, time.Date(2026, 8, 30, 11, 0, 0, 0, time.UTC))

	run, err := in.Run(ctx, archiveTarget)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.FilesSeen != 2 || run.Loaded != 1 || run.Failed != 1 || run.Skipped != 0 {
		t.Fatalf("run counters: %+v", run)
	}

	incoming, _ := store.List(ctx, snapstore.IncomingPrefix(archiveTarget.Endpoint))
	if len(incoming) != 1 || incoming[0] != bad {
		t.Fatalf("incoming after run: %v", incoming)
	}
	if _, err := store.Get(ctx, snapstore.LoadedKey(good)); err != nil {
		t.Fatalf("good file not moved: %v", err)
	}

	// The run is recorded.
	runs, _ := wh.ListRuns(ctx, archiveTarget.Endpoint, 5)
	if len(runs) != 1 || runs[0].ID != run.ID {
		t.Fatalf("run log: %+v", runs)
	}
}

func TestRunSecondCycleSkips(t *testing.T) {
	// WHAT: The same source file ingested twice keeps one
	// ledger row with an unchanged rows_loaded.
	ctx := context.Background()
	in, store, wh := setup(t)
	key := putSnap(t, store, archiveTarget.Endpoint, validPayload, time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC))
	uri := store.URI(key)

	if _, err := in.Run(ctx, archiveTarget); err != nil {
		t.Fatalf("run 1: %v", err)
	}

	// Simulate a crash after commit but before the move: the file is
	// back in incoming with the same key, hence the same URI.
	if err := store.Move(ctx, snapstore.LoadedKey(key), key); err != nil {
		t.Fatalf("restage: %v", err)
	}

	run, err := in.Run(ctx, archiveTarget)
	if err != nil {
		t.Fatalf("run 2: %v", err)
	}
	if run.Skipped != 1 || run.Loaded != 0 {
		t.Fatalf("second run counters: %+v", run)
	}

	entry, _ := wh.GetLedgerEntry(ctx, uri)
	if entry == nil || entry.RowsLoaded != 2 {
		t.Fatalf("ledger entry: %+v", entry)
	}
	entries, _ := wh.ListLedger(ctx, "", 10)
	if len(entries) != 1 {
		t.Fatalf("ledger rows: %d", len(entries))
	}
}

func TestCaptureTimeFallsBackToMetadata(t *testing.T) {
	// WHAT: A key without a path timestamp takes captured_at from the
	// payload's retrieved_at.
	ctx := context.Background()
	in, store, wh := setup(t)

	key := "raw/atp_results_archive/incoming/year=2026/month=08/manual-upload.json"
	if _, err := store.Put(ctx, key, []byte(validPayload)); err != nil {
		t.Fatalf("put: %v", err)
	}

	if _, err := in.Register(ctx, archiveTarget, key); err != nil {
		t.Fatalf("register: %v", err)
	}
	rows, _ := wh.ListRaw(ctx, archiveTarget.Table)
	if len(rows) != 1 {
		t.Fatalf("raw rows: %d", len(rows))
	}
	want := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC).UnixMilli()
	if rows[0].CapturedAt != want {
		t.Errorf("captured_at: got %d, want %d", rows[0].CapturedAt, want)
	}
}
