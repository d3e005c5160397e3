package courtwatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hazyhaar/courtwatch/changes"
	"github.com/hazyhaar/courtwatch/snapstore"
	"github.com/hazyhaar/courtwatch/warehouse"

	_ "modernc.org/sqlite"
)

var (
	v1 = time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	v2 = time.Date(2026, 8, 30, 11, 0, 0, 0, time.UTC)
)

func newTestService(t *testing.T) (*Service, *snapstore.FS) {
	t.Helper()
	store := snapstore.NewFS(t.TempDir())
	wh := warehouse.OpenMemory(t)
	return New(store, wh, nil, nil), store
}

// stage writes a snapshot into incoming/ and ingests the endpoint.
func stage(t *testing.T, svc *Service, store *snapstore.FS, endpoint, payload string, captured time.Time) {
	t.Helper()
	ctx := context.Background()
	key := snapstore.BuildKey(endpoint, snapstore.StageIncoming, captured)
	if _, err := store.Put(ctx, key, []byte(payload)); err != nil {
		t.Fatalf("put %s: %v", key, err)
	}
	run, err := svc.Ingest(ctx, endpoint)
	if err != nil {
		t.Fatalf("ingest %s: %v", endpoint, err)
	}
	if run.Failed != 0 {
		t.Fatalf("ingest %s failed files: %+v", endpoint, run)
	}
}

func archivePayload(tournaments ...string) string {
	return fmt.Sprintf(`{"metadata":{"retrieved_at":"2026-08-30T09:00:00Z"},"data":[%s]}`, join(tournaments))
}

func archiveEntry(id string, url any) string {
	u := "null"
	if s, ok := url.(string); ok {
		u = fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf(`{"year":2026,"tournament":"Tournament %s","tournament_id":%q,"url":%s}`, id, id, u)
}

func resultsPayload(matches ...string) string {
	return fmt.Sprintf(`{"metadata":{},"data":{"year":2026,"tournament_id":"T1","tournament_name":"Rotterdam","matches":[%s]}}`, join(matches))
}

func matchEntry(id, score string) string {
	return fmt.Sprintf(`{"match_id":%q,"round":"R1","player1_id":"p1","player2_id":"p2","score":%q}`, id, score)
}

func join(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}

func TestCompletedTransitionAcrossSnapshots(t *testing.T) {
	// WHAT: result_url null in v1 and populated in v2 yields exactly
	// one state_completed event for that tournament.
	svc, store := newTestService(t)
	ctx := context.Background()

	stage(t, svc, store, "atp_results_archive", archivePayload(archiveEntry("T1", nil)), v1)
	stage(t, svc, store, "atp_results_archive", archivePayload(archiveEntry("T1", "/en/scores/archive/t1/results")), v2)

	events, err := svc.Changes(ctx, "atp_results_archive")
	if err != nil {
		t.Fatalf("changes: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events: %+v", events)
	}
	e := events[0]
	if e.Type != changes.TypeStateCompleted || e.Key != "2026-T1" {
		t.Errorf("event: %+v", e)
	}
	if e.PreviousCapturedAt == nil || !e.PreviousCapturedAt.Equal(v1) {
		t.Errorf("previous captured: %v", e.PreviousCapturedAt)
	}
}

func TestNewChildAcrossSnapshots(t *testing.T) {
	// WHAT: previous match set {m1,m2}, current {m1,m2,m3} yields one
	// new_child for m3 and nothing for m1/m2.
	svc, store := newTestService(t)
	ctx := context.Background()

	stage(t, svc, store, "atp_results", resultsPayload(matchEntry("m1", "64 64"), matchEntry("m2", "76(2) 63")), v1)
	stage(t, svc, store, "atp_results", resultsPayload(matchEntry("m1", "64 64"), matchEntry("m2", "76(2) 63"), matchEntry("m3", "63 62")), v2)

	events, err := svc.Changes(ctx, "atp_results")
	if err != nil {
		t.Fatalf("changes: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events: %+v", events)
	}
	e := events[0]
	if e.Type != changes.TypeNewChild || e.Key != "2026-T1" || e.ChildID != "m3" {
		t.Errorf("event: %+v", e)
	}
}

func TestMatchScoreCompletion(t *testing.T) {
	// WHAT: A match whose score goes empty -> set completes; the brand
	// new match in the same diff does not.
	svc, store := newTestService(t)
	ctx := context.Background()

	stage(t, svc, store, "atp_results", resultsPayload(matchEntry("m1", "")), v1)
	stage(t, svc, store, "atp_results", resultsPayload(matchEntry("m1", "75 64"), matchEntry("m2", "61 60")), v2)

	events, err := svc.Changes(ctx, "atp_results")
	if err != nil {
		t.Fatalf("changes: %v", err)
	}
	var completed, newChild int
	for _, e := range events {
		switch e.Type {
		case changes.TypeStateCompleted:
			completed++
			if e.Key != "2026-T1/m1" {
				t.Errorf("completed key: %s", e.Key)
			}
		case changes.TypeNewChild:
			newChild++
			if e.ChildID != "m2" {
				t.Errorf("new child: %s", e.ChildID)
			}
		}
	}
	if completed != 1 || newChild != 1 {
		t.Fatalf("events: %+v", events)
	}
}

func TestOngoingExcludesCompleted(t *testing.T) {
	// WHAT: A tournament transitioning to a live "current" URL signals
	// completed only; one already live in both versions signals ongoing.
	svc, store := newTestService(t)
	ctx := context.Background()

	stage(t, svc, store, "atp_results_archive", archivePayload(
		archiveEntry("T1", nil),
		archiveEntry("T2", "/en/scores/current/t2/live-scores"),
	), v1)
	stage(t, svc, store, "atp_results_archive", archivePayload(
		archiveEntry("T1", "/en/scores/current/t1/live-scores"),
		archiveEntry("T2", "/en/scores/current/t2/live-scores"),
	), v2)

	events, err := svc.Changes(ctx, "atp_results_archive")
	if err != nil {
		t.Fatalf("changes: %v", err)
	}
	got := map[string]changes.Type{}
	for _, e := range events {
		if prev, dup := got[e.Key]; dup {
			t.Fatalf("key %s signalled twice: %s and %s", e.Key, prev, e.Type)
		}
		got[e.Key] = e.Type
	}
	if got["2026-T1"] != changes.TypeStateCompleted {
		t.Errorf("T1: %s", got["2026-T1"])
	}
	if got["2026-T2"] != changes.TypeStateOngoing {
		t.Errorf("T2: %s", got["2026-T2"])
	}
}

func TestGlobalLatestDropsMissingKeys(t *testing.T) {
	// WHAT: The calendar's current view is the newest snapshot only: a
	// tournament present at v1 but absent at v2 is dropped, not merged.
	svc, store := newTestService(t)
	ctx := context.Background()

	stage(t, svc, store, "atp_tournaments", `{"metadata":{},"data":[{"Id":"404","Name":"Indian Wells"},{"Id":"407","Name":"Rotterdam"}]}`, v1)
	stage(t, svc, store, "atp_tournaments", `{"metadata":{},"data":[{"Id":"407","Name":"Rotterdam"}]}`, v2)

	current, err := svc.Current(ctx, "atp_tournaments")
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if len(current) != 1 || current[0].Key != "407" {
		t.Fatalf("current: %+v", current)
	}
}

func TestSingleVersionEmitsNothing(t *testing.T) {
	// WHAT: The first snapshot has no previous version, so every
	// policy needing a baseline stays silent, even with populated
	// fields and a full child set.
	svc, store := newTestService(t)
	ctx := context.Background()

	stage(t, svc, store, "atp_results", resultsPayload(matchEntry("m1", "64 64")), v1)

	events, err := svc.Changes(ctx, "atp_results")
	if err != nil {
		t.Fatalf("changes: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events on first observation: %+v", events)
	}
}

func TestChangesDeterministicOverHistory(t *testing.T) {
	// WHAT: Re-running the full flatten->resolve->diff over unchanged
	// history yields a byte-identical event set.
	svc, store := newTestService(t)
	ctx := context.Background()

	stage(t, svc, store, "atp_results_archive", archivePayload(archiveEntry("T1", nil), archiveEntry("T2", nil)), v1)
	stage(t, svc, store, "atp_results_archive", archivePayload(
		archiveEntry("T1", "/en/scores/archive/t1/results"),
		archiveEntry("T2", "/en/scores/current/t2/live-scores"),
	), v2)

	first, err := svc.Changes(ctx, "atp_results_archive")
	if err != nil {
		t.Fatalf("changes: %v", err)
	}
	firstJSON, _ := json.Marshal(first)
	for i := 0; i < 3; i++ {
		again, err := svc.Changes(ctx, "atp_results_archive")
		if err != nil {
			t.Fatalf("changes: %v", err)
		}
		againJSON, _ := json.Marshal(again)
		if string(firstJSON) != string(againJSON) {
			t.Fatalf("run %d differs:\n%s\n%s", i, firstJSON, againJSON)
		}
	}
}

func TestUnknownEndpoint(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Changes(ctx, "nope"); !errors.Is(err, ErrUnknownEndpoint) {
		t.Errorf("changes: %v", err)
	}
	if _, err := svc.Ingest(ctx, "nope"); !errors.Is(err, ErrUnknownEndpoint) {
		t.Errorf("ingest: %v", err)
	}
	if _, err := svc.Ledger(ctx, "nope", 10); !errors.Is(err, ErrUnknownEndpoint) {
		t.Errorf("ledger: %v", err)
	}
}

func TestIngestAllAndStats(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	key := snapstore.BuildKey("atp_tournaments", snapstore.StageIncoming, v1)
	if _, err := store.Put(ctx, key, []byte(`{"metadata":{},"data":[{"Id":"407","Name":"Rotterdam"}]}`)); err != nil {
		t.Fatalf("put: %v", err)
	}

	runs, err := svc.IngestAll(ctx)
	if err != nil {
		t.Fatalf("ingest all: %v", err)
	}
	if len(runs) != len(svc.Endpoints()) {
		t.Fatalf("runs: %d", len(runs))
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	byName := map[string]EndpointStats{}
	for _, st := range stats {
		byName[st.Endpoint] = st
	}
	if byName["atp_tournaments"].Snapshots != 1 {
		t.Errorf("tournaments stats: %+v", byName["atp_tournaments"])
	}
	if byName["atp_tournaments"].LatestCapture != v1.UnixMilli() {
		t.Errorf("latest capture: %d", byName["atp_tournaments"].LatestCapture)
	}
	if byName["atp_results"].Snapshots != 0 {
		t.Errorf("results stats: %+v", byName["atp_results"])
	}
}
