// Package ingest loads pending snapshot files into the warehouse,
// gated by the load ledger. Ingestion is idempotent under retry: a
// source URI already in the ledger is a no-op, and the raw row and
// ledger row for a new file commit in one transaction so a crash never
// leaves an orphaned ledger entry or un-ledgered data.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/courtwatch/flatten"
	"github.com/hazyhaar/courtwatch/idgen"
	"github.com/hazyhaar/courtwatch/snapstore"
	"github.com/hazyhaar/courtwatch/warehouse"
)

// Target binds an endpoint to its raw table and flattener. The
// flattener doubles as payload validation: a file it cannot flatten is
// malformed and loads zero rows.
type Target struct {
	Endpoint string
	Table    string
	Flatten  flatten.Func
}

// LoadResult reports the outcome of registering one snapshot file.
type LoadResult struct {
	SourceURI     string `json:"source_uri"`
	RowsLoaded    int64  `json:"rows_loaded"`
	AlreadyLoaded bool   `json:"already_loaded"`
}

// Ingestor runs ingestion cycles against one snapshot store and
// warehouse pair.
type Ingestor struct {
	store  snapstore.Store
	wh     *warehouse.Warehouse
	logger *slog.Logger
	newID  idgen.Generator
}

// New creates an Ingestor. A nil logger falls back to slog.Default().
func New(store snapstore.Store, wh *warehouse.Warehouse, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		store:  store,
		wh:     wh,
		logger: logger,
		newID:  idgen.Prefixed("run_", idgen.New),
	}
}

// Register ingests one snapshot file. If its URI is already in the
// ledger, nothing is written and the previously recorded row count is
// returned. A malformed payload aborts the whole file: zero rows,
// ledger untouched, so the file stays eligible for the next run.
func (in *Ingestor) Register(ctx context.Context, target Target, key string) (*LoadResult, error) {
	uri := in.store.URI(key)

	entry, err := in.wh.GetLedgerEntry(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("ingest: ledger lookup: %w", err)
	}
	if entry != nil {
		return &LoadResult{SourceURI: uri, RowsLoaded: entry.RowsLoaded, AlreadyLoaded: true}, nil
	}

	data, err := in.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}

	captured, err := captureTime(key, data)
	if err != nil {
		return nil, err
	}

	snap := &flatten.Snapshot{
		SourceURI:  uri,
		Endpoint:   target.Endpoint,
		CapturedAt: captured,
		Payload:    data,
	}
	records, err := target.Flatten(snap)
	if err != nil {
		return nil, fmt.Errorf("ingest: %s: %w", key, err)
	}

	now := time.Now().UnixMilli()
	tx, err := in.wh.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ingest: begin: %w", err)
	}
	defer tx.Rollback()

	raw := &warehouse.RawSnapshot{
		SourceURI:  uri,
		Endpoint:   target.Endpoint,
		CapturedAt: captured.UnixMilli(),
		Payload:    string(data),
		LoadedAt:   now,
	}
	if err := warehouse.InsertRawTx(ctx, tx, target.Table, raw); err != nil {
		return nil, fmt.Errorf("ingest: raw insert: %w", err)
	}
	ledger := &warehouse.LedgerEntry{
		SourceURI:   uri,
		Endpoint:    target.Endpoint,
		TargetTable: target.Table,
		RowsLoaded:  int64(len(records)),
		LoadedAt:    now,
	}
	if err := warehouse.InsertLedgerTx(ctx, tx, ledger); err != nil {
		return nil, fmt.Errorf("ingest: ledger insert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("ingest: commit: %w", err)
	}

	return &LoadResult{SourceURI: uri, RowsLoaded: ledger.RowsLoaded}, nil
}

// Run ingests every pending file of a target: list incoming keys,
// register each, and move loaded files under the loaded/ stage. Files
// that fail stay in incoming/ for the next cycle. The run is recorded
// in ingest_runs and returned.
func (in *Ingestor) Run(ctx context.Context, target Target) (*warehouse.IngestRun, error) {
	started := time.Now()
	run := &warehouse.IngestRun{
		ID:        in.newID(),
		Endpoint:  target.Endpoint,
		StartedAt: started.UnixMilli(),
	}

	keys, err := in.store.List(ctx, snapstore.IncomingPrefix(target.Endpoint))
	if err != nil {
		run.Error = err.Error()
		in.finish(ctx, run, started)
		return run, fmt.Errorf("ingest: list incoming: %w", err)
	}
	run.FilesSeen = int64(len(keys))

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			run.Error = err.Error()
			in.finish(ctx, run, started)
			return run, err
		}

		res, err := in.Register(ctx, target, key)
		if err != nil {
			run.Failed++
			in.logger.Error("ingest: file rejected", "endpoint", target.Endpoint, "key", key, "error", err)
			continue
		}
		if res.AlreadyLoaded {
			run.Skipped++
			in.logger.Info("ingest: already ledgered, skipping", "endpoint", target.Endpoint, "key", key)
		} else {
			run.Loaded++
			in.logger.Info("ingest: file loaded", "endpoint", target.Endpoint, "key", key, "rows", res.RowsLoaded)
		}

		// Ledgered either way: move out of incoming. A failed move is
		// harmless, the ledger makes the retry a skip.
		if err := in.store.Move(ctx, key, snapstore.LoadedKey(key)); err != nil {
			in.logger.Warn("ingest: move to loaded failed", "key", key, "error", err)
		}
	}

	in.finish(ctx, run, started)
	return run, nil
}

func (in *Ingestor) finish(ctx context.Context, run *warehouse.IngestRun, started time.Time) {
	run.DurationMs = time.Since(started).Milliseconds()
	if err := in.wh.InsertRun(ctx, run); err != nil {
		in.logger.Warn("ingest: run log write failed", "run", run.ID, "error", err)
	}
}

// captureTime resolves the authoritative capture time: the key's path
// timestamp, falling back to the payload's retrieved_at metadata.
func captureTime(key string, payload []byte) (time.Time, error) {
	if t, err := snapstore.ParseCaptureTime(key); err == nil {
		return t, nil
	}
	env, err := flatten.ParseEnvelope(payload)
	if err != nil {
		return time.Time{}, fmt.Errorf("ingest: %s: %w", key, err)
	}
	if t, ok := env.RetrievedAt(); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("ingest: %s: no capture time in key or metadata", key)
}
