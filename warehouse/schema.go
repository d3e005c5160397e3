package warehouse

// Schema is the complete warehouse schema. All timestamps are unix
// milliseconds. Raw tables are schema-on-read: one row per snapshot
// file, payload kept verbatim, entity records recomputed on demand.
const Schema = `
-- Idempotency ledger: presence of a source_uri means "already ingested".
-- Rows are written exactly once and never updated.
CREATE TABLE IF NOT EXISTS load_ledger (
    source_uri   TEXT PRIMARY KEY,
    endpoint     TEXT NOT NULL,
    target_table TEXT NOT NULL,
    rows_loaded  INTEGER NOT NULL,
    loaded_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_load_ledger_endpoint ON load_ledger(endpoint, loaded_at DESC);

-- Results archive snapshots (tournament list per year)
CREATE TABLE IF NOT EXISTS raw_results_archive (
    source_uri  TEXT PRIMARY KEY,
    endpoint    TEXT NOT NULL,
    captured_at INTEGER NOT NULL,
    payload     TEXT NOT NULL,
    loaded_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_raw_results_archive_time ON raw_results_archive(captured_at DESC);

-- Tournament calendar API snapshots
CREATE TABLE IF NOT EXISTS raw_tournaments (
    source_uri  TEXT PRIMARY KEY,
    endpoint    TEXT NOT NULL,
    captured_at INTEGER NOT NULL,
    payload     TEXT NOT NULL,
    loaded_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_raw_tournaments_time ON raw_tournaments(captured_at DESC);

-- Per-tournament match result snapshots
CREATE TABLE IF NOT EXISTS raw_results (
    source_uri  TEXT PRIMARY KEY,
    endpoint    TEXT NOT NULL,
    captured_at INTEGER NOT NULL,
    payload     TEXT NOT NULL,
    loaded_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_raw_results_time ON raw_results(captured_at DESC);

-- Ingest run log (observability)
CREATE TABLE IF NOT EXISTS ingest_runs (
    id          TEXT PRIMARY KEY,
    endpoint    TEXT NOT NULL,
    files_seen  INTEGER NOT NULL DEFAULT 0,
    loaded      INTEGER NOT NULL DEFAULT 0,
    skipped     INTEGER NOT NULL DEFAULT 0,
    failed      INTEGER NOT NULL DEFAULT 0,
    error       TEXT NOT NULL DEFAULT '',
    duration_ms INTEGER NOT NULL DEFAULT 0,
    started_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ingest_runs_time ON ingest_runs(started_at DESC);
`

// rawTables is the whitelist of raw snapshot tables. Table names are
// interpolated into SQL, so anything not listed here is rejected.
var rawTables = map[string]bool{
	"raw_results_archive": true,
	"raw_tournaments":     true,
	"raw_results":         true,
}

// ValidRawTable reports whether name is a known raw snapshot table.
func ValidRawTable(name string) bool {
	return rawTables[name]
}
