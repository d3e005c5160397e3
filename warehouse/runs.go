package warehouse

import (
	"context"
	"fmt"
)

// IngestRun records one ingestion cycle for an endpoint.
type IngestRun struct {
	ID         string `json:"id"`
	Endpoint   string `json:"endpoint"`
	FilesSeen  int64  `json:"files_seen"`
	Loaded     int64  `json:"loaded"`
	Skipped    int64  `json:"skipped"`
	Failed     int64  `json:"failed"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	StartedAt  int64  `json:"started_at"`
}

// InsertRun records an ingest run.
func (w *Warehouse) InsertRun(ctx context.Context, r *IngestRun) error {
	_, err := w.DB.ExecContext(ctx,
		`INSERT INTO ingest_runs (id, endpoint, files_seen, loaded, skipped, failed, error, duration_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Endpoint, r.FilesSeen, r.Loaded, r.Skipped, r.Failed, r.Error, r.DurationMs, r.StartedAt)
	return err
}

// ListRuns returns ingest runs, newest first. Empty endpoint means all.
func (w *Warehouse) ListRuns(ctx context.Context, endpoint string, limit int) ([]*IngestRun, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT id, endpoint, files_seen, loaded, skipped, failed, error, duration_ms, started_at
		FROM ingest_runs`
	args := []any{}
	if endpoint != "" {
		q += ` WHERE endpoint = ?`
		args = append(args, endpoint)
	}
	q += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := w.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*IngestRun
	for rows.Next() {
		var r IngestRun
		if err := rows.Scan(&r.ID, &r.Endpoint, &r.FilesSeen, &r.Loaded, &r.Skipped,
			&r.Failed, &r.Error, &r.DurationMs, &r.StartedAt); err != nil {
			return nil, fmt.Errorf("scan ingest run: %w", err)
		}
		result = append(result, &r)
	}
	return result, rows.Err()
}
