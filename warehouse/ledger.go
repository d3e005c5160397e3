package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// LedgerEntry is one row of the load_ledger table. Its existence is
// the sole idempotency signal: a source_uri present here has been
// ingested and is never reprocessed.
type LedgerEntry struct {
	SourceURI   string `json:"source_uri"`
	Endpoint    string `json:"endpoint"`
	TargetTable string `json:"target_table"`
	RowsLoaded  int64  `json:"rows_loaded"`
	LoadedAt    int64  `json:"loaded_at"`
}

// GetLedgerEntry returns the ledger entry for a source URI, or nil if
// the URI has not been ingested.
func (w *Warehouse) GetLedgerEntry(ctx context.Context, sourceURI string) (*LedgerEntry, error) {
	row := w.DB.QueryRowContext(ctx,
		`SELECT source_uri, endpoint, target_table, rows_loaded, loaded_at
		FROM load_ledger WHERE source_uri = ?`, sourceURI)

	var e LedgerEntry
	err := row.Scan(&e.SourceURI, &e.Endpoint, &e.TargetTable, &e.RowsLoaded, &e.LoadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan ledger entry: %w", err)
	}
	return &e, nil
}

// ListLedger returns ledger entries, newest first. Empty endpoint
// means all endpoints.
func (w *Warehouse) ListLedger(ctx context.Context, endpoint string, limit int) ([]*LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT source_uri, endpoint, target_table, rows_loaded, loaded_at
		FROM load_ledger`
	args := []any{}
	if endpoint != "" {
		q += ` WHERE endpoint = ?`
		args = append(args, endpoint)
	}
	q += ` ORDER BY loaded_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := w.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.SourceURI, &e.Endpoint, &e.TargetTable, &e.RowsLoaded, &e.LoadedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		result = append(result, &e)
	}
	return result, rows.Err()
}

// InsertLedgerTx writes a ledger row inside the caller's transaction.
// The raw table insert and this write commit or roll back together.
func InsertLedgerTx(ctx context.Context, tx *sql.Tx, e *LedgerEntry) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO load_ledger (source_uri, endpoint, target_table, rows_loaded, loaded_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.SourceURI, e.Endpoint, e.TargetTable, e.RowsLoaded, e.LoadedAt)
	return err
}
