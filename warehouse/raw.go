package warehouse

import (
	"context"
	"database/sql"
	"fmt"
)

// RawSnapshot is one row of a raw snapshot table: a whole snapshot
// file kept verbatim, tagged with provenance. Immutable once written.
type RawSnapshot struct {
	SourceURI  string `json:"source_uri"`
	Endpoint   string `json:"endpoint"`
	CapturedAt int64  `json:"captured_at"`
	Payload    string `json:"payload"`
	LoadedAt   int64  `json:"loaded_at"`
}

// InsertRawTx writes a raw snapshot row inside the caller's
// transaction. Table must pass the rawTables whitelist.
func InsertRawTx(ctx context.Context, tx *sql.Tx, table string, s *RawSnapshot) error {
	if !ValidRawTable(table) {
		return fmt.Errorf("warehouse: unknown raw table %q", table)
	}
	q := fmt.Sprintf(`INSERT INTO %s (source_uri, endpoint, captured_at, payload, loaded_at)
		VALUES (?, ?, ?, ?, ?)`, table)
	_, err := tx.ExecContext(ctx, q, s.SourceURI, s.Endpoint, s.CapturedAt, s.Payload, s.LoadedAt)
	return err
}

// ListRaw returns every snapshot row of a raw table, oldest first.
// Downstream stages recompute records from this full history.
func (w *Warehouse) ListRaw(ctx context.Context, table string) ([]*RawSnapshot, error) {
	if !ValidRawTable(table) {
		return nil, fmt.Errorf("warehouse: unknown raw table %q", table)
	}
	q := fmt.Sprintf(`SELECT source_uri, endpoint, captured_at, payload, loaded_at
		FROM %s ORDER BY captured_at ASC, source_uri ASC`, table)

	rows, err := w.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*RawSnapshot
	for rows.Next() {
		var s RawSnapshot
		if err := rows.Scan(&s.SourceURI, &s.Endpoint, &s.CapturedAt, &s.Payload, &s.LoadedAt); err != nil {
			return nil, fmt.Errorf("scan raw snapshot: %w", err)
		}
		result = append(result, &s)
	}
	return result, rows.Err()
}

// CountRaw returns the number of snapshot rows in a raw table.
func (w *Warehouse) CountRaw(ctx context.Context, table string) (int64, error) {
	if !ValidRawTable(table) {
		return 0, fmt.Errorf("warehouse: unknown raw table %q", table)
	}
	var n int64
	err := w.DB.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)).Scan(&n)
	return n, err
}

// LatestCapture returns the newest captured_at in a raw table, or 0
// when the table is empty.
func (w *Warehouse) LatestCapture(ctx context.Context, table string) (int64, error) {
	if !ValidRawTable(table) {
		return 0, fmt.Errorf("warehouse: unknown raw table %q", table)
	}
	var t int64
	err := w.DB.QueryRowContext(ctx, fmt.Sprintf(`SELECT COALESCE(MAX(captured_at), 0) FROM %s`, table)).Scan(&t)
	return t, err
}
