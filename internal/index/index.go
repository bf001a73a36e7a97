// Package index mirrors applied log entries into sqlite for ad-hoc queries
// (log tail, entity history, time ranges). It is derived data: dropping the
// database and rebuilding from the JSONL log loses nothing.
package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"taskline/internal/domain"
	"taskline/internal/eventlog"
)

type Index struct {
	DB *sql.DB
}

// Row is the flattened view of one event served by index queries.
type Row struct {
	Seq      uint64   `json:"seq"`
	ID       string   `json:"id"`
	TS       string   `json:"ts" format:"date-time"`
	Type     string   `json:"type"`
	Entities []string `json:"entities,omitempty"`
	Payload  string   `json:"payload_json"`
}

// Record inserts one applied entry. Re-recording the same seq is a no-op, so
// replays after a crash are safe.
func (ix Index) Record(ctx context.Context, entry eventlog.Entry) error {
	payload, err := json.Marshal(entry.Event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	tx, err := ix.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO events(seq,id,ts,type,payload_json) VALUES (?,?,?,?,?)`,
		entry.Seq, entry.Event.ID, entry.Event.Timestamp.UTC().Format(time.RFC3339), string(entry.Event.Type), string(payload)); err != nil {
		return err
	}
	for _, entity := range entry.Event.Payload.Entities() {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO event_entities(seq,entity_id) VALUES (?,?)`, entry.Seq, entity); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Rebuild clears the index and re-records the full log.
func (ix Index) Rebuild(ctx context.Context, entries []eventlog.Entry) error {
	if _, err := ix.DB.ExecContext(ctx, `DELETE FROM event_entities`); err != nil {
		return err
	}
	if _, err := ix.DB.ExecContext(ctx, `DELETE FROM events`); err != nil {
		return err
	}
	for _, entry := range entries {
		if err := ix.Record(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

// LastSeq reports the highest recorded sequence, 0 when empty.
func (ix Index) LastSeq(ctx context.Context) (uint64, error) {
	var seq sql.NullInt64
	if err := ix.DB.QueryRowContext(ctx, `SELECT MAX(seq) FROM events`).Scan(&seq); err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil
	}
	return uint64(seq.Int64), nil
}

// QueryFilters narrow Latest results.
type QueryFilters struct {
	Type     string
	EntityID string
}

// Latest returns up to n most recent events, oldest first.
func (ix Index) Latest(ctx context.Context, n int, f QueryFilters) ([]Row, error) {
	if n <= 0 {
		n = 20
	}
	query := `SELECT e.seq, e.id, e.ts, e.type, e.payload_json FROM events e`
	var args []any
	var where []string
	if f.EntityID != "" {
		query += ` JOIN event_entities ee ON ee.seq = e.seq`
		where = append(where, `ee.entity_id = ?`)
		args = append(args, f.EntityID)
	}
	if f.Type != "" {
		where = append(where, `e.type = ?`)
		args = append(args, f.Type)
	}
	for i, cond := range where {
		if i == 0 {
			query += ` WHERE ` + cond
		} else {
			query += ` AND ` + cond
		}
	}
	query += ` ORDER BY e.seq DESC LIMIT ?`
	args = append(args, n)
	rows, err := ix.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	// Flip newest-first into log order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return ix.attachEntities(ctx, out)
}

// ByTimeRange returns events whose advisory timestamp falls in [start, end],
// in log order.
func (ix Index) ByTimeRange(ctx context.Context, start, end time.Time) ([]Row, error) {
	rows, err := ix.DB.QueryContext(ctx,
		`SELECT seq, id, ts, type, payload_json FROM events WHERE ts >= ? AND ts <= ? ORDER BY seq`,
		start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	return ix.attachEntities(ctx, out)
}

// ByID returns a single event row.
func (ix Index) ByID(ctx context.Context, id string) (Row, error) {
	row := ix.DB.QueryRowContext(ctx, `SELECT seq, id, ts, type, payload_json FROM events WHERE id = ?`, id)
	var r Row
	if err := row.Scan(&r.Seq, &r.ID, &r.TS, &r.Type, &r.Payload); err != nil {
		if err == sql.ErrNoRows {
			return Row{}, domain.NotFoundError{Kind: "event", ID: id}
		}
		return Row{}, err
	}
	rows, err := ix.attachEntities(ctx, []Row{r})
	if err != nil {
		return Row{}, err
	}
	return rows[0], nil
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Seq, &r.ID, &r.TS, &r.Type, &r.Payload); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (ix Index) attachEntities(ctx context.Context, in []Row) ([]Row, error) {
	for i := range in {
		rows, err := ix.DB.QueryContext(ctx,
			`SELECT entity_id FROM event_entities WHERE seq = ? ORDER BY entity_id`, in[i].Seq)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var entity string
			if err := rows.Scan(&entity); err != nil {
				rows.Close()
				return nil, err
			}
			in[i].Entities = append(in[i].Entities, entity)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return in, nil
}
