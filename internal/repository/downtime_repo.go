package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"floordash"

	"github.com/google/uuid"
)

type DowntimeSQLite struct {
	db *sql.DB
}

func NewDowntimeSQLite(db *sql.DB) *DowntimeSQLite { return &DowntimeSQLite{db: db} }

const insertDowntimeSQL = `
		INSERT INTO downtime_events
			(id, equipment_id, line_id, severity, started_at, ended_at, duration_s)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

// Append stores one completed stoppage. A missing ID is filled in.
func (r *DowntimeSQLite) Append(ctx context.Context, d floordash.DowntimeEvent) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, insertDowntimeSQL,
		d.ID,
		d.EquipmentID,
		d.LineID,
		string(d.Severity),
		d.StartedAt.UTC(),
		d.EndedAt.UTC(),
		d.DurationSeconds,
	)
	return err
}

// List returns stoppages filtered by line and started_at range, ordered
// ascending by started_at.
func (r *DowntimeSQLite) List(ctx context.Context, lineID string, from, to time.Time) ([]floordash.DowntimeEvent, error) {
	var (
		conds []string
		args  []any
	)
	if lineID != "" {
		conds = append(conds, "line_id = ?")
		args = append(args, lineID)
	}
	if !from.IsZero() {
		conds = append(conds, "started_at >= ?")
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		conds = append(conds, "started_at <= ?")
		args = append(args, to.UTC())
	}

	q := `SELECT id, equipment_id, line_id, severity, started_at, ended_at, duration_s
		FROM downtime_events`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY started_at ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []floordash.DowntimeEvent
	for rows.Next() {
		var (
			d        floordash.DowntimeEvent
			severity string
		)
		if err := rows.Scan(
			&d.ID, &d.EquipmentID, &d.LineID, &severity,
			&d.StartedAt, &d.EndedAt, &d.DurationSeconds,
		); err != nil {
			return nil, err
		}
		d.Severity = floordash.Severity(severity)
		d.StartedAt = d.StartedAt.UTC()
		d.EndedAt = d.EndedAt.UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}
