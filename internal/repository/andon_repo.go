package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"floordash"
)

type AndonSQLite struct {
	db *sql.DB
}

func NewAndonSQLite(db *sql.DB) *AndonSQLite { return &AndonSQLite{db: db} }

const upsertAndonSQL = `
		INSERT INTO andon_history
			(id, equipment_id, line_id, severity, state, description,
			 opened_at, acknowledged_at, acknowledged_by,
			 resolved_at, resolved_by, tier)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state=excluded.state,
			acknowledged_at=excluded.acknowledged_at,
			acknowledged_by=excluded.acknowledged_by,
			resolved_at=excluded.resolved_at,
			resolved_by=excluded.resolved_by,
			tier=excluded.tier
	`

// Archive upserts the event row; each transition overwrites the mutable
// fields so the archive mirrors the machine's latest state.
func (r *AndonSQLite) Archive(ctx context.Context, e floordash.AndonEvent) error {
	_, err := r.db.ExecContext(ctx, upsertAndonSQL,
		e.ID,
		e.EquipmentID,
		e.LineID,
		string(e.Severity),
		string(e.State),
		e.Description,
		e.OpenedAt.UTC(),
		nullableTime(e.AcknowledgedAt),
		nullableString(e.AcknowledgedBy),
		nullableTime(e.ResolvedAt),
		nullableString(e.ResolvedBy),
		e.Tier,
	)
	return err
}

// List returns archived events filtered by line and opened_at range,
// ordered ascending by opened_at.
func (r *AndonSQLite) List(ctx context.Context, lineID string, from, to time.Time) ([]floordash.AndonEvent, error) {
	var (
		conds []string
		args  []any
	)
	if lineID != "" {
		conds = append(conds, "line_id = ?")
		args = append(args, lineID)
	}
	if !from.IsZero() {
		conds = append(conds, "opened_at >= ?")
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		conds = append(conds, "opened_at <= ?")
		args = append(args, to.UTC())
	}

	q := `SELECT id, equipment_id, line_id, severity, state, description,
			opened_at, acknowledged_at, acknowledged_by,
			resolved_at, resolved_by, tier
		FROM andon_history`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY opened_at ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []floordash.AndonEvent
	for rows.Next() {
		var (
			e        floordash.AndonEvent
			severity string
			state    string
			desc     sql.NullString
			ackAt    sql.NullTime
			ackBy    sql.NullString
			resAt    sql.NullTime
			resBy    sql.NullString
		)
		if err := rows.Scan(
			&e.ID, &e.EquipmentID, &e.LineID, &severity, &state, &desc,
			&e.OpenedAt, &ackAt, &ackBy, &resAt, &resBy, &e.Tier,
		); err != nil {
			return nil, err
		}
		e.Severity = floordash.Severity(severity)
		e.State = floordash.AndonState(state)
		e.Description = desc.String
		e.OpenedAt = e.OpenedAt.UTC()
		if ackAt.Valid {
			t := ackAt.Time.UTC()
			e.AcknowledgedAt = &t
		}
		e.AcknowledgedBy = ackBy.String
		if resAt.Valid {
			t := resAt.Time.UTC()
			e.ResolvedAt = &t
		}
		e.ResolvedBy = resBy.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// nullableTime maps a nil pointer to SQL NULL, normalizing to UTC.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// nullableString maps the empty string to SQL NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
