package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"floordash"

	"github.com/google/uuid"
)

type OeeSQLite struct {
	db *sql.DB
}

func NewOeeSQLite(db *sql.DB) *OeeSQLite { return &OeeSQLite{db: db} }

const insertOeeSQL = `
		INSERT INTO oee_history
			(id, line_id, tier, window_start, window_end,
			 availability, performance, quality, oee,
			 planned_s, run_s, good_count, total_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

// Append stores one closed-window snapshot. A missing ID is filled in.
func (r *OeeSQLite) Append(ctx context.Context, s floordash.OeeSnapshot) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, insertOeeSQL,
		s.ID,
		s.LineID,
		s.Tier,
		s.WindowStart.UTC(),
		s.WindowEnd.UTC(),
		s.Availability,
		s.Performance,
		s.Quality,
		s.OEE,
		s.PlannedSeconds,
		s.RunSeconds,
		s.GoodCount,
		s.TotalCount,
	)
	return err
}

// ListRange returns snapshots for a line/tier whose window start falls in
// [from, to], ordered ascending. Zero times leave the bound open.
func (r *OeeSQLite) ListRange(ctx context.Context, lineID, tier string, from, to time.Time) ([]floordash.OeeSnapshot, error) {
	conds := []string{"line_id = ?"}
	args := []any{lineID}

	if tier != "" {
		conds = append(conds, "tier = ?")
		args = append(args, tier)
	}
	if !from.IsZero() {
		conds = append(conds, "window_start >= ?")
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		conds = append(conds, "window_start <= ?")
		args = append(args, to.UTC())
	}

	q := `SELECT id, line_id, tier, window_start, window_end,
			availability, performance, quality, oee,
			planned_s, run_s, good_count, total_count
		FROM oee_history WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY window_start ASC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []floordash.OeeSnapshot
	for rows.Next() {
		var s floordash.OeeSnapshot
		if err := rows.Scan(
			&s.ID, &s.LineID, &s.Tier, &s.WindowStart, &s.WindowEnd,
			&s.Availability, &s.Performance, &s.Quality, &s.OEE,
			&s.PlannedSeconds, &s.RunSeconds, &s.GoodCount, &s.TotalCount,
		); err != nil {
			return nil, err
		}
		s.WindowStart = s.WindowStart.UTC()
		s.WindowEnd = s.WindowEnd.UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}
