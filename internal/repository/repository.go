package repository

import (
	"context"
	"database/sql"
	"time"

	"floordash"
	"floordash/internal/repository/db"
)

// OeeRepo archives every emitted snapshot for historical queries.
type OeeRepo interface {
	Append(ctx context.Context, s floordash.OeeSnapshot) error
	ListRange(ctx context.Context, lineID, tier string, from, to time.Time) ([]floordash.OeeSnapshot, error)
}

// AndonRepo archives andon events; every transition upserts the row so the
// archive always reflects the latest state of each event.
type AndonRepo interface {
	Archive(ctx context.Context, e floordash.AndonEvent) error
	List(ctx context.Context, lineID string, from, to time.Time) ([]floordash.AndonEvent, error)
}

// DowntimeRepo is the append-only record of completed stoppages.
type DowntimeRepo interface {
	Append(ctx context.Context, d floordash.DowntimeEvent) error
	List(ctx context.Context, lineID string, from, to time.Time) ([]floordash.DowntimeEvent, error)
}

type Repository struct {
	Oee      OeeRepo
	Andon    AndonRepo
	Downtime DowntimeRepo
}

func NewRepository(sqlDB *sql.DB) *Repository {
	return &Repository{
		Oee:      NewOeeSQLite(sqlDB),
		Andon:    NewAndonSQLite(sqlDB),
		Downtime: NewDowntimeSQLite(sqlDB),
	}
}

// InitDB re-exports the db package bootstrap for callers wiring the app.
func InitDB(path string) (*sql.DB, error) {
	return db.InitDB(path)
}
