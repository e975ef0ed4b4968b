package service

import (
	"context"
	"errors"
	"time"

	"floordash"
	"floordash/internal/repository"
)

// RangeFilter bounds a history query. Zero times leave the bound open.
type RangeFilter struct {
	From time.Time // inclusive
	To   time.Time // inclusive
}

var errInvalidTimeRange = errors.New("invalid time range: From must be <= To")

// HistoryService reads the persisted archives for the pull API.
type HistoryService struct {
	repos *repository.Repository
}

func NewHistoryService(repos *repository.Repository) *HistoryService {
	return &HistoryService{repos: repos}
}

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

func (f RangeFilter) normalize() (time.Time, time.Time, error) {
	from := normalizeToUTC(f.From)
	to := normalizeToUTC(f.To)
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return time.Time{}, time.Time{}, errInvalidTimeRange
	}
	return from, to, nil
}

func (s *HistoryService) ListOee(ctx context.Context, lineID, tier string, f RangeFilter) ([]floordash.OeeSnapshot, error) {
	from, to, err := f.normalize()
	if err != nil {
		return nil, err
	}
	return s.repos.Oee.ListRange(ctx, lineID, tier, from, to)
}

func (s *HistoryService) ListDowntime(ctx context.Context, lineID string, f RangeFilter) ([]floordash.DowntimeEvent, error) {
	from, to, err := f.normalize()
	if err != nil {
		return nil, err
	}
	return s.repos.Downtime.List(ctx, lineID, from, to)
}

func (s *HistoryService) ListAndon(ctx context.Context, lineID string, f RangeFilter) ([]floordash.AndonEvent, error) {
	from, to, err := f.normalize()
	if err != nil {
		return nil, err
	}
	return s.repos.Andon.List(ctx, lineID, from, to)
}
