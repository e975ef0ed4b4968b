package service

import (
	"context"

	"floordash"
	"floordash/internal/hub"
	"floordash/internal/oee"
)

// PipelineStats is the health view for external metrics reporting:
// per-client delivery counters plus the aggregator's drop counts.
type PipelineStats struct {
	Clients          []hub.ClientStats `json:"clients"`
	DroppedStale     uint64            `json:"dropped_stale_samples"`
	DroppedMalformed uint64            `json:"dropped_malformed_samples"`
}

// MonitoringService serves the latest in-memory values; it never touches
// the database.
type MonitoringService struct {
	agg *oee.Aggregator
	hub *hub.Hub
}

func NewMonitoringService(agg *oee.Aggregator, h *hub.Hub) *MonitoringService {
	return &MonitoringService{agg: agg, hub: h}
}

// CurrentOee returns the most recently closed snapshot for a line.
// An empty tier defaults to the short "current" window.
func (s *MonitoringService) CurrentOee(_ context.Context, lineID, tier string) (floordash.OeeSnapshot, bool) {
	if tier == "" {
		tier = oee.TierCurrent
	}
	return s.agg.Latest(lineID, tier)
}

func (s *MonitoringService) PipelineStats(_ context.Context) PipelineStats {
	stale, malformed := s.agg.Dropped()
	return PipelineStats{
		Clients:          s.hub.Stats(),
		DroppedStale:     stale,
		DroppedMalformed: malformed,
	}
}
