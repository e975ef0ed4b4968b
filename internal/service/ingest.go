package service

import (
	"context"

	"floordash"
	"floordash/internal/andon"
	"floordash/internal/oee"
)

// IngestService routes each accepted sample into both consumers of the
// telemetry stream: the OEE aggregator and the equipment run-state tracker
// that raises Andon fault signals.
type IngestService struct {
	agg     *oee.Aggregator
	tracker *andon.Tracker
}

func NewIngestService(agg *oee.Aggregator, tracker *andon.Tracker) *IngestService {
	return &IngestService{agg: agg, tracker: tracker}
}

// Ingest never returns an error: bad input degrades to a rejected result
// so a corrupt sample cannot stop the pipeline.
func (s *IngestService) Ingest(_ context.Context, sample floordash.EquipmentSample) oee.IngestResult {
	res := s.agg.Ingest(sample)
	if res != oee.Accepted {
		return res
	}
	s.tracker.Observe(sample)
	return res
}
