package service

import (
	"context"
	"time"

	"floordash"
	"floordash/internal/andon"
	"floordash/internal/hub"
	"floordash/internal/logger"
	"floordash/internal/oee"
	"floordash/internal/repository"
)

// Ingest is the telemetry entry point: one call per equipment sample.
type Ingest interface {
	Ingest(ctx context.Context, s floordash.EquipmentSample) oee.IngestResult
}

// Andon exposes the human side of the stoppage workflow.
type Andon interface {
	Acknowledge(ctx context.Context, eventID, actor string) (floordash.AndonEvent, error)
	Resolve(ctx context.Context, eventID, actor string) (floordash.AndonEvent, error)
	Active(ctx context.Context, lineID string) []floordash.AndonEvent
	Get(ctx context.Context, eventID string) (floordash.AndonEvent, error)
}

// Monitoring exposes the core's latest in-memory values for pull queries.
type Monitoring interface {
	CurrentOee(ctx context.Context, lineID, tier string) (floordash.OeeSnapshot, bool)
	PipelineStats(ctx context.Context) PipelineStats
}

// History exposes the persisted archives.
type History interface {
	ListOee(ctx context.Context, lineID, tier string, f RangeFilter) ([]floordash.OeeSnapshot, error)
	ListDowntime(ctx context.Context, lineID string, f RangeFilter) ([]floordash.DowntimeEvent, error)
	ListAndon(ctx context.Context, lineID string, f RangeFilter) ([]floordash.AndonEvent, error)
}

// Simulator runs the background loop that feeds synthetic plant telemetry.
// Stop via context cancellation in main() for graceful shutdown.
type Simulator interface {
	Run(ctx context.Context, tick time.Duration)
}

// Config carries the tuning knobs the composition root reads from viper.
type Config struct {
	Oee      oee.Config
	Policy   andon.SchedulePolicy
	QueueCap int
	Sim      SimConfig
}

// Service aggregates all sub-services behind one wiring point.
type Service struct {
	Ingest
	Andon
	Monitoring
	History
	Simulator

	// Hub is exported for the transport layer: the websocket handler
	// subscribes connections directly.
	Hub *hub.Hub

	aggregator *oee.Aggregator
}

// NewService wires the core: fan-out hub, OEE aggregator, Andon registry
// and equipment tracker, plus the persistence-backed history services.
func NewService(repos *repository.Repository, cfg Config, log *logger.Logger) *Service {
	h := hub.New(cfg.QueueCap, log)
	sink := newEventSink(repos, h, log)

	agg := oee.NewAggregator(cfg.Oee, func(snap floordash.OeeSnapshot) {
		sink(floordash.Event{
			Type:    floordash.EventOeeUpdate,
			LineID:  snap.LineID,
			At:      snap.WindowEnd,
			Payload: snap,
		})
	}, log)

	registry := andon.NewRegistry(cfg.Policy, sink, log)
	tracker := andon.NewTracker(registry, log)

	ingest := NewIngestService(agg, tracker)

	return &Service{
		Ingest:     ingest,
		Andon:      NewAndonService(registry),
		Monitoring: NewMonitoringService(agg, h),
		History:    NewHistoryService(repos),
		Simulator:  NewSimulatorService(cfg.Sim, ingest, log),
		Hub:        h,
		aggregator: agg,
	}
}

// Flush closes all open aggregation windows; called on shutdown so the
// long summary windows reach the archive.
func (s *Service) Flush() {
	s.aggregator.Flush()
}

// newEventSink fans every core event out to subscribers and archives it.
// Archive failures are logged, never propagated: delivery and persistence
// must not stall the producing state machine or aggregator.
func newEventSink(repos *repository.Repository, h *hub.Hub, log *logger.Logger) andon.SinkFunc {
	const persistTimeout = 5 * time.Second

	return func(ev floordash.Event) {
		h.Publish(ev)

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		var err error
		switch p := ev.Payload.(type) {
		case floordash.OeeSnapshot:
			err = repos.Oee.Append(ctx, p)
		case floordash.AndonEvent:
			err = repos.Andon.Archive(ctx, p)
		case floordash.DowntimeEvent:
			err = repos.Downtime.Append(ctx, p)
		}
		if err != nil && log != nil {
			log.Errorw("event_archive_failed", "type", ev.Type, "err", err)
		}
	}
}
