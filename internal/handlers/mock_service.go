package handlers

import (
	"context"

	"floordash"
	"floordash/internal/hub"
	"floordash/internal/oee"
	"floordash/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockIngest struct {
	result     oee.IngestResult
	lastSample floordash.EquipmentSample
	calls      int
}

func (m *mockIngest) Ingest(_ context.Context, s floordash.EquipmentSample) oee.IngestResult {
	m.calls++
	m.lastSample = s
	return m.result
}

type mockAndon struct {
	ackEvent     floordash.AndonEvent
	ackErr       error
	resolveEvent floordash.AndonEvent
	resolveErr   error
	active       []floordash.AndonEvent
	getEvent     floordash.AndonEvent
	getErr       error

	lastEventID string
	lastActor   string
	lastLine    string
}

func (m *mockAndon) Acknowledge(_ context.Context, eventID, actor string) (floordash.AndonEvent, error) {
	m.lastEventID = eventID
	m.lastActor = actor
	return m.ackEvent, m.ackErr
}

func (m *mockAndon) Resolve(_ context.Context, eventID, actor string) (floordash.AndonEvent, error) {
	m.lastEventID = eventID
	m.lastActor = actor
	return m.resolveEvent, m.resolveErr
}

func (m *mockAndon) Active(_ context.Context, lineID string) []floordash.AndonEvent {
	m.lastLine = lineID
	return m.active
}

func (m *mockAndon) Get(_ context.Context, eventID string) (floordash.AndonEvent, error) {
	m.lastEventID = eventID
	return m.getEvent, m.getErr
}

type mockMonitoring struct {
	snap  floordash.OeeSnapshot
	ok    bool
	stats service.PipelineStats

	lastLine string
	lastTier string
}

func (m *mockMonitoring) CurrentOee(_ context.Context, lineID, tier string) (floordash.OeeSnapshot, bool) {
	m.lastLine = lineID
	m.lastTier = tier
	return m.snap, m.ok
}

func (m *mockMonitoring) PipelineStats(_ context.Context) service.PipelineStats {
	return m.stats
}

type mockHistory struct {
	oeeOut      []floordash.OeeSnapshot
	oeeErr      error
	downtimeOut []floordash.DowntimeEvent
	downtimeErr error
	andonOut    []floordash.AndonEvent
	andonErr    error

	lastLine   string
	lastTier   string
	lastFilter service.RangeFilter
}

func (m *mockHistory) ListOee(_ context.Context, lineID, tier string, f service.RangeFilter) ([]floordash.OeeSnapshot, error) {
	m.lastLine, m.lastTier, m.lastFilter = lineID, tier, f
	return m.oeeOut, m.oeeErr
}

func (m *mockHistory) ListDowntime(_ context.Context, lineID string, f service.RangeFilter) ([]floordash.DowntimeEvent, error) {
	m.lastLine, m.lastFilter = lineID, f
	return m.downtimeOut, m.downtimeErr
}

func (m *mockHistory) ListAndon(_ context.Context, lineID string, f service.RangeFilter) ([]floordash.AndonEvent, error) {
	m.lastLine, m.lastFilter = lineID, f
	return m.andonOut, m.andonErr
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	if s.Hub == nil {
		s.Hub = hub.New(8, nil)
	}
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}
