package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"floordash"
	"floordash/internal/hub"
	"floordash/internal/oee"
	"floordash/internal/service"
)

func TestIngestSample(t *testing.T) {
	mi := &mockIngest{result: oee.Accepted}
	r := newTestRouter(&service.Service{Ingest: mi})

	body := `{
		"equipment_id": "filler-1",
		"line_id": "line-1",
		"timestamp": "2025-03-01T08:00:00Z",
		"running": true,
		"good_count": 10,
		"total_count": 12,
		"ideal_cycle_time": 1.5,
		"planned": true
	}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/telemetry/samples", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	if mi.lastSample.EquipmentID != "filler-1" || mi.lastSample.GoodCount != 10 ||
		mi.lastSample.IdealCycleTime != 1.5 || !mi.lastSample.Planned {
		t.Errorf("sample not forwarded: %+v", mi.lastSample)
	}

	// rejected samples come back 202 with the reason, never an error
	mi.result = oee.RejectedStale
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/telemetry/samples", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202 for rejected sample, got %d", w.Code)
	}
	var resp struct {
		Result string `json:"result"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Result != oee.RejectedStale.String() {
		t.Errorf("rejection reason: want %q, got %q", oee.RejectedStale.String(), resp.Result)
	}

	// missing required fields → 400, ingest untouched
	before := mi.calls
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/telemetry/samples",
		bytes.NewBufferString(`{"running": true}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid body, got %d", w.Code)
	}
	if mi.calls != before {
		t.Errorf("invalid body must not reach ingest")
	}
}

func TestCurrentOee(t *testing.T) {
	mm := &mockMonitoring{
		snap: floordash.OeeSnapshot{LineID: "line-1", Tier: oee.TierCurrent, OEE: 0.42},
		ok:   true,
	}
	r := newTestRouter(&service.Service{Monitoring: mm})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/oee/line-1/current?tier=summary", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	if mm.lastLine != "line-1" || mm.lastTier != "summary" {
		t.Errorf("args not forwarded: line=%q tier=%q", mm.lastLine, mm.lastTier)
	}
	var snap floordash.OeeSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if snap.OEE != 0.42 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}

	// no closed window yet → 404
	mm.ok = false
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/oee/line-9/current", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before any window closed, got %d", w.Code)
	}
}

func TestOeeHistory(t *testing.T) {
	mh := &mockHistory{oeeOut: []floordash.OeeSnapshot{{ID: "snap-1", LineID: "line-1"}}}
	r := newTestRouter(&service.Service{History: mh})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/oee/line-1/history?tier=current&from=2025-03-01T00:00:00Z", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	if mh.lastLine != "line-1" || mh.lastTier != "current" {
		t.Errorf("args not forwarded: line=%q tier=%q", mh.lastLine, mh.lastTier)
	}
	var resp struct {
		Snapshots []floordash.OeeSnapshot `json:"snapshots"`
		Count     int                     `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Count != 1 || resp.Snapshots[0].ID != "snap-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	// repository failure → 500
	mh.oeeErr = errors.New("archive down")
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/oee/line-1/history", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on repo failure, got %d", w.Code)
	}
}

func TestDowntimeHistory(t *testing.T) {
	started := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	mh := &mockHistory{downtimeOut: []floordash.DowntimeEvent{{
		ID:              "dt-1",
		LineID:          "line-1",
		StartedAt:       started,
		EndedAt:         started.Add(time.Minute),
		DurationSeconds: 60,
	}}}
	r := newTestRouter(&service.Service{History: mh})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/downtime/?line=line-1", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Events []floordash.DowntimeEvent `json:"events"`
		Count  int                       `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Count != 1 || resp.Events[0].DurationSeconds != 60 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestHubStats(t *testing.T) {
	mm := &mockMonitoring{stats: service.PipelineStats{
		Clients:      []hub.ClientStats{{ClientID: "c-1", Queued: 3, Dropped: 7}},
		DroppedStale: 2,
	}}
	r := newTestRouter(&service.Service{Monitoring: mm})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/hub/stats", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	var stats service.PipelineStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(stats.Clients) != 1 || stats.Clients[0].Dropped != 7 || stats.DroppedStale != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
