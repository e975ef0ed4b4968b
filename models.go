package floordash

import "time"

// Severity classifies how urgent a stoppage is. It drives the escalation
// schedule: higher severities escalate on a faster clock.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AndonState is the lifecycle state of a stoppage event.
type AndonState string

const (
	StateOpen         AndonState = "open"
	StateAcknowledged AndonState = "acknowledged"
	StateResolved     AndonState = "resolved"
)

// EquipmentSample is one telemetry reading delivered by the ingest adapter.
// Counts are incremental: units produced since the previous sample for the
// same equipment. Samples must arrive in non-decreasing timestamp order per
// equipment; stale samples are dropped.
type EquipmentSample struct {
	EquipmentID    string    `json:"equipment_id"`
	LineID         string    `json:"line_id"`
	Timestamp      time.Time `json:"timestamp"`
	Running        bool      `json:"running"`
	GoodCount      int64     `json:"good_count"`
	TotalCount     int64     `json:"total_count"`
	IdealCycleTime float64   `json:"ideal_cycle_time"` // seconds per unit
	Planned        bool      `json:"planned"`          // inside planned production time
}

// OeeSnapshot is the immutable result of one closed aggregation window.
// All three ratios and the composite are in [0,1].
type OeeSnapshot struct {
	ID             string    `json:"id"`
	LineID         string    `json:"line_id"`
	Tier           string    `json:"tier"` // "current" | "summary"
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
	Availability   float64   `json:"availability"`
	Performance    float64   `json:"performance"`
	Quality        float64   `json:"quality"`
	OEE            float64   `json:"oee"`
	PlannedSeconds float64   `json:"planned_seconds"`
	RunSeconds     float64   `json:"run_seconds"`
	GoodCount      int64     `json:"good_count"`
	TotalCount     int64     `json:"total_count"`
}

// AndonEvent is a single stoppage with its acknowledgment/escalation state.
// Identity is the event ID; at most one event per equipment may be live
// (open or acknowledged) at any time.
type AndonEvent struct {
	ID               string     `json:"id"`
	EquipmentID      string     `json:"equipment_id"`
	LineID           string     `json:"line_id"`
	Severity         Severity   `json:"severity"`
	State            AndonState `json:"state"`
	Description      string     `json:"description,omitempty"`
	OpenedAt         time.Time  `json:"opened_at"`
	AcknowledgedAt   *time.Time `json:"acknowledged_at,omitempty"`
	AcknowledgedBy   string     `json:"acknowledged_by,omitempty"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy       string     `json:"resolved_by,omitempty"`
	Tier             int        `json:"tier"`
	NextEscalationAt *time.Time `json:"next_escalation_at,omitempty"`
}

// DowntimeEvent records one completed stoppage, emitted on resolve.
type DowntimeEvent struct {
	ID              string    `json:"id"`
	EquipmentID     string    `json:"equipment_id"`
	LineID          string    `json:"line_id"`
	Severity        Severity  `json:"severity"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// EventType tags outbound events for subscribers.
type EventType string

const (
	EventOeeUpdate EventType = "oee_update"
	EventAndon     EventType = "andon_event"
	EventDowntime  EventType = "downtime_event"
)

// Event is the envelope every core component publishes to the fan-out hub.
// LineID/EquipmentID scope the event for subscription matching.
type Event struct {
	Type        EventType `json:"type"`
	LineID      string    `json:"line_id,omitempty"`
	EquipmentID string    `json:"equipment_id,omitempty"`
	At          time.Time `json:"at"`
	Payload     any       `json:"payload"`
}
