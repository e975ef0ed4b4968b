package andon

import (
	"time"

	"floordash"
)

// Policy decides whether and when an unacknowledged event moves to the
// next responder tier. Implementations must be stateless: the registry
// consults the policy on open and on every timer firing.
type Policy interface {
	// Next returns the responder tier that follows currentTier for the
	// given severity and the delay until that escalation is due.
	// ok=false means no further tier exists and the event holds where it is.
	Next(sev floordash.Severity, currentTier int) (tier int, offset time.Duration, ok bool)
}

// SchedulePolicy escalates one tier per fixed interval up to a ceiling.
// Severities may override the interval for a faster schedule; thresholds
// come from deployment configuration, not from the engine.
type SchedulePolicy struct {
	Interval   time.Duration
	MaxTier    int
	BySeverity map[floordash.Severity]time.Duration
}

const (
	defaultEscalationInterval = 15 * time.Minute
	defaultMaxTier            = 3
)

// DefaultPolicy mirrors the plant's priority table: low severity escalates
// every 15 minutes, critical every 2, with a three-tier ceiling.
func DefaultPolicy() SchedulePolicy {
	return SchedulePolicy{
		Interval: defaultEscalationInterval,
		MaxTier:  defaultMaxTier,
		BySeverity: map[floordash.Severity]time.Duration{
			floordash.SeverityLow:      15 * time.Minute,
			floordash.SeverityMedium:   10 * time.Minute,
			floordash.SeverityHigh:     5 * time.Minute,
			floordash.SeverityCritical: 2 * time.Minute,
		},
	}
}

func (p SchedulePolicy) Next(sev floordash.Severity, currentTier int) (int, time.Duration, bool) {
	maxTier := p.MaxTier
	if maxTier <= 0 {
		maxTier = defaultMaxTier
	}
	if currentTier >= maxTier {
		return 0, 0, false
	}

	interval := p.Interval
	if d, ok := p.BySeverity[sev]; ok && d > 0 {
		interval = d
	}
	if interval <= 0 {
		interval = defaultEscalationInterval
	}
	return currentTier + 1, interval, true
}
