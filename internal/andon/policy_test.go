package andon

import (
	"testing"
	"time"

	"floordash"
)

func TestSchedulePolicy_Next(t *testing.T) {
	t.Parallel()

	def := DefaultPolicy()

	tests := []struct {
		name       string
		policy     SchedulePolicy
		sev        floordash.Severity
		tier       int
		wantTier   int
		wantOffset time.Duration
		wantOK     bool
	}{
		{
			name:       "low severity uses the base interval",
			policy:     def,
			sev:        floordash.SeverityLow,
			tier:       0,
			wantTier:   1,
			wantOffset: 15 * time.Minute,
			wantOK:     true,
		},
		{
			name:       "critical severity runs the fast schedule",
			policy:     def,
			sev:        floordash.SeverityCritical,
			tier:       1,
			wantTier:   2,
			wantOffset: 2 * time.Minute,
			wantOK:     true,
		},
		{
			name:   "ceiling tier holds",
			policy: def,
			sev:    floordash.SeverityHigh,
			tier:   3,
			wantOK: false,
		},
		{
			name:   "above ceiling holds",
			policy: def,
			sev:    floordash.SeverityHigh,
			tier:   7,
			wantOK: false,
		},
		{
			name:       "unknown severity falls back to the base interval",
			policy:     SchedulePolicy{Interval: 8 * time.Minute, MaxTier: 2},
			sev:        floordash.Severity("weird"),
			tier:       0,
			wantTier:   1,
			wantOffset: 8 * time.Minute,
			wantOK:     true,
		},
		{
			name:       "zero-valued policy still escalates",
			policy:     SchedulePolicy{},
			sev:        floordash.SeverityMedium,
			tier:       0,
			wantTier:   1,
			wantOffset: defaultEscalationInterval,
			wantOK:     true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tier, offset, ok := tt.policy.Next(tt.sev, tt.tier)
			if ok != tt.wantOK {
				t.Fatalf("ok: want %v, got %v", tt.wantOK, ok)
			}
			if !ok {
				return
			}
			if tier != tt.wantTier {
				t.Errorf("tier: want %d, got %d", tt.wantTier, tier)
			}
			if offset != tt.wantOffset {
				t.Errorf("offset: want %v, got %v", tt.wantOffset, offset)
			}
		})
	}
}
