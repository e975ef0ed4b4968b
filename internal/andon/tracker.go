package andon

import (
	"sync"
	"time"

	"floordash"
	"floordash/internal/logger"
)

// Tracker watches equipment run-state edges in the sample stream and turns
// them into fault signals. Down tracking and human resolution are separate
// concerns: a recovery edge only stops downtime accrual here, it never
// resolves the equipment's Andon event.
type Tracker struct {
	reg *Registry
	log *logger.Logger

	mu        sync.Mutex
	equipment map[string]*equipmentState
}

type equipmentState struct {
	running  bool
	since    time.Time
	downtime time.Duration // accrued across completed down periods
	observed bool
}

// NewTracker builds a tracker feeding fault-open signals into reg.
func NewTracker(reg *Registry, log *logger.Logger) *Tracker {
	return &Tracker{
		reg:       reg,
		log:       log,
		equipment: make(map[string]*equipmentState),
	}
}

// Observe inspects one accepted sample. On a running→down edge it opens an
// Andon event; a duplicate open (event already live) is merged silently.
// On a down→running edge it closes the downtime accrual period only.
func (t *Tracker) Observe(s floordash.EquipmentSample) {
	t.mu.Lock()
	st, ok := t.equipment[s.EquipmentID]
	if !ok {
		st = &equipmentState{}
		t.equipment[s.EquipmentID] = st
	}

	wasRunning, observed := st.running, st.observed
	if observed && st.running == s.Running {
		t.mu.Unlock()
		return
	}

	if observed && !s.Running {
		// running → down
		st.running = false
		st.since = s.Timestamp
		st.observed = true
		t.mu.Unlock()

		sev := classifySeverity(s)
		if _, err := t.reg.FaultOpen(s.EquipmentID, s.LineID, sev, "equipment stopped"); err != nil && t.log != nil {
			t.log.Debugw("fault_open_merged", "equipment", s.EquipmentID)
		}
		return
	}

	if observed && !wasRunning && s.Running {
		// down → running: bookkeeping only, resolution stays with a human
		st.downtime += s.Timestamp.Sub(st.since)
		st.running = true
		st.since = s.Timestamp
		t.mu.Unlock()
		if t.log != nil {
			t.log.Infow("equipment_recovered", "equipment", s.EquipmentID,
				"line", s.LineID)
		}
		return
	}

	// first observation establishes the baseline, no signal
	st.running = s.Running
	st.since = s.Timestamp
	st.observed = true
	t.mu.Unlock()
}

// Downtime returns the total accrued downtime for completed down periods.
func (t *Tracker) Downtime(equipmentID string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.equipment[equipmentID]
	if !ok {
		return 0
	}
	return st.downtime
}

// classifySeverity maps a stop to a severity. A stop inside planned
// production time is an unplanned loss and rates high; off-shift stops
// rate low.
func classifySeverity(s floordash.EquipmentSample) floordash.Severity {
	if s.Planned {
		return floordash.SeverityHigh
	}
	return floordash.SeverityLow
}
