package andon

import (
	"errors"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"floordash"
	"floordash/internal/logger"

	"github.com/google/uuid"
)

var (
	// ErrConflict is returned for transitions that are invalid in the
	// event's current state (double acknowledge, resolve after resolve,
	// second fault-open for an already-down equipment).
	ErrConflict = errors.New("andon: transition conflicts with current state")
	// ErrNotFound is returned when no live event carries the given id.
	ErrNotFound = errors.New("andon: event not found")
)

// SinkFunc receives one outbound event per state transition. Delivery is
// fire-and-forget: the registry never learns about downstream failures.
type SinkFunc func(floordash.Event)

const regShardCount = 16

// resolvedTombstones bounds how many resolved events each shard remembers.
// A late acknowledge/resolve against a remembered event reports a conflict
// instead of not-found.
const resolvedTombstones = 256

// Registry owns every live Andon event, one state machine per equipment.
// Transitions for a single event are serialized by the machine's lock;
// escalation timers re-enter through the same lock, so a timer racing a
// human action degrades to a no-op instead of a double transition.
type Registry struct {
	policy Policy
	sink   SinkFunc
	log    *logger.Logger

	shards [regShardCount]*regShard

	// now is swapped out by tests
	now func() time.Time
}

type regShard struct {
	mu          sync.Mutex
	byEquipment map[string]*machine
	byID        map[string]*machine

	resolved      map[string]floordash.AndonEvent
	resolvedOrder []string
}

type machine struct {
	mu    sync.Mutex
	ev    floordash.AndonEvent
	timer *time.Timer
}

// NewRegistry builds a registry. A nil policy falls back to DefaultPolicy.
func NewRegistry(policy Policy, sink SinkFunc, log *logger.Logger) *Registry {
	if policy == nil {
		policy = DefaultPolicy()
	}
	r := &Registry{policy: policy, sink: sink, log: log, now: time.Now}
	for i := range r.shards {
		r.shards[i] = &regShard{
			byEquipment: make(map[string]*machine),
			byID:        make(map[string]*machine),
			resolved:    make(map[string]floordash.AndonEvent),
		}
	}
	return r
}

// FaultOpen opens a new event for equipment that just went down. While the
// equipment already has a live event the signal is merged into it: the
// existing event is returned together with ErrConflict and no state moves.
func (r *Registry) FaultOpen(equipmentID, lineID string, sev floordash.Severity, description string) (floordash.AndonEvent, error) {
	sh := r.shardFor(equipmentID)
	sh.mu.Lock()

	if m, ok := sh.byEquipment[equipmentID]; ok {
		sh.mu.Unlock()
		m.mu.Lock()
		ev := m.ev
		m.mu.Unlock()
		return ev, ErrConflict
	}

	now := r.now().UTC()
	ev := floordash.AndonEvent{
		ID:          uuid.NewString(),
		EquipmentID: equipmentID,
		LineID:      lineID,
		Severity:    sev,
		State:       floordash.StateOpen,
		Description: description,
		OpenedAt:    now,
		Tier:        0,
	}

	m := &machine{ev: ev}
	sh.byEquipment[equipmentID] = m
	sh.byID[ev.ID] = m
	// Arm only after the machine is reachable by id, so an immediate firing
	// cannot race the insert.
	if _, offset, ok := r.policy.Next(sev, 0); ok {
		deadline := now.Add(offset)
		m.ev.NextEscalationAt = &deadline
		m.timer = r.armTimer(ev.ID, 0, offset)
	}
	ev = m.ev
	sh.mu.Unlock()

	if r.log != nil {
		r.log.Infow("andon_opened", "event", ev.ID, "equipment", equipmentID,
			"line", lineID, "severity", sev)
	}
	r.publish(floordash.EventAndon, ev)
	return ev, nil
}

// Acknowledge moves an open event to acknowledged and cancels its pending
// escalation. Valid only from the open state.
func (r *Registry) Acknowledge(eventID, actor string) (floordash.AndonEvent, error) {
	m, err := r.lookup(eventID)
	if err != nil {
		if ev, ok := r.lookupResolved(eventID); ok {
			return ev, ErrConflict
		}
		return floordash.AndonEvent{}, err
	}

	m.mu.Lock()
	if m.ev.State != floordash.StateOpen {
		ev := m.ev
		m.mu.Unlock()
		return ev, ErrConflict
	}
	now := r.now().UTC()
	m.ev.State = floordash.StateAcknowledged
	m.ev.AcknowledgedAt = &now
	m.ev.AcknowledgedBy = actor
	m.ev.NextEscalationAt = nil
	m.stopTimer()
	ev := m.ev
	m.mu.Unlock()

	if r.log != nil {
		r.log.Infow("andon_acknowledged", "event", ev.ID, "by", actor, "tier", ev.Tier)
	}
	r.publish(floordash.EventAndon, ev)
	return ev, nil
}

// Resolve closes an event from the open or acknowledged state, retires its
// machine and emits the final andon event plus the downtime record.
// Resolution is always a human action; equipment recovery never calls this.
func (r *Registry) Resolve(eventID, actor string) (floordash.AndonEvent, error) {
	m, err := r.lookup(eventID)
	if err != nil {
		if ev, ok := r.lookupResolved(eventID); ok {
			return ev, ErrConflict
		}
		return floordash.AndonEvent{}, err
	}

	m.mu.Lock()
	if m.ev.State != floordash.StateOpen && m.ev.State != floordash.StateAcknowledged {
		ev := m.ev
		m.mu.Unlock()
		return ev, ErrConflict
	}
	now := r.now().UTC()
	m.ev.State = floordash.StateResolved
	m.ev.ResolvedAt = &now
	m.ev.ResolvedBy = actor
	m.ev.NextEscalationAt = nil
	m.stopTimer()
	ev := m.ev
	m.mu.Unlock()

	r.retire(ev)

	if r.log != nil {
		r.log.Infow("andon_resolved", "event", ev.ID, "by", actor,
			"duration_s", now.Sub(ev.OpenedAt).Seconds())
	}
	r.publish(floordash.EventAndon, ev)

	dt := floordash.DowntimeEvent{
		ID:              uuid.NewString(),
		EquipmentID:     ev.EquipmentID,
		LineID:          ev.LineID,
		Severity:        ev.Severity,
		StartedAt:       ev.OpenedAt,
		EndedAt:         now,
		DurationSeconds: now.Sub(ev.OpenedAt).Seconds(),
	}
	if r.sink != nil {
		r.sink(floordash.Event{
			Type:        floordash.EventDowntime,
			LineID:      dt.LineID,
			EquipmentID: dt.EquipmentID,
			At:          now,
			Payload:     dt,
		})
	}
	return ev, nil
}

// escalate is the timer entry point. fromTier pins the tier the timer was
// armed against: a stale firing (event acknowledged, resolved, or already
// escalated past fromTier) is a no-op.
func (r *Registry) escalate(eventID string, fromTier int) {
	m, err := r.lookup(eventID)
	if err != nil {
		return
	}

	m.mu.Lock()
	if m.ev.State != floordash.StateOpen || m.ev.Tier != fromTier {
		m.mu.Unlock()
		return
	}

	nextTier, _, ok := r.policy.Next(m.ev.Severity, m.ev.Tier)
	if !ok {
		m.mu.Unlock()
		return
	}
	m.ev.Tier = nextTier

	if _, offset, ok := r.policy.Next(m.ev.Severity, m.ev.Tier); ok {
		deadline := r.now().UTC().Add(offset)
		m.ev.NextEscalationAt = &deadline
		m.timer = r.armTimer(eventID, m.ev.Tier, offset)
	} else {
		// Ceiling reached: hold at the maximum tier, no further timer.
		m.ev.NextEscalationAt = nil
		m.timer = nil
		if r.log != nil {
			r.log.Warnw("andon_escalation_ceiling", "event", eventID, "tier", m.ev.Tier)
		}
	}
	ev := m.ev
	m.mu.Unlock()

	if r.log != nil {
		r.log.Infow("andon_escalated", "event", ev.ID, "equipment", ev.EquipmentID,
			"tier", ev.Tier)
	}
	r.publish(floordash.EventAndon, ev)
}

// Get returns a live event by id, or its final state while the resolved
// tombstone is still remembered.
func (r *Registry) Get(eventID string) (floordash.AndonEvent, error) {
	m, err := r.lookup(eventID)
	if err != nil {
		if ev, ok := r.lookupResolved(eventID); ok {
			return ev, nil
		}
		return floordash.AndonEvent{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ev, nil
}

// Active lists live events, newest first. An empty lineID lists all lines.
func (r *Registry) Active(lineID string) []floordash.AndonEvent {
	var out []floordash.AndonEvent
	for _, sh := range r.shards {
		sh.mu.Lock()
		machines := make([]*machine, 0, len(sh.byID))
		for _, m := range sh.byID {
			machines = append(machines, m)
		}
		sh.mu.Unlock()

		for _, m := range machines {
			m.mu.Lock()
			ev := m.ev
			m.mu.Unlock()
			if lineID == "" || ev.LineID == lineID {
				out = append(out, ev)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.After(out[j].OpenedAt) })
	return out
}

// OpenFor reports whether the equipment currently has a live event.
func (r *Registry) OpenFor(equipmentID string) bool {
	sh := r.shardFor(equipmentID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	_, ok := sh.byEquipment[equipmentID]
	return ok
}

func (r *Registry) lookup(eventID string) (*machine, error) {
	for _, sh := range r.shards {
		sh.mu.Lock()
		m, ok := sh.byID[eventID]
		sh.mu.Unlock()
		if ok {
			return m, nil
		}
	}
	return nil, ErrNotFound
}

// retire removes a resolved event's machine and leaves a tombstone behind.
// The full record survives only in the archive repository downstream.
func (r *Registry) retire(ev floordash.AndonEvent) {
	sh := r.shardFor(ev.EquipmentID)
	sh.mu.Lock()
	delete(sh.byEquipment, ev.EquipmentID)
	delete(sh.byID, ev.ID)
	sh.resolved[ev.ID] = ev
	sh.resolvedOrder = append(sh.resolvedOrder, ev.ID)
	if len(sh.resolvedOrder) > resolvedTombstones {
		delete(sh.resolved, sh.resolvedOrder[0])
		sh.resolvedOrder = sh.resolvedOrder[1:]
	}
	sh.mu.Unlock()
}

func (r *Registry) lookupResolved(eventID string) (floordash.AndonEvent, bool) {
	for _, sh := range r.shards {
		sh.mu.Lock()
		ev, ok := sh.resolved[eventID]
		sh.mu.Unlock()
		if ok {
			return ev, true
		}
	}
	return floordash.AndonEvent{}, false
}

func (r *Registry) armTimer(eventID string, fromTier int, offset time.Duration) *time.Timer {
	return time.AfterFunc(offset, func() {
		r.escalate(eventID, fromTier)
	})
}

func (r *Registry) publish(t floordash.EventType, ev floordash.AndonEvent) {
	if r.sink == nil {
		return
	}
	r.sink(floordash.Event{
		Type:        t,
		LineID:      ev.LineID,
		EquipmentID: ev.EquipmentID,
		At:          r.now().UTC(),
		Payload:     ev,
	})
}

func (r *Registry) shardFor(key string) *regShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return r.shards[h.Sum32()%regShardCount]
}

// stopTimer must be called with m.mu held.
func (m *machine) stopTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}
