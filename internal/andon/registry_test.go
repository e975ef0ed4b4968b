package andon

import (
	"errors"
	"sync"
	"testing"
	"time"

	"floordash"
)

// eventRecorder captures everything the registry publishes.
type eventRecorder struct {
	mu     sync.Mutex
	events []floordash.Event
}

func (r *eventRecorder) sink(ev floordash.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) byType(t floordash.EventType) []floordash.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []floordash.Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// manualPolicy escalates every interval up to maxTier, like the default,
// but with values that keep tests readable.
func manualPolicy() SchedulePolicy {
	return SchedulePolicy{Interval: 15 * time.Minute, MaxTier: 3}
}

func newTestRegistry(rec *eventRecorder) *Registry {
	return NewRegistry(manualPolicy(), rec.sink, nil)
}

func TestRegistry_FaultOpenCreatesSingleLiveEvent(t *testing.T) {
	t.Parallel()

	rec := &eventRecorder{}
	reg := newTestRegistry(rec)

	ev, err := reg.FaultOpen("eq-1", "line-1", floordash.SeverityHigh, "jam")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.State != floordash.StateOpen || ev.Tier != 0 {
		t.Fatalf("want open tier-0 event, got %+v", ev)
	}
	if ev.NextEscalationAt == nil {
		t.Fatalf("expected an armed escalation deadline")
	}

	// second fault-open for the same equipment merges, no new event
	dup, err := reg.FaultOpen("eq-1", "line-1", floordash.SeverityHigh, "jam again")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
	if dup.ID != ev.ID {
		t.Errorf("duplicate open must return the live event, got %s want %s", dup.ID, ev.ID)
	}
	if got := len(reg.Active("")); got != 1 {
		t.Errorf("live events: want 1, got %d", got)
	}
	if !reg.OpenFor("eq-1") {
		t.Errorf("OpenFor must report the live event")
	}
}

func TestRegistry_AcknowledgeTransitions(t *testing.T) {
	t.Parallel()

	rec := &eventRecorder{}
	reg := newTestRegistry(rec)

	ev, _ := reg.FaultOpen("eq-1", "line-1", floordash.SeverityMedium, "")

	acked, err := reg.Acknowledge(ev.ID, "operator-7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acked.State != floordash.StateAcknowledged {
		t.Errorf("state: want acknowledged, got %s", acked.State)
	}
	if acked.AcknowledgedAt == nil || acked.AcknowledgedBy != "operator-7" {
		t.Errorf("acknowledgment fields not recorded: %+v", acked)
	}
	if acked.NextEscalationAt != nil {
		t.Errorf("acknowledge must cancel the pending escalation")
	}

	// double acknowledge is a conflict, not a crash, and mutates nothing
	again, err := reg.Acknowledge(ev.ID, "operator-8")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
	if again.AcknowledgedBy != "operator-7" {
		t.Errorf("conflicting acknowledge must not mutate, got %+v", again)
	}

	if _, err := reg.Acknowledge("no-such-event", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound for unknown id, got %v", err)
	}
}

func TestRegistry_ResolveEmitsDowntimeAndRetires(t *testing.T) {
	t.Parallel()

	rec := &eventRecorder{}
	reg := newTestRegistry(rec)

	opened := time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)
	resolved := opened.Add(42 * time.Minute)
	now := opened
	reg.now = func() time.Time { return now }

	ev, _ := reg.FaultOpen("eq-1", "line-1", floordash.SeverityHigh, "")
	now = opened.Add(10 * time.Minute)
	if _, err := reg.Acknowledge(ev.ID, "op"); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	now = resolved

	final, err := reg.Resolve(ev.ID, "maint-2")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if final.State != floordash.StateResolved {
		t.Errorf("state: want resolved, got %s", final.State)
	}
	if final.AcknowledgedAt == nil {
		t.Errorf("resolve must preserve acknowledged-at")
	}
	if final.ResolvedAt == nil || final.ResolvedAt.Before(*final.AcknowledgedAt) {
		t.Errorf("resolved-at must be set and >= acknowledged-at: %+v", final)
	}

	// machine retired: equipment free, final state still readable
	if reg.OpenFor("eq-1") {
		t.Errorf("equipment must be free after resolve")
	}
	if got, err := reg.Get(ev.ID); err != nil || got.State != floordash.StateResolved {
		t.Errorf("resolved event must stay readable: %+v, %v", got, err)
	}
	if got := len(reg.Active("")); got != 0 {
		t.Errorf("resolved event must leave the active list, got %d", got)
	}

	// second resolve and late acknowledge are conflicts, not mutations
	if _, err := reg.Resolve(ev.ID, "maint-2"); !errors.Is(err, ErrConflict) {
		t.Errorf("double resolve: want ErrConflict, got %v", err)
	}
	if _, err := reg.Acknowledge(ev.ID, "op"); !errors.Is(err, ErrConflict) {
		t.Errorf("acknowledge after resolve: want ErrConflict, got %v", err)
	}

	dts := rec.byType(floordash.EventDowntime)
	if len(dts) != 1 {
		t.Fatalf("want exactly one downtime event, got %d", len(dts))
	}
	dt, ok := dts[0].Payload.(floordash.DowntimeEvent)
	if !ok {
		t.Fatalf("downtime payload type: %T", dts[0].Payload)
	}
	if dt.DurationSeconds != resolved.Sub(opened).Seconds() {
		t.Errorf("duration: want %v, got %v", resolved.Sub(opened).Seconds(), dt.DurationSeconds)
	}

	// a fresh fault may open for the same equipment afterwards
	if _, err := reg.FaultOpen("eq-1", "line-1", floordash.SeverityLow, ""); err != nil {
		t.Errorf("fault-open after resolve: %v", err)
	}
}

func TestRegistry_EscalationTiersAreMonotonic(t *testing.T) {
	t.Parallel()

	rec := &eventRecorder{}
	reg := newTestRegistry(rec)

	ev, _ := reg.FaultOpen("eq-1", "line-1", floordash.SeverityLow, "")

	// drive the timer path directly: three firings reach the ceiling
	tiers := []int{0}
	for fire := 0; fire < 5; fire++ {
		cur, _ := reg.Get(ev.ID)
		reg.escalate(ev.ID, cur.Tier)
		next, _ := reg.Get(ev.ID)
		tiers = append(tiers, next.Tier)
	}

	for i := 1; i < len(tiers); i++ {
		if tiers[i] < tiers[i-1] {
			t.Fatalf("tier decreased: %v", tiers)
		}
	}
	final, _ := reg.Get(ev.ID)
	if final.Tier != 3 {
		t.Errorf("ceiling: want tier 3, got %d", final.Tier)
	}
	if final.NextEscalationAt != nil {
		t.Errorf("no timer may be armed at the ceiling")
	}

	// firing at the ceiling is a no-op
	reg.escalate(ev.ID, final.Tier)
	held, _ := reg.Get(ev.ID)
	if held.Tier != 3 {
		t.Errorf("tier must hold at ceiling, got %d", held.Tier)
	}
}

func TestRegistry_StaleTimerFiringIsNoOp(t *testing.T) {
	t.Parallel()

	rec := &eventRecorder{}
	reg := newTestRegistry(rec)

	ev, _ := reg.FaultOpen("eq-1", "line-1", floordash.SeverityLow, "")
	if _, err := reg.Acknowledge(ev.ID, "op"); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}

	// a timer that raced the acknowledge fires late: nothing moves
	reg.escalate(ev.ID, 0)
	got, _ := reg.Get(ev.ID)
	if got.Tier != 0 {
		t.Errorf("stale firing must not escalate an acknowledged event, tier=%d", got.Tier)
	}

	// a firing armed against an outdated tier is likewise ignored
	ev2, _ := reg.FaultOpen("eq-2", "line-1", floordash.SeverityLow, "")
	reg.escalate(ev2.ID, 0) // legitimate: tier 0 -> 1
	reg.escalate(ev2.ID, 0) // stale duplicate
	got2, _ := reg.Get(ev2.ID)
	if got2.Tier != 1 {
		t.Errorf("duplicate firing must be ignored, tier=%d", got2.Tier)
	}
}

func TestRegistry_EscalationTimerFires(t *testing.T) {
	t.Parallel()

	rec := &eventRecorder{}
	reg := NewRegistry(SchedulePolicy{Interval: 20 * time.Millisecond, MaxTier: 1}, rec.sink, nil)

	ev, _ := reg.FaultOpen("eq-1", "line-1", floordash.SeverityLow, "")

	deadline := time.After(2 * time.Second)
	for {
		cur, err := reg.Get(ev.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if cur.Tier == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timer did not escalate within deadline, tier=%d", cur.Tier)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestRegistry_EveryTransitionPublishesOneEvent(t *testing.T) {
	t.Parallel()

	rec := &eventRecorder{}
	reg := newTestRegistry(rec)

	ev, _ := reg.FaultOpen("eq-1", "line-1", floordash.SeverityHigh, "")
	reg.escalate(ev.ID, 0)
	_, _ = reg.Acknowledge(ev.ID, "op")
	_, _ = reg.Resolve(ev.ID, "op")

	andonEvents := rec.byType(floordash.EventAndon)
	if len(andonEvents) != 4 { // open, escalate, acknowledge, resolve
		t.Fatalf("andon events: want 4, got %d", len(andonEvents))
	}
	states := []floordash.AndonState{
		floordash.StateOpen, floordash.StateOpen,
		floordash.StateAcknowledged, floordash.StateResolved,
	}
	for i, want := range states {
		got := andonEvents[i].Payload.(floordash.AndonEvent)
		if got.State != want {
			t.Errorf("event %d state: want %s, got %s", i, want, got.State)
		}
	}
}
