package oee

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"floordash"
	"floordash/internal/logger"
)

// IngestResult describes the outcome of one Ingest call.
type IngestResult int

const (
	Accepted IngestResult = iota
	RejectedStale
	RejectedInvalid
)

func (r IngestResult) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case RejectedStale:
		return "rejected_stale"
	case RejectedInvalid:
		return "rejected_invalid"
	default:
		return "unknown"
	}
}

// EmitFunc receives every snapshot produced by a window rollover.
// It is called outside the aggregator's locks and must not block.
type EmitFunc func(floordash.OeeSnapshot)

// Config carries the two window durations.
type Config struct {
	CurrentWindow time.Duration
	SummaryWindow time.Duration
}

const (
	DefaultCurrentWindow = time.Minute
	DefaultSummaryWindow = 24 * time.Hour

	shardCount = 16
)

// Aggregator consumes equipment samples and maintains two parallel window
// tiers per line: a short "current" window and a long "summary" window.
// State is sharded by line id; samples for different lines never contend.
type Aggregator struct {
	cfg  Config
	emit EmitFunc
	log  *logger.Logger

	shards [shardCount]*shard

	droppedStale     atomic.Uint64
	droppedMalformed atomic.Uint64
}

type shard struct {
	mu    sync.Mutex
	lines map[string]*lineState
}

type lineState struct {
	current *windowAccumulator
	summary *windowAccumulator
	// last accepted timestamp per equipment on this line; used both for
	// out-of-order rejection and to attribute elapsed time to a sample
	lastSeen map[string]time.Time
	// latest closed snapshot per tier, served to pull queries
	latest map[string]floordash.OeeSnapshot
}

// NewAggregator builds an aggregator. Zero durations fall back to defaults.
func NewAggregator(cfg Config, emit EmitFunc, log *logger.Logger) *Aggregator {
	if cfg.CurrentWindow <= 0 {
		cfg.CurrentWindow = DefaultCurrentWindow
	}
	if cfg.SummaryWindow <= 0 {
		cfg.SummaryWindow = DefaultSummaryWindow
	}
	a := &Aggregator{cfg: cfg, emit: emit, log: log}
	for i := range a.shards {
		a.shards[i] = &shard{lines: make(map[string]*lineState)}
	}
	return a
}

// Ingest folds one sample into both window tiers for its line. Malformed
// and out-of-order samples are dropped with a counted warning; Ingest
// never fails the pipeline.
func (a *Aggregator) Ingest(s floordash.EquipmentSample) IngestResult {
	if !validSample(s) {
		a.droppedMalformed.Add(1)
		if a.log != nil {
			a.log.Warnw("sample_rejected_malformed",
				"equipment", s.EquipmentID, "line", s.LineID, "ts", s.Timestamp)
		}
		return RejectedInvalid
	}

	sh := a.shardFor(s.LineID)
	sh.mu.Lock()

	ls, ok := sh.lines[s.LineID]
	if !ok {
		ls = &lineState{
			lastSeen: make(map[string]time.Time),
			latest:   make(map[string]floordash.OeeSnapshot),
		}
		sh.lines[s.LineID] = ls
	}

	if last, ok := ls.lastSeen[s.EquipmentID]; ok && s.Timestamp.Before(last) {
		sh.mu.Unlock()
		a.droppedStale.Add(1)
		if a.log != nil {
			a.log.Warnw("sample_rejected_out_of_order",
				"equipment", s.EquipmentID, "line", s.LineID,
				"ts", s.Timestamp, "last", last)
		}
		return RejectedStale
	}

	last := ls.lastSeen[s.EquipmentID]
	var closed []floordash.OeeSnapshot
	ls.current, closed = a.fold(ls, ls.current, TierCurrent, a.cfg.CurrentWindow, s, last, closed)
	ls.summary, closed = a.fold(ls, ls.summary, TierSummary, a.cfg.SummaryWindow, s, last, closed)
	ls.lastSeen[s.EquipmentID] = s.Timestamp

	sh.mu.Unlock()

	// Emit after releasing the shard lock so a slow consumer cannot stall
	// sample processing for the line.
	for _, snap := range closed {
		a.emitSnapshot(snap)
	}
	return Accepted
}

// fold routes one sample through a tier: the prior window is closed when
// the sample falls past its end, the sample's contribution lands in the
// window containing its timestamp, and a sample exactly on the boundary
// closes that window immediately. Closed-window snapshots are collected
// for emission after unlock.
func (a *Aggregator) fold(ls *lineState, acc *windowAccumulator, tier string, size time.Duration, s floordash.EquipmentSample, last time.Time, closed []floordash.OeeSnapshot) (*windowAccumulator, []floordash.OeeSnapshot) {
	if acc != nil && !acc.contains(s.Timestamp) {
		acc, closed = a.close(ls, acc, s.LineID, closed)
	}
	if acc == nil {
		acc = newWindowAccumulator(tier, size, s.Timestamp)
	}

	// Elapsed time since the equipment's previous sample, clipped so time
	// before the window start is not counted.
	var elapsed time.Duration
	if !last.IsZero() {
		elapsed = s.Timestamp.Sub(last)
		if max := s.Timestamp.Sub(acc.start); elapsed > max {
			elapsed = max
		}
	}
	acc.add(s, elapsed)

	if s.Timestamp.Equal(acc.end) {
		acc, closed = a.close(ls, acc, s.LineID, closed)
	}
	return acc, closed
}

// close takes the accumulator's snapshot (when it has planned time) and
// retires it. Must be called with the shard lock held.
func (a *Aggregator) close(ls *lineState, acc *windowAccumulator, lineID string, closed []floordash.OeeSnapshot) (*windowAccumulator, []floordash.OeeSnapshot) {
	if snap, ok := acc.snapshot(lineID); ok {
		ls.latest[acc.tier] = snap
		closed = append(closed, snap)
	}
	return nil, closed
}

// Flush closes every open window and emits the resulting snapshots.
// Intended for graceful shutdown so a long summary window is not lost.
func (a *Aggregator) Flush() {
	var out []floordash.OeeSnapshot
	for _, sh := range a.shards {
		sh.mu.Lock()
		for lineID, ls := range sh.lines {
			for _, acc := range []*windowAccumulator{ls.current, ls.summary} {
				if acc == nil {
					continue
				}
				if snap, ok := acc.snapshot(lineID); ok {
					ls.latest[acc.tier] = snap
					out = append(out, snap)
				}
			}
			ls.current, ls.summary = nil, nil
		}
		sh.mu.Unlock()
	}
	for _, snap := range out {
		a.emitSnapshot(snap)
	}
}

// Latest returns the most recently closed snapshot for a line and tier.
func (a *Aggregator) Latest(lineID, tier string) (floordash.OeeSnapshot, bool) {
	sh := a.shardFor(lineID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	ls, ok := sh.lines[lineID]
	if !ok {
		return floordash.OeeSnapshot{}, false
	}
	snap, ok := ls.latest[tier]
	return snap, ok
}

// Dropped reports how many samples were rejected since startup.
func (a *Aggregator) Dropped() (stale, malformed uint64) {
	return a.droppedStale.Load(), a.droppedMalformed.Load()
}

func (a *Aggregator) emitSnapshot(snap floordash.OeeSnapshot) {
	if a.emit != nil {
		a.emit(snap)
	}
}

func (a *Aggregator) shardFor(lineID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(lineID))
	return a.shards[h.Sum32()%shardCount]
}

func validSample(s floordash.EquipmentSample) bool {
	if s.EquipmentID == "" || s.LineID == "" || s.Timestamp.IsZero() {
		return false
	}
	if s.GoodCount < 0 || s.TotalCount < 0 || s.GoodCount > s.TotalCount {
		return false
	}
	if s.IdealCycleTime < 0 {
		return false
	}
	return true
}
