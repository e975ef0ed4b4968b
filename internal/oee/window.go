package oee

import (
	"time"

	"floordash"

	"github.com/google/uuid"
)

// Tier names for the two parallel accumulator tiers.
const (
	TierCurrent = "current"
	TierSummary = "summary"
)

// windowAccumulator holds the running sums for one (line, tier, window).
// It is owned by the aggregator shard that created it and is discarded
// after its snapshot is taken on rollover.
type windowAccumulator struct {
	tier  string
	size  time.Duration
	start time.Time
	end   time.Time

	plannedSec float64
	runSec     float64
	idealSec   float64
	good       int64
	total      int64
}

// newWindowAccumulator opens the wall-clock-aligned window covering ts.
// Windows span (start, end]: a sample exactly on an alignment boundary
// belongs to the window ending there, so aligned sample streams attribute
// each full interval to one window.
func newWindowAccumulator(tier string, size time.Duration, ts time.Time) *windowAccumulator {
	start := ts.Truncate(size)
	if start.Equal(ts) {
		start = start.Add(-size)
	}
	return &windowAccumulator{
		tier:  tier,
		size:  size,
		start: start,
		end:   start.Add(size),
	}
}

// contains reports whether ts falls inside the open (start, end] window.
// The end bound is inclusive: a sample landing exactly on the boundary
// contributes to the closing window, then triggers its rollover.
func (w *windowAccumulator) contains(ts time.Time) bool {
	return ts.After(w.start) && !ts.After(w.end)
}

// add folds one sample into the window. elapsed is the time attributed to
// this sample (since the previous sample for the same equipment, clipped
// to the window start).
func (w *windowAccumulator) add(s floordash.EquipmentSample, elapsed time.Duration) {
	sec := elapsed.Seconds()
	if sec > 0 {
		if s.Planned {
			w.plannedSec += sec
		}
		if s.Running {
			w.runSec += sec
		}
	}
	w.good += s.GoodCount
	w.total += s.TotalCount
	w.idealSec += float64(s.TotalCount) * s.IdealCycleTime
}

// snapshot computes the window's OEE figures. It returns false when the
// window saw no planned production time: such windows carry no information
// and must not be published as zero OEE.
func (w *windowAccumulator) snapshot(lineID string) (floordash.OeeSnapshot, bool) {
	if w.plannedSec <= 0 {
		return floordash.OeeSnapshot{}, false
	}

	availability := clamp01(w.runSec / w.plannedSec)

	performance := 0.0
	if w.runSec > 0 {
		performance = clamp01(w.idealSec / w.runSec)
	}

	quality := 0.0
	if w.total > 0 {
		quality = clamp01(float64(w.good) / float64(w.total))
	}

	return floordash.OeeSnapshot{
		ID:             uuid.NewString(),
		LineID:         lineID,
		Tier:           w.tier,
		WindowStart:    w.start,
		WindowEnd:      w.end,
		Availability:   availability,
		Performance:    performance,
		Quality:        quality,
		OEE:            availability * performance * quality,
		PlannedSeconds: w.plannedSec,
		RunSeconds:     w.runSec,
		GoodCount:      w.good,
		TotalCount:     w.total,
	}, true
}

// clamp01 caps a ratio into [0,1]. Sensor noise can push counts past ideal
// capacity; that is capped, not treated as an error.
func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
