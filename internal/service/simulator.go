package service

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"floordash"
	"floordash/internal/logger"
)

// ----------- Simulation constants -----------
const (
	simIdealCycleSec  = 1.0  // seconds per unit at rated speed
	simYield          = 0.97 // fraction of produced units that are good
	simStopChance     = 0.01 // per-tick chance a running equipment stops
	simMinStopTicks   = 5
	simMaxStopTicks   = 30
	simUnitsPerSecond = 0.8 // actual speed as a fraction of rated speed
)

// SimLine is one simulated production line with its equipment.
type SimLine struct {
	LineID    string   `mapstructure:"line_id"`
	Equipment []string `mapstructure:"equipment"`
}

// SimConfig enables and shapes the synthetic telemetry feed.
type SimConfig struct {
	Enabled bool
	Lines   []SimLine
}

// SimulatorService feeds synthetic equipment samples into the ingest path
// so the whole pipeline runs without a PLC adapter attached. Equipment
// occasionally stops for a random number of ticks, which exercises the
// Andon workflow end to end.
type SimulatorService struct {
	cfg    SimConfig
	ingest Ingest
	log    *logger.Logger

	mu    sync.Mutex
	state map[string]*simEquipment
	rng   *rand.Rand
}

type simEquipment struct {
	running   bool
	stopTicks int     // ticks remaining in the current stoppage
	carry     float64 // fractional units carried between ticks
}

// NewSimulatorService returns a simulator over the configured plant.
func NewSimulatorService(cfg SimConfig, ingest Ingest, log *logger.Logger) *SimulatorService {
	return &SimulatorService{
		cfg:    cfg,
		ingest: ingest,
		log:    log,
		state:  make(map[string]*simEquipment),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run ticks at the given interval until ctx is canceled.
func (s *SimulatorService) Run(ctx context.Context, tick time.Duration) {
	if !s.cfg.Enabled || len(s.cfg.Lines) == 0 {
		return
	}
	if s.log != nil {
		s.log.Infow("simulator_started", "lines", len(s.cfg.Lines), "tick", tick)
	}

	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.step(ctx, now.UTC(), tick)
		}
	}
}

// step emits one sample per equipment.
func (s *SimulatorService) step(ctx context.Context, now time.Time, tick time.Duration) {
	for _, line := range s.cfg.Lines {
		for _, equip := range line.Equipment {
			sample := s.nextSample(equip, line.LineID, now, tick)
			s.ingest.Ingest(ctx, sample)
		}
	}
}

func (s *SimulatorService) nextSample(equipmentID, lineID string, now time.Time, tick time.Duration) floordash.EquipmentSample {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.state[equipmentID]
	if !ok {
		st = &simEquipment{running: true}
		s.state[equipmentID] = st
	}

	if st.running {
		if s.rng.Float64() < simStopChance {
			st.running = false
			st.stopTicks = simMinStopTicks + s.rng.Intn(simMaxStopTicks-simMinStopTicks+1)
		}
	} else {
		st.stopTicks--
		if st.stopTicks <= 0 {
			st.running = true
		}
	}

	var good, total int64
	if st.running {
		produced := st.carry + simUnitsPerSecond*tick.Seconds()
		total = int64(produced)
		st.carry = produced - float64(total)
		good = total
		for i := int64(0); i < total; i++ {
			if s.rng.Float64() > simYield {
				good--
			}
		}
	}

	return floordash.EquipmentSample{
		EquipmentID:    equipmentID,
		LineID:         lineID,
		Timestamp:      now,
		Running:        st.running,
		GoodCount:      good,
		TotalCount:     total,
		IdealCycleTime: simIdealCycleSec,
		Planned:        true,
	}
}
