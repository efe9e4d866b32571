package scheduler

import (
	"math"

	"github.com/heterosim/heterosim/internal/cpumodel"
	"github.com/heterosim/heterosim/internal/governor"
)

// tickMs is the simulated scheduler tick period PELT's decay constant is
// calibrated against, matching hmp_pelt.cpp's TICK_MS.
const tickMs = 10

// thresholdScale is PELT's busy-time fixed-point scale: a fully busy active
// cluster reports 1024, matching hmp_pelt.cpp's THRESHOLD_SCALE.
const thresholdScale = 1024

// PeltTunables are the parameters the codec decodes for a PELT scheduler
// (spec.md §4.3).
type PeltTunables struct {
	TimerRate       int
	LoadAvgPeriodMs int
	DownThreshold   int
	UpThreshold     int
}

// Pelt is the per-entity-load-tracking scheduler variant: it decays a
// rolling busy-time estimate every tick to decide cluster migration, while
// still sampling the governors on the coarser timer_rate cadence.
type Pelt struct {
	tunables PeltTunables

	little, big    *cpumodel.Cluster
	active, idle   *cpumodel.Cluster
	governorLittle *governor.Interactive
	governorBig    *governor.Interactive
	singleCluster  bool

	decayRatio  uint32
	loadAvgMax  uint32
	demand      uint64
	entryCnt    int
	maxLoadSum  int
	governorCnt int
}

// NewPelt constructs a PELT scheduler parked with big active, matching the
// original constructor, and precomputes the decay constant from
// load_avg_period_ms.
func NewPelt(cfg Cfg, t PeltTunables) *Pelt {
	p := &Pelt{
		tunables:       t,
		little:         cfg.Little,
		big:            cfg.Big,
		active:         cfg.Big,
		idle:           cfg.Little,
		governorLittle: cfg.GovernorLittle,
		governorBig:    cfg.GovernorBig,
		singleCluster:  cfg.Big == cfg.Little,
	}
	p.decayRatio = calcDecayRatio(tickMs, t.LoadAvgPeriodMs)
	p.loadAvgMax = calcLoadAvgMax(p.decayRatio)
	return p
}

// calcDecayRatio mirrors CalcDecayRatio: with y the per-millisecond decay
// factor such that y^n == 0.5 at the configured load_avg_period_ms, it
// returns the per-tick decay y^ms as a uint32 fixed-point fraction of
// UINT32_MAX.
func calcDecayRatio(ms, n int) uint32 {
	if n <= 0 {
		n = 1
	}
	y := math.Pow(0.5, 1.0/float64(n))
	return uint32(float64(math.MaxUint32) * math.Pow(y, float64(ms)))
}

// mulU64U32Shr32 computes (a*mul)>>32 without overflowing 64 bits, mirroring
// hmp_pelt.cpp's mul_u64_u32_shr specialized to shift=32.
func mulU64U32Shr32(a uint64, mul uint32) uint64 {
	al := uint32(a)
	ah := uint32(a >> 32)
	ret := (uint64(al) * uint64(mul)) >> 32
	if ah != 0 {
		ret += uint64(ah) * uint64(mul)
	}
	return ret
}

// calcLoadAvgMax mirrors CalcLoadAvgMax: the fixed point this decaying sum
// converges to under a constantly-saturated input.
func calcLoadAvgMax(decayRatio uint32) uint32 {
	var max, last uint32 = 0, math.MaxUint32
	for max != last {
		last = max
		max = 1024 + uint32(mulU64U32Shr32(uint64(max), decayRatio))
	}
	return max
}

// updateBusyTime mirrors PeltHmp::UpdateBusyTime: decays the previous
// demand estimate and folds in the new busy-percentage sample, then
// rescales against load_avg_max to report busy-time on the same
// thresholdScale as up/down_threshold.
func (p *Pelt) updateBusyTime(maxLoad int) uint64 {
	now := uint64(loadToBusyPct(p.active, maxLoad)) * thresholdScale / 100
	p.demand = now + mulU64U32Shr32(p.demand, p.decayRatio)
	if p.loadAvgMax == 0 {
		return 0
	}
	return p.demand * thresholdScale / uint64(p.loadAvgMax)
}

// Tick implements PeltHmp::SchedulerTick.
func (p *Pelt) Tick(maxLoad int, loads [NLoadsMax]int, now int) int {
	busy := p.updateBusyTime(maxLoad)
	if !p.singleCluster {
		if busy > uint64(p.tunables.UpThreshold) {
			p.active, p.idle = p.big, p.little
		} else if busy < uint64(p.tunables.DownThreshold) {
			p.active, p.idle = p.little, p.big
		}
	}

	p.entryCnt++
	p.maxLoadSum += maxLoad

	if p.entryCnt == p.tunables.TimerRate {
		maxLoadAvg := p.maxLoadSum / p.tunables.TimerRate
		p.entryCnt = 0
		p.maxLoadSum = 0

		p.idle.BusyPct = 0
		p.active.BusyPct = loadToBusyPct(p.active, maxLoadAvg)

		p.little.SetCurFreq(p.governorLittle.Tick(p.little.BusyPct, p.governorCnt))
		if !p.singleCluster {
			p.big.SetCurFreq(p.governorBig.Tick(p.big.BusyPct, p.governorCnt))
		}
		p.governorCnt++
	}

	return p.active.CalcCapacity()
}

// CalcPower implements the shared CalcPower the original factors onto Hmp.
func (p *Pelt) CalcPower(loads [NLoadsMax]int) int {
	return calcPower(p.active, p.idle, loads)
}

// CalcPowerForIdle implements the shared CalcPowerForIdle.
func (p *Pelt) CalcPowerForIdle() int {
	return calcPowerForIdle(p.little, p.big, p.active)
}

// Active reports the currently hot cluster.
func (p *Pelt) Active() *cpumodel.Cluster {
	return p.active
}

// Thresholds reports the current up/down utilization thresholds.
func (p *Pelt) Thresholds() (up, down int) {
	return p.tunables.UpThreshold, p.tunables.DownThreshold
}

// SetThresholds overrides the up/down utilization thresholds.
func (p *Pelt) SetThresholds(up, down int) {
	p.tunables.UpThreshold = up
	p.tunables.DownThreshold = down
}
