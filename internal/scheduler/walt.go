package scheduler

import (
	"github.com/heterosim/heterosim/internal/cpumodel"
	"github.com/heterosim/heterosim/internal/governor"
)

// Window-stats policy values for WaltTunables.WindowStatsPolicy, matching
// WaltHmp's anonymous enum.
const (
	WindowStatsRecent = iota
	WindowStatsMax
	WindowStatsMaxRecentAvg
	WindowStatsAvg
)

// ravgHistSizeMax bounds the ravg history ring the codec may configure.
const ravgHistSizeMax = 5

// WaltTunables are the parameters the codec decodes for a WALT scheduler
// (spec.md §4.3).
type WaltTunables struct {
	TimerRate                      int
	SchedUpmigrate                 int
	SchedDownmigrate               int
	SchedRavgHistSize              int
	SchedWindowStatsPolicy         int
	SchedFreqAggregateThresholdPct int
}

// Walt is the windowed-average-load-tracking scheduler variant.
type Walt struct {
	tunables WaltTunables

	little, big    *cpumodel.Cluster
	active, idle   *cpumodel.Cluster
	governorLittle *governor.Interactive
	governorBig    *governor.Interactive
	singleCluster  bool

	upDemandThd, downDemandThd int

	sumHistory  [ravgHistSizeMax]int
	entryCnt    int
	maxLoadSum  int
	loadsSum    [NLoadsMax]int
	demand      int
	governorCnt int
}

// NewWalt constructs a WALT scheduler parked with big active, matching the
// original's constructor (active_=big_, idle_=little_).
func NewWalt(cfg Cfg, t WaltTunables) *Walt {
	w := &Walt{
		tunables:       t,
		little:         cfg.Little,
		big:            cfg.Big,
		active:         cfg.Big,
		idle:           cfg.Little,
		governorLittle: cfg.GovernorLittle,
		governorBig:    cfg.GovernorBig,
		singleCluster:  cfg.Big == cfg.Little,
	}
	w.upDemandThd = cfg.Little.Model.MaxFreq * cfg.Little.Model.Efficiency * t.SchedUpmigrate
	w.downDemandThd = cfg.Little.Model.MaxFreq * cfg.Little.Model.Efficiency * t.SchedDownmigrate
	return w
}

// updateHistory pushes a new demand sample onto the ravg history ring and
// recomputes the windowed demand per the configured stats policy.
func (w *Walt) updateHistory(inDemand int) {
	hist := &w.sumHistory
	histSize := w.tunables.SchedRavgHistSize
	if histSize <= 0 {
		histSize = 1
	}
	if histSize > ravgHistSizeMax {
		histSize = ravgHistSizeMax
	}

	const samples = 1
	sum := 0
	max := 0

	widx := histSize - 1
	ridx := widx - samples
	for ; ridx >= 0; widx, ridx = widx-1, ridx-1 {
		hist[widx] = hist[ridx]
		sum += hist[widx]
		if hist[widx] > max {
			max = hist[widx]
		}
	}
	for widx = 0; widx < samples && widx < histSize; widx++ {
		hist[widx] = inDemand
		sum += hist[widx]
		if hist[widx] > max {
			max = hist[widx]
		}
	}

	var demand int
	switch w.tunables.SchedWindowStatsPolicy {
	case WindowStatsRecent:
		demand = inDemand
	case WindowStatsMax:
		demand = max
	default:
		avg := sum / histSize
		if w.tunables.SchedWindowStatsPolicy == WindowStatsAvg {
			demand = avg
		} else if avg > inDemand {
			demand = avg
		} else {
			demand = inDemand
		}
	}
	w.demand = demand
}

// aggregateLoadToBusyPctIfNeed mirrors WaltHmp::AggregateLoadToBusyPctIfNeed:
// sums per-core loads across the active cluster's cores and, if that
// aggregate busy percentage clears the configured threshold, reports the
// aggregate instead of the windowed demand.
func (w *Walt) aggregateLoadToBusyPctIfNeed(loads [NLoadsMax]int) int {
	aggregated := 0
	for i := 0; i < w.active.Model.CoreNum && i < NLoadsMax; i++ {
		aggregated += loads[i]
	}
	aggregatedPct := loadToBusyPct(w.active, aggregated)
	if aggregatedPct > w.tunables.SchedFreqAggregateThresholdPct {
		return aggregatedPct
	}
	return loadToBusyPct(w.active, w.demand)
}

// Tick implements WaltHmp::WaltScheduler.
func (w *Walt) Tick(maxLoad int, loads [NLoadsMax]int, now int) int {
	w.entryCnt++
	w.maxLoadSum += maxLoad
	for i := 0; i < NLoadsMax; i++ {
		w.loadsSum[i] += loads[i]
	}

	if w.entryCnt == w.tunables.TimerRate {
		maxLoadAvg := w.maxLoadSum / w.tunables.TimerRate
		var loadsAvg [NLoadsMax]int
		for i := 0; i < NLoadsMax; i++ {
			loadsAvg[i] = w.loadsSum[i] / w.tunables.TimerRate
		}

		w.entryCnt = 0
		w.maxLoadSum = 0
		w.loadsSum = [NLoadsMax]int{}

		w.updateHistory(maxLoadAvg)

		if !w.singleCluster {
			if w.demand > w.upDemandThd {
				w.active, w.idle = w.big, w.little
			} else if w.demand < w.downDemandThd {
				w.active, w.idle = w.little, w.big
			}
		}

		w.idle.BusyPct = 0
		w.active.BusyPct = w.aggregateLoadToBusyPctIfNeed(loadsAvg)

		w.little.SetCurFreq(w.governorLittle.Tick(w.little.BusyPct, w.governorCnt))
		if !w.singleCluster {
			w.big.SetCurFreq(w.governorBig.Tick(w.big.BusyPct, w.governorCnt))
		}
		w.governorCnt++
	}

	return w.active.CalcCapacity()
}

// CalcPower implements WaltHmp::CalcPower.
func (w *Walt) CalcPower(loads [NLoadsMax]int) int {
	return calcPower(w.active, w.idle, loads)
}

// CalcPowerForIdle implements WaltHmp::CalcPowerForIdle.
func (w *Walt) CalcPowerForIdle() int {
	return calcPowerForIdle(w.little, w.big, w.active)
}

// Active reports the currently hot cluster.
func (w *Walt) Active() *cpumodel.Cluster {
	return w.active
}

// Thresholds reports the migration demand thresholds as plain
// sched_upmigrate/sched_downmigrate values.
func (w *Walt) Thresholds() (up, down int) {
	return w.tunables.SchedUpmigrate, w.tunables.SchedDownmigrate
}

// SetThresholds overrides the migration thresholds and recomputes the
// demand comparison points they feed.
func (w *Walt) SetThresholds(up, down int) {
	w.tunables.SchedUpmigrate = up
	w.tunables.SchedDownmigrate = down
	w.upDemandThd = w.little.Model.MaxFreq * w.little.Model.Efficiency * up
	w.downDemandThd = w.little.Model.MaxFreq * w.little.Model.Efficiency * down
}
