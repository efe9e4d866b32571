// Package scheduler implements the heterogeneous-CPU cluster-migration
// schedulers WALT and PELT: both track a demand signal from recent load
// samples, decide whether the big or little cluster should be "active"
// (PELT every tick, WALT every timer_rate ticks), and periodically (every timer_rate ticks) feed the active and
// idle clusters' governors with a busy-percentage sample. Ported from
// original_source/source/sim/hmp.cpp and hmp_pelt.cpp.
package scheduler

import (
	"fmt"

	"github.com/heterosim/heterosim/internal/cpumodel"
	"github.com/heterosim/heterosim/internal/governor"
)

// NLoadsMax bounds the per-core load sample array, matching workload.MaxCores.
const NLoadsMax = 4

// Scheduler is the contract both WALT and PELT satisfy.
type Scheduler interface {
	// Tick feeds one quantum's load sample (aggregate max_load plus
	// per-core loads) and returns the active cluster's delivered
	// capacity for that quantum.
	Tick(maxLoad int, loads [NLoadsMax]int, now int) int
	// CalcPower returns instantaneous power for the on-screen pass,
	// given the same per-core load sample just ticked.
	CalcPower(loads [NLoadsMax]int) int
	// CalcPowerForIdle returns instantaneous power for the off-screen
	// pass, which ignores per-core loads and instead assumes a fixed
	// idle-power shape for whichever clusters are/aren't active.
	CalcPowerForIdle() int
	// Active reports which cluster currently carries the workload.
	Active() *cpumodel.Cluster
}

// ThresholdScheduler is satisfied by schedulers whose migration thresholds
// can be read and overridden, which UperfBoost needs to back up and
// temporarily replace on entry.
type ThresholdScheduler interface {
	Scheduler
	Thresholds() (up, down int)
	SetThresholds(up, down int)
}

// Cfg bundles the shared construction parameters for both variants.
type Cfg struct {
	Little         *cpumodel.Cluster
	Big            *cpumodel.Cluster
	GovernorLittle *governor.Interactive
	GovernorBig    *governor.Interactive
}

// loadToBusyPct mirrors WaltHmp::LoadToBusyPct / PeltHmp's shared helper:
// load divided by the cluster's current delivered rate (freq*efficiency),
// with no rounding or clamp in the original.
func loadToBusyPct(c *cpumodel.Cluster, load int) int {
	denom := c.CurFreq() * c.Model.Efficiency
	if denom <= 0 {
		return 0
	}
	return load / denom
}

// calcPower mirrors WaltHmp::CalcPower / the shared CalcPower used by both
// variants: the active cluster's per-core loads are converted to load
// percentages of its current rate, the idle cluster gets a 1%-on-one-core
// floor.
func calcPower(active, idle *cpumodel.Cluster, loads [NLoadsMax]int) int {
	denom := active.Model.Efficiency * active.CurFreq()
	loadPcts := make([]int, active.Model.CoreNum)
	for i := range loadPcts {
		if i < NLoadsMax && denom > 0 {
			loadPcts[i] = loads[i] / denom
		}
	}
	idleLoadPcts := make([]int, idle.Model.CoreNum)
	if len(idleLoadPcts) > 0 {
		idleLoadPcts[0] = 1
	}
	return active.CalcPower(loadPcts) + idle.CalcPower(idleLoadPcts)
}

// calcPowerForIdle mirrors WaltHmp::CalcPowerForIdle: if little is active,
// only little draws idle power; otherwise both clusters are assumed to be
// fully on (one core each), since the scheduler genuinely moved work onto
// big.
func calcPowerForIdle(little, big, active *cpumodel.Cluster) int {
	onOneCore := func(c *cpumodel.Cluster) []int {
		p := make([]int, c.Model.CoreNum)
		if len(p) > 0 {
			p[0] = 100
		}
		return p
	}
	pwr := little.CalcPower(onOneCore(little))
	if active != little {
		pwr += big.CalcPower(onOneCore(big))
	}
	return pwr
}

// New builds a Scheduler by SoC scheduler type. Legacy is explicitly
// unsupported: the original never exercises it in the optimizer path, and
// spec.md leaves its exact semantics an open question rather than a
// requirement.
func New(schedType cpumodel.SchedType, cfg Cfg, waltTunables *WaltTunables, peltTunables *PeltTunables) (Scheduler, error) {
	switch schedType {
	case cpumodel.SchedWALT:
		if waltTunables == nil {
			return nil, fmt.Errorf("scheduler: WALT requires WaltTunables")
		}
		return NewWalt(cfg, *waltTunables), nil
	case cpumodel.SchedPELT:
		if peltTunables == nil {
			return nil, fmt.Errorf("scheduler: PELT requires PeltTunables")
		}
		return NewPelt(cfg, *peltTunables), nil
	case cpumodel.SchedLegacy:
		return nil, fmt.Errorf("scheduler: Legacy sched_type is not supported")
	default:
		return nil, fmt.Errorf("scheduler: unknown sched_type %v", schedType)
	}
}
