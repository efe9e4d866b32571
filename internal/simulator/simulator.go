// Package simulator drives one full evaluation of a decoded Tunables
// bundle against a Soc and a pair of on-screen/off-screen workload traces,
// producing the raw capacity/power trace the rank package scores. Ported
// from original_source/source/sim/sim.hpp's generic Sim<Governor, Sched,
// Boost> template, monomorphized here into four concrete flavors (spec.md
// §4.7) rather than carried as an open interface on the hot path.
package simulator

import (
	"fmt"

	"github.com/heterosim/heterosim/internal/boost"
	"github.com/heterosim/heterosim/internal/codec"
	"github.com/heterosim/heterosim/internal/cpumodel"
	"github.com/heterosim/heterosim/internal/governor"
	"github.com/heterosim/heterosim/internal/scheduler"
	"github.com/heterosim/heterosim/internal/workload"
)

// Flavor is the closed set of governor/scheduler/boost compositions
// spec.md §4.7 allows. Selection is driven by Soc.SchedType and a global
// use_uperf flag; there is no open extension point here by design.
type Flavor int

const (
	QcomBL Flavor = iota // Interactive + WALT + InputBoost
	BL                   // Interactive + PELT + InputBoost
	QcomUp               // Interactive + WALT + UperfBoost
	Up                   // Interactive + PELT + UperfBoost
)

// FlavorFor resolves the simulator flavor for a Soc's scheduler type and
// the run-wide use_uperf setting.
func FlavorFor(schedType cpumodel.SchedType, useUperf bool) (Flavor, error) {
	switch {
	case schedType == cpumodel.SchedWALT && !useUperf:
		return QcomBL, nil
	case schedType == cpumodel.SchedPELT && !useUperf:
		return BL, nil
	case schedType == cpumodel.SchedWALT && useUperf:
		return QcomUp, nil
	case schedType == cpumodel.SchedPELT && useUperf:
		return Up, nil
	default:
		return 0, fmt.Errorf("simulator: no flavor for sched_type %v use_uperf=%v", schedType, useUperf)
	}
}

// MiscConst bundles the constant baseline power draw (spec.md §4.5).
type MiscConst struct {
	WorkingBaseMw int
	IdleBaseMw    int
}

// Result is the raw simulation trace a Run produces: per-quantum delivered
// capacity and power for the on-screen pass, and the aggregate off-screen
// power draw. Mirrors SimResultPack in sim_types.h.
type Result struct {
	OnscreenCapacity []int
	OnscreenPower    []int
	OffscreenPower   int64
}

// env holds the fresh, per-evaluation mutable state a Run owns: clusters,
// governors, scheduler, and boost controller, all built once from the
// decoded Tunables and discarded at the end of the call.
type env struct {
	clusters       []*cpumodel.Cluster
	little, big    *cpumodel.Cluster
	governorLittle *governor.Interactive
	governorBig    *governor.Interactive
	sched          scheduler.Scheduler
	boostCtl       boost.Boost
}

func newEnv(soc *cpumodel.Soc, t codec.Tunables) (*env, error) {
	if len(soc.ClusterModels) == 0 {
		return nil, fmt.Errorf("simulator: soc %q has no clusters", soc.Name)
	}
	if len(t.Governors) != len(soc.ClusterModels) {
		return nil, fmt.Errorf("simulator: tunables have %d governor blocks, soc has %d clusters", len(t.Governors), len(soc.ClusterModels))
	}

	e := &env{}
	e.clusters = make([]*cpumodel.Cluster, len(soc.ClusterModels))
	governors := make([]*governor.Interactive, len(soc.ClusterModels))
	for i, m := range soc.ClusterModels {
		c := cpumodel.NewCluster(m)
		e.clusters[i] = c
		governors[i] = governor.New(t.Governors[i], c)
	}
	e.little = e.clusters[0]
	e.big = e.clusters[len(e.clusters)-1]
	e.governorLittle = governors[0]
	e.governorBig = governors[len(governors)-1]

	schedCfg := scheduler.Cfg{Little: e.little, Big: e.big, GovernorLittle: e.governorLittle, GovernorBig: e.governorBig}
	sched, err := scheduler.New(soc.SchedType, schedCfg, t.Walt, t.Pelt)
	if err != nil {
		return nil, err
	}
	e.sched = sched

	switch {
	case t.Input != nil:
		e.boostCtl = boost.NewInput(*t.Input, []*cpumodel.Cluster{e.little, e.big})
	case t.Uperf != nil:
		ts, ok := sched.(scheduler.ThresholdScheduler)
		if !ok {
			return nil, fmt.Errorf("simulator: UperfBoost requires a threshold-overridable scheduler")
		}
		e.boostCtl = boost.NewUperf(*t.Uperf, e.little, e.big, e.governorLittle, e.governorBig, ts)
	default:
		return nil, fmt.Errorf("simulator: tunables specify neither InputBoost nor UperfBoost")
	}

	return e, nil
}

// adaptMaxLoad clamps an aggregate demand value to the capacity currently
// on offer: the simulator cannot consume more than is delivered.
func adaptMaxLoad(maxLoad, capacity int) int {
	if maxLoad > capacity {
		return capacity
	}
	return maxLoad
}

// adaptLoads returns a copy of the per-core demand values, each clamped to
// capacity.
func adaptLoads(loads [workload.MaxCores]int, capacity int) [scheduler.NLoadsMax]int {
	var out [scheduler.NLoadsMax]int
	for i := 0; i < len(loads) && i < len(out); i++ {
		if loads[i] > capacity {
			out[i] = capacity
		} else {
			out[i] = loads[i]
		}
	}
	return out
}

// Run executes one full on-screen + off-screen evaluation, per spec.md
// §4.5. It owns no state beyond the call; every mutable piece (clusters,
// governors, scheduler, boost) is built fresh, making concurrent Runs over
// a shared Soc/Workload pair safe.
func Run(soc *cpumodel.Soc, onscreen, offscreen *workload.Workload, t codec.Tunables, misc MiscConst) (Result, error) {
	e, err := newEnv(soc, t)
	if err != nil {
		return Result{}, err
	}

	basePwr := misc.WorkingBaseMw * 100
	idleBasePwr := misc.IdleBaseMw * 100

	result := Result{
		OnscreenCapacity: make([]int, 0, len(onscreen.WindowedLoad)),
		OnscreenPower:    make([]int, 0, len(onscreen.WindowedLoad)),
	}

	capacity := e.sched.Active().CalcCapacity()
	quantum := 0

	for _, w := range onscreen.WindowedLoad {
		maxLoad := adaptMaxLoad(w.MaxLoad, capacity)
		loads := adaptLoads(w.Load, capacity)

		result.OnscreenCapacity = append(result.OnscreenCapacity, capacity)
		result.OnscreenPower = append(result.OnscreenPower, basePwr+e.sched.CalcPower(loads))

		e.boostCtl.Tick(w.HasInputEvent, w.HasRender, quantum)
		capacity = e.sched.Tick(maxLoad, loads, quantum)
		quantum++
	}

	offscreenPwr := int64(idleBasePwr) * int64(len(offscreen.WindowedLoad))
	for _, w := range offscreen.WindowedLoad {
		maxLoad := adaptMaxLoad(w.MaxLoad, capacity)
		loads := adaptLoads(w.Load, capacity)

		offscreenPwr += int64(e.sched.CalcPowerForIdle())

		e.boostCtl.Tick(w.HasInputEvent, w.HasRender, quantum)
		capacity = e.sched.Tick(maxLoad, loads, quantum)
		quantum++
	}
	result.OffscreenPower = offscreenPwr

	return result, nil
}
