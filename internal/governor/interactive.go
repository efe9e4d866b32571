// Package governor implements the Interactive per-cluster frequency
// governor: a load-sample-driven state machine that picks a target
// frequency every tick, with hispeed and floor-hysteresis guards against
// thrashing. Ported from original_source/source/sim/interactive.cpp.
package governor

import "github.com/heterosim/heterosim/internal/cpumodel"

const (
	// TargetLoadMaxLen bounds the per-opp target_loads tunable array.
	TargetLoadMaxLen = 24
	// AboveDelayMaxLen bounds the per-opp above_hispeed_delay tunable array.
	AboveDelayMaxLen = 32
)

// Tunables are the per-cluster Interactive parameters decoded by the
// parameter codec (spec.md §3, §4.2).
type Tunables struct {
	HispeedFreq       int
	GoHispeedLoad     int // percentage threshold
	MinSampleTime     int // scheduler ticks
	MaxFreqHysteresis int // scheduler ticks
	AboveHispeedDelay [AboveDelayMaxLen]int
	TargetLoads       [TargetLoadMaxLen]int
}

// Interactive is one cluster's governor instance. It holds no reference to
// the cluster beyond what's needed to resolve opp indices into tunable
// array slots; committing a chosen frequency back onto the cluster is the
// caller's (scheduler's) job.
type Interactive struct {
	tunables Tunables
	cluster  *cpumodel.Cluster

	targetFreq           int
	floorFreq            int
	maxFreqHystStartTime int
	hispeedValidateTime  int
	floorValidateTime    int
}

// New creates a governor parked at the cluster's current max frequency,
// matching the original's constructor (target_freq = floor_freq =
// cluster max).
func New(tunables Tunables, cluster *cpumodel.Cluster) *Interactive {
	return &Interactive{
		tunables:   tunables,
		cluster:    cluster,
		targetFreq: cluster.Model.MaxFreq,
		floorFreq:  cluster.Model.MaxFreq,
	}
}

// Tunables returns the governor's current parameter bundle, used by the
// boost controller to back up state before applying a temporary override.
func (g *Interactive) Tunables() Tunables {
	return g.tunables
}

// SetTunables replaces the governor's parameter bundle without touching its
// frequency state, used by the boost controller to apply or restore an
// override.
func (g *Interactive) SetTunables(t Tunables) {
	g.tunables = t
}

func (g *Interactive) freqToTargetLoad(freq int) int {
	idx := g.cluster.FindIdxWithFreqFloorFromZero(freq)
	if idx >= TargetLoadMaxLen {
		idx = TargetLoadMaxLen - 1
	}
	return g.tunables.TargetLoads[idx]
}

func (g *Interactive) freqToAboveHispeedDelay(freq int) int {
	idx := g.cluster.FindIdxWithFreqFloorFromZero(freq)
	if idx >= AboveDelayMaxLen {
		idx = AboveDelayMaxLen - 1
	}
	return g.tunables.AboveHispeedDelay[idx]
}

// chooseFreq implements the converging bisection from interactive.cpp:
// starting from the current freq, repeatedly recompute
// `freq * load / target_load(freq)` and floor it to an opp, narrowing a
// [freqmin, freqmax] bracket each time the result overshoots, until a
// fixed point is reached.
func (g *Interactive) chooseFreq(freq, load int) int {
	const maxInt = int(^uint(0) >> 1)
	freqmin := 0
	freqmax := maxInt

	for {
		prevfreq := freq
		loadadjfreq := freq * load
		tl := g.freqToTargetLoad(freq)
		if tl <= 0 {
			tl = 1
		}
		freq = g.cluster.FreqFloorToOpp(loadadjfreq / tl)

		if freq > prevfreq {
			freqmin = prevfreq
			if freq >= freqmax {
				freq = g.cluster.FreqCeilingToOpp(freqmax - 1)
				if freq == freqmin {
					freq = freqmax
					break
				}
			}
		} else if freq < prevfreq {
			freqmax = prevfreq
			if freq <= freqmin {
				freq = g.cluster.FreqFloorToOpp(freqmin + 1)
				if freq == freqmax {
					break
				}
			}
		}

		if freq == prevfreq {
			break
		}
	}

	return freq
}

// Tick runs one governor sampling step: observed busy-load percentage and
// the current time in scheduler ticks. Returns the committed target
// frequency, clamped to the cluster's window.
func (g *Interactive) Tick(loadPct, now int) int {
	skipHispeedLogic := false
	skipMinSampleTime := false
	jumpToMaxNoTS := false

	newFreq := g.chooseFreq(g.targetFreq, loadPct)

	if now-g.maxFreqHystStartTime < g.tunables.MaxFreqHysteresis && loadPct >= g.tunables.GoHispeedLoad {
		skipHispeedLogic = true
		skipMinSampleTime = true
		jumpToMaxNoTS = true
	}

	if jumpToMaxNoTS {
		newFreq = g.cluster.Model.MaxFreq
	} else if !skipHispeedLogic {
		if loadPct >= g.tunables.GoHispeedLoad {
			if g.targetFreq < g.tunables.HispeedFreq {
				newFreq = g.tunables.HispeedFreq
			} else if newFreq < g.tunables.HispeedFreq {
				newFreq = g.tunables.HispeedFreq
			}
		}
	}

	if now-g.maxFreqHystStartTime < g.tunables.MaxFreqHysteresis {
		if g.tunables.HispeedFreq > newFreq {
			newFreq = g.tunables.HispeedFreq
		}
	}

	if !skipHispeedLogic && g.targetFreq >= g.tunables.HispeedFreq && newFreq > g.targetFreq &&
		now-g.hispeedValidateTime < g.freqToAboveHispeedDelay(g.targetFreq) {
		return g.targetFreq
	}

	g.hispeedValidateTime = now
	newFreq = g.cluster.FreqFloorToOpp(newFreq)

	if !skipMinSampleTime && newFreq < g.floorFreq {
		if now-g.floorValidateTime < g.tunables.MinSampleTime {
			return g.targetFreq
		}
	}

	if !jumpToMaxNoTS {
		g.floorFreq = newFreq
		g.floorValidateTime = now
	}

	if newFreq >= g.cluster.Model.MaxFreq && !jumpToMaxNoTS {
		g.maxFreqHystStartTime = now
	}
	g.targetFreq = newFreq

	return g.targetFreq
}
