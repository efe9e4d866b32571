// Package codec implements the parameter codec: the fixed decode order
// that maps a real-valued genome vector in [0,1]^N to the strongly-typed
// governor/scheduler/boost tunable bundle the simulator consumes. Ported
// from original_source/source/opt/openga_helper.cpp's TranslateParamSeq,
// InitParamDesc, and GenerateDefaultTunables, generalized from the single
// WALT+InputBoost instantiation present there to all four flavors spec.md
// §4.7 enumerates.
package codec

import (
	"fmt"
	"math"
	"strings"

	"github.com/heterosim/heterosim/internal/boost"
	"github.com/heterosim/heterosim/internal/cpumodel"
	"github.com/heterosim/heterosim/internal/governor"
	"github.com/heterosim/heterosim/internal/scheduler"
)

// Range is one parameter's search-space bound (ParamDescElement in the
// original).
type Range struct {
	Start int
	End   int
}

// Ranges is the decoded `parameterRange` config section (spec.md §6/§4.8).
// Sched* and boost-override ranges cover both WALT/PELT and
// InputBoost/UperfBoost since the codec decodes whichever flavor the
// target Soc and use_uperf flag select.
type Ranges struct {
	GoHispeedLoad     Range
	MinSampleTime     Range
	MaxFreqHysteresis Range
	AboveHispeedDelay Range
	TargetLoads       Range

	SchedDownmigrate               Range
	SchedUpmigrate                 Range
	SchedFreqAggregateThresholdPct Range
	SchedRavgHistSize              Range
	SchedWindowStatsPolicy         Range
	TimerRate                      Range

	DownThreshold   Range
	UpThreshold     Range
	LoadAvgPeriodMs Range
	PeltBoost       Range

	InputDuration Range
}

// Tunables is the fully decoded parameter bundle for one genome: one
// governor per cluster plus exactly one of the scheduler/boost variant
// pairs, selected by the codec's configured flavor.
type Tunables struct {
	Governors []governor.Tunables

	Walt *scheduler.WaltTunables
	Pelt *scheduler.PeltTunables

	Input *boost.InputTunables
	Uperf *boost.UperfTunables
}

// Codec decodes genomes for one fixed Soc + scheduler type + boost flavor
// combination, matching OpengaAdapter's per-run construction.
type Codec struct {
	soc       *cpumodel.Soc
	ranges    Ranges
	schedType cpumodel.SchedType
	useUperf  bool

	clusters []*cpumodel.Cluster // scratch clusters, one per Soc cluster, used only to floor frequencies to opp grid points
	paramLen int
}

// New builds a Codec, precomputing param_len and a scratch Cluster per
// model cluster for opp-table snapping during decode.
func New(soc *cpumodel.Soc, ranges Ranges, schedType cpumodel.SchedType, useUperf bool) (*Codec, error) {
	if len(soc.ClusterModels) == 0 {
		return nil, fmt.Errorf("codec: soc %q has no clusters", soc.Name)
	}
	c := &Codec{soc: soc, ranges: ranges, schedType: schedType, useUperf: useUperf}
	for _, m := range soc.ClusterModels {
		c.clusters = append(c.clusters, cpumodel.NewCluster(m))
	}
	c.paramLen = c.computeParamLen()
	return c, nil
}

// ParamLen is the required genome length for this codec's configuration.
func (c *Codec) ParamLen() int {
	return c.paramLen
}

// Describe renders a human-readable breakdown of this codec's genome
// layout: one line per cluster's governor block, one for the scheduler
// block, one for the boost block, and the total. Used by the CLI's
// `describe` subcommand (spec.md §6).
func (c *Codec) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "soc: %s (%d clusters)\n", c.soc.Name, len(c.soc.ClusterModels))
	for i, m := range c.soc.ClusterModels {
		nOpp := len(m.OppTable)
		n := 4 + nAboveHispeedDelay(nOpp) + nTargetLoads(nOpp)
		fmt.Fprintf(&b, "  cluster %d (%s) governor: %d params\n", i, m.Name, n)
	}
	switch c.schedType {
	case cpumodel.SchedWALT:
		fmt.Fprintf(&b, "  scheduler (walt): 6 params\n")
	case cpumodel.SchedPELT:
		fmt.Fprintf(&b, "  scheduler (pelt): 5 params\n")
	}
	if c.useUperf {
		fmt.Fprintf(&b, "  boost (uperf): %d params\n", c.paramLen-c.schedAndGovernorParamLen())
	} else {
		fmt.Fprintf(&b, "  boost (input): %d params\n", c.paramLen-c.schedAndGovernorParamLen())
	}
	fmt.Fprintf(&b, "total: %d params\n", c.paramLen)
	return b.String()
}

// schedAndGovernorParamLen is computeParamLen minus the boost block, used
// by Describe to report the boost block's size without duplicating the
// boost arithmetic.
func (c *Codec) schedAndGovernorParamLen() int {
	n := 0
	for _, m := range c.soc.ClusterModels {
		nOpp := len(m.OppTable)
		n += 4 + nAboveHispeedDelay(nOpp) + nTargetLoads(nOpp)
	}
	switch c.schedType {
	case cpumodel.SchedWALT:
		n += 6
	case cpumodel.SchedPELT:
		n += 5
	}
	return n
}

func nAboveHispeedDelay(nOpp int) int {
	if nOpp < governor.AboveDelayMaxLen {
		return nOpp
	}
	return governor.AboveDelayMaxLen
}

func nTargetLoads(nOpp int) int {
	if nOpp < governor.TargetLoadMaxLen {
		return nOpp
	}
	return governor.TargetLoadMaxLen
}

func (c *Codec) computeParamLen() int {
	n := 0
	for _, m := range c.soc.ClusterModels {
		nOpp := len(m.OppTable)
		n += 4 // hispeed_freq, go_hispeed_load, min_sample_time, max_freq_hysteresis
		n += nAboveHispeedDelay(nOpp)
		n += nTargetLoads(nOpp)
	}

	switch c.schedType {
	case cpumodel.SchedWALT:
		n += 6 // sched_downmigrate, sched_upmigrate, sched_freq_aggregate_threshold_pct, sched_ravg_hist_size, sched_window_stats_policy, timer_rate
	case cpumodel.SchedPELT:
		n += 4 // down_threshold, up_threshold, load_avg_period_ms, boost
		n += 1 // timer_rate
	}

	nBoostClusters := len(c.soc.ClusterModels)
	if nBoostClusters > 2 {
		// boost_freq / min-max clamps are [2]int arrays matching the
		// original's hard assumption of exactly little+big: only the
		// first two clusters carry a boost override.
		nBoostClusters = 2
	}

	if c.useUperf {
		n += 2 * nBoostClusters // per-cluster (min,max)
		n += 2                  // scheduler up/down override
		for _, m := range c.soc.ClusterModels[:nBoostClusters] {
			nOpp := len(m.OppTable)
			n += 4 + nAboveHispeedDelay(nOpp) + nTargetLoads(nOpp) // nested Governor block
		}
	} else {
		n += nBoostClusters // per-cluster boost_freq
		n += 1               // duration_quantum
	}

	return n
}

// quantify implements Quantify: real r∈[0,1] → range_start +
// round(r*(range_end-range_start)).
func quantify(r float64, rng Range) int {
	return rng.Start + int(math.Round(float64(rng.End-rng.Start)*r))
}

// quantFreqParam quantifies then snaps up to the nearest opp-table
// frequency within the cluster's (full, at decode time) window.
func quantFreqParam(r float64, cluster *cpumodel.Cluster, rng Range) int {
	return cluster.FreqFloorToOpp(quantify(r, rng))
}

// quantLoadParam quantifies a load-percentage parameter, collapsing
// mid-range target_loads to multiples of 4 to cut needless parameter
// resolution (mirrors QuatLoadParam's `>> 2 << 2` trick).
func quantLoadParam(r float64, rng Range) int {
	v := quantify(r, rng)
	if v > 15 && v < 85 {
		v = (v >> 2) << 2
	}
	return v
}

// quantLargeParam quantifies then snaps down to a multiple of step.
func quantLargeParam(r float64, step int, rng Range) int {
	return (quantify(r, rng) / step) * step
}

// normalizeTicks converts a quanta-measured duration into scheduler ticks:
// divide by timer_rate and round up to at least 1.
func normalizeTicks(v, timerRate int) int {
	if timerRate <= 0 {
		timerRate = 1
	}
	n := int(math.Round(float64(v) / float64(timerRate)))
	if n < 1 {
		n = 1
	}
	return n
}

// seqReader walks a genome vector in fixed decode order.
type seqReader struct {
	seq []float64
	pos int
}

func (s *seqReader) next() float64 {
	v := s.seq[s.pos]
	s.pos++
	return v
}

// decodeGovernorBlock reads one cluster's raw Governor block (spec.md §4.8
// item 1). min_sample_time, max_freq_hysteresis, and above_hispeed_delay
// are still in quanta here; normalizeGovernorTicks converts them once
// timer_rate is known.
func (c *Codec) decodeGovernorBlock(s *seqReader, cluster *cpumodel.Cluster) governor.Tunables {
	var t governor.Tunables
	t.HispeedFreq = quantFreqParam(s.next(), cluster, Range{cluster.Model.MinFreq, cluster.Model.MaxFreq})
	t.GoHispeedLoad = quantLoadParam(s.next(), c.ranges.GoHispeedLoad)
	t.MinSampleTime = quantify(s.next(), c.ranges.MinSampleTime)
	t.MaxFreqHysteresis = quantify(s.next(), c.ranges.MaxFreqHysteresis)

	nOpp := len(cluster.Model.OppTable)
	nAbove := nAboveHispeedDelay(nOpp)
	nTargets := nTargetLoads(nOpp)
	for i := 0; i < nAbove; i++ {
		t.AboveHispeedDelay[i] = quantify(s.next(), c.ranges.AboveHispeedDelay)
	}
	for i := 0; i < nTargets; i++ {
		t.TargetLoads[i] = quantLoadParam(s.next(), c.ranges.TargetLoads)
	}
	return t
}

// normalizeGovernorTicks converts a raw-decoded Governor block's
// quanta-measured fields into scheduler ticks, per spec.md §4.8's
// time-unit normalization rule.
func normalizeGovernorTicks(t governor.Tunables, nOpp, timerRate int) governor.Tunables {
	t.MinSampleTime = normalizeTicks(t.MinSampleTime, timerRate)
	t.MaxFreqHysteresis = normalizeTicks(t.MaxFreqHysteresis, timerRate)
	for i := 0; i < nAboveHispeedDelay(nOpp); i++ {
		t.AboveHispeedDelay[i] = normalizeTicks(t.AboveHispeedDelay[i], timerRate)
	}
	return t
}

// Decode maps one genome vector to a Tunables bundle per the fixed order
// in spec.md §4.8: governor block per cluster, then scheduler block, then
// boost block.
func (c *Codec) Decode(seq []float64) (Tunables, error) {
	if len(seq) != c.paramLen {
		return Tunables{}, fmt.Errorf("codec: genome length %d does not match param_len %d", len(seq), c.paramLen)
	}
	s := &seqReader{seq: seq}

	// timer_rate is only known after the scheduler block, so raw governor
	// values are read first and tick-normalized afterward — mirroring
	// TranslateParamSeq's trailing normalization loop.
	rawGovernors := make([]governor.Tunables, len(c.clusters))
	for i, cluster := range c.clusters {
		rawGovernors[i] = c.decodeGovernorBlock(s, cluster)
	}

	var walt *scheduler.WaltTunables
	var pelt *scheduler.PeltTunables
	var timerRate int

	switch c.schedType {
	case cpumodel.SchedWALT:
		down := quantLoadParam(s.next(), c.ranges.SchedDownmigrate)
		up := quantLoadParam(s.next(), c.ranges.SchedUpmigrate)
		if up < down {
			up = down
		}
		aggThreshold := quantLargeParam(s.next(), 25, c.ranges.SchedFreqAggregateThresholdPct)
		ravgHistSize := quantify(s.next(), c.ranges.SchedRavgHistSize)
		windowStatsPolicy := quantify(s.next(), c.ranges.SchedWindowStatsPolicy)
		timerRate = quantify(s.next(), c.ranges.TimerRate)

		if len(c.soc.ClusterModels) < 2 {
			up, down = 45, 45
		}

		walt = &scheduler.WaltTunables{
			TimerRate:                      timerRate,
			SchedUpmigrate:                 up,
			SchedDownmigrate:               down,
			SchedRavgHistSize:              ravgHistSize,
			SchedWindowStatsPolicy:         windowStatsPolicy,
			SchedFreqAggregateThresholdPct: aggThreshold,
		}
	case cpumodel.SchedPELT:
		down := quantify(s.next(), c.ranges.DownThreshold)
		up := quantify(s.next(), c.ranges.UpThreshold)
		if up < down {
			up = down
		}
		loadAvgPeriodMs := quantify(s.next(), c.ranges.LoadAvgPeriodMs)
		_ = quantify(s.next(), c.ranges.PeltBoost) // decoded for genome-length parity; boost is not wired into PeltTunables
		timerRate = quantify(s.next(), c.ranges.TimerRate)

		pelt = &scheduler.PeltTunables{
			TimerRate:       timerRate,
			LoadAvgPeriodMs: loadAvgPeriodMs,
			DownThreshold:   down,
			UpThreshold:     up,
		}
	default:
		return Tunables{}, fmt.Errorf("codec: unsupported sched_type %v", c.schedType)
	}

	governors := make([]governor.Tunables, len(rawGovernors))
	for i, cluster := range c.clusters {
		governors[i] = normalizeGovernorTicks(rawGovernors[i], len(cluster.Model.OppTable), timerRate)
	}

	var input *boost.InputTunables
	var uperf *boost.UperfTunables
	if c.useUperf {
		var minFreq, maxFreq [2]int
		for i, cluster := range c.clusters {
			if i >= 2 {
				break
			}
			minFreq[i] = quantFreqParam(s.next(), cluster, Range{cluster.Model.MinFreq, cluster.Model.MaxFreq})
			maxFreq[i] = quantFreqParam(s.next(), cluster, Range{cluster.Model.MinFreq, cluster.Model.MaxFreq})
			if maxFreq[i] < minFreq[i] {
				maxFreq[i] = minFreq[i]
			}
		}
		schedUp := quantify(s.next(), c.ranges.SchedUpmigrate)
		schedDown := quantify(s.next(), c.ranges.SchedDownmigrate)

		nBoostClusters := len(c.clusters)
		if nBoostClusters > 2 {
			nBoostClusters = 2
		}
		nestedGovernors := make([]governor.Tunables, nBoostClusters)
		for i := 0; i < nBoostClusters; i++ {
			raw := c.decodeGovernorBlock(s, c.clusters[i])
			nestedGovernors[i] = normalizeGovernorTicks(raw, len(c.clusters[i].Model.OppTable), timerRate)
		}
		var gl, gb governor.Tunables
		if len(nestedGovernors) > 0 {
			gl = nestedGovernors[0]
		}
		if len(nestedGovernors) > 1 {
			gb = nestedGovernors[len(nestedGovernors)-1]
		}
		uperf = &boost.UperfTunables{
			MinFreq:        minFreq,
			MaxFreq:        maxFreq,
			SchedUp:        schedUp,
			SchedDown:      schedDown,
			GovernorLittle: gl,
			GovernorBig:    gb,
		}
	} else {
		var boostFreq [2]int
		for i, cluster := range c.clusters {
			if i >= 2 {
				break
			}
			boostFreq[i] = quantFreqParam(s.next(), cluster, Range{cluster.Model.MinFreq, cluster.Model.MaxFreq})
		}
		duration := quantLargeParam(s.next(), 10, c.ranges.InputDuration)
		input = &boost.InputTunables{BoostFreq: boostFreq, DurationQuantum: duration}
	}

	return Tunables{
		Governors: governors,
		Walt:      walt,
		Pelt:      pelt,
		Input:     input,
		Uperf:     uperf,
	}, nil
}

// Default constructs the reference Tunables used to produce the baseline
// score every other individual's performance is normalized against,
// mirroring GenerateDefaultTunables: hispeed_freq at 60% of each cluster's
// max, generous target_loads/above_hispeed_delay, and a conservative WALT
// or PELT scheduler.
func (c *Codec) Default() Tunables {
	governors := make([]governor.Tunables, len(c.clusters))
	for i, cluster := range c.clusters {
		var g governor.Tunables
		g.HispeedFreq = cluster.FreqFloorToOpp(int(float64(cluster.Model.MaxFreq) * 0.6))
		g.GoHispeedLoad = 90
		g.MinSampleTime = 2
		g.MaxFreqHysteresis = 2
		nOpp := len(cluster.Model.OppTable)
		for j := 0; j < nAboveHispeedDelay(nOpp); j++ {
			g.AboveHispeedDelay[j] = 1
		}
		for j := 0; j < nTargetLoads(nOpp); j++ {
			g.TargetLoads[j] = 90
		}
		governors[i] = g
	}

	var walt *scheduler.WaltTunables
	var pelt *scheduler.PeltTunables
	switch c.schedType {
	case cpumodel.SchedWALT:
		up, down := 95, 85
		if len(c.soc.ClusterModels) < 2 {
			up, down = 45, 45
		}
		walt = &scheduler.WaltTunables{
			TimerRate:                      2,
			SchedUpmigrate:                 up,
			SchedDownmigrate:               down,
			SchedRavgHistSize:              5,
			SchedWindowStatsPolicy:         scheduler.WindowStatsMaxRecentAvg,
			SchedFreqAggregateThresholdPct: 1000,
		}
	case cpumodel.SchedPELT:
		pelt = &scheduler.PeltTunables{
			TimerRate:       2,
			LoadAvgPeriodMs: 128,
			DownThreshold:   480,
			UpThreshold:     640,
		}
	}

	var input *boost.InputTunables
	var uperf *boost.UperfTunables
	if c.useUperf {
		var minFreq, maxFreq [2]int
		for i, cluster := range c.clusters {
			if i >= 2 {
				break
			}
			minFreq[i] = cluster.Model.MinFreq
			maxFreq[i] = cluster.Model.MaxFreq
		}
		var gl, gb governor.Tunables
		if len(governors) > 0 {
			gl = governors[0]
		}
		if len(governors) > 1 {
			gb = governors[len(governors)-1]
		}
		uperf = &boost.UperfTunables{MinFreq: minFreq, MaxFreq: maxFreq, GovernorLittle: gl, GovernorBig: gb}
	} else {
		var boostFreq [2]int
		for i, cluster := range c.clusters {
			if i >= 2 {
				break
			}
			boostFreq[i] = cluster.FreqFloorToOpp(int(float64(cluster.Model.MaxFreq) * 0.6))
		}
		input = &boost.InputTunables{BoostFreq: boostFreq, DurationQuantum: 10}
	}

	return Tunables{Governors: governors, Walt: walt, Pelt: pelt, Input: input, Uperf: uperf}
}
