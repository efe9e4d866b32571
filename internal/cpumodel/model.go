// Package cpumodel models a heterogeneous CPU cluster's operating-point
// table and the mutable per-cluster simulation state (current/min/max
// frequency window) that the governor and scheduler mutate during a run.
package cpumodel

import "fmt"

// Opp is one operating performance point: a frequency and the power it
// costs, split into a per-core and a per-cluster (uncore) component.
type Opp struct {
	FreqMHz      int
	CorePowerMW  int
	ClusterPower int
}

// ClusterModel is the immutable description of one big.LITTLE cluster,
// loaded once from a SoC model file and shared read-only across every
// simulation evaluated against it.
type ClusterModel struct {
	Name       string
	MinFreq    int
	MaxFreq    int
	Efficiency int
	CoreNum    int
	OppTable   []Opp // sorted ascending by FreqMHz
}

// Validate checks the invariants spec.md §3 requires of a ClusterModel:
// opp frequencies strictly increasing, and MinFreq/MaxFreq bracketed by
// the table.
func (m ClusterModel) Validate() error {
	if len(m.OppTable) == 0 {
		return fmt.Errorf("cpumodel: cluster %q has an empty opp table", m.Name)
	}
	for i := 1; i < len(m.OppTable); i++ {
		if m.OppTable[i].FreqMHz <= m.OppTable[i-1].FreqMHz {
			return fmt.Errorf("cpumodel: cluster %q opp table not strictly increasing at index %d", m.Name, i)
		}
	}
	first, last := m.OppTable[0].FreqMHz, m.OppTable[len(m.OppTable)-1].FreqMHz
	if m.MinFreq < first || m.MinFreq > last {
		return fmt.Errorf("cpumodel: cluster %q min_freq %d outside opp range [%d,%d]", m.Name, m.MinFreq, first, last)
	}
	if m.MaxFreq < first || m.MaxFreq > last {
		return fmt.Errorf("cpumodel: cluster %q max_freq %d outside opp range [%d,%d]", m.Name, m.MaxFreq, first, last)
	}
	if m.CoreNum <= 0 {
		return fmt.Errorf("cpumodel: cluster %q core_num must be positive, got %d", m.Name, m.CoreNum)
	}
	return nil
}

// Cluster is the mutable per-evaluation simulation state for one cluster:
// a window [minOppIdx, maxOppIdx] into the model's opp table and the
// currently selected opp index. Each simulator evaluation owns a fresh
// Cluster built from the shared ClusterModel; Cluster itself never mutates
// the model.
type Cluster struct {
	Model ClusterModel

	minOppIdx int
	maxOppIdx int
	curOppIdx int

	BusyPct int // recomputed every timer_rate scheduler ticks; not clamped, so WALT's per-core aggregate can exceed 100
}

// NewCluster builds a fresh Cluster at the model's full [min,max] window,
// current frequency parked at MaxFreq (matching the original governor's
// reset-to-max initialization).
func NewCluster(model ClusterModel) *Cluster {
	c := &Cluster{Model: model}
	c.minOppIdx = c.idxFloor(model.MinFreq, 0)
	c.maxOppIdx = c.idxCeiling(model.MaxFreq, len(model.OppTable)-1)
	c.curOppIdx = c.idxFloor(model.MaxFreq, c.minOppIdx)
	return c
}

// idxFloor finds, starting at startIdx, the lowest opp index whose
// frequency is >= freq, clamped to the table's last index. Mirrors
// Cluster::FindIdxWithFreqFloor in the original C++.
func (c *Cluster) idxFloor(freq, startIdx int) int {
	table := c.Model.OppTable
	uplimit := len(table) - 1
	i := startIdx
	for i < uplimit && table[i].FreqMHz < freq {
		i++
	}
	return i
}

// idxCeiling scans down from fromIdx for the highest opp index whose
// frequency is <= freq, stopping at index 0. Callers pass the table's last
// index, so this clamps MaxFreq against the whole table.
func (c *Cluster) idxCeiling(freq, fromIdx int) int {
	table := c.Model.OppTable
	i := fromIdx
	for i > 0 && table[i].FreqMHz > freq {
		i--
	}
	return i
}

// FindIdxWithFreqFloorFromZero finds the lowest opp index (over the whole
// table, ignoring the current [min,max] window) whose frequency is >= f.
// Used by the governor to map a frequency onto per-opp tunable array slots
// (target_loads, above_hispeed_delay), which are indexed against the full
// table regardless of the cluster's currently configured window.
func (c *Cluster) FindIdxWithFreqFloorFromZero(f int) int {
	return c.idxFloor(f, 0)
}

// FreqFloorToOpp returns the smallest opp frequency >= f within the
// current [min,max] window; clamps to the window edges when f falls
// outside it.
func (c *Cluster) FreqFloorToOpp(f int) int {
	return c.Model.OppTable[c.freqFloorToIdx(f)].FreqMHz
}

// FreqCeilingToOpp returns the largest opp frequency <= f within the
// current [min,max] window; clamps to the window edges when f falls
// outside it.
func (c *Cluster) FreqCeilingToOpp(f int) int {
	return c.Model.OppTable[c.freqCeilingToIdx(f)].FreqMHz
}

func (c *Cluster) freqFloorToIdx(freq int) int {
	table := c.Model.OppTable
	i := c.minOppIdx
	for i < c.maxOppIdx && table[i].FreqMHz < freq {
		i++
	}
	return i
}

func (c *Cluster) freqCeilingToIdx(freq int) int {
	table := c.Model.OppTable
	i := c.minOppIdx + 1
	for i <= c.maxOppIdx && table[i].FreqMHz <= freq {
		i++
	}
	i--
	if i < c.minOppIdx {
		i = c.minOppIdx
	}
	return i
}

// SetMinFreq narrows the window's floor to the opp >= f. If the current
// frequency falls below the new floor, it is bumped up to it.
func (c *Cluster) SetMinFreq(f int) {
	c.minOppIdx = c.idxFloor(f, 0)
	if c.minOppIdx > c.maxOppIdx {
		c.minOppIdx = c.maxOppIdx
	}
	if c.CurFreq() < c.Model.OppTable[c.minOppIdx].FreqMHz {
		c.SetCurFreq(f)
	}
}

// SetMaxFreq narrows the window's ceiling to the opp <= f. If the current
// frequency is above the new ceiling, it is bumped down to it.
func (c *Cluster) SetMaxFreq(f int) {
	c.maxOppIdx = c.idxCeiling(f, len(c.Model.OppTable)-1)
	if c.maxOppIdx < c.minOppIdx {
		c.maxOppIdx = c.minOppIdx
	}
	if c.CurFreq() > c.Model.OppTable[c.maxOppIdx].FreqMHz {
		c.SetCurFreq(f)
	}
}

// SetCurFreq floors f to the nearest opp within the current window and
// commits it as the cluster's current frequency.
func (c *Cluster) SetCurFreq(f int) {
	c.curOppIdx = c.freqFloorToIdx(f)
	if c.curOppIdx > c.maxOppIdx {
		c.curOppIdx = c.maxOppIdx
	}
}

// CurFreq returns the cluster's currently selected opp frequency.
func (c *Cluster) CurFreq() int {
	return c.Model.OppTable[c.curOppIdx].FreqMHz
}

// CurOppIdx exposes the current opp table index.
func (c *Cluster) CurOppIdx() int {
	return c.curOppIdx
}

// MinOppIdx and MaxOppIdx expose the cluster's current [min,max] window as
// opp table indices.
func (c *Cluster) MinOppIdx() int { return c.minOppIdx }
func (c *Cluster) MaxOppIdx() int { return c.maxOppIdx }

// CalcPower returns instantaneous cluster power given per-core load
// percentages, at the currently selected opp: cluster_power*100 +
// core_power*Σload_pcts.
func (c *Cluster) CalcPower(loadPcts []int) int {
	opp := c.Model.OppTable[c.curOppIdx]
	pwr := opp.ClusterPower * 100
	for _, l := range loadPcts {
		pwr += opp.CorePowerMW * l
	}
	return pwr
}

// CalcCapacity returns the aggregate computational rate the cluster
// currently provides: cur_freq * efficiency * 100.
func (c *Cluster) CalcCapacity() int {
	return c.CurFreq() * c.Model.Efficiency * 100
}
