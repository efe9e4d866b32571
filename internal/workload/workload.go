// Package workload loads and represents a recorded on-screen or off-screen
// trace: per-quantum load samples plus the render frames that overlap them.
package workload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// kWorkloadScaleFactor converts a load percentage sample into the demand
// units shared with Cluster.CalcCapacity (freq * efficiency * 100): demand
// = freq * efficiency * load_pct, matching workload.cpp's loadpct_to_demand.
const kWorkloadScaleFactor = 1

// MaxCores is the largest per-core load array spec.md §3 allows.
const MaxCores = 4

// WindowSlice is one quantum's worth of demand: an aggregate max_load and
// a per-core load array, plus whether an input event landed in it.
type WindowSlice struct {
	MaxLoad       int
	Load          [MaxCores]int
	HasInputEvent bool
	HasRender     bool
}

// RenderSlice is one render frame's demand, split across the (up to three)
// windows it overlaps.
type RenderSlice struct {
	WindowIdxs     [3]int
	WindowQuantums [3]int
	FrameLoad      int
}

// Workload is a fixed-duration-quantum trace: either the on-screen
// (performance-critical) or the idle (off-screen standby) recording.
type Workload struct {
	QuantumSec    float64
	WindowQuantum int
	FrameQuantum  int
	Efficiency    int
	Freq          int
	LoadScale     int
	CoreNum       int
	Src           []string

	WindowedLoad []WindowSlice
	RenderLoad   []RenderSlice
}

// --- JSON loading, spec.md §6 ---

type fileJSON struct {
	QuantumSec    float64  `json:"quantumSec"`
	WindowQuantum int      `json:"windowQuantum"`
	FrameQuantum  int      `json:"frameQuantum"`
	Efficiency    int      `json:"efficiency"`
	Freq          int      `json:"freq"`
	LoadScale     int      `json:"loadScale"`
	CoreNum       int      `json:"coreNum"`
	Src           []string `json:"src"`
	RenderLoad    [][]int  `json:"renderLoad"`
	WindowedLoad  [][]int  `json:"windowedLoad"`
}

// LoadFile reads and parses a workload trace file per spec.md §6.
func LoadFile(path string) (*Workload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workload: reading %s: %w", path, err)
	}
	w, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("workload: parsing %s: %w", path, err)
	}
	return w, nil
}

// Parse decodes a workload trace file's JSON body.
//
// renderLoad entries are `[begin_q, load_pct]`; windowedLoad entries are
// `[max, l0, l1, l2, ..., has_input]` with coreNum load columns between
// max and has_input.
func Parse(data []byte) (*Workload, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var raw fileJSON
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("malformed workload json: %w", err)
	}
	if raw.CoreNum <= 0 || raw.CoreNum > MaxCores {
		return nil, fmt.Errorf("malformed workload json: coreNum %d out of range [1,%d]", raw.CoreNum, MaxCores)
	}
	if len(raw.RenderLoad) == 0 {
		return nil, fmt.Errorf("malformed workload json: renderLoad is empty")
	}
	if len(raw.WindowedLoad) == 0 {
		return nil, fmt.Errorf("malformed workload json: windowedLoad is empty")
	}
	if raw.WindowQuantum <= 0 || raw.FrameQuantum <= 0 {
		return nil, fmt.Errorf("malformed workload json: windowQuantum/frameQuantum must be positive")
	}

	w := &Workload{
		QuantumSec:    raw.QuantumSec,
		WindowQuantum: raw.WindowQuantum,
		FrameQuantum:  raw.FrameQuantum,
		Efficiency:    raw.Efficiency,
		Freq:          raw.Freq,
		LoadScale:     raw.LoadScale,
		CoreNum:       raw.CoreNum,
		Src:           raw.Src,
	}

	// Demand units match Cluster.CalcCapacity (freq*efficiency*100): a
	// load_pct of 100 (fully busy) at load_scale=1 yields freq*efficiency*100,
	// i.e. exactly the capacity available at that frequency.
	loadPctToDemand := func(loadPct int) int {
		scale := w.LoadScale
		if scale == 0 {
			scale = 1
		}
		return kWorkloadScaleFactor * w.Freq * w.Efficiency * loadPct * scale
	}
	nextWinQ := func(q int) int {
		return (q/w.WindowQuantum + 1) * w.WindowQuantum
	}

	w.RenderLoad = make([]RenderSlice, 0, len(raw.RenderLoad))
	for i, entry := range raw.RenderLoad {
		if len(entry) != 2 {
			return nil, fmt.Errorf("malformed workload json: renderLoad[%d] must have 2 elements", i)
		}
		beginQ, loadPct := entry[0], entry[1]
		endQ := beginQ + w.FrameQuantum

		var r RenderSlice
		idxRec := 0
		leftQ := beginQ
		rightQ := nextWinQ(beginQ)
		for leftQ != rightQ && idxRec < 3 {
			r.WindowIdxs[idxRec] = leftQ / w.WindowQuantum
			r.WindowQuantums[idxRec] = rightQ - leftQ
			leftQ = rightQ
			rightQ = min(endQ, nextWinQ(rightQ))
			idxRec++
		}
		r.FrameLoad = loadPctToDemand(loadPct)
		w.RenderLoad = append(w.RenderLoad, r)
	}

	hasRender := make(map[int]bool, len(w.RenderLoad))
	for _, r := range w.RenderLoad {
		hasRender[r.WindowIdxs[0]] = true
		hasRender[r.WindowIdxs[1]] = true
		hasRender[r.WindowIdxs[2]] = true
	}

	w.WindowedLoad = make([]WindowSlice, 0, len(raw.WindowedLoad))
	for i, entry := range raw.WindowedLoad {
		if len(entry) != w.CoreNum+2 {
			return nil, fmt.Errorf("malformed workload json: windowedLoad[%d] expected %d columns, got %d", i, w.CoreNum+2, len(entry))
		}
		var slice WindowSlice
		slice.MaxLoad = loadPctToDemand(entry[0])
		for core := 0; core < w.CoreNum; core++ {
			slice.Load[core] = loadPctToDemand(entry[core+1])
		}
		slice.HasInputEvent = entry[w.CoreNum+1] != 0
		slice.HasRender = hasRender[len(w.WindowedLoad)]
		w.WindowedLoad = append(w.WindowedLoad, slice)
	}

	return w, nil
}
