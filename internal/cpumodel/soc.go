package cpumodel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// SchedType selects the scheduler strategy a SoC uses.
type SchedType int

const (
	SchedWALT SchedType = iota
	SchedPELT
	SchedLegacy // parsed but never instantiated; see DESIGN.md Open Questions
)

func (s SchedType) String() string {
	switch s {
	case SchedWALT:
		return "walt"
	case SchedPELT:
		return "pelt"
	case SchedLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// IntraType selects how cores within a cluster are treated by the boost
// layer (symmetric vs asymmetric multiprocessing). Carried for parity with
// the original model file format; parsed and stored, but no simulator
// component reads it.
type IntraType int

const (
	IntraSMP IntraType = iota
	IntraASMP
)

// Soc is a named, ordered collection of clusters in little-to-big order,
// immutable for the duration of an optimization run.
type Soc struct {
	Name              string
	SchedType         SchedType
	IntraType         IntraType
	EnoughCapacityPct int

	ClusterModels []ClusterModel
}

// Validate enforces spec.md §3's Soc invariants.
func (s Soc) Validate() error {
	if len(s.ClusterModels) == 0 {
		return fmt.Errorf("cpumodel: soc %q has no clusters", s.Name)
	}
	for i, cm := range s.ClusterModels {
		if err := cm.Validate(); err != nil {
			return fmt.Errorf("cpumodel: soc %q cluster %d: %w", s.Name, i, err)
		}
	}
	return nil
}

// Little returns the little cluster model (index 0).
func (s Soc) Little() ClusterModel { return s.ClusterModels[0] }

// Big returns the big cluster model (last index). On a single-cluster SoC
// this is the same model as Little.
func (s Soc) Big() ClusterModel { return s.ClusterModels[len(s.ClusterModels)-1] }

// NumClusters reports how many clusters this SoC has.
func (s Soc) NumClusters() int { return len(s.ClusterModels) }

// EnoughCapacity is the demand ceiling above which unmet demand no longer
// counts as jank: big.max_freq * big.efficiency * enough_capacity_pct.
func (s Soc) EnoughCapacity() int {
	big := s.Big()
	return big.MaxFreq * big.Efficiency * s.EnoughCapacityPct / 100
}

// --- JSON loading ---

type oppJSON struct {
	FreqMHz      int `json:"freq"`
	CorePowerMW  int `json:"corePower"`
	ClusterPower int `json:"clusterPower"`
}

type clusterJSON struct {
	CoreNum      int   `json:"coreNum"`
	Efficiency   int   `json:"efficiency"`
	MinFreq      int   `json:"minFreq"`
	MaxFreq      int   `json:"maxFreq"`
	Opp          []int `json:"opp"`
	CorePower    []int `json:"corePower"`
	ClusterPower []int `json:"clusterPower"`
}

type socJSON struct {
	Name              string        `json:"name"`
	EnoughCapacityPct int           `json:"enoughCapacityPct"`
	Sched             string        `json:"sched"`
	Intra             string        `json:"intra"`
	Cluster           []clusterJSON `json:"cluster"`
}

// LoadSocFile reads and validates a SoC model JSON file per spec.md §6.
func LoadSocFile(path string) (Soc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Soc{}, fmt.Errorf("cpumodel: reading soc model %s: %w", path, err)
	}
	soc, err := ParseSoc(data)
	if err != nil {
		return Soc{}, fmt.Errorf("cpumodel: parsing soc model %s: %w", path, err)
	}
	return soc, nil
}

// ParseSoc decodes a SoC model file's JSON body into a validated Soc.
func ParseSoc(data []byte) (Soc, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var raw socJSON
	if err := dec.Decode(&raw); err != nil {
		return Soc{}, fmt.Errorf("malformed soc json: %w", err)
	}
	if len(raw.Cluster) == 0 {
		return Soc{}, fmt.Errorf("malformed soc json: no clusters")
	}

	soc := Soc{
		Name:              raw.Name,
		EnoughCapacityPct: raw.EnoughCapacityPct,
	}
	switch raw.Sched {
	case "walt":
		soc.SchedType = SchedWALT
	case "pelt":
		soc.SchedType = SchedPELT
	case "legacy":
		soc.SchedType = SchedLegacy
	default:
		return Soc{}, fmt.Errorf("malformed soc json: unknown sched %q", raw.Sched)
	}
	switch raw.Intra {
	case "smp", "":
		soc.IntraType = IntraSMP
	case "asmp":
		soc.IntraType = IntraASMP
	default:
		return Soc{}, fmt.Errorf("malformed soc json: unknown intra %q", raw.Intra)
	}

	for i, cj := range raw.Cluster {
		if len(cj.Opp) == 0 || len(cj.Opp) != len(cj.CorePower) || len(cj.Opp) != len(cj.ClusterPower) {
			return Soc{}, fmt.Errorf("malformed soc json: cluster %d opp/corePower/clusterPower length mismatch", i)
		}
		opps := make([]Opp, len(cj.Opp))
		for j := range cj.Opp {
			opps[j] = Opp{FreqMHz: cj.Opp[j], CorePowerMW: cj.CorePower[j], ClusterPower: cj.ClusterPower[j]}
		}
		cm := ClusterModel{
			Name:       fmt.Sprintf("%s.cluster%d", raw.Name, i),
			MinFreq:    cj.MinFreq,
			MaxFreq:    cj.MaxFreq,
			Efficiency: cj.Efficiency,
			CoreNum:    cj.CoreNum,
			OppTable:   opps,
		}
		soc.ClusterModels = append(soc.ClusterModels, cm)
	}

	if err := soc.Validate(); err != nil {
		return Soc{}, err
	}
	return soc, nil
}
