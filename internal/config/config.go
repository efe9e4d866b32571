// Package config strict-decodes the top-level run configuration
// (conf.json, spec.md §6) into the typed bundles internal/codec,
// internal/optimizer, internal/simulator, and internal/rank consume.
// Decoding idiom (explicit struct, json.Decoder.DisallowUnknownFields,
// wrapped errors) is grounded on the teacher's strict-decode config
// loader (cmd/default_config.go), adapted from yaml.v3 to encoding/json
// since this spec mandates JSON (spec.md §6).
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/heterosim/heterosim/internal/codec"
	"github.com/heterosim/heterosim/internal/optimizer"
	"github.com/heterosim/heterosim/internal/rank"
	"github.com/heterosim/heterosim/internal/simulator"
)

// AccessError wraps a failure to read conf.json or a file it references.
// Fatal at program start per spec.md §7's ConfigAccess kind.
type AccessError struct {
	Path string
	Err  error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("config: accessing %s: %v", e.Path, e.Err)
}

func (e *AccessError) Unwrap() error { return e.Err }

// MalformedError wraps a conf.json that parses as JSON but fails
// validation (missing key, wrong type, out-of-range value). Fatal per
// spec.md §7's MalformedConfig kind.
type MalformedError struct {
	Path   string
	Detail string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("config: malformed %s: %s", e.Path, e.Detail)
}

// GaParameter is the gaParameter object (spec.md §6).
type GaParameter struct {
	Population        int     `json:"population"`
	GenerationMax      int     `json:"generationMax"`
	CrossoverFraction  float64 `json:"crossoverFraction"`
	MutationRate       float64 `json:"mutationRate"`
	Eta                float64 `json:"eta"`
	ThreadNum          int     `json:"threadNum"`
	RandomSeed         uint64  `json:"randomSeed"`
}

// MiscSettings is the miscSettings object (spec.md §6): every recognized
// key it documents, each mapped to the field that consumes it.
type MiscSettings struct {
	IdleFraction       float64 `json:"ga.cost.batteryScore.idleFraction"`
	WorkFraction       float64 `json:"ga.cost.batteryScore.workFraction"`
	IdleLastingMin     float64 `json:"ga.cost.limit.idleLastingMin"`
	PerformanceMax     float64 `json:"ga.cost.limit.performanceMax"`
	WorkingBaseMw      int     `json:"sim.power.workingBase_mw"`
	IdleBaseMw         int     `json:"sim.power.idleBase_mw"`
	CommonFraction     float64 `json:"eval.perf.commonFraction"`
	RenderFraction     float64 `json:"eval.perf.renderFraction"`
	PerfPartitionLen   int     `json:"eval.perf.partitionLen"`
	SeqLagL1           int     `json:"eval.perf.seqLagL1"`
	SeqLagL2           int     `json:"eval.perf.seqLagL2"`
	SeqLagMax          int     `json:"eval.perf.seqLagMax"`
	PowerPartitionLen  int     `json:"eval.power.partitionLen"`
	ComplexityFraction float64 `json:"eval.complexityFraction"`
}

// ParameterRange is one {min,max} pair from the parameterRange object.
type ParameterRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// ParameterRanges is the parameterRange object, keyed per spec.md §4.8.
type ParameterRanges struct {
	AboveHispeedDelay              ParameterRange `json:"above_hispeed_delay"`
	GoHispeedLoad                  ParameterRange `json:"go_hispeed_load"`
	MaxFreqHysteresis              ParameterRange `json:"max_freq_hysteresis"`
	MinSampleTime                  ParameterRange `json:"min_sample_time"`
	TargetLoads                    ParameterRange `json:"target_loads"`
	SchedDownmigrate               ParameterRange `json:"sched_downmigrate"`
	SchedUpmigrate                 ParameterRange `json:"sched_upmigrate"`
	SchedFreqAggregateThresholdPct ParameterRange `json:"sched_freq_aggregate_threshold_pct"`
	SchedRavgHistSize              ParameterRange `json:"sched_ravg_hist_size"`
	SchedWindowStatsPolicy         ParameterRange `json:"sched_window_stats_policy"`
	TimerRate                      ParameterRange `json:"timer_rate"`
	DownThreshold                  ParameterRange `json:"down_threshold"`
	UpThreshold                    ParameterRange `json:"up_threshold"`
	LoadAvgPeriodMs                ParameterRange `json:"load_avg_period_ms"`
	PeltBoost                      ParameterRange `json:"pelt_boost"`
	InputDuration                  ParameterRange `json:"input_duration"`
}

// Config is the fully-decoded conf.json, spec.md §6.
type Config struct {
	TodoModels     []string        `json:"todoModels"`
	MergedWorkload string          `json:"mergedWorkload"`
	IdleWorkload   string          `json:"idleWorkload"`
	UseUperf       bool            `json:"useUperf"`
	GaParameter    GaParameter     `json:"gaParameter"`
	MiscSettings   MiscSettings    `json:"miscSettings"`
	ParameterRange ParameterRanges `json:"parameterRange"`
}

// Load reads and strict-decodes conf.json at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &AccessError{Path: path, Err: err}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, &MalformedError{Path: path, Detail: err.Error()}
	}

	if len(cfg.TodoModels) == 0 {
		return Config{}, &MalformedError{Path: path, Detail: "todoModels is empty"}
	}
	if cfg.MergedWorkload == "" || cfg.IdleWorkload == "" {
		return Config{}, &MalformedError{Path: path, Detail: "mergedWorkload/idleWorkload must be set"}
	}
	if cfg.GaParameter.Population <= 0 || cfg.GaParameter.GenerationMax <= 0 {
		return Config{}, &MalformedError{Path: path, Detail: "gaParameter.population/generationMax must be positive"}
	}

	return cfg, nil
}

// CodecRanges translates the parsed parameterRange object into the
// codec.Ranges the genome codec expects.
func (c Config) CodecRanges() codec.Ranges {
	pr := c.ParameterRange
	toRange := func(r ParameterRange) codec.Range { return codec.Range{Start: r.Min, End: r.Max} }
	return codec.Ranges{
		GoHispeedLoad:                  toRange(pr.GoHispeedLoad),
		MinSampleTime:                  toRange(pr.MinSampleTime),
		MaxFreqHysteresis:              toRange(pr.MaxFreqHysteresis),
		AboveHispeedDelay:              toRange(pr.AboveHispeedDelay),
		TargetLoads:                    toRange(pr.TargetLoads),
		SchedDownmigrate:               toRange(pr.SchedDownmigrate),
		SchedUpmigrate:                 toRange(pr.SchedUpmigrate),
		SchedFreqAggregateThresholdPct: toRange(pr.SchedFreqAggregateThresholdPct),
		SchedRavgHistSize:              toRange(pr.SchedRavgHistSize),
		SchedWindowStatsPolicy:         toRange(pr.SchedWindowStatsPolicy),
		TimerRate:                      toRange(pr.TimerRate),
		DownThreshold:                  toRange(pr.DownThreshold),
		UpThreshold:                    toRange(pr.UpThreshold),
		LoadAvgPeriodMs:                toRange(pr.LoadAvgPeriodMs),
		PeltBoost:                      toRange(pr.PeltBoost),
		InputDuration:                  toRange(pr.InputDuration),
	}
}

// OptimizerConfig translates gaParameter and the battery/idle weights in
// miscSettings into an optimizer.Config.
func (c Config) OptimizerConfig() optimizer.Config {
	return optimizer.Config{
		Population:        c.GaParameter.Population,
		GenerationMax:      c.GaParameter.GenerationMax,
		CrossoverFraction:  c.GaParameter.CrossoverFraction,
		MutationRate:       c.GaParameter.MutationRate,
		Eta:                c.GaParameter.Eta,
		ThreadNum:          c.GaParameter.ThreadNum,
		RandomSeed:         c.GaParameter.RandomSeed,
		RefPointDivisions:  12,
		IdleLastingMin:     c.MiscSettings.IdleLastingMin,
		PerformanceMax:     c.MiscSettings.PerformanceMax,
		WorkFraction:       c.MiscSettings.WorkFraction,
		IdleFraction:       c.MiscSettings.IdleFraction,
	}
}

// SimulatorMisc translates the sim.power.* miscSettings into a
// simulator.MiscConst.
func (c Config) SimulatorMisc() simulator.MiscConst {
	return simulator.MiscConst{WorkingBaseMw: c.MiscSettings.WorkingBaseMw, IdleBaseMw: c.MiscSettings.IdleBaseMw}
}

// RankMisc translates the eval.* miscSettings into a rank.MiscConst.
func (c Config) RankMisc() rank.MiscConst {
	return rank.MiscConst{
		RenderFraction:     c.MiscSettings.RenderFraction,
		CommonFraction:     c.MiscSettings.CommonFraction,
		ComplexityFraction: c.MiscSettings.ComplexityFraction,
		PerfPartitionLen:   c.MiscSettings.PerfPartitionLen,
		SeqLagL1:           c.MiscSettings.SeqLagL1,
		SeqLagL2:           c.MiscSettings.SeqLagL2,
		SeqLagMax:          c.MiscSettings.SeqLagMax,
		BattPartitionLen:   c.MiscSettings.PowerPartitionLen,
	}
}
