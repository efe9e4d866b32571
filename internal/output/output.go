// Package output writes the artifacts a completed optimization run
// produces for one Soc (spec.md §6): a human-readable text summary, a CSV
// of every front member's three scores, and a flavor-specific tuning
// profile — a powercfg.sh shell template for InputBoost flavors, or a
// JSON uperf profile for UperfBoost flavors. Grounded on
// original_source/source/output/dump.cpp's Dumper<SimType> (DumpToTXT,
// DumpToCSV, DumpToShellScript, and its find_level level-selection loop)
// and the teacher's plain-fmt reporting style (sim/metrics.go's
// Metrics.Print).
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/heterosim/heterosim/internal/codec"
	"github.com/heterosim/heterosim/internal/result"
	"github.com/heterosim/heterosim/internal/simulator"
)

// WriteText renders one <socName>.txt with every front member's scores and
// decoded tunables, one section per individual, matching DumpToTXT.
func WriteText(dir, socName string, results []result.Result) error {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "================\n\n")
		fmt.Fprintf(&b, ">>> %d <<<\n", i)
		fmt.Fprintf(&b, "performance: %.1f\n", r.Score.Performance*100)
		fmt.Fprintf(&b, "battery_life: %.1f\n", r.Score.BatteryLife*100)
		fmt.Fprintf(&b, "idle_lasting: %.1f\n", r.Score.IdleLasting*100)
		fmt.Fprintf(&b, "\n%s", tunablesString(r.Tunables))
	}
	return os.WriteFile(filepath.Join(dir, socName+".txt"), []byte(b.String()), 0o644)
}

// WriteCSV renders one <socName>.csv, one row per front member:
// perf_pct,batt_pct,idle_pct,idx, matching DumpToCSV.
func WriteCSV(dir, socName string, results []result.Result) error {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%.1f,%.1f,%.1f,%d\n",
			r.Score.Performance*100, r.Score.BatteryLife*100, r.Score.IdleLasting*100, i)
	}
	return os.WriteFile(filepath.Join(dir, socName+".csv"), []byte(b.String()), 0o644)
}

// tunablesString renders a decoded Tunables bundle's governor, scheduler,
// and boost blocks, a plainer analogue of dump.cpp's SimTunableToStr
// family (the sysfs-unit conversions and per-SoC-vendor template
// specialization it carries are out of scope here; values are reported in
// the codec's own units).
func tunablesString(t codec.Tunables) string {
	var b strings.Builder
	for i, g := range t.Governors {
		fmt.Fprintf(&b, "[interactive] cluster %d\n", i)
		fmt.Fprintf(&b, "hispeed_freq: %d\n", g.HispeedFreq)
		fmt.Fprintf(&b, "go_hispeed_load: %d\n", g.GoHispeedLoad)
		fmt.Fprintf(&b, "min_sample_time: %d\n", g.MinSampleTime)
		fmt.Fprintf(&b, "max_freq_hysteresis: %d\n\n", g.MaxFreqHysteresis)
	}
	if t.Walt != nil {
		fmt.Fprintf(&b, "[walt sched]\n")
		fmt.Fprintf(&b, "sched_downmigrate: %d\n", t.Walt.SchedDownmigrate)
		fmt.Fprintf(&b, "sched_upmigrate: %d\n", t.Walt.SchedUpmigrate)
		fmt.Fprintf(&b, "sched_ravg_hist_size: %d\n", t.Walt.SchedRavgHistSize)
		fmt.Fprintf(&b, "timer_rate: %d\n\n", t.Walt.TimerRate)
	}
	if t.Pelt != nil {
		fmt.Fprintf(&b, "[pelt sched]\n")
		fmt.Fprintf(&b, "down_threshold: %d\n", t.Pelt.DownThreshold)
		fmt.Fprintf(&b, "up_threshold: %d\n", t.Pelt.UpThreshold)
		fmt.Fprintf(&b, "load_avg_period_ms: %d\n", t.Pelt.LoadAvgPeriodMs)
		fmt.Fprintf(&b, "timer_rate: %d\n\n", t.Pelt.TimerRate)
	}
	if t.Input != nil {
		fmt.Fprintf(&b, "[input boost]\n")
		fmt.Fprintf(&b, "boost_freq: %v\n", t.Input.BoostFreq)
		fmt.Fprintf(&b, "duration_quantum: %d\n\n", t.Input.DurationQuantum)
	}
	if t.Uperf != nil {
		fmt.Fprintf(&b, "[uperf boost]\n")
		fmt.Fprintf(&b, "min_freq: %v\n", t.Uperf.MinFreq)
		fmt.Fprintf(&b, "max_freq: %v\n", t.Uperf.MaxFreq)
		fmt.Fprintf(&b, "sched_up/down: %d/%d\n\n", t.Uperf.SchedUp, t.Uperf.SchedDown)
	}
	return b.String()
}

// shellTemplate is the powercfg.sh skeleton substituted with per-platform
// and per-level content, a minimal stand-in for
// original_source's ./template/powercfg_template.sh (not carried into this
// retrieval pack).
const shellTemplate = `#!/system/bin/sh
# generated by heterosim for [platform_name] on [generated_time]
# parameter count: [param_num]

[level0]
[level1]
[level2]
[level3]
[level4]
[level5]
[level6]
`

// WriteShellScript renders <dir>/<socName>/powercfg.sh for InputBoost
// flavors: for each of result.Levels' seven performance thresholds, the
// feasible individual maximizing battery life under that threshold is
// rendered into a [levelN] slot, matching DumpToShellScript's find_level
// loop. now is injected by the caller since packages in this module may
// not call time.Now directly in generated-artifact paths that must stay
// reproducible for tests; cmd wires time.Now() in.
func WriteShellScript(dir, socName string, results []result.Result, paramLen int, now time.Time) error {
	picks, ok := result.SelectAllLevels(results)
	if !ok {
		return fmt.Errorf("output: no results to select levels from")
	}

	socDir := filepath.Join(dir, socName)
	if err := os.MkdirAll(socDir, 0o755); err != nil {
		return fmt.Errorf("output: creating %s: %w", socDir, err)
	}

	content := shellTemplate
	content = strings.ReplaceAll(content, "[platform_name]", socName)
	content = strings.ReplaceAll(content, "[generated_time]", now.Format("2006-01-02 15:04:05"))
	content = strings.ReplaceAll(content, "[param_num]", fmt.Sprintf("%d", paramLen))

	for level, r := range picks {
		var b strings.Builder
		fmt.Fprintf(&b, "# lag percent: %.1f%%\n", r.Score.Performance*100)
		fmt.Fprintf(&b, "# battery life: %.1f%%\n", r.Score.BatteryLife*100)
		b.WriteString(tunablesString(r.Tunables))
		content = strings.ReplaceAll(content, fmt.Sprintf("[level%d]", level), b.String())
	}

	return os.WriteFile(filepath.Join(socDir, "powercfg.sh"), []byte(content), 0o644)
}

// uperfProfile is one named uperf mode's tunable bundle, serialized to
// JSON. The three modes are derived from result.Levels picks: powersave
// uses the highest threshold (most battery-favoring feasible individual),
// performance the lowest, balance the midpoint — a supplementary mapping
// spec.md §6 names but original_source's dump.cpp never implements (no
// uperf JSON writer exists there), so this shape is this port's own.
type uperfProfile struct {
	MinFreq        [2]int `json:"minFreq"`
	MaxFreq        [2]int `json:"maxFreq"`
	SchedUp        int    `json:"schedUp"`
	SchedDown      int    `json:"schedDown"`
	Performance    score  `json:"score"`
}

type score struct {
	Performance float64 `json:"performance"`
	BatteryLife float64 `json:"batteryLife"`
	IdleLasting float64 `json:"idleLasting"`
}

// WriteUperfProfile renders <socName>.json for UperfBoost flavors: three
// named modes (performance, balance, powersave) each holding one front
// member's UperfBoost frequency clamps and scheduler thresholds plus its
// score; the nested governor tunables are not written.
func WriteUperfProfile(dir, socName string, results []result.Result) error {
	picks, ok := result.SelectAllLevels(results)
	if !ok {
		return fmt.Errorf("output: no results to select uperf profiles from")
	}

	modeFor := func(r result.Result) uperfProfile {
		if r.Tunables.Uperf == nil {
			return uperfProfile{}
		}
		u := r.Tunables.Uperf
		return uperfProfile{
			MinFreq: u.MinFreq, MaxFreq: u.MaxFreq,
			SchedUp: u.SchedUp, SchedDown: u.SchedDown,
			Performance: score{r.Score.Performance, r.Score.BatteryLife, r.Score.IdleLasting},
		}
	}

	profiles := map[string]uperfProfile{
		"performance": modeFor(picks[0]),
		"balance":     modeFor(picks[3]),
		"powersave":   modeFor(picks[6]),
	}

	data, err := json.MarshalIndent(profiles, "", "  ")
	if err != nil {
		return fmt.Errorf("output: marshalling uperf profile: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, socName+".json"), data, 0o644)
}

// Write dispatches the flavor-specific tuning artifact (powercfg.sh for
// InputBoost flavors, a uperf JSON profile for UperfBoost flavors) in
// addition to the flavor-independent text and CSV summaries, matching
// spec.md §6's four-artifact description.
func Write(dir, socName string, flavor simulator.Flavor, results []result.Result, paramLen int, now time.Time) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("output: creating %s: %w", dir, err)
	}
	if err := WriteText(dir, socName, results); err != nil {
		return err
	}
	if err := WriteCSV(dir, socName, results); err != nil {
		return err
	}

	switch flavor {
	case simulator.QcomBL, simulator.BL:
		return WriteShellScript(dir, socName, results, paramLen, now)
	case simulator.QcomUp, simulator.Up:
		return WriteUperfProfile(dir, socName, results)
	default:
		return fmt.Errorf("output: unknown flavor %v", flavor)
	}
}

