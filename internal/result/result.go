// Package result extracts the artifact-facing view of an optimizer run:
// the Pareto front's {tunables, score} pairs (dropping the genome, which
// only the optimizer needs), deduplicated, sorted by performance, and
// reduced to the seven performance-level picks internal/output writes
// into powercfg.sh. Grounded on original_source/source/opt/openga_helper.h's
// Result{tunable, score} struct and dump.cpp's DumpToShellScript find_level
// lambda.
package result

import (
	"sort"

	"github.com/heterosim/heterosim/internal/codec"
	"github.com/heterosim/heterosim/internal/optimizer"
	"github.com/heterosim/heterosim/internal/rank"
)

// Result is one Pareto-front member, ready for internal/output to render.
type Result struct {
	Tunables codec.Tunables
	Score    rank.Score
}

// Levels are the seven performance thresholds dump.cpp's level_map uses to
// pick powercfg.sh's level0..level6 entries: the feasible individual
// scoring under each threshold with the highest battery life.
var Levels = [7]float64{0.00, 0.15, 0.30, 0.50, 0.75, 0.99, 1.20}

// FromOptimizer strips genomes from an optimizer.Run front, re-sorts by
// ascending performance (optimizer.Run already does this, but this package
// doesn't assume the caller preserved that invariant), and drops exact
// score duplicates NSGA-III's niching can leave in a front.
func FromOptimizer(front []optimizer.Result) []Result {
	type scoreKey struct{ performance, batteryLife, idleLasting float64 }

	out := make([]Result, 0, len(front))
	seen := make(map[scoreKey]bool, len(front))
	for _, r := range front {
		key := scoreKey{r.Score.Performance, r.Score.BatteryLife, r.Score.IdleLasting}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Result{Tunables: r.Tunables, Score: r.Score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score.Performance < out[j].Score.Performance })
	return out
}

// SelectLevel returns the index into results of the individual with
// performance under threshold that maximizes battery life, mirroring
// dump.cpp's find_level lambda exactly (including its fallback to index 0
// when nothing clears the threshold). ok is false when results is empty.
func SelectLevel(results []Result, threshold float64) (idx int, ok bool) {
	if len(results) == 0 {
		return 0, false
	}
	best := 0
	maxBattLife := 0.0
	for i, r := range results {
		if r.Score.Performance < threshold && r.Score.BatteryLife > maxBattLife {
			best = i
			maxBattLife = r.Score.BatteryLife
		}
	}
	return best, true
}

// SelectAllLevels runs SelectLevel for each of the seven Levels thresholds,
// returning one Result per level in level order.
func SelectAllLevels(results []Result) ([7]Result, bool) {
	var picks [7]Result
	if len(results) == 0 {
		return picks, false
	}
	for i, threshold := range Levels {
		idx, _ := SelectLevel(results, threshold)
		picks[i] = results[idx]
	}
	return picks, true
}
