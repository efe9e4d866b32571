package optimizer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/combin"
)

const numObjectives = 2

// dominatesObjectives reports whether a dominates b on raw objectives
// alone: no worse in any objective and strictly better in at least one
// (both minimized). Generalized from nsga2.go's Dominates to the fixed
// 2-objective array this package uses.
func dominatesObjectives(a, b [numObjectives]float64) bool {
	better := false
	for i := 0; i < numObjectives; i++ {
		if a[i] > b[i] {
			return false
		}
		if a[i] < b[i] {
			better = true
		}
	}
	return better
}

// dominates reports whether a dominates b, applying spec.md's feasibility
// gate (idle_lasting_min/performance_max, surfaced as Individual.Pass) as
// a constraint-domination rule before falling back to objectives: a
// feasible individual always dominates an infeasible one regardless of
// objective values, mirroring openGA's eval_solution contract
// (original_source/source/opt/openga_helper.cpp's EvalParamSeq rejects
// infeasible individuals before they ever enter the gene pool) so an
// infeasible individual can never outrank, niche-crowd, or win a
// tournament against a feasible one.
func dominates(a, b Individual) bool {
	if a.Pass != b.Pass {
		return a.Pass
	}
	return dominatesObjectives(a.Objectives, b.Objectives)
}

// nonDominatedSort partitions pop into successive Pareto fronts, each
// index appearing in exactly one front. Feasible individuals (Pass==true)
// always dominate infeasible ones via dominates' constraint-domination
// rule, so an infeasible individual only reaches the first front when no
// individual in the population passes the gate. Ported from nsga2.go's NonDominatedSort,
// generalized to operate over indices rather than pointers so it
// composes with the niching step below.
func nonDominatedSort(pop []Individual) [][]int {
	n := len(pop)
	dominatedBy := make([][]int, n)
	domCount := make([]int, n)

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if dominates(pop[i], pop[j]) {
				dominatedBy[i] = append(dominatedBy[i], j)
			} else if dominates(pop[j], pop[i]) {
				domCount[i]++
			}
		}
	}

	var fronts [][]int
	current := []int{}
	for i := 0; i < n; i++ {
		if domCount[i] == 0 {
			current = append(current, i)
		}
	}

	for len(current) > 0 {
		fronts = append(fronts, current)
		var next []int
		for _, i := range current {
			for _, j := range dominatedBy[i] {
				domCount[j]--
				if domCount[j] == 0 {
					next = append(next, j)
				}
			}
		}
		current = next
	}
	return fronts
}

// dasDennisRefPoints generates the standard Das-Dennis simplex lattice of
// reference directions for numObjectives objectives with p divisions per
// axis, via the "stars and bars" combination enumeration gonum's
// stat/combin package provides (C(p+m-1, m-1) points). No NSGA-III
// reference exists in the retrieval pack; this is the textbook
// construction, implemented directly from its combinatorial definition.
func dasDennisRefPoints(p int) [][numObjectives]float64 {
	m := numObjectives
	n := p + m - 1
	k := m - 1

	combos := combin.Combinations(n, k)
	points := make([][numObjectives]float64, 0, len(combos))
	for _, c := range combos {
		bounds := make([]int, 0, k+2)
		bounds = append(bounds, -1)
		bounds = append(bounds, c...)
		bounds = append(bounds, n)

		var pt [numObjectives]float64
		for i := 0; i < m; i++ {
			pt[i] = float64(bounds[i+1]-bounds[i]-1) / float64(p)
		}
		points = append(points, pt)
	}
	return points
}

// perpendicularDistance returns the distance from point to the line
// through the origin in direction dir, both already normalized objective
// vectors. Standard NSGA-III association metric.
func perpendicularDistance(point, dir [numObjectives]float64) float64 {
	p := point[:]
	d := dir[:]
	dirNorm := floats.Norm(d, 2)
	if dirNorm == 0 {
		return floats.Norm(p, 2)
	}
	proj := floats.Dot(p, d) / (dirNorm * dirNorm)
	diff := make([]float64, numObjectives)
	for i := range diff {
		diff[i] = p[i] - proj*d[i]
	}
	return floats.Norm(diff, 2)
}

// normalizeObjectives translates by the component-wise ideal point (min
// per objective) and scales by the component-wise spread observed in pop,
// the simplified normalization this port uses in place of NSGA-III's full
// achievement-scalarizing-function extreme-point/intercept construction
// (see DESIGN.md: no NSGA-III source exists in the pack to ground the
// fuller procedure on, and this spread-based normalization is a standard,
// documented simplification that preserves the niching behavior for a
// fixed 2-objective problem).
func normalizeObjectives(pop []Individual) [][numObjectives]float64 {
	var ideal, spread [numObjectives]float64
	for i := 0; i < numObjectives; i++ {
		ideal[i] = math.Inf(1)
	}
	var worst [numObjectives]float64
	for i := 0; i < numObjectives; i++ {
		worst[i] = math.Inf(-1)
	}
	for _, ind := range pop {
		for i := 0; i < numObjectives; i++ {
			if ind.Objectives[i] < ideal[i] {
				ideal[i] = ind.Objectives[i]
			}
			if ind.Objectives[i] > worst[i] {
				worst[i] = ind.Objectives[i]
			}
		}
	}
	for i := 0; i < numObjectives; i++ {
		spread[i] = worst[i] - ideal[i]
		if spread[i] == 0 {
			spread[i] = 1
		}
	}

	out := make([][numObjectives]float64, len(pop))
	for idx, ind := range pop {
		var n [numObjectives]float64
		for i := 0; i < numObjectives; i++ {
			n[i] = (ind.Objectives[i] - ideal[i]) / spread[i]
		}
		out[idx] = n
	}
	return out
}

// selectNextGeneration runs non-dominated sorting over the combined
// parent+offspring pool, fills the next generation front-by-front, and
// when a front must be split, uses reference-point niching (association
// by minimum perpendicular distance, least-crowded reference point
// preferred) to choose which of its members survive.
func selectNextGeneration(pop []Individual, target int, refPoints [][numObjectives]float64) []Individual {
	fronts := nonDominatedSort(pop)
	normalized := normalizeObjectives(pop)

	next := make([]Individual, 0, target)
	frontIdx := 0
	for frontIdx < len(fronts) && len(next)+len(fronts[frontIdx]) <= target {
		for _, i := range fronts[frontIdx] {
			next = append(next, pop[i])
		}
		frontIdx++
	}
	if len(next) == target || frontIdx >= len(fronts) {
		return next
	}

	remaining := target - len(next)
	splitFront := fronts[frontIdx]

	niceCount := make(map[int]int)
	for f := 0; f < frontIdx; f++ {
		for _, i := range fronts[f] {
			best, bestDist := 0, math.Inf(1)
			for r, rp := range refPoints {
				if d := perpendicularDistance(normalized[i], rp); d < bestDist {
					bestDist, best = d, r
				}
			}
			niceCount[best]++
		}
	}

	type assoc struct {
		idx  int // index into splitFront
		ref  int
		dist float64
	}
	assocs := make([]assoc, len(splitFront))
	for k, i := range splitFront {
		best, bestDist := 0, math.Inf(1)
		for r, rp := range refPoints {
			d := perpendicularDistance(normalized[i], rp)
			if d < bestDist {
				bestDist, best = d, r
			}
		}
		assocs[k] = assoc{idx: k, ref: best, dist: bestDist}
	}

	taken := make(map[int]bool)
	for remaining > 0 {
		minRef, minCount := -1, math.MaxInt64
		for r := range refPoints {
			if niceCount[r] < minCount {
				// only consider ref points with at least one untaken candidate
				has := false
				for _, a := range assocs {
					if !taken[a.idx] && a.ref == r {
						has = true
						break
					}
				}
				if has {
					minCount, minRef = niceCount[r], r
				}
			}
		}
		if minRef == -1 {
			break
		}

		bestK, bestDist := -1, math.Inf(1)
		for _, a := range assocs {
			if !taken[a.idx] && a.ref == minRef && a.dist < bestDist {
				bestDist, bestK = a.dist, a.idx
			}
		}
		if bestK == -1 {
			break
		}
		taken[bestK] = true
		niceCount[minRef]++

		ind := pop[splitFront[bestK]]
		ind.refPoint = minRef
		next = append(next, ind)
		remaining--
	}

	return next
}

// evalResult pairs a population index with its completed evaluation, used
// to hand results back from worker goroutines without shared mutable
// state.
type evalResult struct {
	idx  int
	ind  Individual
	err  error
}

// evaluatePopulation scores every genome in pop via problem.Evaluate,
// fanning out over cfg.ThreadNum workers (channel + sync.WaitGroup, per
// nsga2.go's parallel initial-population pattern). ThreadNum<=1 runs
// sequentially so a single-threaded run stays exactly reproducible.
func evaluatePopulation(ctx context.Context, problem *Problem, pop []Individual, threadNum int) error {
	n := len(pop)
	if threadNum <= 1 {
		for i := range pop {
			objectives, pass, score, err := problem.Evaluate(pop[i].Genome)
			if err != nil {
				return fmt.Errorf("optimizer: evaluating genome %d: %w", i, err)
			}
			pop[i].Objectives, pop[i].Pass, pop[i].Score = objectives, pass, score
		}
		return nil
	}

	workChan := make(chan int, n)
	resultChan := make(chan evalResult, n)
	var wg sync.WaitGroup
	for w := 0; w < threadNum; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range workChan {
				objectives, pass, score, err := problem.Evaluate(pop[i].Genome)
				ind := pop[i]
				ind.Objectives, ind.Pass, ind.Score = objectives, pass, score
				resultChan <- evalResult{idx: i, ind: ind, err: err}
			}
		}()
	}
	for i := 0; i < n; i++ {
		workChan <- i
	}
	close(workChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	for r := range resultChan {
		if r.err != nil {
			return fmt.Errorf("optimizer: evaluating genome %d: %w", r.idx, r.err)
		}
		pop[r.idx] = r.ind
	}
	return nil
}

// Run evolves a population against problem for cfg.GenerationMax
// generations and returns the feasible (Pass==true) members of the final
// non-dominated front, per spec.md §4.9. Selection, crossover, and
// mutation consume the seeded PRNG in a fixed sequential order regardless
// of ThreadNum, so only evaluation — which is pure given a genome — runs
// in parallel; this keeps the search reproducible across thread counts.
func Run(ctx context.Context, problem *Problem, cfg Config) ([]Result, error) {
	if cfg.Population <= 0 {
		return nil, fmt.Errorf("optimizer: population must be positive")
	}
	rng := rand.New(rand.NewSource(int64(cfg.RandomSeed)))
	paramLen := problem.Codec.ParamLen()

	pop := make([]Individual, cfg.Population)
	for i := range pop {
		pop[i].Genome = initGenome(paramLen, rng)
	}
	if err := evaluatePopulation(ctx, problem, pop, cfg.ThreadNum); err != nil {
		return nil, err
	}

	divisions := cfg.RefPointDivisions
	if divisions <= 0 {
		divisions = 12
	}
	refPoints := dasDennisRefPoints(divisions)

	for gen := 0; gen < cfg.GenerationMax; gen++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("optimizer: cancelled after generation %d: %w", gen, err)
		}

		offspring := make([]Individual, 0, cfg.Population)
		for len(offspring) < cfg.Population {
			p1 := tournamentSelect(pop, rng)
			p2 := tournamentSelect(pop, rng)

			var c1Genome, c2Genome []float64
			if rng.Float64() < cfg.CrossoverFraction {
				c1Genome = crossover(p1.Genome, p2.Genome, cfg.Eta, rng)
				c2Genome = crossover(p2.Genome, p1.Genome, cfg.Eta, rng)
			} else {
				c1Genome = append([]float64(nil), p1.Genome...)
				c2Genome = append([]float64(nil), p2.Genome...)
			}
			if rng.Float64() < cfg.MutationRate {
				c1Genome = mutate(c1Genome, cfg.Eta, rng)
			}
			if rng.Float64() < cfg.MutationRate {
				c2Genome = mutate(c2Genome, cfg.Eta, rng)
			}

			offspring = append(offspring, Individual{Genome: c1Genome})
			if len(offspring) < cfg.Population {
				offspring = append(offspring, Individual{Genome: c2Genome})
			}
		}

		if err := evaluatePopulation(ctx, problem, offspring, cfg.ThreadNum); err != nil {
			return nil, err
		}

		combined := append(append([]Individual{}, pop...), offspring...)
		pop = selectNextGeneration(combined, cfg.Population, refPoints)

		logrus.WithFields(logrus.Fields{"generation": gen + 1, "population": len(pop)}).Debug("optimizer: generation complete")
	}

	fronts := nonDominatedSort(pop)
	if len(fronts) == 0 {
		return nil, nil
	}

	results := make([]Result, 0, len(fronts[0]))
	for _, i := range fronts[0] {
		if !pop[i].Pass {
			continue
		}
		tunables, err := problem.Codec.Decode(pop[i].Genome)
		if err != nil {
			return nil, fmt.Errorf("optimizer: decoding final front member: %w", err)
		}
		results = append(results, Result{Tunables: tunables, Score: pop[i].Score, Genome: pop[i].Genome})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score.Performance < results[j].Score.Performance
	})

	return results, nil
}

// tournamentSelect picks the better of two random candidates by Pareto
// dominance (dominates, including its feasibility rule), falling back to
// a coin flip when neither dominates the other (no
// crowding-distance tiebreak is tracked post-niching, unlike NSGA-II's
// TournamentSelect in nsga2.go — NSGA-III relies on reference-point
// niching instead of crowding distance for diversity).
func tournamentSelect(pop []Individual, rng *rand.Rand) Individual {
	a := pop[rng.Intn(len(pop))]
	b := pop[rng.Intn(len(pop))]
	if dominates(a, b) {
		return a
	}
	if dominates(b, a) {
		return b
	}
	if rng.Float64() < 0.5 {
		return a
	}
	return b
}
