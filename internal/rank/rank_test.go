package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heterosim/heterosim/internal/cpumodel"
	"github.com/heterosim/heterosim/internal/simulator"
	"github.com/heterosim/heterosim/internal/workload"
)

func testMisc() MiscConst {
	return MiscConst{
		RenderFraction:   1,
		CommonFraction:   0,
		PerfPartitionLen: 4,
		SeqLagL1:         2,
		SeqLagL2:         4,
		SeqLagMax:        8,
		BattPartitionLen: 2,
	}
}

func testSoc() *cpumodel.Soc {
	return &cpumodel.Soc{
		Name: "testsoc", EnoughCapacityPct: 90,
		ClusterModels: []cpumodel.ClusterModel{
			{Name: "little", MinFreq: 600, MaxFreq: 1400, Efficiency: 1000, CoreNum: 4},
			{Name: "big", MinFreq: 800, MaxFreq: 2200, Efficiency: 2000, CoreNum: 4},
		},
	}
}

func neutralScore() Score {
	return Score{Performance: 1, BatteryLife: 1, IdleLasting: 1}
}

func testWorkload() *workload.Workload {
	return &workload.Workload{
		FrameQuantum: 4,
		WindowedLoad: []workload.WindowSlice{
			{MaxLoad: 1000}, {MaxLoad: 1000}, {MaxLoad: 1000}, {MaxLoad: 1000},
			{MaxLoad: 1000}, {MaxLoad: 1000}, {MaxLoad: 1000}, {MaxLoad: 1000},
		},
		RenderLoad: []workload.RenderSlice{
			{WindowIdxs: [3]int{0, 1, 2}, WindowQuantums: [3]int{2, 2, 0}, FrameLoad: 2000},
			{WindowIdxs: [3]int{2, 3, 4}, WindowQuantums: [3]int{2, 2, 0}, FrameLoad: 2000},
		},
	}
}

func TestEvalInitPopulatesRefPowerConsumed(t *testing.T) {
	r := New(testMisc(), neutralScore())
	wl := testWorkload()
	result := simulator.Result{
		OnscreenCapacity: []int{2000, 2000, 2000, 2000, 2000, 2000, 2000, 2000},
		OnscreenPower:    []int{100, 100, 100, 100, 100, 100, 100, 100},
		OffscreenPower:   500,
	}
	score := r.Eval(wl, nil, result, testSoc(), true)

	require.NotNil(t, score.RefPowerConsumed)
	assert.Len(t, score.RefPowerConsumed, 4)
	assert.Equal(t, uint64(200), score.RefPowerConsumed[0])
	assert.Equal(t, 0.0, score.Performance, "no render frame lags, so the lag score is zero")
	assert.Greater(t, score.BatteryLife, 0.0)
	assert.Greater(t, score.IdleLasting, 0.0)
}

func TestEvalNonInitDoesNotPopulateRefPowerConsumed(t *testing.T) {
	r := New(testMisc(), neutralScore())
	wl := testWorkload()
	result := simulator.Result{
		OnscreenCapacity: []int{2000, 2000, 2000, 2000, 2000, 2000, 2000, 2000},
		OnscreenPower:    []int{100, 100, 100, 100, 100, 100, 100, 100},
		OffscreenPower:   500,
	}
	base := r.Eval(wl, nil, result, testSoc(), true)
	r.SetDefaultScore(base)

	score := r.Eval(wl, nil, result, testSoc(), false)
	assert.Nil(t, score.RefPowerConsumed)
	assert.InDelta(t, 1.0, score.BatteryLife, 1e-9, "re-scoring the baseline trace against itself should normalize to 1")
}

func TestEvalPerformanceWorsensWithLag(t *testing.T) {
	r := New(testMisc(), neutralScore())
	wl := testWorkload()

	good := simulator.Result{
		OnscreenCapacity: []int{2000, 2000, 2000, 2000, 2000, 2000, 2000, 2000},
		OnscreenPower:    []int{100, 100, 100, 100, 100, 100, 100, 100},
		OffscreenPower:   500,
	}
	lagging := simulator.Result{
		OnscreenCapacity: []int{500, 500, 500, 500, 500, 500, 500, 500},
		OnscreenPower:    []int{100, 100, 100, 100, 100, 100, 100, 100},
		OffscreenPower:   500,
	}

	r.SetDefaultScore(r.Eval(wl, nil, good, testSoc(), true))
	goodScore := r.Eval(wl, nil, good, testSoc(), false)
	lagScore := r.Eval(wl, nil, lagging, testSoc(), false)

	assert.Less(t, goodScore.Performance, lagScore.Performance, "more lag must score as a higher (worse) performance number")
}

func TestEvalBatteryLifeWorsensWithHigherPower(t *testing.T) {
	r := New(testMisc(), neutralScore())
	wl := testWorkload()

	baseline := simulator.Result{
		OnscreenCapacity: []int{2000, 2000, 2000, 2000, 2000, 2000, 2000, 2000},
		OnscreenPower:    []int{100, 100, 100, 100, 100, 100, 100, 100},
		OffscreenPower:   500,
	}
	hungrier := simulator.Result{
		OnscreenCapacity: []int{2000, 2000, 2000, 2000, 2000, 2000, 2000, 2000},
		OnscreenPower:    []int{200, 200, 200, 200, 200, 200, 200, 200},
		OffscreenPower:   500,
	}

	r.SetDefaultScore(r.Eval(wl, nil, baseline, testSoc(), true))
	baseScore := r.Eval(wl, nil, baseline, testSoc(), false)
	hungryScore := r.Eval(wl, nil, hungrier, testSoc(), false)

	assert.Greater(t, baseScore.BatteryLife, hungryScore.BatteryLife, "drawing more power must score a lower battery-life number")
}
