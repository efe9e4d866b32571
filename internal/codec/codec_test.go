package codec

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heterosim/heterosim/internal/cpumodel"
)

func testSoc(sched cpumodel.SchedType) *cpumodel.Soc {
	little := cpumodel.ClusterModel{
		Name: "little", MinFreq: 600, MaxFreq: 1400, Efficiency: 1000, CoreNum: 4,
		OppTable: []cpumodel.Opp{
			{FreqMHz: 600, CorePowerMW: 50, ClusterPower: 10},
			{FreqMHz: 1000, CorePowerMW: 90, ClusterPower: 20},
			{FreqMHz: 1400, CorePowerMW: 150, ClusterPower: 40},
		},
	}
	big := cpumodel.ClusterModel{
		Name: "big", MinFreq: 800, MaxFreq: 2200, Efficiency: 2000, CoreNum: 4,
		OppTable: []cpumodel.Opp{
			{FreqMHz: 800, CorePowerMW: 200, ClusterPower: 50},
			{FreqMHz: 1500, CorePowerMW: 400, ClusterPower: 80},
			{FreqMHz: 2200, CorePowerMW: 700, ClusterPower: 120},
		},
	}
	return &cpumodel.Soc{
		Name: "testsoc", SchedType: sched, IntraType: cpumodel.IntraASMP,
		EnoughCapacityPct: 90, ClusterModels: []cpumodel.ClusterModel{little, big},
	}
}

func testRanges() Ranges {
	return Ranges{
		GoHispeedLoad:                  Range{50, 99},
		MinSampleTime:                  Range{10, 100},
		MaxFreqHysteresis:              Range{10, 100},
		AboveHispeedDelay:              Range{10, 100},
		TargetLoads:                    Range{50, 99},
		SchedDownmigrate:               Range{10, 60},
		SchedUpmigrate:                 Range{40, 99},
		SchedFreqAggregateThresholdPct: Range{100, 2000},
		SchedRavgHistSize:              Range{1, 5},
		SchedWindowStatsPolicy:         Range{0, 3},
		TimerRate:                      Range{1, 5},
		DownThreshold:                  Range{100, 400},
		UpThreshold:                    Range{400, 900},
		LoadAvgPeriodMs:                Range{16, 256},
		PeltBoost:                      Range{0, 100},
		InputDuration:                  Range{10, 100},
	}
}

func TestParamLenPositiveForAllFlavors(t *testing.T) {
	for _, sched := range []cpumodel.SchedType{cpumodel.SchedWALT, cpumodel.SchedPELT} {
		for _, uperf := range []bool{false, true} {
			soc := testSoc(sched)
			c, err := New(soc, testRanges(), sched, uperf)
			require.NoError(t, err)
			assert.Greater(t, c.ParamLen(), 0)
		}
	}
}

func fillGenome(n int, v float64) []float64 {
	g := make([]float64, n)
	for i := range g {
		g[i] = v
	}
	return g
}

func TestDecodeWaltInputBoostRejectsWrongLength(t *testing.T) {
	soc := testSoc(cpumodel.SchedWALT)
	c, err := New(soc, testRanges(), cpumodel.SchedWALT, false)
	require.NoError(t, err)

	_, err = c.Decode(fillGenome(c.ParamLen()-1, 0.5))
	assert.Error(t, err)
}

func TestDecodeWaltInputBoostProducesValidTunables(t *testing.T) {
	soc := testSoc(cpumodel.SchedWALT)
	c, err := New(soc, testRanges(), cpumodel.SchedWALT, false)
	require.NoError(t, err)

	tun, err := c.Decode(fillGenome(c.ParamLen(), 0.5))
	require.NoError(t, err)

	require.NotNil(t, tun.Walt)
	require.Nil(t, tun.Pelt)
	require.NotNil(t, tun.Input)
	require.Nil(t, tun.Uperf)
	assert.Len(t, tun.Governors, 2)
	assert.GreaterOrEqual(t, tun.Walt.SchedUpmigrate, tun.Walt.SchedDownmigrate)
	assert.GreaterOrEqual(t, tun.Governors[0].MinSampleTime, 1)
	assert.GreaterOrEqual(t, tun.Governors[0].MaxFreqHysteresis, 1)

	for _, g := range tun.Governors {
		found := false
		for _, cm := range soc.ClusterModels {
			for _, opp := range cm.OppTable {
				if opp.FreqMHz == g.HispeedFreq {
					found = true
				}
			}
		}
		assert.True(t, found, "hispeed_freq must snap to an opp-table frequency")
	}
}

func TestDecodePeltUperfProducesValidTunables(t *testing.T) {
	soc := testSoc(cpumodel.SchedPELT)
	c, err := New(soc, testRanges(), cpumodel.SchedPELT, true)
	require.NoError(t, err)

	tun, err := c.Decode(fillGenome(c.ParamLen(), 0.5))
	require.NoError(t, err)

	require.NotNil(t, tun.Pelt)
	require.Nil(t, tun.Walt)
	require.NotNil(t, tun.Uperf)
	require.Nil(t, tun.Input)
	assert.GreaterOrEqual(t, tun.Pelt.UpThreshold, tun.Pelt.DownThreshold)
	assert.GreaterOrEqual(t, tun.Uperf.MaxFreq[0], tun.Uperf.MinFreq[0])
	assert.GreaterOrEqual(t, tun.Uperf.MaxFreq[1], tun.Uperf.MinFreq[1])
}

func TestSingleClusterWaltForcesSchedThresholds(t *testing.T) {
	little := cpumodel.ClusterModel{
		Name: "little", MinFreq: 600, MaxFreq: 1400, Efficiency: 1000, CoreNum: 4,
		OppTable: []cpumodel.Opp{
			{FreqMHz: 600, CorePowerMW: 50, ClusterPower: 10},
			{FreqMHz: 1400, CorePowerMW: 150, ClusterPower: 40},
		},
	}
	soc := &cpumodel.Soc{Name: "single", SchedType: cpumodel.SchedWALT, ClusterModels: []cpumodel.ClusterModel{little}}
	c, err := New(soc, testRanges(), cpumodel.SchedWALT, false)
	require.NoError(t, err)

	tun, err := c.Decode(fillGenome(c.ParamLen(), 0.9))
	require.NoError(t, err)

	assert.Equal(t, 45, tun.Walt.SchedUpmigrate)
	assert.Equal(t, 45, tun.Walt.SchedDownmigrate)
}

func TestDefaultTunablesValid(t *testing.T) {
	soc := testSoc(cpumodel.SchedWALT)
	c, err := New(soc, testRanges(), cpumodel.SchedWALT, false)
	require.NoError(t, err)

	d := c.Default()
	require.NotNil(t, d.Walt)
	require.NotNil(t, d.Input)
	assert.Len(t, d.Governors, 2)
}

func TestDescribeReportsTotalMatchingParamLen(t *testing.T) {
	soc := testSoc(cpumodel.SchedWALT)
	c, err := New(soc, testRanges(), cpumodel.SchedWALT, false)
	require.NoError(t, err)

	desc := c.Describe()
	assert.Contains(t, desc, "testsoc")
	assert.Contains(t, desc, fmt.Sprintf("total: %d params", c.ParamLen()))
}
