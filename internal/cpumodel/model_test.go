package cpumodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeOppModel() ClusterModel {
	return ClusterModel{
		Name:       "little",
		MinFreq:    600,
		MaxFreq:    1400,
		Efficiency: 1000,
		CoreNum:    4,
		OppTable: []Opp{
			{FreqMHz: 600, CorePowerMW: 50, ClusterPower: 10},
			{FreqMHz: 1000, CorePowerMW: 90, ClusterPower: 20},
			{FreqMHz: 1400, CorePowerMW: 150, ClusterPower: 40},
		},
	}
}

func TestClusterModelValidate(t *testing.T) {
	require.NoError(t, threeOppModel().Validate())

	bad := threeOppModel()
	bad.OppTable[2].FreqMHz = 500 // no longer strictly increasing
	assert.Error(t, bad.Validate())

	bad2 := threeOppModel()
	bad2.MaxFreq = 5000
	assert.Error(t, bad2.Validate())
}

func TestFreqFloorToOppClampsAtEdges(t *testing.T) {
	c := NewCluster(threeOppModel())

	assert.Equal(t, 600, c.FreqFloorToOpp(100), "below min clamps to min opp")
	assert.Equal(t, 1000, c.FreqFloorToOpp(601))
	assert.Equal(t, 1000, c.FreqFloorToOpp(1000))
	assert.Equal(t, 1400, c.FreqFloorToOpp(1001))
	assert.Equal(t, 1400, c.FreqFloorToOpp(5000), "above max clamps to max opp")
}

func TestFreqCeilingToOppClampsAtEdges(t *testing.T) {
	c := NewCluster(threeOppModel())

	assert.Equal(t, 600, c.FreqCeilingToOpp(100), "below min clamps to min opp")
	assert.Equal(t, 600, c.FreqCeilingToOpp(999))
	assert.Equal(t, 1000, c.FreqCeilingToOpp(1000))
	assert.Equal(t, 1400, c.FreqCeilingToOpp(5000), "above max clamps to max opp")
}

func TestSetMinFreqBumpsCurrentUp(t *testing.T) {
	c := NewCluster(threeOppModel())
	c.SetCurFreq(600)
	require.Equal(t, 600, c.CurFreq())

	c.SetMinFreq(1000)
	assert.Equal(t, 1000, c.CurFreq(), "raising min above current bumps current up")
}

func TestSetMaxFreqBumpsCurrentDown(t *testing.T) {
	c := NewCluster(threeOppModel())
	c.SetCurFreq(1400)
	require.Equal(t, 1400, c.CurFreq())

	c.SetMaxFreq(1000)
	assert.Equal(t, 1000, c.CurFreq(), "lowering max below current bumps current down")
}

func TestCalcPowerAndCapacity(t *testing.T) {
	c := NewCluster(threeOppModel())
	c.SetCurFreq(1000)

	// opp idx 1: core=90, cluster=20
	got := c.CalcPower([]int{50, 50, 0, 0})
	assert.Equal(t, 20*100+90*100, got)

	assert.Equal(t, 1000*1000*100, c.CalcCapacity())
}

func TestInvariantOppClamping(t *testing.T) {
	c := NewCluster(threeOppModel())
	for _, f := range []int{0, 599, 600, 601, 999, 1000, 1001, 1399, 1400, 1401, 999999} {
		got := c.FreqFloorToOpp(f)
		found := false
		for _, opp := range c.Model.OppTable {
			if opp.FreqMHz == got {
				found = true
			}
		}
		assert.True(t, found, "floor_to_opp(%d)=%d must be a table entry", f, got)
		if f <= c.Model.MaxFreq {
			assert.GreaterOrEqual(t, got, f, "floor_to_opp(%d)=%d should be >= f when f <= max", f, got)
		}
	}
}
