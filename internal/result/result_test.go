package result

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heterosim/heterosim/internal/optimizer"
	"github.com/heterosim/heterosim/internal/rank"
)

func TestFromOptimizerSortsAndDedups(t *testing.T) {
	front := []optimizer.Result{
		{Score: rank.Score{Performance: 0.5, BatteryLife: 0.9}},
		{Score: rank.Score{Performance: 0.1, BatteryLife: 0.2}},
		{Score: rank.Score{Performance: 0.1, BatteryLife: 0.2}}, // exact duplicate
		{Score: rank.Score{Performance: 0.3, BatteryLife: 0.6}},
	}

	out := FromOptimizer(front)
	require.Len(t, out, 3)
	assert.Equal(t, 0.1, out[0].Score.Performance)
	assert.Equal(t, 0.3, out[1].Score.Performance)
	assert.Equal(t, 0.5, out[2].Score.Performance)
}

func TestSelectLevelPicksHighestBatteryLifeUnderThreshold(t *testing.T) {
	results := []Result{
		{Score: rank.Score{Performance: 0.05, BatteryLife: 0.4}},
		{Score: rank.Score{Performance: 0.10, BatteryLife: 0.8}},
		{Score: rank.Score{Performance: 0.40, BatteryLife: 0.95}},
	}

	idx, ok := SelectLevel(results, 0.15)
	require.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestSelectLevelFallsBackToFirstWhenNoneClearThreshold(t *testing.T) {
	results := []Result{
		{Score: rank.Score{Performance: 0.9, BatteryLife: 0.5}},
	}
	idx, ok := SelectLevel(results, 0.1)
	require.True(t, ok)
	assert.Equal(t, 0, idx)
}

func TestSelectAllLevelsReturnsSevenPicks(t *testing.T) {
	results := []Result{
		{Score: rank.Score{Performance: 0.05, BatteryLife: 0.3}},
		{Score: rank.Score{Performance: 0.5, BatteryLife: 0.7}},
		{Score: rank.Score{Performance: 1.1, BatteryLife: 0.99}},
	}
	picks, ok := SelectAllLevels(results)
	require.True(t, ok)
	assert.Len(t, picks, 7)
}

func TestSelectAllLevelsEmptyIsNotOK(t *testing.T) {
	_, ok := SelectAllLevels(nil)
	assert.False(t, ok)
}
