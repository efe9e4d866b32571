package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heterosim/heterosim/internal/cpumodel"
	"github.com/heterosim/heterosim/internal/governor"
)

func littleModel() cpumodel.ClusterModel {
	return cpumodel.ClusterModel{
		Name:       "little",
		MinFreq:    600,
		MaxFreq:    1400,
		Efficiency: 1000,
		CoreNum:    4,
		OppTable: []cpumodel.Opp{
			{FreqMHz: 600, CorePowerMW: 50, ClusterPower: 10},
			{FreqMHz: 1000, CorePowerMW: 90, ClusterPower: 20},
			{FreqMHz: 1400, CorePowerMW: 150, ClusterPower: 40},
		},
	}
}

func bigModel() cpumodel.ClusterModel {
	return cpumodel.ClusterModel{
		Name:       "big",
		MinFreq:    800,
		MaxFreq:    2200,
		Efficiency: 2000,
		CoreNum:    4,
		OppTable: []cpumodel.Opp{
			{FreqMHz: 800, CorePowerMW: 200, ClusterPower: 50},
			{FreqMHz: 1500, CorePowerMW: 400, ClusterPower: 80},
			{FreqMHz: 2200, CorePowerMW: 700, ClusterPower: 120},
		},
	}
}

func govTunables() governor.Tunables {
	var t governor.Tunables
	t.HispeedFreq = 1000
	t.GoHispeedLoad = 90
	t.MinSampleTime = 2
	t.MaxFreqHysteresis = 2
	for i := range t.TargetLoads {
		t.TargetLoads[i] = 80
	}
	for i := range t.AboveHispeedDelay {
		t.AboveHispeedDelay[i] = 1
	}
	return t
}

func newTestCfg() (Cfg, *cpumodel.Cluster, *cpumodel.Cluster) {
	little := cpumodel.NewCluster(littleModel())
	big := cpumodel.NewCluster(bigModel())
	gl := governor.New(govTunables(), little)
	gb := governor.New(govTunables(), big)
	return Cfg{Little: little, Big: big, GovernorLittle: gl, GovernorBig: gb}, little, big
}

func TestWaltMigratesDownUnderLowLoad(t *testing.T) {
	cfg, little, big := newTestCfg()
	tn := WaltTunables{
		TimerRate:                      1,
		SchedUpmigrate:                 80,
		SchedDownmigrate:               20,
		SchedRavgHistSize:              5,
		SchedWindowStatsPolicy:         WindowStatsRecent,
		SchedFreqAggregateThresholdPct: 100,
	}
	w := NewWalt(cfg, tn)
	require.Equal(t, big, w.Active(), "WALT starts with big active")

	for i := 0; i < 10; i++ {
		w.Tick(0, [NLoadsMax]int{}, i)
	}
	assert.Equal(t, little, w.Active(), "sustained zero load should migrate down to little")
}

func TestWaltMigratesUpUnderHighLoad(t *testing.T) {
	cfg, _, big := newTestCfg()
	tn := WaltTunables{
		TimerRate:                      1,
		SchedUpmigrate:                 10,
		SchedDownmigrate:               1,
		SchedRavgHistSize:              5,
		SchedWindowStatsPolicy:         WindowStatsRecent,
		SchedFreqAggregateThresholdPct: 0,
	}
	w := NewWalt(cfg, tn)
	highLoad := 1400 * 1000 * 100 // freq*efficiency*busy_pct, fully loaded little
	for i := 0; i < 10; i++ {
		w.Tick(highLoad, [NLoadsMax]int{highLoad, highLoad, highLoad, highLoad}, i)
	}
	assert.Equal(t, big, w.Active(), "sustained high load should migrate up to big")
}

func TestWaltSingleClusterNeverMigrates(t *testing.T) {
	little := cpumodel.NewCluster(littleModel())
	gl := governor.New(govTunables(), little)
	cfg := Cfg{Little: little, Big: little, GovernorLittle: gl, GovernorBig: gl}
	tn := WaltTunables{
		TimerRate:                      1,
		SchedUpmigrate:                 1,
		SchedDownmigrate:               0,
		SchedRavgHistSize:              5,
		SchedWindowStatsPolicy:         WindowStatsRecent,
		SchedFreqAggregateThresholdPct: 0,
	}
	w := NewWalt(cfg, tn)
	for i := 0; i < 10; i++ {
		w.Tick(1400*1000*100, [NLoadsMax]int{}, i)
	}
	assert.Same(t, little, w.Active(), "a single-cluster SoC must never migrate")
}

func TestPeltMigratesByThreshold(t *testing.T) {
	cfg, little, big := newTestCfg()
	tn := PeltTunables{
		TimerRate:       1,
		LoadAvgPeriodMs: 32,
		DownThreshold:   100,
		UpThreshold:     900,
	}
	p := NewPelt(cfg, tn)
	require.Equal(t, big, p.Active())

	for i := 0; i < 50; i++ {
		p.Tick(0, [NLoadsMax]int{}, i)
	}
	assert.Equal(t, little, p.Active(), "sustained zero load should decay demand below down_threshold")
}

func TestSchedulerTickReturnsPositiveCapacity(t *testing.T) {
	cfg, _, _ := newTestCfg()
	tn := WaltTunables{
		TimerRate:                      2,
		SchedUpmigrate:                 50,
		SchedDownmigrate:               10,
		SchedRavgHistSize:              5,
		SchedWindowStatsPolicy:         WindowStatsAvg,
		SchedFreqAggregateThresholdPct: 50,
	}
	w := NewWalt(cfg, tn)
	for i := 0; i < 10; i++ {
		capacity := w.Tick(1000*1000*50, [NLoadsMax]int{500000, 0, 0, 0}, i)
		assert.Greater(t, capacity, 0)
	}
}

func TestNewRejectsLegacySchedType(t *testing.T) {
	cfg, _, _ := newTestCfg()
	_, err := New(cpumodel.SchedLegacy, cfg, nil, nil)
	assert.Error(t, err)
}

func TestNewRequiresMatchingTunables(t *testing.T) {
	cfg, _, _ := newTestCfg()
	_, err := New(cpumodel.SchedWALT, cfg, nil, nil)
	assert.Error(t, err)

	_, err = New(cpumodel.SchedPELT, cfg, nil, nil)
	assert.Error(t, err)
}
