package boost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heterosim/heterosim/internal/cpumodel"
	"github.com/heterosim/heterosim/internal/governor"
	"github.com/heterosim/heterosim/internal/scheduler"
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

func TestInputBoostRaisesThenRestoresMinFreq(t *testing.T) {
	little := cpumodel.NewCluster(littleModel())
	big := cpumodel.NewCluster(bigModel())
	ib := NewInput(InputTunables{BoostFreq: [2]int{1000, 1500}, DurationQuantum: 50}, []*cpumodel.Cluster{little, big})

	ib.Tick(false, false, 0)
	assert.Equal(t, 600, little.Model.MinFreq, "model min_freq is immutable; only the mutable window is raised")

	ib.Tick(true, false, 10)
	little.SetCurFreq(600)
	assert.Equal(t, 1000, little.CurFreq(), "boost should raise current frequency up to the new floor")

	for now := 11; now <= 61; now++ {
		ib.Tick(false, false, now)
	}
	little.SetCurFreq(600)
	assert.Equal(t, 600, little.CurFreq(), "min_freq should be restored once duration_quantum has elapsed")
}

func TestInputBoostNoopWhenDurationZero(t *testing.T) {
	little := cpumodel.NewCluster(littleModel())
	ib := NewInput(InputTunables{BoostFreq: [2]int{1200, 0}, DurationQuantum: 0}, []*cpumodel.Cluster{little})
	ib.Tick(true, false, 5)
	little.SetCurFreq(600)
	assert.Equal(t, 600, little.CurFreq(), "duration_quantum=0 must disable the boost entirely")
}

func govTunables(hispeed int) governor.Tunables {
	var t governor.Tunables
	t.HispeedFreq = hispeed
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

func TestUperfBoostAppliesAndRestoresOverride(t *testing.T) {
	little := cpumodel.NewCluster(littleModel())
	big := cpumodel.NewCluster(bigModel())
	gl := governor.New(govTunables(1000), little)
	gb := governor.New(govTunables(1500), big)

	sched := scheduler.NewWalt(scheduler.Cfg{Little: little, Big: big, GovernorLittle: gl, GovernorBig: gb}, scheduler.WaltTunables{
		TimerRate: 1, SchedUpmigrate: 80, SchedDownmigrate: 20, SchedRavgHistSize: 5,
		SchedWindowStatsPolicy: scheduler.WindowStatsRecent, SchedFreqAggregateThresholdPct: 100,
	})

	origUp, origDown := sched.Thresholds()

	tunables := UperfTunables{
		MinFreq:        [2]int{1000, 1500},
		MaxFreq:        [2]int{1400, 2200},
		SchedUp:        95,
		SchedDown:      5,
		GovernorLittle: govTunables(1400),
		GovernorBig:    govTunables(2200),
	}
	ub := NewUperf(tunables, little, big, gl, gb, sched)

	ub.Tick(true, false, 0)
	up, down := sched.Thresholds()
	assert.Equal(t, 95, up)
	assert.Equal(t, 5, down)
	assert.Equal(t, 1400, gl.Tunables().HispeedFreq)

	for now := 1; now <= renderHoldQuanta+1; now++ {
		ub.Tick(false, false, now)
	}

	up, down = sched.Thresholds()
	assert.Equal(t, origUp, up, "thresholds should be restored after the hold window expires")
	assert.Equal(t, origDown, down)
	require.Equal(t, 1000, gl.Tunables().HispeedFreq, "governor tunables should be restored too")
}

func TestUperfBoostRenderExtendsHoldWindow(t *testing.T) {
	little := cpumodel.NewCluster(littleModel())
	big := cpumodel.NewCluster(bigModel())
	gl := governor.New(govTunables(1000), little)
	gb := governor.New(govTunables(1500), big)
	sched := scheduler.NewWalt(scheduler.Cfg{Little: little, Big: big, GovernorLittle: gl, GovernorBig: gb}, scheduler.WaltTunables{
		TimerRate: 1, SchedUpmigrate: 80, SchedDownmigrate: 20, SchedRavgHistSize: 5,
		SchedWindowStatsPolicy: scheduler.WindowStatsRecent, SchedFreqAggregateThresholdPct: 100,
	})
	ub := NewUperf(UperfTunables{GovernorLittle: govTunables(1400), GovernorBig: govTunables(2200)}, little, big, gl, gb, sched)

	ub.Tick(true, false, 0)
	for now := 1; now <= 2*renderHoldQuanta; now++ {
		ub.Tick(false, true, now)
	}
	assert.Equal(t, 1400, gl.Tunables().HispeedFreq, "repeated renders should keep the override active past the original window")
}
