package boost

import (
	"github.com/heterosim/heterosim/internal/cpumodel"
	"github.com/heterosim/heterosim/internal/governor"
	"github.com/heterosim/heterosim/internal/scheduler"
)

// renderHoldQuanta is how long UperfBoost keeps its override active after
// the last render event, per spec.md §4.4 ("exit 20 quanta (200 ms) after
// last render").
const renderHoldQuanta = 20

// UperfTunables are the parameters the codec decodes for a UperfBoost
// controller (spec.md §4.8's Boost block for the UperfBoost variant): a
// per-cluster frequency clamp, an override for the scheduler's migration
// thresholds, and a full replacement governor configuration per cluster.
type UperfTunables struct {
	MinFreq        [2]int
	MaxFreq        [2]int
	SchedUp        int
	SchedDown      int
	GovernorLittle governor.Tunables
	GovernorBig    governor.Tunables
}

type uperfBackup struct {
	minFreq        [2]int
	maxFreq        [2]int
	schedUp        int
	schedDown      int
	governorLittle governor.Tunables
	governorBig    governor.Tunables
}

// UperfBoost is the richer override controller used when the optimizer run
// is configured with use_uperf: on entry it swaps in a whole alternate
// system configuration (frequency clamps, scheduler thresholds, governor
// tunables) and restores the original on exit.
type UperfBoost struct {
	tunables UperfTunables

	little, big    *cpumodel.Cluster
	governorLittle *governor.Interactive
	governorBig    *governor.Interactive
	sched          scheduler.ThresholdScheduler

	backup            uperfBackup
	backedUp          bool
	inBoost           bool
	lastRenderQuantum int
}

// NewUperf builds a UperfBoost wired to the live governor/scheduler
// instances it will override.
func NewUperf(tunables UperfTunables, little, big *cpumodel.Cluster, governorLittle, governorBig *governor.Interactive, sched scheduler.ThresholdScheduler) *UperfBoost {
	return &UperfBoost{
		tunables:       tunables,
		little:         little,
		big:            big,
		governorLittle: governorLittle,
		governorBig:    governorBig,
		sched:          sched,
	}
}

// takeBackup snapshots the current live configuration exactly once, the
// first time the controller ever enters boost.
func (b *UperfBoost) takeBackup() {
	if b.backedUp {
		return
	}
	up, down := b.sched.Thresholds()
	b.backup = uperfBackup{
		minFreq:        [2]int{b.little.Model.MinFreq, b.big.Model.MinFreq},
		maxFreq:        [2]int{b.little.Model.MaxFreq, b.big.Model.MaxFreq},
		schedUp:        up,
		schedDown:      down,
		governorLittle: b.governorLittle.Tunables(),
		governorBig:    b.governorBig.Tunables(),
	}
	b.backedUp = true
}

func (b *UperfBoost) applyOverride() {
	b.little.SetMinFreq(b.tunables.MinFreq[0])
	b.little.SetMaxFreq(b.tunables.MaxFreq[0])
	b.big.SetMinFreq(b.tunables.MinFreq[1])
	b.big.SetMaxFreq(b.tunables.MaxFreq[1])
	b.sched.SetThresholds(b.tunables.SchedUp, b.tunables.SchedDown)
	b.governorLittle.SetTunables(b.tunables.GovernorLittle)
	b.governorBig.SetTunables(b.tunables.GovernorBig)
}

func (b *UperfBoost) restoreBackup() {
	b.little.SetMinFreq(b.backup.minFreq[0])
	b.little.SetMaxFreq(b.backup.maxFreq[0])
	b.big.SetMinFreq(b.backup.minFreq[1])
	b.big.SetMaxFreq(b.backup.maxFreq[1])
	b.sched.SetThresholds(b.backup.schedUp, b.backup.schedDown)
	b.governorLittle.SetTunables(b.backup.governorLittle)
	b.governorBig.SetTunables(b.backup.governorBig)
}

// Tick implements the UperfBoost state machine from spec.md §4.4: entry is
// triggered by an input event (mirroring InputBoost's trigger, since
// UperfBoost stands in for it when use_uperf is set), a render event
// extends the hold window, and the override is restored 20 quanta after
// the last render.
func (b *UperfBoost) Tick(hasInput, hasRender bool, now int) {
	if !b.inBoost && hasInput {
		b.takeBackup()
		b.applyOverride()
		b.inBoost = true
		b.lastRenderQuantum = now
		return
	}
	if !b.inBoost {
		return
	}
	if hasRender {
		b.lastRenderQuantum = now
	}
	if now-b.lastRenderQuantum > renderHoldQuanta {
		b.restoreBackup()
		b.inBoost = false
	}
}
