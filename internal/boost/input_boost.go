package boost

import "github.com/heterosim/heterosim/internal/cpumodel"

// InputTunables are the parameters the codec decodes for an InputBoost
// controller (spec.md §4.8's Boost block for the InputBoost variant).
type InputTunables struct {
	BoostFreq       [2]int
	DurationQuantum int
}

// InputBoost raises each cluster's min_freq for a fixed window after every
// input event, ported from input_boost.cpp's InputBoost/TouchBoost pair.
type InputBoost struct {
	tunables InputTunables
	clusters []*cpumodel.Cluster
	origMin  []int

	inputHappenedQuantum int
	inBoost              bool
}

// NewInput builds an InputBoost over the given clusters in little-to-big
// order, recording each cluster's configured min_freq so it can be
// restored on exit.
func NewInput(tunables InputTunables, clusters []*cpumodel.Cluster) *InputBoost {
	orig := make([]int, len(clusters))
	for i, c := range clusters {
		orig[i] = c.Model.MinFreq
	}
	return &InputBoost{tunables: tunables, clusters: clusters, origMin: orig}
}

// Tick implements InputBoost::HandleInput.
func (b *InputBoost) Tick(hasInput, hasRender bool, now int) {
	if hasInput && b.tunables.DurationQuantum != 0 {
		for i, c := range b.clusters {
			if i < len(b.tunables.BoostFreq) {
				c.SetMinFreq(b.tunables.BoostFreq[i])
			}
		}
		b.inputHappenedQuantum = now
		b.inBoost = true
		return
	}
	if b.inBoost && now-b.inputHappenedQuantum > b.tunables.DurationQuantum {
		for i, c := range b.clusters {
			c.SetMinFreq(b.origMin[i])
		}
		b.inBoost = false
	}
}
