// Package boost implements the two short-term override controllers that
// react to input and render events: InputBoost (a min-freq pulse) and
// UperfBoost (a richer full-system override used when the optimizer run is
// configured with use_uperf). Ported from
// original_source/source/sim/input_boost.cpp and spec.md §4.4's UperfBoost
// prose, for which no surviving C++ source remains in the retrieval pack.
package boost

import (
	"github.com/heterosim/heterosim/internal/cpumodel"
	"github.com/heterosim/heterosim/internal/governor"
	"github.com/heterosim/heterosim/internal/scheduler"
)

// Boost is the contract both controllers satisfy (spec.md §9's Boost
// capability contract).
type Boost interface {
	// Tick feeds one quantum's input/render flags and current time.
	Tick(hasInput, hasRender bool, now int)
}
