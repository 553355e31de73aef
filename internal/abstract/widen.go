package abstract

import (
	"github.com/dkellis-lab/semlab/internal/store"
)

// Policy is a pluggable widening strategy applied after each abstract rule
// firing. The rule driver hands it the cardinality maps from before and
// after the firing; the policy may push additional addresses toward ω.
//
// The default policy performs no extra widening — the 0→1→ω transitions
// happen at allocation time, before the policy runs.
type Policy interface {
	Name() string
	AfterRule(ruleName string, before, after *store.Count) *store.Count
}

// DefaultPolicy widens nothing beyond the per-allocation bumps.
type DefaultPolicy struct{}

func (DefaultPolicy) Name() string { return "default" }

func (DefaultPolicy) AfterRule(_ string, _, after *store.Count) *store.Count {
	return after
}

// ThresholdPolicy saturates every address allocated during a single rule
// firing to ω once the firing allocates more than N addresses. Opt-in; the
// driver selects it for languages whose rules allocate unboundedly (loop
// unrollings, list spines) and would otherwise take many firings to
// saturate address by address.
type ThresholdPolicy struct {
	N int
}

func (ThresholdPolicy) Name() string { return "threshold" }

func (p ThresholdPolicy) AfterRule(_ string, before, after *store.Count) *store.Count {
	touched := after.Touched(before)
	if len(touched) <= p.N {
		return after
	}
	out := after
	for _, id := range touched {
		out = out.Saturate(id)
	}
	return out
}

var _ Policy = DefaultPolicy{}
var _ Policy = ThresholdPolicy{}
