package managers

import (
	"github.com/hansjm10/idle-simcore/pkg/condition"
	"github.com/hansjm10/idle-simcore/pkg/content"
	"github.com/hansjm10/idle-simcore/pkg/resourcestate"
)

// ResourceManager evaluates each resource's own unlock/visibility
// conditions against the live engine state and applies the bulk overrides
// an upgrade's effects bundle carries (forced unlocks, capacity ceilings,
// dirty-tolerance floors). The amount/rate columns themselves live in
// resourcestate.State; this type only owns the content-driven decisions
// about which slot transitions to apply.
type ResourceManager struct {
	defs  []content.Resource
	cond  *condition.Evaluator
	state *resourcestate.State
}

// NewResourceManager builds a manager over defs (already sorted by id) and
// the engine state built from the same definitions.
func NewResourceManager(defs []content.Resource, state *resourcestate.State, ce *condition.Evaluator) *ResourceManager {
	return &ResourceManager{defs: defs, cond: ce, state: state}
}

// ApplyUnlockedResources force-unlocks every id an upgrade effect names,
// regardless of the resource's own unlock condition.
func (m *ResourceManager) ApplyUnlockedResources(ids []string) {
	for _, id := range ids {
		if i := m.state.IndexOf(id); i >= 0 {
			m.state.Unlock(i)
		}
	}
}

// ApplyCapacityOverrides replaces each named resource's capacity ceiling
// with the already-coalesced (max-wins) override value.
func (m *ResourceManager) ApplyCapacityOverrides(overrides map[string]float64) {
	for id, capacity := range overrides {
		if i := m.state.IndexOf(id); i >= 0 {
			m.state.SetCapacity(i, capacity)
		}
	}
}

// ApplyDirtyToleranceOverrides replaces each named resource's publish
// tolerance with the already-coalesced (max-wins) override value.
func (m *ResourceManager) ApplyDirtyToleranceOverrides(overrides map[string]float64) {
	for id, tolerance := range overrides {
		if i := m.state.IndexOf(id); i >= 0 {
			m.state.SetDirtyTolerance(i, tolerance)
		}
	}
}

// UpdateUnlockVisibility evaluates every resource's own unlock and
// visibility conditions. Both transitions are sticky: once true, a
// resource never relocks or rehides even if the condition later turns
// false.
func (m *ResourceManager) UpdateUnlockVisibility(ctx condition.Context) {
	for i, def := range m.defs {
		if !m.state.Unlocked(i) && def.UnlockCondition != nil {
			if ok, _ := m.cond.Evaluate(*def.UnlockCondition, ctx); ok {
				m.state.Unlock(i)
			}
		}
		if !m.state.Visible(i) {
			if def.VisibilityCondition == nil {
				if m.state.Unlocked(i) {
					m.state.GrantVisibility(i)
				}
				continue
			}
			if ok, _ := m.cond.Evaluate(*def.VisibilityCondition, ctx); ok {
				m.state.GrantVisibility(i)
			}
		}
	}
}
