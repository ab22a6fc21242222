package managers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hansjm10/idle-simcore/pkg/condition"
	"github.com/hansjm10/idle-simcore/pkg/content"
	"github.com/hansjm10/idle-simcore/pkg/resourcestate"
)

func TestResourceManager_UnlockVisibilityStickyAndDefaultsToUnlocked(t *testing.T) {
	cond1 := condition.Condition{Kind: condition.KindResourceThreshold, ResourceID: "gold", Comparator: condition.ComparatorGTE, Amount: 100}
	defs := []content.Resource{
		{ID: "gold"},
		{ID: "gems", UnlockCondition: &cond1},
	}
	state := resourcestate.Create([]resourcestate.Definition{{ID: "gold", StartAmount: 0, Unlocked: true}, {ID: "gems"}})
	rm := NewResourceManager(defs, state, condition.NewEvaluator())

	ctx := newFakeContext()
	ctx.resources["gold"] = 0
	rm.UpdateUnlockVisibility(ctx)
	assert.True(t, state.Visible(0), "a resource with no visibility condition falls back to visible-once-unlocked")
	assert.False(t, state.Unlocked(1))

	ctx.resources["gold"] = 100
	rm.UpdateUnlockVisibility(ctx)
	assert.True(t, state.Unlocked(1))
	assert.True(t, state.Visible(1), "Unlock implies visibility")

	ctx.resources["gold"] = 0
	rm.UpdateUnlockVisibility(ctx)
	assert.True(t, state.Unlocked(1), "unlock is sticky")
}

func TestResourceManager_AppliesOverridesAndForcedUnlocks(t *testing.T) {
	defs := []content.Resource{{ID: "gold"}, {ID: "gems"}}
	state := resourcestate.Create([]resourcestate.Definition{{ID: "gold"}, {ID: "gems"}})
	rm := NewResourceManager(defs, state, condition.NewEvaluator())

	rm.ApplyUnlockedResources([]string{"gems"})
	assert.True(t, state.Unlocked(1))

	rm.ApplyCapacityOverrides(map[string]float64{"gold": 500})
	assert.Equal(t, 500.0, state.Capacity(0))

	rm.ApplyDirtyToleranceOverrides(map[string]float64{"gold": 0.25})
}
