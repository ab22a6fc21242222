package managers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hansjm10/idle-simcore/pkg/condition"
	"github.com/hansjm10/idle-simcore/pkg/content"
	"github.com/hansjm10/idle-simcore/pkg/formula"
	"github.com/hansjm10/idle-simcore/pkg/resourcestate"
)

func TestUpgradeManager_EffectsComposeAdditiveBeforeMultiplier(t *testing.T) {
	defs := []content.Upgrade{
		{ID: "a", Effects: []content.UpgradeEffect{{Kind: content.EffectModifyGeneratorRate, TargetID: "miner", Additive: 0.25}}},
		{ID: "b", Effects: []content.UpgradeEffect{{Kind: content.EffectModifyGeneratorRate, TargetID: "miner", Additive: 0.25}}},
		{ID: "c", Effects: []content.UpgradeEffect{{Kind: content.EffectModifyGeneratorRate, TargetID: "miner", Multiplier: 2}}},
	}
	um := NewUpgradeManager(defs, formula.NewEvaluator(16), condition.NewEvaluator())
	um.states[0].Purchases = 1
	um.states[1].Purchases = 1
	um.states[2].Purchases = 1

	effects := um.GetUpgradeEffects(1, noopResolver{})
	assert.InDelta(t, 3.0, effects.GeneratorRateMultiplier("miner"), 1e-9)
	assert.Equal(t, 1.0, effects.GeneratorRateMultiplier("unrelated"))
}

func TestUpgradeManager_EffectsCachedUntilStepAdvances(t *testing.T) {
	defs := []content.Upgrade{{ID: "a", Effects: []content.UpgradeEffect{{Kind: content.EffectModifyResourceRate, TargetID: "gold", Multiplier: 2}}}}
	um := NewUpgradeManager(defs, formula.NewEvaluator(16), condition.NewEvaluator())

	first := um.GetUpgradeEffects(1, noopResolver{})
	assert.Equal(t, 1.0, first.ResourceRateMultiplier("gold"))

	um.states[0].Purchases = 1
	cached := um.GetUpgradeEffects(1, noopResolver{})
	assert.Equal(t, 1.0, cached.ResourceRateMultiplier("gold"), "same step must reuse the cached bundle")

	refreshed := um.GetUpgradeEffects(2, noopResolver{})
	assert.Equal(t, 2.0, refreshed.ResourceRateMultiplier("gold"))
}

func TestUpgradeManager_PurchaseSpendsAndIncrements(t *testing.T) {
	defs := []content.Upgrade{{ID: "speed", Cost: content.PurchaseCost{CurrencyID: "gold", CostMultiplier: 1, CostCurve: constFormula(50)}}}
	um := NewUpgradeManager(defs, formula.NewEvaluator(16), condition.NewEvaluator())
	um.UpdateForStep(newFakeContext())

	resources := resourcestate.Create([]resourcestate.Definition{{ID: "gold", StartAmount: 100}})
	require.NoError(t, um.Purchase("speed", resources, noopResolver{}))
	assert.Equal(t, 1, um.Purchases("speed"))
	assert.Equal(t, 50.0, resources.Amount(resources.IndexOf("gold")))

	err := um.Purchase("speed", resources, noopResolver{})
	require.Error(t, err, "non-repeatable upgrade cannot be purchased twice")
}

func TestUpgradeManager_ResetAllRetainsNamedUpgrades(t *testing.T) {
	defs := []content.Upgrade{{ID: "kept"}, {ID: "lost"}}
	um := NewUpgradeManager(defs, formula.NewEvaluator(16), condition.NewEvaluator())
	um.states[0].Purchases = 3
	um.states[1].Purchases = 2

	um.ResetAll(map[string]int{"kept": 3})
	assert.Equal(t, 3, um.Purchases("kept"))
	assert.Equal(t, 0, um.Purchases("lost"))
}
