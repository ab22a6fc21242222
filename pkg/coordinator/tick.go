package coordinator

import (
	"context"

	"github.com/hansjm10/idle-simcore/pkg/managers"
)

// UpdateForStep runs the coordinator's per-tick fixed-point loop: it
// repeatedly re-derives upgrade effects, applies them to the resource and
// generator managers, refreshes every manager's unlock/visibility state,
// and lets the achievement tracker complete anything now eligible — looping
// again only if a completion this iteration might have unlocked further
// content, bounded by len(achievements)+1 iterations so a reward chain
// always terminates.
func (c *Coordinator) UpdateForStep(step int64, clock managers.Clock) {
	_, span := c.recorder.StartSpan(context.Background(), "updateForStep")
	defer span.End()

	c.lastUpdatedStep = step
	c.generators.SetClock(clock)
	c.upgrades.SetClock(clock)

	ctx := conditionContext{c}
	resolver := entityResolver{c}

	maxIterations := len(c.pack.Achievements) + 1
	if maxIterations < 1 {
		maxIterations = 1
	}

	for iter := 0; iter < maxIterations; iter++ {
		c.achievements.RefreshDerivedRewards()
		for _, id := range c.achievements.GrantedUpgradeIDs() {
			c.upgrades.ForceGrant(id)
		}
		effects := c.upgrades.GetUpgradeEffects(step, resolver)
		c.rebuildCombinedAutomationIDs(effects)

		c.resourceMgr.ApplyUnlockedResources(effects.UnlockedResources)
		c.generators.ApplyUnlockedGenerators(effects.UnlockedGenerators)
		c.resourceMgr.ApplyCapacityOverrides(effects.ResourceCapacityOverrides)
		c.resourceMgr.ApplyDirtyToleranceOverrides(effects.DirtyToleranceOverrides)
		c.resourceMgr.UpdateUnlockVisibility(ctx)

		c.generators.UpdateForStep(ctx, effects, resolver)
		c.generators.ApplyRatesToResources(c.resources)
		c.upgrades.UpdateForStep(ctx)
		c.prestige.UpdateForStep(ctx)

		completed := c.achievements.UpdateForStep(step, ctx, c.resources, c.generators, c.metrics, c.recorder)
		if !completed {
			break
		}
	}
}

func (c *Coordinator) rebuildCombinedAutomationIDs(effects managers.EvaluatedUpgradeEffects) {
	combined := make(map[string]struct{}, len(effects.GrantedAutomations))
	for _, id := range c.achievements.GrantedAutomations() {
		combined[id] = struct{}{}
	}
	for _, id := range effects.GrantedAutomations {
		combined[id] = struct{}{}
	}
	c.combinedAutomations = combined
}

// PurchaseGenerator buys count units of generator id against the live
// resource state, honoring unlock/visibility/maxLevel and the currently
// coalesced upgrade effects. Retried per the coordinator's RetryPolicy.
func (c *Coordinator) PurchaseGenerator(id string, count int) error {
	return c.retryAction("PurchaseGenerator:"+id, func() error {
		effects := c.upgrades.GetUpgradeEffects(c.lastUpdatedStep, entityResolver{c})
		return c.generators.PurchaseEvaluator(c.resources).ApplyPurchase(id, count, effects, entityResolver{c})
	})
}

// PurchaseUpgrade buys one unit of upgrade id against the live resource
// state. Retried per the coordinator's RetryPolicy.
func (c *Coordinator) PurchaseUpgrade(id string) error {
	return c.retryAction("PurchaseUpgrade:"+id, func() error {
		return c.upgrades.Purchase(id, c.resources, entityResolver{c})
	})
}

// ResetPrestige executes prestige layer id's reset-and-reward mechanic at
// the given step. Retried per the coordinator's RetryPolicy.
func (c *Coordinator) ResetPrestige(id string, step int64) error {
	return c.retryAction("ResetPrestige:"+id, func() error {
		return c.prestige.Reset(id, step, c.resources, c.generators, c.upgrades, entityResolver{c})
	})
}
