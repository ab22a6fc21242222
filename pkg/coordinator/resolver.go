package coordinator

// entityResolver implements formula.EntityResolver by dispatching to the
// coordinator's managers, giving formula `expression` variants (and
// polynomial/linear `Level` lookups routed through the shared Context) a
// single capability object instead of five.
type entityResolver struct{ c *Coordinator }

func (r entityResolver) Resource(id string) (float64, bool) {
	i := r.c.resources.IndexOf(id)
	if i < 0 {
		return 0, false
	}
	return r.c.resources.Amount(i), true
}

func (r entityResolver) Generator(id string) (float64, bool) {
	return r.c.generators.Level(id)
}

func (r entityResolver) Upgrade(id string) (float64, bool) {
	i := r.c.upgrades.IndexOf(id)
	if i < 0 {
		return 0, false
	}
	return float64(r.c.upgrades.Purchases(id)), true
}

func (r entityResolver) Automation(id string) (float64, bool) {
	if _, ok := r.c.combinedAutomations[id]; ok {
		return 1, true
	}
	return 0, false
}

func (r entityResolver) PrestigeLayer(id string) (float64, bool) {
	i := r.c.prestige.IndexOf(id)
	if i < 0 {
		return 0, false
	}
	return float64(r.c.prestige.State(i).PrestigeCount), true
}

// conditionContext implements condition.Context by dispatching to the
// coordinator's managers, matching the flag-lookup precedence the spec
// names explicitly: achievementTracker is checked before upgradeManager.
type conditionContext struct{ c *Coordinator }

func (ctx conditionContext) ResourceAmount(id string) (float64, bool) {
	i := ctx.c.resources.IndexOf(id)
	if i < 0 {
		return 0, false
	}
	return ctx.c.resources.Amount(i), true
}

func (ctx conditionContext) GeneratorLevel(id string) (float64, bool) {
	return ctx.c.generators.Level(id)
}

func (ctx conditionContext) UpgradePurchases(id string) (int, bool) {
	i := ctx.c.upgrades.IndexOf(id)
	if i < 0 {
		return 0, false
	}
	return ctx.c.upgrades.Purchases(id), true
}

func (ctx conditionContext) PrestigeUnlocked(id string) (bool, bool) {
	i := ctx.c.prestige.IndexOf(id)
	if i < 0 {
		return false, false
	}
	return ctx.c.prestige.State(i).IsUnlocked, true
}

func (ctx conditionContext) PrestigeCount(id string) (float64, bool) {
	i := ctx.c.prestige.IndexOf(id)
	if i < 0 {
		return 0, false
	}
	return float64(ctx.c.prestige.State(i).PrestigeCount), true
}

func (ctx conditionContext) PrestigeCompleted(id string) (bool, bool) {
	i := ctx.c.prestige.IndexOf(id)
	if i < 0 {
		return false, false
	}
	return ctx.c.prestige.State(i).PrestigeCount > 0, true
}

func (ctx conditionContext) FlagValue(id string) (bool, bool) {
	if v, ok := ctx.c.achievements.GetFlagValue(id); ok {
		return v, true
	}
	return ctx.c.upgrades.GetFlagValue(id)
}

func (ctx conditionContext) EvaluateScript(id string) (bool, error) {
	if ctx.c.scripts == nil {
		return false, nil
	}
	return ctx.c.scripts.EvaluateScript(id)
}

func (ctx conditionContext) DisplayName(kind, id string) string {
	if ctx.c.displayNames == nil {
		return id
	}
	return ctx.c.displayNames.DisplayName(kind, id)
}

func (ctx conditionContext) MaxConditionDepth() int { return ctx.c.maxConditionDepth }
