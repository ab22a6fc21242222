package content

import (
	"fmt"
	"strings"

	"github.com/hansjm10/idle-simcore/pkg/condition"
)

func (v *Validator) runSemanticRefinements(state *refinementState) {
	v.checkUnlockCycles(state)
	v.checkTransformCycles(state)
	v.checkLocalizationCoverage(state)
	v.checkUnlockOrdering(state)
	if v.opts.Balance.Enabled {
		v.checkBalanceProbes(state)
	}
}

// checkUnlockOrdering warns when a generator references a resource that is
// itself gated behind a non-trivial unlock condition, but the generator's
// own unlock condition doesn't also depend on that resource — a player
// could see the generator unlock before the resource it needs exists.
func (v *Validator) checkUnlockOrdering(state *refinementState) {
	lockedResources := map[string]struct{}{}
	for _, r := range state.pack.Resources {
		if r.UnlockCondition != nil && r.UnlockCondition.Kind != condition.KindAlways {
			lockedResources[r.ID] = struct{}{}
		}
	}
	if len(lockedResources) == 0 {
		return
	}

	for _, g := range state.pack.Generators {
		ownRefs := condition.DependencyEdges(g.BaseUnlock, g.ID)
		check := func(resourceID, path string) {
			if _, locked := lockedResources[resourceID]; !locked {
				return
			}
			if _, referenced := ownRefs.ResourceIDs[resourceID]; referenced {
				return
			}
			state.addWarning("balance.unlock.ordering", path, fmt.Sprintf("depends on resource %q which has its own unlock condition not reflected here", resourceID))
		}
		for _, flow := range g.Produces {
			check(flow.ResourceID, fmt.Sprintf("generators[%s].produces[%s]", g.ID, flow.ResourceID))
		}
		if g.Purchase.CurrencyID != "" {
			check(g.Purchase.CurrencyID, fmt.Sprintf("generators[%s].purchase", g.ID))
		}
	}
}

// checkUnlockCycles builds the unlock-dependency graph over
// resources/generators/upgrades and reports any cycle found, following the
// edge-exclusion rules condition.DependencyEdges already implements (anyOf
// branches and not subtrees never form edges; a resource's own
// resourceThreshold self-reference never forms an edge).
func (v *Validator) checkUnlockCycles(state *refinementState) {
	g := newGraph()

	addEdges := func(selfID string, cond *condition.Condition) {
		g.addNode(selfID)
		if cond == nil {
			return
		}
		refs := condition.DependencyEdges(*cond, selfID)
		for id := range refs.ResourceIDs {
			g.addEdge(selfID, id)
		}
		for id := range refs.GeneratorIDs {
			g.addEdge(selfID, id)
		}
		for id := range refs.UpgradeIDs {
			g.addEdge(selfID, id)
		}
		for id := range refs.PrestigeIDs {
			g.addEdge(selfID, id)
		}
	}

	for _, r := range state.pack.Resources {
		addEdges(r.ID, r.UnlockCondition)
		addEdges(r.ID, r.VisibilityCondition)
	}
	for _, gen := range state.pack.Generators {
		cond := gen.BaseUnlock
		addEdges(gen.ID, &cond)
		addEdges(gen.ID, gen.VisibilityCondition)
	}
	for _, u := range state.pack.Upgrades {
		addEdges(u.ID, u.UnlockCondition)
		addEdges(u.ID, u.VisibilityCondition)
		for _, prereq := range u.Prerequisites {
			p := prereq
			addEdges(u.ID, &p)
		}
	}

	_, cycles := g.findCycles()
	for _, cycle := range cycles {
		state.addError("cycle.unlock", strings.Join(cycle, " -> "), "unlock graph contains a cycle")
	}
}

// checkTransformCycles builds the transform conversion graph (edge A->B iff
// A produces a resource B consumes) and, for each cycle, computes a
// profitability ratio when every transform on the cycle is "simple"
// (single constant-formula input and output, input amount > 0).
func (v *Validator) checkTransformCycles(state *refinementState) {
	g := newGraph()
	producers := map[string][]string{} // resourceID -> transform ids producing it
	for _, t := range state.pack.Transforms {
		g.addNode(t.ID)
		for _, out := range t.Outputs {
			producers[out.ResourceID] = append(producers[out.ResourceID], t.ID)
		}
	}
	for _, t := range state.pack.Transforms {
		for _, in := range t.Inputs {
			for _, producerID := range producers[in.ResourceID] {
				if producerID != t.ID {
					g.addEdge(producerID, t.ID)
				}
			}
		}
	}

	_, cycles := g.findCycles()
	transformByID := map[string]Transform{}
	for _, t := range state.pack.Transforms {
		transformByID[t.ID] = t
	}

	for _, cycle := range cycles {
		ratio, simple := cycleProfitabilityRatio(cycle, transformByID)
		if !simple {
			state.addError("transform.cycle.unevaluable", strings.Join(cycle, " -> "), "cycle contains a non-simple transform and cannot be ratio-checked")
			continue
		}
		if ratio > 1+v.opts.ProfitEpsilon {
			state.addError("transform.cycle.profitable", strings.Join(cycle, " -> "), fmt.Sprintf("cycle conversion ratio %.6f exceeds 1+epsilon", ratio))
		}
	}
}

func cycleProfitabilityRatio(cycle []string, transforms map[string]Transform) (float64, bool) {
	ratio := 1.0
	for _, id := range cycle {
		t, ok := transforms[id]
		if !ok {
			return 0, false
		}
		if len(t.Inputs) != 1 || len(t.Outputs) != 1 {
			return 0, false
		}
		inFormula := t.Inputs[0].Amount
		outFormula := t.Outputs[0].Amount
		if inFormula.Kind != "constant" || outFormula.Kind != "constant" {
			return 0, false
		}
		if inFormula.Constant <= 0 {
			return 0, false
		}
		ratio *= outFormula.Constant / inFormula.Constant
	}
	return ratio, true
}

func (v *Validator) checkLocalizationCoverage(state *refinementState) {
	if len(state.pack.SupportedLocales) == 0 {
		return
	}

	check := func(path string, text LocalizedText) {
		for _, locale := range state.pack.SupportedLocales {
			if _, ok := text.Variants[locale]; !ok {
				state.addWarning("localization.coverageGap", path, fmt.Sprintf("missing %q variant", locale))
			}
		}
	}

	for _, r := range state.pack.Resources {
		check("resources["+r.ID+"].name", r.Name)
	}
	for _, g := range state.pack.Generators {
		check("generators["+g.ID+"].name", g.Name)
	}
	for _, u := range state.pack.Upgrades {
		check("upgrades["+u.ID+"].name", u.Name)
	}
	for _, a := range state.pack.Achievements {
		check("achievements["+a.ID+"].name", a.Name)
	}
	for _, p := range state.pack.PrestigeLayers {
		check("prestigeLayers["+p.ID+"].name", p.Name)
	}
}
