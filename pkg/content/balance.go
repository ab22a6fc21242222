package content

import (
	"fmt"
	"math"

	"github.com/hansjm10/idle-simcore/pkg/formula"
)

// checkBalanceProbes samples generator production rates and purchase costs
// across increasing levels/purchase indices, flagging negative or
// non-finite rates, non-monotonic cost sequences, and cost steps that
// exceed the configured growth cap.
func (v *Validator) checkBalanceProbes(state *refinementState) {
	for _, g := range state.pack.Generators {
		v.probeGeneratorRates(state, g)
		v.probeGeneratorCosts(state, g)
	}
	for _, u := range state.pack.Upgrades {
		v.probeUpgradeCost(state, u)
	}
	for _, p := range state.pack.PrestigeLayers {
		v.probePrestigeReward(state, p)
	}
}

func (v *Validator) sampleBound(maxLevel *int) int {
	bound := v.opts.Balance.SampleSize
	if maxLevel != nil && *maxLevel < bound {
		bound = *maxLevel
	}
	if bound < 0 {
		bound = 0
	}
	return bound
}

func (v *Validator) probeGeneratorRates(state *refinementState, g Generator) {
	bound := v.sampleBound(g.MaxLevel)
	for level := 0; level <= bound; level++ {
		ctx := formula.Context{Variables: formula.Variables{Level: float64(level)}}
		for _, flow := range g.Produces {
			value, err := v.formulaEval.Evaluate(flow.Rate, ctx)
			path := fmt.Sprintf("generators[%s].produces[%s]@level=%d", g.ID, flow.ResourceID, level)
			switch {
			case err != nil:
				state.addError("balance.rate.evaluationFailed", path, err.Error())
			case math.IsNaN(value) || math.IsInf(value, 0):
				state.addError("balance.rate.nonFinite", path, "production rate is not finite")
			case value < 0:
				state.addError("balance.rate.negative", path, "production rate is negative")
			}
		}
	}
}

func (v *Validator) probeGeneratorCosts(state *refinementState, g Generator) {
	bound := v.sampleBound(g.MaxLevel)
	path := fmt.Sprintf("generators[%s].purchase", g.ID)
	costs := make([]float64, 0, bound+1)
	for index := 0; index <= bound; index++ {
		ctx := formula.Context{Variables: formula.Variables{Level: float64(index)}}
		curve, err := v.formulaEval.Evaluate(g.Purchase.CostCurve, ctx)
		if err != nil {
			state.addError("balance.rate.evaluationFailed", path, err.Error())
			return
		}
		costs = append(costs, g.Purchase.CostMultiplier*curve)
	}
	v.checkCostSequence(state, path, costs)
}

func (v *Validator) probeUpgradeCost(state *refinementState, u Upgrade) {
	bound := v.opts.Balance.SampleSize
	if u.Repeatable != nil && u.Repeatable.MaxPurchases != nil && *u.Repeatable.MaxPurchases < bound {
		bound = *u.Repeatable.MaxPurchases
	} else if u.Repeatable == nil {
		bound = 0
	}
	path := fmt.Sprintf("upgrades[%s].cost", u.ID)
	costs := make([]float64, 0, bound+1)
	curveFormula := u.Cost.CostCurve
	if u.Repeatable != nil {
		curveFormula = u.Repeatable.CostCurve
	}
	for index := 0; index <= bound; index++ {
		ctx := formula.Context{Variables: formula.Variables{Level: float64(index)}}
		curve, err := v.formulaEval.Evaluate(curveFormula, ctx)
		if err != nil {
			state.addError("balance.rate.evaluationFailed", path, err.Error())
			return
		}
		costs = append(costs, u.Cost.CostMultiplier*curve)
	}
	v.checkCostSequence(state, path, costs)
}

func (v *Validator) checkCostSequence(state *refinementState, path string, costs []float64) {
	const epsilon = 1e-9
	for i := 1; i < len(costs); i++ {
		if costs[i] < costs[i-1]-epsilon {
			state.addError("balance.cost.nonMonotonic", path, fmt.Sprintf("cost decreased from %.6f to %.6f at step %d", costs[i-1], costs[i], i))
			continue
		}
		if costs[i-1] > 0 && costs[i] > costs[i-1]*v.opts.Balance.MaxGrowth {
			state.addError("balance.cost.exceedsGrowthCap", path, fmt.Sprintf("cost step %.6f -> %.6f exceeds %gx growth cap", costs[i-1], costs[i], v.opts.Balance.MaxGrowth))
		}
	}
}

func (v *Validator) probePrestigeReward(state *refinementState, p PrestigeLayer) {
	bound := v.opts.Balance.SampleSize
	path := fmt.Sprintf("prestigeLayers[%s].reward", p.ID)
	for count := 0; count <= bound; count++ {
		ctx := formula.Context{Variables: formula.Variables{Level: float64(count)}}
		value, err := v.formulaEval.Evaluate(p.Reward.BaseReward, ctx)
		switch {
		case err != nil:
			state.addError("balance.prestige.evaluationFailed", path, err.Error())
			return
		case math.IsNaN(value) || math.IsInf(value, 0):
			state.addError("balance.prestige.nonFinite", path, "reward is not finite")
		case value < 0:
			state.addError("balance.prestige.negative", path, "reward is negative")
		}

		if p.Reward.MultiplierCurve != nil {
			multiplier, err := v.formulaEval.Evaluate(*p.Reward.MultiplierCurve, ctx)
			if err != nil {
				state.addError("balance.prestige.evaluationFailed", path+".multiplierCurve", err.Error())
				return
			}
			if multiplier < 0 || math.IsNaN(multiplier) || math.IsInf(multiplier, 0) {
				state.addError("balance.prestige.nonFinite", path+".multiplierCurve", "multiplier is not finite or negative")
			}
		}
	}
}
