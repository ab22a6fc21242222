package managers

import (
	"fmt"

	"github.com/hansjm10/idle-simcore/pkg/condition"
	"github.com/hansjm10/idle-simcore/pkg/content"
	"github.com/hansjm10/idle-simcore/pkg/formula"
	"github.com/hansjm10/idle-simcore/pkg/resourcestate"
	"github.com/hansjm10/idle-simcore/pkg/simerrors"
)

// GeneratorState is one generator's live, per-tick-refreshed view.
type GeneratorState struct {
	Owned                   int
	Enabled                 bool
	IsUnlocked              bool
	IsVisible               bool
	UnlockHint              string
	Produces                []ResourceRate
	Consumes                []ResourceRate
	NextPurchaseReadyAtStep int64
}

// GeneratorManager tracks every generator's ownership, unlock state, and
// per-tick production/consumption view.
type GeneratorManager struct {
	defs    []content.Generator
	index   map[string]int
	formula *formula.Evaluator
	cond    *condition.Evaluator
	states  []GeneratorState
	clock   Clock
}

// NewGeneratorManager builds a manager over defs, which must already be
// sorted by id (as NormalizedPack guarantees). Enabled defaults to true;
// hosts that want a pause switch flip it off after construction.
func NewGeneratorManager(defs []content.Generator, fe *formula.Evaluator, ce *condition.Evaluator) *GeneratorManager {
	index := make(map[string]int, len(defs))
	states := make([]GeneratorState, len(defs))
	for i, d := range defs {
		index[d.ID] = i
		states[i].Owned = d.InitialLevel
		states[i].Enabled = true
	}
	return &GeneratorManager{defs: defs, index: index, formula: fe, cond: ce, states: states}
}

// SetClock updates the time variables used by formula evaluation.
func (m *GeneratorManager) SetClock(c Clock) { m.clock = c }

// IndexOf returns the live slot for id, or -1 if unknown.
func (m *GeneratorManager) IndexOf(id string) int {
	if i, ok := m.index[id]; ok {
		return i
	}
	return -1
}

// State returns generator i's live view.
func (m *GeneratorManager) State(i int) GeneratorState { return m.states[i] }

// Level implements formula.EntityResolver-style generator lookup: the
// entity value an expression formula or achievement track reads is the
// owned count.
func (m *GeneratorManager) Level(id string) (float64, bool) {
	i, ok := m.index[id]
	if !ok {
		return 0, false
	}
	return float64(m.states[i].Owned), true
}

// ApplyUnlockedGenerators force-unlocks every id an upgrade effect names.
func (m *GeneratorManager) ApplyUnlockedGenerators(ids []string) {
	for _, id := range ids {
		if i, ok := m.index[id]; ok {
			m.states[i].IsUnlocked = true
			m.states[i].IsVisible = true
		}
	}
}

// ResetAll restores every generator to its defined initial level, used by a
// prestige reset (generators are never retained across a prestige layer).
func (m *GeneratorManager) ResetAll() {
	for i, d := range m.defs {
		m.states[i].Owned = d.InitialLevel
	}
}

// GeneratorCheckpoint is one generator's purchase-cooldown state, for
// mid-session restore independent of the resource-state save cycle. Owned
// counts are intentionally not part of this checkpoint: the spec's
// checkpoint supplement names only the cooldown timer.
type GeneratorCheckpoint struct {
	ID                      string
	NextPurchaseReadyAtStep int64
}

// ExportCheckpoint captures every generator's purchase-cooldown state.
func (m *GeneratorManager) ExportCheckpoint() []GeneratorCheckpoint {
	out := make([]GeneratorCheckpoint, len(m.defs))
	for i, d := range m.defs {
		out[i] = GeneratorCheckpoint{ID: d.ID, NextPurchaseReadyAtStep: m.states[i].NextPurchaseReadyAtStep}
	}
	return out
}

// RestoreCheckpoint replaces every named generator's purchase-cooldown
// state. Checkpoint entries for ids no longer in the content pack are
// ignored.
func (m *GeneratorManager) RestoreCheckpoint(checkpoints []GeneratorCheckpoint) {
	for _, cp := range checkpoints {
		if i, ok := m.index[cp.ID]; ok {
			m.states[i].NextPurchaseReadyAtStep = cp.NextPurchaseReadyAtStep
		}
	}
}

// ComputeGeneratorCosts returns the cost of buying one more unit of
// generator id, given it currently has purchaseIndex units already owned.
func (m *GeneratorManager) ComputeGeneratorCosts(id string, purchaseIndex int, effects EvaluatedUpgradeEffects, resolver formula.EntityResolver) ([]Cost, error) {
	i, ok := m.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: generator %q", simerrors.ErrResourceNotFound, id)
	}
	def := m.defs[i]
	ctx := formula.Context{
		Variables: formula.Variables{Level: float64(purchaseIndex), Time: m.clock.Time, DeltaTime: m.clock.DeltaTime},
		Entities:  resolver,
	}

	curve, err := m.formula.Evaluate(def.Purchase.CostCurve, ctx)
	if err != nil {
		return nil, err
	}
	multiplier := def.Purchase.CostMultiplier * effects.GeneratorCostMultiplier(id)

	if len(def.Purchase.Costs) > 0 {
		costs := make([]Cost, 0, len(def.Purchase.Costs))
		for _, c := range def.Purchase.Costs {
			amount, err := m.formula.Evaluate(c.Amount, ctx)
			if err != nil {
				return nil, err
			}
			amount *= multiplier * curve
			if err := checkFinitePositive(amount, id); err != nil {
				return nil, err
			}
			costs = append(costs, Cost{ResourceID: c.ResourceID, Amount: amount})
		}
		return costs, nil
	}

	amount := curve * multiplier
	if err := checkFinitePositive(amount, id); err != nil {
		return nil, err
	}
	return []Cost{{ResourceID: def.Purchase.CurrencyID, Amount: amount}}, nil
}

// GeneratorPurchaseEvaluator quotes and applies bulk generator purchases
// against a live resource state.
type GeneratorPurchaseEvaluator struct {
	manager   *GeneratorManager
	resources *resourcestate.State
}

// PurchaseEvaluator binds manager operations to a live resource state.
func (m *GeneratorManager) PurchaseEvaluator(resources *resourcestate.State) *GeneratorPurchaseEvaluator {
	return &GeneratorPurchaseEvaluator{manager: m, resources: resources}
}

// PurchaseQuote is the summed cost of buying count units, plus whether the
// live resource state can currently afford it.
type PurchaseQuote struct {
	TotalCosts []Cost
	Affordable bool
}

// GetPurchaseQuote sums the cost of count sequential purchases of id
// starting from its current owned count, clamped to maxLevel.
func (p *GeneratorPurchaseEvaluator) GetPurchaseQuote(id string, count int, effects EvaluatedUpgradeEffects, resolver formula.EntityResolver) (PurchaseQuote, error) {
	if count <= 0 {
		return PurchaseQuote{}, fmt.Errorf("purchase count must be > 0, got %d", count)
	}
	i := p.manager.IndexOf(id)
	if i < 0 {
		return PurchaseQuote{}, fmt.Errorf("%w: generator %q", simerrors.ErrResourceNotFound, id)
	}
	def := p.manager.defs[i]
	state := p.manager.states[i]
	if !state.IsUnlocked || !state.IsVisible {
		return PurchaseQuote{}, fmt.Errorf("generator %q is not purchasable", id)
	}

	if def.MaxLevel != nil {
		room := *def.MaxLevel - state.Owned
		if room <= 0 {
			return PurchaseQuote{}, fmt.Errorf("generator %q is at its max level", id)
		}
		if count > room {
			count = room
		}
	}

	totals := map[string]float64{}
	var order []string
	for n := 0; n < count; n++ {
		costs, err := p.manager.ComputeGeneratorCosts(id, state.Owned+n, effects, resolver)
		if err != nil {
			return PurchaseQuote{}, err
		}
		for _, c := range costs {
			if _, ok := totals[c.ResourceID]; !ok {
				order = append(order, c.ResourceID)
			}
			totals[c.ResourceID] += c.Amount
		}
	}

	quote := PurchaseQuote{TotalCosts: make([]Cost, len(order)), Affordable: true}
	for idx, rid := range order {
		quote.TotalCosts[idx] = Cost{ResourceID: rid, Amount: totals[rid]}
		ri := p.resources.IndexOf(rid)
		if ri < 0 || p.resources.Amount(ri) < totals[rid] {
			quote.Affordable = false
		}
	}
	return quote, nil
}

// ApplyPurchase quotes then, if affordable, spends the total cost and
// increments id's owned count by the (possibly clamped) purchase count the
// quote actually priced.
func (p *GeneratorPurchaseEvaluator) ApplyPurchase(id string, count int, effects EvaluatedUpgradeEffects, resolver formula.EntityResolver) error {
	quote, err := p.GetPurchaseQuote(id, count, effects, resolver)
	if err != nil {
		return err
	}
	if !quote.Affordable {
		return fmt.Errorf("cannot afford purchase of %q x%d", id, count)
	}

	for _, c := range quote.TotalCosts {
		ri := p.resources.IndexOf(c.ResourceID)
		if !p.resources.SpendAmount(ri, c.Amount, resourcestate.SpendContext{Reason: "generator-purchase:" + id}) {
			return fmt.Errorf("spend failed for %q while purchasing %q", c.ResourceID, id)
		}
	}

	i := p.manager.IndexOf(id)
	def := p.manager.defs[i]
	state := &p.manager.states[i]
	state.Owned += count
	if def.MaxLevel != nil && state.Owned > *def.MaxLevel {
		state.Owned = *def.MaxLevel
	}
	return nil
}

// UpdateForStep evaluates unlock/visibility (sticky, matching
// GrantVisibility/Unlock's one-way semantics on the resource engine) and
// recomputes the production/consumption rate views for the tick.
func (m *GeneratorManager) UpdateForStep(ctx condition.Context, effects EvaluatedUpgradeEffects, resolver formula.EntityResolver) {
	for i := range m.defs {
		def := &m.defs[i]
		state := &m.states[i]

		if !state.IsUnlocked {
			ok, _ := m.cond.Evaluate(def.BaseUnlock, ctx)
			state.IsUnlocked = ok
		}
		if !state.IsVisible {
			switch {
			case state.IsUnlocked:
				state.IsVisible = true
			case def.VisibilityCondition != nil:
				ok, _ := m.cond.Evaluate(*def.VisibilityCondition, ctx)
				state.IsVisible = ok
			default:
				ok, _ := m.cond.Evaluate(def.BaseUnlock, ctx)
				state.IsVisible = ok
			}
		}
		if !state.IsUnlocked {
			state.UnlockHint = m.cond.Describe(def.BaseUnlock, ctx)
		} else {
			state.UnlockHint = ""
		}

		level := formula.Variables{Level: float64(state.Owned), Time: m.clock.Time, DeltaTime: m.clock.DeltaTime}
		rateMultiplier := effects.GeneratorRateMultiplier(def.ID)
		consumptionMultiplier := effects.GeneratorConsumptionMultiplier(def.ID)

		state.Produces = resizeRates(state.Produces, len(def.Produces))
		for fi, flow := range def.Produces {
			rate, err := m.formula.Evaluate(flow.Rate, formula.Context{Variables: level, Entities: resolver})
			if err != nil || !state.Enabled {
				rate = 0
			}
			rate *= float64(state.Owned) * rateMultiplier * effects.ResourceRateMultiplier(flow.ResourceID)
			state.Produces[fi] = ResourceRate{ResourceID: flow.ResourceID, PerSecond: rate}
		}

		state.Consumes = resizeRates(state.Consumes, len(def.Consumes))
		for fi, flow := range def.Consumes {
			rate, err := m.formula.Evaluate(flow.Rate, formula.Context{Variables: level, Entities: resolver})
			if err != nil || !state.Enabled {
				rate = 0
			}
			rate *= float64(state.Owned) * consumptionMultiplier
			state.Consumes[fi] = ResourceRate{ResourceID: flow.ResourceID, PerSecond: rate}
		}
	}
}

func resizeRates(existing []ResourceRate, n int) []ResourceRate {
	if cap(existing) >= n {
		return existing[:n]
	}
	return make([]ResourceRate, n)
}

// ApplyRatesToResources sums every generator's produce/consume rate by
// resource id and applies the totals to the resource engine, one
// applyIncome/applyExpense call per resource: both calls replace (not
// accumulate) the live rate, so every resource must be visited even when a
// generator contributes nothing to it this tick, or it would keep a stale
// rate from a generator that no longer produces/consumes it.
func (m *GeneratorManager) ApplyRatesToResources(resources *resourcestate.State) {
	income := map[string]float64{}
	expense := map[string]float64{}
	for i := range m.states {
		for _, r := range m.states[i].Produces {
			income[r.ResourceID] += r.PerSecond
		}
		for _, r := range m.states[i].Consumes {
			expense[r.ResourceID] += r.PerSecond
		}
	}
	for ri := 0; ri < resources.Len(); ri++ {
		id := resources.ID(ri)
		resources.ApplyIncome(ri, income[id])
		resources.ApplyExpense(ri, expense[id])
	}
}
