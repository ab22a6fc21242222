package managers

import (
	"fmt"
	"math"
	"sort"

	"github.com/hansjm10/idle-simcore/pkg/condition"
	"github.com/hansjm10/idle-simcore/pkg/content"
	"github.com/hansjm10/idle-simcore/pkg/formula"
	"github.com/hansjm10/idle-simcore/pkg/resourcestate"
	"github.com/hansjm10/idle-simcore/pkg/simerrors"
)

// EvaluatedUpgradeEffects coalesces every owned upgrade's effects into the
// maps the other managers and the resource engine apply each tick. It is
// recomputed from scratch whenever the owned-upgrade set changes.
type EvaluatedUpgradeEffects struct {
	UnlockedResources  []string
	UnlockedGenerators []string
	GrantedAutomations []string
	FlagsSet           map[string]bool

	GeneratorRateMultipliers        map[string]float64
	GeneratorCostMultipliers        map[string]float64
	GeneratorConsumptionMultipliers map[string]float64
	ResourceRateMultipliers         map[string]float64

	ResourceCapacityOverrides map[string]float64
	DirtyToleranceOverrides   map[string]float64
}

// GeneratorRateMultiplier returns id's composed rate multiplier, defaulting
// to 1 when no owned upgrade targets it.
func (e EvaluatedUpgradeEffects) GeneratorRateMultiplier(id string) float64 {
	return multiplierOrDefault(e.GeneratorRateMultipliers, id)
}

// GeneratorCostMultiplier returns id's composed cost multiplier, defaulting
// to 1.
func (e EvaluatedUpgradeEffects) GeneratorCostMultiplier(id string) float64 {
	return multiplierOrDefault(e.GeneratorCostMultipliers, id)
}

// GeneratorConsumptionMultiplier returns id's composed consumption
// multiplier, defaulting to 1.
func (e EvaluatedUpgradeEffects) GeneratorConsumptionMultiplier(id string) float64 {
	return multiplierOrDefault(e.GeneratorConsumptionMultipliers, id)
}

// ResourceRateMultiplier returns id's composed resource rate multiplier,
// defaulting to 1.
func (e EvaluatedUpgradeEffects) ResourceRateMultiplier(id string) float64 {
	return multiplierOrDefault(e.ResourceRateMultipliers, id)
}

// UpgradeState is one upgrade's live, per-tick-refreshed view.
type UpgradeState struct {
	Purchases  int
	IsUnlocked bool
	IsVisible  bool
	UnlockHint string
}

// UpgradeManager tracks every upgrade's purchase count, unlock state, and
// the coalesced effect bundle owned upgrades produce.
type UpgradeManager struct {
	defs    []content.Upgrade
	index   map[string]int
	formula *formula.Evaluator
	cond    *condition.Evaluator
	states  []UpgradeState
	clock   Clock

	cachedAtStep  int64
	cachedValid   bool
	cachedEffects EvaluatedUpgradeEffects
}

// NewUpgradeManager builds a manager over defs, which must already be
// sorted by id (as NormalizedPack guarantees).
func NewUpgradeManager(defs []content.Upgrade, fe *formula.Evaluator, ce *condition.Evaluator) *UpgradeManager {
	index := make(map[string]int, len(defs))
	for i, d := range defs {
		index[d.ID] = i
	}
	return &UpgradeManager{defs: defs, index: index, formula: fe, cond: ce, states: make([]UpgradeState, len(defs))}
}

// SetClock updates the time variables used by formula evaluation.
func (m *UpgradeManager) SetClock(c Clock) { m.clock = c }

// IndexOf returns the live slot for id, or -1 if unknown.
func (m *UpgradeManager) IndexOf(id string) int {
	if i, ok := m.index[id]; ok {
		return i
	}
	return -1
}

// State returns upgrade i's live view.
func (m *UpgradeManager) State(i int) UpgradeState { return m.states[i] }

// Purchases returns id's purchase count (0 if unknown).
func (m *UpgradeManager) Purchases(id string) int {
	if i, ok := m.index[id]; ok {
		return m.states[i].Purchases
	}
	return 0
}

// ForceGrant sets id's purchase count to at least 1 without spending
// resources, used to replay an achievement's grantUpgrade reward.
func (m *UpgradeManager) ForceGrant(id string) {
	if i, ok := m.index[id]; ok && m.states[i].Purchases == 0 {
		m.states[i].Purchases = 1
		m.cachedValid = false
	}
}

// ResetAll zeroes every upgrade's purchase count except those named in
// retained, which are restored to their retained count. Unlock/visibility
// state survives a reset: an upgrade already discovered stays discovered.
func (m *UpgradeManager) ResetAll(retained map[string]int) {
	for i, d := range m.defs {
		if count, ok := retained[d.ID]; ok {
			m.states[i].Purchases = count
		} else {
			m.states[i].Purchases = 0
		}
	}
	m.cachedValid = false
}

// GetUpgradeEffects recomputes the coalesced effect bundle for the owned
// upgrade set, memoized by step so repeated calls within one coordinator
// iteration-to-fixed-point loop don't redo the work.
func (m *UpgradeManager) GetUpgradeEffects(step int64, resolver formula.EntityResolver) EvaluatedUpgradeEffects {
	if m.cachedValid && m.cachedAtStep == step {
		return m.cachedEffects
	}
	m.cachedEffects = m.computeEffects(resolver)
	m.cachedAtStep = step
	m.cachedValid = true
	return m.cachedEffects
}

func (m *UpgradeManager) computeEffects(resolver formula.EntityResolver) EvaluatedUpgradeEffects {
	rate := newMultiplierAccumulator()
	cost := newMultiplierAccumulator()
	consumption := newMultiplierAccumulator()
	resourceRate := newMultiplierAccumulator()
	capacity := map[string]float64{}
	tolerance := map[string]float64{}
	flags := map[string]bool{}
	var unlockedResources, unlockedGenerators, grantedAutomations []string

	for i, d := range m.defs {
		if m.states[i].Purchases == 0 {
			continue
		}
		for _, effect := range d.Effects {
			switch effect.Kind {
			case content.EffectModifyResourceRate:
				resourceRate.add(effect.TargetID, effect.Multiplier, effect.Additive)
			case content.EffectModifyGeneratorRate:
				rate.add(effect.TargetID, effect.Multiplier, effect.Additive)
			case content.EffectModifyGeneratorConsumption:
				consumption.add(effect.TargetID, effect.Multiplier, effect.Additive)
			case content.EffectModifyGeneratorCost:
				cost.add(effect.TargetID, effect.Multiplier, effect.Additive)
			case content.EffectModifyResourceCapacity:
				if override, ok := capacity[effect.TargetID]; !ok || effect.Additive > override {
					capacity[effect.TargetID] = effect.Additive
				}
			case content.EffectUnlockResource:
				unlockedResources = append(unlockedResources, effect.TargetID)
			case content.EffectUnlockGenerator:
				unlockedGenerators = append(unlockedGenerators, effect.TargetID)
			case content.EffectUnlockAutomation:
				grantedAutomations = append(grantedAutomations, effect.TargetID)
			case content.EffectGrantFlag:
				flags[effect.TargetID] = effect.FlagValue
			case content.EffectSetDirtyTolerance:
				if override, ok := tolerance[effect.TargetID]; !ok || effect.Tolerance > override {
					tolerance[effect.TargetID] = effect.Tolerance
				}
			}
		}
	}

	sort.Strings(unlockedResources)
	sort.Strings(unlockedGenerators)
	sort.Strings(grantedAutomations)

	return EvaluatedUpgradeEffects{
		UnlockedResources:               dedupSorted(unlockedResources),
		UnlockedGenerators:              dedupSorted(unlockedGenerators),
		GrantedAutomations:              dedupSorted(grantedAutomations),
		FlagsSet:                        flags,
		GeneratorRateMultipliers:        rate.resolve(),
		GeneratorCostMultipliers:        cost.resolve(),
		GeneratorConsumptionMultipliers: consumption.resolve(),
		ResourceRateMultipliers:         resourceRate.resolve(),
		ResourceCapacityOverrides:       capacity,
		DirtyToleranceOverrides:         tolerance,
	}
}

// GetFlagValue reads id from the most recently computed effects bundle, for
// the coordinator's flag lookup (achievementTracker checked first, this
// second). Returns false, false before the first GetUpgradeEffects call of
// a session.
func (m *UpgradeManager) GetFlagValue(id string) (bool, bool) {
	if !m.cachedValid {
		return false, false
	}
	v, ok := m.cachedEffects.FlagsSet[id]
	return v, ok
}

func dedupSorted(sorted []string) []string {
	if len(sorted) == 0 {
		return nil
	}
	out := sorted[:1]
	for _, id := range sorted[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}

// UpdateForStep evaluates every upgrade's prerequisites and unlock/
// visibility conditions. Unlock and visibility are sticky: once true they
// never revert, matching the one-way Unlock/GrantVisibility operations on
// the resource engine they mirror.
func (m *UpgradeManager) UpdateForStep(ctx condition.Context) {
	for i := range m.defs {
		def := &m.defs[i]
		state := &m.states[i]

		if !state.IsUnlocked {
			unlocked := true
			for _, prereq := range def.Prerequisites {
				ok, _ := m.cond.Evaluate(prereq, ctx)
				if !ok {
					unlocked = false
					break
				}
			}
			if unlocked && def.UnlockCondition != nil {
				ok, _ := m.cond.Evaluate(*def.UnlockCondition, ctx)
				unlocked = unlocked && ok
			}
			state.IsUnlocked = unlocked
		}

		if !state.IsVisible {
			switch {
			case state.IsUnlocked:
				state.IsVisible = true
			case def.VisibilityCondition != nil:
				ok, _ := m.cond.Evaluate(*def.VisibilityCondition, ctx)
				state.IsVisible = ok
			case def.UnlockCondition != nil:
				ok, _ := m.cond.Evaluate(*def.UnlockCondition, ctx)
				state.IsVisible = ok
			}
		}

		if !state.IsUnlocked {
			state.UnlockHint = m.describeLock(def, ctx)
		} else {
			state.UnlockHint = ""
		}
	}
}

func (m *UpgradeManager) describeLock(def *content.Upgrade, ctx condition.Context) string {
	hints := make([]string, 0, len(def.Prerequisites)+1)
	for _, prereq := range def.Prerequisites {
		hints = append(hints, m.cond.Describe(prereq, ctx))
	}
	if def.UnlockCondition != nil {
		hints = append(hints, m.cond.Describe(*def.UnlockCondition, ctx))
	}
	if len(hints) == 0 {
		return "Always available"
	}
	joined := hints[0]
	for _, h := range hints[1:] {
		joined += " and " + h
	}
	return joined
}

// ComputeUpgradeCost returns the cost of the next purchase of id (its
// current purchase count is the evaluation index).
func (m *UpgradeManager) ComputeUpgradeCost(id string, resolver formula.EntityResolver) ([]Cost, error) {
	i, ok := m.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: upgrade %q", simerrors.ErrResourceNotFound, id)
	}
	def := m.defs[i]
	state := m.states[i]

	curveFormula := def.Cost.CostCurve
	if def.Repeatable != nil {
		curveFormula = def.Repeatable.CostCurve
	}
	ctx := formula.Context{
		Variables: formula.Variables{Level: float64(state.Purchases), Time: m.clock.Time, DeltaTime: m.clock.DeltaTime},
		Entities:  resolver,
	}
	curve, err := m.formula.Evaluate(curveFormula, ctx)
	if err != nil {
		return nil, err
	}

	if len(def.Cost.Costs) > 0 {
		costs := make([]Cost, 0, len(def.Cost.Costs))
		for _, c := range def.Cost.Costs {
			amount, err := m.formula.Evaluate(c.Amount, ctx)
			if err != nil {
				return nil, err
			}
			amount *= def.Cost.CostMultiplier * curve
			if err := checkFinitePositive(amount, id); err != nil {
				return nil, err
			}
			costs = append(costs, Cost{ResourceID: c.ResourceID, Amount: amount})
		}
		return costs, nil
	}

	amount := def.Cost.CostMultiplier * curve
	if err := checkFinitePositive(amount, id); err != nil {
		return nil, err
	}
	return []Cost{{ResourceID: def.Cost.CurrencyID, Amount: amount}}, nil
}

func checkFinitePositive(amount float64, id string) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return fmt.Errorf("%w: cost for %q is not finite or negative", simerrors.ErrFormulaNonFinite, id)
	}
	return nil
}

// Purchase attempts to buy one unit of id, spending from resources. Fails
// if locked, not visible, at its repeat limit, or unaffordable.
func (m *UpgradeManager) Purchase(id string, resources *resourcestate.State, resolver formula.EntityResolver) error {
	i, ok := m.index[id]
	if !ok {
		return fmt.Errorf("%w: upgrade %q", simerrors.ErrResourceNotFound, id)
	}
	def := m.defs[i]
	state := &m.states[i]

	if !state.IsUnlocked || !state.IsVisible {
		return fmt.Errorf("upgrade %q is not purchasable", id)
	}
	if def.Repeatable == nil && state.Purchases > 0 {
		return fmt.Errorf("upgrade %q is already owned", id)
	}
	if def.Repeatable != nil && def.Repeatable.MaxPurchases != nil && state.Purchases >= *def.Repeatable.MaxPurchases {
		return fmt.Errorf("upgrade %q is at its purchase limit", id)
	}

	costs, err := m.ComputeUpgradeCost(id, resolver)
	if err != nil {
		return err
	}
	for _, c := range costs {
		ri := resources.IndexOf(c.ResourceID)
		if ri < 0 || resources.Amount(ri) < c.Amount {
			return fmt.Errorf("cannot afford upgrade %q", id)
		}
	}
	for _, c := range costs {
		ri := resources.IndexOf(c.ResourceID)
		resources.SpendAmount(ri, c.Amount, resourcestate.SpendContext{Reason: "upgrade-purchase:" + id})
	}

	state.Purchases++
	m.cachedValid = false
	return nil
}
