package managers

import (
	"fmt"
	"math"

	"github.com/hansjm10/idle-simcore/pkg/condition"
	"github.com/hansjm10/idle-simcore/pkg/content"
	"github.com/hansjm10/idle-simcore/pkg/formula"
	"github.com/hansjm10/idle-simcore/pkg/resourcestate"
	"github.com/hansjm10/idle-simcore/pkg/simerrors"
)

// PrestigeState is one prestige layer's live view.
type PrestigeState struct {
	IsUnlocked    bool
	PrestigeCount int
	LastResetStep int64
}

// PrestigeManager tracks every prestige layer's unlock state and handles
// the reset-and-reward mechanic.
type PrestigeManager struct {
	defs    []content.PrestigeLayer
	index   map[string]int
	cond    *condition.Evaluator
	formula *formula.Evaluator
	states  []PrestigeState
}

// NewPrestigeManager builds a manager over defs, which must already be
// sorted by id (as NormalizedPack guarantees).
func NewPrestigeManager(defs []content.PrestigeLayer, fe *formula.Evaluator, ce *condition.Evaluator) *PrestigeManager {
	index := make(map[string]int, len(defs))
	for i, d := range defs {
		index[d.ID] = i
	}
	return &PrestigeManager{defs: defs, index: index, formula: fe, cond: ce, states: make([]PrestigeState, len(defs))}
}

// IndexOf returns the live slot for id, or -1 if unknown.
func (m *PrestigeManager) IndexOf(id string) int {
	if i, ok := m.index[id]; ok {
		return i
	}
	return -1
}

// State returns prestige layer i's live view.
func (m *PrestigeManager) State(i int) PrestigeState { return m.states[i] }

// PrestigeCheckpoint is one prestige layer's live state, for mid-session
// restore independent of the resource-state save cycle.
type PrestigeCheckpoint struct {
	ID            string
	IsUnlocked    bool
	PrestigeCount int
	LastResetStep int64
}

// ExportCheckpoint captures every prestige layer's live state.
func (m *PrestigeManager) ExportCheckpoint() []PrestigeCheckpoint {
	out := make([]PrestigeCheckpoint, len(m.defs))
	for i, d := range m.defs {
		s := m.states[i]
		out[i] = PrestigeCheckpoint{ID: d.ID, IsUnlocked: s.IsUnlocked, PrestigeCount: s.PrestigeCount, LastResetStep: s.LastResetStep}
	}
	return out
}

// RestoreCheckpoint replaces every named prestige layer's live state.
// Checkpoint entries for ids no longer in the content pack are ignored.
func (m *PrestigeManager) RestoreCheckpoint(checkpoints []PrestigeCheckpoint) {
	for _, cp := range checkpoints {
		i, ok := m.index[cp.ID]
		if !ok {
			continue
		}
		m.states[i] = PrestigeState{IsUnlocked: cp.IsUnlocked, PrestigeCount: cp.PrestigeCount, LastResetStep: cp.LastResetStep}
	}
}

// UpdateForStep evaluates unlock conditions; unlock is sticky.
func (m *PrestigeManager) UpdateForStep(ctx condition.Context) {
	for i := range m.defs {
		if m.states[i].IsUnlocked {
			continue
		}
		ok, _ := m.cond.Evaluate(m.defs[i].UnlockCondition, ctx)
		m.states[i].IsUnlocked = ok
	}
}

// Reset executes a prestige layer's reset-and-reward mechanic: retained
// resources/upgrades are snapshotted, every reset-target resource is
// drained to zero, every generator and non-retained upgrade is reset, the
// retained values are restored, the reward is granted, and the layer's own
// prestige-count resource (if the pack declares one) is incremented.
func (m *PrestigeManager) Reset(
	id string,
	step int64,
	resources *resourcestate.State,
	generators *GeneratorManager,
	upgrades *UpgradeManager,
	resolver formula.EntityResolver,
) error {
	i, ok := m.index[id]
	if !ok {
		return fmt.Errorf("%w: prestige layer %q", simerrors.ErrResourceNotFound, id)
	}
	def := m.defs[i]
	state := &m.states[i]
	if !state.IsUnlocked {
		return fmt.Errorf("prestige layer %q is locked", id)
	}

	rewardCtx := formula.Context{Variables: formula.Variables{Level: float64(state.PrestigeCount)}, Entities: resolver}
	baseReward, err := m.formula.Evaluate(def.Reward.BaseReward, rewardCtx)
	if err != nil {
		return err
	}
	multiplier := 1.0
	if def.Reward.MultiplierCurve != nil {
		multiplier, err = m.formula.Evaluate(*def.Reward.MultiplierCurve, rewardCtx)
		if err != nil {
			return err
		}
	}
	reward := baseReward * multiplier
	if math.IsNaN(reward) || math.IsInf(reward, 0) || reward < 0 {
		return fmt.Errorf("%w: prestige reward for %q is not finite or negative", simerrors.ErrFormulaNonFinite, id)
	}

	retainedAmounts := map[string]float64{}
	retainedUpgrades := map[string]int{}
	for _, entry := range def.Retention {
		switch entry.Kind {
		case content.RetainResource:
			if ri := resources.IndexOf(entry.ID); ri >= 0 {
				retainedAmounts[entry.ID] = resources.Amount(ri)
			}
		case content.RetainUpgrade:
			retainedUpgrades[entry.ID] = upgrades.Purchases(entry.ID)
		}
	}

	for _, target := range def.ResetTargets {
		if ri := resources.IndexOf(target); ri >= 0 {
			resources.SpendAmount(ri, resources.Amount(ri), resourcestate.SpendContext{Reason: "prestige-reset:" + id})
		}
	}
	generators.ResetAll()
	upgrades.ResetAll(retainedUpgrades)

	for resourceID, amount := range retainedAmounts {
		if ri := resources.IndexOf(resourceID); ri >= 0 {
			resources.AddAmount(ri, amount-resources.Amount(ri))
		}
	}

	if ri := resources.IndexOf(def.Reward.ResourceID); ri >= 0 {
		resources.AddAmount(ri, reward)
	}
	if ci := resources.IndexOf(id + "-prestige-count"); ci >= 0 {
		resources.AddAmount(ci, 1)
	}

	state.PrestigeCount++
	state.LastResetStep = step
	return nil
}
