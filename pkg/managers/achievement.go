package managers

import (
	"context"
	"math"
	"sort"

	"github.com/hansjm10/idle-simcore/pkg/condition"
	"github.com/hansjm10/idle-simcore/pkg/content"
	"github.com/hansjm10/idle-simcore/pkg/formula"
	"github.com/hansjm10/idle-simcore/pkg/resourcestate"
	"github.com/hansjm10/idle-simcore/pkg/telemetry"
)

// achievementRecord is one achievement's persisted completion state. Flags,
// granted automations, and granted upgrades are NOT stored here: they're
// derived fresh from this record by rebuildDerivedRewards every call, so a
// save only needs to capture completion, not every side effect it implied.
type achievementRecord struct {
	IsUnlocked           bool
	IsVisible            bool
	UnlockHint           string
	unlockEventsFired    bool
	Completed            bool
	CompletionCount      int
	LastCompletedStep    int64
	NextRepeatableAtStep int64
}

// MetricValueProvider resolves a custom-metric achievement track to its
// current numeric value.
type MetricValueProvider interface {
	Value(id string) (float64, bool)
}

// GeneratorLevelProvider resolves a generator-level/count achievement
// track.
type GeneratorLevelProvider interface {
	Level(id string) (float64, bool)
}

// AchievementTracker evaluates unlock/visibility and completion progress
// for every achievement, applies one-time rewards at the moment of
// completion, and replays derived (flag/automation/upgrade-grant) rewards
// deterministically so they never need their own save slot.
type AchievementTracker struct {
	defs    []content.Achievement
	index   map[string]int
	cond    *condition.Evaluator
	formula *formula.Evaluator
	states  []achievementRecord

	flags       map[string]bool
	automations map[string]struct{}
	upgrades    map[string]struct{}
}

// NewAchievementTracker builds a tracker over defs, which must already be
// sorted by id (as NormalizedPack guarantees).
func NewAchievementTracker(defs []content.Achievement, fe *formula.Evaluator, ce *condition.Evaluator) *AchievementTracker {
	index := make(map[string]int, len(defs))
	for i, d := range defs {
		index[d.ID] = i
	}
	return &AchievementTracker{
		defs: defs, index: index, formula: fe, cond: ce,
		states:      make([]achievementRecord, len(defs)),
		flags:       map[string]bool{},
		automations: map[string]struct{}{},
		upgrades:    map[string]struct{}{},
	}
}

// AchievementCheckpoint is one achievement's completion state, independent
// of the resource-state save: a host that wants mid-session restore without
// a full export/hydrate cycle snapshots these and replays them with
// RestoreCheckpoint.
type AchievementCheckpoint struct {
	ID                   string
	IsUnlocked           bool
	IsVisible            bool
	Completed            bool
	CompletionCount      int
	LastCompletedStep    int64
	NextRepeatableAtStep int64
}

// ExportCheckpoint captures every achievement's completion state.
func (t *AchievementTracker) ExportCheckpoint() []AchievementCheckpoint {
	out := make([]AchievementCheckpoint, len(t.defs))
	for i, d := range t.defs {
		s := t.states[i]
		out[i] = AchievementCheckpoint{
			ID: d.ID, IsUnlocked: s.IsUnlocked, IsVisible: s.IsVisible,
			Completed: s.Completed, CompletionCount: s.CompletionCount,
			LastCompletedStep: s.LastCompletedStep, NextRepeatableAtStep: s.NextRepeatableAtStep,
		}
	}
	return out
}

// RestoreCheckpoint replaces every named achievement's completion state and
// rebuilds the flag/automation/upgrade-grant derived state to match.
// Checkpoint entries for ids no longer in the content pack are ignored.
func (t *AchievementTracker) RestoreCheckpoint(checkpoints []AchievementCheckpoint) {
	for _, cp := range checkpoints {
		i, ok := t.index[cp.ID]
		if !ok {
			continue
		}
		t.states[i] = achievementRecord{
			IsUnlocked: cp.IsUnlocked, IsVisible: cp.IsVisible,
			unlockEventsFired: cp.IsUnlocked,
			Completed:         cp.Completed, CompletionCount: cp.CompletionCount,
			LastCompletedStep: cp.LastCompletedStep, NextRepeatableAtStep: cp.NextRepeatableAtStep,
		}
	}
	t.rebuildDerivedRewards()
}

// RefreshDerivedRewards recomputes the flag/automation/upgrade-grant state
// from the persisted completion records without evaluating any achievement
// progress. The coordinator calls this at the start of each fixed-point
// iteration so GrantedAutomations/GetFlagValue reflect the latest completion
// state before the rest of the iteration's managers run.
func (t *AchievementTracker) RefreshDerivedRewards() { t.rebuildDerivedRewards() }

// GetFlagValue implements the coordinator's flag lookup (achievementTracker
// checked before upgradeManager).
func (t *AchievementTracker) GetFlagValue(id string) (bool, bool) {
	v, ok := t.flags[id]
	return v, ok
}

// GrantedAutomations returns every automation id a completed achievement's
// reward has unlocked, sorted.
func (t *AchievementTracker) GrantedAutomations() []string {
	out := make([]string, 0, len(t.automations))
	for id := range t.automations {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// GrantedUpgradeIDs returns every upgrade id a completed achievement's
// reward has granted, for the coordinator to force-own on the upgrade
// manager.
func (t *AchievementTracker) GrantedUpgradeIDs() []string {
	out := make([]string, 0, len(t.upgrades))
	for id := range t.upgrades {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// rebuildDerivedRewards recomputes flags/automations/granted-upgrades from
// every completed achievement's persisted record, replayed in
// (lastCompletedStep asc, index asc) order so the result is identical
// whether it was just hydrated from a save or has been running all along.
func (t *AchievementTracker) rebuildDerivedRewards() {
	t.flags = map[string]bool{}
	t.automations = map[string]struct{}{}
	t.upgrades = map[string]struct{}{}

	type entry struct {
		idx  int
		step int64
	}
	var entries []entry
	for i, s := range t.states {
		if s.Completed || s.CompletionCount > 0 {
			entries = append(entries, entry{i, s.LastCompletedStep})
		}
	}
	sort.SliceStable(entries, func(a, b int) bool {
		if entries[a].step != entries[b].step {
			return entries[a].step < entries[b].step
		}
		return entries[a].idx < entries[b].idx
	})

	for _, e := range entries {
		reward := t.defs[e.idx].Reward
		if reward == nil {
			continue
		}
		if reward.GrantUpgrade != "" {
			t.upgrades[reward.GrantUpgrade] = struct{}{}
		}
		if reward.UnlockAutomation != "" {
			t.automations[reward.UnlockAutomation] = struct{}{}
		}
		if reward.GrantFlag != "" {
			t.flags[reward.GrantFlag] = reward.GrantFlagValue
		}
	}
}

// UpdateForStep evaluates every achievement's unlock/visibility and
// progress, applies completion rewards, and reports whether any achievement
// newly completed this call (the coordinator uses this to decide whether
// another fixed-point iteration is needed).
func (t *AchievementTracker) UpdateForStep(
	step int64,
	ctx condition.Context,
	resources *resourcestate.State,
	generators GeneratorLevelProvider,
	metrics MetricValueProvider,
	recorder *telemetry.Recorder,
) bool {
	t.rebuildDerivedRewards()

	completedAny := false
	for i := range t.defs {
		def := &t.defs[i]
		state := &t.states[i]

		if !state.IsUnlocked {
			if def.UnlockCondition != nil {
				ok, _ := t.cond.Evaluate(*def.UnlockCondition, ctx)
				state.IsUnlocked = ok
			} else {
				state.IsUnlocked = true
			}
		}
		if !state.IsVisible {
			switch {
			case state.IsUnlocked:
				state.IsVisible = true
			case def.VisibilityCondition != nil:
				ok, _ := t.cond.Evaluate(*def.VisibilityCondition, ctx)
				state.IsVisible = ok
			}
		}
		if state.IsUnlocked && !state.unlockEventsFired {
			state.unlockEventsFired = true
			for _, eventID := range def.OnUnlockEvents {
				recorder.Progress(context.Background(), "AchievementUnlockEvent", eventID, map[string]any{"achievementId": def.ID})
			}
		}
		if !state.IsUnlocked {
			if def.UnlockCondition != nil {
				state.UnlockHint = t.cond.Describe(*def.UnlockCondition, ctx)
			}
			continue
		}

		value, ok := t.trackValue(def, ctx, resources, generators, metrics)
		if !ok {
			continue
		}

		if def.Progress.Mode == content.ProgressOneShot {
			if state.Completed {
				continue
			}
			target, err := t.formula.Evaluate(def.Progress.Target, formula.Context{Variables: formula.Variables{Level: 0}})
			if err != nil || value < target {
				continue
			}
			state.Completed = true
			state.LastCompletedStep = step
			t.applyOneTimeReward(def, resources, recorder, 1)
			completedAny = true
			continue
		}

		if def.Progress.Repeatable != nil && def.Progress.Repeatable.MaxRepeats != nil && state.CompletionCount >= *def.Progress.Repeatable.MaxRepeats {
			continue
		}
		if step < state.NextRepeatableAtStep {
			continue
		}
		target, err := t.formula.Evaluate(def.Progress.Target, formula.Context{Variables: formula.Variables{Level: float64(state.CompletionCount)}})
		if err != nil || value < target {
			continue
		}

		state.CompletionCount++
		state.LastCompletedStep = step
		resetWindow := int64(1)
		if def.Progress.Repeatable != nil && int64(def.Progress.Repeatable.ResetWindow) > resetWindow {
			resetWindow = int64(def.Progress.Repeatable.ResetWindow)
		}
		state.NextRepeatableAtStep = step + resetWindow

		scale := 1.0
		if def.Progress.Repeatable != nil {
			s, err := t.formula.Evaluate(def.Progress.Repeatable.RewardScaling, formula.Context{Variables: formula.Variables{Level: float64(state.CompletionCount)}})
			if err == nil {
				scale = s
			}
		}
		t.applyOneTimeReward(def, resources, recorder, scale)
		completedAny = true
	}

	if completedAny {
		t.rebuildDerivedRewards()
	}
	return completedAny
}

func (t *AchievementTracker) trackValue(
	def *content.Achievement,
	ctx condition.Context,
	resources *resourcestate.State,
	generators GeneratorLevelProvider,
	metrics MetricValueProvider,
) (float64, bool) {
	switch def.Progress.TrackKind {
	case content.TrackResource:
		ri := resources.IndexOf(def.Progress.TrackRef)
		if ri < 0 {
			return 0, false
		}
		return resources.Amount(ri), true
	case content.TrackGeneratorLevel, content.TrackGeneratorCount:
		return generators.Level(def.Progress.TrackRef)
	case content.TrackUpgradeOwned:
		purchases, ok := ctx.UpgradePurchases(def.Progress.TrackRef)
		if !ok {
			return 0, false
		}
		return float64(purchases), true
	case content.TrackFlag:
		value, ok := ctx.FlagValue(def.Progress.TrackRef)
		if !ok {
			return 0, false
		}
		if value {
			return 1, true
		}
		return 0, true
	case content.TrackScript:
		result, err := ctx.EvaluateScript(def.Progress.TrackRef)
		if err != nil {
			return 0, false
		}
		if result {
			return 1, true
		}
		return 0, true
	case content.TrackCustomMetric:
		return metrics.Value(def.Progress.TrackRef)
	default:
		return 0, false
	}
}

// applyOneTimeReward applies the reward exactly once, at the instant of
// completion: a resource grant and the completion event. Flag/automation/
// upgrade grants are intentionally NOT applied here — they're derived state
// rebuildDerivedRewards reconstructs from the persisted completion record.
func (t *AchievementTracker) applyOneTimeReward(def *content.Achievement, resources *resourcestate.State, recorder *telemetry.Recorder, scale float64) {
	if def.Reward == nil {
		return
	}
	if def.Reward.GrantResource != "" {
		amount := def.Reward.GrantAmount * scale
		if !math.IsNaN(amount) && !math.IsInf(amount, 0) {
			if ri := resources.IndexOf(def.Reward.GrantResource); ri >= 0 {
				resources.AddAmount(ri, amount)
			}
		}
	}
	if def.Reward.EmitEvent != "" {
		recorder.Progress(context.Background(), "AchievementCompleted", def.Reward.EmitEvent, map[string]any{"achievementId": def.ID})
	}
}
