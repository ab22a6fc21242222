package content

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/hansjm10/idle-simcore/pkg/condition"
	"github.com/hansjm10/idle-simcore/pkg/formula"
	"github.com/hansjm10/idle-simcore/pkg/simerrors"
	"github.com/hansjm10/idle-simcore/pkg/telemetry"
)

// BalanceOptions governs the validator's optional numeric balance probes.
type BalanceOptions struct {
	Enabled    bool
	SampleSize int
	MaxGrowth  float64
	WarnOnly   bool
}

// Options configures a Validator. Zero-value fields are replaced with the
// spec's documented defaults by NewValidator.
type Options struct {
	Cache                ValidationCache
	Balance              BalanceOptions
	FeatureGates         map[string]EngineVersionRange
	RuntimeEventsCatalog []string
	AllowlistFlags       []string
	AllowlistScripts     []string
	MaxConditionDepth    int
	ProfitEpsilon        float64
	Recorder             *telemetry.Recorder
}

const (
	defaultBalanceSampleSize = 100
	defaultBalanceMaxGrowth  = 20
	defaultMaxConditionDepth = 32
	defaultProfitEpsilon     = 1e-8
	maxBalanceSampleSize     = 10_000
)

func (o Options) withDefaults() Options {
	if o.Balance.SampleSize <= 0 {
		o.Balance.SampleSize = defaultBalanceSampleSize
	}
	if o.Balance.SampleSize > maxBalanceSampleSize {
		o.Balance.SampleSize = maxBalanceSampleSize
	}
	if o.Balance.MaxGrowth < 1 {
		o.Balance.MaxGrowth = defaultBalanceMaxGrowth
	}
	if o.MaxConditionDepth <= 0 {
		o.MaxConditionDepth = defaultMaxConditionDepth
	}
	if o.ProfitEpsilon <= 0 {
		o.ProfitEpsilon = defaultProfitEpsilon
	}
	return o
}

// Validator runs a raw Pack through structural, entity-collection, and
// semantic refinement, then normalizes it.
type Validator struct {
	opts           Options
	structural     *validator.Validate
	conditionEval  *condition.Evaluator
	formulaEval    *formula.Evaluator
}

// NewValidator builds a Validator. opts.Cache is optional; when nil, Parse
// always runs the full pipeline.
func NewValidator(opts Options) *Validator {
	return &Validator{
		opts:          opts.withDefaults(),
		structural:    validator.New(validator.WithRequiredStructEnabled()),
		conditionEval: condition.NewEvaluator(),
		formulaEval:   formula.NewEvaluator(256),
	}
}

// refinementState threads collected diagnostics and lookup scaffolding
// through the pipeline stages.
type refinementState struct {
	pack     Pack
	errors   simerrors.ValidationErrors
	warnings simerrors.ValidationErrors
}

func (s *refinementState) addError(code, path, message string) {
	s.errors = append(s.errors, simerrors.ValidationError{Code: code, Path: path, Message: message, Severity: simerrors.SeverityError})
}

func (s *refinementState) addWarning(code, path, message string) {
	s.warnings = append(s.warnings, simerrors.ValidationError{Code: code, Path: path, Message: message, Severity: simerrors.SeverityWarning})
}

func (s *refinementState) demoteIfWarnOnly(warnOnly bool) {
	if !warnOnly {
		return
	}
	var kept simerrors.ValidationErrors
	for _, e := range s.errors {
		if isStructuralCode(e.Code) {
			kept = append(kept, e)
			continue
		}
		e.Severity = simerrors.SeverityWarning
		s.warnings = append(s.warnings, e)
	}
	s.errors = kept
}

func isStructuralCode(code string) bool {
	return len(code) >= 11 && code[:11] == "structural."
}

// singleflightCache is implemented by ValidationCache backends that can
// de-duplicate concurrent validations for the same fingerprint in-process
// (LRUValidationCache). Backends without it, like RedisValidationCache,
// fall back to plain Get/Put and may run the pipeline redundantly under
// concurrent misses.
type singleflightCache interface {
	GetOrValidate(fingerprint string, validate func() Result) Result
}

// Parse runs the full validation pipeline against raw, optionally
// consulting and populating opts.Cache by fingerprint.
func (v *Validator) Parse(raw Pack, fingerprint string) Result {
	_, span := v.opts.Recorder.StartSpan(context.Background(), "parse")
	defer span.End()

	validate := func() Result { return v.parse(raw) }

	if v.opts.Cache == nil || fingerprint == "" {
		return validate()
	}

	if sf, ok := v.opts.Cache.(singleflightCache); ok {
		return sf.GetOrValidate(fingerprint, validate)
	}

	if cached, ok := v.opts.Cache.Get(fingerprint); ok {
		return cached
	}
	result := validate()
	v.opts.Cache.Put(fingerprint, result)
	return result
}

func (v *Validator) parse(raw Pack) Result {
	state := &refinementState{pack: raw}

	v.runStructural(state)
	v.runEntityRefinements(state)
	v.runSemanticRefinements(state)

	state.demoteIfWarnOnly(v.opts.Balance.WarnOnly)

	if len(state.errors) > 0 {
		return Result{Errors: state.errors, Warnings: state.warnings}
	}

	normalized := v.normalize(raw)
	return Result{Normalized: normalized, Warnings: state.warnings}
}

func (v *Validator) runStructural(state *refinementState) {
	checks := []struct {
		path string
		val  any
	}{}
	for i := range state.pack.Resources {
		checks = append(checks, struct {
			path string
			val  any
		}{fmt.Sprintf("resources[%d]", i), &state.pack.Resources[i]})
	}
	for i := range state.pack.Generators {
		checks = append(checks, struct {
			path string
			val  any
		}{fmt.Sprintf("generators[%d]", i), &state.pack.Generators[i]})
	}
	for i := range state.pack.Upgrades {
		checks = append(checks, struct {
			path string
			val  any
		}{fmt.Sprintf("upgrades[%d]", i), &state.pack.Upgrades[i]})
	}
	for i := range state.pack.Achievements {
		checks = append(checks, struct {
			path string
			val  any
		}{fmt.Sprintf("achievements[%d]", i), &state.pack.Achievements[i]})
	}
	for i := range state.pack.PrestigeLayers {
		checks = append(checks, struct {
			path string
			val  any
		}{fmt.Sprintf("prestigeLayers[%d]", i), &state.pack.PrestigeLayers[i]})
	}
	for i := range state.pack.Transforms {
		checks = append(checks, struct {
			path string
			val  any
		}{fmt.Sprintf("transforms[%d]", i), &state.pack.Transforms[i]})
	}

	for _, check := range checks {
		if err := v.structural.Struct(check.val); err != nil {
			for _, fieldErr := range err.(validator.ValidationErrors) {
				state.addError("structural.field", check.path+"."+fieldErr.Field(), fieldErr.Tag()+" constraint failed")
			}
		}
	}

	for _, t := range state.pack.Transforms {
		if (t.Mode == TransformBatch || t.Mode == TransformMission) && t.Duration == nil {
			state.addError("structural.transform.durationRequired", "transforms["+t.ID+"]", "batch and mission transforms require duration")
		}
		if t.Mode == TransformMission && (len(t.EntityRequirements) == 0 || len(t.Outcomes) == 0) {
			state.addError("structural.transform.missionFieldsRequired", "transforms["+t.ID+"]", "mission transforms require entityRequirements and outcomes")
		}
	}
}

func idsOf[T any](items []T, id func(T) string) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = id(item)
	}
	return ids
}

func (v *Validator) runEntityRefinements(state *refinementState) {
	checkDuplicates(state, "resources", idsOf(state.pack.Resources, func(r Resource) string { return r.ID }))
	checkDuplicates(state, "generators", idsOf(state.pack.Generators, func(g Generator) string { return g.ID }))
	checkDuplicates(state, "upgrades", idsOf(state.pack.Upgrades, func(u Upgrade) string { return u.ID }))
	checkDuplicates(state, "achievements", idsOf(state.pack.Achievements, func(a Achievement) string { return a.ID }))
	checkDuplicates(state, "prestigeLayers", idsOf(state.pack.PrestigeLayers, func(p PrestigeLayer) string { return p.ID }))
	checkDuplicates(state, "transforms", idsOf(state.pack.Transforms, func(t Transform) string { return t.ID }))

	v.checkReferences(state)
	v.checkFeatureGates(state)
	v.checkRuntimeEventNamespaces(state)
	v.checkAllowlistReferences(state)
}

func checkDuplicates(state *refinementState, collection string, ids []string) {
	seen := map[string]int{}
	for _, id := range ids {
		seen[id]++
	}
	for id, count := range seen {
		if count > 1 {
			state.addError("entity.duplicateId", collection+"/"+id, fmt.Sprintf("id %q appears %d times in %s", id, count, collection))
		}
	}
}

func (v *Validator) checkReferences(state *refinementState) {
	resourceIDs := idSet(idsOf(state.pack.Resources, func(r Resource) string { return r.ID }))
	generatorIDs := idSet(idsOf(state.pack.Generators, func(g Generator) string { return g.ID }))
	upgradeIDs := idSet(idsOf(state.pack.Upgrades, func(u Upgrade) string { return u.ID }))
	prestigeIDs := idSet(idsOf(state.pack.PrestigeLayers, func(p PrestigeLayer) string { return p.ID }))

	requireResource := func(path, id string) {
		if id != "" {
			if _, ok := resourceIDs[id]; !ok {
				state.addError("entity.referenceNotFound", path, fmt.Sprintf("resource %q not found", id))
			}
		}
	}

	for _, g := range state.pack.Generators {
		for i, flow := range g.Produces {
			requireResource(fmt.Sprintf("generators[%s].produces[%d]", g.ID, i), flow.ResourceID)
		}
		for i, flow := range g.Consumes {
			requireResource(fmt.Sprintf("generators[%s].consumes[%d]", g.ID, i), flow.ResourceID)
		}
		if g.Purchase.CurrencyID != "" {
			requireResource(fmt.Sprintf("generators[%s].purchase", g.ID), g.Purchase.CurrencyID)
		}
		for i, c := range g.Purchase.Costs {
			requireResource(fmt.Sprintf("generators[%s].purchase.costs[%d]", g.ID, i), c.ResourceID)
		}
	}

	for _, t := range state.pack.Transforms {
		for i, in := range t.Inputs {
			requireResource(fmt.Sprintf("transforms[%s].inputs[%d]", t.ID, i), in.ResourceID)
		}
		for i, out := range t.Outputs {
			requireResource(fmt.Sprintf("transforms[%s].outputs[%d]", t.ID, i), out.ResourceID)
		}
	}

	for _, p := range state.pack.PrestigeLayers {
		for i, rid := range p.ResetTargets {
			requireResource(fmt.Sprintf("prestigeLayers[%s].resetTargets[%d]", p.ID, i), rid)
		}
		requireResource(fmt.Sprintf("prestigeLayers[%s].reward", p.ID), p.Reward.ResourceID)
		for i, r := range p.Retention {
			switch r.Kind {
			case RetainResource:
				requireResource(fmt.Sprintf("prestigeLayers[%s].retention[%d]", p.ID, i), r.ID)
			case RetainUpgrade:
				if _, ok := upgradeIDs[r.ID]; !ok {
					state.addError("entity.referenceNotFound", fmt.Sprintf("prestigeLayers[%s].retention[%d]", p.ID, i), fmt.Sprintf("upgrade %q not found", r.ID))
				}
			}
		}
	}

	requireCondition := func(path string, cond *condition.Condition) {
		if cond == nil {
			return
		}
		refs := condition.ResolveReferences(*cond)
		for id := range refs.ResourceIDs {
			if _, ok := resourceIDs[id]; !ok {
				state.addError("entity.referenceNotFound", path, fmt.Sprintf("resource %q not found", id))
			}
		}
		for id := range refs.GeneratorIDs {
			if _, ok := generatorIDs[id]; !ok {
				state.addError("entity.referenceNotFound", path, fmt.Sprintf("generator %q not found", id))
			}
		}
		for id := range refs.UpgradeIDs {
			if _, ok := upgradeIDs[id]; !ok {
				state.addError("entity.referenceNotFound", path, fmt.Sprintf("upgrade %q not found", id))
			}
		}
		for id := range refs.PrestigeIDs {
			if _, ok := prestigeIDs[id]; !ok {
				state.addError("entity.referenceNotFound", path, fmt.Sprintf("prestige layer %q not found", id))
			}
		}
	}

	for _, r := range state.pack.Resources {
		requireCondition(fmt.Sprintf("resources[%s].unlockCondition", r.ID), r.UnlockCondition)
		requireCondition(fmt.Sprintf("resources[%s].visibilityCondition", r.ID), r.VisibilityCondition)
	}
	for _, g := range state.pack.Generators {
		baseUnlock := g.BaseUnlock
		requireCondition(fmt.Sprintf("generators[%s].baseUnlock", g.ID), &baseUnlock)
		requireCondition(fmt.Sprintf("generators[%s].visibilityCondition", g.ID), g.VisibilityCondition)
	}
	for _, u := range state.pack.Upgrades {
		requireCondition(fmt.Sprintf("upgrades[%s].unlockCondition", u.ID), u.UnlockCondition)
		requireCondition(fmt.Sprintf("upgrades[%s].visibilityCondition", u.ID), u.VisibilityCondition)
		for i, prereq := range u.Prerequisites {
			p := prereq
			requireCondition(fmt.Sprintf("upgrades[%s].prerequisites[%d]", u.ID, i), &p)
		}
		for i, target := range u.Targets {
			switch target.Kind {
			case UpgradeTargetResource:
				requireResource(fmt.Sprintf("upgrades[%s].targets[%d]", u.ID, i), target.ID)
			case UpgradeTargetGenerator:
				if _, ok := generatorIDs[target.ID]; !ok {
					state.addError("entity.referenceNotFound", fmt.Sprintf("upgrades[%s].targets[%d]", u.ID, i), fmt.Sprintf("generator %q not found", target.ID))
				}
			}
		}
	}
	for _, a := range state.pack.Achievements {
		requireCondition(fmt.Sprintf("achievements[%s].unlockCondition", a.ID), a.UnlockCondition)
		requireCondition(fmt.Sprintf("achievements[%s].visibilityCondition", a.ID), a.VisibilityCondition)
	}
	for _, p := range state.pack.PrestigeLayers {
		unlock := p.UnlockCondition
		requireCondition(fmt.Sprintf("prestigeLayers[%s].unlockCondition", p.ID), &unlock)
	}
	for _, t := range state.pack.Transforms {
		trigger := t.Trigger
		requireCondition(fmt.Sprintf("transforms[%s].trigger", t.ID), &trigger)
	}
}

func idSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func (v *Validator) checkFeatureGates(state *refinementState) {
	if len(v.opts.FeatureGates) == 0 {
		return
	}
	moduleDeclared := func(module string) bool {
		switch module {
		case "automations":
			return hasAutomationTargets(state.pack)
		case "transforms":
			return len(state.pack.Transforms) > 0
		case "prestige":
			return len(state.pack.PrestigeLayers) > 0
		case "achievements":
			return len(state.pack.Achievements) > 0
		default:
			return false
		}
	}

	for module, rng := range v.opts.FeatureGates {
		if !moduleDeclared(module) {
			continue
		}
		if !rng.Covers(state.pack.Engine) {
			state.addError("feature.gate.violation", "engine", fmt.Sprintf("module %q requires engine in %+v, pack declares %d", module, rng, state.pack.Engine))
		}
	}
}

func hasAutomationTargets(pack Pack) bool {
	for _, u := range pack.Upgrades {
		for _, e := range u.Effects {
			if e.Kind == EffectUnlockAutomation {
				return true
			}
		}
	}
	for _, p := range pack.PrestigeLayers {
		if p.Automation {
			return true
		}
	}
	return false
}

// checkAllowlistReferences confirms every flag{flagId}/script{scriptId}
// condition reference, every achievement flag/script track, and every
// grantFlag reward or effect stays within opts.AllowlistFlags/Scripts. An
// empty allowlist disables the corresponding check, matching
// checkRuntimeEventNamespaces' opt-in shape.
func (v *Validator) checkAllowlistReferences(state *refinementState) {
	flagsGated := len(v.opts.AllowlistFlags) > 0
	scriptsGated := len(v.opts.AllowlistScripts) > 0
	if !flagsGated && !scriptsGated {
		return
	}
	allowedFlags := idSet(v.opts.AllowlistFlags)
	allowedScripts := idSet(v.opts.AllowlistScripts)

	requireFlag := func(path, id string) {
		if !flagsGated || id == "" {
			return
		}
		if _, ok := allowedFlags[id]; !ok {
			state.addError("entity.flagNotAllowlisted", path, fmt.Sprintf("flag %q is not in the configured allowlist", id))
		}
	}
	requireScript := func(path, id string) {
		if !scriptsGated || id == "" {
			return
		}
		if _, ok := allowedScripts[id]; !ok {
			state.addError("entity.scriptNotAllowlisted", path, fmt.Sprintf("script %q is not in the configured allowlist", id))
		}
	}
	checkCondition := func(path string, cond *condition.Condition) {
		if cond == nil {
			return
		}
		refs := condition.ResolveReferences(*cond)
		for id := range refs.FlagIDs {
			requireFlag(path, id)
		}
		for id := range refs.ScriptIDs {
			requireScript(path, id)
		}
	}

	for _, r := range state.pack.Resources {
		checkCondition(fmt.Sprintf("resources[%s].unlockCondition", r.ID), r.UnlockCondition)
		checkCondition(fmt.Sprintf("resources[%s].visibilityCondition", r.ID), r.VisibilityCondition)
	}
	for _, g := range state.pack.Generators {
		baseUnlock := g.BaseUnlock
		checkCondition(fmt.Sprintf("generators[%s].baseUnlock", g.ID), &baseUnlock)
		checkCondition(fmt.Sprintf("generators[%s].visibilityCondition", g.ID), g.VisibilityCondition)
	}
	for _, u := range state.pack.Upgrades {
		checkCondition(fmt.Sprintf("upgrades[%s].unlockCondition", u.ID), u.UnlockCondition)
		checkCondition(fmt.Sprintf("upgrades[%s].visibilityCondition", u.ID), u.VisibilityCondition)
		for i, prereq := range u.Prerequisites {
			p := prereq
			checkCondition(fmt.Sprintf("upgrades[%s].prerequisites[%d]", u.ID, i), &p)
		}
		for i, e := range u.Effects {
			if e.Kind == EffectGrantFlag {
				requireFlag(fmt.Sprintf("upgrades[%s].effects[%d]", u.ID, i), e.TargetID)
			}
		}
	}
	for _, a := range state.pack.Achievements {
		checkCondition(fmt.Sprintf("achievements[%s].unlockCondition", a.ID), a.UnlockCondition)
		checkCondition(fmt.Sprintf("achievements[%s].visibilityCondition", a.ID), a.VisibilityCondition)
		switch a.Progress.TrackKind {
		case TrackFlag:
			requireFlag(fmt.Sprintf("achievements[%s].progress.trackRef", a.ID), a.Progress.TrackRef)
		case TrackScript:
			requireScript(fmt.Sprintf("achievements[%s].progress.trackRef", a.ID), a.Progress.TrackRef)
		}
		if a.Reward != nil && a.Reward.GrantFlag != "" {
			requireFlag(fmt.Sprintf("achievements[%s].reward.grantFlag", a.ID), a.Reward.GrantFlag)
		}
	}
	for _, p := range state.pack.PrestigeLayers {
		unlock := p.UnlockCondition
		checkCondition(fmt.Sprintf("prestigeLayers[%s].unlockCondition", p.ID), &unlock)
	}
	for _, t := range state.pack.Transforms {
		trigger := t.Trigger
		checkCondition(fmt.Sprintf("transforms[%s].trigger", t.ID), &trigger)
	}
}

func (v *Validator) checkRuntimeEventNamespaces(state *refinementState) {
	if len(v.opts.RuntimeEventsCatalog) == 0 {
		return
	}
	catalog := idSet(v.opts.RuntimeEventsCatalog)
	for _, a := range state.pack.Achievements {
		for _, eventID := range a.OnUnlockEvents {
			if _, ok := catalog[eventID]; !ok {
				state.addError("entity.runtimeEventUnknown", fmt.Sprintf("achievements[%s].onUnlockEvents", a.ID), fmt.Sprintf("event %q is not in the runtime events catalog", eventID))
			}
		}
		if a.Reward != nil && a.Reward.EmitEvent != "" {
			if _, ok := catalog[a.Reward.EmitEvent]; !ok {
				state.addError("entity.runtimeEventUnknown", fmt.Sprintf("achievements[%s].reward.emitEvent", a.ID), fmt.Sprintf("event %q is not in the runtime events catalog", a.Reward.EmitEvent))
			}
		}
	}
}
