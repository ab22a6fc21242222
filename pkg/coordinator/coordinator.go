// Package coordinator wires the resource engine and every per-domain
// manager together behind a single per-tick entry point, owning the shared
// condition/formula capability objects the spec calls the
// ConditionContext and FormulaEvaluationContextFactory.
package coordinator

import (
	"fmt"

	"github.com/hansjm10/idle-simcore/pkg/condition"
	"github.com/hansjm10/idle-simcore/pkg/content"
	"github.com/hansjm10/idle-simcore/pkg/formula"
	"github.com/hansjm10/idle-simcore/pkg/managers"
	"github.com/hansjm10/idle-simcore/pkg/resourcestate"
	"github.com/hansjm10/idle-simcore/pkg/telemetry"
)

const defaultExpressionCacheCapacity = 256

// ScriptEvaluator backs condition.KindScript for a coordinator. Optional: a
// nil ScriptEvaluator makes every script condition evaluate false rather
// than error.
type ScriptEvaluator interface {
	EvaluateScript(id string) (bool, error)
}

// DisplayNameResolver resolves a (kind, id) pair to a host-facing label
// used in unlock-hint text. Optional: a nil resolver falls back to the raw
// id.
type DisplayNameResolver interface {
	DisplayName(kind, id string) string
}

// Config constructs a Coordinator from a validated, normalized content
// pack.
type Config struct {
	Pack                  *content.NormalizedPack
	ExpressionCacheCap    int
	MaxConditionDepth     int
	Recorder              *telemetry.Recorder
	Scripts               ScriptEvaluator
	DisplayNames          DisplayNameResolver
	// RetryPolicy governs retries of player-triggered actions
	// (PurchaseGenerator, PurchaseUpgrade, ResetPrestige) that fail
	// transiently. Defaults to NoRetryPolicy().
	RetryPolicy *RetryPolicy
	// OnError observes every failed-and-retried attempt of a
	// RetryPolicy-governed action.
	OnError ErrorHandler
}

// Coordinator is the progression runtime: it owns the resource engine and
// every per-domain manager, and drives the per-tick fixed-point iteration
// described in the coordinator's updateForStep contract.
type Coordinator struct {
	pack *content.NormalizedPack

	resources   *resourcestate.State
	resourceMgr *managers.ResourceManager
	generators  *managers.GeneratorManager
	upgrades    *managers.UpgradeManager
	achievements *managers.AchievementTracker
	prestige    *managers.PrestigeManager
	metrics     *managers.MetricManager

	formulaEval *formula.Evaluator
	condEval    *condition.Evaluator
	recorder    *telemetry.Recorder

	scripts           ScriptEvaluator
	displayNames      DisplayNameResolver
	maxConditionDepth int

	combinedAutomations map[string]struct{}
	lastUpdatedStep     int64

	retryPolicy *RetryPolicy
	onError     ErrorHandler
}

// New builds a Coordinator. cfg.Pack must be non-nil; every other field has
// a documented default.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Pack == nil {
		return nil, fmt.Errorf("coordinator: pack is required")
	}
	capacity := cfg.ExpressionCacheCap
	if capacity <= 0 {
		capacity = defaultExpressionCacheCapacity
	}
	maxDepth := cfg.MaxConditionDepth
	if maxDepth <= 0 {
		maxDepth = condition.DefaultMaxDepth
	}
	retryPolicy := cfg.RetryPolicy
	if retryPolicy == nil {
		retryPolicy = NoRetryPolicy()
	}

	fe := formula.NewEvaluator(capacity)
	ce := condition.NewEvaluator()
	resources := resourcestate.Create(resourceDefinitions(cfg.Pack.Resources)).WithTelemetry(cfg.Recorder)

	c := &Coordinator{
		pack:        cfg.Pack,
		resources:   resources,
		resourceMgr: managers.NewResourceManager(cfg.Pack.Resources, resources, ce),
		generators:  managers.NewGeneratorManager(cfg.Pack.Generators, fe, ce),
		upgrades:    managers.NewUpgradeManager(cfg.Pack.Upgrades, fe, ce),
		achievements: managers.NewAchievementTracker(cfg.Pack.Achievements, fe, ce),
		prestige:    managers.NewPrestigeManager(cfg.Pack.PrestigeLayers, fe, ce),
		metrics:     managers.NewMetricManager(cfg.Pack.Metrics),
		formulaEval: fe,
		condEval:    ce,
		recorder:    cfg.Recorder,
		scripts:     cfg.Scripts,
		displayNames: cfg.DisplayNames,
		maxConditionDepth: maxDepth,
		combinedAutomations: map[string]struct{}{},
		retryPolicy:         retryPolicy,
		onError:             cfg.OnError,
	}
	return c, nil
}

func resourceDefinitions(resources []content.Resource) []resourcestate.Definition {
	defs := make([]resourcestate.Definition, len(resources))
	for i, r := range resources {
		defs[i] = resourcestate.Definition{
			ID:          r.ID,
			StartAmount: r.StartAmount,
			Capacity:    r.Capacity,
			Unlocked:    r.Unlocked,
			Visible:     r.Visible,
		}
		if r.DirtyTolerance != nil {
			defs[i].DirtyTolerance = *r.DirtyTolerance
		}
	}
	return defs
}

// Resources exposes the resource engine, for the host's finalizeTick/
// snapshot/resetPerTickAccumulators lifecycle calls and for the save/
// migration runtime.
func (c *Coordinator) Resources() *resourcestate.State { return c.resources }

// Generators exposes the generator manager, for host UI queries and
// purchase flows.
func (c *Coordinator) Generators() *managers.GeneratorManager { return c.generators }

// Upgrades exposes the upgrade manager, for host UI queries and purchase
// flows.
func (c *Coordinator) Upgrades() *managers.UpgradeManager { return c.upgrades }

// Achievements exposes the achievement tracker, for host UI queries.
func (c *Coordinator) Achievements() *managers.AchievementTracker { return c.achievements }

// Prestige exposes the prestige manager, for host UI queries and the reset
// action.
func (c *Coordinator) Prestige() *managers.PrestigeManager { return c.prestige }

// Metrics exposes the metric manager, for the host to feed runtime-sourced
// counters (clicks, time played) into achievement tracking.
func (c *Coordinator) Metrics() *managers.MetricManager { return c.metrics }

// LastUpdatedStep returns the step most recently passed to UpdateForStep.
func (c *Coordinator) LastUpdatedStep() int64 { return c.lastUpdatedStep }
