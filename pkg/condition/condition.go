// Package condition evaluates the boolean unlock/visibility conditions a
// content pack attaches to resources, generators, upgrades, and
// achievements.
package condition

import (
	"fmt"
	"math"

	"github.com/hansjm10/idle-simcore/pkg/simerrors"
)

// Kind tags a Condition's variant.
type Kind string

const (
	KindAlways                 Kind = "always"
	KindNever                  Kind = "never"
	KindResourceThreshold      Kind = "resourceThreshold"
	KindGeneratorLevel         Kind = "generatorLevel"
	KindUpgradeOwned           Kind = "upgradeOwned"
	KindPrestigeUnlocked       Kind = "prestigeUnlocked"
	KindPrestigeCountThreshold Kind = "prestigeCountThreshold"
	KindPrestigeCompleted      Kind = "prestigeCompleted"
	KindFlag                   Kind = "flag"
	KindScript                 Kind = "script"
	KindAllOf                  Kind = "allOf"
	KindAnyOf                  Kind = "anyOf"
	KindNot                    Kind = "not"
)

// Comparator is the numeric comparison a threshold condition applies.
type Comparator string

const (
	ComparatorGTE Comparator = "gte"
	ComparatorGT  Comparator = "gt"
	ComparatorLTE Comparator = "lte"
	ComparatorLT  Comparator = "lt"
	ComparatorEQ  Comparator = "eq"
	ComparatorNEQ Comparator = "neq"
)

// EqualityEpsilon bounds eq/neq comparisons, mirroring the resource
// engine's dirty-tolerance floor.
const EqualityEpsilon = 1e-9

// DefaultMaxDepth is used when a Context reports a non-positive depth
// limit.
const DefaultMaxDepth = 32

// Condition is a tagged-union boolean expression.
type Condition struct {
	Kind Kind `yaml:"kind"`

	ResourceID string     `yaml:"resourceId,omitempty"`
	Comparator Comparator `yaml:"comparator,omitempty"`
	Amount     float64    `yaml:"amount,omitempty"`

	GeneratorID string  `yaml:"generatorId,omitempty"`
	Level       float64 `yaml:"level,omitempty"`

	UpgradeID         string `yaml:"upgradeId,omitempty"`
	RequiredPurchases int    `yaml:"requiredPurchases,omitempty"`

	PrestigeID string `yaml:"prestigeId,omitempty"`

	FlagID string `yaml:"flagId,omitempty"`

	ScriptID string `yaml:"scriptId,omitempty"`

	Conditions []Condition `yaml:"conditions,omitempty"` // allOf / anyOf
	Inner      *Condition  `yaml:"condition,omitempty"`  // not
}

// Context is the capability object the coordinator injects so the
// evaluator never reaches into global state.
type Context interface {
	ResourceAmount(id string) (float64, bool)
	GeneratorLevel(id string) (float64, bool)
	UpgradePurchases(id string) (int, bool)
	PrestigeUnlocked(id string) (bool, bool)
	PrestigeCount(id string) (float64, bool)
	PrestigeCompleted(id string) (bool, bool)
	FlagValue(id string) (bool, bool)
	EvaluateScript(id string) (bool, error)
	DisplayName(kind, id string) string
	MaxConditionDepth() int
}

// Evaluator evaluates Condition trees against a Context.
type Evaluator struct{}

// NewEvaluator constructs a stateless condition Evaluator. Unlike the
// formula evaluator, conditions carry no expensive compiled state of
// their own; script conditions delegate compilation to whatever
// ScriptEvaluator backs Context.EvaluateScript.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate computes cond's boolean value under ctx.
func (e *Evaluator) Evaluate(cond Condition, ctx Context) (bool, error) {
	return e.evaluateAt(cond, ctx, 0)
}

func (e *Evaluator) evaluateAt(cond Condition, ctx Context, depth int) (bool, error) {
	maxDepth := ctx.MaxConditionDepth()
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if depth > maxDepth {
		return false, fmt.Errorf("%w: depth %d exceeds limit %d", simerrors.ErrConditionDepthExceeded, depth, maxDepth)
	}

	switch cond.Kind {
	case KindAlways:
		return true, nil
	case KindNever:
		return false, nil
	case KindResourceThreshold:
		amount, ok := ctx.ResourceAmount(cond.ResourceID)
		if !ok {
			return false, nil
		}
		return compare(amount, cond.Amount, cond.Comparator)
	case KindGeneratorLevel:
		level, ok := ctx.GeneratorLevel(cond.GeneratorID)
		if !ok {
			return false, nil
		}
		return compare(level, cond.Level, cond.Comparator)
	case KindUpgradeOwned:
		purchases, ok := ctx.UpgradePurchases(cond.UpgradeID)
		if !ok {
			return false, nil
		}
		required := cond.RequiredPurchases
		if required < 1 {
			required = 1
		}
		return purchases >= required, nil
	case KindPrestigeUnlocked:
		unlocked, ok := ctx.PrestigeUnlocked(cond.PrestigeID)
		return ok && unlocked, nil
	case KindPrestigeCountThreshold:
		count, ok := ctx.PrestigeCount(cond.PrestigeID)
		if !ok {
			return false, nil
		}
		return compare(count, cond.Amount, cond.Comparator)
	case KindPrestigeCompleted:
		completed, ok := ctx.PrestigeCompleted(cond.PrestigeID)
		return ok && completed, nil
	case KindFlag:
		value, ok := ctx.FlagValue(cond.FlagID)
		return ok && value, nil
	case KindScript:
		return ctx.EvaluateScript(cond.ScriptID)
	case KindAllOf:
		for _, child := range cond.Conditions {
			result, err := e.evaluateAt(child, ctx, depth+1)
			if err != nil {
				return false, err
			}
			if !result {
				return false, nil
			}
		}
		return true, nil
	case KindAnyOf:
		for _, child := range cond.Conditions {
			result, err := e.evaluateAt(child, ctx, depth+1)
			if err != nil {
				return false, err
			}
			if result {
				return true, nil
			}
		}
		return false, nil
	case KindNot:
		if cond.Inner == nil {
			return true, nil
		}
		result, err := e.evaluateAt(*cond.Inner, ctx, depth+1)
		if err != nil {
			return false, err
		}
		return !result, nil
	default:
		return false, fmt.Errorf("%w: %q", simerrors.ErrConditionUnknownKind, cond.Kind)
	}
}

func compare(actual, threshold float64, comparator Comparator) (bool, error) {
	switch comparator {
	case ComparatorGTE:
		return actual >= threshold, nil
	case ComparatorGT:
		return actual > threshold, nil
	case ComparatorLTE:
		return actual <= threshold, nil
	case ComparatorLT:
		return actual < threshold, nil
	case ComparatorEQ:
		return math.Abs(actual-threshold) <= EqualityEpsilon, nil
	case ComparatorNEQ:
		return math.Abs(actual-threshold) > EqualityEpsilon, nil
	default:
		return false, fmt.Errorf("unrecognized comparator %q", comparator)
	}
}

// Describe produces a short, human-readable unlock hint such as
// "Reach Energy >= 100".
func (e *Evaluator) Describe(cond Condition, ctx Context) string {
	switch cond.Kind {
	case KindAlways:
		return "Always available"
	case KindNever:
		return "Unavailable"
	case KindResourceThreshold:
		return fmt.Sprintf("Reach %s %s %s", ctx.DisplayName("resource", cond.ResourceID), comparatorSymbol(cond.Comparator), formatAmount(cond.Amount))
	case KindGeneratorLevel:
		return fmt.Sprintf("Own %s %s %s", ctx.DisplayName("generator", cond.GeneratorID), comparatorSymbol(cond.Comparator), formatAmount(cond.Level))
	case KindUpgradeOwned:
		required := cond.RequiredPurchases
		if required < 1 {
			required = 1
		}
		return fmt.Sprintf("Purchase %s x%d", ctx.DisplayName("upgrade", cond.UpgradeID), required)
	case KindPrestigeUnlocked:
		return fmt.Sprintf("Unlock %s", ctx.DisplayName("prestigeLayer", cond.PrestigeID))
	case KindPrestigeCountThreshold:
		return fmt.Sprintf("Prestige %s %s %s", ctx.DisplayName("prestigeLayer", cond.PrestigeID), comparatorSymbol(cond.Comparator), formatAmount(cond.Amount))
	case KindPrestigeCompleted:
		return fmt.Sprintf("Complete %s", ctx.DisplayName("prestigeLayer", cond.PrestigeID))
	case KindFlag:
		return fmt.Sprintf("Flag %q set", cond.FlagID)
	case KindScript:
		return fmt.Sprintf("Condition %q met", cond.ScriptID)
	case KindAllOf:
		return joinHints(e, cond.Conditions, ctx, " and ")
	case KindAnyOf:
		return joinHints(e, cond.Conditions, ctx, " or ")
	case KindNot:
		if cond.Inner == nil {
			return "Always available"
		}
		return "Not: " + e.Describe(*cond.Inner, ctx)
	default:
		return "Unknown condition"
	}
}

func joinHints(e *Evaluator, conditions []Condition, ctx Context, sep string) string {
	if len(conditions) == 0 {
		return "Always available"
	}
	result := e.Describe(conditions[0], ctx)
	for _, child := range conditions[1:] {
		result += sep + e.Describe(child, ctx)
	}
	return result
}

func comparatorSymbol(c Comparator) string {
	switch c {
	case ComparatorGTE:
		return ">="
	case ComparatorGT:
		return ">"
	case ComparatorLTE:
		return "<="
	case ComparatorLT:
		return "<"
	case ComparatorEQ:
		return "=="
	case ComparatorNEQ:
		return "!="
	default:
		return "?"
	}
}

func formatAmount(amount float64) string {
	if amount == math.Trunc(amount) {
		return fmt.Sprintf("%.0f", amount)
	}
	return fmt.Sprintf("%g", amount)
}

// RefSet collects every entity id a condition (transitively) names.
type RefSet struct {
	ResourceIDs  map[string]struct{}
	GeneratorIDs map[string]struct{}
	UpgradeIDs   map[string]struct{}
	PrestigeIDs  map[string]struct{}
	FlagIDs      map[string]struct{}
	ScriptIDs    map[string]struct{}
}

func newRefSet() RefSet {
	return RefSet{
		ResourceIDs:  map[string]struct{}{},
		GeneratorIDs: map[string]struct{}{},
		UpgradeIDs:   map[string]struct{}{},
		PrestigeIDs:  map[string]struct{}{},
		FlagIDs:      map[string]struct{}{},
		ScriptIDs:    map[string]struct{}{},
	}
}

// ResolveReferences walks every branch of cond (including anyOf and not
// subtrees) and returns every entity id it names. Used for diagnostics and
// for telemetry about what a locked entity depends on — not for
// dependency-graph edge construction, which has narrower rules; see
// DependencyEdges.
func ResolveReferences(cond Condition) RefSet {
	refs := newRefSet()
	collectReferences(cond, &refs)
	return refs
}

func collectReferences(cond Condition, refs *RefSet) {
	switch cond.Kind {
	case KindResourceThreshold:
		refs.ResourceIDs[cond.ResourceID] = struct{}{}
	case KindGeneratorLevel:
		refs.GeneratorIDs[cond.GeneratorID] = struct{}{}
	case KindUpgradeOwned:
		refs.UpgradeIDs[cond.UpgradeID] = struct{}{}
	case KindPrestigeUnlocked, KindPrestigeCountThreshold, KindPrestigeCompleted:
		refs.PrestigeIDs[cond.PrestigeID] = struct{}{}
	case KindFlag:
		refs.FlagIDs[cond.FlagID] = struct{}{}
	case KindScript:
		refs.ScriptIDs[cond.ScriptID] = struct{}{}
	case KindAllOf, KindAnyOf:
		for _, child := range cond.Conditions {
			collectReferences(child, refs)
		}
	case KindNot:
		if cond.Inner != nil {
			collectReferences(*cond.Inner, refs)
		}
	}
}

// DependencyEdges returns the subset of cond's references that the
// content-pack validator should treat as unlock-graph edges from the
// entity identified by selfID: anyOf branches are excluded (any one branch
// can satisfy the condition independently, so none is a hard dependency),
// not subtrees are excluded, and a resourceThreshold referencing selfID
// itself is excluded (a resource may gate its own unlock on its own
// production without that being a cycle).
func DependencyEdges(cond Condition, selfID string) RefSet {
	refs := newRefSet()
	collectDependencyEdges(cond, selfID, &refs)
	return refs
}

func collectDependencyEdges(cond Condition, selfID string, refs *RefSet) {
	switch cond.Kind {
	case KindResourceThreshold:
		if cond.ResourceID != selfID {
			refs.ResourceIDs[cond.ResourceID] = struct{}{}
		}
	case KindGeneratorLevel:
		refs.GeneratorIDs[cond.GeneratorID] = struct{}{}
	case KindUpgradeOwned:
		refs.UpgradeIDs[cond.UpgradeID] = struct{}{}
	case KindPrestigeUnlocked, KindPrestigeCountThreshold, KindPrestigeCompleted:
		refs.PrestigeIDs[cond.PrestigeID] = struct{}{}
	case KindAllOf:
		for _, child := range cond.Conditions {
			collectDependencyEdges(child, selfID, refs)
		}
	case KindAnyOf, KindNot:
		// Any branch suffices, or the branch is negated: neither forms a
		// hard dependency edge.
	}
}
