// Package formula evaluates the tagged-union numeric formulas a content
// pack uses to describe generator rates, upgrade costs, achievement
// targets, and prestige rewards.
package formula

import (
	"fmt"
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/hansjm10/idle-simcore/pkg/exprcache"
	"github.com/hansjm10/idle-simcore/pkg/simerrors"
)

// Kind tags a Formula's variant.
type Kind string

const (
	KindConstant    Kind = "constant"
	KindLinear      Kind = "linear"
	KindPolynomial  Kind = "polynomial"
	KindExponential Kind = "exponential"
	KindExpression  Kind = "expression"
)

// MaxPolynomialDegree bounds polynomial formulas to the degree the spec
// allows (0-3, i.e. up to 4 coefficients).
const MaxPolynomialDegree = 3

// MaxExpressionNestingDepth bounds how deeply an expression formula may
// nest brackets before it is rejected, guarding against pathological or
// adversarial content packs.
const MaxExpressionNestingDepth = 64

// Formula is a tagged-union numeric formula. Only the fields relevant to
// Kind are read.
type Formula struct {
	Kind Kind `yaml:"kind"`

	Constant float64 `yaml:"constant,omitempty"`

	LinearBase  float64 `yaml:"base,omitempty"`
	LinearSlope float64 `yaml:"slope,omitempty"`

	PolynomialCoefficients []float64 `yaml:"coefficients,omitempty"`

	ExponentialBase   float64 `yaml:"expBase,omitempty"`
	ExponentialGrowth float64 `yaml:"growth,omitempty"`
	ExponentialOffset float64 `yaml:"offset,omitempty"`

	Expression string `yaml:"expression,omitempty"`
}

// Variables is the scalar evaluation context every formula kind receives.
type Variables struct {
	Level     float64
	Time      float64
	DeltaTime float64
}

// EntityResolver resolves an entity id to a numeric value for expression
// formulas. The second return value is false when the id is unknown.
type EntityResolver interface {
	Resource(id string) (float64, bool)
	Generator(id string) (float64, bool)
	Upgrade(id string) (float64, bool)
	Automation(id string) (float64, bool)
	PrestigeLayer(id string) (float64, bool)
}

// Context bundles the variables and entity lookups a formula may reference.
type Context struct {
	Variables Variables
	Entities  EntityResolver
}

// Evaluator evaluates NumericFormula values. The zero value is not usable;
// construct with NewEvaluator.
type Evaluator struct {
	cache *exprcache.Cache
}

// NewEvaluator builds an Evaluator whose expression variant shares an
// LRU-cached compile step across repeated evaluations of the same source.
func NewEvaluator(expressionCacheCapacity int) *Evaluator {
	return &Evaluator{cache: exprcache.New(expressionCacheCapacity)}
}

// Evaluate computes formula's value in ctx. It returns a FormulaError when
// the variant is unknown, and an error wrapping simerrors.ErrFormulaNonFinite
// or simerrors.ErrFormulaUnknownRef when the result is non-finite or an
// expression formula references an unknown entity.
func (e *Evaluator) Evaluate(f Formula, ctx Context) (float64, error) {
	switch f.Kind {
	case KindConstant:
		return finite(f.Constant, "constant")
	case KindLinear:
		return finite(f.LinearBase+f.LinearSlope*ctx.Variables.Level, "linear")
	case KindPolynomial:
		return e.evaluatePolynomial(f, ctx)
	case KindExponential:
		value := f.ExponentialBase*math.Pow(f.ExponentialGrowth, ctx.Variables.Level) + f.ExponentialOffset
		return finite(value, "exponential")
	case KindExpression:
		return e.evaluateExpression(f, ctx)
	default:
		return 0, &simerrors.FormulaError{Kind: string(f.Kind), Message: "unrecognized formula kind"}
	}
}

func (e *Evaluator) evaluatePolynomial(f Formula, ctx Context) (float64, error) {
	if len(f.PolynomialCoefficients) == 0 || len(f.PolynomialCoefficients) > MaxPolynomialDegree+1 {
		return 0, &simerrors.FormulaError{
			Kind:    string(KindPolynomial),
			Message: fmt.Sprintf("polynomial must declare between 1 and %d coefficients", MaxPolynomialDegree+1),
		}
	}

	x := ctx.Variables.Level
	result := 0.0
	power := 1.0
	for _, coefficient := range f.PolynomialCoefficients {
		result += coefficient * power
		power *= x
	}
	return finite(result, "polynomial")
}

func (e *Evaluator) evaluateExpression(f Formula, ctx Context) (float64, error) {
	if depth := maxBracketDepth(f.Expression); depth > MaxExpressionNestingDepth {
		return 0, &simerrors.FormulaError{
			Kind:    string(KindExpression),
			Message: fmt.Sprintf("expression nesting depth %d exceeds limit %d", depth, MaxExpressionNestingDepth),
		}
	}

	env := expressionEnv(ctx)

	program, err := e.cache.CompileAndCache(f.Expression, func() (*vm.Program, error) {
		return expr.Compile(f.Expression, expr.Env(env), expr.AsFloat64())
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", simerrors.ErrExpressionCompileFailed, err)
	}

	result, err := expr.Run(program, env)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", simerrors.ErrFormulaNonFinite, err)
	}

	value, ok := result.(float64)
	if !ok {
		return 0, &simerrors.FormulaError{Kind: string(KindExpression), Message: "expression did not evaluate to a number"}
	}

	if math.IsNaN(value) {
		return 0, fmt.Errorf("%w: expression %q referenced an unknown entity", simerrors.ErrFormulaUnknownRef, f.Expression)
	}

	return finite(value, "expression")
}

func expressionEnv(ctx Context) map[string]any {
	resolve := func(lookup func(string) (float64, bool)) func(string) float64 {
		return func(id string) float64 {
			value, ok := lookup(id)
			if !ok {
				return math.NaN()
			}
			return value
		}
	}

	entities := ctx.Entities
	if entities == nil {
		entities = noopResolver{}
	}

	return map[string]any{
		"level":         ctx.Variables.Level,
		"time":          ctx.Variables.Time,
		"deltaTime":     ctx.Variables.DeltaTime,
		"resource":      resolve(entities.Resource),
		"generator":     resolve(entities.Generator),
		"upgrade":       resolve(entities.Upgrade),
		"automation":    resolve(entities.Automation),
		"prestigeLayer": resolve(entities.PrestigeLayer),
	}
}

type noopResolver struct{}

func (noopResolver) Resource(string) (float64, bool)      { return 0, false }
func (noopResolver) Generator(string) (float64, bool)     { return 0, false }
func (noopResolver) Upgrade(string) (float64, bool)       { return 0, false }
func (noopResolver) Automation(string) (float64, bool)    { return 0, false }
func (noopResolver) PrestigeLayer(string) (float64, bool) { return 0, false }

func finite(value float64, kind string) (float64, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: %s produced %v", simerrors.ErrFormulaNonFinite, kind, value)
	}
	return value, nil
}

// maxBracketDepth returns the deepest nesting of (), [], or {} in source,
// used as a cheap, dependency-free proxy for expression complexity.
func maxBracketDepth(source string) int {
	depth, max := 0, 0
	for _, r := range source {
		switch r {
		case '(', '[', '{':
			depth++
			if depth > max {
				max = depth
			}
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		}
	}
	return max
}
