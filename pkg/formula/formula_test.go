package formula

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hansjm10/idle-simcore/pkg/simerrors"
)

func TestEvaluate_Constant(t *testing.T) {
	e := NewEvaluator(0)
	value, err := e.Evaluate(Formula{Kind: KindConstant, Constant: 42}, Context{})
	require.NoError(t, err)
	assert.Equal(t, float64(42), value)
}

func TestEvaluate_Linear(t *testing.T) {
	e := NewEvaluator(0)
	f := Formula{Kind: KindLinear, LinearBase: 10, LinearSlope: 2}
	value, err := e.Evaluate(f, Context{Variables: Variables{Level: 5}})
	require.NoError(t, err)
	assert.Equal(t, float64(20), value)
}

func TestEvaluate_Polynomial(t *testing.T) {
	e := NewEvaluator(0)
	// 1 + 2x + 3x^2 at x=2 => 1 + 4 + 12 = 17
	f := Formula{Kind: KindPolynomial, PolynomialCoefficients: []float64{1, 2, 3}}
	value, err := e.Evaluate(f, Context{Variables: Variables{Level: 2}})
	require.NoError(t, err)
	assert.Equal(t, float64(17), value)
}

func TestEvaluate_Polynomial_RejectsTooManyCoefficients(t *testing.T) {
	e := NewEvaluator(0)
	f := Formula{Kind: KindPolynomial, PolynomialCoefficients: []float64{1, 2, 3, 4, 5}}
	_, err := e.Evaluate(f, Context{})
	assert.Error(t, err)
}

func TestEvaluate_Exponential(t *testing.T) {
	e := NewEvaluator(0)
	f := Formula{Kind: KindExponential, ExponentialBase: 1, ExponentialGrowth: 2, ExponentialOffset: 0}
	value, err := e.Evaluate(f, Context{Variables: Variables{Level: 3}})
	require.NoError(t, err)
	assert.Equal(t, float64(8), value)
}

func TestEvaluate_NonFiniteIsError(t *testing.T) {
	e := NewEvaluator(0)
	f := Formula{Kind: KindExponential, ExponentialBase: math.Inf(1), ExponentialGrowth: 1}
	_, err := e.Evaluate(f, Context{})
	assert.ErrorIs(t, err, simerrors.ErrFormulaNonFinite)
}

func TestEvaluate_UnknownKind(t *testing.T) {
	e := NewEvaluator(0)
	_, err := e.Evaluate(Formula{Kind: "bogus"}, Context{})
	var formulaErr *simerrors.FormulaError
	assert.True(t, errors.As(err, &formulaErr))
}

type mapResolver map[string]float64

func (m mapResolver) Resource(id string) (float64, bool)      { v, ok := m["resource:"+id]; return v, ok }
func (m mapResolver) Generator(id string) (float64, bool)     { v, ok := m["generator:"+id]; return v, ok }
func (m mapResolver) Upgrade(id string) (float64, bool)       { v, ok := m["upgrade:"+id]; return v, ok }
func (m mapResolver) Automation(id string) (float64, bool)    { v, ok := m["automation:"+id]; return v, ok }
func (m mapResolver) PrestigeLayer(id string) (float64, bool) { v, ok := m["prestigeLayer:"+id]; return v, ok }

func TestEvaluate_Expression_UsesVariablesAndEntities(t *testing.T) {
	e := NewEvaluator(10)
	f := Formula{Kind: KindExpression, Expression: "level * 2 + resource('gold')"}
	ctx := Context{
		Variables: Variables{Level: 3},
		Entities:  mapResolver{"resource:gold": 100},
	}

	value, err := e.Evaluate(f, ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(106), value)
}

func TestEvaluate_Expression_UnknownEntityIsError(t *testing.T) {
	e := NewEvaluator(10)
	f := Formula{Kind: KindExpression, Expression: "resource('missing')"}
	_, err := e.Evaluate(f, Context{Entities: mapResolver{}})
	assert.ErrorIs(t, err, simerrors.ErrFormulaUnknownRef)
}

func TestEvaluate_Expression_CompileErrorWraps(t *testing.T) {
	e := NewEvaluator(10)
	f := Formula{Kind: KindExpression, Expression: "level +"}
	_, err := e.Evaluate(f, Context{})
	assert.ErrorIs(t, err, simerrors.ErrExpressionCompileFailed)
}

func TestEvaluate_Expression_ExceedsDepthLimit(t *testing.T) {
	e := NewEvaluator(10)
	src := ""
	for i := 0; i < MaxExpressionNestingDepth+1; i++ {
		src += "("
	}
	src += "1"
	for i := 0; i < MaxExpressionNestingDepth+1; i++ {
		src += ")"
	}

	f := Formula{Kind: KindExpression, Expression: src}
	_, err := e.Evaluate(f, Context{})
	assert.Error(t, err)
}

func TestEvaluate_Expression_CachesCompiledProgram(t *testing.T) {
	e := NewEvaluator(10)
	f := Formula{Kind: KindExpression, Expression: "level + 1"}

	_, err := e.Evaluate(f, Context{Variables: Variables{Level: 1}})
	require.NoError(t, err)
	assert.Equal(t, 1, e.cache.Len())

	_, err = e.Evaluate(f, Context{Variables: Variables{Level: 2}})
	require.NoError(t, err)
	assert.Equal(t, 1, e.cache.Len())
}
