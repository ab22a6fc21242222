package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hansjm10/idle-simcore/pkg/simerrors"
)

type fakeContext struct {
	resources map[string]float64
	generators map[string]float64
	upgrades  map[string]int
	flags     map[string]bool
	maxDepth  int
}

func newFakeContext() *fakeContext {
	return &fakeContext{
		resources:  map[string]float64{},
		generators: map[string]float64{},
		upgrades:   map[string]int{},
		flags:      map[string]bool{},
		maxDepth:   32,
	}
}

func (f *fakeContext) ResourceAmount(id string) (float64, bool)   { v, ok := f.resources[id]; return v, ok }
func (f *fakeContext) GeneratorLevel(id string) (float64, bool)   { v, ok := f.generators[id]; return v, ok }
func (f *fakeContext) UpgradePurchases(id string) (int, bool)     { v, ok := f.upgrades[id]; return v, ok }
func (f *fakeContext) PrestigeUnlocked(id string) (bool, bool)    { return false, false }
func (f *fakeContext) PrestigeCount(id string) (float64, bool)    { return 0, false }
func (f *fakeContext) PrestigeCompleted(id string) (bool, bool)   { return false, false }
func (f *fakeContext) FlagValue(id string) (bool, bool)           { v, ok := f.flags[id]; return v, ok }
func (f *fakeContext) EvaluateScript(id string) (bool, error)     { return id == "always-true", nil }
func (f *fakeContext) DisplayName(kind, id string) string         { return id }
func (f *fakeContext) MaxConditionDepth() int                     { return f.maxDepth }

func TestEvaluate_AlwaysNever(t *testing.T) {
	e := NewEvaluator()
	ctx := newFakeContext()

	result, err := e.Evaluate(Condition{Kind: KindAlways}, ctx)
	require.NoError(t, err)
	assert.True(t, result)

	result, err = e.Evaluate(Condition{Kind: KindNever}, ctx)
	require.NoError(t, err)
	assert.False(t, result)
}

func TestEvaluate_ResourceThreshold(t *testing.T) {
	e := NewEvaluator()
	ctx := newFakeContext()
	ctx.resources["gold"] = 150

	cond := Condition{Kind: KindResourceThreshold, ResourceID: "gold", Comparator: ComparatorGTE, Amount: 100}
	result, err := e.Evaluate(cond, ctx)
	require.NoError(t, err)
	assert.True(t, result)

	cond.Amount = 200
	result, err = e.Evaluate(cond, ctx)
	require.NoError(t, err)
	assert.False(t, result)
}

func TestEvaluate_ResourceThreshold_MissingResourceIsFalse(t *testing.T) {
	e := NewEvaluator()
	ctx := newFakeContext()
	cond := Condition{Kind: KindResourceThreshold, ResourceID: "missing", Comparator: ComparatorGTE, Amount: 1}
	result, err := e.Evaluate(cond, ctx)
	require.NoError(t, err)
	assert.False(t, result)
}

func TestEvaluate_AllOf_EmptyIsTrue(t *testing.T) {
	e := NewEvaluator()
	result, err := e.Evaluate(Condition{Kind: KindAllOf}, newFakeContext())
	require.NoError(t, err)
	assert.True(t, result)
}

func TestEvaluate_AnyOf_EmptyIsFalse(t *testing.T) {
	e := NewEvaluator()
	result, err := e.Evaluate(Condition{Kind: KindAnyOf}, newFakeContext())
	require.NoError(t, err)
	assert.False(t, result)
}

func TestEvaluate_AllOf_ShortCircuitsOnFalse(t *testing.T) {
	e := NewEvaluator()
	ctx := newFakeContext()
	cond := Condition{Kind: KindAllOf, Conditions: []Condition{
		{Kind: KindNever},
		{Kind: KindAlways},
	}}
	result, err := e.Evaluate(cond, ctx)
	require.NoError(t, err)
	assert.False(t, result)
}

func TestEvaluate_Not(t *testing.T) {
	e := NewEvaluator()
	inner := Condition{Kind: KindAlways}
	cond := Condition{Kind: KindNot, Inner: &inner}
	result, err := e.Evaluate(cond, newFakeContext())
	require.NoError(t, err)
	assert.False(t, result)
}

func TestEvaluate_DepthExceeded(t *testing.T) {
	e := NewEvaluator()
	ctx := newFakeContext()
	ctx.maxDepth = 2

	deepest := Condition{Kind: KindAlways}
	level1 := Condition{Kind: KindAllOf, Conditions: []Condition{deepest}}
	level2 := Condition{Kind: KindAllOf, Conditions: []Condition{level1}}
	level3 := Condition{Kind: KindAllOf, Conditions: []Condition{level2}}

	_, err := e.Evaluate(level3, ctx)
	assert.ErrorIs(t, err, simerrors.ErrConditionDepthExceeded)
}

func TestEvaluate_EqNeqUseEpsilon(t *testing.T) {
	e := NewEvaluator()
	ctx := newFakeContext()
	ctx.resources["energy"] = 100 + 5e-10

	cond := Condition{Kind: KindResourceThreshold, ResourceID: "energy", Comparator: ComparatorEQ, Amount: 100}
	result, err := e.Evaluate(cond, ctx)
	require.NoError(t, err)
	assert.True(t, result)
}

func TestEvaluate_Script(t *testing.T) {
	e := NewEvaluator()
	ctx := newFakeContext()

	result, err := e.Evaluate(Condition{Kind: KindScript, ScriptID: "always-true"}, ctx)
	require.NoError(t, err)
	assert.True(t, result)
}

func TestDescribe_ResourceThreshold(t *testing.T) {
	e := NewEvaluator()
	ctx := newFakeContext()
	cond := Condition{Kind: KindResourceThreshold, ResourceID: "Energy", Comparator: ComparatorGTE, Amount: 100}
	assert.Equal(t, "Reach Energy >= 100", e.Describe(cond, ctx))
}

func TestResolveReferences_IncludesAnyOfAndNot(t *testing.T) {
	inner := Condition{Kind: KindResourceThreshold, ResourceID: "stone"}
	cond := Condition{Kind: KindAnyOf, Conditions: []Condition{
		{Kind: KindResourceThreshold, ResourceID: "wood"},
		{Kind: KindNot, Inner: &inner},
	}}

	refs := ResolveReferences(cond)
	assert.Contains(t, refs.ResourceIDs, "wood")
	assert.Contains(t, refs.ResourceIDs, "stone")
}

func TestDependencyEdges_ExcludesAnyOfAndNotAndSelfReference(t *testing.T) {
	innerNot := Condition{Kind: KindResourceThreshold, ResourceID: "stone"}
	cond := Condition{Kind: KindAnyOf, Conditions: []Condition{
		{Kind: KindResourceThreshold, ResourceID: "wood"},
		{Kind: KindNot, Inner: &innerNot},
	}}

	refs := DependencyEdges(cond, "self")
	assert.Empty(t, refs.ResourceIDs)

	selfRef := Condition{Kind: KindAllOf, Conditions: []Condition{
		{Kind: KindResourceThreshold, ResourceID: "self"},
		{Kind: KindResourceThreshold, ResourceID: "other"},
	}}
	refs = DependencyEdges(selfRef, "self")
	assert.NotContains(t, refs.ResourceIDs, "self")
	assert.Contains(t, refs.ResourceIDs, "other")
}
