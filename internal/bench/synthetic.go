// Package bench builds deterministic synthetic content packs and measures
// per-tick latency and validation-cache hit ratio against them, the way the
// teacher's cache benchmarks exercise a cache implementation against
// generated load rather than recorded production traffic.
package bench

import (
	"fmt"

	"github.com/hansjm10/idle-simcore/pkg/condition"
	"github.com/hansjm10/idle-simcore/pkg/content"
	"github.com/hansjm10/idle-simcore/pkg/formula"
)

// SyntheticSize controls how large a generated pack is. Every field scales
// linearly with ResourceCount/GeneratorCount so a caller can reason about
// asymptotic cost directly from the counts it passed in.
type SyntheticSize struct {
	ResourceCount  int
	GeneratorCount int
}

// GeneratePack builds a content.Pack of the requested size, fully
// deterministic for a given size: the same SyntheticSize always produces
// byte-identical ids, formulas, and conditions, so two bench runs over the
// same size are directly comparable.
//
// Resource i unlocks once resource (i-1) reaches amount 10 (resource 0 is
// always unlocked), forming a single unlock chain long enough to exercise
// the condition evaluator on every tick. Generator i is always
// unlocked and produces resource (i % ResourceCount), so every tick's rate
// recompute touches every resource regardless of how far the unlock chain
// has progressed.
func GeneratePack(size SyntheticSize) content.Pack {
	pack := content.Pack{
		Engine:    1,
		Resources: make([]content.Resource, size.ResourceCount),
	}

	for i := 0; i < size.ResourceCount; i++ {
		r := content.Resource{
			ID:          fmt.Sprintf("resource-%d", i),
			Name:        content.LocalizedText{Default: fmt.Sprintf("Resource %d", i)},
			Category:    content.ResourceCategoryPrimary,
			Tier:        1,
			StartAmount: 0,
			Unlocked:    i == 0,
			Visible:     true,
		}
		if i > 0 {
			cond := condition.Condition{
				Kind:       condition.KindResourceThreshold,
				ResourceID: fmt.Sprintf("resource-%d", i-1),
				Comparator: condition.ComparatorGTE,
				Amount:     10,
			}
			r.UnlockCondition = &cond
		}
		pack.Resources[i] = r
	}

	if size.ResourceCount > 0 {
		pack.Generators = make([]content.Generator, size.GeneratorCount)
		for i := 0; i < size.GeneratorCount; i++ {
			resourceID := fmt.Sprintf("resource-%d", i%size.ResourceCount)
			pack.Generators[i] = content.Generator{
				ID:           fmt.Sprintf("generator-%d", i),
				Name:         content.LocalizedText{Default: fmt.Sprintf("Generator %d", i)},
				InitialLevel: 1,
				Produces: []content.ResourceFlow{{
					ResourceID: resourceID,
					Rate:       formula.Formula{Kind: formula.KindConstant, Constant: 1},
				}},
				Purchase: content.PurchaseCost{
					CurrencyID:     resourceID,
					CostMultiplier: 1.15,
					CostCurve:      formula.Formula{Kind: formula.KindLinear, LinearBase: 10, LinearSlope: 1},
				},
				BaseUnlock: condition.Condition{Kind: condition.KindAlways},
			}
		}
	}

	return pack
}
