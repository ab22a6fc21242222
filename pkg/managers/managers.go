// Package managers implements the per-domain generator, upgrade,
// achievement, prestige, and metric state the progression coordinator
// wires together each tick. Every manager consumes a condition.Context and
// a formula.EntityResolver supplied by the coordinator rather than reaching
// into global state.
package managers

// Clock carries the formula-context time variables a manager needs for
// per-tick evaluation. The coordinator updates it once per tick via
// SetClock before calling UpdateForStep.
type Clock struct {
	Time      float64
	DeltaTime float64
}

// Cost is a (resourceId, amount) pair a purchase requires.
type Cost struct {
	ResourceID string
	Amount     float64
}

// ResourceRate is a (resourceId, perSecond) pair computed for the current
// tick's production or consumption view.
type ResourceRate struct {
	ResourceID string
	PerSecond  float64
}

// multiplierAccumulator composes per-target multiplier and additive-bonus
// upgrade effects into a single factor: product(multipliers) applied on top
// of (1 + sum(additives)), so additive bonuses stack before multipliers
// compound. A Multiplier of exactly 0 is treated as "not set" (an upgrade
// effect that legitimately wants to zero a rate is a degenerate case the
// content pack should express as a capacity/unlock change instead).
type multiplierAccumulator struct {
	additive map[string]float64
	product  map[string]float64
}

func newMultiplierAccumulator() multiplierAccumulator {
	return multiplierAccumulator{additive: map[string]float64{}, product: map[string]float64{}}
}

func (a multiplierAccumulator) add(id string, multiplier, additive float64) {
	if additive != 0 {
		a.additive[id] += additive
	}
	if multiplier != 0 {
		if _, ok := a.product[id]; !ok {
			a.product[id] = 1
		}
		a.product[id] *= multiplier
	}
}

func (a multiplierAccumulator) resolve() map[string]float64 {
	result := make(map[string]float64, len(a.product)+len(a.additive))
	for id, p := range a.product {
		result[id] = (1 + a.additive[id]) * p
	}
	for id, add := range a.additive {
		if _, ok := result[id]; !ok {
			result[id] = 1 + add
		}
	}
	return result
}

func multiplierOrDefault(m map[string]float64, id string) float64 {
	if v, ok := m[id]; ok {
		return v
	}
	return 1
}
