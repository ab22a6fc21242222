package content

import "sort"

// normalize deduplicates locales/metrics, sorts each collection by id, builds
// the lookup index, and computes the resource-definition digest. Called
// only once structural/entity/semantic refinement have reported zero
// errors.
func (v *Validator) normalize(raw Pack) *NormalizedPack {
	resources := append([]Resource(nil), raw.Resources...)
	sort.Slice(resources, func(i, j int) bool { return resources[i].ID < resources[j].ID })

	generators := append([]Generator(nil), raw.Generators...)
	sort.Slice(generators, func(i, j int) bool { return generators[i].ID < generators[j].ID })

	upgrades := append([]Upgrade(nil), raw.Upgrades...)
	sort.Slice(upgrades, func(i, j int) bool { return upgrades[i].ID < upgrades[j].ID })

	achievements := append([]Achievement(nil), raw.Achievements...)
	sort.Slice(achievements, func(i, j int) bool { return achievements[i].ID < achievements[j].ID })

	prestigeLayers := append([]PrestigeLayer(nil), raw.PrestigeLayers...)
	sort.Slice(prestigeLayers, func(i, j int) bool { return prestigeLayers[i].ID < prestigeLayers[j].ID })

	transforms := append([]Transform(nil), raw.Transforms...)
	sort.Slice(transforms, func(i, j int) bool { return transforms[i].ID < transforms[j].ID })

	metrics := dedupeSorted(raw.Metrics)

	lookup := Lookup{
		Resources:      map[string]*Resource{},
		Generators:     map[string]*Generator{},
		Upgrades:       map[string]*Upgrade{},
		Achievements:   map[string]*Achievement{},
		PrestigeLayers: map[string]*PrestigeLayer{},
		Transforms:     map[string]*Transform{},
		Metrics:        map[string]struct{}{},
	}
	for i := range resources {
		lookup.Resources[resources[i].ID] = &resources[i]
	}
	for i := range generators {
		lookup.Generators[generators[i].ID] = &generators[i]
	}
	for i := range upgrades {
		lookup.Upgrades[upgrades[i].ID] = &upgrades[i]
	}
	for i := range achievements {
		lookup.Achievements[achievements[i].ID] = &achievements[i]
	}
	for i := range prestigeLayers {
		lookup.PrestigeLayers[prestigeLayers[i].ID] = &prestigeLayers[i]
	}
	for i := range transforms {
		lookup.Transforms[transforms[i].ID] = &transforms[i]
	}
	for _, m := range metrics {
		lookup.Metrics[m] = struct{}{}
	}

	digest := computeStableDigest(idsOf(resources, func(r Resource) string { return r.ID }))

	return &NormalizedPack{
		Engine:           raw.Engine,
		SupportedLocales: dedupeSorted(raw.SupportedLocales),
		Resources:        resources,
		Generators:       generators,
		Upgrades:         upgrades,
		Achievements:     achievements,
		PrestigeLayers:   prestigeLayers,
		Transforms:       transforms,
		Metrics:          metrics,
		Lookup:           lookup,
		Digest:           digest,
	}
}

func dedupeSorted(items []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}
