// Package migration implements the digest-keyed migration graph: sequential
// transforms that carry a serialized resource save from an older content
// pack's digest to the current one, found by breadth-first search over the
// registered migration edges.
package migration

import (
	"github.com/google/uuid"

	"github.com/hansjm10/idle-simcore/pkg/resourcestate"
)

// Transform maps a save from its current shape to the next digest's shape.
// Transforms run synchronously and must be deterministic: same input, same
// output, every time.
type Transform func(resourcestate.Serialized) (resourcestate.Serialized, error)

// Migration is one registered edge in the digest graph.
type Migration struct {
	ID         string
	FromDigest string
	ToDigest   string
	Transform  Transform

	// RegistrationID uniquely identifies this call to Register, distinct
	// from the caller-chosen ID above: it's assigned by Register itself so
	// two edges sharing the same ID (e.g. a hotfix re-registering "v1-v2")
	// can still be told apart in telemetry and audit trails.
	RegistrationID string
}

// Registry holds every registered migration and answers path queries over
// the digest graph they form.
type Registry struct {
	migrations []Migration
	edges      map[string][]int // fromDigest -> indices into migrations, registration order
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{edges: map[string][]int{}}
}

// Register adds m as an edge fromDigest->toDigest. Order of registration
// breaks ties between equal-length paths in FindPath.
func (r *Registry) Register(m Migration) {
	if m.RegistrationID == "" {
		m.RegistrationID = uuid.NewString()
	}
	idx := len(r.migrations)
	r.migrations = append(r.migrations, m)
	r.edges[m.FromDigest] = append(r.edges[m.FromDigest], idx)
}

// Path is the result of a migration-graph search.
type Path struct {
	Found      bool
	Migrations []Migration
}

// FindPath runs breadth-first search over the digest graph from `from` to
// `to`, exploring each node's outgoing edges in registration order so that,
// among equal-length paths, the first-registered one wins. A path where
// from == to is the zero-step path: found=true, no migrations to apply.
func (r *Registry) FindPath(from, to string) Path {
	if from == to {
		return Path{Found: true}
	}

	type frontier struct {
		digest string
		steps  []int
	}

	visited := map[string]bool{from: true}
	queue := []frontier{{digest: from}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, idx := range r.edges[cur.digest] {
			m := r.migrations[idx]
			if visited[m.ToDigest] {
				continue
			}

			steps := make([]int, len(cur.steps)+1)
			copy(steps, cur.steps)
			steps[len(cur.steps)] = idx

			if m.ToDigest == to {
				migrations := make([]Migration, len(steps))
				for i, si := range steps {
					migrations[i] = r.migrations[si]
				}
				return Path{Found: true, Migrations: migrations}
			}

			visited[m.ToDigest] = true
			queue = append(queue, frontier{digest: m.ToDigest, steps: steps})
		}
	}

	return Path{Found: false}
}
