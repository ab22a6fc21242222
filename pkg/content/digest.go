package content

import "github.com/hansjm10/idle-simcore/pkg/digest"

// computeStableDigest hashes an ordered sequence of resource ids. See
// pkg/digest for the algorithm; this wraps it in the Pack-facing result
// shape that also carries the source ids and a version counter.
func computeStableDigest(ids []string) ResourceDefinitionDigest {
	return ResourceDefinitionDigest{
		IDs:     append([]string(nil), ids...),
		Version: len(ids),
		Hash:    digest.ComputeStable(ids),
	}
}
