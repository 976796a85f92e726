package resolution

import "normlex/pkg/types"

// sameObligation reports whether two requirements describe the same
// obligation: exact category match and description similarity above the
// configured threshold.
func (r *Resolver) sameObligation(a, b *types.Requirement) bool {
	if a.Category != b.Category {
		return false
	}
	return r.similarity(a.Description, b.Description) > r.requirementMatch
}

// partitionRequirements splits two requirement lists into the obligations
// both sides share (represented by a's copy), the ones only a imposes and
// the ones only b imposes. Relative to the same-obligation rule no
// requirement is lost or duplicated.
func (r *Resolver) partitionRequirements(a, b []types.Requirement) (common, uniqueA, uniqueB []types.Requirement) {
	common = []types.Requirement{}
	uniqueA = []types.Requirement{}
	uniqueB = []types.Requirement{}

	matchedB := make([]bool, len(b))

	for i := range a {
		matched := false
		for j := range b {
			if r.sameObligation(&a[i], &b[j]) {
				matched = true
				matchedB[j] = true
			}
		}
		if matched {
			common = append(common, a[i].Clone())
		} else {
			uniqueA = append(uniqueA, a[i].Clone())
		}
	}

	for j := range b {
		if !matchedB[j] {
			uniqueB = append(uniqueB, b[j].Clone())
		}
	}

	return common, uniqueA, uniqueB
}
