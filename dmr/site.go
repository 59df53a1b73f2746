package dmr

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// Site is one measured genomic position with its association-test
// statistics.  P may be NaN, in which case it is derived from
// Estimate/StdErr during preparation.
type Site struct {
	// ID uniquely identifies the site within one dataset (e.g. a
	// probe name).
	ID    string
	Chrom string
	Pos   int
	// Estimate is the association effect estimate and StdErr its
	// standard error (> 0).
	Estimate float64
	StdErr   float64
	// P is the two-sided association p-value.
	P float64
}

// Sort orders sites by (chromosome, position), the order required by
// every pipeline stage.  The sort is stable.
func Sort(sites []Site) {
	sort.SliceStable(sites, func(i, j int) bool {
		if sites[i].Chrom != sites[j].Chrom {
			return sites[i].Chrom < sites[j].Chrom
		}
		return sites[i].Pos < sites[j].Pos
	})
}

// sortPerm returns the permutation that Sort would apply, for callers
// that must reorder companion data (the measurement matrix) to match.
func sortPerm(sites []Site) []int {
	perm := make([]int, len(sites))
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool {
		i, j := perm[a], perm[b]
		if sites[i].Chrom != sites[j].Chrom {
			return sites[i].Chrom < sites[j].Chrom
		}
		return sites[i].Pos < sites[j].Pos
	})
	return perm
}

// normalP returns the two-sided standard-normal p-value for z.
func normalP(z float64) float64 {
	return 2 * distuv.UnitNormal.Survival(math.Abs(z))
}
