package dmr

import (
	"math"
	"sort"
)

// newDMR assembles the output record for one shrunk span.
func newDMR(table []Site, r shrinkResult) DMR {
	z := r.res.z()
	return DMR{
		Chrom:    table[r.start].Chrom,
		Start:    table[r.start].Pos,
		End:      table[r.end].Pos,
		N:        r.end - r.start + 1,
		StartIdx: r.start,
		EndIdx:   r.end,
		Estimate: r.res.b,
		StdErr:   math.Sqrt(r.res.s),
		Z:        z,
		P:        normalP(z),
	}
}

// adjust fills AdjP across all regions.  n is the global test count:
// one test per site in the table plus one per shrinker evaluation, so
// the correction spans every hypothesis the pipeline examined, not
// just the reported regions.
func adjust(dmrs []DMR, n int, method Adjust) {
	switch method {
	case AdjustBH:
		adjustBH(dmrs, n)
	default:
		for i := range dmrs {
			dmrs[i].AdjP = math.Min(1, dmrs[i].P*float64(n))
		}
	}
}

// adjustBH applies the Benjamini-Hochberg step-up procedure to the
// region p-values, with n (>= len(dmrs)) as denominator.
func adjustBH(dmrs []DMR, n int) {
	m := len(dmrs)
	order := make([]int, m)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return dmrs[order[a]].P < dmrs[order[b]].P
	})
	prev := 1.0
	for rank := m; rank >= 1; rank-- {
		i := order[rank-1]
		adj := dmrs[i].P * float64(n) / float64(rank)
		if adj > prev {
			adj = prev
		}
		dmrs[i].AdjP = adj
		prev = adj
	}
}
