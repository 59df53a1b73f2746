package dmr

import (
	"math"

	"github.com/grailbio/base/errors"
)

// MetaSite is one site of the cross-dataset combined table: the
// independent inverse-variance-weighted combination of the site's
// per-dataset statistics.
type MetaSite struct {
	ID                     string
	Chrom                  string
	Pos                    int
	Estimate, StdErr, Z, P float64
}

// Meta is the multi-dataset entry point.  It combines per-site
// statistics across datasets over the intersection of site ids present
// in every dataset, detects candidate regions on the combined table,
// and shrinks each candidate with a two-level scorer: within each
// dataset the correlated combination over that dataset's own banded
// structure, then the independent combination of the per-dataset
// results.  Datasets are independent studies, so no cross-dataset
// correlation term exists; within-dataset correlation and
// across-dataset independence are combined at separate levels rather
// than conflated into one covariance matrix.
//
// An empty intersection yields empty outputs, not an error.
func Meta(datasets []*Dataset, opts Opts) ([]MetaSite, []DMR, Stats, error) {
	if len(datasets) < 2 {
		return nil, nil, Stats{}, errors.E("dmr.Meta: need at least 2 datasets, got", len(datasets))
	}
	for d, ds := range datasets {
		if err := ds.check(); err != nil {
			return nil, nil, Stats{}, errors.E("dmr.Meta: dataset", d, err)
		}
	}
	// id -> site index, per dataset.
	indexes := make([]map[string]int, len(datasets))
	for d, ds := range datasets {
		idx := make(map[string]int, len(ds.Sites))
		for i, s := range ds.Sites {
			idx[s.ID] = i
		}
		indexes[d] = idx
	}

	// Intersection, in dataset 0's sort order.  Coordinates are taken
	// from dataset 0.
	var table []Site
	var meta []MetaSite
	var dsIdx [][]int // per combined-table row, the index in each dataset
	bs := make([]float64, len(datasets))
	ss := make([]float64, len(datasets))
	for i0, s0 := range datasets[0].Sites {
		rowIdx := make([]int, len(datasets))
		rowIdx[0] = i0
		ok := true
		for d := 1; d < len(datasets); d++ {
			i, found := indexes[d][s0.ID]
			if !found {
				ok = false
				break
			}
			rowIdx[d] = i
		}
		if !ok {
			continue
		}
		for d, ds := range datasets {
			site := ds.Sites[rowIdx[d]]
			bs[d] = site.Estimate
			ss[d] = site.StdErr * site.StdErr
		}
		res := ivw(bs, ss)
		z := res.z()
		p := normalP(z)
		meta = append(meta, MetaSite{
			ID:       s0.ID,
			Chrom:    s0.Chrom,
			Pos:      s0.Pos,
			Estimate: res.b,
			StdErr:   math.Sqrt(res.s),
			Z:        z,
			P:        p,
		})
		table = append(table, Site{
			ID:       s0.ID,
			Chrom:    s0.Chrom,
			Pos:      s0.Pos,
			Estimate: res.b,
			StdErr:   math.Sqrt(res.s),
			P:        p,
		})
		dsIdx = append(dsIdx, rowIdx)
	}
	if len(table) == 0 {
		return nil, nil, Stats{}, nil
	}
	dmrs, stats := run(table, func() spanScorer {
		return newMetaScorer(datasets, dsIdx)
	}, opts)
	return meta, dmrs, stats, nil
}

// metaScorer scores spans of the combined table by recomputing, per
// dataset, the correlated combination over that dataset's own indices
// for the span's site ids, then combining the per-dataset results by
// independent inverse-variance weighting.  A dataset whose span
// exceeds its correlation bandwidth contributes the conservative null
// (B=0, S=1) to the combination.
type metaScorer struct {
	datasets []*Dataset
	dsIdx    [][]int

	nBand  int
	nSolve int

	idx []int
	est []float64
	se  []float64
	bs  []float64
	ss  []float64
}

func newMetaScorer(datasets []*Dataset, dsIdx [][]int) *metaScorer {
	return &metaScorer{
		datasets: datasets,
		dsIdx:    dsIdx,
		bs:       make([]float64, len(datasets)),
		ss:       make([]float64, len(datasets)),
	}
}

func (m *metaScorer) score(start, end int) combined {
	for d, ds := range m.datasets {
		m.idx = m.idx[:0]
		m.est = m.est[:0]
		m.se = m.se[:0]
		for row := start; row <= end; row++ {
			i := m.dsIdx[row][d]
			m.idx = append(m.idx, i)
			m.est = append(m.est, ds.Sites[i].Estimate)
			m.se = append(m.se, ds.Sites[i].StdErr)
		}
		var res combined
		if len(m.idx) == 1 {
			res = combined{b: m.est[0], s: m.se[0] * m.se[0]}
		} else {
			var kind fallbackKind
			res, kind = combineCorrelated(m.est, m.se, ds.Band, m.idx)
			switch kind {
			case fallbackBand:
				m.nBand++
			case fallbackSolve:
				m.nSolve++
			}
		}
		m.bs[d] = res.b
		m.ss[d] = res.s
	}
	return ivw(m.bs, m.ss)
}

func (m *metaScorer) fallbacks() (int, int) { return m.nBand, m.nSolve }
