// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*Package corr estimates between-site correlation of methylation
  measurements in a banded representation: for each site, only the
  correlations with its next W genomic neighbors are stored.  Regions
  eligible for correlated meta-analysis are bounded by a maximum-gap
  rule and therefore small, so the full N x N matrix is never needed;
  the band keeps estimation cost at O(N*W*samples).
*/
package corr

import (
	"fmt"
	"math"
	"runtime"

	"github.com/grailbio/base/traverse"
	"gonum.org/v1/gonum/mat"
)

// Banded holds, for every site i, the Pearson correlation between
// site i's measurements and those of sites i+1 .. i+W.  Entries past
// the last site of a chromosome, or past the end of the table, are
// NaN.
type Banded struct {
	// W is the bandwidth: the number of downstream neighbors each
	// site is correlated against.
	W int
	// Rho[i][k-1] is the correlation between sites i and i+k,
	// 1 <= k <= W.
	Rho [][]float64
}

// NSites returns the number of sites covered by the band.
func (b *Banded) NSites() int { return len(b.Rho) }

// Estimate computes the banded correlation structure from a
// measurement matrix with one row per site and one column per sample.
// Missing measurements are NaN and are excluded pairwise.  chrom, when
// non-nil, must have one entry per row; pairs of rows on different
// chromosomes get a NaN entry since they can never be combined.
func Estimate(meth [][]float64, chrom []string, w int) (*Banded, error) {
	if w < 1 {
		return nil, fmt.Errorf("corr: bandwidth must be at least 1, got %d", w)
	}
	n := len(meth)
	if chrom != nil && len(chrom) != n {
		return nil, fmt.Errorf("corr: %d chromosome labels for %d matrix rows", len(chrom), n)
	}
	nSamples := 0
	for i, row := range meth {
		if i == 0 {
			nSamples = len(row)
		} else if len(row) != nSamples {
			return nil, fmt.Errorf("corr: ragged measurement matrix: row 0 has %d samples, row %d has %d", nSamples, i, len(row))
		}
	}
	b := &Banded{W: w, Rho: make([][]float64, n)}
	parallelism := runtime.NumCPU()
	if parallelism > n {
		parallelism = n
	}
	if parallelism < 1 {
		parallelism = 1
	}
	err := traverse.Each(parallelism, func(job int) error {
		start := (job * n) / parallelism
		end := ((job + 1) * n) / parallelism
		for i := start; i < end; i++ {
			rho := make([]float64, w)
			for k := 1; k <= w; k++ {
				j := i + k
				if j >= n || (chrom != nil && chrom[j] != chrom[i]) {
					rho[k-1] = math.NaN()
					continue
				}
				rho[k-1] = pearson(meth[i], meth[j])
			}
			b.Rho[i] = rho
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Dense reconstructs the correlation matrix for the sites at the
// given ascending indices, with the supplied diagonal value.  It
// returns ok=false when any pairwise index distance exceeds the
// bandwidth or hits an undefined band entry; callers are expected to
// fall back to a conservative result in that case.
func (b *Banded) Dense(idx []int, diag float64) (*mat.SymDense, bool) {
	k := len(idx)
	m := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		m.SetSym(i, i, diag)
		for j := i + 1; j < k; j++ {
			d := idx[j] - idx[i]
			if d < 1 || d > b.W {
				return nil, false
			}
			r := b.Rho[idx[i]][d-1]
			if math.IsNaN(r) {
				return nil, false
			}
			m.SetSym(i, j, r)
		}
	}
	return m, true
}

// pearson computes the Pearson correlation of two equal-length
// vectors, skipping sample positions where either value is NaN.  It
// returns NaN when fewer than two complete pairs remain or either
// vector is constant.
func pearson(x, y []float64) float64 {
	var n int
	var sx, sy, sxx, syy, sxy float64
	for i := range x {
		a, b := x[i], y[i]
		if math.IsNaN(a) || math.IsNaN(b) {
			continue
		}
		n++
		sx += a
		sy += b
		sxx += a * a
		syy += b * b
		sxy += a * b
	}
	if n < 2 {
		return math.NaN()
	}
	nn := float64(n)
	vx := sxx - sx*sx/nn
	vy := syy - sy*sy/nn
	if vx <= 0 || vy <= 0 {
		return math.NaN()
	}
	return (sxy - sx*sy/nn) / math.Sqrt(vx*vy)
}
