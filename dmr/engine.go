package dmr

import (
	"math"

	"github.com/grailbio/methyl/corr"
	"gonum.org/v1/gonum/mat"
)

// diagBoost is the correlation-matrix diagonal used when the plain
// factorization fails.  Inflating the self-correlation slightly above
// one regularizes near-singular covariance, which occurs when a span
// is large relative to the correlation bandwidth.
const diagBoost = 1.05

// combined is the result of one fixed-effects combination: estimate B
// and variance S.  z = B/sqrt(S).
type combined struct {
	b, s float64
}

func (c combined) z() float64 { return c.b / math.Sqrt(c.s) }

// nullCombined is the conservative fallback assigned to spans whose
// correlation structure is unknown or numerically degenerate: a null,
// non-significant result rather than a guess.
var nullCombined = combined{b: 0, s: 1}

// spanScorer scores contiguous spans of one site table.  score is the
// correlated meta-analysis engine behind the shrinker; implementations
// keep their own fallback counters and fold them into Stats afterward.
type spanScorer interface {
	// score combines sites [start, end] (inclusive indices into the
	// table the scorer was built for).
	score(start, end int) combined
	// fallbacks reports how many scored spans received the null
	// result, split into bandwidth-exceeded and failed-solve counts.
	fallbacks() (band, solve int)
}

// corrScorer scores spans of a single dataset using its banded
// correlation structure.
type corrScorer struct {
	sites []Site
	band  *corr.Banded

	nBand  int
	nSolve int

	// scratch, reused across score calls.
	idx []int
	est []float64
	se  []float64
}

func newCorrScorer(sites []Site, band *corr.Banded) *corrScorer {
	return &corrScorer{sites: sites, band: band}
}

func (c *corrScorer) score(start, end int) combined {
	k := end - start + 1
	if k == 1 {
		site := c.sites[start]
		return combined{b: site.Estimate, s: site.StdErr * site.StdErr}
	}
	if k > c.band.W+1 {
		c.nBand++
		return nullCombined
	}
	c.idx = c.idx[:0]
	c.est = c.est[:0]
	c.se = c.se[:0]
	for i := start; i <= end; i++ {
		c.idx = append(c.idx, i)
		c.est = append(c.est, c.sites[i].Estimate)
		c.se = append(c.se, c.sites[i].StdErr)
	}
	res, kind := combineCorrelated(c.est, c.se, c.band, c.idx)
	switch kind {
	case fallbackBand:
		c.nBand++
	case fallbackSolve:
		c.nSolve++
	}
	return res
}

func (c *corrScorer) fallbacks() (int, int) { return c.nBand, c.nSolve }

type fallbackKind int

const (
	fallbackNone fallbackKind = iota
	fallbackBand
	fallbackSolve
)

// combineCorrelated runs the generalized inverse-variance-weighted
// fixed-effects combination of correlated estimates.  idx locates the
// estimates in band's site table; the reconstructed correlation matrix
// is first attempted with unit diagonal so that uncorrelated inputs
// reproduce the independent combination, then retried with the
// diagBoost regularizer, and finally given up as the null result.
func combineCorrelated(est, se []float64, band *corr.Banded, idx []int) (combined, fallbackKind) {
	r, ok := band.Dense(idx, 1)
	if !ok {
		return nullCombined, fallbackBand
	}
	if res, ok := glsCombine(est, se, r); ok {
		return res, fallbackNone
	}
	r, _ = band.Dense(idx, diagBoost)
	if res, ok := glsCombine(est, se, r); ok {
		return res, fallbackNone
	}
	return nullCombined, fallbackSolve
}

// glsCombine computes B = S * 1' Sigma^-1 est and S = 1/(1' Sigma^-1 1)
// for Sigma = diag(se) * r * diag(se).  ok=false means the
// factorization failed or produced a non-positive weight sum.
func glsCombine(est, se []float64, r *mat.SymDense) (combined, bool) {
	k := len(est)
	sigma := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			sigma.SetSym(i, j, r.At(i, j)*se[i]*se[j])
		}
	}
	var chol mat.Cholesky
	if !chol.Factorize(sigma) {
		return nullCombined, false
	}
	ones := mat.NewVecDense(k, nil)
	for i := 0; i < k; i++ {
		ones.SetVec(i, 1)
	}
	var x mat.VecDense
	if err := chol.SolveVecTo(&x, ones); err != nil {
		return nullCombined, false
	}
	den := mat.Dot(&x, ones)
	if !(den > 0) || math.IsInf(den, 0) {
		return nullCombined, false
	}
	s := 1 / den
	num := 0.0
	for i := 0; i < k; i++ {
		num += x.AtVec(i) * est[i]
	}
	return combined{b: s * num, s: s}, true
}

// ivw is the standard inverse-variance-weighted combination of
// independent (estimate, variance) pairs, used across datasets where
// no correlation term exists.
func ivw(b, s []float64) combined {
	var num, den float64
	for i := range b {
		w := 1 / s[i]
		num += b[i] * w
		den += w
	}
	return combined{b: num / den, s: 1 / den}
}
