package dmr

import (
	"runtime"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
)

// DMR is one reported region: the shrinker's chosen sub-span of a
// candidate, with its combined statistics.
type DMR struct {
	Chrom string
	// Start and End are the genomic positions of the first and last
	// constituent sites (inclusive).
	Start, End int
	// N is the number of constituent sites.
	N int
	// StartIdx and EndIdx are inclusive indices into the sorted site
	// table, for tracing back to constituent sites.
	StartIdx, EndIdx int
	// Estimate, StdErr and Z are the correlated fixed-effects
	// combination over the span.
	Estimate, StdErr, Z float64
	// P is the two-sided p-value of Z; AdjP is P after the global
	// multiple-testing correction.
	P, AdjP float64
}

// run executes the candidate-detection, shrinking and collation stages
// over a prepared site table.  newScorer must return a fresh engine
// per worker; scorers own mutable scratch and may not be shared.
func run(table []Site, newScorer func() spanScorer, opts Opts) ([]DMR, Stats) {
	cands := detect(table, opts)
	stats := Stats{Sites: len(table), Candidates: len(cands)}
	if len(cands) == 0 {
		return nil, stats
	}

	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	if parallelism > len(cands) {
		parallelism = len(cands)
	}
	results := make([]shrinkResult, len(cands))
	shardStats := make([]Stats, parallelism)
	// Candidates are independent once detected; only the final
	// correction needs the global test count.
	err := traverse.Each(parallelism, func(job int) error {
		startIdx := (job * len(cands)) / parallelism
		endIdx := ((job + 1) * len(cands)) / parallelism
		sc := newScorer()
		for i := startIdx; i < endIdx; i++ {
			results[i] = shrink(sc, cands[i])
			shardStats[job].Tests += results[i].tests
		}
		shardStats[job].BandFallbacks, shardStats[job].SolveFallbacks = sc.fallbacks()
		return nil
	})
	if err != nil {
		log.Panicf("dmr: %v", err)
	}
	for _, s := range shardStats {
		stats = stats.Merge(s)
	}

	dmrs := make([]DMR, len(results))
	for i, r := range results {
		dmrs[i] = newDMR(table, r)
	}
	adjust(dmrs, stats.Sites+stats.Tests, opts.Adjust)
	log.Printf("dmr: %d sites, %d candidates, %d tests (%d band fallbacks, %d solve fallbacks)",
		stats.Sites, stats.Candidates, stats.Tests, stats.BandFallbacks, stats.SolveFallbacks)
	return dmrs, stats
}
