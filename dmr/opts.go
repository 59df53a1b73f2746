package dmr

// Adjust selects the global multiple-testing correction applied to
// region p-values.
type Adjust string

const (
	// AdjustBonferroni multiplies each raw p-value by the total test
	// count.
	AdjustBonferroni Adjust = "bonferroni"
	// AdjustBH applies the Benjamini-Hochberg step-up procedure with
	// the total test count as denominator.
	AdjustBH Adjust = "bh"
)

type Opts struct {
	// MaxGap is the largest distance, in genomic position units,
	// allowed between consecutive sites of one candidate region.
	MaxGap int
	// PCutoff is the per-site significance threshold for candidate
	// membership.  Sites with P >= PCutoff never join a region.
	PCutoff float64
	// Bandwidth is the correlation window width W: the number of
	// downstream neighbors each site's correlation is estimated
	// against.  Spans needing correlations beyond the band receive a
	// conservative null combination instead of a guess.
	Bandwidth int
	// Parallelism bounds the number of concurrent shrink workers.
	// 0 means runtime.NumCPU().
	Parallelism int
	// Adjust is the multiple-testing correction for region p-values.
	Adjust Adjust
}

// DefaultOpts sets the default values to Opts.
var DefaultOpts = Opts{
	MaxGap:      500,
	PCutoff:     0.05,
	Bandwidth:   20,
	Parallelism: 0,
	Adjust:      AdjustBonferroni,
}
