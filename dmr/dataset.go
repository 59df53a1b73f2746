package dmr

import (
	"math"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/methyl/corr"
)

// Dataset is one prepared dataset: sites sorted by (chromosome,
// position) with all p-values filled in, plus the banded correlation
// structure aligned to them.  Both are read-only for the lifetime of
// any pipeline invocation.
type Dataset struct {
	Sites []Site
	Band  *corr.Banded
}

// Prepare validates and sorts a site table, permutes the measurement
// matrix rows to match, derives missing p-values, and estimates the
// banded correlation structure.  The inputs are copied; the caller's
// slices are not mutated.
func Prepare(sites []Site, meth [][]float64, opts Opts) (*Dataset, error) {
	if len(meth) != len(sites) {
		return nil, errors.E("dmr.Prepare: measurement matrix has", len(meth), "rows for", len(sites), "sites")
	}
	perm := sortPerm(sites)
	sorted := make([]Site, len(sites))
	rows := make([][]float64, len(meth))
	chroms := make([]string, len(sites))
	seen := make(map[string]bool, len(sites))
	for i, p := range perm {
		s := sites[p]
		if seen[s.ID] {
			return nil, errors.E("dmr.Prepare: duplicate site id", s.ID)
		}
		seen[s.ID] = true
		if !(s.StdErr > 0) {
			return nil, errors.E("dmr.Prepare: site", s.ID, "has non-positive standard error")
		}
		if math.IsNaN(s.P) {
			s.P = normalP(s.Estimate / s.StdErr)
		} else if s.P < 0 || s.P > 1 {
			return nil, errors.E("dmr.Prepare: site", s.ID, "has p-value outside [0,1]")
		}
		sorted[i] = s
		rows[i] = meth[p]
		chroms[i] = s.Chrom
	}
	band, err := corr.Estimate(rows, chroms, opts.Bandwidth)
	if err != nil {
		return nil, err
	}
	return &Dataset{Sites: sorted, Band: band}, nil
}

// check verifies that the correlation structure is aligned with the
// site table.  Prepare always builds an aligned pair, but both fields
// are exported; a caller-assembled Dataset must be rejected here
// rather than fault deep inside the engine.
func (d *Dataset) check() error {
	n := 0
	if d.Band != nil {
		n = d.Band.NSites()
	}
	if n != len(d.Sites) {
		return errors.E("dmr: correlation structure covers", n, "sites for a table of", len(d.Sites))
	}
	return nil
}

// Identify runs the full single-dataset pipeline: candidate detection,
// per-candidate shrinking, and collation with the global
// multiple-testing correction.  Regions are returned in candidate
// discovery order; filtering (e.g. dropping size-1 regions) is up to
// the caller.
func (d *Dataset) Identify(opts Opts) ([]DMR, Stats, error) {
	if err := d.check(); err != nil {
		return nil, Stats{}, err
	}
	dmrs, stats := run(d.Sites, func() spanScorer {
		return newCorrScorer(d.Sites, d.Band)
	}, opts)
	return dmrs, stats, nil
}

// Identify is the single-dataset entry point: Prepare followed by
// Dataset.Identify.
func Identify(sites []Site, meth [][]float64, opts Opts) ([]DMR, Stats, error) {
	d, err := Prepare(sites, meth, opts)
	if err != nil {
		return nil, Stats{}, err
	}
	return d.Identify(opts)
}
