package dmr

import (
	"math"
	"reflect"
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMeth(rows ...[]float64) [][]float64 { return rows }

func TestPrepareSortsAndAligns(t *testing.T) {
	sites := []Site{
		{ID: "c", Chrom: "2", Pos: 50, Estimate: 1, StdErr: 1, P: 0.5},
		{ID: "a", Chrom: "1", Pos: 200, Estimate: 1, StdErr: 1, P: 0.5},
		{ID: "b", Chrom: "1", Pos: 100, Estimate: 1, StdErr: 1, P: 0.5},
	}
	meth := testMeth(
		[]float64{9, 9, 9, 9},
		[]float64{1, 2, 3, 4},
		[]float64{2, 4, 6, 8},
	)
	d, err := Prepare(sites, meth, DefaultOpts)
	require.NoError(t, err)
	expect.EQ(t, d.Sites[0].ID, "b")
	expect.EQ(t, d.Sites[1].ID, "a")
	expect.EQ(t, d.Sites[2].ID, "c")
	// The matrix rows followed the sites: b and a are perfectly
	// correlated.
	assert.InDelta(t, 1.0, d.Band.Rho[0][0], 1e-12)
	// The caller's slices are untouched.
	expect.EQ(t, sites[0].ID, "c")
	expect.EQ(t, meth[0][0], 9.0)
}

func TestSort(t *testing.T) {
	sites := []Site{
		{ID: "c", Chrom: "2", Pos: 50},
		{ID: "a", Chrom: "1", Pos: 200},
		{ID: "b", Chrom: "1", Pos: 100},
	}
	Sort(sites)
	expect.EQ(t, sites[0].ID, "b")
	expect.EQ(t, sites[1].ID, "a")
	expect.EQ(t, sites[2].ID, "c")
}

func TestPrepareDerivesP(t *testing.T) {
	sites := []Site{
		{ID: "a", Chrom: "1", Pos: 100, Estimate: 1.96, StdErr: 1, P: math.NaN()},
	}
	d, err := Prepare(sites, testMeth([]float64{1, 2, 3}), DefaultOpts)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, d.Sites[0].P, 1e-3)
}

func TestPrepareErrors(t *testing.T) {
	good := Site{ID: "a", Chrom: "1", Pos: 100, Estimate: 1, StdErr: 1, P: 0.5}

	// Shape mismatch between matrix and site table.
	_, err := Prepare([]Site{good}, nil, DefaultOpts)
	require.Error(t, err)

	// Duplicate ids.
	dup := good
	dup.Pos = 200
	_, err = Prepare([]Site{good, dup}, testMeth([]float64{1, 2}, []float64{3, 4}), DefaultOpts)
	require.Error(t, err)

	// Non-positive standard error.
	bad := good
	bad.StdErr = 0
	_, err = Prepare([]Site{bad}, testMeth([]float64{1, 2}), DefaultOpts)
	require.Error(t, err)

	// Out-of-range p-value.
	bad = good
	bad.P = 1.5
	_, err = Prepare([]Site{bad}, testMeth([]float64{1, 2}), DefaultOpts)
	require.Error(t, err)
}

// identifyTestDataset builds a dataset with a zero-correlation band so
// expected region statistics reduce to independent inverse-variance
// weighting.
func identifyTestDataset() *Dataset {
	sites := []Site{
		{ID: "a", Chrom: "1", Pos: 100, Estimate: 0.5, StdErr: 0.2, P: 0.01},
		{ID: "b", Chrom: "1", Pos: 150, Estimate: 0.4, StdErr: 0.2, P: 0.02},
		{ID: "c", Chrom: "1", Pos: 600, Estimate: 0.6, StdErr: 0.2, P: 0.01},
		{ID: "d", Chrom: "1", Pos: 5000, Estimate: -0.7, StdErr: 0.2, P: 0.2},
	}
	return &Dataset{Sites: sites, Band: constBand(len(sites), 20, 0)}
}

func TestIdentifySingleDataset(t *testing.T) {
	d := identifyTestDataset()
	opts := DefaultOpts
	opts.Parallelism = 1
	dmrs, stats, err := d.Identify(opts)
	require.NoError(t, err)

	require.Equal(t, 1, len(dmrs))
	r := dmrs[0]
	expect.EQ(t, r.Chrom, "1")
	expect.EQ(t, r.N, 3)
	expect.EQ(t, r.Start, 100)
	expect.EQ(t, r.End, 600)
	expect.EQ(t, r.StartIdx, 0)
	expect.EQ(t, r.EndIdx, 2)

	// Zero correlation: the full-span combination is plain IVW, and
	// no trim improves on it.
	want := ivw([]float64{0.5, 0.4, 0.6}, []float64{0.04, 0.04, 0.04})
	assert.InDelta(t, want.b, r.Estimate, 1e-12)
	assert.InDelta(t, math.Sqrt(want.s), r.StdErr, 1e-12)
	assert.InDelta(t, want.z(), r.Z, 1e-12)
	assert.InDelta(t, normalP(want.z()), r.P, 1e-12)

	expect.EQ(t, stats.Sites, 4)
	expect.EQ(t, stats.Candidates, 1)
	expect.EQ(t, stats.Tests, 1)
	// Bonferroni denominator: 4 per-site tests + 1 shrink test.
	assert.InDelta(t, math.Min(1, r.P*5), r.AdjP, 1e-12)
	expect.True(t, r.AdjP >= r.P)
}

func TestIdentifyIdempotent(t *testing.T) {
	d := identifyTestDataset()
	dmrs1, stats1, err := d.Identify(DefaultOpts)
	require.NoError(t, err)
	dmrs2, stats2, err := d.Identify(DefaultOpts)
	require.NoError(t, err)
	expect.True(t, reflect.DeepEqual(dmrs1, dmrs2))
	expect.EQ(t, stats1, stats2)
}

// Feeding an unsorted table and its presorted equivalent through
// Identify yields identical regions.
func TestIdentifyOrderInsensitive(t *testing.T) {
	sites := []Site{
		{ID: "c", Chrom: "1", Pos: 600, Estimate: 0.6, StdErr: 0.2, P: 0.01},
		{ID: "a", Chrom: "1", Pos: 100, Estimate: 0.5, StdErr: 0.2, P: 0.01},
		{ID: "b", Chrom: "1", Pos: 150, Estimate: 0.4, StdErr: 0.2, P: 0.02},
	}
	meth := testMeth(
		[]float64{1, 5, 2, 8},
		[]float64{4, 1, 2, 9},
		[]float64{2, 2, 3, 1},
	)
	unsorted, _, err := Identify(sites, meth, DefaultOpts)
	require.NoError(t, err)

	sortedSites := []Site{sites[1], sites[2], sites[0]}
	sortedMeth := testMeth(meth[1], meth[2], meth[0])
	sorted, _, err := Identify(sortedSites, sortedMeth, DefaultOpts)
	require.NoError(t, err)

	expect.True(t, reflect.DeepEqual(unsorted, sorted))
}

func TestIdentifySizeOneRegions(t *testing.T) {
	sites := []Site{
		{ID: "a", Chrom: "1", Pos: 100, Estimate: 0.5, StdErr: 0.2, P: 0.01},
		{ID: "b", Chrom: "1", Pos: 5000, Estimate: 0.5, StdErr: 0.2, P: 0.01},
	}
	d := &Dataset{Sites: sites, Band: constBand(2, 20, 0)}
	dmrs, stats, err := d.Identify(DefaultOpts)
	require.NoError(t, err)
	require.Equal(t, 2, len(dmrs))
	// Size-1 candidates skip the search entirely.
	expect.EQ(t, stats.Tests, 0)
	for _, r := range dmrs {
		expect.EQ(t, r.N, 1)
		assert.InDelta(t, 0.5, r.Estimate, 1e-12)
		assert.InDelta(t, 0.2, r.StdErr, 1e-12)
		// Denominator is just the two per-site tests.
		assert.InDelta(t, math.Min(1, r.P*2), r.AdjP, 1e-12)
	}
}

// A caller-assembled Dataset whose correlation structure covers fewer
// sites than the table must be rejected up front, not fault inside the
// engine.
func TestIdentifyMisalignedBand(t *testing.T) {
	sites := []Site{
		{ID: "a", Chrom: "1", Pos: 100, Estimate: 0.5, StdErr: 0.2, P: 0.01},
		{ID: "b", Chrom: "1", Pos: 150, Estimate: 0.4, StdErr: 0.2, P: 0.02},
		{ID: "c", Chrom: "1", Pos: 200, Estimate: 0.6, StdErr: 0.2, P: 0.01},
	}
	d := &Dataset{Sites: sites, Band: constBand(1, 20, 0)}
	_, _, err := d.Identify(DefaultOpts)
	require.Error(t, err)

	d.Band = nil
	_, _, err = d.Identify(DefaultOpts)
	require.Error(t, err)
}

// The adjusted p-value never decreases as the test-count denominator
// grows, for either correction method.
func TestAdjustMonotoneInDenominator(t *testing.T) {
	ps := []float64{0.001, 0.04, 0.02, 0.3}
	for _, method := range []Adjust{AdjustBonferroni, AdjustBH} {
		small := make([]DMR, len(ps))
		large := make([]DMR, len(ps))
		for i, p := range ps {
			small[i].P = p
			large[i].P = p
		}
		adjust(small, 10, method)
		adjust(large, 50, method)
		for i := range ps {
			assert.Truef(t, large[i].AdjP >= small[i].AdjP,
				"method %s region %d: %v < %v", method, i, large[i].AdjP, small[i].AdjP)
		}
	}
}

func TestAdjustBH(t *testing.T) {
	dmrs := []DMR{{P: 0.01}, {P: 0.04}, {P: 0.03}}
	adjust(dmrs, 10, AdjustBH)
	// Sorted p: 0.01, 0.03, 0.04 with ranks 1..3 and n=10.
	assert.InDelta(t, math.Min(0.01*10/1, math.Min(0.03*10/2, 0.04*10/3)), dmrs[0].AdjP, 1e-12)
	assert.InDelta(t, 0.04*10/3, dmrs[1].AdjP, 1e-12)
	assert.InDelta(t, math.Min(0.03*10/2, 0.04*10/3), dmrs[2].AdjP, 1e-12)
	for _, r := range dmrs {
		expect.True(t, r.AdjP >= r.P)
	}
}
