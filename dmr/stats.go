package dmr

// Stats summarizes one pipeline run.
type Stats struct {
	// Sites is the number of per-site tests, i.e. the size of the
	// (combined) site table fed to the detector.
	Sites int
	// Candidates is the number of candidate regions detected.
	Candidates int
	// Tests is the total number of sub-spans scored during shrinking,
	// across all candidates.  Sites+Tests is the multiple-testing
	// denominator.
	Tests int
	// BandFallbacks counts spans assigned the conservative null
	// combination because they exceeded the correlation bandwidth.
	BandFallbacks int
	// SolveFallbacks counts spans assigned the null combination
	// because the covariance factorization failed even after
	// regularization.
	SolveFallbacks int
}

// Merge adds the field values of the two Stats objects and creates
// new Stats.
func (s Stats) Merge(o Stats) Stats {
	s.Sites += o.Sites
	s.Candidates += o.Candidates
	s.Tests += o.Tests
	s.BandFallbacks += o.BandFallbacks
	s.SolveFallbacks += o.SolveFallbacks
	return s
}
