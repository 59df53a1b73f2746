package dmr

// candidate is a maximal run of qualifying sites, as inclusive indices
// into the sorted site table.
type candidate struct {
	start, end int
}

func (c candidate) size() int { return c.end - c.start + 1 }

func sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

// detect partitions the sorted site table into maximal candidate
// regions: every member has P < opts.PCutoff, all estimates share the
// candidate's sign, and consecutive members are on the same chromosome
// within opts.MaxGap of each other.  The returned spans are
// non-overlapping and in position order.
func detect(sites []Site, opts Opts) []candidate {
	var cands []candidate
	n := len(sites)
	for i := 0; i < n; {
		if !(sites[i].P < opts.PCutoff) {
			i++
			continue
		}
		s := sign(sites[i].Estimate)
		j := i
		for j+1 < n {
			next := sites[j+1]
			if !(next.P < opts.PCutoff) ||
				sign(next.Estimate) != s ||
				next.Chrom != sites[j].Chrom ||
				next.Pos-sites[j].Pos > opts.MaxGap {
				break
			}
			j++
		}
		cands = append(cands, candidate{start: i, end: j})
		i = j + 1
	}
	return cands
}
