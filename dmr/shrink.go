package dmr

import "math"

// shrinkResult is the chosen sub-span of one candidate together with
// its combined statistics and the number of statistical tests the walk
// performed (the starting span plus one per accepted trim).
type shrinkResult struct {
	start, end int
	res        combined
	tests      int
}

// shrink runs the greedy endpoint-trim walk over one candidate: from
// the full span, evaluate the sub-spans obtained by trimming one site
// off either end and advance to the better of the two whenever it
// improves |z|, stopping at size 1 or at no improvement.  The walk is
// O(size) engine evaluations instead of the O(size^2) of an exhaustive
// sub-span search; only adopted spans count as tests.  Size-1
// candidates are returned unchanged with zero tests.
func shrink(sc spanScorer, c candidate) shrinkResult {
	if c.size() == 1 {
		return shrinkResult{start: c.start, end: c.end, res: sc.score(c.start, c.end), tests: 0}
	}
	cur := c
	curRes := sc.score(cur.start, cur.end)
	curZ := math.Abs(curRes.z())
	tests := 1
	best := shrinkResult{start: cur.start, end: cur.end, res: curRes}
	bestZ := curZ
	for cur.size() > 1 {
		left := sc.score(cur.start+1, cur.end)
		right := sc.score(cur.start, cur.end-1)
		lz := math.Abs(left.z())
		rz := math.Abs(right.z())
		// Prefer the left trim on ties.
		if lz >= rz {
			if lz <= curZ {
				break
			}
			cur.start++
			curRes, curZ = left, lz
		} else {
			if rz <= curZ {
				break
			}
			cur.end--
			curRes, curZ = right, rz
		}
		tests++
		if curZ > bestZ {
			best = shrinkResult{start: cur.start, end: cur.end, res: curRes}
			bestZ = curZ
		}
	}
	best.tests = tests
	return best
}
