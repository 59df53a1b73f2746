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
package main

import (
	"bufio"
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/methyl/dmr"
	"github.com/pkg/errors"
)

type bedInterval struct {
	start, end int // zero-based, half-open
}

// bedUnion is a per-chromosome union of merged BED intervals.
type bedUnion map[string][]bedInterval

// readBED loads a 3+ column BED file and merges overlapping or
// adjacent intervals per chromosome.
func readBED(ctx context.Context, path string) (bedUnion, error) {
	r, closer, err := openText(ctx, path)
	if err != nil {
		return nil, err
	}
	defer closer()

	union := bedUnion{}
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") ||
			strings.HasPrefix(line, "track") || strings.HasPrefix(line, "browser") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, errors.Errorf("%s:%d: BED line has %d fields", path, lineno, len(fields))
		}
		start, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d: start", path, lineno)
		}
		end, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d: end", path, lineno)
		}
		if end < start {
			return nil, errors.Errorf("%s:%d: interval end %d before start %d", path, lineno, end, start)
		}
		union[fields[0]] = append(union[fields[0]], bedInterval{start: start, end: end})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	for chrom, ivs := range union {
		sort.Slice(ivs, func(i, j int) bool { return ivs[i].start < ivs[j].start })
		merged := ivs[:0]
		for _, iv := range ivs {
			if n := len(merged); n > 0 && iv.start <= merged[n-1].end {
				if iv.end > merged[n-1].end {
					merged[n-1].end = iv.end
				}
				continue
			}
			merged = append(merged, iv)
		}
		union[chrom] = merged
	}
	return union, nil
}

// contains reports whether the one-based position pos on chrom falls
// inside the union.
func (u bedUnion) contains(chrom string, pos int) bool {
	ivs := u[chrom]
	i := sort.Search(len(ivs), func(i int) bool { return ivs[i].end >= pos })
	return i < len(ivs) && ivs[i].start < pos
}

// filterSites restricts a site table (and its aligned measurement
// matrix) to the sites inside the BED union.
func filterSites(sites []dmr.Site, meth [][]float64, union bedUnion) ([]dmr.Site, [][]float64) {
	outSites := make([]dmr.Site, 0, len(sites))
	outMeth := make([][]float64, 0, len(meth))
	for i, s := range sites {
		if !union.contains(s.Chrom, s.Pos) {
			continue
		}
		outSites = append(outSites, s)
		outMeth = append(outMeth, meth[i])
	}
	return outSites, outMeth
}
