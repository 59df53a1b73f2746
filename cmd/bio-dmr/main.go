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

/*
bio-dmr identifies differentially methylated regions from per-site
association statistics.  Each positional argument pair names a site
statistics TSV and the measurement matrix TSV aligned to it; one pair
runs the single-dataset pipeline, two or more pairs run the
cross-dataset meta-analysis over the sites shared by every dataset.
*/

import (
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/methyl/dmr"
)

var (
	maxGap      = flag.Int("max-gap", dmr.DefaultOpts.MaxGap, "Largest position gap allowed between consecutive sites of one region")
	pCutoff     = flag.Float64("p-cutoff", dmr.DefaultOpts.PCutoff, "Per-site p-value threshold for candidate membership")
	bandwidth   = flag.Int("bandwidth", dmr.DefaultOpts.Bandwidth, "Correlation window width: number of downstream neighbors correlated against each site")
	parallelism = flag.Int("parallelism", dmr.DefaultOpts.Parallelism, "Maximum number of concurrent shrink workers; 0 = runtime.NumCPU()")
	adjustFlag  = flag.String("adjust", string(dmr.DefaultOpts.Adjust), "Multiple-testing correction; 'bonferroni' or 'bh'")
	minSites    = flag.Int("min-sites", 2, "Drop regions with fewer sites than this from the output")
	bedPath     = flag.String("bed", "", "Optional BED path restricting the analysis to the listed regions")
	outPrefix   = flag.String("out", "bio-dmr", "Output path prefix")
)

func usage() {
	fmt.Printf("Usage: %s [OPTIONS] sites.tsv meth.tsv [sites2.tsv meth2.tsv ...]\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	shutdown := grail.Init()
	defer shutdown()

	args := flag.Args()
	if len(args) == 0 || len(args)%2 != 0 {
		log.Fatalf("Positional arguments must be one or more sites.tsv meth.tsv pairs; got %d arguments", len(args))
	}
	nDatasets := len(args) / 2

	opts := dmr.Opts{
		MaxGap:      *maxGap,
		PCutoff:     *pCutoff,
		Bandwidth:   *bandwidth,
		Parallelism: *parallelism,
		Adjust:      dmr.Adjust(*adjustFlag),
	}
	switch opts.Adjust {
	case dmr.AdjustBonferroni, dmr.AdjustBH:
	default:
		log.Fatalf("Unknown -adjust method %q", *adjustFlag)
	}

	ctx := vcontext.Background()
	var bed bedUnion
	if *bedPath != "" {
		var err error
		if bed, err = readBED(ctx, *bedPath); err != nil {
			log.Fatalf("Reading %s: %v", *bedPath, err)
		}
	}

	datasets := make([]*dmr.Dataset, nDatasets)
	for d := 0; d < nDatasets; d++ {
		sitesPath, methPath := args[2*d], args[2*d+1]
		sites, err := readSites(ctx, sitesPath)
		if err != nil {
			log.Fatalf("Reading %s: %v", sitesPath, err)
		}
		meth, err := readMeth(ctx, methPath, sites)
		if err != nil {
			log.Fatalf("Reading %s: %v", methPath, err)
		}
		if bed != nil {
			nBefore := len(sites)
			sites, meth = filterSites(sites, meth, bed)
			log.Printf("%s: %d of %d sites inside -bed regions", sitesPath, len(sites), nBefore)
		}
		log.Printf("%s: %d sites", sitesPath, len(sites))
		if datasets[d], err = dmr.Prepare(sites, meth, opts); err != nil {
			log.Fatalf("Preparing %s: %v", sitesPath, err)
		}
	}

	var (
		dmrs      []dmr.DMR
		stats     dmr.Stats
		metaSites []dmr.MetaSite
	)
	if nDatasets == 1 {
		var err error
		if dmrs, stats, err = datasets[0].Identify(opts); err != nil {
			log.Fatalf("Identifying regions: %v", err)
		}
	} else {
		var err error
		if metaSites, dmrs, stats, err = dmr.Meta(datasets, opts); err != nil {
			log.Fatalf("Meta-analysis: %v", err)
		}
		sitesOut := *outPrefix + ".sites.tsv"
		if err = writeMetaSites(ctx, sitesOut, metaSites); err != nil {
			log.Fatalf("Writing %s: %v", sitesOut, err)
		}
		log.Printf("Wrote %d combined sites to %s", len(metaSites), sitesOut)
	}

	dmrOut := *outPrefix + ".dmr.tsv"
	if err := writeDMRs(ctx, dmrOut, dmrs, *minSites); err != nil {
		log.Fatalf("Writing %s: %v", dmrOut, err)
	}
	nOut := 0
	for _, r := range dmrs {
		if r.N >= *minSites {
			nOut++
		}
	}
	log.Printf("Wrote %d of %d regions (min-sites %d) to %s; %d candidates, %d tests, correction over %d hypotheses",
		nOut, len(dmrs), *minSites, dmrOut, stats.Candidates, stats.Tests, stats.Sites+stats.Tests)
}
