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
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/grailbio/methyl/dmr"
	"github.com/pkg/errors"
)

// openText opens a possibly-compressed text file through the file
// abstraction (local paths or S3 URLs).
func openText(ctx context.Context, path string) (io.Reader, func(), error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, in.Name()); u != nil {
		r = u
	}
	closer := func() { _ = in.Close(ctx) }
	return r, closer, nil
}

// parseFloat parses a float field, mapping "NA" (or empty) to NaN.
func parseFloat(s string) (float64, error) {
	if s == "" || s == "NA" || s == "nan" || s == "NaN" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// readSites reads a site statistics table: a header of
// ID CHROM POS ESTIMATE SE and optionally P, then one row per site.
func readSites(ctx context.Context, path string) ([]dmr.Site, error) {
	r, closer, err := openText(ctx, path)
	if err != nil {
		return nil, err
	}
	defer closer()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	if !scanner.Scan() {
		return nil, errors.Errorf("%s: empty site table", path)
	}
	header := strings.Split(scanner.Text(), "\t")
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToUpper(strings.TrimPrefix(name, "#"))] = i
	}
	for _, required := range []string{"ID", "CHROM", "POS", "ESTIMATE", "SE"} {
		if _, ok := col[required]; !ok {
			return nil, errors.Errorf("%s: missing column %s", path, required)
		}
	}
	pCol, hasP := col["P"]

	var sites []dmr.Site
	lineno := 1
	for scanner.Scan() {
		lineno++
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) < len(header) {
			return nil, errors.Errorf("%s:%d: %d fields, expected %d", path, lineno, len(fields), len(header))
		}
		pos, err := strconv.Atoi(fields[col["POS"]])
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d: POS", path, lineno)
		}
		est, err := parseFloat(fields[col["ESTIMATE"]])
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d: ESTIMATE", path, lineno)
		}
		se, err := parseFloat(fields[col["SE"]])
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d: SE", path, lineno)
		}
		p := math.NaN()
		if hasP {
			if p, err = parseFloat(fields[pCol]); err != nil {
				return nil, errors.Wrapf(err, "%s:%d: P", path, lineno)
			}
		}
		sites = append(sites, dmr.Site{
			ID:       fields[col["ID"]],
			Chrom:    fields[col["CHROM"]],
			Pos:      pos,
			Estimate: est,
			StdErr:   se,
			P:        p,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return sites, nil
}

// readMeth reads a measurement matrix: a header of ID plus one column
// per sample, then one row per site with "NA" for missing values.
// Row ids must match the site table exactly, in order.
func readMeth(ctx context.Context, path string, sites []dmr.Site) ([][]float64, error) {
	r, closer, err := openText(ctx, path)
	if err != nil {
		return nil, err
	}
	defer closer()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	if !scanner.Scan() {
		return nil, errors.Errorf("%s: empty measurement matrix", path)
	}
	nCols := len(strings.Split(scanner.Text(), "\t"))
	if nCols < 2 {
		return nil, errors.Errorf("%s: measurement matrix has no sample columns", path)
	}

	meth := make([][]float64, 0, len(sites))
	lineno := 1
	for scanner.Scan() {
		lineno++
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) != nCols {
			return nil, errors.Errorf("%s:%d: %d fields, expected %d", path, lineno, len(fields), nCols)
		}
		i := len(meth)
		if i >= len(sites) {
			return nil, errors.Errorf("%s: more matrix rows than sites", path)
		}
		if fields[0] != sites[i].ID {
			return nil, errors.Errorf("%s:%d: row id %s does not match site %s", path, lineno, fields[0], sites[i].ID)
		}
		row := make([]float64, nCols-1)
		for j, f := range fields[1:] {
			if row[j], err = parseFloat(f); err != nil {
				return nil, errors.Wrapf(err, "%s:%d: column %d", path, lineno, j+2)
			}
		}
		meth = append(meth, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	if len(meth) != len(sites) {
		return nil, errors.Errorf("%s: %d matrix rows for %d sites", path, len(meth), len(sites))
	}
	return meth, nil
}
