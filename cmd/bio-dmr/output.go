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
	"context"
	"io"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/methyl/dmr"
	"github.com/klauspost/compress/gzip"
)

// createText creates an output file, gzip-compressing when the path
// ends in .gz.
func createText(ctx context.Context, path string) (io.Writer, func() error, error) {
	dst, err := file.Create(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	w := dst.Writer(ctx)
	if !strings.HasSuffix(path, ".gz") {
		return w, func() error { return dst.Close(ctx) }, nil
	}
	gz := gzip.NewWriter(w)
	closer := func() error {
		if err := gz.Close(); err != nil {
			_ = dst.Close(ctx)
			return err
		}
		return dst.Close(ctx)
	}
	return gz, closer, nil
}

// writeDMRs writes the region table, dropping regions with fewer than
// minSites sites.  The multiplicity correction was computed over all
// tests before this filter, so dropping rows here cannot understate
// adjusted p-values.
func writeDMRs(ctx context.Context, path string, dmrs []dmr.DMR, minSites int) (err error) {
	w, closer, err := createText(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if e := closer(); e != nil && err == nil {
			err = e
		}
	}()

	out := tsv.NewWriter(w)
	out.WriteString("CHROM\tSTART\tEND\tN\tESTIMATE\tSE\tZ\tP\tADJ_P\tSTART_IDX\tEND_IDX")
	if err = out.EndLine(); err != nil {
		return err
	}
	for _, r := range dmrs {
		if r.N < minSites {
			continue
		}
		out.WriteString(r.Chrom)
		out.WriteInt64(int64(r.Start))
		out.WriteInt64(int64(r.End))
		out.WriteInt64(int64(r.N))
		out.WriteFloat64(r.Estimate, 'g', -1)
		out.WriteFloat64(r.StdErr, 'g', -1)
		out.WriteFloat64(r.Z, 'g', -1)
		out.WriteFloat64(r.P, 'g', -1)
		out.WriteFloat64(r.AdjP, 'g', -1)
		out.WriteInt64(int64(r.StartIdx))
		out.WriteInt64(int64(r.EndIdx))
		if err = out.EndLine(); err != nil {
			return err
		}
	}
	return out.Flush()
}

// writeMetaSites writes the cross-dataset combined per-site table.
func writeMetaSites(ctx context.Context, path string, sites []dmr.MetaSite) (err error) {
	w, closer, err := createText(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if e := closer(); e != nil && err == nil {
			err = e
		}
	}()

	out := tsv.NewWriter(w)
	out.WriteString("ID\tCHROM\tPOS\tESTIMATE\tSE\tZ\tP")
	if err = out.EndLine(); err != nil {
		return err
	}
	for _, s := range sites {
		out.WriteString(s.ID)
		out.WriteString(s.Chrom)
		out.WriteInt64(int64(s.Pos))
		out.WriteFloat64(s.Estimate, 'g', -1)
		out.WriteFloat64(s.StdErr, 'g', -1)
		out.WriteFloat64(s.Z, 'g', -1)
		out.WriteFloat64(s.P, 'g', -1)
		if err = out.EndLine(); err != nil {
			return err
		}
	}
	return out.Flush()
}
