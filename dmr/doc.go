/*Package dmr identifies differentially methylated regions: contiguous
  runs of measurement sites whose individual association statistics,
  each only modestly significant, jointly indicate a region-level
  effect.  Candidate regions are maximal runs of sites passing
  significance, sign-consistency, and maximum-gap rules; each candidate
  is then shrunk by a greedy endpoint-trim search to the sub-span with
  the strongest correlated fixed-effects meta-analysis z-score.  The
  meta-analysis accounts for between-site correlation through the
  banded structure estimated by package corr; ignoring that correlation
  would inflate region significance.

  The package operates on a plain per-site statistics table produced by
  an upstream association analysis.  Loading measurement matrices,
  annotation lookups, and the association tests themselves are outside
  its scope.
*/
package dmr
