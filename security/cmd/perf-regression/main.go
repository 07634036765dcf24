// Command perf-regression compares two `go test -bench` outputs and fails
// when a hot-path benchmark slows down beyond an allowed ratio. CI captures
// the baseline on the default branch and feeds the candidate from the change
// under review; multiple -count runs per file are folded with the median so
// one noisy sample does not gate a merge.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
)

// hotPaths lists the benchmarks that guard the request path, in report order.
// Validate and Decode run on every authenticated request; Refresh and the
// lease cycle are the busiest write paths.
var hotPaths = []struct {
	bench string
	units []string
}{
	{"BenchmarkValidateAccess", []string{"ns/op", "allocs/op"}},
	{"BenchmarkDecode", []string{"ns/op", "allocs/op"}},
	{"BenchmarkRefresh", []string{"ns/op"}},
	{"BenchmarkAcquireReleaseLease", []string{"ns/op"}},
}

func main() {
	var (
		basePath string
		candPath string
		limit    float64
	)

	flag.StringVar(&basePath, "baseline", "", "benchmark output captured on the base branch")
	flag.StringVar(&candPath, "candidate", "", "benchmark output for the change under review")
	flag.Float64Var(&limit, "threshold", 0.30, "allowed slowdown ratio before failing (0.30 = +30%)")
	flag.Parse()

	if basePath == "" || candPath == "" {
		fmt.Fprintln(os.Stderr, "-baseline and -candidate are required")
		os.Exit(2)
	}
	if limit < 0 {
		fmt.Fprintln(os.Stderr, "-threshold must be >= 0")
		os.Exit(2)
	}

	base, err := readBenchFile(basePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read baseline: %v\n", err)
		os.Exit(1)
	}
	cand, err := readBenchFile(candPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read candidate: %v\n", err)
		os.Exit(1)
	}

	var failures []string
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "benchmark\tmetric\tbaseline\tcandidate\tdelta")

	for _, hp := range hotPaths {
		for _, unit := range hp.units {
			baseMed, baseOK := base.median(hp.bench, unit)
			candMed, candOK := cand.median(hp.bench, unit)
			switch {
			case !baseOK || !candOK:
				failures = append(failures, fmt.Sprintf(
					"%s %s: no samples; run go test -bench '^%s$' -benchmem", hp.bench, unit, hp.bench))
				continue
			case baseMed <= 0:
				failures = append(failures, fmt.Sprintf("%s %s: baseline median is not positive", hp.bench, unit))
				continue
			}

			delta := candMed/baseMed - 1
			fmt.Fprintf(tw, "%s\t%s\t%.1f\t%.1f\t%+.2f%%\n", hp.bench, unit, baseMed, candMed, delta*100)
			if delta > limit {
				failures = append(failures, fmt.Sprintf(
					"%s %s slowed down %+.2f%% (limit %+.2f%%)", hp.bench, unit, delta*100, limit*100))
			}
		}
	}
	tw.Flush()

	if len(failures) > 0 {
		fmt.Fprintln(os.Stderr, "performance gate failed:")
		for _, f := range failures {
			fmt.Fprintf(os.Stderr, "  - %s\n", f)
		}
		os.Exit(1)
	}
}

// benchSamples collects every reading a benchmark file produced, keyed by
// benchmark name and then unit. Runs with -count > 1 contribute one sample
// each.
type benchSamples map[string]map[string][]float64

func (s benchSamples) add(bench, unit string, v float64) {
	if _, ok := s[bench]; !ok {
		s[bench] = map[string][]float64{}
	}
	s[bench][unit] = append(s[bench][unit], v)
}

// median reports the median sample for a benchmark metric and whether any
// samples exist.
func (s benchSamples) median(bench, unit string) (float64, bool) {
	vals := s[bench][unit]
	if len(vals) == 0 {
		return 0, false
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], true
	}
	return (sorted[mid-1] + sorted[mid]) / 2, true
}

// readBenchFile parses `go test -bench` text output. A result line looks like
//
//	BenchmarkValidateAccess-8   50000   24012 ns/op   3456 B/op   18 allocs/op
//
// where fields after the iteration count come in value/unit pairs.
func readBenchFile(path string) (benchSamples, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := benchSamples{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 || !strings.HasPrefix(fields[0], "Benchmark") {
			continue
		}

		bench := stripProcSuffix(fields[0])
		for i := 2; i+1 < len(fields); i += 2 {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				continue
			}
			out.add(bench, fields[i+1], v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// stripProcSuffix removes the -GOMAXPROCS suffix the test runner appends to
// benchmark names.
func stripProcSuffix(name string) string {
	idx := strings.LastIndexByte(name, '-')
	if idx <= 0 {
		return name
	}
	if _, err := strconv.Atoi(name[idx+1:]); err != nil {
		return name
	}
	return name[:idx]
}
