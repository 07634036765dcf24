// Command scanner-baseline gates CI on gosec and govulncheck output without
// failing on findings that were already reviewed. Each report is compared
// against a checked-in allowlist: findings outside the allowlist fail the
// build, and allowlist entries that no longer match anything are reported so
// the list shrinks over time. Standard-library vulnerabilities are called out
// separately because the fix is a toolchain upgrade, not a code change.
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

func main() {
	var (
		gosecReport    string
		gosecAllowlist string
		vulnReport     string
		vulnAllowlist  string
		failStdlib     bool
	)

	flag.StringVar(&gosecReport, "gosec-report", "", "gosec JSON report")
	flag.StringVar(&gosecAllowlist, "gosec-baseline", "", "allowlist of reviewed gosec findings")
	flag.StringVar(&vulnReport, "govuln-report", "", "govulncheck -json report")
	flag.StringVar(&vulnAllowlist, "govuln-baseline", "", "allowlist of reviewed govulncheck findings")
	flag.BoolVar(&failStdlib, "fail-stdlib", true, "fail on standard-library vulnerabilities outside the allowlist")
	flag.Parse()

	if gosecReport == "" || gosecAllowlist == "" || vulnReport == "" || vulnAllowlist == "" {
		fmt.Fprintln(os.Stderr, "all report and baseline flags are required")
		os.Exit(2)
	}

	root, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolve workspace root: %v\n", err)
		os.Exit(1)
	}

	secFindings, err := readGosec(gosecReport, root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read gosec report: %v\n", err)
		os.Exit(1)
	}
	scan, err := readGovulncheck(vulnReport, root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read govulncheck report: %v\n", err)
		os.Exit(1)
	}
	secAllowed, err := readAllowlist(gosecAllowlist)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read gosec baseline: %v\n", err)
		os.Exit(1)
	}
	vulnAllowed, err := readAllowlist(vulnAllowlist)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read govulncheck baseline: %v\n", err)
		os.Exit(1)
	}

	failed := false

	if unknown := secFindings.missingFrom(secAllowed); len(unknown) > 0 {
		failed = true
		fmt.Fprintln(os.Stderr, "gosec findings outside the allowlist:")
		for _, fp := range unknown {
			fmt.Fprintf(os.Stderr, "  - %s\n", fp)
		}
	}

	var toolchain, code []string
	for _, fp := range scan.findings.missingFrom(vulnAllowed) {
		osvID, _, _ := strings.Cut(fp, " ")
		if scan.stdlib[osvID] {
			toolchain = append(toolchain, fp)
		} else {
			code = append(code, fp)
		}
	}

	if len(code) > 0 {
		failed = true
		fmt.Fprintln(os.Stderr, "govulncheck findings outside the allowlist:")
		for _, fp := range code {
			fmt.Fprintf(os.Stderr, "  - %s\n", fp)
		}
	}
	if failStdlib && len(toolchain) > 0 {
		failed = true
		fmt.Fprintln(os.Stderr, "standard-library vulnerabilities outside the allowlist:")
		for _, fp := range toolchain {
			osvID, _, _ := strings.Cut(fp, " ")
			fixed := scan.fixed[osvID]
			if fixed == "" {
				fixed = "unknown"
			}
			fmt.Fprintf(os.Stderr, "  - %s (fixed in %s)\n", fp, fixed)
		}
		fmt.Fprintln(os.Stderr, "upgrade the Go toolchain and rerun govulncheck")
	}

	if stale := secAllowed.missingFrom(secFindings); len(stale) > 0 {
		fmt.Println("gosec allowlist entries with no matching finding (delete them):")
		for _, fp := range stale {
			fmt.Printf("  - %s\n", fp)
		}
	}
	if stale := vulnAllowed.missingFrom(scan.findings); len(stale) > 0 {
		fmt.Println("govulncheck allowlist entries with no matching finding (delete them):")
		for _, fp := range stale {
			fmt.Printf("  - %s\n", fp)
		}
	}

	if failed {
		os.Exit(1)
	}
	fmt.Printf("scanner baseline clean (gosec findings: %d, govulncheck findings: %d)\n",
		len(secFindings), len(scan.findings))
}

// findingSet holds scanner fingerprints in their canonical one-line form, the
// same form the allowlist files use.
type findingSet map[string]struct{}

func (s findingSet) add(fp string) { s[fp] = struct{}{} }

// missingFrom returns the fingerprints in s that other lacks, sorted.
func (s findingSet) missingFrom(other findingSet) []string {
	var out []string
	for fp := range s {
		if _, ok := other[fp]; !ok {
			out = append(out, fp)
		}
	}
	sort.Strings(out)
	return out
}

// readGosec extracts one fingerprint per unique finding from a gosec JSON
// report, shaped "RULE path:line". A report with package loading errors is
// rejected outright since its findings would be incomplete.
func readGosec(path, root string) (findingSet, error) {
	// #nosec G304 -- paths come from CI flags, not request input.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var report struct {
		GolangErrors map[string]json.RawMessage `json:"Golang errors"`
		Issues       []struct {
			RuleID string `json:"rule_id"`
			File   string `json:"file"`
			Line   string `json:"line"`
		} `json:"Issues"`
	}
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}

	if len(report.GolangErrors) > 0 {
		pkgs := make([]string, 0, len(report.GolangErrors))
		for pkg := range report.GolangErrors {
			pkgs = append(pkgs, pkg)
		}
		sort.Strings(pkgs)
		return nil, fmt.Errorf("gosec could not load packages: %s", strings.Join(pkgs, ", "))
	}

	out := findingSet{}
	for _, issue := range report.Issues {
		rule := strings.TrimSpace(issue.RuleID)
		if rule == "" {
			rule = "UNKNOWN"
		}
		line := strings.TrimSpace(issue.Line)
		if line == "" {
			line = "0"
		}
		out.add(fmt.Sprintf("%s %s:%s", rule, relPath(issue.File, root), line))
	}
	return out, nil
}

// vulnScan is the digest of a govulncheck run: one fingerprint per finding,
// which OSV ids live in the standard library, and the first fixed version
// seen per OSV id.
type vulnScan struct {
	findings findingSet
	stdlib   map[string]bool
	fixed    map[string]string
}

// readGovulncheck consumes the govulncheck -json stream. Each stream object
// carries at most one of the keys we care about; config and progress messages
// decode to an empty envelope and are skipped. Fingerprints are shaped
// "OSV module path:line", or "OSV module" when the trace has no position.
func readGovulncheck(path, root string) (vulnScan, error) {
	// #nosec G304 -- paths come from CI flags, not request input.
	f, err := os.Open(path)
	if err != nil {
		return vulnScan{}, err
	}
	defer f.Close()

	scan := vulnScan{
		findings: findingSet{},
		stdlib:   map[string]bool{},
		fixed:    map[string]string{},
	}

	dec := json.NewDecoder(f)
	for {
		var msg struct {
			OSV *struct {
				ID       string `json:"id"`
				Affected []struct {
					Package struct {
						Name string `json:"name"`
					} `json:"package"`
				} `json:"affected"`
			} `json:"osv"`
			Finding *struct {
				OSV          string `json:"osv"`
				FixedVersion string `json:"fixed_version"`
				Trace        []struct {
					Module   string `json:"module"`
					Position struct {
						Filename string `json:"filename"`
						Line     int    `json:"line"`
					} `json:"position"`
				} `json:"trace"`
			} `json:"finding"`
		}
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return vulnScan{}, err
		}

		if osv := msg.OSV; osv != nil {
			for _, affected := range osv.Affected {
				if strings.EqualFold(affected.Package.Name, "stdlib") {
					scan.stdlib[osv.ID] = true
					break
				}
			}
		}

		finding := msg.Finding
		if finding == nil || finding.OSV == "" {
			continue
		}
		if finding.FixedVersion != "" && scan.fixed[finding.OSV] == "" {
			scan.fixed[finding.OSV] = finding.FixedVersion
		}

		module := "unknown"
		if len(finding.Trace) > 0 && finding.Trace[0].Module != "" {
			module = finding.Trace[0].Module
		}

		fp := finding.OSV + " " + module
		if len(finding.Trace) > 0 {
			// The last frame is the call site closest to this repo's code.
			last := finding.Trace[len(finding.Trace)-1]
			if last.Position.Filename != "" {
				fp += fmt.Sprintf(" %s:%d", relPath(last.Position.Filename, root), last.Position.Line)
			}
		}
		scan.findings.add(fp)
	}

	return scan, nil
}

// readAllowlist loads one fingerprint per line. Blank lines and # comments
// are skipped, so entries can carry review notes next to them.
func readAllowlist(path string) (findingSet, error) {
	// #nosec G304 -- paths come from CI flags, not request input.
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := findingSet{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		if line = strings.TrimSpace(line); line != "" {
			out.add(line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// relPath rewrites an absolute report path relative to the workspace root so
// fingerprints stay stable across checkouts.
func relPath(path, root string) string {
	if path == "" {
		return "-"
	}
	clean := filepath.Clean(path)
	if filepath.IsAbs(clean) {
		if rel, err := filepath.Rel(root, clean); err == nil {
			clean = rel
		}
	}
	return filepath.ToSlash(clean)
}
