package artifact

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/charmap"
)

// Count is a pass or fail counter scraped from a summary file. It is either
// a decimal count, CountQueued when the tool reported the sentinel -1, or
// CountFail when the counter line was malformed.
type Count string

const (
	// CountQueued marks a counter the reporting tool had not resolved yet.
	CountQueued Count = "queued"
	// CountFail marks a counter whose line could not be parsed.
	CountFail Count = "fail"
)

// CounterPair is one named pass/fail counter pair.
type CounterPair struct {
	Pass Count
	Fail Count
}

// TestSummary is the structured content of one summary.dat file: the job
// attributes from the header line, the reported OS, and the named test
// counters (unit, system, example, nuopc).
type TestSummary struct {
	Attrs    JobAttributes
	OS       string
	Counters map[string]CounterPair
}

// Counter returns the counter pair for name, defaulting to fail/fail when
// the summary file never mentioned it.
func (s *TestSummary) Counter(name string) CounterPair {
	if pair, ok := s.Counters[name]; ok {
		return pair
	}

	return CounterPair{Pass: CountFail, Fail: CountFail}
}

// Summary file line markers.
const (
	buildForMarker    = "Build for"
	testResultsMarker = "test results"
)

// ReadSummary streams the summary file at path line by line. Files
// originate from varied legacy toolchains and are not UTF-8 clean, so they
// are decoded as ISO-8859-1. A malformed counter line does not abort the
// read: the counter is recorded as fail/fail and a warning logged, so
// partial files still contribute what they captured. A file without a
// parseable header line yields an error; the caller skips the file.
func ReadSummary(log logrus.FieldLogger, path string) (*TestSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening summary file: %w", err)
	}
	defer f.Close()

	summary := &TestSummary{Counters: make(map[string]CounterPair)}

	headerSeen := false

	scanner := bufio.NewScanner(charmap.ISO8859_1.NewDecoder().Reader(f))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		// Build for = gfortran_10.3.0_mpich3_g_develop, mpi version 8.1.7 on acorn esmf_os: Linux
		if strings.Contains(line, buildForMarker) {
			attrs, osName, err := parseHeaderLine(line)
			if err != nil {
				return nil, fmt.Errorf("parsing header of %s: %w", path, err)
			}

			summary.Attrs = attrs
			summary.OS = osName
			headerSeen = true
		}

		if strings.Contains(line, testResultsMarker) {
			name, pair, ok := parseCounterLine(line)
			if !ok {
				continue
			}

			if pair.Pass == CountFail {
				log.WithFields(logrus.Fields{
					"counter": name,
					"path":    path,
				}).Warn("no numeric test results, setting counter to fail")
			}

			summary.Counters[name] = pair
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading summary file %s: %w", path, err)
	}

	if !headerSeen {
		return nil, fmt.Errorf("summary file %s has no build header line", path)
	}

	return summary, nil
}

// parseHeaderLine splits the "Build for" line into job attributes and the
// reported OS. The first comma group is underscore-split into compiler,
// compiler version, mpi and optimization; the branch absorbs the remaining
// underscore-joined tokens since it may itself contain underscores. The
// second group is space-split to recover the mpi version (lower-cased),
// host and OS.
func parseHeaderLine(line string) (JobAttributes, string, error) {
	_, rest, found := strings.Cut(line, "=")
	if !found {
		return JobAttributes{}, "", fmt.Errorf("header line has no assignment: %q", line)
	}

	group1, group2, found := strings.Cut(strings.TrimSpace(rest), ",")
	if !found {
		return JobAttributes{}, "", fmt.Errorf("header line has no comma groups: %q", line)
	}

	tokens := strings.Split(strings.TrimSpace(group1), "_")
	if len(tokens) < 5 {
		return JobAttributes{}, "", fmt.Errorf("header group %q has too few fields", group1)
	}

	// "mpi version 8.1.7 on acorn esmf_os: Linux"
	words := strings.Fields(group2)
	if len(words) < 7 {
		return JobAttributes{}, "", fmt.Errorf("header group %q has too few fields", group2)
	}

	attrs := JobAttributes{
		Compiler:        tokens[0],
		CompilerVersion: tokens[1],
		MPI:             tokens[2],
		Optimization:    tokens[3],
		Branch:          strings.Join(tokens[4:], "_"),
		MPIVersion:      strings.ToLower(words[2]),
		Host:            words[4],
	}

	return attrs, words[6], nil
}

// parseCounterLine splits a "test results" line into its counter name and
// pass/fail pair. Lines without a tab separator are not counter lines.
func parseCounterLine(line string) (string, CounterPair, bool) {
	label, value, found := strings.Cut(line, "\t")
	if !found {
		return "", CounterPair{}, false
	}

	fields := strings.Fields(label)
	if len(fields) == 0 {
		return "", CounterPair{}, false
	}

	name := fields[0]

	cleaned := strings.NewReplacer("PASS", "", "FAIL", "", "\n", "").Replace(value)

	counts := strings.Fields(cleaned)
	if len(counts) != 2 {
		return name, CounterPair{Pass: CountFail, Fail: CountFail}, true
	}

	pass, err1 := strconv.Atoi(counts[0])
	fail, err2 := strconv.Atoi(counts[1])

	if err1 != nil || err2 != nil {
		return name, CounterPair{Pass: CountFail, Fail: CountFail}, true
	}

	return name, CounterPair{Pass: toCount(pass), Fail: toCount(fail)}, true
}

// toCount maps the -1 sentinel to the queued state; any other value is a
// plain count.
func toCount(v int) Count {
	if v == -1 {
		return CountQueued
	}

	return Count(strconv.Itoa(v))
}
