// Package artifact parses raw CI artifact files (build logs and test
// summary files) into structured attributes and counters.
package artifact

import (
	"fmt"
	"path/filepath"
	"strings"
)

// JobAttributes is the composite key identifying one compiler/MPI/host
// configuration. Two derivations exist: fixed positions in an artifact's
// directory path, and the "Build for" header line inside a summary file.
// Path-derived values are the fallback for build logs, which carry no
// header line.
type JobAttributes struct {
	Branch          string
	Host            string
	Compiler        string
	CompilerVersion string
	Optimization    string
	MPI             string
	MPIVersion      string
}

// Normalized returns a copy with every field lower-cased, suitable for use
// as a map key. All attribute comparisons are case-insensitive.
func (a JobAttributes) Normalized() JobAttributes {
	return JobAttributes{
		Branch:          strings.ToLower(a.Branch),
		Host:            strings.ToLower(a.Host),
		Compiler:        strings.ToLower(a.Compiler),
		CompilerVersion: strings.ToLower(a.CompilerVersion),
		Optimization:    strings.ToLower(a.Optimization),
		MPI:             strings.ToLower(a.MPI),
		MPIVersion:      strings.ToLower(a.MPIVersion),
	}
}

// pathDepth is the number of trailing path elements an artifact path must
// carry: branch/host/compiler/version/optimization/mpi/mpi_version/out/file.
const pathDepth = 9

// AttributesFromPath derives JobAttributes from fixed positions in an
// artifact file path, e.g.
// .../develop/hera/gfortran/10.3.0/O/mpich3/3.4.2/out/build.log.
func AttributesFromPath(path string) (JobAttributes, error) {
	parts := strings.Split(filepath.Clean(path), string(filepath.Separator))
	if len(parts) < pathDepth {
		return JobAttributes{}, fmt.Errorf("path %s has fewer than %d elements", path, pathDepth)
	}

	fields := make([]string, 0, 7)
	for _, part := range parts[len(parts)-pathDepth : len(parts)-2] {
		fields = append(fields, strings.ReplaceAll(strings.ToLower(part), "out", ""))
	}

	return JobAttributes{
		Branch:          fields[0],
		Host:            fields[1],
		Compiler:        fields[2],
		CompilerVersion: fields[3],
		Optimization:    fields[4],
		MPI:             fields[5],
		MPIVersion:      fields[6],
	}, nil
}
