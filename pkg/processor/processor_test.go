package processor

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esmf-org/branch-summary/pkg/artifact"
	"github.com/esmf-org/branch-summary/pkg/config"
	"github.com/esmf-org/branch-summary/pkg/ident"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

func TestExtractBranchFromLogLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{
			name: "optimized job token",
			line: "6a3214af0e61 update for test of gfortran_8.3.0_mpiuni_O_develop with hash v8.3.0b08-5-g64eb133 on discover [ci skip]",
			want: "develop",
		},
		{
			name: "debug job token",
			line: "update for test of intel_2021_openmpi_g_release/8.4 with hash ESMF_8_4_0_beta_snapshot_01-1-gabc on hera",
			want: "release/8.4",
		},
		{
			name: "no job token",
			line: "merge branch machine into main",
			want: "",
		},
		{
			name: "empty line",
			line: "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractBranchFromLogLine(tt.line))
		})
	}
}

func TestJobsPermutations(t *testing.T) {
	cfg := &config.Config{
		Jobs: config.JobsConfig{
			Machines: []string{"acorn", "hera"},
			Branches: []string{"develop", "main"},
			History:  3,
		},
	}

	p := New(testLogger(), cfg, &Gateway{})

	jobs, err := p.Jobs(context.Background())
	require.NoError(t, err)

	require.Len(t, jobs, 4)
	assert.Equal(t, JobRequest{Machine: "acorn", Branch: "develop", Depth: 3}, jobs[0])
	assert.Equal(t, JobRequest{Machine: "acorn", Branch: "main", Depth: 3}, jobs[1])
	assert.Equal(t, JobRequest{Machine: "hera", Branch: "develop", Depth: 3}, jobs[2])
	assert.Equal(t, JobRequest{Machine: "hera", Branch: "main", Depth: 3}, jobs[3])
}

func TestBranchesConfiguredSkipsDiscovery(t *testing.T) {
	cfg := &config.Config{
		Jobs: config.JobsConfig{
			Branches: []string{"develop"},
		},
	}

	// No git client is wired; configured branches must short-circuit
	// before discovery would need one.
	p := New(testLogger(), cfg, &Gateway{})

	branches, err := p.Branches(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"develop"}, branches)
}

func TestCommitMessage(t *testing.T) {
	msg := commitMessage("develop", ident.Identifier("v8.3.0b07-12-gb4e3f72"))
	assert.Equal(t, "updated summary for hash v8.3.0b07-12-gb4e3f72 on develop", msg)
}

func TestRowFromSummary(t *testing.T) {
	summary := &artifact.TestSummary{
		Attrs: artifact.JobAttributes{
			Branch:          "develop",
			Host:            "acorn",
			Compiler:        "gfortran",
			CompilerVersion: "10.3.0",
			Optimization:    "g",
			MPI:             "mpich3",
			MPIVersion:      "8.1.7",
		},
		OS: "Linux",
		Counters: map[string]artifact.CounterPair{
			"unit":    {Pass: "208", Fail: "0"},
			"system":  {Pass: "10", Fail: artifact.CountQueued},
			"example": {Pass: "0", Fail: "4"},
		},
	}

	row := rowFromSummary(summary, true, "abc123", ident.Identifier("v8.3.0b07-12-gb4e3f72"))

	assert.Equal(t, "develop", row.Branch)
	assert.Equal(t, "acorn", row.Host)
	assert.Equal(t, "gfortran", row.Compiler)
	assert.Equal(t, "10.3.0", row.CompilerVersion)
	assert.Equal(t, "mpich3", row.MPI)
	assert.Equal(t, "8.1.7", row.MPIVersion)
	assert.Equal(t, "g", row.Optimization)
	assert.Equal(t, "Linux", row.OS)

	assert.Equal(t, "208", row.UnitPass)
	assert.Equal(t, "0", row.UnitFail)
	assert.Equal(t, "10", row.SystemPass)
	assert.Equal(t, string(artifact.CountQueued), row.SystemFail)
	assert.Equal(t, "0", row.ExamplePass)
	assert.Equal(t, "4", row.ExampleFail)

	// Counters absent from the summary default to the fail sentinel.
	assert.Equal(t, string(artifact.CountFail), row.NuopcPass)
	assert.Equal(t, string(artifact.CountFail), row.NuopcFail)

	assert.True(t, row.BuildPassed)
	assert.Equal(t, "abc123", row.ArtifactsHash)
	assert.Equal(t, "v8.3.0b07-12-gb4e3f72", row.BranchHash)
}

func TestRowKeyStableAcrossMPIVersionCase(t *testing.T) {
	summary := &artifact.TestSummary{
		Attrs: artifact.JobAttributes{
			Branch: "develop", Host: "acorn", Compiler: "intel",
			CompilerVersion: "2021", Optimization: "O",
			MPI: "openmpi", MPIVersion: "4.1.2",
		},
		Counters: map[string]artifact.CounterPair{},
	}

	a := rowFromSummary(summary, false, "rev", ident.Identifier("v1.0.0-1-gaaa"))

	summary.Attrs.MPIVersion = "4.1.2"
	b := rowFromSummary(summary, true, "rev2", ident.Identifier("v1.0.0-1-gaaa"))

	// Identical job attributes and identifier mean identical row identity,
	// regardless of the joined verdict or provenance.
	assert.Equal(t, a.Key(), b.Key())
}
