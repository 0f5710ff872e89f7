package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSummary(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "summary.dat")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestReadSummary(t *testing.T) {
	content := "Build for = gfortran_10.3.0_mpich3_g_develop, mpi version 8.1.7 on acorn esmf_os: Linux\n" +
		"unit test results\tPASS 1024\tFAIL 0\n" +
		"system test results\tPASS 38\tFAIL 2\n" +
		"example test results\tPASS 68\tFAIL 0\n" +
		"nuopc test results\tPASS 16\tFAIL 0\n"

	summary, err := ReadSummary(testLogger(), writeSummary(t, content))
	require.NoError(t, err)

	assert.Equal(t, JobAttributes{
		Branch:          "develop",
		Host:            "acorn",
		Compiler:        "gfortran",
		CompilerVersion: "10.3.0",
		Optimization:    "g",
		MPI:             "mpich3",
		MPIVersion:      "8.1.7",
	}, summary.Attrs)
	assert.Equal(t, "Linux", summary.OS)

	assert.Equal(t, CounterPair{Pass: "1024", Fail: "0"}, summary.Counter("unit"))
	assert.Equal(t, CounterPair{Pass: "38", Fail: "2"}, summary.Counter("system"))
	assert.Equal(t, CounterPair{Pass: "68", Fail: "0"}, summary.Counter("example"))
	assert.Equal(t, CounterPair{Pass: "16", Fail: "0"}, summary.Counter("nuopc"))
}

func TestReadSummary_BranchAbsorbsUnderscores(t *testing.T) {
	content := "Build for = intel_2021.4_openmpi_O_feature_tiled_io, mpi version 4.1.2 on hera esmf_os: Linux\n"

	summary, err := ReadSummary(testLogger(), writeSummary(t, content))
	require.NoError(t, err)

	assert.Equal(t, "feature_tiled_io", summary.Attrs.Branch)
	assert.Equal(t, "intel", summary.Attrs.Compiler)
	assert.Equal(t, "2021.4", summary.Attrs.CompilerVersion)
	assert.Equal(t, "openmpi", summary.Attrs.MPI)
	assert.Equal(t, "O", summary.Attrs.Optimization)
}

func TestReadSummary_QueuedSentinel(t *testing.T) {
	content := "Build for = gfortran_10.3.0_mpich3_g_develop, mpi version 8.1.7 on acorn esmf_os: Linux\n" +
		"unit test results\t10\t-1\n"

	summary, err := ReadSummary(testLogger(), writeSummary(t, content))
	require.NoError(t, err)

	assert.Equal(t, CounterPair{Pass: "10", Fail: CountQueued}, summary.Counter("unit"))
}

func TestReadSummary_MalformedCounterRecordedAsFail(t *testing.T) {
	content := "Build for = gfortran_10.3.0_mpich3_g_develop, mpi version 8.1.7 on acorn esmf_os: Linux\n" +
		"unit test results\tgarbage values here\n" +
		"system test results\tPASS 5\tFAIL 1\n"

	summary, err := ReadSummary(testLogger(), writeSummary(t, content))
	require.NoError(t, err)

	// Malformed counter does not abort the read; later counters survive.
	assert.Equal(t, CounterPair{Pass: CountFail, Fail: CountFail}, summary.Counter("unit"))
	assert.Equal(t, CounterPair{Pass: "5", Fail: "1"}, summary.Counter("system"))
}

func TestReadSummary_MissingCounterDefaultsToFail(t *testing.T) {
	content := "Build for = gfortran_10.3.0_mpich3_g_develop, mpi version 8.1.7 on acorn esmf_os: Linux\n"

	summary, err := ReadSummary(testLogger(), writeSummary(t, content))
	require.NoError(t, err)

	assert.Equal(t, CounterPair{Pass: CountFail, Fail: CountFail}, summary.Counter("nuopc"))
}

func TestReadSummary_NoHeaderIsError(t *testing.T) {
	content := "unit test results\tPASS 10\tFAIL 0\n"

	_, err := ReadSummary(testLogger(), writeSummary(t, content))
	assert.Error(t, err)
}

func TestReadSummary_NonUTF8BytesTolerated(t *testing.T) {
	// Latin-1 high-bit bytes must not break decoding.
	content := []byte("Build for = gfortran_10.3.0_mpich3_g_develop, mpi version 8.1.7 on acorn esmf_os: Linux\n")
	content = append(content, 0xe9, 0xff, '\n')

	path := filepath.Join(t.TempDir(), "summary.dat")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	summary, err := ReadSummary(testLogger(), path)
	require.NoError(t, err)
	assert.Equal(t, "acorn", summary.Attrs.Host)
}
