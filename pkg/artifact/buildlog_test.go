package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	return log
}

func TestIsBuildPassing_MarkerNearEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build.log")

	content := strings.Repeat("compiling things\n", 50) +
		"ESMF library built successfully on Thu Mar 31\n" +
		"some trailing output\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	assert.True(t, IsBuildPassing(testLogger(), path))
}

func TestIsBuildPassing_MarkerOutsideTailBound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build.log")

	// Marker buried deeper than the 200-line tail window.
	content := "ESMF library built successfully\n" +
		strings.Repeat("noise line\n", 400)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	assert.False(t, IsBuildPassing(testLogger(), path))
}

func TestIsBuildPassing_NoMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build.log")
	require.NoError(t, os.WriteFile(path, []byte("error: build failed\n"), 0o644))

	assert.False(t, IsBuildPassing(testLogger(), path))
}

func TestIsBuildPassing_NoMarkerLogsWarning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build.log")
	require.NoError(t, os.WriteFile(path, []byte("error: build failed\n"), 0o644))

	log, hook := logrustest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	assert.False(t, IsBuildPassing(log, path))

	// The defaulted verdict must surface in the run log at warning level,
	// not debug.
	var warned bool

	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warned = true

			assert.Equal(t, path, entry.Data["path"])
		}
	}

	assert.True(t, warned, "missing marker should log at warning level")
}

func TestIsBuildPassing_MissingFileIsFalseNotError(t *testing.T) {
	assert.False(t, IsBuildPassing(testLogger(), filepath.Join(t.TempDir(), "nope.log")))
}
