package artifact

import (
	"bufio"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// buildSuccessMarker is the fixed line fragment emitted at the end of a
// passing build.
const buildSuccessMarker = "ESMF library built successfully"

// buildLogTailLines bounds the scan to the end of the file; the marker is
// always within the last few lines of a passing log.
const buildLogTailLines = 200

// IsBuildPassing scans the build log at path from the end, bounded to the
// last 200 lines, for the success marker. A missing or unreadable file is a
// recoverable condition logged and treated as a failing build, never an
// error.
func IsBuildPassing(log logrus.FieldLogger, path string) bool {
	f, err := os.Open(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Error("build log not readable, treating build as failed")

		return false
	}
	defer f.Close()

	var lines []string

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > buildLogTailLines {
			lines = lines[1:]
		}
	}

	for i := len(lines) - 1; i >= 0; i-- {
		if strings.Contains(lines[i], buildSuccessMarker) {
			return true
		}
	}

	log.WithField("path", path).Warn("build success marker not found, treating build as failed")

	return false
}
