package correlate_test

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/esmf-org/branch-summary/pkg/artifact"
	"github.com/esmf-org/branch-summary/pkg/correlate"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	return log
}

func attrs() artifact.JobAttributes {
	return artifact.JobAttributes{
		Branch:          "develop",
		Host:            "hera",
		Compiler:        "gfortran",
		CompilerVersion: "10.3.0",
		Optimization:    "O",
		MPI:             "mpich3",
		MPIVersion:      "3.4.2",
	}
}

func TestLookup_ExactMatchReturnsStoredVerdict(t *testing.T) {
	v := correlate.NewVerdicts(testLogger())
	v.Record(attrs(), true)

	failing := attrs()
	failing.Host = "cheyenne"
	v.Record(failing, false)

	assert.True(t, v.Lookup(attrs()))
	assert.False(t, v.Lookup(failing))
	assert.Equal(t, 2, v.Len())
}

func TestLookup_CaseInsensitive(t *testing.T) {
	v := correlate.NewVerdicts(testLogger())
	v.Record(attrs(), true)

	mixed := attrs()
	mixed.Compiler = "GFortran"
	mixed.Optimization = "o"
	mixed.Host = "HERA"

	assert.True(t, v.Lookup(mixed))
}

func TestLookup_SingleFieldMismatchIsMiss(t *testing.T) {
	v := correlate.NewVerdicts(testLogger())
	v.Record(attrs(), true)

	other := attrs()
	other.MPIVersion = "3.4.3"

	assert.False(t, v.Lookup(other))
}

func TestLookup_MissDefaultsToFalse(t *testing.T) {
	v := correlate.NewVerdicts(testLogger())

	assert.NotPanics(t, func() {
		assert.False(t, v.Lookup(attrs()))
	})
}
