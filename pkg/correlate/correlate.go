// Package correlate joins test-result records to build-pass verdicts by
// composite attribute key.
package correlate

import (
	"github.com/sirupsen/logrus"

	"github.com/esmf-org/branch-summary/pkg/artifact"
)

// Verdicts maps normalized job attributes to the build-pass boolean
// extracted from the matching build log. Built once per processing round.
type Verdicts struct {
	log     logrus.FieldLogger
	byAttrs map[artifact.JobAttributes]bool
}

// NewVerdicts creates an empty verdict set.
func NewVerdicts(log logrus.FieldLogger) *Verdicts {
	return &Verdicts{
		log:     log.WithField("component", "correlator"),
		byAttrs: make(map[artifact.JobAttributes]bool),
	}
}

// Record stores the build-pass verdict for attrs. Keys are normalized so
// later lookups are case-insensitive.
func (v *Verdicts) Record(attrs artifact.JobAttributes, passed bool) {
	v.byAttrs[attrs.Normalized()] = passed
}

// Len returns the number of recorded verdicts.
func (v *Verdicts) Len() int {
	return len(v.byAttrs)
}

// Lookup returns the build-pass verdict matching attrs. Matching is exact
// on every field after normalization; no partial matching. A miss is logged
// at warning level and defaults to false, since a missing build verdict
// must not block archiving the test counts.
func (v *Verdicts) Lookup(attrs artifact.JobAttributes) bool {
	passed, ok := v.byAttrs[attrs.Normalized()]
	if !ok {
		v.log.WithFields(logrus.Fields{
			"branch":   attrs.Branch,
			"host":     attrs.Host,
			"compiler": attrs.Compiler,
			"mpi":      attrs.MPI,
		}).Warn("build result not found, defaulting to failed")

		return false
	}

	return passed
}
