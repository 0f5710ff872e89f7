package archive

import (
	"crypto/md5" //nolint:gosec // row identity, not security
	"encoding/hex"
	"strings"
	"time"

	"github.com/esmf-org/branch-summary/pkg/artifact"
)

// Row is the persisted form of one correlated test result. It is uniquely
// identified by a content hash of all job attribute fields plus the build
// identifier, which is what makes repeated pipeline runs idempotent.
type Row struct {
	ID string `gorm:"column:id;primaryKey"`

	Branch          string `gorm:"column:branch"`
	Host            string `gorm:"column:host"`
	Compiler        string `gorm:"column:compiler"`
	CompilerVersion string `gorm:"column:compiler_version"`
	MPI             string `gorm:"column:mpi"`
	MPIVersion      string `gorm:"column:mpi_version"`
	Optimization    string `gorm:"column:optimization"`
	OS              string `gorm:"column:os"`

	UnitPass    string `gorm:"column:unit_pass"`
	UnitFail    string `gorm:"column:unit_fail"`
	SystemPass  string `gorm:"column:system_pass"`
	SystemFail  string `gorm:"column:system_fail"`
	ExamplePass string `gorm:"column:example_pass"`
	ExampleFail string `gorm:"column:example_fail"`
	NuopcPass   string `gorm:"column:nuopc_pass"`
	NuopcFail   string `gorm:"column:nuopc_fail"`

	BuildPassed bool `gorm:"column:build_passed"`

	NetCDFC string `gorm:"column:netcdf_c"`
	NetCDFF string `gorm:"column:netcdf_f"`

	// ArtifactsHash is the version-control revision that last touched the
	// source summary file.
	ArtifactsHash string `gorm:"column:artifacts_hash"`

	// BranchHash is the owning build identifier.
	BranchHash string `gorm:"column:branch_hash;index"`

	Modified time.Time `gorm:"column:modified"`
}

// TableName keeps the historical table name.
func (Row) TableName() string {
	return "summaries"
}

// Key returns the stable composite identity for the row: an md5 digest of
// the job attribute fields concatenated with the build identifier.
func (r *Row) Key() string {
	sum := md5.Sum([]byte( //nolint:gosec // row identity, not security
		r.Branch + r.Host + r.OS + r.Compiler + r.CompilerVersion +
			r.MPI + strings.ToLower(r.MPIVersion) + r.Optimization + r.BranchHash,
	))

	return hex.EncodeToString(sum[:])
}

// Attributes returns the job attribute fields of the row.
func (r *Row) Attributes() artifact.JobAttributes {
	return artifact.JobAttributes{
		Branch:          r.Branch,
		Host:            r.Host,
		Compiler:        r.Compiler,
		CompilerVersion: r.CompilerVersion,
		Optimization:    r.Optimization,
		MPI:             r.MPI,
		MPIVersion:      r.MPIVersion,
	}
}
