// Package config loads and validates the branch-summary configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultLogFile is the run log copied into the summaries repo at the
	// end of each round.
	DefaultLogFile = "branch-summary.log"

	// DefaultWorkspace is the default local working directory.
	DefaultWorkspace = "./workspace"

	// DefaultArchiveFile is the sqlite archive filename inside the
	// workspace.
	DefaultArchiveFile = "summaries.db"

	// DefaultHistoryDepth is how many recent identifiers are summarized
	// per (machine, branch) job.
	DefaultHistoryDepth = 1

	// DefaultSnapshotRepo is the upstream repository whose branch tips
	// seed branch discovery when no branches are configured.
	DefaultSnapshotRepo = "https://github.com/esmf-org/esmf"
)

// KnownMachines are the test machines that produce artifacts.
var KnownMachines = []string{
	"acorn",
	"cheyenne",
	"chianti",
	"discover",
	"gaea",
	"gaffney",
	"hera",
	"izumi",
	"jet",
	"koehr",
	"onyx",
	"orion",
}

// Config is the root configuration.
type Config struct {
	Global    GlobalConfig  `yaml:"global"`
	Artifacts RepoConfig    `yaml:"artifacts"`
	Summaries RepoConfig    `yaml:"summaries"`
	Archive   ArchiveConfig `yaml:"archive"`
	Jobs      JobsConfig    `yaml:"jobs"`
	Reports   ReportsConfig `yaml:"reports"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFile   string `yaml:"log_file"`
	Workspace string `yaml:"workspace"`
}

// RepoConfig identifies one git repository the pipeline works against.
type RepoConfig struct {
	URL  string `yaml:"url"`
	Path string `yaml:"path"`
}

// ArchiveConfig selects and configures the archive database.
type ArchiveConfig struct {
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig configures the sqlite driver.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig configures the postgres driver.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// JobsConfig enumerates the work to perform each round.
type JobsConfig struct {
	Machines []string `yaml:"machines"`
	// Branches to summarize. When empty, branches are discovered from a
	// remote snapshot of the upstream repository.
	Branches     []string `yaml:"branches,omitempty"`
	History      int      `yaml:"history"`
	SnapshotRepo string   `yaml:"snapshot_repo"`
}

// ReportsConfig controls optional mirroring of the rendered reports tree.
type ReportsConfig struct {
	S3 *S3MirrorConfig `yaml:"s3,omitempty"`
}

// S3MirrorConfig configures the optional S3 mirror of rendered reports.
type S3MirrorConfig struct {
	Enabled         bool   `yaml:"enabled"`
	EndpointURL     string `yaml:"endpoint_url,omitempty"`
	Region          string `yaml:"region,omitempty"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
}

// Load reads and parses a configuration file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults sets default values for unspecified configuration options.
func (c *Config) applyDefaults() {
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = DefaultLogLevel
	}

	if c.Global.LogFile == "" {
		c.Global.LogFile = DefaultLogFile
	}

	if c.Global.Workspace == "" {
		c.Global.Workspace = DefaultWorkspace
	}

	if c.Artifacts.Path == "" {
		c.Artifacts.Path = filepath.Join(c.Global.Workspace, "artifacts")
	}

	if c.Summaries.Path == "" {
		c.Summaries.Path = filepath.Join(c.Global.Workspace, "summaries")
	}

	if c.Archive.Driver == "" {
		c.Archive.Driver = "sqlite"
	}

	if c.Archive.SQLite.Path == "" {
		c.Archive.SQLite.Path = filepath.Join(c.Global.Workspace, DefaultArchiveFile)
	}

	if len(c.Jobs.Machines) == 0 {
		c.Jobs.Machines = append([]string(nil), KnownMachines...)
	}

	if c.Jobs.History <= 0 {
		c.Jobs.History = DefaultHistoryDepth
	}

	if c.Jobs.SnapshotRepo == "" {
		c.Jobs.SnapshotRepo = DefaultSnapshotRepo
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	for _, machine := range c.Jobs.Machines {
		if !isKnownMachine(machine) {
			return fmt.Errorf("unknown machine %q, must be one of %v", machine, KnownMachines)
		}
	}

	switch c.Archive.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported archive driver: %s", c.Archive.Driver)
	}

	if c.Reports.S3 != nil && c.Reports.S3.Enabled && c.Reports.S3.Bucket == "" {
		return fmt.Errorf("reports.s3.bucket is required when the s3 mirror is enabled")
	}

	return nil
}

func isKnownMachine(name string) bool {
	idx := sort.SearchStrings(KnownMachines, name)

	return idx < len(KnownMachines) && KnownMachines[idx] == name
}
