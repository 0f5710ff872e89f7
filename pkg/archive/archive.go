// Package archive persists correlated test results to a relational
// database, keyed so that re-running the pipeline never duplicates rows.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/esmf-org/branch-summary/pkg/config"
)

// Store provides persistence for archived summary rows.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	// InsertRows performs a bulk idempotent upsert keyed by the composite
	// row identity and returns the number of rows affected. Inserting
	// identical logical content twice replaces, never appends.
	InsertRows(ctx context.Context, rows []*Row) (int64, error)

	// FetchRowsByIdentifier returns all rows for one build identifier in a
	// deterministic total order.
	FetchRowsByIdentifier(ctx context.Context, identifier string) ([]Row, error)

	// FetchLastIdentifier returns the most recently archived identifier on
	// branch and when it was recorded.
	FetchLastIdentifier(ctx context.Context, branch string) (string, time.Time, error)

	// BuildCounts returns how many rows for identifier have a passing
	// build, and the total row count.
	BuildCounts(ctx context.Context, identifier string) (passing, total int64, err error)
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.ArchiveConfig
	db  *gorm.DB
}

// NewStore creates a Store backed by the configured database driver.
func NewStore(log logrus.FieldLogger, cfg *config.ArchiveConfig) Store {
	return &store{
		log: log.WithField("component", "archive"),
		cfg: cfg,
	}
}

// Start opens the database connection and creates the backing table if it
// is absent.
func (s *store) Start(ctx context.Context) error {
	var dialector gorm.Dialector

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening archive database: %w", err)
	}

	s.db = db

	if err := s.db.WithContext(ctx).AutoMigrate(&Row{}); err != nil {
		return fmt.Errorf("running archive migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).Info("Archive database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

// InsertRows upserts rows in one transaction. Row identity and the
// modified timestamp are stamped here so callers only provide content.
func (s *store) InsertRows(ctx context.Context, rows []*Row) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	now := time.Now()

	for _, row := range rows {
		row.ID = row.Key()
		row.Modified = now
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(rows)
	if result.Error != nil {
		return 0, fmt.Errorf("upserting rows: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// FetchRowsByIdentifier returns the rows for one identifier ordered by
// branch, host, compiler, compiler version, mpi, mpi version and
// optimization ascending. Rows can still tie on all seven attribute
// columns while differing in os, so os and the primary key are appended
// to make the order total rather than engine-dependent.
func (s *store) FetchRowsByIdentifier(
	ctx context.Context, identifier string,
) ([]Row, error) {
	var rows []Row
	if err := s.db.WithContext(ctx).
		Where("branch_hash = ?", identifier).
		Order("branch, host, compiler, compiler_version, mpi, mpi_version, optimization, os, id").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("fetching rows for %s: %w", identifier, err)
	}

	return rows, nil
}

// FetchLastIdentifier returns the identifier of the most recently modified
// row on branch.
func (s *store) FetchLastIdentifier(
	ctx context.Context, branch string,
) (string, time.Time, error) {
	var row Row
	if err := s.db.WithContext(ctx).
		Where("branch = ?", branch).
		Order("modified DESC").
		First(&row).Error; err != nil {
		return "", time.Time{}, fmt.Errorf("fetching last identifier for %s: %w", branch, err)
	}

	return row.BranchHash, row.Modified, nil
}

// BuildCounts returns the number of passing-build rows and the total row
// count for identifier.
func (s *store) BuildCounts(
	ctx context.Context, identifier string,
) (int64, int64, error) {
	var passing, total int64

	if err := s.db.WithContext(ctx).
		Model(&Row{}).
		Where("branch_hash = ?", identifier).
		Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("counting rows for %s: %w", identifier, err)
	}

	if err := s.db.WithContext(ctx).
		Model(&Row{}).
		Where("branch_hash = ? AND build_passed = ?", identifier, true).
		Count(&passing).Error; err != nil {
		return 0, 0, fmt.Errorf("counting passing rows for %s: %w", identifier, err)
	}

	return passing, total, nil
}
