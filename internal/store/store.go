// Package store opens and migrates the single SQLite database each wkmp
// installation uses (<root>/wkmp.db), and provides the repository methods
// both cores need against the files/passages/queue/settings/import_*
// tables.
package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	wkmperrors "github.com/wkmp/core/internal/errors"
	"github.com/wkmp/core/internal/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store wraps a *gorm.DB opened against the wkmp database, with the PRAGMA
// tuning and pool sizing spec §5/§6 call for.
type Store struct {
	DB   *gorm.DB
	path string
}

// Open creates the root-relative database file if absent, applies the WAL/
// synchronous/foreign-key pragmas, sizes the connection pool to
// 8×workerCount (spec §5), and auto-migrates every table in internal/model.
func Open(dbPath string, workerCount int, debug bool) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil { //nolint:gosec
		return nil, wkmperrors.New(err).
			Component("store").
			Category(wkmperrors.CategoryFileIO).
			Context("operation", "create_database_directory").
			Context("directory", filepath.Dir(dbPath)).
			Build()
	}

	logLevel := logger.Warn
	if debug {
		logLevel = logger.Info
	}
	gormLogger := logger.Default.LogMode(logLevel)

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, wkmperrors.New(err).
			Component("store").
			Category(wkmperrors.CategoryDatabase).
			Context("operation", "open_sqlite_database").
			Context("db_path", dbPath).
			Build()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, wkmperrors.New(err).
			Component("store").
			Category(wkmperrors.CategoryDatabase).
			Context("operation", "get_underlying_sqldb").
			Build()
	}

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=-4000",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			return nil, wkmperrors.New(err).
				Component("store").
				Category(wkmperrors.CategoryDatabase).
				Context("operation", "set_pragma").
				Context("pragma", pragma).
				Build()
		}
	}

	if workerCount < 1 {
		workerCount = 1
	}
	sqlDB.SetMaxOpenConns(8 * workerCount)
	sqlDB.SetMaxIdleConns(8 * workerCount)

	if err := db.AutoMigrate(
		&model.AudioFile{},
		&model.Passage{},
		&model.QueueEntry{},
		&model.Setting{},
		&model.ImportSession{},
		&model.ImportProvenance{},
		&model.Song{},
		&model.PassageSong{},
	); err != nil {
		return nil, wkmperrors.New(err).
			Component("store").
			Category(wkmperrors.CategoryDatabase).
			Context("operation", "auto_migrate").
			Build()
	}

	return &Store{DB: db, path: dbPath}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Optimize runs ANALYZE then VACUUM, aborting early if ctx is cancelled.
func (s *Store) Optimize(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if err := s.DB.WithContext(ctx).Exec("ANALYZE").Error; err != nil {
		return wkmperrors.New(err).Component("store").Category(wkmperrors.CategoryDatabase).Context("operation", "analyze").Build()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if err := s.DB.WithContext(ctx).Exec("VACUUM").Error; err != nil {
		return wkmperrors.New(err).Component("store").Category(wkmperrors.CategoryDatabase).Context("operation", "vacuum").Build()
	}
	return nil
}

// Backup copies the database file to a timestamped sibling path, refusing
// if the source doesn't exist yet (nothing to back up) or if there isn't
// enough free disk space.
func (s *Store) Backup() (string, error) {
	info, err := os.Stat(s.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", wkmperrors.New(err).Component("store").Category(wkmperrors.CategoryFileIO).Context("operation", "stat_database").Build()
	}

	var stat statfsAvailable
	available, statErr := stat.availableBytes(filepath.Dir(s.path))
	if statErr == nil && available < uint64(info.Size())+1024*1024 {
		return "", wkmperrors.Newf("insufficient disk space for backup").
			Component("store").
			Category(wkmperrors.CategorySystem).
			Context("required_bytes", fmt.Sprintf("%d", info.Size()+1024*1024)).
			Context("available_bytes", fmt.Sprintf("%d", available)).
			Build()
	}

	backupPath := fmt.Sprintf("%s.backup_%s", s.path, time.Now().Format("20060102_150405"))
	source, err := os.Open(s.path)
	if err != nil {
		return "", wkmperrors.New(err).Component("store").Category(wkmperrors.CategoryFileIO).Context("operation", "open_source_database").Build()
	}
	defer source.Close()

	destination, err := os.Create(backupPath)
	if err != nil {
		return "", wkmperrors.New(err).Component("store").Category(wkmperrors.CategoryFileIO).Context("operation", "create_backup_file").Build()
	}
	defer destination.Close()

	if _, err := io.Copy(destination, source); err != nil {
		return "", wkmperrors.New(err).Component("store").Category(wkmperrors.CategoryFileIO).Context("operation", "copy_database").Build()
	}
	return backupPath, nil
}
