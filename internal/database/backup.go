package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"barberbook/internal/config"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

const (
	backupPrefix     = "barberbook_"
	backupSuffix     = ".db"
	backupTimeLayout = "20060102_150405.000"
)

// BackupService snapshots the SQLite file on a schedule and prunes old
// snapshots. Postgres deployments rely on the server's own backups.
type BackupService struct {
	db     *DB
	config config.BackupConfig
	now    func() time.Time
	logger *zerolog.Logger
}

func NewBackupService(db *DB, cfg config.BackupConfig, logger *zerolog.Logger) *BackupService {
	return &BackupService{
		db:     db,
		config: cfg,
		now:    time.Now,
		logger: logger,
	}
}

// Start takes a snapshot right away and then every IntervalHours until ctx ends.
func (s *BackupService) Start(ctx context.Context) {
	if !s.config.Enabled {
		s.logger.Info().Msg("Backup service is disabled")
		return
	}

	interval := time.Duration(s.config.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	s.logger.Info().Dur("interval", interval).Str("storage_path", s.config.StoragePath).Msg("Backup service started")

	s.runOnce(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *BackupService) runOnce(ctx context.Context) {
	if _, err := s.PerformBackup(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Backup failed")
		return
	}
	s.CleanupOldBackups()
}

// PerformBackup writes a consistent snapshot and returns its path. VACUUM INTO
// is tried first; older SQLite builds fall back to the online backup API.
func (s *BackupService) PerformBackup(ctx context.Context) (string, error) {
	if s.db.Path() == ":memory:" {
		return "", errors.New("in-memory database cannot be backed up")
	}
	if err := os.MkdirAll(s.config.StoragePath, 0o755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	dest := filepath.Join(s.config.StoragePath, backupPrefix+s.now().Format(backupTimeLayout)+backupSuffix)
	started := time.Now()

	quoted := strings.ReplaceAll(dest, "'", "''")
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO '"+quoted+"'"); err != nil {
		s.logger.Warn().Err(err).Msg("VACUUM INTO failed, using online backup")
		_ = os.Remove(dest)
		if err := s.onlineBackup(ctx, dest); err != nil {
			return "", fmt.Errorf("online backup: %w", err)
		}
	}

	s.logger.Info().Str("path", dest).Dur("took", time.Since(started)).Msg("Backup completed")
	return dest, nil
}

// onlineBackup copies every page of the live database through sqlite3_backup.
func (s *BackupService) onlineBackup(ctx context.Context, dest string) error {
	destDB, err := sql.Open("sqlite3", dest)
	if err != nil {
		return err
	}
	defer destDB.Close()

	destConn, err := destDB.Conn(ctx)
	if err != nil {
		return err
	}
	defer destConn.Close()

	srcConn, err := s.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer srcConn.Close()

	return destConn.Raw(func(destRaw any) error {
		return srcConn.Raw(func(srcRaw any) error {
			d, ok := destRaw.(*sqlite3.SQLiteConn)
			src, ok2 := srcRaw.(*sqlite3.SQLiteConn)
			if !ok || !ok2 {
				return errors.New("unexpected sqlite driver connection")
			}
			b, err := d.Backup("main", src, "main")
			if err != nil {
				return err
			}
			if _, err := b.Step(-1); err != nil {
				_ = b.Close()
				return err
			}
			return b.Finish()
		})
	})
}

// CleanupOldBackups removes snapshots older than RetentionDays and returns
// how many were deleted. Files not written by PerformBackup are left alone.
func (s *BackupService) CleanupOldBackups() int {
	if s.config.RetentionDays <= 0 {
		return 0
	}
	entries, err := os.ReadDir(s.config.StoragePath)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read backup directory")
		return 0
	}

	cutoff := s.now().AddDate(0, 0, -s.config.RetentionDays)
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.config.StoragePath, name)); err != nil {
			s.logger.Warn().Err(err).Str("file", name).Msg("Failed to delete old backup")
			continue
		}
		s.logger.Info().Str("file", name).Msg("Deleted old backup")
		removed++
	}
	return removed
}
