package database

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// BackupService copies the SQLite file to a backup directory on a fixed
// interval and prunes copies older than the retention window.
type BackupService struct {
	dbPath        string
	storagePath   string
	interval      time.Duration
	retentionDays int
	logger        *zerolog.Logger
}

// NewBackupService creates a backup service for the database at dbPath.
func NewBackupService(dbPath, storagePath string, interval time.Duration, retentionDays int, logger *zerolog.Logger) *BackupService {
	return &BackupService{
		dbPath:        dbPath,
		storagePath:   storagePath,
		interval:      interval,
		retentionDays: retentionDays,
		logger:        logger,
	}
}

// Start runs the backup loop until the context is cancelled. The first
// backup runs immediately.
func (s *BackupService) Start(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("backup service started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if err := s.PerformBackup(); err != nil {
		s.logger.Error().Err(err).Msg("initial backup failed")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.PerformBackup(); err != nil {
				s.logger.Error().Err(err).Msg("scheduled backup failed")
			}
			s.cleanupOldBackups()
		}
	}
}

// PerformBackup writes a timestamped copy of the database file.
func (s *BackupService) PerformBackup() error {
	if err := os.MkdirAll(s.storagePath, 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	backupPath := filepath.Join(s.storagePath, fmt.Sprintf("slotline_%s.db", timestamp))

	source, err := os.Open(s.dbPath)
	if err != nil {
		return fmt.Errorf("open database file: %w", err)
	}
	defer source.Close()

	destination, err := os.Create(backupPath)
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}
	defer destination.Close()

	if _, err := io.Copy(destination, source); err != nil {
		return fmt.Errorf("copy database: %w", err)
	}

	s.logger.Info().Str("path", backupPath).Msg("backup completed")
	return nil
}

func (s *BackupService) cleanupOldBackups() {
	if s.retentionDays <= 0 {
		return
	}

	files, err := os.ReadDir(s.storagePath)
	if err != nil {
		s.logger.Error().Err(err).Msg("read backup directory failed")
		return
	}

	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		info, err := file.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			s.logger.Info().Str("file", file.Name()).Msg("deleting old backup")
			os.Remove(filepath.Join(s.storagePath, file.Name()))
		}
	}
}
