// Package reliability provides database backups, both local snapshots and
// uploads to S3-compatible object storage.
package reliability

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// BackupService snapshots the SQLite databases to a local directory using
// VACUUM INTO, which produces a consistent copy without stopping writers.
type BackupService struct {
	conns     map[string]*sql.DB
	backupDir string
	log       zerolog.Logger
}

// NewBackupService creates a backup service over the named database
// connections.
func NewBackupService(conns map[string]*sql.DB, backupDir string, log zerolog.Logger) *BackupService {
	return &BackupService{
		conns:     conns,
		backupDir: backupDir,
		log:       log.With().Str("service", "backup").Logger(),
	}
}

// DatabaseNames returns the backed-up database names, sorted for
// deterministic iteration.
func (s *BackupService) DatabaseNames() []string {
	names := make([]string, 0, len(s.conns))
	for name := range s.conns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot backs up every database into a timestamped directory under the
// backup root and returns that directory. A database that fails to back up
// or verify is logged and skipped; the snapshot fails only when nothing
// could be written.
func (s *BackupService) Snapshot() (string, error) {
	s.log.Info().Msg("Starting local snapshot")
	started := time.Now()

	dir := filepath.Join(s.backupDir, "snapshots", time.Now().UTC().Format("2006-01-02-150405"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	written := 0
	for _, name := range s.DatabaseNames() {
		path := filepath.Join(dir, name+".db")
		if err := s.BackupDatabase(name, path); err != nil {
			s.log.Error().Err(err).Str("database", name).Msg("Failed to back up database")
			continue
		}
		if err := s.verifyBackup(path); err != nil {
			s.log.Error().Err(err).Str("database", name).Msg("Backup verification failed")
			os.Remove(path)
			continue
		}
		written++
	}
	if written == 0 {
		os.RemoveAll(dir)
		return "", fmt.Errorf("snapshot wrote no databases")
	}

	s.log.Info().
		Dur("duration_ms", time.Since(started)).
		Str("dir", dir).
		Int("databases", written).
		Msg("Local snapshot completed")

	return dir, nil
}

// BackupDatabase copies one database to destPath via VACUUM INTO. The copy
// is a fresh, compacted file with no WAL sidecar.
func (s *BackupService) BackupDatabase(name, destPath string) error {
	conn, ok := s.conns[name]
	if !ok {
		return fmt.Errorf("database %s not found", name)
	}

	if _, err := conn.Exec(fmt.Sprintf("VACUUM INTO '%s'", destPath)); err != nil {
		return fmt.Errorf("VACUUM INTO failed: %w", err)
	}

	info, err := os.Stat(destPath)
	if err != nil {
		return fmt.Errorf("failed to stat backup: %w", err)
	}

	s.log.Debug().
		Str("database", name).
		Float64("size_mb", float64(info.Size())/1024/1024).
		Msg("Backup created")

	return nil
}

// verifyBackup opens the copy and runs an integrity check.
func (s *BackupService) verifyBackup(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// RotateSnapshots deletes the oldest snapshot directories, keeping the
// newest keep of them. A keep of zero or less keeps everything.
func (s *BackupService) RotateSnapshots(keep int) error {
	if keep <= 0 {
		return nil
	}

	snapshotsDir := filepath.Join(s.backupDir, "snapshots")
	entries, err := os.ReadDir(snapshotsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read snapshots directory: %w", err)
	}

	dirs := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := time.Parse("2006-01-02-150405", entry.Name()); err != nil {
			continue
		}
		dirs = append(dirs, entry.Name())
	}
	if len(dirs) <= keep {
		return nil
	}

	// Timestamped names sort chronologically.
	sort.Strings(dirs)
	for _, name := range dirs[:len(dirs)-keep] {
		path := filepath.Join(snapshotsDir, name)
		if err := os.RemoveAll(path); err != nil {
			s.log.Warn().Err(err).Str("path", path).Msg("Failed to delete old snapshot")
			continue
		}
		s.log.Debug().Str("path", path).Msg("Deleted old snapshot")
	}

	return nil
}
