package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/aristath/octave/internal/events"
)

const archivePrefix = "octave-backup-"

// ObjectStore is the object storage surface the cloud backup service needs.
// S3Client satisfies it.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader) error
	List(ctx context.Context, prefix string) ([]types.Object, error)
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// BackupMetadata describes one backup archive.
type BackupMetadata struct {
	Timestamp time.Time          `json:"timestamp"`
	Version   string             `json:"version"`
	Databases []DatabaseMetadata `json:"databases"`
}

// DatabaseMetadata describes one database inside an archive.
type DatabaseMetadata struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupInfo summarizes one remote archive.
type BackupInfo struct {
	Key       string    `json:"key"`
	SizeBytes int64     `json:"size_bytes"`
	Timestamp time.Time `json:"timestamp"`
}

// CloudBackupService bundles verified database copies into a tar.gz archive
// and uploads it to object storage.
type CloudBackupService struct {
	store      ObjectStore
	local      *BackupService
	stagingDir string
	keyPrefix  string
	keep       int
	bus        *events.Bus
	log        zerolog.Logger
}

// NewCloudBackupService creates the service. keep bounds how many remote
// archives rotation retains; zero or less keeps everything.
func NewCloudBackupService(
	store ObjectStore,
	local *BackupService,
	stagingDir string,
	keyPrefix string,
	keep int,
	bus *events.Bus,
	log zerolog.Logger,
) *CloudBackupService {
	return &CloudBackupService{
		store:      store,
		local:      local,
		stagingDir: stagingDir,
		keyPrefix:  keyPrefix,
		keep:       keep,
		bus:        bus,
		log:        log.With().Str("service", "cloud_backup").Logger(),
	}
}

// CreateAndUploadBackup backs up every database into a staging directory,
// writes a metadata manifest, archives the lot, and uploads the archive.
// It returns the remote key.
func (s *CloudBackupService) CreateAndUploadBackup(ctx context.Context) (string, error) {
	s.log.Info().Msg("Starting cloud backup")
	started := time.Now()

	// VACUUM INTO refuses to overwrite, so clear any stale staging leftovers.
	staging := filepath.Join(s.stagingDir, "staging")
	os.RemoveAll(staging)
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	meta := BackupMetadata{
		Timestamp: started.UTC(),
		Version:   "1",
	}
	for _, name := range s.local.DatabaseNames() {
		filename := name + ".db"
		path := filepath.Join(staging, filename)
		if err := s.local.BackupDatabase(name, path); err != nil {
			return "", fmt.Errorf("failed to back up %s: %w", name, err)
		}
		if err := s.local.verifyBackup(path); err != nil {
			return "", fmt.Errorf("backup of %s failed verification: %w", name, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("failed to stat %s backup: %w", name, err)
		}
		checksum, err := fileChecksum(path)
		if err != nil {
			return "", fmt.Errorf("failed to checksum %s backup: %w", name, err)
		}
		meta.Databases = append(meta.Databases, DatabaseMetadata{
			Name:      name,
			Filename:  filename,
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
	}

	metaPath := filepath.Join(staging, "metadata.json")
	if err := writeMetadata(metaPath, meta); err != nil {
		return "", err
	}

	archiveName := archivePrefix + started.UTC().Format("2006-01-02-150405") + ".tar.gz"
	archivePath := filepath.Join(s.stagingDir, archiveName)
	defer os.Remove(archivePath)
	if err := createArchive(archivePath, staging); err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}

	file, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	key := s.keyPrefix + archiveName
	if err := s.store.Upload(ctx, key, file); err != nil {
		return "", err
	}

	duration := time.Since(started)
	s.log.Info().
		Str("key", key).
		Int("databases", len(meta.Databases)).
		Dur("duration_ms", duration).
		Msg("Cloud backup completed")

	if s.bus != nil {
		s.bus.EmitTyped(events.BackupCompleted, "reliability", &events.BackupCompletedData{
			Databases: len(meta.Databases),
			Duration:  duration.Seconds(),
		})
	}

	return key, nil
}

// ListBackups returns the remote archives, newest first.
func (s *CloudBackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.store.List(ctx, s.keyPrefix+archivePrefix)
	if err != nil {
		return nil, err
	}

	backups := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}
		ts, ok := parseArchiveTimestamp(*obj.Key)
		if !ok {
			continue
		}
		info := BackupInfo{Key: *obj.Key, Timestamp: ts}
		if obj.Size != nil {
			info.SizeBytes = *obj.Size
		}
		backups = append(backups, info)
	}
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})

	return backups, nil
}

// RotateOldBackups deletes remote archives beyond the configured retention
// count, never touching the newest ones.
func (s *CloudBackupService) RotateOldBackups(ctx context.Context) error {
	if s.keep <= 0 {
		return nil
	}

	backups, err := s.ListBackups(ctx)
	if err != nil {
		return err
	}
	if len(backups) <= s.keep {
		return nil
	}

	for _, backup := range backups[s.keep:] {
		if err := s.store.Delete(ctx, backup.Key); err != nil {
			s.log.Warn().Err(err).Str("key", backup.Key).Msg("Failed to delete old backup")
			continue
		}
		s.log.Info().Str("key", backup.Key).Msg("Deleted old backup")
	}

	return nil
}

// RestoreLatest downloads the newest archive and extracts it into destDir.
// It returns the metadata manifest from the archive.
func (s *CloudBackupService) RestoreLatest(ctx context.Context, destDir string) (*BackupMetadata, error) {
	backups, err := s.ListBackups(ctx)
	if err != nil {
		return nil, err
	}
	if len(backups) == 0 {
		return nil, fmt.Errorf("no backups found")
	}

	newest := backups[0]
	s.log.Info().Str("key", newest.Key).Msg("Restoring from backup")

	body, err := s.store.Download(ctx, newest.Key)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	if err := extractArchive(body, destDir); err != nil {
		return nil, fmt.Errorf("failed to extract archive: %w", err)
	}

	meta, err := readMetadata(filepath.Join(destDir, "metadata.json"))
	if err != nil {
		return nil, err
	}
	for _, db := range meta.Databases {
		path := filepath.Join(destDir, db.Filename)
		checksum, err := fileChecksum(path)
		if err != nil {
			return nil, fmt.Errorf("failed to checksum restored %s: %w", db.Name, err)
		}
		if checksum != db.Checksum {
			return nil, fmt.Errorf("restored %s checksum mismatch", db.Name)
		}
	}

	return meta, nil
}

func fileChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

func writeMetadata(path string, meta BackupMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

func readMetadata(path string) (*BackupMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	var meta BackupMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &meta, nil
}

// createArchive writes every file in srcDir into a gzipped tarball.
func createArchive(archivePath, srcDir string) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	defer gw.Close()
	tw := tar.NewWriter(gw)
	defer tw.Close()

	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := addFileToArchive(tw, filepath.Join(srcDir, entry.Name()), entry.Name()); err != nil {
			return err
		}
	}
	return nil
}

func addFileToArchive(tw *tar.Writer, path, name string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    name,
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tw, file)
	return err
}

// extractArchive unpacks a gzipped tarball into destDir. Entries with path
// separators are rejected; archives are flat by construction.
func extractArchive(r io.Reader, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}

	gr, err := gzip.NewReader(r)
	if err != nil {
		return err
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		name := header.Name
		if strings.ContainsAny(name, "/\\") || name == ".." {
			return fmt.Errorf("archive entry %q has unexpected path", name)
		}
		if err := writeExtractedFile(filepath.Join(destDir, name), tr); err != nil {
			return err
		}
	}
}

func writeExtractedFile(path string, r io.Reader) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, r)
	return err
}

// parseArchiveTimestamp pulls the timestamp out of an archive key, working
// with or without a key prefix.
func parseArchiveTimestamp(key string) (time.Time, bool) {
	base := key
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	if !strings.HasPrefix(base, archivePrefix) || !strings.HasSuffix(base, ".tar.gz") {
		return time.Time{}, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(base, archivePrefix), ".tar.gz")
	ts, err := time.Parse("2006-01-02-150405", raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts.UTC(), true
}
