package reliability

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// SnapshotJob runs local snapshots on a schedule.
type SnapshotJob struct {
	service *BackupService
	keep    int
	log     zerolog.Logger
}

// NewSnapshotJob creates a snapshot job that keeps the newest keep
// snapshot directories.
func NewSnapshotJob(service *BackupService, keep int, log zerolog.Logger) *SnapshotJob {
	return &SnapshotJob{service: service, keep: keep, log: log}
}

// Run takes a snapshot and rotates old ones.
func (j *SnapshotJob) Run() error {
	if _, err := j.service.Snapshot(); err != nil {
		return err
	}
	return j.service.RotateSnapshots(j.keep)
}

// Name returns the job name.
func (j *SnapshotJob) Name() string {
	return "snapshot"
}

// CloudBackupJob uploads archives to object storage on a schedule.
type CloudBackupJob struct {
	service *CloudBackupService
	log     zerolog.Logger
}

// NewCloudBackupJob creates a cloud backup job.
func NewCloudBackupJob(service *CloudBackupService, log zerolog.Logger) *CloudBackupJob {
	return &CloudBackupJob{service: service, log: log}
}

// Run creates and uploads one backup archive, then rotates old remote
// archives. Uploads are bounded so a stalled connection cannot wedge the
// scheduler slot.
func (j *CloudBackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if _, err := j.service.CreateAndUploadBackup(ctx); err != nil {
		return err
	}
	return j.service.RotateOldBackups(ctx)
}

// Name returns the job name.
func (j *CloudBackupJob) Name() string {
	return "cloud_backup"
}
