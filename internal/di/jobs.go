package di

import (
	"github.com/rs/zerolog"

	"github.com/aristath/octave/internal/clientdata"
	"github.com/aristath/octave/internal/config"
	"github.com/aristath/octave/internal/modules/rebalancing"
	"github.com/aristath/octave/internal/reliability"
)

// defaultSnapshotKeep bounds local snapshot directories when no retention is
// configured.
const defaultSnapshotKeep = 8

// RegisterJobs creates the scheduled job instances.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	keep := defaultSnapshotKeep
	if cfg.Backup != nil && cfg.Backup.Keep > 0 {
		keep = cfg.Backup.Keep
	}

	jobs := &JobInstances{
		Rebalance:    rebalancing.NewJob(container.RebalancingService, log),
		CacheCleanup: clientdata.NewCleanupJob(container.CacheRepo, log),
		Snapshot:     reliability.NewSnapshotJob(container.BackupService, keep, log),
	}
	if container.CloudBackup != nil {
		jobs.CloudBackup = reliability.NewCloudBackupJob(container.CloudBackup, log)
	}

	log.Info().Msg("All jobs registered")

	return jobs, nil
}
