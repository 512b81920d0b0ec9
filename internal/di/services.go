package di

import (
	"database/sql"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/octave/internal/clients/fundamentals"
	"github.com/aristath/octave/internal/config"
	"github.com/aristath/octave/internal/events"
	"github.com/aristath/octave/internal/modules/rebalancing"
	"github.com/aristath/octave/internal/reliability"
)

// InitializeServices creates all services from the repositories.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.EventBus = events.NewBus(log)

	container.MarketData = fundamentals.NewClient(container.CacheRepo, log)

	container.RebalancingService = rebalancing.NewService(
		container.MarketData,
		container.SecurityRepo,
		container.FundamentalsRepo,
		container.History,
		container.RunRepo,
		container.EventBus,
		cfg,
		log,
	)

	backupDir := filepath.Join(cfg.DataDir, "backups")
	container.BackupService = reliability.NewBackupService(map[string]*sql.DB{
		"universe": container.UniverseDB.Conn(),
		"scores":   container.ScoresDB.Conn(),
		"cache":    container.CacheDB.Conn(),
		"history":  container.HistoryConn,
	}, backupDir, log)

	// Cloud backups are optional: enabled only when storage credentials are
	// fully configured, and a client error disables them rather than failing
	// startup.
	if cfg.Backup != nil {
		if cfg.Backup.Bucket == "" || cfg.Backup.AccessKey == "" || cfg.Backup.SecretKey == "" {
			log.Warn().Msg("Backup storage credentials incomplete, cloud backups disabled")
		} else {
			client, err := reliability.NewS3Client(
				cfg.Backup.Endpoint,
				cfg.Backup.Region,
				cfg.Backup.Bucket,
				cfg.Backup.AccessKey,
				cfg.Backup.SecretKey,
				log,
			)
			if err != nil {
				log.Warn().Err(err).Msg("Failed to initialize object store client, cloud backups disabled")
			} else {
				prefix := cfg.Backup.Prefix
				if prefix != "" && !strings.HasSuffix(prefix, "/") {
					prefix += "/"
				}
				container.CloudBackup = reliability.NewCloudBackupService(
					client,
					container.BackupService,
					backupDir,
					prefix,
					cfg.Backup.Keep,
					container.EventBus,
					log,
				)
				log.Info().Str("bucket", cfg.Backup.Bucket).Msg("Cloud backups enabled")
			}
		}
	}

	log.Info().Msg("All services initialized")

	return nil
}
