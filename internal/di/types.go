package di

import (
	"database/sql"

	"github.com/aristath/octave/internal/clientdata"
	"github.com/aristath/octave/internal/database"
	"github.com/aristath/octave/internal/domain"
	"github.com/aristath/octave/internal/events"
	"github.com/aristath/octave/internal/modules/rebalancing"
	"github.com/aristath/octave/internal/modules/universe"
	"github.com/aristath/octave/internal/reliability"
)

// Container holds all initialized dependencies, grouped by layer.
type Container struct {
	// Databases
	UniverseDB  *database.DB
	ScoresDB    *database.DB
	CacheDB     *database.DB
	HistoryConn *sql.DB

	// Repositories
	SecurityRepo     *universe.SecurityRepository
	FundamentalsRepo *universe.FundamentalsRepository
	RunRepo          *universe.RunRepository
	ScoreRepo        *universe.ScoreRepository
	AllocationRepo   *universe.AllocationRepository
	CacheRepo        *clientdata.Repository
	History          *universe.HistoryDB

	// Services
	EventBus           *events.Bus
	MarketData         domain.MarketDataProvider
	RebalancingService *rebalancing.Service
	BackupService      *reliability.BackupService
	CloudBackup        *reliability.CloudBackupService // nil when backups are disabled
}

// JobInstances holds the scheduled job implementations so main can register
// them with the scheduler and the API can trigger them manually.
type JobInstances struct {
	Rebalance    *rebalancing.Job
	CacheCleanup *clientdata.CleanupJob
	Snapshot     *reliability.SnapshotJob
	CloudBackup  *reliability.CloudBackupJob // nil when backups are disabled
}

// CloseDatabases closes every database connection the container opened.
func (c *Container) CloseDatabases() {
	if c.UniverseDB != nil {
		c.UniverseDB.Close()
	}
	if c.ScoresDB != nil {
		c.ScoresDB.Close()
	}
	if c.CacheDB != nil {
		c.CacheDB.Close()
	}
	if c.HistoryConn != nil {
		c.HistoryConn.Close()
	}
}
