package di

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/aristath/octave/internal/config"
	"github.com/aristath/octave/internal/database"
	"github.com/aristath/octave/internal/modules/universe"
)

// InitializeDatabases opens all databases and applies schemas.
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// 1. universe.db - securities and captured fundamentals
	universeDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "universe.db"),
		Profile: database.ProfileStandard,
		Name:    "universe",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize universe database: %w", err)
	}
	container.UniverseDB = universeDB

	// 2. scores.db - append-only run ledger (runs, scores, allocations)
	scoresDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "scores.db"),
		Profile: database.ProfileLedger,
		Name:    "scores",
	})
	if err != nil {
		universeDB.Close()
		return nil, fmt.Errorf("failed to initialize scores database: %w", err)
	}
	container.ScoresDB = scoresDB

	// 3. cache.db - provider response cache
	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		universeDB.Close()
		scoresDB.Close()
		return nil, fmt.Errorf("failed to initialize cache database: %w", err)
	}
	container.CacheDB = cacheDB

	// 4. history.db - daily closes, self-migrating bulk-replace store
	historyConn, err := universe.OpenHistoryDB(filepath.Join(cfg.DataDir, "history.db"))
	if err != nil {
		universeDB.Close()
		scoresDB.Close()
		cacheDB.Close()
		return nil, fmt.Errorf("failed to initialize history database: %w", err)
	}
	container.HistoryConn = historyConn

	// Apply schemas to the managed databases (single source of truth)
	for _, db := range []*database.DB{universeDB, scoresDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			universeDB.Close()
			scoresDB.Close()
			cacheDB.Close()
			historyConn.Close()
			return nil, fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
		}
	}

	log.Info().Msg("All databases initialized and schemas applied")

	return container, nil
}
