package di

import (
	"github.com/rs/zerolog"

	"github.com/aristath/octave/internal/clientdata"
	"github.com/aristath/octave/internal/modules/universe"
)

// InitializeRepositories creates all repositories from the opened databases.
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	container.SecurityRepo = universe.NewSecurityRepository(container.UniverseDB.Conn(), log)
	container.FundamentalsRepo = universe.NewFundamentalsRepository(container.UniverseDB.Conn(), log)

	container.RunRepo = universe.NewRunRepository(container.ScoresDB.Conn(), log)
	container.ScoreRepo = universe.NewScoreRepository(container.ScoresDB.Conn(), log)
	container.AllocationRepo = universe.NewAllocationRepository(container.ScoresDB.Conn(), log)

	container.CacheRepo = clientdata.NewRepository(container.CacheDB.Conn())
	container.History = universe.NewHistoryDB(container.HistoryConn, log)

	log.Info().Msg("All repositories initialized")

	return nil
}
