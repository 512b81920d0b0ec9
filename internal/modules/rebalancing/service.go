// Package rebalancing orchestrates scoring runs: fetch market data for the
// requested universe, score every security, build the target allocation,
// persist the run, and publish lifecycle events.
package rebalancing

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/octave/internal/config"
	"github.com/aristath/octave/internal/domain"
	"github.com/aristath/octave/internal/events"
	"github.com/aristath/octave/internal/modules/allocation"
	"github.com/aristath/octave/internal/modules/scoring"
	"github.com/aristath/octave/internal/modules/universe"
	"github.com/aristath/octave/pkg/quant"
)

// Request selects what a run scores. Zero values fall back to the
// configured universe and default engine.
type Request struct {
	Tickers []string `json:"tickers,omitempty"`
	Engine  string   `json:"engine,omitempty"`
}

// Result summarizes one completed run.
type Result struct {
	RunID      string                       `json:"run_id"`
	RunAt      time.Time                    `json:"run_at"`
	Engine     string                       `json:"engine"`
	Requested  int                          `json:"requested"`
	Scored     int                          `json:"scored"`
	Skipped    int                          `json:"skipped"`
	Qualified  int                          `json:"qualified"`
	Eliminated int                          `json:"eliminated"`
	Positions  int                          `json:"positions"`
	Issues     []string                     `json:"issues"`
	Metrics    *allocation.PortfolioMetrics `json:"metrics,omitempty"`
}

// Service runs the scoring pipeline end to end.
type Service struct {
	provider     domain.MarketDataProvider
	securities   *universe.SecurityRepository
	fundamentals *universe.FundamentalsRepository
	history      *universe.HistoryDB
	runs         *universe.RunRepository
	bus          *events.Bus

	pillarScorer     *scoring.PillarScorer
	continuousScorer *scoring.ContinuousScorer
	allocator        *allocation.ContinuousAllocator

	scoringCfg    config.ScoringConfig
	defaultEngine string
	universe      []string

	log zerolog.Logger
}

// NewService creates the rebalancing service.
func NewService(
	provider domain.MarketDataProvider,
	securities *universe.SecurityRepository,
	fundamentals *universe.FundamentalsRepository,
	history *universe.HistoryDB,
	runs *universe.RunRepository,
	bus *events.Bus,
	cfg *config.Config,
	log zerolog.Logger,
) *Service {
	return &Service{
		provider:         provider,
		securities:       securities,
		fundamentals:     fundamentals,
		history:          history,
		runs:             runs,
		bus:              bus,
		pillarScorer:     scoring.NewPillarScorer(),
		continuousScorer: scoring.NewContinuousScorer(),
		allocator:        allocation.NewContinuousAllocator(cfg.Scoring.MaxPositionSize, cfg.Scoring.Alpha),
		scoringCfg:       cfg.Scoring,
		defaultEngine:    cfg.DefaultEngine,
		universe:         cfg.Universe,
		log:              log.With().Str("service", "rebalancing").Logger(),
	}
}

// fetchedSecurity is one ticker's inputs after a successful fetch.
type fetchedSecurity struct {
	data       *domain.SecurityData
	volatility float64
}

// Run executes one scoring run. A failure fetching a single security skips
// that ticker and continues the batch; the run only fails on an invalid
// engine, a cancelled context, or a persistence error.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	engineName := req.Engine
	if engineName == "" {
		engineName = s.defaultEngine
	}
	engine, err := scoring.ParseEngine(engineName)
	if err != nil {
		return nil, err
	}

	tickers := normalizeTickers(req.Tickers)
	if len(tickers) == 0 {
		tickers = normalizeTickers(s.universe)
	}
	if len(tickers) == 0 {
		return nil, fmt.Errorf("no tickers to score: request and configured universe are both empty")
	}

	runID := uuid.NewString()
	runAt := time.Now().UTC()
	started := time.Now()

	s.log.Info().
		Str("run_id", runID).
		Str("engine", string(engine)).
		Int("tickers", len(tickers)).
		Msg("Rebalance run started")

	s.bus.EmitTyped(events.RunStarted, "rebalancing", &events.RunStartedData{
		RunID:   runID,
		Engine:  string(engine),
		Tickers: len(tickers),
	})

	fetched := make([]fetchedSecurity, 0, len(tickers))
	skipped := 0
	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run aborted: %w", err)
		}

		data, err := s.provider.FetchSecurityData(ctx, ticker)
		if err != nil {
			skipped++
			s.log.Warn().Err(err).Str("ticker", ticker).Msg("Skipping security")
			s.bus.EmitTyped(events.SecuritySkipped, "rebalancing", &events.SecuritySkippedData{
				RunID:  runID,
				Ticker: ticker,
				Reason: err.Error(),
			})
			continue
		}

		s.persistCapture(data)
		fetched = append(fetched, fetchedSecurity{
			data:       data,
			volatility: scoring.Volatility(quant.DailyReturns(closesOf(data.Prices))),
		})
	}

	var (
		rows       []universe.ScoreRow
		alloc      allocation.Allocation
		issues     []string
		metrics    *allocation.PortfolioMetrics
		qualified  int
		eliminated int
	)
	switch engine {
	case scoring.EnginePillar:
		rows, alloc, issues, qualified, eliminated = s.runPillar(runID, runAt, fetched)
	case scoring.EngineContinuous:
		rows, alloc, metrics, qualified = s.runContinuous(runID, runAt, fetched)
	}

	run := universe.RunRecord{
		ID:         runID,
		RunAt:      runAt,
		Engine:     string(engine),
		Requested:  len(tickers),
		Scored:     len(fetched),
		Skipped:    skipped,
		Qualified:  qualified,
		Eliminated: eliminated,
	}
	if err := s.runs.SaveRun(run, rows, alloc, issues); err != nil {
		return nil, fmt.Errorf("failed to persist run %s: %w", runID, err)
	}

	duration := time.Since(started)
	s.bus.EmitTyped(events.RunCompleted, "rebalancing", &events.RunCompletedData{
		RunID:      runID,
		Engine:     string(engine),
		Scored:     len(fetched),
		Skipped:    skipped,
		Qualified:  qualified,
		Eliminated: eliminated,
		Positions:  len(alloc.Positions),
		Duration:   duration.Seconds(),
	})
	if len(alloc.Positions) > 0 {
		s.bus.EmitTyped(events.AllocationChanged, "rebalancing", &events.AllocationChangedData{
			RunID:     runID,
			Positions: len(alloc.Positions),
		})
	}

	s.log.Info().
		Str("run_id", runID).
		Str("engine", string(engine)).
		Int("scored", len(fetched)).
		Int("skipped", skipped).
		Int("positions", len(alloc.Positions)).
		Dur("duration", duration).
		Msg("Rebalance run completed")

	return &Result{
		RunID:      runID,
		RunAt:      runAt,
		Engine:     string(engine),
		Requested:  len(tickers),
		Scored:     len(fetched),
		Skipped:    skipped,
		Qualified:  qualified,
		Eliminated: eliminated,
		Positions:  len(alloc.Positions),
		Issues:     issues,
		Metrics:    metrics,
	}, nil
}

// persistCapture stores the fetched snapshot. Storage failures are logged
// and do not fail the run; the in-memory data still gets scored.
func (s *Service) persistCapture(data *domain.SecurityData) {
	ticker := data.Security.Ticker
	if err := s.securities.Upsert(data.Security); err != nil {
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to store security")
	}
	if err := s.fundamentals.Insert(data.Fundamentals); err != nil {
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to store fundamentals")
	}
	if err := s.history.SavePrices(ticker, data.Prices); err != nil {
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to store price history")
	}
}

func (s *Service) runPillar(runID string, runAt time.Time, fetched []fetchedSecurity) ([]universe.ScoreRow, allocation.Allocation, []string, int, int) {
	scored := make([]allocation.ScoredSecurity, 0, len(fetched))
	rows := make([]universe.ScoreRow, 0, len(fetched))
	qualified, eliminated := 0, 0

	for _, f := range fetched {
		result := s.pillarScorer.ScoreSecurity(f.data.Fundamentals)
		if result.Eliminated {
			eliminated++
		} else if result.Total >= s.scoringCfg.MinTotal {
			qualified++
		}

		scored = append(scored, allocation.ScoredSecurity{
			Security:     f.data.Security,
			Fundamentals: f.data.Fundamentals,
			Result:       result,
		})
		rows = append(rows, pillarScoreRow(f, result))

		s.log.Debug().
			Str("ticker", f.data.Security.Ticker).
			Int("total", result.Total).
			Bool("eliminated", result.Eliminated).
			Msg("Scored security")

		s.bus.EmitTyped(events.SecurityScored, "rebalancing", &events.SecurityScoredData{
			RunID:      runID,
			Ticker:     f.data.Security.Ticker,
			Engine:     string(scoring.EnginePillar),
			Score:      float64(result.Total),
			Eliminated: result.Eliminated,
		})
	}

	selected := allocation.SelectTopN(scored, s.scoringCfg.PortfolioSize, s.scoringCfg.MinTotal)
	weights := allocation.CalculateWeights(selected)
	alloc := allocation.BuildAllocation(selected, weights, runAt)
	_, issues := allocation.Validate(alloc, s.scoringCfg.PortfolioSize, s.scoringCfg.MinTotal)

	return rows, alloc, issues, qualified, eliminated
}

func (s *Service) runContinuous(runID string, runAt time.Time, fetched []fetchedSecurity) ([]universe.ScoreRow, allocation.Allocation, *allocation.PortfolioMetrics, int) {
	raw := make(map[string]float64, len(fetched))
	sectors := make(map[string]string, len(fetched))
	vols := make(map[string]float64, len(fetched))
	components := make(map[string]scoring.ContinuousScores, len(fetched))

	for _, f := range fetched {
		ticker := f.data.Security.Ticker
		cs := s.continuousScorer.Score(f.data.Fundamentals)
		raw[ticker] = cs.Final
		components[ticker] = cs
		sectors[ticker] = f.data.Security.Sector
		vols[ticker] = f.volatility
	}

	// Scores compete within their sector before they compete globally.
	adjusted := scoring.AdjustBySector(raw, sectors)

	rows := make([]universe.ScoreRow, 0, len(fetched))
	for _, f := range fetched {
		ticker := f.data.Security.Ticker
		rows = append(rows, continuousScoreRow(f, components[ticker], adjusted[ticker]))

		s.log.Debug().
			Str("ticker", ticker).
			Float64("final", adjusted[ticker]).
			Msg("Scored security")

		s.bus.EmitTyped(events.SecurityScored, "rebalancing", &events.SecurityScoredData{
			RunID:  runID,
			Ticker: ticker,
			Engine: string(scoring.EngineContinuous),
			Score:  adjusted[ticker],
		})
	}

	weights := s.allocator.OptimizeWeights(adjusted, vols, s.scoringCfg.MinScore)
	metrics := s.allocator.CalculateMetrics(weights, adjusted, vols)
	alloc := buildContinuousAllocation(fetched, weights, adjusted, runAt)

	return rows, alloc, &metrics, len(weights)
}

func pillarScoreRow(f fetchedSecurity, result scoring.PillarResult) universe.ScoreRow {
	pillars := result.Pillars
	total := result.Total
	vol := f.volatility
	lowest := result.TieBreakers.LowestPillar
	median := result.TieBreakers.MedianPillar
	fcfAbs := result.TieBreakers.FCFAbsolute

	row := universe.ScoreRow{
		Ticker:       f.data.Security.Ticker,
		Name:         f.data.Security.Name,
		Sector:       f.data.Security.Sector,
		Industry:     f.data.Security.Industry,
		Engine:       string(scoring.EnginePillar),
		Volatility:   &vol,
		Pillars:      &pillars,
		Total:        &total,
		Eliminated:   result.Eliminated,
		Reasons:      result.Reasons,
		LowestPillar: &lowest,
		MedianPillar: &median,
		FCFAbsolute:  &fcfAbs,
	}
	if !math.IsInf(result.TieBreakers.PFCF, 1) {
		multiple := result.TieBreakers.PFCF
		row.FCFMultiple = &multiple
	}
	return row
}

func continuousScoreRow(f fetchedSecurity, cs scoring.ContinuousScores, final float64) universe.ScoreRow {
	economics := cs.Economics
	pricingPower := cs.PricingPower
	adjusted := final
	vol := f.volatility

	return universe.ScoreRow{
		Ticker:       f.data.Security.Ticker,
		Name:         f.data.Security.Name,
		Sector:       f.data.Security.Sector,
		Industry:     f.data.Security.Industry,
		Engine:       string(scoring.EngineContinuous),
		Economics:    &economics,
		PricingPower: &pricingPower,
		Final:        &adjusted,
		Volatility:   &vol,
	}
}

// buildContinuousAllocation turns optimizer weights into positions, ranked
// by weight. Pillar fields stay zero; the continuous engine has none.
func buildContinuousAllocation(fetched []fetchedSecurity, weights, scores map[string]float64, runAt time.Time) allocation.Allocation {
	byTicker := make(map[string]*domain.SecurityData, len(fetched))
	for _, f := range fetched {
		byTicker[f.data.Security.Ticker] = f.data
	}

	tickers := make([]string, 0, len(weights))
	for ticker := range weights {
		tickers = append(tickers, ticker)
	}
	sort.Slice(tickers, func(i, j int) bool {
		if weights[tickers[i]] != weights[tickers[j]] {
			return weights[tickers[i]] > weights[tickers[j]]
		}
		return tickers[i] < tickers[j]
	})

	positions := make([]allocation.Position, 0, len(tickers))
	for i, ticker := range tickers {
		data := byTicker[ticker]
		if data == nil {
			continue
		}

		name := data.Security.Name
		if name == "" {
			name = ticker
		}
		sector := data.Security.Sector
		if sector == "" {
			sector = "Unknown"
		}
		industry := data.Security.Industry
		if industry == "" {
			industry = "Unknown"
		}

		fdm := data.Fundamentals
		multiple := math.Inf(1)
		if fdm.FCFMultiple != nil {
			multiple = *fdm.FCFMultiple
		}
		fcfAbs := 0.0
		if fdm.FCF != nil {
			fcfAbs = *fdm.FCF
		}

		positions = append(positions, allocation.Position{
			Rank:       i + 1,
			Ticker:     ticker,
			Name:       name,
			Sector:     sector,
			Industry:   industry,
			Weight:     weights[ticker],
			TotalScore: int(math.Round(scores[ticker])),
			Fundamentals: allocation.FundamentalsSnapshot{
				ROIC:             fdm.ROIC,
				DebtToEBITDA:     fdm.DebtToEBITDA,
				RevenueCAGR3Y:    fdm.RevenueCAGR3Y,
				RuleOf40:         fdm.RuleOf40,
				GrossMarginPct:   fdm.GrossMarginPct,
				ROE:              fdm.ROE,
				FCFMargin:        fdm.FCFMargin,
				MarketShareTrend: fdm.MarketShareTrend,
				TAMGrowth:        fdm.TAMGrowth,
			},
			TieBreakers: scoring.TieBreakers{
				PFCF:        multiple,
				FCFAbsolute: fcfAbs,
			},
		})
	}

	return allocation.Allocation{RunAt: runAt, Positions: positions}
}

func closesOf(prices []domain.PricePoint) []float64 {
	closes := make([]float64, 0, len(prices))
	for _, p := range prices {
		closes = append(closes, p.Close)
	}
	return closes
}

// normalizeTickers upper-cases, trims, and de-duplicates while keeping the
// caller's order. Scoring is order-independent, but deterministic iteration
// makes runs reproducible.
func normalizeTickers(tickers []string) []string {
	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		ticker := strings.ToUpper(strings.TrimSpace(t))
		if ticker == "" || seen[ticker] {
			continue
		}
		seen[ticker] = true
		out = append(out, ticker)
	}
	return out
}
