// Package handlers exposes the run-centric HTTP API: triggering rebalances
// and reading scores, portfolios, runs, and the universe.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/octave/internal/config"
	"github.com/aristath/octave/internal/domain"
	"github.com/aristath/octave/internal/modules/allocation"
	"github.com/aristath/octave/internal/modules/rebalancing"
	"github.com/aristath/octave/internal/modules/scoring"
	"github.com/aristath/octave/internal/modules/universe"
)

// Handler serves the rebalancing and run-history endpoints.
type Handler struct {
	service      *rebalancing.Service
	runs         *universe.RunRepository
	scores       *universe.ScoreRepository
	allocations  *universe.AllocationRepository
	securities   *universe.SecurityRepository
	fundamentals *universe.FundamentalsRepository
	history      *universe.HistoryDB
	allocator    *allocation.ContinuousAllocator
	log          zerolog.Logger
}

// NewHandler creates the rebalancing API handler.
func NewHandler(
	service *rebalancing.Service,
	runs *universe.RunRepository,
	scores *universe.ScoreRepository,
	allocations *universe.AllocationRepository,
	securities *universe.SecurityRepository,
	fundamentals *universe.FundamentalsRepository,
	history *universe.HistoryDB,
	cfg *config.Config,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		service:      service,
		runs:         runs,
		scores:       scores,
		allocations:  allocations,
		securities:   securities,
		fundamentals: fundamentals,
		history:      history,
		allocator:    allocation.NewContinuousAllocator(cfg.Scoring.MaxPositionSize, cfg.Scoring.Alpha),
		log:          log.With().Str("module", "rebalancing_handlers").Logger(),
	}
}

// RegisterRoutes registers all run-centric routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/rebalance", h.HandleRebalance)

	r.Get("/scores", h.HandleGetScores)
	r.Get("/scores/{ticker}", h.HandleGetScoreHistory)

	r.Route("/portfolio", func(r chi.Router) {
		r.Get("/", h.HandleGetPortfolio)
		r.Get("/validation", h.HandleGetValidation)
		r.Get("/changes", h.HandleGetChanges)
	})

	r.Get("/runs", h.HandleGetRuns)

	r.Route("/universe", func(r chi.Router) {
		r.Get("/", h.HandleGetUniverse)
		r.Get("/{ticker}/prices", h.HandleGetPrices)
	})
}

// HandleRebalance triggers a scoring run.
// POST /api/rebalance
func (h *Handler) HandleRebalance(w http.ResponseWriter, r *http.Request) {
	var req rebalancing.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Engine != "" {
		if _, err := scoring.ParseEngine(req.Engine); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	result, err := h.service.Run(r.Context(), req)
	if err != nil {
		h.log.Error().Err(err).Msg("Rebalance failed")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, rebalanceResponse{
		Result:  result,
		Message: "rebalance completed",
	})
}

type rebalanceResponse struct {
	*rebalancing.Result
	Message string `json:"message"`
}

// scoreView decorates a persisted score row with the human-readable
// elimination reason.
type scoreView struct {
	universe.ScoreRow
	EliminationReason string `json:"elimination_reason,omitempty"`
}

func scoreViews(rows []universe.ScoreRow) []scoreView {
	views := make([]scoreView, 0, len(rows))
	for _, row := range rows {
		view := scoreView{ScoreRow: row}
		if row.Eliminated {
			view.EliminationReason = scoring.FormatEliminationReason(row.Reasons)
		}
		views = append(views, view)
	}
	return views
}

// HandleGetScores returns all scores of the latest run.
// GET /api/scores
func (h *Handler) HandleGetScores(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.LatestRun()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load latest run")
		respondError(w, http.StatusInternalServerError, "failed to load latest run")
		return
	}
	if run == nil {
		respondError(w, http.StatusNotFound, "no runs recorded yet")
		return
	}

	rows, err := h.scores.ByRun(run.ID)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to load scores")
		respondError(w, http.StatusInternalServerError, "failed to load scores")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": run.ID,
		"run_at": run.RunAt,
		"engine": run.Engine,
		"scores": scoreViews(rows),
	})
}

// HandleGetScoreHistory returns the score history for one ticker, latest
// first.
// GET /api/scores/{ticker}
func (h *Handler) HandleGetScoreHistory(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	rows, err := h.scores.HistoryForTicker(ticker, queryLimit(r, 50))
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to load score history")
		respondError(w, http.StatusInternalServerError, "failed to load score history")
		return
	}
	if len(rows) == 0 {
		respondError(w, http.StatusNotFound, "no scores recorded for "+ticker)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ticker": rows[0].Ticker,
		"scores": scoreViews(rows),
	})
}

// HandleGetPortfolio returns the allocation of the latest run.
// GET /api/portfolio
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.LatestRun()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load latest run")
		respondError(w, http.StatusInternalServerError, "failed to load latest run")
		return
	}
	if run == nil {
		respondError(w, http.StatusNotFound, "no runs recorded yet")
		return
	}

	alloc, err := h.allocations.ByRun(run.ID)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to load allocation")
		respondError(w, http.StatusInternalServerError, "failed to load allocation")
		return
	}

	positions := make([]allocation.Position, 0, len(alloc.Positions))
	for _, p := range alloc.Positions {
		if p.Weight > 0 {
			positions = append(positions, p)
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":    run.ID,
		"run_at":    run.RunAt,
		"engine":    run.Engine,
		"positions": positions,
		"metrics":   h.portfolioMetrics(run.ID, positions),
	})
}

// portfolioMetrics recomputes summary statistics for a stored allocation
// from its positions and the run's persisted volatilities.
func (h *Handler) portfolioMetrics(runID string, positions []allocation.Position) allocation.PortfolioMetrics {
	weights := make(map[string]float64, len(positions))
	scores := make(map[string]float64, len(positions))
	for _, p := range positions {
		weights[p.Ticker] = p.Weight
		scores[p.Ticker] = float64(p.TotalScore)
	}

	vols := make(map[string]float64, len(positions))
	rows, err := h.scores.ByRun(runID)
	if err == nil {
		for _, row := range rows {
			if row.Volatility != nil {
				vols[row.Ticker] = *row.Volatility
			}
		}
	}

	return h.allocator.CalculateMetrics(weights, scores, vols)
}

// HandleGetValidation returns the validation report of the latest run.
// GET /api/portfolio/validation
func (h *Handler) HandleGetValidation(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.LatestRun()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load latest run")
		respondError(w, http.StatusInternalServerError, "failed to load latest run")
		return
	}
	if run == nil {
		respondError(w, http.StatusNotFound, "no runs recorded yet")
		return
	}

	issues, err := h.allocations.IssuesByRun(run.ID)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to load validation issues")
		respondError(w, http.StatusInternalServerError, "failed to load validation issues")
		return
	}
	if issues == nil {
		issues = []string{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": run.ID,
		"run_at": run.RunAt,
		"valid":  len(issues) == 0,
		"issues": issues,
	})
}

// HandleGetChanges diffs the two most recent runs.
// GET /api/portfolio/changes
func (h *Handler) HandleGetChanges(w http.ResponseWriter, r *http.Request) {
	runs, err := h.runs.ListRuns(2)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if len(runs) < 2 {
		respondError(w, http.StatusNotFound, "need at least two runs to compute changes")
		return
	}

	newRun, oldRun := runs[0], runs[1]
	newAlloc, err := h.allocations.ByRun(newRun.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load allocation")
		return
	}
	oldAlloc, err := h.allocations.ByRun(oldRun.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load allocation")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"old_run_id": oldRun.ID,
		"new_run_id": newRun.ID,
		"changes":    allocation.Compare(oldAlloc, newAlloc),
	})
}

// HandleGetRuns returns the run index, newest first.
// GET /api/runs
func (h *Handler) HandleGetRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.runs.ListRuns(queryLimit(r, 50))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []universe.RunRecord{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

// universeEntry is one security with its latest captured fundamentals.
type universeEntry struct {
	domain.Security
	Fundamentals *domain.Fundamentals `json:"fundamentals,omitempty"`
}

// HandleGetUniverse returns the stored securities with their most recent
// fundamentals.
// GET /api/universe
func (h *Handler) HandleGetUniverse(w http.ResponseWriter, r *http.Request) {
	securities, err := h.securities.List()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list securities")
		respondError(w, http.StatusInternalServerError, "failed to list securities")
		return
	}

	entries := make([]universeEntry, 0, len(securities))
	for _, sec := range securities {
		entry := universeEntry{Security: sec}
		if f, err := h.fundamentals.LatestByTicker(sec.Ticker); err == nil {
			entry.Fundamentals = f
		}
		entries = append(entries, entry)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":      len(entries),
		"securities": entries,
	})
}

// HandleGetPrices returns recent daily closes for one ticker, newest first.
// GET /api/universe/{ticker}/prices?limit=
func (h *Handler) HandleGetPrices(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	sec, err := h.securities.GetByTicker(ticker)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to load security")
		respondError(w, http.StatusInternalServerError, "failed to load security")
		return
	}
	if sec == nil {
		respondError(w, http.StatusNotFound, "unknown ticker "+ticker)
		return
	}

	prices, err := h.history.RecentPrices(sec.Ticker, queryLimit(r, 30))
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to load prices")
		respondError(w, http.StatusInternalServerError, "failed to load prices")
		return
	}
	if prices == nil {
		prices = []domain.PricePoint{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ticker": sec.Ticker,
		"prices": prices,
	})
}

// queryLimit parses ?limit=, falling back to a default and clamping to a
// sane range.
func queryLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // Ignore encode error - already committed response
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
