package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/octave/internal/config"
	"github.com/aristath/octave/internal/database"
	"github.com/aristath/octave/internal/modules/universe"
	"github.com/aristath/octave/internal/scheduler"
)

// SystemHandlers handles system-wide monitoring and operations endpoints
type SystemHandlers struct {
	log          zerolog.Logger
	dataDir      string
	startupTime  time.Time
	databases    []*database.DB
	securities   *universe.SecurityRepository
	runs         *universe.RunRepository
	scheduler    *scheduler.Scheduler
	schedulerCfg config.SchedulerConfig
	// Jobs (will be set after job registration in main.go)
	rebalanceJob    scheduler.Job
	snapshotJob     scheduler.Job
	cloudBackupJob  scheduler.Job
	cacheCleanupJob scheduler.Job
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(
	log zerolog.Logger,
	dataDir string,
	databases []*database.DB,
	securities *universe.SecurityRepository,
	runs *universe.RunRepository,
	sched *scheduler.Scheduler,
	schedulerCfg config.SchedulerConfig,
) *SystemHandlers {
	return &SystemHandlers{
		log:          log.With().Str("component", "system_handlers").Logger(),
		dataDir:      dataDir,
		startupTime:  time.Now(),
		databases:    databases,
		securities:   securities,
		runs:         runs,
		scheduler:    sched,
		schedulerCfg: schedulerCfg,
	}
}

// SetJobs registers job references for manual triggering
// Called after jobs are registered in main.go
func (h *SystemHandlers) SetJobs(
	rebalance scheduler.Job,
	snapshot scheduler.Job,
	cloudBackup scheduler.Job,
	cacheCleanup scheduler.Job,
) {
	h.rebalanceJob = rebalance
	h.snapshotJob = snapshot
	h.cloudBackupJob = cloudBackup
	h.cacheCleanupJob = cacheCleanup
}

// DBInfo describes a single database file
type DBInfo struct {
	Name   string  `json:"name"`
	Path   string  `json:"path"`
	SizeMB float64 `json:"size_mb"`
}

// SystemStatusResponse represents the system status response
type SystemStatusResponse struct {
	Status        string   `json:"status"`
	UptimeHours   float64  `json:"uptime_hours"`
	CPUPercent    float64  `json:"cpu_percent"`
	RAMPercent    float64  `json:"ram_percent"`
	Securities    int      `json:"securities"`
	LastRunID     string   `json:"last_run_id,omitempty"`
	LastRunAt     string   `json:"last_run_at,omitempty"`
	LastRunEngine string   `json:"last_run_engine,omitempty"`
	Databases     []DBInfo `json:"databases"`
	TotalSizeMB   float64  `json:"total_size_mb"`
	BackupsSizeMB float64  `json:"backups_size_mb"`
	LastChecked   string   `json:"last_checked"`
}

// JobInfo describes a registered scheduler job
type JobInfo struct {
	Name     string `json:"name"`
	Schedule string `json:"schedule"`
}

// JobsStatusResponse represents the scheduler status response
type JobsStatusResponse struct {
	SchedulerEnabled bool      `json:"scheduler_enabled"`
	TotalJobs        int       `json:"total_jobs"`
	Jobs             []JobInfo `json:"jobs"`
}

// HandleSystemStatus returns uptime, CPU and RAM usage, and database sizes
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, ramPercent := h.getSystemStats()

	response := SystemStatusResponse{
		Status:      "healthy",
		UptimeHours: time.Since(h.startupTime).Hours(),
		CPUPercent:  cpuPercent,
		RAMPercent:  ramPercent,
		Databases:   []DBInfo{},
		LastChecked: time.Now().Format(time.RFC3339),
	}

	if count, err := h.securities.Count(); err == nil {
		response.Securities = count
	} else {
		h.log.Warn().Err(err).Msg("Failed to count securities")
	}

	if run, err := h.runs.LatestRun(); err == nil && run != nil {
		response.LastRunID = run.ID
		response.LastRunAt = run.RunAt.Format(time.RFC3339)
		response.LastRunEngine = run.Engine
	}

	for _, db := range h.databases {
		if info, err := os.Stat(db.Path()); err == nil {
			sizeMB := float64(info.Size()) / 1024 / 1024
			response.TotalSizeMB += sizeMB
			response.Databases = append(response.Databases, DBInfo{
				Name:   db.Name(),
				Path:   db.Path(),
				SizeMB: sizeMB,
			})
		}
	}

	// The history store lives outside the managed database set.
	historyPath := filepath.Join(h.dataDir, "history.db")
	if info, err := os.Stat(historyPath); err == nil {
		sizeMB := float64(info.Size()) / 1024 / 1024
		response.TotalSizeMB += sizeMB
		response.Databases = append(response.Databases, DBInfo{
			Name:   "history",
			Path:   historyPath,
			SizeMB: sizeMB,
		})
	}

	response.BackupsSizeMB = h.getDirSize(filepath.Join(h.dataDir, "backups"))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleJobsStatus returns the registered scheduler jobs and their schedules
// GET /api/system/jobs
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting jobs status")

	jobs := []JobInfo{}
	if h.rebalanceJob != nil {
		jobs = append(jobs, JobInfo{Name: h.rebalanceJob.Name(), Schedule: h.schedulerCfg.RebalanceSchedule})
	}
	if h.snapshotJob != nil {
		jobs = append(jobs, JobInfo{Name: h.snapshotJob.Name(), Schedule: h.schedulerCfg.BackupSchedule})
	}
	if h.cloudBackupJob != nil {
		jobs = append(jobs, JobInfo{Name: h.cloudBackupJob.Name(), Schedule: h.schedulerCfg.BackupSchedule})
	}
	if h.cacheCleanupJob != nil {
		jobs = append(jobs, JobInfo{Name: h.cacheCleanupJob.Name(), Schedule: h.schedulerCfg.CacheCleanupSchedule})
	}

	response := JobsStatusResponse{
		SchedulerEnabled: h.schedulerCfg.Enabled,
		TotalJobs:        len(jobs),
		Jobs:             jobs,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// ============================================================================
// Job Trigger Endpoints
// ============================================================================

// HandleTriggerRebalance triggers the rebalance job immediately
// POST /api/system/jobs/rebalance
func (h *SystemHandlers) HandleTriggerRebalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.rebalanceJob == nil {
		h.log.Warn().Msg("Rebalance job not registered yet")
		h.writeJSON(w, map[string]string{
			"status":  "error",
			"message": "Rebalance job not registered",
		})
		return
	}

	h.log.Info().Msg("Manual rebalance triggered")

	if err := h.scheduler.RunNow(h.rebalanceJob); err != nil {
		h.log.Error().Err(err).Msg("Failed to trigger rebalance")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]string{
		"status":  "success",
		"message": "Rebalance triggered successfully",
	})
}

// HandleTriggerSnapshot triggers the local snapshot job immediately
// POST /api/system/jobs/snapshot
func (h *SystemHandlers) HandleTriggerSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.snapshotJob == nil {
		h.log.Warn().Msg("Snapshot job not registered yet")
		h.writeJSON(w, map[string]string{
			"status":  "error",
			"message": "Snapshot job not registered",
		})
		return
	}

	h.log.Info().Msg("Manual snapshot triggered")

	if err := h.scheduler.RunNow(h.snapshotJob); err != nil {
		h.log.Error().Err(err).Msg("Failed to trigger snapshot")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]string{
		"status":  "success",
		"message": "Snapshot triggered successfully",
	})
}

// HandleTriggerCloudBackup triggers the cloud backup job immediately
// POST /api/system/jobs/cloud-backup
func (h *SystemHandlers) HandleTriggerCloudBackup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.cloudBackupJob == nil {
		h.log.Warn().Msg("Cloud backup job not registered")
		h.writeJSON(w, map[string]string{
			"status":  "error",
			"message": "Cloud backup job not registered",
		})
		return
	}

	h.log.Info().Msg("Manual cloud backup triggered")

	if err := h.scheduler.RunNow(h.cloudBackupJob); err != nil {
		h.log.Error().Err(err).Msg("Failed to trigger cloud backup")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]string{
		"status":  "success",
		"message": "Cloud backup triggered successfully",
	})
}

// HandleTriggerCacheCleanup triggers the cache cleanup job immediately
// POST /api/system/jobs/cache-cleanup
func (h *SystemHandlers) HandleTriggerCacheCleanup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.cacheCleanupJob == nil {
		h.log.Warn().Msg("Cache cleanup job not registered yet")
		h.writeJSON(w, map[string]string{
			"status":  "error",
			"message": "Cache cleanup job not registered",
		})
		return
	}

	h.log.Info().Msg("Manual cache cleanup triggered")

	if err := h.scheduler.RunNow(h.cacheCleanupJob); err != nil {
		h.log.Error().Err(err).Msg("Failed to trigger cache cleanup")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]string{
		"status":  "success",
		"message": "Cache cleanup triggered successfully",
	})
}

// getDirSize calculates total size of a directory in MB
func (h *SystemHandlers) getDirSize(dirPath string) float64 {
	var totalSize int64

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})

	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}

// getSystemStats calculates CPU and RAM usage percentages
// Uses a shorter interval (100ms) so the status endpoint stays fast
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// writeJSON writes a JSON response
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
