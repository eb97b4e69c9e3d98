package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/aristath/dealflow/internal/database"
	"github.com/aristath/dealflow/internal/events"
	"github.com/aristath/dealflow/internal/scheduler"
	"github.com/aristath/dealflow/internal/work"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

const jobRunTimeout = 2 * time.Minute

// PipelineCounts reports how much state the pipeline currently holds.
type PipelineCounts struct {
	Investors           int            `json:"investors"`
	Views               int            `json:"views"`
	StreamSubscribers   int            `json:"stream_subscribers"`
	StreamDroppedNotice int            `json:"stream_dropped_notices"`
	Events              events.Emitted `json:"events"`
}

// DBInfo describes one database file.
type DBInfo struct {
	Name   string  `json:"name"`
	Path   string  `json:"path"`
	SizeMB float64 `json:"size_mb"`
}

// DiskInfo describes the volume holding the data directory.
type DiskInfo struct {
	Path        string  `json:"path"`
	TotalMB     float64 `json:"total_mb"`
	FreeMB      float64 `json:"free_mb"`
	UsedPercent float64 `json:"used_percent"`
}

// SystemStatusResponse is returned by GET /api/system/status.
type SystemStatusResponse struct {
	Status        string         `json:"status"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	CPUPercent    float64        `json:"cpu_percent"`
	MemoryPercent float64        `json:"memory_percent"`
	Disk          *DiskInfo      `json:"disk,omitempty"`
	Databases     []DBInfo       `json:"databases"`
	Pipeline      PipelineCounts `json:"pipeline"`
	Work          work.Stats     `json:"work"`
	Archive       any            `json:"archive,omitempty"`
}

// JobRunner exposes scheduled jobs for inspection and manual runs.
type JobRunner interface {
	Statuses() []scheduler.JobStatus
	RunNow(name string) error
}

// WorkTypeStatus describes one registered work type and its latest completions.
type WorkTypeStatus struct {
	ID          string            `json:"id"`
	Priority    string            `json:"priority"`
	Completions []work.Completion `json:"completions"`
}

// JobsStatusResponse is returned by GET /api/system/jobs.
type JobsStatusResponse struct {
	Scheduled []scheduler.JobStatus `json:"scheduled"`
	WorkTypes []WorkTypeStatus      `json:"work_types"`
	Queued    int                   `json:"queued"`
}

// SystemHandlers serves host and pipeline status.
type SystemHandlers struct {
	log        zerolog.Logger
	dataDir    string
	startedAt  time.Time
	databases  map[string]*database.DB
	processor  *work.Processor
	registry   *work.Registry
	completion *work.CompletionTracker
	jobs       JobRunner
	counts     func() PipelineCounts
	archive    func() any
}

// NewSystemHandlers creates system handlers. counts and archive may be nil.
func NewSystemHandlers(
	log zerolog.Logger,
	dataDir string,
	databases map[string]*database.DB,
	processor *work.Processor,
	registry *work.Registry,
	completion *work.CompletionTracker,
	counts func() PipelineCounts,
	archive func() any,
) *SystemHandlers {
	return &SystemHandlers{
		log:        log.With().Str("handler", "system").Logger(),
		dataDir:    dataDir,
		startedAt:  time.Now(),
		databases:  databases,
		processor:  processor,
		registry:   registry,
		completion: completion,
		counts:     counts,
		archive:    archive,
	}
}

// SetJobs registers the scheduler for status and manual triggering via API
func (h *SystemHandlers) SetJobs(jobs JobRunner) {
	h.jobs = jobs
}

// RegisterRoutes registers system routes
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/system", func(r chi.Router) {
		r.Get("/status", h.HandleSystemStatus)
		r.Get("/jobs", h.HandleJobsStatus)
		r.Post("/jobs/{name}", h.HandleRunJob)
	})
}

// HandleSystemStatus returns host resource usage and pipeline counters
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats()

	response := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Disk:          h.getDiskUsage(),
		Databases:     h.getDatabaseSizes(),
	}
	if h.processor != nil {
		response.Work = h.processor.Stats()
	}
	if h.counts != nil {
		response.Pipeline = h.counts()
	}
	if h.archive != nil {
		response.Archive = h.archive()
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	for name, db := range h.databases {
		if err := db.QuickCheck(ctx); err != nil {
			h.log.Warn().Err(err).Str("database", name).Msg("Database unreachable")
			response.Status = "degraded"
		}
	}

	writeData(w, http.StatusOK, response)
}

// HandleJobsStatus lists scheduled jobs and work types with their completions
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	response := JobsStatusResponse{
		Scheduled: []scheduler.JobStatus{},
		WorkTypes: []WorkTypeStatus{},
	}
	if h.jobs != nil {
		response.Scheduled = h.jobs.Statuses()
	}

	byType := make(map[string][]work.Completion)
	if h.completion != nil {
		for _, c := range h.completion.Snapshot() {
			byType[c.TypeID] = append(byType[c.TypeID], c)
		}
	}
	if h.registry != nil {
		for _, wt := range h.registry.ByPriority() {
			completions := byType[wt.ID]
			if completions == nil {
				completions = []work.Completion{}
			}
			response.WorkTypes = append(response.WorkTypes, WorkTypeStatus{
				ID:          wt.ID,
				Priority:    wt.Priority.String(),
				Completions: completions,
			})
		}
	}
	if h.processor != nil {
		response.Queued = len(h.processor.Pending())
	}

	writeData(w, http.StatusOK, response)
}

// HandleRunJob runs a scheduled job immediately
// POST /api/system/jobs/{name}
func (h *SystemHandlers) HandleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if h.jobs == nil {
		writeError(w, http.StatusNotFound, "unknown job: "+name)
		return
	}

	done := make(chan error, 1)
	go func() { done <- h.jobs.RunNow(name) }()

	select {
	case err := <-done:
		if errors.Is(err, scheduler.ErrUnknownJob) {
			writeError(w, http.StatusNotFound, "unknown job: "+name)
			return
		}
		if err != nil {
			h.log.Error().Err(err).Str("job", name).Msg("Manual job run failed")
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	case <-time.After(jobRunTimeout):
		writeError(w, http.StatusGatewayTimeout, "job still running: "+name)
		return
	}

	h.log.Info().Str("job", name).Msg("Job triggered manually")
	writeData(w, http.StatusOK, map[string]interface{}{
		"job":    name,
		"status": "completed",
	})
}

// getSystemStats calculates CPU and RAM usage percentages over a short sample
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

func (h *SystemHandlers) getDiskUsage() *DiskInfo {
	if h.dataDir == "" {
		return nil
	}
	usage, err := disk.Usage(h.dataDir)
	if err != nil {
		h.log.Warn().Err(err).Str("dir", h.dataDir).Msg("Failed to get disk usage")
		return nil
	}
	return &DiskInfo{
		Path:        h.dataDir,
		TotalMB:     toMB(usage.Total),
		FreeMB:      toMB(usage.Free),
		UsedPercent: usage.UsedPercent,
	}
}

func (h *SystemHandlers) getDatabaseSizes() []DBInfo {
	out := make([]DBInfo, 0, len(h.databases))
	for name, db := range h.databases {
		info := DBInfo{Name: name, Path: db.Path()}
		if st, err := os.Stat(db.Path()); err == nil {
			info.SizeMB = float64(st.Size()) / 1024 / 1024
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func toMB(b uint64) float64 {
	return float64(b) / 1024 / 1024
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"code":    http.StatusText(status),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
