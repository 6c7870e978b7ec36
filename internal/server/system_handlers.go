package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemHandlers serves process and host health endpoints.
type SystemHandlers struct {
	log         zerolog.Logger
	startupTime time.Time
}

func NewSystemHandlers(log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		startupTime: time.Now(),
	}
}

// SystemStatusResponse is the payload for GET /api/system/status.
type SystemStatusResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  float64 `json:"memory_used_mb"`
	Goroutines    int     `json:"goroutines"`
	CheckedAt     string  `json:"checked_at"`
}

// HandleSystemStatus reports process uptime and host resource usage.
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent, memUsedMB := h.systemStats()

	response := SystemStatusResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(h.startupTime).Seconds(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		MemoryUsedMB:  memUsedMB,
		Goroutines:    runtime.NumGoroutine(),
		CheckedAt:     time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// systemStats samples CPU and memory usage. A short 100ms CPU window keeps
// the endpoint responsive; failures degrade to zeros instead of erroring.
func (h *SystemHandlers) systemStats() (cpuPercent, memPercent, memUsedMB float64) {
	samples, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	} else if len(samples) > 0 {
		cpuPercent = samples[0]
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return cpuPercent, 0, 0
	}

	return cpuPercent, memStat.UsedPercent, float64(memStat.Used) / 1024 / 1024
}
