package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ConnectionChecker verifies an external dependency is reachable.
type ConnectionChecker interface {
	ValidateConnection(ctx context.Context) error
}

// Pinger verifies a datastore is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandlers serves operational endpoints: process/host stats and
// dependency connectivity.
type SystemHandlers struct {
	dataDir   string
	meta      ConnectionChecker
	analytics Pinger
	startedAt time.Time
	log       zerolog.Logger
}

// NewSystemHandlers creates the system handlers.
func NewSystemHandlers(dataDir string, meta ConnectionChecker, analytics Pinger, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		dataDir:   dataDir,
		meta:      meta,
		analytics: analytics,
		startedAt: time.Now(),
		log:       log.With().Str("handler", "system").Logger(),
	}
}

// RegisterRoutes registers system routes under /api/system
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/api/system", func(r chi.Router) {
		r.Get("/health", h.HandleSystemHealth)
		r.Get("/connections", h.HandleConnections)
	})
}

// HandleSystemHealth handles GET /api/system/health
func (h *SystemHandlers) HandleSystemHealth(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.systemStats()

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"uptimeSeconds": int64(time.Since(h.startedAt).Seconds()),
		"cpuPercent":    cpuPercent,
		"memPercent":    memPercent,
		"goroutines":    runtime.NumGoroutine(),
		"dataDirSizeMB": h.dirSizeMB(h.dataDir),
	})
}

// HandleConnections handles GET /api/system/connections
func (h *SystemHandlers) HandleConnections(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	metaStatus := "ok"
	if err := h.meta.ValidateConnection(ctx); err != nil {
		metaStatus = err.Error()
	}

	analyticsStatus := "ok"
	if err := h.analytics.Ping(ctx); err != nil {
		analyticsStatus = err.Error()
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"meta":      metaStatus,
		"analytics": analyticsStatus,
	})
}

// systemStats returns CPU and RAM usage percentages. A short sampling
// interval keeps the endpoint responsive for dashboard polling.
func (h *SystemHandlers) systemStats() (float64, float64) {
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

// dirSizeMB calculates total size of a directory in MB
func (h *SystemHandlers) dirSizeMB(dirPath string) float64 {
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

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
