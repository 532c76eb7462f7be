// system.go — обработчик GET /api/info/storage (состояние хранилища).
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/bigkaa/tempstore/internal/config"
	"github.com/bigkaa/tempstore/internal/storage/registry"
)

// DiskUsageFunc возвращает ёмкость диска директории хранения в байтах.
type DiskUsageFunc func() (total, used, available int64, err error)

// DependencyHealth — состояние внешних зависимостей.
type DependencyHealth interface {
	Health() map[string]bool
}

// StorageInfo — ответ GET /api/info/storage.
type StorageInfo struct {
	Version           string          `json:"version"`
	Ready             bool            `json:"ready"`
	Objects           int             `json:"objects"`
	KnownBytes        int64           `json:"known_bytes"`
	TTLSeconds        int64           `json:"ttl_seconds"`
	GCIntervalSeconds int64           `json:"gc_interval_seconds"`
	MaxFileSize       int64           `json:"max_file_size"`
	Disk              *DiskInfo       `json:"disk,omitempty"`
	Dependencies      map[string]bool `json:"dependencies,omitempty"`
}

// DiskInfo — ёмкость диска.
type DiskInfo struct {
	TotalBytes     int64 `json:"total_bytes"`
	UsedBytes      int64 `json:"used_bytes"`
	AvailableBytes int64 `json:"available_bytes"`
}

// SystemHandler — обработчик системных endpoints.
type SystemHandler struct {
	reg         *registry.Registry
	ttl         time.Duration
	gcInterval  time.Duration
	maxFileSize int64
	diskUsage   DiskUsageFunc
	deps        DependencyHealth
	logger      *slog.Logger
}

// NewSystemHandler создаёт обработчик системных endpoints.
// diskUsage и deps могут быть nil.
func NewSystemHandler(
	reg *registry.Registry,
	cfg *config.Config,
	diskUsage DiskUsageFunc,
	deps DependencyHealth,
	logger *slog.Logger,
) *SystemHandler {
	return &SystemHandler{
		reg:         reg,
		ttl:         cfg.TTL,
		gcInterval:  cfg.GCInterval,
		maxFileSize: cfg.MaxFileSize,
		diskUsage:   diskUsage,
		deps:        deps,
		logger:      logger.With(slog.String("component", "system_handler")),
	}
}

// GetStorageInfo обрабатывает GET /api/info/storage.
// Количество включает просроченные записи, ещё не удалённые очисткой.
// Размер восстановленных после рестарта объектов неизвестен и в
// known_bytes не учитывается.
func (h *SystemHandler) GetStorageInfo(w http.ResponseWriter, _ *http.Request) {
	resp := StorageInfo{
		Version:           config.Version,
		Ready:             h.reg.IsReady(),
		Objects:           h.reg.Count(),
		KnownBytes:        h.reg.TotalSize(),
		TTLSeconds:        int64(h.ttl.Seconds()),
		GCIntervalSeconds: int64(h.gcInterval.Seconds()),
		MaxFileSize:       h.maxFileSize,
	}

	if h.diskUsage != nil {
		total, used, available, err := h.diskUsage()
		if err != nil {
			h.logger.Warn("Ошибка получения ёмкости диска", slog.String("error", err.Error()))
		} else {
			resp.Disk = &DiskInfo{TotalBytes: total, UsedBytes: used, AvailableBytes: available}
		}
	}

	if h.deps != nil {
		resp.Dependencies = h.deps.Health()
	}

	writeJSON(w, http.StatusOK, resp)
}
