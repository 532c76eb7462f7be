// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bigkaa/tempstore/internal/config"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// ReadinessChecker — проверка завершения восстановления реестра.
type ReadinessChecker interface {
	IsReady() bool
}

// HealthHandler реализует health endpoints: /health/live, /health/ready.
type HealthHandler struct {
	version string
	// storageDir — директория хранения (проверка записи)
	storageDir string
	// ready — реестр объектов
	ready ReadinessChecker
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(storageDir string, ready ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		version:    config.Version,
		storageDir: storageDir,
		ready:      ready,
	}
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "tempstore",
	})
}

// HealthReady обрабатывает GET /health/ready.
// Проверяет: реестр восстановлен, директория хранения доступна на запись.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK

	fsCheck := h.checkFilesystem()
	if fsCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	registryCheck := map[string]any{"status": "ok"}
	if h.ready != nil && !h.ready.IsReady() {
		registryCheck = map[string]any{
			"status":  statusFail,
			"message": "Восстановление реестра не завершено",
		}
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "tempstore",
		"checks": map[string]any{
			"filesystem": fsCheck,
			"registry":   registryCheck,
		},
	})
}

// checkFilesystem проверяет доступность директории хранения на запись.
// Имя проверочного файла не декодируется как объект и при рестарте
// игнорируется.
func (h *HealthHandler) checkFilesystem() map[string]any {
	if h.storageDir == "" {
		return map[string]any{
			"status":  "ok",
			"message": "Проверка не настроена",
		}
	}

	testFile := filepath.Join(h.storageDir, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return map[string]any{
			"status":  statusFail,
			"message": "Директория хранения недоступна для записи",
		}
	}
	_ = os.Remove(testFile)

	return map[string]any{
		"status": "ok",
	}
}
