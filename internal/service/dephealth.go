// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// tempstore может мониторить одну вышестоящую зависимость (TS_DEPHEALTH_URL),
// например, сервис, который отдаёт ссылки на загруженные объекты.
// Без TS_DEPHEALTH_URL сервис не создаётся.
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // регистрация HTTP checker factory
	"github.com/prometheus/client_golang/prometheus"
)

// dephealthGroup — группа tempstore в графе зависимостей.
const dephealthGroup = "tempstore"

// DephealthConfig — параметры мониторинга зависимости.
type DephealthConfig struct {
	// ServiceID — имя вершины графа текущего приложения (TS_SERVICE_ID)
	ServiceID string
	// DepName — имя зависимости в метриках
	DepName string
	// URL — адрес зависимости (TS_DEPHEALTH_URL)
	URL string
	// CheckInterval — интервал проверки (TS_DEPHEALTH_CHECK_INTERVAL)
	CheckInterval time.Duration
	// HealthPath — путь проверки; пустой — путь из URL
	HealthPath string
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
func NewDephealthService(cfg DephealthConfig, logger *slog.Logger) (*DephealthService, error) {
	return newDephealthService(cfg, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	cfg DephealthConfig,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(cfg, logger, dephealth.WithRegisterer(registerer))
}

func newDephealthService(cfg DephealthConfig, logger *slog.Logger, extraOpts ...dephealth.Option) (*DephealthService, error) {
	depOpts := []dephealth.DependencyOption{
		dephealth.FromURL(cfg.URL),
		dephealth.CheckInterval(cfg.CheckInterval),
		// Недоступность зависимости не мешает хранить и отдавать объекты
		dephealth.Critical(false),
	}
	if cfg.HealthPath != "" {
		depOpts = append(depOpts, dephealth.WithHTTPHealthPath(cfg.HealthPath))
	}

	opts := []dephealth.Option{
		dephealth.WithLogger(logger),
		dephealth.HTTP(cfg.DepName, depOpts...),
	}
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(cfg.ServiceID, dephealthGroup, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
