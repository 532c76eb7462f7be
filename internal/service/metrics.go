// metrics.go — Prometheus-метрики хранилища и наблюдатели реестра.
package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/tempstore/internal/domain/model"
	"github.com/bigkaa/tempstore/internal/storage/registry"
)

var (
	// storeTotal — результаты сохранения объектов (ok / too_large / io_error).
	storeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ts_store_total",
		Help: "Общее количество операций сохранения объектов",
	}, []string{"result"})

	// storedBytesTotal — суммарный объём сохранённых данных.
	storedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ts_stored_bytes_total",
		Help: "Общий объём сохранённых данных в байтах",
	})

	// objectsReclaimedTotal — удаления записей из реестра по причинам.
	objectsReclaimedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ts_objects_reclaimed_total",
		Help: "Общее количество удалённых объектов по причинам",
	}, []string{"cause"})

	// cleanupFailuresTotal — нефатальные ошибки удаления файлов.
	cleanupFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ts_cleanup_failures_total",
		Help: "Общее количество ошибок удаления файлов (файлы-сироты)",
	}, []string{"cause"})

	// objectsLive — количество записей в реестре.
	objectsLive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ts_objects",
		Help: "Текущее количество объектов в реестре",
	})

	// recoveredObjects — итоги восстановления при старте.
	recoveredObjects = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ts_recovery_objects",
		Help: "Итоги восстановления реестра при старте",
	}, []string{"outcome"})
)

// RegistryObservers возвращает опции реестра, связывающие его события
// с метриками сервиса.
func RegistryObservers() []registry.Option {
	return []registry.Option{
		registry.WithEvictionObserver(func(_ *model.Object, cause registry.Cause) {
			objectsReclaimedTotal.WithLabelValues(string(cause)).Inc()
			objectsLive.Dec()
		}),
		registry.WithCleanupObserver(func(cerr *registry.CleanupError) {
			cleanupFailuresTotal.WithLabelValues(string(cerr.Cause)).Inc()
		}),
	}
}
