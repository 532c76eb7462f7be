// gc.go — сервис фоновой очистки просроченных объектов.
//
// Ленивая проверка в Get удаляет только те объекты, к которым обращаются.
// GC периодически (TS_GC_INTERVAL) удаляет все просроченные записи реестра
// вместе с их файлами, чтобы диск не заполнялся забытыми объектами.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/tempstore/internal/storage/registry"
)

// Prometheus метрики GC
var (
	// gcRunsTotal — количество запусков GC.
	gcRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ts_gc_runs_total",
		Help: "Общее количество запусков GC",
	})

	// gcObjectsRemovedTotal — количество удалённых GC объектов.
	gcObjectsRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ts_gc_objects_removed_total",
		Help: "Общее количество объектов, удалённых GC",
	})

	// gcErrorsTotal — количество ошибок удаления файлов в GC.
	gcErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ts_gc_errors_total",
		Help: "Общее количество ошибок удаления файлов в GC",
	})

	// gcDurationSeconds — длительность выполнения GC.
	gcDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ts_gc_duration_seconds",
		Help:    "Длительность выполнения GC в секундах",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	})
)

// GCResult — результат одного запуска GC.
type GCResult struct {
	// Removed — количество удалённых из реестра объектов
	Removed int
	// Errors — количество ошибок удаления файлов (файлы-сироты)
	Errors int
	// Duration — длительность выполнения
	Duration time.Duration
}

// Ticker — источник периодических сигналов. Подменяется в тестах.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory создаёт Ticker с заданным периодом.
type TickerFactory func(d time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker — TickerFactory на основе time.Ticker.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// GCOption — функциональная опция GCService.
type GCOption func(*GCService)

// WithGCClock задаёт источник времени для определения просроченных записей.
func WithGCClock(c registry.Clock) GCOption {
	return func(gc *GCService) {
		gc.clock = c
	}
}

// WithTickerFactory задаёт фабрику тикеров.
func WithTickerFactory(f TickerFactory) GCOption {
	return func(gc *GCService) {
		gc.newTicker = f
	}
}

// GCService — сервис фоновой очистки.
type GCService struct {
	reg       *registry.Registry
	interval  time.Duration
	clock     registry.Clock
	newTicker TickerFactory
	logger    *slog.Logger

	runMu sync.Mutex // защита от параллельного запуска RunOnce

	mu      sync.Mutex // защита полей состояния ниже
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewGCService создаёт сервис GC.
func NewGCService(reg *registry.Registry, interval time.Duration, logger *slog.Logger, opts ...GCOption) *GCService {
	gc := &GCService{
		reg:       reg,
		interval:  interval,
		clock:     registry.SystemClock,
		newTicker: NewTimeTicker,
		logger:    logger.With(slog.String("component", "gc")),
	}
	for _, opt := range opts {
		opt(gc)
	}
	return gc
}

// Interval возвращает период запуска GC.
func (gc *GCService) Interval() time.Duration {
	return gc.interval
}

// Start выполняет первый проход сразу (синхронно) и запускает фоновую
// горутину с периодическим тикером. Повторный Start работающего
// сервиса ничего не делает.
func (gc *GCService) Start(ctx context.Context) {
	gc.mu.Lock()
	if gc.running {
		gc.mu.Unlock()
		return
	}
	gcCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	gc.running = true
	gc.cancel = cancel
	gc.done = done
	ticker := gc.newTicker(gc.interval)
	gc.mu.Unlock()

	gc.logger.Info("GC запущен",
		slog.String("interval", gc.interval.String()),
	)

	// Первый запуск — сразу после старта
	gc.RunOnce()

	go gc.run(gcCtx, ticker, done)
}

// Stop останавливает фоновый процесс и ждёт завершения прохода,
// если он выполняется. Выполняющийся проход не прерывается.
// Повторный Stop ничего не делает.
func (gc *GCService) Stop() {
	gc.mu.Lock()
	if !gc.running {
		gc.mu.Unlock()
		return
	}
	gc.cancel()
	done := gc.done
	gc.running = false
	gc.mu.Unlock()

	<-done
	gc.logger.Info("GC остановлен")
}

// Running сообщает, запущен ли фоновый процесс.
func (gc *GCService) Running() bool {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	return gc.running
}

// run — основной цикл фоновой горутины.
func (gc *GCService) run(ctx context.Context, ticker Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			// select выбирает случайно, если готовы оба канала
			if ctx.Err() != nil {
				return
			}
			gc.RunOnce()
		}
	}
}

// RunOnce выполняет один проход GC.
// Потокобезопасен: параллельные вызовы выполняются последовательно.
// Два прохода подряд дают то же состояние, что и один.
func (gc *GCService) RunOnce() *GCResult {
	gc.runMu.Lock()
	defer gc.runMu.Unlock()

	start := time.Now()
	gc.logger.Debug("GC запуск начат")

	sweep := gc.reg.SweepExpired(gc.clock.Now())

	result := &GCResult{
		Removed:  sweep.Removed,
		Errors:   len(sweep.Failures),
		Duration: time.Since(start),
	}

	// Обновляем Prometheus метрики
	gcRunsTotal.Inc()
	gcObjectsRemovedTotal.Add(float64(result.Removed))
	gcErrorsTotal.Add(float64(result.Errors))
	gcDurationSeconds.Observe(result.Duration.Seconds())
	objectsLive.Set(float64(gc.reg.Count()))

	level := slog.LevelDebug
	if result.Removed > 0 || result.Errors > 0 {
		level = slog.LevelInfo
	}
	gc.logger.Log(context.Background(), level, "GC завершён",
		slog.Int("removed", result.Removed),
		slog.Int("errors", result.Errors),
		slog.Duration("duration", result.Duration),
	)

	return result
}
