// Точка входа tempstore — временного хранилища файлов с фиксированным TTL.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/bigkaa/tempstore/internal/api/handlers"
	"github.com/bigkaa/tempstore/internal/config"
	"github.com/bigkaa/tempstore/internal/extract"
	"github.com/bigkaa/tempstore/internal/server"
	"github.com/bigkaa/tempstore/internal/service"
	"github.com/bigkaa/tempstore/internal/storage/filestore"
	"github.com/bigkaa/tempstore/internal/storage/registry"
)

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("tempstore запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("storage_dir", cfg.StorageDir()),
		slog.Duration("ttl", cfg.TTL),
		slog.Duration("gc_interval", cfg.GCInterval),
	)

	// --- Инициализация компонентов ---

	// 1. Файловое хранилище
	files, err := filestore.New(cfg.StorageDir())
	if err != nil {
		logger.Error("Ошибка инициализации FileStore", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Реестр объектов и хранилище
	reg := registry.New(files, logger, service.RegistryObservers()...)
	store := service.NewObjectStore(files, reg, cfg.TTL, logger,
		service.WithMaxSize(cfg.MaxFileSize),
	)

	// 3. Восстановление реестра из имён файлов — до старта HTTP
	ctx := context.Background()
	if _, err := store.LoadExisting(ctx); err != nil {
		logger.Error("Ошибка восстановления хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Фоновые процессы

	// 4.1 GC — фоновая очистка просроченных объектов
	gcSvc := service.NewGCService(reg, cfg.GCInterval, logger)
	gcSvc.Start(ctx)

	// 4.2 topologymetrics — мониторинг вышестоящей зависимости (опционально)
	var deps handlers.DependencyHealth
	var dephealthSvc *service.DephealthService
	if cfg.DephealthURL != "" {
		dephealthSvc, err = service.NewDephealthService(service.DephealthConfig{
			ServiceID:     cfg.ServiceID,
			DepName:       "upstream",
			URL:           cfg.DephealthURL,
			CheckInterval: cfg.DephealthCheckInterval,
		}, logger)
		if err != nil {
			logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
				slog.String("error", err.Error()),
			)
			dephealthSvc = nil
		} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
			dephealthSvc = nil
		} else {
			deps = dephealthSvc
		}
	}

	// 5. Handlers
	extractor := extract.NewYtDlp(cfg.YtDlpBinary, cfg.ExtractTimeout, logger)
	infoCache := service.NewInfoCache(cfg.InfoCacheSize, cfg.InfoCacheTTL)

	h := server.Handlers{
		Files: handlers.NewFilesHandler(store, handlers.FilesConfig{
			MaxFileSize:        cfg.MaxFileSize,
			AllowedMediaPrefix: cfg.AllowedMediaPrefix,
		}, nil, logger),
		Media: handlers.NewMediaHandler(store, extractor, infoCache, handlers.MediaConfig{
			TempDir:       cfg.TempDir(),
			MaxFileSize:   cfg.MaxFileSize,
			PublicBaseURL: cfg.PublicBaseURL,
		}, logger),
		System: handlers.NewSystemHandler(reg, cfg, statfsUsage(cfg.StorageDir()), deps, logger),
		Health: handlers.NewHealthHandler(cfg.StorageDir(), reg),
	}

	// 6. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, h)
	runErr := srv.Run()

	// --- Graceful shutdown фоновых процессов ---
	logger.Info("Остановка фоновых процессов...")

	gcSvc.Stop()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	if runErr != nil {
		logger.Error("Ошибка сервера", slog.String("error", runErr.Error()))
		if errors.Is(runErr, context.DeadlineExceeded) {
			logger.Warn("Не все запросы завершились за TS_SHUTDOWN_TIMEOUT")
		}
		os.Exit(1)
	}

	logger.Info("tempstore остановлен")
}
