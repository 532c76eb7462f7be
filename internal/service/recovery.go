// recovery.go — восстановление реестра из имён файлов при старте.
//
// Единственные персистентные метаданные — имя файла (id + момент истечения),
// поэтому восстановленные записи получают значения-заглушки для имени,
// MIME-типа и размера.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bigkaa/tempstore/internal/domain/model"
)

// RecoveryResult — итоги восстановления.
type RecoveryResult struct {
	// Loaded — зарегистрировано живых объектов
	Loaded int
	// Expired — удалено просроченных файлов
	Expired int
	// Ignored — файлов с посторонними именами (оставлены на диске)
	Ignored int
	// TempRemoved — удалено временных файлов прерванной записи
	TempRemoved int
	// Errors — нефатальных ошибок удаления
	Errors int
	// Duration — длительность восстановления
	Duration time.Duration
}

// LoadExisting восстанавливает реестр по содержимому директории хранения.
// Вызывается синхронно до старта HTTP-сервера. Ошибка листинга
// директории фатальна (ErrStartupFailure); ошибки удаления отдельных
// файлов только логируются. По завершении реестр помечается готовым.
func (s *ObjectStore) LoadExisting(ctx context.Context) (*RecoveryResult, error) {
	start := time.Now()
	result := &RecoveryResult{}

	names, err := s.files.List()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStartupFailure, err)
	}
	temps, err := s.files.ListTemp()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStartupFailure, err)
	}

	now := s.clock.Now()

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStartupFailure, err)
		}

		parts, ok := s.codec.Decode(name)
		if !ok {
			s.logger.Debug("Посторонний файл пропущен", slog.String("name", name))
			result.Ignored++
			continue
		}

		if !parts.ExpiresAt.After(now) {
			if err := s.files.Delete(name); err != nil {
				s.logger.Warn("Не удалось удалить просроченный файл",
					slog.String("name", name),
					slog.String("error", err.Error()),
				)
				result.Errors++
				continue
			}
			result.Expired++
			continue
		}

		if s.reg.Contains(parts.ID) {
			s.logger.Warn("Повторяющийся идентификатор на диске, используется последний файл",
				slog.String("object_id", parts.ID),
				slog.String("name", name),
			)
		}

		s.reg.Put(&model.Object{
			ID:          parts.ID,
			DisplayName: parts.ID + "." + parts.Ext,
			MediaType:   model.PlaceholderMediaType,
			Size:        model.UnknownSize,
			ExpiresAt:   parts.ExpiresAt,
			StoragePath: name,
			Recovered:   true,
		})
		result.Loaded++
	}

	for _, name := range temps {
		if err := s.files.Delete(name); err != nil {
			s.logger.Warn("Не удалось удалить временный файл",
				slog.String("name", name),
				slog.String("error", err.Error()),
			)
			result.Errors++
			continue
		}
		result.TempRemoved++
	}

	s.reg.MarkReady()
	result.Duration = time.Since(start)

	objectsLive.Set(float64(s.reg.Count()))
	recoveredObjects.WithLabelValues("loaded").Set(float64(result.Loaded))
	recoveredObjects.WithLabelValues("expired").Set(float64(result.Expired))
	recoveredObjects.WithLabelValues("ignored").Set(float64(result.Ignored))
	recoveredObjects.WithLabelValues("errors").Set(float64(result.Errors))

	s.logger.Info("Реестр восстановлен",
		slog.Int("loaded", result.Loaded),
		slog.Int("expired", result.Expired),
		slog.Int("ignored", result.Ignored),
		slog.Int("temp_removed", result.TempRemoved),
		slog.Int("errors", result.Errors),
		slog.Duration("duration", result.Duration),
	)
	return result, nil
}
