// Пакет service — бизнес-логика tempstore.
//
// ObjectStore связывает схему именования (codec), файлы на диске (filestore)
// и реестр живых объектов (registry). Порядок сохранения: сначала файл
// атомарно записывается на диск, и только после этого запись попадает
// в реестр. Поэтому реестр никогда не ссылается на незаписанный файл.
package service

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/bigkaa/tempstore/internal/domain/model"
	"github.com/bigkaa/tempstore/internal/storage/codec"
	"github.com/bigkaa/tempstore/internal/storage/filestore"
	"github.com/bigkaa/tempstore/internal/storage/registry"
)

// maxIDAttempts — число попыток сгенерировать свободный идентификатор.
const maxIDAttempts = 4

// PayloadStore — файловое хранилище полезной нагрузки.
// Реализуется *filestore.FileStore.
type PayloadStore interface {
	Write(name string, r io.Reader) (int64, error)
	Open(name string) (*os.File, error)
	Delete(name string) error
	List() ([]string, error)
	ListTemp() ([]string, error)
}

// StoreOption — функциональная опция ObjectStore.
type StoreOption func(*ObjectStore)

// WithStoreClock задаёт источник времени для вычисления ExpiresAt.
func WithStoreClock(c registry.Clock) StoreOption {
	return func(s *ObjectStore) {
		s.clock = c
	}
}

// WithIDSource задаёт источник случайных байт для идентификаторов.
func WithIDSource(r io.Reader) StoreOption {
	return func(s *ObjectStore) {
		s.idSource = r
	}
}

// WithCodec задаёт схему именования файлов.
func WithCodec(c codec.NameCodec) StoreOption {
	return func(s *ObjectStore) {
		s.codec = c
	}
}

// WithMaxSize задаёт лимит размера объекта в байтах (0 — без лимита).
func WithMaxSize(n int64) StoreOption {
	return func(s *ObjectStore) {
		s.maxSize = n
	}
}

// ObjectStore — временное хранилище объектов с фиксированным TTL.
type ObjectStore struct {
	files    PayloadStore
	reg      *registry.Registry
	codec    codec.NameCodec
	clock    registry.Clock
	idSource io.Reader
	ttl      time.Duration
	maxSize  int64
	logger   *slog.Logger
}

// NewObjectStore создаёт хранилище. reg должен быть создан с тем же
// files в качестве PayloadDeleter.
func NewObjectStore(
	files PayloadStore,
	reg *registry.Registry,
	ttl time.Duration,
	logger *slog.Logger,
	opts ...StoreOption,
) *ObjectStore {
	s := &ObjectStore{
		files:    files,
		reg:      reg,
		codec:    codec.HexCodec{},
		clock:    registry.SystemClock,
		idSource: rand.Reader,
		ttl:      ttl,
		logger:   logger.With(slog.String("component", "store")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL возвращает время жизни новых объектов.
func (s *ObjectStore) TTL() time.Duration {
	return s.ttl
}

// Registry возвращает реестр объектов.
func (s *ObjectStore) Registry() *registry.Registry {
	return s.reg
}

// Store сохраняет полезную нагрузку и регистрирует объект.
// ExpiresAt = now + TTL, усечённый до целых секунд (точность имени файла).
// При ошибке записи в реестре ничего не появляется, временный файл удалён.
func (s *ObjectStore) Store(r io.Reader, displayName, mediaType string) (*model.Object, error) {
	id, err := s.newID()
	if err != nil {
		storeTotal.WithLabelValues("io_error").Inc()
		return nil, err
	}

	ext := codec.ExtensionFromName(displayName)
	if displayName == "" {
		displayName = id + "." + ext
	}
	if mediaType == "" {
		mediaType = model.PlaceholderMediaType
	}

	expiresAt := time.Unix(s.clock.Now().Add(s.ttl).Unix(), 0).UTC()
	name, err := s.codec.Encode(id, expiresAt, ext)
	if err != nil {
		storeTotal.WithLabelValues("io_error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	src := r
	if s.maxSize > 0 {
		src = &limitedReader{r: r, remaining: s.maxSize}
	}

	size, err := s.files.Write(name, src)
	if err != nil {
		if errors.Is(err, ErrTooLarge) {
			storeTotal.WithLabelValues("too_large").Inc()
			return nil, ErrTooLarge
		}
		storeTotal.WithLabelValues("io_error").Inc()
		s.logger.Error("Ошибка записи объекта",
			slog.String("object_id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	obj := &model.Object{
		ID:          id,
		DisplayName: displayName,
		MediaType:   mediaType,
		Size:        size,
		ExpiresAt:   expiresAt,
		StoragePath: name,
	}
	s.reg.Put(obj)

	storeTotal.WithLabelValues("ok").Inc()
	storedBytesTotal.Add(float64(size))
	objectsLive.Inc()

	s.logger.Info("Объект сохранён",
		slog.String("object_id", id),
		slog.String("filename", displayName),
		slog.String("mime_type", mediaType),
		slog.Int64("size", size),
		slog.Time("expires_at", expiresAt),
	)
	return obj, nil
}

// Get возвращает метаданные живого объекта.
// Для отсутствующего, просроченного и некорректного id — ErrNotFound.
func (s *ObjectStore) Get(id string) (*model.Object, error) {
	if !codec.ValidID(id) {
		return nil, ErrNotFound
	}
	obj, ok := s.reg.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return obj, nil
}

// Open возвращает метаданные и открытый файл живого объекта.
// Вызывающий код обязан закрыть файл.
//
// Между Get и открытием файла объект может быть удалён (очистка,
// явное удаление): это тоже ErrNotFound. Открытый файл остаётся
// читаемым до закрытия, даже если его удалили после открытия.
func (s *ObjectStore) Open(id string) (*model.Object, *os.File, error) {
	obj, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}

	f, err := s.files.Open(obj.StoragePath)
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			if s.reg.Contains(id) {
				s.logger.Warn("Файл живого объекта отсутствует на диске",
					slog.String("object_id", id),
					slog.String("storage_path", obj.StoragePath),
				)
			}
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return obj, f, nil
}

// Delete удаляет объект независимо от срока жизни.
// Возвращает true, если запись существовала. Ошибка удаления файла
// нефатальна: запись из реестра удаляется в любом случае.
func (s *ObjectStore) Delete(id string) bool {
	if !codec.ValidID(id) {
		return false
	}
	removed := s.reg.Remove(id)
	if removed {
		s.logger.Info("Объект удалён", slog.String("object_id", id))
	}
	return removed
}

// newID генерирует 64-битный случайный идентификатор, не занятый в реестре.
// Между проверкой и Put id может занять параллельный Store, но
// вероятность совпадения 64 случайных бит пренебрежимо мала.
func (s *ObjectStore) newID() (string, error) {
	for range maxIDAttempts {
		var b [8]byte
		if _, err := io.ReadFull(s.idSource, b[:]); err != nil {
			return "", fmt.Errorf("%w: источник случайных байт: %w", ErrIOFailure, err)
		}
		id := codec.IDFromBytes(b)
		if !s.reg.Contains(id) {
			return id, nil
		}
		s.logger.Warn("Коллизия идентификатора, повторная генерация",
			slog.String("object_id", id),
		)
	}
	return "", ErrIDExhausted
}

// limitedReader возвращает ErrTooLarge, как только прочитано больше
// remaining байт. В отличие от io.LimitReader, превышение — ошибка,
// а не EOF, поэтому запись прерывается и временный файл удаляется.
type limitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, ErrTooLarge
	}
	// Читаем не больше remaining+1: лишний байт означает превышение
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, ErrTooLarge
	}
	return n, err
}
