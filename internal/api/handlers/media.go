// media.go — HTTP handlers для работы со ссылками на медиаресурсы:
// извлечение аудио в хранилище и получение метаданных.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	apierrors "github.com/bigkaa/tempstore/internal/api/errors"
	"github.com/bigkaa/tempstore/internal/extract"
	"github.com/bigkaa/tempstore/internal/service"
)

// maxJSONBody — ограничение размера JSON-тела запроса.
const maxJSONBody = 64 << 10

// extractedMediaType — MIME-тип извлечённого аудио.
const extractedMediaType = "audio/mpeg"

// urlRequest — тело запросов /api/download и /api/info.
type urlRequest struct {
	URL string `json:"url" validate:"required,http_url,max=2048"`
}

// MediaConfig — параметры endpoints извлечения.
type MediaConfig struct {
	// TempDir — директория для промежуточных файлов
	TempDir string
	// MaxFileSize — максимальный размер извлечённого файла
	MaxFileSize int64
	// PublicBaseURL — базовый URL для абсолютных ссылок ("" — из запроса)
	PublicBaseURL string
}

// MediaHandler — обработчик endpoints извлечения аудио.
type MediaHandler struct {
	store     *service.ObjectStore
	extractor extract.Extractor
	cache     *service.InfoCache
	validate  *validator.Validate
	cfg       MediaConfig
	logger    *slog.Logger
}

// NewMediaHandler создаёт обработчик. cache может быть nil.
func NewMediaHandler(
	store *service.ObjectStore,
	extractor extract.Extractor,
	cache *service.InfoCache,
	cfg MediaConfig,
	logger *slog.Logger,
) *MediaHandler {
	return &MediaHandler{
		store:     store,
		extractor: extractor,
		cache:     cache,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "media_handler")),
	}
}

// Download обрабатывает POST /api/download.
// Тело: {"url": "..."}. Извлекает аудио в mp3, сохраняет как объект
// и возвращает абсолютную ссылку на него. Промежуточный файл
// удаляется в любом случае.
func (h *MediaHandler) Download(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeURLRequest(w, r)
	if !ok {
		return
	}

	if err := os.MkdirAll(h.cfg.TempDir, 0o750); err != nil {
		h.logger.Error("Ошибка создания временной директории", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Не удалось подготовить загрузку")
		return
	}

	tempName := uuid.New().String() + ".mp3"
	tempPath := filepath.Join(h.cfg.TempDir, tempName)
	defer func() {
		if err := os.Remove(tempPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			h.logger.Warn("Не удалось удалить временный файл",
				slog.String("path", tempPath),
				slog.String("error", err.Error()),
			)
		}
	}()

	if err := h.extractor.Extract(r.Context(), req.URL, tempPath); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		apierrors.ExtractionFailed(w, "Не удалось скачать аудио. Проверьте ссылку.")
		return
	}

	f, err := os.Open(tempPath)
	if err != nil {
		h.logger.Error("Ошибка открытия извлечённого файла", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Не удалось скачать аудио")
		return
	}
	defer f.Close()

	if st, err := f.Stat(); err == nil && st.Size() > h.cfg.MaxFileSize {
		apierrors.FileTooLarge(w, "Извлечённый файл превышает допустимый размер")
		return
	}

	obj, err := h.store.Store(f, tempName, extractedMediaType)
	if err != nil {
		if errors.Is(err, service.ErrTooLarge) {
			apierrors.FileTooLarge(w, "Извлечённый файл превышает допустимый размер")
			return
		}
		h.logger.Error("Ошибка сохранения извлечённого файла", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Не удалось сохранить файл")
		return
	}

	url := baseURL(r, h.cfg.PublicBaseURL) + objectPath(obj.ID)
	writeJSON(w, http.StatusOK, newObjectResponse(obj, url))
}

// Info обрабатывает POST /api/info.
// Тело: {"url": "..."}. Возвращает название и длительность ролика.
// Плейлисты отклоняются. Ответы кэшируются по URL.
func (h *MediaHandler) Info(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeURLRequest(w, r)
	if !ok {
		return
	}

	if h.cache != nil {
		if info, hit := h.cache.Get(req.URL); hit {
			writeJSON(w, http.StatusOK, info)
			return
		}
	}

	info, err := h.extractor.Info(r.Context(), req.URL)
	if err != nil {
		switch {
		case errors.Is(err, extract.ErrPlaylist):
			apierrors.ValidationError(w, "Плейлисты не поддерживаются. Укажите ссылку на отдельное видео.")
		case errors.Is(err, context.Canceled):
		default:
			apierrors.ExtractionFailed(w, "Не удалось получить информацию о видео")
		}
		return
	}

	if h.cache != nil {
		h.cache.Set(req.URL, info)
	}
	writeJSON(w, http.StatusOK, info)
}

// decodeURLRequest читает и валидирует тело {"url": "..."}.
// При ошибке пишет ответ и возвращает false.
func (h *MediaHandler) decodeURLRequest(w http.ResponseWriter, r *http.Request) (*urlRequest, bool) {
	var req urlRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: ожидается JSON с полем 'url'")
		return nil, false
	}

	if err := h.validate.Struct(req); err != nil {
		apierrors.ValidationError(w, "Некорректный URL")
		return nil, false
	}
	return &req, true
}
