// files.go — HTTP handlers для операций с объектами: загрузка, отдача, удаление.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	apierrors "github.com/bigkaa/tempstore/internal/api/errors"
	"github.com/bigkaa/tempstore/internal/domain/model"
	"github.com/bigkaa/tempstore/internal/service"
	"github.com/bigkaa/tempstore/internal/storage/registry"
)

// multipartOverhead — запас на заголовки multipart сверх размера файла.
const multipartOverhead = 1 << 20

// msgNotFound — ответ для отсутствующего и просроченного объекта.
const msgNotFound = "Файл не найден или срок хранения истёк"

// FilesConfig — параметры файловых endpoints.
type FilesConfig struct {
	// MaxFileSize — максимальный размер объекта в байтах
	MaxFileSize int64
	// AllowedMediaPrefix — допустимый префикс MIME-типа ("" — любой)
	AllowedMediaPrefix string
}

// ObjectResponse — ответ на сохранение объекта.
type ObjectResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
}

func newObjectResponse(obj *model.Object, url string) ObjectResponse {
	return ObjectResponse{
		URL:       url,
		ExpiresAt: obj.ExpiresAt,
		Filename:  obj.DisplayName,
		Size:      obj.Size,
	}
}

// FilesHandler — обработчик файловых endpoints.
type FilesHandler struct {
	store  *service.ObjectStore
	cfg    FilesConfig
	clock  registry.Clock
	logger *slog.Logger
}

// NewFilesHandler создаёт обработчик файловых endpoints.
func NewFilesHandler(store *service.ObjectStore, cfg FilesConfig, clock registry.Clock, logger *slog.Logger) *FilesHandler {
	if clock == nil {
		clock = registry.SystemClock
	}
	return &FilesHandler{
		store:  store,
		cfg:    cfg,
		clock:  clock,
		logger: logger.With(slog.String("component", "files_handler")),
	}
}

// Upload обрабатывает POST /api/upload.
// Multipart form: file (обязательно). Тело читается потоково,
// файл пишется на диск без промежуточной буферизации в памяти.
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxFileSize+multipartOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		apierrors.ValidationError(w, "Ожидается multipart/form-data с полем 'file'")
		return
	}

	part, err := nextFilePart(mr)
	if err != nil {
		if isMaxBytesError(err) {
			apierrors.FileTooLarge(w, h.tooLargeMessage())
			return
		}
		apierrors.ValidationError(w, "Файл не передан: поле 'file' обязательно")
		return
	}
	defer part.Close()

	mediaType := part.Header.Get("Content-Type")
	if !mediaTypeAllowed(mediaType, h.cfg.AllowedMediaPrefix) {
		apierrors.UnsupportedMediaType(w,
			fmt.Sprintf("Недопустимый тип файла %q: разрешены только %s*", mediaType, h.cfg.AllowedMediaPrefix))
		return
	}

	filename := filepath.Base(filepath.Clean("/" + part.FileName()))
	if filename == "/" || filename == "." {
		filename = ""
	}

	obj, err := h.store.Store(part, filename, mediaType)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newObjectResponse(obj, objectPath(obj.ID)))
}

// Get обрабатывает GET /api/files/{id}.
// Отдаёт содержимое живого объекта. Поддерживает Range-запросы.
func (h *FilesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := bindObjectID(r)
	if err != nil {
		apierrors.NotFound(w, msgNotFound)
		return
	}

	obj, f, err := h.store.Open(id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, msgNotFound)
			return
		}
		h.logger.Error("Ошибка открытия объекта",
			slog.String("object_id", id),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Ошибка чтения файла")
		return
	}
	defer f.Close()

	maxAge := int64(math.Ceil(obj.Remaining(h.clock.Now()).Seconds()))

	w.Header().Set("Content-Type", obj.MediaType)
	w.Header().Set("Content-Disposition", contentDisposition(obj.DisplayName))
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", maxAge))
	w.Header().Set("Expires", obj.ExpiresAt.UTC().Format(http.TimeFormat))

	// Content-Length и Range выставляет ServeContent по фактическому размеру
	// файла: у восстановленных после рестарта объектов размер в записи неизвестен.
	http.ServeContent(w, r, "", time.Time{}, f)
}

// Delete обрабатывает DELETE /api/files/{id}.
// 204 — объект удалён, 404 — объекта не было.
func (h *FilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := bindObjectID(r)
	if err != nil {
		apierrors.NotFound(w, msgNotFound)
		return
	}

	if !h.store.Delete(id) {
		apierrors.NotFound(w, msgNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeStoreError переводит ошибку сохранения в HTTP-ответ.
func (h *FilesHandler) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrTooLarge), isMaxBytesError(err):
		apierrors.FileTooLarge(w, h.tooLargeMessage())
	default:
		h.logger.Error("Ошибка сохранения объекта", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Не удалось сохранить файл")
	}
}

func (h *FilesHandler) tooLargeMessage() string {
	return fmt.Sprintf("Файл слишком большой (максимум %d МБ)", h.cfg.MaxFileSize/(1024*1024))
}

// nextFilePart пропускает части формы до поля "file".
func nextFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("поле 'file' отсутствует")
			}
			return nil, err
		}
		if part.FormName() == "file" {
			return part, nil
		}
		part.Close()
	}
}

func isMaxBytesError(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

// contentDisposition формирует заголовок inline с именем файла.
// Не-ASCII имена кодируются по RFC 2231.
func contentDisposition(filename string) string {
	if v := mime.FormatMediaType("inline", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "inline"
}
