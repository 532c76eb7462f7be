// Пакет handlers — HTTP-обработчики tempstore.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/bigkaa/tempstore/internal/storage/codec"
)

// writeJSON записывает JSON-ответ.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// bindObjectID извлекает идентификатор объекта из пути /api/files/{id}.
// Некорректный формат — ошибка, клиенту отвечаем 404, как для
// несуществующего объекта.
func bindObjectID(r *http.Request) (string, error) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{
			ParamLocation: runtime.ParamLocationPath,
			Explode:       false,
			Required:      true,
		})
	if err != nil {
		return "", err
	}
	if !codec.ValidID(id) {
		return "", fmt.Errorf("некорректный идентификатор объекта: %q", id)
	}
	return id, nil
}

// baseURL возвращает схему и хост для абсолютных ссылок.
// Если задан publicBaseURL, используется он, иначе — данные запроса
// (с учётом X-Forwarded-Proto от reverse proxy).
func baseURL(r *http.Request, publicBaseURL string) string {
	if publicBaseURL != "" {
		return publicBaseURL
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

// objectPath — относительный путь объекта.
func objectPath(id string) string {
	return "/api/files/" + id
}

// mediaTypeAllowed проверяет MIME-тип по префиксу (пустой префикс — любой тип).
func mediaTypeAllowed(mediaType, prefix string) bool {
	if prefix == "" {
		return true
	}
	return strings.HasPrefix(strings.ToLower(mediaType), strings.ToLower(prefix))
}
