// Пакет extract — получение аудио и метаданных по ссылке на медиаресурс
// через внешнюю утилиту yt-dlp.
package extract

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrPlaylist — ссылка ведёт на плейлист, поддерживаются только одиночные ролики
	ErrPlaylist = errors.New("плейлисты не поддерживаются")
	// ErrExtractionFailed — внешняя утилита завершилась с ошибкой
	ErrExtractionFailed = errors.New("не удалось получить данные по ссылке")
)

// UnknownTitle — название, если источник его не сообщил.
const UnknownTitle = "Неизвестно"

// MediaInfo — метаданные медиаресурса.
type MediaInfo struct {
	Title             string  `json:"title"`
	Duration          float64 `json:"duration"`
	DurationFormatted string  `json:"durationFormatted"`
}

// Extractor — источник аудио по ссылке.
type Extractor interface {
	// Extract сохраняет аудиодорожку ресурса url в mp3-файл outPath.
	Extract(ctx context.Context, url, outPath string) error
	// Info возвращает метаданные ресурса url.
	Info(ctx context.Context, url string) (*MediaInfo, error)
}

// FormatDuration форматирует длительность в секундах:
// "h:mm:ss", если не меньше часа, иначе "m:ss". Дробная часть отбрасывается.
func FormatDuration(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int64(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60

	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
