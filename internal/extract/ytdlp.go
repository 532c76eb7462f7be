package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Runner запускает внешнюю команду и возвращает её stdout.
// Подменяется в тестах.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner — Runner на основе os/exec. При ненулевом коде выхода
// в ошибку включается stderr.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// YtDlp — Extractor на основе утилиты yt-dlp.
type YtDlp struct {
	binary  string
	timeout time.Duration
	run     Runner
	logger  *slog.Logger
}

// YtDlpOption — функциональная опция YtDlp.
type YtDlpOption func(*YtDlp)

// WithRunner задаёт способ запуска команды.
func WithRunner(r Runner) YtDlpOption {
	return func(y *YtDlp) {
		y.run = r
	}
}

// NewYtDlp создаёт Extractor. timeout ограничивает каждый вызов утилиты
// (0 — без ограничения, кроме контекста вызывающего).
func NewYtDlp(binary string, timeout time.Duration, logger *slog.Logger, opts ...YtDlpOption) *YtDlp {
	y := &YtDlp{
		binary:  binary,
		timeout: timeout,
		run:     ExecRunner,
		logger:  logger.With(slog.String("component", "ytdlp")),
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

// Extract скачивает аудиодорожку и конвертирует её в mp3 (качество 5).
func (y *YtDlp) Extract(ctx context.Context, url, outPath string) error {
	ctx, cancel := y.withTimeout(ctx)
	defer cancel()

	args := []string{
		"-x",
		"--audio-format", "mp3",
		"--audio-quality", "5",
		"--no-playlist",
		"--no-warnings",
		"-o", outPath,
		"--", url,
	}

	start := time.Now()
	if _, err := y.run(ctx, y.binary, args...); err != nil {
		y.logger.Warn("Ошибка извлечения аудио",
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	if _, err := os.Stat(outPath); err != nil {
		return fmt.Errorf("%w: файл результата не создан", ErrExtractionFailed)
	}

	y.logger.Info("Аудио извлечено",
		slog.String("url", url),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// ytdlpInfo — нужные поля ответа --dump-single-json.
type ytdlpInfo struct {
	Type     string          `json:"_type"`
	Title    string          `json:"title"`
	Duration *float64        `json:"duration"`
	Entries  json.RawMessage `json:"entries"`
}

// Info запрашивает метаданные ресурса. Плейлисты отклоняются (ErrPlaylist).
func (y *YtDlp) Info(ctx context.Context, url string) (*MediaInfo, error) {
	ctx, cancel := y.withTimeout(ctx)
	defer cancel()

	args := []string{
		"--dump-single-json",
		"--no-warnings",
		"--extractor-args", "youtube:player_client=web",
		"--no-check-certificates",
		"--prefer-free-formats",
		"--", url,
	}

	out, err := y.run(ctx, y.binary, args...)
	if err != nil {
		y.logger.Warn("Ошибка получения метаданных",
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	return parseInfo(out)
}

func parseInfo(data []byte) (*MediaInfo, error) {
	var raw ytdlpInfo
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: некорректный ответ: %w", ErrExtractionFailed, err)
	}

	if raw.Entries != nil || raw.Type == "playlist" {
		return nil, ErrPlaylist
	}

	info := &MediaInfo{Title: raw.Title}
	if info.Title == "" {
		info.Title = UnknownTitle
	}
	if raw.Duration != nil && *raw.Duration > 0 {
		info.Duration = *raw.Duration
	}
	info.DurationFormatted = FormatDuration(info.Duration)
	return info, nil
}

func (y *YtDlp) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if y.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, y.timeout)
}

