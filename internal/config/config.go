// Пакет config — загрузка и валидация конфигурации tempstore
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации tempstore.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Корневая директория, внутри которой создаются директории хранения
	RootDir string
	// Имя поддиректории для файлов объектов
	StorageSubdir string
	// Имя поддиректории для временных файлов извлечения аудио
	TempSubdir string
	// Время жизни объекта (одно на весь процесс)
	TTL time.Duration
	// Интервал фоновой очистки
	GCInterval time.Duration
	// Максимальный размер объекта в байтах
	MaxFileSize int64
	// Допустимый префикс MIME-типа при загрузке ("" — любой)
	AllowedMediaPrefix string
	// Абсолютный префикс для ссылок в ответах ("" — относительные ссылки)
	PublicBaseURL string
	// Путь к бинарнику yt-dlp
	YtDlpBinary string
	// Таймаут одного вызова извлечения
	ExtractTimeout time.Duration
	// Размер LRU-кэша информации о медиа
	InfoCacheSize int
	// TTL записей LRU-кэша информации о медиа
	InfoCacheTTL time.Duration
	// URL внешней зависимости для topologymetrics ("" — мониторинг выключен)
	DephealthURL string
	// Интервал проверки зависимости topologymetrics
	DephealthCheckInterval time.Duration
	// Имя сервиса (вершины графа) в метриках topologymetrics
	ServiceID string
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
	// Путь к TLS сертификату (опционально)
	TLSCert string
	// Путь к TLS приватному ключу (опционально)
	TLSKey string
}

// Load загружает конфигурацию из переменных окружения, валидирует
// значения и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}

	// TS_PORT — порт HTTP-сервера (по умолчанию 8080)
	port, err := getEnvInt("TS_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("TS_PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("TS_PORT: значение %d вне допустимого диапазона 1-65535", port)
	}
	cfg.Port = port

	// TS_ROOT_DIR — корневая директория (по умолчанию текущая)
	cfg.RootDir = getEnvDefault("TS_ROOT_DIR", ".")

	// TS_STORAGE_SUBDIR — поддиректория хранения (по умолчанию uploads)
	cfg.StorageSubdir, err = getEnvSubdir("TS_STORAGE_SUBDIR", "uploads")
	if err != nil {
		return nil, err
	}

	// TS_TEMP_SUBDIR — поддиректория временных файлов (по умолчанию temp)
	cfg.TempSubdir, err = getEnvSubdir("TS_TEMP_SUBDIR", "temp")
	if err != nil {
		return nil, err
	}
	if cfg.TempSubdir == cfg.StorageSubdir {
		return nil, fmt.Errorf("TS_TEMP_SUBDIR: не должна совпадать с TS_STORAGE_SUBDIR (%q)", cfg.StorageSubdir)
	}

	// TS_TTL — время жизни объекта (по умолчанию 1h)
	cfg.TTL, err = getEnvPositiveDuration("TS_TTL", time.Hour)
	if err != nil {
		return nil, err
	}
	if cfg.TTL < time.Second {
		return nil, fmt.Errorf("TS_TTL: значение %s меньше секунды (точность хранения — секунды)", cfg.TTL)
	}

	// TS_GC_INTERVAL — интервал очистки (по умолчанию 60s)
	cfg.GCInterval, err = getEnvPositiveDuration("TS_GC_INTERVAL", 60*time.Second)
	if err != nil {
		return nil, err
	}

	// TS_MAX_FILE_SIZE — максимальный размер объекта (по умолчанию 100 MB)
	cfg.MaxFileSize, err = getEnvInt64("TS_MAX_FILE_SIZE", 100*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("TS_MAX_FILE_SIZE: %w", err)
	}
	if cfg.MaxFileSize <= 0 {
		return nil, fmt.Errorf("TS_MAX_FILE_SIZE: значение должно быть положительным")
	}

	// TS_ALLOWED_MEDIA_PREFIX — префикс MIME-типа при загрузке (по умолчанию audio/).
	// Пустое значение задаётся явно как "*".
	cfg.AllowedMediaPrefix = getEnvDefault("TS_ALLOWED_MEDIA_PREFIX", "audio/")
	if cfg.AllowedMediaPrefix == "*" {
		cfg.AllowedMediaPrefix = ""
	}

	// TS_PUBLIC_BASE_URL — абсолютный префикс ссылок (опционально)
	cfg.PublicBaseURL = strings.TrimSuffix(getEnvDefault("TS_PUBLIC_BASE_URL", ""), "/")
	if cfg.PublicBaseURL != "" {
		u, err := url.Parse(cfg.PublicBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("TS_PUBLIC_BASE_URL: некорректный URL %q", cfg.PublicBaseURL)
		}
	}

	// TS_YTDLP_BINARY — бинарник yt-dlp (по умолчанию yt-dlp из PATH)
	cfg.YtDlpBinary = getEnvDefault("TS_YTDLP_BINARY", "yt-dlp")

	// TS_EXTRACT_TIMEOUT — таймаут извлечения аудио (по умолчанию 10m)
	cfg.ExtractTimeout, err = getEnvPositiveDuration("TS_EXTRACT_TIMEOUT", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	// TS_INFO_CACHE_SIZE — размер кэша информации о медиа (по умолчанию 256)
	cfg.InfoCacheSize, err = getEnvInt("TS_INFO_CACHE_SIZE", 256)
	if err != nil {
		return nil, fmt.Errorf("TS_INFO_CACHE_SIZE: %w", err)
	}
	if cfg.InfoCacheSize <= 0 {
		return nil, fmt.Errorf("TS_INFO_CACHE_SIZE: значение должно быть положительным")
	}

	// TS_INFO_CACHE_TTL — TTL кэша информации о медиа (по умолчанию 10m)
	cfg.InfoCacheTTL, err = getEnvPositiveDuration("TS_INFO_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	// TS_DEPHEALTH_URL — внешняя зависимость для мониторинга (опционально)
	cfg.DephealthURL = getEnvDefault("TS_DEPHEALTH_URL", "")

	// TS_DEPHEALTH_CHECK_INTERVAL — интервал проверки (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvPositiveDuration("TS_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, err
	}

	// TS_SERVICE_ID — имя сервиса в topologymetrics (по умолчанию tempstore)
	cfg.ServiceID = getEnvDefault("TS_SERVICE_ID", "tempstore")

	// TS_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("TS_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("TS_LOG_LEVEL: %w", err)
	}

	// TS_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("TS_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("TS_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// TS_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 10s)
	cfg.ShutdownTimeout, err = getEnvPositiveDuration("TS_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	// TS_TLS_CERT / TS_TLS_KEY — задаются только парой
	cfg.TLSCert = getEnvDefault("TS_TLS_CERT", "")
	cfg.TLSKey = getEnvDefault("TS_TLS_KEY", "")
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, fmt.Errorf("TS_TLS_CERT и TS_TLS_KEY задаются только вместе")
	}

	return cfg, nil
}

// StorageDir возвращает путь к директории хранения объектов.
func (c *Config) StorageDir() string {
	return filepath.Join(c.RootDir, c.StorageSubdir)
}

// TempDir возвращает путь к директории временных файлов.
func (c *Config) TempDir() string {
	return filepath.Join(c.RootDir, c.TempSubdir)
}

// TLSEnabled сообщает, настроен ли TLS.
func (c *Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvSubdir возвращает имя поддиректории: один сегмент пути без "..".
func getEnvSubdir(key, defaultVal string) (string, error) {
	val := getEnvDefault(key, defaultVal)
	if val == "." || val == ".." || strings.ContainsAny(val, `/\`) {
		return "", fmt.Errorf("%s: недопустимое имя поддиректории %q", key, val)
	}
	return val, nil
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 6h)", val)
	}
	return d, nil
}

// getEnvPositiveDuration — getEnvDuration с проверкой на положительность.
func getEnvPositiveDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	d, err := getEnvDuration(key, defaultVal)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: значение должно быть положительным, получено %s", key, d)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
