// cache.go — LRU-кэш метаданных медиаресурсов с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable: повторный запрос
// метаданных по той же ссылке не запускает внешнюю утилиту.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/tempstore/internal/extract"
)

// Prometheus-метрики кэша.
var (
	infoCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ts_info_cache_hits_total",
		Help: "Общее количество попаданий в кэш метаданных.",
	})
	infoCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ts_info_cache_misses_total",
		Help: "Общее количество промахов кэша метаданных.",
	})
)

// InfoCache — кэш метаданных по ссылке.
type InfoCache struct {
	cache *expirable.LRU[string, *extract.MediaInfo]
}

// NewInfoCache создаёт кэш с указанным максимальным размером и TTL записи.
func NewInfoCache(maxSize int, ttl time.Duration) *InfoCache {
	return &InfoCache{
		cache: expirable.NewLRU[string, *extract.MediaInfo](maxSize, nil, ttl),
	}
}

// Get возвращает копию метаданных по ссылке.
func (c *InfoCache) Get(url string) (*extract.MediaInfo, bool) {
	val, ok := c.cache.Get(url)
	if !ok {
		infoCacheMissesTotal.Inc()
		return nil, false
	}
	infoCacheHitsTotal.Inc()
	copied := *val
	return &copied, true
}

// Set добавляет или обновляет запись.
func (c *InfoCache) Set(url string, info *extract.MediaInfo) {
	copied := *info
	c.cache.Add(url, &copied)
}

// Len возвращает количество записей.
func (c *InfoCache) Len() int {
	return c.cache.Len()
}
