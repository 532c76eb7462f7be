// Пакет model — доменные модели tempstore.
// Object — запись о временно хранимом объекте, in-memory представление
// реестра. На диске из всех полей сохраняются только ID и ExpiresAt
// (закодированы в имени файла, см. пакет codec).
package model

import (
	"time"
)

// Значения-заглушки для записей, восстановленных после рестарта.
// Имя файла на диске не содержит исходного имени, MIME-типа и размера,
// поэтому после восстановления эти поля неизвестны.
const (
	// PlaceholderMediaType — MIME-тип восстановленного объекта
	PlaceholderMediaType = "application/octet-stream"
	// UnknownSize — размер восстановленного объекта
	UnknownSize int64 = -1
)

// Object — метаданные временно хранимого объекта.
type Object struct {
	// ID — 16 шестнадцатеричных символов (64 случайных бита)
	ID string `json:"id"`

	// DisplayName — имя файла, переданное клиентом.
	// После рестарта — заглушка вида "<id>.<ext>".
	DisplayName string `json:"filename"`

	// MediaType — MIME-тип. После рестарта — PlaceholderMediaType.
	MediaType string `json:"mime_type"`

	// Size — размер в байтах. После рестарта — UnknownSize.
	Size int64 `json:"size"`

	// ExpiresAt — момент истечения TTL (UTC, с точностью до секунды).
	// Задаётся один раз при сохранении и больше не меняется.
	ExpiresAt time.Time `json:"expires_at"`

	// StoragePath — имя файла в директории хранения.
	// Не возвращается в API.
	StoragePath string `json:"-"`

	// Recovered — запись восстановлена из имени файла при старте
	Recovered bool `json:"-"`
}

// IsLive проверяет, что объект ещё жив в момент now.
// Объект жив строго до ExpiresAt: в сам момент ExpiresAt он уже истёк.
func (o *Object) IsLive(now time.Time) bool {
	return o.ExpiresAt.After(now)
}

// IsExpired — обратное к IsLive.
func (o *Object) IsExpired(now time.Time) bool {
	return !o.IsLive(now)
}

// Remaining возвращает оставшееся время жизни (0, если истёк).
func (o *Object) Remaining(now time.Time) time.Duration {
	d := o.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// SizeKnown сообщает, известен ли размер объекта.
func (o *Object) SizeKnown() bool {
	return o.Size != UnknownSize
}
