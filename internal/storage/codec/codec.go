// Пакет codec — кодирование идентификатора объекта и момента истечения TTL
// в имя файла на диске.
//
// Формат: <16 hex id><8 hex unix-секунд>.<ext>, например
// 0123456789abcdef6712f0c0.mp3. Имя файла — единственные персистентные
// метаданные объекта: по нему при рестарте восстанавливается реестр.
//
// 8 hex-символов — беззнаковое 32-битное число секунд от Unix epoch,
// поэтому максимально представимый момент — 2106-02-07T06:28:15Z.
package codec

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// IDLen — длина идентификатора в hex-символах
	IDLen = 16
	// ExpiryLen — длина поля истечения в hex-символах
	ExpiryLen = 8
	// DefaultExtension — расширение, если его не удалось определить по имени
	DefaultExtension = "bin"
	// maxExtensionLen — ограничение длины расширения
	maxExtensionLen = 16
)

var (
	// ErrInvalidID — идентификатор не состоит из 16 строчных hex-символов
	ErrInvalidID = errors.New("некорректный идентификатор объекта")
	// ErrUnencodableExpiry — момент истечения не помещается в uint32 секунд
	ErrUnencodableExpiry = errors.New("момент истечения не представим в 32-битных секундах")
	// ErrInvalidExtension — пустое или недопустимое расширение
	ErrInvalidExtension = errors.New("некорректное расширение файла")
)

var (
	namePattern = regexp.MustCompile(`^([0-9a-f]{16})([0-9a-f]{8})\.([A-Za-z0-9]{1,16})$`)
	idPattern   = regexp.MustCompile(`^[0-9a-f]{16}$`)
	extPattern  = regexp.MustCompile(`^[A-Za-z0-9]{1,16}$`)
)

// MaxExpiry — максимальный момент истечения, представимый в имени файла.
var MaxExpiry = time.Unix(math.MaxUint32, 0).UTC()

// Parts — результат разбора имени файла.
type Parts struct {
	ID        string
	ExpiresAt time.Time
	Ext       string
}

// NameCodec — схема именования файлов. Реестр и восстановление зависят
// только от этого интерфейса, поэтому имя-как-метаданные можно заменить
// (например, на sidecar-индекс), не трогая остальной код.
type NameCodec interface {
	Encode(id string, expiresAt time.Time, ext string) (string, error)
	Decode(name string) (Parts, bool)
}

// HexCodec — реализация NameCodec с фиксированной шириной полей.
type HexCodec struct{}

// Encode — см. пакетную функцию Encode.
func (HexCodec) Encode(id string, expiresAt time.Time, ext string) (string, error) {
	return Encode(id, expiresAt, ext)
}

// Decode — см. пакетную функцию Decode.
func (HexCodec) Decode(name string) (Parts, bool) {
	return Decode(name)
}

// Encode формирует имя файла из идентификатора, момента истечения и
// расширения. Момент истечения усекается до целых секунд.
func Encode(id string, expiresAt time.Time, ext string) (string, error) {
	if !idPattern.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if !extPattern.MatchString(ext) {
		return "", fmt.Errorf("%w: %q", ErrInvalidExtension, ext)
	}

	sec := expiresAt.Unix()
	if sec < 0 || sec > math.MaxUint32 {
		return "", fmt.Errorf("%w: %s", ErrUnencodableExpiry, expiresAt.UTC().Format(time.RFC3339))
	}

	return fmt.Sprintf("%s%08x.%s", id, uint32(sec), ext), nil
}

// Decode разбирает имя файла. Для любого имени, не подходящего под формат,
// возвращает ok=false: посторонние файлы в директории хранения
// просто игнорируются.
func Decode(name string) (Parts, bool) {
	m := namePattern.FindStringSubmatch(name)
	if m == nil {
		return Parts{}, false
	}

	sec, err := strconv.ParseUint(m[2], 16, 32)
	if err != nil {
		return Parts{}, false
	}

	return Parts{
		ID:        m[1],
		ExpiresAt: time.Unix(int64(sec), 0).UTC(),
		Ext:       m[3],
	}, true
}

// ExtensionFromName определяет расширение по имени, переданному клиентом:
// текст после последней точки, только латиница и цифры, не длиннее
// 16 символов. Если расширения нет или оно непригодно — "bin".
func ExtensionFromName(displayName string) string {
	i := strings.LastIndex(displayName, ".")
	if i < 0 || i == len(displayName)-1 {
		return DefaultExtension
	}

	ext := displayName[i+1:]
	if len(ext) > maxExtensionLen || !extPattern.MatchString(ext) {
		return DefaultExtension
	}
	return ext
}

// ValidID проверяет формат идентификатора объекта.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// IDFromBytes кодирует 8 байт в идентификатор объекта.
func IDFromBytes(b [8]byte) string {
	return hex.EncodeToString(b[:])
}
