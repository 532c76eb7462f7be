// Пакет registry — потокобезопасный in-memory реестр живых объектов.
//
// Реестр — единственный источник истины на вопрос «жив ли объект».
// Живость проверяется лениво при каждом Get: найденная просроченная запись
// удаляется самим Get, а её файл удаляется через PayloadDeleter.
// Фоновая очистка (SweepExpired) удаляет просроченные записи, к которым
// никто не обращается.
//
// Порядок для любого объекта: сначала запись удаляется из карты
// (под блокировкой), затем после снятия блокировки удаляется файл.
// Вложенных блокировок нет, поэтому взаимоблокировка между картой
// и файловой системой невозможна.
//
// Не персистентный: при рестарте пересобирается из имён файлов.
package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bigkaa/tempstore/internal/domain/model"
)

// Clock — источник текущего времени. Подменяется в тестах.
type Clock interface {
	Now() time.Time
}

// ClockFunc адаптирует функцию к интерфейсу Clock.
type ClockFunc func() time.Time

// Now реализует Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock — системные часы.
var SystemClock Clock = ClockFunc(time.Now)

// PayloadDeleter удаляет файл полезной нагрузки по имени.
// Удаление отсутствующего файла должно считаться успехом.
type PayloadDeleter interface {
	Delete(storagePath string) error
}

// Cause — причина удаления записи из реестра.
type Cause string

const (
	// CauseLazyEviction — просроченная запись обнаружена при Get
	CauseLazyEviction Cause = "lazy_eviction"
	// CauseDelete — явное удаление клиентом
	CauseDelete Cause = "delete"
	// CauseSweep — фоновая очистка
	CauseSweep Cause = "sweep"
)

// CleanupError — нефатальная ошибка удаления файла.
// Запись из реестра к этому моменту уже удалена, на диске остаётся
// только файл-сирота; повторных попыток не делается.
type CleanupError struct {
	ObjectID    string
	StoragePath string
	Cause       Cause
	Err         error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("нефатальная ошибка удаления файла объекта %s (%s): %v", e.ObjectID, e.Cause, e.Err)
}

func (e *CleanupError) Unwrap() error {
	return e.Err
}

// SweepResult — результат одного прохода SweepExpired.
type SweepResult struct {
	// Removed — количество удалённых из реестра записей
	Removed int
	// Failures — нефатальные ошибки удаления файлов
	Failures []*CleanupError
}

// Option — функциональная опция реестра.
type Option func(*Registry)

// WithClock задаёт источник времени для ленивой проверки в Get.
func WithClock(c Clock) Option {
	return func(r *Registry) {
		r.clock = c
	}
}

// WithCleanupObserver задаёт наблюдателя нефатальных ошибок удаления файлов.
func WithCleanupObserver(fn func(*CleanupError)) Option {
	return func(r *Registry) {
		r.onCleanupError = fn
	}
}

// WithEvictionObserver задаёт наблюдателя удалений записей из реестра.
func WithEvictionObserver(fn func(obj *model.Object, cause Cause)) Option {
	return func(r *Registry) {
		r.onEvict = fn
	}
}

// Registry — реестр объектов: id → метаданные.
// Использует sync.RWMutex; все мутации карты — критические секции.
type Registry struct {
	mu      sync.RWMutex
	objects map[string]*model.Object
	ready   bool

	deleter        PayloadDeleter
	clock          Clock
	onCleanupError func(*CleanupError)
	onEvict        func(*model.Object, Cause)
	logger         *slog.Logger
}

// New создаёт пустой реестр.
func New(deleter PayloadDeleter, logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		objects: make(map[string]*model.Object),
		deleter: deleter,
		clock:   SystemClock,
		logger:  logger.With(slog.String("component", "registry")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Put добавляет запись. Запись с тем же ID перезаписывается.
func (r *Registry) Put(obj *model.Object) {
	copied := *obj

	r.mu.Lock()
	r.objects[obj.ID] = &copied
	r.mu.Unlock()
}

// Get возвращает копию записи, если объект жив.
// Если запись найдена, но срок истёк, она удаляется, файл удаляется
// (best-effort), и возвращается false — как для несуществующего объекта.
func (r *Registry) Get(id string) (*model.Object, bool) {
	now := r.clock.Now()

	// Быстрый путь для живых и отсутствующих объектов
	r.mu.RLock()
	obj, ok := r.objects[id]
	if ok && obj.IsLive(now) {
		copied := *obj
		r.mu.RUnlock()
		return &copied, true
	}
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}

	// Проверка и удаление — один шаг под эксклюзивной блокировкой:
	// между RUnlock и Lock запись могли удалить или заменить.
	r.mu.Lock()
	obj, ok = r.objects[id]
	if !ok {
		r.mu.Unlock()
		return nil, false
	}
	if obj.IsLive(now) {
		copied := *obj
		r.mu.Unlock()
		return &copied, true
	}
	delete(r.objects, id)
	r.mu.Unlock()

	r.logger.Debug("Просроченный объект удалён при обращении",
		slog.String("object_id", id),
		slog.Time("expires_at", obj.ExpiresAt),
	)
	r.reclaim(obj, CauseLazyEviction)
	return nil, false
}

// Remove удаляет запись без проверки срока и удаляет файл.
// Возвращает true, если запись существовала.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	obj, ok := r.objects[id]
	if ok {
		delete(r.objects, id)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	r.reclaim(obj, CauseDelete)
	return true
}

// SweepExpired удаляет все записи с ExpiresAt <= now и их файлы.
// Ошибка удаления отдельного файла не прерывает проход.
// Повторный вызов с тем же now ничего не находит.
func (r *Registry) SweepExpired(now time.Time) SweepResult {
	var expired []*model.Object

	r.mu.Lock()
	for id, obj := range r.objects {
		if obj.IsExpired(now) {
			expired = append(expired, obj)
			delete(r.objects, id)
		}
	}
	r.mu.Unlock()

	result := SweepResult{Removed: len(expired)}
	for _, obj := range expired {
		if cerr := r.reclaim(obj, CauseSweep); cerr != nil {
			result.Failures = append(result.Failures, cerr)
		}
	}
	return result
}

// reclaim удаляет файл уже удалённой из карты записи.
// Вызывается без блокировки.
func (r *Registry) reclaim(obj *model.Object, cause Cause) *CleanupError {
	if r.onEvict != nil {
		r.onEvict(obj, cause)
	}

	err := r.deleter.Delete(obj.StoragePath)
	if err == nil {
		return nil
	}

	cerr := &CleanupError{
		ObjectID:    obj.ID,
		StoragePath: obj.StoragePath,
		Cause:       cause,
		Err:         err,
	}
	r.logger.Error("Ошибка удаления файла объекта",
		slog.String("object_id", obj.ID),
		slog.String("storage_path", obj.StoragePath),
		slog.String("cause", string(cause)),
		slog.String("error", err.Error()),
	)
	if r.onCleanupError != nil {
		r.onCleanupError(cerr)
	}
	return cerr
}

// Contains проверяет наличие записи без проверки срока.
func (r *Registry) Contains(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.objects[id]
	return ok
}

// Count возвращает количество записей (включая просроченные, но ещё
// не удалённые).
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.objects)
}

// TotalSize возвращает суммарный известный размер записей.
// Записи с неизвестным размером (восстановленные) не учитываются.
func (r *Registry) TotalSize() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total int64
	for _, obj := range r.objects {
		if obj.SizeKnown() {
			total += obj.Size
		}
	}
	return total
}

// List возвращает копии всех записей, отсортированные по ExpiresAt
// (раньше истекающие первыми), затем по ID.
func (r *Registry) List() []*model.Object {
	r.mu.RLock()
	result := make([]*model.Object, 0, len(r.objects))
	for _, obj := range r.objects {
		copied := *obj
		result = append(result, &copied)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].ExpiresAt.Equal(result[j].ExpiresAt) {
			return result[i].ExpiresAt.Before(result[j].ExpiresAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// MarkReady помечает реестр как восстановленный после старта.
func (r *Registry) MarkReady() {
	r.mu.Lock()
	r.ready = true
	r.mu.Unlock()
}

// IsReady возвращает true после завершения восстановления.
func (r *Registry) IsReady() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ready
}
