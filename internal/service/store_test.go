package service

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"github.com/bigkaa/tempstore/internal/domain/model"
	"github.com/bigkaa/tempstore/internal/storage/codec"
	"github.com/bigkaa/tempstore/internal/storage/filestore"
	"github.com/bigkaa/tempstore/internal/storage/registry"
)

// baseTime — момент «сейчас» в тестах (целые секунды).
var baseTime = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeClock — управляемые часы.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// storeEnv — окружение теста хранилища на реальной директории.
type storeEnv struct {
	dir   string
	files *filestore.FileStore
	reg   *registry.Registry
	store *ObjectStore
	clock *fakeClock
}

// newStoreEnv создаёт хранилище с TTL 1 час поверх dir.
func newStoreEnv(t *testing.T, dir string, clock *fakeClock, opts ...StoreOption) *storeEnv {
	t.Helper()

	files, err := filestore.New(dir)
	if err != nil {
		t.Fatalf("Ошибка создания FileStore: %v", err)
	}
	reg := registry.New(files, testLogger(), registry.WithClock(clock))
	opts = append([]StoreOption{WithStoreClock(clock)}, opts...)
	store := NewObjectStore(files, reg, time.Hour, testLogger(), opts...)

	return &storeEnv{dir: dir, files: files, reg: reg, store: store, clock: clock}
}

func setupStore(t *testing.T, opts ...StoreOption) *storeEnv {
	t.Helper()
	return newStoreEnv(t, t.TempDir(), newFakeClock(baseTime), opts...)
}

// failingPayloadStore отказывает при любой записи.
type failingPayloadStore struct {
	*filestore.FileStore
}

func (failingPayloadStore) Write(string, io.Reader) (int64, error) {
	return 0, filestore.ErrIO
}

func TestStore_WritesThenRegisters(t *testing.T) {
	env := setupStore(t)

	obj, err := env.store.Store(strings.NewReader("hello"), "song.mp3", "audio/mpeg")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	if !codec.ValidID(obj.ID) {
		t.Errorf("некорректный id %q", obj.ID)
	}
	if obj.DisplayName != "song.mp3" || obj.MediaType != "audio/mpeg" || obj.Size != 5 {
		t.Errorf("метаданные: %+v", obj)
	}
	if !obj.ExpiresAt.Equal(baseTime.Add(time.Hour)) {
		t.Errorf("ExpiresAt: хотели %s, получили %s", baseTime.Add(time.Hour), obj.ExpiresAt)
	}

	parts, ok := codec.Decode(obj.StoragePath)
	if !ok {
		t.Fatalf("имя файла %q не декодируется", obj.StoragePath)
	}
	if parts.ID != obj.ID || !parts.ExpiresAt.Equal(obj.ExpiresAt) || parts.Ext != "mp3" {
		t.Errorf("имя файла не соответствует объекту: %+v", parts)
	}

	data, err := os.ReadFile(filepath.Join(env.dir, obj.StoragePath))
	if err != nil || string(data) != "hello" {
		t.Errorf("содержимое файла: %q, %v", data, err)
	}

	got, err := env.store.Get(obj.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != obj.ID {
		t.Errorf("Get вернул другой объект: %s", got.ID)
	}
}

func TestStore_TruncatesExpiryToSeconds(t *testing.T) {
	clock := newFakeClock(baseTime.Add(750 * time.Millisecond))
	env := newStoreEnv(t, t.TempDir(), clock)

	obj, err := env.store.Store(strings.NewReader("x"), "a.bin", "")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if !obj.ExpiresAt.Equal(baseTime.Add(time.Hour)) {
		t.Errorf("ExpiresAt должен быть усечён до секунды, получили %s", obj.ExpiresAt)
	}
}

func TestStore_Defaults(t *testing.T) {
	env := setupStore(t)

	obj, err := env.store.Store(strings.NewReader("x"), "", "")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if obj.DisplayName != obj.ID+".bin" {
		t.Errorf("DisplayName: получили %q", obj.DisplayName)
	}
	if obj.MediaType != model.PlaceholderMediaType {
		t.Errorf("MediaType: получили %q", obj.MediaType)
	}
}

func TestStore_WriteFailureRegistersNothing(t *testing.T) {
	env := setupStore(t)
	store := NewObjectStore(failingPayloadStore{env.files}, env.reg, time.Hour, testLogger(),
		WithStoreClock(env.clock))

	_, err := store.Store(strings.NewReader("hello"), "a.mp3", "audio/mpeg")
	if !errors.Is(err, ErrIOFailure) {
		t.Fatalf("ожидалась ErrIOFailure, получена %v", err)
	}
	if env.reg.Count() != 0 {
		t.Errorf("реестр должен быть пуст, записей: %d", env.reg.Count())
	}
}

func TestStore_ReaderFailureLeavesNoFiles(t *testing.T) {
	env := setupStore(t)

	_, err := env.store.Store(iotest.ErrReader(errors.New("обрыв соединения")), "a.mp3", "audio/mpeg")
	if !errors.Is(err, ErrIOFailure) {
		t.Fatalf("ожидалась ErrIOFailure, получена %v", err)
	}
	if env.reg.Count() != 0 {
		t.Errorf("реестр должен быть пуст")
	}

	entries, _ := os.ReadDir(env.dir)
	if len(entries) != 0 {
		t.Errorf("в директории не должно остаться файлов, найдено %d", len(entries))
	}
}

func TestStore_MaxSize(t *testing.T) {
	env := setupStore(t, WithMaxSize(4))

	_, err := env.store.Store(strings.NewReader("hello"), "a.mp3", "audio/mpeg")
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("ожидалась ErrTooLarge, получена %v", err)
	}
	entries, _ := os.ReadDir(env.dir)
	if len(entries) != 0 {
		t.Errorf("в директории не должно остаться файлов, найдено %d", len(entries))
	}

	obj, err := env.store.Store(strings.NewReader("four"), "a.mp3", "audio/mpeg")
	if err != nil {
		t.Fatalf("объект ровно на лимите должен сохраняться: %v", err)
	}
	if obj.Size != 4 {
		t.Errorf("Size: получили %d", obj.Size)
	}
}

func TestStore_IDCollisionRetry(t *testing.T) {
	a := bytes.Repeat([]byte{0xaa}, 8)
	b := bytes.Repeat([]byte{0xbb}, 8)
	src := bytes.NewReader(bytes.Join([][]byte{a, a, b}, nil))
	env := setupStore(t, WithIDSource(src))

	first, err := env.store.Store(strings.NewReader("1"), "a.bin", "")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	second, err := env.store.Store(strings.NewReader("2"), "b.bin", "")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	if first.ID != "aaaaaaaaaaaaaaaa" || second.ID != "bbbbbbbbbbbbbbbb" {
		t.Errorf("ожидалась повторная генерация при коллизии: %s, %s", first.ID, second.ID)
	}
}

func TestStore_IDExhausted(t *testing.T) {
	a := bytes.Repeat([]byte{0xaa}, 8*(maxIDAttempts+1))
	env := setupStore(t, WithIDSource(bytes.NewReader(a)))

	if _, err := env.store.Store(strings.NewReader("1"), "a.bin", ""); err != nil {
		t.Fatalf("Store: %v", err)
	}
	_, err := env.store.Store(strings.NewReader("2"), "b.bin", "")
	if !errors.Is(err, ErrIDExhausted) {
		t.Fatalf("ожидалась ErrIDExhausted, получена %v", err)
	}
	if env.reg.Count() != 1 {
		t.Errorf("первый объект не должен быть затронут")
	}
}

func TestGet_ExpiredIsNotFound(t *testing.T) {
	env := setupStore(t)

	obj, err := env.store.Store(strings.NewReader("hello"), "a.mp3", "audio/mpeg")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	env.clock.Advance(time.Hour - time.Second)
	if _, err := env.store.Get(obj.ID); err != nil {
		t.Fatalf("объект ещё жив: %v", err)
	}

	// Ровно в ExpiresAt объект уже истёк
	env.clock.Advance(time.Second)
	if _, err := env.store.Get(obj.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ожидалась ErrNotFound, получена %v", err)
	}
	if env.files.Exists(obj.StoragePath) {
		t.Error("файл просроченного объекта должен быть удалён при обращении")
	}
}

func TestGet_InvalidID(t *testing.T) {
	env := setupStore(t)

	for _, id := range []string{"", "xyz", "../../etc/passwd", "0123456789ABCDEF"} {
		if _, err := env.store.Get(id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get(%q): ожидалась ErrNotFound, получена %v", id, err)
		}
	}
}

func TestOpen_ReadsPayload(t *testing.T) {
	env := setupStore(t)

	obj, err := env.store.Store(strings.NewReader("payload"), "a.mp3", "audio/mpeg")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, f, err := env.store.Open(obj.ID)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil || string(data) != "payload" {
		t.Errorf("содержимое: %q, %v", data, err)
	}
	if got.MediaType != "audio/mpeg" {
		t.Errorf("MediaType: %q", got.MediaType)
	}
}

func TestOpen_PayloadReclaimedConcurrently(t *testing.T) {
	env := setupStore(t)

	obj, err := env.store.Store(strings.NewReader("payload"), "a.mp3", "audio/mpeg")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	// Файл удалён между проверкой в реестре и открытием
	if err := os.Remove(filepath.Join(env.dir, obj.StoragePath)); err != nil {
		t.Fatal(err)
	}

	if _, _, err := env.store.Open(obj.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ожидалась ErrNotFound, получена %v", err)
	}
}

func TestOpen_FileStaysReadableAfterDelete(t *testing.T) {
	env := setupStore(t)

	obj, err := env.store.Store(strings.NewReader("payload"), "a.mp3", "audio/mpeg")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	_, f, err := env.store.Open(obj.ID)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	if !env.store.Delete(obj.ID) {
		t.Fatal("Delete должен вернуть true")
	}

	data, err := io.ReadAll(f)
	if err != nil || string(data) != "payload" {
		t.Errorf("открытый файл должен читаться до конца: %q, %v", data, err)
	}
}

func TestDelete_Idempotent(t *testing.T) {
	env := setupStore(t)

	obj, err := env.store.Store(strings.NewReader("hello"), "a.mp3", "audio/mpeg")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	if !env.store.Delete(obj.ID) {
		t.Error("первый Delete должен вернуть true")
	}
	if env.store.Delete(obj.ID) {
		t.Error("повторный Delete должен вернуть false")
	}
	if env.store.Delete("not-an-id") {
		t.Error("Delete некорректного id должен вернуть false")
	}

	if _, err := env.store.Get(obj.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получена %v", err)
	}
	if env.files.Exists(obj.StoragePath) {
		t.Error("файл должен быть удалён")
	}
}

func TestStore_ConcurrentStoreAndGet(t *testing.T) {
	env := setupStore(t)

	var wg sync.WaitGroup
	ids := make(chan string, 50)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			obj, err := env.store.Store(strings.NewReader("x"), "a.bin", "")
			if err != nil {
				t.Errorf("Store: %v", err)
				return
			}
			if _, err := env.store.Get(obj.ID); err != nil {
				t.Errorf("Get: %v", err)
			}
			ids <- obj.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		if seen[id] {
			t.Errorf("повторяющийся id %s", id)
		}
		seen[id] = true
	}
	if env.reg.Count() != 50 {
		t.Errorf("Count: хотели 50, получили %d", env.reg.Count())
	}
}
