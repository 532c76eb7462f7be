// Пакет filestore — операции с файлами полезной нагрузки на диске.
// Обеспечивает атомарную запись (temp → fsync → rename), чтение,
// идемпотентное удаление и листинг директории хранения.
//
// О сроках жизни объектов пакет ничего не знает: решения о том,
// что удалять, принимает реестр.
package filestore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// TmpSuffix — суффикс временного файла незавершённой записи.
// Символ "~" недопустим в расширении объекта, поэтому имя временного
// файла никогда не совпадает с именем объекта.
const TmpSuffix = ".tmp~"

var (
	// ErrNotFound — файл отсутствует на диске
	ErrNotFound = errors.New("файл не найден")
	// ErrIO — ошибка ввода-вывода при записи или чтении
	ErrIO = errors.New("ошибка ввода-вывода")
)

// FileStore — управление файлами в директории хранения.
type FileStore struct {
	// dir — директория хранения (<root>/<subdir>)
	dir string
}

// New создаёт FileStore. Создаёт директорию, если она не существует.
func New(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию хранения %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Write записывает данные из reader в файл name.
// Паттерн: temp файл → запись → fsync → atomic rename.
// При любой ошибке temp файл удаляется, под итоговым именем
// частично записанный файл не появляется никогда.
// Возвращает количество записанных байт.
func (fs *FileStore) Write(name string, r io.Reader) (int64, error) {
	// Директорию могли удалить снаружи после старта
	if err := os.MkdirAll(fs.dir, 0o750); err != nil {
		return 0, fmt.Errorf("%w: создание директории: %w", ErrIO, err)
	}

	fullPath := filepath.Join(fs.dir, name)
	tmpPath := fullPath + TmpSuffix

	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("%w: создание временного файла: %w", ErrIO, err)
	}

	size, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("%w: запись данных: %w", ErrIO, err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("%w: fsync: %w", ErrIO, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("%w: закрытие файла: %w", ErrIO, err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("%w: атомарное переименование: %w", ErrIO, err)
	}

	return size, nil
}

// Open открывает файл для чтения. Вызывающий код обязан закрыть файл.
func (fs *FileStore) Open(name string) (*os.File, error) {
	f, err := os.Open(filepath.Join(fs.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("%w: открытие %s: %w", ErrIO, name, err)
	}
	return f, nil
}

// ReadAll читает файл целиком.
func (fs *FileStore) ReadAll(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(fs.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("%w: чтение %s: %w", ErrIO, name, err)
	}
	return data, nil
}

// Delete удаляет файл. Отсутствие файла — не ошибка.
func (fs *FileStore) Delete(name string) error {
	err := os.Remove(filepath.Join(fs.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("ошибка удаления файла %s: %w", name, err)
	}
	return nil
}

// Exists проверяет существование файла.
func (fs *FileStore) Exists(name string) bool {
	_, err := os.Stat(filepath.Join(fs.dir, name))
	return err == nil
}

// List возвращает имена обычных файлов в директории хранения.
// Временные файлы незавершённой записи не включаются (см. ListTemp).
// Не рекурсивный.
func (fs *FileStore) List() ([]string, error) {
	return fs.list(func(name string) bool { return !strings.HasSuffix(name, TmpSuffix) })
}

// ListTemp возвращает имена временных файлов, оставшихся от
// прерванной записи.
func (fs *FileStore) ListTemp() ([]string, error) {
	return fs.list(func(name string) bool { return strings.HasSuffix(name, TmpSuffix) })
}

func (fs *FileStore) list(keep func(string) bool) ([]string, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения директории %s: %w", fs.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if keep(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Dir возвращает путь к директории хранения.
func (fs *FileStore) Dir() string {
	return fs.dir
}
