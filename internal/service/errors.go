package service

import "errors"

// Ошибки сервиса хранения. Оборачиваются через %w,
// проверяются через errors.Is.
var (
	// ErrNotFound — объекта нет или срок его жизни истёк.
	// Клиент не различает эти случаи.
	ErrNotFound = errors.New("объект не найден")

	// ErrIOFailure — ошибка записи или чтения полезной нагрузки.
	// При записи в реестре ничего не регистрируется.
	ErrIOFailure = errors.New("ошибка ввода-вывода хранилища")

	// ErrStartupFailure — не удалось прочитать директорию хранения при старте.
	// Фатальная ошибка, повторных попыток нет.
	ErrStartupFailure = errors.New("ошибка восстановления хранилища при старте")

	// ErrTooLarge — размер полезной нагрузки превышает лимит
	ErrTooLarge = errors.New("превышен максимальный размер файла")

	// ErrIDExhausted — не удалось сгенерировать свободный идентификатор
	ErrIDExhausted = errors.New("не удалось сгенерировать уникальный идентификатор")
)
