package repository

import "errors"

var (
	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate дубликат записи
	ErrDuplicate = errors.New("duplicate record")

	// ErrStale условное обновление не нашло строку с ожидаемым статусом и версией
	ErrStale = errors.New("stale write")
)
