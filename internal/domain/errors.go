package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Application errors
var (
	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate дубликат записи
	ErrDuplicate = errors.New("duplicate record")

	// ErrInvalidInput неверные входные данные
	ErrInvalidInput = errors.New("invalid input data")

	// ErrUnauthenticated секрет вебхука или токен не прошли проверку
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidTransition переход не разрешён из текущего статуса
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrStaleTransition статус или версия уже изменились (повтор или гонка)
	ErrStaleTransition = errors.New("stale state transition")

	// ErrExternalServiceUnavailable внешний сервис недоступен
	ErrExternalServiceUnavailable = errors.New("external service unavailable")

	// ErrInternal внутренняя ошибка
	ErrInternal = errors.New("internal error")
)

// ValidationError представляет ошибку валидации
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s - %s", e.Field, e.Message)
}

// Is сопоставляет с ErrInvalidInput
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError создает новую ошибку валидации
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ValidationErrors представляет набор ошибок валидации
type ValidationErrors []ValidationError

// Error реализует интерфейс error
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	if len(e) == 1 {
		return fmt.Sprintf("validation failed: %s - %s", e[0].Field, e[0].Message)
	}
	fields := make([]string, len(e))
	for i, v := range e {
		fields[i] = v.Field
	}
	return fmt.Sprintf("validation failed: %d errors (%s)", len(e), strings.Join(fields, ", "))
}

// Is сопоставляет с ErrInvalidInput
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidInput
}

// Add добавляет ошибку валидации
func (e *ValidationErrors) Add(field, message string) {
	*e = append(*e, ValidationError{Field: field, Message: message})
}

// HasErrors проверяет наличие ошибок
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// AuthenticationError секрет не совпал или отсутствует
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return "authentication failed: " + e.Reason
}

func (e *AuthenticationError) Is(target error) bool {
	return target == ErrUnauthenticated
}

// NotFoundError представляет ошибку "не найдено"
type NotFoundError struct {
	Entity string
	ID     string
}

// Error реализует интерфейс error
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Entity, e.ID)
}

// Is проверяет, является ли ошибка ошибкой типа "не найдено"
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError создает новую ошибку "не найдено"
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

// ExternalDependencyError ошибка внешнего сервиса (Telegram, S3, Stripe)
type ExternalDependencyError struct {
	Service     string
	Operation   string
	OriginalErr error
}

// Error реализует интерфейс error
func (e *ExternalDependencyError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Service, e.Operation, e.OriginalErr)
}

// Unwrap возвращает оригинальную ошибку
func (e *ExternalDependencyError) Unwrap() error {
	return e.OriginalErr
}

func (e *ExternalDependencyError) Is(target error) bool {
	return target == ErrExternalServiceUnavailable
}

// NewExternalDependencyError создает новую ошибку внешнего сервиса
func NewExternalDependencyError(service, operation string, err error) *ExternalDependencyError {
	return &ExternalDependencyError{Service: service, Operation: operation, OriginalErr: err}
}

// TransitionError операция недопустима в текущем статусе
type TransitionError struct {
	Operation string
	From      Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s subscriber in status %s", e.Operation, e.From)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// ConcurrencyConflict CAS не нашёл строку с ожидаемым статусом и версией
type ConcurrencyConflict struct {
	SubscriberID string
	Expected     Status
}

func (e *ConcurrencyConflict) Error() string {
	return fmt.Sprintf("subscriber %s is no longer in status %s", e.SubscriberID, e.Expected)
}

func (e *ConcurrencyConflict) Is(target error) bool {
	return target == ErrStaleTransition
}
