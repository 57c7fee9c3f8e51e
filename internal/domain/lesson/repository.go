package lesson

import (
	"context"

	"github.com/featherlingo/featherlingo-api/internal/domain/shared"
)

// ListFilter - фильтр списка уроков.
type ListFilter struct {
	Language   shared.Language
	ActiveOnly bool
	Pagination shared.Pagination
}

// Repository определяет хранилище уроков.
type Repository interface {
	// GetByID возвращает урок по ID.
	// Возвращает shared.ErrLessonNotFound, если урок не найден.
	GetByID(ctx context.Context, id string) (*Lesson, error)

	// List возвращает уроки по фильтру, упорядоченные по (unit, order).
	List(ctx context.Context, filter ListFilter) ([]*Lesson, error)

	// Create сохраняет новый урок.
	// Возвращает ошибку с shared.ErrAlreadyExists, если ID занят.
	Create(ctx context.Context, l *Lesson) error

	// Upsert создаёт или заменяет урок (используется импортом).
	Upsert(ctx context.Context, l *Lesson) error

	// SetActive меняет флаг активности.
	SetActive(ctx context.Context, id string, active bool) error
}
