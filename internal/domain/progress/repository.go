package progress

import (
	"context"
	"time"
)

// Repository определяет журнал прогресса.
// Реализация обязана обеспечить уникальность (user_id, lesson_id).
type Repository interface {
	// Get возвращает прогресс пользователя по уроку.
	// Возвращает shared.ErrProgressNotFound, если записи нет.
	Get(ctx context.Context, userID, lessonID string) (*Progress, error)

	// GetForUpdate как Get, но блокирует строку до конца транзакции.
	GetForUpdate(ctx context.Context, userID, lessonID string) (*Progress, error)

	// Create создаёт запись. Дубликат пары даёт ошибку с shared.ErrAlreadyExists.
	Create(ctx context.Context, p *Progress) error

	// Update сохраняет запись, сравнивая Version (compare-and-swap).
	// Возвращает shared.ErrConcurrentModification, если версия устарела.
	Update(ctx context.Context, p *Progress) error

	// Delete удаляет запись (сброс прогресса).
	Delete(ctx context.Context, userID, lessonID string) error

	// MarkRewarded отмечает выдачу награды за урок. Возвращает false, если
	// отметка уже есть. Delete отметку не удаляет.
	MarkRewarded(ctx context.Context, userID, lessonID string, at time.Time) (bool, error)

	// ListByUser возвращает весь прогресс пользователя.
	ListByUser(ctx context.Context, userID string) ([]*Progress, error)

	// CompletedLessonIDs возвращает множество пройденных уроков.
	CompletedLessonIDs(ctx context.Context, userID string) (map[string]bool, error)

	// CompletionStats считает завершения пользователя начиная с момента since.
	CompletionStats(ctx context.Context, userID string, since time.Time) (CompletionStats, error)
}

// CompletionStats - агрегаты по завершённым урокам.
type CompletionStats struct {
	Completed int // завершено с момента since
	Perfect   int // из них со счётом 100
}
