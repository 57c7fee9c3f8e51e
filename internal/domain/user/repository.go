package user

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет хранилище пользователей.
type Repository interface {
	// Create создаёт пользователя.
	// Возвращает shared.ErrUserAlreadyExists при занятом логине или почте.
	Create(ctx context.Context, u *User) error

	// GetByID возвращает пользователя по ID.
	// Возвращает shared.ErrUserNotFound, если пользователь не найден.
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByIDForUpdate как GetByID, но блокирует строку до конца транзакции.
	GetByIDForUpdate(ctx context.Context, id string) (*User, error)

	// GetByLogin ищет по имени пользователя или почте.
	GetByLogin(ctx context.Context, login string) (*User, error)

	// Update сохраняет агрегат, сравнивая Version (compare-and-swap).
	// Возвращает shared.ErrConcurrentModification, если версия устарела.
	Update(ctx context.Context, u *User) error

	// ListAll возвращает всех пользователей постранично (для перестройки кеша).
	ListAll(ctx context.Context, offset, limit int) ([]*User, error)
}

// FollowRepository хранит подписки.
type FollowRepository interface {
	// Follow создаёт подписку.
	// Возвращает shared.ErrAlreadyFollowing при повторе.
	Follow(ctx context.Context, followerID, followeeID string) error

	// Unfollow удаляет подписку.
	// Возвращает shared.ErrNotFollowing, если подписки нет.
	Unfollow(ctx context.Context, followerID, followeeID string) error

	// Followers возвращает ID подписчиков.
	Followers(ctx context.Context, userID string) ([]string, error)

	// Following возвращает ID тех, на кого подписан пользователь.
	Following(ctx context.Context, userID string) ([]string, error)
}
