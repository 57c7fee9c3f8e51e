// Package command содержит операции записи (CQRS - Commands).
// Каждая команда выполняется в одной транзакции и повторяется при
// конфликте версий; события публикуются только после фиксации.
package command

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/featherlingo/featherlingo-api/internal/domain/shared"
	"github.com/featherlingo/featherlingo-api/internal/domain/user"
	"github.com/featherlingo/featherlingo-api/pkg/logger"
	"github.com/featherlingo/featherlingo-api/pkg/retry"
	"github.com/featherlingo/featherlingo-api/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ОБЩИЕ ЗАВИСИМОСТИ
// ══════════════════════════════════════════════════════════════════════════════

// Transactor выполняет fn в транзакции, переданной через ctx.
// Вложенные вызовы присоединяются к внешней транзакции.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// IDGenerator выдаёт идентификаторы агрегатов.
type IDGenerator func() string

// NewUUID - IDGenerator по умолчанию.
func NewUUID() string {
	return uuid.NewString()
}

// Runtime - общие для всех команд зависимости.
type Runtime struct {
	Tx      Transactor
	Events  shared.EventPublisher
	Retrier *retry.Retrier
	Clock   timeutil.Clock
	NewID   IDGenerator
	Logger  *logger.Logger
}

// NewRuntime заполняет значения по умолчанию.
// retryIf дополняет shared.IsRetryable (например, ошибками сериализации БД).
func NewRuntime(tx Transactor, events shared.EventPublisher, log *logger.Logger, retryIf func(error) bool) Runtime {
	if log == nil {
		log = logger.Nop()
	}
	return Runtime{
		Tx:     tx,
		Events: events,
		Retrier: retry.DatabaseRetrier(func(err error) bool {
			return shared.IsRetryable(err) || (retryIf != nil && retryIf(err))
		}),
		Clock:  timeutil.Now,
		NewID:  NewUUID,
		Logger: log,
	}
}

func (r Runtime) now() time.Time {
	if r.Clock == nil {
		return timeutil.Now()
	}
	return r.Clock()
}

// inTx выполняет fn в транзакции с повтором при конфликте версий.
func (r Runtime) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	attempt := func(ctx context.Context) error {
		return r.Tx.RunInTx(ctx, fn)
	}
	if r.Retrier == nil {
		return attempt(ctx)
	}
	return r.Retrier.Do(ctx, attempt)
}

// publish отправляет события после фиксации. Ошибка шины не отменяет
// уже сохранённое изменение, поэтому только логируется.
func (r Runtime) publish(ctx context.Context, events ...shared.Event) {
	if r.Events == nil {
		return
	}
	log := logger.FromContext(ctx)
	for _, e := range events {
		if err := r.Events.Publish(e); err != nil {
			log.Warn("failed to publish event",
				logger.String("event_type", string(e.EventType())),
				logger.String("aggregate_id", e.AggregateID()),
				logger.Err(err),
			)
		}
	}
}

// requireAdmin проверяет роль по сохранённому пользователю, а не по токену.
func requireAdmin(ctx context.Context, users user.Repository, actorID string) error {
	actor, err := users.GetByID(ctx, actorID)
	if err != nil {
		if shared.IsNotFound(err) {
			return shared.ErrInvalidToken
		}
		return err
	}
	if !actor.IsAdmin() {
		return shared.ErrAdminRequired
	}
	return nil
}
