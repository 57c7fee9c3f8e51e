package command

import (
	"context"

	"github.com/featherlingo/featherlingo-api/internal/domain/lesson"
	"github.com/featherlingo/featherlingo-api/internal/domain/user"
	"github.com/featherlingo/featherlingo-api/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LESSON ADMINISTRATION
// ══════════════════════════════════════════════════════════════════════════════

// CreateLessonCommand - новый урок. ActorID - администратор.
type CreateLessonCommand struct {
	ActorID string
	Lesson  lesson.NewLessonParams
}

// LessonAdminHandler создаёт уроки и переключает их активность.
type LessonAdminHandler struct {
	users   user.Repository
	lessons lesson.Repository
}

// NewLessonAdminHandler создаёт LessonAdminHandler.
func NewLessonAdminHandler(users user.Repository, lessons lesson.Repository) *LessonAdminHandler {
	return &LessonAdminHandler{users: users, lessons: lessons}
}

// Create проверяет урок и сохраняет его. Не администратор - Forbidden.
func (h *LessonAdminHandler) Create(ctx context.Context, cmd CreateLessonCommand) (*lesson.Lesson, error) {
	if err := requireAdmin(ctx, h.users, cmd.ActorID); err != nil {
		return nil, err
	}

	l, err := lesson.NewLesson(cmd.Lesson)
	if err != nil {
		return nil, err
	}
	if err := h.lessons.Create(ctx, l); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("lesson created", logger.LessonID(l.ID), logger.UserID(cmd.ActorID))
	return l, nil
}

// SetActive включает или скрывает урок.
func (h *LessonAdminHandler) SetActive(ctx context.Context, actorID, lessonID string, active bool) (*lesson.Lesson, error) {
	if err := requireAdmin(ctx, h.users, actorID); err != nil {
		return nil, err
	}
	if err := h.lessons.SetActive(ctx, lessonID, active); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("lesson visibility changed",
		logger.LessonID(lessonID), logger.Bool("active", active))
	return h.lessons.GetByID(ctx, lessonID)
}
