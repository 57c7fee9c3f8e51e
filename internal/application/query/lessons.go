package query

import (
	"context"
	"time"

	"github.com/featherlingo/featherlingo-api/internal/domain/lesson"
	"github.com/featherlingo/featherlingo-api/internal/domain/progress"
	"github.com/featherlingo/featherlingo-api/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LESSON QUERIES
// Правильные ответы наружу не отдаются.
// ══════════════════════════════════════════════════════════════════════════════

// ExerciseDTO - упражнение без правильного ответа.
type ExerciseDTO struct {
	Index   int      `json:"index"`
	Type    string   `json:"type"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options,omitempty"`
	Points  int      `json:"points"`
}

// LessonSummaryDTO - строка списка уроков.
type LessonSummaryDTO struct {
	ID             string        `json:"id"`
	Title          string        `json:"title"`
	Description    string        `json:"description,omitempty"`
	Language       string        `json:"language"`
	Unit           int           `json:"unit"`
	Order          int           `json:"order"`
	Difficulty     string        `json:"difficulty"`
	TotalExercises int           `json:"totalExercises"`
	Reward         lesson.Reward `json:"reward"`
	Prerequisites  []string      `json:"prerequisites,omitempty"`

	// Status - статус прогресса вызывающего, "not_started" если записи нет.
	Status string `json:"status"`
}

// LessonDetailDTO - урок целиком.
type LessonDetailDTO struct {
	LessonSummaryDTO
	Exercises []ExerciseDTO `json:"exercises"`
	CreatedAt time.Time     `json:"createdAt"`
}

func newLessonSummary(l *lesson.Lesson, status progress.Status) LessonSummaryDTO {
	return LessonSummaryDTO{
		ID:             l.ID,
		Title:          l.Title,
		Description:    l.Description,
		Language:       l.Language.String(),
		Unit:           l.Unit,
		Order:          l.Order,
		Difficulty:     string(l.Difficulty),
		TotalExercises: l.TotalExercises(),
		Reward:         l.Reward,
		Prerequisites:  l.Prerequisites,
		Status:         string(status),
	}
}

// NewLessonDetailDTO скрывает ответы.
func NewLessonDetailDTO(l *lesson.Lesson, status progress.Status) LessonDetailDTO {
	exercises := make([]ExerciseDTO, len(l.Exercises))
	for i, ex := range l.Exercises {
		exercises[i] = ExerciseDTO{
			Index:   i,
			Type:    string(ex.Type),
			Prompt:  ex.Prompt,
			Options: ex.Options,
			Points:  ex.Points,
		}
	}
	return LessonDetailDTO{
		LessonSummaryDTO: newLessonSummary(l, status),
		Exercises:        exercises,
		CreatedAt:        l.CreatedAt,
	}
}

// ListLessonsQuery - фильтр списка.
type ListLessonsQuery struct {
	UserID   string
	Language string
	Page     int
	PageSize int
}

// LessonsHandler читает каталог уроков.
type LessonsHandler struct {
	lessons  lesson.Repository
	progress progress.Repository
}

// NewLessonsHandler создаёт LessonsHandler.
func NewLessonsHandler(lessons lesson.Repository, progressRepo progress.Repository) *LessonsHandler {
	return &LessonsHandler{lessons: lessons, progress: progressRepo}
}

// List возвращает активные уроки, упорядоченные по (unit, order).
func (h *LessonsHandler) List(ctx context.Context, q ListLessonsQuery) ([]LessonSummaryDTO, error) {
	filter := lesson.ListFilter{
		ActiveOnly: true,
		Pagination: shared.NewPagination(q.Page, q.PageSize),
	}
	if q.Language != "" {
		lang, err := shared.NewLanguage(q.Language)
		if err != nil {
			return nil, err
		}
		filter.Language = lang
	}

	lessons, err := h.lessons.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	statuses, err := h.statuses(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	out := make([]LessonSummaryDTO, 0, len(lessons))
	for _, l := range lessons {
		out = append(out, newLessonSummary(l, statusOf(statuses, l.ID)))
	}
	return out, nil
}

// Get возвращает активный урок. Неактивный - shared.ErrLessonNotFound.
func (h *LessonsHandler) Get(ctx context.Context, userID, lessonID string) (*LessonDetailDTO, error) {
	l, err := h.lessons.GetByID(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if !l.IsActive {
		return nil, shared.ErrLessonNotFound
	}

	status := progress.StatusNotStarted
	if userID != "" {
		p, err := h.progress.Get(ctx, userID, lessonID)
		switch {
		case err == nil:
			status = p.Status
		case !shared.IsNotFound(err):
			return nil, err
		}
	}

	dto := NewLessonDetailDTO(l, status)
	return &dto, nil
}

func (h *LessonsHandler) statuses(ctx context.Context, userID string) (map[string]progress.Status, error) {
	if userID == "" {
		return nil, nil
	}
	records, err := h.progress.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]progress.Status, len(records))
	for _, p := range records {
		out[p.LessonID] = p.Status
	}
	return out, nil
}

func statusOf(statuses map[string]progress.Status, lessonID string) progress.Status {
	if s, ok := statuses[lessonID]; ok {
		return s
	}
	return progress.StatusNotStarted
}
