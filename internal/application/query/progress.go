package query

import (
	"context"
	"sort"
	"time"

	"github.com/featherlingo/featherlingo-api/internal/domain/progress"
)

// ProgressDTO - запись прогресса в ответе API.
type ProgressDTO struct {
	LessonID    string                    `json:"lessonId"`
	Status      string                    `json:"status"`
	Score       int                       `json:"score"`
	BestScore   int                       `json:"bestScore"`
	Attempts    int                       `json:"attempts"`
	XPEarned    int                       `json:"xpEarned"`
	TimeSpent   int                       `json:"timeSpent"`
	Results     []progress.ExerciseResult `json:"results,omitempty"`
	StartedAt   *time.Time                `json:"startedAt,omitempty"`
	CompletedAt *time.Time                `json:"completedAt,omitempty"`
	UpdatedAt   time.Time                 `json:"updatedAt"`
}

// NewProgressDTO собирает DTO из записи.
func NewProgressDTO(p *progress.Progress) ProgressDTO {
	return ProgressDTO{
		LessonID:    p.LessonID,
		Status:      string(p.Status),
		Score:       p.Score,
		BestScore:   p.BestScore,
		Attempts:    p.Attempts,
		XPEarned:    p.XPEarned,
		TimeSpent:   p.TimeSpent,
		Results:     p.Results,
		StartedAt:   p.StartedAt,
		CompletedAt: p.CompletedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// ProgressHandler читает журнал прогресса.
type ProgressHandler struct {
	repo progress.Repository
}

// NewProgressHandler создаёт ProgressHandler.
func NewProgressHandler(repo progress.Repository) *ProgressHandler {
	return &ProgressHandler{repo: repo}
}

// List возвращает весь прогресс пользователя, последние изменения первыми.
func (h *ProgressHandler) List(ctx context.Context, userID string) ([]ProgressDTO, error) {
	records, err := h.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})

	out := make([]ProgressDTO, 0, len(records))
	for _, p := range records {
		out = append(out, NewProgressDTO(p))
	}
	return out, nil
}

// Get возвращает прогресс по уроку. Нет записи - shared.ErrProgressNotFound.
func (h *ProgressHandler) Get(ctx context.Context, userID, lessonID string) (*ProgressDTO, error) {
	p, err := h.repo.Get(ctx, userID, lessonID)
	if err != nil {
		return nil, err
	}
	dto := NewProgressDTO(p)
	return &dto, nil
}
