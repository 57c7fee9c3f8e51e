// Package progress содержит журнал прогресса по урокам, движок подсчёта
// очков и движок наград. Одна запись на пару (пользователь, урок).
package progress

import (
	"time"

	"github.com/featherlingo/featherlingo-api/internal/domain/shared"
)

// Status - статус прохождения урока.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsValid проверяет статус.
func (s Status) IsValid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Progress - прогресс пользователя по одному уроку.
type Progress struct {
	ID          string
	UserID      string
	LessonID    string
	Status      Status
	Score       int
	BestScore   int
	Attempts    int
	Results     []ExerciseResult
	TimeSpent   int // секунды, последняя попытка
	XPEarned    int
	StartedAt   *time.Time
	CompletedAt *time.Time

	// Version - счётчик оптимистичной блокировки.
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New создаёт запись прогресса в статусе in_progress.
func New(id, userID, lessonID string, now time.Time) *Progress {
	started := now
	return &Progress{
		ID:        id,
		UserID:    userID,
		LessonID:  lessonID,
		Status:    StatusInProgress,
		StartedAt: &started,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsCompleted возвращает true для пройденного урока.
func (p *Progress) IsCompleted() bool {
	return p.Status == StatusCompleted
}

// Start отмечает начало урока. Для уже начатого урока ничего не меняет.
func (p *Progress) Start(now time.Time) {
	if p.StartedAt == nil {
		started := now
		p.StartedAt = &started
	}
	if p.Status == StatusNotStarted {
		p.Status = StatusInProgress
		p.UpdatedAt = now
	}
}

// RecordSubmission применяет проверенную попытку к записи.
// Повторная отправка пройденного урока запрещена.
func (p *Progress) RecordSubmission(score ScoreResult, outcome Outcome, timeSpent int, now time.Time) error {
	if p.IsCompleted() {
		return shared.ErrAlreadyCompleted
	}
	if timeSpent < 0 {
		return shared.ErrInvalidTimeSpent
	}
	if score.Score < 0 || score.Score > 100 {
		return shared.ErrInvalidScore
	}

	p.Start(now)
	p.Attempts++
	p.Score = score.Score
	if score.Score > p.BestScore {
		p.BestScore = score.Score
	}
	p.Results = score.Results
	p.TimeSpent = timeSpent
	p.UpdatedAt = now

	if outcome.Completed {
		completed := now
		p.Status = StatusCompleted
		p.CompletedAt = &completed
		p.XPEarned = outcome.XP
	} else {
		p.Status = StatusFailed
	}
	return nil
}

// IsPerfect возвращает true для пройденного урока со счётом 100.
func (p *Progress) IsPerfect() bool {
	return p.IsCompleted() && p.Score == 100
}
