package command

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/featherlingo/featherlingo-api/internal/domain/league"
	"github.com/featherlingo/featherlingo-api/internal/domain/lesson"
	"github.com/featherlingo/featherlingo-api/internal/domain/progress"
	"github.com/featherlingo/featherlingo-api/internal/domain/shared"
	"github.com/featherlingo/featherlingo-api/internal/domain/user"
	"github.com/featherlingo/featherlingo-api/internal/infrastructure/observability"
	"github.com/featherlingo/featherlingo-api/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LESSON PROGRESS COMMANDS
// Старт урока, отправка ответов и сброс прогресса.
// ══════════════════════════════════════════════════════════════════════════════

// LessonDeps - хранилища, нужные командам прогресса.
type LessonDeps struct {
	Users    user.Repository
	Lessons  lesson.Repository
	Progress progress.Repository
	Ladder   *league.Ladder
}

// loadPlayable возвращает активный урок. Неактивный урок не виден (NotFound).
func loadPlayable(ctx context.Context, lessons lesson.Repository, lessonID string) (*lesson.Lesson, error) {
	l, err := lessons.GetByID(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if !l.IsActive {
		return nil, shared.ErrLessonNotFound
	}
	return l, nil
}

// checkPrerequisites - незавершённые предшествующие уроки дают Conflict.
func checkPrerequisites(ctx context.Context, repo progress.Repository, userID string, l *lesson.Lesson) error {
	if len(l.Prerequisites) == 0 {
		return nil
	}
	completed, err := repo.CompletedLessonIDs(ctx, userID)
	if err != nil {
		return err
	}
	if missing := l.MissingPrerequisites(completed); len(missing) > 0 {
		return shared.Detail(shared.ErrPrerequisitesNotMet, "complete %v first", missing)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Start
// ─────────────────────────────────────────────────────────────────────────────

// StartLessonHandler создаёт запись прогресса при старте урока.
type StartLessonHandler struct {
	rt   Runtime
	deps LessonDeps
}

// NewStartLessonHandler создаёт StartLessonHandler.
func NewStartLessonHandler(rt Runtime, deps LessonDeps) *StartLessonHandler {
	return &StartLessonHandler{rt: rt, deps: deps}
}

// Handle стартует урок. Повторный старт возвращает существующую запись.
func (h *StartLessonHandler) Handle(ctx context.Context, userID, lessonID string) (*progress.Progress, error) {
	l, err := loadPlayable(ctx, h.deps.Lessons, lessonID)
	if err != nil {
		return nil, err
	}

	var (
		result  *progress.Progress
		created bool
	)
	err = h.rt.inTx(ctx, func(ctx context.Context) error {
		created = false
		if err := checkPrerequisites(ctx, h.deps.Progress, userID, l); err != nil {
			return err
		}

		p, err := h.deps.Progress.GetForUpdate(ctx, userID, l.ID)
		switch {
		case err == nil:
			if p.Status == progress.StatusNotStarted {
				p.Start(h.rt.now())
				if err := h.deps.Progress.Update(ctx, p); err != nil {
					return err
				}
			}
		case shared.IsNotFound(err):
			p = progress.New(h.rt.NewID(), userID, l.ID, h.rt.now())
			if err := h.deps.Progress.Create(ctx, p); err != nil {
				return err
			}
			created = true
		default:
			return err
		}

		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if created {
		h.rt.publish(ctx, shared.NewLessonStartedEvent(userID, l.ID))
	}
	return result, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Submit
// ─────────────────────────────────────────────────────────────────────────────

// SubmitLessonCommand - ответы на урок.
type SubmitLessonCommand struct {
	UserID    string
	LessonID  string
	Answers   []progress.Answer
	TimeSpent int
}

// Rewards - начисленная награда.
type Rewards struct {
	XP       int `json:"xp"`
	Feathers int `json:"feathers"`
}

// SubmitLessonResult - итог отправки.
type SubmitLessonResult struct {
	Score          int
	CorrectAnswers int
	TotalExercises int
	IsCompleted    bool
	// Rewards == nil, если урок не пройден.
	Rewards  *Rewards
	Progress *progress.Progress

	TotalXP int
	Level   int
	Streak  int
	League  *league.PointsChange
}

// SubmitOptions настраивает конвейер наград.
type SubmitOptions struct {
	PassingScore int
	// AwardLeaguePoints включает начисление очков лиги, равных полученному XP.
	AwardLeaguePoints func() bool
}

// SubmitLessonHandler - основной конвейер: оценка, награда, серия, лига.
type SubmitLessonHandler struct {
	rt   Runtime
	deps LessonDeps
	opts SubmitOptions
}

// NewSubmitLessonHandler создаёт SubmitLessonHandler.
func NewSubmitLessonHandler(rt Runtime, deps LessonDeps, opts SubmitOptions) *SubmitLessonHandler {
	if opts.PassingScore <= 0 {
		opts.PassingScore = progress.PassingScore
	}
	return &SubmitLessonHandler{rt: rt, deps: deps, opts: opts}
}

// Handle оценивает ответы и применяет награду.
//
// Прогресс и пользователь блокируются в этом порядке (SELECT ... FOR UPDATE),
// обе записи сохраняются с проверкой версии. Повторная отправка пройденного
// урока - shared.ErrAlreadyCompleted, ничего не меняется.
func (h *SubmitLessonHandler) Handle(ctx context.Context, cmd SubmitLessonCommand) (*SubmitLessonResult, error) {
	ctx, span := observability.StartSpan(ctx, "lesson.submit",
		attribute.String("lesson.id", cmd.LessonID),
		attribute.Int("answers", len(cmd.Answers)),
	)
	defer span.End()

	result, err := h.handle(ctx, cmd)
	observability.RecordError(span, err)
	if err == nil {
		span.SetAttributes(attribute.Int("score", result.Score), attribute.Bool("completed", result.IsCompleted))
	}
	return result, err
}

func (h *SubmitLessonHandler) handle(ctx context.Context, cmd SubmitLessonCommand) (*SubmitLessonResult, error) {
	l, err := loadPlayable(ctx, h.deps.Lessons, cmd.LessonID)
	if err != nil {
		return nil, err
	}

	var (
		result *SubmitLessonResult
		events []shared.Event
	)
	err = h.rt.inTx(ctx, func(ctx context.Context) error {
		events = events[:0]
		now := h.rt.now()

		// Пройденный урок отклоняется до проверки ответов.
		p, isNew, err := h.lockProgress(ctx, cmd.UserID, l, now)
		if err != nil {
			return err
		}

		score, outcome, err := h.evaluate(ctx, l, cmd, now)
		if err != nil {
			return err
		}

		if err := p.RecordSubmission(score, outcome, cmd.TimeSpent, now); err != nil {
			return err
		}
		if isNew {
			err = h.deps.Progress.Create(ctx, p)
		} else {
			err = h.deps.Progress.Update(ctx, p)
		}
		if err != nil {
			return err
		}

		result = &SubmitLessonResult{
			Score:          score.Score,
			CorrectAnswers: score.CorrectAnswers,
			TotalExercises: score.TotalExercises,
			IsCompleted:    outcome.Completed,
			Progress:       p,
		}

		if !outcome.Completed {
			events = append(events, shared.NewLessonFailedEvent(cmd.UserID, l.ID, score.Score))
			return nil
		}

		u, err := h.deps.Users.GetByIDForUpdate(ctx, cmd.UserID)
		if err != nil {
			return err
		}
		streak, err := u.ApplyLessonReward(outcome.XP, outcome.Feathers, now)
		if err != nil {
			return err
		}

		var pointsChange *league.PointsChange
		if outcome.XP > 0 && h.opts.AwardLeaguePoints != nil && h.opts.AwardLeaguePoints() {
			change, err := u.AddLeaguePoints(h.deps.Ladder, outcome.XP)
			if err != nil {
				return err
			}
			pointsChange = &change
		}

		if err := h.deps.Users.Update(ctx, u); err != nil {
			return err
		}

		result.Rewards = &Rewards{XP: outcome.XP, Feathers: outcome.Feathers}
		result.TotalXP = u.XP.Int()
		result.Level = u.Level().Int()
		result.Streak = u.Streak.Count
		result.League = pointsChange

		events = append(events, shared.NewLessonCompletedEvent(cmd.UserID, l.ID, score.Score,
			outcome.XP, outcome.Feathers, u.XP.Int(), u.League.Points, u.Streak.Count))
		if streak.Changed {
			events = append(events, shared.NewStreakUpdatedEvent(cmd.UserID, streak.Old, streak.New))
		}
		if pointsChange != nil {
			events = append(events, shared.NewLeaguePointsEvent(cmd.UserID, pointsChange.OldLeague, pointsChange.NewLeague,
				pointsChange.OldPoints, pointsChange.NewPoints, u.XP.Int(), pointsChange.Week))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx)
	log.Info("lesson submitted",
		logger.UserID(cmd.UserID),
		logger.LessonID(l.ID),
		logger.Score(result.Score),
		logger.Bool("completed", result.IsCompleted),
	)
	if result.League != nil && result.League.Promoted {
		log.Info("league promotion",
			logger.UserID(cmd.UserID),
			logger.String("from", result.League.OldLeague),
			logger.League(result.League.NewLeague),
		)
	}

	h.rt.publish(ctx, events...)
	return result, nil
}

// evaluate проверяет и оценивает ответы. Награда за урок выдаётся один раз:
// после сброса прогресса повторное прохождение засчитывается без награды.
func (h *SubmitLessonHandler) evaluate(ctx context.Context, l *lesson.Lesson, cmd SubmitLessonCommand, now time.Time) (progress.ScoreResult, progress.Outcome, error) {
	if len(cmd.Answers) == 0 {
		return progress.ScoreResult{}, progress.Outcome{}, shared.ErrProgressNoAnswers
	}
	if cmd.TimeSpent < 0 {
		return progress.ScoreResult{}, progress.Outcome{}, shared.ErrInvalidTimeSpent
	}

	score, err := progress.Score(l.Exercises, cmd.Answers)
	if err != nil {
		return progress.ScoreResult{}, progress.Outcome{}, err
	}
	outcome := progress.CalculateReward(score.Score, l.Reward, h.opts.PassingScore)
	if !outcome.HasReward() {
		return score, outcome, nil
	}

	first, err := h.deps.Progress.MarkRewarded(ctx, cmd.UserID, l.ID, now)
	if err != nil {
		return progress.ScoreResult{}, progress.Outcome{}, err
	}
	if !first {
		outcome = outcome.WithoutReward()
	}
	return score, outcome, nil
}

// lockProgress блокирует запись прогресса или готовит новую (неявный старт).
func (h *SubmitLessonHandler) lockProgress(ctx context.Context, userID string, l *lesson.Lesson, now time.Time) (*progress.Progress, bool, error) {
	p, err := h.deps.Progress.GetForUpdate(ctx, userID, l.ID)
	if err == nil {
		if p.IsCompleted() {
			return nil, false, shared.ErrAlreadyCompleted
		}
		return p, false, nil
	}
	if !shared.IsNotFound(err) {
		return nil, false, err
	}

	if err := checkPrerequisites(ctx, h.deps.Progress, userID, l); err != nil {
		return nil, false, err
	}
	return progress.New(h.rt.NewID(), userID, l.ID, now), true, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Reset
// ─────────────────────────────────────────────────────────────────────────────

// ResetProgressHandler удаляет запись прогресса. Начисленная награда остаётся,
// повторно она не выдаётся.
type ResetProgressHandler struct {
	rt       Runtime
	progress progress.Repository
}

// NewResetProgressHandler создаёт ResetProgressHandler.
func NewResetProgressHandler(rt Runtime, repo progress.Repository) *ResetProgressHandler {
	return &ResetProgressHandler{rt: rt, progress: repo}
}

// Handle сбрасывает прогресс. Нет записи - shared.ErrProgressNotFound.
func (h *ResetProgressHandler) Handle(ctx context.Context, userID, lessonID string) error {
	if err := h.progress.Delete(ctx, userID, lessonID); err != nil {
		return err
	}
	h.rt.publish(ctx, shared.NewProgressResetEvent(userID, lessonID))
	return nil
}
