package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/featherlingo/featherlingo-api/internal/application/command"
	"github.com/featherlingo/featherlingo-api/internal/application/query"
	"github.com/featherlingo/featherlingo-api/internal/domain/league"
	"github.com/featherlingo/featherlingo-api/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// LESSON & PROGRESS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type answerRequest struct {
	// Pointer so a missing index is rejected instead of read as 0.
	ExerciseIndex *int   `json:"exerciseIndex" binding:"required"`
	UserAnswer    string `json:"userAnswer"`
	TimeSpent     int    `json:"timeSpent"`
}

type submitRequest struct {
	Answers   []answerRequest `json:"answers" binding:"dive"`
	TimeSpent int             `json:"timeSpent"`
}

type submitResponse struct {
	Score          int                  `json:"score"`
	CorrectAnswers int                  `json:"correctAnswers"`
	TotalExercises int                  `json:"totalExercises"`
	IsCompleted    bool                 `json:"isCompleted"`
	Rewards        *command.Rewards     `json:"rewards"`
	TotalXP        int                  `json:"totalXp,omitempty"`
	Level          int                  `json:"level,omitempty"`
	Streak         int                  `json:"streak,omitempty"`
	League         *league.PointsChange `json:"league,omitempty"`
	Progress       query.ProgressDTO    `json:"progress"`
}

// handleListLessons handles GET /api/v1/lessons?language=es&page=1&pageSize=20.
func (s *Server) handleListLessons(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	page, err := intQuery(c, "page", 1)
	if err != nil {
		badRequest(c, err)
		return
	}
	size, err := intQuery(c, "pageSize", 0)
	if err != nil {
		badRequest(c, err)
		return
	}

	lessons, err := s.deps.Lessons.List(c.Request.Context(), query.ListLessonsQuery{
		UserID:   userID,
		Language: c.Query("language"),
		Page:     page,
		PageSize: size,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, lessons)
}

// handleGetLesson handles GET /api/v1/lessons/:id.
func (s *Server) handleGetLesson(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	l, err := s.deps.Lessons.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, l)
}

// handleStartLesson handles POST /api/v1/lessons/:id/start.
func (s *Server) handleStartLesson(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	p, err := s.deps.StartLesson.Handle(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, query.NewProgressDTO(p))
}

// handleSubmitLesson handles POST /api/v1/lessons/:id/submit.
func (s *Server) handleSubmitLesson(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	answers := make([]progress.Answer, len(req.Answers))
	for i, a := range req.Answers {
		answers[i] = progress.Answer{ExerciseIndex: *a.ExerciseIndex, UserAnswer: a.UserAnswer, TimeSpent: a.TimeSpent}
	}

	res, err := s.deps.SubmitLesson.Handle(c.Request.Context(), command.SubmitLessonCommand{
		UserID:    userID,
		LessonID:  c.Param("id"),
		Answers:   answers,
		TimeSpent: req.TimeSpent,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, submitResponse{
		Score:          res.Score,
		CorrectAnswers: res.CorrectAnswers,
		TotalExercises: res.TotalExercises,
		IsCompleted:    res.IsCompleted,
		Rewards:        res.Rewards,
		TotalXP:        res.TotalXP,
		Level:          res.Level,
		Streak:         res.Streak,
		League:         res.League,
		Progress:       query.NewProgressDTO(res.Progress),
	})
}

// handleListProgress handles GET /api/v1/progress.
func (s *Server) handleListProgress(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	list, err := s.deps.Progress.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, list)
}

// handleGetProgress handles GET /api/v1/progress/:lessonId.
func (s *Server) handleGetProgress(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	p, err := s.deps.Progress.Get(c.Request.Context(), userID, c.Param("lessonId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, p)
}

// handleResetProgress handles DELETE /api/v1/progress/:lessonId.
func (s *Server) handleResetProgress(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	if err := s.deps.Reset.Handle(c.Request.Context(), userID, c.Param("lessonId")); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"reset": true})
}

// intQuery parses an optional integer query parameter.
func intQuery(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
