package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/featherlingo/featherlingo-api/internal/application/command"
	"github.com/featherlingo/featherlingo-api/internal/application/query"
	"github.com/featherlingo/featherlingo-api/internal/domain/lesson"
	"github.com/featherlingo/featherlingo-api/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEAGUE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type pointsRequest struct {
	Points *int `json:"points" binding:"required"`
}

// handleAddLeaguePoints handles POST /api/v1/league/points.
func (s *Server) handleAddLeaguePoints(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var req pointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	change, err := s.deps.LeaguePoints.Handle(c.Request.Context(), userID, *req.Points)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, change)
}

// handleTiers handles GET /api/v1/league/tiers.
func (s *Server) handleTiers(c *gin.Context) {
	respondList(c, s.deps.Leaderboard.Tiers())
}

// handleLeaderboard handles GET /api/v1/league/leaderboard?league=Silver&limit=10.
func (s *Server) handleLeaderboard(c *gin.Context) {
	limit, err := intQuery(c, "limit", 0)
	if err != nil {
		respondError(c, shared.Detail(shared.ErrInvalidLeaderSize, "limit must be an integer"))
		return
	}

	board, err := s.deps.Leaderboard.Top(c.Request.Context(), query.LeaderboardQuery{
		League: c.Query("league"),
		Limit:  limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, board)
}

// handleRank handles GET /api/v1/league/rank.
func (s *Server) handleRank(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	rank, err := s.deps.Leaderboard.Rank(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, rank)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN HANDLERS
// Role is checked against the stored user by the command, not the token.
// ══════════════════════════════════════════════════════════════════════════════

type exerciseRequest struct {
	Type          string   `json:"type"`
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Points        int      `json:"points"`
}

type lessonRequest struct {
	ID            string            `json:"id" binding:"required"`
	Title         string            `json:"title" binding:"required"`
	Description   string            `json:"description"`
	Language      string            `json:"language" binding:"required"`
	Unit          int               `json:"unit"`
	Order         int               `json:"order"`
	Difficulty    string            `json:"difficulty"`
	Exercises     []exerciseRequest `json:"exercises"`
	Reward        lesson.Reward     `json:"reward"`
	Prerequisites []string          `json:"prerequisites"`
	IsActive      bool              `json:"isActive"`
}

type activeRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// handleCreateLesson handles POST /api/v1/admin/lessons.
func (s *Server) handleCreateLesson(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var req lessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	exercises := make([]lesson.Exercise, len(req.Exercises))
	for i, ex := range req.Exercises {
		exercises[i] = lesson.Exercise{
			Type:          lesson.ExerciseType(ex.Type),
			Prompt:        ex.Prompt,
			Options:       ex.Options,
			CorrectAnswer: ex.CorrectAnswer,
			Points:        ex.Points,
		}
	}

	l, err := s.deps.Admin.Create(c.Request.Context(), command.CreateLessonCommand{
		ActorID: userID,
		Lesson: lesson.NewLessonParams{
			ID:            req.ID,
			Title:         req.Title,
			Description:   req.Description,
			Language:      req.Language,
			Unit:          req.Unit,
			Order:         req.Order,
			Difficulty:    lesson.Difficulty(req.Difficulty),
			Exercises:     exercises,
			Reward:        req.Reward,
			Prerequisites: req.Prerequisites,
			IsActive:      req.IsActive,
		},
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, adminLessonView(l))
}

// handleSetLessonActive handles PATCH /api/v1/admin/lessons/:id/active.
func (s *Server) handleSetLessonActive(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var req activeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	l, err := s.deps.Admin.SetActive(c.Request.Context(), userID, c.Param("id"), *req.Active)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, adminLessonView(l))
}

// adminLessonView is the lesson detail plus the active flag.
func adminLessonView(l *lesson.Lesson) gin.H {
	return gin.H{
		"lesson":   query.NewLessonDetailDTO(l, ""),
		"isActive": l.IsActive,
	}
}
