package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/featherlingo/featherlingo-api/internal/application/command"
	"github.com/featherlingo/featherlingo-api/internal/application/query"
	"github.com/featherlingo/featherlingo-api/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACCOUNT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type registerRequest struct {
	Username         string `json:"username" binding:"required"`
	Email            string `json:"email" binding:"required"`
	Password         string `json:"password" binding:"required"`
	DisplayName      string `json:"displayName"`
	NativeLanguage   string `json:"nativeLanguage"`
	LearningLanguage string `json:"learningLanguage"`
}

type loginRequest struct {
	// Login is a username or an email address.
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type accountResponse struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
	League      string `json:"league"`
}

type loginResponse struct {
	Token     string          `json:"token"`
	TokenType string          `json:"tokenType"`
	ExpiresAt time.Time       `json:"expiresAt"`
	User      accountResponse `json:"user"`
}

func newAccountResponse(u *user.User) accountResponse {
	return accountResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        string(u.Role),
		League:      u.League.League,
	}
}

// handleRegister handles POST /api/v1/auth/register.
func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	u, err := s.deps.Register.Handle(c.Request.Context(), command.RegisterCommand{
		Username:         req.Username,
		Email:            req.Email,
		Password:         req.Password,
		DisplayName:      req.DisplayName,
		NativeLanguage:   req.NativeLanguage,
		LearningLanguage: req.LearningLanguage,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, newAccountResponse(u))
}

// handleLogin handles POST /api/v1/auth/login.
func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := s.deps.Login.Handle(c.Request.Context(), command.LoginCommand{Login: req.Login, Password: req.Password})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, loginResponse{
		Token:     res.Token,
		TokenType: "Bearer",
		ExpiresAt: res.ExpiresAt,
		User:      newAccountResponse(res.User),
	})
}

// handleMe handles GET /api/v1/users/me.
func (s *Server) handleMe(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	profile, err := s.deps.Profile.Handle(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, profile)
}

// handleFollow handles POST /api/v1/users/:id/follow.
func (s *Server) handleFollow(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	if err := s.deps.Follow.Follow(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"following": true})
}

// handleUnfollow handles DELETE /api/v1/users/:id/follow.
func (s *Server) handleUnfollow(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	if err := s.deps.Follow.Unfollow(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"following": false})
}

// ══════════════════════════════════════════════════════════════════════════════
// QUEST HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type claimResponse struct {
	QuestID   string          `json:"questId"`
	PeriodKey string          `json:"periodKey"`
	Rewards   command.Rewards `json:"rewards"`
}

// handleListQuests handles GET /api/v1/quests.
func (s *Server) handleListQuests(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	quests, err := s.deps.Quests.Handle(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondList[query.QuestDTO](c, quests)
}

// handleClaimQuest handles POST /api/v1/quests/:id/claim.
func (s *Server) handleClaimQuest(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	claim, err := s.deps.ClaimQuest.Handle(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, claimResponse{
		QuestID:   claim.QuestID,
		PeriodKey: claim.PeriodKey,
		Rewards:   command.Rewards{XP: claim.XP, Feathers: claim.Feathers},
	})
}
