package command

import (
	"context"
	"time"

	"github.com/featherlingo/featherlingo-api/internal/domain/league"
	"github.com/featherlingo/featherlingo-api/internal/domain/shared"
	"github.com/featherlingo/featherlingo-api/internal/domain/user"
	"github.com/featherlingo/featherlingo-api/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER / LOGIN
// ══════════════════════════════════════════════════════════════════════════════

// PasswordHasher хеширует и проверяет пароли.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) error
}

// TokenIssuer выдаёт токен доступа.
type TokenIssuer interface {
	Issue(userID, role string) (string, time.Time, error)
}

// RegisterCommand - данные регистрации.
type RegisterCommand struct {
	Username         string
	Email            string
	Password         string
	DisplayName      string
	NativeLanguage   string
	LearningLanguage string
}

// RegisterHandler создаёт аккаунт в нижней лиге.
type RegisterHandler struct {
	rt     Runtime
	users  user.Repository
	hasher PasswordHasher
	ladder *league.Ladder
}

// NewRegisterHandler создаёт RegisterHandler.
func NewRegisterHandler(rt Runtime, users user.Repository, hasher PasswordHasher, ladder *league.Ladder) *RegisterHandler {
	return &RegisterHandler{rt: rt, users: users, hasher: hasher, ladder: ladder}
}

// Handle регистрирует пользователя. Занятый логин или почта - shared.ErrUserAlreadyExists.
func (h *RegisterHandler) Handle(ctx context.Context, cmd RegisterCommand) (*user.User, error) {
	if err := user.ValidateCredentials(cmd.Username, cmd.Email, cmd.Password); err != nil {
		return nil, err
	}

	hash, err := h.hasher.Hash(cmd.Password)
	if err != nil {
		return nil, err
	}

	u, err := user.New(user.NewUserParams{
		ID:               h.rt.NewID(),
		Username:         cmd.Username,
		Email:            cmd.Email,
		PasswordHash:     hash,
		DisplayName:      cmd.DisplayName,
		NativeLanguage:   cmd.NativeLanguage,
		LearningLanguage: cmd.LearningLanguage,
	}, h.ladder)
	if err != nil {
		return nil, err
	}

	if err := h.users.Create(ctx, u); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("user registered", logger.UserID(u.ID), logger.League(u.League.League))
	h.rt.publish(ctx, shared.NewUserRegisteredEvent(u.ID, u.Username, u.League.League))
	return u, nil
}

// LoginCommand - логин (имя пользователя или почта) и пароль.
type LoginCommand struct {
	Login    string
	Password string
}

// LoginResult - выданный токен.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *user.User
}

// LoginHandler проверяет пароль и выдаёт токен.
type LoginHandler struct {
	users  user.Repository
	hasher PasswordHasher
	tokens TokenIssuer
}

// NewLoginHandler создаёт LoginHandler.
func NewLoginHandler(users user.Repository, hasher PasswordHasher, tokens TokenIssuer) *LoginHandler {
	return &LoginHandler{users: users, hasher: hasher, tokens: tokens}
}

// Handle выполняет вход. Неизвестный логин и неверный пароль неразличимы.
func (h *LoginHandler) Handle(ctx context.Context, cmd LoginCommand) (*LoginResult, error) {
	if cmd.Login == "" || cmd.Password == "" {
		return nil, shared.ErrInvalidCredentials
	}

	u, err := h.users.GetByLogin(ctx, cmd.Login)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := h.hasher.Verify(u.PasswordHash, cmd.Password); err != nil {
		return nil, err
	}

	token, expires, err := h.tokens.Issue(u.ID, string(u.Role))
	if err != nil {
		return nil, err
	}

	return &LoginResult{Token: token, ExpiresAt: expires, User: u}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// FOLLOW / UNFOLLOW
// ══════════════════════════════════════════════════════════════════════════════

// FollowHandler управляет подписками.
type FollowHandler struct {
	rt      Runtime
	users   user.Repository
	follows user.FollowRepository
}

// NewFollowHandler создаёт FollowHandler.
func NewFollowHandler(rt Runtime, users user.Repository, follows user.FollowRepository) *FollowHandler {
	return &FollowHandler{rt: rt, users: users, follows: follows}
}

// Follow подписывает followerID на followeeID.
// Повтор - shared.ErrAlreadyFollowing (Conflict), подписка на себя - Validation.
func (h *FollowHandler) Follow(ctx context.Context, followerID, followeeID string) error {
	if followerID == followeeID {
		return shared.ErrSelfFollow
	}
	if _, err := h.users.GetByID(ctx, followeeID); err != nil {
		return err
	}

	if err := h.follows.Follow(ctx, followerID, followeeID); err != nil {
		return err
	}

	h.rt.publish(ctx, shared.NewUserFollowedEvent(shared.EventUserFollowed, followerID, followeeID))
	return nil
}

// Unfollow снимает подписку. Отсутствие подписки - shared.ErrNotFollowing.
func (h *FollowHandler) Unfollow(ctx context.Context, followerID, followeeID string) error {
	if followerID == followeeID {
		return shared.ErrSelfFollow
	}
	if err := h.follows.Unfollow(ctx, followerID, followeeID); err != nil {
		return err
	}

	h.rt.publish(ctx, shared.NewUserFollowedEvent(shared.EventUserUnfollowed, followerID, followeeID))
	return nil
}
