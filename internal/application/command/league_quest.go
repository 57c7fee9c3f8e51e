package command

import (
	"context"

	"github.com/featherlingo/featherlingo-api/internal/domain/league"
	"github.com/featherlingo/featherlingo-api/internal/domain/progress"
	"github.com/featherlingo/featherlingo-api/internal/domain/quest"
	"github.com/featherlingo/featherlingo-api/internal/domain/shared"
	"github.com/featherlingo/featherlingo-api/internal/domain/user"
	"github.com/featherlingo/featherlingo-api/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADD LEAGUE POINTS
// ══════════════════════════════════════════════════════════════════════════════

// AddLeaguePointsHandler начисляет очки лиги под блокировкой строки пользователя.
type AddLeaguePointsHandler struct {
	rt     Runtime
	users  user.Repository
	ladder *league.Ladder
}

// NewAddLeaguePointsHandler создаёт AddLeaguePointsHandler.
func NewAddLeaguePointsHandler(rt Runtime, users user.Repository, ladder *league.Ladder) *AddLeaguePointsHandler {
	return &AddLeaguePointsHandler{rt: rt, users: users, ladder: ladder}
}

// Handle начисляет points. Отрицательное значение - shared.ErrInvalidPoints.
func (h *AddLeaguePointsHandler) Handle(ctx context.Context, userID string, points int) (league.PointsChange, error) {
	if points < 0 {
		return league.PointsChange{}, shared.Detail(shared.ErrInvalidPoints, "points must be non-negative, got %d", points)
	}

	var (
		change  league.PointsChange
		totalXP int
	)
	err := h.rt.inTx(ctx, func(ctx context.Context) error {
		u, err := h.users.GetByIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		change, err = u.AddLeaguePoints(h.ladder, points)
		if err != nil {
			return err
		}
		totalXP = u.XP.Int()
		return h.users.Update(ctx, u)
	})
	if err != nil {
		return league.PointsChange{}, err
	}

	if change.Promoted {
		logger.FromContext(ctx).Info("league promotion",
			logger.UserID(userID),
			logger.String("from", change.OldLeague),
			logger.League(change.NewLeague),
		)
	}
	h.rt.publish(ctx, shared.NewLeaguePointsEvent(userID, change.OldLeague, change.NewLeague,
		change.OldPoints, change.NewPoints, totalXP, change.Week))
	return change, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CLAIM QUEST
// ══════════════════════════════════════════════════════════════════════════════

// ClaimQuestHandler выдаёт награду за выполненное задание один раз за период.
type ClaimQuestHandler struct {
	rt       Runtime
	users    user.Repository
	progress progress.Repository
	claims   quest.ClaimRepository
	catalog  *quest.Catalog
}

// NewClaimQuestHandler создаёт ClaimQuestHandler.
func NewClaimQuestHandler(rt Runtime, users user.Repository, progressRepo progress.Repository,
	claims quest.ClaimRepository, catalog *quest.Catalog) *ClaimQuestHandler {
	return &ClaimQuestHandler{rt: rt, users: users, progress: progressRepo, claims: claims, catalog: catalog}
}

// Handle проверяет выполнение и сохраняет получение награды.
// Невыполненное задание - Validation, повтор в том же периоде - Conflict.
func (h *ClaimQuestHandler) Handle(ctx context.Context, userID, questID string) (*quest.Claim, error) {
	def, err := h.catalog.Get(questID)
	if err != nil {
		return nil, err
	}

	var (
		claim   *quest.Claim
		totalXP int
		points  int
	)
	err = h.rt.inTx(ctx, func(ctx context.Context) error {
		now := h.rt.now()

		u, err := h.users.GetByIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		stats, err := quest.CollectStats(ctx, h.progress, quest.Snapshot{
			UserID:        u.ID,
			CurrentStreak: u.Streak.Current(now),
			TotalXP:       u.XP.Int(),
			LeaguePoints:  u.League.Points,
		}, now)
		if err != nil {
			return err
		}
		claimed, err := h.claims.ClaimedKeys(ctx, userID)
		if err != nil {
			return err
		}

		st := quest.Evaluate(def, stats, now)
		st.Claimed = claimed[quest.ClaimKey(def.ID, st.PeriodKey)]

		c, err := quest.NewClaim(h.rt.NewID(), userID, st, now)
		if err != nil {
			return err
		}
		if err := h.claims.Create(ctx, c); err != nil {
			return err
		}
		if err := u.ApplyQuestReward(c.XP, c.Feathers); err != nil {
			return err
		}
		if err := h.users.Update(ctx, u); err != nil {
			return err
		}

		claim = c
		totalXP = u.XP.Int()
		points = u.League.Points
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("quest claimed",
		logger.UserID(userID),
		logger.QuestID(questID),
		logger.String("period", claim.PeriodKey),
		logger.XPAmount(claim.XP),
	)
	h.rt.publish(ctx, shared.NewQuestClaimedEvent(userID, claim.QuestID, claim.PeriodKey,
		claim.XP, claim.Feathers, totalXP, points))
	return claim, nil
}
