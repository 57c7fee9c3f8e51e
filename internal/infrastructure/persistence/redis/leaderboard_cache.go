package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/featherlingo/featherlingo-api/internal/domain/league"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardCache keeps the leaderboard in Redis sorted sets.
//
// Layout:
//   - Sorted set "leaderboard:scores:all" holds userID -> composite score
//   - Sorted set "leaderboard:scores:league:{name}" holds the same per league
//   - Hash "leaderboard:info" holds userID -> entry JSON
//   - Set "leaderboard:leagues" remembers which league sets exist
//
// The composite score orders by league points, then XP, inside one float64.
type LeaderboardCache struct {
	cache *Cache
}

const (
	keyScoresAll    = PrefixLeaderboard + "scores:all"
	keyScoresLeague = PrefixLeaderboard + "scores:league:"
	keyInfo         = PrefixLeaderboard + "info"
	keyLeagues      = PrefixLeaderboard + "leagues"
	keyRebuild      = PrefixLeaderboard + "rebuild:"

	// xpSlots bounds the XP part of the composite score.
	xpSlots = 10_000_000

	rebuildBatch = 500
)

// NewLeaderboardCache creates a new LeaderboardCache instance.
func NewLeaderboardCache(cache *Cache) *LeaderboardCache {
	return &LeaderboardCache{cache: cache}
}

// CompositeScore encodes (points, xp) so that higher points always win and XP breaks ties.
// XP beyond the slot range saturates; the exact values still come from the info hash.
func CompositeScore(points, xp int) float64 {
	if xp < 0 {
		xp = 0
	}
	if xp >= xpSlots {
		xp = xpSlots - 1
	}
	return float64(points)*xpSlots + float64(xp)
}

// DecodeScore splits a composite score back into points and (possibly saturated) XP.
func DecodeScore(score float64) (points, xp int) {
	points = int(math.Floor(score / xpSlots))
	xp = int(score - float64(points)*xpSlots)
	return points, xp
}

func scoresKey(leagueName string) string {
	if leagueName == league.AllLeagues {
		return keyScoresAll
	}
	return keyScoresLeague + leagueName
}

type cachedInfo struct {
	Username    string `json:"u"`
	DisplayName string `json:"d"`
	League      string `json:"l"`
	Points      int    `json:"p"`
	XP          int    `json:"x"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Reads
// ─────────────────────────────────────────────────────────────────────────────

// Top returns the first limit entries of a leaderboard with competition ranks.
func (l *LeaderboardCache) Top(ctx context.Context, leagueName string, limit int) ([]league.Entry, error) {
	if limit <= 0 {
		return nil, nil
	}

	members, err := l.cache.client.ZRevRangeWithScores(ctx, scoresKey(leagueName), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard_cache: top: %w", err)
	}
	if len(members) == 0 {
		return []league.Entry{}, nil
	}

	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.Member.(string)
	}

	raw, err := l.cache.client.HMGet(ctx, keyInfo, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard_cache: load info: %w", err)
	}

	entries := make([]league.Entry, 0, len(ids))
	for i, id := range ids {
		e := league.Entry{UserID: id}
		if s, ok := raw[i].(string); ok {
			var info cachedInfo
			if err := json.Unmarshal([]byte(s), &info); err == nil {
				e.Username = info.Username
				e.DisplayName = info.DisplayName
				e.League = info.League
				e.Points = info.Points
				e.XP = info.XP
			}
		} else {
			e.Points, e.XP = DecodeScore(members[i].Score)
		}
		entries = append(entries, e)
	}

	league.Sort(entries)
	return entries, nil
}

// CountAhead counts members whose composite score is strictly greater.
func (l *LeaderboardCache) CountAhead(ctx context.Context, leagueName string, entry league.Entry) (int, error) {
	min := "(" + strconv.FormatFloat(CompositeScore(entry.Points, entry.XP), 'f', -1, 64)
	n, err := l.cache.client.ZCount(ctx, scoresKey(leagueName), min, "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("leaderboard_cache: count ahead: %w", err)
	}
	return int(n), nil
}

// Warm reports whether the cache holds a built leaderboard.
func (l *LeaderboardCache) Warm(ctx context.Context) (bool, error) {
	n, err := l.cache.client.Exists(ctx, keyScoresAll).Result()
	if err != nil {
		return false, fmt.Errorf("leaderboard_cache: exists: %w", err)
	}
	return n > 0, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Writes
// ─────────────────────────────────────────────────────────────────────────────

// Upsert moves one user to its current position, leaving the old league set if it changed.
func (l *LeaderboardCache) Upsert(ctx context.Context, entry league.Entry, previousLeague string) error {
	info, err := json.Marshal(cachedInfo{
		Username:    entry.Username,
		DisplayName: entry.DisplayName,
		League:      entry.League,
		Points:      entry.Points,
		XP:          entry.XP,
	})
	if err != nil {
		return fmt.Errorf("leaderboard_cache: marshal entry: %w", err)
	}

	score := CompositeScore(entry.Points, entry.XP)
	_, err = l.cache.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, keyScoresAll, redis.Z{Score: score, Member: entry.UserID})
		if previousLeague != "" && previousLeague != entry.League {
			pipe.ZRem(ctx, scoresKey(previousLeague), entry.UserID)
		}
		pipe.ZAdd(ctx, scoresKey(entry.League), redis.Z{Score: score, Member: entry.UserID})
		pipe.SAdd(ctx, keyLeagues, entry.League)
		pipe.HSet(ctx, keyInfo, entry.UserID, info)
		return nil
	})
	if err != nil {
		return fmt.Errorf("leaderboard_cache: upsert %s: %w", entry.UserID, err)
	}
	return nil
}

// Remove deletes a user from every leaderboard.
func (l *LeaderboardCache) Remove(ctx context.Context, userID, leagueName string) error {
	_, err := l.cache.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, keyScoresAll, userID)
		if leagueName != "" {
			pipe.ZRem(ctx, scoresKey(leagueName), userID)
		}
		pipe.HDel(ctx, keyInfo, userID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("leaderboard_cache: remove %s: %w", userID, err)
	}
	return nil
}

// Rebuild replaces all leaderboards with entries.
// Data is written to staging keys first and swapped in with RENAME,
// so readers never observe a half-built board.
func (l *LeaderboardCache) Rebuild(ctx context.Context, entries []league.Entry) error {
	client := l.cache.client

	oldLeagues, err := client.SMembers(ctx, keyLeagues).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("leaderboard_cache: load leagues: %w", err)
	}

	if len(entries) == 0 {
		keys := []string{keyScoresAll, keyInfo, keyLeagues}
		for _, name := range oldLeagues {
			keys = append(keys, scoresKey(name))
		}
		return l.cache.Delete(ctx, keys...)
	}

	newLeagues := make(map[string]bool)
	for _, e := range entries {
		newLeagues[e.League] = true
	}

	staging := func(key string) string { return keyRebuild + key }
	liveKeys := []string{keyScoresAll, keyInfo}
	for name := range newLeagues {
		liveKeys = append(liveKeys, scoresKey(name))
	}

	stale := make([]string, 0, len(liveKeys))
	for _, k := range liveKeys {
		stale = append(stale, staging(k))
	}
	if err := l.cache.Delete(ctx, stale...); err != nil {
		return fmt.Errorf("leaderboard_cache: clear staging: %w", err)
	}

	for start := 0; start < len(entries); start += rebuildBatch {
		end := start + rebuildBatch
		if end > len(entries) {
			end = len(entries)
		}

		_, err := client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, e := range entries[start:end] {
				info, err := json.Marshal(cachedInfo{
					Username: e.Username, DisplayName: e.DisplayName,
					League: e.League, Points: e.Points, XP: e.XP,
				})
				if err != nil {
					return err
				}
				score := CompositeScore(e.Points, e.XP)
				pipe.ZAdd(ctx, staging(keyScoresAll), redis.Z{Score: score, Member: e.UserID})
				pipe.ZAdd(ctx, staging(scoresKey(e.League)), redis.Z{Score: score, Member: e.UserID})
				pipe.HSet(ctx, staging(keyInfo), e.UserID, info)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("leaderboard_cache: stage batch: %w", err)
		}
	}

	_, err = client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range liveKeys {
			pipe.Rename(ctx, staging(k), k)
		}
		for _, name := range oldLeagues {
			if !newLeagues[name] {
				pipe.Del(ctx, scoresKey(name))
			}
		}
		pipe.Del(ctx, keyLeagues)
		for name := range newLeagues {
			pipe.SAdd(ctx, keyLeagues, name)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("leaderboard_cache: swap: %w", err)
	}

	return nil
}
