package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/featherlingo/featherlingo-api/internal/application/command"
	"github.com/featherlingo/featherlingo-api/internal/application/query"
	"github.com/featherlingo/featherlingo-api/internal/domain/lesson"
	"github.com/featherlingo/featherlingo-api/internal/domain/progress"
	"github.com/featherlingo/featherlingo-api/internal/domain/shared"
	"github.com/featherlingo/featherlingo-api/internal/infrastructure/auth"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUBS
// ══════════════════════════════════════════════════════════════════════════════

type stubTokens struct{}

// Verify accepts "<userID>" as the token for any non-empty string.
func (stubTokens) Verify(token string) (auth.Identity, error) {
	if token == "" {
		return auth.Identity{}, shared.ErrMissingToken
	}
	if token == "bad" {
		return auth.Identity{}, shared.ErrInvalidToken
	}
	return auth.Identity{UserID: token, Role: "user"}, nil
}

type stubSubmitter struct {
	got command.SubmitLessonCommand
	res *command.SubmitLessonResult
	err error
}

func (s *stubSubmitter) Handle(_ context.Context, cmd command.SubmitLessonCommand) (*command.SubmitLessonResult, error) {
	s.got = cmd
	return s.res, s.err
}

type stubLessons struct{ err error }

func (s stubLessons) List(context.Context, query.ListLessonsQuery) ([]query.LessonSummaryDTO, error) {
	return nil, s.err
}

func (s stubLessons) Get(context.Context, string, string) (*query.LessonDetailDTO, error) {
	return nil, s.err
}

type stubAdmin struct{ err error }

func (s stubAdmin) Create(context.Context, command.CreateLessonCommand) (*lesson.Lesson, error) {
	return nil, s.err
}

func (s stubAdmin) SetActive(context.Context, string, string, bool) (*lesson.Lesson, error) {
	return nil, s.err
}

type stubBoard struct{ got query.LeaderboardQuery }

func (s *stubBoard) Top(_ context.Context, q query.LeaderboardQuery) (*query.LeaderboardDTO, error) {
	s.got = q
	if q.Limit > query.MaxLeaderboardLimit {
		return nil, shared.ErrInvalidLeaderSize
	}
	return &query.LeaderboardDTO{League: q.League, Source: query.SourceDatabase}, nil
}

func (s *stubBoard) Rank(context.Context, string) (*query.RankDTO, error) { return &query.RankDTO{}, nil }
func (s *stubBoard) Tiers() []query.TierDTO                                { return nil }

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func newTestServer(deps Dependencies) *Server {
	deps.Tokens = stubTokens{}
	cfg := DefaultConfig()
	cfg.MaxBodyBytes = 1024
	return NewServer(cfg, deps)
}

func do(t *testing.T, s *Server, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func errorCode(env map[string]any) string {
	e, _ := env["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestServer_RequiresToken(t *testing.T) {
	s := newTestServer(Dependencies{})

	rec, env := do(t, s, http.MethodGet, "/api/v1/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, env["success"])
	assert.Equal(t, CodeUnauthenticated, errorCode(env))
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))
	assert.Equal(t, rec.Header().Get(headerRequestID), env["request_id"])

	rec, env = do(t, s, http.MethodGet, "/api/v1/users/me", "bad", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeUnauthenticated, errorCode(env))
}

func TestServer_ReusesRequestID(t *testing.T) {
	s := newTestServer(Dependencies{})

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	req.Header.Set(headerRequestID, "req-42")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get(headerRequestID))
}

func TestServer_SubmitLesson(t *testing.T) {
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	sub := &stubSubmitter{res: &command.SubmitLessonResult{
		Score:          75,
		CorrectAnswers: 3,
		TotalExercises: 4,
		IsCompleted:    true,
		Rewards:        &command.Rewards{XP: 38, Feathers: 4},
		Progress:       &progress.Progress{LessonID: "l1", Status: progress.StatusCompleted, UpdatedAt: now},
		TotalXP:        38,
		Level:          1,
		Streak:         1,
	}}
	s := newTestServer(Dependencies{SubmitLesson: sub})

	rec, env := do(t, s, http.MethodPost, "/api/v1/lessons/l1/submit", "u1", map[string]any{
		"answers": []map[string]any{
			{"exerciseIndex": 0, "userAnswer": "a0"},
			{"exerciseIndex": 1, "userAnswer": "a1", "timeSpent": 5},
		},
		"timeSpent": 60,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "u1", sub.got.UserID)
	assert.Equal(t, "l1", sub.got.LessonID)
	require.Len(t, sub.got.Answers, 2)
	assert.Equal(t, 1, sub.got.Answers[1].ExerciseIndex)
	assert.Equal(t, 60, sub.got.TimeSpent)

	data := env["data"].(map[string]any)
	assert.EqualValues(t, 75, data["score"])
	assert.Equal(t, true, data["isCompleted"])
	rewards := data["rewards"].(map[string]any)
	assert.EqualValues(t, 38, rewards["xp"])
	assert.EqualValues(t, 4, rewards["feathers"])
}

func TestServer_SubmitFailedHasNullRewards(t *testing.T) {
	sub := &stubSubmitter{res: &command.SubmitLessonResult{
		Score:          25,
		CorrectAnswers: 1,
		TotalExercises: 4,
		Progress:       &progress.Progress{LessonID: "l1", Status: progress.StatusFailed},
	}}
	s := newTestServer(Dependencies{SubmitLesson: sub})

	rec, env := do(t, s, http.MethodPost, "/api/v1/lessons/l1/submit", "u1", map[string]any{
		"answers": []map[string]any{{"exerciseIndex": 0, "userAnswer": "x"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	data := env["data"].(map[string]any)
	assert.Equal(t, false, data["isCompleted"])
	rewards, present := data["rewards"]
	assert.True(t, present)
	assert.Nil(t, rewards)
}

func TestServer_SubmitRejectsMissingExerciseIndex(t *testing.T) {
	sub := &stubSubmitter{}
	s := newTestServer(Dependencies{SubmitLesson: sub})

	rec, env := do(t, s, http.MethodPost, "/api/v1/lessons/l1/submit", "u1", map[string]any{
		"answers": []map[string]any{{"userAnswer": "x"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeValidation, errorCode(env))
	assert.Empty(t, sub.got.UserID)
}

func TestServer_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", shared.ErrProgressNoAnswers, http.StatusBadRequest, CodeValidation},
		{"not found", shared.ErrLessonNotFound, http.StatusNotFound, CodeNotFound},
		{"conflict", shared.ErrAlreadyCompleted, http.StatusConflict, CodeConflict},
		{"lost race", shared.ErrConcurrentModification, http.StatusConflict, CodeConflict},
		{"forbidden", shared.ErrAdminRequired, http.StatusForbidden, CodeForbidden},
		{"internal", assert.AnError, http.StatusInternalServerError, CodeInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(Dependencies{
				Lessons: stubLessons{err: tc.err},
				Admin:   stubAdmin{err: tc.err},
			})

			rec, env := do(t, s, http.MethodGet, "/api/v1/lessons/l1", "u1", nil)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, errorCode(env))

			rec, _ = do(t, s, http.MethodPatch, "/api/v1/admin/lessons/l1/active", "u1", map[string]any{"active": false})
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestServer_InternalErrorHidesCause(t *testing.T) {
	s := newTestServer(Dependencies{Lessons: stubLessons{err: assert.AnError}})

	_, env := do(t, s, http.MethodGet, "/api/v1/lessons/l1", "u1", nil)
	e := env["error"].(map[string]any)
	assert.NotContains(t, e["message"], assert.AnError.Error())
}

func TestServer_Leaderboard(t *testing.T) {
	board := &stubBoard{}
	s := newTestServer(Dependencies{Leaderboard: board})

	rec, env := do(t, s, http.MethodGet, "/api/v1/league/leaderboard?league=Silver&limit=5", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, query.LeaderboardQuery{League: "Silver", Limit: 5}, board.got)
	assert.Equal(t, "Silver", env["data"].(map[string]any)["league"])

	rec, env = do(t, s, http.MethodGet, "/api/v1/league/leaderboard?limit=abc", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeValidation, errorCode(env))

	rec, _ = do(t, s, http.MethodGet, "/api/v1/league/leaderboard?limit=500", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_ListHasCount(t *testing.T) {
	s := newTestServer(Dependencies{Lessons: stubLessons{}})

	rec, env := do(t, s, http.MethodGet, "/api/v1/lessons", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, env["data"])
	assert.EqualValues(t, 0, env["meta"].(map[string]any)["count"])
}

func TestServer_BodyTooLarge(t *testing.T) {
	s := newTestServer(Dependencies{SubmitLesson: &stubSubmitter{}})

	big := bytes.Repeat([]byte("x"), 4096)
	rec, env := do(t, s, http.MethodPost, "/api/v1/lessons/l1/submit", "u1", map[string]any{
		"answers": []map[string]any{{"exerciseIndex": 0, "userAnswer": string(big)}},
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, CodeBodyTooLarge, errorCode(env))
}

func TestServer_UnknownRoute(t *testing.T) {
	s := newTestServer(Dependencies{})

	rec, env := do(t, s, http.MethodGet, "/api/v1/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, errorCode(env))
}

func TestServer_HealthEndpoints(t *testing.T) {
	s := newTestServer(Dependencies{})

	for _, path := range []string{"/health", "/ready", "/live"} {
		rec, _ := do(t, s, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestServer_FeatureGate(t *testing.T) {
	s := newTestServer(Dependencies{
		QuestsEnabled: func() bool { return false },
		FollowEnabled: func() bool { return false },
	})

	rec, env := do(t, s, http.MethodGet, "/api/v1/quests", "u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, errorCode(env))

	rec, _ = do(t, s, http.MethodPost, "/api/v1/users/u2/follow", "u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
