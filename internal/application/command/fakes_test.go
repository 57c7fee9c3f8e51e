package command

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/featherlingo/featherlingo-api/internal/domain/league"
	"github.com/featherlingo/featherlingo-api/internal/domain/lesson"
	"github.com/featherlingo/featherlingo-api/internal/domain/progress"
	"github.com/featherlingo/featherlingo-api/internal/domain/quest"
	"github.com/featherlingo/featherlingo-api/internal/domain/shared"
	"github.com/featherlingo/featherlingo-api/internal/domain/user"
	"github.com/featherlingo/featherlingo-api/pkg/retry"
)

// store is an in-memory database shared by the fake repositories.
// RunInTx snapshots it and restores the snapshot when fn fails.
type store struct {
	mu       sync.Mutex
	users    map[string]user.User
	lessons  map[string]lesson.Lesson
	progress map[string]progress.Progress
	claims   map[string]quest.Claim
	follows  map[string]bool
	rewarded map[string]bool

	// failUserUpdates makes the next n user updates report a lost race.
	failUserUpdates int
	userUpdates     int
}

func newStore() *store {
	return &store{
		users:    map[string]user.User{},
		lessons:  map[string]lesson.Lesson{},
		progress: map[string]progress.Progress{},
		claims:   map[string]quest.Claim{},
		follows:  map[string]bool{},
		rewarded: map[string]bool{},
	}
}

func (s *store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	users, lessons, prog, claims, follows := cloneMap(s.users), cloneMap(s.lessons), cloneMap(s.progress), cloneMap(s.claims), cloneMap(s.follows)
	rewarded := cloneMap(s.rewarded)
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.users, s.lessons, s.progress, s.claims, s.follows = users, lessons, prog, claims, follows
		s.rewarded = rewarded
		s.mu.Unlock()
		return err
	}
	return nil
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func progressKey(userID, lessonID string) string { return userID + "/" + lessonID }

// ─── users ───────────────────────────────────────────────────────────────────

type userRepo struct{ s *store }

func (r userRepo) Create(_ context.Context, u *user.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if strings.EqualFold(existing.Username, u.Username) || existing.Email == u.Email {
			return shared.ErrUserAlreadyExists
		}
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r userRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	return &u, nil
}

func (r userRepo) GetByIDForUpdate(ctx context.Context, id string) (*user.User, error) {
	return r.GetByID(ctx, id)
}

func (r userRepo) GetByLogin(_ context.Context, login string) (*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Username == login || u.Email == strings.ToLower(login) {
			u := u
			return &u, nil
		}
	}
	return nil, shared.ErrUserNotFound
}

func (r userRepo) Update(_ context.Context, u *user.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.userUpdates++
	if r.s.failUserUpdates > 0 {
		r.s.failUserUpdates--
		return shared.WrapError("user", "Update", shared.ErrConcurrentModification, "stale", nil)
	}
	stored, ok := r.s.users[u.ID]
	if !ok {
		return shared.ErrUserNotFound
	}
	if stored.Version != u.Version {
		return shared.WrapError("user", "Update", shared.ErrConcurrentModification, "stale", nil)
	}
	u.Version++
	r.s.users[u.ID] = *u
	return nil
}

func (r userRepo) ListAll(_ context.Context, offset, limit int) ([]*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*user.User
	for _, u := range r.s.users {
		u := u
		out = append(out, &u)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type followRepo struct{ s *store }

func (r followRepo) Follow(_ context.Context, a, b string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.follows[a+">"+b] {
		return shared.ErrAlreadyFollowing
	}
	r.s.follows[a+">"+b] = true
	return nil
}

func (r followRepo) Unfollow(_ context.Context, a, b string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if !r.s.follows[a+">"+b] {
		return shared.ErrNotFollowing
	}
	delete(r.s.follows, a+">"+b)
	return nil
}

func (r followRepo) Followers(context.Context, string) ([]string, error) { return nil, nil }
func (r followRepo) Following(context.Context, string) ([]string, error) { return nil, nil }

// ─── lessons ─────────────────────────────────────────────────────────────────

type lessonRepo struct{ s *store }

func (r lessonRepo) GetByID(_ context.Context, id string) (*lesson.Lesson, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.lessons[id]
	if !ok {
		return nil, shared.ErrLessonNotFound
	}
	return &l, nil
}

func (r lessonRepo) List(context.Context, lesson.ListFilter) ([]*lesson.Lesson, error) {
	return nil, nil
}

func (r lessonRepo) Create(_ context.Context, l *lesson.Lesson) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.lessons[l.ID]; ok {
		return shared.ErrLessonAlreadyExists
	}
	r.s.lessons[l.ID] = *l
	return nil
}

func (r lessonRepo) Upsert(_ context.Context, l *lesson.Lesson) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.lessons[l.ID] = *l
	return nil
}

func (r lessonRepo) SetActive(_ context.Context, id string, active bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.lessons[id]
	if !ok {
		return shared.ErrLessonNotFound
	}
	l.IsActive = active
	r.s.lessons[id] = l
	return nil
}

// ─── progress ────────────────────────────────────────────────────────────────

type progressRepo struct{ s *store }

func (r progressRepo) Get(_ context.Context, userID, lessonID string) (*progress.Progress, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.progress[progressKey(userID, lessonID)]
	if !ok {
		return nil, shared.ErrProgressNotFound
	}
	return &p, nil
}

func (r progressRepo) GetForUpdate(ctx context.Context, userID, lessonID string) (*progress.Progress, error) {
	return r.Get(ctx, userID, lessonID)
}

func (r progressRepo) Create(_ context.Context, p *progress.Progress) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := progressKey(p.UserID, p.LessonID)
	if _, ok := r.s.progress[key]; ok {
		return shared.WrapError("progress", "Create", shared.ErrConcurrentModification, "exists", nil)
	}
	r.s.progress[key] = *p
	return nil
}

func (r progressRepo) Update(_ context.Context, p *progress.Progress) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := progressKey(p.UserID, p.LessonID)
	stored, ok := r.s.progress[key]
	if !ok || stored.Version != p.Version {
		return shared.WrapError("progress", "Update", shared.ErrConcurrentModification, "stale", nil)
	}
	p.Version++
	r.s.progress[key] = *p
	return nil
}

func (r progressRepo) Delete(_ context.Context, userID, lessonID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := progressKey(userID, lessonID)
	if _, ok := r.s.progress[key]; !ok {
		return shared.ErrProgressNotFound
	}
	delete(r.s.progress, key)
	return nil
}

func (r progressRepo) MarkRewarded(_ context.Context, userID, lessonID string, _ time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := progressKey(userID, lessonID)
	if r.s.rewarded[key] {
		return false, nil
	}
	r.s.rewarded[key] = true
	return true, nil
}

func (r progressRepo) ListByUser(_ context.Context, userID string) ([]*progress.Progress, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*progress.Progress
	for _, p := range r.s.progress {
		if p.UserID == userID {
			p := p
			out = append(out, &p)
		}
	}
	return out, nil
}

func (r progressRepo) CompletedLessonIDs(_ context.Context, userID string) (map[string]bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[string]bool{}
	for _, p := range r.s.progress {
		if p.UserID == userID && p.IsCompleted() {
			out[p.LessonID] = true
		}
	}
	return out, nil
}

func (r progressRepo) CompletionStats(_ context.Context, userID string, since time.Time) (progress.CompletionStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var st progress.CompletionStats
	for _, p := range r.s.progress {
		if p.UserID != userID || !p.IsCompleted() || p.CompletedAt.Before(since) {
			continue
		}
		st.Completed++
		if p.Score == 100 {
			st.Perfect++
		}
	}
	return st, nil
}

// ─── quest claims ────────────────────────────────────────────────────────────

type claimRepo struct{ s *store }

func (r claimRepo) Create(_ context.Context, c *quest.Claim) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := c.UserID + "/" + quest.ClaimKey(c.QuestID, c.PeriodKey)
	if _, ok := r.s.claims[key]; ok {
		return shared.ErrQuestAlreadyClaimed
	}
	r.s.claims[key] = *c
	return nil
}

func (r claimRepo) ClaimedKeys(_ context.Context, userID string) (map[string]bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[string]bool{}
	for _, c := range r.s.claims {
		if c.UserID == userID {
			out[quest.ClaimKey(c.QuestID, c.PeriodKey)] = true
		}
	}
	return out, nil
}

// ─── collaborators ───────────────────────────────────────────────────────────

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

type plainHasher struct{}

func (plainHasher) Hash(pw string) (string, error) { return "hashed:" + pw, nil }
func (plainHasher) Verify(hash, pw string) error {
	if hash != "hashed:"+pw {
		return shared.ErrInvalidCredentials
	}
	return nil
}

type stubTokens struct{}

func (stubTokens) Issue(userID, role string) (string, time.Time, error) {
	return fmt.Sprintf("token-%s-%s", userID, role), time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), nil
}

// ─── fixture ─────────────────────────────────────────────────────────────────

type fixture struct {
	store  *store
	events *recordingPublisher
	rt     Runtime
	deps   LessonDeps
	now    time.Time
	seq    int
}

func newFixture() *fixture {
	f := &fixture{
		store:  newStore(),
		events: &recordingPublisher{},
		now:    time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC),
	}
	f.rt = Runtime{
		Tx:     f.store,
		Events: f.events,
		Retrier: retry.New(
			retry.WithMaxAttempts(3),
			retry.WithInitialDelay(time.Millisecond),
			retry.WithRetryIf(shared.IsRetryable),
		),
		Clock: func() time.Time { return f.now },
		NewID: func() string {
			f.seq++
			return fmt.Sprintf("id-%d", f.seq)
		},
	}
	f.deps = LessonDeps{
		Users:    userRepo{f.store},
		Lessons:  lessonRepo{f.store},
		Progress: progressRepo{f.store},
		Ladder:   league.DefaultLadder(),
	}
	return f
}

func (f *fixture) addUser(id string, mutate func(*user.User)) {
	u, err := user.New(user.NewUserParams{
		ID: id, Username: "user_" + strings.ReplaceAll(id, "-", "_"), Email: id + "@example.com", PasswordHash: "hashed:password1",
	}, f.deps.Ladder)
	if err != nil {
		panic(err)
	}
	if mutate != nil {
		mutate(u)
	}
	f.store.users[id] = *u
}

func (f *fixture) addLesson(id string, exercises int, reward lesson.Reward, mutate func(*lesson.Lesson)) {
	p := lesson.NewLessonParams{ID: id, Title: "Lesson " + id, Language: "es", Reward: reward, IsActive: true}
	for i := 0; i < exercises; i++ {
		p.Exercises = append(p.Exercises, lesson.Exercise{
			Type: lesson.ExerciseTranslate, Prompt: fmt.Sprintf("p%d", i), CorrectAnswer: fmt.Sprintf("a%d", i), Points: 10,
		})
	}
	l, err := lesson.NewLesson(p)
	if err != nil {
		panic(err)
	}
	if mutate != nil {
		mutate(l)
	}
	f.store.lessons[id] = *l
}

func (f *fixture) user(id string) user.User {
	return f.store.users[id]
}

// answers returns correct answers for the first n exercises and wrong ones for the rest up to total.
func answers(correct, total int) []progress.Answer {
	out := make([]progress.Answer, 0, total)
	for i := 0; i < total; i++ {
		a := fmt.Sprintf("a%d", i)
		if i >= correct {
			a = "wrong"
		}
		out = append(out, progress.Answer{ExerciseIndex: i, UserAnswer: a})
	}
	return out
}
